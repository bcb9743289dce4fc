package ckan

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-ckan/pkg/portal"
)

const (
	testToolkitName = "default"
	notFoundBody    = `{"success": false, "error": {"message": "Not found", "__type": "Not Found Error"}}`
)

// ckanStub serves canned action API responses and records the queries.
type ckanStub struct {
	*httptest.Server

	mu      sync.Mutex
	queries map[string]url.Values
}

func newCKANStub(t *testing.T, responses map[string]string) *ckanStub {
	t.Helper()
	stub := &ckanStub{queries: make(map[string]url.Values)}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := strings.TrimPrefix(r.URL.Path, "/api/3/action/")
		stub.mu.Lock()
		stub.queries[action] = r.URL.Query()
		stub.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		body, ok := responses[action]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(notFoundBody))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(stub.Close)
	return stub
}

func (s *ckanStub) query(action string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[action]
}

func okBody(result string) string {
	return `{"success": true, "result": ` + result + `}`
}

// newTestSession registers the toolkit on a fresh server and connects an
// in-memory client to it.
func newTestSession(t *testing.T, table *portal.Table) *mcp.ClientSession {
	t.Helper()
	if table == nil {
		table = portal.New(nil, portal.Templates{})
	}
	tk, err := New(testToolkitName, Config{}, table)
	require.NoError(t, err)

	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "1.0.0"}, nil)
	tk.RegisterTools(server)

	ctx := context.Background()
	t1, t2 := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, t1, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0"}, nil)
	clientSession, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = clientSession.Close()
		_ = serverSession.Close()
	})
	return clientSession
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, isText := res.Content[0].(*mcp.TextContent)
	require.True(t, isText, "content type %T", res.Content[0])
	return text.Text, res.IsError
}

func TestToolkitMetadata(t *testing.T) {
	tk, err := New(testToolkitName, Config{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "ckan", tk.Kind())
	assert.Equal(t, testToolkitName, tk.Name())
	assert.Len(t, tk.Tools(), 14)
	assert.NotNil(t, tk.Portals())
	assert.NoError(t, tk.Close())
}

func TestRegisterTools(t *testing.T) {
	cs := newTestSession(t, nil)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	tk := &Toolkit{}
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		require.NotNil(t, tool.Annotations, tool.Name)
		assert.True(t, tool.Annotations.ReadOnlyHint, tool.Name)
		assert.True(t, tool.Annotations.IdempotentHint, tool.Name)
	}
	assert.ElementsMatch(t, tk.Tools(), names)
}

func TestStatusShow(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"status_show": okBody(`{"ckan_version": "2.10.4", "site_title": "Dati", "site_url": "https://dati.example.org", "extensions": ["dcatapit"]}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolStatusShow, map[string]any{"server_url": stub.URL})
	require.False(t, isErr, text)
	assert.Contains(t, text, "# CKAN Server Status")
	assert.Contains(t, text, "**CKAN Version**: 2.10.4")
	assert.Contains(t, text, "**Site Title**: Dati")
	assert.Contains(t, text, "**Extensions**: dcatapit")
}

func TestStatusShowOffline(t *testing.T) {
	stub := newCKANStub(t, nil)
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolStatusShow, map[string]any{"server_url": stub.URL})
	assert.True(t, isErr)
	assert.Contains(t, text, "Server appears to be offline or not a valid CKAN instance:\n")
	assert.Contains(t, text, "status_show error (404): Not found")
}

func TestPackageSearch(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_search": okBody(`{
			"count": 25,
			"results": [
				{"id": "id-1", "name": "aria-2023", "title": "Qualità dell'aria",
				 "organization": {"name": "arpa", "title": "ARPA"},
				 "tags": [{"name": "ambiente"}, {"name": "aria"}],
				 "resources": [{"id": "r1"}],
				 "metadata_modified": "2024-03-05T10:20:30.123456"}
			],
			"search_facets": {"organization": {"items": [
				{"name": "arpa", "display_name": "ARPA", "count": 4},
				{"name": "istat", "display_name": "ISTAT", "count": 9}
			]}}
		}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolPackageSearch, map[string]any{
		"server_url":  stub.URL,
		"fq":          "res_format:CSV",
		"facet_field": []string{"organization"},
	})
	require.False(t, isErr, text)

	q := stub.query("package_search")
	assert.Equal(t, "*:*", q.Get("q"))
	assert.Equal(t, "10", q.Get("rows"))
	assert.Equal(t, "0", q.Get("start"))
	assert.Equal(t, "res_format:CSV", q.Get("fq"))
	assert.Equal(t, `["organization"]`, q.Get("facet.field"))
	assert.Equal(t, "50", q.Get("facet.limit"))

	assert.Contains(t, text, "**Total Results**: 25")
	assert.Contains(t, text, "**Filter**: res_format:CSV")
	assert.Contains(t, text, "### 1. Qualità dell'aria")
	assert.Contains(t, text, "- **Organization**: ARPA")
	assert.Contains(t, text, "- **Modified**: 5/3/2024, 10:20:30")
	assert.Contains(t, text, "- **Link**: "+stub.URL+"/dataset/aria-2023")
	assert.Less(t, strings.Index(text, "**ISTAT**: 9"), strings.Index(text, "**ARPA**: 4"))
	assert.Contains(t, text, "Use `start: 1` for next page")
}

func TestPackageSearchInvalidRows(t *testing.T) {
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolPackageSearch, map[string]any{
		"server_url": "https://ckan.example.org",
		"rows":       5000,
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "rows must be between 0 and 1000")
}

func TestPackageShow(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_show": okBody(`{
			"id": "id-1", "name": "aria-2023", "title": "Aria", "identifier": "c_a345:aria",
			"license_title": "CC-BY 4.0", "notes": "Misure orarie.",
			"organization": {"id": "o1", "name": "arpa", "title": "ARPA"},
			"tags": [{"name": "ambiente"}, {"name": "aria"}],
			"groups": [{"id": "g1", "name": "ambiente", "display_name": "Ambiente"}],
			"resources": [
				{"id": "r1", "name": "Dati CSV", "format": "CSV", "size": "1536", "url": "https://x/r1.csv", "datastore_active": true},
				{"id": "r2", "format": "", "size": null}
			],
			"extras": [{"key": "frequency", "value": "DAILY"}]
		}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolPackageShow, map[string]any{"server_url": stub.URL, "id": "aria-2023"})
	require.False(t, isErr, text)
	assert.Equal(t, "aria-2023", stub.query("package_show").Get("id"))

	assert.Contains(t, text, "# Dataset: Aria")
	assert.Contains(t, text, "**Link**: "+stub.URL+"/dataset/aria-2023")
	assert.Contains(t, text, "- **Identifier**: `c_a345:aria`")
	assert.Contains(t, text, "- **Organization**: ARPA ("+stub.URL+"/organization/arpa)")
	assert.Contains(t, text, "- **License**: CC-BY 4.0")
	assert.Contains(t, text, "## Tags\n\nambiente, aria")
	assert.Contains(t, text, "- Ambiente ("+stub.URL+"/group/ambiente)")
	assert.Contains(t, text, "- **Size**: 1.5 KB")
	assert.Contains(t, text, "- **DataStore**: ✓ Available")
	assert.Contains(t, text, "### 2. Unnamed resource")
	assert.Contains(t, text, "- **frequency**: DAILY")
}

func TestPackageShowKnownPortalLinks(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_show": okBody(`{"id": "id-1", "name": "aria-2023"}`),
	})
	table := portal.New([]portal.Entry{{
		Name:           "Stub portal",
		APIURL:         stub.URL,
		DatasetViewURL: "https://portal.example.org/view-dataset/dataset?id={id}",
	}}, portal.Templates{})
	cs := newTestSession(t, table)

	text, isErr := callTool(t, cs, toolPackageShow, map[string]any{"server_url": stub.URL + "/", "id": "aria-2023"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "**Link**: https://portal.example.org/view-dataset/dataset?id=id-1")
}

func TestPackageShowJSON(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_show": okBody(`{"id": "id-1", "name": "aria-2023"}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolPackageShow, map[string]any{
		"server_url":      stub.URL,
		"id":              "aria-2023",
		"response_format": "json",
	})
	require.False(t, isErr, text)
	assert.JSONEq(t, `{"id": "id-1", "name": "aria-2023"}`, text)
	assert.Contains(t, text, "\n  \"id\"")
}

func TestPackageShowNotFound(t *testing.T) {
	stub := newCKANStub(t, nil)
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolPackageShow, map[string]any{"server_url": stub.URL, "id": "missing"})
	assert.True(t, isErr)
	assert.Equal(t, "Error fetching dataset: package_show error (404): Not found", text)
}

func TestResourceShow(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"resource_show": okBody(`{"id": "r1", "package_id": "p1", "name": "Misure", "format": "CSV",
			"size": 2097152, "datastore_active": true, "url": "https://x/r1.csv"}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolResourceShow, map[string]any{"server_url": stub.URL, "id": "r1"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "# Resource: Misure")
	assert.Contains(t, text, "- **Dataset**: `p1`")
	assert.Contains(t, text, "- **Size**: 2 MB")
	assert.Contains(t, text, "- **DataStore**: ✓")
	assert.Contains(t, text, "`resource_id: r1`")
}

func TestTagList(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_search": okBody(`{"count": 10, "results": [], "facets": {"tags": {"ambiente": 3, "acqua": 5, "traffico": 7}}}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolTagList, map[string]any{
		"server_url": stub.URL,
		"fq":         "organization:arpa",
		"tag_query":  "A",
	})
	require.False(t, isErr, text)

	q := stub.query("package_search")
	assert.Equal(t, "*:*", q.Get("q"))
	assert.Equal(t, "0", q.Get("rows"))
	assert.Equal(t, `["tags"]`, q.Get("facet.field"))
	assert.Equal(t, "100", q.Get("facet.limit"))
	assert.Equal(t, "organization:arpa", q.Get("fq"))

	want := "# CKAN Tags\n\n" +
		"**Server**: " + stub.URL + "\n" +
		"**Query**: *:*\n" +
		"**Filter**: organization:arpa\n" +
		"**Tag Query**: A\n" +
		"**Count**: 3\n\n" +
		"- **traffico**: 7\n" +
		"- **acqua**: 5\n" +
		"- **ambiente**: 3\n"
	assert.Equal(t, want, text)
}

func TestTagListEmptyAndInvalid(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_search": okBody(`{"count": 0, "results": [], "search_facets": {"tags": {"items": []}}}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolTagList, map[string]any{"server_url": stub.URL})
	require.False(t, isErr, text)
	assert.Contains(t, text, "No tags found.")

	for _, limit := range []int{0, 1001} {
		text, isErr = callTool(t, cs, toolTagList, map[string]any{"server_url": stub.URL, "limit": limit})
		assert.True(t, isErr)
		assert.Contains(t, text, "limit must be between 1 and 1000")
	}
}

func TestTagListJSON(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_search": okBody(`{"count": 2, "results": [], "facets": {"tags": [{"name": "b", "count": 1}, {"name": "a", "count": 1}]}}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolTagList, map[string]any{"server_url": stub.URL, "response_format": "json"})
	require.False(t, isErr, text)
	assert.JSONEq(t, `{"count": 2, "tags": [{"name": "a", "count": 1}, {"name": "b", "count": 1}]}`, text)
}

func TestGroupListCount(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_search": okBody(`{"count": 40, "results": [], "search_facets": {"groups": {"items": [
			{"name": "ambiente", "count": 30}, {"name": "salute", "count": 10}]}}}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolGroupList, map[string]any{"server_url": stub.URL, "limit": 0})
	require.False(t, isErr, text)

	q := stub.query("package_search")
	assert.Equal(t, "-1", q.Get("facet.limit"))
	assert.Equal(t, `["groups"]`, q.Get("facet.field"))
	assert.Equal(t, "# CKAN Groups Count\n\n**Server**: "+stub.URL+"\n**Total groups (with datasets)**: 2\n", text)

	text, isErr = callTool(t, cs, toolGroupList, map[string]any{"server_url": stub.URL, "limit": 0, "response_format": "json"})
	require.False(t, isErr, text)
	assert.JSONEq(t, `{"count": 2}`, text)
}

func TestGroupListAllFields(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"group_list": okBody(`[{"id": "g1", "name": "ambiente", "title": "Ambiente", "description": "` +
			strings.Repeat("x", 250) + `", "package_count": 12, "created": "2020-01-02T03:04:05"}]`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolGroupList, map[string]any{"server_url": stub.URL, "all_fields": true})
	require.False(t, isErr, text)

	q := stub.query("group_list")
	assert.Equal(t, "true", q.Get("all_fields"))
	assert.Equal(t, "name asc", q.Get("sort"))
	assert.Equal(t, "100", q.Get("limit"))

	assert.Contains(t, text, "## Ambiente")
	assert.Contains(t, text, "- **Description**: "+strings.Repeat("x", 200)+"\n")
	assert.Contains(t, text, "- **Datasets**: 12")
	assert.Contains(t, text, "- **Created**: 2/1/2020, 03:04:05")
	assert.Contains(t, text, "- **Link**: "+stub.URL+"/group/ambiente")
}

func TestOrganizationListNames(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"organization_list": okBody(`["arpa", "istat"]`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolOrganizationList, map[string]any{"server_url": stub.URL})
	require.False(t, isErr, text)
	assert.Contains(t, text, "**Total**: 2")
	assert.Contains(t, text, "- arpa\n- istat")
}

func TestGroupShow(t *testing.T) {
	var pkgs []string
	for i := range 25 {
		pkgs = append(pkgs, fmt.Sprintf(`{"name": "ds-%d", "title": "Dataset %d"}`, i, i))
	}
	stub := newCKANStub(t, map[string]string{
		"group_show": okBody(`{"id": "g1", "name": "ambiente", "title": "Ambiente", "package_count": 25,
			"state": "active", "description": "Dati ambientali", "packages": [` + strings.Join(pkgs, ",") + `]}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolGroupShow, map[string]any{"server_url": stub.URL, "id": "ambiente"})
	require.False(t, isErr, text)
	assert.Equal(t, "true", stub.query("group_show").Get("include_datasets"))

	assert.Contains(t, text, "# Group: Ambiente")
	assert.Contains(t, text, "- **State**: active")
	assert.Contains(t, text, "## Description\n\nDati ambientali")
	assert.Contains(t, text, "## Datasets (25)")
	assert.Contains(t, text, "- **Dataset 19** (`ds-19`)")
	assert.NotContains(t, text, "`ds-20`")
	assert.Contains(t, text, "... and 5 more datasets")
}

func TestGroupSearch(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_search": okBody(`{"count": 42, "results": [], "search_facets": {"groups": {"items": [
			{"name": "salute", "display_name": "Salute", "count": 2},
			{"name": "ambiente", "display_name": "Ambiente", "count": 40}]}}}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolGroupSearch, map[string]any{"server_url": stub.URL, "pattern": "a"})
	require.False(t, isErr, text)

	q := stub.query("package_search")
	assert.Equal(t, "groups:*a*", q.Get("q"))
	assert.Equal(t, "500", q.Get("facet.limit"))

	assert.Contains(t, text, "**Groups Found**: 2")
	assert.Contains(t, text, "**Total Datasets**: 42")
	assert.Contains(t, text, "| Group ")
	// Facet source order is kept.
	assert.Less(t, strings.Index(text, "| Salute"), strings.Index(text, "| Ambiente"))
}

func TestOrganizationSearchEmpty(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_search": okBody(`{"count": 0, "results": [], "facets": {"organization": {}}}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolOrganizationSearch, map[string]any{"server_url": stub.URL, "pattern": "comune"})
	require.False(t, isErr, text)
	assert.Equal(t, "organization:*comune*", stub.query("package_search").Get("q"))
	assert.Contains(t, text, `No organizations found matching pattern "comune".`)
}

func TestOrganizationSearchJSON(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"package_search": okBody(`{"count": 5, "results": [], "facets": {"organization": {"arpa": "5"}}}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolOrganizationSearch, map[string]any{
		"server_url": stub.URL, "pattern": "arpa", "response_format": "json",
	})
	require.False(t, isErr, text)
	assert.JSONEq(t, `{"count": 1, "total_datasets": 5, "organizations": [
		{"name": "arpa", "dataset_count": 5, "url": "`+stub.URL+`/organization/arpa"}]}`, text)
}

func TestDatastoreSearch(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"datastore_search": okBody(`{
			"resource_id": "r1",
			"fields": [{"id": "_id", "type": "int"}, {"id": "regione", "type": "text"}, {"id": "note", "type": "text"}],
			"records": [
				{"_id": 1, "regione": "Sicilia", "note": null},
				{"_id": 2, "regione": "Toscana|Nord", "note": "` + strings.Repeat("n", 60) + `"}
			],
			"total": 30
		}`),
	})
	cs := newTestSession(t, nil)

	text, isErr := callTool(t, cs, toolDatastoreSearch, map[string]any{
		"server_url":  stub.URL,
		"resource_id": "r1",
		"filters":     map[string]any{"anno": 2023},
		"fields":      []string{"_id", "regione"},
		"limit":       2,
	})
	require.False(t, isErr, text)

	q := stub.query("datastore_search")
	assert.Equal(t, "r1", q.Get("resource_id"))
	assert.Equal(t, `{"anno":2023}`, q.Get("filters"))
	assert.Equal(t, "_id,regione", q.Get("fields"))
	assert.Equal(t, "2", q.Get("limit"))
	assert.Equal(t, "false", q.Get("distinct"))

	assert.Contains(t, text, "**Total Records**: 30")
	assert.Contains(t, text, "**Returned**: 2 records")
	assert.Contains(t, text, "- **regione** (text)")
	assert.Contains(t, text, "| Sicilia")
	assert.Contains(t, text, `Toscana\|Nord`)
	assert.Contains(t, text, strings.Repeat("n", 47)+"...")
	assert.Contains(t, text, "| -")
	assert.Contains(t, text, "Use `offset: 2` for next page")
}

func TestDatastoreSearchSQL(t *testing.T) {
	stub := newCKANStub(t, map[string]string{
		"datastore_search_sql": okBody(`{"records": [{"anno": 2023, "n": 4}], "fields": [{"id": "anno", "type": "int4"}, {"id": "n", "type": "int8"}]}`),
	})
	cs := newTestSession(t, nil)

	sql := `SELECT anno, COUNT(*) AS n FROM "r1" GROUP BY anno`
	text, isErr := callTool(t, cs, toolDatastoreSQL, map[string]any{"server_url": stub.URL, "sql": sql})
	require.False(t, isErr, text)
	assert.Equal(t, sql, stub.query("datastore_search_sql").Get("sql"))
	assert.Contains(t, text, "```sql\n"+sql+"\n```")
	assert.Contains(t, text, "| 2023")
}

func TestFindPortals(t *testing.T) {
	table, err := portal.Default()
	require.NoError(t, err)
	cs := newTestSession(t, table)

	text, isErr := callTool(t, cs, toolFindPortals, map[string]any{"query": "dati.gov"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "- **API URL**: https://www.dati.gov.it/opendata")
	assert.Contains(t, text, "- **dataset page**: https://www.dati.gov.it/view-dataset/dataset?id={id}")
	assert.NotContains(t, text, "anticorruzione")
	assert.Contains(t, text, "Other servers link to `{server_url}/dataset/{name}`.")
}

func TestCheckCommon(t *testing.T) {
	tests := []struct {
		name    string
		server  string
		format  string
		wantErr bool
	}{
		{"https", "https://ckan.example.org", "", false},
		{"http with json", "http://ckan.example.org/", "JSON", false},
		{"markdown", "https://ckan.example.org", "markdown", false},
		{"empty", "", "", true},
		{"no scheme", "ckan.example.org", "", true},
		{"ftp", "ftp://ckan.example.org", "", true},
		{"bad format", "https://ckan.example.org", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkCommon(tt.server, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
