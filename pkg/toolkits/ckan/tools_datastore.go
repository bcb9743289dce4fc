package ckan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"

	ckanapi "github.com/txn2/mcp-ckan/pkg/ckan"
	"github.com/txn2/mcp-ckan/pkg/render"
)

const (
	defaultDatastoreLimit = 100
	maxDatastoreLimit     = 32000
	maxTableColumns       = 8
	maxTableRows          = 50
	maxCellChars          = 50
)

type datastoreSearchInput struct {
	ServerURL      string         `json:"server_url" jsonschema:"Base URL of the CKAN server"`
	ResourceID     string         `json:"resource_id" jsonschema:"ID of the DataStore resource"`
	Q              string         `json:"q,omitempty" jsonschema:"Full-text search query"`
	Filters        map[string]any `json:"filters,omitempty" jsonschema:"Key-value filters, e.g. {\"anno\": 2023}"`
	Limit          *int           `json:"limit,omitempty" jsonschema:"Maximum rows (default 100, max 32000)"`
	Offset         int            `json:"offset,omitempty" jsonschema:"Pagination offset"`
	Fields         []string       `json:"fields,omitempty" jsonschema:"Fields to return"`
	Sort           string         `json:"sort,omitempty" jsonschema:"Sort field with direction, e.g. anno desc"`
	Distinct       bool           `json:"distinct,omitempty" jsonschema:"Return distinct rows"`
	ResponseFormat string         `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

type datastoreSQLInput struct {
	ServerURL      string `json:"server_url" jsonschema:"Base URL of the CKAN server"`
	SQL            string `json:"sql" jsonschema:"SELECT statement; table names are resource IDs in double quotes"`
	ResponseFormat string `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

func (t *Toolkit) registerDatastoreTools(s *mcp.Server) {
	mcp.AddTool(s, t.tool(toolDatastoreSearch, "Search CKAN DataStore",
		"Query rows of a DataStore resource with optional full-text search, filters, field selection, "+
			"sorting and pagination. Not every resource has the DataStore enabled.", false),
		t.handleDatastoreSearch)

	mcp.AddTool(s, t.tool(toolDatastoreSQL, "Query CKAN DataStore with SQL",
		"Run a read-only SQL SELECT against DataStore resources, e.g. "+
			"SELECT anno, COUNT(*) FROM \"<resource_id>\" GROUP BY anno.", false),
		t.handleDatastoreSQL)
}

func (t *Toolkit) handleDatastoreSearch(ctx context.Context, _ *mcp.CallToolRequest, input datastoreSearchInput) (*mcp.CallToolResult, any, error) {
	if err := checkCommon(input.ServerURL, input.ResponseFormat); err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	if strings.TrimSpace(input.ResourceID) == "" {
		return errorResult("resource_id is required"), nil, nil
	}
	limit := intOr(input.Limit, defaultDatastoreLimit)
	if limit < 1 || limit > maxDatastoreLimit {
		return errorResult(fmt.Sprintf("limit must be between 1 and %d", maxDatastoreLimit)), nil, nil
	}
	if input.Offset < 0 {
		return errorResult("offset must not be negative"), nil, nil
	}

	params := url.Values{}
	params.Set("resource_id", input.ResourceID)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(input.Offset))
	params.Set("distinct", strconv.FormatBool(input.Distinct))
	if input.Q != "" {
		params.Set("q", input.Q)
	}
	if len(input.Filters) > 0 {
		filters, err := json.Marshal(input.Filters)
		if err != nil {
			return errorResult("invalid filters: " + err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
		}
		params.Set("filters", string(filters))
	}
	if len(input.Fields) > 0 {
		params.Set("fields", strings.Join(input.Fields, ","))
	}
	if input.Sort != "" {
		params.Set("sort", input.Sort)
	}

	raw, err := t.client.ActionRaw(ctx, input.ServerURL, "datastore_search", params)
	if err != nil {
		return failure("Error querying DataStore: ", err)
	}
	if wantJSON(input.ResponseFormat) {
		return jsonResult(raw)
	}

	var result ckanapi.DatastoreResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return failure("Error querying DataStore: ", err)
	}

	total := 0
	if result.Total != nil {
		total = *result.Total
	}

	var sb strings.Builder
	sb.WriteString("# DataStore Query Results\n\n")
	fmt.Fprintf(&sb, "**Server**: %s\n", input.ServerURL)
	fmt.Fprintf(&sb, "**Resource ID**: `%s`\n", input.ResourceID)
	fmt.Fprintf(&sb, "**Total Records**: %d\n", total)
	fmt.Fprintf(&sb, "**Returned**: %d records\n\n", len(result.Records))
	writeRecords(&sb, result)

	if total > input.Offset+len(result.Records) {
		fmt.Fprintf(&sb, "**More results available**: Use `offset: %d` for next page.\n", input.Offset+limit)
	}
	return textResult(sb.String()), nil, nil
}

func (t *Toolkit) handleDatastoreSQL(ctx context.Context, _ *mcp.CallToolRequest, input datastoreSQLInput) (*mcp.CallToolResult, any, error) {
	if err := checkCommon(input.ServerURL, input.ResponseFormat); err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	if strings.TrimSpace(input.SQL) == "" {
		return errorResult("sql is required"), nil, nil
	}

	raw, err := t.client.ActionRaw(ctx, input.ServerURL, "datastore_search_sql", url.Values{"sql": {input.SQL}})
	if err != nil {
		return failure("Error executing DataStore SQL: ", err)
	}
	if wantJSON(input.ResponseFormat) {
		return jsonResult(raw)
	}

	var result ckanapi.DatastoreResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return failure("Error executing DataStore SQL: ", err)
	}

	var sb strings.Builder
	sb.WriteString("# DataStore SQL Results\n\n")
	fmt.Fprintf(&sb, "**Server**: %s\n", input.ServerURL)
	fmt.Fprintf(&sb, "**SQL**:\n\n```sql\n%s\n```\n\n", input.SQL)
	fmt.Fprintf(&sb, "**Returned**: %d records\n\n", len(result.Records))
	writeRecords(&sb, result)
	return textResult(sb.String()), nil, nil
}

// writeRecords renders the field list and up to maxTableRows records over
// the first maxTableColumns fields.
func writeRecords(sb *strings.Builder, result ckanapi.DatastoreResult) {
	if len(result.Fields) > 0 {
		sb.WriteString("## Fields\n\n")
		for _, f := range result.Fields {
			fmt.Fprintf(sb, "- **%s** (%s)\n", f.ID, f.Type)
		}
		sb.WriteString("\n")
	}
	if len(result.Records) == 0 {
		return
	}

	columns := recordColumns(result)
	if len(columns) > maxTableColumns {
		columns = columns[:maxTableColumns]
	}

	rows := make([][]string, 0, min(len(result.Records), maxTableRows))
	for i, rec := range result.Records {
		if i == maxTableRows {
			break
		}
		values := recordValues(rec)
		row := make([]string, len(columns))
		for j, col := range columns {
			row[j] = recordCell(values[col])
		}
		rows = append(rows, row)
	}

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = render.Cell(col, maxCellChars)
	}

	sb.WriteString("## Records\n\n")
	sb.WriteString(render.Table(headers, rows))
	if len(result.Records) > maxTableRows {
		fmt.Fprintf(sb, "\n... and %d more records\n", len(result.Records)-maxTableRows)
	}
	sb.WriteString("\n")
}

// recordColumns returns the field ids, or the keys of the first record
// when the result carries no field list.
func recordColumns(result ckanapi.DatastoreResult) []string {
	if len(result.Fields) > 0 {
		cols := make([]string, len(result.Fields))
		for i, f := range result.Fields {
			cols[i] = f.ID
		}
		return cols
	}
	var cols []string
	gjson.ParseBytes(result.Records[0]).ForEach(func(key, _ gjson.Result) bool {
		cols = append(cols, key.String())
		return true
	})
	return cols
}

// recordValues indexes a record's top-level values by key. Keys are taken
// literally, so column names containing dots or wildcards still resolve.
func recordValues(rec json.RawMessage) map[string]gjson.Result {
	values := make(map[string]gjson.Result)
	gjson.ParseBytes(rec).ForEach(func(key, value gjson.Result) bool {
		values[key.String()] = value
		return true
	})
	return values
}

// recordCell renders a value; missing and null values show as "-".
func recordCell(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return "-"
	case gjson.String:
		return render.Cell(v.Str, maxCellChars)
	default:
		return render.Cell(v.Raw, maxCellChars)
	}
}
