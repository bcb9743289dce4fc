package platform

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-ckan/pkg/ckan"
)

func TestParseTemplateVars(t *testing.T) {
	tests := []struct {
		name     string
		template string
		uri      string
		want     map[string]string
		wantErr  bool
	}{
		{
			name:     "dataset URI",
			template: datasetTemplateURI,
			uri:      "ckan://www.dati.gov.it/dataset/popolazione-residente",
			want:     map[string]string{"host": "www.dati.gov.it", "id": "popolazione-residente"},
		},
		{
			name:     "organization URI",
			template: organizationTemplateURI,
			uri:      "ckan://demo.ckan.org/organization/sample-org",
			want:     map[string]string{"host": "demo.ckan.org", "id": "sample-org"},
		},
		{
			name:     "group URI",
			template: groupTemplateURI,
			uri:      "ckan://demo.ckan.org/group/environment",
			want:     map[string]string{"host": "demo.ckan.org", "id": "environment"},
		},
		{
			name:     "mismatch URI",
			template: datasetTemplateURI,
			uri:      "ckan://demo.ckan.org/group/environment",
			wantErr:  true,
		},
		{
			name:     "empty URI",
			template: datasetTemplateURI,
			uri:      "",
			wantErr:  true,
		},
		{
			name:     "invalid template",
			template: "{{{bad",
			uri:      "anything",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTemplateVars(tt.template, tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			for k, want := range tt.want {
				assert.Equal(t, want, got[k], "var %q", k)
			}
		})
	}
}

func readResource(t *testing.T, catalog *fakeCatalog, uri string) (*mcp.ReadResourceResult, error) {
	t.Helper()
	p := newTestPlatform(t, nil, WithCatalog(catalog))
	cs := connectTestClient(t, p.MCPServer())
	return cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: uri}) //nolint:wrapcheck // test helper
}

func TestCatalogResources(t *testing.T) {
	tests := []struct {
		uri        string
		wantAction string
		wantID     string
	}{
		{"ckan://demo.ckan.org/dataset/air-quality", "package_show", "air-quality"},
		{"ckan://demo.ckan.org/organization/city-of-x", "organization_show", "city-of-x"},
		{"ckan://demo.ckan.org/group/environment", "group_show", "environment"},
	}

	for _, tt := range tests {
		t.Run(tt.wantAction, func(t *testing.T) {
			catalog := &fakeCatalog{body: json.RawMessage(`{"name":"` + tt.wantID + `","num_resources":2}`)}

			res, err := readResource(t, catalog, tt.uri)
			require.NoError(t, err)
			require.Len(t, res.Contents, 1)
			assert.Equal(t, tt.uri, res.Contents[0].URI)
			assert.Equal(t, "application/json", res.Contents[0].MIMEType)
			assert.JSONEq(t, `{"name":"`+tt.wantID+`","num_resources":2}`, res.Contents[0].Text)
			assert.Contains(t, res.Contents[0].Text, "\n  ", "resource JSON should be indented")

			call := catalog.lastCall()
			assert.Equal(t, "https://demo.ckan.org", call.server)
			assert.Equal(t, tt.wantAction, call.action)
			assert.Equal(t, tt.wantID, call.id)
		})
	}
}

func TestCatalogResource_NotFound(t *testing.T) {
	catalog := &fakeCatalog{err: &ckan.APIError{Action: "package_show", Status: 404, Message: "Not found"}}

	_, err := readResource(t, catalog, "ckan://demo.ckan.org/dataset/missing")
	require.Error(t, err)
}

func TestCatalogResource_UpstreamError(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("network error: connection refused")}

	_, err := readResource(t, catalog, "ckan://demo.ckan.org/dataset/any")
	require.Error(t, err)
}

func TestResourceTemplates_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resources.Enabled = false
	p := newTestPlatform(t, cfg)
	cs := connectTestClient(t, p.MCPServer())

	_, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "ckan://demo.ckan.org/dataset/x"})
	require.Error(t, err)
}

func TestResourceTemplates_Listed(t *testing.T) {
	p := newTestPlatform(t, nil)
	cs := connectTestClient(t, p.MCPServer())

	res, err := cs.ListResourceTemplates(context.Background(), &mcp.ListResourceTemplatesParams{})
	require.NoError(t, err)

	var uris []string
	for _, tmpl := range res.ResourceTemplates {
		uris = append(uris, tmpl.URITemplate)
	}
	assert.ElementsMatch(t, []string{datasetTemplateURI, organizationTemplateURI, groupTemplateURI}, uris)
}

func TestMarshalResourceResult_InvalidJSON(t *testing.T) {
	_, err := marshalResourceResult("ckan://x/dataset/y", json.RawMessage(`{not json`))
	require.Error(t, err)
}
