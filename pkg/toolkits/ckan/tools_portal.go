package ckan

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-ckan/pkg/portal"
)

type findPortalsInput struct {
	Query          string `json:"query,omitempty" jsonschema:"Case-insensitive substring matched against portal names and URLs"`
	ResponseFormat string `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

func (t *Toolkit) registerPortalTools(s *mcp.Server) {
	mcp.AddTool(s, t.tool(toolFindPortals, "List Known CKAN Portals",
		"List the CKAN portals with known API addresses and page-link templates. "+
			"Any other CKAN server URL can still be used with the other tools.", false),
		t.handleFindPortals)
}

func (t *Toolkit) handleFindPortals(_ context.Context, _ *mcp.CallToolRequest, input findPortalsInput) (*mcp.CallToolResult, any, error) {
	switch strings.ToLower(input.ResponseFormat) {
	case "", formatMarkdown, formatJSON:
	default:
		return errorResult(fmt.Sprintf("response_format must be %q or %q", formatMarkdown, formatJSON)), nil, nil
	}

	entries := matchPortals(t.portals.Entries(), input.Query)

	if wantJSON(input.ResponseFormat) {
		return jsonResult(map[string]any{
			"count":    len(entries),
			"portals":  entries,
			"defaults": t.portals.Defaults(),
		})
	}

	var sb strings.Builder
	sb.WriteString("# Known CKAN Portals\n\n")
	if input.Query != "" {
		fmt.Fprintf(&sb, "**Query**: %s\n", input.Query)
	}
	fmt.Fprintf(&sb, "**Count**: %d\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&sb, "## %s\n\n", orDefault(e.Name, e.APIURL))
		fmt.Fprintf(&sb, "- **API URL**: %s\n", e.APIURL)
		if len(e.APIURLAliases) > 0 {
			fmt.Fprintf(&sb, "- **Aliases**: %s\n", strings.Join(e.APIURLAliases, ", "))
		}
		for _, kind := range []portal.Kind{portal.KindDataset, portal.KindOrganization, portal.KindGroup} {
			if tpl := e.Template(kind); tpl != "" {
				fmt.Fprintf(&sb, "- **%s page**: %s\n", kind, tpl)
			}
		}
		sb.WriteString("\n")
	}
	defaults := t.portals.Defaults()
	fmt.Fprintf(&sb, "Other servers link to `%s`.\n", defaults.Template(portal.KindDataset))
	return textResult(sb.String()), nil, nil
}

func matchPortals(entries []portal.Entry, query string) []portal.Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}
	out := make([]portal.Entry, 0, len(entries))
	for _, e := range entries {
		haystack := strings.ToLower(strings.Join(append([]string{e.Name, e.APIURL}, e.APIURLAliases...), " "))
		if strings.Contains(haystack, q) {
			out = append(out, e)
		}
	}
	return out
}
