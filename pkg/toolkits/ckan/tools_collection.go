package ckan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	ckanapi "github.com/txn2/mcp-ckan/pkg/ckan"
	"github.com/txn2/mcp-ckan/pkg/facets"
	"github.com/txn2/mcp-ckan/pkg/portal"
	"github.com/txn2/mcp-ckan/pkg/render"
)

const (
	defaultListLimit        = 100
	searchFacetLimit        = 500
	descriptionPreviewChars = 200
	datasetPreviewLimit     = 20
)

// collection describes the organization and group variants of the
// list/show/search tools. CKAN serves both through the same shapes.
type collection struct {
	kind       portal.Kind
	noun       string // "organization"
	title      string // "Organization"
	plural     string // "Organizations"
	facetField string
	listTool   string
	showTool   string
	searchTool string
}

var (
	organizations = collection{
		kind:       portal.KindOrganization,
		noun:       "organization",
		title:      "Organization",
		plural:     "Organizations",
		facetField: facets.FieldOrganization,
		listTool:   toolOrganizationList,
		showTool:   toolOrganizationShow,
		searchTool: toolOrganizationSearch,
	}
	groups = collection{
		kind:       portal.KindGroup,
		noun:       "group",
		title:      "Group",
		plural:     "Groups",
		facetField: facets.FieldGroups,
		listTool:   toolGroupList,
		showTool:   toolGroupShow,
		searchTool: toolGroupSearch,
	}
)

type listInput struct {
	ServerURL      string `json:"server_url" jsonschema:"Base URL of the CKAN server"`
	AllFields      bool   `json:"all_fields,omitempty" jsonschema:"Return full objects instead of names"`
	Sort           string `json:"sort,omitempty" jsonschema:"Sort order (default: name asc)"`
	Limit          *int   `json:"limit,omitempty" jsonschema:"Maximum entries (default 100). 0 returns only the count of entries with datasets"`
	Offset         int    `json:"offset,omitempty" jsonschema:"Pagination offset"`
	ResponseFormat string `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

type collectionShowInput struct {
	ServerURL       string `json:"server_url" jsonschema:"Base URL of the CKAN server"`
	ID              string `json:"id" jsonschema:"ID or name"`
	IncludeDatasets *bool  `json:"include_datasets,omitempty" jsonschema:"Include the datasets (default true)"`
	ResponseFormat  string `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

type collectionSearchInput struct {
	ServerURL      string `json:"server_url" jsonschema:"Base URL of the CKAN server"`
	Pattern        string `json:"pattern" jsonschema:"Search pattern (wildcards added automatically)"`
	ResponseFormat string `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

// searchEntry is one row of a collection search in JSON output.
type searchEntry struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name,omitempty"`
	DatasetCount int    `json:"dataset_count"`
	URL          string `json:"url"`
}

func (t *Toolkit) registerCollectionTools(s *mcp.Server, c collection) {
	mcp.AddTool(s, t.tool(c.listTool, "List CKAN "+c.plural,
		fmt.Sprintf("List %ss on a CKAN server. With limit 0 only the number of %ss that have datasets is returned.", c.noun, c.noun), false),
		func(ctx context.Context, _ *mcp.CallToolRequest, input listInput) (*mcp.CallToolResult, any, error) {
			return t.handleList(ctx, c, input)
		})

	mcp.AddTool(s, t.tool(c.showTool, "Show CKAN "+c.title+" Details",
		fmt.Sprintf("Get details of a %s, optionally with its datasets.", c.noun), false),
		func(ctx context.Context, _ *mcp.CallToolRequest, input collectionShowInput) (*mcp.CallToolResult, any, error) {
			return t.handleShow(ctx, c, input)
		})

	mcp.AddTool(s, t.tool(c.searchTool, "Search CKAN "+c.plural+" by Name",
		fmt.Sprintf("Find %ss whose name matches a pattern, with dataset counts. "+
			"Wildcards are added around the pattern automatically.", c.noun), true),
		func(ctx context.Context, _ *mcp.CallToolRequest, input collectionSearchInput) (*mcp.CallToolResult, any, error) {
			return t.handleSearch(ctx, c, input)
		})
}

func (t *Toolkit) handleList(ctx context.Context, c collection, input listInput) (*mcp.CallToolResult, any, error) {
	if err := checkCommon(input.ServerURL, input.ResponseFormat); err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	limit := intOr(input.Limit, defaultListLimit)
	if limit < 0 || input.Offset < 0 {
		return errorResult("limit and offset must not be negative"), nil, nil
	}
	errPrefix := fmt.Sprintf("Error listing %ss: ", c.noun)

	if limit == 0 {
		return t.countCollection(ctx, c, input, errPrefix)
	}

	params := url.Values{}
	params.Set("all_fields", strconv.FormatBool(input.AllFields))
	params.Set("sort", orDefault(input.Sort, "name asc"))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(input.Offset))

	raw, err := t.client.ActionRaw(ctx, input.ServerURL, c.noun+"_list", params)
	if err != nil {
		return failure(errPrefix, err)
	}

	var names []string
	var entries []ckanapi.Organization
	if input.AllFields {
		err = json.Unmarshal(raw, &entries)
	} else {
		err = json.Unmarshal(raw, &names)
	}
	if err != nil {
		return failure(errPrefix, err)
	}

	if wantJSON(input.ResponseFormat) {
		return jsonResult(map[string]any{
			"count":      max(len(names), len(entries)),
			c.noun + "s": raw,
		})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# CKAN %s\n\n", c.plural)
	fmt.Fprintf(&sb, "**Server**: %s\n", input.ServerURL)
	fmt.Fprintf(&sb, "**Total**: %d\n\n", max(len(names), len(entries)))
	for _, e := range entries {
		fmt.Fprintf(&sb, "## %s\n\n", orDefault(e.Title, e.Name))
		fmt.Fprintf(&sb, "- **ID**: `%s`\n", e.ID)
		fmt.Fprintf(&sb, "- **Name**: `%s`\n", e.Name)
		if e.Description != "" {
			fmt.Fprintf(&sb, "- **Description**: %s\n", previewRunes(e.Description, descriptionPreviewChars))
		}
		fmt.Fprintf(&sb, "- **Datasets**: %d\n", e.PackageCount)
		fmt.Fprintf(&sb, "- **Created**: %s\n", render.FormatDate(e.Created))
		fmt.Fprintf(&sb, "- **Link**: %s\n\n", t.portals.ViewURL(input.ServerURL, c.kind, e.ID, e.Name))
	}
	if len(names) > 0 {
		lines := make([]string, len(names))
		for i, n := range names {
			lines[i] = "- " + n
		}
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteString("\n")
	}
	return textResult(sb.String()), nil, nil
}

// countCollection counts the entries that own at least one dataset, using an
// unbounded facet over all datasets.
func (t *Toolkit) countCollection(ctx context.Context, c collection, input listInput, errPrefix string) (*mcp.CallToolResult, any, error) {
	params := url.Values{}
	params.Set("rows", "0")
	params.Set("facet.field", jsonList([]string{c.facetField}))
	params.Set("facet.limit", "-1")

	raw, err := t.client.ActionRaw(ctx, input.ServerURL, "package_search", params)
	if err != nil {
		return failure(errPrefix, err)
	}
	count := len(facets.Normalize(raw, c.facetField))

	if wantJSON(input.ResponseFormat) {
		return jsonResult(map[string]int{"count": count})
	}
	return textResult(fmt.Sprintf("# CKAN %s Count\n\n**Server**: %s\n**Total %ss (with datasets)**: %d\n",
		c.plural, input.ServerURL, c.noun, count)), nil, nil
}

func (t *Toolkit) handleShow(ctx context.Context, c collection, input collectionShowInput) (*mcp.CallToolResult, any, error) {
	if err := checkShow(showInput{ServerURL: input.ServerURL, ID: input.ID, ResponseFormat: input.ResponseFormat}); err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}

	params := url.Values{}
	params.Set("id", input.ID)
	params.Set("include_datasets", strconv.FormatBool(boolOr(input.IncludeDatasets, true)))

	raw, err := t.client.ActionRaw(ctx, input.ServerURL, c.noun+"_show", params)
	if err != nil {
		return failure(fmt.Sprintf("Error fetching %s: ", c.noun), err)
	}
	if wantJSON(input.ResponseFormat) {
		return jsonResult(raw)
	}

	var e ckanapi.Organization
	if err := json.Unmarshal(raw, &e); err != nil {
		return failure(fmt.Sprintf("Error fetching %s: ", c.noun), err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s: %s\n\n", c.title, orDefault(e.Title, e.Name))
	fmt.Fprintf(&sb, "**Server**: %s\n", input.ServerURL)
	fmt.Fprintf(&sb, "**Link**: %s\n\n", t.portals.ViewURL(input.ServerURL, c.kind, e.ID, e.Name))

	sb.WriteString("## Details\n\n")
	fmt.Fprintf(&sb, "- **ID**: `%s`\n", e.ID)
	fmt.Fprintf(&sb, "- **Name**: `%s`\n", e.Name)
	fmt.Fprintf(&sb, "- **Datasets**: %d\n", e.PackageCount)
	fmt.Fprintf(&sb, "- **Created**: %s\n", render.FormatDate(e.Created))
	fmt.Fprintf(&sb, "- **State**: %s\n\n", e.State)

	if e.Description != "" {
		fmt.Fprintf(&sb, "## Description\n\n%s\n\n", e.Description)
	}

	if len(e.Packages) > 0 {
		fmt.Fprintf(&sb, "## Datasets (%d)\n\n", len(e.Packages))
		for i, ds := range e.Packages {
			if i == datasetPreviewLimit {
				break
			}
			fmt.Fprintf(&sb, "- **%s** (`%s`)\n", orDefault(ds.Title, ds.Name), ds.Name)
		}
		if len(e.Packages) > datasetPreviewLimit {
			fmt.Fprintf(&sb, "\n... and %d more datasets\n", len(e.Packages)-datasetPreviewLimit)
		}
		sb.WriteString("\n")
	}

	return textResult(sb.String()), nil, nil
}

func (t *Toolkit) handleSearch(ctx context.Context, c collection, input collectionSearchInput) (*mcp.CallToolResult, any, error) {
	if err := checkCommon(input.ServerURL, input.ResponseFormat); err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return errorResult("pattern is required"), nil, nil
	}

	params := url.Values{}
	params.Set("q", fmt.Sprintf("%s:*%s*", c.facetField, input.Pattern))
	params.Set("rows", "0")
	params.Set("facet.field", jsonList([]string{c.facetField}))
	params.Set("facet.limit", strconv.Itoa(searchFacetLimit))

	var result ckanapi.SearchResult
	raw, err := t.client.ActionRaw(ctx, input.ServerURL, "package_search", params)
	if err == nil {
		err = json.Unmarshal(raw, &result)
	}
	if err != nil {
		return failure(fmt.Sprintf("Error searching %ss: ", c.noun), err)
	}

	items := facets.Normalize(raw, c.facetField)

	if wantJSON(input.ResponseFormat) {
		entries := make([]searchEntry, len(items))
		for i, it := range items {
			entries[i] = searchEntry{
				Name:         it.Name,
				DisplayName:  it.DisplayName,
				DatasetCount: it.Count,
				URL:          t.portals.ViewURL(input.ServerURL, c.kind, "", it.Name),
			}
		}
		return jsonResult(map[string]any{
			"count":          len(items),
			"total_datasets": result.Count,
			c.noun + "s":     entries,
		})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# CKAN %s Search Results\n\n", c.title)
	fmt.Fprintf(&sb, "**Server**: %s\n", input.ServerURL)
	fmt.Fprintf(&sb, "**Pattern**: %q\n", input.Pattern)
	fmt.Fprintf(&sb, "**%s Found**: %d\n", c.plural, len(items))
	fmt.Fprintf(&sb, "**Total Datasets**: %d\n\n", result.Count)

	if len(items) == 0 {
		fmt.Fprintf(&sb, "No %ss found matching pattern %q.\n", c.noun, input.Pattern)
		return textResult(sb.String()), nil, nil
	}

	fmt.Fprintf(&sb, "## Matching %s\n\n", c.plural)
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{
			render.Cell(it.Label(), 0),
			strconv.Itoa(it.Count),
			t.portals.ViewURL(input.ServerURL, c.kind, "", it.Name),
		}
	}
	sb.WriteString(render.Table([]string{c.title, "Datasets", "Link"}, rows))

	return textResult(sb.String()), nil, nil
}

// previewRunes returns the first n characters of s.
func previewRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
