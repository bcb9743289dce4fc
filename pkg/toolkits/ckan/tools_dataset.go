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
	"github.com/txn2/mcp-ckan/pkg/render"
)

const (
	defaultSearchRows  = 10
	maxSearchRows      = 1000
	defaultFacetLimit  = 50
	facetDisplayLimit  = 10
	tagDisplayLimit    = 5
	extrasDisplayLimit = 20
)

type packageSearchInput struct {
	ServerURL      string   `json:"server_url" jsonschema:"Base URL of the CKAN server"`
	Q              string   `json:"q,omitempty" jsonschema:"Solr search query, defaults to *:*"`
	FQ             string   `json:"fq,omitempty" jsonschema:"Solr filter query, e.g. organization:regione-toscana"`
	Rows           *int     `json:"rows,omitempty" jsonschema:"Number of results to return (default 10, max 1000)"`
	Start          int      `json:"start,omitempty" jsonschema:"Offset of the first result"`
	Sort           string   `json:"sort,omitempty" jsonschema:"Sort order, e.g. metadata_modified desc"`
	FacetField     []string `json:"facet_field,omitempty" jsonschema:"Fields to facet on, e.g. organization, tags, res_format"`
	FacetLimit     *int     `json:"facet_limit,omitempty" jsonschema:"Maximum values per facet (default 50)"`
	ResponseFormat string   `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

type showInput struct {
	ServerURL      string `json:"server_url" jsonschema:"Base URL of the CKAN server"`
	ID             string `json:"id" jsonschema:"ID or name"`
	ResponseFormat string `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

func (t *Toolkit) registerDatasetTools(s *mcp.Server) {
	mcp.AddTool(s, t.tool(toolPackageSearch, "Search CKAN Datasets",
		"Search datasets on a CKAN server using Solr syntax. Supports filter queries, sorting, "+
			"pagination and facets. Results include a link to each dataset's portal page.", true),
		t.handlePackageSearch)

	mcp.AddTool(s, t.tool(toolPackageShow, "Show CKAN Dataset Details",
		"Get complete metadata for a dataset: description, organization, license, tags, groups and resources.", false),
		t.handlePackageShow)

	mcp.AddTool(s, t.tool(toolResourceShow, "Show CKAN Resource Details",
		"Get metadata for a single resource (file or API) including format, size and DataStore availability.", false),
		t.handleResourceShow)
}

func (t *Toolkit) handlePackageSearch(ctx context.Context, _ *mcp.CallToolRequest, input packageSearchInput) (*mcp.CallToolResult, any, error) {
	if err := checkCommon(input.ServerURL, input.ResponseFormat); err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	rows := intOr(input.Rows, defaultSearchRows)
	if rows < 0 || rows > maxSearchRows {
		return errorResult(fmt.Sprintf("rows must be between 0 and %d", maxSearchRows)), nil, nil
	}
	if input.Start < 0 {
		return errorResult("start must not be negative"), nil, nil
	}

	q := orDefault(input.Q, "*:*")
	params := url.Values{}
	params.Set("q", q)
	params.Set("rows", strconv.Itoa(rows))
	params.Set("start", strconv.Itoa(input.Start))
	if input.FQ != "" {
		params.Set("fq", input.FQ)
	}
	if input.Sort != "" {
		params.Set("sort", input.Sort)
	}
	if len(input.FacetField) > 0 {
		params.Set("facet.field", jsonList(input.FacetField))
		params.Set("facet.limit", strconv.Itoa(intOr(input.FacetLimit, defaultFacetLimit)))
	}

	raw, err := t.client.ActionRaw(ctx, input.ServerURL, "package_search", params)
	if err != nil {
		return failure("Error searching datasets: ", err)
	}
	if wantJSON(input.ResponseFormat) {
		return jsonResult(raw)
	}

	var result ckanapi.SearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return failure("Error searching datasets: ", err)
	}

	var sb strings.Builder
	sb.WriteString("# CKAN Package Search Results\n\n")
	fmt.Fprintf(&sb, "**Server**: %s\n", input.ServerURL)
	fmt.Fprintf(&sb, "**Query**: %s\n", q)
	if input.FQ != "" {
		fmt.Fprintf(&sb, "**Filter**: %s\n", input.FQ)
	}
	fmt.Fprintf(&sb, "**Total Results**: %d\n", result.Count)
	fmt.Fprintf(&sb, "**Showing**: %d results (from %d)\n\n", len(result.Results), input.Start)

	if len(input.FacetField) > 0 {
		sb.WriteString("## Facets\n\n")
		for _, field := range input.FacetField {
			writeFacet(&sb, field, facets.Normalize(raw, field))
		}
	}

	if len(result.Results) > 0 {
		sb.WriteString("## Datasets\n\n")
		for i, ds := range result.Results {
			t.writeDatasetSummary(&sb, input.ServerURL, input.Start+i+1, ds)
		}
	}

	if next := input.Start + len(result.Results); result.Count > next && len(result.Results) > 0 {
		fmt.Fprintf(&sb, "**More results available**: Use `start: %d` for next page.\n", next)
	}

	return textResult(sb.String()), nil, nil
}

func writeFacet(sb *strings.Builder, field string, items []facets.Item) {
	fmt.Fprintf(sb, "### %s\n\n", field)
	if len(items) == 0 {
		sb.WriteString("No values.\n\n")
		return
	}
	sorted := append([]facets.Item(nil), items...)
	facets.SortByCount(sorted)
	for _, it := range facets.Limit(sorted, facetDisplayLimit) {
		fmt.Fprintf(sb, "- **%s**: %d\n", it.Label(), it.Count)
	}
	if len(sorted) > facetDisplayLimit {
		fmt.Fprintf(sb, "- ... and %d more\n", len(sorted)-facetDisplayLimit)
	}
	sb.WriteString("\n")
}

func (t *Toolkit) writeDatasetSummary(sb *strings.Builder, server string, n int, ds ckanapi.Dataset) {
	fmt.Fprintf(sb, "### %d. %s\n\n", n, orDefault(ds.Title, ds.Name))
	fmt.Fprintf(sb, "- **ID**: `%s`\n", ds.ID)
	fmt.Fprintf(sb, "- **Name**: `%s`\n", ds.Name)
	if ds.Organization != nil {
		fmt.Fprintf(sb, "- **Organization**: %s\n", ds.Organization.Label())
	}
	if len(ds.Tags) > 0 {
		names := make([]string, 0, tagDisplayLimit)
		for _, tag := range ds.Tags {
			if len(names) == tagDisplayLimit {
				break
			}
			names = append(names, tag.Name)
		}
		more := ""
		if len(ds.Tags) > tagDisplayLimit {
			more = fmt.Sprintf(" (+%d more)", len(ds.Tags)-tagDisplayLimit)
		}
		fmt.Fprintf(sb, "- **Tags**: %s%s\n", strings.Join(names, ", "), more)
	}
	fmt.Fprintf(sb, "- **Resources**: %d\n", len(ds.Resources))
	if ds.MetadataModified != "" {
		fmt.Fprintf(sb, "- **Modified**: %s\n", render.FormatDate(ds.MetadataModified))
	}
	fmt.Fprintf(sb, "- **Link**: %s\n\n", t.portals.DatasetURL(server, ds.ID, ds.Name))
}

func (t *Toolkit) handlePackageShow(ctx context.Context, _ *mcp.CallToolRequest, input showInput) (*mcp.CallToolResult, any, error) {
	if err := checkShow(input); err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}

	raw, err := t.client.ActionRaw(ctx, input.ServerURL, "package_show", url.Values{"id": {input.ID}})
	if err != nil {
		return failure("Error fetching dataset: ", err)
	}
	if wantJSON(input.ResponseFormat) {
		return jsonResult(raw)
	}

	var ds ckanapi.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return failure("Error fetching dataset: ", err)
	}
	return textResult(t.renderDataset(input.ServerURL, ds)), nil, nil
}

func (t *Toolkit) renderDataset(server string, ds ckanapi.Dataset) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Dataset: %s\n\n", orDefault(ds.Title, ds.Name))
	fmt.Fprintf(&sb, "**Server**: %s\n", server)
	fmt.Fprintf(&sb, "**Link**: %s\n\n", t.portals.DatasetURL(server, ds.ID, ds.Name))

	sb.WriteString("## Basic Information\n\n")
	fmt.Fprintf(&sb, "- **ID**: `%s`\n", ds.ID)
	fmt.Fprintf(&sb, "- **Name**: `%s`\n", ds.Name)
	if ds.Identifier != "" {
		fmt.Fprintf(&sb, "- **Identifier**: `%s`\n", ds.Identifier)
	}
	if ds.Organization != nil {
		fmt.Fprintf(&sb, "- **Organization**: %s (%s)\n", ds.Organization.Label(),
			t.portals.OrganizationURL(server, ds.Organization.ID, ds.Organization.Name))
	}
	fmt.Fprintf(&sb, "- **License**: %s\n", orDefault(ds.LicenseTitle, orDefault(ds.LicenseID, "Not specified")))
	if ds.Author != "" {
		fmt.Fprintf(&sb, "- **Author**: %s\n", ds.Author)
	}
	if ds.Maintainer != "" {
		fmt.Fprintf(&sb, "- **Maintainer**: %s\n", ds.Maintainer)
	}
	if ds.MetadataCreated != "" {
		fmt.Fprintf(&sb, "- **Created**: %s\n", render.FormatDate(ds.MetadataCreated))
	}
	if ds.MetadataModified != "" {
		fmt.Fprintf(&sb, "- **Modified**: %s\n", render.FormatDate(ds.MetadataModified))
	}
	if ds.State != "" {
		fmt.Fprintf(&sb, "- **State**: %s\n", ds.State)
	}
	sb.WriteString("\n")

	if ds.Notes != "" {
		fmt.Fprintf(&sb, "## Description\n\n%s\n\n", ds.Notes)
	}

	if len(ds.Tags) > 0 {
		names := make([]string, len(ds.Tags))
		for i, tag := range ds.Tags {
			names[i] = tag.Name
		}
		fmt.Fprintf(&sb, "## Tags\n\n%s\n\n", strings.Join(names, ", "))
	}

	if len(ds.Groups) > 0 {
		sb.WriteString("## Groups\n\n")
		for _, g := range ds.Groups {
			fmt.Fprintf(&sb, "- %s (%s)\n", g.Label(), t.portals.GroupURL(server, g.ID, g.Name))
		}
		sb.WriteString("\n")
	}

	if len(ds.Resources) > 0 {
		fmt.Fprintf(&sb, "## Resources (%d)\n\n", len(ds.Resources))
		for i, r := range ds.Resources {
			fmt.Fprintf(&sb, "### %d. %s\n\n", i+1, orDefault(r.Name, "Unnamed resource"))
			fmt.Fprintf(&sb, "- **ID**: `%s`\n", r.ID)
			fmt.Fprintf(&sb, "- **Format**: %s\n", orDefault(r.Format, "Unknown"))
			if n, ok := r.SizeBytes(); ok {
				fmt.Fprintf(&sb, "- **Size**: %s\n", render.FormatBytes(n))
			}
			if r.URL != "" {
				fmt.Fprintf(&sb, "- **URL**: %s\n", r.URL)
			}
			if r.DatastoreActive {
				sb.WriteString("- **DataStore**: ✓ Available\n")
			}
			sb.WriteString("\n")
		}
	}

	if len(ds.Extras) > 0 {
		sb.WriteString("## Additional Metadata\n\n")
		for i, e := range ds.Extras {
			if i == extrasDisplayLimit {
				fmt.Fprintf(&sb, "- ... and %d more\n", len(ds.Extras)-extrasDisplayLimit)
				break
			}
			fmt.Fprintf(&sb, "- **%s**: %s\n", e.Key, render.Cell(e.Value, 200))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func (t *Toolkit) handleResourceShow(ctx context.Context, _ *mcp.CallToolRequest, input showInput) (*mcp.CallToolResult, any, error) {
	if err := checkShow(input); err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}

	raw, err := t.client.ActionRaw(ctx, input.ServerURL, "resource_show", url.Values{"id": {input.ID}})
	if err != nil {
		return failure("Error fetching resource: ", err)
	}
	if wantJSON(input.ResponseFormat) {
		return jsonResult(raw)
	}

	var r ckanapi.Resource
	if err := json.Unmarshal(raw, &r); err != nil {
		return failure("Error fetching resource: ", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Resource: %s\n\n", orDefault(r.Name, r.ID))
	fmt.Fprintf(&sb, "**Server**: %s\n\n", input.ServerURL)
	sb.WriteString("## Details\n\n")
	fmt.Fprintf(&sb, "- **ID**: `%s`\n", r.ID)
	if r.PackageID != "" {
		fmt.Fprintf(&sb, "- **Dataset**: `%s`\n", r.PackageID)
	}
	fmt.Fprintf(&sb, "- **Format**: %s\n", orDefault(r.Format, "Unknown"))
	if r.Mimetype != "" {
		fmt.Fprintf(&sb, "- **Media Type**: %s\n", r.Mimetype)
	}
	if n, ok := r.SizeBytes(); ok {
		fmt.Fprintf(&sb, "- **Size**: %s\n", render.FormatBytes(n))
	}
	if r.Created != "" {
		fmt.Fprintf(&sb, "- **Created**: %s\n", render.FormatDate(r.Created))
	}
	if r.LastModified != "" {
		fmt.Fprintf(&sb, "- **Last Modified**: %s\n", render.FormatDate(r.LastModified))
	}
	fmt.Fprintf(&sb, "- **DataStore**: %s\n", render.Check(r.DatastoreActive))
	if r.URL != "" {
		fmt.Fprintf(&sb, "- **URL**: %s\n", r.URL)
	}
	if r.Description != "" {
		fmt.Fprintf(&sb, "\n## Description\n\n%s\n", r.Description)
	}
	if r.DatastoreActive {
		fmt.Fprintf(&sb, "\nQuery the data with `%s` using `resource_id: %s`.\n", toolDatastoreSearch, r.ID)
	}

	return textResult(sb.String()), nil, nil
}

func checkShow(input showInput) error {
	if err := checkCommon(input.ServerURL, input.ResponseFormat); err != nil {
		return err
	}
	if strings.TrimSpace(input.ID) == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}
