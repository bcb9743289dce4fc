// Package prompts provides guided MCP prompts that walk a client through
// common CKAN exploration workflows.
package prompts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Prompt names.
const (
	ThemePromptName           = "ckan-search-by-theme"
	OrganizationPromptName    = "ckan-search-by-organization"
	FormatPromptName          = "ckan-search-by-format"
	RecentPromptName          = "ckan-recent-datasets"
	DatasetAnalysisPromptName = "ckan-analyze-dataset"
)

// DefaultRows is used when the rows argument is missing or invalid.
const DefaultRows = 10

// Names returns the names of all guided prompts.
func Names() []string {
	return []string{
		ThemePromptName,
		OrganizationPromptName,
		FormatPromptName,
		RecentPromptName,
		DatasetAnalysisPromptName,
	}
}

var (
	argServerURL = &mcp.PromptArgument{Name: "server_url", Description: "Base URL of the CKAN server", Required: true}
	argRows      = &mcp.PromptArgument{Name: "rows", Description: "Max results to return (default 10)"}
)

type builder func(args map[string]string) string

// Register adds every guided prompt to s.
func Register(s *mcp.Server) {
	add(s, &mcp.Prompt{
		Name:        ThemePromptName,
		Title:       "Search datasets by theme",
		Description: "Guided prompt to discover a theme (group) and search datasets under it.",
		Arguments: []*mcp.PromptArgument{
			argServerURL,
			{Name: "theme", Description: "Theme or group name to search", Required: true},
			argRows,
		},
	}, func(a map[string]string) string {
		return BuildThemePromptText(a["server_url"], a["theme"], rows(a))
	})

	add(s, &mcp.Prompt{
		Name:        OrganizationPromptName,
		Title:       "Search datasets by organization",
		Description: "Guided prompt to discover a publisher and list its datasets.",
		Arguments: []*mcp.PromptArgument{
			argServerURL,
			{Name: "organization", Description: "Organization name or keyword", Required: true},
			argRows,
		},
	}, func(a map[string]string) string {
		return BuildOrganizationPromptText(a["server_url"], a["organization"], rows(a))
	})

	add(s, &mcp.Prompt{
		Name:        FormatPromptName,
		Title:       "Search datasets by format",
		Description: "Guided prompt to find datasets with a given resource format.",
		Arguments: []*mcp.PromptArgument{
			argServerURL,
			{Name: "format", Description: "Resource format, e.g. CSV or JSON", Required: true},
			argRows,
		},
	}, func(a map[string]string) string {
		return BuildFormatPromptText(a["server_url"], a["format"], rows(a))
	})

	add(s, &mcp.Prompt{
		Name:        RecentPromptName,
		Title:       "Find recently updated datasets",
		Description: "Guided prompt to list recently modified datasets on a CKAN portal.",
		Arguments:   []*mcp.PromptArgument{argServerURL, argRows},
	}, func(a map[string]string) string {
		return BuildRecentPromptText(a["server_url"], rows(a))
	})

	add(s, &mcp.Prompt{
		Name:        DatasetAnalysisPromptName,
		Title:       "Analyze a dataset",
		Description: "Guided prompt to inspect dataset metadata and explore DataStore tables.",
		Arguments: []*mcp.PromptArgument{
			argServerURL,
			{Name: "id", Description: "Dataset id or name (CKAN package id)", Required: true},
		},
	}, func(a map[string]string) string {
		return BuildDatasetAnalysisPromptText(a["server_url"], a["id"])
	})
}

func add(s *mcp.Server, p *mcp.Prompt, build builder) {
	s.AddPrompt(p, func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		for _, arg := range p.Arguments {
			if arg.Required && strings.TrimSpace(args[arg.Name]) == "" {
				return nil, fmt.Errorf("prompt %s: missing required argument %q", p.Name, arg.Name)
			}
		}
		return &mcp.GetPromptResult{
			Description: p.Description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: build(args)},
				},
			},
		}, nil
	})
}

// rows parses the rows argument, falling back to DefaultRows.
func rows(args map[string]string) int {
	n, err := strconv.Atoi(strings.TrimSpace(args["rows"]))
	if err != nil || n <= 0 {
		return DefaultRows
	}
	return n
}

// BuildThemePromptText guides a search for datasets under a theme.
func BuildThemePromptText(serverURL, theme string, rows int) string {
	return fmt.Sprintf(`# Guided search: datasets by theme

## Step 1: Find the matching group
Use `+"`ckan_group_search`"+` to find groups whose name matches the theme:

ckan_group_search({
  server_url: %[1]q,
  pattern: %[2]q
})

## Step 2: Search datasets in the group
Pick the group name from step 1 and filter datasets by it:

ckan_package_search({
  server_url: %[1]q,
  q: "*:*",
  fq: "groups:<group-name>",
  rows: %[3]d
})

If no group matches, fall back to a full-text search:

ckan_package_search({
  server_url: %[1]q,
  q: %[2]q,
  rows: %[3]d
})`, serverURL, theme, rows)
}

// BuildOrganizationPromptText guides a search for an organization's datasets.
func BuildOrganizationPromptText(serverURL, organization string, rows int) string {
	return fmt.Sprintf(`# Guided search: datasets by organization

## Step 1: Discover matching organizations
Use facets to find organizations matching the keyword:

ckan_package_search({
  server_url: %[1]q,
  q: "organization:*%[2]s*",
  rows: 0,
  facet_field: ["organization"],
  facet_limit: 50
})

## Step 2: List datasets of the organization
Pick the organization id from the facets and filter by it:

ckan_package_search({
  server_url: %[1]q,
  q: "*:*",
  fq: "organization:<org-id>",
  sort: "metadata_modified desc",
  rows: %[3]d
})`, serverURL, organization, rows)
}

// BuildFormatPromptText guides a search for datasets with a resource format.
func BuildFormatPromptText(serverURL, format string, rows int) string {
	return fmt.Sprintf(`# Guided search: datasets by format

Filter datasets whose resources use the requested format:

ckan_package_search({
  server_url: %[1]q,
  q: "*:*",
  fq: "res_format:%[2]s",
  sort: "metadata_modified desc",
  rows: %[3]d
})

Use `+"`ckan_package_show`"+` on a result to see the matching resources.`, serverURL, format, rows)
}

// BuildRecentPromptText guides a listing of recently modified datasets.
func BuildRecentPromptText(serverURL string, rows int) string {
	return fmt.Sprintf(`# Guided search: recently updated datasets

List the most recently modified datasets:

ckan_package_search({
  server_url: %[1]q,
  q: "*:*",
  sort: "metadata_modified desc",
  rows: %[2]d
})

To restrict to the last 30 days, add a date filter:

ckan_package_search({
  server_url: %[1]q,
  q: "*:*",
  fq: "metadata_modified:[NOW-30DAYS TO *]",
  sort: "metadata_modified desc",
  rows: %[2]d
})`, serverURL, rows)
}

// BuildDatasetAnalysisPromptText guides the inspection of one dataset.
func BuildDatasetAnalysisPromptText(serverURL, id string) string {
	return fmt.Sprintf(`# Guided analysis: dataset

## Step 1: Get dataset metadata
Use `+"`ckan_package_show`"+` to load full metadata and resources:

ckan_package_show({
  server_url: %[1]q,
  id: %[2]q
})

## Step 2: Inspect resources
For each resource, use `+"`ckan_resource_show`"+` to confirm fields like format, url, and datastore availability:

ckan_resource_show({
  server_url: %[1]q,
  id: "<resource-id>"
})

## Step 3: Explore DataStore (if available)
If a resource has `+"`datastore_active=true`"+`, use:

ckan_datastore_search({
  server_url: %[1]q,
  resource_id: "<resource-id>",
  limit: 10
})

For aggregates, use SQL:

ckan_datastore_search_sql({
  server_url: %[1]q,
  sql: "SELECT * FROM \"<resource-id>\" LIMIT 10"
})`, serverURL, id)
}
