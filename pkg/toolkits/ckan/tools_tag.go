package ckan

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-ckan/pkg/facets"
)

const (
	defaultTagLimit = 100
	maxTagLimit     = 1000
)

type tagListInput struct {
	ServerURL      string `json:"server_url" jsonschema:"Base URL of the CKAN server"`
	Q              string `json:"q,omitempty" jsonschema:"Dataset query scoping the tags (default *:*)"`
	FQ             string `json:"fq,omitempty" jsonschema:"Dataset filter query"`
	TagQuery       string `json:"tag_query,omitempty" jsonschema:"Case-insensitive substring the tag name must contain"`
	Limit          *int   `json:"limit,omitempty" jsonschema:"Maximum tags to return (1-1000, default 100)"`
	ResponseFormat string `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

func (t *Toolkit) registerTagTools(s *mcp.Server) {
	mcp.AddTool(s, t.tool(toolTagList, "List CKAN Tags",
		"List the tags used by datasets matching a query, ordered by dataset count. "+
			"Use tag_query to keep only tags containing a substring.", true),
		t.handleTagList)
}

func (t *Toolkit) handleTagList(ctx context.Context, _ *mcp.CallToolRequest, input tagListInput) (*mcp.CallToolResult, any, error) {
	if err := checkCommon(input.ServerURL, input.ResponseFormat); err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	limit := intOr(input.Limit, defaultTagLimit)
	if limit < 1 || limit > maxTagLimit {
		return errorResult(fmt.Sprintf("limit must be between 1 and %d", maxTagLimit)), nil, nil
	}

	q := orDefault(input.Q, "*:*")
	params := url.Values{}
	params.Set("q", q)
	params.Set("rows", "0")
	params.Set("facet.field", jsonList([]string{facets.FieldTags}))
	params.Set("facet.limit", strconv.Itoa(limit))
	if input.FQ != "" {
		params.Set("fq", input.FQ)
	}

	raw, err := t.client.ActionRaw(ctx, input.ServerURL, "package_search", params)
	if err != nil {
		return failure("Error listing tags: ", err)
	}

	tags := facets.TagListing(facets.Normalize(raw, facets.FieldTags), input.TagQuery, limit)

	if wantJSON(input.ResponseFormat) {
		return jsonResult(map[string]any{"count": len(tags), "tags": tags})
	}

	var sb strings.Builder
	sb.WriteString("# CKAN Tags\n\n")
	fmt.Fprintf(&sb, "**Server**: %s\n", input.ServerURL)
	fmt.Fprintf(&sb, "**Query**: %s\n", q)
	if input.FQ != "" {
		fmt.Fprintf(&sb, "**Filter**: %s\n", input.FQ)
	}
	if input.TagQuery != "" {
		fmt.Fprintf(&sb, "**Tag Query**: %s\n", input.TagQuery)
	}
	fmt.Fprintf(&sb, "**Count**: %d\n\n", len(tags))

	if len(tags) == 0 {
		sb.WriteString("No tags found.\n")
	}
	for _, tag := range tags {
		fmt.Fprintf(&sb, "- **%s**: %d\n", tag.Name, tag.Count)
	}
	return textResult(sb.String()), nil, nil
}
