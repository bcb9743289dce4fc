package ckan

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-ckan/pkg/render"
)

// Response formats accepted by every tool.
const (
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

// errorResult creates an error result.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// textResult creates a text result truncated to the response limit.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: render.Truncate(text, render.CharacterLimit)}},
	}
}

// jsonResult creates an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("failed to marshal result: " + err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	return textResult(string(data)), nil, nil
}

// failure reports an upstream error as a tool error.
func failure(prefix string, err error) (*mcp.CallToolResult, any, error) {
	return errorResult(prefix + err.Error()), nil, nil
}

// checkCommon validates the arguments every tool shares.
func checkCommon(serverURL, format string) error {
	if serverURL == "" {
		return fmt.Errorf("server_url is required")
	}
	u, err := url.Parse(serverURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url must be an http or https URL: %q", serverURL)
	}
	switch strings.ToLower(format) {
	case "", formatMarkdown, formatJSON:
		return nil
	default:
		return fmt.Errorf("response_format must be %q or %q", formatMarkdown, formatJSON)
	}
}

func wantJSON(format string) bool {
	return strings.EqualFold(format, formatJSON)
}

// intOr returns *p, or def when p is nil.
func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// jsonList encodes a list as a JSON array parameter, as CKAN expects for
// facet.field.
func jsonList(items []string) string {
	data, _ := json.Marshal(items)
	return string(data)
}
