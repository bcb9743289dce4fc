package ckan

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	ckanapi "github.com/txn2/mcp-ckan/pkg/ckan"
)

type statusShowInput struct {
	ServerURL      string `json:"server_url" jsonschema:"Base URL of the CKAN server"`
	ResponseFormat string `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

func (t *Toolkit) registerStatusTools(s *mcp.Server) {
	mcp.AddTool(s, t.tool(toolStatusShow, "Check CKAN Server Status",
		"Check if a CKAN server is available and get version information. "+
			"Useful to verify server accessibility before making other requests.", false),
		t.handleStatusShow)
}

func (t *Toolkit) handleStatusShow(ctx context.Context, _ *mcp.CallToolRequest, input statusShowInput) (*mcp.CallToolResult, any, error) {
	if err := checkCommon(input.ServerURL, input.ResponseFormat); err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}

	var status ckanapi.Status
	if err := t.client.Action(ctx, input.ServerURL, "status_show", url.Values{}, &status); err != nil {
		return failure("Server appears to be offline or not a valid CKAN instance:\n", err)
	}

	if wantJSON(input.ResponseFormat) {
		return jsonResult(status)
	}

	var sb strings.Builder
	sb.WriteString("# CKAN Server Status\n\n")
	fmt.Fprintf(&sb, "**Server**: %s\n", input.ServerURL)
	sb.WriteString("**Status**: ✅ Online\n")
	fmt.Fprintf(&sb, "**CKAN Version**: %s\n", orDefault(status.CKANVersion, "Unknown"))
	fmt.Fprintf(&sb, "**Site Title**: %s\n", orDefault(status.SiteTitle, "N/A"))
	fmt.Fprintf(&sb, "**Site URL**: %s\n", orDefault(status.SiteURL, "N/A"))
	if len(status.Extensions) > 0 {
		fmt.Fprintf(&sb, "**Extensions**: %s\n", strings.Join(status.Extensions, ", "))
	}
	return textResult(sb.String()), nil, nil
}
