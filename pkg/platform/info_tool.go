package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-ckan/pkg/prompts"
)

const infoToolName = "platform_info"

// Info describes this server deployment.
type Info struct {
	Name              string        `json:"name"`
	Version           string        `json:"version"`
	Description       string        `json:"description,omitempty"`
	Tags              []string      `json:"tags,omitempty"`
	AgentInstructions string        `json:"agent_instructions,omitempty"`
	Toolkits          []ToolkitInfo `json:"toolkits"`
	Prompts           []string      `json:"prompts"`
	Portals           int           `json:"portals"`
	Features          Features      `json:"features"`
}

// ToolkitInfo summarizes one registered toolkit.
type ToolkitInfo struct {
	Kind  string   `json:"kind"`
	Name  string   `json:"name"`
	Tools []string `json:"tools"`
}

// Features describes enabled optional features.
type Features struct {
	ResourceTemplates bool `json:"resource_templates"`
	Metrics           bool `json:"metrics"`
	ClientLogging     bool `json:"client_logging"`
}

// platformInfoInput is empty since this tool has no parameters.
type platformInfoInput struct{}

// registerInfoTool registers the platform_info tool with the MCP server.
func (p *Platform) registerInfoTool() {
	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        infoToolName,
		Title:       "Server Information",
		Description: p.buildInfoToolDescription(),
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint:   true,
			IdempotentHint: true,
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ platformInfoInput) (*mcp.CallToolResult, any, error) {
		return p.handleInfo(ctx, req)
	})
}

// buildInfoToolDescription builds a dynamic tool description based on configuration.
func (p *Platform) buildInfoToolDescription() string {
	base := "Get information about this CKAN MCP server"
	if p.config.Server.Name != "" && p.config.Server.Name != DefaultName {
		base = fmt.Sprintf("Get information about %s", p.config.Server.Name)
	}
	if len(p.config.Server.Tags) > 0 {
		base += fmt.Sprintf(" (%s)", strings.Join(p.config.Server.Tags, ", "))
	}
	return base + ", including available toolkits, prompts and known portals. " +
		"Call this first to understand which open data tools are available."
}

// info assembles the current deployment description.
func (p *Platform) info() Info {
	toolkits := p.toolkitRegistry.All()
	infos := make([]ToolkitInfo, 0, len(toolkits))
	for _, tk := range toolkits {
		infos = append(infos, ToolkitInfo{Kind: tk.Kind(), Name: tk.Name(), Tools: tk.Tools()})
	}

	promptNames := prompts.Names()
	for _, pc := range p.config.Server.Prompts {
		promptNames = append(promptNames, pc.Name)
	}

	return Info{
		Name:              p.config.Server.Name,
		Version:           p.config.Server.Version,
		Description:       p.config.Server.Description,
		Tags:              p.config.Server.Tags,
		AgentInstructions: p.config.Server.AgentInstructions,
		Toolkits:          infos,
		Prompts:           promptNames,
		Portals:           p.portals.Len(),
		Features: Features{
			ResourceTemplates: p.config.Resources.Enabled,
			Metrics:           p.config.Metrics.Enabled,
			ClientLogging:     p.config.ClientLogging.Enabled,
		},
	}
}

// handleInfo handles the platform_info tool call.
func (p *Platform) handleInfo(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(p.info(), "", "  ")
	if err != nil {
		return &mcp.CallToolResult{ //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError, not as Go errors
			Content: []mcp.Content{
				&mcp.TextContent{Text: "Error: " + err.Error()},
			},
			IsError: true,
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
