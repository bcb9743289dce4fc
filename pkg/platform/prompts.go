package platform

import (
	"context"
	"log/slog"
	"slices"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-ckan/pkg/prompts"
)

// registerPlatformPrompts registers the static prompts declared under
// server.prompts. Names taken by the built-in CKAN prompts are skipped.
func (p *Platform) registerPlatformPrompts() {
	builtin := prompts.Names()
	for _, promptCfg := range p.config.Server.Prompts {
		if slices.Contains(builtin, promptCfg.Name) {
			slog.Warn("config prompt shadows a built-in prompt, skipping", "prompt", promptCfg.Name)
			continue
		}
		p.registerPrompt(promptCfg)
	}
}

// registerPrompt registers a single static prompt with the MCP server.
func (p *Platform) registerPrompt(cfg PromptConfig) {
	content := cfg.Content

	p.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        cfg.Name,
		Description: cfg.Description,
	}, func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: cfg.Description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: content},
				},
			},
		}, nil
	})
}
