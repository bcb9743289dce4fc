package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const methodToolsCall = "tools/call"

// ToolkitLookup resolves the toolkit that owns a tool.
// *registry.Registry satisfies it.
type ToolkitLookup interface {
	GetToolkitForTool(toolName string) (kind, name string, found bool)
}

// MCPToolCallMiddleware creates MCP protocol-level middleware that
// intercepts tools/call requests.
//
// For every tool call it:
// 1. Extracts the tool name from the request
// 2. Creates a CallContext with a fresh request id and the owning toolkit
// 3. Runs the handler
// 4. Records the outcome in the logs and in Prometheus
func MCPToolCallMiddleware(lookup ToolkitLookup, transport string) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != methodToolsCall {
				return next(ctx, method, req)
			}

			toolName, err := extractToolName(req)
			if err != nil {
				return createErrorResult(fmt.Sprintf("invalid request: %v", err)), nil
			}

			cc := NewCallContext(uuid.NewString())
			cc.ToolName = toolName
			cc.Transport = transport
			if lookup != nil {
				if kind, name, ok := lookup.GetToolkitForTool(toolName); ok {
					cc.ToolkitKind = kind
					cc.ToolkitName = name
				}
			}
			if ss, ok := req.GetSession().(*mcp.ServerSession); ok && ss != nil {
				cc.SessionID = ss.ID()
				ctx = WithServerSession(ctx, ss)
			}
			ctx = WithCallContext(ctx, cc)

			result, err := next(ctx, method, req)

			cc.Duration = time.Since(cc.StartTime)
			cc.Success, cc.ErrorMessage = callOutcome(result, err)
			recordToolCall(cc)
			logToolCall(cc)

			return result, err
		}
	}
}

// callOutcome derives success and error text from a handler result.
func callOutcome(result mcp.Result, err error) (bool, string) {
	if err != nil {
		return false, err.Error()
	}
	tr, ok := result.(*mcp.CallToolResult)
	if !ok || tr == nil || !tr.IsError {
		return true, ""
	}
	for _, c := range tr.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			return false, text.Text
		}
	}
	return false, "tool returned an error"
}

func logToolCall(cc *CallContext) {
	attrs := []any{
		"tool", cc.ToolName,
		"toolkit", cc.ToolkitKind,
		"request_id", cc.RequestID,
		"transport", cc.Transport,
		"duration_ms", cc.Duration.Milliseconds(),
	}
	if cc.Success {
		slog.Info("tool call completed", attrs...)
		return
	}
	slog.Warn("tool call failed", append(attrs, "error", cc.ErrorMessage)...)
}

// extractToolName extracts the tool name from a tools/call request.
func extractToolName(req mcp.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("missing params")
	}
	params := req.GetParams()
	if params == nil {
		return "", fmt.Errorf("missing params")
	}

	callParams, ok := params.(*mcp.CallToolParamsRaw)
	if !ok {
		return "", fmt.Errorf("unexpected params type: %T", params)
	}

	// Type assertion can succeed with a nil pointer.
	if callParams == nil {
		return "", fmt.Errorf("missing params")
	}

	if callParams.Name == "" {
		return "", fmt.Errorf("missing tool name")
	}

	return callParams.Name, nil
}

// createErrorResult creates an MCP error result for a malformed call.
func createErrorResult(errMsg string) mcp.Result {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: errMsg},
		},
	}
}
