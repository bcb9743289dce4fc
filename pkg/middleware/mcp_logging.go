package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// sessionLogger abstracts the ServerSession.Log method for testability.
type sessionLogger interface {
	Log(ctx context.Context, params *mcp.LoggingMessageParams) error
}

// ClientLoggingConfig configures server-to-client logging middleware.
type ClientLoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Logger  string `yaml:"logger"`
}

// MCPClientLoggingMiddleware creates MCP protocol-level middleware that sends
// a log notification to the client after each tool call, naming the CKAN
// tool, its outcome and its duration.
//
// It must run inside MCPToolCallMiddleware, which populates the CallContext.
// The client only receives the log if it has previously called
// logging/setLevel; otherwise ServerSession.Log() is a silent no-op.
func MCPClientLoggingMiddleware(cfg ClientLoggingConfig) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		if !cfg.Enabled {
			return next
		}

		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != methodToolsCall {
				return next(ctx, method, req)
			}

			result, err := next(ctx, method, req)

			sendClientLog(ctx, cfg.Logger, result, err)

			return result, err
		}
	}
}

// sendClientLog sends a log notification to the client when a server
// session is available. All errors are ignored to keep logging best-effort.
func sendClientLog(ctx context.Context, logger string, result mcp.Result, handlerErr error) {
	cc := GetCallContext(ctx)
	if cc == nil {
		return
	}

	session := GetServerSession(ctx)
	if session == nil {
		return
	}

	ok, _ := callOutcome(result, handlerErr)
	emitClientLog(ctx, session, logger, cc, ok)
}

// emitClientLog builds and sends a log notification to the client.
func emitClientLog(ctx context.Context, sl sessionLogger, logger string, cc *CallContext, ok bool) {
	if logger == "" {
		logger = "mcp-ckan"
	}

	level := mcp.LoggingLevel("info")
	status := "completed"
	if !ok {
		level = "warning"
		status = "failed"
	}

	msg := fmt.Sprintf("%s %s (%dms)", cc.ToolName, status, cc.Duration.Milliseconds())

	if err := sl.Log(ctx, &mcp.LoggingMessageParams{
		Level:  level,
		Logger: logger,
		Data:   msg,
	}); err != nil {
		slog.Debug("client logging: failed to send log notification", "error", err)
	}
}
