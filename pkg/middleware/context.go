// Package middleware provides MCP protocol-level middleware for tool calls.
package middleware

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// contextKey is a private type for context keys.
type contextKey int

const (
	callContextKey contextKey = iota
	serverSessionKey
)

// CallContext holds per-call context for a tools/call request.
type CallContext struct {
	// Request identification
	RequestID string
	SessionID string
	StartTime time.Time

	// Tool information
	ToolName    string
	ToolkitKind string
	ToolkitName string

	// Transport metadata
	Transport string // "stdio" or "http"

	// Results (populated after handler)
	Success      bool
	ErrorMessage string
	Duration     time.Duration
}

// NewCallContext creates a new call context.
func NewCallContext(requestID string) *CallContext {
	return &CallContext{
		RequestID: requestID,
		StartTime: time.Now(),
	}
}

// WithCallContext adds call context to the context.
func WithCallContext(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, callContextKey, cc)
}

// GetCallContext retrieves call context from the context.
func GetCallContext(ctx context.Context) *CallContext {
	if cc, ok := ctx.Value(callContextKey).(*CallContext); ok {
		return cc
	}
	return nil
}

// WithServerSession adds a ServerSession to the context.
func WithServerSession(ctx context.Context, ss *mcp.ServerSession) context.Context {
	return context.WithValue(ctx, serverSessionKey, ss)
}

// GetServerSession retrieves the ServerSession from the context.
func GetServerSession(ctx context.Context) *mcp.ServerSession {
	ss, _ := ctx.Value(serverSessionKey).(*mcp.ServerSession)
	return ss
}
