// Package server provides a factory for creating the MCP server.
package server

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-ckan/pkg/platform"
)

// Version is set at build time.
var Version = "dev"

// New creates the MCP server and its platform from cfg. An empty
// server.version is replaced by the build version.
func New(cfg *platform.Config, opts ...platform.Option) (*mcp.Server, *platform.Platform, error) {
	if cfg.Server.Version == "" {
		cfg.Server.Version = Version
	}

	p, err := platform.New(append([]platform.Option{platform.WithConfig(cfg)}, opts...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("creating platform: %w", err)
	}

	return p.MCPServer(), p, nil
}

// NewWithConfig creates the MCP server from a YAML configuration file.
func NewWithConfig(path string, opts ...platform.Option) (*mcp.Server, *platform.Platform, error) {
	cfg, err := platform.LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return New(cfg, opts...)
}

// NewWithDefaults creates the MCP server with the built-in configuration:
// one CKAN and one quality toolkit over the embedded portal table.
func NewWithDefaults(opts ...platform.Option) (*mcp.Server, *platform.Platform, error) {
	return New(platform.DefaultConfig(), opts...)
}
