package platform

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-ckan/pkg/middleware"
	"github.com/txn2/mcp-ckan/pkg/portal"
	"github.com/txn2/mcp-ckan/pkg/prompts"
	"github.com/txn2/mcp-ckan/pkg/registry"
)

// Platform is the main server facade.
type Platform struct {
	config *Config

	// Core components
	mcpServer *mcp.Server
	lifecycle *Lifecycle
	transport string

	// Shared portal table
	portals *portal.Table

	// Registries
	toolkitRegistry *registry.Registry

	// Catalog reads for resource templates
	catalog Catalog
}

// New creates a new platform instance.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	if options.Config.Server.Version == "" {
		options.Config.Server.Version = DefaultVersion
	}

	p := &Platform{
		config:    options.Config,
		lifecycle: NewLifecycle(),
		transport: options.Transport,
	}
	if p.transport == "" {
		p.transport = p.config.Server.Transport
	}

	if err := p.initializeComponents(options); err != nil {
		return nil, fmt.Errorf("initializing components: %w", err)
	}

	return p, nil
}

// initializeComponents initializes all platform components.
func (p *Platform) initializeComponents(opts *Options) error {
	if err := p.initPortals(opts); err != nil {
		return err
	}
	if err := p.initRegistry(opts); err != nil {
		return err
	}
	p.initCatalog(opts)
	p.finalizeSetup()
	return nil
}

// initPortals selects the portal table: explicit option, configured file,
// then the embedded default.
func (p *Platform) initPortals(opts *Options) error {
	var err error
	switch {
	case opts.Portals != nil:
		p.portals = opts.Portals
	case p.config.Portals.File != "":
		if p.portals, err = portal.LoadFile(p.config.Portals.File); err != nil {
			return fmt.Errorf("loading portals: %w", err)
		}
	default:
		if p.portals, err = portal.Default(); err != nil {
			return fmt.Errorf("loading portals: %w", err)
		}
	}
	return nil
}

// initRegistry creates the toolkits declared in config.
func (p *Platform) initRegistry(opts *Options) error {
	if opts.ToolkitRegistry != nil {
		p.toolkitRegistry = opts.ToolkitRegistry
		return nil
	}

	p.toolkitRegistry = registry.NewRegistry()
	registry.RegisterBuiltinFactories(p.toolkitRegistry, p.portals)
	if err := registry.NewLoader(p.toolkitRegistry).Load(p.config.toolkitConfigs()); err != nil {
		return fmt.Errorf("loading toolkits: %w", err)
	}
	return nil
}

// finalizeSetup creates the MCP server and registers everything on it.
func (p *Platform) finalizeSetup() {
	p.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    p.config.Server.Name,
		Title:   p.config.Server.Description,
		Version: p.config.Server.Version,
	}, &mcp.ServerOptions{
		Instructions: p.config.Server.AgentInstructions,
	})

	// The last middleware added runs first; the tool call middleware must
	// populate the CallContext before client logging reads it.
	p.mcpServer.AddReceivingMiddleware(middleware.MCPClientLoggingMiddleware(p.config.ClientLogging))
	p.mcpServer.AddReceivingMiddleware(middleware.MCPToolCallMiddleware(p.toolkitRegistry, p.transport))

	p.toolkitRegistry.RegisterAllTools(p.mcpServer)
	p.registerInfoTool()
	prompts.Register(p.mcpServer)
	p.registerPlatformPrompts()
	p.registerResourceTemplates()
	p.validateAgentInstructions()
}

// Start starts the platform.
func (p *Platform) Start(ctx context.Context) error {
	return p.lifecycle.Start(ctx)
}

// Stop stops the platform.
func (p *Platform) Stop(ctx context.Context) error {
	return p.lifecycle.Stop(ctx)
}

// Lifecycle returns the lifecycle that Start and Stop drive.
func (p *Platform) Lifecycle() *Lifecycle {
	return p.lifecycle
}

// MCPServer returns the MCP server.
func (p *Platform) MCPServer() *mcp.Server {
	return p.mcpServer
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Portals returns the portal table shared by all toolkits.
func (p *Platform) Portals() *portal.Table {
	return p.portals
}

// ToolkitRegistry returns the toolkit registry.
func (p *Platform) ToolkitRegistry() *registry.Registry {
	return p.toolkitRegistry
}

// Close closes all platform resources.
func (p *Platform) Close() error {
	if err := p.toolkitRegistry.Close(); err != nil {
		return fmt.Errorf("errors closing platform: %w", err)
	}
	return nil
}
