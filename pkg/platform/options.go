package platform

import (
	"github.com/txn2/mcp-ckan/pkg/portal"
	"github.com/txn2/mcp-ckan/pkg/registry"
)

// Options configures the platform.
type Options struct {
	// Config is the platform configuration.
	Config *Config

	// Transport overrides Config.Server.Transport in call metadata.
	Transport string

	// Portals (optional, loaded from config or the embedded table if not provided).
	Portals *portal.Table

	// ToolkitRegistry (optional, built from config if not provided).
	ToolkitRegistry *registry.Registry

	// Catalog serves the ckan:// resource templates (optional, an HTTP
	// client is created from the http section if not provided).
	Catalog Catalog
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithTransport sets the transport name recorded for tool calls.
func WithTransport(transport string) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// WithPortals sets the portal table.
func WithPortals(t *portal.Table) Option {
	return func(o *Options) {
		o.Portals = t
	}
}

// WithToolkitRegistry sets the toolkit registry.
func WithToolkitRegistry(reg *registry.Registry) Option {
	return func(o *Options) {
		o.ToolkitRegistry = reg
	}
}

// WithCatalog sets the catalog used by resource templates.
func WithCatalog(c Catalog) Option {
	return func(o *Options) {
		o.Catalog = c
	}
}
