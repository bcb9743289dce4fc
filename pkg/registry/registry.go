package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Registry manages toolkit registration and lifecycle.
type Registry struct {
	mu sync.RWMutex

	// Registered toolkits by kind+name
	toolkits map[string]Toolkit

	// Owning toolkit key by tool name
	tools map[string]string

	// Factory functions by kind
	factories map[string]ToolkitFactory
}

// NewRegistry creates a new toolkit registry.
func NewRegistry() *Registry {
	return &Registry{
		toolkits:  make(map[string]Toolkit),
		tools:     make(map[string]string),
		factories: make(map[string]ToolkitFactory),
	}
}

// RegisterFactory registers a toolkit factory for a kind.
func (r *Registry) RegisterFactory(kind string, factory ToolkitFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Register adds a toolkit to the registry. A toolkit whose tools collide
// with an already registered toolkit is rejected, since MCP tool names
// are global to the server.
func (r *Registry) Register(toolkit Toolkit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := toolkitKey(toolkit.Kind(), toolkit.Name())
	if _, exists := r.toolkits[key]; exists {
		return fmt.Errorf("toolkit %s already registered", key)
	}
	for _, tool := range toolkit.Tools() {
		if owner, taken := r.tools[tool]; taken {
			return fmt.Errorf("toolkit %s: tool %s already provided by %s", key, tool, owner)
		}
	}

	r.toolkits[key] = toolkit
	for _, tool := range toolkit.Tools() {
		r.tools[tool] = key
	}
	return nil
}

// CreateAndRegister creates a toolkit from config and registers it.
func (r *Registry) CreateAndRegister(cfg ToolkitConfig) error {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown toolkit kind: %s", cfg.Kind)
	}

	toolkit, err := factory(cfg.Name, cfg.Config)
	if err != nil {
		return fmt.Errorf("creating toolkit %s/%s: %w", cfg.Kind, cfg.Name, err)
	}

	return r.Register(toolkit)
}

// Get retrieves a toolkit by kind and name.
func (r *Registry) Get(kind, name string) (Toolkit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	toolkit, ok := r.toolkits[toolkitKey(kind, name)]
	return toolkit, ok
}

// GetByKind retrieves all toolkits of a kind, ordered by name.
func (r *Registry) GetByKind(kind string) []Toolkit {
	var result []Toolkit
	for _, toolkit := range r.All() {
		if toolkit.Kind() == kind {
			result = append(result, toolkit)
		}
	}
	return result
}

// All returns all registered toolkits ordered by kind and name.
func (r *Registry) All() []Toolkit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.toolkits))
	for key := range r.toolkits {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Toolkit, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.toolkits[key])
	}
	return result
}

// AllTools returns all tool names from all toolkits.
func (r *Registry) AllTools() []string {
	toolkits := r.All()
	tools := make([]string, 0, len(toolkits)*8)
	for _, toolkit := range toolkits {
		tools = append(tools, toolkit.Tools()...)
	}
	return tools
}

// GetToolkitForTool returns the kind and instance name of the toolkit
// that provides a tool. Returns found=false for unknown tools.
func (r *Registry) GetToolkitForTool(toolName string) (kind, name string, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.tools[toolName]
	if !ok {
		return "", "", false
	}
	toolkit := r.toolkits[key]
	return toolkit.Kind(), toolkit.Name(), true
}

// RegisterAllTools registers all tools from all toolkits with the MCP server.
func (r *Registry) RegisterAllTools(s *mcp.Server) {
	for _, toolkit := range r.All() {
		toolkit.RegisterTools(s)
	}
}

// Close closes all registered toolkits.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, toolkit := range r.toolkits {
		if err := toolkit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing toolkits: %w", errors.Join(errs...))
	}
	return nil
}

func toolkitKey(kind, name string) string {
	return kind + ":" + name
}
