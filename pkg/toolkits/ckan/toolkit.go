// Package ckan provides the MCP tools that query CKAN open data portals.
package ckan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	ckanapi "github.com/txn2/mcp-ckan/pkg/ckan"
	"github.com/txn2/mcp-ckan/pkg/portal"
)

// Tool names.
const (
	toolStatusShow         = "ckan_status_show"
	toolPackageSearch      = "ckan_package_search"
	toolPackageShow        = "ckan_package_show"
	toolResourceShow       = "ckan_resource_show"
	toolOrganizationList   = "ckan_organization_list"
	toolOrganizationShow   = "ckan_organization_show"
	toolOrganizationSearch = "ckan_organization_search"
	toolGroupList          = "ckan_group_list"
	toolGroupShow          = "ckan_group_show"
	toolGroupSearch        = "ckan_group_search"
	toolTagList            = "ckan_tag_list"
	toolDatastoreSearch    = "ckan_datastore_search"
	toolDatastoreSQL       = "ckan_datastore_search_sql"
	toolFindPortals        = "ckan_find_portals"
)

// Catalog is the subset of the CKAN action client used by the tools.
type Catalog interface {
	Action(ctx context.Context, server, action string, params url.Values, out any) error
	ActionRaw(ctx context.Context, server, action string, params url.Values) (json.RawMessage, error)
}

// Toolkit implements the CKAN toolkit.
type Toolkit struct {
	name    string
	config  Config
	client  Catalog
	portals *portal.Table
}

// New creates a new CKAN toolkit. A nil portal table selects the embedded
// default table.
func New(name string, cfg Config, portals *portal.Table) (*Toolkit, error) {
	if portals == nil {
		var err error
		if portals, err = portal.Default(); err != nil {
			return nil, fmt.Errorf("loading portal table: %w", err)
		}
	}

	opts := []ckanapi.Option{
		ckanapi.WithServerResolver(portals),
		ckanapi.WithTimeout(cfg.Timeout),
		ckanapi.WithMaxResponseBytes(cfg.MaxResponseBytes),
		ckanapi.WithRateLimit(cfg.RequestsPerSec, cfg.Burst),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, ckanapi.WithUserAgent(cfg.UserAgent))
	}

	return &Toolkit{
		name:    name,
		config:  cfg,
		client:  ckanapi.NewClient(opts...),
		portals: portals,
	}, nil
}

// NewWithClient creates a CKAN toolkit backed by the given catalog client.
func NewWithClient(name string, cfg Config, client Catalog, portals *portal.Table) *Toolkit {
	return &Toolkit{name: name, config: cfg, client: client, portals: portals}
}

// Kind returns the toolkit kind.
func (*Toolkit) Kind() string {
	return "ckan"
}

// Name returns the toolkit instance name.
func (t *Toolkit) Name() string {
	return t.name
}

// Tools returns the list of tool names provided by this toolkit.
func (*Toolkit) Tools() []string {
	return []string{
		toolStatusShow,
		toolPackageSearch,
		toolPackageShow,
		toolResourceShow,
		toolOrganizationList,
		toolOrganizationShow,
		toolOrganizationSearch,
		toolGroupList,
		toolGroupShow,
		toolGroupSearch,
		toolTagList,
		toolDatastoreSearch,
		toolDatastoreSQL,
		toolFindPortals,
	}
}

// Portals returns the portal table used to build links.
func (t *Toolkit) Portals() *portal.Table {
	return t.portals
}

// Close releases resources.
func (*Toolkit) Close() error {
	return nil
}

// RegisterTools registers all CKAN tools with the MCP server.
func (t *Toolkit) RegisterTools(s *mcp.Server) {
	t.registerStatusTools(s)
	t.registerDatasetTools(s)
	t.registerCollectionTools(s, organizations)
	t.registerCollectionTools(s, groups)
	t.registerTagTools(s)
	t.registerDatastoreTools(s)
	t.registerPortalTools(s)
}

// tool builds a tool definition with read-only annotations and applies the
// configured overrides.
func (t *Toolkit) tool(name, title, description string, openWorld bool) *mcp.Tool {
	return t.config.apply(&mcp.Tool{
		Name:        name,
		Title:       title,
		Description: description,
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint:    true,
			DestructiveHint: boolPtr(false),
			IdempotentHint:  true,
			OpenWorldHint:   boolPtr(openWorld),
		},
	})
}

func boolPtr(b bool) *bool {
	return &b
}
