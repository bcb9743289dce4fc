package registry

import (
	"github.com/txn2/mcp-ckan/pkg/portal"
	ckankit "github.com/txn2/mcp-ckan/pkg/toolkits/ckan"
	qualitykit "github.com/txn2/mcp-ckan/pkg/toolkits/quality"
)

// Toolkit kinds known to RegisterBuiltinFactories.
const (
	KindCKAN    = "ckan"
	KindQuality = "quality"
)

// RegisterBuiltinFactories registers all built-in toolkit factories. The
// portal table is shared by every toolkit the factories create.
func RegisterBuiltinFactories(r *Registry, portals *portal.Table) {
	r.RegisterFactory(KindCKAN, CKANFactory(portals))
	r.RegisterFactory(KindQuality, QualityFactory(portals))
}

// CKANFactory returns a factory for the CKAN Action API toolkit.
func CKANFactory(portals *portal.Table) ToolkitFactory {
	return func(name string, cfg map[string]any) (Toolkit, error) {
		config, err := ckankit.ParseConfig(cfg)
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by CreateAndRegister
		}
		return ckankit.New(name, config, portals) //nolint:wrapcheck // wrapped by CreateAndRegister
	}
}

// QualityFactory returns a factory for the MQA quality toolkit.
func QualityFactory(portals *portal.Table) ToolkitFactory {
	return func(name string, cfg map[string]any) (Toolkit, error) {
		config, err := qualitykit.ParseConfig(cfg)
		if err != nil {
			return nil, err //nolint:wrapcheck // wrapped by CreateAndRegister
		}
		return qualitykit.New(name, config, portals) //nolint:wrapcheck // wrapped by CreateAndRegister
	}
}
