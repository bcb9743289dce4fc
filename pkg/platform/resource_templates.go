package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yosida95/uritemplate/v3"

	"github.com/txn2/mcp-ckan/pkg/ckan"
)

// Resource template URI patterns.
const (
	datasetTemplateURI      = "ckan://{host}/dataset/{id}"
	organizationTemplateURI = "ckan://{host}/organization/{id}"
	groupTemplateURI        = "ckan://{host}/group/{id}"
)

// Catalog is the CKAN read access the resource templates need.
// *ckan.Client satisfies it.
type Catalog interface {
	ActionRaw(ctx context.Context, server, action string, params url.Values) (json.RawMessage, error)
}

// catalogResource describes one ckan:// template and the show action
// behind it.
type catalogResource struct {
	uriTemplate string
	name        string
	description string
	action      string
}

var catalogResources = []catalogResource{
	{
		uriTemplate: datasetTemplateURI,
		name:        "CKAN Dataset",
		description: "Full package_show metadata of a dataset, including resources, tags and organization",
		action:      "package_show",
	},
	{
		uriTemplate: organizationTemplateURI,
		name:        "CKAN Organization",
		description: "organization_show metadata of a publishing organization",
		action:      "organization_show",
	},
	{
		uriTemplate: groupTemplateURI,
		name:        "CKAN Group",
		description: "group_show metadata of a thematic group",
		action:      "group_show",
	},
}

// initCatalog sets the client used to read template resources.
func (p *Platform) initCatalog(opts *Options) {
	if opts.Catalog != nil {
		p.catalog = opts.Catalog
		return
	}
	clientOpts := []ckan.Option{
		ckan.WithServerResolver(p.portals),
		ckan.WithTimeout(p.config.HTTP.Timeout),
		ckan.WithMaxResponseBytes(p.config.HTTP.MaxResponseBytes),
	}
	if p.config.HTTP.UserAgent != "" {
		clientOpts = append(clientOpts, ckan.WithUserAgent(p.config.HTTP.UserAgent))
	}
	p.catalog = ckan.NewClient(clientOpts...)
}

// registerResourceTemplates registers the ckan:// resource templates.
// Only called when resources.enabled is true.
func (p *Platform) registerResourceTemplates() {
	if !p.config.Resources.Enabled {
		return
	}

	for _, res := range catalogResources {
		p.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: res.uriTemplate,
			Name:        res.name,
			Description: res.description,
			MIMEType:    "application/json",
		}, p.catalogResourceHandler(res))
	}
}

// parseTemplateVars extracts named variables from a URI using a URI template.
// Returns a map of variable names to their values, or an error if the URI
// doesn't match the template.
func parseTemplateVars(templateStr, uri string) (map[string]string, error) {
	tmpl, err := uritemplate.New(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", templateStr, err)
	}

	match := tmpl.Match(uri)
	if match == nil {
		return nil, fmt.Errorf("uri %q does not match template %q", uri, templateStr)
	}

	result := make(map[string]string)
	for _, name := range tmpl.Varnames() {
		val := match.Get(name)
		result[name] = val.String()
	}
	return result, nil
}

// serverForHost maps the host of a ckan:// URI to a server address. The
// client resolves bare portal origins to their api_url.
func serverForHost(host string) string {
	return "https://" + host
}

// catalogResourceHandler reads one ckan:// resource through the show
// action of its template.
func (p *Platform) catalogResourceHandler(res catalogResource) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		vars, err := parseTemplateVars(res.uriTemplate, uri)
		if err != nil || vars["host"] == "" || vars["id"] == "" {
			return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
		}

		raw, err := p.catalog.ActionRaw(ctx, serverForHost(vars["host"]), res.action, url.Values{"id": {vars["id"]}})
		if err != nil {
			var apiErr *ckan.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
				return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
			}
			return nil, fmt.Errorf("reading %s: %w", uri, err)
		}

		return marshalResourceResult(uri, raw)
	}
}

// marshalResourceResult indents a raw JSON document and wraps it in a
// ReadResourceResult.
func marshalResourceResult(uri string, raw json.RawMessage) (*mcp.ReadResourceResult, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("marshaling resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     buf.String(),
			},
		},
	}, nil
}
