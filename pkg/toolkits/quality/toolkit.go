// Package quality provides the MCP tool reporting data.europa.eu metadata
// quality for CKAN datasets.
package quality

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-ckan/pkg/ckan"
	"github.com/txn2/mcp-ckan/pkg/portal"
	"github.com/txn2/mcp-ckan/pkg/quality"
	"github.com/txn2/mcp-ckan/pkg/render"
)

const toolName = "ckan_get_mqa_quality"

const defaultDescription = "Get metadata quality metrics for a dati.gov.it dataset from the " +
	"data.europa.eu MQA (Metadata Quality Assurance) service: overall score and " +
	"accessibility, reusability, interoperability and findability checks."

type qualityInput struct {
	ServerURL      string `json:"server_url" jsonschema:"Base URL of dati.gov.it (e.g. https://www.dati.gov.it/opendata)"`
	DatasetID      string `json:"dataset_id" jsonschema:"Dataset ID or name"`
	ResponseFormat string `json:"response_format,omitempty" jsonschema:"Output format: markdown (default) or json"`
}

// Toolkit implements the quality toolkit.
type Toolkit struct {
	name     string
	config   Config
	allow    *quality.AllowList
	mqa      *quality.MQAClient
	resolver *quality.Resolver
}

// New creates a quality toolkit. Dataset lookups go through a CKAN client
// that resolves server addresses with portals; nil selects the embedded
// portal table.
func New(name string, cfg Config, portals *portal.Table) (*Toolkit, error) {
	if portals == nil {
		var err error
		if portals, err = portal.Default(); err != nil {
			return nil, fmt.Errorf("loading portal table: %w", err)
		}
	}

	catalogOpts := []ckan.Option{
		ckan.WithServerResolver(portals),
		ckan.WithTimeout(cfg.Timeout),
		ckan.WithUserAgent(cfg.UserAgent),
		ckan.WithMaxResponseBytes(cfg.MaxResponseBytes),
		ckan.WithRateLimit(cfg.RequestsPerSec, cfg.Burst),
	}
	mqaOpts := []quality.MQAOption{
		quality.WithTimeout(cfg.Timeout),
		quality.WithUserAgent(cfg.UserAgent),
		quality.WithMaxResponseBytes(cfg.MaxResponseBytes),
	}
	if cfg.BaseURL != "" {
		mqaOpts = append(mqaOpts, quality.WithBaseURL(cfg.BaseURL))
	}

	return NewWithClients(name, cfg, ckan.NewClient(catalogOpts...), quality.NewMQAClient(mqaOpts...))
}

// NewWithClients creates a quality toolkit from existing clients.
func NewWithClients(name string, cfg Config, catalog quality.Catalog, mqa *quality.MQAClient) (*Toolkit, error) {
	allow, err := quality.NewAllowList(cfg.AllowedServers)
	if err != nil {
		return nil, err
	}
	return &Toolkit{
		name:     name,
		config:   cfg,
		allow:    allow,
		mqa:      mqa,
		resolver: quality.NewResolver(catalog, mqa),
	}, nil
}

// Kind returns the toolkit kind.
func (*Toolkit) Kind() string {
	return "quality"
}

// Name returns the toolkit instance name.
func (t *Toolkit) Name() string {
	return t.name
}

// Tools returns the list of tool names provided by this toolkit.
func (*Toolkit) Tools() []string {
	return []string{toolName}
}

// Close releases resources.
func (*Toolkit) Close() error {
	return nil
}

// RegisterTools registers the quality tool with the MCP server.
func (t *Toolkit) RegisterTools(s *mcp.Server) {
	openWorld := true
	destructive := false
	mcp.AddTool(s, &mcp.Tool{
		Name:        toolName,
		Title:       "Get MQA Quality Metrics",
		Description: orDefault(t.config.Description, defaultDescription),
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint:    true,
			DestructiveHint: &destructive,
			IdempotentHint:  true,
			OpenWorldHint:   &openWorld,
		},
	}, t.handleQuality)
}

func (t *Toolkit) handleQuality(ctx context.Context, _ *mcp.CallToolRequest, input qualityInput) (*mcp.CallToolResult, any, error) {
	switch strings.ToLower(input.ResponseFormat) {
	case "", "markdown", "json":
	default:
		return errorResult(`response_format must be "markdown" or "json"`), nil, nil
	}
	if !t.allow.Allows(input.ServerURL) {
		return errorResult(notAllowedMessage(input.ServerURL)), nil, nil
	}
	if strings.TrimSpace(input.DatasetID) == "" {
		return errorResult("dataset_id is required"), nil, nil
	}

	result, err := t.resolver.Resolve(ctx, input.ServerURL, input.DatasetID)
	if err != nil {
		return errorResult("Error retrieving quality metrics: " + err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}

	if strings.EqualFold(input.ResponseFormat, "json") {
		data, err := result.MarshalJSON()
		if err != nil {
			return errorResult("failed to marshal result: " + err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
		}
		return textResult(indent(data)), nil, nil
	}
	return textResult(t.formatMarkdown(result, input.DatasetID)), nil, nil
}

func notAllowedMessage(server string) string {
	return "Error: MQA quality metrics are only available for dati.gov.it datasets. " +
		"Provided server: " + server + "\n\n" +
		"The MQA (Metadata Quality Assurance) system is operated by data.europa.eu " +
		"and only evaluates datasets from Italian open data portal."
}

// formatMarkdown renders the report. Only sub-metrics present in the
// payload get a line.
func (t *Toolkit) formatMarkdown(result *quality.Result, datasetID string) string {
	r := result.Report
	var lines []string
	add := func(s ...string) { lines = append(lines, s...) }
	check := func(label string, a *quality.Availability) {
		if a != nil {
			add(fmt.Sprintf("- %s: %s Available", label, render.Check(a.Available)))
		}
	}

	add("# Quality Metrics for Dataset: "+datasetID, "")
	if r.Score != nil {
		add(fmt.Sprintf("**Overall Score**: %s/%d", strconv.FormatFloat(*r.Score, 'f', -1, 64), quality.MaxScore), "")
	}

	if a := r.Accessibility; a != nil {
		add("## Accessibility")
		check("Access URL", a.AccessURL)
		check("Download URL", a.DownloadURL)
		add("")
	}
	if re := r.Reusability; re != nil {
		add("## Reusability")
		check("License", re.Licence)
		check("Contact Point", re.ContactPoint)
		check("Publisher", re.Publisher)
		add("")
	}
	if i := r.Interoperability; i != nil {
		add("## Interoperability")
		check("Format", i.Format)
		check("Media Type", i.MediaType)
		add("")
	}
	if f := r.Findability; f != nil {
		add("## Findability")
		check("Keywords", f.Keyword)
		check("Category", f.Category)
		check("Spatial", f.Spatial)
		check("Temporal", f.Temporal)
		add("")
	}

	portalID := orDefault(r.ID, datasetID)
	add("---",
		"Portal: "+quality.PortalURL(portalID),
		"Source: "+t.mqa.SourceURL(portalID))

	return strings.Join(lines, "\n")
}
