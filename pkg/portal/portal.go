// Package portal resolves CKAN server addresses against a static table of
// known portals and expands their human-facing view URL templates.
//
// A Table is built once at startup and never mutated afterwards; every
// method on it is a pure lookup and safe for concurrent use.
package portal

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed portals.yaml
var embeddedTable []byte

// Template placeholders. Each may appear zero or more times in a template.
const (
	PlaceholderServerURL = "{server_url}"
	PlaceholderID        = "{id}"
	PlaceholderName      = "{name}"
)

// Kind identifies the entity a view URL points at.
type Kind string

// Entity kinds with view URL templates.
const (
	KindDataset      Kind = "dataset"
	KindOrganization Kind = "organization"
	KindGroup        Kind = "group"
)

// Entry describes one known portal deployment.
type Entry struct {
	Name                string   `yaml:"name" json:"name,omitempty"`
	APIURL              string   `yaml:"api_url" json:"api_url"`
	APIURLAliases       []string `yaml:"api_url_aliases" json:"api_url_aliases,omitempty"`
	DatasetViewURL      string   `yaml:"dataset_view_url" json:"dataset_view_url,omitempty"`
	OrganizationViewURL string   `yaml:"organization_view_url" json:"organization_view_url,omitempty"`
	GroupViewURL        string   `yaml:"group_view_url" json:"group_view_url,omitempty"`
}

// Template returns the entry's template for kind, or "" when the entry does
// not override it.
func (e Entry) Template(kind Kind) string {
	switch kind {
	case KindDataset:
		return e.DatasetViewURL
	case KindOrganization:
		return e.OrganizationViewURL
	case KindGroup:
		return e.GroupViewURL
	default:
		return ""
	}
}

// matches reports whether the slash-stripped server address names this
// portal, either by its canonical API URL or by one of its aliases.
func (e Entry) matches(server string) bool {
	if trimSlash(e.APIURL) == server {
		return true
	}
	for _, alias := range e.APIURLAliases {
		if trimSlash(alias) == server {
			return true
		}
	}
	return false
}

// Templates is the fallback template set used for unknown servers.
type Templates struct {
	DatasetViewURL      string `yaml:"dataset_view_url" json:"dataset_view_url"`
	OrganizationViewURL string `yaml:"organization_view_url" json:"organization_view_url"`
	GroupViewURL        string `yaml:"group_view_url" json:"group_view_url"`
}

// Template returns the default template for kind.
func (t Templates) Template(kind Kind) string {
	return Entry{
		DatasetViewURL:      t.DatasetViewURL,
		OrganizationViewURL: t.OrganizationViewURL,
		GroupViewURL:        t.GroupViewURL,
	}.Template(kind)
}

// builtinDefaults backs any default template the table file leaves empty.
var builtinDefaults = Templates{
	DatasetViewURL:      "{server_url}/dataset/{name}",
	OrganizationViewURL: "{server_url}/organization/{name}",
	GroupViewURL:        "{server_url}/group/{name}",
}

// tableFile is the on-disk layout of a portal table.
type tableFile struct {
	Portals  []Entry   `yaml:"portals"`
	Defaults Templates `yaml:"defaults"`
}

// Table is an immutable, ordered index of known portals.
type Table struct {
	entries  []Entry
	defaults Templates
}

// New builds a table from entries and defaults. Empty default templates are
// filled from the built-in CKAN layout.
func New(entries []Entry, defaults Templates) *Table {
	if defaults.DatasetViewURL == "" {
		defaults.DatasetViewURL = builtinDefaults.DatasetViewURL
	}
	if defaults.OrganizationViewURL == "" {
		defaults.OrganizationViewURL = builtinDefaults.OrganizationViewURL
	}
	if defaults.GroupViewURL == "" {
		defaults.GroupViewURL = builtinDefaults.GroupViewURL
	}

	copied := make([]Entry, len(entries))
	for i, e := range entries {
		e.APIURLAliases = append([]string(nil), e.APIURLAliases...)
		copied[i] = e
	}
	return &Table{entries: copied, defaults: defaults}
}

// Parse decodes a YAML portal table.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing portal table: %w", err)
	}
	for i, e := range f.Portals {
		if strings.TrimSpace(e.APIURL) == "" {
			return nil, fmt.Errorf("portal %d: api_url is required", i)
		}
	}
	return New(f.Portals, f.Defaults), nil
}

// LoadFile reads and parses a YAML portal table from path.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("reading portal table: %w", err)
	}
	return Parse(data)
}

var loadEmbedded = sync.OnceValues(func() (*Table, error) {
	return Parse(embeddedTable)
})

// Default returns the portal table compiled into the binary.
func Default() (*Table, error) {
	return loadEmbedded()
}

// Lookup returns the first portal whose canonical address or alias equals
// server after a single trailing slash is removed from each side.
func (t *Table) Lookup(server string) (Entry, bool) {
	clean := trimSlash(server)
	for _, e := range t.entries {
		if e.matches(clean) {
			return e, true
		}
	}
	return Entry{}, false
}

// ViewURL expands the view URL template for kind. The portal's own template
// is used when server is a known portal, otherwise the default template.
// Substituted values are inserted verbatim, without URL encoding.
func (t *Table) ViewURL(server string, kind Kind, id, name string) string {
	clean := trimSlash(server)

	tmpl := ""
	if e, ok := t.Lookup(clean); ok {
		tmpl = e.Template(kind)
	}
	if tmpl == "" {
		tmpl = t.defaults.Template(kind)
	}

	return strings.NewReplacer(
		PlaceholderServerURL, clean,
		PlaceholderID, id,
		PlaceholderName, name,
	).Replace(tmpl)
}

// DatasetURL returns the human-facing page of a dataset.
func (t *Table) DatasetURL(server, id, name string) string {
	return t.ViewURL(server, KindDataset, id, name)
}

// OrganizationURL returns the human-facing page of an organization.
func (t *Table) OrganizationURL(server, id, name string) string {
	return t.ViewURL(server, KindOrganization, id, name)
}

// GroupURL returns the human-facing page of a group.
func (t *Table) GroupURL(server, id, name string) string {
	return t.ViewURL(server, KindGroup, id, name)
}

// APIURL returns the action API base for server. A bare portal origin such
// as https://dati.anticorruzione.it is rewritten to the portal's configured
// api_url; any other address is returned without its trailing slash.
func (t *Table) APIURL(server string) string {
	clean := trimSlash(server)
	if clean == "" {
		return ""
	}
	if _, ok := t.Lookup(clean); ok {
		return clean
	}
	for _, e := range t.entries {
		if origin(e.APIURL) == clean {
			return trimSlash(e.APIURL)
		}
		for _, alias := range e.APIURLAliases {
			if origin(alias) == clean {
				return trimSlash(e.APIURL)
			}
		}
	}
	return clean
}

// Entries returns a copy of the table in configuration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Defaults returns the fallback templates.
func (t *Table) Defaults() Templates {
	return t.defaults
}

// Len returns the number of known portals.
func (t *Table) Len() int {
	return len(t.entries)
}

func trimSlash(s string) string {
	return strings.TrimSuffix(s, "/")
}

// origin returns scheme://host of raw, or "" when raw has no path beyond
// the host (such entries never need rewriting).
func origin(raw string) string {
	u, err := url.Parse(trimSlash(raw))
	if err != nil || u.Scheme == "" || u.Host == "" || u.Path == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
