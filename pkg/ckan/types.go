package ckan

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Tag is a dataset keyword.
type Tag struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

// Organization is a publishing organization.
type Organization struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Title        string    `json:"title,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	Created      string    `json:"created,omitempty"`
	PackageCount int       `json:"package_count,omitempty"`
	State        string    `json:"state,omitempty"`
	Packages     []Dataset `json:"packages,omitempty"`
}

// Label returns the best human-readable name.
func (o Organization) Label() string {
	switch {
	case o.DisplayName != "":
		return o.DisplayName
	case o.Title != "":
		return o.Title
	default:
		return o.Name
	}
}

// Group is a thematic dataset collection. CKAN returns the same shape for
// groups and organizations.
type Group = Organization

// Resource is a file or API attached to a dataset.
type Resource struct {
	ID               string          `json:"id"`
	PackageID        string          `json:"package_id,omitempty"`
	Name             string          `json:"name,omitempty"`
	Description      string          `json:"description,omitempty"`
	URL              string          `json:"url,omitempty"`
	Format           string          `json:"format,omitempty"`
	Mimetype         string          `json:"mimetype,omitempty"`
	Size             json.RawMessage `json:"size,omitempty"`
	Created          string          `json:"created,omitempty"`
	LastModified     string          `json:"last_modified,omitempty"`
	DatastoreActive  bool            `json:"datastore_active,omitempty"`
	State            string          `json:"state,omitempty"`
	ResourceType     string          `json:"resource_type,omitempty"`
	MetadataModified string          `json:"metadata_modified,omitempty"`
}

// SizeBytes returns the resource size. Portals report it as a number, a
// numeric string or null.
func (r Resource) SizeBytes() (int64, bool) {
	raw := strings.Trim(strings.TrimSpace(string(r.Size)), `"`)
	if raw == "" || raw == "null" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64(f), true
}

// Extra is a free-form key/value pair attached to a dataset.
type Extra struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Dataset is a CKAN package.
type Dataset struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Title            string        `json:"title,omitempty"`
	Identifier       string        `json:"identifier,omitempty"`
	Notes            string        `json:"notes,omitempty"`
	URL              string        `json:"url,omitempty"`
	Version          string        `json:"version,omitempty"`
	State            string        `json:"state,omitempty"`
	Type             string        `json:"type,omitempty"`
	Private          bool          `json:"private,omitempty"`
	LicenseID        string        `json:"license_id,omitempty"`
	LicenseTitle     string        `json:"license_title,omitempty"`
	Author           string        `json:"author,omitempty"`
	AuthorEmail      string        `json:"author_email,omitempty"`
	Maintainer       string        `json:"maintainer,omitempty"`
	MaintainerEmail  string        `json:"maintainer_email,omitempty"`
	MetadataCreated  string        `json:"metadata_created,omitempty"`
	MetadataModified string        `json:"metadata_modified,omitempty"`
	NumResources     int           `json:"num_resources,omitempty"`
	NumTags          int           `json:"num_tags,omitempty"`
	Organization     *Organization `json:"organization,omitempty"`
	Resources        []Resource    `json:"resources,omitempty"`
	Tags             []Tag         `json:"tags,omitempty"`
	Groups           []Group       `json:"groups,omitempty"`
	Extras           []Extra       `json:"extras,omitempty"`
}

// SearchResult is the result of package_search. Facet sections are kept raw
// because their shape varies between CKAN versions.
type SearchResult struct {
	Count        int             `json:"count"`
	Results      []Dataset       `json:"results"`
	Sort         string          `json:"sort,omitempty"`
	Facets       json.RawMessage `json:"facets,omitempty"`
	SearchFacets json.RawMessage `json:"search_facets,omitempty"`
}

// Status is the result of status_show.
type Status struct {
	CKANVersion     string   `json:"ckan_version"`
	SiteTitle       string   `json:"site_title"`
	SiteURL         string   `json:"site_url"`
	SiteDescription string   `json:"site_description,omitempty"`
	Locale          string   `json:"locale_default,omitempty"`
	Extensions      []string `json:"extensions,omitempty"`
}

// DatastoreField describes a DataStore column.
type DatastoreField struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// DatastoreResult is the result of datastore_search and
// datastore_search_sql. Records are kept raw and rendered per column.
type DatastoreResult struct {
	ResourceID string            `json:"resource_id,omitempty"`
	Fields     []DatastoreField  `json:"fields"`
	Records    []json.RawMessage `json:"records"`
	Total      *int              `json:"total,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Offset     int               `json:"offset,omitempty"`
	SQL        string            `json:"sql,omitempty"`
}
