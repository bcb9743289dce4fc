// Package quality retrieves and normalizes data.europa.eu Metadata Quality
// Assurance (MQA) reports for CKAN datasets.
package quality

import "encoding/json"

// MaxScore is the MQA display denominator. It is a fixed convention of the
// MQA service, not derived from the payload.
const MaxScore = 405

// Availability is a single yes/no quality signal. A nil *Availability means
// the payload carried no signal, which is distinct from Available=false.
type Availability struct {
	Available bool `json:"available"`
}

// Accessibility holds access related sub-metrics.
type Accessibility struct {
	AccessURL   *Availability `json:"accessUrl,omitempty"`
	DownloadURL *Availability `json:"downloadUrl,omitempty"`
}

// Reusability holds reuse related sub-metrics.
type Reusability struct {
	Licence      *Availability `json:"licence,omitempty"`
	ContactPoint *Availability `json:"contactPoint,omitempty"`
	Publisher    *Availability `json:"publisher,omitempty"`
}

// Interoperability holds format related sub-metrics.
type Interoperability struct {
	Format    *Availability `json:"format,omitempty"`
	MediaType *Availability `json:"mediaType,omitempty"`
}

// Findability holds discovery related sub-metrics.
type Findability struct {
	Keyword  *Availability `json:"keyword,omitempty"`
	Category *Availability `json:"category,omitempty"`
	Spatial  *Availability `json:"spatial,omitempty"`
	Temporal *Availability `json:"temporal,omitempty"`
}

// Report is a normalized MQA quality record.
type Report struct {
	ID               string            `json:"id,omitempty"`
	Score            *float64          `json:"score,omitempty"`
	Accessibility    *Accessibility    `json:"accessibility,omitempty"`
	Reusability      *Reusability      `json:"reusability,omitempty"`
	Interoperability *Interoperability `json:"interoperability,omitempty"`
	Findability      *Findability      `json:"findability,omitempty"`

	// Legacy is set when the payload did not have the result.results[0]
	// layout and was read as the older flat shape.
	Legacy bool `json:"-"`

	// Raw is the payload the report was built from.
	Raw json.RawMessage `json:"-"`
}

// availabilityOf is a small constructor used by the normalizer and tests.
func availabilityOf(v bool) *Availability {
	return &Availability{Available: v}
}
