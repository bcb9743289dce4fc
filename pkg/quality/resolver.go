package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
)

// OutcomeKind classifies a single probe.
type OutcomeKind int

const (
	// OutcomeSuccess means the candidate resolved; probing stops.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRetryable means the candidate is unknown (404); try the next.
	OutcomeRetryable
	// OutcomeFatal means the probe failed for any other reason; probing stops.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// ProbeOutcome is the result of probing one candidate.
type ProbeOutcome struct {
	Kind    OutcomeKind
	Payload []byte
	Err     error
}

// Success builds a successful outcome.
func Success(payload []byte) ProbeOutcome {
	return ProbeOutcome{Kind: OutcomeSuccess, Payload: payload}
}

// Retryable builds a not-found outcome.
func Retryable() ProbeOutcome {
	return ProbeOutcome{Kind: OutcomeRetryable}
}

// Fatal builds a failed outcome.
func Fatal(err error) ProbeOutcome {
	return ProbeOutcome{Kind: OutcomeFatal, Err: err}
}

// Prober looks up one candidate identifier on the quality service.
type Prober interface {
	Probe(ctx context.Context, candidate string) ProbeOutcome
	SourceURL(candidate string) string
}

// Catalog performs CKAN action calls. *ckan.Client implements it.
type Catalog interface {
	Action(ctx context.Context, server, action string, params url.Values, out any) error
}

// Result is a resolved quality report together with how it was found.
type Result struct {
	Report     Report   `json:"report"`
	DatasetID  string   `json:"dataset_id"`
	Candidate  string   `json:"candidate"`
	Candidates []string `json:"candidates"`
	SourceURL  string   `json:"source_url"`
}

// Resolver locates a dataset's MQA report.
type Resolver struct {
	catalog Catalog
	prober  Prober
}

// NewResolver creates a resolver.
func NewResolver(catalog Catalog, prober Prober) *Resolver {
	return &Resolver{catalog: catalog, prober: prober}
}

// Resolve fetches the dataset from server, derives its candidate MQA
// identifiers and probes them in order. It makes one catalog call and at
// most len(candidates) probes, stopping at the first success or at the
// first failure other than not-found.
func (r *Resolver) Resolve(ctx context.Context, server, datasetID string) (*Result, error) {
	var ds struct {
		Identifier string `json:"identifier"`
		Name       string `json:"name"`
	}
	if err := r.catalog.Action(ctx, server, "package_show", url.Values{"id": {datasetID}}, &ds); err != nil {
		return nil, fmt.Errorf("looking up dataset %s: %w", datasetID, err)
	}

	base := ds.Identifier
	if base == "" {
		base = ds.Name
	}
	candidates := Candidates(base)
	if len(candidates) == 0 {
		return nil, ErrNoIdentifier
	}

	for _, candidate := range candidates {
		outcome := r.prober.Probe(ctx, candidate)
		probesTotal.WithLabelValues(outcome.Kind.String()).Inc()
		slog.Debug("mqa probe", "candidate", candidate, "outcome", outcome.Kind.String())

		switch outcome.Kind {
		case OutcomeSuccess:
			return &Result{
				Report:     Normalize(outcome.Payload),
				DatasetID:  datasetID,
				Candidate:  candidate,
				Candidates: candidates,
				SourceURL:  r.prober.SourceURL(candidate),
			}, nil
		case OutcomeRetryable:
			continue
		default:
			return nil, fmt.Errorf("probing %s: %w", candidate, outcome.Err)
		}
	}

	return nil, &CandidatesExhaustedError{Candidates: candidates}
}

// MarshalJSON emits the normalized report, or the untouched payload when it
// was in the legacy shape.
func (res *Result) MarshalJSON() ([]byte, error) {
	type plain Result
	if res.Report.Legacy && len(res.Report.Raw) > 0 && json.Valid(res.Report.Raw) {
		return json.Marshal(struct {
			*plain
			Report json.RawMessage `json:"report"`
		}{plain: (*plain)(res), Report: res.Report.Raw})
	}
	return json.Marshal((*plain)(res))
}
