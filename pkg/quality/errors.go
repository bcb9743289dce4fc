package quality

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoIdentifier is returned when a dataset has neither an identifier nor
// a name usable as an MQA identifier. No probe is attempted.
var ErrNoIdentifier = errors.New("dataset identifier is empty; cannot query MQA API")

// ErrServerNotAllowed is returned for servers outside the MQA allow-list.
var ErrServerNotAllowed = errors.New("MQA quality metrics are not available for this server")

// CandidatesExhaustedError is returned when every candidate identifier was
// probed and none was known to the MQA service.
type CandidatesExhaustedError struct {
	Candidates []string
}

func (e *CandidatesExhaustedError) Error() string {
	return "quality metrics not found or identifier not aligned on data.europa.eu. " +
		"Tried: " + strings.Join(e.Candidates, ", ") + ". " +
		"Check the dataset quality page on data.europa.eu to confirm the identifier " +
		"(it may include a '~~1' suffix) or verify alignment on the source portal " +
		"(quality may be marked as 'Non disponibile o identificativo non allineato')."
}

// ServiceError is a non-2xx, non-404 answer from the MQA service.
type ServiceError struct {
	Status int
	URL    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("MQA API error (%d): %s", e.Status, e.URL)
}
