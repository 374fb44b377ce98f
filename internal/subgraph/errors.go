package subgraph

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a malformed query template. It is a caller bug
// and is never retried.
type ConfigurationError struct {
	Query   string
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("query %s: missing pagination placeholder(s) %s", e.Query, strings.Join(e.Missing, ", "))
}

// TransportError reports an HTTP-level failure after retries were exhausted.
// Status is zero when no response was received.
type TransportError struct {
	Status int
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("query failed - %s. status %d", e.Reason, e.Status)
	}
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorLocation is a position inside the query text.
type ErrorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ApplicationError reports a logical error returned by the upstream in the
// response error list. Only the first error is kept.
type ApplicationError struct {
	Message   string
	Locations []ErrorLocation
}

func (e *ApplicationError) Error() string {
	locs := make([]string, len(e.Locations))
	for i, l := range e.Locations {
		locs[i] = fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("error in query - %s at [%s]", e.Message, strings.Join(locs, " "))
}

// PartialResultWarning marks a result truncated at the upstream offset cap.
// The records fetched so far are still returned and usable.
type PartialResultWarning struct {
	Query   string
	Offset  int
	Records int
}

func (w *PartialResultWarning) Error() string {
	return fmt.Sprintf("query %s reached maximum offset %d after %d records; result may be truncated",
		w.Query, w.Offset, w.Records)
}
