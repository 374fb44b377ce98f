// Package subgraph implements a GraphQL query client for indexed ledger data
// with offset pagination, field flattening and best-effort numeric typing.
package subgraph

import (
	"context"
	"encoding/json"
	"errors"

	"network-kpi/internal/httpx"
)

// Transport executes one query and returns the response data keyed by
// top-level field name.
type Transport interface {
	Execute(ctx context.Context, query string) (map[string]json.RawMessage, error)
}

// HTTPTransport implements Transport over HTTP POST.
type HTTPTransport struct {
	endpoint string
	http     *httpx.Client
}

// NewHTTPTransport creates a transport for a GraphQL endpoint.
func NewHTTPTransport(endpoint string, client *httpx.Client) *HTTPTransport {
	if client == nil {
		client = httpx.New()
	}
	return &HTTPTransport{endpoint: endpoint, http: client}
}

// Endpoint returns the URL queries are sent to.
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphQLError             `json:"errors"`
}

type graphQLError struct {
	Message   string          `json:"message"`
	Locations []ErrorLocation `json:"locations"`
}

// Execute runs query. HTTP failures become *TransportError and a non-empty
// error list becomes *ApplicationError.
func (t *HTTPTransport) Execute(ctx context.Context, query string) (map[string]json.RawMessage, error) {
	var resp graphQLResponse
	if err := t.http.PostJSON(ctx, t.endpoint, graphQLRequest{Query: query}, &resp); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) {
			return nil, &TransportError{Status: statusErr.Code, Reason: statusErr.Reason, Err: err}
		}
		return nil, &TransportError{Err: err}
	}

	if len(resp.Errors) > 0 {
		first := resp.Errors[0]
		return nil, &ApplicationError{Message: first.Message, Locations: first.Locations}
	}
	return resp.Data, nil
}
