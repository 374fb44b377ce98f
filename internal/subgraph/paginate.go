package subgraph

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"network-kpi/internal/logger"
	"network-kpi/internal/observability"
)

// Pagination placeholders substituted into query templates.
const (
	PlaceholderFirst = "{{first}}"
	PlaceholderSkip  = "{{skip}}"
)

// Default pagination limits.
const (
	DefaultPageSize = 100
	DefaultPageCap  = 5000
)

// Query is a named query template containing both pagination placeholders.
type Query struct {
	Name     string
	Template string
}

// Validate checks that the template carries both pagination placeholders.
func (q Query) Validate() error {
	var missing []string
	for _, p := range []string{PlaceholderFirst, PlaceholderSkip} {
		if !strings.Contains(q.Template, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{Query: q.Name, Missing: missing}
	}
	return nil
}

// Render substitutes page size and offset into the template.
func (q Query) Render(first, skip int) string {
	return strings.NewReplacer(
		PlaceholderFirst, strconv.Itoa(first),
		PlaceholderSkip, strconv.Itoa(skip),
	).Replace(q.Template)
}

// Result is the concatenation of every fetched page.
type Result struct {
	Records []Record
	Pages   int
	// Warning is set when pagination stopped at the offset cap.
	Warning *PartialResultWarning
}

// Paginator repeats a query with increasing offsets until exhaustion or the cap.
type Paginator struct {
	transport Transport
	pageSize  int
	pageCap   int
	log       *slog.Logger
}

// PaginatorOption configures Paginator.
type PaginatorOption func(*Paginator)

// WithPageSize sets the number of records requested per page.
func WithPageSize(n int) PaginatorOption {
	return func(p *Paginator) {
		p.pageSize = n
	}
}

// WithPageCap sets the maximum offset accepted by the upstream.
func WithPageCap(n int) PaginatorOption {
	return func(p *Paginator) {
		p.pageCap = n
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) PaginatorOption {
	return func(p *Paginator) {
		p.log = log
	}
}

// NewPaginator creates a Paginator over transport.
func NewPaginator(transport Transport, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		transport: transport,
		pageSize:  DefaultPageSize,
		pageCap:   DefaultPageCap,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.OrDiscard(p.log)
	return p
}

// Transport returns the underlying transport.
func (p *Paginator) Transport() Transport {
	return p.transport
}

// Paginate fetches every page of q starting at offset start.
// Termination is checked in order after each page:
//  1. fewer records than the page size: last page
//  2. offset reached the cap: stop with a PartialResultWarning
//  3. otherwise advance the offset by the page size
func (p *Paginator) Paginate(ctx context.Context, q Query, start int) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if p.pageSize <= 0 {
		return nil, fmt.Errorf("query %s: page size must be positive", q.Name)
	}

	result := &Result{}
	offset := start
	for {
		data, err := p.transport.Execute(ctx, q.Render(p.pageSize, offset))
		if err != nil {
			return nil, fmt.Errorf("query %s at offset %d: %w", q.Name, offset, err)
		}
		page, err := FlattenRecordSet(data)
		if err != nil {
			return nil, fmt.Errorf("query %s at offset %d: %w", q.Name, offset, err)
		}
		CoerceColumns(page)

		result.Records = append(result.Records, page...)
		result.Pages++
		observability.RecordQueryPage(q.Name)

		if len(page) < p.pageSize {
			p.log.Debug("subgraph: query exhausted", "query", q.Name, "records", len(result.Records), "pages", result.Pages)
			break
		}
		if offset >= p.pageCap {
			result.Warning = &PartialResultWarning{Query: q.Name, Offset: offset, Records: len(result.Records)}
			observability.RecordPartialResult(q.Name)
			p.log.Warn("subgraph: reached maximum offset, result truncated",
				"query", q.Name, "offset", offset, "records", len(result.Records))
			break
		}
		offset += p.pageSize
	}
	return result, nil
}

// Query runs a single non-paginated query and flattens its response.
func (p *Paginator) Query(ctx context.Context, name, query string) ([]Record, error) {
	data, err := p.transport.Execute(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	records, err := FlattenRecordSet(data)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	CoerceColumns(records)
	return records, nil
}
