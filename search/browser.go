package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is a snapshot of what a search view displays.
type State struct {
	Query      string
	Page       int
	TotalPages int
	Results    []Photo
	Loading    bool
	Error      string
}

// Browser keeps the paging state of an interactive search. Results, page
// and page count change only when a fetch succeeds; a failed fetch only
// sets the error message.
type Browser struct {
	mu       sync.Mutex
	searcher Searcher

	query      string
	page       int
	totalPages int
	results    []Photo
	loading    bool
	errMsg     string

	// seq fences responses: only the most recently started fetch may
	// update state.
	seq uint64
}

func NewBrowser(s Searcher) *Browser {
	return &Browser{
		searcher:   s,
		page:       1,
		totalPages: 1,
	}
}

// Submit searches for query starting at page 1.
func (b *Browser) Submit(ctx context.Context, query string) (State, error) {
	return b.fetch(ctx, query, 1)
}

// GoTo fetches page of the last submitted query. Pages outside
// [1, TotalPages] are rejected without a network call.
func (b *Browser) GoTo(ctx context.Context, page int) (State, error) {
	b.mu.Lock()
	if page < 1 || page > b.totalPages {
		total := b.totalPages
		state := b.snapshot()
		b.mu.Unlock()
		return state, fmt.Errorf("%w: %d not in [1, %d]", ErrPageOutOfRange, page, total)
	}
	query := b.query
	b.mu.Unlock()

	return b.fetch(ctx, query, page)
}

func (b *Browser) Next(ctx context.Context) (State, error) {
	return b.GoTo(ctx, b.State().Page+1)
}

func (b *Browser) Prev(ctx context.Context) (State, error) {
	return b.GoTo(ctx, b.State().Page-1)
}

// Select returns the full-resolution URL of the i-th displayed result.
func (b *Browser) Select(i int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.results) {
		return "", fmt.Errorf("no result at position %d", i)
	}
	return b.results[i].URLs.Full, nil
}

func (b *Browser) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// Begin marks a fetch as started and returns its sequence token. It is
// exposed for event-loop callers that run the network call elsewhere and
// report back through Complete.
func (b *Browser) Begin() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.loading = true
	b.errMsg = ""
	return b.seq
}

// Complete applies the outcome of the fetch identified by seq. Outcomes of
// superseded fetches are discarded and reported as ErrSuperseded.
func (b *Browser) Complete(seq uint64, query string, page *Page, err error) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seq != b.seq {
		logrus.WithFields(logrus.Fields{"query": query, "seq": seq}).Debug("Dropping stale search response")
		return b.snapshot(), ErrSuperseded
	}
	b.loading = false

	if err != nil {
		b.errMsg = Message(err)
		return b.snapshot(), err
	}

	b.query = query
	b.page = page.Page
	b.totalPages = page.TotalPages
	b.results = page.Results
	return b.snapshot(), nil
}

func (b *Browser) fetch(ctx context.Context, query string, page int) (State, error) {
	seq := b.Begin()
	p, err := b.searcher.Search(ctx, query, page)
	return b.Complete(seq, query, p, err)
}

func (b *Browser) snapshot() State {
	results := make([]Photo, len(b.results))
	copy(results, b.results)
	return State{
		Query:      b.query,
		Page:       b.page,
		TotalPages: b.totalPages,
		Results:    results,
		Loading:    b.loading,
		Error:      b.errMsg,
	}
}
