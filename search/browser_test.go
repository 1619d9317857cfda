package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// Mock searcher that serves a fixed number of results per query
type mockSearcher struct {
	mu    sync.Mutex
	total int
	err   error
	calls []string
}

func (m *mockSearcher) Search(ctx context.Context, query string, page int) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("%s:%d", query, page))
	if m.err != nil {
		return nil, m.err
	}

	var results []Photo
	start := (page - 1) * PageSize
	for i := start; i < m.total && i < start+PageSize; i++ {
		id := fmt.Sprintf("%s-%d", query, i)
		results = append(results, Photo{
			ID:   id,
			URLs: URLs{Regular: "https://img/" + id + "/r", Full: "https://img/" + id + "/f"},
		})
	}
	return &Page{
		Query:      query,
		Page:       page,
		Total:      m.total,
		TotalPages: TotalPages(m.total),
		Results:    results,
	}, nil
}

func (m *mockSearcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestBrowser_InitialState(t *testing.T) {
	b := NewBrowser(&mockSearcher{})
	s := b.State()
	if s.Page != 1 || s.TotalPages != 1 {
		t.Errorf("initial page = %d of %d, want 1 of 1", s.Page, s.TotalPages)
	}
	if len(s.Results) != 0 || s.Error != "" || s.Loading {
		t.Errorf("unexpected initial state: %+v", s)
	}
}

func TestBrowser_Submit(t *testing.T) {
	m := &mockSearcher{total: 25}
	b := NewBrowser(m)

	s, err := b.Submit(context.Background(), "cats")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if s.Query != "cats" || s.Page != 1 || s.TotalPages != 3 {
		t.Errorf("state = %q page %d of %d", s.Query, s.Page, s.TotalPages)
	}
	if len(s.Results) != PageSize {
		t.Errorf("got %d results, want %d", len(s.Results), PageSize)
	}
	if s.Loading {
		t.Error("Loading should be false after completion")
	}
}

func TestBrowser_Paging(t *testing.T) {
	m := &mockSearcher{total: 25}
	b := NewBrowser(m)
	ctx := context.Background()

	if _, err := b.Submit(ctx, "cats"); err != nil {
		t.Fatal(err)
	}

	s, err := b.Next(ctx)
	if err != nil || s.Page != 2 {
		t.Fatalf("Next() = page %d, err %v", s.Page, err)
	}
	s, err = b.Next(ctx)
	if err != nil || s.Page != 3 {
		t.Fatalf("Next() = page %d, err %v", s.Page, err)
	}
	if len(s.Results) != 5 {
		t.Errorf("last page has %d results, want 5", len(s.Results))
	}

	calls := m.callCount()
	if _, err := b.Next(ctx); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("Next() past last page error = %v, want ErrPageOutOfRange", err)
	}
	if m.callCount() != calls {
		t.Error("out-of-range request should not reach the searcher")
	}
	if b.State().Page != 3 {
		t.Errorf("page changed to %d after rejected request", b.State().Page)
	}

	s, err = b.Prev(ctx)
	if err != nil || s.Page != 2 {
		t.Fatalf("Prev() = page %d, err %v", s.Page, err)
	}
}

func TestBrowser_PrevOnFirstPageRejected(t *testing.T) {
	m := &mockSearcher{total: 25}
	b := NewBrowser(m)
	ctx := context.Background()
	b.Submit(ctx, "cats")

	calls := m.callCount()
	if _, err := b.Prev(ctx); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("Prev() error = %v, want ErrPageOutOfRange", err)
	}
	if _, err := b.GoTo(ctx, 0); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("GoTo(0) error = %v, want ErrPageOutOfRange", err)
	}
	if m.callCount() != calls {
		t.Error("rejected requests should not reach the searcher")
	}
}

func TestBrowser_SubmitResetsPage(t *testing.T) {
	m := &mockSearcher{total: 40}
	b := NewBrowser(m)
	ctx := context.Background()

	b.Submit(ctx, "cats")
	b.GoTo(ctx, 4)
	s, err := b.Submit(ctx, "dogs")
	if err != nil {
		t.Fatal(err)
	}
	if s.Page != 1 || s.Query != "dogs" {
		t.Errorf("after new submit: page %d query %q", s.Page, s.Query)
	}
}

func TestBrowser_PagingUsesSubmittedQuery(t *testing.T) {
	m := &mockSearcher{total: 25}
	b := NewBrowser(m)
	ctx := context.Background()

	b.Submit(ctx, "cats")
	b.Next(ctx)

	if last := m.calls[len(m.calls)-1]; last != "cats:2" {
		t.Errorf("last call = %q, want cats:2", last)
	}
}

func TestBrowser_FailureKeepsResults(t *testing.T) {
	m := &mockSearcher{total: 25}
	b := NewBrowser(m)
	ctx := context.Background()

	b.Submit(ctx, "cats")
	before := b.State()

	m.err = ErrRateLimited
	s, err := b.Next(ctx)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Next() error = %v", err)
	}
	if s.Error != "Rate limit exceeded. Please try again later." {
		t.Errorf("Error = %q", s.Error)
	}
	if s.Page != before.Page || len(s.Results) != len(before.Results) {
		t.Errorf("failed fetch changed state: page %d results %d", s.Page, len(s.Results))
	}

	m.err = nil
	s, err = b.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Error != "" {
		t.Errorf("successful fetch should clear error, got %q", s.Error)
	}
}

func TestBrowser_StaleResponseDropped(t *testing.T) {
	b := NewBrowser(&mockSearcher{})

	first := b.Begin()
	second := b.Begin()

	newer := &Page{Query: "dogs", Page: 1, TotalPages: 1, Results: []Photo{{ID: "dog"}}}
	if _, err := b.Complete(second, "dogs", newer, nil); err != nil {
		t.Fatalf("Complete(second) error = %v", err)
	}

	older := &Page{Query: "cats", Page: 1, TotalPages: 1, Results: []Photo{{ID: "cat"}}}
	s, err := b.Complete(first, "cats", older, nil)
	if !errors.Is(err, ErrSuperseded) {
		t.Errorf("Complete(first) error = %v, want ErrSuperseded", err)
	}
	if s.Query != "dogs" || s.Results[0].ID != "dog" {
		t.Errorf("stale response overwrote state: %+v", s)
	}
}

func TestBrowser_LoadingWhileNewerPending(t *testing.T) {
	b := NewBrowser(&mockSearcher{})

	first := b.Begin()
	b.Begin()
	b.Complete(first, "cats", &Page{Page: 1, TotalPages: 1}, nil)

	if !b.State().Loading {
		t.Error("Loading should remain true while a newer fetch is pending")
	}
}

func TestBrowser_Select(t *testing.T) {
	b := NewBrowser(&mockSearcher{total: 3})
	b.Submit(context.Background(), "cats")

	url, err := b.Select(2)
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://img/cats-2/f" {
		t.Errorf("Select(2) = %q", url)
	}
	if _, err := b.Select(3); err == nil {
		t.Error("Select(3) should fail with 3 results")
	}
}
