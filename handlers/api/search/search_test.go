package search

import (
	photosearch "caption-studio/search"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Mock searcher for testing
type mockSearcher struct {
	err       error
	lastQuery string
	lastPage  int
}

func (m *mockSearcher) Search(ctx context.Context, query string, page int) (*photosearch.Page, error) {
	m.lastQuery = query
	m.lastPage = page
	if m.err != nil {
		return nil, m.err
	}
	return &photosearch.Page{
		Query:      query,
		Page:       page,
		Total:      21,
		TotalPages: 3,
		Results: []photosearch.Photo{
			{ID: "p1", URLs: photosearch.URLs{Regular: "https://img/r", Full: "https://img/f"}},
		},
	}, nil
}

func TestHandleSearch_Success(t *testing.T) {
	m := &mockSearcher{}
	req := httptest.NewRequest(http.MethodGet, "/api/v2/search?query=mountains&page=2", nil)
	rec := httptest.NewRecorder()

	HandleSearch(m)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	if m.lastQuery != "mountains" || m.lastPage != 2 {
		t.Errorf("searcher called with %q page %d", m.lastQuery, m.lastPage)
	}

	var page photosearch.Page
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if page.TotalPages != 3 || len(page.Results) != 1 || page.Results[0].URLs.Full != "https://img/f" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestHandleSearch_DefaultsToFirstPage(t *testing.T) {
	m := &mockSearcher{}
	rec := httptest.NewRecorder()
	HandleSearch(m)(rec, httptest.NewRequest(http.MethodGet, "/api/v2/search?query=sea", nil))

	if m.lastPage != 1 {
		t.Errorf("page = %d, want 1", m.lastPage)
	}
}

func TestHandleSearch_BadRequests(t *testing.T) {
	for _, target := range []string{
		"/api/v2/search",
		"/api/v2/search?query=%20%20",
		"/api/v2/search?query=a&page=0",
		"/api/v2/search?query=a&page=two",
	} {
		rec := httptest.NewRecorder()
		HandleSearch(&mockSearcher{})(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestHandleSearch_ErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{photosearch.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized access. Please check your API key."},
		{photosearch.ErrRateLimited, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."},
		{fmt.Errorf("%w: dial tcp", photosearch.ErrNetwork), http.StatusServiceUnavailable, "Network error. Please check your connection and try again."},
		{&photosearch.APIError{StatusCode: 500}, http.StatusBadGateway, "Failed to fetch images. Please try again."},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		HandleSearch(&mockSearcher{err: tt.err})(rec, httptest.NewRequest(http.MethodGet, "/api/v2/search?query=x", nil))

		if rec.Code != tt.wantStatus {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.wantStatus)
		}
		var body map[string]string
		json.NewDecoder(rec.Body).Decode(&body)
		if body["error"] != tt.wantMsg {
			t.Errorf("%v: error = %q, want %q", tt.err, body["error"], tt.wantMsg)
		}
	}
}
