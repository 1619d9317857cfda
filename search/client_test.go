package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 0},
		{1, 1},
		{10, 1},
		{11, 2},
		{95, 10},
		{100, 10},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestClient_Search_Success(t *testing.T) {
	var gotQuery, gotPerPage, gotPage, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotPerPage = r.URL.Query().Get("per_page")
		gotPage = r.URL.Query().Get("page")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":95,"results":[
			{"id":"a","alt_description":"a cat","urls":{"regular":"https://img/a-r","full":"https://img/a-f"}},
			{"id":"b","alt_description":"a dog","urls":{"regular":"https://img/b-r","full":"https://img/b-f"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", srv.Client())
	page, err := c.Search(context.Background(), "cats", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotQuery != "cats" || gotPerPage != "10" || gotPage != "3" {
		t.Errorf("params = query=%q per_page=%q page=%q", gotQuery, gotPerPage, gotPage)
	}
	if gotAuth != "Client-ID secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Client-ID secret")
	}
	if page.TotalPages != 10 {
		t.Errorf("TotalPages = %d, want 10", page.TotalPages)
	}
	if page.Page != 3 || page.Total != 95 {
		t.Errorf("page = %d total = %d", page.Page, page.Total)
	}
	if len(page.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(page.Results))
	}
	if page.Results[1].URLs.Full != "https://img/b-f" {
		t.Errorf("full url = %q", page.Results[1].URLs.Full)
	}
	if page.Results[0].AltDescription != "a cat" {
		t.Errorf("alt = %q", page.Results[0].AltDescription)
	}
}

func TestClient_Search_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":0,"results":null}`))
	}))
	defer srv.Close()

	page, err := NewClient(srv.URL, "k", srv.Client()).Search(context.Background(), "nothing", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if page.Results == nil || len(page.Results) != 0 {
		t.Errorf("Results = %v, want empty slice", page.Results)
	}
	if page.TotalPages != 0 {
		t.Errorf("TotalPages = %d, want 0", page.TotalPages)
	}
}

func TestClient_Search_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
		wantMsg string
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized, "Unauthorized access. Please check your API key."},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited, "Rate limit exceeded. Please try again later."},
		{"server error", http.StatusInternalServerError, ErrGeneric, "Failed to fetch images. Please try again."},
		{"forbidden", http.StatusForbidden, ErrGeneric, "Failed to fetch images. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "k", srv.Client()).Search(context.Background(), "q", 1)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got := Message(err); got != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestClient_Search_APIErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", srv.Client()).Search(context.Background(), "q", 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
}

func TestClient_Search_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "k", nil).Search(context.Background(), "q", 1)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
	if got := Message(err); got != "Network error. Please check your connection and try again." {
		t.Errorf("Message() = %q", got)
	}
}

func TestClient_Search_RejectsPageZero(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", srv.Client()).Search(context.Background(), "q", 0)
	if !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("error = %v, want ErrPageOutOfRange", err)
	}
	if called {
		t.Error("server should not be called for page 0")
	}
}

func TestMessage_Nil(t *testing.T) {
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q, want empty", got)
	}
}
