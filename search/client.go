package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// PageSize is the fixed number of results requested per page.
const PageSize = 10

var (
	ErrUnauthorized   = errors.New("search: unauthorized")
	ErrRateLimited    = errors.New("search: rate limit exceeded")
	ErrGeneric        = errors.New("search: request failed")
	ErrNetwork        = errors.New("search: no response")
	ErrPageOutOfRange = errors.New("search: page out of range")
	ErrSuperseded     = errors.New("search: superseded by a newer request")
)

// APIError is returned for non-2xx responses other than 401 and 429.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("search: unexpected status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error { return ErrGeneric }

// Message maps a search error onto the text shown to users.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized access. Please check your API key."
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded. Please try again later."
	case errors.Is(err, ErrNetwork):
		return "Network error. Please check your connection and try again."
	default:
		return "Failed to fetch images. Please try again."
	}
}

type (
	URLs struct {
		Regular string `json:"regular"`
		Full    string `json:"full"`
	}

	Photo struct {
		ID             string `json:"id"`
		URLs           URLs   `json:"urls"`
		AltDescription string `json:"alt_description"`
	}

	// Page is one page of search results.
	Page struct {
		Query      string  `json:"query"`
		Page       int     `json:"page"`
		Total      int     `json:"total"`
		TotalPages int     `json:"total_pages"`
		Results    []Photo `json:"results"`
	}

	apiResponse struct {
		Results []Photo `json:"results"`
		Total   int     `json:"total"`
	}
)

// TotalPages derives the page count from a result total.
func TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// Searcher runs a single paginated lookup.
type Searcher interface {
	Search(ctx context.Context, query string, page int) (*Page, error)
}

// Client talks to an Unsplash-compatible photo search endpoint.
type Client struct {
	endpoint   string
	accessKey  string
	httpClient *http.Client
}

func NewClient(endpoint, accessKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		endpoint:   endpoint,
		accessKey:  accessKey,
		httpClient: httpClient,
	}
}

func (c *Client) Search(ctx context.Context, query string, page int) (*Page, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	params := u.Query()
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(PageSize))
	params.Set("page", strconv.Itoa(page))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept", "application/json")

	log := logrus.WithFields(logrus.Fields{"query": query, "page": page})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Error("Error fetching images")
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Error("Error fetching images")

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, ErrUnauthorized
		case http.StatusTooManyRequests:
			return nil, ErrRateLimited
		default:
			return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		}
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.WithError(err).Error("Failed to decode search response")
		return nil, &APIError{StatusCode: resp.StatusCode, Body: err.Error()}
	}

	if payload.Results == nil {
		payload.Results = []Photo{}
	}
	log.WithField("total", payload.Total).Debug("Search completed")

	return &Page{
		Query:      query,
		Page:       page,
		Total:      payload.Total,
		TotalPages: TotalPages(payload.Total),
		Results:    payload.Results,
	}, nil
}
