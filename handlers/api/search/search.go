package search

import (
	photosearch "caption-studio/search"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// statusFor maps search failures onto the reply status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, photosearch.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, photosearch.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, photosearch.ErrNetwork):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// HandleSearch proxies a photo search: GET ?query=...&page=N.
func HandleSearch(searcher photosearch.Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("query"))
		if query == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "query is required"})
			return
		}

		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "page must be a positive integer"})
				return
			}
			page = n
		}

		result, err := searcher.Search(r.Context(), query, page)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error": err,
				"query": query,
				"page":  page,
			}).Warn("Search failed")
			render.Status(r, statusFor(err))
			render.JSON(w, r, map[string]string{"error": photosearch.Message(err)})
			return
		}

		render.JSON(w, r, result)
	}
}
