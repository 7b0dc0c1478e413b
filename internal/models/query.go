package models

import (
	"errors"
	"strings"
)

// MaxTopK caps the number of raw candidates a single query may request.
const MaxTopK = 1000

// ErrEmptyQuery is returned by Validate for a blank query.
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchQuery is a text search request. Zero values fall back to configured defaults.
type SearchQuery struct {
	Query  string  `json:"query"`
	TopK   int     `json:"top_k,omitempty"`
	Limit  int     `json:"limit,omitempty"`
	Window float64 `json:"window,omitempty"` // dedup window in seconds
	Render *bool   `json:"render,omitempty"` // render clips and thumbnails for kept results
}

// Validate trims the query text and clamps counts. Returns an error if the query is empty.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.TopK < 0 {
		q.TopK = 0
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	if q.Limit < 0 {
		q.Limit = 0
	}
	if q.Window < 0 {
		q.Window = 0
	}
	return nil
}
