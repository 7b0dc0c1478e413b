package search

import (
	"math"

	"github.com/hyperjump/vidgrep/internal/models"
)

// Dedupe walks hits in order and keeps a hit only if it is at least window seconds away
// from every hit already kept for the same video. It stops once limit hits are kept;
// limit <= 0 means no limit. The input order (score descending) is preserved.
func Dedupe(hits []models.SearchHit, window float64, limit int) []models.SearchHit {
	kept := make([]models.SearchHit, 0, min(len(hits), max(limit, 0)))
	seen := make(map[string][]float64)
	for _, h := range hits {
		if limit > 0 && len(kept) >= limit {
			break
		}
		if tooClose(seen[h.VideoID], h.Timestamp, window) {
			continue
		}
		seen[h.VideoID] = append(seen[h.VideoID], h.Timestamp)
		kept = append(kept, h)
	}
	return kept
}

func tooClose(kept []float64, ts, window float64) bool {
	for _, k := range kept {
		if math.Abs(ts-k) < window {
			return true
		}
	}
	return false
}
