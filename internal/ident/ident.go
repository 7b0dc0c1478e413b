// Package ident derives deterministic identifiers for videos and search results.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// VideoID returns the identifier for a source video: its file name without extension.
func VideoID(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ResultKey is the canonical string hashed by ResultID. Timestamp and score are rounded
// to milliseconds/thousandths so equal results hash equally across runs.
func ResultKey(videoID string, timestamp, score float64, rank int) string {
	return fmt.Sprintf("%s-%.3f-%.3f-%d", videoID, timestamp, score, rank)
}

// ResultID returns a stable hex identifier for a ranked result. It is used as the file
// name of rendered clips and thumbnails. rank is 1-based.
func ResultID(videoID string, timestamp, score float64, rank int) string {
	sum := sha256.Sum256([]byte(ResultKey(videoID, timestamp, score, rank)))
	return hex.EncodeToString(sum[:16])
}
