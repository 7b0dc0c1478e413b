// Package cli formats command results for the terminal and for other programs.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hyperjump/vidgrep/internal/ingest"
	"github.com/hyperjump/vidgrep/internal/models"
	"github.com/hyperjump/vidgrep/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a flag value to an OutputFormat. An empty value means text.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return OutputText, fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if len(response.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
	} else {
		fmt.Fprintf(w, "Found %d results:\n", len(response.Results))
		for i, r := range response.Results {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%d. Video: %s\n", i+1, r.VideoID)
			fmt.Fprintf(w, "   Timestamp: %s (%s)\n", utils.FormatTimestamp(r.Timestamp), utils.FormatSeconds(r.Timestamp))
			fmt.Fprintf(w, "   Similarity Score: %.4f\n", r.Score)
			if r.ClipAvailable && r.ClipURL != "" {
				fmt.Fprintf(w, "   Clip: %s\n", r.ClipURL)
			}
			if r.ImageAvailable && r.ImageURL != "" {
				fmt.Fprintf(w, "   Image: %s\n", r.ImageURL)
			}
		}
	}
	if response.Debug != "" {
		fmt.Fprintf(w, "\nDebug: %s\n", response.Debug)
	}
	return nil
}

// WriteIngestSummary writes the outcome of an ingest run.
func WriteIngestSummary(w io.Writer, sum *ingest.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, sum)
	}
	for _, v := range sum.Videos {
		switch {
		case v.Skipped:
			fmt.Fprintf(w, "Skipped %s (unchanged)\n", v.VideoID)
		case v.Replaced > 0:
			fmt.Fprintf(w, "Ingested %s: %d frames (replaced %d)\n", v.VideoID, v.Frames, v.Replaced)
		default:
			fmt.Fprintf(w, "Ingested %s: %d frames\n", v.VideoID, v.Frames)
		}
	}
	for _, e := range sum.Errors {
		fmt.Fprintf(w, "Failed %s: %s\n", e.Path, e.Error)
	}
	fmt.Fprintf(w, "\nIndex stats:\n")
	writeStats(w, sum.Stats)
	fmt.Fprintf(w, "Run %s finished in %s\n", sum.RunID, sum.Duration.Round(time.Millisecond))
	return nil
}

func writeStats(w io.Writer, s models.StoreStats) {
	fmt.Fprintf(w, "  Total frames: %d\n", s.TotalRows)
	fmt.Fprintf(w, "  Unique videos: %d\n", s.UniqueVideoCount)
	fmt.Fprintf(w, "  Dimension: %d\n", s.Dimension)
}

// DeleteResult is the outcome of deleting a video.
type DeleteResult struct {
	OK        bool `json:"ok"`
	Removed   int  `json:"removed"`
	Remaining int  `json:"remaining"`
}

// WriteDeleteResult writes the outcome of a delete.
func WriteDeleteResult(w io.Writer, videoID string, res DeleteResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Removed == 0 {
		fmt.Fprintf(w, "No frames found for %s (%d remaining)\n", videoID, res.Remaining)
		return nil
	}
	fmt.Fprintf(w, "Removed %d frames of %s (%d remaining)\n", res.Removed, videoID, res.Remaining)
	return nil
}

// Status is the report printed by the status command.
type Status struct {
	models.StoreStats
	IndexType      string `json:"index_type"`
	IndexPath      string `json:"index_path"`
	MetadataPath   string `json:"metadata_path"`
	DatabasePath   string `json:"database_path"`
	CatalogVideos  int    `json:"catalog_videos"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
}

// WriteStatus writes a status report.
func WriteStatus(w io.Writer, s Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintln(w, "Index:")
	writeStats(w, s.StoreStats)
	fmt.Fprintf(w, "  Type: %s\n", s.IndexType)
	fmt.Fprintf(w, "  Index file: %s\n", s.IndexPath)
	fmt.Fprintf(w, "  Metadata file: %s\n", s.MetadataPath)
	fmt.Fprintln(w, "Catalog:")
	fmt.Fprintf(w, "  Videos: %d\n", s.CatalogVideos)
	fmt.Fprintf(w, "  Database: %s\n", s.DatabasePath)
	fmt.Fprintf(w, "Disk usage: %s\n", humanize.Bytes(uint64(max(s.DiskUsageBytes, 0))))
	return nil
}

// WriteVideos writes the catalog listing.
func WriteVideos(w io.Writer, videos []*models.Video, format OutputFormat) error {
	if format == OutputJSON {
		if videos == nil {
			videos = []*models.Video{}
		}
		return writeJSON(w, videos)
	}
	if len(videos) == 0 {
		fmt.Fprintln(w, "No videos ingested.")
		return nil
	}
	for _, v := range videos {
		fmt.Fprintf(w, "%s\t%d frames\t%s\t%s\t%s\n",
			v.ID, v.FrameCount, humanize.Bytes(uint64(max(v.Size, 0))), humanize.Time(v.IngestedAt), v.Path)
	}
	return nil
}
