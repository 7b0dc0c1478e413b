// Package metadata provides the frame metadata ledger kept in row order with a vector index.
package metadata

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hyperjump/vidgrep/internal/models"
)

// Ledger is an ordered, append-only list of frame records. Record i describes row i of
// the paired vector index.
type Ledger struct {
	records []models.FrameRecord
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{records: make([]models.FrameRecord, 0)}
}

// FromRecords returns a ledger holding a copy of records.
func FromRecords(records []models.FrameRecord) *Ledger {
	return &Ledger{records: slices.Clone(records)}
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	return len(l.records)
}

// At returns the record for row.
func (l *Ledger) At(row int) (models.FrameRecord, bool) {
	if row < 0 || row >= len(l.records) {
		return models.FrameRecord{}, false
	}
	return l.records[row], true
}

// Append adds records at the end.
func (l *Ledger) Append(records ...models.FrameRecord) {
	l.records = append(l.records, records...)
}

// Records returns a copy of all records in row order.
func (l *Ledger) Records() []models.FrameRecord {
	return slices.Clone(l.records)
}

// RemoveWhere partitions the ledger without modifying it. kept holds the records for
// which remove returned false, in original order; keptRows holds their row numbers.
func (l *Ledger) RemoveWhere(remove func(models.FrameRecord) bool) (kept []models.FrameRecord, keptRows *roaring.Bitmap, removed int) {
	kept = make([]models.FrameRecord, 0, len(l.records))
	keptRows = roaring.New()
	for i, rec := range l.records {
		if remove(rec) {
			removed++
			continue
		}
		kept = append(kept, rec)
		keptRows.Add(uint32(i))
	}
	return kept, keptRows, removed
}

// VideoIDs returns the distinct video IDs in order of first appearance.
func (l *Ledger) VideoIDs() []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, rec := range l.records {
		if _, ok := seen[rec.VideoID]; ok {
			continue
		}
		seen[rec.VideoID] = struct{}{}
		ids = append(ids, rec.VideoID)
	}
	return ids
}

// WriteTo writes the ledger as an indented JSON array.
func (l *Ledger) WriteTo(w io.Writer) (int64, error) {
	records := l.records
	if records == nil {
		records = []models.FrameRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}
	data = append(data, '\n')
	n, err := w.Write(data)
	return int64(n), err
}

// Save writes the ledger JSON to path.
func (l *Ledger) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if _, err := l.WriteTo(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush metadata file: %w", err)
	}
	return f.Close()
}

// Load reads a ledger written by Save.
func Load(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

// Read decodes a JSON array of frame records.
func Read(r io.Reader) (*Ledger, error) {
	var records []models.FrameRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if records == nil {
		records = make([]models.FrameRecord, 0)
	}
	return &Ledger{records: records}, nil
}
