package metadata

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/vidgrep/internal/models"
)

func rec(video string, ts float64) models.FrameRecord {
	return models.FrameRecord{VideoID: video, Timestamp: ts, FramePath: video + ".jpg", VideoPath: video + ".mp4"}
}

func TestLedger_AppendAt(t *testing.T) {
	l := New()
	l.Append(rec("a", 0), rec("a", 1))
	l.Append(rec("b", 0))
	if l.Len() != 3 {
		t.Fatalf("Len=%d, want 3", l.Len())
	}
	got, ok := l.At(2)
	if !ok || got.VideoID != "b" {
		t.Errorf("At(2)=%+v, %v", got, ok)
	}
	if _, ok := l.At(3); ok {
		t.Error("At(3) should be out of range")
	}
}

func TestLedger_RemoveWhere(t *testing.T) {
	l := FromRecords([]models.FrameRecord{rec("a", 0), rec("b", 0), rec("a", 1), rec("b", 1), rec("c", 0)})
	kept, rows, removed := l.RemoveWhere(func(r models.FrameRecord) bool { return r.VideoID == "a" })
	if removed != 2 {
		t.Errorf("removed=%d, want 2", removed)
	}
	if len(kept) != 3 || kept[0].VideoID != "b" || kept[1].VideoID != "b" || kept[2].VideoID != "c" {
		t.Errorf("kept out of order: %+v", kept)
	}
	if kept[0].Timestamp != 0 || kept[1].Timestamp != 1 {
		t.Errorf("relative order not preserved: %+v", kept)
	}
	want := []uint32{1, 3, 4}
	gotRows := rows.ToArray()
	if len(gotRows) != len(want) {
		t.Fatalf("rows=%v, want %v", gotRows, want)
	}
	for i := range want {
		if gotRows[i] != want[i] {
			t.Fatalf("rows=%v, want %v", gotRows, want)
		}
	}
	if l.Len() != 5 {
		t.Error("RemoveWhere must not modify the ledger")
	}
}

func TestLedger_RemoveWhereNoMatch(t *testing.T) {
	l := FromRecords([]models.FrameRecord{rec("a", 0)})
	kept, rows, removed := l.RemoveWhere(func(r models.FrameRecord) bool { return r.VideoID == "zzz" })
	if removed != 0 || len(kept) != 1 || rows.GetCardinality() != 1 {
		t.Errorf("removed=%d kept=%d rows=%d", removed, len(kept), rows.GetCardinality())
	}
}

func TestLedger_VideoIDs(t *testing.T) {
	l := FromRecords([]models.FrameRecord{rec("b", 0), rec("a", 0), rec("b", 1)})
	ids := l.VideoIDs()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Errorf("VideoIDs=%v", ids)
	}
}

func TestLedger_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	l := FromRecords([]models.FrameRecord{rec("a", 0.5), rec("b", 12.25)})
	if err := l.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("Len=%d", loaded.Len())
	}
	got, _ := loaded.At(1)
	if got != rec("b", 12.25) {
		t.Errorf("At(1)=%+v", got)
	}
}

func TestLedger_EmptyIsArray(t *testing.T) {
	var sb strings.Builder
	if _, err := New().WriteTo(&sb); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(sb.String()) != "[]" {
		t.Errorf("empty ledger encoded as %q", sb.String())
	}
}

func TestRead_Invalid(t *testing.T) {
	if _, err := Read(strings.NewReader(`{"video_id":"a"}`)); err == nil {
		t.Error("expected error for non-array metadata")
	}
	l, err := Read(strings.NewReader("null"))
	if err != nil || l.Len() != 0 {
		t.Errorf("null metadata: len=%v err=%v", l, err)
	}
}
