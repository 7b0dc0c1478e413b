// Package snapshot packs the index store and catalog into a single zstd-compressed tar
// archive and moves archives to and from S3-compatible object storage.
package snapshot

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Archive member names.
const (
	memberIndex    = "index.bin"
	memberMetadata = "metadata.json"
	memberDatabase = "catalog.db"
)

// ErrIncomplete is returned when an archive lacks the index or metadata member.
var ErrIncomplete = errors.New("snapshot must contain both index and metadata")

// Files locates the artifacts captured by a snapshot. DatabasePath is optional.
type Files struct {
	IndexPath    string
	MetadataPath string
	DatabasePath string
}

func (f Files) members() []struct{ name, path string } {
	m := []struct{ name, path string }{
		{memberIndex, f.IndexPath},
		{memberMetadata, f.MetadataPath},
	}
	if f.DatabasePath != "" {
		m = append(m, struct{ name, path string }{memberDatabase, f.DatabasePath})
	}
	return m
}

func (f Files) pathFor(member string) string {
	for _, m := range f.members() {
		if m.name == member {
			return m.path
		}
	}
	return ""
}

// Export writes a tar.zst archive of files to w. Index and metadata must exist; a missing
// database is skipped. Callers must not mutate the store while exporting.
func Export(ctx context.Context, files Files, w io.Writer) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	tw := tar.NewWriter(enc)
	for _, m := range files.members() {
		if err := ctx.Err(); err != nil {
			_ = enc.Close()
			return err
		}
		err := addFile(tw, m.name, m.path)
		if errors.Is(err, os.ErrNotExist) && m.name == memberDatabase {
			continue
		}
		if err != nil {
			_ = enc.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		_ = enc.Close()
		return fmt.Errorf("close tar: %w", err)
	}
	return enc.Close()
}

func addFile(tw *tar.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	hdr := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Restore extracts an archive produced by Export into files. Every member is first written
// to a temporary sibling; nothing is renamed into place unless the archive is complete.
func Restore(ctx context.Context, files Files, r io.Reader) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	staged := map[string]string{} // final path -> temp path
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}

	tr := tar.NewReader(dec)
	for {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			cleanup()
			return fmt.Errorf("read archive: %w", err)
		}
		dst := files.pathFor(hdr.Name)
		if dst == "" || hdr.Typeflag != tar.TypeReg {
			continue
		}
		tmp, err := stage(tr, dst)
		if err != nil {
			cleanup()
			return fmt.Errorf("restore %s: %w", hdr.Name, err)
		}
		staged[dst] = tmp
	}

	if staged[files.IndexPath] == "" || staged[files.MetadataPath] == "" {
		cleanup()
		return ErrIncomplete
	}
	for dst, tmp := range staged {
		if err := os.Rename(tmp, dst); err != nil {
			cleanup()
			return fmt.Errorf("restore %s: %w", filepath.Base(dst), err)
		}
		delete(staged, dst)
	}
	return nil
}

func stage(r io.Reader, dst string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".restore-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// FileName returns the archive name for a snapshot taken at t.
func FileName(t time.Time) string {
	return "vidgrep-" + t.UTC().Format("20060102T150405Z") + ".tar.zst"
}

// ExportFile writes a snapshot into dir and returns its path.
func ExportFile(ctx context.Context, files Files, dir string, logger *zap.Logger) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, FileName(time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	if err := Export(ctx, files, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	if logger != nil {
		logger.Info("snapshot exported", zap.String("path", path))
	}
	return path, nil
}

// RestoreFile restores a snapshot archive from path.
func RestoreFile(ctx context.Context, files Files, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Restore(ctx, files, f)
}
