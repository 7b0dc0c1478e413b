package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Save writes both artifacts to temporary files next to their targets, fsyncs them, and
// renames them into place. In-memory state is never modified; on failure the temporary
// files are removed and the previous artifacts stay untouched.
func (s *Store) Save() error {
	if s.cfg.IndexPath == "" || s.cfg.MetadataPath == "" {
		return errors.New("save: index and metadata paths must be configured")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	indexTmp, err := tempSibling(s.cfg.IndexPath)
	if err != nil {
		return err
	}
	defer os.Remove(indexTmp)
	metaTmp, err := tempSibling(s.cfg.MetadataPath)
	if err != nil {
		return err
	}
	defer os.Remove(metaTmp)

	if err := s.index.Save(indexTmp); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	if err := syncFile(indexTmp); err != nil {
		return err
	}
	if err := s.ledger.Save(metaTmp); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	if err := syncFile(metaTmp); err != nil {
		return err
	}

	if err := os.Rename(indexTmp, s.cfg.IndexPath); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	if err := os.Rename(metaTmp, s.cfg.MetadataPath); err != nil {
		return fmt.Errorf("rename metadata: %w", err)
	}
	syncDir(filepath.Dir(s.cfg.IndexPath))
	syncDir(filepath.Dir(s.cfg.MetadataPath))

	s.logger.Debug("store saved",
		zap.String("index_path", s.cfg.IndexPath),
		zap.String("metadata_path", s.cfg.MetadataPath),
		zap.Int("rows", s.index.Len()))
	return nil
}

// tempSibling creates an empty temp file in the directory of path and returns its name.
func tempSibling(path string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	_ = f.Chmod(0644)
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return nil
}

// syncDir makes a rename durable on POSIX; best effort.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
