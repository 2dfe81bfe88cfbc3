// Package file persists the activity log as a zstd-compressed JSON file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/gosuda/actrec/internal/domain"
)

// Store keeps the log in a single file, replaced atomically on every save.
type Store struct {
	path string
}

// New returns a Store writing to path, creating its directory if needed.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("file.New: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file means nothing was saved yet.
func (s *Store) Load(_ context.Context) (*domain.ActivityLog, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file.Store.Load: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("file.Store.Load: zstd: %w", err)
	}
	defer dec.Close()

	var l domain.ActivityLog
	if err = json.NewDecoder(dec).Decode(&l); err != nil {
		return nil, fmt.Errorf("file.Store.Load: decode: %w", err)
	}
	return &l, nil
}

// Save writes l to a temporary file next to the snapshot and renames it into
// place, so a crash mid-write never leaves a truncated snapshot.
func (s *Store) Save(_ context.Context, l *domain.ActivityLog) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("file.Store.Save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		return fmt.Errorf("file.Store.Save: zstd: %w", err)
	}
	if err = json.NewEncoder(enc).Encode(l); err != nil {
		_ = enc.Close()
		return fmt.Errorf("file.Store.Save: encode: %w", err)
	}
	if err = enc.Close(); err != nil {
		return fmt.Errorf("file.Store.Save: zstd close: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("file.Store.Save: close: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("file.Store.Save: rename: %w", err)
	}
	return nil
}
