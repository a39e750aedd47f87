// Package storage owns file placement for uploads and derived artifacts.
// Generated names are unique without coordination, so concurrent workers
// never need a lock around allocation.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"videoforge/internal/errs"
)

type Category string

const (
	CategoryUpload    Category = "upload"
	CategoryProcessed Category = "processed"
)

type Manager struct {
	uploadDir    string
	processedDir string
}

func NewManager(uploadDir, processedDir string) *Manager {
	return &Manager{uploadDir: uploadDir, processedDir: processedDir}
}

func (m *Manager) dir(category Category) string {
	if category == CategoryUpload {
		return m.uploadDir
	}
	return m.processedDir
}

// Dir exposes the backing directory for a category; the sweeper walks it.
func (m *Manager) Dir(category Category) string { return m.dir(category) }

// EnsureDir creates the backing directory tree. Safe to call repeatedly.
func (m *Manager) EnsureDir(category Category) error {
	if err := os.MkdirAll(m.dir(category), 0o755); err != nil {
		return errs.Wrap(errs.Storage, err, "create %s directory", category)
	}
	return nil
}

// Allocate returns a fresh path <dir>/<timestamp>_<uuid>_<discriminator><ext>.
// The timestamp keeps names lexicographically sorted by creation time and
// the UUID makes two allocations in the same instant distinct.
func (m *Manager) Allocate(category Category, discriminator, ext string) (string, error) {
	if err := m.EnsureDir(category); err != nil {
		return "", err
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ts := strings.ReplaceAll(time.Now().UTC().Format("2006-01-02T15:04:05.000000"), ":", "-") + "Z"
	name := fmt.Sprintf("%s_%s_%s%s", ts, uuid.NewString(), discriminator, ext)
	return filepath.Join(m.dir(category), name), nil
}

// Save streams r to path. The partial file is discarded on any write error
// so a failed upload never leaves a half-written object behind.
func (m *Manager) Save(r io.Reader, path string) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, errs.Wrap(errs.Storage, err, "create %s", path)
	}
	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		m.Discard(path)
		return 0, errs.Wrap(errs.Storage, err, "write %s", path)
	}
	return n, nil
}

// Discard removes a partially written file. A missing file is fine: the
// failure being cleaned up may have happened before the first byte.
func (m *Manager) Discard(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.Wrap(errs.Storage, err, "remove %s", path)
	}
	return nil
}
