package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// maxNameAttempts bounds the search for a free name when several uploads
// land in the same millisecond.
const maxNameAttempts = 1000

// DiskManager keeps assets as plain files in one directory.
type DiskManager struct {
	dir    string
	logger *zap.Logger
}

func NewDiskManager(dir string, logger *zap.Logger) *DiskManager {
	return &DiskManager{
		dir:    dir,
		logger: logger,
	}
}

// Dir returns the asset directory.
func (m *DiskManager) Dir() string {
	return m.dir
}

// Store writes data under a fresh name. Existing files are never
// overwritten: on a name clash the timestamp is advanced by a millisecond.
func (m *DiskManager) Store(ctx context.Context, data io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(m.dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", m.dir, err)
	}

	ts := nowFunc()
	for i := 0; i < maxNameAttempts; i++ {
		name := NameFor(ts, ext)
		if err := validName(name); err != nil {
			return "", err
		}
		path := filepath.Join(m.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o660)
		if errors.Is(err, os.ErrExist) {
			ts = ts.Add(time.Millisecond)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}

		if _, err := io.Copy(f, data); err != nil {
			f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("close %s: %w", path, err)
		}

		m.logger.Info("asset stored", zap.String("name", name))
		return name, nil
	}

	return "", fmt.Errorf("no free asset name after %d attempts", maxNameAttempts)
}

// Remove deletes the named asset. A file that is already gone is only logged.
func (m *DiskManager) Remove(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	path := filepath.Join(m.dir, name)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("asset already missing", zap.String("path", path))
			return nil
		}
		return err
	}

	m.logger.Info("asset deleted", zap.String("path", path))
	return nil
}
