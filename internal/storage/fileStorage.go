package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileStorage keeps the users document in a single JSON file.
// Saves go through a temporary file and a rename, so readers never
// observe a partially written document.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileStorage prepares a file backed storage at p, creating the parent
// directory if needed. The document itself is created on the first Save.
func NewFileStorage(p string, logger *zap.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0770); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	return &FileStorage{
		path:   p,
		logger: logger,
	}, nil
}

// Path returns the location of the users document.
func (fs *FileStorage) Path() string {
	return fs.path
}

func (fs *FileStorage) Load(ctx context.Context) (*Document, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	b, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoDocument
		}
		return nil, fmt.Errorf("read %s: %w", fs.path, err)
	}

	doc, err := DecodeDocument(b)
	if err != nil {
		return nil, err
	}

	fs.logger.Debug("users document loaded", zap.String("path", fs.path), zap.Int("users", len(doc.Users)))
	return doc, nil
}

func (fs *FileStorage) Save(ctx context.Context, doc *Document) error {
	b, err := EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode users document: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, base := filepath.Split(fs.path)
	tmp := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")

	if err := writeSynced(tmp, b); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, fs.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", fs.path, err)
	}

	return nil
}

func writeSynced(name string, b []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0660)
	if err != nil {
		return err
	}

	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// PingContext reports whether the directory holding the document is reachable.
func (fs *FileStorage) PingContext(ctx context.Context) error {
	dir := filepath.Dir(fs.path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (fs *FileStorage) Close() error {
	return nil
}
