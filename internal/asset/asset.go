// Package asset manages uploaded profile images. Images are stored under a
// generated name derived from the upload time and the original extension,
// and removed again when the owning user record no longer refers to them.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidName is returned for names that are not a bare file name.
var ErrInvalidName = errors.New("invalid asset name")

// Manager is implemented by every asset backend.
type Manager interface {
	Store(ctx context.Context, data io.Reader, ext string) (string, error)
	Remove(ctx context.Context, name string) error
}

// Upload is an image handed over by the multipart decoder.
type Upload struct {
	Data io.Reader
	// Ext is the extension of the original file name, with or without the dot.
	Ext string
}

// nowFunc is replaced in tests.
var nowFunc = time.Now

// NameFor builds the asset name for an upload made at t: the unix time in
// milliseconds followed by the normalized extension.
func NameFor(t time.Time, ext string) string {
	return fmt.Sprintf("%d%s", t.UnixMilli(), normalizeExt(ext))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// validName rejects anything that could escape the asset directory.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
