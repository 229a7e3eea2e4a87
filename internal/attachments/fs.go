package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/datalib/internal/apperr"
)

// FS implements Provider backed by a local directory.
type FS struct {
	root      string // absolute path to the attachments directory
	urlPrefix string
}

// NewFS creates an FS provider rooted at dir, creating it if needed.
// Stored files are addressed as urlPrefix + "/" + name.
func NewFS(dir, urlPrefix string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("attachments: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("attachments: mkdir root: %w", err)
	}
	return &FS{root: abs, urlPrefix: urlPrefix}, nil
}

// safePath resolves name under the root and rejects anything that escapes
// it.
func (f *FS) safePath(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	abs := filepath.Join(f.root, name)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("attachments: path escapes root: %s", name)
	}
	return abs, nil
}

// Put atomically writes r: tmp file → fsync → link into place.
func (f *FS) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) (Object, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return Object{}, err
	}
	if _, err := os.Stat(abs); err == nil {
		return Object{}, fmt.Errorf("attachments: %s: %w", name, apperr.ErrAlreadyExists)
	}

	tmp, err := os.CreateTemp(f.root, ".datalib-tmp-*")
	if err != nil {
		return Object{}, fmt.Errorf("attachments: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Object{}, fmt.Errorf("attachments: write temp: %w", err)
	}
	if written > MaxUploadBytes {
		return Object{}, fmt.Errorf("attachments: file too large: exceeds %d bytes", MaxUploadBytes)
	}
	if err := tmp.Sync(); err != nil {
		return Object{}, fmt.Errorf("attachments: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("attachments: close temp: %w", err)
	}
	// Link fails if a concurrent Put claimed the name first.
	if err := os.Link(tmpName, abs); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Object{}, fmt.Errorf("attachments: %s: %w", name, apperr.ErrAlreadyExists)
		}
		return Object{}, fmt.Errorf("attachments: link: %w", err)
	}
	_ = os.Remove(tmpName)
	success = true
	return Object{Name: name, Size: written, URL: publicURL(f.urlPrefix, name)}, nil
}

// Open returns the file stored under name.
func (f *FS) Open(_ context.Context, name string) (io.ReadCloser, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("attachments: open %s: %w", name, err)
	}
	return file, nil
}

// Delete removes the file stored under name.
func (f *FS) Delete(_ context.Context, name string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("attachments: delete %s: %w", name, err)
	}
	return nil
}
