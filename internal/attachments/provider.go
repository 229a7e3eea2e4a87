// Package attachments stores the files referenced by data items. Files live
// on the local file system or in an S3-compatible bucket; either way a
// stored file is described by an Object whose fields feed the item's
// file_name, file_size and file_url columns.
package attachments

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxUploadBytes caps the size of a single attachment.
const MaxUploadBytes = 50 << 20 // 50 MB

// Provider is the interface for attachment storage.
type Provider interface {
	// Put stores r under name. size may be -1 when unknown. It fails with
	// apperr.ErrAlreadyExists if name is taken.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (Object, error)
	// Open returns the content stored under name, or apperr.ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes name, or returns apperr.ErrNotFound.
	Delete(ctx context.Context, name string) error
}

// Object describes a stored attachment.
type Object struct {
	Name string `json:"file_name"`
	Size int64  `json:"file_size"`
	URL  string `json:"file_url"`
}

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeName strips directories and unsafe characters from a client
// supplied file name. An empty result is replaced by a random name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeNameRe.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = uuid.NewString()
	}
	return name
}

// checkName rejects names that are not a single plain path element.
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("attachments: filename is required")
	}
	if name != path.Base(name) || name != filepath.Base(name) || strings.Contains(name, "..") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("attachments: invalid filename: %s", name)
	}
	return nil
}

func publicURL(prefix, name string) string {
	return strings.TrimRight(prefix, "/") + "/" + name
}
