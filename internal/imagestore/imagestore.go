// Package imagestore provides durable storage for uploaded product images.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	caterrors "github.com/shopfox/catalog/internal/errors"
)

// allowedTypes is the fixed allow-list of declared MIME types accepted for upload.
var allowedTypes = map[string]struct{}{
	"image/png":  {},
	"image/gif":  {},
	"image/jpg":  {},
	"image/jpeg": {},
}

// Upload carries one uploaded image blob into the store.
type Upload struct {
	// Name is the original file name; only its extension is preserved.
	Name string
	// ContentType is the declared MIME type. It is validated against the
	// allow-list; the content itself is not inspected.
	ContentType string
	// Content is the blob. It is consumed exactly once by Save.
	Content io.Reader
}

// Store is an interface for image blob storage.
// It abstracts the underlying medium, allowing for different implementations (e.g. local disk, object storage).
type Store interface {
	// Save validates the upload's declared type, writes the blob under a
	// collision-resistant name and returns a stable reference usable both for
	// retrieval and for Remove.
	// Returns ErrUnsupportedImageType before any bytes are written if the
	// declared type is not on the allow-list.
	Save(ctx context.Context, up Upload) (string, error)

	// Remove deletes the blob behind a reference previously returned by Save.
	// A missing blob is not an error.
	Remove(ctx context.Context, ref string) error
}

// Allowed reports whether the declared MIME type is on the upload allow-list.
func Allowed(contentType string) bool {
	_, ok := allowedTypes[contentType]
	return ok
}

// uniqueName builds a file name from a millisecond timestamp, a random
// component and the upload's original extension, so that concurrent saves
// cannot collide.
func uniqueName(original string) string {
	return fmt.Sprintf("images-%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), filepath.Ext(original))
}

// DiskStore implements Store on the local filesystem. References are URL
// paths under PublicPrefix, which the HTTP layer serves as static assets.
type DiskStore struct {
	dir          string
	publicPrefix string
}

// NewDiskStore creates a DiskStore rooted at dir. The directory is created if
// it does not exist. publicPrefix is the URL path prefix under which stored
// files are served.
func NewDiskStore(dir, publicPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, publicPrefix: publicPrefix}, nil
}

// Dir returns the directory files are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save writes the upload to disk and returns its public path.
func (s *DiskStore) Save(_ context.Context, up Upload) (string, error) {
	if !Allowed(up.ContentType) {
		return "", caterrors.ErrUnsupportedImageType
	}

	name := uniqueName(up.Name)
	dst := filepath.Join(s.dir, name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := io.Copy(f, up.Content); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to close image file: %w", err)
	}

	return path.Join(s.publicPrefix, name), nil
}

// Remove unlinks the file behind ref. A reference outside the store's public
// prefix or an already-deleted file is a no-op.
func (s *DiskStore) Remove(_ context.Context, ref string) error {
	name := path.Base(ref)
	if name == "." || name == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image file %s: %w", name, err)
	}
	return nil
}
