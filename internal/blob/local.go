package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Uploader is the blob store contract consumed by the catalog service:
// either a stable URL is returned, or nothing is considered uploaded.
// No retry policy; one failed attempt is terminal for the request.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// LocalStore persists uploads on the local filesystem under Dir and hands out
// URLs below BaseURL + "/uploads/". Object names are UUIDs with the original
// file extension preserved, so two uploads never collide.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore ensures the upload directory exists and returns the store.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: failed to create upload directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

// Dir returns the directory backing the store, for static file serving.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload writes the file content to a temp file first and renames it into
// place, so a half-written object is never visible under a returned URL.
func (s *LocalStore) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("blob: upload aborted: %w", err)
	}

	objectName := uuid.New().String() + filepath.Ext(filename)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("blob: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("blob: failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("blob: failed to finalize upload: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, objectName)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("blob: failed to store upload: %w", err)
	}

	return s.baseURL + "/uploads/" + objectName, nil
}
