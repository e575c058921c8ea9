package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalFileStore keeps proof-of-payment attachments on local disk and serves
// them by relative URL. Object storage can replace it behind the FileStore
// interface without touching callers.
type LocalFileStore struct {
	dir     string
	baseURL string
}

// NewLocalFileStore creates a LocalFileStore rooted at dir
func NewLocalFileStore(dir, baseURL string) (*LocalFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	return &LocalFileStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

var extensionsByMime = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// Store writes the attachment and returns its URL. Unknown MIME types are
// rejected here as the last line of defense; handlers validate first.
func (fs *LocalFileStore) Store(data []byte, mimeType string) (string, error) {
	ext, ok := extensionsByMime[mimeType]
	if !ok {
		return "", fmt.Errorf("unsupported attachment type %s", mimeType)
	}

	name := uuid.New().String() + ext
	if err := os.WriteFile(filepath.Join(fs.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store attachment: %w", err)
	}
	return fs.baseURL + "/" + name, nil
}

// Retrieve reads an attachment back by its URL
func (fs *LocalFileStore) Retrieve(url string) ([]byte, error) {
	name := filepath.Base(url)
	if name == "." || name == "/" || strings.Contains(name, "..") {
		return nil, fmt.Errorf("invalid attachment URL")
	}
	data, err := os.ReadFile(filepath.Join(fs.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	return data, nil
}
