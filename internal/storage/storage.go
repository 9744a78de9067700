package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for uploads that are not a recognised image.
var ErrUnsupportedType = errors.New("unsupported image type")

// BlobStore persists uploaded files and returns the URL they are served from.
type BlobStore interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// SniffImage reads the head of r to determine its content type and returns a
// reader that replays the full content. Only jpeg, png, gif and webp pass.
func SniffImage(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if _, ok := imageExtensions[contentType]; !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return contentType, io.MultiReader(bytes.NewReader(head), r), nil
}

// ObjectKey builds a unique key for an upload owned by ownerID, for example
// "users/<id>/<uuid>.png".
func ObjectKey(prefix, ownerID, contentType string) string {
	return fmt.Sprintf("%s/%s/%s%s", strings.Trim(prefix, "/"), ownerID, uuid.NewString(), imageExtensions[contentType])
}

// MemoryStorage keeps uploads in memory. It backs the memory driver and tests.
type MemoryStorage struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage whose URLs start with baseURL.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "memory://uploads"
	}
	return &MemoryStorage{baseURL: strings.TrimSuffix(baseURL, "/"), objects: make(map[string][]byte)}
}

func (m *MemoryStorage) Save(_ context.Context, key, _ string, r io.Reader) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("memory storage: empty key")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("memory storage read %s: %w", key, err)
	}

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()

	return m.baseURL + "/" + key, nil
}

// Object returns a stored upload.
func (m *MemoryStorage) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

var _ BlobStore = (*MemoryStorage)(nil)
