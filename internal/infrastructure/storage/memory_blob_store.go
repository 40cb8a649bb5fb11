package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/editdesk/backend/internal/domain/fulfillment"
	"github.com/google/uuid"
)

var _ fulfillment.BlobStore = (*MemoryBlobStore)(nil)

// MemoryBlobStore keeps blobs in process memory. It backs the "memory"
// storage driver used in development and tests.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
}

// NewMemoryBlobStore creates an empty MemoryBlobStore
func NewMemoryBlobStore(baseURL string) *MemoryBlobStore {
	if baseURL == "" {
		baseURL = "memory://deliverables"
	}
	return &MemoryBlobStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string][]byte),
	}
}

// Upload reads body fully and stores it under key
func (m *MemoryBlobStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, progress fulfillment.ProgressFunc) (fulfillment.StoredObject, error) {
	if key == "" {
		return fulfillment.StoredObject{}, errors.New("storage key is required")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, newProgressReader(body, progress)); err != nil {
		return fulfillment.StoredObject{}, err
	}
	if err := ctx.Err(); err != nil {
		return fulfillment.StoredObject{}, err
	}

	m.mu.Lock()
	m.objects[key] = buf.Bytes()
	m.mu.Unlock()
	return fulfillment.StoredObject{URL: m.baseURL + "/" + key, Path: key}, nil
}

// Download writes the order's blobs to w as a zip archive in key order
func (m *MemoryBlobStore) Download(ctx context.Context, orderID uuid.UUID, w io.Writer, include func(path string) bool) error {
	prefix := fulfillment.DeliverablePrefix(orderID)

	m.mu.RLock()
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) && (include == nil || include(key)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	blobs := make([][]byte, len(keys))
	for i, key := range keys {
		blobs[i] = m.objects[key]
	}
	m.mu.RUnlock()

	archive := newArchive(w, 32<<10)
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := archive.add(key, bytes.NewReader(blobs[i])); err != nil {
			return err
		}
	}
	return archive.close()
}

// Get returns a stored blob
func (m *MemoryBlobStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	return b, ok
}
