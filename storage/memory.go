package storage

import (
	"context"
	"sync"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// MemoryBackend implements an in-memory storage backend for tests and
// ephemeral deployments.
type MemoryBackend struct {
	mutex   sync.RWMutex
	content map[interfaces.Hash][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{content: make(map[interfaces.Hash][]byte)}
}

// Fetch retrieves document content by its content hash.
func (b *MemoryBackend) Fetch(ctx context.Context, contentHash interfaces.Hash) ([]byte, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	data, ok := b.content[contentHash]
	if !ok {
		return nil, ErrContentNotFound
	}
	return append([]byte(nil), data...), nil
}

// Store persists document content and returns its content hash.
func (b *MemoryBackend) Store(ctx context.Context, data []byte) (interfaces.Hash, error) {
	contentHash := ContentHash(data)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.content[contentHash] = append([]byte(nil), data...)

	return contentHash, nil
}

// Available always reports true.
func (b *MemoryBackend) Available(ctx context.Context) bool {
	return true
}

// Name returns a short identifier for logging.
func (b *MemoryBackend) Name() string {
	return "memory"
}

// LocationURI returns the URI this backend was created from.
func (b *MemoryBackend) LocationURI() interfaces.StorageBackendLocation {
	return "memory://"
}
