package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// MultiStorageBackend fans document content out to several backends. Stores
// succeed when at least one backend accepted the content; fetches return the
// first hit.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a multi-storage backend over the given
// backends.
func NewMultiStorageBackend(backends []interfaces.StorageBackend, log *slog.Logger) *MultiStorageBackend {
	if log == nil {
		log = slog.Default()
	}
	return &MultiStorageBackend{backends: backends, log: log}
}

// Fetch returns the content from the first backend that has it.
func (m *MultiStorageBackend) Fetch(ctx context.Context, contentHash interfaces.Hash) ([]byte, error) {
	var errs []error
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("backend unavailable", slog.String("backend", backend.Name()))
			continue
		}

		data, err := backend.Fetch(ctx, contentHash)
		if err == nil {
			return data, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
	}

	m.log.Warn("all backends failed to fetch content",
		slog.String("content_hash", contentHash.String()),
		slog.Int("failed_backends", len(errs)))
	return nil, fmt.Errorf("%w: %v", ErrContentNotFound, errs)
}

// Store writes the content to every available backend.
func (m *MultiStorageBackend) Store(ctx context.Context, data []byte) (interfaces.Hash, error) {
	contentHash := ContentHash(data)

	var stored bool
	var errs []error
	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("backend unavailable", slog.String("backend", backend.Name()))
			continue
		}

		if _, err := backend.Store(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		stored = true
	}

	if !stored {
		m.log.Error("all backends failed to store content", slog.Int("failed_backends", len(errs)))
		return contentHash, fmt.Errorf("%w: %v", ErrBackendUnavailable, errs)
	}
	return contentHash, nil
}

// Available reports whether any backend is reachable.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns a short identifier for logging.
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns the combined URI of all backends.
func (m *MultiStorageBackend) LocationURI() interfaces.StorageBackendLocation {
	locations := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		locations = append(locations, string(backend.LocationURI()))
	}
	return interfaces.StorageBackendLocation("multi:[" + strings.Join(locations, ",") + "]")
}
