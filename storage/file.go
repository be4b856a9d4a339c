package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// FileBackend implements a storage backend on the local filesystem. Content
// is stored in files named by hex content hash under the base directory.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI interfaces.StorageBackendLocation
}

// NewFileBackend creates a file backend rooted at baseDir, creating the
// directory if needed.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: interfaces.StorageBackendLocation("file://" + baseDir),
	}, nil
}

func (b *FileBackend) contentPath(contentHash interfaces.Hash) string {
	return filepath.Join(b.baseDir, hex.EncodeToString(contentHash[:]))
}

// Fetch retrieves document content by its content hash.
func (b *FileBackend) Fetch(ctx context.Context, contentHash interfaces.Hash) ([]byte, error) {
	data, err := os.ReadFile(b.contentPath(contentHash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to read document content: %w", err)
	}
	return data, nil
}

// Store persists document content and returns its content hash.
func (b *FileBackend) Store(ctx context.Context, data []byte) (interfaces.Hash, error) {
	contentHash := ContentHash(data)

	path := b.contentPath(contentHash)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return interfaces.Hash{}, fmt.Errorf("failed to write document content: %w", err)
	}

	b.log.Debug("document content stored", "path", path, "bytes", len(data))
	return contentHash, nil
}

// Available reports whether the base directory is accessible.
func (b *FileBackend) Available(ctx context.Context) bool {
	info, err := os.Stat(b.baseDir)
	return err == nil && info.IsDir()
}

// Name returns a short identifier for logging.
func (b *FileBackend) Name() string {
	return "file-" + filepath.Base(b.baseDir)
}

// LocationURI returns the URI this backend was created from.
func (b *FileBackend) LocationURI() interfaces.StorageBackendLocation {
	return b.locationURI
}
