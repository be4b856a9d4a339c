package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// IPFSBackend implements a storage backend on an IPFS node. IPFS addresses
// content by its own CID rather than sha256, so the backend keeps a pin map
// from content hash to CID for fetches.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	log         *slog.Logger
	locationURI interfaces.StorageBackendLocation

	mutex sync.RWMutex
	cids  map[interfaces.Hash]string
}

// NewIPFSBackend creates an IPFS storage backend connected to the node's API
// at host:port.
func NewIPFSBackend(host, port string, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	return &IPFSBackend{
		shell:       shell.NewShell(apiURL),
		host:        host,
		port:        port,
		log:         log,
		locationURI: interfaces.StorageBackendLocation("ipfs://" + apiURL),
		cids:        make(map[interfaces.Hash]string),
	}, nil
}

// Fetch retrieves document content from IPFS by its content hash.
func (b *IPFSBackend) Fetch(ctx context.Context, contentHash interfaces.Hash) ([]byte, error) {
	b.mutex.RLock()
	cid, ok := b.cids[contentHash]
	b.mutex.RUnlock()
	if !ok {
		return nil, ErrContentNotFound
	}

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable", slog.String("host", b.host), slog.String("port", b.port))
		return nil, ErrBackendUnavailable
	}

	reader, err := b.shell.Cat(cid)
	if err != nil {
		if strings.Contains(err.Error(), "no link named") {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to fetch document from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read document from IPFS: %w", err)
	}

	b.log.Debug("fetched document content from IPFS",
		slog.String("cid", cid),
		slog.Int("bytes", len(data)))
	return data, nil
}

// Store adds document content to IPFS and returns its content hash.
func (b *IPFSBackend) Store(ctx context.Context, data []byte) (interfaces.Hash, error) {
	contentHash := ContentHash(data)

	if !b.shell.IsUp() {
		return contentHash, ErrBackendUnavailable
	}

	cid, err := b.shell.Add(bytes.NewReader(data))
	if err != nil {
		return contentHash, fmt.Errorf("failed to add document to IPFS: %w", err)
	}

	b.mutex.Lock()
	b.cids[contentHash] = cid
	b.mutex.Unlock()

	b.log.Debug("stored document content in IPFS",
		slog.String("cid", cid),
		slog.String("content_hash", contentHash.String()))
	return contentHash, nil
}

// Available checks if the IPFS node is reachable.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a short identifier for logging.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI this backend was created from.
func (b *IPFSBackend) LocationURI() interfaces.StorageBackendLocation {
	return b.locationURI
}
