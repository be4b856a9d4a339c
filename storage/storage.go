// Package storage implements content-addressed storage backends for raw
// trade-document content. Uploaded document bytes are stored under their
// sha256 hash in one or more configured backends, and the resulting location
// becomes the document's external URL in the shipment's document index.
package storage

import (
	"crypto/sha256"
	"fmt"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// ErrContentNotFound is returned when the requested content hash is not
// present in a backend.
var ErrContentNotFound = fmt.Errorf("%w: document content not found", interfaces.ErrNotFound)

// ErrBackendUnavailable is returned when a backend cannot be reached.
var ErrBackendUnavailable = fmt.Errorf("%w: storage backend unreachable", interfaces.ErrUnavailable)

// ContentHash computes the content address of document bytes.
func ContentHash(data []byte) interfaces.Hash {
	return interfaces.Hash(sha256.Sum256(data))
}
