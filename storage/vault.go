package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// VaultBackend implements a storage backend using HashiCorp Vault's KV v2
// engine. Suitable for document content that must stay inside the
// organization's secret store.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI interfaces.StorageBackendLocation
}

// NewVaultBackend creates a Vault storage backend authenticated by token.
func NewVaultBackend(address, token, mountPath, dataPath string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.TrimSuffix(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: interfaces.StorageBackendLocation(fmt.Sprintf("vault://%s/%s/%s", address, mountPath, dataPath)),
	}, nil
}

func (b *VaultBackend) secretPath(contentHash interfaces.Hash) string {
	// KV v2 path structure.
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, hex.EncodeToString(contentHash[:]))
}

// Fetch retrieves document content from Vault by its content hash.
func (b *VaultBackend) Fetch(ctx context.Context, contentHash interfaces.Hash) ([]byte, error) {
	path := b.secretPath(contentHash)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("failed to read from Vault", slog.String("path", path), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrContentNotFound
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}
	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}

	return []byte(content), nil
}

// Store saves document content to Vault and returns its content hash.
func (b *VaultBackend) Store(ctx context.Context, data []byte) (interfaces.Hash, error) {
	contentHash := ContentHash(data)
	path := b.secretPath(contentHash)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": string(data),
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		b.log.Error("failed to write to Vault", slog.String("path", path), "err", err)
		return contentHash, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return contentHash, nil
}

// Available checks that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}
	return health.Initialized && !health.Sealed
}

// Name returns a short identifier for logging.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI this backend was created from.
func (b *VaultBackend) LocationURI() interfaces.StorageBackendLocation {
	return b.locationURI
}
