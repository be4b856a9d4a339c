package storage

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

func TestMemoryBackendRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	content := []byte("bill of lading content")
	contentHash, err := backend.Store(ctx, content)
	require.NoError(t, err)
	assert.Equal(t, ContentHash(content), contentHash)

	fetched, err := backend.Fetch(ctx, contentHash)
	require.NoError(t, err)
	assert.Equal(t, content, fetched)
}

func TestMemoryBackendNotFound(t *testing.T) {
	backend := NewMemoryBackend()

	_, err := backend.Fetch(context.Background(), ContentHash([]byte("missing")))
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestFileBackendRoundTrip(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)
	ctx := context.Background()

	content := []byte("phytosanitary certificate content")
	contentHash, err := backend.Store(ctx, content)
	require.NoError(t, err)

	fetched, err := backend.Fetch(ctx, contentHash)
	require.NoError(t, err)
	assert.Equal(t, content, fetched)

	_, err = backend.Fetch(ctx, ContentHash([]byte("missing")))
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	assert.True(t, backend.Available(ctx))
}

func TestMultiBackendFallsBack(t *testing.T) {
	primary := NewMemoryBackend()
	secondary := NewMemoryBackend()
	multi := NewMultiStorageBackend([]interfaces.StorageBackend{primary, secondary}, slog.Default())
	ctx := context.Background()

	content := []byte("export invoice content")

	// Stored through the multi-backend, content lands in both.
	contentHash, err := multi.Store(ctx, content)
	require.NoError(t, err)

	fromPrimary, err := primary.Fetch(ctx, contentHash)
	require.NoError(t, err)
	fromSecondary, err := secondary.Fetch(ctx, contentHash)
	require.NoError(t, err)
	assert.Equal(t, fromPrimary, fromSecondary)

	// Content present only in the secondary is still found.
	onlySecondary := []byte("weight certificate content")
	secondaryHash, err := secondary.Store(ctx, onlySecondary)
	require.NoError(t, err)

	fetched, err := multi.Fetch(ctx, secondaryHash)
	require.NoError(t, err)
	assert.Equal(t, onlySecondary, fetched)
}

func TestFactoryCreatesBackends(t *testing.T) {
	factory := NewFactory(slog.Default())

	backend, err := factory.StorageBackendFor("memory://")
	require.NoError(t, err)
	assert.Equal(t, "memory", backend.Name())

	backend, err = factory.StorageBackendFor(interfaces.StorageBackendLocation("file://" + t.TempDir()))
	require.NoError(t, err)
	assert.Contains(t, backend.Name(), "file-")

	_, err = factory.StorageBackendFor("carrier-pigeon://loft")
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

func TestFactoryMultiBackendSkipsInvalid(t *testing.T) {
	factory := NewFactory(slog.Default())

	backend, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		"memory://",
		"carrier-pigeon://loft",
	})
	require.NoError(t, err)
	assert.Equal(t, "multi-storage", backend.Name())

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{"carrier-pigeon://loft"})
	assert.Error(t, err)
}
