package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/operad/pkg/adapters/memory"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, cfg middleware.EncryptionConfig) middleware.Middleware {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	ctx := context.Background()
	state := domain.NewExecutionState("run-1", "k")
	state.Status = domain.StatusFrozen
	state.Iteration = 3
	state.Context = domain.Vars{"secret": domain.String("my-secret-sauce")}
	state.MarkCompleted("a")
	require.NoError(t, secure.Save(ctx, "run-1", state))

	stored, err := underlying.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.NotContains(t, stored.Context, "secret")
	assert.Contains(t, stored.Context, middleware.EnvelopeKey)
	assert.Empty(t, stored.CompletedNodes)
	assert.Equal(t, "k", stored.KernelID)
	assert.Equal(t, domain.StatusFrozen, stored.Status)
	assert.Equal(t, 3, stored.Iteration)

	loaded, err := secure.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.String("my-secret-sauce"), loaded.Context["secret"])
	assert.Equal(t, []string{"a"}, loaded.CompletedNodes)

	ids, err := secure.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)
	require.NoError(t, secure.Delete(ctx, "run-1"))
	_, err = secure.Load(ctx, "run-1")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	withOld := encrypted(t, middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	withNew := encrypted(t, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})(underlying)

	ctx := context.Background()
	state := domain.NewExecutionState("run-1", "k")
	state.Context = domain.Vars{"data": domain.String("old")}
	require.NoError(t, withOld.Save(ctx, "run-1", state))

	loaded, err := withNew.Load(ctx, "run-1")
	require.NoError(t, err, "fallback key decrypts")
	assert.Equal(t, domain.String("old"), loaded.Context["data"])

	loaded.Context["data"] = domain.String("new")
	require.NoError(t, withNew.Save(ctx, "run-1", loaded))
	_, err = withOld.Load(ctx, "run-1")
	assert.Error(t, err, "old key cannot read data sealed with the new one")
}

func TestEncryptionMiddleware_PlainStateRejected(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "run-1", domain.NewExecutionState("run-1", "k")))

	secure := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(ctx, "run-1")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}
