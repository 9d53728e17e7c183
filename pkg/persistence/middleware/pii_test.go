package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/operad/pkg/adapters/memory"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password", "^ssn"})
	require.NoError(t, err)
	secure := mw(underlying)

	ctx := context.Background()
	state := domain.NewExecutionState("run-1", "k")
	state.Context = domain.Vars{
		"username":      domain.String("jdoe"),
		"user_password": domain.String("secret123"),
		"ssn.number":    domain.String("999-99-9999"),
		"user.ssn":      domain.String("kept"),
	}
	state.Outputs = domain.Vars{"password_reset": domain.Bool(true)}
	require.NoError(t, secure.Save(ctx, "run-1", state))

	assert.Equal(t, domain.String("secret123"), state.Context["user_password"], "in-memory state untouched")

	stored, err := underlying.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.String("jdoe"), stored.Context["username"])
	assert.Equal(t, domain.String(middleware.Mask), stored.Context["user_password"])
	assert.Equal(t, domain.String(middleware.Mask), stored.Context["ssn.number"])
	assert.Equal(t, domain.String("kept"), stored.Context["user.ssn"])
	assert.Equal(t, domain.String(middleware.Mask), stored.Outputs["password_reset"])
}

func TestPIIMiddleware_BadPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	underlying := memory.NewStore()
	mask, err := middleware.NewPIIMiddleware([]string{"token"})
	require.NoError(t, err)
	seal := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	store := middleware.Chain(underlying, mask, seal)

	ctx := context.Background()
	state := domain.NewExecutionState("run-1", "k")
	state.Context = domain.Vars{"token": domain.String("abc"), "n": domain.Number(1)}
	require.NoError(t, store.Save(ctx, "run-1", state))

	raw, err := underlying.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.NotContains(t, raw.Context, "n")

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.String(middleware.Mask), loaded.Context["token"])
	assert.Equal(t, domain.Number(1), loaded.Context["n"])
}
