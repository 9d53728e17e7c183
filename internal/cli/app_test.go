package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/operad/internal/config"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOpenStores(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name       string
		cfg        config.StoreConfig
		wantLocker bool
		wantErr    bool
	}{
		{name: "default", cfg: config.StoreConfig{}},
		{name: "memory", cfg: config.StoreConfig{Backend: config.BackendMemory}},
		{name: "file", cfg: config.StoreConfig{Backend: config.BackendFile, Path: t.TempDir()}},
		{name: "badger", cfg: config.StoreConfig{Backend: config.BackendBadger, Path: t.TempDir()}},
		{name: "redis", cfg: config.StoreConfig{Backend: config.BackendRedis, Addr: mr.Addr(), Prefix: "t:"}, wantLocker: true},
		{name: "unknown", cfg: config.StoreConfig{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores, err := OpenStores(tt.cfg, quiet)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if stores.Close != nil {
				t.Cleanup(func() { _ = stores.Close() })
			}
			assert.Equal(t, tt.wantLocker, stores.Locker != nil)

			ctx := context.Background()
			state := domain.NewExecutionState("r1", "k")
			require.NoError(t, stores.States.Save(ctx, "r1", state))
			got, err := stores.States.Load(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, "k", got.KernelID)
		})
	}
}

func TestOpenStores_Protected(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	stores, err := OpenStores(config.StoreConfig{
		Backend:       config.BackendMemory,
		EncryptionKey: key,
		Mask:          []string{"token"},
	}, quiet)
	require.NoError(t, err)

	ctx := context.Background()
	state := domain.NewExecutionState("r1", "k")
	state.Context = domain.Vars{"token": domain.String("abc"), "n": domain.Number(1)}
	require.NoError(t, stores.States.Save(ctx, "r1", state))

	got, err := stores.States.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.String("***"), got.Context["token"])
	assert.Equal(t, domain.Number(1), got.Context["n"])

	_, err = OpenStores(config.StoreConfig{Backend: config.BackendMemory, EncryptionKey: "c2hvcnQ="}, quiet)
	assert.Error(t, err, "key of the wrong size")
	_, err = OpenStores(config.StoreConfig{Backend: config.BackendMemory, Mask: []string{"("}}, quiet)
	assert.Error(t, err)
}

func TestSetup_RunsKernel(t *testing.T) {
	cfg := config.Default()
	app, err := Setup(cfg, quiet)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })

	ko, err := app.Engine.Compile("k", []domain.ClauseInput{
		{ID: "a", Text: "WHEN x == 1 THEN set(y, 2)"},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, app.Manager.Register(ctx, ko))
	res, err := app.Manager.Start(ctx, "k", domain.Vars{"x": domain.Number(1)}, 0)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.Number(2), res.State.Context["y"])
	assert.NotEmpty(t, res.State.RunID)
}

func TestSetup_BadTools(t *testing.T) {
	cfg := config.Default()
	cfg.Tools = writeFile(t, "tools.yaml", "tools: [not, a, map")
	_, err := Setup(cfg, quiet)
	require.Error(t, err)
}
