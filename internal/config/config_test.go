package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Engine.MaxIterations)
	assert.InDelta(t, 0.22, cfg.Engine.EntropyCap, 1e-9)
	assert.Equal(t, 2, cfg.Engine.RetryLimit)
	assert.Equal(t, time.Second, cfg.Engine.BackoffBase)
	assert.Equal(t, 5*time.Second, cfg.Engine.BackoffCap)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)

	loop := cfg.Loop()
	assert.Equal(t, 10, loop.MaxIterations())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
store:
  backend: redis
  addr: localhost:6379
engine:
  max_iterations: 25
  backoff_base: 200ms
  backoff_cap: 2s
`), 0o644))
	t.Setenv("OPERAD_ENTROPY_CAP", "0.4")
	t.Setenv("OPERAD_STRICT", "true")
	t.Setenv("OPERAD_MAX_ITERATIONS", "30")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Store.Addr)
	assert.Equal(t, 30, cfg.Engine.MaxIterations)
	assert.InDelta(t, 0.4, cfg.Engine.EntropyCap, 1e-9)
	assert.True(t, cfg.Engine.Strict)
	assert.Equal(t, 200*time.Millisecond, cfg.Engine.BackoffBase)
	assert.Equal(t, 2*time.Second, cfg.Engine.BackoffCap)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		want string
	}{
		{name: "unknown key", file: "nope: 1\n", want: "nope"},
		{name: "bad backend", env: map[string]string{"OPERAD_STORE_BACKEND": "mongo"}, want: "Backend fails oneof"},
		{name: "redis needs addr", env: map[string]string{"OPERAD_STORE_BACKEND": "redis"}, want: "Addr fails required_if"},
		{name: "cap above one", env: map[string]string{"OPERAD_ENTROPY_CAP": "1.5"}, want: "EntropyCap fails lte"},
		{name: "backoff cap below base", env: map[string]string{"OPERAD_BACKOFF_CAP": "10ms"}, want: "BackoffCap fails gtefield"},
		{name: "key not base64", env: map[string]string{"OPERAD_STORE_ENCRYPTION_KEY": "not base64!"}, want: "EncryptionKey fails base64"},
		{name: "unparsable int", env: map[string]string{"OPERAD_MAX_ITERATIONS": "ten"}, want: "OPERAD_MAX_ITERATIONS"},
		{name: "unparsable duration", env: map[string]string{"OPERAD_BACKOFF_BASE": "soon"}, want: "OPERAD_BACKOFF_BASE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = filepath.Join(t.TempDir(), "operad.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
