package process

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
}

func TestRunner_Execute(t *testing.T) {
	skipOnWindows(t)

	runner := NewRunner()
	runner.Register("echo_args", "sh", "-c", `echo "$OPERAD_ARG_0-$OPERAD_ARG_1"`)
	runner.Register("count", "sh", "-c", "echo 42")
	runner.Register("fail", "sh", "-c", "echo boom >&2; exit 3")

	t.Run("passes arguments via env vars", func(t *testing.T) {
		v, err := runner.Execute(context.Background(), "echo_args", []domain.Value{domain.String("a"), domain.Number(2)})
		require.NoError(t, err)
		assert.True(t, v.Equal(domain.String("a-2")))
	})

	t.Run("json scalar output keeps its type", func(t *testing.T) {
		v, err := runner.Execute(context.Background(), "count", nil)
		require.NoError(t, err)
		assert.True(t, v.Equal(domain.Number(42)))
	})

	t.Run("non-zero exit is an error", func(t *testing.T) {
		_, err := runner.Execute(context.Background(), "fail", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("unregistered tool", func(t *testing.T) {
		_, err := runner.Execute(context.Background(), "hacker_script", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	})
}

func TestRunner_Bind(t *testing.T) {
	skipOnWindows(t)

	runner := NewRunner(WithTools(map[string]ProcessConfig{
		"greet": {Command: "sh", Args: []string{"-c", `echo "hi $OPERAD_ARG_0"`}},
	}))
	reg := registry.NewRegistry()
	runner.Bind(reg)

	assert.Equal(t, []string{"greet"}, reg.Names())
	v, err := reg.Execute(context.Background(), "greet", []domain.Value{domain.String("ana")})
	require.NoError(t, err)
	assert.True(t, v.Equal(domain.String("hi ana")))
}

func TestParseOutput(t *testing.T) {
	tests := []struct {
		out  string
		want domain.Value
	}{
		{"", domain.Bool(true)},
		{"true\n", domain.Bool(true)},
		{"3.5", domain.Number(3.5)},
		{`"quoted"`, domain.String("quoted")},
		{"plain text", domain.String("plain text")},
		{`{"a":1}`, domain.String(`{"a":1}`)},
	}
	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			assert.True(t, parseOutput(tt.out).Equal(tt.want), parseOutput(tt.out).String())
		})
	}
}

func TestLoadTools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: lint
    command: golangci-lint
    args: [run]
  - command: ignored
`), 0o644))

	tools, err := LoadTools(path)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "golangci-lint", tools["lint"].Command)

	tools, err = LoadTools(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, tools)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"tools":[{"name":"x"}]}`), 0o644))
	_, err = LoadTools(bad)
	assert.ErrorContains(t, err, "no command")
}
