package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workflowDoc = `
id: greet
clauses:
  - id: a
    text: WHEN ready == true THEN set(greeted, true)
context:
  ready: true
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadKernel(t *testing.T) {
	eng := operad.New()

	ko, vars, err := LoadKernel(eng, writeFile(t, "greet.yaml", workflowDoc))
	require.NoError(t, err)
	assert.Equal(t, "greet", ko.ID)
	assert.Equal(t, domain.Bool(true), vars["ready"])

	data, err := eng.Marshal(ko)
	require.NoError(t, err)
	again, vars, err := LoadKernel(eng, writeFile(t, "greet.json", string(data)))
	require.NoError(t, err)
	assert.Nil(t, vars)
	assert.Equal(t, ko.ID, again.ID)
	assert.Len(t, again.Nodes, 1)

	_, _, err = LoadKernel(eng, writeFile(t, "bad.json", `{"format":"nope"}`))
	assert.Error(t, err)

	_, _, err = LoadKernel(eng, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseVars(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    domain.Vars
		wantErr bool
	}{
		{name: "empty", in: nil, want: domain.Vars{}},
		{
			name: "scalars",
			in:   []string{"n=3", "ok=true", `s="quoted"`, "plain=hello world"},
			want: domain.Vars{
				"n":     domain.Number(3),
				"ok":    domain.Bool(true),
				"s":     domain.String("quoted"),
				"plain": domain.String("hello world"),
			},
		},
		{name: "value with equals", in: []string{"expr=a=b"}, want: domain.Vars{"expr": domain.String("a=b")}},
		{name: "object falls back to text", in: []string{`o={"a":1}`}, want: domain.Vars{"o": domain.String(`{"a":1}`)}},
		{name: "missing equals", in: []string{"novalue"}, wantErr: true},
		{name: "empty key", in: []string{"=1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVars(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeEvents(t *testing.T) {
	in := `{"type":"meeting_added","data":{"room":"b"}}

{"id":"e2","type":"focus"}
`
	events, err := DecodeEvents(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "meeting_added", events[0].Type)
	assert.Equal(t, "b", events[0].Data["room"])
	assert.Equal(t, "e2", events[1].ID)

	_, err = DecodeEvents(strings.NewReader("{\"id\":\"x\"}\n"))
	assert.ErrorContains(t, err, "line 1")

	_, err = DecodeEvents(strings.NewReader("{\"type\":\"a\"}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestFeed(t *testing.T) {
	events := []domain.ReflexEvent{{Type: "a"}, {Type: "b"}}
	var got []string
	for ev := range Feed(context.Background(), events) {
		got = append(got, ev.Type)
	}
	assert.Equal(t, []string{"a", "b"}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := Feed(ctx, events)
	for range ch {
	}
}
