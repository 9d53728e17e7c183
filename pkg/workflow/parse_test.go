package workflow_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/schema"
	"github.com/aretw0/operad/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const morningFocus = `
id: morning-focus
role: scheduler
loop:
  bounds: 5
  entropy_cap: 0.3
  retry_limit: -1
  exit_conditions: ["trigger.focus_started == true"]
clauses:
  - id: check
    text: WHEN calendar.conflicts > 0 THEN set(blocked, true)
    outputs: [blocked]
  - id: focus
    text: WHEN blocked == true THEN trigger(focus_started)
    depends_on: [check]
reflex:
  triggers:
    meeting_added: reshuffle
  clauses:
    reshuffle:
      text: WHEN blocked == true THEN notify("team")
      mode: replace
composition:
  required: [check]
metadata:
  owner: ops
schema:
  calendar.conflicts: int
  user: string?
context:
  calendar.conflicts: 2
  user: ana
`

func TestParse(t *testing.T) {
	def, err := workflow.Parse([]byte(morningFocus))
	require.NoError(t, err)

	assert.Equal(t, "morning-focus", def.ID)
	assert.False(t, def.UsesYields())

	inputs := def.ClauseInputs()
	require.Len(t, inputs, 2)
	assert.Equal(t, "check", inputs[0].ID)
	assert.Equal(t, []string{"blocked"}, inputs[0].Outputs)
	assert.Equal(t, []string{"check"}, inputs[1].DependsOn)

	loop := def.LoopControl()
	require.NotNil(t, loop)
	assert.Equal(t, 5, loop.MaxIterations())
	assert.InDelta(t, 0.3, loop.Cap(), 1e-9)
	assert.Equal(t, 0, loop.Retries())
	assert.Equal(t, []string{"trigger.focus_started == true"}, loop.ExitConditions)

	rc := def.ReflexConfig()
	require.NotNil(t, rc)
	assert.Equal(t, "reshuffle", rc.TriggerMap["meeting_added"])
	assert.Equal(t, domain.PatchReplace, rc.Clauses["reshuffle"].Mode)
	assert.Equal(t, "reshuffle", rc.Clauses["reshuffle"].ID)

	assert.True(t, def.CompositionRules().IsRequired("check"))
	assert.Equal(t, "ops", def.Metadata["owner"])

	vars, err := def.InitialContext()
	require.NoError(t, err)
	assert.True(t, vars["calendar.conflicts"].Equal(domain.Number(2)))
	assert.True(t, vars["user"].Equal(domain.String("ana")))

	typed, err := def.ContextSchema()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"calendar.conflicts": "int", "user": "string?"}, typed.TypeMap())
	assert.NoError(t, schema.Validate(typed, vars))
}

func TestParse_JSON(t *testing.T) {
	def, err := workflow.Parse([]byte(`{"id":"j","resolve":"yields","clauses":[{"id":"a","text":"WHEN x == 1 THEN go","outputs":["y"]}]}`))
	require.NoError(t, err)
	assert.True(t, def.UsesYields())
	assert.Nil(t, def.LoopControl())
	assert.Nil(t, def.ReflexConfig())
	assert.Nil(t, def.CompositionRules())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", ``, "empty document"},
		{"not yaml", "id: [unterminated", "workflow"},
		{"unknown key", "id: a\nclauses: [{id: c, text: WHEN x == 1 THEN go}]\nbogus: 1", "bogus"},
		{"missing id", "clauses: [{id: c, text: WHEN x == 1 THEN go}]", "ID is required"},
		{"no clauses", "id: a", "Clauses is required"},
		{"bad ident", "id: a\nclauses: [{id: 'has space', text: WHEN x == 1 THEN go}]", "not a valid identifier"},
		{"duplicate clause", "id: a\nclauses: [{id: c, text: WHEN x == 1 THEN go}, {id: c, text: WHEN x == 2 THEN go}]", "duplicate"},
		{"bad mode", "id: a\nclauses: [{id: c, text: WHEN x == 1 THEN go}]\nreflex: {clauses: {r: {text: WHEN x == 1 THEN go, mode: splice}}}", "one of"},
		{"cap out of range", "id: a\nloop: {entropy_cap: 2}\nclauses: [{id: c, text: WHEN x == 1 THEN go}]", "EntropyCap"},
		{"bad resolve", "id: a\nresolve: magic\nclauses: [{id: c, text: WHEN x == 1 THEN go}]", "one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := workflow.Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(morningFocus), 0o644))

	def, err := workflow.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "morning-focus", def.ID)

	_, err = workflow.ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
