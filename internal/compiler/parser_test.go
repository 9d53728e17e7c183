package compiler

import (
	"errors"
	"testing"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		cond   string
		action domain.Action
	}{
		{
			name:   "string literal with simple action",
			text:   `WHEN user.focus_mode == "deep" THEN block_meetings`,
			cond:   `user.focus_mode == "deep"`,
			action: domain.Action{Kind: domain.ActionSimple, Name: "block_meetings"},
		},
		{
			name: "number and call action",
			text: `WHEN energy >= 3.5 THEN set(status, "ready")`,
			cond: `energy >= 3.5`,
			action: domain.Action{Kind: domain.ActionCall, Name: "set", Args: []domain.Operand{
				domain.Ident("status"), domain.Literal(domain.String("ready")),
			}},
		},
		{
			name:   "bool literal, lower case keywords",
			text:   `when calendar.busy != true then trigger(free_slot)`,
			cond:   `calendar.busy != true`,
			action: domain.Action{Kind: domain.ActionCall, Name: "trigger", Args: []domain.Operand{domain.Ident("free_slot")}},
		},
		{
			name:   "negative number, single quotes, empty call",
			text:   `WHEN 'a' < -2 THEN ping()`,
			cond:   `"a" < -2`,
			action: domain.Action{Kind: domain.ActionCall, Name: "ping", Args: []domain.Operand{}},
		},
		{
			name:   "identifier on both sides",
			text:   `WHEN tasks.done<=tasks.total THEN wrap_up`,
			cond:   `tasks.done <= tasks.total`,
			action: domain.Action{Kind: domain.ActionSimple, Name: "wrap_up"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse("c1", tt.text)
			require.NoError(t, err)
			assert.Equal(t, "c1", c.ID)
			assert.Equal(t, tt.text, c.Raw)
			assert.Equal(t, tt.cond, c.Condition.String())
			assert.Equal(t, tt.action.Kind, c.Action.Kind)
			assert.Equal(t, tt.action.Name, c.Action.Name)
			assert.Equal(t, tt.action.String(), c.Action.String())
		})
	}
}

func TestParse_IdentifiersStaySymbolic(t *testing.T) {
	c, err := Parse("c", `WHEN mode == deep THEN go`)
	require.NoError(t, err)
	assert.True(t, c.Condition.RHS.IsIdent())
	assert.Equal(t, "deep", c.Condition.RHS.Ident)
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		msg  string
	}{
		{"empty", "   ", "empty clause"},
		{"missing WHEN", `x == 1 THEN go`, "expected WHEN"},
		{"missing THEN", `WHEN x == 1 go`, "expected THEN"},
		{"missing action", `WHEN x == 1 THEN`, "expected action"},
		{"bad operator", `WHEN x = 1 THEN go`, "unknown operator"},
		{"missing operator", `WHEN x THEN go`, "expected comparison operator"},
		{"unterminated string", `WHEN x == "abc THEN go`, "unterminated string"},
		{"unclosed call", `WHEN x == 1 THEN f(a, b`, "expected ',' or ')'"},
		{"trailing input", `WHEN x == 1 THEN go now`, "unexpected trailing input"},
		{"bad character", `WHEN x == 1 THEN go;`, "unexpected character"},
		{"keyword as value", `WHEN THEN == 1 THEN go`, "expected value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad", tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrSyntax))
			var se *domain.SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Contains(t, se.Msg, tt.msg)
		})
	}
}

func TestParseCondition(t *testing.T) {
	cond, err := ParseCondition(`done == true`)
	require.NoError(t, err)
	assert.Equal(t, "done == true", cond.String())

	cond, err = ParseCondition(`WHEN count > 3`)
	require.NoError(t, err)
	assert.Equal(t, domain.OpGreater, cond.Op)

	_, err = ParseCondition(`count > 3 THEN go`)
	assert.ErrorIs(t, err, domain.ErrSyntax)
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("x", "nonsense") })
}
