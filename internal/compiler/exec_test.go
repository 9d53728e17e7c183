package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockMeetingsScenario(t *testing.T) {
	c := MustParse("focus", `WHEN user.focus_mode == "deep" THEN block_meetings`)
	vars := domain.Vars{"user.focus_mode": domain.String("deep")}

	assert.True(t, EvaluateClause(c, vars))

	res, err := NewInterpreter().Execute(context.Background(), c, vars)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Executed)
	assert.Contains(t, res.Message, "block_meetings")
}

func TestEvaluate(t *testing.T) {
	vars := domain.Vars{
		"n":    domain.Number(5),
		"s":    domain.String("b"),
		"flag": domain.Bool(true),
	}
	tests := []struct {
		text string
		want bool
	}{
		{`n == 5`, true},
		{`n != 5`, false},
		{`n > 4`, true},
		{`n < 4`, false},
		{`n >= 5`, true},
		{`n <= 4.99`, false},
		{`s > "a"`, true},
		{`s == "b"`, true},
		{`flag == true`, true},
		{`flag != false`, true},
		{`flag > false`, false},
		{`n == s`, false},
		// mismatched kinds are false for every operator, != included
		{`n == "5"`, false},
		{`n != "5"`, false},
		{`s < 10`, false},
		{`flag != 1`, false},
		// unbound identifiers are false too
		{`missing == 1`, false},
		{`missing != 1`, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cond, err := ParseCondition(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Evaluate(cond, vars))
		})
	}
}

func TestExecute_ConditionNotMet(t *testing.T) {
	c := MustParse("c", `WHEN n > 10 THEN set(x, 1)`)
	vars := domain.Vars{"n": domain.Number(1)}

	res, err := NewInterpreter().Execute(context.Background(), c, vars)
	assert.ErrorIs(t, err, domain.ErrConditionNotMet)
	assert.False(t, res.Executed)
	assert.NotContains(t, vars, "x")
}

func TestExecute_Builtins(t *testing.T) {
	in := NewInterpreter()
	vars := domain.Vars{"ready": domain.Bool(true), "level": domain.Number(3)}

	res, err := in.Execute(context.Background(), MustParse("s", `WHEN ready == true THEN set(copy, level)`), vars)
	require.NoError(t, err)
	assert.True(t, vars["copy"].Equal(domain.Number(3)))
	assert.True(t, res.Value.Equal(domain.Number(3)))

	res, err = in.Execute(context.Background(), MustParse("t", `WHEN ready == true THEN trigger(conflict)`), vars)
	require.NoError(t, err)
	assert.Equal(t, []string{"conflict"}, res.Triggers)
	assert.True(t, vars[TriggerPrefix+"conflict"].Equal(domain.Bool(true)))

	_, err = in.Execute(context.Background(), MustParse("bad", `WHEN ready == true THEN set(only_key)`), vars)
	assert.ErrorContains(t, err, "want 2 arguments")
}

func TestExecute_UnknownFunction(t *testing.T) {
	c := MustParse("c", `WHEN ready == true THEN notify("team")`)
	vars := domain.Vars{"ready": domain.Bool(true)}

	res, err := NewInterpreter().Execute(context.Background(), c, vars)
	require.NoError(t, err, "lenient mode treats unknown calls as no-ops")
	assert.True(t, res.Success)

	_, err = NewInterpreter(WithStrict(true)).Execute(context.Background(), c, vars)
	assert.ErrorIs(t, err, domain.ErrUnknownFunction)
}

func TestExecute_RegisteredFunction(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register("notify", func(_ context.Context, args []domain.Value) (domain.Value, error) {
		if len(args) == 0 {
			return domain.String("sent"), nil
		}
		return domain.String("sent to " + args[0].Text()), nil
	})
	reg.Register("explode", func(context.Context, []domain.Value) (domain.Value, error) {
		return domain.Value{}, errors.New("boom")
	})
	in := NewInterpreter(WithRegistry(reg))
	vars := domain.Vars{"ready": domain.Bool(true), "who": domain.String("ops")}

	res, err := in.Execute(context.Background(), MustParse("n", `WHEN ready == true THEN notify(who)`), vars)
	require.NoError(t, err)
	assert.Equal(t, "sent to ops", res.Value.Text())

	_, err = in.Execute(context.Background(), MustParse("e", `WHEN ready == true THEN explode()`), vars)
	assert.ErrorContains(t, err, "boom")

	res, err = in.Execute(context.Background(), MustParse("s", `WHEN ready == true THEN notify`), vars)
	require.NoError(t, err)
	assert.Equal(t, "executed notify", res.Message)
	assert.Equal(t, "sent", res.Value.Text())
}
