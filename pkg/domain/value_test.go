package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Kinds(t *testing.T) {
	tests := []struct {
		name string
		v    domain.Value
		kind domain.Kind
		text string
	}{
		{"bool", domain.Bool(true), domain.KindBool, "true"},
		{"number", domain.Number(2.5), domain.KindNumber, "2.5"},
		{"integer number", domain.Number(42), domain.KindNumber, "42"},
		{"string", domain.String("deep"), domain.KindString, "deep"},
		{"zero", domain.Value{}, domain.KindInvalid, "<invalid>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.v.Kind())
			assert.Equal(t, tt.text, tt.v.Text())
		})
	}
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, domain.Number(1).Equal(domain.Number(1)))
	assert.False(t, domain.Number(1).Equal(domain.String("1")))
	assert.False(t, domain.Bool(true).Equal(domain.Number(1)))
	assert.True(t, domain.String("a").Equal(domain.String("a")))
}

func TestValue_JSON(t *testing.T) {
	in := domain.Vars{
		"flag":  domain.Bool(true),
		"count": domain.Number(3),
		"mode":  domain.String("deep"),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"flag":true,"count":3,"mode":"deep"}`, string(data))

	var out domain.Vars
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out["count"].Equal(domain.Number(3)))
	assert.True(t, out["mode"].Equal(domain.String("deep")))
}

func TestValue_RejectsComposite(t *testing.T) {
	var v domain.Value
	err := json.Unmarshal([]byte(`{"a":1}`), &v)
	assert.Error(t, err)

	_, err = domain.VarsFromMap(map[string]any{"list": []any{1, 2}})
	assert.ErrorContains(t, err, "list")
}

func TestVars_LookupIgnoresInvalid(t *testing.T) {
	vs := domain.Vars{"empty": {}, "ok": domain.Number(1)}
	_, ok := vs.Lookup("empty")
	assert.False(t, ok)
	_, ok = vs.Lookup("ok")
	assert.True(t, ok)
	assert.Equal(t, []string{"empty", "ok"}, vs.Keys())
}
