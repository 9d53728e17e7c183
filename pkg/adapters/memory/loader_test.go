package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/operad/pkg/adapters/memory"
	"github.com/aretw0/operad/pkg/domain"
	contract "github.com/aretw0/operad/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLoader_Contract(t *testing.T) {
	data := map[string]string{
		"block_meetings": `WHEN calendar.conflicts > 0 THEN block_meetings`,
		"notify":         `WHEN blocked == true THEN notify("team")`,
	}
	contract.ClauseSourceContractTest(t, memory.NewLoader(data), data)
}

func TestNewFromInputs(t *testing.T) {
	loader, err := memory.NewFromInputs(
		domain.ClauseInput{ID: "a", Text: "WHEN x == 1 THEN go", Outputs: []string{"y"}},
		domain.ClauseInput{ID: "b", Text: "WHEN y == true THEN stop", DependsOn: []string{"a"}},
	)
	require.NoError(t, err)

	in, err := loader.GetClause(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, in.DependsOn)

	_, err = memory.NewFromInputs(domain.ClauseInput{Text: "WHEN x == 1 THEN go"})
	assert.Error(t, err)

	_, err = memory.NewFromInputs(
		domain.ClauseInput{ID: "a", Text: "WHEN x == 1 THEN go"},
		domain.ClauseInput{ID: "a", Text: "WHEN x == 2 THEN go"},
	)
	assert.ErrorIs(t, err, domain.ErrDuplicateNode)
}
