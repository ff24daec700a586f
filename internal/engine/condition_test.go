package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"somacore/internal/errors"
	"somacore/pkg/frame"
)

func conditionSchema() ArraySchema {
	return ArraySchema{
		Sparse:     true,
		Dimensions: []Dimension{{Name: "obs_id", Type: frame.String}},
		Attributes: []Attribute{
			{Name: "foo", Type: frame.Int32},
			{Name: "bar", Type: frame.Float64},
			{Name: "baz", Type: frame.String},
			{Name: "cell", Type: frame.Bytes},
		},
	}
}

func evalRow(t *testing.T, expr string, row map[string]any) bool {
	t.Helper()
	c, err := ParseCondition(conditionSchema(), expr)
	require.NoError(t, err)
	return c.root.eval(func(n string) any { return row[n] })
}

func TestConditionEvaluation(t *testing.T) {
	row := map[string]any{"foo": int32(20), "bar": 5.2, "cell": []byte("B")}
	cases := map[string]bool{
		"foo == 20":                          true,
		"foo != 20":                          false,
		"foo > 19.5":                         true,
		"foo >= 21":                          false,
		"bar < 6 and foo <= 20":              true,
		"bar > 6 or cell == 'B'":             true,
		`cell == "A" || (foo > 1 && bar>5)`:  true,
		"(foo < 0 or bar < 0) and foo == 20": false,
		"20 < foo":                           false,
		"21 > foo":                           true,
		"cell >= 'A' AND cell < 'C'":         true,
		"bar == 5.2e0":                       true,
		"foo > -3":                           true,
	}
	for expr, want := range cases {
		require.Equal(t, want, evalRow(t, expr, row), expr)
	}
}

func TestConditionRejectsVariableLengthStrings(t *testing.T) {
	_, err := ParseCondition(conditionSchema(), "baz == 'x'")
	require.ErrorIs(t, err, ErrUnsupportedCondition)
	require.NotEmpty(t, errors.GetAllHints(err))
}

func TestConditionSyntaxErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"foo",
		"foo ==",
		"foo = 1",
		"foo == 'x'",
		"cell == 3",
		"nope == 1",
		"obs_id == 'a'",
		"(foo == 1",
		"foo == 1 bar",
		"'a' == 'b'",
		"foo == 'unterminated",
		"foo # 1",
	} {
		_, err := ParseCondition(conditionSchema(), expr)
		require.Error(t, err, expr)
	}
}

func TestConditionReportsAttributes(t *testing.T) {
	c, err := ParseCondition(conditionSchema(), "foo > 1 and cell == 'x'")
	require.NoError(t, err)
	require.Equal(t, []string{"foo", "cell"}, c.Attributes())
	require.Equal(t, "foo > 1 and cell == 'x'", c.String())
}
