package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxide/internal/core"
)

func inferOf(t *testing.T, text string) core.DataType {
	t.Helper()
	expr, err := Build(text)
	require.NoError(t, err, text)
	return InferType(expr)
}

func TestInferIntegerArithmetic(t *testing.T) {
	dt := inferOf(t, "1 + 2")
	number, ok := dt.(core.NumberType)
	require.True(t, ok)
	assert.False(t, number.NumberKind.IsFloat())
}

func TestInferFloatMixes(t *testing.T) {
	for _, text := range []string{"1 + 2.0", "2.0 * 3", "1.5 - 0.5"} {
		dt := inferOf(t, text)
		number, ok := dt.(core.NumberType)
		require.True(t, ok, text)
		assert.True(t, number.NumberKind.IsFloat(), text)
	}
}

func TestInferConditions(t *testing.T) {
	for _, text := range []string{"1 < 2", "x == y", "true && false", "5 between 1 and 10"} {
		assert.Equal(t, core.BooleanType{}, inferOf(t, text), text)
	}
}

func TestInferStringLiteralSizedByContent(t *testing.T) {
	dt := inferOf(t, `"hello"`)
	assert.Equal(t, core.StringType{Size: 5}, dt)
}

func TestInferPow(t *testing.T) {
	assert.Equal(t, core.NumberType{NumberKind: core.F64Kind}, inferOf(t, "2 ** 3"))
}

func TestInferBitwise(t *testing.T) {
	assert.Equal(t, core.NumberType{NumberKind: core.I64Kind}, inferOf(t, "1 & 3"))
}

func TestInferSetVariableIsAck(t *testing.T) {
	assert.Equal(t, core.NumberType{NumberKind: core.AckKind}, inferOf(t, "x := 5"))
}

func TestInferUnknownFallsBackToVarying(t *testing.T) {
	assert.Equal(t, core.VaryingType{}, inferOf(t, "mystery"))
}

func TestInferTableConstructor(t *testing.T) {
	expr, err := Build("select symbol from stocks")
	require.NoError(t, err)
	_, ok := InferType(expr).(core.TableType)
	assert.True(t, ok)
}
