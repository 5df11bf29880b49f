package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxide/internal/core"
)

func mustPure(t *testing.T, text string) core.Value {
	t.Helper()
	value, err := PureValue(text)
	require.NoError(t, err, text)
	return value
}

func TestPureFoldLaws(t *testing.T) {
	assert.Equal(t, core.Value(core.Num(core.I64(9))), mustPure(t, "0b1011 & 0b1101"))
	assert.Equal(t, core.Value(core.Num(core.F64(125))), mustPure(t, "5 ** 3"))
	assert.Equal(t, core.Value(core.Num(core.U128(720))), mustPure(t, "6¡"))
	assert.Equal(t,
		core.Value(core.Arr(core.Num(core.I64(2)), core.Num(core.I64(4)), core.Num(core.I64(6)), core.Num(core.I64(8)))),
		mustPure(t, "[1,2,3,4] * 2"))
}

func TestPureArithmetic(t *testing.T) {
	assert.Equal(t, core.Value(core.Num(core.I64(7))), mustPure(t, "3 + 4"))
	assert.Equal(t, core.Value(core.Num(core.I64(12))), mustPure(t, "3 * 4"))
	assert.Equal(t, core.Value(core.Num(core.F64(1.5))), mustPure(t, "3.0 / 2.0"))
	assert.Equal(t, core.Value(core.Num(core.I64(1))), mustPure(t, "7 % 3"))
	assert.Equal(t, core.Value(core.Num(core.I64(-5))), mustPure(t, "-5"))
}

func TestPureComparisons(t *testing.T) {
	assert.Equal(t, core.Value(core.Bool(true)), mustPure(t, "5 == 5"))
	assert.Equal(t, core.Value(core.Bool(true)), mustPure(t, "-5 != 5"))
	assert.Equal(t, core.Value(core.Bool(true)), mustPure(t, "5 > 1"))
	assert.Equal(t, core.Value(core.Bool(true)), mustPure(t, "1 <= 5"))
	assert.Equal(t, core.Value(core.Bool(true)), mustPure(t, "5 between 1 and 10"))
	assert.Equal(t, core.Value(core.Bool(false)), mustPure(t, "true && false"))
	assert.Equal(t, core.Value(core.Bool(true)), mustPure(t, "true || false"))
	assert.Equal(t, core.Value(core.Bool(false)), mustPure(t, "!true"))
}

func TestPureContainers(t *testing.T) {
	assert.Equal(t,
		core.Value(core.Arr(core.Num(core.I64(0)), core.Num(core.I64(1)))),
		mustPure(t, "[0, 1]"))
	assert.Equal(t, core.Value(core.Num(core.I64(3))), mustPure(t, "[0, 1, 3, 5][2]"))

	s := mustPure(t, `{ x: 1, y: 2 }`)
	structValue, ok := s.(core.StructValue)
	require.True(t, ok)
	assert.Equal(t, core.Value(core.Num(core.I64(1))), structValue.Get("x"))
}

func TestPureRange(t *testing.T) {
	assert.Equal(t,
		core.Value(core.Arr(core.Num(core.I64(1)), core.Num(core.I64(2)), core.Num(core.I64(3)))),
		mustPure(t, "1..4"))
}

func TestPureRejectsVariables(t *testing.T) {
	_, err := PureValue("x + 1")
	require.Error(t, err)
	var engineErr *core.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, core.MismatchConstantValueExpected, engineErr.Mismatch)
}

func TestPureRejectsDatabaseOps(t *testing.T) {
	_, err := PureValue("from stocks")
	assert.Error(t, err)
}

func TestPureAsValue(t *testing.T) {
	expr, err := Build("(x: 5)")
	require.NoError(t, err)
	tuple, ok := expr.(TupleExpression)
	require.True(t, ok)
	value, err := ToPure(tuple.Items[0])
	require.NoError(t, err)
	assert.Equal(t, core.Value(core.Num(core.I64(5))), value)
}
