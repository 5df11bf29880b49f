package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPromotion(t *testing.T) {
	// integer + integer stays integral
	v := Add(Num(I64(2)), Num(I64(3)))
	assert.Equal(t, Num(I64(5)), v)

	// a float operand promotes to f64
	v = Add(Num(I64(2)), Num(F64(0.5)))
	assert.Equal(t, Num(F64(2.5)), v)

	// wider kind wins
	v = Add(Num(I16(2)), Num(I32(3)))
	assert.Equal(t, I32Kind, v.(NumberValue).N.Kind)
}

func TestStringConcat(t *testing.T) {
	assert.Equal(t, Value(Str("Hello World")), Add(Str("Hello "), Str("World")))
	assert.Equal(t, Value(Str("ab")), Concat(Str("a"), Str("b")))
}

func TestDivideByZero(t *testing.T) {
	// floats collapse to NaN
	v := Divide(Num(F64(36)), Num(F64(0)))
	require.IsType(t, NumberValue{}, v)
	assert.Equal(t, NaNKind, v.(NumberValue).N.Kind)

	// integers produce a typed error value
	v = Divide(Num(I64(36)), Num(I64(0)))
	require.True(t, IsError(v))
	assert.Equal(t, ErrExact, v.(ErrorValue).Err.Kind)
}

func TestPowAlwaysFloat(t *testing.T) {
	assert.Equal(t, Value(Num(F64(125))), Pow(Num(I64(5)), Num(I64(3))))
	assert.Equal(t, Value(Num(F64(16))), Pow(Num(I64(2)), Num(I64(4))))
}

func TestFactorial(t *testing.T) {
	assert.Equal(t, Value(Num(U128(720))), Factorial(Num(I64(6))))
	assert.Equal(t, Value(Num(U128(120))), Factorial(Num(I64(5))))
	assert.Equal(t, Value(Num(U128(1))), Factorial(Num(I64(0))))
	assert.True(t, IsError(Factorial(Num(I64(-1)))))
}

func TestBitwise(t *testing.T) {
	assert.Equal(t, Value(Num(I64(9))), BitAnd(Num(I64(0b1011)), Num(I64(0b1101))))
	assert.Equal(t, Value(Num(I64(0b1111))), BitOr(Num(I64(0b1011)), Num(I64(0b1101))))
	assert.Equal(t, Value(Num(I64(0b0110))), BitXor(Num(I64(0b1011)), Num(I64(0b1101))))
	assert.Equal(t, Value(Num(I64(20))), ShiftLeft(Num(I64(5)), Num(I64(2))))
	assert.Equal(t, Value(Num(I64(1))), ShiftRight(Num(I64(5)), Num(I64(2))))

	// bitwise over floats is a type error
	assert.True(t, IsError(BitAnd(Num(F64(1)), Num(I64(1)))))
}

func TestArrayScalarMultiply(t *testing.T) {
	array := Arr(Num(I64(1)), Num(I64(2)), Num(I64(3)), Num(I64(4)))
	v := Multiply(array, Num(I64(2)))
	assert.Equal(t, Value(Arr(
		Num(I64(2)), Num(I64(4)), Num(I64(6)), Num(I64(8)),
	)), v)

	// scalar on the left distributes too
	v = Multiply(Num(I64(2)), array)
	assert.Equal(t, Value(Arr(
		Num(I64(2)), Num(I64(4)), Num(I64(6)), Num(I64(8)),
	)), v)
}

func TestModulo(t *testing.T) {
	assert.Equal(t, Value(Num(I64(1))), Modulo(Num(I64(7)), Num(I64(3))))
	assert.Equal(t, Value(Num(F64(0))), Modulo(Num(F64(35)), Num(F64(5))))
	assert.True(t, IsError(Modulo(Num(I64(7)), Num(I64(0)))))
}

func TestCompare(t *testing.T) {
	n, ok := Compare(Num(I64(5)), Num(F64(5)))
	require.True(t, ok)
	assert.Zero(t, n)

	n, ok = Compare(Str("ABC"), Str("UNO"))
	require.True(t, ok)
	assert.Negative(t, n)

	_, ok = Compare(Str("ABC"), Num(I64(1)))
	assert.False(t, ok)
}

func TestEqualStructsOutOfOrder(t *testing.T) {
	a := StructValue{Fields: []StructField{
		{Name: "scores", Value: Arr(Num(I64(82)), Num(I64(78)), Num(I64(99)))},
		{Name: "id", Value: Str("A1537")},
	}}
	b := StructValue{Fields: []StructField{
		{Name: "id", Value: Str("A1537")},
		{Name: "scores", Value: Arr(Num(I64(82)), Num(I64(78)), Num(I64(99)))},
	}}
	assert.True(t, Equal(a, b))
}

func TestContains(t *testing.T) {
	array := Arr(Num(I64(1)), Str("a"))
	assert.Equal(t, Value(Bool(true)), Contains(array, Str("a")))
	assert.Equal(t, Value(Bool(false)), Contains(array, Str("z")))
	assert.Equal(t, Value(Bool(true)), Contains(Str("hello"), Str("ell")))
}

func TestLike(t *testing.T) {
	assert.Equal(t, Value(Bool(true)), Like(Str("ABCD"), Str("AB%")))
	assert.Equal(t, Value(Bool(true)), Like(Str("AXC"), Str("A_C")))
	assert.Equal(t, Value(Bool(false)), Like(Str("XYZ"), Str("AB%")))
}

func TestBetweenAndBetwixt(t *testing.T) {
	assert.Equal(t, Value(Bool(true)), Between(Num(I64(5)), Num(I64(1)), Num(I64(10))))
	assert.Equal(t, Value(Bool(true)), Between(Num(I64(10)), Num(I64(1)), Num(I64(10))))
	assert.Equal(t, Value(Bool(false)), Betwixt(Num(I64(10)), Num(I64(1)), Num(I64(10))))
	assert.Equal(t, Value(Bool(true)), Betwixt(Num(I64(1)), Num(I64(1)), Num(I64(10))))
}

func TestElementAt(t *testing.T) {
	array := Arr(Num(I64(0)), Num(I64(1)), Num(I64(3)), Num(I64(5)))
	assert.Equal(t, Value(Num(I64(3))), ElementAt(array, Num(I64(2))))
	assert.True(t, IsError(ElementAt(array, Num(I64(9)))))

	s := StructValue{Fields: []StructField{{Name: "x", Value: Num(I64(7))}}}
	assert.Equal(t, Value(Num(I64(7))), ElementAt(s, Str("x")))
}

func TestRangeValues(t *testing.T) {
	assert.Equal(t, Value(Arr(Num(I64(1)), Num(I64(2)), Num(I64(3)))),
		RangeValues(Num(I64(1)), Num(I64(4))))
}

func TestErrorPoisonsArithmetic(t *testing.T) {
	boom := Erred(ExactError("boom"))
	assert.Equal(t, Value(boom), Add(boom, Num(I64(1))))
	assert.Equal(t, Value(boom), Multiply(Num(I64(1)), boom))
}

func TestNaNPropagates(t *testing.T) {
	v := Add(Num(NaN()), Num(I64(1)))
	require.IsType(t, NumberValue{}, v)
	assert.Equal(t, NaNKind, v.(NumberValue).N.Kind)
	assert.True(t, math.IsNaN(v.(NumberValue).N.F))
}
