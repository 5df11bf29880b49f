package lang

import (
	"oxide/internal/core"
)

// ToPure partially evaluates a side-effect-free expression to a constant.
// It succeeds for literals, arithmetic, bitwise operations, comparisons,
// ranges, container literals of pure elements, and indexing into pure
// containers; anything touching variables, I/O, or collections fails with
// ConstantValueExpected. Schema default values are folded through here at
// build time.
func ToPure(expr Expression) (core.Value, error) {
	switch e := expr.(type) {
	case Literal:
		return e.Value, nil
	case AsValue:
		return ToPure(e.Expr)
	case ArrayExpression:
		items, err := pureItems(e.Items)
		if err != nil {
			return nil, err
		}
		return core.ArrayValue{Items: items}, nil
	case TupleExpression:
		items, err := pureItems(e.Items)
		if err != nil {
			return nil, err
		}
		return core.TupleValue{Items: items}, nil
	case JSONExpression:
		fields := make([]core.StructField, len(e.Fields))
		for i, f := range e.Fields {
			value, err := ToPure(f.Value)
			if err != nil {
				return nil, err
			}
			fields[i] = core.StructField{Name: f.Name, Value: value}
		}
		return core.StructValue{Fields: fields}, nil
	case Neg:
		a, err := ToPure(e.A)
		if err != nil {
			return nil, err
		}
		return core.Negate(a), nil
	case FactorialOp:
		a, err := ToPure(e.A)
		if err != nil {
			return nil, err
		}
		return core.Factorial(a), nil
	case Not:
		a, err := ToPure(e.A)
		if err != nil {
			return nil, err
		}
		return core.Bool(!core.IsTruthy(a)), nil
	case Plus:
		return pureBinary(e.A, e.B, core.Add)
	case Minus:
		return pureBinary(e.A, e.B, core.Subtract)
	case Multiply:
		return pureBinary(e.A, e.B, core.Multiply)
	case Divide:
		return pureBinary(e.A, e.B, core.Divide)
	case Modulo:
		return pureBinary(e.A, e.B, core.Modulo)
	case PowOp:
		return pureBinary(e.A, e.B, core.Pow)
	case PlusPlus:
		return pureBinary(e.A, e.B, core.Concat)
	case RangeOp:
		return pureBinary(e.A, e.B, core.RangeValues)
	case BitwiseAnd:
		return pureBinary(e.A, e.B, core.BitAnd)
	case BitwiseOr:
		return pureBinary(e.A, e.B, core.BitOr)
	case BitwiseXor:
		return pureBinary(e.A, e.B, core.BitXor)
	case ShiftLeft:
		return pureBinary(e.A, e.B, core.ShiftLeft)
	case ShiftRight:
		return pureBinary(e.A, e.B, core.ShiftRight)
	case Equal:
		return pureComparison(e.A, e.B, func(a, b core.Value) core.Value {
			return core.Bool(core.Equal(a, b))
		})
	case NotEqual:
		return pureComparison(e.A, e.B, func(a, b core.Value) core.Value {
			return core.Bool(!core.Equal(a, b))
		})
	case GreaterThan:
		return pureOrdering(e.A, e.B, func(n int) bool { return n > 0 })
	case GreaterOrEqual:
		return pureOrdering(e.A, e.B, func(n int) bool { return n >= 0 })
	case LessThan:
		return pureOrdering(e.A, e.B, func(n int) bool { return n < 0 })
	case LessOrEqual:
		return pureOrdering(e.A, e.B, func(n int) bool { return n <= 0 })
	case And:
		return pureComparison(e.A, e.B, func(a, b core.Value) core.Value {
			return core.Bool(core.IsTruthy(a) && core.IsTruthy(b))
		})
	case Or:
		return pureComparison(e.A, e.B, func(a, b core.Value) core.Value {
			return core.Bool(core.IsTruthy(a) || core.IsTruthy(b))
		})
	case BetweenOp:
		return pureTernary(e.A, e.Low, e.High, core.Between)
	case BetwixtOp:
		return pureTernary(e.A, e.Low, e.High, core.Betwixt)
	case ContainsOp:
		return pureBinary(e.A, e.B, core.Contains)
	case LikeOp:
		return pureBinary(e.A, e.B, core.Like)
	case ElementAt:
		return pureBinary(e.A, e.Index, core.ElementAt)
	}
	return nil, core.ConstantValueExpectedError(expr.ToCode())
}

// PureValue compiles source text and folds it to a constant.
func PureValue(text string) (core.Value, error) {
	expr, err := Build(text)
	if err != nil {
		return nil, err
	}
	return ToPure(expr)
}

func pureItems(exprs []Expression) ([]core.Value, error) {
	items := make([]core.Value, len(exprs))
	for i, e := range exprs {
		value, err := ToPure(e)
		if err != nil {
			return nil, err
		}
		items[i] = value
	}
	return items, nil
}

func pureBinary(a, b Expression, f func(core.Value, core.Value) core.Value) (core.Value, error) {
	va, err := ToPure(a)
	if err != nil {
		return nil, err
	}
	vb, err := ToPure(b)
	if err != nil {
		return nil, err
	}
	return f(va, vb), nil
}

func pureComparison(a, b Expression, f func(core.Value, core.Value) core.Value) (core.Value, error) {
	return pureBinary(a, b, f)
}

func pureOrdering(a, b Expression, pass func(int) bool) (core.Value, error) {
	return pureBinary(a, b, func(va, vb core.Value) core.Value {
		n, ok := core.Compare(va, vb)
		if !ok {
			return core.Erred(core.UnsupportedTypeError(core.TypeNameOf(va), core.TypeNameOf(vb)))
		}
		return core.Bool(pass(n))
	})
}

func pureTernary(a, b, c Expression, f func(core.Value, core.Value, core.Value) core.Value) (core.Value, error) {
	va, err := ToPure(a)
	if err != nil {
		return nil, err
	}
	vb, err := ToPure(b)
	if err != nil {
		return nil, err
	}
	vc, err := ToPure(c)
	if err != nil {
		return nil, err
	}
	return f(va, vb, vc), nil
}
