package lang

import (
	"oxide/internal/core"
)

// InferType derives the static type of an expression. Arithmetic lifts
// through the numeric tower (any float operand yields f64), conditions are
// Boolean, and anything unresolvable falls back to an open Varying.
func InferType(expr Expression) core.DataType {
	switch e := expr.(type) {
	case Literal:
		return e.Value.Type()
	case ArrayExpression:
		return core.ArrayType{Size: len(e.Items)}
	case TupleExpression:
		types := make([]core.DataType, len(e.Items))
		for i, item := range e.Items {
			types[i] = InferType(item)
		}
		return core.TupleType{Types: types}
	case JSONExpression:
		params := make([]core.Parameter, len(e.Fields))
		for i, f := range e.Fields {
			params[i] = core.Parameter{Name: f.Name, Type: InferType(f.Value)}
		}
		return core.StructType{Params: params}
	case AsValue:
		return InferType(e.Expr)
	case Neg:
		return InferType(e.A)
	case Plus:
		return inferArithmetic(e.A, e.B)
	case Minus:
		return inferArithmetic(e.A, e.B)
	case Multiply:
		return inferArithmetic(e.A, e.B)
	case Divide:
		return inferArithmetic(e.A, e.B)
	case Modulo:
		return inferArithmetic(e.A, e.B)
	case PowOp:
		return core.NumberType{NumberKind: core.F64Kind}
	case FactorialOp:
		return core.NumberType{NumberKind: core.U128Kind}
	case PlusPlus:
		return InferType(e.A)
	case RangeOp:
		return core.ArrayType{}
	case BitwiseAnd, BitwiseOr, BitwiseXor, ShiftLeft, ShiftRight:
		return core.NumberType{NumberKind: core.I64Kind}
	case If:
		return InferType(e.A)
	case CodeBlock:
		if len(e.Exprs) > 0 {
			return InferType(e.Exprs[len(e.Exprs)-1])
		}
	case SetVariable:
		return core.NumberType{NumberKind: core.AckKind}
	case SetVariables:
		return core.NumberType{NumberKind: core.AckKind}
	case FnExpression:
		returns := e.Returns
		if returns == nil {
			returns = core.IndeterminateType{}
		}
		return core.FunctionType{Params: e.Params, Returns: returns}
	case Ns:
		return core.TableType{}
	case From, Where, LimitOp, Select:
		return core.TableType{}
	case Append, Delete, Undelete, Overwrite, Update, Truncate:
		return core.NumberType{NumberKind: core.RowsAffectedKind}
	case CreateTable, CreateIndex, Drop, IntoNs, Compact:
		return core.NumberType{NumberKind: core.AckKind}
	}
	if IsConditional(expr) {
		return core.BooleanType{}
	}
	return core.VaryingType{}
}

// inferArithmetic combines operand types: a float on either side wins, a
// wider integer kind wins over a narrower one.
func inferArithmetic(a, b Expression) core.DataType {
	ta, okA := InferType(a).(core.NumberType)
	tb, okB := InferType(b).(core.NumberType)
	switch {
	case okA && okB:
		if ta.NumberKind.IsFloat() || tb.NumberKind.IsFloat() {
			return core.NumberType{NumberKind: core.F64Kind}
		}
		if tb.NumberKind.Width() > ta.NumberKind.Width() {
			return tb
		}
		return ta
	case okA:
		return ta
	case okB:
		return tb
	default:
		return core.VaryingType{}
	}
}
