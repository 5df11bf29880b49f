package lang

import (
	"oxide/internal/core"
)

// typeNames maps bare identifiers in type position to their physical types.
var typeNames = map[string]core.DataType{
	"Ack":          core.NumberType{NumberKind: core.AckKind},
	"ASCII":        core.ASCIIType{},
	"Array":        core.ArrayType{},
	"Binary":       core.BinaryType{},
	"Boolean":      core.BooleanType{},
	"Date":         core.NumberType{NumberKind: core.DateKind},
	"Enum":         core.EnumType{},
	"Error":        core.ErrorType{},
	"Fn":           core.FunctionType{Returns: core.IndeterminateType{}},
	"RowId":        core.NumberType{NumberKind: core.RowIDKind},
	"RowsAffected": core.NumberType{NumberKind: core.RowsAffectedKind},
	"String":       core.StringType{},
	"Struct":       core.StructType{},
	"Table":        core.TableType{},
	"UUID":         core.NumberType{NumberKind: core.UUIDKind},
	"f32":          core.NumberType{NumberKind: core.F32Kind},
	"f64":          core.NumberType{NumberKind: core.F64Kind},
	"i8":           core.NumberType{NumberKind: core.I8Kind},
	"i16":          core.NumberType{NumberKind: core.I16Kind},
	"i32":          core.NumberType{NumberKind: core.I32Kind},
	"i64":          core.NumberType{NumberKind: core.I64Kind},
	"i128":         core.NumberType{NumberKind: core.I128Kind},
	"u8":           core.NumberType{NumberKind: core.U8Kind},
	"u16":          core.NumberType{NumberKind: core.U16Kind},
	"u32":          core.NumberType{NumberKind: core.U32Kind},
	"u64":          core.NumberType{NumberKind: core.U64Kind},
	"u128":         core.NumberType{NumberKind: core.U128Kind},
}

// ParseDataType parses a type declaration string (e.g. "String(20)") into
// its physical type.
func ParseDataType(text string) (core.DataType, error) {
	expr, err := Build(text)
	if err != nil {
		return nil, err
	}
	return DecipherType(expr)
}

// DecipherType maps the surface syntax of a type declaration to its
// physical type: a bare identifier, a parameterized call, a function
// literal, a tuple, or an array of element models.
func DecipherType(model Expression) (core.DataType, error) {
	switch e := model.(type) {
	case Variable:
		if dt, ok := typeNames[e.Name]; ok {
			return dt, nil
		}
		return nil, core.UnrecognizedTypeNameError(e.Name)
	case FunctionCall:
		return decipherCall(e)
	case TupleExpression:
		types := make([]core.DataType, len(e.Items))
		for i, item := range e.Items {
			dt, err := DecipherType(item)
			if err != nil {
				return nil, err
			}
			types[i] = dt
		}
		return core.TupleType{Types: types}, nil
	case ArrayExpression:
		for _, item := range e.Items {
			if _, err := DecipherType(item); err != nil {
				return nil, err
			}
		}
		return core.ArrayType{Size: len(e.Items)}, nil
	case FnExpression:
		returns := e.Returns
		if returns == nil {
			returns = core.IndeterminateType{}
		}
		return core.FunctionType{Params: e.Params, Returns: returns}, nil
	case Literal:
		if n, ok := e.Value.(core.NumberValue); ok && n.N.Kind == core.AckKind {
			return core.NumberType{NumberKind: core.AckKind}, nil
		}
		if s, ok := e.Value.(core.StructValue); ok {
			params := make([]core.Parameter, len(s.Fields))
			for i, f := range s.Fields {
				params[i] = core.Parameter{Name: f.Name, Type: f.Value.Type()}
			}
			return core.StructType{Params: params}, nil
		}
	}
	return nil, core.SyntaxError(model.ToCode())
}

func decipherCall(call FunctionCall) (core.DataType, error) {
	head, ok := call.Fx.(Variable)
	if !ok {
		return nil, core.SyntaxError(call.ToCode())
	}
	switch head.Name {
	case "Array":
		size, err := expectSize(call.Args)
		if err != nil {
			return nil, err
		}
		return core.ArrayType{Size: size}, nil
	case "ASCII":
		size, err := expectSize(call.Args)
		if err != nil {
			return nil, err
		}
		return core.ASCIIType{Size: size}, nil
	case "Binary":
		size, err := expectSize(call.Args)
		if err != nil {
			return nil, err
		}
		return core.BinaryType{Size: size}, nil
	case "String":
		size, err := expectSize(call.Args)
		if err != nil {
			return nil, err
		}
		return core.StringType{Size: size}, nil
	case "Enum":
		params, err := expectParams(call.Args)
		if err != nil {
			return nil, err
		}
		return core.EnumType{Params: params}, nil
	case "fn":
		params, err := expectParams(call.Args)
		if err != nil {
			return nil, err
		}
		return core.FunctionType{Params: params, Returns: core.IndeterminateType{}}, nil
	case "Struct":
		params, err := expectParams(call.Args)
		if err != nil {
			return nil, err
		}
		return core.StructType{Params: params}, nil
	case "Table":
		params, err := expectParams(call.Args)
		if err != nil {
			return nil, err
		}
		return core.TableType{Params: params}, nil
	}
	return nil, core.UnrecognizedTypeNameError(head.Name)
}

// expectSize reads the single optional numeric size argument.
func expectSize(args []Expression) (int, error) {
	switch len(args) {
	case 0:
		return 0, nil
	case 1:
		lit, ok := args[0].(Literal)
		if !ok {
			return 0, core.SyntaxError(args[0].ToCode())
		}
		n, ok := lit.Value.(core.NumberValue)
		if !ok {
			return 0, core.SyntaxError(args[0].ToCode())
		}
		return int(n.N.AsInt()), nil
	default:
		return 0, core.ArgumentsMismatchedError(1, len(args))
	}
}

// expectParams reads a parameter list from type-call arguments: named
// models ("symbol: String(8)"), defaulted labels ("AMEX := 1"), or bare
// labels ("A").
func expectParams(args []Expression) ([]core.Parameter, error) {
	params := make([]core.Parameter, 0, len(args))
	for _, arg := range args {
		switch a := arg.(type) {
		case AsValue:
			dt, err := DecipherType(a.Expr)
			if err != nil {
				return nil, err
			}
			params = append(params, core.NewParameter(a.Name, dt))
		case SetVariable:
			value, err := ToPure(a.Expr)
			if err != nil {
				return nil, err
			}
			params = append(params, core.WithDefault(a.Name, value.Type(), value))
		case Variable:
			params = append(params, core.BuildParameter(a.Name))
		default:
			return nil, core.SyntaxError(arg.ToCode())
		}
	}
	return params, nil
}
