package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the value union. The numeric values are part of
// the wire format (Varying discriminators, BLOB cell kinds) and must not be
// renumbered.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindUndefined
	KindBoolean
	KindNumber
	KindString
	KindASCII
	KindBinary
	KindArray
	KindTuple
	KindStruct
	KindTable
	KindFunction
	KindPlatformOp
	KindError
)

// Code is any compiled fragment that can render itself back to source.
// The language package's expression tree satisfies it; SourceCode carries
// raw text for bodies that have crossed a serialization boundary.
type Code interface {
	ToCode() string
}

// SourceCode is unparsed source text standing in for a compiled body.
type SourceCode string

// ToCode returns the raw source text.
func (s SourceCode) ToCode() string { return string(s) }

// Value is a single member of the engine's value union.
type Value interface {
	// Kind returns the union discriminator.
	Kind() ValueKind
	// Type returns the value's inferred physical type.
	Type() DataType
	// ToCode renders the value as a source literal.
	ToCode() string
}

// NullValue is the explicit null.
type NullValue struct{}

// UndefinedValue is the absent value distinct from null.
type UndefinedValue struct{}

// Null and Undefined are the shared sentinel instances.
var (
	Null      = NullValue{}
	Undefined = UndefinedValue{}
)

func (NullValue) Kind() ValueKind      { return KindNull }
func (NullValue) Type() DataType       { return IndeterminateType{} }
func (NullValue) ToCode() string       { return "null" }
func (UndefinedValue) Kind() ValueKind { return KindUndefined }
func (UndefinedValue) Type() DataType  { return IndeterminateType{} }
func (UndefinedValue) ToCode() string  { return "undefined" }

// BoolValue is a boolean.
type BoolValue struct {
	B bool
}

func (v BoolValue) Kind() ValueKind { return KindBoolean }
func (v BoolValue) Type() DataType  { return BooleanType{} }
func (v BoolValue) ToCode() string  { return strconv.FormatBool(v.B) }

// Bool builds a BoolValue.
func Bool(b bool) BoolValue { return BoolValue{B: b} }

// NumberValue wraps a Number payload.
type NumberValue struct {
	N Number
}

func (v NumberValue) Kind() ValueKind { return KindNumber }
func (v NumberValue) Type() DataType  { return NumberType{NumberKind: v.N.Kind} }
func (v NumberValue) ToCode() string  { return v.N.String() }

// Num wraps a Number as a Value.
func Num(n Number) NumberValue { return NumberValue{N: n} }

// AckValue is the canonical successful unit result.
func AckValue() NumberValue { return Num(Ack()) }

// RowsAffectedValue reports a mutation's row count.
func RowsAffectedValue(n int64) NumberValue { return Num(RowsAffected(n)) }

// StringValue is a UTF-8 string.
type StringValue struct {
	S string
}

func (v StringValue) Kind() ValueKind { return KindString }
func (v StringValue) Type() DataType  { return StringType{Size: len(v.S)} }
func (v StringValue) ToCode() string  { return strconv.Quote(v.S) }

// Str builds a StringValue.
func Str(s string) StringValue { return StringValue{S: s} }

// ASCIIValue is a byte-per-character string.
type ASCIIValue struct {
	S string
}

func (v ASCIIValue) Kind() ValueKind { return KindASCII }
func (v ASCIIValue) Type() DataType  { return ASCIIType{Size: len(v.S)} }
func (v ASCIIValue) ToCode() string  { return strconv.Quote(v.S) }

// BinaryValue is a raw byte blob.
type BinaryValue struct {
	Bytes []byte
}

func (v BinaryValue) Kind() ValueKind { return KindBinary }
func (v BinaryValue) Type() DataType  { return BinaryType{Size: len(v.Bytes)} }
func (v BinaryValue) ToCode() string  { return fmt.Sprintf("0B%x", v.Bytes) }

// ArrayValue is an ordered heterogeneous sequence.
type ArrayValue struct {
	Items []Value
}

func (v ArrayValue) Kind() ValueKind { return KindArray }
func (v ArrayValue) Type() DataType  { return ArrayType{Size: len(v.Items)} }
func (v ArrayValue) ToCode() string {
	parts := make([]string, len(v.Items))
	for i, item := range v.Items {
		parts[i] = item.ToCode()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Arr builds an ArrayValue.
func Arr(items ...Value) ArrayValue { return ArrayValue{Items: items} }

// TupleValue is a fixed-arity heterogeneous product.
type TupleValue struct {
	Items []Value
}

func (v TupleValue) Kind() ValueKind { return KindTuple }
func (v TupleValue) Type() DataType {
	types := make([]DataType, len(v.Items))
	for i, item := range v.Items {
		types[i] = item.Type()
	}
	return TupleType{Types: types}
}

func (v TupleValue) ToCode() string {
	parts := make([]string, len(v.Items))
	for i, item := range v.Items {
		parts[i] = item.ToCode()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// StructField is one named slot of a StructValue.
type StructField struct {
	Name  string
	Value Value
}

// StructValue is an ordered collection of named values.
type StructValue struct {
	Fields []StructField
}

func (v StructValue) Kind() ValueKind { return KindStruct }
func (v StructValue) Type() DataType {
	params := make([]Parameter, len(v.Fields))
	for i, f := range v.Fields {
		params[i] = Parameter{Name: f.Name, Type: f.Value.Type()}
	}
	return StructType{Params: params}
}

func (v StructValue) ToCode() string {
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Value.ToCode())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Get returns the named field's value, or Undefined.
func (v StructValue) Get(name string) Value {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return Undefined
}

// TableValue is an in-memory table: a parameter list plus decoded rows.
type TableValue struct {
	Params []Parameter
	Rows   []Row
}

func (v TableValue) Kind() ValueKind { return KindTable }
func (v TableValue) Type() DataType  { return TableType{Params: v.Params} }
func (v TableValue) ToCode() string {
	return TableType{Params: v.Params}.ToCode()
}

// FunctionValue is a user-defined function.
type FunctionValue struct {
	Params  []Parameter
	Body    Code
	Returns DataType
}

func (v FunctionValue) Kind() ValueKind { return KindFunction }
func (v FunctionValue) Type() DataType {
	return FunctionType{Params: v.Params, Returns: v.Returns}
}

func (v FunctionValue) ToCode() string {
	return fmt.Sprintf("fn(%s) => %s", RenderParameters(v.Params), v.Body.ToCode())
}

// PlatformValue names a built-in platform operation (e.g. "str::left").
type PlatformValue struct {
	Op string
}

func (v PlatformValue) Kind() ValueKind { return KindPlatformOp }
func (v PlatformValue) Type() DataType  { return PlatformOpType{Op: v.Op} }
func (v PlatformValue) ToCode() string  { return v.Op }

// ErrorValue carries an engine error through the value channel.
type ErrorValue struct {
	Err *EngineError
}

func (v ErrorValue) Kind() ValueKind { return KindError }
func (v ErrorValue) Type() DataType  { return ErrorType{} }
func (v ErrorValue) ToCode() string  { return strconv.Quote(v.Err.Error()) }

// Erred wraps an engine error as a value.
func Erred(err *EngineError) ErrorValue { return ErrorValue{Err: err} }

// IsError reports whether v is an error value.
func IsError(v Value) bool {
	_, ok := v.(ErrorValue)
	return ok
}

// IsTruthy reports whether v counts as true in a condition.
func IsTruthy(v Value) bool {
	switch t := v.(type) {
	case BoolValue:
		return t.B
	case NumberValue:
		return !t.N.IsZero() && t.N.Kind != NaNKind
	case StringValue:
		return t.S != ""
	case ASCIIValue:
		return t.S != ""
	default:
		return false
	}
}

// KindName returns a short human-readable name for the kind.
func KindName(k ValueKind) string {
	switch k {
	case KindNull:
		return "Null"
	case KindUndefined:
		return "Undefined"
	case KindBoolean:
		return "Boolean"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindASCII:
		return "ASCII"
	case KindBinary:
		return "Binary"
	case KindArray:
		return "Array"
	case KindTuple:
		return "Tuple"
	case KindStruct:
		return "Struct"
	case KindTable:
		return "Table"
	case KindFunction:
		return "Function"
	case KindPlatformOp:
		return "PlatformOp"
	case KindError:
		return "Error"
	}
	return "Unknown"
}

// TypeNameOf returns the rendered type of v for error messages and the REPL
// result line.
func TypeNameOf(v Value) string {
	switch t := v.(type) {
	case NumberValue:
		return t.N.Kind.Name()
	case TableValue:
		return "Table"
	default:
		return KindName(v.Kind())
	}
}
