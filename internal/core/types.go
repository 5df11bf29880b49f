package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PtrLen is the inline width reserved by unbounded containers, which are
// materialized through the BLOB side-store and referenced by a u64 offset.
const PtrLen = 8

// lenPrefix is the width of the big-endian length prefix carried by bounded
// string-like payloads.
const lenPrefix = 8

// TypeKind discriminates the physical type union. The numeric values are
// part of the wire format used when a type travels inside a BLOB cell.
type TypeKind uint8

const (
	TypeBoolean TypeKind = iota
	TypeNumber
	TypeString
	TypeASCII
	TypeBinary
	TypeArray
	TypeTuple
	TypeStruct
	TypeEnum
	TypeTable
	TypeFunction
	TypePlatformOp
	TypeError
	TypeVarying
	TypeIndeterminate
)

// DataType is a physical type: it knows its exact inline footprint and how
// to move values of the type to and from byte buffers.
type DataType interface {
	// TypeKind returns the union discriminator.
	TypeKind() TypeKind
	// FixedSize returns the exact inline width in bytes, including the
	// 1-byte field metadata prefix.
	FixedSize() int
	// ToCode renders the type declaration as source text.
	ToCode() string
	// DefaultValue returns the zero value of the type.
	DefaultValue() Value
	// Encode returns the raw payload for a value of this type. The payload
	// excludes the field metadata byte and is not padded.
	Encode(v Value) ([]byte, error)
	// Decode reads a value of this type from buf starting at offset.
	Decode(buf []byte, offset int) Value
}

// IsUnbounded reports whether t reserves only a pointer slot inline and
// materializes its payload through the BLOB store.
func IsUnbounded(t DataType) bool {
	switch dt := t.(type) {
	case StringType:
		return dt.Size == 0
	case ASCIIType:
		return dt.Size == 0
	case BinaryType:
		return dt.Size == 0
	case ArrayType:
		return dt.Size == 0
	}
	return false
}

// BooleanType is a 1-byte true/false.
type BooleanType struct{}

func (BooleanType) TypeKind() TypeKind  { return TypeBoolean }
func (BooleanType) FixedSize() int      { return 1 + 1 }
func (BooleanType) ToCode() string      { return "Boolean" }
func (BooleanType) DefaultValue() Value { return Bool(false) }

func (BooleanType) Encode(v Value) ([]byte, error) {
	b, ok := v.(BoolValue)
	if !ok {
		return nil, UnsupportedTypeError("Boolean", TypeNameOf(v))
	}
	if b.B {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (BooleanType) Decode(buf []byte, offset int) Value {
	if offset >= len(buf) {
		return Null
	}
	return Bool(buf[offset] == 1)
}

// NumberType is a numeric type of a particular kind.
type NumberType struct {
	NumberKind NumberKind
}

func (t NumberType) TypeKind() TypeKind { return TypeNumber }
func (t NumberType) FixedSize() int     { return 1 + t.NumberKind.Width() }
func (t NumberType) ToCode() string     { return t.NumberKind.Name() }

func (t NumberType) DefaultValue() Value {
	switch t.NumberKind {
	case NaNKind:
		return Num(NaN())
	case UUIDKind:
		return Num(UUIDNumber(uuid.New()))
	default:
		return Num(Number{Kind: t.NumberKind})
	}
}

func (t NumberType) Encode(v Value) ([]byte, error) {
	n, ok := v.(NumberValue)
	if !ok {
		return nil, UnsupportedTypeError(t.ToCode(), TypeNameOf(v))
	}
	converted := n.N
	converted.Kind = t.NumberKind
	switch {
	case t.NumberKind.IsFloat():
		converted.F = n.N.AsFloat()
	case t.NumberKind.IsUnsigned():
		converted.U = n.N.AsUint()
	case t.NumberKind == UUIDKind:
		converted.ID = n.N.ID
	default:
		converted.I = n.N.AsInt()
	}
	return converted.Encode(), nil
}

func (t NumberType) Decode(buf []byte, offset int) Value {
	return Num(DecodeNumber(t.NumberKind, buf, offset))
}

// StringType is a UTF-8 string bounded by Size bytes of storage; Size 0 is
// unbounded and lives in the BLOB store.
type StringType struct {
	Size int
}

func (t StringType) TypeKind() TypeKind { return TypeString }

func (t StringType) FixedSize() int {
	if t.Size == 0 {
		return 1 + PtrLen
	}
	return 1 + lenPrefix + t.Size
}

func (t StringType) ToCode() string      { return sizedTypeName("String", t.Size) }
func (t StringType) DefaultValue() Value { return Str("") }

func (t StringType) Encode(v Value) ([]byte, error) {
	s, err := stringPayload(v)
	if err != nil {
		return nil, err
	}
	return encodeLengthPrefixed([]byte(s)), nil
}

func (t StringType) Decode(buf []byte, offset int) Value {
	b, ok := decodeLengthPrefixed(buf, offset)
	if !ok {
		return Null
	}
	return Str(string(b))
}

// ASCIIType is a byte-per-character string; Size 0 is unbounded.
type ASCIIType struct {
	Size int
}

func (t ASCIIType) TypeKind() TypeKind { return TypeASCII }

func (t ASCIIType) FixedSize() int {
	if t.Size == 0 {
		return 1 + PtrLen
	}
	return 1 + lenPrefix + t.Size
}

func (t ASCIIType) ToCode() string      { return sizedTypeName("ASCII", t.Size) }
func (t ASCIIType) DefaultValue() Value { return ASCIIValue{} }

func (t ASCIIType) Encode(v Value) ([]byte, error) {
	s, err := stringPayload(v)
	if err != nil {
		return nil, err
	}
	return encodeLengthPrefixed([]byte(s)), nil
}

func (t ASCIIType) Decode(buf []byte, offset int) Value {
	b, ok := decodeLengthPrefixed(buf, offset)
	if !ok {
		return Null
	}
	return ASCIIValue{S: string(b)}
}

// BinaryType is a raw byte blob bounded by Size bytes; Size 0 is unbounded.
type BinaryType struct {
	Size int
}

func (t BinaryType) TypeKind() TypeKind { return TypeBinary }

func (t BinaryType) FixedSize() int {
	if t.Size == 0 {
		return 1 + PtrLen
	}
	return 1 + lenPrefix + t.Size
}

func (t BinaryType) ToCode() string      { return sizedTypeName("Binary", t.Size) }
func (t BinaryType) DefaultValue() Value { return BinaryValue{} }

func (t BinaryType) Encode(v Value) ([]byte, error) {
	b, ok := v.(BinaryValue)
	if !ok {
		return nil, UnsupportedTypeError(t.ToCode(), TypeNameOf(v))
	}
	return encodeLengthPrefixed(b.Bytes), nil
}

func (t BinaryType) Decode(buf []byte, offset int) Value {
	b, ok := decodeLengthPrefixed(buf, offset)
	if !ok {
		return Null
	}
	out := make([]byte, len(b))
	copy(out, b)
	return BinaryValue{Bytes: out}
}

// ArrayType is a sequence bounded by Size inline bytes; Size 0 is unbounded.
type ArrayType struct {
	Size int
}

func (t ArrayType) TypeKind() TypeKind { return TypeArray }

func (t ArrayType) FixedSize() int {
	if t.Size == 0 {
		return 1 + PtrLen
	}
	return 1 + t.Size
}

func (t ArrayType) ToCode() string      { return sizedTypeName("Array", t.Size) }
func (t ArrayType) DefaultValue() Value { return ArrayValue{} }

func (t ArrayType) Encode(v Value) ([]byte, error) {
	a, ok := v.(ArrayValue)
	if !ok {
		return nil, UnsupportedTypeError(t.ToCode(), TypeNameOf(v))
	}
	return EncodeTagged(a), nil
}

func (t ArrayType) Decode(buf []byte, offset int) Value {
	if offset < len(buf) && ValueKind(buf[offset]) == KindArray {
		v, _ := DecodeTagged(buf, offset)
		return v
	}
	return ArrayValue{}
}

// TupleType is a fixed product of element types laid out as consecutive
// field slots.
type TupleType struct {
	Types []DataType
}

func (t TupleType) TypeKind() TypeKind { return TypeTuple }

func (t TupleType) FixedSize() int {
	total := 1
	for _, elem := range t.Types {
		total += elem.FixedSize()
	}
	return total
}

func (t TupleType) ToCode() string {
	parts := make([]string, len(t.Types))
	for i, elem := range t.Types {
		parts[i] = elem.ToCode()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (t TupleType) DefaultValue() Value {
	items := make([]Value, len(t.Types))
	for i, elem := range t.Types {
		items[i] = elem.DefaultValue()
	}
	return TupleValue{Items: items}
}

func (t TupleType) Encode(v Value) ([]byte, error) {
	tup, ok := v.(TupleValue)
	if !ok {
		return nil, UnsupportedTypeError(t.ToCode(), TypeNameOf(v))
	}
	if len(tup.Items) != len(t.Types) {
		return nil, ArgumentsMismatchedError(len(t.Types), len(tup.Items))
	}
	var buf []byte
	for i, elem := range t.Types {
		cell, err := EncodeField(elem, tup.Items[i], FieldMetadata{IsActive: true})
		if err != nil {
			return nil, err
		}
		buf = append(buf, cell...)
	}
	return buf, nil
}

func (t TupleType) Decode(buf []byte, offset int) Value {
	items := make([]Value, len(t.Types))
	pos := offset
	for i, elem := range t.Types {
		items[i] = DecodeFieldValue(elem, buf, pos)
		pos += elem.FixedSize()
	}
	return TupleValue{Items: items}
}

// StructType is a named product; inline it reserves a pointer table.
type StructType struct {
	Params []Parameter
}

func (t StructType) TypeKind() TypeKind { return TypeStruct }
func (t StructType) FixedSize() int     { return 1 + PtrLen*len(t.Params) }

func (t StructType) ToCode() string {
	if len(t.Params) == 0 {
		return "Struct"
	}
	return "Struct(" + RenderParameters(t.Params) + ")"
}

func (t StructType) DefaultValue() Value {
	fields := make([]StructField, len(t.Params))
	for i, p := range t.Params {
		fields[i] = StructField{Name: p.Name, Value: p.DefaultOrZero()}
	}
	return StructValue{Fields: fields}
}

func (t StructType) Encode(v Value) ([]byte, error) {
	s, ok := v.(StructValue)
	if !ok {
		return nil, UnsupportedTypeError(t.ToCode(), TypeNameOf(v))
	}
	return EncodeTagged(s), nil
}

func (t StructType) Decode(buf []byte, offset int) Value {
	if offset < len(buf) && ValueKind(buf[offset]) == KindStruct {
		v, _ := DecodeTagged(buf, offset)
		return v
	}
	return t.DefaultValue()
}

// EnumType is a closed label set stored as a 2-byte ordinal.
type EnumType struct {
	Params []Parameter
}

func (t EnumType) TypeKind() TypeKind { return TypeEnum }
func (t EnumType) FixedSize() int     { return 1 + 2 }

func (t EnumType) ToCode() string {
	if len(t.Params) == 0 {
		return "Enum"
	}
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.ToCodeEnum()
	}
	return "Enum(" + strings.Join(parts, ", ") + ")"
}

func (t EnumType) DefaultValue() Value { return Num(I32(0)) }

// Ordinal resolves a value to its label index.
func (t EnumType) Ordinal(v Value) (int, bool) {
	switch tv := v.(type) {
	case StringValue:
		for i, p := range t.Params {
			if p.Name == tv.S {
				return i, true
			}
		}
	case NumberValue:
		n := int(tv.N.AsInt())
		if n >= 0 && n < len(t.Params) {
			return n, true
		}
	}
	return 0, false
}

func (t EnumType) Encode(v Value) ([]byte, error) {
	n, ok := t.Ordinal(v)
	if !ok {
		return nil, UnsupportedTypeError(t.ToCode(), v.ToCode())
	}
	return []byte{byte(n >> 8), byte(n)}, nil
}

func (t EnumType) Decode(buf []byte, offset int) Value {
	if offset+2 > len(buf) {
		return Null
	}
	n := int(buf[offset])<<8 | int(buf[offset+1])
	if n < len(t.Params) {
		return Str(t.Params[n].Name)
	}
	return Num(U16(uint16(n)))
}

// TableType is a table-valued type; inline it reserves a pointer table.
type TableType struct {
	Params []Parameter
	Cap    int
}

func (t TableType) TypeKind() TypeKind { return TypeTable }
func (t TableType) FixedSize() int     { return 1 + PtrLen*len(t.Params) }

func (t TableType) ToCode() string {
	if len(t.Params) == 0 {
		return "Table"
	}
	return "Table(" + RenderParameters(t.Params) + ")"
}

func (t TableType) DefaultValue() Value { return TableValue{Params: t.Params} }

func (t TableType) Encode(v Value) ([]byte, error) {
	tab, ok := v.(TableValue)
	if !ok {
		return nil, UnsupportedTypeError(t.ToCode(), TypeNameOf(v))
	}
	return EncodeTagged(tab), nil
}

func (t TableType) Decode(buf []byte, offset int) Value {
	if offset < len(buf) && ValueKind(buf[offset]) == KindTable {
		v, _ := DecodeTagged(buf, offset)
		return v
	}
	return t.DefaultValue()
}

// FunctionType is a function signature; inline it reserves a pointer table.
type FunctionType struct {
	Params  []Parameter
	Returns DataType
}

func (t FunctionType) TypeKind() TypeKind { return TypeFunction }
func (t FunctionType) FixedSize() int     { return 1 + PtrLen*len(t.Params) }

func (t FunctionType) ToCode() string {
	returns := ""
	if t.Returns != nil {
		if s := t.Returns.ToCode(); s != "" {
			returns = ": " + s
		}
	}
	return fmt.Sprintf("fn(%s)%s", RenderParameters(t.Params), returns)
}

func (t FunctionType) DefaultValue() Value {
	returns := t.Returns
	if returns == nil {
		returns = IndeterminateType{}
	}
	return FunctionValue{Params: t.Params, Body: SourceCode(""), Returns: returns}
}

func (t FunctionType) Encode(v Value) ([]byte, error) {
	f, ok := v.(FunctionValue)
	if !ok {
		return nil, UnsupportedTypeError(t.ToCode(), TypeNameOf(v))
	}
	return EncodeTagged(f), nil
}

func (t FunctionType) Decode(buf []byte, offset int) Value {
	if offset < len(buf) && ValueKind(buf[offset]) == KindFunction {
		v, _ := DecodeTagged(buf, offset)
		return v
	}
	return t.DefaultValue()
}

// PlatformOpType names a built-in platform operation.
type PlatformOpType struct {
	Op string
}

func (t PlatformOpType) TypeKind() TypeKind  { return TypePlatformOp }
func (t PlatformOpType) FixedSize() int      { return 1 + 4 }
func (t PlatformOpType) ToCode() string      { return t.Op }
func (t PlatformOpType) DefaultValue() Value { return PlatformValue{Op: t.Op} }

func (t PlatformOpType) Encode(Value) ([]byte, error) { return nil, nil }

func (t PlatformOpType) Decode([]byte, int) Value { return PlatformValue{Op: t.Op} }

// ErrorType is a stored error message occupying a 256-byte slot.
type ErrorType struct{}

// errorPayload is the inline budget of an Error slot excluding the field
// metadata byte.
const errorPayload = 256

func (ErrorType) TypeKind() TypeKind  { return TypeError }
func (ErrorType) FixedSize() int      { return 1 + errorPayload }
func (ErrorType) ToCode() string      { return "Error" }
func (ErrorType) DefaultValue() Value { return Erred(EmptyError()) }

func (ErrorType) Encode(v Value) ([]byte, error) {
	e, ok := v.(ErrorValue)
	if !ok {
		return nil, UnsupportedTypeError("Error", TypeNameOf(v))
	}
	msg := []byte(e.Err.Error())
	if len(msg) > errorPayload-lenPrefix {
		msg = msg[:errorPayload-lenPrefix]
	}
	return encodeLengthPrefixed(msg), nil
}

func (ErrorType) Decode(buf []byte, offset int) Value {
	b, ok := decodeLengthPrefixed(buf, offset)
	if !ok {
		return Erred(EmptyError())
	}
	return Erred(ExactError(string(b)))
}

// VaryingType is a closed sum over the listed alternatives, encoded with a
// leading discriminator byte.
type VaryingType struct {
	Alternatives []DataType
}

func (t VaryingType) TypeKind() TypeKind { return TypeVarying }

func (t VaryingType) FixedSize() int {
	max := 0
	for _, alt := range t.Alternatives {
		if n := alt.FixedSize(); n > max {
			max = n
		}
	}
	return 1 + max
}

func (t VaryingType) ToCode() string {
	parts := make([]string, len(t.Alternatives))
	for i, alt := range t.Alternatives {
		parts[i] = alt.ToCode()
	}
	return strings.Join(parts, "|")
}

func (t VaryingType) DefaultValue() Value {
	if len(t.Alternatives) == 0 {
		return Null
	}
	return t.Alternatives[0].DefaultValue()
}

func (t VaryingType) Encode(v Value) ([]byte, error) {
	return EncodeTagged(v), nil
}

func (t VaryingType) Decode(buf []byte, offset int) Value {
	v, _ := DecodeTagged(buf, offset)
	return v
}

// IndeterminateType is the unknown type.
type IndeterminateType struct{}

func (IndeterminateType) TypeKind() TypeKind  { return TypeIndeterminate }
func (IndeterminateType) FixedSize() int      { return 1 + PtrLen }
func (IndeterminateType) ToCode() string      { return "" }
func (IndeterminateType) DefaultValue() Value { return Null }

func (IndeterminateType) Encode(v Value) ([]byte, error) {
	return EncodeTagged(v), nil
}

func (IndeterminateType) Decode(buf []byte, offset int) Value {
	v, _ := DecodeTagged(buf, offset)
	return v
}

func sizedTypeName(name string, size int) string {
	if size == 0 {
		return name
	}
	return fmt.Sprintf("%s(%d)", name, size)
}

func stringPayload(v Value) (string, error) {
	switch t := v.(type) {
	case StringValue:
		return t.S, nil
	case ASCIIValue:
		return t.S, nil
	default:
		return "", StringExpectedError(TypeNameOf(v))
	}
}
