package core

import (
	"bytes"
	"encoding/binary"
)

// encodeLengthPrefixed produces the bounded string-like payload form: a
// big-endian u64 length followed by the raw bytes.
func encodeLengthPrefixed(b []byte) []byte {
	buf := make([]byte, lenPrefix+len(b))
	binary.BigEndian.PutUint64(buf, uint64(len(b)))
	copy(buf[lenPrefix:], b)
	return buf
}

// decodeLengthPrefixed reads a u64-length-prefixed payload at offset.
func decodeLengthPrefixed(buf []byte, offset int) ([]byte, bool) {
	if offset+lenPrefix > len(buf) {
		return nil, false
	}
	n := int(binary.BigEndian.Uint64(buf[offset:]))
	if n < 0 || offset+lenPrefix+n > len(buf) {
		return nil, false
	}
	return buf[offset+lenPrefix : offset+lenPrefix+n], true
}

// EncodeField produces a complete field slot for the value: the metadata
// byte followed by the payload, zero-padded to the type's fixed size. An
// inactive metadata byte yields an all-zero payload region.
func EncodeField(dt DataType, v Value, meta FieldMetadata) ([]byte, error) {
	capacity := dt.FixedSize()
	buf := make([]byte, capacity)
	buf[0] = meta.Encode()
	if !meta.IsActive {
		return buf, nil
	}
	payload, err := dt.Encode(v)
	if err != nil {
		return nil, err
	}
	if len(payload) > capacity-1 {
		return nil, ValueTruncatedError(dt.ToCode(), capacity-1, len(payload))
	}
	copy(buf[1:], payload)
	return buf, nil
}

// DecodeFieldValue reads a field slot at offset: the metadata byte decides
// between a null and a type-directed payload decode.
func DecodeFieldValue(dt DataType, buf []byte, offset int) Value {
	if offset >= len(buf) {
		return Null
	}
	meta := DecodeFieldMetadata(buf[offset])
	if !meta.IsActive {
		return Null
	}
	return dt.Decode(buf, offset+1)
}

// tagged value codec
//
// The tagged form leads with the ValueKind discriminator and is used where
// the type is not known from context: Varying slots, BLOB cells, and table
// values crossing a serialization boundary.

// EncodeTagged encodes a value with its leading kind discriminator.
func EncodeTagged(v Value) []byte {
	var w bytes.Buffer
	writeTagged(&w, v)
	return w.Bytes()
}

func writeTagged(w *bytes.Buffer, v Value) {
	w.WriteByte(byte(v.Kind()))
	switch t := v.(type) {
	case NullValue, UndefinedValue:
	case BoolValue:
		if t.B {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case NumberValue:
		w.WriteByte(byte(t.N.Kind))
		w.Write(t.N.Encode())
	case StringValue:
		writeBytes(w, []byte(t.S))
	case ASCIIValue:
		writeBytes(w, []byte(t.S))
	case BinaryValue:
		writeBytes(w, t.Bytes)
	case ArrayValue:
		writeCount(w, len(t.Items))
		for _, item := range t.Items {
			writeTagged(w, item)
		}
	case TupleValue:
		writeCount(w, len(t.Items))
		for _, item := range t.Items {
			writeTagged(w, item)
		}
	case StructValue:
		writeCount(w, len(t.Fields))
		for _, f := range t.Fields {
			writeBytes(w, []byte(f.Name))
			writeTagged(w, f.Value)
		}
	case TableValue:
		writeParameters(w, t.Params)
		writeCount(w, len(t.Rows))
		for _, row := range t.Rows {
			var id [8]byte
			binary.BigEndian.PutUint64(id[:], row.ID)
			w.Write(id[:])
			writeCount(w, len(row.Values))
			for _, value := range row.Values {
				writeTagged(w, value)
			}
		}
	case FunctionValue:
		writeParameters(w, t.Params)
		writeType(w, t.Returns)
		writeBytes(w, []byte(t.Body.ToCode()))
	case PlatformValue:
		writeBytes(w, []byte(t.Op))
	case ErrorValue:
		writeBytes(w, []byte(t.Err.Kind))
		writeBytes(w, []byte(t.Err.Mismatch))
		writeBytes(w, []byte(t.Err.Message))
	}
}

// DecodeTagged decodes a tagged value at offset, returning the value and
// the offset past it. Malformed input yields Undefined.
func DecodeTagged(buf []byte, offset int) (Value, int) {
	if offset >= len(buf) {
		return Undefined, offset
	}
	kind := ValueKind(buf[offset])
	pos := offset + 1
	switch kind {
	case KindNull:
		return Null, pos
	case KindUndefined:
		return Undefined, pos
	case KindBoolean:
		if pos >= len(buf) {
			return Undefined, pos
		}
		return Bool(buf[pos] == 1), pos + 1
	case KindNumber:
		if pos >= len(buf) {
			return Undefined, pos
		}
		nk := NumberKind(buf[pos])
		pos++
		n := DecodeNumber(nk, buf, pos)
		return Num(n), pos + nk.Width()
	case KindString:
		b, next := readBytes(buf, pos)
		return Str(string(b)), next
	case KindASCII:
		b, next := readBytes(buf, pos)
		return ASCIIValue{S: string(b)}, next
	case KindBinary:
		b, next := readBytes(buf, pos)
		out := make([]byte, len(b))
		copy(out, b)
		return BinaryValue{Bytes: out}, next
	case KindArray, KindTuple:
		n, next := readCount(buf, pos)
		items := make([]Value, 0, n)
		pos = next
		for i := 0; i < n; i++ {
			var item Value
			item, pos = DecodeTagged(buf, pos)
			items = append(items, item)
		}
		if kind == KindArray {
			return ArrayValue{Items: items}, pos
		}
		return TupleValue{Items: items}, pos
	case KindStruct:
		n, next := readCount(buf, pos)
		fields := make([]StructField, 0, n)
		pos = next
		for i := 0; i < n; i++ {
			name, p := readBytes(buf, pos)
			var value Value
			value, pos = DecodeTagged(buf, p)
			fields = append(fields, StructField{Name: string(name), Value: value})
		}
		return StructValue{Fields: fields}, pos
	case KindTable:
		params, next := readParameters(buf, pos)
		n, next := readCount(buf, next)
		rows := make([]Row, 0, n)
		pos = next
		for i := 0; i < n; i++ {
			if pos+8 > len(buf) {
				return Undefined, pos
			}
			id := binary.BigEndian.Uint64(buf[pos:])
			pos += 8
			var count int
			count, pos = readCount(buf, pos)
			values := make([]Value, 0, count)
			for j := 0; j < count; j++ {
				var value Value
				value, pos = DecodeTagged(buf, pos)
				values = append(values, value)
			}
			rows = append(rows, Row{ID: id, Values: values})
		}
		return TableValue{Params: params, Rows: rows}, pos
	case KindFunction:
		params, next := readParameters(buf, pos)
		returns, next2 := readType(buf, next)
		body, next3 := readBytes(buf, next2)
		return FunctionValue{Params: params, Returns: returns, Body: SourceCode(body)}, next3
	case KindPlatformOp:
		op, next := readBytes(buf, pos)
		return PlatformValue{Op: string(op)}, next
	case KindError:
		k, p1 := readBytes(buf, pos)
		m, p2 := readBytes(buf, p1)
		msg, p3 := readBytes(buf, p2)
		return Erred(&EngineError{
			Kind:     ErrorKind(k),
			Mismatch: MismatchKind(m),
			Message:  string(msg),
		}), p3
	}
	return Undefined, pos
}

// binary type codec
//
// Types travel in binary form when a table value or a function crosses a
// serialization boundary (a BLOB cell, a related structure).

// EncodeType encodes a data type in its binary form.
func EncodeType(t DataType) []byte {
	var w bytes.Buffer
	writeType(&w, t)
	return w.Bytes()
}

func writeType(w *bytes.Buffer, t DataType) {
	if t == nil {
		t = IndeterminateType{}
	}
	w.WriteByte(byte(t.TypeKind()))
	switch dt := t.(type) {
	case NumberType:
		w.WriteByte(byte(dt.NumberKind))
	case StringType:
		writeCount(w, dt.Size)
	case ASCIIType:
		writeCount(w, dt.Size)
	case BinaryType:
		writeCount(w, dt.Size)
	case ArrayType:
		writeCount(w, dt.Size)
	case TupleType:
		writeCount(w, len(dt.Types))
		for _, elem := range dt.Types {
			writeType(w, elem)
		}
	case StructType:
		writeParameters(w, dt.Params)
	case EnumType:
		writeParameters(w, dt.Params)
	case TableType:
		writeParameters(w, dt.Params)
		writeCount(w, dt.Cap)
	case FunctionType:
		writeParameters(w, dt.Params)
		writeType(w, dt.Returns)
	case PlatformOpType:
		writeBytes(w, []byte(dt.Op))
	case VaryingType:
		writeCount(w, len(dt.Alternatives))
		for _, alt := range dt.Alternatives {
			writeType(w, alt)
		}
	}
}

// readType decodes a binary-form type at offset, returning the type and
// the offset past it.
func readType(buf []byte, offset int) (DataType, int) {
	if offset >= len(buf) {
		return IndeterminateType{}, offset
	}
	kind := TypeKind(buf[offset])
	pos := offset + 1
	switch kind {
	case TypeBoolean:
		return BooleanType{}, pos
	case TypeNumber:
		if pos >= len(buf) {
			return IndeterminateType{}, pos
		}
		return NumberType{NumberKind: NumberKind(buf[pos])}, pos + 1
	case TypeString:
		n, next := readCount(buf, pos)
		return StringType{Size: n}, next
	case TypeASCII:
		n, next := readCount(buf, pos)
		return ASCIIType{Size: n}, next
	case TypeBinary:
		n, next := readCount(buf, pos)
		return BinaryType{Size: n}, next
	case TypeArray:
		n, next := readCount(buf, pos)
		return ArrayType{Size: n}, next
	case TypeTuple:
		n, next := readCount(buf, pos)
		types := make([]DataType, 0, n)
		pos = next
		for i := 0; i < n; i++ {
			var elem DataType
			elem, pos = readType(buf, pos)
			types = append(types, elem)
		}
		return TupleType{Types: types}, pos
	case TypeStruct:
		params, next := readParameters(buf, pos)
		return StructType{Params: params}, next
	case TypeEnum:
		params, next := readParameters(buf, pos)
		return EnumType{Params: params}, next
	case TypeTable:
		params, next := readParameters(buf, pos)
		cap, next2 := readCount(buf, next)
		return TableType{Params: params, Cap: cap}, next2
	case TypeFunction:
		params, next := readParameters(buf, pos)
		returns, next2 := readType(buf, next)
		return FunctionType{Params: params, Returns: returns}, next2
	case TypePlatformOp:
		op, next := readBytes(buf, pos)
		return PlatformOpType{Op: string(op)}, next
	case TypeError:
		return ErrorType{}, pos
	case TypeVarying:
		n, next := readCount(buf, pos)
		alts := make([]DataType, 0, n)
		pos = next
		for i := 0; i < n; i++ {
			var alt DataType
			alt, pos = readType(buf, pos)
			alts = append(alts, alt)
		}
		return VaryingType{Alternatives: alts}, pos
	case TypeIndeterminate:
		return IndeterminateType{}, pos
	}
	return IndeterminateType{}, pos
}

// DecodeTypeAt is the exported form of the binary type decoder.
func DecodeTypeAt(buf []byte, offset int) (DataType, int) {
	return readType(buf, offset)
}

func writeParameters(w *bytes.Buffer, params []Parameter) {
	writeCount(w, len(params))
	for _, p := range params {
		writeBytes(w, []byte(p.Name))
		writeType(w, p.Type)
		if p.Default != nil {
			w.WriteByte(1)
			writeTagged(w, p.Default)
		} else {
			w.WriteByte(0)
		}
	}
}

func readParameters(buf []byte, offset int) ([]Parameter, int) {
	n, pos := readCount(buf, offset)
	params := make([]Parameter, 0, n)
	for i := 0; i < n; i++ {
		name, p1 := readBytes(buf, pos)
		dt, p2 := readType(buf, p1)
		param := Parameter{Name: string(name), Type: dt}
		pos = p2
		if pos < len(buf) && buf[pos] == 1 {
			param.Default, pos = DecodeTagged(buf, pos+1)
		} else {
			pos++
		}
		params = append(params, param)
	}
	return params, pos
}

func writeCount(w *bytes.Buffer, n int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	w.Write(b[:])
}

func readCount(buf []byte, offset int) (int, int) {
	if offset+4 > len(buf) {
		return 0, len(buf)
	}
	return int(binary.BigEndian.Uint32(buf[offset:])), offset + 4
}

func writeBytes(w *bytes.Buffer, b []byte) {
	writeCount(w, len(b))
	w.Write(b)
}

func readBytes(buf []byte, offset int) ([]byte, int) {
	n, pos := readCount(buf, offset)
	if pos+n > len(buf) {
		return nil, len(buf)
	}
	return buf[pos : pos+n], pos + n
}
