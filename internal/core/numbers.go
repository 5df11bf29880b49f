package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
)

// NumberKind identifies the physical encoding of a numeric value. The
// discriminator values are part of the wire format (Varying tags, BLOB cell
// kinds) and must not be renumbered.
type NumberKind uint8

const (
	DateKind         NumberKind = 0
	F32Kind          NumberKind = 1
	F64Kind          NumberKind = 2
	I8Kind           NumberKind = 3
	I16Kind          NumberKind = 4
	I32Kind          NumberKind = 5
	I64Kind          NumberKind = 6
	I128Kind         NumberKind = 7
	U8Kind           NumberKind = 8
	U16Kind          NumberKind = 9
	U32Kind          NumberKind = 10
	U64Kind          NumberKind = 11
	U128Kind         NumberKind = 12
	UUIDKind         NumberKind = 13
	NaNKind          NumberKind = 14
	AckKind          NumberKind = 15
	RowIDKind        NumberKind = 16
	RowsAffectedKind NumberKind = 17
)

// Width returns the payload byte width of the kind, excluding the 1-byte
// field metadata prefix.
func (k NumberKind) Width() int {
	switch k {
	case AckKind, RowIDKind, RowsAffectedKind:
		return 2
	case I8Kind, U8Kind:
		return 1
	case I16Kind, U16Kind:
		return 2
	case F32Kind, I32Kind, U32Kind:
		return 4
	case DateKind, F64Kind, I64Kind, U64Kind:
		return 8
	case I128Kind, U128Kind, UUIDKind:
		return 16
	case NaNKind:
		return 0
	}
	return 0
}

// Name returns the surface type name of the kind.
func (k NumberKind) Name() string {
	switch k {
	case AckKind:
		return "Ack"
	case RowIDKind:
		return "RowId"
	case RowsAffectedKind:
		return "RowsAffected"
	case DateKind:
		return "Date"
	case F32Kind:
		return "f32"
	case F64Kind:
		return "f64"
	case I8Kind:
		return "i8"
	case I16Kind:
		return "i16"
	case I32Kind:
		return "i32"
	case I64Kind:
		return "i64"
	case I128Kind:
		return "i128"
	case U8Kind:
		return "u8"
	case U16Kind:
		return "u16"
	case U32Kind:
		return "u32"
	case U64Kind:
		return "u64"
	case U128Kind:
		return "u128"
	case UUIDKind:
		return "UUID"
	case NaNKind:
		return "NaN"
	}
	return "unknown"
}

// IsFloat reports whether the kind carries a floating-point payload.
func (k NumberKind) IsFloat() bool {
	return k == F32Kind || k == F64Kind || k == NaNKind
}

// IsSigned reports whether the kind carries a signed integer payload.
func (k NumberKind) IsSigned() bool {
	switch k {
	case I8Kind, I16Kind, I32Kind, I64Kind, I128Kind, DateKind, RowsAffectedKind:
		return true
	}
	return false
}

// IsUnsigned reports whether the kind carries an unsigned integer payload.
func (k NumberKind) IsUnsigned() bool {
	switch k {
	case U8Kind, U16Kind, U32Kind, U64Kind, U128Kind, RowIDKind:
		return true
	}
	return false
}

// Number is a numeric payload tagged by kind. Exactly one of the payload
// fields is meaningful for a given kind: I for signed kinds (including Date
// and RowsAffected), U for unsigned kinds (including RowId), F for float
// kinds, ID for UUID. The 128-bit kinds occupy 16-byte slots on disk but
// carry 64-bit payloads in memory.
type Number struct {
	Kind NumberKind
	I    int64
	U    uint64
	F    float64
	ID   uuid.UUID
}

// Ack is the successful unit result of a statement without a payload.
func Ack() Number { return Number{Kind: AckKind} }

// NaN is the floating-point not-a-number result.
func NaN() Number { return Number{Kind: NaNKind, F: math.NaN()} }

// I64 builds an i64 number.
func I64(v int64) Number { return Number{Kind: I64Kind, I: v} }

// I32 builds an i32 number.
func I32(v int32) Number { return Number{Kind: I32Kind, I: int64(v)} }

// I16 builds an i16 number.
func I16(v int16) Number { return Number{Kind: I16Kind, I: int64(v)} }

// I8 builds an i8 number.
func I8(v int8) Number { return Number{Kind: I8Kind, I: int64(v)} }

// I128 builds an i128 number from a 64-bit payload.
func I128(v int64) Number { return Number{Kind: I128Kind, I: v} }

// U64 builds a u64 number.
func U64(v uint64) Number { return Number{Kind: U64Kind, U: v} }

// U32 builds a u32 number.
func U32(v uint32) Number { return Number{Kind: U32Kind, U: uint64(v)} }

// U16 builds a u16 number.
func U16(v uint16) Number { return Number{Kind: U16Kind, U: uint64(v)} }

// U8 builds a u8 number.
func U8(v uint8) Number { return Number{Kind: U8Kind, U: uint64(v)} }

// U128 builds a u128 number from a 64-bit payload.
func U128(v uint64) Number { return Number{Kind: U128Kind, U: v} }

// F64 builds an f64 number.
func F64(v float64) Number { return Number{Kind: F64Kind, F: v} }

// F32 builds an f32 number.
func F32(v float32) Number { return Number{Kind: F32Kind, F: float64(v)} }

// Date builds a Date number from epoch milliseconds.
func Date(millis int64) Number { return Number{Kind: DateKind, I: millis} }

// RowID builds a RowId number.
func RowID(id uint64) Number { return Number{Kind: RowIDKind, U: id} }

// RowsAffected builds a RowsAffected number.
func RowsAffected(n int64) Number { return Number{Kind: RowsAffectedKind, I: n} }

// UUIDNumber builds a UUID number.
func UUIDNumber(id uuid.UUID) Number { return Number{Kind: UUIDKind, ID: id} }

// AsInt returns the payload as a signed integer.
func (n Number) AsInt() int64 {
	switch {
	case n.Kind.IsFloat():
		return int64(n.F)
	case n.Kind.IsUnsigned():
		return int64(n.U)
	default:
		return n.I
	}
}

// AsUint returns the payload as an unsigned integer.
func (n Number) AsUint() uint64 {
	switch {
	case n.Kind.IsFloat():
		return uint64(n.F)
	case n.Kind.IsUnsigned():
		return n.U
	default:
		return uint64(n.I)
	}
}

// AsFloat returns the payload as a float.
func (n Number) AsFloat() float64 {
	switch {
	case n.Kind.IsFloat():
		return n.F
	case n.Kind.IsUnsigned():
		return float64(n.U)
	default:
		return float64(n.I)
	}
}

// IsZero reports whether the payload is numerically zero.
func (n Number) IsZero() bool {
	switch {
	case n.Kind.IsFloat():
		return n.F == 0
	case n.Kind.IsUnsigned():
		return n.U == 0
	default:
		return n.I == 0
	}
}

// Encode returns the big-endian payload at the kind's declared width.
func (n Number) Encode() []byte {
	buf := make([]byte, n.Kind.Width())
	switch n.Kind {
	case NaNKind:
		// zero width
	case AckKind:
		// the 2-byte slot is reserved; Ack carries no payload
	case I8Kind:
		buf[0] = byte(int8(n.I))
	case U8Kind:
		buf[0] = byte(n.U)
	case I16Kind:
		binary.BigEndian.PutUint16(buf, uint16(int16(n.I)))
	case U16Kind:
		binary.BigEndian.PutUint16(buf, uint16(n.U))
	case RowIDKind:
		binary.BigEndian.PutUint16(buf, uint16(n.U))
	case RowsAffectedKind:
		binary.BigEndian.PutUint16(buf, uint16(int16(n.I)))
	case I32Kind:
		binary.BigEndian.PutUint32(buf, uint32(int32(n.I)))
	case U32Kind:
		binary.BigEndian.PutUint32(buf, uint32(n.U))
	case F32Kind:
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(n.F)))
	case I64Kind, DateKind:
		binary.BigEndian.PutUint64(buf, uint64(n.I))
	case U64Kind:
		binary.BigEndian.PutUint64(buf, n.U)
	case F64Kind:
		binary.BigEndian.PutUint64(buf, math.Float64bits(n.F))
	case I128Kind:
		// sign-extend the 64-bit payload across the high quadword
		if n.I < 0 {
			for i := 0; i < 8; i++ {
				buf[i] = 0xff
			}
		}
		binary.BigEndian.PutUint64(buf[8:], uint64(n.I))
	case U128Kind:
		binary.BigEndian.PutUint64(buf[8:], n.U)
	case UUIDKind:
		copy(buf, n.ID[:])
	}
	return buf
}

// DecodeNumber reads a number of the given kind from buf at offset.
func DecodeNumber(kind NumberKind, buf []byte, offset int) Number {
	if offset+kind.Width() > len(buf) {
		return NaN()
	}
	b := buf[offset:]
	switch kind {
	case NaNKind:
		return NaN()
	case AckKind:
		return Ack()
	case I8Kind:
		return I8(int8(b[0]))
	case U8Kind:
		return U8(b[0])
	case I16Kind:
		return I16(int16(binary.BigEndian.Uint16(b)))
	case U16Kind:
		return U16(binary.BigEndian.Uint16(b))
	case RowIDKind:
		return RowID(uint64(binary.BigEndian.Uint16(b)))
	case RowsAffectedKind:
		return RowsAffected(int64(int16(binary.BigEndian.Uint16(b))))
	case I32Kind:
		return I32(int32(binary.BigEndian.Uint32(b)))
	case U32Kind:
		return U32(binary.BigEndian.Uint32(b))
	case F32Kind:
		return F32(math.Float32frombits(binary.BigEndian.Uint32(b)))
	case I64Kind:
		return I64(int64(binary.BigEndian.Uint64(b)))
	case DateKind:
		return Date(int64(binary.BigEndian.Uint64(b)))
	case U64Kind:
		return U64(binary.BigEndian.Uint64(b))
	case F64Kind:
		return F64(math.Float64frombits(binary.BigEndian.Uint64(b)))
	case I128Kind:
		return I128(int64(binary.BigEndian.Uint64(b[8:])))
	case U128Kind:
		return U128(binary.BigEndian.Uint64(b[8:]))
	case UUIDKind:
		var id uuid.UUID
		copy(id[:], b[:16])
		return UUIDNumber(id)
	}
	return NaN()
}

// String renders the number as it would appear in source code.
func (n Number) String() string {
	switch n.Kind {
	case AckKind:
		return "ack"
	case NaNKind:
		return "NaN"
	case UUIDKind:
		return n.ID.String()
	case F32Kind, F64Kind:
		return strconv.FormatFloat(n.F, 'f', -1, 64)
	case RowIDKind:
		return fmt.Sprintf("%d", n.U)
	default:
		if n.Kind.IsUnsigned() {
			return strconv.FormatUint(n.U, 10)
		}
		return strconv.FormatInt(n.I, 10)
	}
}
