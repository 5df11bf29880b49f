package core

import (
	"math"
	"regexp"
	"strings"
)

// The arithmetic tower. Operations lift through the numeric kinds: any
// float operand promotes the result to f64, two unsigned operands keep the
// wider unsigned kind, two signed operands keep the wider signed kind (Date
// wins over the other signed kinds), and everything else (mixed signedness,
// or a RowsAffected operand) computes in i64. Errors poison the result: an
// error operand is returned unchanged.

// Add evaluates a + b.
func Add(a, b Value) Value {
	if e := firstError(a, b); e != nil {
		return e
	}
	switch x := a.(type) {
	case NumberValue:
		if y, ok := b.(NumberValue); ok {
			return numericOp(x.N, y.N, intAdd, uintAdd, floatAdd)
		}
	case StringValue:
		if y, ok := b.(StringValue); ok {
			return Str(x.S + y.S)
		}
	case ArrayValue:
		if y, ok := b.(ArrayValue); ok {
			items := append(append([]Value{}, x.Items...), y.Items...)
			return ArrayValue{Items: items}
		}
		return mapArray(x, func(item Value) Value { return Add(item, b) })
	}
	return unsupported("+", a, b)
}

// Concat evaluates a ++ b, the explicit concatenation operator.
func Concat(a, b Value) Value {
	if e := firstError(a, b); e != nil {
		return e
	}
	switch x := a.(type) {
	case StringValue:
		if y, ok := b.(StringValue); ok {
			return Str(x.S + y.S)
		}
	case ArrayValue:
		if y, ok := b.(ArrayValue); ok {
			items := append(append([]Value{}, x.Items...), y.Items...)
			return ArrayValue{Items: items}
		}
	}
	return unsupported("++", a, b)
}

// Subtract evaluates a - b.
func Subtract(a, b Value) Value {
	if e := firstError(a, b); e != nil {
		return e
	}
	if x, ok := a.(NumberValue); ok {
		if y, ok := b.(NumberValue); ok {
			return numericOp(x.N, y.N, intSub, uintSub, floatSub)
		}
	}
	if x, ok := a.(ArrayValue); ok {
		return mapArray(x, func(item Value) Value { return Subtract(item, b) })
	}
	return unsupported("-", a, b)
}

// Multiply evaluates a * b. An array operand distributes the scalar over
// its items.
func Multiply(a, b Value) Value {
	if e := firstError(a, b); e != nil {
		return e
	}
	if x, ok := a.(NumberValue); ok {
		if y, ok := b.(NumberValue); ok {
			return numericOp(x.N, y.N, intMul, uintMul, floatMul)
		}
		if y, ok := b.(ArrayValue); ok {
			return mapArray(y, func(item Value) Value { return Multiply(item, a) })
		}
	}
	if x, ok := a.(ArrayValue); ok {
		return mapArray(x, func(item Value) Value { return Multiply(item, b) })
	}
	return unsupported("*", a, b)
}

// Divide evaluates a / b. A float division by zero yields NaN; an integer
// division by zero yields a typed error value.
func Divide(a, b Value) Value {
	if e := firstError(a, b); e != nil {
		return e
	}
	x, ok1 := a.(NumberValue)
	y, ok2 := b.(NumberValue)
	if !ok1 || !ok2 {
		if arr, ok := a.(ArrayValue); ok {
			return mapArray(arr, func(item Value) Value { return Divide(item, b) })
		}
		return unsupported("/", a, b)
	}
	if y.N.IsZero() {
		if x.N.Kind.IsFloat() || y.N.Kind.IsFloat() {
			return Num(NaN())
		}
		return Erred(ExactError("division by zero"))
	}
	return numericOp(x.N, y.N, intDiv, uintDiv, floatDiv)
}

// Modulo evaluates a % b with the zero-divisor rules of Divide.
func Modulo(a, b Value) Value {
	if e := firstError(a, b); e != nil {
		return e
	}
	x, ok1 := a.(NumberValue)
	y, ok2 := b.(NumberValue)
	if !ok1 || !ok2 {
		return unsupported("%", a, b)
	}
	if y.N.IsZero() {
		if x.N.Kind.IsFloat() || y.N.Kind.IsFloat() {
			return Num(NaN())
		}
		return Erred(ExactError("division by zero"))
	}
	return numericOp(x.N, y.N,
		func(p, q int64) int64 { return p % q },
		func(p, q uint64) uint64 { return p % q },
		math.Mod)
}

// Pow evaluates a ** b, always in f64.
func Pow(a, b Value) Value {
	if e := firstError(a, b); e != nil {
		return e
	}
	x, ok1 := a.(NumberValue)
	y, ok2 := b.(NumberValue)
	if !ok1 || !ok2 {
		return unsupported("**", a, b)
	}
	return Num(F64(math.Pow(x.N.AsFloat(), y.N.AsFloat())))
}

// Negate evaluates -a.
func Negate(a Value) Value {
	if IsError(a) {
		return a
	}
	x, ok := a.(NumberValue)
	if !ok {
		return unsupported("-", a, a)
	}
	if x.N.Kind.IsFloat() {
		return Num(F64(-x.N.F))
	}
	return Num(I64(-x.N.AsInt()))
}

// Factorial evaluates a¡ as a u128 number.
func Factorial(a Value) Value {
	if IsError(a) {
		return a
	}
	x, ok := a.(NumberValue)
	if !ok {
		return unsupported("¡", a, a)
	}
	n := x.N.AsInt()
	if n < 0 {
		return Erred(ExactError("factorial of a negative number"))
	}
	var result uint64 = 1
	for i := int64(2); i <= n; i++ {
		result *= uint64(i)
	}
	return Num(U128(result))
}

// BitAnd evaluates a & b.
func BitAnd(a, b Value) Value { return bitwise("&", a, b, func(p, q int64) int64 { return p & q }) }

// BitOr evaluates a | b.
func BitOr(a, b Value) Value { return bitwise("|", a, b, func(p, q int64) int64 { return p | q }) }

// BitXor evaluates a ^ b.
func BitXor(a, b Value) Value { return bitwise("^", a, b, func(p, q int64) int64 { return p ^ q }) }

// ShiftLeft evaluates a << b.
func ShiftLeft(a, b Value) Value {
	return bitwise("<<", a, b, func(p, q int64) int64 { return p << uint64(q) })
}

// ShiftRight evaluates a >> b.
func ShiftRight(a, b Value) Value {
	return bitwise(">>", a, b, func(p, q int64) int64 { return p >> uint64(q) })
}

func bitwise(op string, a, b Value, f func(int64, int64) int64) Value {
	if e := firstError(a, b); e != nil {
		return e
	}
	x, ok1 := a.(NumberValue)
	y, ok2 := b.(NumberValue)
	if !ok1 || !ok2 || x.N.Kind.IsFloat() || y.N.Kind.IsFloat() {
		return unsupported(op, a, b)
	}
	return Num(I64(f(x.N.AsInt(), y.N.AsInt())))
}

// Compare orders two values, returning (-1|0|1, true) when they are
// comparable.
func Compare(a, b Value) (int, bool) {
	switch x := a.(type) {
	case NumberValue:
		if y, ok := b.(NumberValue); ok {
			xf, yf := x.N.AsFloat(), y.N.AsFloat()
			switch {
			case xf < yf:
				return -1, true
			case xf > yf:
				return 1, true
			default:
				return 0, true
			}
		}
	case StringValue:
		if y, ok := b.(StringValue); ok {
			return strings.Compare(x.S, y.S), true
		}
	case ASCIIValue:
		if y, ok := b.(ASCIIValue); ok {
			return strings.Compare(x.S, y.S), true
		}
	case BoolValue:
		if y, ok := b.(BoolValue); ok {
			switch {
			case x.B == y.B:
				return 0, true
			case y.B:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

// Equal reports deep value equality.
func Equal(a, b Value) bool {
	if n, ok := Compare(a, b); ok {
		return n == 0
	}
	switch x := a.(type) {
	case NullValue:
		_, ok := b.(NullValue)
		return ok
	case UndefinedValue:
		_, ok := b.(UndefinedValue)
		return ok
	case ArrayValue:
		y, ok := b.(ArrayValue)
		return ok && itemsEqual(x.Items, y.Items)
	case TupleValue:
		y, ok := b.(TupleValue)
		return ok && itemsEqual(x.Items, y.Items)
	case StructValue:
		y, ok := b.(StructValue)
		if !ok || len(x.Fields) != len(y.Fields) {
			return false
		}
		// order-insensitive, after the original's matches() semantics
		for _, f := range x.Fields {
			if !Equal(f.Value, y.Get(f.Name)) {
				return false
			}
		}
		return true
	case BinaryValue:
		y, ok := b.(BinaryValue)
		if !ok || len(x.Bytes) != len(y.Bytes) {
			return false
		}
		for i := range x.Bytes {
			if x.Bytes[i] != y.Bytes[i] {
				return false
			}
		}
		return true
	}
	return false
}

func itemsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Contains reports membership: an item in an array, a substring in a
// string, or a field name in a struct.
func Contains(container, item Value) Value {
	if e := firstError(container, item); e != nil {
		return e
	}
	switch c := container.(type) {
	case ArrayValue:
		for _, member := range c.Items {
			if Equal(member, item) {
				return Bool(true)
			}
		}
		return Bool(false)
	case StringValue:
		if s, ok := item.(StringValue); ok {
			return Bool(strings.Contains(c.S, s.S))
		}
	case StructValue:
		if s, ok := item.(StringValue); ok {
			for _, f := range c.Fields {
				if f.Name == s.S {
					return Bool(true)
				}
			}
			return Bool(false)
		}
	}
	return unsupported("contains", container, item)
}

// Like matches a string against a SQL-style pattern where % matches any run
// and _ matches a single character.
func Like(a, pattern Value) Value {
	if e := firstError(a, pattern); e != nil {
		return e
	}
	s, ok1 := a.(StringValue)
	p, ok2 := pattern.(StringValue)
	if !ok1 || !ok2 {
		return unsupported("like", a, pattern)
	}
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range p.S {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return Erred(ExactError(err.Error()))
	}
	return Bool(re.MatchString(s.S))
}

// Between reports lo <= a <= hi.
func Between(a, lo, hi Value) Value {
	c1, ok1 := Compare(a, lo)
	c2, ok2 := Compare(a, hi)
	if !ok1 || !ok2 {
		return unsupported("between", a, lo)
	}
	return Bool(c1 >= 0 && c2 <= 0)
}

// Betwixt reports lo <= a < hi.
func Betwixt(a, lo, hi Value) Value {
	c1, ok1 := Compare(a, lo)
	c2, ok2 := Compare(a, hi)
	if !ok1 || !ok2 {
		return unsupported("betwixt", a, lo)
	}
	return Bool(c1 >= 0 && c2 < 0)
}

// ElementAt indexes into an array, tuple, string, or struct.
func ElementAt(container, index Value) Value {
	if e := firstError(container, index); e != nil {
		return e
	}
	switch c := container.(type) {
	case ArrayValue:
		return indexItems(c.Items, index)
	case TupleValue:
		return indexItems(c.Items, index)
	case StringValue:
		n, ok := index.(NumberValue)
		if !ok {
			return unsupported("[]", container, index)
		}
		i := int(n.N.AsInt())
		runes := []rune(c.S)
		if i < 0 || i >= len(runes) {
			return Erred(Exactf("index %d out of range (0..%d)", i, len(runes)))
		}
		return Str(string(runes[i]))
	case StructValue:
		if name, ok := index.(StringValue); ok {
			return c.Get(name.S)
		}
	}
	return unsupported("[]", container, index)
}

func indexItems(items []Value, index Value) Value {
	n, ok := index.(NumberValue)
	if !ok {
		return unsupported("[]", ArrayValue{Items: items}, index)
	}
	i := int(n.N.AsInt())
	if i < 0 || i >= len(items) {
		return Erred(Exactf("index %d out of range (0..%d)", i, len(items)))
	}
	return items[i]
}

// RangeValues expands a..b into the array of intermediate integers.
func RangeValues(a, b Value) Value {
	if e := firstError(a, b); e != nil {
		return e
	}
	x, ok1 := a.(NumberValue)
	y, ok2 := b.(NumberValue)
	if !ok1 || !ok2 {
		return unsupported("..", a, b)
	}
	lo, hi := x.N.AsInt(), y.N.AsInt()
	var items []Value
	for i := lo; i < hi; i++ {
		items = append(items, Num(I64(i)))
	}
	return ArrayValue{Items: items}
}

func numericOp(a, b Number, fi func(int64, int64) int64, fu func(uint64, uint64) uint64, ff func(float64, float64) float64) Value {
	if a.Kind == NaNKind || b.Kind == NaNKind {
		return Num(NaN())
	}
	if a.Kind.IsFloat() || b.Kind.IsFloat() {
		return Num(F64(ff(a.AsFloat(), b.AsFloat())))
	}
	if a.Kind.IsUnsigned() && b.Kind.IsUnsigned() {
		kind := a.Kind
		if b.Kind.Width() > a.Kind.Width() {
			kind = b.Kind
		}
		return Num(Number{Kind: kind, U: fu(a.AsUint(), b.AsUint())})
	}
	kind := I64Kind
	if a.Kind.IsSigned() && b.Kind.IsSigned() && a.Kind != RowsAffectedKind && b.Kind != RowsAffectedKind {
		kind = a.Kind
		if b.Kind.Width() > a.Kind.Width() {
			kind = b.Kind
		}
		if a.Kind == DateKind || b.Kind == DateKind {
			kind = DateKind
		}
	}
	return Num(Number{Kind: kind, I: fi(a.AsInt(), b.AsInt())})
}

func mapArray(a ArrayValue, f func(Value) Value) Value {
	items := make([]Value, len(a.Items))
	for i, item := range a.Items {
		items[i] = f(item)
		if IsError(items[i]) {
			return items[i]
		}
	}
	return ArrayValue{Items: items}
}

func firstError(a, b Value) Value {
	if IsError(a) {
		return a
	}
	if IsError(b) {
		return b
	}
	return nil
}

func unsupported(op string, a, b Value) Value {
	return Erred(UnsupportedTypeError(
		TypeNameOf(a)+" "+op+" "+TypeNameOf(b), TypeNameOf(b)))
}

func intAdd(a, b int64) int64       { return a + b }
func intSub(a, b int64) int64       { return a - b }
func intMul(a, b int64) int64       { return a * b }
func intDiv(a, b int64) int64       { return a / b }
func uintAdd(a, b uint64) uint64    { return a + b }
func uintSub(a, b uint64) uint64    { return a - b }
func uintMul(a, b uint64) uint64    { return a * b }
func uintDiv(a, b uint64) uint64    { return a / b }
func floatAdd(a, b float64) float64 { return a + b }
func floatSub(a, b float64) float64 { return a - b }
func floatMul(a, b float64) float64 { return a * b }
func floatDiv(a, b float64) float64 { return a / b }
