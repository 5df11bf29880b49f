package machine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"oxide/internal/core"
	"oxide/internal/lang"
	"oxide/internal/output"
)

// Version is the engine version reported by vm::version().
const Version = "0.1"

// platformModules are the namespaces resolvable through "module::op".
var platformModules = map[string]bool{
	"io":   true,
	"str":  true,
	"util": true,
	"vm":   true,
	"os":   true,
}

func isPlatformModule(name string) bool { return platformModules[name] }

// builtins are bare functions available without a module prefix.
var builtins = map[string]bool{
	"assert":  true,
	"matches": true,
	"type_of": true,
	"table":   true,
	"Table":   true,
}

func (m *Machine) evalCall(e lang.FunctionCall) (*Machine, core.Value) {
	if head, ok := e.Fx.(lang.Variable); ok {
		if _, bound := m.Variable(head.Name); !bound && builtins[head.Name] {
			return m.evalBuiltin(head.Name, e)
		}
	}
	next, fx := m.Evaluate(e.Fx)
	if core.IsError(fx) {
		return next, fx
	}
	switch f := fx.(type) {
	case core.PlatformValue:
		args, errV := next.evalArgs(e.Args)
		if errV != nil {
			return next, errV
		}
		return next.evalPlatform(f.Op, args)
	case core.FunctionValue:
		return next.applyFunction(f, e.Args)
	default:
		return next, core.Erred(core.UnsupportedTypeError("Function", core.TypeNameOf(fx)))
	}
}

func (m *Machine) evalBuiltin(name string, e lang.FunctionCall) (*Machine, core.Value) {
	switch name {
	case "table", "Table":
		params, errV := tableParamsOf(e)
		if errV != nil {
			return m, errV
		}
		return m, core.TableValue{Params: params}
	case "assert":
		args, errV := m.evalArgs(e.Args)
		if errV != nil {
			return m, errV
		}
		if len(args) != 1 {
			return m, core.Erred(core.ArgumentsMismatchedError(1, len(args)))
		}
		if core.IsTruthy(args[0]) {
			return m, core.Bool(true)
		}
		return m, core.Erred(core.Exactf("assertion failed: %s", e.Args[0].ToCode()))
	case "matches":
		args, errV := m.evalArgs(e.Args)
		if errV != nil {
			return m, errV
		}
		if len(args) != 2 {
			return m, core.Erred(core.ArgumentsMismatchedError(2, len(args)))
		}
		return m, core.Bool(core.Equal(args[0], args[1]))
	case "type_of":
		args, errV := m.evalArgs(e.Args)
		if errV != nil {
			return m, errV
		}
		if len(args) != 1 {
			return m, core.Erred(core.ArgumentsMismatchedError(1, len(args)))
		}
		return m, core.Str(args[0].Type().ToCode())
	}
	return m, core.Erred(core.Exactf("unknown builtin %q", name))
}

// applyFunction binds arguments over the parameter list and evaluates the
// body in a child scope; Return short-circuits back to the caller.
func (m *Machine) applyFunction(f core.FunctionValue, args []lang.Expression) (*Machine, core.Value) {
	values, errV := m.evalArgs(args)
	if errV != nil {
		return m, errV
	}
	if len(values) > len(f.Params) {
		return m, core.Erred(core.ArgumentsMismatchedError(len(f.Params), len(values)))
	}
	scoped := m
	for i, p := range f.Params {
		v := core.Value(core.Null)
		if i < len(values) {
			v = values[i]
		} else {
			v = p.DefaultOrZero()
		}
		scoped = scoped.WithVariable(p.Name, v)
	}
	body, ok := f.Body.(lang.Expression)
	if !ok {
		compiled, err := lang.CompileScript(f.Body.ToCode())
		if err != nil {
			return m, errValue(err)
		}
		body = compiled
	}
	_, result := scoped.Evaluate(body)
	if ret, isReturn := result.(returnValue); isReturn {
		result = ret.inner
	}
	return m, result
}

func (m *Machine) evalArgs(args []lang.Expression) ([]core.Value, core.Value) {
	values := make([]core.Value, len(args))
	cur := m
	for i, arg := range args {
		var v core.Value
		cur, v = cur.Evaluate(arg)
		if core.IsError(v) {
			return nil, v
		}
		values[i] = v
	}
	return values, nil
}

// evalPlatform executes a platform operation by its qualified name.
func (m *Machine) evalPlatform(op string, args []core.Value) (*Machine, core.Value) {
	switch op {
	case "io::stdout":
		for _, a := range args {
			fmt.Fprintln(m.stdout, valueText(a))
		}
		return m, core.AckValue()
	case "io::stderr":
		for _, a := range args {
			fmt.Fprintln(m.stderr, valueText(a))
		}
		return m, core.AckValue()

	case "os::env":
		return m, m.platformEnv(args)

	case "str::format":
		return m, strFormat(args)
	case "str::left":
		return m, strLeft(args)
	case "str::right":
		return m, strRight(args)
	case "str::substring":
		return m, strSubstring(args)
	case "str::to_string":
		if len(args) != 1 {
			return m, core.Erred(core.ArgumentsMismatchedError(1, len(args)))
		}
		return m, core.Str(valueText(args[0]))

	case "util::timestamp":
		return m, core.Num(core.Date(time.Now().UnixMilli()))
	case "util::uuid":
		return m, core.Num(core.UUIDNumber(uuid.New()))
	case "util::to_csv":
		return m, tableExport(args, output.CSVRows)
	case "util::to_json":
		return m, tableExport(args, output.JSONRows)
	case "util::day_of":
		return m, dateComponent(args, func(t time.Time) int { return t.Day() })
	case "util::hour_of":
		return m, dateComponent(args, func(t time.Time) int { return t.Hour() })
	case "util::hour12_of":
		return m, dateComponent(args, func(t time.Time) int {
			h := t.Hour() % 12
			if h == 0 {
				h = 12
			}
			return h
		})
	case "util::minute_of":
		return m, dateComponent(args, func(t time.Time) int { return t.Minute() })
	case "util::month_of":
		return m, dateComponent(args, func(t time.Time) int { return int(t.Month()) })
	case "util::second_of":
		return m, dateComponent(args, func(t time.Time) int { return t.Second() })
	case "util::year_of":
		return m, dateComponent(args, func(t time.Time) int { return t.Year() })

	case "vm::eval":
		return m.platformEval(args)
	case "vm::version":
		return m, core.Str(Version)
	}

	if v, handled := numericConversion(op, args); handled {
		return m, v
	}
	return m, core.Erred(core.Exactf("unknown platform op %q", op))
}

func (m *Machine) platformEnv(args []core.Value) core.Value {
	if len(args) != 1 {
		return core.Erred(core.ArgumentsMismatchedError(1, len(args)))
	}
	name, ok := args[0].(core.StringValue)
	if !ok {
		return core.Erred(core.StringExpectedError(core.TypeNameOf(args[0])))
	}
	return core.Str(os.Getenv(name.S))
}

func (m *Machine) platformEval(args []core.Value) (*Machine, core.Value) {
	if len(args) != 1 {
		return m, core.Erred(core.ArgumentsMismatchedError(1, len(args)))
	}
	s, ok := args[0].(core.StringValue)
	if !ok {
		return m, core.Erred(core.StringExpectedError(core.TypeNameOf(args[0])))
	}
	_, v := New(m.root).Run(s.S)
	return m, v
}

func strFormat(args []core.Value) core.Value {
	if len(args) == 0 {
		return core.Erred(core.ArgumentsMismatchedError(1, 0))
	}
	format, ok := args[0].(core.StringValue)
	if !ok {
		return core.Erred(core.StringExpectedError(core.TypeNameOf(args[0])))
	}
	out := format.S
	for _, arg := range args[1:] {
		out = strings.Replace(out, "{}", valueText(arg), 1)
	}
	return core.Str(out)
}

// strLeft returns the first n characters; a negative n takes from the end.
func strLeft(args []core.Value) core.Value {
	s, n, ok := stringAndCount(args)
	if !ok {
		return core.Undefined
	}
	runes := []rune(s)
	switch {
	case n < 0:
		return strRight([]core.Value{core.Str(s), core.Num(core.I64(int64(-n)))})
	case n > len(runes):
		return core.Str(s)
	default:
		return core.Str(string(runes[:n]))
	}
}

// strRight returns the last n characters; a negative n takes from the
// start.
func strRight(args []core.Value) core.Value {
	s, n, ok := stringAndCount(args)
	if !ok {
		return core.Undefined
	}
	runes := []rune(s)
	switch {
	case n < 0:
		return strLeft([]core.Value{core.Str(s), core.Num(core.I64(int64(-n)))})
	case n > len(runes):
		return core.Str(s)
	default:
		return core.Str(string(runes[len(runes)-n:]))
	}
}

func strSubstring(args []core.Value) core.Value {
	if len(args) != 3 {
		return core.Undefined
	}
	s, ok := args[0].(core.StringValue)
	if !ok {
		return core.Undefined
	}
	a, okA := args[1].(core.NumberValue)
	b, okB := args[2].(core.NumberValue)
	if !okA || !okB {
		return core.Undefined
	}
	runes := []rune(s.S)
	lo, hi := int(a.N.AsInt()), int(b.N.AsInt())
	if lo < 0 || hi > len(runes) || lo > hi {
		return core.Undefined
	}
	return core.Str(string(runes[lo:hi]))
}

func stringAndCount(args []core.Value) (string, int, bool) {
	if len(args) != 2 {
		return "", 0, false
	}
	s, okS := args[0].(core.StringValue)
	n, okN := args[1].(core.NumberValue)
	if !okS || !okN {
		return "", 0, false
	}
	return s.S, int(n.N.AsInt()), true
}

func tableExport(args []core.Value, render func([]core.Parameter, []core.Row) ([]string, error)) core.Value {
	if len(args) != 1 {
		return core.Erred(core.ArgumentsMismatchedError(1, len(args)))
	}
	table, ok := args[0].(core.TableValue)
	if !ok {
		return core.Erred(core.UnsupportedTypeError("Table", core.TypeNameOf(args[0])))
	}
	lines, err := render(table.Params, table.Rows)
	if err != nil {
		return errValue(err)
	}
	items := make([]core.Value, len(lines))
	for i, line := range lines {
		items[i] = core.Str(line)
	}
	return core.ArrayValue{Items: items}
}

func dateComponent(args []core.Value, f func(time.Time) int) core.Value {
	if len(args) != 1 {
		return core.Erred(core.ArgumentsMismatchedError(1, len(args)))
	}
	n, ok := args[0].(core.NumberValue)
	if !ok || n.N.Kind != core.DateKind {
		return core.Erred(core.UnsupportedTypeError("Date", core.TypeNameOf(args[0])))
	}
	return core.Num(core.I32(int32(f(time.UnixMilli(n.N.I).UTC()))))
}

// numericConversion handles the util::to_* family.
func numericConversion(op string, args []core.Value) (core.Value, bool) {
	kind, ok := conversionKinds[op]
	if !ok {
		return nil, false
	}
	if len(args) != 1 {
		return core.Erred(core.ArgumentsMismatchedError(1, len(args))), true
	}
	n, okN := args[0].(core.NumberValue)
	if !okN {
		return core.Erred(core.UnsupportedTypeError(kind.Name(), core.TypeNameOf(args[0]))), true
	}
	converted := core.Number{Kind: kind}
	switch {
	case kind.IsFloat():
		converted.F = n.N.AsFloat()
	case kind.IsUnsigned():
		converted.U = n.N.AsUint()
	default:
		converted.I = n.N.AsInt()
	}
	return core.Num(converted), true
}

var conversionKinds = map[string]core.NumberKind{
	"util::to_f32":  core.F32Kind,
	"util::to_f64":  core.F64Kind,
	"util::to_i8":   core.I8Kind,
	"util::to_i16":  core.I16Kind,
	"util::to_i32":  core.I32Kind,
	"util::to_i64":  core.I64Kind,
	"util::to_i128": core.I128Kind,
	"util::to_u8":   core.U8Kind,
	"util::to_u16":  core.U16Kind,
	"util::to_u32":  core.U32Kind,
	"util::to_u64":  core.U64Kind,
	"util::to_u128": core.U128Kind,
}
