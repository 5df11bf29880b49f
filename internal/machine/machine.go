// Package machine implements the Oxide evaluator: an immutable variable
// scope, an optional bound row for column projection, and the evaluation
// rules for every expression variant, including the database operations
// executed against row collections. Errors travel as first-class values
// through the same channel as results; the evaluator never panics on user
// input.
package machine

import (
	"io"
	"os"

	"oxide/internal/core"
	"oxide/internal/lang"
)

// Machine is one evaluator instance. All mutating methods return a new
// machine; the receiver is never changed, so older scopes stay valid.
type Machine struct {
	root   string
	vars   map[string]core.Value
	row    *RowBinding
	stdout io.Writer
	stderr io.Writer
}

// RowBinding projects the current row's columns as variables.
type RowBinding struct {
	Columns []core.Column
	Row     core.Row
}

// New builds a machine rooted at the given filesystem root.
func New(root string) *Machine {
	return &Machine{
		root:   root,
		vars:   map[string]core.Value{},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// WithOutput redirects the platform I/O ops.
func (m *Machine) WithOutput(stdout, stderr io.Writer) *Machine {
	next := m.clone()
	next.stdout = stdout
	next.stderr = stderr
	return next
}

// Root returns the machine's filesystem root.
func (m *Machine) Root() string { return m.root }

// WithVariable returns a machine with the binding added.
func (m *Machine) WithVariable(name string, v core.Value) *Machine {
	next := m.clone()
	next.vars[name] = v
	return next
}

// WithRow returns a machine with the row bound for column projection.
func (m *Machine) WithRow(columns []core.Column, row core.Row) *Machine {
	next := m.clone()
	next.row = &RowBinding{Columns: columns, Row: row}
	return next
}

// Variable resolves a name against the scope, then the bound row.
func (m *Machine) Variable(name string) (core.Value, bool) {
	if v, ok := m.vars[name]; ok {
		return v, true
	}
	if m.row != nil {
		if i := core.FindColumn(m.row.Columns, name); i >= 0 && i < len(m.row.Row.Values) {
			return m.row.Row.Values[i], true
		}
	}
	return nil, false
}

func (m *Machine) clone() *Machine {
	vars := make(map[string]core.Value, len(m.vars))
	for k, v := range m.vars {
		vars[k] = v
	}
	return &Machine{root: m.root, vars: vars, row: m.row, stdout: m.stdout, stderr: m.stderr}
}

// Run compiles and evaluates a script against the machine.
func (m *Machine) Run(text string) (*Machine, core.Value) {
	expr, err := lang.CompileScript(text)
	if err != nil {
		return m, errValue(err)
	}
	return m.Evaluate(expr)
}

// Evaluate reduces an expression to a value, threading the updated scope.
func (m *Machine) Evaluate(expr lang.Expression) (*Machine, core.Value) {
	switch e := expr.(type) {
	case lang.Literal:
		return m, e.Value
	case lang.Variable:
		if v, ok := m.Variable(e.Name); ok {
			return m, v
		}
		return m, core.Undefined
	case lang.AsValue:
		return m.Evaluate(e.Expr)
	case lang.ArrayExpression:
		return m.evalItems(e.Items, func(items []core.Value) core.Value {
			return core.ArrayValue{Items: items}
		})
	case lang.TupleExpression:
		return m.evalItems(e.Items, func(items []core.Value) core.Value {
			return core.TupleValue{Items: items}
		})
	case lang.JSONExpression:
		return m.evalJSON(e)
	case lang.Ns:
		return m.evalNs(e)

	// arithmetic
	case lang.Plus:
		return m.evalBinary(e.A, e.B, core.Add)
	case lang.Minus:
		return m.evalBinary(e.A, e.B, core.Subtract)
	case lang.Multiply:
		return m.evalBinary(e.A, e.B, core.Multiply)
	case lang.Divide:
		return m.evalBinary(e.A, e.B, core.Divide)
	case lang.Modulo:
		return m.evalBinary(e.A, e.B, core.Modulo)
	case lang.PowOp:
		return m.evalBinary(e.A, e.B, core.Pow)
	case lang.PlusPlus:
		return m.evalBinary(e.A, e.B, core.Concat)
	case lang.RangeOp:
		return m.evalBinary(e.A, e.B, core.RangeValues)
	case lang.Neg:
		next, a := m.Evaluate(e.A)
		return next, core.Negate(a)
	case lang.FactorialOp:
		next, a := m.Evaluate(e.A)
		return next, core.Factorial(a)

	// bitwise
	case lang.BitwiseAnd:
		return m.evalBinary(e.A, e.B, core.BitAnd)
	case lang.BitwiseOr:
		return m.evalBinary(e.A, e.B, core.BitOr)
	case lang.BitwiseXor:
		return m.evalBinary(e.A, e.B, core.BitXor)
	case lang.ShiftLeft:
		return m.evalBinary(e.A, e.B, core.ShiftLeft)
	case lang.ShiftRight:
		return m.evalBinary(e.A, e.B, core.ShiftRight)

	// conditions
	case lang.And:
		return m.evalBinary(e.A, e.B, func(a, b core.Value) core.Value {
			return core.Bool(core.IsTruthy(a) && core.IsTruthy(b))
		})
	case lang.Or:
		return m.evalBinary(e.A, e.B, func(a, b core.Value) core.Value {
			return core.Bool(core.IsTruthy(a) || core.IsTruthy(b))
		})
	case lang.Not:
		next, a := m.Evaluate(e.A)
		if core.IsError(a) {
			return next, a
		}
		return next, core.Bool(!core.IsTruthy(a))
	case lang.Equal:
		return m.evalBinary(e.A, e.B, func(a, b core.Value) core.Value {
			return core.Bool(core.Equal(a, b))
		})
	case lang.NotEqual:
		return m.evalBinary(e.A, e.B, func(a, b core.Value) core.Value {
			return core.Bool(!core.Equal(a, b))
		})
	case lang.GreaterThan:
		return m.evalOrdering(e.A, e.B, func(n int) bool { return n > 0 })
	case lang.GreaterOrEqual:
		return m.evalOrdering(e.A, e.B, func(n int) bool { return n >= 0 })
	case lang.LessThan:
		return m.evalOrdering(e.A, e.B, func(n int) bool { return n < 0 })
	case lang.LessOrEqual:
		return m.evalOrdering(e.A, e.B, func(n int) bool { return n <= 0 })
	case lang.BetweenOp:
		return m.evalTernary(e.A, e.Low, e.High, core.Between)
	case lang.BetwixtOp:
		return m.evalTernary(e.A, e.Low, e.High, core.Betwixt)
	case lang.ContainsOp:
		return m.evalBinary(e.A, e.B, core.Contains)
	case lang.LikeOp:
		return m.evalBinary(e.A, e.B, core.Like)

	// control flow
	case lang.CodeBlock:
		return m.evalCodeBlock(e)
	case lang.If:
		return m.evalIf(e)
	case lang.While:
		return m.evalWhile(e)
	case lang.ForEach:
		return m.evalForEach(e)
	case lang.Return:
		return m.evalReturn(e)

	// declarations
	case lang.SetVariable:
		next, v := m.Evaluate(e.Expr)
		if core.IsError(v) {
			return next, v
		}
		return next.WithVariable(e.Name, v), core.AckValue()
	case lang.SetVariables:
		return m.evalSetVariables(e)
	case lang.FnExpression:
		return m.evalFn(e)
	case lang.Module:
		return m.evalModule(e)
	case lang.Import:
		return m.evalImport(e)
	case lang.Include:
		return m.evalInclude(e)

	// extensions
	case lang.Extraction:
		return m.evalExtraction(e)
	case lang.ExtractPostfix:
		return m.evalExtraction(lang.Extraction{A: e.A, B: e.B})
	case lang.ElementAt:
		return m.evalBinary(e.A, e.Index, core.ElementAt)
	case lang.FunctionCall:
		return m.evalCall(e)
	case lang.Via:
		return m.Evaluate(e.Expr)
	case lang.HTTP:
		return m.evalHTTP(e)
	case lang.Feature:
		return m.evalFeature(e)
	case lang.Scenario:
		next, _ := m.evalScenarioRows(e)
		return next, core.AckValue()

	// directives
	case lang.MustAck:
		return m.evalMustAck(e.Expr)
	case lang.MustNotAck:
		return m.evalMustNotAck(e.Expr)
	case lang.MustDie:
		return m.evalMustDie(e.Expr)
	case lang.MustIgnoreAck:
		return m.evalMustIgnoreAck(e.Expr)

	// database operations
	case lang.From, lang.Where, lang.LimitOp:
		return m.evalQueryable(expr)
	case lang.Select:
		return m.evalSelect(e)
	case lang.IntoNs:
		return m.evalIntoNs(e)
	case lang.Append:
		return m.evalIntoNs(lang.IntoNs{Source: e.Source, Target: e.Table})
	case lang.CreateTable:
		return m.evalCreateTable(e)
	case lang.CreateIndex:
		return m.evalCreateIndex(e)
	case lang.Delete:
		return m.evalDelete(e)
	case lang.Undelete:
		return m.evalUndelete(e)
	case lang.Overwrite:
		return m.evalOverwrite(e)
	case lang.Update:
		return m.evalUpdate(e)
	case lang.Truncate:
		return m.evalTruncate(e)
	case lang.Drop:
		return m.evalDrop(e)
	case lang.Compact:
		return m.evalCompact(e)
	case lang.Describe:
		return m.evalDescribe(e)
	}
	return m, core.Erred(core.Exactf("unsupported expression %q", expr.ToCode()))
}

// returnValue carries a Return result up through enclosing blocks.
type returnValue struct {
	inner core.Value
}

func (returnValue) Kind() core.ValueKind  { return core.KindUndefined }
func (r returnValue) Type() core.DataType { return r.inner.Type() }
func (r returnValue) ToCode() string      { return r.inner.ToCode() }

func (m *Machine) evalCodeBlock(e lang.CodeBlock) (*Machine, core.Value) {
	cur := m
	result := core.Value(core.AckValue())
	for _, expr := range e.Exprs {
		var v core.Value
		cur, v = cur.Evaluate(expr)
		if ret, ok := v.(returnValue); ok {
			return cur, ret.inner
		}
		result = v
	}
	return cur, result
}

func (m *Machine) evalIf(e lang.If) (*Machine, core.Value) {
	next, cond := m.Evaluate(e.Condition)
	if core.IsError(cond) {
		return next, cond
	}
	if core.IsTruthy(cond) {
		return next.Evaluate(e.A)
	}
	if e.B != nil {
		return next.Evaluate(e.B)
	}
	return next, core.Undefined
}

// evalWhile loops with a generous iteration guard so a script bug cannot
// wedge the host process.
func (m *Machine) evalWhile(e lang.While) (*Machine, core.Value) {
	const maxIterations = 1 << 20
	cur := m
	result := core.Value(core.AckValue())
	for i := 0; i < maxIterations; i++ {
		var cond core.Value
		cur, cond = cur.Evaluate(e.Condition)
		if core.IsError(cond) {
			return cur, cond
		}
		if !core.IsTruthy(cond) {
			return cur, result
		}
		var v core.Value
		cur, v = cur.Evaluate(e.Code)
		if ret, ok := v.(returnValue); ok {
			return cur, ret.inner
		}
		if core.IsError(v) {
			return cur, v
		}
		result = v
	}
	return cur, core.Erred(core.ExactError("while loop exceeded the iteration limit"))
}

func (m *Machine) evalForEach(e lang.ForEach) (*Machine, core.Value) {
	cur, source := m.Evaluate(e.Source)
	if core.IsError(source) {
		return cur, source
	}
	var items []core.Value
	switch s := source.(type) {
	case core.ArrayValue:
		items = s.Items
	case core.TupleValue:
		items = s.Items
	case core.TableValue:
		for _, row := range s.Rows {
			items = append(items, rowToStruct(core.ColumnsFromParameters(s.Params), row))
		}
	default:
		return cur, core.Erred(core.UnsupportedTypeError("Array", core.TypeNameOf(source)))
	}
	result := core.Value(core.AckValue())
	for _, item := range items {
		scoped := cur.WithVariable(e.Name, item)
		var v core.Value
		scoped, v = scoped.Evaluate(e.Code)
		if ret, ok := v.(returnValue); ok {
			return scoped, ret.inner
		}
		if core.IsError(v) {
			return scoped, v
		}
		cur = scoped
		result = v
	}
	return cur, result
}

func (m *Machine) evalReturn(e lang.Return) (*Machine, core.Value) {
	switch len(e.Exprs) {
	case 0:
		return m, returnValue{inner: core.AckValue()}
	case 1:
		next, v := m.Evaluate(e.Exprs[0])
		return next, returnValue{inner: v}
	default:
		return m.evalItems(e.Exprs, func(items []core.Value) core.Value {
			return returnValue{inner: core.TupleValue{Items: items}}
		})
	}
}

func (m *Machine) evalSetVariables(e lang.SetVariables) (*Machine, core.Value) {
	next, v := m.Evaluate(e.Expr)
	if core.IsError(v) {
		return next, v
	}
	var items []core.Value
	switch t := v.(type) {
	case core.TupleValue:
		items = t.Items
	case core.ArrayValue:
		items = t.Items
	default:
		return next, core.Erred(core.UnsupportedTypeError("Tuple", core.TypeNameOf(v)))
	}
	if len(items) != len(e.Names) {
		return next, core.Erred(core.ArgumentsMismatchedError(len(e.Names), len(items)))
	}
	for i, name := range e.Names {
		next = next.WithVariable(name, items[i])
	}
	return next, core.AckValue()
}

func (m *Machine) evalFn(e lang.FnExpression) (*Machine, core.Value) {
	returns := e.Returns
	if returns == nil {
		returns = core.IndeterminateType{}
	}
	body := lang.Expression(lang.CodeBlock{})
	if e.Body != nil {
		body = e.Body
	}
	fn := core.FunctionValue{Params: e.Params, Body: body, Returns: returns}
	if e.Name == "" {
		return m, fn
	}
	return m.WithVariable(e.Name, fn), core.AckValue()
}

func (m *Machine) evalModule(e lang.Module) (*Machine, core.Value) {
	inner, v := m.Evaluate(e.Body)
	if core.IsError(v) {
		return m, v
	}
	var fields []core.StructField
	for name, value := range inner.vars {
		if _, existed := m.vars[name]; !existed {
			fields = append(fields, core.StructField{Name: name, Value: value})
		}
	}
	return m.WithVariable(e.Name, core.StructValue{Fields: fields}), core.AckValue()
}

func (m *Machine) evalImport(e lang.Import) (*Machine, core.Value) {
	v, ok := m.Variable(e.Name)
	if !ok {
		return m, core.Erred(core.Exactf("module %q is not defined", e.Name))
	}
	s, ok := v.(core.StructValue)
	if !ok {
		return m, core.Erred(core.UnsupportedTypeError("Struct", core.TypeNameOf(v)))
	}
	next := m
	for _, f := range s.Fields {
		next = next.WithVariable(f.Name, f.Value)
	}
	return next, core.AckValue()
}

func (m *Machine) evalInclude(e lang.Include) (*Machine, core.Value) {
	next, v := m.Evaluate(e.Path)
	path, ok := v.(core.StringValue)
	if !ok {
		return next, core.Erred(core.StringExpectedError(core.TypeNameOf(v)))
	}
	data, err := os.ReadFile(path.S)
	if err != nil {
		return next, core.Erred(core.Exactf("include %q: %v", path.S, err))
	}
	return next.Run(string(data))
}

func (m *Machine) evalJSON(e lang.JSONExpression) (*Machine, core.Value) {
	cur := m
	fields := make([]core.StructField, len(e.Fields))
	for i, f := range e.Fields {
		var v core.Value
		cur, v = cur.Evaluate(f.Value)
		if core.IsError(v) {
			return cur, v
		}
		fields[i] = core.StructField{Name: f.Name, Value: v}
	}
	return cur, core.StructValue{Fields: fields}
}

func (m *Machine) evalItems(exprs []lang.Expression, build func([]core.Value) core.Value) (*Machine, core.Value) {
	cur := m
	items := make([]core.Value, len(exprs))
	for i, expr := range exprs {
		var v core.Value
		cur, v = cur.Evaluate(expr)
		if core.IsError(v) {
			return cur, v
		}
		items[i] = v
	}
	return cur, build(items)
}

func (m *Machine) evalBinary(a, b lang.Expression, f func(core.Value, core.Value) core.Value) (*Machine, core.Value) {
	next, va := m.Evaluate(a)
	next, vb := next.Evaluate(b)
	return next, f(va, vb)
}

func (m *Machine) evalTernary(a, b, c lang.Expression, f func(core.Value, core.Value, core.Value) core.Value) (*Machine, core.Value) {
	next, va := m.Evaluate(a)
	next, vb := next.Evaluate(b)
	next, vc := next.Evaluate(c)
	return next, f(va, vb, vc)
}

func (m *Machine) evalOrdering(a, b lang.Expression, pass func(int) bool) (*Machine, core.Value) {
	return m.evalBinary(a, b, func(va, vb core.Value) core.Value {
		if e := firstErrorValue(va, vb); e != nil {
			return e
		}
		n, ok := core.Compare(va, vb)
		if !ok {
			return core.Erred(core.UnsupportedTypeError(core.TypeNameOf(va), core.TypeNameOf(vb)))
		}
		return core.Bool(pass(n))
	})
}

func (m *Machine) evalExtraction(e lang.Extraction) (*Machine, core.Value) {
	// module::name resolves to a platform op when the head names a module
	if head, ok := e.A.(lang.Variable); ok {
		if name, ok2 := e.B.(lang.Variable); ok2 {
			if _, bound := m.Variable(head.Name); !bound && isPlatformModule(head.Name) {
				return m, core.PlatformValue{Op: head.Name + "::" + name.Name}
			}
		}
	}
	next, a := m.Evaluate(e.A)
	if core.IsError(a) {
		return next, a
	}
	if s, ok := a.(core.StructValue); ok {
		if name, ok2 := e.B.(lang.Variable); ok2 {
			return next, s.Get(name.Name)
		}
	}
	return next, core.Erred(core.Exactf("cannot extract %q from %s", e.B.ToCode(), core.TypeNameOf(a)))
}

func (m *Machine) evalMustAck(expr lang.Expression) (*Machine, core.Value) {
	next, v := m.Evaluate(expr)
	if core.IsError(v) {
		return next, v
	}
	if isAck(v) {
		return next, v
	}
	return next, core.Erred(core.Exactf("expected Ack but got %s", v.ToCode()))
}

func (m *Machine) evalMustNotAck(expr lang.Expression) (*Machine, core.Value) {
	next, v := m.Evaluate(expr)
	if isAck(v) {
		return next, core.Erred(core.Exactf("expected a non-Ack result near %q", expr.ToCode()))
	}
	return next, v
}

func (m *Machine) evalMustDie(expr lang.Expression) (*Machine, core.Value) {
	next, v := m.Evaluate(expr)
	if core.IsError(v) {
		return next, v
	}
	if s, ok := v.(core.StringValue); ok {
		return next, core.Erred(core.ExactError(s.S))
	}
	return next, core.Erred(core.Exactf("expected a failure near %q", expr.ToCode()))
}

func (m *Machine) evalMustIgnoreAck(expr lang.Expression) (*Machine, core.Value) {
	next, v := m.Evaluate(expr)
	if core.IsError(v) {
		return next, core.AckValue()
	}
	return next, v
}

func (m *Machine) evalFeature(e lang.Feature) (*Machine, core.Value) {
	cur, title := m.Evaluate(e.Title)
	rows := []core.Row{featureRow(0, valueText(title), true, "ack")}
	for _, item := range e.Scenarios {
		scenario, ok := item.(lang.Scenario)
		if !ok {
			var v core.Value
			cur, v = cur.Evaluate(item)
			rows = append(rows, featureRow(1, item.ToCode(), !core.IsError(v), valueText(v)))
			continue
		}
		var scenarioRows []core.Row
		cur, scenarioRows = cur.evalScenarioRows(scenario)
		rows = append(rows, scenarioRows...)
	}
	for i := range rows {
		rows[i].ID = uint64(i)
	}
	return cur, core.TableValue{Params: featureParams(), Rows: rows}
}

func (m *Machine) evalScenarioRows(e lang.Scenario) (*Machine, []core.Row) {
	cur, title := m.Evaluate(e.Title)
	var rows []core.Row
	passed := true
	var stepRows []core.Row
	if block, ok := e.Code.(lang.CodeBlock); ok {
		for _, step := range block.Exprs {
			var v core.Value
			cur, v = cur.Evaluate(step)
			stepPassed := !core.IsError(v) && !isFalse(v)
			if !stepPassed {
				passed = false
			}
			stepRows = append(stepRows, featureRow(2, step.ToCode(), stepPassed, valueText(v)))
		}
	} else {
		var v core.Value
		cur, v = cur.Evaluate(e.Code)
		if core.IsError(v) {
			passed = false
		}
		stepRows = append(stepRows, featureRow(2, e.Code.ToCode(), passed, valueText(v)))
	}
	rows = append(rows, featureRow(1, valueText(title), passed, "ack"))
	rows = append(rows, stepRows...)
	return cur, rows
}

func featureParams() []core.Parameter {
	return []core.Parameter{
		core.NewParameter("level", core.NumberType{NumberKind: core.U16Kind}),
		core.NewParameter("item", core.StringType{Size: 256}),
		core.NewParameter("passed", core.BooleanType{}),
		core.NewParameter("result", core.StringType{Size: 256}),
	}
}

func featureRow(level int, item string, passed bool, result string) core.Row {
	return core.NewRow(0,
		core.Num(core.U16(uint16(level))),
		core.Str(item),
		core.Bool(passed),
		core.Str(result),
	)
}

func valueText(v core.Value) string {
	switch t := v.(type) {
	case core.StringValue:
		return t.S
	case core.NumberValue:
		if t.N.Kind == core.AckKind {
			return "ack"
		}
		return t.N.String()
	default:
		return v.ToCode()
	}
}

func isAck(v core.Value) bool {
	n, ok := v.(core.NumberValue)
	return ok && n.N.Kind == core.AckKind
}

func isFalse(v core.Value) bool {
	b, ok := v.(core.BoolValue)
	return ok && !b.B
}

func firstErrorValue(values ...core.Value) core.Value {
	for _, v := range values {
		if core.IsError(v) {
			return v
		}
	}
	return nil
}

func errValue(err error) core.Value {
	if engineErr, ok := err.(*core.EngineError); ok {
		return core.Erred(engineErr)
	}
	return core.Erred(core.ExactError(err.Error()))
}

func rowToStruct(columns []core.Column, row core.Row) core.StructValue {
	fields := make([]core.StructField, 0, len(columns)+1)
	fields = append(fields, core.StructField{Name: "_id", Value: core.Num(core.RowID(row.ID))})
	for i, c := range columns {
		value := core.Value(core.Null)
		if i < len(row.Values) {
			value = row.Values[i]
		}
		fields = append(fields, core.StructField{Name: c.Name, Value: value})
	}
	return core.StructValue{Fields: fields}
}
