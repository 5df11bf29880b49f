package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxide/internal/core"
)

func mustBuild(t *testing.T, text string) Expression {
	t.Helper()
	expr, err := Build(text)
	require.NoError(t, err, text)
	return expr
}

func TestBuildLiterals(t *testing.T) {
	assert.Equal(t, Literal{Value: core.Num(core.I64(123))}, mustBuild(t, "123"))
	assert.Equal(t, Literal{Value: core.Num(core.F64(45.67))}, mustBuild(t, "45.67"))
	assert.Equal(t, Literal{Value: core.Bool(true)}, mustBuild(t, "true"))
	assert.Equal(t, Literal{Value: core.Str("hi")}, mustBuild(t, `"hi"`))
	assert.Equal(t, Literal{Value: core.Null}, mustBuild(t, "null"))
	assert.Equal(t, Literal{Value: core.Num(core.I64(11))}, mustBuild(t, "0b1011"))
	assert.Equal(t, Literal{Value: core.Num(core.I64(255))}, mustBuild(t, "0xFF"))
}

func TestBuildArithmeticPrecedence(t *testing.T) {
	// 1 + 2 * 3 groups the multiplication first
	expr := mustBuild(t, "1 + 2 * 3")
	plus, ok := expr.(Plus)
	require.True(t, ok)
	_, ok = plus.B.(Multiply)
	assert.True(t, ok)

	// (1 + 2) * 3 groups explicitly
	expr = mustBuild(t, "(1 + 2) * 3")
	mul, ok := expr.(Multiply)
	require.True(t, ok)
	_, ok = mul.A.(Plus)
	assert.True(t, ok)
}

func TestBuildComparisons(t *testing.T) {
	expr := mustBuild(t, "last_sale > 1.0")
	gt, ok := expr.(GreaterThan)
	require.True(t, ok)
	assert.Equal(t, Variable{Name: "last_sale"}, gt.A)

	expr = mustBuild(t, "5 between 1 and 10")
	assert.Equal(t, "5 between 1 and 10", expr.ToCode())
}

func TestBuildAssignment(t *testing.T) {
	expr := mustBuild(t, "x := 5")
	assert.Equal(t, SetVariable{Name: "x", Expr: Literal{Value: core.Num(core.I64(5))}}, expr)

	expr = mustBuild(t, "x := x + 1")
	set, ok := expr.(SetVariable)
	require.True(t, ok)
	_, ok = set.Expr.(Plus)
	assert.True(t, ok)
}

func TestBuildNsAssignment(t *testing.T) {
	expr := mustBuild(t, `stocks := ns("t1.crud.stocks")`)
	set, ok := expr.(SetVariable)
	require.True(t, ok)
	assert.Equal(t, Ns{Expr: Literal{Value: core.Str("t1.crud.stocks")}}, set.Expr)
}

func TestBuildElementAt(t *testing.T) {
	expr := mustBuild(t, "[0, 1, 3, 5][2]")
	at, ok := expr.(ElementAt)
	require.True(t, ok)
	assert.Equal(t, Literal{Value: core.Num(core.I64(2))}, at.Index)

	// a space breaks the adjacency, so this parses as an index into a
	// variable only when contiguous
	expr = mustBuild(t, "students[3]")
	_, ok = expr.(ElementAt)
	assert.True(t, ok)
}

func TestBuildExtraction(t *testing.T) {
	expr := mustBuild(t, "str::left('Hello World', 5)")
	call, ok := expr.(FunctionCall)
	require.True(t, ok)
	extraction, ok := call.Fx.(Extraction)
	require.True(t, ok)
	assert.Equal(t, Variable{Name: "str"}, extraction.A)
	assert.Equal(t, Variable{Name: "left"}, extraction.B)
	require.Len(t, call.Args, 2)
}

func TestBuildJSONLiteral(t *testing.T) {
	expr := mustBuild(t, `{ symbol: "ABC", exchange: "AMEX", last_sale: 11.77 }`)
	js, ok := expr.(JSONExpression)
	require.True(t, ok)
	require.Len(t, js.Fields, 3)
	assert.Equal(t, "symbol", js.Fields[0].Name)
	assert.Equal(t, `{symbol: "ABC", exchange: "AMEX", last_sale: 11.77}`, expr.ToCode())
}

func TestBuildJSONWithoutCommas(t *testing.T) {
	expr := mustBuild(t, `{ first: "Tom" last: "Lane" }`)
	js, ok := expr.(JSONExpression)
	require.True(t, ok)
	require.Len(t, js.Fields, 2)
}

func TestBuildCodeBlock(t *testing.T) {
	expr := mustBuild(t, "{ x := 1 y := 2 x + y }")
	block, ok := expr.(CodeBlock)
	require.True(t, ok)
	assert.Len(t, block.Exprs, 3)
}

func TestBuildIf(t *testing.T) {
	expr := mustBuild(t, "if x < y 1 else 10")
	cond, ok := expr.(If)
	require.True(t, ok)
	require.NotNil(t, cond.B)
	assert.Equal(t, "if x < y 1 else 10", expr.ToCode())
}

func TestBuildWhile(t *testing.T) {
	expr := mustBuild(t, "while x < 5 do x := x + 1")
	loop, ok := expr.(While)
	require.True(t, ok)
	assert.Equal(t, "while x < 5 do x := x + 1", loop.ToCode())
}

func TestBuildFromWhereLimit(t *testing.T) {
	expr := mustBuild(t, `from ns("machine.overwrite.stocks") where last_sale >= 1.25 limit 5`)
	assert.Equal(t,
		`from ns("machine.overwrite.stocks") where last_sale >= 1.25 limit 5`,
		expr.ToCode())
	limit, ok := expr.(LimitOp)
	require.True(t, ok)
	where, ok := limit.Source.(Where)
	require.True(t, ok)
	_, ok = where.Source.(From)
	assert.True(t, ok)
}

func TestBuildDelete(t *testing.T) {
	expr := mustBuild(t, "delete from stocks where last_sale > 1.0")
	del, ok := expr.(Delete)
	require.True(t, ok)
	assert.Equal(t, Variable{Name: "stocks"}, del.Table)
	require.NotNil(t, del.Condition)
	assert.Nil(t, del.Limit)
}

func TestBuildUndelete(t *testing.T) {
	expr := mustBuild(t, "undelete from stocks where last_sale > 1.0")
	und, ok := expr.(Undelete)
	require.True(t, ok)
	require.NotNil(t, und.Condition)
}

func TestBuildOverwrite(t *testing.T) {
	expr := mustBuild(t,
		`overwrite stocks via {symbol: "GOTO", exchange: "OTC", last_sale: 0.1421} where symbol == "GOTO" limit 1`)
	ow, ok := expr.(Overwrite)
	require.True(t, ok)
	_, ok = ow.Source.(Via)
	assert.True(t, ok)
	require.NotNil(t, ow.Condition)
	require.NotNil(t, ow.Limit)
	assert.Equal(t,
		`overwrite stocks via {symbol: "GOTO", exchange: "OTC", last_sale: 0.1421} where symbol == "GOTO" limit 1`,
		expr.ToCode())
}

func TestBuildSelect(t *testing.T) {
	expr := mustBuild(t,
		"select symbol, exchange, last_sale from stocks where last_sale > 1.0 order by symbol limit 5")
	sel, ok := expr.(Select)
	require.True(t, ok)
	assert.Len(t, sel.Fields, 3)
	require.NotNil(t, sel.SourceFrom)
	require.NotNil(t, sel.Condition)
	require.Len(t, sel.OrderBy, 1)
	require.NotNil(t, sel.Limit)
}

func TestBuildCreateTable(t *testing.T) {
	expr := mustBuild(t,
		`create table ns("interpreter.www.stocks") (symbol: String(8), exchange: String(8), last_sale: f64)`)
	created, ok := expr.(CreateTable)
	require.True(t, ok)
	require.Len(t, created.Params, 3)
	assert.Equal(t, "symbol", created.Params[0].Name)
	assert.Equal(t, core.StringType{Size: 8}, created.Params[0].Type)
	assert.Equal(t, core.NumberType{NumberKind: core.F64Kind}, created.Params[2].Type)
}

func TestBuildIntoNs(t *testing.T) {
	expr := mustBuild(t, "table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks")
	into, ok := expr.(IntoNs)
	require.True(t, ok)
	assert.Equal(t, Variable{Name: "stocks"}, into.Target)
	_, ok = into.Source.(FunctionCall)
	assert.True(t, ok)
}

func TestBuildAppendRows(t *testing.T) {
	expr := mustBuild(t, `[{ symbol: "ABC", exchange: "AMEX", last_sale: 11.77 }] ~> stocks`)
	into, ok := expr.(IntoNs)
	require.True(t, ok)
	_, ok = into.Source.(ArrayExpression)
	assert.True(t, ok)
}

func TestBuildDirectives(t *testing.T) {
	expr := mustBuild(t, "[+] x := 67")
	must, ok := expr.(MustAck)
	require.True(t, ok)
	_, ok = must.Expr.(SetVariable)
	assert.True(t, ok)

	assert.IsType(t, MustNotAck{}, mustBuild(t, "[-] x < 67"))
	assert.IsType(t, MustDie{}, mustBuild(t, `[!] "Kaboom!!!"`))
	assert.IsType(t, MustIgnoreAck{}, mustBuild(t, `[~] vm::eval("7 / 0")`))
}

func TestBuildFactorialPostfix(t *testing.T) {
	expr := mustBuild(t, "6¡")
	assert.Equal(t, FactorialOp{A: Literal{Value: core.Num(core.I64(6))}}, expr)
}

func TestBuildFeature(t *testing.T) {
	expr := mustBuild(t, `feature "Matches function" {
		scenario "Compare" {
			x := 1
		}
	}`)
	feature, ok := expr.(Feature)
	require.True(t, ok)
	require.Len(t, feature.Scenarios, 1)
	_, ok = feature.Scenarios[0].(Scenario)
	assert.True(t, ok)
}

func TestCompileScript(t *testing.T) {
	expr, err := CompileScript(`
		x := 5
		y := 6
		x + y
	`)
	require.NoError(t, err)
	block, ok := expr.(CodeBlock)
	require.True(t, ok)
	assert.Len(t, block.Exprs, 3)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build("")
	assert.Error(t, err)
	_, err = Build("1 +")
	assert.Error(t, err)
	_, err = Build("(1, 2")
	assert.Error(t, err)
}

func TestTypeConstructionRoundTrip(t *testing.T) {
	cases := []struct {
		decl string
		dt   core.DataType
	}{
		{"Array(12)", core.ArrayType{Size: 12}},
		{"String(10)", core.StringType{Size: 10}},
		{"String", core.StringType{}},
		{"Binary(5566)", core.BinaryType{Size: 5566}},
		{"ASCII(1000)", core.ASCIIType{Size: 1000}},
		{"Boolean", core.BooleanType{}},
		{"Date", core.NumberType{NumberKind: core.DateKind}},
		{"f32", core.NumberType{NumberKind: core.F32Kind}},
		{"f64", core.NumberType{NumberKind: core.F64Kind}},
		{"i8", core.NumberType{NumberKind: core.I8Kind}},
		{"i16", core.NumberType{NumberKind: core.I16Kind}},
		{"i32", core.NumberType{NumberKind: core.I32Kind}},
		{"i64", core.NumberType{NumberKind: core.I64Kind}},
		{"i128", core.NumberType{NumberKind: core.I128Kind}},
		{"u8", core.NumberType{NumberKind: core.U8Kind}},
		{"u16", core.NumberType{NumberKind: core.U16Kind}},
		{"u32", core.NumberType{NumberKind: core.U32Kind}},
		{"u64", core.NumberType{NumberKind: core.U64Kind}},
		{"u128", core.NumberType{NumberKind: core.U128Kind}},
		{"RowId", core.NumberType{NumberKind: core.RowIDKind}},
		{"RowsAffected", core.NumberType{NumberKind: core.RowsAffectedKind}},
		{"Ack", core.NumberType{NumberKind: core.AckKind}},
		{"Table(symbol: String(8), exchange: String(8), last_sale: f64)",
			core.TableType{Params: []core.Parameter{
				core.NewParameter("symbol", core.StringType{Size: 8}),
				core.NewParameter("exchange", core.StringType{Size: 8}),
				core.NewParameter("last_sale", core.NumberType{NumberKind: core.F64Kind}),
			}}},
		{"Struct(symbol: String(8), exchange: String(8), last_sale: f64)",
			core.StructType{Params: []core.Parameter{
				core.NewParameter("symbol", core.StringType{Size: 8}),
				core.NewParameter("exchange", core.StringType{Size: 8}),
				core.NewParameter("last_sale", core.NumberType{NumberKind: core.F64Kind}),
			}}},
		{"(i64, i64, i64)", core.TupleType{Types: []core.DataType{
			core.NumberType{NumberKind: core.I64Kind},
			core.NumberType{NumberKind: core.I64Kind},
			core.NumberType{NumberKind: core.I64Kind},
		}}},
		{"Enum(A, B, C)", core.EnumType{Params: []core.Parameter{
			core.BuildParameter("A"),
			core.BuildParameter("B"),
			core.BuildParameter("C"),
		}}},
	}
	for _, tc := range cases {
		dt, err := ParseDataType(tc.decl)
		require.NoError(t, err, tc.decl)
		assert.Equal(t, tc.dt, dt, tc.decl)
		assert.Equal(t, tc.decl, dt.ToCode(), tc.decl)
	}
}

func TestEnumWithDefaults(t *testing.T) {
	dt, err := ParseDataType("Enum(AMEX := 1, NASDAQ := 2, NYSE := 3, OTCBB := 4)")
	require.NoError(t, err)
	enum, ok := dt.(core.EnumType)
	require.True(t, ok)
	require.Len(t, enum.Params, 4)
	assert.Equal(t, core.Num(core.I64(2)), enum.Params[1].Default)
	assert.Equal(t, "Enum(AMEX := 1, NASDAQ := 2, NYSE := 3, OTCBB := 4)", dt.ToCode())
}

func TestUnrecognizedTypeName(t *testing.T) {
	_, err := ParseDataType("Widget")
	require.Error(t, err)
	var engineErr *core.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, core.MismatchUnrecognizedTypeName, engineErr.Mismatch)
}
