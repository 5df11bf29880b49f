package machine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxide/internal/core"
	"oxide/internal/lang"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	return New(t.TempDir())
}

// run evaluates a script, replacing the machine in place the way the REPL
// threads state.
func run(t *testing.T, m *Machine, script string) (*Machine, core.Value) {
	t.Helper()
	next, v := m.Run(script)
	return next, v
}

func requireAck(t *testing.T, v core.Value) {
	t.Helper()
	n, ok := v.(core.NumberValue)
	require.True(t, ok, "expected Ack, got %s", v.ToCode())
	require.Equal(t, core.AckKind, n.N.Kind, "expected Ack, got %s", v.ToCode())
}

func requireRowsAffected(t *testing.T, v core.Value, want int64) {
	t.Helper()
	n, ok := v.(core.NumberValue)
	require.True(t, ok, "expected RowsAffected, got %s", v.ToCode())
	require.Equal(t, core.RowsAffectedKind, n.N.Kind)
	require.Equal(t, want, n.N.I)
}

func TestBasicStateManipulation(t *testing.T) {
	m := newTestMachine(t)
	var v core.Value

	m, v = run(t, m, "x := 5")
	requireAck(t, v)

	m, v = run(t, m, "x")
	assert.Equal(t, core.Value(core.Num(core.I64(5))), v)

	m, v = run(t, m, "-x")
	assert.Equal(t, core.Value(core.Num(core.I64(-5))), v)

	m, v = run(t, m, "x¡")
	assert.Equal(t, core.Value(core.Num(core.U128(120))), v)

	m, v = run(t, m, "x := x + 1")
	requireAck(t, v)
	m, v = run(t, m, "x")
	assert.Equal(t, core.Value(core.Num(core.I64(6))), v)

	m, v = run(t, m, "x < 7")
	assert.Equal(t, core.Value(core.Bool(true)), v)

	m, v = run(t, m, "x := x ** 2")
	requireAck(t, v)
	m, v = run(t, m, "x")
	assert.Equal(t, core.Value(core.Num(core.F64(36))), v)

	// float division by zero collapses to NaN
	m, v = run(t, m, "x / 0")
	n, ok := v.(core.NumberValue)
	require.True(t, ok)
	assert.Equal(t, core.NaNKind, n.N.Kind)

	m, v = run(t, m, "x >= 35")
	assert.Equal(t, core.Value(core.Bool(true)), v)
	_ = m
}

func TestIntegerDivisionByZeroIsTypedError(t *testing.T) {
	m := newTestMachine(t)
	_, v := run(t, m, "7 / 0")
	require.True(t, core.IsError(v))
	assert.Equal(t, core.ErrExact, v.(core.ErrorValue).Err.Kind)
}

func TestScopeIsFunctional(t *testing.T) {
	m := newTestMachine(t)
	before := m
	after, v := run(t, m, "y := 41")
	requireAck(t, v)
	_, missing := before.Run("y")
	assert.Equal(t, core.Value(core.Undefined), missing)
	_, present := after.Run("y")
	assert.Equal(t, core.Value(core.Num(core.I64(41))), present)
}

func TestControlFlow(t *testing.T) {
	m := newTestMachine(t)
	_, v := run(t, m, "if 1 < 2 10 else 20")
	assert.Equal(t, core.Value(core.Num(core.I64(10))), v)

	_, v = run(t, m, `{
		total := 0
		i := 0
		while i < 5 do {
			total := total + i
			i := i + 1
		}
		total
	}`)
	assert.Equal(t, core.Value(core.Num(core.I64(10))), v)

	_, v = run(t, m, `{
		sum := 0
		foreach n in [1, 2, 3, 4] {
			sum := sum + n
		}
		sum
	}`)
	assert.Equal(t, core.Value(core.Num(core.I64(10))), v)
}

func TestReturnShortCircuits(t *testing.T) {
	m := newTestMachine(t)
	_, v := run(t, m, `{
		x := 1
		return 99
		x := 2
	}`)
	assert.Equal(t, core.Value(core.Num(core.I64(99))), v)
}

func TestFunctions(t *testing.T) {
	m := newTestMachine(t)
	m, v := run(t, m, "fn double(n: i64) => n * 2")
	requireAck(t, v)
	_, v = run(t, m, "double(21)")
	assert.Equal(t, core.Value(core.Num(core.I64(42))), v)
}

func TestCrudLifecycle(t *testing.T) {
	m := newTestMachine(t)
	var v core.Value

	m, v = run(t, m, `stocks := ns("t1.crud.stocks")`)
	requireAck(t, v)

	m, v = run(t, m, "table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks")
	requireAck(t, v)

	m, v = run(t, m, `append stocks from [
		{ symbol: "ABC", exchange: "AMEX", last_sale: 11.77 },
		{ symbol: "UNO", exchange: "OTC",  last_sale: 0.2456 }
	]`)
	requireRowsAffected(t, v, 2)

	m, v = run(t, m, "delete from stocks where last_sale > 1.0")
	requireRowsAffected(t, v, 1)

	m, v = run(t, m, "from stocks")
	table, ok := v.(core.TableValue)
	require.True(t, ok)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, uint64(1), table.Rows[0].ID)
	assert.Equal(t, core.Value(core.Str("UNO")), table.Rows[0].Values[0])
	assert.Equal(t, core.Value(core.Str("OTC")), table.Rows[0].Values[1])
	assert.Equal(t, core.Value(core.Num(core.F64(0.2456))), table.Rows[0].Values[2])

	m, v = run(t, m, "undelete from stocks where last_sale > 1.0")
	requireRowsAffected(t, v, 1)

	_, v = run(t, m, "from stocks")
	table, ok = v.(core.TableValue)
	require.True(t, ok)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, uint64(0), table.Rows[0].ID)
	assert.Equal(t, core.Value(core.Str("ABC")), table.Rows[0].Values[0])
	assert.Equal(t, core.Value(core.Num(core.F64(11.77))), table.Rows[0].Values[2])
}

func TestOverwriteByPredicate(t *testing.T) {
	m := newTestMachine(t)
	var v core.Value

	m, v = run(t, m, `
		stocks := ns("t2.overwrite.stocks")
		table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks
		append stocks from [
			{ symbol: "ABC",  exchange: "AMEX", last_sale: 11.77 },
			{ symbol: "GOTO", exchange: "OTC",  last_sale: 0.1428 }
		]
	`)
	requireRowsAffected(t, v, 2)

	m, v = run(t, m,
		`overwrite stocks via {symbol: "GOTO", exchange: "OTC", last_sale: 0.1421} where symbol == "GOTO" limit 1`)
	requireRowsAffected(t, v, 1)

	_, v = run(t, m, `from stocks where symbol == "GOTO"`)
	table, ok := v.(core.TableValue)
	require.True(t, ok)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, core.Value(core.Num(core.F64(0.1421))), table.Rows[0].Values[2])
}

func TestSelectPipeline(t *testing.T) {
	m := newTestMachine(t)
	var v core.Value

	m, v = run(t, m, `
		stocks := ns("t3.select.stocks")
		table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks
		append stocks from [
			{ symbol: "DMX",  exchange: "NYSE",   last_sale: 99.99 },
			{ symbol: "UNO",  exchange: "OTC",    last_sale: 0.2456 },
			{ symbol: "BIZ",  exchange: "NYSE",   last_sale: 23.66 },
			{ symbol: "GOTO", exchange: "OTC",    last_sale: 0.1428 },
			{ symbol: "ABC",  exchange: "AMEX",   last_sale: 11.11 },
			{ symbol: "BOOM", exchange: "NASDAQ", last_sale: 56.88 },
			{ symbol: "JET",  exchange: "NASDAQ", last_sale: 32.12 }
		]
	`)
	requireRowsAffected(t, v, 7)

	_, v = run(t, m,
		"select symbol, exchange, last_sale from stocks where last_sale > 1.0 order by symbol limit 5")
	table, ok := v.(core.TableValue)
	require.True(t, ok)
	require.Len(t, table.Rows, 5)
	var symbols []string
	for _, row := range table.Rows {
		symbols = append(symbols, row.Values[0].(core.StringValue).S)
		lastSale := row.Values[2].(core.NumberValue).N.F
		assert.Greater(t, lastSale, 1.0)
	}
	assert.Equal(t, []string{"ABC", "BIZ", "BOOM", "DMX", "JET"}, symbols)
	require.Len(t, table.Params, 3)
	assert.Equal(t, "symbol", table.Params[0].Name)
}

func TestSelectProjectsSubset(t *testing.T) {
	m := newTestMachine(t)
	m, v := run(t, m, `
		stocks := ns("t3.project.stocks")
		table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks
		append stocks from [{ symbol: "ABC", exchange: "AMEX", last_sale: 11.11 }]
	`)
	requireRowsAffected(t, v, 1)
	_, v = run(t, m, "select symbol from stocks")
	table, ok := v.(core.TableValue)
	require.True(t, ok)
	require.Len(t, table.Params, 1)
	require.Len(t, table.Rows, 1)
	require.Len(t, table.Rows[0].Values, 1)
}

func TestUpdateMergesFields(t *testing.T) {
	m := newTestMachine(t)
	m, v := run(t, m, `
		stocks := ns("t4.update.stocks")
		table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks
		append stocks from [{ symbol: "ABC", exchange: "AMEX", last_sale: 11.11 }]
	`)
	requireRowsAffected(t, v, 1)

	m, v = run(t, m, `update stocks via {last_sale: 11.22} where symbol == "ABC"`)
	requireRowsAffected(t, v, 1)

	_, v = run(t, m, "from stocks")
	table := v.(core.TableValue)
	require.Len(t, table.Rows, 1)
	// untouched fields survive the merge
	assert.Equal(t, core.Value(core.Str("ABC")), table.Rows[0].Values[0])
	assert.Equal(t, core.Value(core.Str("AMEX")), table.Rows[0].Values[1])
	assert.Equal(t, core.Value(core.Num(core.F64(11.22))), table.Rows[0].Values[2])
}

func TestTruncateAndDrop(t *testing.T) {
	m := newTestMachine(t)
	m, v := run(t, m, `
		stocks := ns("t5.truncate.stocks")
		table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks
		append stocks from [
			{ symbol: "A", exchange: "NYSE", last_sale: 1.0 },
			{ symbol: "B", exchange: "NYSE", last_sale: 2.0 }
		]
	`)
	requireRowsAffected(t, v, 2)

	m, v = run(t, m, "truncate stocks")
	requireAck(t, v)
	m, v = run(t, m, "from stocks")
	assert.Empty(t, v.(core.TableValue).Rows)

	m, v = run(t, m, "drop table stocks")
	requireAck(t, v)
	_, v = run(t, m, "from stocks")
	assert.True(t, core.IsError(v))
}

func TestBoundedOverflowSurfacesTypedError(t *testing.T) {
	m := newTestMachine(t)
	m, v := run(t, m, `
		stocks := ns("t6.overflow.stocks")
		table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks
	`)
	requireAck(t, v)
	_, v = run(t, m, `append stocks from [{ symbol: "VERY_LONG_SYMBOL", exchange: "NYSE", last_sale: 1.0 }]`)
	require.True(t, core.IsError(v))
}

func TestUnboundedColumnRoundTripsViaBlob(t *testing.T) {
	m := newTestMachine(t)
	m, v := run(t, m, `
		docs := ns("t6.blob.docs")
		table(title: String(8), body: String) ~> docs
		append docs from [{ title: "doc", body: "sixteen chars plus quite a lot more text" }]
	`)
	requireRowsAffected(t, v, 1)
	_, v = run(t, m, "from docs")
	table := v.(core.TableValue)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, core.Value(core.Str("sixteen chars plus quite a lot more text")), table.Rows[0].Values[1])
}

func TestCompactFromNamespace(t *testing.T) {
	m := newTestMachine(t)
	m, v := run(t, m, `
		stocks := ns("t7.compact.stocks")
		table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks
		append stocks from [
			{ symbol: "DMX",  exchange: "NYSE",   last_sale: 99.99 },
			{ symbol: "UNO",  exchange: "OTC",    last_sale: 0.2456 },
			{ symbol: "BIZ",  exchange: "NYSE",   last_sale: 23.66 },
			{ symbol: "GOTO", exchange: "OTC",    last_sale: 0.1428 },
			{ symbol: "BOOM", exchange: "NASDAQ", last_sale: 0.0872 }
		]
		delete from stocks where last_sale > 1.0
	`)
	requireRowsAffected(t, v, 2)

	m, v = run(t, m, "from stocks")
	require.Len(t, v.(core.TableValue).Rows, 3)

	m, v = run(t, m, "compact stocks")
	requireAck(t, v)

	_, v = run(t, m, "from stocks")
	table := v.(core.TableValue)
	require.Len(t, table.Rows, 3)
	// IDs are dense again after compaction
	for i, row := range table.Rows {
		assert.Equal(t, uint64(i), row.ID)
	}
}

func TestDescribeTableStructure(t *testing.T) {
	m := newTestMachine(t)
	m, v := run(t, m, `
		stocks := ns("t8.describe.stocks")
		table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks
	`)
	requireAck(t, v)
	_, v = run(t, m, "describe stocks")
	table, ok := v.(core.TableValue)
	require.True(t, ok)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, core.Value(core.Str("symbol")), table.Rows[0].Values[0])
	assert.Equal(t, core.Value(core.Str("String(8)")), table.Rows[0].Values[1])
	assert.Equal(t, core.Value(core.Str("null")), table.Rows[0].Values[2])
	assert.Equal(t, core.Value(core.Str("f64")), table.Rows[2].Values[1])
}

func TestDirectives(t *testing.T) {
	m := newTestMachine(t)

	_, v := run(t, m, "[+] x := 67")
	requireAck(t, v)

	_, v = run(t, m, `{
		[+] x := 67
		[-] x < 67
	}`)
	assert.Equal(t, core.Value(core.Bool(false)), v)

	_, v = run(t, m, `[!] "Kaboom!!!"`)
	require.True(t, core.IsError(v))
	assert.Equal(t, "Kaboom!!!", v.(core.ErrorValue).Err.Error())

	_, v = run(t, m, `[~] vm::eval("7 / 0")`)
	requireAck(t, v)

	_, v = run(t, m, "[+] 1 + 1")
	require.True(t, core.IsError(v))
}

func TestDirectivesPipeline(t *testing.T) {
	m := newTestMachine(t)
	_, v := run(t, m, `
		[+] stocks := ns("t9.pipeline.stocks")
		[+] table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks
		[+] append stocks from [
			{ symbol: "ABC",  exchange: "AMEX",   last_sale: 12.49 },
			{ symbol: "BOOM", exchange: "NYSE",   last_sale: 56.88 },
			{ symbol: "JET",  exchange: "NASDAQ", last_sale: 32.12 }
		]
		[+] delete from stocks where last_sale < 30.0
		from stocks
	`)
	table, ok := v.(core.TableValue)
	require.True(t, ok, "got %s", v.ToCode())
	require.Len(t, table.Rows, 2)
	assert.Equal(t, core.Value(core.Str("BOOM")), table.Rows[0].Values[0])
	assert.Equal(t, core.Value(core.Str("JET")), table.Rows[1].Values[0])
}

func TestInMemoryTableMutation(t *testing.T) {
	m := newTestMachine(t)
	m, v := run(t, m, "stocks := table(symbol: String(8), exchange: String(8), last_sale: f64)")
	requireAck(t, v)

	m, v = run(t, m, `append stocks from [{ symbol: "ABC", exchange: "AMEX", last_sale: 11.77 }]`)
	requireRowsAffected(t, v, 1)

	_, v = run(t, m, "from stocks")
	table, ok := v.(core.TableValue)
	require.True(t, ok)
	require.Len(t, table.Rows, 1)
}

func TestPlatformStringOps(t *testing.T) {
	m := newTestMachine(t)
	cases := []struct {
		script string
		want   core.Value
	}{
		{`str::format("This {} the {}", "is", "way")`, core.Str("This is the way")},
		{`str::left('Hello World', 5)`, core.Str("Hello")},
		{`str::left('Hello World', -5)`, core.Str("World")},
		{`str::right('Hello World', 5)`, core.Str("World")},
		{`str::right('Hello World', -5)`, core.Str("Hello")},
		{`str::substring('Hello World', 0, 5)`, core.Str("Hello")},
		{`str::to_string(125.75)`, core.Str("125.75")},
	}
	for _, tc := range cases {
		_, v := run(t, m, tc.script)
		assert.Equal(t, tc.want, v, tc.script)
	}

	// invalid inputs degrade to Undefined
	_, v := run(t, m, "str::left(12345, 5)")
	assert.Equal(t, core.Value(core.Undefined), v)
}

func TestPlatformNumericConversions(t *testing.T) {
	m := newTestMachine(t)
	_, v := run(t, m, "util::to_i64(123456789.42)")
	assert.Equal(t, core.Value(core.Num(core.I64(123456789))), v)
	_, v = run(t, m, "util::to_u8(125.089)")
	assert.Equal(t, core.Value(core.Num(core.U8(125))), v)
	_, v = run(t, m, "util::to_f32(1015)")
	assert.Equal(t, core.Value(core.Num(core.F32(1015))), v)
}

func TestPlatformUUIDAndTimestamp(t *testing.T) {
	m := newTestMachine(t)
	_, v := run(t, m, "util::uuid()")
	n, ok := v.(core.NumberValue)
	require.True(t, ok)
	assert.Equal(t, core.UUIDKind, n.N.Kind)

	_, v = run(t, m, "util::timestamp()")
	n, ok = v.(core.NumberValue)
	require.True(t, ok)
	assert.Equal(t, core.DateKind, n.N.Kind)
}

func TestPlatformEval(t *testing.T) {
	m := newTestMachine(t)
	_, v := run(t, m, `vm::eval("2 ** 4")`)
	assert.Equal(t, core.Value(core.Num(core.F64(16))), v)

	_, v = run(t, m, "vm::eval(123)")
	require.True(t, core.IsError(v))
	assert.Equal(t, core.MismatchStringExpected, v.(core.ErrorValue).Err.Mismatch)
}

func TestPlatformExports(t *testing.T) {
	m := newTestMachine(t)
	m, v := run(t, m, `
		stocks := ns("t10.csv.stocks")
		table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks
		append stocks from [
			{ symbol: "ABC", exchange: "AMEX", last_sale: 11.11 },
			{ symbol: "UNO", exchange: "OTC",  last_sale: 0.2456 }
		]
	`)
	requireRowsAffected(t, v, 2)

	_, v = run(t, m, "util::to_csv(from stocks)")
	assert.Equal(t, core.Value(core.Arr(
		core.Str(`"ABC","AMEX",11.11`),
		core.Str(`"UNO","OTC",0.2456`),
	)), v)

	_, v = run(t, m, "util::to_json(from stocks)")
	assert.Equal(t, core.Value(core.Arr(
		core.Str(`{"symbol":"ABC","exchange":"AMEX","last_sale":11.11}`),
		core.Str(`{"symbol":"UNO","exchange":"OTC","last_sale":0.2456}`),
	)), v)
}

func TestPlatformIO(t *testing.T) {
	var stdout, stderr bytes.Buffer
	m := newTestMachine(t).WithOutput(&stdout, &stderr)
	_, v := run(t, m, `io::stdout("Hello World")`)
	requireAck(t, v)
	assert.Equal(t, "Hello World\n", stdout.String())

	_, v = run(t, m, `io::stderr("Goodbye Cruel World")`)
	requireAck(t, v)
	assert.Equal(t, "Goodbye Cruel World\n", stderr.String())
}

func TestFeatureWithScenarios(t *testing.T) {
	m := newTestMachine(t)
	_, v := run(t, m, `feature "Matches function" {
		scenario "Compare Array contents: Equal" {
			assert(matches(
				[ 1, "a", "b", "c" ],
				[ 1, "a", "b", "c" ]
			))
		}
		scenario "Compare Array contents: Not Equal" {
			assert(!matches(
				[ 1, "a", "b", "c" ],
				[ 0, "x", "y", "z" ]
			))
		}
		scenario "Compare JSON contents (out of sequence)" {
			assert(matches(
				{ scores: [82, 78, 99], id: "A1537" },
				{ id: "A1537", scores: [82, 78, 99] }))
		}
	}`)
	table, ok := v.(core.TableValue)
	require.True(t, ok, "got %s", v.ToCode())
	require.NotEmpty(t, table.Rows)
	// the feature row and every scenario row passed
	for _, row := range table.Rows {
		passed, isBool := row.Values[2].(core.BoolValue)
		require.True(t, isBool)
		assert.True(t, passed.B, row.Values[1].ToCode())
	}
}

func TestElementAtOutOfRange(t *testing.T) {
	m := newTestMachine(t)
	_, v := run(t, m, "[0, 1, 3, 5][2]")
	assert.Equal(t, core.Value(core.Num(core.I64(3))), v)
	_, v = run(t, m, "[0, 1][9]")
	assert.True(t, core.IsError(v))
}

func TestPureAgreesWithFullEvaluation(t *testing.T) {
	scripts := []string{
		"0b1011 & 0b1101",
		"5 ** 3",
		"6¡",
		"[1,2,3,4] * 2",
		"1 + 2 * 3",
		"7 % 3",
		"5 between 1 and 10",
		`"ab" ++ "cd"`,
		"1..4",
		"[9, 8, 7][1]",
	}
	for _, script := range scripts {
		pure, err := lang.PureValue(script)
		require.NoError(t, err, script)
		_, full := New(t.TempDir()).Run(script)
		assert.True(t, core.Equal(pure, full), "%s: pure %s vs full %s", script, pure.ToCode(), full.ToCode())
	}
}
