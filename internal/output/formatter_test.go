package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxide/internal/core"
)

func stockParams() []core.Parameter {
	return []core.Parameter{
		core.NewParameter("symbol", core.StringType{Size: 8}),
		core.NewParameter("exchange", core.StringType{Size: 8}),
		core.NewParameter("last_sale", core.NumberType{NumberKind: core.F64Kind}),
	}
}

func stockRows() []core.Row {
	return []core.Row{
		core.NewRow(0, core.Str("ABC"), core.Str("AMEX"), core.Num(core.F64(11.77))),
		core.NewRow(1, core.Str("UNO"), core.Str("OTC"), core.Num(core.F64(0.2456))),
	}
}

func TestTableGrid(t *testing.T) {
	lines := TableGrid(stockParams(), stockRows())
	require.Len(t, lines, 6)

	// header, separators, and one line per row
	assert.Equal(t, lines[0], lines[2])
	assert.Equal(t, lines[0], lines[5])
	assert.True(t, strings.HasPrefix(lines[0], "|-"))
	assert.True(t, strings.HasSuffix(lines[0], "-|"))
	assert.Contains(t, lines[1], "symbol")
	assert.Contains(t, lines[1], "exchange")
	assert.Contains(t, lines[1], "last_sale")
	assert.Contains(t, lines[3], "ABC")
	assert.Contains(t, lines[4], "0.2456")

	// every line is the same width
	for _, line := range lines[1:] {
		assert.Len(t, line, len(lines[0]))
	}
}

func TestTableGridEmpty(t *testing.T) {
	lines := TableGrid(stockParams(), nil)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "symbol")
}

func TestCSVRows(t *testing.T) {
	lines, err := CSVRows(stockParams(), stockRows())
	require.NoError(t, err)
	assert.Equal(t, []string{
		`"ABC","AMEX",11.77`,
		`"UNO","OTC",0.2456`,
	}, lines)
}

func TestJSONRows(t *testing.T) {
	lines, err := JSONRows(stockParams(), stockRows())
	require.NoError(t, err)
	assert.Equal(t, []string{
		`{"symbol":"ABC","exchange":"AMEX","last_sale":11.77}`,
		`{"symbol":"UNO","exchange":"OTC","last_sale":0.2456}`,
	}, lines)
}

func TestJSONRowsNullCells(t *testing.T) {
	rows := []core.Row{core.NewRow(0, core.Str("X"), core.Null, core.Num(core.F64(1)))}
	lines, err := JSONRows(stockParams(), rows)
	require.NoError(t, err)
	assert.Equal(t, `{"symbol":"X","exchange":null,"last_sale":1}`, lines[0])
}

func TestFormatRows(t *testing.T) {
	lines, err := FormatRows(FormatCSV, stockParams(), stockRows())
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	_, err = FormatRows("yaml", stockParams(), stockRows())
	assert.Error(t, err)
}

func TestRenderValue(t *testing.T) {
	assert.Equal(t, []string{"ack"}, RenderValue(core.AckValue()))
	assert.Equal(t, []string{"42"}, RenderValue(core.Num(core.I64(42))))
	assert.Equal(t, []string{"error: boom"}, RenderValue(core.Erred(core.ExactError("boom"))))

	lines := RenderValue(core.TableValue{Params: stockParams(), Rows: stockRows()})
	assert.Len(t, lines, 6)
}
