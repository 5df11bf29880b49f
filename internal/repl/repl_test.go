package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oxide/internal/core"
	"oxide/internal/storage"
)

func TestPromptShape(t *testing.T) {
	s := New(t.TempDir(), strings.NewReader(""), &bytes.Buffer{})
	assert.Equal(t, "oxide.public[1]> ", s.Prompt())
}

func TestExecutePrintsTimingLine(t *testing.T) {
	var out bytes.Buffer
	s := New(t.TempDir(), strings.NewReader(""), &out)
	v := s.Execute("x := 5")
	n, ok := v.(core.NumberValue)
	require.True(t, ok)
	assert.Equal(t, core.AckKind, n.N.Kind)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NotEmpty(t, lines)
	assert.Regexp(t, `^\[1\] Ack in \d+ millis$`, lines[0])
	assert.Equal(t, "ack", lines[1])
}

func TestExecuteTableSummaryIncludesRowCount(t *testing.T) {
	var out bytes.Buffer
	s := New(t.TempDir(), strings.NewReader(""), &out)
	s.Execute(`stocks := ns("repl.test.stocks")`)
	s.Execute("table(symbol: String(8), exchange: String(8), last_sale: f64) ~> stocks")
	s.Execute(`append stocks from [{ symbol: "ABC", exchange: "AMEX", last_sale: 11.77 }]`)
	out.Reset()
	s.Execute("from stocks")
	assert.Regexp(t, `^\[4\] Table ~ 1 row\(s\) in \d+ millis`, out.String())
	assert.Contains(t, out.String(), "| symbol")
	assert.Contains(t, out.String(), "ABC")
}

func TestHistoryPseudoTable(t *testing.T) {
	var out bytes.Buffer
	s := New(t.TempDir(), strings.NewReader(""), &out)
	s.Execute("x := 1")
	s.Execute("x + 1")

	rows, err := storage.ReadActiveRows(s.History())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, core.Value(core.Num(core.I64(1))), rows[0].Values[0])
	assert.Equal(t, core.Value(core.Str("x := 1")), rows[0].Values[1])
	assert.Equal(t, core.Value(core.Str("x + 1")), rows[1].Values[1])

	// "history" renders without recording an error
	out.Reset()
	s.Execute("history")
	assert.Contains(t, out.String(), "x := 1")
}

func TestRunExitsOnQBang(t *testing.T) {
	var out bytes.Buffer
	s := New(t.TempDir(), strings.NewReader("x := 1\nq!\nnever := 1\n"), &out)
	require.NoError(t, s.Run())
	rows, err := storage.ReadActiveRows(s.History())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRunStatePersistsAcrossLines(t *testing.T) {
	var out bytes.Buffer
	s := New(t.TempDir(), strings.NewReader("x := 41\nx + 1\n"), &out)
	require.NoError(t, s.Run())
	assert.Contains(t, out.String(), "42")
}
