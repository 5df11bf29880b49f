// Package repl implements the interactive shell: a prompt over one
// evaluator, per-statement timing, and an in-memory history pseudo-table.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"oxide/internal/core"
	"oxide/internal/machine"
	"oxide/internal/output"
	"oxide/internal/storage"
)

// historyInputMax bounds one recorded statement.
const historyInputMax = 65536

// Shell drives a read-eval-print loop over a single machine.
type Shell struct {
	machine  *machine.Machine
	database string
	schema   string
	counter  int
	history  *storage.ByteRowCollection
	in       io.Reader
	out      io.Writer
	prompt   bool
}

// New builds a shell rooted at the given filesystem root, reading from in
// and writing to out. The prompt is suppressed when stdin is not a
// terminal so piped scripts produce clean output.
func New(root string, in io.Reader, out io.Writer) *Shell {
	prompt := true
	if f, ok := in.(*os.File); ok {
		prompt = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Shell{
		machine:  machine.New(root),
		database: "oxide",
		schema:   "public",
		counter:  1,
		history:  storage.NewByteRowCollection(historyParams()),
		in:       in,
		out:      out,
		prompt:   prompt,
	}
}

func historyParams() []core.Parameter {
	return []core.Parameter{
		core.NewParameter("pid", core.NumberType{NumberKind: core.I64Kind}),
		core.NewParameter("input", core.StringType{Size: historyInputMax}),
	}
}

// Prompt renders the current prompt string.
func (s *Shell) Prompt() string {
	return fmt.Sprintf("%s.%s[%d]> ", s.database, s.schema, s.counter)
}

// History returns the in-memory history table.
func (s *Shell) History() *storage.ByteRowCollection { return s.history }

// Run loops until EOF or the q! command. It always returns nil on a clean
// exit; read errors are reported to the caller.
func (s *Shell) Run() error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, historyInputMax), historyInputMax)
	for {
		if s.prompt {
			fmt.Fprint(s.out, s.Prompt())
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("repl: read: %w", err)
			}
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "q!":
			return nil
		}
		s.Execute(line)
	}
}

// Execute evaluates one statement, printing the timing line and the
// rendered result.
func (s *Shell) Execute(line string) core.Value {
	pid := s.counter
	s.counter++
	s.recordHistory(pid, line)

	started := time.Now()
	var result core.Value
	if line == "history" {
		table, err := storage.ToTableValue(s.history)
		if err != nil {
			result = core.Erred(core.ExactError(err.Error()))
		} else {
			result = table
		}
	} else {
		s.machine, result = s.machine.Run(line)
	}
	elapsed := time.Since(started)

	fmt.Fprintf(s.out, "[%d] %s in %d millis\n", pid, resultSummary(result), elapsed.Milliseconds())
	for _, rendered := range output.RenderValue(result) {
		fmt.Fprintln(s.out, rendered)
	}
	return result
}

func (s *Shell) recordHistory(pid int, line string) {
	if len(line) > historyInputMax {
		line = line[:historyInputMax]
	}
	_, _ = storage.Append(s.history, core.NewRow(0,
		core.Num(core.I64(int64(pid))),
		core.Str(line),
	))
}

// resultSummary names the result type, adding the row count for tables.
func resultSummary(v core.Value) string {
	if table, ok := v.(core.TableValue); ok {
		return fmt.Sprintf("%s ~ %d row(s)", core.TypeNameOf(v), len(table.Rows))
	}
	return core.TypeNameOf(v)
}
