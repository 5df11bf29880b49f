package lang

import (
	"fmt"

	"oxide/internal/core"
)

// TokenSlice is an immutable cursor over a lexed token sequence. Every
// navigation returns a new slice; the original is never mutated, so the
// parser can backtrack by simply keeping an older slice.
type TokenSlice struct {
	tokens []Token
	pos    int
}

// NewTokenSlice wraps a token sequence.
func NewTokenSlice(tokens []Token) TokenSlice {
	return TokenSlice{tokens: tokens}
}

// TokenSliceFromString lexes text into a slice.
func TokenSliceFromString(text string) TokenSlice {
	return NewTokenSlice(Tokenize(text))
}

// Len returns the total token count.
func (ts TokenSlice) Len() int { return len(ts.tokens) }

// Position returns the cursor index.
func (ts TokenSlice) Position() int { return ts.pos }

// IsEmpty reports an empty token sequence.
func (ts TokenSlice) IsEmpty() bool { return len(ts.tokens) == 0 }

// HasMore reports whether the cursor has not passed the end.
func (ts TokenSlice) HasMore() bool { return ts.pos < len(ts.tokens) }

// At returns the token at an absolute index.
func (ts TokenSlice) At(i int) Token { return ts.tokens[i] }

// Copy returns the slice with the cursor moved to pos.
func (ts TokenSlice) Copy(pos int) TokenSlice {
	return TokenSlice{tokens: ts.tokens, pos: pos}
}

// Get returns the token under the cursor.
func (ts TokenSlice) Get() (Token, bool) {
	if ts.pos >= 0 && ts.pos < len(ts.tokens) {
		return ts.tokens[ts.pos], true
	}
	return Token{}, false
}

// Next returns the token under the cursor and the advanced slice.
func (ts TokenSlice) Next() (Token, TokenSlice, bool) {
	if ts.pos < len(ts.tokens) {
		return ts.tokens[ts.pos], ts.Copy(ts.pos + 1), true
	}
	return Token{}, ts, false
}

// Previous returns the token before the cursor and the retreated slice.
func (ts TokenSlice) Previous() (Token, TokenSlice, bool) {
	if ts.pos > 0 {
		return ts.tokens[ts.pos-1], ts.Copy(ts.pos - 1), true
	}
	return Token{}, ts, false
}

// Skip advances the cursor one token.
func (ts TokenSlice) Skip() TokenSlice {
	_, next, _ := ts.Next()
	return next
}

// Is reports whether the current token's text equals s.
func (ts TokenSlice) Is(s string) bool {
	tok, ok := ts.Get()
	return ok && tok.Is(s)
}

// Isnt is the negation of Is.
func (ts TokenSlice) Isnt(s string) bool { return !ts.Is(s) }

// Exists reports whether the current token satisfies f.
func (ts TokenSlice) Exists(f func(Token) bool) bool {
	tok, ok := ts.Get()
	return ok && f(tok)
}

// Expect asserts that the next token's text equals term and consumes it.
func (ts TokenSlice) Expect(term string) (TokenSlice, error) {
	tok, next, ok := ts.Next()
	if !ok {
		return ts, core.SyntaxError(fmt.Sprintf("expected %q at end of input", term))
	}
	if !tok.Is(term) {
		return ts, core.SyntaxError(fmt.Sprintf("expected %q but got %q", term, tok.Text))
	}
	return next, nil
}

// Capture returns the tokens between the start and end delimiters,
// dropping separator tokens matching delim, and the slice advanced past
// the closing delimiter. Nesting of the same delimiter pair is preserved
// inside the captured range.
func (ts TokenSlice) Capture(start, end, delim string) ([]Token, TokenSlice, error) {
	next, err := ts.Expect(start)
	if err != nil {
		return nil, ts, err
	}
	var captured []Token
	depth := 1
	for {
		tok, advanced, ok := next.Next()
		if !ok {
			return nil, ts, core.SyntaxError(fmt.Sprintf("unterminated %q", start))
		}
		next = advanced
		switch {
		case tok.Is(start) && tok.IsOperator():
			depth++
			captured = append(captured, tok)
		case tok.Is(end) && tok.IsOperator():
			depth--
			if depth == 0 {
				return captured, next, nil
			}
			captured = append(captured, tok)
		case delim != "" && tok.Is(delim) && depth == 1:
			// separators at the top nesting level are dropped
		default:
			captured = append(captured, tok)
		}
	}
}

// ScanTo returns the tokens strictly before the first match of f and the
// slice positioned at the match. Reaching the end without a match leaves
// the slice unchanged.
func (ts TokenSlice) ScanTo(f func(Token) bool) ([]Token, TokenSlice) {
	pos := ts.pos
	for pos < len(ts.tokens) && !f(ts.tokens[pos]) {
		pos++
	}
	if pos > ts.pos && pos < len(ts.tokens) {
		return ts.tokens[ts.pos:pos], ts.Copy(pos)
	}
	return nil, ts
}

// ScanUntil is ScanTo with the matching token included in the result.
func (ts TokenSlice) ScanUntil(f func(Token) bool) ([]Token, TokenSlice) {
	pos := ts.pos
	for pos < len(ts.tokens) && !f(ts.tokens[pos]) {
		pos++
	}
	if pos > ts.pos && pos < len(ts.tokens) {
		return ts.tokens[ts.pos : pos+1], ts.Copy(pos)
	}
	return nil, ts
}

// IsPreviousAdjacent reports whether the previous token abuts the current
// one with no intervening space. The parser uses it to distinguish
// indexing (a[3]) from juxtaposition (a [3]).
func (ts TokenSlice) IsPreviousAdjacent() bool {
	if ts.pos <= 0 || ts.pos >= len(ts.tokens) {
		return false
	}
	prev, cur := ts.tokens[ts.pos-1], ts.tokens[ts.pos]
	return prev.Line == cur.Line && prev.Column+prev.Width() == cur.Column
}

// IsSameLineAsPrevious reports whether the previous token shares the
// current token's line.
func (ts TokenSlice) IsSameLineAsPrevious() bool {
	if ts.pos <= 0 || ts.pos >= len(ts.tokens) {
		return false
	}
	return ts.tokens[ts.pos-1].Line == ts.tokens[ts.pos].Line
}
