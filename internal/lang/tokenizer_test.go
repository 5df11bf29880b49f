package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kindsOf(tokens []Token) []TokenKind {
	kinds := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		kinds[i] = t.Kind
	}
	return kinds
}

func textsOf(tokens []Token) []string {
	texts := make([]string, len(tokens))
	for i, t := range tokens {
		texts[i] = t.Text
	}
	return texts
}

func TestTokenizeBasic(t *testing.T) {
	tokens := Tokenize("(123, 'Hello', abc)")
	assert.Equal(t, []string{"(", "123", ",", "Hello", ",", "abc", ")"}, textsOf(tokens))
	assert.Equal(t, []TokenKind{
		TokenOperator, TokenNumeric, TokenOperator, TokenSingleQuoted,
		TokenOperator, TokenAtom, TokenOperator,
	}, kindsOf(tokens))
}

func TestTokenizeQuotes(t *testing.T) {
	tokens := Tokenize(`"double" 'single' ` + "`ticks`")
	require.Len(t, tokens, 3)
	assert.Equal(t, TokenDoubleQuoted, tokens[0].Kind)
	assert.Equal(t, "double", tokens[0].Text)
	assert.Equal(t, TokenSingleQuoted, tokens[1].Kind)
	assert.Equal(t, TokenBackticks, tokens[2].Kind)
}

func TestTokenizeNumbers(t *testing.T) {
	tokens := Tokenize("123 45.67 0b1011 0xFF 1_000_000")
	assert.Equal(t, []string{"123", "45.67", "0b1011", "0xFF", "1_000_000"}, textsOf(tokens))
	for _, tok := range tokens {
		assert.Equal(t, TokenNumeric, tok.Kind, tok.Text)
	}
}

func TestTokenizeRangeIsNotDecimal(t *testing.T) {
	tokens := Tokenize("1..4")
	assert.Equal(t, []string{"1", "..", "4"}, textsOf(tokens))
}

func TestTokenizeCompoundOperators(t *testing.T) {
	tokens := Tokenize("a := b == c != d >= e <= f && g || h << i >> j ** k ~> l")
	var ops []string
	for _, tok := range tokens {
		if tok.IsOperator() {
			ops = append(ops, tok.Text)
		}
	}
	assert.Equal(t, []string{":=", "==", "!=", ">=", "<=", "&&", "||", "<<", ">>", "**", "~>"}, ops)
}

func TestTokenizeDirectives(t *testing.T) {
	tokens := Tokenize("[+] x := 67")
	require.NotEmpty(t, tokens)
	assert.Equal(t, "[+]", tokens[0].Text)
	assert.Equal(t, TokenOperator, tokens[0].Kind)

	// a directive shape inside an index expression must not fuse
	tokens = Tokenize("a[-1]")
	assert.Equal(t, []string{"a", "[", "-", "1", "]"}, textsOf(tokens))
}

func TestTokenizeExtraction(t *testing.T) {
	tokens := Tokenize("str::left('Hello', 5)")
	assert.Equal(t, []string{"str", "::", "left", "(", "Hello", ",", "5", ")"}, textsOf(tokens))
}

func TestTokenizeFactorial(t *testing.T) {
	tokens := Tokenize("6¡")
	assert.Equal(t, []string{"6", "¡"}, textsOf(tokens))
}

func TestTokenizeComments(t *testing.T) {
	tokens := Tokenize("x := 5 // trailing comment\ny := 6")
	assert.Equal(t, []string{"x", ":=", "5", "y", ":=", "6"}, textsOf(tokens))
}

func TestTokenizeLineNumbers(t *testing.T) {
	tokens := Tokenize("a\nb\n\nc")
	require.Len(t, tokens, 3)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 4, tokens[2].Line)
}
