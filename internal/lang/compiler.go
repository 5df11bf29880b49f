package lang

import (
	"fmt"
	"strconv"
	"strings"

	"oxide/internal/core"
)

// Build compiles a single expression from source text.
func Build(text string) (Expression, error) {
	ts := TokenSliceFromString(text)
	if ts.IsEmpty() {
		return nil, core.SyntaxError("empty input")
	}
	expr, rest, err := parseStatement(ts)
	if err != nil {
		return nil, err
	}
	if rest.HasMore() {
		tok, _ := rest.Get()
		return nil, core.SyntaxError(fmt.Sprintf("unexpected trailing input at %q", tok.Text))
	}
	return expr, nil
}

// CompileScript compiles a statement sequence as an implicit code block. A
// single-statement script compiles to that statement.
func CompileScript(text string) (Expression, error) {
	ts := TokenSliceFromString(text)
	var exprs []Expression
	for ts.HasMore() {
		if ts.Is(";") {
			ts = ts.Skip()
			continue
		}
		expr, rest, err := parseStatement(ts)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		ts = rest
	}
	switch len(exprs) {
	case 0:
		return nil, core.SyntaxError("empty script")
	case 1:
		return exprs[0], nil
	default:
		return CodeBlock{Exprs: exprs}, nil
	}
}

// parseStatement parses one statement: a directive, a keyword form, an
// assignment, or a bare expression with its query-postfix chain.
func parseStatement(ts TokenSlice) (Expression, TokenSlice, error) {
	tok, ok := ts.Get()
	if !ok {
		return nil, ts, core.SyntaxError("unexpected end of input")
	}

	if tok.IsOperator() {
		switch tok.Text {
		case "[+]", "[-]", "[!]", "[~]":
			inner, rest, err := parseStatement(ts.Skip())
			if err != nil {
				return nil, ts, err
			}
			switch tok.Text {
			case "[+]":
				return MustAck{Expr: inner}, rest, nil
			case "[-]":
				return MustNotAck{Expr: inner}, rest, nil
			case "[!]":
				return MustDie{Expr: inner}, rest, nil
			default:
				return MustIgnoreAck{Expr: inner}, rest, nil
			}
		}
	}

	expr, rest, err := parseExpression(ts)
	if err != nil {
		return nil, ts, err
	}
	return parseQueryPostfix(expr, rest)
}

// parseQueryPostfix chains where/limit/~> clauses onto a parsed expression.
func parseQueryPostfix(expr Expression, ts TokenSlice) (Expression, TokenSlice, error) {
	for {
		switch {
		case ts.Is("where"):
			cond, rest, err := parseExpression(ts.Skip())
			if err != nil {
				return nil, ts, err
			}
			expr = Where{Source: expr, Condition: cond}
			ts = rest
		case ts.Is("limit"):
			limit, rest, err := parseExpression(ts.Skip())
			if err != nil {
				return nil, ts, err
			}
			expr = LimitOp{Source: expr, Limit: limit}
			ts = rest
		case ts.Is("~>"):
			target, rest, err := parseExpression(ts.Skip())
			if err != nil {
				return nil, ts, err
			}
			expr = IntoNs{Source: expr, Target: target}
			ts = rest
		default:
			return expr, ts, nil
		}
	}
}

// parseExpression parses a full expression: keyword forms, assignment, or
// the operator ladder.
func parseExpression(ts TokenSlice) (Expression, TokenSlice, error) {
	tok, ok := ts.Get()
	if !ok {
		return nil, ts, core.SyntaxError("unexpected end of input")
	}

	if tok.IsAtom() {
		if expr, rest, handled, err := parseKeyword(tok.Text, ts); handled {
			return expr, rest, err
		}
		// assignment lookahead: name := expr
		if ts.Copy(ts.Position() + 1).Is(":=") {
			value, rest, err := parseExpression(ts.Skip().Skip())
			if err != nil {
				return nil, ts, err
			}
			return SetVariable{Name: tok.Text, Expr: value}, rest, nil
		}
	}

	// destructuring assignment: (a, b) := expr
	if tok.Is("(") {
		if names, after, ok := tryParseNameTuple(ts); ok && after.Is(":=") {
			value, rest, err := parseExpression(after.Skip())
			if err != nil {
				return nil, ts, err
			}
			return SetVariables{Names: names, Expr: value}, rest, nil
		}
	}

	return parseInfix(ts, 0)
}

// infixLevels orders binary operators loosest-first.
var infixLevels = [][]string{
	{"||"},
	{"&&"},
	{"==", "!=", "<", "<=", ">", ">=", "between", "betwixt", "contains", "like"},
	{".."},
	{"|"},
	{"^"},
	{"&"},
	{"<<", ">>"},
	{"+", "-", "++"},
	{"*", "/", "%"},
	{"**"},
}

func parseInfix(ts TokenSlice, level int) (Expression, TokenSlice, error) {
	if level >= len(infixLevels) {
		return parseUnary(ts)
	}
	left, rest, err := parseInfix(ts, level+1)
	if err != nil {
		return nil, ts, err
	}
	ts = rest
	for {
		tok, ok := ts.Get()
		if !ok || !tokenInLevel(tok, infixLevels[level]) {
			return left, ts, nil
		}
		op := tok.Text
		next := ts.Skip()
		if op == "between" || op == "betwixt" {
			low, afterLow, err := parseInfix(next, level+1)
			if err != nil {
				return nil, ts, err
			}
			afterAnd, err := afterLow.Expect("and")
			if err != nil {
				return nil, ts, err
			}
			high, afterHigh, err := parseInfix(afterAnd, level+1)
			if err != nil {
				return nil, ts, err
			}
			if op == "between" {
				left = BetweenOp{A: left, Low: low, High: high}
			} else {
				left = BetwixtOp{A: left, Low: low, High: high}
			}
			ts = afterHigh
			continue
		}
		right, afterRight, err := parseInfix(next, level+1)
		if err != nil {
			return nil, ts, err
		}
		left = buildBinary(op, left, right)
		ts = afterRight
	}
}

func tokenInLevel(tok Token, ops []string) bool {
	for _, op := range ops {
		if tok.Is(op) {
			if tok.IsAtom() != isWordOperator(op) {
				return false
			}
			return true
		}
	}
	return false
}

func isWordOperator(op string) bool {
	return op == "between" || op == "betwixt" || op == "contains" || op == "like"
}

func buildBinary(op string, a, b Expression) Expression {
	switch op {
	case "||":
		return Or{A: a, B: b}
	case "&&":
		return And{A: a, B: b}
	case "==":
		return Equal{A: a, B: b}
	case "!=":
		return NotEqual{A: a, B: b}
	case "<":
		return LessThan{A: a, B: b}
	case "<=":
		return LessOrEqual{A: a, B: b}
	case ">":
		return GreaterThan{A: a, B: b}
	case ">=":
		return GreaterOrEqual{A: a, B: b}
	case "contains":
		return ContainsOp{A: a, B: b}
	case "like":
		return LikeOp{A: a, B: b}
	case "..":
		return RangeOp{A: a, B: b}
	case "|":
		return BitwiseOr{A: a, B: b}
	case "^":
		return BitwiseXor{A: a, B: b}
	case "&":
		return BitwiseAnd{A: a, B: b}
	case "<<":
		return ShiftLeft{A: a, B: b}
	case ">>":
		return ShiftRight{A: a, B: b}
	case "+":
		return Plus{A: a, B: b}
	case "-":
		return Minus{A: a, B: b}
	case "++":
		return PlusPlus{A: a, B: b}
	case "*":
		return Multiply{A: a, B: b}
	case "/":
		return Divide{A: a, B: b}
	case "%":
		return Modulo{A: a, B: b}
	case "**":
		return PowOp{A: a, B: b}
	}
	return Literal{Value: core.Erred(core.IllegalOperatorError(op))}
}

func parseUnary(ts TokenSlice) (Expression, TokenSlice, error) {
	tok, ok := ts.Get()
	if !ok {
		return nil, ts, core.SyntaxError("unexpected end of input")
	}
	switch {
	case tok.Is("!") && tok.IsOperator():
		inner, rest, err := parseUnary(ts.Skip())
		if err != nil {
			return nil, ts, err
		}
		return Not{A: inner}, rest, nil
	case tok.Is("-") && tok.IsOperator():
		inner, rest, err := parseUnary(ts.Skip())
		if err != nil {
			return nil, ts, err
		}
		if lit, ok := inner.(Literal); ok {
			if n, ok := lit.Value.(core.NumberValue); ok {
				return Literal{Value: core.Negate(n)}, rest, nil
			}
		}
		return Neg{A: inner}, rest, nil
	case tok.Is("¡"):
		// prefix factorial, after the original's ¡6 form
		inner, rest, err := parseUnary(ts.Skip())
		if err != nil {
			return nil, ts, err
		}
		return FactorialOp{A: inner}, rest, nil
	}
	primary, rest, err := parsePrimary(ts)
	if err != nil {
		return nil, ts, err
	}
	return parsePostfix(primary, rest)
}

// parsePostfix chains extraction, call, index, and factorial operators.
func parsePostfix(expr Expression, ts TokenSlice) (Expression, TokenSlice, error) {
	for {
		tok, ok := ts.Get()
		if !ok {
			return expr, ts, nil
		}
		switch {
		case tok.Is("::") && tok.IsOperator():
			name, next, ok := ts.Skip().Next()
			if !ok || !name.IsAtom() {
				return nil, ts, core.SyntaxError("expected a name after ::")
			}
			expr = Extraction{A: expr, B: Variable{Name: name.Text}}
			ts = next
		case tok.Is(":::") && tok.IsOperator():
			name, next, ok := ts.Skip().Next()
			if !ok || !name.IsAtom() {
				return nil, ts, core.SyntaxError("expected a name after :::")
			}
			expr = ExtractPostfix{A: expr, B: Variable{Name: name.Text}}
			ts = next
		case tok.Is("(") && tok.IsOperator() && ts.IsPreviousAdjacent():
			args, next, err := parseArguments(ts)
			if err != nil {
				return nil, ts, err
			}
			expr = applyCall(expr, args)
			ts = next
		case tok.Is("[") && tok.IsOperator() && ts.IsPreviousAdjacent() && ts.IsSameLineAsPrevious():
			index, afterIndex, err := parseExpression(ts.Skip())
			if err != nil {
				return nil, ts, err
			}
			closed, err := afterIndex.Expect("]")
			if err != nil {
				return nil, ts, err
			}
			expr = ElementAt{A: expr, Index: index}
			ts = closed
		case tok.Is("¡") && tok.IsOperator():
			expr = FactorialOp{A: expr}
			ts = ts.Skip()
		default:
			return expr, ts, nil
		}
	}
}

// applyCall shapes a call on a head expression, folding the ns(...) form
// into its dedicated node.
func applyCall(fx Expression, args []Expression) Expression {
	if v, ok := fx.(Variable); ok && v.Name == "ns" && len(args) == 1 {
		return Ns{Expr: args[0]}
	}
	return FunctionCall{Fx: fx, Args: args}
}

// parseArguments parses a parenthesized, comma-separated argument list.
// Arguments may be named ("name: expr") or defaulted ("name := expr").
func parseArguments(ts TokenSlice) ([]Expression, TokenSlice, error) {
	ts, err := ts.Expect("(")
	if err != nil {
		return nil, ts, err
	}
	var args []Expression
	for {
		if ts.Is(")") {
			return args, ts.Skip(), nil
		}
		if !ts.HasMore() {
			return nil, ts, core.SyntaxError("unterminated argument list")
		}
		arg, rest, err := parseArgument(ts)
		if err != nil {
			return nil, ts, err
		}
		args = append(args, arg)
		ts = rest
		if ts.Is(",") {
			ts = ts.Skip()
		}
	}
}

func parseArgument(ts TokenSlice) (Expression, TokenSlice, error) {
	if tok, ok := ts.Get(); ok && tok.IsAtom() {
		after := ts.Copy(ts.Position() + 1)
		switch {
		case after.Is(":"):
			value, rest, err := parseExpression(after.Skip())
			if err != nil {
				return nil, ts, err
			}
			return AsValue{Name: tok.Text, Expr: value}, rest, nil
		case after.Is(":="):
			value, rest, err := parseExpression(after.Skip())
			if err != nil {
				return nil, ts, err
			}
			return SetVariable{Name: tok.Text, Expr: value}, rest, nil
		}
	}
	return parseExpression(ts)
}

func parsePrimary(ts TokenSlice) (Expression, TokenSlice, error) {
	tok, next, ok := ts.Next()
	if !ok {
		return nil, ts, core.SyntaxError("unexpected end of input")
	}
	switch {
	case tok.IsNumeric():
		value, err := parseNumberLiteral(tok.Text)
		if err != nil {
			return nil, ts, err
		}
		return Literal{Value: value}, next, nil
	case tok.IsQuoted():
		return Literal{Value: core.Str(tok.Text)}, next, nil
	case tok.Kind == TokenBackticks:
		return Variable{Name: tok.Text}, next, nil
	case tok.IsAtom():
		switch tok.Text {
		case "true":
			return Literal{Value: core.Bool(true)}, next, nil
		case "false":
			return Literal{Value: core.Bool(false)}, next, nil
		case "null":
			return Literal{Value: core.Null}, next, nil
		case "undefined":
			return Literal{Value: core.Undefined}, next, nil
		case "ack":
			return Literal{Value: core.AckValue()}, next, nil
		case "NaN":
			return Literal{Value: core.Num(core.NaN())}, next, nil
		}
		return Variable{Name: tok.Text}, next, nil
	case tok.Is("("):
		return parseTupleOrGroup(ts)
	case tok.Is("["):
		return parseArrayLiteral(ts)
	case tok.Is("{"):
		return parseBraced(ts)
	}
	return nil, ts, core.Erred(core.IllegalOperatorError(tok.Text)).Err
}

// parseTupleOrGroup parses "(a)", "(a, b, c)", or "()".
func parseTupleOrGroup(ts TokenSlice) (Expression, TokenSlice, error) {
	ts, err := ts.Expect("(")
	if err != nil {
		return nil, ts, err
	}
	var items []Expression
	for {
		if ts.Is(")") {
			break
		}
		if !ts.HasMore() {
			return nil, ts, core.SyntaxError("unterminated parenthesis")
		}
		item, rest, err := parseArgument(ts)
		if err != nil {
			return nil, ts, err
		}
		items = append(items, item)
		ts = rest
		if ts.Is(",") {
			ts = ts.Skip()
		}
	}
	ts = ts.Skip()
	if len(items) == 1 {
		if _, named := items[0].(AsValue); !named {
			return items[0], ts, nil
		}
	}
	return TupleExpression{Items: items}, ts, nil
}

func parseArrayLiteral(ts TokenSlice) (Expression, TokenSlice, error) {
	ts, err := ts.Expect("[")
	if err != nil {
		return nil, ts, err
	}
	var items []Expression
	for {
		if ts.Is("]") {
			return ArrayExpression{Items: items}, ts.Skip(), nil
		}
		if !ts.HasMore() {
			return nil, ts, core.SyntaxError("unterminated array literal")
		}
		item, rest, err := parseExpression(ts)
		if err != nil {
			return nil, ts, err
		}
		items = append(items, item)
		ts = rest
		if ts.Is(",") {
			ts = ts.Skip()
		}
	}
}

// parseBraced disambiguates a JSON literal from a code block: a leading
// name followed by ":" opens a JSON object.
func parseBraced(ts TokenSlice) (Expression, TokenSlice, error) {
	inner := ts.Skip()
	if first, ok := inner.Get(); ok {
		if (first.IsAtom() || first.IsQuoted()) && inner.Copy(inner.Position()+1).Is(":") {
			return parseJSONLiteral(ts)
		}
		if first.Is("}") {
			return JSONExpression{}, inner.Skip(), nil
		}
	}
	return parseCodeBlock(ts)
}

func parseJSONLiteral(ts TokenSlice) (Expression, TokenSlice, error) {
	ts, err := ts.Expect("{")
	if err != nil {
		return nil, ts, err
	}
	var fields []JSONField
	for {
		if ts.Is("}") {
			return JSONExpression{Fields: fields}, ts.Skip(), nil
		}
		name, afterName, ok := ts.Next()
		if !ok || !(name.IsAtom() || name.IsQuoted()) {
			return nil, ts, core.SyntaxError("expected a field name")
		}
		afterColon, err := afterName.Expect(":")
		if err != nil {
			return nil, ts, err
		}
		value, rest, err := parseExpression(afterColon)
		if err != nil {
			return nil, ts, err
		}
		fields = append(fields, JSONField{Name: name.Text, Value: value})
		ts = rest
		if ts.Is(",") {
			ts = ts.Skip()
		}
	}
}

func parseCodeBlock(ts TokenSlice) (Expression, TokenSlice, error) {
	ts, err := ts.Expect("{")
	if err != nil {
		return nil, ts, err
	}
	var exprs []Expression
	for {
		if ts.Is("}") {
			return CodeBlock{Exprs: exprs}, ts.Skip(), nil
		}
		if !ts.HasMore() {
			return nil, ts, core.SyntaxError("unterminated code block")
		}
		if ts.Is(";") {
			ts = ts.Skip()
			continue
		}
		expr, rest, err := parseStatement(ts)
		if err != nil {
			return nil, ts, err
		}
		exprs = append(exprs, expr)
		ts = rest
	}
}

// tryParseNameTuple matches "(a, b, c)" made only of names, for the
// destructuring assignment form.
func tryParseNameTuple(ts TokenSlice) ([]string, TokenSlice, bool) {
	if !ts.Is("(") {
		return nil, ts, false
	}
	cur := ts.Skip()
	var names []string
	for {
		tok, ok := cur.Get()
		if !ok {
			return nil, ts, false
		}
		if tok.Is(")") {
			if len(names) < 2 {
				return nil, ts, false
			}
			return names, cur.Skip(), true
		}
		if !tok.IsAtom() {
			return nil, ts, false
		}
		names = append(names, tok.Text)
		cur = cur.Skip()
		if cur.Is(",") {
			cur = cur.Skip()
		}
	}
}

// parseNumberLiteral maps the token text to a number value: binary and hex
// prefixes and underscore separators are accepted; a fractional part
// yields f64, anything else i64.
func parseNumberLiteral(text string) (core.Value, error) {
	clean := strings.ReplaceAll(text, "_", "")
	switch {
	case strings.HasPrefix(clean, "0b"):
		n, err := strconv.ParseInt(clean[2:], 2, 64)
		if err != nil {
			return nil, core.SyntaxError(text)
		}
		return core.Num(core.I64(n)), nil
	case strings.HasPrefix(clean, "0x"):
		n, err := strconv.ParseInt(clean[2:], 16, 64)
		if err != nil {
			return nil, core.SyntaxError(text)
		}
		return core.Num(core.I64(n)), nil
	case strings.Contains(clean, "."):
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return nil, core.SyntaxError(text)
		}
		return core.Num(core.F64(f)), nil
	default:
		n, err := strconv.ParseInt(clean, 10, 64)
		if err != nil {
			return nil, core.SyntaxError(text)
		}
		return core.Num(core.I64(n)), nil
	}
}
