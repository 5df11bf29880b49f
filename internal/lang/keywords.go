package lang

import (
	"oxide/internal/core"
)

// parseKeyword dispatches the statement keyword under the cursor; handled
// reports whether the name was a keyword in this position.
func parseKeyword(name string, ts TokenSlice) (Expression, TokenSlice, bool, error) {
	var expr Expression
	var rest TokenSlice
	var err error
	switch name {
	case "select":
		expr, rest, err = parseSelect(ts.Skip())
	case "from":
		expr, rest, err = parseFrom(ts.Skip())
	case "append":
		expr, rest, err = parseAppend(ts.Skip())
	case "delete":
		expr, rest, err = parseDelete(ts.Skip())
	case "undelete":
		expr, rest, err = parseUndelete(ts.Skip())
	case "overwrite":
		expr, rest, err = parseOverwrite(ts.Skip())
	case "update":
		expr, rest, err = parseUpdate(ts.Skip())
	case "create", "declare":
		expr, rest, err = parseCreate(ts.Skip())
	case "drop":
		expr, rest, err = parseDrop(ts.Skip())
	case "truncate":
		expr, rest, err = parseTruncate(ts.Skip())
	case "compact":
		expr, rest, err = parseTableVerb(ts.Skip(), func(t Expression) Expression { return Compact{Table: t} })
	case "describe":
		expr, rest, err = parseTableVerb(ts.Skip(), func(t Expression) Expression { return Describe{Table: t} })
	case "if":
		expr, rest, err = parseIf(ts.Skip())
	case "while":
		expr, rest, err = parseWhile(ts.Skip())
	case "foreach":
		expr, rest, err = parseForEach(ts.Skip())
	case "return":
		expr, rest, err = parseReturn(ts.Skip())
	case "fn":
		expr, rest, err = parseFn(ts.Skip())
	case "mod":
		expr, rest, err = parseModule(ts.Skip())
	case "import":
		expr, rest, err = parseImport(ts.Skip())
	case "include":
		expr, rest, err = parseInclude(ts.Skip())
	case "feature":
		expr, rest, err = parseFeature(ts.Skip())
	case "scenario":
		expr, rest, err = parseScenario(ts.Skip())
	case "via":
		var inner Expression
		inner, rest, err = parseUnary(ts.Skip())
		expr = Via{Expr: inner}
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD":
		expr, rest, err = parseHTTP(name, ts.Skip())
	default:
		return nil, ts, false, nil
	}
	return expr, rest, true, err
}

func parseSelect(ts TokenSlice) (Expression, TokenSlice, error) {
	fields, ts, err := parseExpressionList(ts)
	if err != nil {
		return nil, ts, err
	}
	sel := Select{Fields: fields}
	for {
		switch {
		case ts.Is("from"):
			source, rest, err := parseUnary(ts.Skip())
			if err != nil {
				return nil, ts, err
			}
			sel.SourceFrom = source
			ts = rest
		case ts.Is("where"):
			cond, rest, err := parseInfix(ts.Skip(), 0)
			if err != nil {
				return nil, ts, err
			}
			sel.Condition = cond
			ts = rest
		case ts.Is("group"):
			afterBy, err := ts.Skip().Expect("by")
			if err != nil {
				return nil, ts, err
			}
			items, rest, err := parseExpressionList(afterBy)
			if err != nil {
				return nil, ts, err
			}
			sel.GroupBy = items
			ts = rest
		case ts.Is("having"):
			cond, rest, err := parseInfix(ts.Skip(), 0)
			if err != nil {
				return nil, ts, err
			}
			sel.Having = cond
			ts = rest
		case ts.Is("order"):
			afterBy, err := ts.Skip().Expect("by")
			if err != nil {
				return nil, ts, err
			}
			items, rest, err := parseExpressionList(afterBy)
			if err != nil {
				return nil, ts, err
			}
			sel.OrderBy = items
			ts = rest
		case ts.Is("limit"):
			limit, rest, err := parseInfix(ts.Skip(), 0)
			if err != nil {
				return nil, ts, err
			}
			sel.Limit = limit
			ts = rest
		default:
			return sel, ts, nil
		}
	}
}

func parseFrom(ts TokenSlice) (Expression, TokenSlice, error) {
	source, rest, err := parseUnary(ts)
	if err != nil {
		return nil, ts, err
	}
	return From{Source: source}, rest, nil
}

func parseAppend(ts TokenSlice) (Expression, TokenSlice, error) {
	table, rest, err := parseUnary(ts)
	if err != nil {
		return nil, ts, err
	}
	rest, err = rest.Expect("from")
	if err != nil {
		return nil, ts, err
	}
	source, afterSource, err := parseExpression(rest)
	if err != nil {
		return nil, ts, err
	}
	return Append{Table: table, Source: source}, afterSource, nil
}

func parseDelete(ts TokenSlice) (Expression, TokenSlice, error) {
	table, cond, limit, rest, err := parseMutationTail(ts, true)
	if err != nil {
		return nil, ts, err
	}
	return Delete{Table: table, Condition: cond, Limit: limit}, rest, nil
}

func parseUndelete(ts TokenSlice) (Expression, TokenSlice, error) {
	table, cond, limit, rest, err := parseMutationTail(ts, true)
	if err != nil {
		return nil, ts, err
	}
	return Undelete{Table: table, Condition: cond, Limit: limit}, rest, nil
}

// parseMutationTail parses "[from] table [where cond] [limit n]".
func parseMutationTail(ts TokenSlice, expectFrom bool) (table, cond, limit Expression, rest TokenSlice, err error) {
	if expectFrom {
		if ts, err = ts.Expect("from"); err != nil {
			return nil, nil, nil, ts, err
		}
	}
	if table, ts, err = parseUnary(ts); err != nil {
		return nil, nil, nil, ts, err
	}
	cond, limit, ts, err = parseWhereLimit(ts)
	return table, cond, limit, ts, err
}

func parseWhereLimit(ts TokenSlice) (cond, limit Expression, rest TokenSlice, err error) {
	for {
		switch {
		case ts.Is("where"):
			if cond, ts, err = parseInfix(ts.Skip(), 0); err != nil {
				return nil, nil, ts, err
			}
		case ts.Is("limit"):
			if limit, ts, err = parseInfix(ts.Skip(), 0); err != nil {
				return nil, nil, ts, err
			}
		default:
			return cond, limit, ts, nil
		}
	}
}

func parseOverwrite(ts TokenSlice) (Expression, TokenSlice, error) {
	table, source, cond, limit, rest, err := parseSourcedMutation(ts)
	if err != nil {
		return nil, ts, err
	}
	return Overwrite{Table: table, Source: source, Condition: cond, Limit: limit}, rest, nil
}

func parseUpdate(ts TokenSlice) (Expression, TokenSlice, error) {
	table, source, cond, limit, rest, err := parseSourcedMutation(ts)
	if err != nil {
		return nil, ts, err
	}
	return Update{Table: table, Source: source, Condition: cond, Limit: limit}, rest, nil
}

func parseSourcedMutation(ts TokenSlice) (table, source, cond, limit Expression, rest TokenSlice, err error) {
	if table, ts, err = parseUnary(ts); err != nil {
		return nil, nil, nil, nil, ts, err
	}
	if ts.Is("via") {
		var inner Expression
		if inner, ts, err = parseUnary(ts.Skip()); err != nil {
			return nil, nil, nil, nil, ts, err
		}
		source = Via{Expr: inner}
	} else {
		if source, ts, err = parseUnary(ts); err != nil {
			return nil, nil, nil, nil, ts, err
		}
	}
	cond, limit, ts, err = parseWhereLimit(ts)
	return table, source, cond, limit, ts, err
}

func parseCreate(ts TokenSlice) (Expression, TokenSlice, error) {
	switch {
	case ts.Is("table"):
		table, rest, err := parseUnary(ts.Skip())
		if err != nil {
			return nil, ts, err
		}
		params, afterParams, err := parseParameterList(rest)
		if err != nil {
			return nil, ts, err
		}
		created := CreateTable{Table: table, Params: params}
		ts = afterParams
		if ts.Is("from") {
			source, afterFrom, err := parseExpression(ts.Skip())
			if err != nil {
				return nil, ts, err
			}
			created.From = source
			ts = afterFrom
		}
		return created, ts, nil
	case ts.Is("index"):
		index, rest, err := parseUnary(ts.Skip())
		if err != nil {
			return nil, ts, err
		}
		var columns []Expression
		if rest.Is("[") {
			arr, afterCols, err := parseArrayLiteral(rest)
			if err != nil {
				return nil, ts, err
			}
			columns = arr.(ArrayExpression).Items
			rest = afterCols
		}
		return CreateIndex{Index: index, Columns: columns}, rest, nil
	}
	return nil, ts, core.SyntaxError("expected table or index after create")
}

func parseDrop(ts TokenSlice) (Expression, TokenSlice, error) {
	if ts.Is("table") {
		ts = ts.Skip()
	}
	table, rest, err := parseUnary(ts)
	if err != nil {
		return nil, ts, err
	}
	return Drop{Table: table}, rest, nil
}

func parseTruncate(ts TokenSlice) (Expression, TokenSlice, error) {
	if ts.Is("table") {
		ts = ts.Skip()
	}
	table, rest, err := parseUnary(ts)
	if err != nil {
		return nil, ts, err
	}
	truncate := Truncate{Table: table}
	if rest.Is("limit") {
		size, afterLimit, err := parseInfix(rest.Skip(), 0)
		if err != nil {
			return nil, ts, err
		}
		truncate.NewSize = size
		rest = afterLimit
	}
	return truncate, rest, nil
}

func parseTableVerb(ts TokenSlice, build func(Expression) Expression) (Expression, TokenSlice, error) {
	table, rest, err := parseUnary(ts)
	if err != nil {
		return nil, ts, err
	}
	return build(table), rest, nil
}

func parseIf(ts TokenSlice) (Expression, TokenSlice, error) {
	cond, rest, err := parseInfix(ts, 0)
	if err != nil {
		return nil, ts, err
	}
	a, afterA, err := parseExpression(rest)
	if err != nil {
		return nil, ts, err
	}
	out := If{Condition: cond, A: a}
	ts = afterA
	if ts.Is("else") {
		b, afterB, err := parseExpression(ts.Skip())
		if err != nil {
			return nil, ts, err
		}
		out.B = b
		ts = afterB
	}
	return out, ts, nil
}

func parseWhile(ts TokenSlice) (Expression, TokenSlice, error) {
	cond, rest, err := parseInfix(ts, 0)
	if err != nil {
		return nil, ts, err
	}
	if rest.Is("do") {
		rest = rest.Skip()
	}
	code, afterCode, err := parseExpression(rest)
	if err != nil {
		return nil, ts, err
	}
	return While{Condition: cond, Code: code}, afterCode, nil
}

func parseForEach(ts TokenSlice) (Expression, TokenSlice, error) {
	name, rest, ok := ts.Next()
	if !ok || !name.IsAtom() {
		return nil, ts, core.SyntaxError("expected a variable after foreach")
	}
	rest, err := rest.Expect("in")
	if err != nil {
		return nil, ts, err
	}
	source, afterSource, err := parseInfix(rest, 0)
	if err != nil {
		return nil, ts, err
	}
	code, afterCode, err := parseExpression(afterSource)
	if err != nil {
		return nil, ts, err
	}
	return ForEach{Name: name.Text, Source: source, Code: code}, afterCode, nil
}

func parseReturn(ts TokenSlice) (Expression, TokenSlice, error) {
	if !ts.HasMore() || ts.Is("}") || ts.Is(";") {
		return Return{}, ts, nil
	}
	exprs, rest, err := parseExpressionList(ts)
	if err != nil {
		return nil, ts, err
	}
	return Return{Exprs: exprs}, rest, nil
}

// parseFn parses both function declarations and the fn(...) type form; the
// latter has no body.
func parseFn(ts TokenSlice) (Expression, TokenSlice, error) {
	name := ""
	if tok, ok := ts.Get(); ok && tok.IsAtom() {
		name = tok.Text
		ts = ts.Skip()
	}
	params, rest, err := parseParameterList(ts)
	if err != nil {
		return nil, ts, err
	}
	fn := FnExpression{Name: name, Params: params}
	ts = rest
	if ts.Is(":") {
		dt, afterType, err := parseTypeExpression(ts.Skip())
		if err != nil {
			return nil, ts, err
		}
		fn.Returns = dt
		ts = afterType
	}
	if ts.Is("=>") {
		body, afterBody, err := parseExpression(ts.Skip())
		if err != nil {
			return nil, ts, err
		}
		fn.Body = body
		ts = afterBody
	} else if ts.Is("{") {
		body, afterBody, err := parseCodeBlock(ts)
		if err != nil {
			return nil, ts, err
		}
		fn.Body = body
		ts = afterBody
	}
	return fn, ts, nil
}

func parseModule(ts TokenSlice) (Expression, TokenSlice, error) {
	name, rest, ok := ts.Next()
	if !ok || !name.IsAtom() {
		return nil, ts, core.SyntaxError("expected a module name")
	}
	body, afterBody, err := parseCodeBlock(rest)
	if err != nil {
		return nil, ts, err
	}
	return Module{Name: name.Text, Body: body}, afterBody, nil
}

func parseImport(ts TokenSlice) (Expression, TokenSlice, error) {
	name, rest, ok := ts.Next()
	if !ok || !name.IsAtom() {
		return nil, ts, core.SyntaxError("expected a module name after import")
	}
	return Import{Name: name.Text}, rest, nil
}

func parseInclude(ts TokenSlice) (Expression, TokenSlice, error) {
	path, rest, err := parsePrimary(ts)
	if err != nil {
		return nil, ts, err
	}
	return Include{Path: path}, rest, nil
}

func parseFeature(ts TokenSlice) (Expression, TokenSlice, error) {
	title, rest, err := parsePrimary(ts)
	if err != nil {
		return nil, ts, err
	}
	rest, err = rest.Expect("{")
	if err != nil {
		return nil, ts, err
	}
	var scenarios []Expression
	for {
		if rest.Is("}") {
			return Feature{Title: title, Scenarios: scenarios}, rest.Skip(), nil
		}
		if !rest.HasMore() {
			return nil, ts, core.SyntaxError("unterminated feature block")
		}
		scenario, afterScenario, err := parseStatement(rest)
		if err != nil {
			return nil, ts, err
		}
		scenarios = append(scenarios, scenario)
		rest = afterScenario
	}
}

func parseScenario(ts TokenSlice) (Expression, TokenSlice, error) {
	title, rest, err := parsePrimary(ts)
	if err != nil {
		return nil, ts, err
	}
	code, afterCode, err := parseCodeBlock(rest)
	if err != nil {
		return nil, ts, err
	}
	return Scenario{Title: title, Code: code}, afterCode, nil
}

func parseHTTP(method string, ts TokenSlice) (Expression, TokenSlice, error) {
	url, rest, err := parsePrimary(ts)
	if err != nil {
		return nil, ts, err
	}
	http := HTTP{Method: method, URL: url}
	if rest.Is("FROM") {
		body, afterBody, err := parseExpression(rest.Skip())
		if err != nil {
			return nil, ts, err
		}
		http.Body = body
		rest = afterBody
	}
	return http, rest, nil
}

// parseExpressionList parses a comma-separated expression list.
func parseExpressionList(ts TokenSlice) ([]Expression, TokenSlice, error) {
	var items []Expression
	for {
		item, rest, err := parseInfix(ts, 0)
		if err != nil {
			return nil, ts, err
		}
		items = append(items, item)
		ts = rest
		if !ts.Is(",") {
			return items, ts, nil
		}
		ts = ts.Skip()
	}
}

// parseParameterList parses "(name[: Type][:= default], ...)".
func parseParameterList(ts TokenSlice) ([]core.Parameter, TokenSlice, error) {
	ts, err := ts.Expect("(")
	if err != nil {
		return nil, ts, err
	}
	var params []core.Parameter
	for {
		if ts.Is(")") {
			return params, ts.Skip(), nil
		}
		if !ts.HasMore() {
			return nil, ts, core.SyntaxError("unterminated parameter list")
		}
		name, rest, ok := ts.Next()
		if !ok || !name.IsAtom() {
			return nil, ts, core.SyntaxError("expected a parameter name")
		}
		param := core.BuildParameter(name.Text)
		ts = rest
		if ts.Is(":") {
			dt, afterType, err := parseTypeExpression(ts.Skip())
			if err != nil {
				return nil, ts, err
			}
			param.Type = dt
			ts = afterType
		}
		if ts.Is(":=") {
			value, afterDefault, err := parsePureDefault(ts.Skip())
			if err != nil {
				return nil, ts, err
			}
			param.Default = value
			ts = afterDefault
		}
		params = append(params, param)
		if ts.Is(",") {
			ts = ts.Skip()
		}
	}
}

// parseTypeExpression parses a type declaration in place and deciphers it.
func parseTypeExpression(ts TokenSlice) (core.DataType, TokenSlice, error) {
	expr, rest, err := parseUnary(ts)
	if err != nil {
		return nil, ts, err
	}
	dt, err := DecipherType(expr)
	if err != nil {
		return nil, ts, err
	}
	return dt, rest, nil
}

// parsePureDefault parses a default-value expression and folds it to a
// constant immediately.
func parsePureDefault(ts TokenSlice) (core.Value, TokenSlice, error) {
	expr, rest, err := parseInfix(ts, 0)
	if err != nil {
		return nil, ts, err
	}
	value, err := ToPure(expr)
	if err != nil {
		return nil, ts, err
	}
	return value, rest, nil
}
