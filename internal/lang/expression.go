package lang

import (
	"fmt"
	"strings"

	"oxide/internal/core"
)

// Expression is one node of the typed expression tree. Every node renders
// back to source through ToCode; parse followed by ToCode is the identity
// on canonical forms.
type Expression interface {
	ToCode() string
}

// value & reference nodes

// Literal wraps a constant value.
type Literal struct {
	Value core.Value
}

func (e Literal) ToCode() string { return e.Value.ToCode() }

// Variable references a binding or a column of the bound row.
type Variable struct {
	Name string
}

func (e Variable) ToCode() string { return e.Name }

// ArrayExpression is an array literal.
type ArrayExpression struct {
	Items []Expression
}

func (e ArrayExpression) ToCode() string {
	return "[" + renderList(e.Items) + "]"
}

// TupleExpression is a parenthesized product literal.
type TupleExpression struct {
	Items []Expression
}

func (e TupleExpression) ToCode() string {
	return "(" + renderList(e.Items) + ")"
}

// JSONField is one name/value pair of a JSONExpression.
type JSONField struct {
	Name  string
	Value Expression
}

// JSONExpression is a {name: value, ...} literal.
type JSONExpression struct {
	Fields []JSONField
}

func (e JSONExpression) ToCode() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Value.ToCode())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// AsValue names a sub-expression, as in "last_sale: 0.1421".
type AsValue struct {
	Name string
	Expr Expression
}

func (e AsValue) ToCode() string { return fmt.Sprintf("%s: %s", e.Name, e.Expr.ToCode()) }

// Ns resolves a namespace path to a table collection.
type Ns struct {
	Expr Expression
}

func (e Ns) ToCode() string { return fmt.Sprintf("ns(%s)", e.Expr.ToCode()) }

// arithmetic nodes

type Plus struct{ A, B Expression }
type Minus struct{ A, B Expression }
type Multiply struct{ A, B Expression }
type Divide struct{ A, B Expression }
type Modulo struct{ A, B Expression }
type PowOp struct{ A, B Expression }
type PlusPlus struct{ A, B Expression }
type RangeOp struct{ A, B Expression }
type Neg struct{ A Expression }
type FactorialOp struct{ A Expression }

func (e Plus) ToCode() string        { return binaryCode(e.A, "+", e.B) }
func (e Minus) ToCode() string       { return binaryCode(e.A, "-", e.B) }
func (e Multiply) ToCode() string    { return binaryCode(e.A, "*", e.B) }
func (e Divide) ToCode() string      { return binaryCode(e.A, "/", e.B) }
func (e Modulo) ToCode() string      { return binaryCode(e.A, "%", e.B) }
func (e PowOp) ToCode() string       { return binaryCode(e.A, "**", e.B) }
func (e PlusPlus) ToCode() string    { return binaryCode(e.A, "++", e.B) }
func (e RangeOp) ToCode() string     { return e.A.ToCode() + ".." + e.B.ToCode() }
func (e Neg) ToCode() string         { return fmt.Sprintf("-(%s)", e.A.ToCode()) }
func (e FactorialOp) ToCode() string { return e.A.ToCode() + "¡" }

// bitwise nodes

type BitwiseAnd struct{ A, B Expression }
type BitwiseOr struct{ A, B Expression }
type BitwiseXor struct{ A, B Expression }
type ShiftLeft struct{ A, B Expression }
type ShiftRight struct{ A, B Expression }

func (e BitwiseAnd) ToCode() string { return binaryCode(e.A, "&", e.B) }
func (e BitwiseOr) ToCode() string  { return binaryCode(e.A, "|", e.B) }
func (e BitwiseXor) ToCode() string { return binaryCode(e.A, "^", e.B) }
func (e ShiftLeft) ToCode() string  { return binaryCode(e.A, "<<", e.B) }
func (e ShiftRight) ToCode() string { return binaryCode(e.A, ">>", e.B) }

// condition nodes

type And struct{ A, B Expression }
type Or struct{ A, B Expression }
type Not struct{ A Expression }
type Equal struct{ A, B Expression }
type NotEqual struct{ A, B Expression }
type GreaterThan struct{ A, B Expression }
type GreaterOrEqual struct{ A, B Expression }
type LessThan struct{ A, B Expression }
type LessOrEqual struct{ A, B Expression }
type BetweenOp struct{ A, Low, High Expression }
type BetwixtOp struct{ A, Low, High Expression }
type ContainsOp struct{ A, B Expression }
type LikeOp struct{ A, B Expression }

func (e And) ToCode() string            { return binaryCode(e.A, "&&", e.B) }
func (e Or) ToCode() string             { return binaryCode(e.A, "||", e.B) }
func (e Not) ToCode() string            { return "!" + e.A.ToCode() }
func (e Equal) ToCode() string          { return binaryCode(e.A, "==", e.B) }
func (e NotEqual) ToCode() string       { return binaryCode(e.A, "!=", e.B) }
func (e GreaterThan) ToCode() string    { return binaryCode(e.A, ">", e.B) }
func (e GreaterOrEqual) ToCode() string { return binaryCode(e.A, ">=", e.B) }
func (e LessThan) ToCode() string       { return binaryCode(e.A, "<", e.B) }
func (e LessOrEqual) ToCode() string    { return binaryCode(e.A, "<=", e.B) }

func (e BetweenOp) ToCode() string {
	return fmt.Sprintf("%s between %s and %s", e.A.ToCode(), e.Low.ToCode(), e.High.ToCode())
}

func (e BetwixtOp) ToCode() string {
	return fmt.Sprintf("%s betwixt %s and %s", e.A.ToCode(), e.Low.ToCode(), e.High.ToCode())
}

func (e ContainsOp) ToCode() string { return binaryCode(e.A, "contains", e.B) }
func (e LikeOp) ToCode() string     { return binaryCode(e.A, "like", e.B) }

// IsConditional reports whether e evaluates to a Boolean by construction.
func IsConditional(e Expression) bool {
	switch e.(type) {
	case And, Or, Not, Equal, NotEqual, GreaterThan, GreaterOrEqual,
		LessThan, LessOrEqual, BetweenOp, BetwixtOp, ContainsOp, LikeOp:
		return true
	}
	return false
}

// control flow nodes

// CodeBlock is a sequence evaluated left to right, yielding the last value.
type CodeBlock struct {
	Exprs []Expression
}

func (e CodeBlock) ToCode() string {
	parts := make([]string, len(e.Exprs))
	for i, expr := range e.Exprs {
		parts[i] = expr.ToCode()
	}
	return "{\n" + strings.Join(parts, "\n") + "\n}"
}

// If is a two- or three-armed conditional.
type If struct {
	Condition Expression
	A         Expression
	B         Expression
}

func (e If) ToCode() string {
	s := fmt.Sprintf("if %s %s", e.Condition.ToCode(), e.A.ToCode())
	if e.B != nil {
		s += " else " + e.B.ToCode()
	}
	return s
}

// While loops as long as the condition holds.
type While struct {
	Condition Expression
	Code      Expression
}

func (e While) ToCode() string {
	return fmt.Sprintf("while %s do %s", e.Condition.ToCode(), e.Code.ToCode())
}

// ForEach iterates a variable over the items of a source expression.
type ForEach struct {
	Name   string
	Source Expression
	Code   Expression
}

func (e ForEach) ToCode() string {
	return fmt.Sprintf("foreach %s in %s %s", e.Name, e.Source.ToCode(), e.Code.ToCode())
}

// Return short-circuits the enclosing block.
type Return struct {
	Exprs []Expression
}

func (e Return) ToCode() string {
	if len(e.Exprs) == 0 {
		return "return"
	}
	return "return " + renderList(e.Exprs)
}

// declaration & scope nodes

// SetVariable binds a name, yielding Ack.
type SetVariable struct {
	Name string
	Expr Expression
}

func (e SetVariable) ToCode() string { return fmt.Sprintf("%s := %s", e.Name, e.Expr.ToCode()) }

// SetVariables destructures a tuple-valued expression into several names.
type SetVariables struct {
	Names []string
	Expr  Expression
}

func (e SetVariables) ToCode() string {
	return fmt.Sprintf("(%s) := %s", strings.Join(e.Names, ", "), e.Expr.ToCode())
}

// Parameters is a bare parameter list in declaration position.
type Parameters struct {
	Params []core.Parameter
}

func (e Parameters) ToCode() string { return "(" + core.RenderParameters(e.Params) + ")" }

// FnExpression declares a function; an empty Name is anonymous.
type FnExpression struct {
	Name    string
	Params  []core.Parameter
	Body    Expression
	Returns core.DataType
}

func (e FnExpression) ToCode() string {
	returns := ""
	if e.Returns != nil {
		if s := e.Returns.ToCode(); s != "" {
			returns = ": " + s
		}
	}
	if e.Name == "" {
		return fmt.Sprintf("fn(%s)%s => %s", core.RenderParameters(e.Params), returns, e.Body.ToCode())
	}
	return fmt.Sprintf("fn %s(%s)%s => %s", e.Name, core.RenderParameters(e.Params), returns, e.Body.ToCode())
}

// Module groups declarations under a name.
type Module struct {
	Name string
	Body Expression
}

func (e Module) ToCode() string { return fmt.Sprintf("mod %s %s", e.Name, e.Body.ToCode()) }

// Import brings a module's names into scope.
type Import struct {
	Name string
}

func (e Import) ToCode() string { return "import " + e.Name }

// Include splices another script by path.
type Include struct {
	Path Expression
}

func (e Include) ToCode() string { return "include " + e.Path.ToCode() }

// database operation nodes

// From opens a queryable over a table expression.
type From struct {
	Source Expression
}

func (e From) ToCode() string { return "from " + e.Source.ToCode() }

// Where filters a queryable.
type Where struct {
	Source    Expression
	Condition Expression
}

func (e Where) ToCode() string {
	return fmt.Sprintf("%s where %s", e.Source.ToCode(), e.Condition.ToCode())
}

// LimitOp caps a queryable.
type LimitOp struct {
	Source Expression
	Limit  Expression
}

func (e LimitOp) ToCode() string {
	return fmt.Sprintf("%s limit %s", e.Source.ToCode(), e.Limit.ToCode())
}

// Select is the straight-line query pipeline.
type Select struct {
	Fields     []Expression
	SourceFrom Expression
	Condition  Expression
	GroupBy    []Expression
	Having     Expression
	OrderBy    []Expression
	Limit      Expression
}

func (e Select) ToCode() string {
	var sb strings.Builder
	sb.WriteString("select ")
	sb.WriteString(renderList(e.Fields))
	if e.SourceFrom != nil {
		sb.WriteString(" from " + e.SourceFrom.ToCode())
	}
	if e.Condition != nil {
		sb.WriteString(" where " + e.Condition.ToCode())
	}
	if len(e.GroupBy) > 0 {
		sb.WriteString(" group by " + renderList(e.GroupBy))
	}
	if e.Having != nil {
		sb.WriteString(" having " + e.Having.ToCode())
	}
	if len(e.OrderBy) > 0 {
		sb.WriteString(" order by " + renderList(e.OrderBy))
	}
	if e.Limit != nil {
		sb.WriteString(" limit " + e.Limit.ToCode())
	}
	return sb.String()
}

// CreateTable declares a table with a parameter list, optionally loading
// rows from a source.
type CreateTable struct {
	Table  Expression
	Params []core.Parameter
	From   Expression
}

func (e CreateTable) ToCode() string {
	s := fmt.Sprintf("create table %s (%s)", e.Table.ToCode(), core.RenderParameters(e.Params))
	if e.From != nil {
		s += " from " + e.From.ToCode()
	}
	return s
}

// CreateIndex declares an index over columns of a table.
type CreateIndex struct {
	Index   Expression
	Columns []Expression
}

func (e CreateIndex) ToCode() string {
	return fmt.Sprintf("create index %s [%s]", e.Index.ToCode(), renderList(e.Columns))
}

// Delete tombstones matching rows.
type Delete struct {
	Table     Expression
	Condition Expression
	Limit     Expression
}

func (e Delete) ToCode() string {
	return mutationCode("delete from", e.Table, nil, e.Condition, e.Limit)
}

// Undelete restores matching tombstoned rows.
type Undelete struct {
	Table     Expression
	Condition Expression
	Limit     Expression
}

func (e Undelete) ToCode() string {
	return mutationCode("undelete from", e.Table, nil, e.Condition, e.Limit)
}

// Drop removes a table and its files.
type Drop struct {
	Table Expression
}

func (e Drop) ToCode() string { return "drop table " + e.Table.ToCode() }

// Append adds the source's rows at the table's high-water mark.
type Append struct {
	Table  Expression
	Source Expression
}

func (e Append) ToCode() string {
	return fmt.Sprintf("append %s from %s", e.Table.ToCode(), e.Source.ToCode())
}

// IntoNs pipes a source into a table: "rows ~> stocks".
type IntoNs struct {
	Source Expression
	Target Expression
}

func (e IntoNs) ToCode() string {
	return fmt.Sprintf("%s ~> %s", e.Source.ToCode(), e.Target.ToCode())
}

// Overwrite replaces matching rows with the source row.
type Overwrite struct {
	Table     Expression
	Source    Expression
	Condition Expression
	Limit     Expression
}

func (e Overwrite) ToCode() string {
	return mutationCode("overwrite", e.Table, e.Source, e.Condition, e.Limit)
}

// Update merges the source fields into matching rows.
type Update struct {
	Table     Expression
	Source    Expression
	Condition Expression
	Limit     Expression
}

func (e Update) ToCode() string {
	return mutationCode("update", e.Table, e.Source, e.Condition, e.Limit)
}

// Truncate drops the table's rows, optionally down to a new length.
type Truncate struct {
	Table   Expression
	NewSize Expression
}

func (e Truncate) ToCode() string {
	s := "truncate " + e.Table.ToCode()
	if e.NewSize != nil {
		s += " limit " + e.NewSize.ToCode()
	}
	return s
}

// Compact rebuilds a table's files from its live rows.
type Compact struct {
	Table Expression
}

func (e Compact) ToCode() string { return "compact " + e.Table.ToCode() }

// Describe reports a table's column structure as a table.
type Describe struct {
	Table Expression
}

func (e Describe) ToCode() string { return "describe " + e.Table.ToCode() }

// Via marks a row-source literal in overwrite/update statements.
type Via struct {
	Expr Expression
}

func (e Via) ToCode() string { return "via " + e.Expr.ToCode() }

// directive nodes (testing guards)

// MustAck asserts its expression evaluates to Ack: "[+] expr".
type MustAck struct {
	Expr Expression
}

func (e MustAck) ToCode() string { return "[+] " + e.Expr.ToCode() }

// MustDie asserts its expression fails: "[!] expr".
type MustDie struct {
	Expr Expression
}

func (e MustDie) ToCode() string { return "[!] " + e.Expr.ToCode() }

// MustIgnoreAck swallows a failure into Ack: "[~] expr".
type MustIgnoreAck struct {
	Expr Expression
}

func (e MustIgnoreAck) ToCode() string { return "[~] " + e.Expr.ToCode() }

// MustNotAck asserts its expression does not evaluate to Ack: "[-] expr".
type MustNotAck struct {
	Expr Expression
}

func (e MustNotAck) ToCode() string { return "[-] " + e.Expr.ToCode() }

// extension nodes

// Extraction resolves a qualified name: "str::left".
type Extraction struct {
	A, B Expression
}

func (e Extraction) ToCode() string { return e.A.ToCode() + "::" + e.B.ToCode() }

// ExtractPostfix is the postfix extraction variant: "a:::b".
type ExtractPostfix struct {
	A, B Expression
}

func (e ExtractPostfix) ToCode() string { return e.A.ToCode() + ":::" + e.B.ToCode() }

// ElementAt indexes a container: "a[b]".
type ElementAt struct {
	A     Expression
	Index Expression
}

func (e ElementAt) ToCode() string {
	return fmt.Sprintf("%s[%s]", e.A.ToCode(), e.Index.ToCode())
}

// FunctionCall applies arguments to a function-valued expression.
type FunctionCall struct {
	Fx   Expression
	Args []Expression
}

func (e FunctionCall) ToCode() string {
	return fmt.Sprintf("%s(%s)", e.Fx.ToCode(), renderList(e.Args))
}

// HTTP performs a verb against a URL, optionally posting a body.
type HTTP struct {
	Method string
	URL    Expression
	Body   Expression
}

func (e HTTP) ToCode() string {
	s := fmt.Sprintf("%s %s", e.Method, e.URL.ToCode())
	if e.Body != nil {
		s += " FROM " + e.Body.ToCode()
	}
	return s
}

// Feature is a named group of scenarios producing a result table.
type Feature struct {
	Title     Expression
	Scenarios []Expression
}

func (e Feature) ToCode() string {
	parts := make([]string, len(e.Scenarios))
	for i, s := range e.Scenarios {
		parts[i] = s.ToCode()
	}
	return fmt.Sprintf("feature %s {\n%s\n}", e.Title.ToCode(), strings.Join(parts, "\n"))
}

// Scenario is one verified step of a feature.
type Scenario struct {
	Title Expression
	Code  Expression
}

func (e Scenario) ToCode() string {
	return fmt.Sprintf("scenario %s %s", e.Title.ToCode(), e.Code.ToCode())
}

func binaryCode(a Expression, op string, b Expression) string {
	return fmt.Sprintf("%s %s %s", a.ToCode(), op, b.ToCode())
}

func renderList(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.ToCode()
	}
	return strings.Join(parts, ", ")
}

func mutationCode(verb string, table, source, condition, limit Expression) string {
	var sb strings.Builder
	sb.WriteString(verb)
	sb.WriteString(" ")
	sb.WriteString(table.ToCode())
	if source != nil {
		sb.WriteString(" " + source.ToCode())
	}
	if condition != nil {
		sb.WriteString(" where " + condition.ToCode())
	}
	if limit != nil {
		sb.WriteString(" limit " + limit.ToCode())
	}
	return sb.String()
}
