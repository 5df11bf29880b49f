package core

import (
	"fmt"
	"strings"
)

// Parameter is a named, typed slot in a schema: a table column declaration,
// a struct member, a function argument, or an enum label.
type Parameter struct {
	Name    string
	Type    DataType
	Default Value
}

// NewParameter builds a parameter without a default value.
func NewParameter(name string, dt DataType) Parameter {
	return Parameter{Name: name, Type: dt}
}

// BuildParameter builds an untyped parameter (an enum label or an inferred
// function argument).
func BuildParameter(name string) Parameter {
	return Parameter{Name: name, Type: IndeterminateType{}}
}

// WithDefault builds a parameter carrying a default value.
func WithDefault(name string, dt DataType, def Value) Parameter {
	return Parameter{Name: name, Type: dt, Default: def}
}

// DefaultOrZero returns the declared default, falling back to the type's
// zero value.
func (p Parameter) DefaultOrZero() Value {
	if p.Default != nil {
		return p.Default
	}
	if p.Type == nil {
		return Null
	}
	return p.Type.DefaultValue()
}

// ToCode renders the parameter as "name: Type".
func (p Parameter) ToCode() string {
	if p.Type == nil {
		return p.Name
	}
	decl := p.Type.ToCode()
	if decl == "" {
		return p.Name
	}
	return fmt.Sprintf("%s: %s", p.Name, decl)
}

// ToCodeEnum renders the parameter as an enum label, "A" or "A := 1".
func (p Parameter) ToCodeEnum() string {
	if p.Default == nil {
		return p.Name
	}
	return fmt.Sprintf("%s := %s", p.Name, p.Default.ToCode())
}

// RenderParameters joins parameter declarations with commas.
func RenderParameters(params []Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.ToCode()
	}
	return strings.Join(parts, ", ")
}

// Column is a physical table column: a parameter with its precomputed slot
// placement inside the record.
type Column struct {
	Name    string
	Type    DataType
	Default Value
	// Offset is the byte offset of the column's field slot from the start
	// of the record.
	Offset int
}

// MaxPhysicalSize returns the column's inline slot width, including the
// field metadata byte.
func (c Column) MaxPhysicalSize() int { return c.Type.FixedSize() }

// Parameter converts the column back to its schema declaration.
func (c Column) Parameter() Parameter {
	return Parameter{Name: c.Name, Type: c.Type, Default: c.Default}
}

// ColumnsFromParameters lays out the physical columns for a parameter list,
// assigning each column its record offset past the row overhead.
func ColumnsFromParameters(params []Parameter) []Column {
	columns := make([]Column, len(params))
	offset := RowOverhead
	for i, p := range params {
		columns[i] = Column{Name: p.Name, Type: p.Type, Default: p.Default, Offset: offset}
		offset += p.Type.FixedSize()
	}
	return columns
}

// ParametersFromColumns recovers the schema declaration of a column list.
func ParametersFromColumns(columns []Column) []Parameter {
	params := make([]Parameter, len(columns))
	for i, c := range columns {
		params[i] = c.Parameter()
	}
	return params
}

// FindColumn returns the index of the named column, or -1.
func FindColumn(columns []Column, name string) int {
	for i, c := range columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
