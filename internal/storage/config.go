package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio"

	"oxide/internal/core"
	"oxide/internal/lang"
)

// ObjectConfig is the schema document persisted next to a table's record
// file. Column types and default values are stored in their source form so
// the config stays readable and diffable.
type ObjectConfig struct {
	Columns    []ColumnConfig `json:"columns"`
	Indices    []IndexConfig  `json:"indices,omitempty"`
	Partitions []string       `json:"partitions,omitempty"`
}

// ColumnConfig declares one column.
type ColumnConfig struct {
	Name         string `json:"name"`
	ParamType    string `json:"param_type"`
	DefaultValue string `json:"default_value,omitempty"`
}

// IndexConfig declares one index over the table.
type IndexConfig struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// BuildTableConfig derives the config document from a parameter list.
func BuildTableConfig(params []core.Parameter) ObjectConfig {
	cfg := ObjectConfig{Columns: make([]ColumnConfig, len(params))}
	for i, p := range params {
		cc := ColumnConfig{Name: p.Name, ParamType: p.Type.ToCode()}
		if p.Default != nil {
			cc.DefaultValue = p.Default.ToCode()
		}
		cfg.Columns[i] = cc
	}
	return cfg
}

// Save writes the config atomically.
func (c ObjectConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}
	return nil
}

// LoadObjectConfig reads the config at path.
func LoadObjectConfig(path string) (ObjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ObjectConfig{}, fmt.Errorf("config: read %q: %w", path, err)
	}
	var cfg ObjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ObjectConfig{}, fmt.Errorf("config: decode %q: %w", path, err)
	}
	return cfg, nil
}

// Parameters reconstructs the schema: type declarations are parsed back to
// physical types and default-value expressions are folded to constants.
func (c ObjectConfig) Parameters() ([]core.Parameter, error) {
	params := make([]core.Parameter, len(c.Columns))
	for i, cc := range c.Columns {
		dt, err := lang.ParseDataType(cc.ParamType)
		if err != nil {
			return nil, fmt.Errorf("config: column %q: %w", cc.Name, err)
		}
		param := core.Parameter{Name: cc.Name, Type: dt}
		if cc.DefaultValue != "" {
			value, err := lang.PureValue(cc.DefaultValue)
			if err != nil {
				return nil, fmt.Errorf("config: column %q default: %w", cc.Name, err)
			}
			param.Default = coerceToType(dt, value)
		}
		params[i] = param
	}
	return params, nil
}

// coerceToType aligns a folded default with its declared column type, so a
// "0" default on an f64 column restores as an f64 zero.
func coerceToType(dt core.DataType, v core.Value) core.Value {
	numberType, ok := dt.(core.NumberType)
	if !ok {
		return v
	}
	n, ok := v.(core.NumberValue)
	if !ok {
		return v
	}
	converted := core.Number{Kind: numberType.NumberKind}
	switch {
	case numberType.NumberKind.IsFloat():
		converted.F = n.N.AsFloat()
	case numberType.NumberKind.IsUnsigned():
		converted.U = n.N.AsUint()
	default:
		converted.I = n.N.AsInt()
	}
	return core.Num(converted)
}
