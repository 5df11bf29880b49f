package machine

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"oxide/internal/core"
	"oxide/internal/lang"
)

// evalHTTP performs a verb against a row-serving URL. Responses decode
// from JSON back into values; a numeric body becomes a number, an object
// becomes a struct.
func (m *Machine) evalHTTP(e lang.HTTP) (*Machine, core.Value) {
	next, urlValue := m.Evaluate(e.URL)
	if core.IsError(urlValue) {
		return next, urlValue
	}
	url, ok := urlValue.(core.StringValue)
	if !ok {
		return next, core.Erred(core.StringExpectedError(core.TypeNameOf(urlValue)))
	}

	var body io.Reader
	if e.Body != nil {
		var bodyValue core.Value
		next, bodyValue = next.Evaluate(e.Body)
		if core.IsError(bodyValue) {
			return next, bodyValue
		}
		encoded, err := json.Marshal(ValueToJSON(bodyValue))
		if err != nil {
			return next, core.Erred(core.Exactf("http: encode body: %v", err))
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(e.Method, url.S, body)
	if err != nil {
		return next, core.Erred(core.Exactf("http: %v", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return next, core.Erred(core.Exactf("http: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if e.Method == http.MethodHead {
		fields := make([]core.StructField, 0, len(resp.Header))
		for name := range resp.Header {
			fields = append(fields, core.StructField{Name: name, Value: core.Str(resp.Header.Get(name))})
		}
		return next, core.StructValue{Fields: fields}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return next, core.Erred(core.Exactf("http: read response: %v", err))
	}
	if len(payload) == 0 {
		return next, core.AckValue()
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return next, core.Str(string(payload))
	}
	return next, JSONToValue(decoded)
}

// ValueToJSON maps a value onto encoding/json's generic representation.
func ValueToJSON(v core.Value) any {
	switch t := v.(type) {
	case core.NullValue, core.UndefinedValue:
		return nil
	case core.BoolValue:
		return t.B
	case core.NumberValue:
		switch {
		case t.N.Kind.IsFloat():
			return t.N.F
		case t.N.Kind == core.UUIDKind:
			return t.N.ID.String()
		case t.N.Kind.IsUnsigned():
			return t.N.U
		default:
			return t.N.I
		}
	case core.StringValue:
		return t.S
	case core.ASCIIValue:
		return t.S
	case core.ArrayValue:
		items := make([]any, len(t.Items))
		for i, item := range t.Items {
			items[i] = ValueToJSON(item)
		}
		return items
	case core.TupleValue:
		items := make([]any, len(t.Items))
		for i, item := range t.Items {
			items[i] = ValueToJSON(item)
		}
		return items
	case core.StructValue:
		fields := make(map[string]any, len(t.Fields))
		for _, f := range t.Fields {
			fields[f.Name] = ValueToJSON(f.Value)
		}
		return fields
	case core.TableValue:
		columns := core.ColumnsFromParameters(t.Params)
		rows := make([]any, len(t.Rows))
		for i, row := range t.Rows {
			rows[i] = ValueToJSON(rowToStruct(columns, row))
		}
		return rows
	case core.ErrorValue:
		return map[string]any{"error": t.Err.Error()}
	default:
		return v.ToCode()
	}
}

// JSONToValue maps encoding/json's generic representation onto values.
// Object key order follows encoding/json, so structs decode with sorted
// field names.
func JSONToValue(decoded any) core.Value {
	switch t := decoded.(type) {
	case nil:
		return core.Null
	case bool:
		return core.Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return core.Num(core.I64(int64(t)))
		}
		return core.Num(core.F64(t))
	case string:
		return core.Str(t)
	case []any:
		items := make([]core.Value, len(t))
		for i, item := range t {
			items[i] = JSONToValue(item)
		}
		return core.ArrayValue{Items: items}
	case map[string]any:
		names := make([]string, 0, len(t))
		for name := range t {
			names = append(names, name)
		}
		sort.Strings(names)
		fields := make([]core.StructField, len(names))
		for i, name := range names {
			fields[i] = core.StructField{Name: name, Value: JSONToValue(t[name])}
		}
		return core.StructValue{Fields: fields}
	default:
		return core.Undefined
	}
}
