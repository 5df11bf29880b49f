package machine

import (
	"fmt"
	"sort"

	"oxide/internal/core"
	"oxide/internal/lang"
	"oxide/internal/storage"
)

// TableRef is a value referencing a disk-backed table by namespace. It is
// what ns("database.schema.name") evaluates to; collections are opened on
// demand per operation so machine copies never share descriptors.
type TableRef struct {
	Ns   storage.Namespace
	Root string
}

func (TableRef) Kind() core.ValueKind { return core.KindTable }
func (TableRef) Type() core.DataType  { return core.TableType{} }
func (r TableRef) ToCode() string     { return fmt.Sprintf("ns(%q)", r.Ns.String()) }

// tableHandle is an open, resolvable mutation target.
type tableHandle struct {
	rc     storage.RowCollection
	fileRC *storage.FileRowCollection
	// commit folds in-memory table mutations back into the variable that
	// held the table value; nil when the target is disk-backed.
	commit func(*Machine) (*Machine, core.Value)
	close  func()
}

func (h *tableHandle) finish(m *Machine) (*Machine, core.Value) {
	var result core.Value
	next := m
	if h.commit != nil {
		next, result = h.commit(m)
		if result != nil && core.IsError(result) {
			h.release()
			return next, result
		}
	}
	h.release()
	return next, nil
}

func (h *tableHandle) release() {
	if h.close != nil {
		h.close()
	}
}

func (m *Machine) evalNs(e lang.Ns) (*Machine, core.Value) {
	next, v := m.Evaluate(e.Expr)
	if core.IsError(v) {
		return next, v
	}
	s, ok := v.(core.StringValue)
	if !ok {
		return next, core.Erred(core.StringExpectedError(core.TypeNameOf(v)))
	}
	ns, err := storage.ParseNamespace(s.S)
	if err != nil {
		return next, errValue(err)
	}
	return next, TableRef{Ns: ns, Root: m.root}
}

// resolveTable opens the collection a table expression designates: a
// TableRef opens its file backing; an in-memory table value is staged into
// a byte collection whose rows are folded back into the binding on commit.
func (m *Machine) resolveTable(expr lang.Expression) (*Machine, *tableHandle, core.Value) {
	if v, ok := expr.(lang.Variable); ok {
		if bound, found := m.Variable(v.Name); found {
			return m.handleForValue(bound, v.Name)
		}
	}
	next, value := m.Evaluate(expr)
	if core.IsError(value) {
		return next, nil, value
	}
	return next.handleForValue(value, "")
}

func (m *Machine) handleForValue(v core.Value, binding string) (*Machine, *tableHandle, core.Value) {
	switch t := v.(type) {
	case TableRef:
		rc, err := storage.OpenTable(t.Root, t.Ns)
		if err != nil {
			return m, nil, errValue(err)
		}
		return m, &tableHandle{
			rc:     rc,
			fileRC: rc,
			close:  func() { _ = rc.Close() },
		}, nil
	case core.TableValue:
		rc, err := storage.FromRows(t.Params, t.Rows)
		if err != nil {
			return m, nil, errValue(err)
		}
		handle := &tableHandle{rc: rc}
		if binding != "" {
			handle.commit = func(cur *Machine) (*Machine, core.Value) {
				updated, err := rebuildTableValue(rc)
				if err != nil {
					return cur, errValue(err)
				}
				return cur.WithVariable(binding, updated), nil
			}
		}
		return m, handle, nil
	default:
		return m, nil, core.Erred(core.UnsupportedTypeError("Table", core.TypeNameOf(v)))
	}
}

// rebuildTableValue reads a collection's live rows back into a table
// value. Tombstones do not survive the round trip; durable undelete needs
// a disk-backed table.
func rebuildTableValue(rc *storage.ByteRowCollection) (core.TableValue, error) {
	params := core.ParametersFromColumns(rc.Columns())
	n, err := rc.Len()
	if err != nil {
		return core.TableValue{}, err
	}
	table := core.TableValue{Params: params}
	for id := 0; id < n; id++ {
		row, meta, err := rc.Read(uint64(id))
		if err != nil {
			return core.TableValue{}, err
		}
		if meta.IsAllocated {
			table.Rows = append(table.Rows, row)
		}
	}
	return table, nil
}

// evalQueryable evaluates the from/where/limit pipeline into a table value.
func (m *Machine) evalQueryable(expr lang.Expression) (*Machine, core.Value) {
	switch e := expr.(type) {
	case lang.From:
		return m.evalTableSource(e.Source)
	case lang.Where:
		next, v := m.Evaluate(e.Source)
		if core.IsError(v) {
			return next, v
		}
		table, ok := v.(core.TableValue)
		if !ok {
			return next, core.Erred(core.UnsupportedTypeError("Table", core.TypeNameOf(v)))
		}
		return next.filterTable(table, e.Condition)
	case lang.LimitOp:
		next, v := m.Evaluate(e.Source)
		if core.IsError(v) {
			return next, v
		}
		table, ok := v.(core.TableValue)
		if !ok {
			return next, core.Erred(core.UnsupportedTypeError("Table", core.TypeNameOf(v)))
		}
		next, limit := next.Evaluate(e.Limit)
		n, errV := limitCount(limit)
		if errV != nil {
			return next, errV
		}
		if n >= 0 && len(table.Rows) > n {
			table.Rows = table.Rows[:n]
		}
		return next, table
	}
	return m, core.Erred(core.Exactf("not a queryable: %q", expr.ToCode()))
}

// evalTableSource materializes any table-designating expression as a table
// value: a ref reads its live rows, a table value passes through.
func (m *Machine) evalTableSource(expr lang.Expression) (*Machine, core.Value) {
	next, handle, errV := m.resolveTable(expr)
	if errV != nil {
		return next, errV
	}
	table, err := storage.ToTableValue(handle.rc)
	handle.release()
	if err != nil {
		return next, errValue(err)
	}
	return next, table
}

func (m *Machine) filterTable(table core.TableValue, condition lang.Expression) (*Machine, core.Value) {
	if condition == nil {
		return m, table
	}
	columns := core.ColumnsFromParameters(table.Params)
	filtered := core.TableValue{Params: table.Params}
	for _, row := range table.Rows {
		if m.rowMatches(columns, row, condition) {
			filtered.Rows = append(filtered.Rows, row)
		}
	}
	return m, filtered
}

// rowMatches evaluates a condition with the row bound for projection. A
// condition that produces neither a Boolean nor an error matches, mirroring
// the permissive matching of the query pipeline; an error does not match.
func (m *Machine) rowMatches(columns []core.Column, row core.Row, condition lang.Expression) bool {
	if condition == nil {
		return true
	}
	_, v := m.WithRow(columns, row).Evaluate(condition)
	if b, ok := v.(core.BoolValue); ok {
		return b.B
	}
	return !core.IsError(v)
}

func (m *Machine) evalSelect(e lang.Select) (*Machine, core.Value) {
	if len(e.GroupBy) > 0 || e.Having != nil {
		return m, core.Erred(core.ExactError("group by and having are not supported"))
	}
	if e.SourceFrom == nil {
		return m, core.Erred(core.ExactError("select requires a from clause"))
	}
	next, v := m.evalTableSource(e.SourceFrom)
	if core.IsError(v) {
		return next, v
	}
	table := v.(core.TableValue)
	columns := core.ColumnsFromParameters(table.Params)

	// filter
	if e.Condition != nil {
		var filtered core.Value
		next, filtered = next.filterTable(table, e.Condition)
		table = filtered.(core.TableValue)
	}

	// order
	if len(e.OrderBy) > 0 {
		sortRows(next, columns, table.Rows, e.OrderBy)
	}

	// limit
	if e.Limit != nil {
		var limit core.Value
		next, limit = next.Evaluate(e.Limit)
		n, errV := limitCount(limit)
		if errV != nil {
			return next, errV
		}
		if n >= 0 && len(table.Rows) > n {
			table.Rows = table.Rows[:n]
		}
	}

	// project
	return next.projectFields(table, columns, e.Fields)
}

func sortRows(m *Machine, columns []core.Column, rows []core.Row, orderBy []lang.Expression) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, field := range orderBy {
			_, a := m.WithRow(columns, rows[i]).Evaluate(field)
			_, b := m.WithRow(columns, rows[j]).Evaluate(field)
			if n, ok := core.Compare(a, b); ok && n != 0 {
				return n < 0
			}
		}
		return false
	})
}

func (m *Machine) projectFields(table core.TableValue, columns []core.Column, fields []lang.Expression) (*Machine, core.Value) {
	if isSelectAll(fields) {
		return m, table
	}
	params := make([]core.Parameter, len(fields))
	for i, field := range fields {
		name, dt := projectionOf(field, table.Params)
		params[i] = core.Parameter{Name: name, Type: dt}
	}
	projected := core.TableValue{Params: params}
	for _, row := range table.Rows {
		values := make([]core.Value, len(fields))
		scoped := m.WithRow(columns, row)
		for i, field := range fields {
			_, values[i] = scoped.Evaluate(field)
		}
		projected.Rows = append(projected.Rows, core.Row{ID: row.ID, Values: values})
	}
	return m, projected
}

func isSelectAll(fields []lang.Expression) bool {
	if len(fields) != 1 {
		return false
	}
	v, ok := fields[0].(lang.Variable)
	return ok && v.Name == "*"
}

func projectionOf(field lang.Expression, params []core.Parameter) (string, core.DataType) {
	switch f := field.(type) {
	case lang.Variable:
		for _, p := range params {
			if p.Name == f.Name {
				return p.Name, p.Type
			}
		}
		return f.Name, core.VaryingType{}
	case lang.AsValue:
		_, dt := projectionOf(f.Expr, params)
		return f.Name, dt
	default:
		return field.ToCode(), lang.InferType(field)
	}
}

func (m *Machine) evalIntoNs(e lang.IntoNs) (*Machine, core.Value) {
	// "table(...) ~> target" declares the table at the target namespace
	if call, ok := e.Source.(lang.FunctionCall); ok {
		if head, ok2 := call.Fx.(lang.Variable); ok2 && (head.Name == "table" || head.Name == "Table") {
			params, errV := tableParamsOf(call)
			if errV != nil {
				return m, errV
			}
			return m.createAt(e.Target, params, nil)
		}
	}

	next, source := m.Evaluate(e.Source)
	if core.IsError(source) {
		return next, source
	}
	rows, errV := sourceRows(source)
	if errV != nil {
		return next, errV
	}
	next, handle, errV := next.resolveTable(e.Target)
	if errV != nil {
		return next, errV
	}
	count, err := appendRows(handle.rc, rows)
	if err != nil {
		handle.release()
		return next, errValue(err)
	}
	next, errResult := handle.finish(next)
	if errResult != nil {
		return next, errResult
	}
	return next, core.RowsAffectedValue(count)
}

// tableParamsOf deciphers "table(symbol: String(8), ...)" into parameters.
func tableParamsOf(call lang.FunctionCall) ([]core.Parameter, core.Value) {
	dt, err := lang.DecipherType(lang.FunctionCall{
		Fx:   lang.Variable{Name: "Table"},
		Args: call.Args,
	})
	if err != nil {
		return nil, errValue(err)
	}
	table, ok := dt.(core.TableType)
	if !ok {
		return nil, core.Erred(core.UnsupportedTypeError("Table", dt.ToCode()))
	}
	return table.Params, nil
}

// sourceRows extracts appendable row sources: a table value, an array of
// structs, or a single struct.
func sourceRows(source core.Value) ([]core.Value, core.Value) {
	switch s := source.(type) {
	case core.TableValue:
		columns := core.ColumnsFromParameters(s.Params)
		items := make([]core.Value, len(s.Rows))
		for i, row := range s.Rows {
			items[i] = rowToStruct(columns, row)
		}
		return items, nil
	case core.ArrayValue:
		return s.Items, nil
	case core.StructValue:
		return []core.Value{s}, nil
	default:
		return nil, core.Erred(core.UnsupportedTypeError("Table, Array or Struct", core.TypeNameOf(source)))
	}
}

func appendRows(rc storage.RowCollection, rows []core.Value) (int64, error) {
	columns := rc.Columns()
	var count int64
	for _, item := range rows {
		s, ok := item.(core.StructValue)
		if !ok {
			return count, core.UnsupportedTypeError("Struct", core.TypeNameOf(item))
		}
		if _, err := storage.Append(rc, rowFromStruct(columns, s)); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// rowFromStruct shapes a struct into a row under the column list; missing
// fields fall back to the column default.
func rowFromStruct(columns []core.Column, s core.StructValue) core.Row {
	values := make([]core.Value, len(columns))
	for i, c := range columns {
		v := s.Get(c.Name)
		if v.Kind() == core.KindUndefined {
			if c.Default != nil {
				v = c.Default
			} else {
				v = core.Null
			}
		}
		values[i] = v
	}
	return core.Row{Values: values}
}

func (m *Machine) createAt(target lang.Expression, params []core.Parameter, from lang.Expression) (*Machine, core.Value) {
	next, v := m.Evaluate(target)
	if core.IsError(v) {
		return next, v
	}
	ref, ok := v.(TableRef)
	if !ok {
		// creating into a variable declares an empty in-memory table
		if name, isVar := target.(lang.Variable); isVar {
			return next.WithVariable(name.Name, core.TableValue{Params: params}), core.AckValue()
		}
		return next, core.Erred(core.UnsupportedTypeError("Table", core.TypeNameOf(v)))
	}
	rc, err := storage.CreateTable(ref.Root, ref.Ns, params)
	if err != nil {
		return next, errValue(err)
	}
	defer func() { _ = rc.Close() }()
	if from != nil {
		var source core.Value
		next, source = next.Evaluate(from)
		if core.IsError(source) {
			return next, source
		}
		rows, errV := sourceRows(source)
		if errV != nil {
			return next, errV
		}
		if _, err := appendRows(rc, rows); err != nil {
			return next, errValue(err)
		}
	}
	return next, core.AckValue()
}

func (m *Machine) evalCreateTable(e lang.CreateTable) (*Machine, core.Value) {
	return m.createAt(e.Table, e.Params, e.From)
}

func (m *Machine) evalCreateIndex(e lang.CreateIndex) (*Machine, core.Value) {
	next, handle, errV := m.resolveTable(e.Index)
	if errV != nil {
		return next, errV
	}
	defer handle.release()
	var params []core.Parameter
	params = append(params, core.NewParameter("row_id", core.NumberType{NumberKind: core.U64Kind}))
	for _, col := range e.Columns {
		name, dt := projectionOf(col, core.ParametersFromColumns(handle.rc.Columns()))
		params = append(params, core.Parameter{Name: name, Type: dt})
	}
	related, err := handle.rc.CreateRelatedStructure(params, "index")
	if err != nil {
		return next, errValue(err)
	}
	if closer, ok := related.(*storage.FileRowCollection); ok {
		_ = closer.Close()
	}
	return next, core.AckValue()
}

// mutateRows drives the shared scan/match/limit loop of the mutating ops.
// The visit callback returns whether the row counted against the limit.
func (m *Machine) mutateRows(
	table, cond, limit lang.Expression,
	wantAllocated bool,
	visit func(rc storage.RowCollection, id uint64, row core.Row) (bool, error),
) (*Machine, core.Value) {
	next, handle, errV := m.resolveTable(table)
	if errV != nil {
		return next, errV
	}
	max := int64(-1)
	if limit != nil {
		var v core.Value
		next, v = next.Evaluate(limit)
		n, errV := limitCount(v)
		if errV != nil {
			handle.release()
			return next, errV
		}
		max = int64(n)
	}
	length, err := handle.rc.Len()
	if err != nil {
		handle.release()
		return next, errValue(err)
	}
	columns := handle.rc.Columns()
	var affected int64
	for id := uint64(0); id < uint64(length); id++ {
		if max >= 0 && affected >= max {
			break
		}
		row, meta, err := handle.rc.Read(id)
		if err != nil {
			handle.release()
			return next, errValue(err)
		}
		if meta.IsAllocated != wantAllocated {
			continue
		}
		if !next.rowMatches(columns, row, cond) {
			continue
		}
		counted, err := visit(handle.rc, id, row)
		if err != nil {
			handle.release()
			return next, errValue(err)
		}
		if counted {
			affected++
		}
	}
	next, errResult := handle.finish(next)
	if errResult != nil {
		return next, errResult
	}
	return next, core.RowsAffectedValue(affected)
}

func (m *Machine) evalDelete(e lang.Delete) (*Machine, core.Value) {
	return m.mutateRows(e.Table, e.Condition, e.Limit, true,
		func(rc storage.RowCollection, id uint64, _ core.Row) (bool, error) {
			return true, storage.Delete(rc, id)
		})
}

func (m *Machine) evalUndelete(e lang.Undelete) (*Machine, core.Value) {
	return m.mutateRows(e.Table, e.Condition, e.Limit, false,
		func(rc storage.RowCollection, id uint64, _ core.Row) (bool, error) {
			return true, storage.Undelete(rc, id)
		})
}

func (m *Machine) evalOverwrite(e lang.Overwrite) (*Machine, core.Value) {
	next, source := m.Evaluate(e.Source)
	if core.IsError(source) {
		return next, source
	}
	s, ok := source.(core.StructValue)
	if !ok {
		return next, core.Erred(core.UnsupportedTypeError("Struct", core.TypeNameOf(source)))
	}
	return next.mutateRows(e.Table, e.Condition, e.Limit, true,
		func(rc storage.RowCollection, id uint64, _ core.Row) (bool, error) {
			replacement := rowFromStruct(rc.Columns(), s).WithID(id)
			_, err := rc.Overwrite(id, replacement)
			return true, err
		})
}

func (m *Machine) evalUpdate(e lang.Update) (*Machine, core.Value) {
	next, source := m.Evaluate(e.Source)
	if core.IsError(source) {
		return next, source
	}
	s, ok := source.(core.StructValue)
	if !ok {
		return next, core.Erred(core.UnsupportedTypeError("Struct", core.TypeNameOf(source)))
	}
	names := make([]string, len(s.Fields))
	values := make([]core.Value, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
		values[i] = f.Value
	}
	return next.mutateRows(e.Table, e.Condition, e.Limit, true,
		func(rc storage.RowCollection, id uint64, row core.Row) (bool, error) {
			merged, err := row.Transform(rc.Columns(), names, values)
			if err != nil {
				return false, err
			}
			_, err = rc.Overwrite(id, merged.WithID(id))
			return true, err
		})
}

func (m *Machine) evalTruncate(e lang.Truncate) (*Machine, core.Value) {
	next, handle, errV := m.resolveTable(e.Table)
	if errV != nil {
		return next, errV
	}
	newSize := 0
	if e.NewSize != nil {
		var v core.Value
		next, v = next.Evaluate(e.NewSize)
		n, errV := limitCount(v)
		if errV != nil {
			handle.release()
			return next, errV
		}
		newSize = n
	}
	if err := handle.rc.Resize(newSize); err != nil {
		handle.release()
		return next, errValue(err)
	}
	next, errResult := handle.finish(next)
	if errResult != nil {
		return next, errResult
	}
	return next, core.AckValue()
}

func (m *Machine) evalDrop(e lang.Drop) (*Machine, core.Value) {
	next, v := m.Evaluate(e.Table)
	if core.IsError(v) {
		return next, v
	}
	ref, ok := v.(TableRef)
	if !ok {
		return next, core.Erred(core.UnsupportedTypeError("Table", core.TypeNameOf(v)))
	}
	if err := storage.DropTable(ref.Root, ref.Ns); err != nil {
		return next, errValue(err)
	}
	return next, core.AckValue()
}

func (m *Machine) evalCompact(e lang.Compact) (*Machine, core.Value) {
	next, handle, errV := m.resolveTable(e.Table)
	if errV != nil {
		return next, errV
	}
	if handle.fileRC != nil {
		if err := handle.fileRC.Compact(); err != nil {
			handle.release()
			return next, errValue(err)
		}
		handle.release()
		return next, core.AckValue()
	}
	// in-memory compaction rewrites the live rows densely
	rows, err := storage.ReadActiveRows(handle.rc)
	if err != nil {
		handle.release()
		return next, errValue(err)
	}
	if err := handle.rc.Resize(0); err != nil {
		handle.release()
		return next, errValue(err)
	}
	for _, row := range rows {
		if _, err := storage.Append(handle.rc, row); err != nil {
			handle.release()
			return next, errValue(err)
		}
	}
	next, errResult := handle.finish(next)
	if errResult != nil {
		return next, errResult
	}
	return next, core.AckValue()
}

func (m *Machine) evalDescribe(e lang.Describe) (*Machine, core.Value) {
	next, handle, errV := m.resolveTable(e.Table)
	if errV != nil {
		return next, errV
	}
	defer handle.release()
	params := []core.Parameter{
		core.NewParameter("name", core.StringType{Size: 128}),
		core.NewParameter("type", core.StringType{Size: 128}),
		core.NewParameter("default_value", core.StringType{Size: 128}),
		core.NewParameter("is_nullable", core.BooleanType{}),
	}
	table := core.TableValue{Params: params}
	for i, c := range handle.rc.Columns() {
		defaultCode := "null"
		if c.Default != nil {
			defaultCode = c.Default.ToCode()
		}
		table.Rows = append(table.Rows, core.NewRow(uint64(i),
			core.Str(c.Name),
			core.Str(c.Type.ToCode()),
			core.Str(defaultCode),
			core.Bool(true),
		))
	}
	return next, table
}

func limitCount(v core.Value) (int, core.Value) {
	if core.IsError(v) {
		return 0, v
	}
	n, ok := v.(core.NumberValue)
	if !ok {
		return 0, core.Erred(core.UnsupportedTypeError("i64", core.TypeNameOf(v)))
	}
	return int(n.N.AsInt()), nil
}
