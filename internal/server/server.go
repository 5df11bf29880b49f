// Package server exposes row CRUD over HTTP. Each table is addressed as
// /{database}/{schema}/{name}/{rowID}; row bodies use the field-list JSON
// form {"fields": [{"name": ..., "value": ...}]}. The server is an
// external collaborator of the storage core: every request opens the
// collection, performs one positional operation, and closes it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"oxide/internal/core"
	"oxide/internal/storage"
)

// Server serves row operations for tables under one filesystem root.
type Server struct {
	root string
}

// New builds a server over the given root.
func New(root string) *Server {
	return &Server{root: root}
}

// rowDocument is the wire form of one row.
type rowDocument struct {
	ID     *uint64    `json:"id,omitempty"`
	Fields []fieldDoc `json:"fields"`
}

type fieldDoc struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ListenAndServe runs the server until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %q: %w", addr, err)
	}
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// Handler returns the route handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRow)
	return mux
}

func (s *Server) handleRow(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 {
		http.Error(w, "want /{database}/{schema}/{name}/{rowID}", http.StatusNotFound)
		return
	}
	ns := storage.Namespace{Database: parts[0], Schema: parts[1], Name: parts[2]}
	id, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		http.Error(w, "invalid row id", http.StatusBadRequest)
		return
	}

	rc, err := storage.OpenTable(s.root, ns)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer func() { _ = rc.Close() }()

	switch r.Method {
	case http.MethodGet:
		s.getRow(w, rc, id)
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		s.appendRow(w, r, rc)
	case http.MethodPut:
		s.overwriteRow(w, r, rc, id)
	case http.MethodPatch:
		s.updateRow(w, r, rc, id)
	case http.MethodDelete:
		s.deleteRow(w, rc, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) getRow(w http.ResponseWriter, rc *storage.FileRowCollection, id uint64) {
	row, meta, err := rc.Read(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !meta.IsAllocated {
		writeJSON(w, rowDocument{Fields: []fieldDoc{}})
		return
	}
	doc := rowDocument{ID: &row.ID, Fields: make([]fieldDoc, len(rc.Columns()))}
	for i, c := range rc.Columns() {
		v := core.Value(core.Null)
		if i < len(row.Values) {
			v = row.Values[i]
		}
		doc.Fields[i] = fieldDoc{Name: c.Name, Value: jsonValue(v)}
	}
	writeJSON(w, doc)
}

func (s *Server) appendRow(w http.ResponseWriter, r *http.Request, rc *storage.FileRowCollection) {
	row, ok := s.decodeRow(w, r, rc)
	if !ok {
		return
	}
	id, err := storage.Append(rc, row)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, id)
}

func (s *Server) overwriteRow(w http.ResponseWriter, r *http.Request, rc *storage.FileRowCollection, id uint64) {
	row, ok := s.decodeRow(w, r, rc)
	if !ok {
		return
	}
	n, err := rc.Overwrite(id, row.WithID(id))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, n)
}

func (s *Server) updateRow(w http.ResponseWriter, r *http.Request, rc *storage.FileRowCollection, id uint64) {
	var doc rowDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	existing, _, err := rc.Read(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	names := make([]string, len(doc.Fields))
	values := make([]core.Value, len(doc.Fields))
	for i, f := range doc.Fields {
		names[i] = f.Name
		values[i] = valueFromJSON(f.Value)
	}
	merged, err := existing.Transform(rc.Columns(), names, values)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := rc.Overwrite(id, merged.WithID(id))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, n)
}

func (s *Server) deleteRow(w http.ResponseWriter, rc *storage.FileRowCollection, id uint64) {
	if err := storage.Delete(rc, id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, 1)
}

// decodeRow reads a field-list document and shapes it to the schema.
func (s *Server) decodeRow(w http.ResponseWriter, r *http.Request, rc *storage.FileRowCollection) (core.Row, bool) {
	var doc rowDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return core.Row{}, false
	}
	columns := rc.Columns()
	values := make([]core.Value, len(columns))
	for i, c := range columns {
		values[i] = core.Null
		for _, f := range doc.Fields {
			if f.Name == c.Name {
				values[i] = valueFromJSON(f.Value)
				break
			}
		}
	}
	return core.Row{Values: values}, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func jsonValue(v core.Value) any {
	switch t := v.(type) {
	case core.NullValue, core.UndefinedValue:
		return nil
	case core.BoolValue:
		return t.B
	case core.StringValue:
		return t.S
	case core.ASCIIValue:
		return t.S
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
	default:
		return v.ToCode()
	}
}

func valueFromJSON(raw any) core.Value {
	switch t := raw.(type) {
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
	default:
		return core.Undefined
	}
}
