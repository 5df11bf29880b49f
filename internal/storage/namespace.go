package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRootEnv is the environment variable selecting the filesystem root
// for all namespaces.
const DefaultRootEnv = "OXIDE_HOME"

// Namespace addresses a table as a database.schema.name triple mapped onto
// the filesystem layout
//
//	{root}/{database}/{schema}/{name}/{name}.table
//	{root}/{database}/{schema}/{name}/{name}.table.blob
//	{root}/{database}/{schema}/{name}/{name}.json
type Namespace struct {
	Database string
	Schema   string
	Name     string
}

// ParseNamespace splits a "database.schema.name" path.
func ParseNamespace(path string) (Namespace, error) {
	parts := strings.Split(path, ".")
	if len(parts) != 3 {
		return Namespace{}, fmt.Errorf("invalid namespace %q: want database.schema.name", path)
	}
	for _, part := range parts {
		if part == "" {
			return Namespace{}, fmt.Errorf("invalid namespace %q: empty segment", path)
		}
	}
	return Namespace{Database: parts[0], Schema: parts[1], Name: parts[2]}, nil
}

// String renders the namespace back to its dotted form.
func (ns Namespace) String() string {
	return fmt.Sprintf("%s.%s.%s", ns.Database, ns.Schema, ns.Name)
}

// Dir returns the table's directory under root.
func (ns Namespace) Dir(root string) string {
	return filepath.Join(root, ns.Database, ns.Schema, ns.Name)
}

// TableFilePath returns the record file path under root.
func (ns Namespace) TableFilePath(root string) string {
	return filepath.Join(ns.Dir(root), ns.Name+".table")
}

// BlobFilePath returns the BLOB side-store path under root.
func (ns Namespace) BlobFilePath(root string) string {
	return ns.TableFilePath(root) + ".blob"
}

// ConfigFilePath returns the schema config path under root.
func (ns Namespace) ConfigFilePath(root string) string {
	return filepath.Join(ns.Dir(root), ns.Name+".json")
}

// OxideHome resolves the filesystem root from OXIDE_HOME, falling back to
// ./oxide_db.
func OxideHome() string {
	if home := os.Getenv(DefaultRootEnv); home != "" {
		return home
	}
	return "oxide_db"
}
