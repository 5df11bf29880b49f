package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNamespace(t *testing.T) {
	ns, err := ParseNamespace("finance.quotes.stocks")
	require.NoError(t, err)
	assert.Equal(t, Namespace{Database: "finance", Schema: "quotes", Name: "stocks"}, ns)
	assert.Equal(t, "finance.quotes.stocks", ns.String())
}

func TestParseNamespaceErrors(t *testing.T) {
	for _, text := range []string{"", "onlyone", "two.parts", "a.b.c.d", "a..c", ".b.c"} {
		_, err := ParseNamespace(text)
		assert.Error(t, err, text)
	}
}

func TestNamespacePaths(t *testing.T) {
	ns := Namespace{Database: "db", Schema: "sch", Name: "tbl"}
	root := "/data"
	assert.Equal(t, filepath.Join(root, "db", "sch", "tbl"), ns.Dir(root))
	assert.Equal(t, filepath.Join(root, "db", "sch", "tbl", "tbl.table"), ns.TableFilePath(root))
	assert.Equal(t, filepath.Join(root, "db", "sch", "tbl", "tbl.table.blob"), ns.BlobFilePath(root))
	assert.Equal(t, filepath.Join(root, "db", "sch", "tbl", "tbl.json"), ns.ConfigFilePath(root))
}

func TestOxideHome(t *testing.T) {
	t.Setenv(DefaultRootEnv, "/custom/root")
	assert.Equal(t, "/custom/root", OxideHome())

	t.Setenv(DefaultRootEnv, "")
	assert.Equal(t, "oxide_db", OxideHome())
}
