package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringdb/ringdb/internal/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int},
			{Name: "name", Type: schema.Text},
		},
		PartitionKey: []string{"id"},
	}
}

func openCatalogue(t *testing.T) (*Catalogue, string) {
	t.Helper()
	dir := t.TempDir()
	cat, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, cat.EnsureKeyspace("app", schema.DefaultOptions()))
	return cat, dir
}

func TestCreateTable(t *testing.T) {
	cat, dir := openCatalogue(t)

	require.NoError(t, cat.CreateTable("app", "users", testSchema()))

	// Schema and row files exist, header in declared column order.
	data, err := os.ReadFile(filepath.Join(dir, "app", "users", "table.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,name\n", string(data))

	s, err := cat.Schema("app", "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, s.ColumnNames())

	assert.ErrorIs(t, cat.CreateTable("app", "users", testSchema()), ErrTableExists)
}

func TestCreateTableUnknownKeyspace(t *testing.T) {
	cat, _ := openCatalogue(t)
	assert.ErrorIs(t, cat.CreateTable("ghost", "users", testSchema()), ErrKeyspaceNotFound)
}

func TestDropTable(t *testing.T) {
	cat, dir := openCatalogue(t)
	require.NoError(t, cat.CreateTable("app", "users", testSchema()))

	require.NoError(t, cat.DropTable("app", "users"))
	_, err := os.Stat(filepath.Join(dir, "app", "users"))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, cat.DropTable("app", "users"), ErrTableNotFound)
	_, err = cat.Schema("app", "users")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestOpenLoadsExistingTables(t *testing.T) {
	cat, dir := openCatalogue(t)
	require.NoError(t, cat.CreateTable("app", "users", testSchema()))
	require.NoError(t, cat.Append("app", "users", map[string]string{"id": "1", "name": "ada"}))

	reopened, err := Open(dir)
	require.NoError(t, err)

	s, err := reopened.Schema("app", "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, s.ColumnNames())
	assert.Equal(t, []string{"users"}, reopened.Tables("app"))
	assert.Equal(t, []string{"app"}, reopened.Keyspaces())
}

func TestOpenSkipsHintsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "hints"), 0755))

	cat, err := Open(dir)
	require.NoError(t, err)
	assert.Empty(t, cat.Keyspaces())
}

func TestKeyspaceOptions(t *testing.T) {
	cat, _ := openCatalogue(t)
	opts, err := cat.KeyspaceOptions("app")
	require.NoError(t, err)
	assert.Equal(t, schema.DefaultOptions(), opts)

	_, err = cat.KeyspaceOptions("ghost")
	assert.ErrorIs(t, err, ErrKeyspaceNotFound)
}
