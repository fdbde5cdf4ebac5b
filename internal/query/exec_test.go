package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringdb/ringdb/internal/schema"
	"github.com/ringdb/ringdb/internal/storage"
)

func execCatalogue(t *testing.T) *storage.Catalogue {
	t.Helper()
	cat, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cat.EnsureKeyspace("app", schema.DefaultOptions()))
	return cat
}

func mustExec(t *testing.T, cat *storage.Catalogue, stmt string) ([][]string, bool) {
	t.Helper()
	q, err := Parse(stmt)
	require.NoError(t, err)
	rows, hasRows, err := q.Process(cat, "app")
	require.NoError(t, err, stmt)
	return rows, hasRows
}

func TestProcessCreateInsertSelect(t *testing.T) {
	cat := execCatalogue(t)

	_, hasRows := mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")
	assert.False(t, hasRows)

	_, hasRows = mustExec(t, cat, "INSERT INTO users (id, name) VALUES (1, 'ada')")
	assert.False(t, hasRows)
	mustExec(t, cat, "INSERT INTO users (id, name) VALUES (2, 'bob')")

	rows, hasRows := mustExec(t, cat, "SELECT name FROM users WHERE id = 1")
	assert.True(t, hasRows)
	assert.Equal(t, [][]string{{"ada"}}, rows)
}

func TestProcessSelectEmptyResult(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")

	rows, hasRows := mustExec(t, cat, "SELECT name FROM users WHERE id = 99")
	assert.True(t, hasRows, "a SELECT that matches nothing still answers with rows")
	assert.Empty(t, rows)
}

func TestProcessSelectStar(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")
	mustExec(t, cat, "INSERT INTO users (id, name) VALUES (1, 'ada')")

	rows, _ := mustExec(t, cat, "SELECT * FROM users WHERE id = 1")
	assert.Equal(t, [][]string{{"1", "ada"}}, rows)
}

func TestProcessSelectUnknownColumn(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")

	q, err := Parse("SELECT ghost FROM users WHERE id = 1")
	require.NoError(t, err)
	_, _, err = q.Process(cat, "app")
	assert.Error(t, err)
}

func TestProcessSelectOrderBy(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")
	mustExec(t, cat, "INSERT INTO users (id, name) VALUES (1, 'carol')")
	mustExec(t, cat, "INSERT INTO users (id, name) VALUES (2, 'ada')")
	mustExec(t, cat, "INSERT INTO users (id, name) VALUES (3, 'bob')")

	rows, _ := mustExec(t, cat, "SELECT name FROM users WHERE id > 0 ORDER BY name ASC")
	assert.Equal(t, [][]string{{"ada"}, {"bob"}, {"carol"}}, rows)

	rows, _ = mustExec(t, cat, "SELECT name FROM users WHERE id > 0 ORDER BY name DESC")
	assert.Equal(t, [][]string{{"carol"}, {"bob"}, {"ada"}}, rows)
}

func TestProcessInsertMissingColumnStoresNull(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")
	mustExec(t, cat, "INSERT INTO users (id) VALUES (5)")

	rows, _ := mustExec(t, cat, "SELECT name FROM users WHERE id = 5")
	assert.Equal(t, [][]string{{"NULL"}}, rows)
}

func TestProcessInsertTypeMismatch(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")

	q, err := Parse("INSERT INTO users (id, name) VALUES (x, 'ada')")
	require.NoError(t, err)
	_, _, err = q.Process(cat, "app")
	assert.Error(t, err)
}

func TestProcessUpdate(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")
	mustExec(t, cat, "INSERT INTO users (id, name) VALUES (1, 'ada')")
	mustExec(t, cat, "INSERT INTO users (id, name) VALUES (2, 'bob')")

	mustExec(t, cat, "UPDATE users SET name = 'grace' WHERE id = 1")

	rows, _ := mustExec(t, cat, "SELECT id, name FROM users WHERE id > 0 ORDER BY id ASC")
	assert.Equal(t, [][]string{{"1", "grace"}, {"2", "bob"}}, rows)
}

func TestProcessUpdateNoMatchIsNoop(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")
	mustExec(t, cat, "INSERT INTO users (id, name) VALUES (1, 'ada')")

	// No matching row: nothing is updated and nothing is inserted.
	mustExec(t, cat, "UPDATE users SET name = 'grace' WHERE id = 99")

	rows, _ := mustExec(t, cat, "SELECT id, name FROM users WHERE id > 0")
	assert.Equal(t, [][]string{{"1", "ada"}}, rows)
}

func TestProcessDelete(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")
	mustExec(t, cat, "INSERT INTO users (id, name) VALUES (1, 'ada')")
	mustExec(t, cat, "INSERT INTO users (id, name) VALUES (2, 'bob')")

	mustExec(t, cat, "DELETE FROM users WHERE id = 1")

	rows, _ := mustExec(t, cat, "SELECT id FROM users WHERE id > 0")
	assert.Equal(t, [][]string{{"2"}}, rows)
}

func TestProcessDropTable(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")
	mustExec(t, cat, "DROP TABLE users")

	q, err := Parse("SELECT id FROM users WHERE id = 1")
	require.NoError(t, err)
	_, _, err = q.Process(cat, "app")
	assert.ErrorIs(t, err, storage.ErrTableNotFound)
}

func TestProcessCreateExistingTable(t *testing.T) {
	cat := execCatalogue(t)
	mustExec(t, cat, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))")

	q, err := Parse("CREATE TABLE users (id int, PRIMARY KEY (id))")
	require.NoError(t, err)
	_, _, err = q.Process(cat, "app")
	assert.ErrorIs(t, err, storage.ErrTableExists)
}
