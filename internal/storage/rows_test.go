package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, cat *Catalogue, keyspace, table string) []map[string]string {
	t.Helper()
	var rows []map[string]string
	require.NoError(t, cat.Scan(keyspace, table, func(row map[string]string) error {
		rows = append(rows, row)
		return nil
	}))
	return rows
}

func TestAppendAndScan(t *testing.T) {
	cat, _ := openCatalogue(t)
	require.NoError(t, cat.CreateTable("app", "users", testSchema()))

	require.NoError(t, cat.Append("app", "users", map[string]string{"id": "1", "name": "ada"}))
	require.NoError(t, cat.Append("app", "users", map[string]string{"id": "2"}))

	rows := scanAll(t, cat, "app", "users")
	require.Len(t, rows, 2)
	assert.Equal(t, "ada", rows[0]["name"])
	assert.Equal(t, NullLiteral, rows[1]["name"], "absent columns are stored as NULL")
}

func TestAppendTypeChecks(t *testing.T) {
	cat, _ := openCatalogue(t)
	require.NoError(t, cat.CreateTable("app", "users", testSchema()))

	err := cat.Append("app", "users", map[string]string{"id": "abc", "name": "ada"})
	assert.Error(t, err)
	assert.Empty(t, scanAll(t, cat, "app", "users"))
}

func TestAppendRepairsMissingNewline(t *testing.T) {
	cat, dir := openCatalogue(t)
	require.NoError(t, cat.CreateTable("app", "users", testSchema()))

	// Chop the trailing newline to simulate a partial write.
	path := filepath.Join(dir, "app", "users", "table.csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-1], 0644))

	require.NoError(t, cat.Append("app", "users", map[string]string{"id": "1", "name": "ada"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	assert.Equal(t, []string{"id,name", "1,ada"}, lines)
}

func TestRewriteUpdate(t *testing.T) {
	cat, dir := openCatalogue(t)
	require.NoError(t, cat.CreateTable("app", "users", testSchema()))
	require.NoError(t, cat.Append("app", "users", map[string]string{"id": "1", "name": "ada"}))
	require.NoError(t, cat.Append("app", "users", map[string]string{"id": "2", "name": "bob"}))

	err := cat.Rewrite("app", "users", func(row map[string]string) (map[string]string, bool, error) {
		if row["id"] == "1" {
			row["name"] = "grace"
		}
		return row, true, nil
	})
	require.NoError(t, err)

	rows := scanAll(t, cat, "app", "users")
	require.Len(t, rows, 2)
	assert.Equal(t, "grace", rows[0]["name"])
	assert.Equal(t, "bob", rows[1]["name"])

	// The temp file must be gone after the rename commit.
	_, err = os.Stat(filepath.Join(dir, "app", "users", "table.csv.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestRewriteDelete(t *testing.T) {
	cat, dir := openCatalogue(t)
	require.NoError(t, cat.CreateTable("app", "users", testSchema()))
	require.NoError(t, cat.Append("app", "users", map[string]string{"id": "1", "name": "ada"}))
	require.NoError(t, cat.Append("app", "users", map[string]string{"id": "2", "name": "bob"}))

	err := cat.Rewrite("app", "users", func(row map[string]string) (map[string]string, bool, error) {
		return row, row["id"] != "1", nil
	})
	require.NoError(t, err)

	rows := scanAll(t, cat, "app", "users")
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0]["id"])

	// Header survives every rewrite.
	content, err := os.ReadFile(filepath.Join(dir, "app", "users", "table.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "id,name\n"))
}

func TestRewriteTypeChecks(t *testing.T) {
	cat, _ := openCatalogue(t)
	require.NoError(t, cat.CreateTable("app", "users", testSchema()))
	require.NoError(t, cat.Append("app", "users", map[string]string{"id": "1", "name": "ada"}))

	err := cat.Rewrite("app", "users", func(row map[string]string) (map[string]string, bool, error) {
		row["id"] = "not-an-int"
		return row, true, nil
	})
	assert.Error(t, err)

	// The original file is untouched when the rewrite fails.
	rows := scanAll(t, cat, "app", "users")
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0]["id"])
}
