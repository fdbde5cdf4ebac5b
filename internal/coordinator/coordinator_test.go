package coordinator

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringdb/ringdb/internal/query"
	"github.com/ringdb/ringdb/internal/ring"
	"github.com/ringdb/ringdb/internal/schema"
	"github.com/ringdb/ringdb/internal/storage"
	"github.com/ringdb/ringdb/pkg/types"
)

// singleNodeCoordinator builds a coordinator whose ring is just this node,
// so every replica call executes locally.
func singleNodeCoordinator(t *testing.T) *Coordinator {
	t.Helper()

	nodes := []types.Node{{
		IPAddress:  "127.0.0.1",
		Port:       19042,
		TokenRange: types.TokenRange{Start: math.MinInt64, End: math.MaxInt64},
	}}
	part, err := ring.New(nodes, "127.0.0.1")
	require.NoError(t, err)

	cat, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cat.EnsureKeyspace("app", schema.DefaultOptions()))

	log := logrus.NewEntry(logrus.New())
	return New(part, cat, nil, "app", log)
}

func execute(t *testing.T, c *Coordinator, stmt string, cl types.ConsistencyLevel) (*Result, error) {
	t.Helper()
	q, err := query.Parse(stmt)
	require.NoError(t, err)
	return c.Execute(q, cl)
}

func TestExecuteWriteThenRead(t *testing.T) {
	c := singleNodeCoordinator(t)

	result, err := execute(t, c, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))", types.ConsistencyOne)
	require.NoError(t, err)
	assert.False(t, result.HasRows)

	// The schema grew the implicit reconciliation column.
	s, err := c.cat.Schema("app", "users")
	require.NoError(t, err)
	lastType, ok := s.TypeOf(schema.LastUpdateColumn)
	require.True(t, ok)
	assert.Equal(t, schema.Timestamp, lastType)
	assert.Equal(t, schema.LastUpdateColumn, s.Columns[len(s.Columns)-1].Name)

	_, err = execute(t, c, "INSERT INTO users (id, name) VALUES (1, 'ada')", types.ConsistencyOne)
	require.NoError(t, err)

	result, err = execute(t, c, "SELECT name FROM users WHERE id = 1", types.ConsistencyOne)
	require.NoError(t, err)
	assert.True(t, result.HasRows)
	// last_update is stripped from the client-visible reply.
	assert.Equal(t, []string{"name"}, result.Columns)
	assert.Equal(t, [][]string{{"ada"}}, result.Rows)
}

func TestExecuteSelectStarStripsLastUpdate(t *testing.T) {
	c := singleNodeCoordinator(t)
	_, err := execute(t, c, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))", types.ConsistencyOne)
	require.NoError(t, err)
	_, err = execute(t, c, "INSERT INTO users (id, name) VALUES (1, 'ada')", types.ConsistencyOne)
	require.NoError(t, err)

	result, err := execute(t, c, "SELECT * FROM users WHERE id = 1", types.ConsistencyOne)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, result.Columns)
	assert.Equal(t, [][]string{{"1", "ada"}}, result.Rows)
}

func TestExecuteMissingPrimaryKey(t *testing.T) {
	c := singleNodeCoordinator(t)
	_, err := execute(t, c, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))", types.ConsistencyOne)
	require.NoError(t, err)

	_, err = execute(t, c, "SELECT name FROM users WHERE name = 'ada'", types.ConsistencyOne)
	assert.ErrorIs(t, err, ErrMissingPrimaryKey)
}

func TestExecuteMissingClusteringKey(t *testing.T) {
	c := singleNodeCoordinator(t)
	_, err := execute(t, c, "CREATE TABLE events (id int, seq int, payload text, PRIMARY KEY (id, seq))", types.ConsistencyOne)
	require.NoError(t, err)

	// Pinning only the partition column is not enough; clustering columns
	// must be provided too.
	_, err = execute(t, c, "SELECT payload FROM events WHERE id = 1", types.ConsistencyOne)
	assert.ErrorIs(t, err, ErrMissingPrimaryKey)

	_, err = execute(t, c, "SELECT payload FROM events WHERE id = 1 AND seq = 2", types.ConsistencyOne)
	assert.NoError(t, err)
}

func TestExecuteConsistencyTooHighForCluster(t *testing.T) {
	c := singleNodeCoordinator(t)
	_, err := execute(t, c, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))", types.ConsistencyOne)
	require.NoError(t, err)

	// Only one replica exists, so TWO can never be satisfied.
	_, err = execute(t, c, "INSERT INTO users (id, name) VALUES (1, 'ada')", types.ConsistencyTwo)
	assert.ErrorIs(t, err, ErrNotEnoughReplicas)
}

func TestExecuteUpdateStampsLastUpdate(t *testing.T) {
	c := singleNodeCoordinator(t)
	_, err := execute(t, c, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))", types.ConsistencyOne)
	require.NoError(t, err)
	_, err = execute(t, c, "INSERT INTO users (id, name) VALUES (1, 'ada')", types.ConsistencyOne)
	require.NoError(t, err)
	_, err = execute(t, c, "UPDATE users SET name = 'grace' WHERE id = 1", types.ConsistencyOne)
	require.NoError(t, err)

	// The stored row carries a parseable timestamp in last_update.
	var stamped string
	require.NoError(t, c.cat.Scan("app", "users", func(row map[string]string) error {
		stamped = row[schema.LastUpdateColumn]
		return nil
	}))
	require.NotEmpty(t, stamped)
	assert.NoError(t, schema.Timestamp.Check(stamped))

	result, err := execute(t, c, "SELECT name FROM users WHERE id = 1", types.ConsistencyOne)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"grace"}}, result.Rows)
}

func TestReadRepairAppliesWinningRow(t *testing.T) {
	c := singleNodeCoordinator(t)
	_, err := execute(t, c, "CREATE TABLE users (id int, name text, PRIMARY KEY (id))", types.ConsistencyOne)
	require.NoError(t, err)
	_, err = execute(t, c, "INSERT INTO users (id, name) VALUES (1, 'ada')", types.ConsistencyOne)
	require.NoError(t, err)

	// A SELECT * as the coordinator sees it mid-flight: projection
	// resolved, last_update appended.
	q, err := query.Parse("SELECT * FROM users WHERE id = 1")
	require.NoError(t, err)
	q.Columns = []string{"id", "name", schema.LastUpdateColumn}

	winning := []string{"1", "grace", "2030-01-01T00:00:00Z"}
	stale := replicaResponse{ok: true, hasRows: true, rows: [][]string{{"1", "ada", "2020-01-01T00:00:00Z"}}}

	c.readRepair(q, []types.Node{c.part.Self()}, []int{0}, []replicaResponse{stale}, [][]string{winning})

	var name, stamped string
	require.NoError(t, c.cat.Scan("app", "users", func(row map[string]string) error {
		name = row["name"]
		stamped = row[schema.LastUpdateColumn]
		return nil
	}))
	assert.Equal(t, "grace", name)
	assert.Equal(t, "2030-01-01T00:00:00Z", stamped, "the repair carries the winning timestamp, not a fresh one")
}

func TestExecuteUnknownTable(t *testing.T) {
	c := singleNodeCoordinator(t)
	_, err := execute(t, c, "SELECT name FROM ghosts WHERE id = 1", types.ConsistencyOne)
	assert.ErrorIs(t, err, storage.ErrTableNotFound)
}
