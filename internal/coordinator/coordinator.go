// Package coordinator drives one client query through the cluster: replica
// selection, fan-out, consistency enforcement, reconciliation and read
// repair.
package coordinator

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ringdb/ringdb/internal/hints"
	"github.com/ringdb/ringdb/internal/metrics"
	"github.com/ringdb/ringdb/internal/query"
	"github.com/ringdb/ringdb/internal/ring"
	"github.com/ringdb/ringdb/internal/schema"
	"github.com/ringdb/ringdb/internal/storage"
	"github.com/ringdb/ringdb/internal/wire/internode"
	"github.com/ringdb/ringdb/pkg/types"
)

var (
	// ErrMissingPrimaryKey is returned when a query does not pin every
	// partition and clustering column.
	ErrMissingPrimaryKey = errors.New("primary key columns not provided")
	// ErrNotEnoughReplicas is returned when fewer replicas acknowledged
	// than the consistency level demands.
	ErrNotEnoughReplicas = errors.New("not enough nodes responded")
)

const forwardDialTimeout = 3 * time.Second

// Coordinator executes queries on behalf of clients, treating this node as
// one replica among the partitioner's choices.
type Coordinator struct {
	part     *ring.Partitioner
	cat      *storage.Catalogue
	hints    *hints.Store
	keyspace string
	log      *logrus.Entry
}

// New wires a coordinator to the node's partitioner, catalogue and hint
// store.
func New(part *ring.Partitioner, cat *storage.Catalogue, hintStore *hints.Store, keyspace string, log *logrus.Entry) *Coordinator {
	return &Coordinator{
		part:     part,
		cat:      cat,
		hints:    hintStore,
		keyspace: keyspace,
		log:      log,
	}
}

// Keyspace returns the keyspace this coordinator serves.
func (c *Coordinator) Keyspace() string {
	return c.keyspace
}

// Result is the reconciled outcome of one query. For SELECT, Columns names
// the client-visible projection and Rows carries the winning row set with
// the internal last_update column already stripped.
type Result struct {
	HasRows bool
	Columns []string
	Rows    [][]string
}

// replicaResponse is one replica's answer. ok means the replica
// acknowledged; rows are only meaningful for SELECT. err carries the
// executor's error when this node's own execution failed.
type replicaResponse struct {
	ok      bool
	hasRows bool
	rows    [][]string
	err     error
}

// Execute runs one query at the requested consistency level.
func (c *Coordinator) Execute(q *query.Query, cl types.ConsistencyLevel) (*Result, error) {
	metrics.QueriesTotal.WithLabelValues(q.Kind.String()).Inc()

	// CREATE TABLE grows the schema by the implicit reconciliation column
	// before it reaches any replica.
	if q.Kind == query.KindCreateTable && q.Schema != nil {
		q.Schema.AddColumn(schema.LastUpdateColumn, schema.Timestamp)
	}

	replicas, err := c.replicasFor(q)
	if err != nil {
		return nil, err
	}

	// Stamp the write time (or request it back for reads) so replicas can
	// be reconciled later. The projection is resolved to concrete column
	// names first, so "*" never leaks into replies or repair statements.
	now := time.Now().UTC().Format(time.RFC3339)
	switch q.Kind {
	case query.KindInsert, query.KindUpdate:
		q.SetColumn(schema.LastUpdateColumn, now)
	case query.KindSelect:
		s, err := c.cat.Schema(c.keyspace, q.Table)
		if err != nil {
			return nil, err
		}
		cols, err := query.ExpandProjection(q.Columns, s)
		if err != nil {
			return nil, err
		}
		q.Columns = cols
		q.SetColumn(schema.LastUpdateColumn, "")
	}

	responses := c.fanOut(replicas, q)

	acks := 0
	for _, resp := range responses {
		if resp.ok {
			acks++
		}
	}
	if acks < cl.Required(ring.ReplicationFactor) {
		// A local executor error (an existing table, an unknown column) is
		// returned as is so the client sees the specific error frame.
		for _, resp := range responses {
			if resp.err != nil {
				return nil, resp.err
			}
		}
		return nil, fmt.Errorf("%w: got %d of %d", ErrNotEnoughReplicas, acks, cl.Required(ring.ReplicationFactor))
	}

	if q.Kind != query.KindSelect {
		return &Result{}, nil
	}

	var rowSets [][][]string
	var contributors []int
	for i, resp := range responses {
		if resp.ok && resp.hasRows {
			rowSets = append(rowSets, resp.rows)
			contributors = append(contributors, i)
		}
	}

	winner := reconcile(cl, rowSets)

	if len(winner) > 0 {
		go c.readRepair(q, replicas, contributors, responses, winner)
	}

	columns, rows := stripLastUpdate(q.Columns, winner)
	return &Result{HasRows: true, Columns: columns, Rows: rows}, nil
}

// replicasFor resolves the replica set: every node for DDL, otherwise the
// three ring nodes owning the routing key.
func (c *Coordinator) replicasFor(q *query.Query) ([]types.Node, error) {
	if q.IsDDL() {
		return c.part.AllNodes(), nil
	}

	s, err := c.cat.Schema(c.keyspace, q.Table)
	if err != nil {
		return nil, err
	}

	provided := make(map[string]string)
	for _, kv := range q.Keys() {
		provided[kv.Column] = kv.Value
	}

	// Every partition and clustering column must be pinned; the routing
	// key is the partition values concatenated in schema order.
	for _, col := range s.PrimaryKeyColumns() {
		if _, ok := provided[col]; !ok {
			return nil, ErrMissingPrimaryKey
		}
	}
	var key strings.Builder
	for _, col := range s.PartitionKey {
		key.WriteString(provided[col])
	}

	return c.part.ReplicasFor(key.String())
}

// fanOut dispatches the query to every replica in parallel: locally when
// the replica is this node, over the internode protocol otherwise.
func (c *Coordinator) fanOut(replicas []types.Node, q *query.Query) []replicaResponse {
	responses := make([]replicaResponse, len(replicas))
	var wg sync.WaitGroup

	for i, replica := range replicas {
		wg.Add(1)
		go func(i int, replica types.Node) {
			defer wg.Done()
			if c.part.IsSelf(replica) {
				responses[i] = c.executeLocal(q)
				return
			}
			responses[i] = c.forward(replica, q)
		}(i, replica)
	}

	wg.Wait()
	return responses
}

// ExecuteLocal runs the query against this node's table store only. The
// internode listener uses it to serve forwarded queries.
func (c *Coordinator) ExecuteLocal(keyspace string, q *query.Query) ([][]string, bool, error) {
	return q.Process(c.cat, keyspace)
}

func (c *Coordinator) executeLocal(q *query.Query) replicaResponse {
	rows, hasRows, err := q.Process(c.cat, c.keyspace)
	if err != nil {
		c.log.WithFields(logrus.Fields{"table": q.Table}).WithError(err).Warn("local execution failed")
		return replicaResponse{err: err}
	}
	return replicaResponse{ok: true, hasRows: hasRows, rows: rows}
}

// forward sends the query to a remote replica and waits for its Result
// frame. A failed forward of a non-SELECT query leaves a hint so the
// replica converges once it returns.
func (c *Coordinator) forward(replica types.Node, q *query.Query) replicaResponse {
	resp, err := c.send(replica, q)
	if err != nil {
		metrics.ReplicaFailures.Inc()
		c.log.WithFields(logrus.Fields{"peer": replica.IPAddress}).WithError(err).Warn("replica forward failed")
		if q.IsWrite() && c.hints != nil {
			if hintErr := c.hints.Add(replica.IPAddress, q.Raw); hintErr != nil {
				c.log.WithFields(logrus.Fields{"peer": replica.IPAddress}).WithError(hintErr).Error("failed to record hint")
			}
		}
		return replicaResponse{}
	}
	return resp
}

func (c *Coordinator) send(replica types.Node, q *query.Query) (replicaResponse, error) {
	conn, err := net.DialTimeout("tcp", replica.InternodeAddr(), forwardDialTimeout)
	if err != nil {
		return replicaResponse{}, err
	}
	defer conn.Close()

	body := &internode.QueryBody{Keyspace: c.keyspace, Query: q}
	if err := internode.WriteFrame(conn, internode.FrameQuery, body); err != nil {
		return replicaResponse{}, err
	}

	frameType, respBody, err := internode.ReadFrame(conn)
	if err != nil {
		return replicaResponse{}, err
	}
	result, ok := respBody.(*internode.ResultBody)
	if frameType != internode.FrameResult || !ok {
		return replicaResponse{}, fmt.Errorf("unexpected frame %s from replica", frameType)
	}
	return replicaResponse{ok: true, hasRows: result.HasRows, rows: result.Rows}, nil
}

// stripLastUpdate removes the trailing internal column from the projection
// and every row before the reply goes back to the client.
func stripLastUpdate(columns []string, rows [][]string) ([]string, [][]string) {
	outCols := columns
	if n := len(columns); n > 0 && columns[n-1] == schema.LastUpdateColumn {
		outCols = columns[:n-1]
	}
	outRows := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) > len(outCols) {
			outRows[i] = row[:len(outCols)]
		} else {
			outRows[i] = row
		}
	}
	return outCols, outRows
}
