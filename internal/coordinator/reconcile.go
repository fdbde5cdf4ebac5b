package coordinator

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ringdb/ringdb/internal/metrics"
	"github.com/ringdb/ringdb/internal/query"
	"github.com/ringdb/ringdb/internal/schema"
	"github.com/ringdb/ringdb/pkg/types"
)

// reconcile picks the winning row set among the successful SELECT
// responses. Levels that only need one answer take the first. Every other
// level short-circuits only when all responses agree; any divergence is
// settled per row by the trailing last_update column, so a single replica
// holding a fresher copy beats a stale majority.
func reconcile(cl types.ConsistencyLevel, responses [][][]string) [][]string {
	if len(responses) == 0 {
		return nil
	}

	switch cl {
	case types.ConsistencyAny, types.ConsistencyOne:
		return responses[0]
	default:
		for _, resp := range responses[1:] {
			if !rowSetsEqual(responses[0], resp) {
				return latestPerRow(responses)
			}
		}
		return responses[0]
	}
}

// latestPerRow picks, for each row index, the copy whose trailing
// last_update is the newest. RFC-3339 timestamps order lexicographically.
func latestPerRow(responses [][][]string) [][]string {
	rowCount := 0
	for _, resp := range responses {
		if len(resp) > rowCount {
			rowCount = len(resp)
		}
	}

	out := make([][]string, 0, rowCount)
	for i := 0; i < rowCount; i++ {
		var best []string
		for _, resp := range responses {
			if i >= len(resp) {
				continue
			}
			if best == nil || lastColumn(resp[i]) > lastColumn(best) {
				best = resp[i]
			}
		}
		if best != nil {
			out = append(out, best)
		}
	}
	return out
}

func lastColumn(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[len(row)-1]
}

func rowSetsEqual(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// readRepair pushes the winning values to every replica whose response is
// stale. It runs after the client reply; failures are logged and swallowed.
func (c *Coordinator) readRepair(q *query.Query, replicas []types.Node, contributors []int, responses []replicaResponse, winner [][]string) {
	keys := q.Keys()
	if len(keys) == 0 || len(q.Columns) == 0 {
		return
	}

	var whereParts []string
	for _, kv := range keys {
		whereParts = append(whereParts, fmt.Sprintf("%s = %s", kv.Column, kv.Value))
	}
	where := strings.Join(whereParts, " AND ")

	repaired := false
	for _, replicaIdx := range contributors {
		replica := replicas[replicaIdx]
		resp := responses[replicaIdx]

		for rowIdx, winning := range winner {
			if rowIdx < len(resp.rows) && lastColumn(resp.rows[rowIdx]) == lastColumn(winning) {
				continue
			}

			// The statement carries the user-visible columns; the winning
			// last_update travels on the parsed query so the replica ends
			// up with the exact timestamp that won, not a fresh one.
			var setParts []string
			for colIdx, col := range q.Columns {
				if colIdx >= len(winning) || col == schema.LastUpdateColumn {
					continue
				}
				setParts = append(setParts, fmt.Sprintf("%s = %s", col, winning[colIdx]))
			}
			if len(setParts) == 0 {
				continue
			}

			statement := fmt.Sprintf("UPDATE %s SET %s WHERE %s", q.Table, strings.Join(setParts, ", "), where)
			repair, err := query.Parse(statement)
			if err != nil {
				c.log.WithFields(logrus.Fields{"statement": statement}).WithError(err).Error("failed to build read repair query")
				return
			}
			repair.SetColumn(schema.LastUpdateColumn, lastColumn(winning))
			repaired = true

			log := c.log.WithFields(logrus.Fields{"peer": replica.IPAddress, "table": q.Table})
			if c.part.IsSelf(replica) {
				if _, _, err := repair.Process(c.cat, c.keyspace); err != nil {
					log.WithError(err).Warn("local read repair failed")
				}
				continue
			}
			if _, err := c.send(replica, repair); err != nil {
				log.WithError(err).Warn("read repair forward failed")
			}
		}
	}

	if repaired {
		metrics.ReadRepairs.Inc()
	}
}
