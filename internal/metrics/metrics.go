// Package metrics registers the node's Prometheus collectors. They are
// exposed on the admin server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts coordinated client queries by statement kind.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ringdb_queries_total",
		Help: "Client queries coordinated by this node, by statement kind.",
	}, []string{"statement"})

	// ReplicaFailures counts failed replica forwards.
	ReplicaFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringdb_replica_failures_total",
		Help: "Replica forwards that failed to connect or respond.",
	})

	// ReadRepairs counts read-repair rounds issued after divergent reads.
	ReadRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringdb_read_repairs_total",
		Help: "Read repair rounds issued after divergent reads.",
	})

	// HintsWritten counts hinted-handoff entries recorded for unreachable
	// peers.
	HintsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringdb_hints_written_total",
		Help: "Hinted handoff entries recorded for unreachable peers.",
	})

	// HintsFlushed counts hint files successfully replayed to revived
	// peers.
	HintsFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ringdb_hints_flushed_total",
		Help: "Hint files successfully replayed to revived peers.",
	})

	// PeersAlive tracks how many peers gossip currently believes are
	// reachable.
	PeersAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ringdb_peers_alive",
		Help: "Peers currently considered alive by gossip.",
	})
)
