package ring

import (
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/ringdb/ringdb/pkg/types"
)

// ReplicationFactor is the number of consecutive ring nodes that own a row.
const ReplicationFactor = 3

// Partitioner maps partition keys to the ordered list of replica nodes.
// The ring is loaded once at startup and is immutable for the process
// lifetime, so every coordinator computes the same replica set for a key.
type Partitioner struct {
	ring []types.Node
	self types.Node
}

// New builds a partitioner from the validated ring configuration,
// identifying the self node by its ip address.
func New(nodes []types.Node, selfIP string) (*Partitioner, error) {
	ring := make([]types.Node, len(nodes))
	copy(ring, nodes)

	for _, n := range ring {
		if n.IPAddress == selfIP {
			return &Partitioner{ring: ring, self: n}, nil
		}
	}
	return nil, fmt.Errorf("node %s is not part of the ring", selfIP)
}

// Hash computes the ring position of a key: the low 64 bits of the
// 128-bit x64 Murmur3 hash (seed 0), reinterpreted as signed.
func Hash(key string) int64 {
	h1, _ := murmur3.Sum128([]byte(key))
	return int64(h1)
}

// Owner returns the node whose token range contains the key's hash.
func (p *Partitioner) Owner(key string) (types.Node, error) {
	h := Hash(key)
	for _, n := range p.ring {
		if n.TokenRange.Contains(h) {
			return n, nil
		}
	}
	return types.Node{}, fmt.Errorf("node not found for hash %d", h)
}

// ReplicasFor returns the owner of the key followed by its successors on
// the ring, wrapping, up to the replication factor.
func (p *Partitioner) ReplicasFor(key string) ([]types.Node, error) {
	h := Hash(key)
	start := -1
	for i, n := range p.ring {
		if n.TokenRange.Contains(h) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("node not found for hash %d", h)
	}

	count := ReplicationFactor
	if count > len(p.ring) {
		count = len(p.ring)
	}
	replicas := make([]types.Node, 0, count)
	for i := 0; i < count; i++ {
		replicas = append(replicas, p.ring[(start+i)%len(p.ring)])
	}
	return replicas, nil
}

// AllNodes returns every node of the ring in ring order. DDL statements fan
// out to all of them.
func (p *Partitioner) AllNodes() []types.Node {
	nodes := make([]types.Node, len(p.ring))
	copy(nodes, p.ring)
	return nodes
}

// Self returns the ring entry for this node.
func (p *Partitioner) Self() types.Node {
	return p.self
}

// IsSelf reports whether the given replica is this node.
func (p *Partitioner) IsSelf(n types.Node) bool {
	return p.self.Equal(n)
}
