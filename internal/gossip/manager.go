// Package gossip disseminates cluster membership and liveness through
// periodic SYN/ACK exchanges with random peers.
package gossip

import (
	"fmt"
	"sync"

	"github.com/ringdb/ringdb/internal/metrics"
	"github.com/ringdb/ringdb/internal/wire/internode"
	"github.com/ringdb/ringdb/pkg/types"
)

// Peer is the runtime view of another node. Peers are identified by ip;
// Port is the peer's internode port.
type Peer struct {
	mu            sync.RWMutex
	ID            string
	IP            string
	Port          int
	LastHeartbeat uint64
	Alive         bool
}

func (p *Peer) snapshot() internode.Peer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return internode.Peer{
		ID:            p.ID,
		IP:            p.IP,
		Port:          p.Port,
		LastHeartbeat: p.LastHeartbeat,
		Alive:         p.Alive,
	}
}

// Manager owns the peer table and this node's own gossip state. Lock
// ordering is the manager lock before any per-peer lock.
type Manager struct {
	mu    sync.RWMutex
	self  *Peer
	peers map[string]*Peer
}

// NewManager seeds the peer table from the ring minus self. All peers start
// unseen: not alive, heartbeat zero.
func NewManager(self types.Node, ringNodes []types.Node) *Manager {
	peers := make(map[string]*Peer)
	for _, n := range ringNodes {
		if n.IPAddress == self.IPAddress {
			continue
		}
		peers[n.IPAddress] = &Peer{
			ID:   n.IPAddress,
			IP:   n.IPAddress,
			Port: n.Port + 1,
		}
	}
	return &Manager{
		self: &Peer{
			ID:    self.IPAddress,
			IP:    self.IPAddress,
			Port:  self.Port + 1,
			Alive: true,
		},
		peers: peers,
	}
}

// IncrementHeartbeat bumps this node's own heartbeat; called once per
// gossip tick.
func (m *Manager) IncrementHeartbeat() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.self.mu.Lock()
	defer m.self.mu.Unlock()
	m.self.LastHeartbeat++
	return m.self.LastHeartbeat
}

// SelfSnapshot returns this node's current gossip state.
func (m *Manager) SelfSnapshot() internode.Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.self.snapshot()
}

// Snapshot returns the current view of every known peer.
func (m *Manager) Snapshot() []internode.Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]internode.Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p.snapshot())
	}
	return out
}

// PeerIDs returns the ids of every known peer.
func (m *Manager) PeerIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	return ids
}

// Addr returns the internode address of a peer.
func (m *Manager) Addr(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[id]
	if !ok {
		return "", false
	}
	snap := p.snapshot()
	return fmt.Sprintf("%s:%d", snap.IP, snap.Port), true
}

// MarkAlive records a successful exchange with the peer and updates its
// heartbeat.
func (m *Manager) MarkAlive(id string, heartbeat uint64) {
	m.mu.RLock()
	p, ok := m.peers[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	p.mu.Lock()
	p.Alive = true
	p.LastHeartbeat = heartbeat
	p.mu.Unlock()
	m.updateAliveGauge()
}

// MarkDead records a failed probe of the peer.
func (m *Manager) MarkDead(id string) {
	m.mu.RLock()
	p, ok := m.peers[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	p.mu.Lock()
	p.Alive = false
	p.mu.Unlock()
	m.updateAliveGauge()
}

// IsAlive reports the current liveness belief for the peer.
func (m *Manager) IsAlive(id string) bool {
	m.mu.RLock()
	p, ok := m.peers[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Alive
}

// Apply merges a gossiped peer record. Unknown peers are adopted; known
// peers only move forward: a record with an older heartbeat is ignored, so
// stale ACKs cannot regress state. Records about this node itself are
// dropped.
func (m *Manager) Apply(update internode.Peer) {
	m.mu.RLock()
	if update.ID == m.self.ID {
		m.mu.RUnlock()
		return
	}
	p, ok := m.peers[update.ID]
	m.mu.RUnlock()

	if ok {
		p.mu.Lock()
		if update.LastHeartbeat > p.LastHeartbeat {
			p.LastHeartbeat = update.LastHeartbeat
			p.Alive = update.Alive
		}
		p.mu.Unlock()
		m.updateAliveGauge()
		return
	}

	m.mu.Lock()
	if _, ok := m.peers[update.ID]; !ok {
		m.peers[update.ID] = &Peer{
			ID:            update.ID,
			IP:            update.IP,
			Port:          update.Port,
			LastHeartbeat: update.LastHeartbeat,
			Alive:         update.Alive,
		}
	}
	m.mu.Unlock()
	m.updateAliveGauge()
}

func (m *Manager) updateAliveGauge() {
	alive := 0
	for _, p := range m.Snapshot() {
		if p.Alive {
			alive++
		}
	}
	metrics.PeersAlive.Set(float64(alive))
}
