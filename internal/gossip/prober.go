package gossip

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ringdb/ringdb/internal/hints"
	"github.com/ringdb/ringdb/internal/wire/internode"
)

const (
	// Interval between gossip ticks.
	Interval = 5 * time.Second
	// Fanout is how many random peers each tick probes.
	Fanout = 3
	// AckTimeout bounds the wait for an ACK after a SYN.
	AckTimeout = 3 * time.Second
)

// Prober runs the periodic gossip tick: bump own heartbeat, probe up to
// three random peers in parallel, join the probes, sleep.
type Prober struct {
	manager *Manager
	hints   *hints.Store
	log     *logrus.Entry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewProber wires the prober to the peer table and the hint store it
// flushes after successful exchanges.
func NewProber(manager *Manager, hintStore *hints.Store, log *logrus.Entry) *Prober {
	return &Prober{
		manager: manager,
		hints:   hintStore,
		log:     log,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the gossip loop.
func (g *Prober) Start() {
	g.wg.Add(1)
	go g.loop()
}

// Stop terminates the gossip loop and waits for it.
func (g *Prober) Stop() {
	close(g.stopCh)
	g.wg.Wait()
}

func (g *Prober) loop() {
	defer g.wg.Done()

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *Prober) tick() {
	g.manager.IncrementHeartbeat()

	ids := g.manager.PeerIDs()
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > Fanout {
		ids = ids[:Fanout]
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			g.probe(id)
		}(id)
	}
	wg.Wait()
}

// probe sends one SYN and consumes the ACK. Any failure along the way marks
// the peer dead; a completed exchange marks it alive and triggers a hint
// flush.
func (g *Prober) probe(id string) {
	addr, ok := g.manager.Addr(id)
	if !ok {
		return
	}
	log := g.log.WithFields(logrus.Fields{"peer": id})

	self := g.manager.SelfSnapshot()
	syn := &internode.SynBody{
		Sender:     self.ID,
		IP:         self.IP,
		Port:       self.Port,
		Heartbeat:  self.LastHeartbeat,
		KnownPeers: g.manager.Snapshot(),
	}

	conn, err := net.DialTimeout("tcp", addr, AckTimeout)
	if err != nil {
		log.WithError(err).Debug("gossip connect failed")
		g.manager.MarkDead(id)
		return
	}
	defer conn.Close()

	if err := internode.WriteFrame(conn, internode.FrameSyn, syn); err != nil {
		log.WithError(err).Debug("gossip send failed")
		g.manager.MarkDead(id)
		return
	}

	if err := conn.SetReadDeadline(time.Now().Add(AckTimeout)); err != nil {
		g.manager.MarkDead(id)
		return
	}
	frameType, body, err := internode.ReadFrame(conn)
	if err != nil {
		log.WithError(err).Debug("gossip ack read failed")
		g.manager.MarkDead(id)
		return
	}
	ack, ok := body.(*internode.AckBody)
	if frameType != internode.FrameAck || !ok {
		log.WithFields(logrus.Fields{"frame": frameType.String()}).Warn("unexpected gossip reply")
		g.manager.MarkDead(id)
		return
	}

	g.manager.MarkAlive(id, ack.Heartbeat)
	for _, update := range ack.UpdatePeers {
		g.manager.Apply(update)
	}

	if g.hints != nil && g.hints.Has(id) {
		if err := g.hints.Flush(id, addr); err != nil {
			log.WithError(err).Warn("hint flush failed")
		}
	}
}
