package gossip

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ringdb/ringdb/internal/hints"
	"github.com/ringdb/ringdb/internal/wire/internode"
)

// HandleSyn serves one incoming SYN: record the sender alive, merge its
// view of the cluster, answer with our heartbeat plus the peers the sender
// does not know, and flush any hints owed to it.
func HandleSyn(m *Manager, hintStore *hints.Store, syn *internode.SynBody, conn io.Writer, log *logrus.Entry) {
	m.Apply(internode.Peer{
		ID:            syn.Sender,
		IP:            syn.IP,
		Port:          syn.Port,
		LastHeartbeat: syn.Heartbeat,
		Alive:         true,
	})
	m.MarkAlive(syn.Sender, syn.Heartbeat)

	known := make(map[string]bool, len(syn.KnownPeers))
	for _, p := range syn.KnownPeers {
		known[p.ID] = true
	}

	var sendPeers []internode.Peer
	for _, p := range m.Snapshot() {
		if p.ID == syn.Sender || known[p.ID] {
			continue
		}
		sendPeers = append(sendPeers, p)
	}

	for _, p := range syn.KnownPeers {
		m.Apply(p)
	}

	ack := &internode.AckBody{
		Heartbeat:   m.SelfSnapshot().LastHeartbeat,
		UpdatePeers: sendPeers,
	}
	if err := internode.WriteFrame(conn, internode.FrameAck, ack); err != nil {
		log.WithFields(logrus.Fields{"peer": syn.Sender}).WithError(err).Warn("failed to send ack")
		return
	}

	if hintStore != nil && hintStore.Has(syn.Sender) {
		if addr, ok := m.Addr(syn.Sender); ok {
			if err := hintStore.Flush(syn.Sender, addr); err != nil {
				log.WithFields(logrus.Fields{"peer": syn.Sender}).WithError(err).Warn("hint flush failed")
			}
		}
	}
}
