package server

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/ringdb/ringdb/internal/gossip"
	"github.com/ringdb/ringdb/internal/wire/internode"
)

// handleInternode serves one peer connection, dispatching on the frame
// type: forwarded queries, gossip SYNs and hinted-handoff batches.
func (s *Server) handleInternode(conn net.Conn) {
	defer conn.Close()

	log := s.log.WithFields(logrus.Fields{"remote": conn.RemoteAddr().String()})

	frameType, body, err := internode.ReadFrame(conn)
	if err != nil {
		log.WithError(err).Debug("failed to read internode frame")
		return
	}

	switch frameType {
	case internode.FrameQuery:
		q := body.(*internode.QueryBody)
		rows, hasRows, err := s.coord.ExecuteLocal(q.Keyspace, q.Query)
		if err != nil {
			log.WithFields(logrus.Fields{"table": q.Query.Table}).WithError(err).Warn("forwarded query failed")
			return
		}
		result := &internode.ResultBody{HasRows: hasRows, Rows: rows}
		if err := internode.WriteFrame(conn, internode.FrameResult, result); err != nil {
			log.WithError(err).Debug("failed to write result frame")
		}
	case internode.FrameSyn:
		gossip.HandleSyn(s.gm, s.hints, body.(*internode.SynBody), conn, s.log)
	case internode.FrameHinted:
		hinted := body.(*internode.HintedBody)
		for i := range hinted.Queries {
			q := hinted.Queries[i]
			if _, _, err := s.coord.ExecuteLocal(q.Keyspace, q.Query); err != nil {
				log.WithFields(logrus.Fields{"table": q.Query.Table}).WithError(err).Warn("hinted query failed")
			}
		}
		log.WithFields(logrus.Fields{"hints": len(hinted.Queries)}).Info("applied hinted handoff")
	default:
		log.WithFields(logrus.Fields{"frame": frameType.String()}).Warn("unexpected internode frame")
	}
}
