// Package server owns the node's two TCP listeners: the client-facing CQL
// listener on port P and the internode listener on port P+1. Each accepted
// connection is handled by its own goroutine.
package server

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ringdb/ringdb/internal/coordinator"
	"github.com/ringdb/ringdb/internal/gossip"
	"github.com/ringdb/ringdb/internal/hints"
	"github.com/ringdb/ringdb/internal/storage"
	"github.com/ringdb/ringdb/pkg/types"
)

// Server accepts client and peer connections for one node.
type Server struct {
	self  types.Node
	coord *coordinator.Coordinator
	cat   *storage.Catalogue
	gm    *gossip.Manager
	hints *hints.Store
	log   *logrus.Entry

	clientLn    net.Listener
	internodeLn net.Listener
	wg          sync.WaitGroup
	stopped     bool
	mu          sync.Mutex
}

// New builds a server for the given node identity.
func New(self types.Node, coord *coordinator.Coordinator, cat *storage.Catalogue, gm *gossip.Manager, hintStore *hints.Store, log *logrus.Entry) *Server {
	return &Server{
		self:  self,
		coord: coord,
		cat:   cat,
		gm:    gm,
		hints: hintStore,
		log:   log,
	}
}

// Start binds both listeners and launches their accept loops.
func (s *Server) Start() error {
	clientLn, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", s.self.Port))
	if err != nil {
		return fmt.Errorf("failed to bind client listener: %w", err)
	}
	internodeLn, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", s.self.Port+1))
	if err != nil {
		clientLn.Close()
		return fmt.Errorf("failed to bind internode listener: %w", err)
	}
	s.clientLn = clientLn
	s.internodeLn = internodeLn

	s.log.WithFields(logrus.Fields{
		"client":    clientLn.Addr().String(),
		"internode": internodeLn.Addr().String(),
	}).Info("listeners started")

	s.wg.Add(2)
	go s.acceptLoop(clientLn, s.handleClient)
	go s.acceptLoop(internodeLn, s.handleInternode)
	return nil
}

// Stop closes both listeners and waits for the accept loops. In-flight
// connection handlers run to completion.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	if s.clientLn != nil {
		s.clientLn.Close()
	}
	if s.internodeLn != nil {
		s.internodeLn.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop(ln net.Listener, handle func(net.Conn)) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
			s.log.WithError(err).Warn("accept failed")
			continue
		}
		go handle(conn)
	}
}
