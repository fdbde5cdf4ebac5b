// Package admin exposes the node's operational HTTP surface: health,
// status, ring and gossip views, and Prometheus metrics.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ringdb/ringdb/internal/gossip"
	"github.com/ringdb/ringdb/internal/ring"
	"github.com/ringdb/ringdb/internal/storage"
	"github.com/ringdb/ringdb/pkg/types"
)

// Server is the admin HTTP server.
type Server struct {
	self       types.Node
	keyspace   string
	part       *ring.Partitioner
	cat        *storage.Catalogue
	gm         *gossip.Manager
	log        *logrus.Entry
	router     *mux.Router
	httpServer *http.Server
	startTime  time.Time
}

// New builds the admin server and its routes.
func New(self types.Node, keyspace string, part *ring.Partitioner, cat *storage.Catalogue, gm *gossip.Manager, log *logrus.Entry) *Server {
	s := &Server{
		self:      self,
		keyspace:  keyspace,
		part:      part,
		cat:       cat,
		gm:        gm,
		log:       log,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(loggingMiddleware(s.log))
	s.router.Use(recoveryMiddleware(s.log))
	s.router.Use(rateLimitMiddleware())

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/admin/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/admin/ring", s.handleRing).Methods("GET")
	s.router.HandleFunc("/admin/peers", s.handlePeers).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Start serves the admin API on the given port.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.log.WithFields(logrus.Fields{"addr": s.httpServer.Addr}).Info("admin server started")
	return s.httpServer.ListenAndServe()
}

// Stop shuts the admin server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the mux router (for testing).
func (s *Server) Router() *mux.Router {
	return s.router
}

type statusResponse struct {
	Node     string   `json:"node"`
	Keyspace string   `json:"keyspace"`
	Tables   []string `json:"tables"`
	Uptime   string   `json:"uptime"`
}

type ringEntry struct {
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	Self      bool   `json:"self"`
}

type peerEntry struct {
	IP            string `json:"ip"`
	Port          int    `json:"port"`
	LastHeartbeat uint64 `json:"last_heartbeat"`
	Alive         bool   `json:"alive"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"node":   s.self.IPAddress,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Node:     s.self.Addr(),
		Keyspace: s.keyspace,
		Tables:   s.cat.Tables(s.keyspace),
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleRing(w http.ResponseWriter, r *http.Request) {
	nodes := s.part.AllNodes()
	entries := make([]ringEntry, len(nodes))
	for i, n := range nodes {
		entries[i] = ringEntry{
			IPAddress: n.IPAddress,
			Port:      n.Port,
			Start:     n.TokenRange.Start,
			End:       n.TokenRange.End,
			Self:      s.part.IsSelf(n),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nodes": entries,
		"count": len(entries),
	})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	peers := s.gm.Snapshot()
	entries := make([]peerEntry, len(peers))
	for i, p := range peers {
		entries[i] = peerEntry{
			IP:            p.IP,
			Port:          p.Port,
			LastHeartbeat: p.LastHeartbeat,
			Alive:         p.Alive,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"peers": entries,
		"count": len(entries),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
