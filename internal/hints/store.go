// Package hints implements hinted handoff: writes owed to an unreachable
// peer are appended to a per-peer text file and replayed, in order, once
// gossip observes the peer alive again.
package hints

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ringdb/ringdb/internal/metrics"
	"github.com/ringdb/ringdb/internal/query"
	"github.com/ringdb/ringdb/internal/wire/internode"
)

const dialTimeout = 3 * time.Second

// Store owns the hints directory. One file per unreachable peer, one CQL
// statement per line, append order preserved.
type Store struct {
	mu       sync.Mutex
	dir      string
	keyspace string
	log      *logrus.Entry
}

// NewStore creates the hints directory under the node's data dir. Replayed
// queries execute against the given keyspace on the revived peer.
func NewStore(dataDir, keyspace string, log *logrus.Entry) (*Store, error) {
	dir := filepath.Join(dataDir, "hints")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create hints directory: %w", err)
	}
	return &Store{dir: dir, keyspace: keyspace, log: log}, nil
}

func (s *Store) path(peerIP string) string {
	return filepath.Join(s.dir, peerIP+".txt")
}

// Add appends one statement to the peer's hint file.
func (s *Store) Add(peerIP, statement string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(peerIP), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open hints file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, statement); err != nil {
		return fmt.Errorf("failed to append hint: %w", err)
	}
	metrics.HintsWritten.Inc()
	s.log.WithFields(logrus.Fields{"peer": peerIP}).Info("recorded hint")
	return nil
}

// Has reports whether hints are pending for the peer.
func (s *Store) Has(peerIP string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.path(peerIP))
	return err == nil
}

// Flush replays the peer's pending hints as a single Hinted frame sent to
// its internode address. The file is deleted only after a successful send;
// on failure it stays in place for the next attempt.
func (s *Store) Flush(peerIP, internodeAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(peerIP)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open hints file: %w", err)
	}

	var queries []internode.QueryBody
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		q, err := query.Parse(line)
		if err != nil {
			s.log.WithFields(logrus.Fields{"peer": peerIP, "hint": line}).
				WithError(err).Warn("dropping unparsable hint")
			continue
		}
		queries = append(queries, internode.QueryBody{Keyspace: s.keyspace, Query: q})
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return scanErr
	}

	if len(queries) > 0 {
		conn, err := net.DialTimeout("tcp", internodeAddr, dialTimeout)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", internodeAddr, err)
		}
		defer conn.Close()

		if err := internode.WriteFrame(conn, internode.FrameHinted, &internode.HintedBody{Queries: queries}); err != nil {
			return fmt.Errorf("failed to send hints: %w", err)
		}
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove hints file: %w", err)
	}
	metrics.HintsFlushed.Inc()
	s.log.WithFields(logrus.Fields{"peer": peerIP, "hints": len(queries)}).Info("flushed hints")
	return nil
}
