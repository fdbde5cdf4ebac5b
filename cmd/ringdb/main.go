package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ringdb/ringdb/internal/admin"
	"github.com/ringdb/ringdb/internal/config"
	"github.com/ringdb/ringdb/internal/coordinator"
	"github.com/ringdb/ringdb/internal/gossip"
	"github.com/ringdb/ringdb/internal/hints"
	"github.com/ringdb/ringdb/internal/ring"
	"github.com/ringdb/ringdb/internal/schema"
	"github.com/ringdb/ringdb/internal/server"
	"github.com/ringdb/ringdb/internal/storage"
)

var (
	nodeIP    string
	keyspace  string
	dataDir   string
	adminPort int
)

func main() {
	root := &cobra.Command{
		Use:          "ringdb",
		Short:        "A replicated wide-column database node",
		SilenceUsage: true,
		RunE:         run,
	}

	root.Flags().StringVarP(&nodeIP, "node", "n", "", "ip address of this node in cassandra.json (required)")
	root.Flags().StringVarP(&keyspace, "keyspace", "k", "app", "keyspace served by this node")
	root.Flags().StringVar(&dataDir, "data-dir", "./data", "data directory")
	root.Flags().IntVar(&adminPort, "admin-port", -1, "admin HTTP port (default: node port + 2, 0 disables)")
	root.MarkFlagRequired("node")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logger.WithFields(logrus.Fields{"node": nodeIP})

	cfg, err := config.LoadFromFile(config.ConfigFileName)
	if err != nil {
		return err
	}
	self, err := cfg.SelfNode(nodeIP)
	if err != nil {
		return err
	}
	part, err := ring.New(cfg.Nodes, nodeIP)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"port":        self.Port,
		"token_start": self.TokenRange.Start,
		"token_end":   self.TokenRange.End,
		"ring_size":   len(cfg.Nodes),
	}).Info("node configured")

	cat, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	if err := cat.EnsureKeyspace(keyspace, schema.DefaultOptions()); err != nil {
		return err
	}

	hintStore, err := hints.NewStore(dataDir, keyspace, log)
	if err != nil {
		return err
	}

	gm := gossip.NewManager(self, cfg.Nodes)
	prober := gossip.NewProber(gm, hintStore, log)

	coord := coordinator.New(part, cat, hintStore, keyspace, log)
	srv := server.New(self, coord, cat, gm, hintStore, log)
	if err := srv.Start(); err != nil {
		return err
	}
	prober.Start()

	var adminSrv *admin.Server
	port := adminPort
	if port < 0 {
		port = self.Port + 2
	}
	if port > 0 {
		adminSrv = admin.New(self, keyspace, part, cat, gm, log)
		go func() {
			if err := adminSrv.Start(port); err != nil {
				log.WithError(err).Warn("admin server stopped")
			}
		}()
	}

	log.Info("node is ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	prober.Stop()
	srv.Stop()
	if adminSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := adminSrv.Stop(ctx); err != nil {
			log.WithError(err).Warn("admin shutdown failed")
		}
	}
	fmt.Fprintln(os.Stderr, "shutdown complete")
	return nil
}
