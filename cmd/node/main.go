package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dinma-daniel/ipv8/discovery"
	"github.com/dinma-daniel/ipv8/internal/config"
	"github.com/dinma-daniel/ipv8/internal/logging"
	"github.com/dinma-daniel/ipv8/internal/telemetry"
	"github.com/dinma-daniel/ipv8/internal/transport"
	"github.com/dinma-daniel/ipv8/pkg/gossip"
	"github.com/dinma-daniel/ipv8/pkg/node"
)

var (
	version = "dev"
	gitSHA  = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("node exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry.SetBuildInfo(version, gitSHA)
	self := gossip.NodeID(cfg.NodeID)
	logger = logger.With(zap.String("self", cfg.NodeID))

	// 1. Transport and the peer view it dials from
	peers := gossip.NewPeerSet(self)
	for _, p := range cfg.StaticPeers {
		peers.Set(gossip.NodeID(p.ID), node.NormalizeHostPort(p.Addr, "7000"))
	}
	tr, err := transport.NewQUIC(self, cfg.ListenAddr, peers, logger)
	if err != nil {
		return err
	}
	defer tr.Close()
	if err := tr.Bind(); err != nil {
		return err
	}

	// 2. Register with etcd and follow the registry
	if len(cfg.EtcdEndpoints) > 0 {
		logger.Info("creating etcd client", zap.Strings("endpoints", cfg.EtcdEndpoints))
		cli, err := discovery.NewClient(cfg.EtcdEndpoints)
		if err != nil {
			return fmt.Errorf("etcd client: %w", err)
		}
		defer cli.Close()

		leaseID, cancel, err := discovery.RegisterNode(ctx, cli, cfg.NodeID, tr.Addr(), cfg.LeaseTTL)
		if err != nil {
			return err
		}
		defer func() {
			cancel()
			rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer rcancel()
			_, _ = cli.Revoke(rctx, leaseID)
		}()

		static := peers.IDs()
		err = discovery.WatchPeers(ctx, cli, logger, func(found map[string]string) {
			next := make(map[gossip.NodeID]string, len(found)+len(static))
			for _, id := range static {
				if addr, ok := peers.Addr(id); ok {
					next[id] = addr
				}
			}
			for id, addr := range found {
				next[gossip.NodeID(id)] = node.NormalizeHostPort(addr, "7000")
			}
			peers.Replace(next)
			logger.Info("peers updated", zap.Int("count", peers.Len()))
		})
		if err != nil {
			return err
		}
	}

	// 3. Node
	n := node.New(tr,
		node.WithLogger(logger),
		node.WithSchedulerConfig(cfg.Scheduler()),
		node.WithLogCapacity(cfg.LogCapacity),
	)
	if err := n.Start(ctx); err != nil {
		return err
	}
	defer n.Stop()

	// 4. Reporting endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", n.Healthz)
	mux.Handle("/info", telemetry.Instrument("info", http.HandlerFunc(n.Info)))
	mux.Handle("/topology", telemetry.Instrument("topology", http.HandlerFunc(n.Topology)))
	mux.Handle("/messages", telemetry.Instrument("messages", http.HandlerFunc(n.MessagesHandler)))
	mux.Handle("/metrics", telemetry.MetricsHandler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	errc := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
