// Command sim runs many lamportnet nodes in one process on an in-memory
// overlay, lets them gossip for a while, then prints every clock and the
// topology the nodes observed together.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dinma-daniel/ipv8/internal/logging"
	"github.com/dinma-daniel/ipv8/internal/transport"
	"github.com/dinma-daniel/ipv8/pkg/gossip"
	"github.com/dinma-daniel/ipv8/pkg/node"
	"github.com/dinma-daniel/ipv8/pkg/topology"
)

type options struct {
	nodes    int
	fanout   int
	duration time.Duration
	interval time.Duration
	stagger  time.Duration
	format   string
	level    string
	shortIDs bool
}

func main() {
	var o options
	flag.IntVar(&o.nodes, "n", 100, "number of nodes")
	flag.IntVar(&o.fanout, "fanout", 20, "neighbours per node (0 = full mesh)")
	flag.DurationVar(&o.duration, "duration", 60*time.Second, "how long to run after the last node starts")
	flag.DurationVar(&o.interval, "interval", gossip.DefaultInterval, "start-up gossip interval")
	flag.DurationVar(&o.stagger, "stagger", 100*time.Millisecond, "delay between node starts")
	flag.StringVar(&o.format, "format", "text", "report format: text or dot")
	flag.StringVar(&o.level, "log", "warn", "log level")
	flag.BoolVar(&o.shortIDs, "short-ids", true, "name nodes n000.. instead of uuids")
	flag.Parse()

	logger, err := logging.NewDevelopment(o.level)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nodes, err := simulate(ctx, o, logger)
	if err != nil {
		log.Fatal(err)
	}
	if err := report(os.Stdout, o.format, nodes); err != nil {
		log.Fatal(err)
	}
}

func nodeID(i int, short bool) gossip.NodeID {
	if short {
		return gossip.NodeID(fmt.Sprintf("n%03d", i))
	}
	return gossip.NodeID(uuid.NewString())
}

// simulate starts the nodes with a stagger, runs until the duration elapses
// or ctx is cancelled, then stops every node. The exchange never ends on
// its own, so the duration is what bounds the run.
func simulate(ctx context.Context, o options, logger *zap.Logger) ([]*node.Node, error) {
	if o.nodes <= 0 {
		return nil, fmt.Errorf("need at least one node, got %d", o.nodes)
	}
	net := transport.NewNetwork(transport.WithFanout(o.fanout), transport.WithLogger(logger))
	cfg := gossip.SchedulerConfig{Interval: o.interval}

	nodes := make([]*node.Node, 0, o.nodes)
	defer func() {
		for _, n := range nodes {
			n.Stop()
		}
	}()

	for i := range o.nodes {
		tr := net.Join(nodeID(i, o.shortIDs))
		defer tr.Close()
		n := node.New(tr, node.WithLogger(logger), node.WithSchedulerConfig(cfg), node.WithLogCapacity(0))
		if err := n.Start(ctx); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)

		select {
		case <-ctx.Done():
			return nodes, nil
		case <-time.After(o.stagger):
		}
	}
	logger.Info("all nodes started", zap.Int("nodes", len(nodes)))

	select {
	case <-ctx.Done():
	case <-time.After(o.duration):
	}
	for _, n := range nodes {
		n.Stop()
	}
	return nodes, nil
}

func report(w io.Writer, format string, nodes []*node.Node) error {
	snaps := make([]topology.Snapshot, 0, len(nodes))
	for _, n := range nodes {
		snaps = append(snaps, n.TopologySnapshot())
	}
	union := topology.Union(snaps...)

	switch format {
	case "dot":
		_, err := io.WriteString(w, union.DOT())
		return err
	case "text":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	sorted := append([]*node.Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })
	for _, n := range sorted {
		fmt.Fprintf(w, "%s\tclock=%d\tstate=%s\tcontacts=%d\n",
			n.ID(), n.CurrentClock(), n.State(), len(n.TopologySnapshot().Edges))
	}
	fmt.Fprintf(w, "topology: %d vertices, %d edges\n", len(union.Vertices), len(union.Edges))
	return nil
}
