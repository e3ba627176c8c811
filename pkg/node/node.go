package node

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dinma-daniel/ipv8/internal/telemetry"
	"github.com/dinma-daniel/ipv8/pkg/clock"
	"github.com/dinma-daniel/ipv8/pkg/gossip"
	"github.com/dinma-daniel/ipv8/pkg/msglog"
	"github.com/dinma-daniel/ipv8/pkg/topology"
)

const DefaultLogCapacity = 1024

var ErrAlreadyStarted = errors.New("node: already started")

// Node is one peer of the overlay. It owns its clock, its contact graph and
// its start-up gossip task; nothing is shared between nodes except what
// travels over the transport.
type Node struct {
	id  gossip.NodeID
	tr  gossip.Transport
	log *zap.Logger

	// held across merge + graph update so both move together
	mu    sync.Mutex
	clock clock.Clock
	graph *topology.Graph
	msgs  *msglog.Log

	bcast    *gossip.Broadcaster
	sched    *gossip.Scheduler
	schedCfg gossip.SchedulerConfig

	started atomic.Bool
	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

type Option func(*Node)

func WithLogger(l *zap.Logger) Option {
	return func(n *Node) {
		if l != nil {
			n.log = l
		}
	}
}

func WithSchedulerConfig(cfg gossip.SchedulerConfig) Option {
	return func(n *Node) { n.schedCfg = cfg }
}

// WithLogCapacity bounds the exchange log; zero disables it.
func WithLogCapacity(capacity int) Option {
	return func(n *Node) { n.msgs = msglog.New(capacity) }
}

func New(tr gossip.Transport, opts ...Option) *Node {
	n := &Node{
		id:       tr.Self(),
		tr:       tr,
		log:      zap.NewNop(),
		graph:    topology.New(),
		msgs:     msglog.New(DefaultLogCapacity),
		schedCfg: gossip.DefaultSchedulerConfig(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.Named("node").With(zap.String("id", string(n.id)))
	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.graph.AddVertex(string(n.id))

	n.bcast = gossip.NewBroadcaster(tr.Peers, n.gossipSend, &n.clock, n.log)
	n.sched = gossip.NewScheduler(gossip.StartTaskName, n.schedCfg, n.bcast.Fire, n.log)
	return n
}

// Start hooks the node to its transport and arms the start-up gossip task.
func (n *Node) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	n.tr.Listen(n.OnReceive)
	n.sched.Start(ctx)
	n.log.Info("node started",
		zap.Duration("interval", n.schedCfg.Interval),
		zap.Duration("delay", n.schedCfg.Delay))
	return nil
}

// Stop halts the gossip task and stops accepting messages. Messages already
// in flight are not drained. Calling Stop more than once is harmless.
func (n *Node) Stop() {
	if !n.stopped.CompareAndSwap(false, true) {
		return
	}
	n.sched.Stop()
	n.cancel()
	n.log.Info("node stopped", zap.Int64("clock", n.clock.Current()))
}

// OnReceive handles one clock value from a peer: merge it, record the
// contact, then answer with the new clock. The reply is sent after the
// state update is complete and its failure changes nothing.
func (n *Node) OnReceive(from gossip.NodeID, remote int64) {
	if n.stopped.Load() {
		telemetry.MessagesDropped.Inc()
		return
	}

	n.mu.Lock()
	c := n.clock.Merge(remote)
	n.graph.RecordContact(string(n.id), string(from))
	n.msgs.Append(msglog.Entry{Dir: msglog.Recv, Peer: string(from), Clock: remote})
	edges := n.graph.EdgeCount()
	n.mu.Unlock()

	telemetry.MessagesReceived.Inc()
	telemetry.ClockValue.WithLabelValues(string(n.id)).Set(float64(c))
	telemetry.TopologyEdges.WithLabelValues(string(n.id)).Set(float64(edges))

	if n.bcast.Activate() {
		n.sched.Cancel()
	}
	n.log.Debug("current clock", zap.String("from", string(from)), zap.Int64("remote", remote), zap.Int64("clock", c))

	_ = n.send(n.ctx, from, c, telemetry.KindReply)
}

func (n *Node) gossipSend(ctx context.Context, to gossip.NodeID, c int64) error {
	return n.send(ctx, to, c, telemetry.KindGossip)
}

func (n *Node) send(ctx context.Context, to gossip.NodeID, c int64, kind string) error {
	err := n.tr.Send(ctx, to, c)
	telemetry.ObserveSend(kind, err)
	if err != nil {
		n.log.Debug("send failed", zap.String("peer", string(to)), zap.String("kind", kind), zap.Error(err))
		return err
	}
	n.msgs.Append(msglog.Entry{Dir: msglog.Send, Peer: string(to), Clock: c})
	return nil
}

func (n *Node) ID() gossip.NodeID { return n.id }

func (n *Node) CurrentClock() int64 { return n.clock.Current() }

func (n *Node) TopologySnapshot() topology.Snapshot { return n.graph.Snapshot() }

// Messages returns the recent exchange log, oldest first.
func (n *Node) Messages() []msglog.Entry { return n.msgs.Entries() }

func (n *Node) State() gossip.State { return n.bcast.State() }

// GossipFires reports how many times the start-up task has run.
func (n *Node) GossipFires() int { return n.sched.Fires() }

func (n *Node) Peers() []gossip.NodeID { return n.tr.Peers() }
