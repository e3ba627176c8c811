package gossip

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dinma-daniel/ipv8/internal/telemetry"
)

// State is the cold-start state of a node's gossip.
type State int32

const (
	AwaitingFirstContact State = iota
	Active
)

func (s State) String() string {
	switch s {
	case AwaitingFirstContact:
		return "AWAITING_FIRST_CONTACT"
	case Active:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// ClockReader is the read side of a Lamport clock.
type ClockReader interface {
	Current() int64
}

// SendFunc delivers one clock value to one peer.
type SendFunc func(ctx context.Context, to NodeID, clock int64) error

// Broadcaster is the firing body of the start task: while the clock is
// still zero it sends the clock to every known peer, and once the clock has
// moved it switches to Active and asks the scheduler to stop.
type Broadcaster struct {
	peers func() []NodeID
	send  SendFunc
	clock ClockReader
	log   *zap.Logger
	state atomic.Int32
}

func NewBroadcaster(peers func() []NodeID, send SendFunc, clock ClockReader, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		peers: peers,
		send:  send,
		clock: clock,
		log:   logger,
	}
}

// Fire implements FireFunc.
func (b *Broadcaster) Fire(ctx context.Context) bool {
	if b.State() == Active {
		return false
	}
	c := b.clock.Current()
	if c != 0 {
		b.Activate()
		return false
	}

	peers := b.peers()
	telemetry.GossipFirings.Inc()
	b.log.Debug("broadcasting clock", zap.Int64("clock", c), zap.Int("peers", len(peers)))
	for _, p := range peers {
		// first contact can arrive mid-broadcast
		if b.State() == Active {
			return false
		}
		if err := b.send(ctx, p, c); err != nil {
			b.log.Debug("gossip send failed", zap.String("peer", string(p)), zap.Error(err))
		}
	}
	return true
}

// Activate moves to Active and reports whether this call made the change.
func (b *Broadcaster) Activate() bool {
	changed := b.state.CompareAndSwap(int32(AwaitingFirstContact), int32(Active))
	if changed {
		b.log.Info("first contact, gossip is now reply-driven")
	}
	return changed
}

func (b *Broadcaster) State() State {
	return State(b.state.Load())
}
