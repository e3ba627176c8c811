package transport

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/dinma-daniel/ipv8/pkg/gossip"
	"github.com/dinma-daniel/ipv8/pkg/ring"
)

const defaultInboxSize = 1024

type envelope struct {
	from  gossip.NodeID
	clock int64
}

type link struct{ a, b gossip.NodeID }

func newLink(a, b gossip.NodeID) link {
	if b < a {
		a, b = b, a
	}
	return link{a, b}
}

// Network is a registry of in-process transports. Every member gets a
// buffered inbox drained by a single goroutine, so a node's handler never
// runs concurrently with itself and messages from one sender arrive in
// send order.
type Network struct {
	mu      sync.RWMutex
	members map[gossip.NodeID]*Memory
	ring    *ring.HashRing
	cut     map[link]struct{}

	fanout    int
	inboxSize int
	log       *zap.Logger
}

type NetworkOption func(*Network)

// WithFanout limits each member to k ring neighbours (plus anyone that
// picked it as a neighbour). Zero means full mesh.
func WithFanout(k int) NetworkOption {
	return func(n *Network) { n.fanout = k }
}

func WithInboxSize(size int) NetworkOption {
	return func(n *Network) { n.inboxSize = size }
}

func WithLogger(l *zap.Logger) NetworkOption {
	return func(n *Network) { n.log = l }
}

func NewNetwork(opts ...NetworkOption) *Network {
	n := &Network{
		members:   make(map[gossip.NodeID]*Memory),
		ring:      ring.New(32, ring.FNV32a),
		cut:       make(map[link]struct{}),
		inboxSize: defaultInboxSize,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.inboxSize <= 0 {
		n.inboxSize = defaultInboxSize
	}
	return n
}

// Join registers id and returns its transport. Joining an id twice returns
// the existing transport.
func (n *Network) Join(id gossip.NodeID) *Memory {
	n.mu.Lock()
	defer n.mu.Unlock()
	if m, ok := n.members[id]; ok {
		return m
	}
	m := &Memory{
		id:    id,
		net:   n,
		inbox: make(chan envelope, n.inboxSize),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
		log:   n.log.With(zap.String("node", string(id))),
	}
	n.members[id] = m
	n.ring.Add(string(id), "mem://"+string(id))
	go m.loop()
	return m
}

// Partition makes a and b unreachable from each other.
func (n *Network) Partition(a, b gossip.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cut[newLink(a, b)] = struct{}{}
}

func (n *Network) Heal(a, b gossip.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.cut, newLink(a, b))
}

// Members returns every joined id, sorted.
func (n *Network) Members() []gossip.NodeID {
	n.mu.RLock()
	out := make([]gossip.NodeID, 0, len(n.members))
	for id := range n.members {
		out = append(out, id)
	}
	n.mu.RUnlock()
	slices.Sort(out)
	return out
}

func (n *Network) neighbours(self gossip.NodeID) []gossip.NodeID {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]gossip.NodeID, 0, len(n.members))
	if n.fanout <= 0 {
		for id := range n.members {
			if id != self {
				out = append(out, id)
			}
		}
		slices.Sort(out)
		return out
	}

	set := make(map[gossip.NodeID]struct{})
	for _, id := range n.ring.Neighbors(string(self), n.fanout) {
		set[gossip.NodeID(id)] = struct{}{}
	}
	// keep the overlay symmetric: if they picked us, we see them too
	for id := range n.members {
		if id == self {
			continue
		}
		for _, nb := range n.ring.Neighbors(string(id), n.fanout) {
			if gossip.NodeID(nb) == self {
				set[id] = struct{}{}
				break
			}
		}
	}
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (n *Network) deliver(from, to gossip.NodeID, clock int64) error {
	n.mu.RLock()
	dst, ok := n.members[to]
	_, cut := n.cut[newLink(from, to)]
	n.mu.RUnlock()

	switch {
	case !ok:
		return ErrUnknownPeer
	case cut:
		return ErrPartitioned
	}
	return dst.enqueue(envelope{from: from, clock: clock})
}

func (n *Network) leave(id gossip.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.members, id)
	n.ring.Remove(string(id))
}

// Memory is one member's view of a Network. It implements gossip.Transport.
type Memory struct {
	id    gossip.NodeID
	net   *Network
	inbox chan envelope
	log   *zap.Logger

	mu        sync.RWMutex
	handler   gossip.Handler
	closed    bool
	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ gossip.Transport = (*Memory)(nil)

func (m *Memory) Self() gossip.NodeID { return m.id }

func (m *Memory) Peers() []gossip.NodeID { return m.net.neighbours(m.id) }

// Send queues the clock on the destination's inbox without blocking.
func (m *Memory) Send(_ context.Context, to gossip.NodeID, clock int64) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return m.net.deliver(m.id, to, clock)
}

// Listen installs the handler and starts delivering queued messages.
func (m *Memory) Listen(h gossip.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler != nil || m.closed {
		return
	}
	m.handler = h
	close(m.ready)
}

// Close leaves the network. Queued messages are discarded.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		m.net.leave(m.id)
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})
	return nil
}

func (m *Memory) enqueue(e envelope) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrUnknownPeer
	}
	select {
	case m.inbox <- e:
		return nil
	default:
		m.log.Debug("inbox full, dropping", zap.String("from", string(e.from)))
		return ErrInboxFull
	}
}

func (m *Memory) loop() {
	select {
	case <-m.ready:
	case <-m.done:
		return
	}
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()

	for {
		select {
		case <-m.done:
			return
		case e := <-m.inbox:
			h(e.from, e.clock)
		}
	}
}
