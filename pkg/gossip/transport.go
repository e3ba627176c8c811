package gossip

import "context"

// Handler receives one inbound clock value. Transports call it once per
// message, in send order for any single peer.
type Handler func(from NodeID, clock int64)

// Transport is the overlay a node runs on. Delivery is best effort: Send
// may fail when a peer is unreachable and nothing retries it.
type Transport interface {
	Self() NodeID
	// Peers returns the currently known neighbours, never including Self.
	// The set may be empty and may change between calls.
	Peers() []NodeID
	Send(ctx context.Context, to NodeID, clock int64) error
	// Listen registers the inbound handler. It must be called before the
	// transport delivers anything.
	Listen(h Handler)
	Close() error
}
