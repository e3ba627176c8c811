// Package transport provides the overlays a lamportnet node can run on: an
// in-process Network for simulations and tests, and a QUIC transport for
// nodes in separate processes.
package transport

import "errors"

var (
	ErrUnknownPeer = errors.New("transport: unknown peer")
	ErrInboxFull   = errors.New("transport: peer inbox full")
	ErrPartitioned = errors.New("transport: peer unreachable")
	ErrClosed      = errors.New("transport: closed")
)
