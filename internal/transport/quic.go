package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	quic "github.com/quic-go/quic-go"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/dinma-daniel/ipv8/internal/telemetry"
	"github.com/dinma-daniel/ipv8/pkg/gossip"
)

const alpn = "lamportnet"

const dialTimeout = 5 * time.Second

func devTLSCert() (tls.Certificate, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, pub, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, nil
}

// peerConn is the long-lived outbound stream to one peer. Messages to a peer
// go over a single stream, so they arrive in order.
type peerConn struct {
	mu     sync.Mutex
	conn   *quic.Conn
	stream *quic.Stream
	enc    *msgpack.Encoder
	// false when the stream rides on a connection the peer dialed to us;
	// that connection belongs to its serveConn
	owned bool
}

// QUIC carries clock messages between processes. Peers are looked up in a
// PeerSet that discovery keeps current; a sender missing from it is answered
// over the connection its message arrived on. Both ends of a connection
// accept streams. Peers are not authenticated.
type QUIC struct {
	self  gossip.NodeID
	addr  string
	peers *gossip.PeerSet
	log   *zap.Logger

	serverTLS *tls.Config
	clientTLS *tls.Config

	mu       sync.Mutex
	listener *quic.Listener
	out      map[gossip.NodeID]*peerConn
	inbound  map[gossip.NodeID]*quic.Conn // last connection each sender used
	handler  gossip.Handler
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ gossip.Transport = (*QUIC)(nil)

func NewQUIC(self gossip.NodeID, listenAddr string, peers *gossip.PeerSet, logger *zap.Logger) (*QUIC, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cert, err := devTLSCert()
	if err != nil {
		return nil, fmt.Errorf("quic: tls cert: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QUIC{
		self:  self,
		addr:  listenAddr,
		peers: peers,
		log:   logger.Named("quic"),
		serverTLS: &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{alpn},
		},
		clientTLS: &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{alpn},
		},
		out:     make(map[gossip.NodeID]*peerConn),
		inbound: make(map[gossip.NodeID]*quic.Conn),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (q *QUIC) Self() gossip.NodeID { return q.self }

func (q *QUIC) Peers() []gossip.NodeID { return q.peers.IDs() }

// Addr returns the bound address once listening, else the configured one.
func (q *QUIC) Addr() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.listener != nil {
		return q.listener.Addr().String()
	}
	return q.addr
}

// Bind opens the UDP listener without accepting yet, so the bound address
// can be advertised before the handler is installed.
func (q *QUIC) Bind() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if q.listener != nil {
		return nil
	}
	ln, err := quic.ListenAddr(q.addr, q.serverTLS, nil)
	if err != nil {
		return fmt.Errorf("quic: listen %s: %w", q.addr, err)
	}
	q.listener = ln
	q.log.Info("listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Listen binds if needed and starts the accept loop.
func (q *QUIC) Listen(h gossip.Handler) {
	if err := q.Bind(); err != nil {
		q.log.Error("listen failed", zap.Error(err))
		return
	}
	q.mu.Lock()
	ln := q.listener
	q.handler = h
	q.mu.Unlock()

	q.wg.Add(1)
	go q.acceptLoop(ln, h)
}

func (q *QUIC) acceptLoop(ln *quic.Listener, h gossip.Handler) {
	defer q.wg.Done()
	for {
		conn, err := ln.Accept(q.ctx)
		if err != nil {
			if q.ctx.Err() == nil {
				q.log.Warn("accept failed", zap.Error(err))
			}
			return
		}
		q.wg.Add(1)
		go q.serveConn(conn, h)
	}
}

func (q *QUIC) serveConn(conn *quic.Conn, h gossip.Handler) {
	defer q.wg.Done()
	// unblocks the stream readers once we stop accepting
	defer conn.CloseWithError(0, "")
	defer q.forget(conn)
	for {
		stream, err := conn.AcceptStream(q.ctx)
		if err != nil {
			return
		}
		q.wg.Add(1)
		go q.serveStream(conn, stream, h)
	}
}

// serveDialed accepts the streams a peer opens back on a connection we
// dialed. The connection stays owned by its peerConn.
func (q *QUIC) serveDialed(conn *quic.Conn, h gossip.Handler) {
	defer q.wg.Done()
	defer q.forget(conn)
	for {
		stream, err := conn.AcceptStream(q.ctx)
		if err != nil {
			return
		}
		q.wg.Add(1)
		go q.serveStream(conn, stream, h)
	}
}

// remember records conn as the way back to from.
func (q *QUIC) remember(from gossip.NodeID, conn *quic.Conn) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.inbound[from] = conn
	}
}

func (q *QUIC) forget(conn *quic.Conn) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, c := range q.inbound {
		if c == conn {
			delete(q.inbound, id)
		}
	}
}

// serveStream decodes a sequence of messages from one sender.
func (q *QUIC) serveStream(conn *quic.Conn, s *quic.Stream, h gossip.Handler) {
	defer q.wg.Done()
	defer s.Close()

	dec := msgpack.NewDecoder(s)
	for {
		var m gossip.Message
		if err := dec.Decode(&m); err != nil {
			if !errors.Is(err, io.EOF) && q.ctx.Err() == nil {
				q.log.Debug("stream closed", zap.Error(err))
			}
			return
		}
		if err := m.Validate(); err != nil {
			telemetry.MessagesDropped.Inc()
			q.log.Warn("dropping malformed message", zap.Error(err))
			continue
		}
		q.remember(m.From, conn)
		h(m.From, m.Clock)
	}
}

// Send writes one clock message to the peer's stream, dialing on first use.
// A failed write discards the cached stream; the next Send redials.
func (q *QUIC) Send(ctx context.Context, to gossip.NodeID, clock int64) error {
	pc, err := q.conn(ctx, to)
	if err != nil {
		return err
	}
	msg := gossip.NewClockMsg(q.self, clock)

	pc.mu.Lock()
	err = pc.enc.Encode(&msg)
	pc.mu.Unlock()
	if err != nil {
		q.drop(to, pc)
		return fmt.Errorf("quic: send to %s: %w", to, err)
	}
	return nil
}

func (q *QUIC) conn(ctx context.Context, to gossip.NodeID) (*peerConn, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	if pc, ok := q.out[to]; ok {
		q.mu.Unlock()
		return pc, nil
	}
	q.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var pc *peerConn
	if addr, ok := q.peers.Addr(to); ok {
		conn, err := quic.DialAddr(dctx, addr, q.clientTLS, nil)
		if err != nil {
			return nil, fmt.Errorf("quic: dial %s (%s): %w", to, addr, err)
		}
		stream, err := conn.OpenStreamSync(dctx)
		if err != nil {
			_ = conn.CloseWithError(0, "")
			return nil, fmt.Errorf("quic: open stream %s: %w", to, err)
		}
		pc = &peerConn{conn: conn, stream: stream, enc: msgpack.NewEncoder(stream), owned: true}
	} else {
		q.mu.Lock()
		conn, ok := q.inbound[to]
		q.mu.Unlock()
		if !ok {
			return nil, ErrUnknownPeer
		}
		stream, err := conn.OpenStreamSync(dctx)
		if err != nil {
			return nil, fmt.Errorf("quic: open reply stream %s: %w", to, err)
		}
		pc = &peerConn{conn: conn, stream: stream, enc: msgpack.NewEncoder(stream)}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.out[to]; ok || q.closed {
		// lost a dial race; keep the first stream so ordering holds
		q.release(pc)
		if !ok {
			return nil, ErrClosed
		}
		return existing, nil
	}
	q.out[to] = pc
	if pc.owned && q.handler != nil {
		q.wg.Add(1)
		go q.serveDialed(pc.conn, q.handler)
	}
	return pc, nil
}

// release closes pc's stream, and its connection when pc owns it.
func (q *QUIC) release(pc *peerConn) {
	_ = pc.stream.Close()
	if pc.owned {
		_ = pc.conn.CloseWithError(0, "")
	}
}

func (q *QUIC) drop(to gossip.NodeID, pc *peerConn) {
	q.mu.Lock()
	if q.out[to] == pc {
		delete(q.out, to)
	}
	q.mu.Unlock()
	q.release(pc)
}

// Close stops accepting and tears down outbound connections.
func (q *QUIC) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	ln := q.listener
	out := q.out
	q.out = make(map[gossip.NodeID]*peerConn)
	q.mu.Unlock()

	q.cancel()
	for _, pc := range out {
		q.release(pc)
	}
	var err error
	if ln != nil {
		err = ln.Close()
	}
	q.wg.Wait()
	return err
}
