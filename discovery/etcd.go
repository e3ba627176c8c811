// Package discovery keeps the node registry in etcd. Each node writes
// /lamportnet/peers/<id> = <quic addr> under a lease and watches the prefix
// to learn about the others.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const Prefix = "/lamportnet/peers/"

func NewClient(endpoints []string) (*clientv3.Client, error) {
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
}

func PeerKey(id string) string {
	return Prefix + id
}

// ParsePeerKey returns the node id of a registry key.
func ParsePeerKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, Prefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// RegisterNode puts this node under a lease and keeps the lease alive until
// the returned cancel func is called.
func RegisterNode(ctx context.Context, cli *clientv3.Client, id, addr string, ttl int64) (clientv3.LeaseID, context.CancelFunc, error) {
	lease, err := cli.Grant(ctx, ttl)
	if err != nil {
		return 0, nil, fmt.Errorf("discovery: grant lease: %w", err)
	}
	if _, err := cli.Put(ctx, PeerKey(id), addr, clientv3.WithLease(lease.ID)); err != nil {
		return 0, nil, fmt.Errorf("discovery: register %s: %w", id, err)
	}

	kctx, cancel := context.WithCancel(context.Background())
	ch, err := cli.KeepAlive(kctx, lease.ID)
	if err != nil {
		cancel()
		return 0, nil, fmt.Errorf("discovery: keepalive: %w", err)
	}
	go func() {
		// drain so the client does not log a full channel
		for range ch {
		}
	}()
	return lease.ID, cancel, nil
}

// ListPeers returns every registered id -> addr.
func ListPeers(ctx context.Context, cli *clientv3.Client) (map[string]string, error) {
	resp, err := cli.Get(ctx, Prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("discovery: list peers: %w", err)
	}
	peers := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if id, ok := ParsePeerKey(string(kv.Key)); ok {
			peers[id] = string(kv.Value)
		}
	}
	return peers, nil
}

// WatchPeers calls fn with the full registry after the initial listing and
// after every change, until ctx is done.
func WatchPeers(ctx context.Context, cli *clientv3.Client, log *zap.Logger, fn func(map[string]string)) error {
	peers, err := ListPeers(ctx, cli)
	if err != nil {
		return err
	}
	fn(copyPeers(peers))

	wch := cli.Watch(ctx, Prefix, clientv3.WithPrefix())
	go func() {
		for wresp := range wch {
			if err := wresp.Err(); err != nil {
				log.Warn("peer watch error", zap.Error(err))
				continue
			}
			if apply(peers, wresp.Events) {
				fn(copyPeers(peers))
			}
		}
	}()
	return nil
}

// apply folds watch events into peers and reports whether anything changed.
func apply(peers map[string]string, events []*clientv3.Event) bool {
	changed := false
	for _, ev := range events {
		id, ok := ParsePeerKey(string(ev.Kv.Key))
		if !ok {
			continue
		}
		switch ev.Type {
		case clientv3.EventTypePut:
			if peers[id] != string(ev.Kv.Value) {
				peers[id] = string(ev.Kv.Value)
				changed = true
			}
		case clientv3.EventTypeDelete:
			if _, ok := peers[id]; ok {
				delete(peers, id)
				changed = true
			}
		}
	}
	return changed
}

func copyPeers(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
