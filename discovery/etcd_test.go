package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func TestPeerKeyRoundTrip(t *testing.T) {
	id, ok := ParsePeerKey(PeerKey("node-1"))
	assert.True(t, ok)
	assert.Equal(t, "node-1", id)

	for _, bad := range []string{"/other/peers/a", Prefix, Prefix + "a/b", "node-1"} {
		_, ok := ParsePeerKey(bad)
		assert.False(t, ok, bad)
	}
}

func put(key, val string) *clientv3.Event {
	return &clientv3.Event{Type: clientv3.EventTypePut, Kv: &mvccpb.KeyValue{Key: []byte(key), Value: []byte(val)}}
}

func del(key string) *clientv3.Event {
	return &clientv3.Event{Type: clientv3.EventTypeDelete, Kv: &mvccpb.KeyValue{Key: []byte(key)}}
}

func TestApplyEvents(t *testing.T) {
	peers := map[string]string{"a": "10.0.0.1:7000"}

	changed := apply(peers, []*clientv3.Event{
		put(PeerKey("b"), "10.0.0.2:7000"),
		put("/other/key", "ignored"),
	})
	assert.True(t, changed)
	assert.Equal(t, map[string]string{"a": "10.0.0.1:7000", "b": "10.0.0.2:7000"}, peers)

	// same value again is not a change
	assert.False(t, apply(peers, []*clientv3.Event{put(PeerKey("b"), "10.0.0.2:7000")}))

	assert.True(t, apply(peers, []*clientv3.Event{del(PeerKey("a"))}))
	assert.Equal(t, map[string]string{"b": "10.0.0.2:7000"}, peers)

	assert.False(t, apply(peers, []*clientv3.Event{del(PeerKey("zzz"))}))
}

func TestCopyPeers(t *testing.T) {
	in := map[string]string{"a": "x"}
	out := copyPeers(in)
	out["b"] = "y"
	assert.Len(t, in, 1)
}
