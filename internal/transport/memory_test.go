package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinma-daniel/ipv8/pkg/gossip"
)

type inbox struct {
	mu   sync.Mutex
	msgs []envelope
}

func (i *inbox) handle(from gossip.NodeID, clock int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, envelope{from: from, clock: clock})
}

func (i *inbox) snapshot() []envelope {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]envelope(nil), i.msgs...)
}

func TestFullMeshPeers(t *testing.T) {
	n := NewNetwork()
	a, b, c := n.Join("a"), n.Join("b"), n.Join("c")
	defer a.Close()
	defer b.Close()
	defer c.Close()

	assert.Equal(t, []gossip.NodeID{"b", "c"}, a.Peers())
	assert.Equal(t, []gossip.NodeID{"a", "b"}, c.Peers())
	assert.Equal(t, []gossip.NodeID{"a", "b", "c"}, n.Members())
}

func TestJoinTwiceReturnsSameTransport(t *testing.T) {
	n := NewNetwork()
	a := n.Join("a")
	defer a.Close()
	assert.Same(t, a, n.Join("a"))
}

func TestSendDeliversInOrder(t *testing.T) {
	n := NewNetwork()
	a, b := n.Join("a"), n.Join("b")
	defer a.Close()
	defer b.Close()

	in := &inbox{}
	b.Listen(in.handle)
	for i := range 50 {
		require.NoError(t, a.Send(context.Background(), "b", int64(i)))
	}

	require.Eventually(t, func() bool { return len(in.snapshot()) == 50 }, time.Second, time.Millisecond)
	for i, e := range in.snapshot() {
		assert.Equal(t, gossip.NodeID("a"), e.from)
		assert.Equal(t, int64(i), e.clock)
	}
}

func TestQueuedBeforeListen(t *testing.T) {
	n := NewNetwork()
	a, b := n.Join("a"), n.Join("b")
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send(context.Background(), "b", 7))
	in := &inbox{}
	b.Listen(in.handle)
	require.Eventually(t, func() bool { return len(in.snapshot()) == 1 }, time.Second, time.Millisecond)
}

func TestSendErrors(t *testing.T) {
	n := NewNetwork(WithInboxSize(1))
	a, b := n.Join("a"), n.Join("b")
	defer b.Close()

	assert.ErrorIs(t, a.Send(context.Background(), "nobody", 1), ErrUnknownPeer)

	// b never listens, so its single slot stays occupied
	require.NoError(t, a.Send(context.Background(), "b", 1))
	assert.ErrorIs(t, a.Send(context.Background(), "b", 2), ErrInboxFull)

	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Send(context.Background(), "b", 3), ErrClosed)
	assert.ErrorIs(t, b.Send(context.Background(), "a", 3), ErrUnknownPeer)
}

func TestPartitionAndHeal(t *testing.T) {
	n := NewNetwork()
	a, b := n.Join("a"), n.Join("b")
	defer a.Close()
	defer b.Close()

	n.Partition("b", "a")
	assert.ErrorIs(t, a.Send(context.Background(), "b", 1), ErrPartitioned)
	n.Heal("a", "b")
	assert.NoError(t, a.Send(context.Background(), "b", 1))
}

func TestFanoutIsSparseAndSymmetric(t *testing.T) {
	n := NewNetwork(WithFanout(2))
	ids := []gossip.NodeID{"n0", "n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8", "n9"}
	members := map[gossip.NodeID]*Memory{}
	for _, id := range ids {
		members[id] = n.Join(id)
	}
	defer func() {
		for _, m := range members {
			m.Close()
		}
	}()

	degrees := 0
	for id, m := range members {
		peers := m.Peers()
		degrees += len(peers)
		assert.GreaterOrEqual(t, len(peers), 2, "node %s", id)
		assert.NotContains(t, peers, id)
		for _, p := range peers {
			assert.Contains(t, members[p].Peers(), id, "%s sees %s but not the reverse", id, p)
		}
	}
	// each node picks 2, so at most 2*2*10 directed entries
	assert.LessOrEqual(t, degrees, 40)
	assert.Less(t, degrees, len(ids)*(len(ids)-1))
}
