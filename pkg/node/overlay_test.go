package node

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinma-daniel/ipv8/internal/transport"
	"github.com/dinma-daniel/ipv8/pkg/gossip"
	"github.com/dinma-daniel/ipv8/pkg/topology"
)

func TestTwoPeerBootstrapOverMemory(t *testing.T) {
	net := transport.NewNetwork()
	ta, tb := net.Join("A"), net.Join("B")
	defer ta.Close()
	defer tb.Close()

	a := New(ta, WithSchedulerConfig(gossip.SchedulerConfig{Interval: time.Hour}))
	// B never fires on its own, so A opens the exchange
	b := New(tb, WithSchedulerConfig(gossip.SchedulerConfig{Interval: time.Hour, Delay: time.Hour}))

	ctx := context.Background()
	require.NoError(t, b.Start(ctx))
	require.NoError(t, a.Start(ctx))
	defer a.Stop()
	defer b.Stop()

	require.Eventually(t, func() bool {
		return a.CurrentClock() >= 2 && b.CurrentClock() >= 1
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, gossip.Active, a.State())
	assert.Equal(t, gossip.Active, b.State())

	u := topology.Union(a.TopologySnapshot(), b.TopologySnapshot())
	assert.Equal(t, []topology.Edge{topology.NewEdge("A", "B")}, u.Edges)
	assert.Equal(t, []string{"A", "B"}, u.Vertices)

	// the exchange keeps going on its own
	before := a.CurrentClock()
	require.Eventually(t, func() bool { return a.CurrentClock() > before+10 }, 2*time.Second, time.Millisecond)
}

func TestSparseOverlayAllClocksMove(t *testing.T) {
	net := transport.NewNetwork(transport.WithFanout(3))
	cfg := gossip.SchedulerConfig{Interval: 20 * time.Millisecond}

	var nodes []*Node
	for i := range 20 {
		tr := net.Join(gossip.NodeID(fmt.Sprintf("n%02d", i)))
		defer tr.Close()
		nodes = append(nodes, New(tr, WithSchedulerConfig(cfg), WithLogCapacity(0)))
	}
	for _, n := range nodes {
		require.NoError(t, n.Start(context.Background()))
		defer n.Stop()
	}

	require.Eventually(t, func() bool {
		for _, n := range nodes {
			if n.CurrentClock() == 0 {
				return false
			}
		}
		return true
	}, 3*time.Second, 5*time.Millisecond)

	snaps := make([]topology.Snapshot, 0, len(nodes))
	for _, n := range nodes {
		snaps = append(snaps, n.TopologySnapshot())
		assert.Equal(t, gossip.Active, n.State())
	}
	u := topology.Union(snaps...)
	assert.Len(t, u.Vertices, 20)
	assert.NotEmpty(t, u.Edges)
}
