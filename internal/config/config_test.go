package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParsePeers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Peer
		wantErr bool
	}{
		{name: "empty", input: "", want: []Peer{}},
		{name: "single", input: "n1=127.0.0.1:7001", want: []Peer{{ID: "n1", Addr: "127.0.0.1:7001"}}},
		{
			name:  "multiple with spaces",
			input: " n1=a:1 , n2=b:2,",
			want:  []Peer{{ID: "n1", Addr: "a:1"}, {ID: "n2", Addr: "b:2"}},
		},
		{name: "missing equals", input: "n1", wantErr: true},
		{name: "empty id", input: "=a:1", wantErr: true},
		{name: "empty addr", input: "n1=", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeers(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromEnvDefaults(t *testing.T) {
	c, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	_, err = uuid.Parse(c.NodeID)
	assert.NoError(t, err, "generated id should be a uuid")
	assert.Equal(t, 5*time.Second, c.GossipInterval)
	assert.Equal(t, time.Duration(0), c.GossipDelay)
	assert.Equal(t, ":7000", c.ListenAddr)
	assert.Empty(t, c.EtcdEndpoints)
}

func TestFromEnvOverrides(t *testing.T) {
	c, err := FromEnv(envOf(map[string]string{
		"SELF_ID":         "node-a",
		"SELF_ADDR":       "127.0.0.1:7100",
		"ETCD_ENDPOINTS":  "http://etcd:2379, http://etcd2:2379",
		"PEERS":           "b=127.0.0.1:7101",
		"GOSSIP_INTERVAL": "250ms",
		"GOSSIP_DELAY":    "1s",
		"LEASE_TTL":       "30",
		"MSGLOG_CAPACITY": "0",
		"LOG_LEVEL":       "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "node-a", c.NodeID)
	assert.Equal(t, "127.0.0.1:7100", c.ListenAddr)
	assert.Equal(t, []string{"http://etcd:2379", "http://etcd2:2379"}, c.EtcdEndpoints)
	assert.Equal(t, []Peer{{ID: "b", Addr: "127.0.0.1:7101"}}, c.StaticPeers)
	assert.Equal(t, 250*time.Millisecond, c.Scheduler().Interval)
	assert.Equal(t, time.Second, c.Scheduler().Delay)
	assert.Equal(t, int64(30), c.LeaseTTL)
	assert.Equal(t, 0, c.LogCapacity)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestFromEnvErrors(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"bad interval":     {"GOSSIP_INTERVAL": "soon"},
		"zero interval":    {"GOSSIP_INTERVAL": "0s"},
		"negative delay":   {"GOSSIP_DELAY": "-1s"},
		"bad ttl":          {"LEASE_TTL": "ten"},
		"zero ttl w/ etcd": {"LEASE_TTL": "0", "ETCD_ENDPOINTS": "http://etcd:2379"},
		"bad peers":        {"PEERS": "nope"},
		"bad msglog":       {"MSGLOG_CAPACITY": "lots"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envOf(env))
			assert.Error(t, err)
		})
	}
}
