// Package config reads a node's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dinma-daniel/ipv8/pkg/gossip"
	"github.com/dinma-daniel/ipv8/pkg/node"
)

// Peer is a statically configured neighbour.
type Peer struct {
	ID   string
	Addr string
}

type Config struct {
	NodeID         string
	ListenAddr     string // QUIC
	HTTPAddr       string
	EtcdEndpoints  []string
	StaticPeers    []Peer
	GossipInterval time.Duration
	GossipDelay    time.Duration
	LeaseTTL       int64 // seconds
	LogLevel       string
	LogCapacity    int
}

func Default() Config {
	return Config{
		ListenAddr:     ":7000",
		HTTPAddr:       ":8080",
		GossipInterval: gossip.DefaultInterval,
		LeaseTTL:       10,
		LogLevel:       "info",
		LogCapacity:    node.DefaultLogCapacity,
	}
}

// Load builds a Config from Default and the process environment.
func Load() (Config, error) {
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv for lookups. A missing SELF_ID is
// replaced with a random uuid.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()

	c.NodeID = getenv("SELF_ID")
	if c.NodeID == "" {
		c.NodeID = uuid.NewString()
	}
	if v := getenv("SELF_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := getenv("ETCD_ENDPOINTS"); v != "" {
		for _, ep := range strings.Split(v, ",") {
			if ep = strings.TrimSpace(ep); ep != "" {
				c.EtcdEndpoints = append(c.EtcdEndpoints, ep)
			}
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	var err error
	if c.StaticPeers, err = ParsePeers(getenv("PEERS")); err != nil {
		return Config{}, err
	}
	if v := getenv("GOSSIP_INTERVAL"); v != "" {
		if c.GossipInterval, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("GOSSIP_INTERVAL: %w", err)
		}
	}
	if v := getenv("GOSSIP_DELAY"); v != "" {
		if c.GossipDelay, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("GOSSIP_DELAY: %w", err)
		}
	}
	if v := getenv("LEASE_TTL"); v != "" {
		if c.LeaseTTL, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Config{}, fmt.Errorf("LEASE_TTL: %w", err)
		}
	}
	if v := getenv("MSGLOG_CAPACITY"); v != "" {
		if c.LogCapacity, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("MSGLOG_CAPACITY: %w", err)
		}
	}

	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.NodeID == "" {
		errs = append(errs, errors.New("node id is empty"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.GossipInterval <= 0 {
		errs = append(errs, fmt.Errorf("gossip interval must be positive, got %s", c.GossipInterval))
	}
	if c.GossipDelay < 0 {
		errs = append(errs, fmt.Errorf("gossip delay must not be negative, got %s", c.GossipDelay))
	}
	if len(c.EtcdEndpoints) > 0 && c.LeaseTTL <= 0 {
		errs = append(errs, fmt.Errorf("lease ttl must be positive, got %d", c.LeaseTTL))
	}
	return errors.Join(errs...)
}

func (c Config) Scheduler() gossip.SchedulerConfig {
	return gossip.SchedulerConfig{Interval: c.GossipInterval, Delay: c.GossipDelay}
}

// ParsePeers parses a comma-separated list of peers in the format:
// "id1=addr1,id2=addr2,id3=addr3"
func ParsePeers(peersStr string) ([]Peer, error) {
	if peersStr == "" {
		return []Peer{}, nil
	}

	parts := strings.Split(peersStr, ",")
	peers := make([]Peer, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, addr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid peer format: %s (expected id=addr)", part)
		}

		id = strings.TrimSpace(id)
		addr = strings.TrimSpace(addr)
		if id == "" || addr == "" {
			return nil, fmt.Errorf("peer ID and address cannot be empty: %s", part)
		}

		peers = append(peers, Peer{ID: id, Addr: addr})
	}

	return peers, nil
}
