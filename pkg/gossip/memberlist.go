package gossip

import (
	"slices"
	"sync"
)

// PeerSet is the node's view of known neighbours and where to reach them.
// Discovery writes it; transports read it.
type PeerSet struct {
	mu    sync.RWMutex
	self  NodeID
	peers map[NodeID]string // id -> addr
}

func NewPeerSet(self NodeID) *PeerSet {
	return &PeerSet{
		self:  self,
		peers: make(map[NodeID]string),
	}
}

// Set adds or updates a peer. Entries for self are ignored.
func (p *PeerSet) Set(id NodeID, addr string) {
	if id == p.self || id == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers[id] = addr
}

func (p *PeerSet) Remove(id NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.peers, id)
}

// Replace swaps the whole view, as delivered by a discovery watch.
func (p *PeerSet) Replace(peers map[NodeID]string) {
	next := make(map[NodeID]string, len(peers))
	for id, addr := range peers {
		if id != p.self && id != "" {
			next[id] = addr
		}
	}
	p.mu.Lock()
	p.peers = next
	p.mu.Unlock()
}

// IDs returns the known peers sorted by id.
func (p *PeerSet) IDs() []NodeID {
	p.mu.RLock()
	out := make([]NodeID, 0, len(p.peers))
	for id := range p.peers {
		out = append(out, id)
	}
	p.mu.RUnlock()
	slices.Sort(out)
	return out
}

func (p *PeerSet) Addr(id NodeID) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	addr, ok := p.peers[id]
	return addr, ok
}

func (p *PeerSet) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.peers)
}
