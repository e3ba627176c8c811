package node

import (
	"encoding/json"
	"net/http"
	"os"
	"time"
)

// Healthz returns 200 OK to indicate the Node is alive.
func (n *Node) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Info writes the node's id, clock and gossip state as JSON.
func (n *Node) Info(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		ID       string    `json:"id"`
		PID      int       `json:"pid"`
		Now      time.Time `json:"now"`
		Clock    int64     `json:"clock"`
		State    string    `json:"state"`
		Peers    int       `json:"peers"`
		Vertices int       `json:"vertices"`
		Edges    int       `json:"edges"`
	}
	writeJSON(w, resp{
		ID:       string(n.id),
		PID:      os.Getpid(),
		Now:      time.Now(),
		Clock:    n.CurrentClock(),
		State:    n.State().String(),
		Peers:    len(n.Peers()),
		Vertices: n.graph.Len(),
		Edges:    n.graph.EdgeCount(),
	})
}

// Topology writes the contact graph snapshot, as JSON by default or as
// Graphviz with ?format=dot.
func (n *Node) Topology(w http.ResponseWriter, req *http.Request) {
	snap := n.TopologySnapshot()
	switch req.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, snap)
	case "dot":
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		w.Write([]byte(snap.DOT()))
	default:
		http.Error(w, "unknown format", http.StatusBadRequest)
	}
}

// MessagesHandler writes the recent exchange log.
func (n *Node) MessagesHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, n.Messages())
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
