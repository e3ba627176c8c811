package ring

import (
	"fmt"
	"slices"
	"testing"
)

func buildRing(n int) *HashRing {
	r := New(64, FNV32a)
	for i := range n {
		id := fmt.Sprintf("peer-%02d", i)
		r.Add(id, "mem://"+id)
	}
	return r
}

func TestNeighborsExcludeSelf(t *testing.T) {
	r := buildRing(10)
	for id := range r.Nodes() {
		nb := r.Neighbors(id, 3)
		if len(nb) != 3 {
			t.Fatalf("Neighbors(%s, 3) returned %d peers: %v", id, len(nb), nb)
		}
		if slices.Contains(nb, id) {
			t.Fatalf("Neighbors(%s) contains self: %v", id, nb)
		}
	}
}

func TestNeighborsDistinct(t *testing.T) {
	r := buildRing(6)
	nb := r.Neighbors("peer-00", 5)
	seen := map[string]bool{}
	for _, id := range nb {
		if seen[id] {
			t.Fatalf("duplicate neighbour %s in %v", id, nb)
		}
		seen[id] = true
	}
}

func TestNeighborsStable(t *testing.T) {
	a := buildRing(20).Neighbors("peer-07", 4)
	b := buildRing(20).Neighbors("peer-07", 4)
	if !slices.Equal(a, b) {
		t.Fatalf("neighbour sets differ across identical rings: %v vs %v", a, b)
	}
}

func TestNeighborsCappedByMembership(t *testing.T) {
	r := buildRing(3)
	nb := r.Neighbors("peer-00", 10)
	if len(nb) != 2 {
		t.Fatalf("expected the 2 other peers, got %v", nb)
	}
}

func TestNeighborsEmptyRing(t *testing.T) {
	r := New(16, nil)
	if nb := r.Neighbors("x", 3); nb != nil {
		t.Fatalf("expected nil on empty ring, got %v", nb)
	}
	if nb := buildRing(3).Neighbors("peer-00", 0); nb != nil {
		t.Fatalf("expected nil for k=0, got %v", nb)
	}
}

func TestRemoveAffectsNeighbors(t *testing.T) {
	r := buildRing(8)
	before := r.Neighbors("peer-00", 1)
	if len(before) != 1 {
		t.Fatalf("expected one neighbour, got %v", before)
	}
	r.Remove(before[0])
	after := r.Neighbors("peer-00", 1)
	if len(after) != 1 || after[0] == before[0] {
		t.Fatalf("neighbour did not change after removing %q: got %v", before[0], after)
	}
}

func TestIdempotentRemove(t *testing.T) {
	r := buildRing(1)
	r.Remove("peer-00")
	// Removing again should not panic
	r.Remove("peer-00")
	if len(r.Nodes()) != 0 {
		t.Fatal("ring should be empty")
	}
}

func TestNodesIsCopy(t *testing.T) {
	r := buildRing(2)
	nodes := r.Nodes()
	nodes["peer-99"] = "x"
	if _, ok := r.Nodes()["peer-99"]; ok {
		t.Fatal("Nodes() returned a reference, not a copy")
	}
	if addr, ok := r.Addr("peer-01"); !ok || addr != "mem://peer-01" {
		t.Fatalf("Addr(peer-01) = (%q,%v)", addr, ok)
	}
}
