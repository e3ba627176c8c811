// Package msglog keeps a bounded, in-memory record of the clock messages a
// node sent and received, oldest entries evicted first.
package msglog

import (
	"container/list"
	"sync"
	"time"
)

type Direction string

const (
	Recv Direction = "recv"
	Send Direction = "send"
)

// Entry is one message as seen by the local node.
type Entry struct {
	Dir   Direction `json:"dir"`
	Peer  string    `json:"peer"`
	Clock int64     `json:"clock"`
	At    time.Time `json:"at"`
}

// Log is a fixed-capacity list of entries.
type Log struct {
	mu  sync.RWMutex
	ll  *list.List
	cap int
}

// New returns a log holding at most capacity entries. A non-positive
// capacity disables recording.
func New(capacity int) *Log {
	return &Log{
		ll:  list.New(),
		cap: capacity,
	}
}

func (l *Log) Append(e Entry) {
	if l.cap <= 0 {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ll.PushFront(e)
	l.evictIfNeeded()
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, l.ll.Len())
	for el := l.ll.Back(); el != nil; el = el.Prev() {
		out = append(out, el.Value.(Entry))
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ll.Len()
}

func (l *Log) evictIfNeeded() {
	for l.ll.Len() > l.cap && l.ll.Back() != nil {
		l.ll.Remove(l.ll.Back())
	}
}
