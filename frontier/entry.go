// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package frontier

import (
	"time"

	"github.com/btckit/btccrawl/peer"
)

// Status identifies the lifecycle state of a frontier entry.
type Status uint8

// The lifecycle states of a frontier entry.  Succeeded, Failed, and
// Exhausted are terminal.
const (
	// StatusPending means the address is queued and will be dispatched
	// once its next-eligible time passes.
	StatusPending Status = iota

	// StatusInFlight means a session for the address is currently
	// outstanding.
	StatusInFlight

	// StatusSucceeded means a session completed the handshake.
	StatusSucceeded

	// StatusFailed means the address exhibited a persistent defect
	// (protocol violation or unsupported peer) and is never retried.
	StatusFailed

	// StatusExhausted means the address failed transiently but consumed
	// its full retry budget.
	StatusExhausted
)

// String returns the Status as a human-readable name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInFlight:
		return "in-flight"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Entry wraps a network address with its crawl metadata.  Entries are owned
// exclusively by the Frontier: callers receive them from Take for reading
// but must perform every status change through Frontier methods so the
// dedup and dispatch invariants hold.
type Entry struct {
	// Addr is the address this entry tracks.
	Addr *NetAddress

	// Status is the lifecycle state.
	Status Status

	// Attempts is the number of failed dispatch attempts so far.
	Attempts int

	// NextAttempt is the time before which the entry is not eligible for
	// dispatch.  The zero value means immediately eligible.
	NextAttempt time.Time

	// LastErr records the kind of the most recent failure.
	LastErr peer.ErrorKind

	// sources tracks the distinct peers that advertised this address.
	// Addresses vouched for by more peers are dispatched first.
	sources map[string]struct{}

	// seq is the global first-seen sequence number, used as the FIFO
	// tiebreak for dispatch priority.
	seq uint64

	// readyIdx and waitIdx are the entry's positions within the ready and
	// wait heaps, or -1 when not enqueued.
	readyIdx int
	waitIdx  int
}

// SourceCount returns the number of distinct peers that advertised this
// address.
func (e *Entry) SourceCount() int {
	return len(e.sources)
}

// readyQueue is a priority heap of dispatchable entries ordered by distinct
// source count descending with first-seen order as the tiebreak.
type readyQueue []*Entry

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if len(q[i].sources) != len(q[j].sources) {
		return len(q[i].sources) > len(q[j].sources)
	}
	return q[i].seq < q[j].seq
}

func (q readyQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].readyIdx = i
	q[j].readyIdx = j
}

func (q *readyQueue) Push(x interface{}) {
	e := x.(*Entry)
	e.readyIdx = len(*q)
	*q = append(*q, e)
}

func (q *readyQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.readyIdx = -1
	*q = old[:n-1]
	return e
}

// waitQueue is a min-heap of backed-off entries ordered by next-eligible
// time.
type waitQueue []*Entry

func (q waitQueue) Len() int { return len(q) }

func (q waitQueue) Less(i, j int) bool {
	return q[i].NextAttempt.Before(q[j].NextAttempt)
}

func (q waitQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].waitIdx = i
	q[j].waitIdx = j
}

func (q *waitQueue) Push(x interface{}) {
	e := x.(*Entry)
	e.waitIdx = len(*q)
	*q = append(*q, e)
}

func (q *waitQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.waitIdx = -1
	*q = old[:n-1]
	return e
}
