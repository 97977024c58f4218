// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package frontier

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/decred/dcrd/crypto/rand"

	"github.com/btckit/btccrawl/peer"
)

const (
	// defaultMaxAttempts is the default number of transient failures an
	// address may accumulate before it is considered exhausted.
	defaultMaxAttempts = 3

	// defaultBackoffBase is the default delay after the first transient
	// failure.  Each subsequent failure doubles it up to the cap.
	defaultBackoffBase = 30 * time.Second

	// defaultBackoffCap is the default upper bound on the computed backoff
	// delay, excluding jitter.
	defaultBackoffCap = 10 * time.Minute
)

// TakeResult describes the outcome of a Take call.
type TakeResult int

const (
	// TakeOK means an entry was returned and marked in-flight.
	TakeOK TakeResult = iota

	// TakeWait means no entry is currently eligible but the frontier is
	// not drained: entries are backing off or sessions are outstanding.
	TakeWait

	// TakeEmpty means the frontier is drained: nothing is pending,
	// backing off, or in flight.
	TakeEmpty
)

// String returns the TakeResult as a human-readable name.
func (r TakeResult) String() string {
	switch r {
	case TakeOK:
		return "ok"
	case TakeWait:
		return "wait"
	case TakeEmpty:
		return "empty"
	}
	return "unknown"
}

// Counts is a snapshot of entry totals by lifecycle state.
type Counts struct {
	Pending   int
	InFlight  int
	Succeeded int
	Failed    int
	Exhausted int
}

// Config is the configuration for a Frontier.
type Config struct {
	// MaxAttempts is the number of transient failures an address may
	// accumulate before it is exhausted.  Defaults to defaultMaxAttempts
	// when zero.
	MaxAttempts int

	// BackoffBase and BackoffCap control the exponential retry backoff.
	// The delay after failure n is BackoffBase doubled n-1 times, bounded
	// by BackoffCap, plus up to BackoffBase of random jitter.  Each
	// defaults to its package default when zero.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Frontier is the shared, deduplicated queue of addresses to crawl.  It
// tracks the lifecycle of every address ever offered, enforces at most one
// entry per dedup key, never dispatches a key while it is in flight, and
// owns all retry and backoff policy for failed attempts.
//
// All methods are safe for concurrent access, though the intended discipline
// is that a single scheduler goroutine performs all calls.
type Frontier struct {
	mtx sync.Mutex

	cfg     Config
	entries map[string]*Entry
	ready   readyQueue
	wait    waitQueue
	seq     uint64
	counts  Counts

	// now and jitter are swappable for deterministic tests.
	now    func() time.Time
	jitter func(n time.Duration) time.Duration
}

// New returns a frontier using the provided configuration.
func New(cfg *Config) *Frontier {
	c := *cfg
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = defaultBackoffCap
	}
	return &Frontier{
		cfg:     c,
		entries: make(map[string]*Entry),
		now:     time.Now,
		jitter:  rand.Duration,
	}
}

// Offer inserts the address when its dedup key has not been seen before and
// otherwise folds the sighting into the existing entry's metadata.  Entries
// that already succeeded are never re-queued.  The src key identifies the
// peer that advertised the address; sightings from distinct peers raise the
// entry's dispatch priority.  Unroutable addresses are rejected.
//
// It returns true when the address was newly added.
func (f *Frontier) Offer(na *NetAddress, src string) bool {
	if !na.IsRoutable() {
		return false
	}

	f.mtx.Lock()
	defer f.mtx.Unlock()

	key := na.Key()
	e, ok := f.entries[key]
	if !ok {
		e = &Entry{
			Addr:     na.Clone(),
			Status:   StatusPending,
			sources:  make(map[string]struct{}),
			seq:      f.seq,
			readyIdx: -1,
			waitIdx:  -1,
		}
		f.seq++
		if src != "" {
			e.sources[src] = struct{}{}
		}
		f.entries[key] = e
		f.counts.Pending++
		heap.Push(&f.ready, e)
		log.Tracef("Offered new address %s (source %s)", key, src)
		return true
	}

	// A newer sighting updates metadata, never identity.
	if na.Timestamp.After(e.Addr.Timestamp) {
		e.Addr.Timestamp = na.Timestamp
		e.Addr.Services = na.Services
	}
	if e.Status == StatusSucceeded {
		return false
	}
	if src != "" {
		if _, seen := e.sources[src]; !seen {
			e.sources[src] = struct{}{}

			// The priority of a queued entry just changed.
			if e.readyIdx != -1 {
				heap.Fix(&f.ready, e.readyIdx)
			}
		}
	}
	return false
}

// Take returns the highest-priority pending entry whose next-eligible time
// has passed, marking it in flight.  When nothing is eligible the result
// distinguishes a frontier that is merely waiting (entries backing off or
// sessions outstanding) from one that is drained: for TakeWait the returned
// time is the earliest next-eligible time, or the zero time when progress
// depends only on outstanding sessions.
//
// The returned entry must be treated as read-only; all status changes go
// through ReportSuccess, ReportFailure, and Requeue.
func (f *Frontier) Take() (*Entry, time.Time, TakeResult) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	now := f.now()

	// Promote every backed-off entry whose eligibility time has passed.
	for f.wait.Len() > 0 && !f.wait[0].NextAttempt.After(now) {
		e := heap.Pop(&f.wait).(*Entry)
		heap.Push(&f.ready, e)
	}

	for f.ready.Len() > 0 {
		e := heap.Pop(&f.ready).(*Entry)
		if e.Status != StatusPending {
			// Stale queue entry from a state change that could not
			// remove it in place.
			continue
		}
		if e.NextAttempt.After(now) {
			heap.Push(&f.wait, e)
			continue
		}
		e.Status = StatusInFlight
		f.counts.Pending--
		f.counts.InFlight++
		return e, time.Time{}, TakeOK
	}

	if f.wait.Len() > 0 {
		return nil, f.wait[0].NextAttempt, TakeWait
	}
	if f.counts.InFlight > 0 {
		return nil, time.Time{}, TakeWait
	}
	return nil, time.Time{}, TakeEmpty
}

// ReportSuccess marks an in-flight entry as succeeded.  Harvested addresses
// are fed back individually through Offer by the caller.
func (f *Frontier) ReportSuccess(key string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	e, err := f.inFlightEntry(key)
	if err != nil {
		return err
	}
	e.Status = StatusSucceeded
	f.counts.InFlight--
	f.counts.Succeeded++
	return nil
}

// ReportFailure records a failed attempt for an in-flight entry and applies
// the retry policy: transport and timeout failures are re-queued with
// exponential backoff until the attempt budget is consumed, protocol
// violations and unsupported peers are permanent and never retried, and
// cancellation re-queues the entry immediately without consuming an attempt.
// It returns the entry's resulting status so callers can tell a terminal
// resolution apart from a pending retry.
func (f *Frontier) ReportFailure(key string, kind peer.ErrorKind) (Status, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	e, err := f.inFlightEntry(key)
	if err != nil {
		return StatusPending, err
	}
	e.LastErr = kind
	f.counts.InFlight--

	switch kind {
	case peer.ErrCancelled:
		// Not the address's fault; put it back as it was.
		e.Status = StatusPending
		f.counts.Pending++
		heap.Push(&f.ready, e)
		return e.Status, nil

	case peer.ErrProtocolViolation, peer.ErrUnsupported:
		// Persistent peer defect.
		e.Status = StatusFailed
		f.counts.Failed++
		log.Debugf("Address %s failed permanently: %v", key, kind)
		return e.Status, nil
	}

	e.Attempts++
	if e.Attempts >= f.cfg.MaxAttempts {
		e.Status = StatusExhausted
		f.counts.Exhausted++
		log.Debugf("Address %s exhausted after %d attempts", key,
			e.Attempts)
		return e.Status, nil
	}

	e.Status = StatusPending
	e.NextAttempt = f.now().Add(f.backoff(e.Attempts))
	f.counts.Pending++
	heap.Push(&f.wait, e)
	return e.Status, nil
}

// Requeue puts an in-flight entry back into the queue without consuming an
// attempt, eligible again at the provided time.  It is used when a dispatch
// is abandoned before the session runs, such as when a circuit opens between
// take and dispatch.
func (f *Frontier) Requeue(key string, until time.Time) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	e, err := f.inFlightEntry(key)
	if err != nil {
		return err
	}
	e.Status = StatusPending
	e.NextAttempt = until
	f.counts.InFlight--
	f.counts.Pending++
	if until.After(f.now()) {
		heap.Push(&f.wait, e)
	} else {
		heap.Push(&f.ready, e)
	}
	return nil
}

// IsDrained returns whether no entry is pending, backing off, or in flight,
// meaning no future Take can ever return an entry.
func (f *Frontier) IsDrained() bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.counts.Pending == 0 && f.counts.InFlight == 0
}

// Counts returns a snapshot of entry totals by lifecycle state.
func (f *Frontier) Counts() Counts {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.counts
}

// backoff computes the delay before the given attempt number may be retried:
// exponential doubling from the configured base, bounded by the configured
// cap, plus up to one base interval of random jitter so synchronized retries
// spread out.
func (f *Frontier) backoff(attempts int) time.Duration {
	d := f.cfg.BackoffBase << uint(attempts-1)
	if d > f.cfg.BackoffCap || d <= 0 {
		d = f.cfg.BackoffCap
	}
	return d + f.jitter(f.cfg.BackoffBase)
}

// inFlightEntry returns the tracked in-flight entry for the key.  Callers
// must hold the mutex.
func (f *Frontier) inFlightEntry(key string) (*Entry, error) {
	e, ok := f.entries[key]
	if !ok {
		return nil, makeError(ErrUnknownEntry,
			fmt.Sprintf("no entry for %s", key))
	}
	if e.Status != StatusInFlight {
		return nil, makeError(ErrNotInFlight,
			fmt.Sprintf("entry %s is %v, not in-flight", key, e.Status))
	}
	return e, nil
}
