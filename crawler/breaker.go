// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crawler

import (
	"time"

	"github.com/decred/dcrd/container/lru"
)

const (
	// defaultBreakerThreshold is the default number of consecutive
	// transient failures within a network group before its circuit opens.
	defaultBreakerThreshold = 16

	// defaultBreakerCooldown is the default duration an open circuit stays
	// open before a single trial dispatch is allowed through.
	defaultBreakerCooldown = 5 * time.Minute

	// defaultBreakerTTL is the default idle duration after which a
	// group's breaker state is evicted.
	defaultBreakerTTL = 30 * time.Minute

	// breakerGroupLimit bounds how many network groups are tracked at
	// once.  The LRU evicts the coldest groups beyond it.
	breakerGroupLimit = 16384
)

// breakerPhase identifies the circuit state of one network group.
type breakerPhase uint8

const (
	// breakerClosed lets dispatches through and counts consecutive
	// failures.
	breakerClosed breakerPhase = iota

	// breakerOpen rejects dispatches until the cooldown passes.
	breakerOpen

	// breakerHalfOpen lets exactly one trial dispatch through; its
	// outcome decides whether the circuit closes or reopens.
	breakerHalfOpen
)

// breakerState is the per-group circuit state.
type breakerState struct {
	phase     breakerPhase
	failures  int
	openUntil time.Time
	trialOut  bool
}

// breaker throttles dispatches into network groups that are failing in bulk,
// so a dead or filtered network range does not consume the whole attempt
// budget of the crawl.  Group states are kept in an LRU map with an idle TTL
// so groups the crawl moved past stop consuming memory.
//
// The breaker is only touched by the scheduler's handler goroutine, so it
// performs no locking of its own beyond what the LRU map provides.
type breaker struct {
	threshold int
	cooldown  time.Duration
	groups    *lru.Map[string, *breakerState]
	now       func() time.Time
}

// newBreaker returns a circuit breaker with the provided consecutive-failure
// threshold, open-circuit cooldown, and idle state TTL.
func newBreaker(threshold int, cooldown, ttl time.Duration) *breaker {
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}
	if ttl <= 0 {
		ttl = defaultBreakerTTL
	}
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		groups:    lru.NewMapWithDefaultTTL[string, *breakerState](breakerGroupLimit, ttl),
		now:       time.Now,
	}
}

// allow reports whether a dispatch into the group may proceed right now.
// When the circuit is open and the cooldown has passed it transitions to
// half-open and admits exactly one trial.
func (b *breaker) allow(group string) bool {
	st, ok := b.groups.Get(group)
	if !ok {
		return true
	}
	switch st.phase {
	case breakerClosed:
		return true
	case breakerOpen:
		if b.now().Before(st.openUntil) {
			return false
		}
		st.phase = breakerHalfOpen
		st.trialOut = true
		log.Debugf("Circuit for group %s half-open, admitting trial", group)
		return true
	case breakerHalfOpen:
		if st.trialOut {
			return false
		}
		st.trialOut = true
		return true
	}
	return true
}

// retryAt returns the time at which the group becomes dispatchable again.
// For groups that are not open it returns the current time.
func (b *breaker) retryAt(group string) time.Time {
	if st, ok := b.groups.Get(group); ok && st.phase == breakerOpen {
		return st.openUntil
	}
	return b.now()
}

// success records a successful session in the group, closing its circuit and
// resetting the consecutive failure count.
func (b *breaker) success(group string) {
	if st, ok := b.groups.Get(group); ok {
		if st.phase != breakerClosed {
			log.Debugf("Circuit for group %s closed", group)
		}
		st.phase = breakerClosed
		st.failures = 0
		st.trialOut = false
	}
}

// failure records a transient session failure in the group.  Reaching the
// consecutive-failure threshold, or failing the half-open trial, opens the
// circuit for the cooldown duration.
func (b *breaker) failure(group string) {
	st, ok := b.groups.Get(group)
	if !ok {
		st = &breakerState{}
		b.groups.Put(group, st)
	}
	switch st.phase {
	case breakerHalfOpen:
		st.phase = breakerOpen
		st.openUntil = b.now().Add(b.cooldown)
		st.trialOut = false
		log.Debugf("Circuit for group %s reopened until %v", group,
			st.openUntil)
	case breakerClosed:
		st.failures++
		if st.failures >= b.threshold {
			st.phase = breakerOpen
			st.openUntil = b.now().Add(b.cooldown)
			log.Debugf("Circuit for group %s opened after %d consecutive "+
				"failures", group, st.failures)
		}
	}
}
