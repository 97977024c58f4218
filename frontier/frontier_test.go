// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package frontier

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/btckit/btccrawl/peer"
	"github.com/btckit/btccrawl/wire"
)

// testFrontier returns a frontier with a deterministic clock and no jitter.
// The returned function advances the clock.
func testFrontier(cfg *Config) (*Frontier, func(d time.Duration)) {
	f := New(cfg)
	now := time.Unix(0x5f000000, 0)
	f.now = func() time.Time { return now }
	f.jitter = func(time.Duration) time.Duration { return 0 }
	return f, func(d time.Duration) { now = now.Add(d) }
}

// routableAddr returns a distinct routable IPv4 test address for the given
// ordinal.
func routableAddr(t *testing.T, i int) *NetAddress {
	t.Helper()
	host := fmt.Sprintf("8.8.%d.%d:8333", i/256, i%256)
	na, err := NewNetAddressFromString(host)
	if err != nil {
		t.Fatalf("NewNetAddressFromString(%s): %v", host, err)
	}
	return na
}

// TestOfferDedup ensures re-offering a known address folds metadata into the
// existing entry instead of creating a second one.
func TestOfferDedup(t *testing.T) {
	f, _ := testFrontier(&Config{})

	na := routableAddr(t, 1)
	na.Timestamp = time.Unix(1000, 0)
	if !f.Offer(na, "seed") {
		t.Fatal("first offer not reported as new")
	}
	if f.Offer(na, "seed") {
		t.Fatal("duplicate offer reported as new")
	}

	// A fresher sighting updates timestamp and services.
	newer := na.Clone()
	newer.Timestamp = time.Unix(2000, 0)
	newer.Services = wire.SFNodeNetwork | wire.SFNodeWitness
	f.Offer(newer, "other")

	e := f.entries[na.Key()]
	if e.Addr.Timestamp != newer.Timestamp {
		t.Errorf("timestamp not updated: got %v, want %v", e.Addr.Timestamp,
			newer.Timestamp)
	}
	if e.Addr.Services != newer.Services {
		t.Errorf("services not updated: got %v, want %v", e.Addr.Services,
			newer.Services)
	}
	if e.SourceCount() != 2 {
		t.Errorf("source count: got %d, want 2", e.SourceCount())
	}
	if c := f.Counts(); c.Pending != 1 {
		t.Errorf("pending count: got %d, want 1", c.Pending)
	}
}

// TestOfferUnroutable ensures reserved and local addresses are rejected.
func TestOfferUnroutable(t *testing.T) {
	f, _ := testFrontier(&Config{})

	hosts := []string{
		"10.0.0.1:8333",      // RFC1918
		"192.168.1.1:8333",   // RFC1918
		"169.254.1.1:8333",   // RFC3927
		"127.0.0.1:8333",     // loopback
		"0.0.0.0:8333",       // unspecified
		"100.64.0.1:8333",    // RFC6598
		"[2001:db8::1]:8333", // RFC3849
		"[fe80::1]:8333",     // RFC4862
		"[fc00::1]:8333",     // RFC4193
	}
	for _, host := range hosts {
		na, err := NewNetAddressFromString(host)
		if err != nil {
			t.Fatalf("NewNetAddressFromString(%s): %v", host, err)
		}
		if f.Offer(na, "seed") {
			t.Errorf("unroutable address %s accepted", host)
		}
	}
	if c := f.Counts(); c.Pending != 0 {
		t.Errorf("pending count: got %d, want 0", c.Pending)
	}
}

// TestTakeOrdering ensures dispatch favors addresses advertised by the most
// distinct peers, breaking ties in first-seen order.
func TestTakeOrdering(t *testing.T) {
	f, _ := testFrontier(&Config{})

	first := routableAddr(t, 1)
	second := routableAddr(t, 2)
	third := routableAddr(t, 3)
	f.Offer(first, "s1")
	f.Offer(second, "s1")
	f.Offer(third, "s1")

	// Corroborate the third address by two more peers and the second by
	// one more.
	f.Offer(third, "s2")
	f.Offer(third, "s3")
	f.Offer(second, "s2")

	wantOrder := []string{third.Key(), second.Key(), first.Key()}
	for i, want := range wantOrder {
		e, _, res := f.Take()
		if res != TakeOK {
			t.Fatalf("take %d: got %v, want ok", i, res)
		}
		if e.Addr.Key() != want {
			t.Errorf("take %d: got %s, want %s", i, e.Addr.Key(), want)
		}
	}
	if _, _, res := f.Take(); res != TakeWait {
		t.Fatalf("take with all in flight: got %v, want wait", res)
	}
}

// TestNoDoubleDispatch ensures an in-flight address can never be dispatched
// again, even when re-advertised.
func TestNoDoubleDispatch(t *testing.T) {
	f, _ := testFrontier(&Config{})

	na := routableAddr(t, 1)
	f.Offer(na, "s1")
	e, _, res := f.Take()
	if res != TakeOK {
		t.Fatalf("take: got %v, want ok", res)
	}

	// Re-advertising while in flight must not re-queue.
	f.Offer(na, "s2")
	if _, _, res := f.Take(); res != TakeWait {
		t.Fatalf("take while in flight: got %v, want wait", res)
	}

	if err := f.ReportSuccess(e.Addr.Key()); err != nil {
		t.Fatalf("ReportSuccess: %v", err)
	}

	// Nor after success.
	f.Offer(na, "s3")
	if _, _, res := f.Take(); res != TakeEmpty {
		t.Fatalf("take after success: got %v, want empty", res)
	}
}

// TestRetryBackoff exercises the transient failure policy: exponential
// backoff between attempts and exhaustion once the budget is consumed.
func TestRetryBackoff(t *testing.T) {
	cfg := &Config{
		MaxAttempts: 3,
		BackoffBase: 10 * time.Second,
		BackoffCap:  15 * time.Second,
	}
	f, advance := testFrontier(cfg)

	na := routableAddr(t, 1)
	key := na.Key()
	f.Offer(na, "s1")

	// First failure: backed off by the base interval.
	e, _, res := f.Take()
	if res != TakeOK {
		t.Fatalf("take: got %v, want ok", res)
	}
	status, err := f.ReportFailure(key, peer.ErrTimeout)
	if err != nil {
		t.Fatalf("ReportFailure: %v", err)
	}
	if status != StatusPending {
		t.Fatalf("status after first failure: got %v, want pending", status)
	}
	_, next, res := f.Take()
	if res != TakeWait {
		t.Fatalf("take during backoff: got %v, want wait", res)
	}
	if got := next.Sub(f.now()); got != 10*time.Second {
		t.Fatalf("first backoff: got %v, want 10s", got)
	}

	// Second failure: doubled, but clamped at the cap.
	advance(10 * time.Second)
	e, _, res = f.Take()
	if res != TakeOK {
		t.Fatalf("take after backoff: got %v, want ok", res)
	}
	if e.Attempts != 1 {
		t.Fatalf("attempts: got %d, want 1", e.Attempts)
	}
	if _, err := f.ReportFailure(key, peer.ErrTransport); err != nil {
		t.Fatalf("ReportFailure: %v", err)
	}
	_, next, res = f.Take()
	if res != TakeWait {
		t.Fatalf("take during backoff: got %v, want wait", res)
	}
	if got := next.Sub(f.now()); got != 15*time.Second {
		t.Fatalf("capped backoff: got %v, want 15s", got)
	}

	// Third failure consumes the budget.
	advance(15 * time.Second)
	if _, _, res = f.Take(); res != TakeOK {
		t.Fatalf("take after backoff: got %v, want ok", res)
	}
	status, err = f.ReportFailure(key, peer.ErrTimeout)
	if err != nil {
		t.Fatalf("ReportFailure: %v", err)
	}
	if status != StatusExhausted {
		t.Fatalf("status after final failure: got %v, want exhausted", status)
	}
	if _, _, res = f.Take(); res != TakeEmpty {
		t.Fatalf("take after exhaustion: got %v, want empty", res)
	}
	if f.entries[key].Status != StatusExhausted {
		t.Fatalf("status: got %v, want exhausted", f.entries[key].Status)
	}
	c := f.Counts()
	if c.Exhausted != 1 || c.Pending != 0 || c.InFlight != 0 {
		t.Fatalf("counts after exhaustion: %+v", c)
	}
}

// TestPermanentFailure ensures protocol violations and unsupported peers are
// never retried.
func TestPermanentFailure(t *testing.T) {
	kinds := []peer.ErrorKind{peer.ErrProtocolViolation, peer.ErrUnsupported}
	for _, kind := range kinds {
		f, _ := testFrontier(&Config{})
		na := routableAddr(t, 1)
		key := na.Key()
		f.Offer(na, "s1")
		if _, _, res := f.Take(); res != TakeOK {
			t.Fatalf("%v: take failed", kind)
		}
		status, err := f.ReportFailure(key, kind)
		if err != nil {
			t.Fatalf("%v: ReportFailure: %v", kind, err)
		}
		if status != StatusFailed {
			t.Errorf("%v: status: got %v, want failed", kind, status)
		}
		if _, _, res := f.Take(); res != TakeEmpty {
			t.Errorf("%v: entry was retried", kind)
		}
		e := f.entries[key]
		if e.Status != StatusFailed {
			t.Errorf("%v: status: got %v, want failed", kind, e.Status)
		}
		if e.Attempts != 0 {
			t.Errorf("%v: attempts: got %d, want 0", kind, e.Attempts)
		}
		if e.LastErr != kind {
			t.Errorf("%v: last err: got %v", kind, e.LastErr)
		}
	}
}

// TestCancelledNoAttempt ensures a cancelled session re-queues the address
// immediately without consuming an attempt.
func TestCancelledNoAttempt(t *testing.T) {
	f, _ := testFrontier(&Config{MaxAttempts: 1})

	na := routableAddr(t, 1)
	key := na.Key()
	f.Offer(na, "s1")
	if _, _, res := f.Take(); res != TakeOK {
		t.Fatal("take failed")
	}
	if _, err := f.ReportFailure(key, peer.ErrCancelled); err != nil {
		t.Fatalf("ReportFailure: %v", err)
	}

	e, _, res := f.Take()
	if res != TakeOK {
		t.Fatalf("take after cancel: got %v, want ok", res)
	}
	if e.Attempts != 0 {
		t.Errorf("attempts: got %d, want 0", e.Attempts)
	}
}

// TestRequeue ensures an abandoned dispatch returns to the queue without
// consuming an attempt and honors the eligibility time.
func TestRequeue(t *testing.T) {
	f, advance := testFrontier(&Config{})

	na := routableAddr(t, 1)
	key := na.Key()
	f.Offer(na, "s1")
	if _, _, res := f.Take(); res != TakeOK {
		t.Fatal("take failed")
	}

	until := f.now().Add(time.Minute)
	if err := f.Requeue(key, until); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	_, next, res := f.Take()
	if res != TakeWait {
		t.Fatalf("take during requeue delay: got %v, want wait", res)
	}
	if !next.Equal(until) {
		t.Fatalf("next eligible: got %v, want %v", next, until)
	}

	advance(time.Minute)
	e, _, res := f.Take()
	if res != TakeOK {
		t.Fatalf("take after delay: got %v, want ok", res)
	}
	if e.Attempts != 0 {
		t.Errorf("attempts: got %d, want 0", e.Attempts)
	}
}

// TestReportUnknown ensures outcome reports for untracked or idle entries are
// rejected.
func TestReportUnknown(t *testing.T) {
	f, _ := testFrontier(&Config{})

	err := f.ReportSuccess("203.0.113.5:8333")
	if !errors.Is(err, ErrUnknownEntry) {
		t.Errorf("unknown entry: got %v, want %v", err, ErrUnknownEntry)
	}

	na := routableAddr(t, 1)
	f.Offer(na, "s1")
	_, err = f.ReportFailure(na.Key(), peer.ErrTimeout)
	if !errors.Is(err, ErrNotInFlight) {
		t.Errorf("idle entry: got %v, want %v", err, ErrNotInFlight)
	}
}

// TestIsDrained exercises the drain condition across the entry lifecycle.
func TestIsDrained(t *testing.T) {
	f, _ := testFrontier(&Config{})
	if !f.IsDrained() {
		t.Fatal("empty frontier not drained")
	}

	na := routableAddr(t, 1)
	f.Offer(na, "s1")
	if f.IsDrained() {
		t.Fatal("drained with pending entry")
	}
	if _, _, res := f.Take(); res != TakeOK {
		t.Fatal("take failed")
	}
	if f.IsDrained() {
		t.Fatal("drained with in-flight entry")
	}
	if err := f.ReportSuccess(na.Key()); err != nil {
		t.Fatalf("ReportSuccess: %v", err)
	}
	if !f.IsDrained() {
		t.Fatal("not drained after final outcome")
	}
}
