// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crawler

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/btckit/btccrawl/frontier"
	"github.com/btckit/btccrawl/peer"
	"github.com/btckit/btccrawl/wire"
)

const (
	// defaultMaxConcurrency is the default number of simultaneous sessions.
	defaultMaxConcurrency = 64

	// defaultShutdownGrace is the default duration to wait for in-flight
	// sessions to report after cancellation before they are written off.
	defaultShutdownGrace = 5 * time.Second

	// defaultPort is the port used for seeds given without one.
	defaultPort = 8333

	// breakerRetryDelay is how long a dispatch blocked by a half-open
	// circuit waits before the address is considered again.
	breakerRetryDelay = time.Second
)

// Event is emitted for every address newly discovered by the crawl, whether
// seeded or harvested from a peer.
type Event struct {
	// Addr is the newly discovered address.
	Addr *frontier.NetAddress

	// Source identifies where the address came from: the dedup key of the
	// peer that advertised it, or "seed" for configured seeds.
	Source string
}

// Summary is the terminal accounting of a crawl run.
type Summary struct {
	// Succeeded is the number of addresses whose handshake completed.
	Succeeded int

	// Failed is the number of addresses given up on, whether from a
	// persistent peer defect or an exhausted retry budget.
	Failed int

	// Cancelled is the number of session attempts cut short by shutdown.
	Cancelled int

	// Remaining is the number of addresses still queued when the run
	// ended.
	Remaining int

	// Discovered is the total number of distinct addresses learned over
	// the life of the crawl, including the seeds.
	Discovered int
}

// Config is the configuration for a Crawler.
type Config struct {
	// Seeds are the crawl starting points.  Each entry is either a
	// host:port address, a bare IP or onion name (the default port is
	// assumed), or a DNS seed hostname to resolve.  At least one seed is
	// required.
	Seeds []string

	// DefaultPort is applied to seeds and DNS seed results given without
	// an explicit port.  Defaults to 8333.
	DefaultPort uint16

	// Net is the bitcoin network to crawl.
	Net wire.BitcoinNet

	// ProtocolVersion, MinProtocolVersion, RequiredServices, Services, and
	// UserAgent configure the handshake.  See the peer package for their
	// semantics and defaults.
	ProtocolVersion    uint32
	MinProtocolVersion uint32
	RequiredServices   wire.ServiceFlag
	Services           wire.ServiceFlag
	UserAgent          string

	// DisableGetAddr skips address harvesting, reducing each session to a
	// liveness and identification probe.
	DisableGetAddr bool

	// MaxAddrMessages caps how many addr messages are consumed per
	// session.  See the peer package for its semantics and default.
	MaxAddrMessages int

	// MaxConcurrency bounds the number of simultaneous sessions.  Defaults
	// to defaultMaxConcurrency when zero.
	MaxConcurrency int

	// MaxPeers stops the crawl after this many distinct addresses have
	// reached a terminal outcome: handshake completed, permanently
	// failed, or retries exhausted.  Addresses still within their retry
	// budget do not count against the limit.  Zero means the crawl runs
	// until the frontier drains.
	MaxPeers int

	// MaxAttempts, BackoffBase, and BackoffCap configure the retry policy.
	// See the frontier package for their semantics and defaults.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// BreakerThreshold, BreakerCooldown, and BreakerTTL configure the
	// per-network-group circuit breaker.  Zero values select the package
	// defaults.
	BreakerThreshold int
	BreakerCooldown  time.Duration
	BreakerTTL       time.Duration

	// ConnectTimeout, PhaseTimeout, and SessionTimeout bound each session.
	// See the peer package for their semantics and defaults.
	ConnectTimeout time.Duration
	PhaseTimeout   time.Duration
	SessionTimeout time.Duration

	// ShutdownGrace is how long Run waits for in-flight sessions to report
	// after cancellation.  Defaults to defaultShutdownGrace when zero.
	ShutdownGrace time.Duration

	// Dial establishes transport connections.  Defaults to a plain TCP
	// dialer.  Supply a SOCKS5 dialer to crawl through a proxy.
	Dial peer.DialFunc

	// Lookup resolves DNS seed hostnames.  Defaults to the system
	// resolver.  Supply TorLookupIP to resolve through a Tor proxy.
	Lookup LookupFunc

	// Events, when non-nil, receives an Event for every newly discovered
	// address.  The channel is written with backpressure: a full channel
	// stalls the crawl rather than dropping events.
	Events chan<- Event
}

// Crawler discovers reachable peers by recursively visiting every address
// the network advertises.  It owns a frontier of addresses, dispatches
// concurrent handshake sessions against it, and feeds harvested addresses
// back in until the frontier drains or the run is stopped.
type Crawler struct {
	cfg      Config
	session  *peer.Session
	frontier *frontier.Frontier
	breaker  *breaker

	// State below is owned by the Run goroutine.
	inflight   map[string]*frontier.NetAddress
	visited    int
	cancelled  int
	discovered int
}

// New returns a crawler for the provided configuration.
func New(cfg *Config) (*Crawler, error) {
	if len(cfg.Seeds) == 0 {
		return nil, Error{"at least one seed is required", ErrNoSeeds}
	}

	c := *cfg
	if c.DefaultPort == 0 {
		c.DefaultPort = defaultPort
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = defaultShutdownGrace
	}
	if c.Dial == nil {
		var d net.Dialer
		c.Dial = d.DialContext
	}
	if c.Lookup == nil {
		c.Lookup = net.LookupIP
	}

	session, err := peer.New(&peer.Config{
		Dial:               c.Dial,
		Net:                c.Net,
		ProtocolVersion:    c.ProtocolVersion,
		MinProtocolVersion: c.MinProtocolVersion,
		RequiredServices:   c.RequiredServices,
		Services:           c.Services,
		UserAgent:          c.UserAgent,
		GetAddr:            !c.DisableGetAddr,
		MaxAddrMessages:    c.MaxAddrMessages,
		ConnectTimeout:     c.ConnectTimeout,
		PhaseTimeout:       c.PhaseTimeout,
		SessionTimeout:     c.SessionTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Crawler{
		cfg:     c,
		session: session,
		frontier: frontier.New(&frontier.Config{
			MaxAttempts: c.MaxAttempts,
			BackoffBase: c.BackoffBase,
			BackoffCap:  c.BackoffCap,
		}),
		breaker: newBreaker(c.BreakerThreshold, c.BreakerCooldown,
			c.BreakerTTL),
		inflight: make(map[string]*frontier.NetAddress),
	}, nil
}

// Run executes the crawl until the frontier drains, the context is
// cancelled, or the configured peer limit is reached, whichever comes first,
// and returns the terminal accounting.  On cancellation the returned error
// is the context's; natural termination returns a nil error.
//
// Run owns the frontier for its duration: sessions run on their own
// goroutines but every dispatch and outcome flows through this single loop.
func (c *Crawler) Run(ctx context.Context) (*Summary, error) {
	c.seed(ctx)

	sem := semaphore.NewWeighted(int64(c.cfg.MaxConcurrency))
	outcomes := make(chan *peer.Outcome, c.cfg.MaxConcurrency)

	log.Infof("Crawl starting: %d seed addresses, %d max concurrent "+
		"sessions", c.discovered, c.cfg.MaxConcurrency)

	for {
		// Fold in every session that has finished so far.
		for {
			var done bool
			select {
			case out := <-outcomes:
				c.handleOutcome(ctx, out)
			default:
				done = true
			}
			if done {
				break
			}
		}

		if ctx.Err() != nil {
			return c.shutdown(ctx, outcomes), ctx.Err()
		}
		if c.cfg.MaxPeers > 0 && c.visited >= c.cfg.MaxPeers {
			log.Infof("Peer limit of %d reached", c.cfg.MaxPeers)
			return c.awaitInflight(ctx, outcomes)
		}

		entry, next, res := c.frontier.Take()
		switch res {
		case frontier.TakeOK:
			key := entry.Addr.Key()
			group := entry.Addr.GroupKey()
			if !c.breaker.allow(group) {
				retry := c.breaker.retryAt(group)
				if minRetry := time.Now().Add(breakerRetryDelay); retry.Before(minRetry) {
					retry = minRetry
				}
				c.frontier.Requeue(key, retry)
				continue
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				c.frontier.ReportFailure(key, peer.ErrCancelled)
				return c.shutdown(ctx, outcomes), ctx.Err()
			}
			c.inflight[key] = entry.Addr
			go func(addr string) {
				outcomes <- c.session.Crawl(ctx, addr)
				sem.Release(1)
			}(key)

		case frontier.TakeWait:
			var timerC <-chan time.Time
			var timer *time.Timer
			if !next.IsZero() {
				timer = time.NewTimer(time.Until(next))
				timerC = timer.C
			}
			select {
			case out := <-outcomes:
				c.handleOutcome(ctx, out)
			case <-timerC:
			case <-ctx.Done():
			}
			if timer != nil {
				timer.Stop()
			}

		case frontier.TakeEmpty:
			log.Info("Frontier drained")
			return c.summary(), nil
		}
	}
}

// seed primes the frontier from the configured seeds.  Literal addresses go
// straight in; everything else is resolved as a DNS seed hostname.  It
// blocks until every DNS seed has resolved or failed.
func (c *Crawler) seed(ctx context.Context) {
	var dnsHosts []string
	for _, s := range c.cfg.Seeds {
		addr := s
		if _, _, err := net.SplitHostPort(s); err != nil {
			addr = net.JoinHostPort(s,
				strconv.Itoa(int(c.cfg.DefaultPort)))
		}
		na, err := frontier.NewNetAddressFromString(addr)
		if err == nil {
			c.offer(ctx, na, "seed")
			continue
		}
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			log.Warnf("Skipping malformed seed %q", s)
			continue
		}
		dnsHosts = append(dnsHosts, host)
	}
	if len(dnsHosts) == 0 {
		return
	}

	var mtx sync.Mutex
	var resolved []*frontier.NetAddress
	seedFromDNS(dnsHosts, c.cfg.DefaultPort, c.cfg.Lookup,
		func(addrs []*frontier.NetAddress) {
			mtx.Lock()
			resolved = append(resolved, addrs...)
			mtx.Unlock()
		})
	for _, na := range resolved {
		c.offer(ctx, na, "seed")
	}
}

// offer feeds an address into the frontier and emits a discovery event when
// it is new.
func (c *Crawler) offer(ctx context.Context, na *frontier.NetAddress,
	source string) {

	if !c.frontier.Offer(na, source) {
		return
	}
	c.discovered++
	if c.cfg.Events != nil {
		select {
		case c.cfg.Events <- Event{Addr: na, Source: source}:
		case <-ctx.Done():
		}
	}
}

// handleOutcome folds one finished session back into the frontier: reporting
// the result, updating the network group's circuit, and offering any
// harvested addresses.
func (c *Crawler) handleOutcome(ctx context.Context, out *peer.Outcome) {
	na := c.inflight[out.Addr]
	delete(c.inflight, out.Addr)
	group := na.GroupKey()

	if out.Succeeded() {
		c.visited++
		c.frontier.ReportSuccess(out.Addr)
		c.breaker.success(group)
		log.Infof("Peer %s alive: pver %d, agent %s, height %d, %d "+
			"addresses", out.Addr, out.PeerVersion, out.UserAgent,
			out.LastBlock, len(out.Addresses))
		for i := range out.Addresses {
			hna, err := frontier.NewNetAddressFromWire(&out.Addresses[i])
			if err != nil {
				log.Tracef("Discarding harvested address from %s: %v",
					out.Addr, err)
				continue
			}
			c.offer(ctx, hna, out.Addr)
		}
		return
	}

	kind := out.Err.Kind()
	status, _ := c.frontier.ReportFailure(out.Addr, kind)
	switch kind {
	case peer.ErrCancelled:
		c.cancelled++
	case peer.ErrTransport, peer.ErrTimeout:
		c.breaker.failure(group)

		// The address will be retried unless its budget ran out, so
		// only a terminal resolution consumes a peer-limit slot.
		if status == frontier.StatusExhausted {
			c.visited++
		}
	default:
		// A protocol-level failure still proves the network path
		// works, which also resolves any half-open trial in the
		// circuit's favor.
		c.breaker.success(group)
		c.visited++
	}
	log.Debugf("Peer %s failed in phase %v: %v", out.Addr, out.Err.Phase,
		out.Err)
}

// awaitInflight lets outstanding sessions finish naturally after the peer
// limit was reached, then returns the summary.
func (c *Crawler) awaitInflight(ctx context.Context,
	outcomes <-chan *peer.Outcome) (*Summary, error) {

	for len(c.inflight) > 0 {
		select {
		case out := <-outcomes:
			c.handleOutcome(ctx, out)
		case <-ctx.Done():
			return c.shutdown(ctx, outcomes), ctx.Err()
		}
	}
	return c.summary(), nil
}

// shutdown collects outcomes from in-flight sessions for up to the
// configured grace period after cancellation.  Sessions that fail to report
// in time are written off as cancelled.
func (c *Crawler) shutdown(ctx context.Context,
	outcomes <-chan *peer.Outcome) *Summary {

	if n := len(c.inflight); n > 0 {
		log.Infof("Shutdown requested, waiting up to %v for %d in-flight "+
			"sessions", c.cfg.ShutdownGrace, n)
	}
	grace := time.NewTimer(c.cfg.ShutdownGrace)
	defer grace.Stop()
	for len(c.inflight) > 0 {
		select {
		case out := <-outcomes:
			c.handleOutcome(ctx, out)
		case <-grace.C:
			for key := range c.inflight {
				c.frontier.ReportFailure(key, peer.ErrCancelled)
				c.cancelled++
				delete(c.inflight, key)
			}
		}
	}
	return c.summary()
}

// summary snapshots the terminal accounting from the frontier.
func (c *Crawler) summary() *Summary {
	counts := c.frontier.Counts()
	s := &Summary{
		Succeeded:  counts.Succeeded,
		Failed:     counts.Failed + counts.Exhausted,
		Cancelled:  c.cancelled,
		Remaining:  counts.Pending + counts.InFlight,
		Discovered: c.discovered,
	}
	log.Infof("Crawl finished: %d succeeded, %d failed, %d cancelled, %d "+
		"remaining, %d discovered", s.Succeeded, s.Failed, s.Cancelled,
		s.Remaining, s.Discovered)
	return s
}
