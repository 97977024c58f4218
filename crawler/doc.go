// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package crawler implements the concurrent crawl scheduler.

# Overview

The crawler ties the other packages together: it primes a frontier from the
configured seeds (literal addresses or DNS seed hostnames), dispatches
concurrent handshake sessions against frontier entries, and feeds the
addresses each peer advertises back into the frontier until it drains, the
run is cancelled, or a configured peer limit is reached.

Concurrency follows a single-owner discipline: session goroutines only dial
and talk to their peer, delivering the terminal outcome over a channel back
to the Run loop, which is the only goroutine that touches the frontier and
circuit breakers.  A weighted semaphore bounds how many sessions run at
once.

A per-network-group circuit breaker throttles dispatches into address ranges
that are failing in bulk so dead networks do not dominate the crawl.  DNS
seed resolution can be pointed through a Tor SOCKS proxy with TorLookupIP,
and the dial function is pluggable for proxied transports.
*/
package crawler
