// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package peer drives a single crawl connection to a terminal outcome.

The package splits the work in two: a pure handshake state machine that
consumes received messages and produces messages to send, and a Session that
owns the transport connection, enforces the connect, per-phase, and overall
session deadlines, and translates every failure into a small typed taxonomy
(transport, timeout, protocol violation, unsupported peer, cancelled).

A Session produces exactly one Outcome per crawled address: the peer's
self-reported identity and harvested addresses on success, or an Error
carrying the failure kind and the handshake phase it occurred in.  Retry
policy deliberately lives with the caller; a session never retries.
*/
package peer
