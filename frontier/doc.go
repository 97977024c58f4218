// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package frontier implements the deduplicated crawl queue with retry policy.

# Overview

The frontier is the shared set of every address the crawl has ever learned
about, keyed by host:port.  Each address is tracked by exactly one entry for
the lifetime of the crawl, so a peer that is advertised by thousands of other
peers is still contacted at most the configured number of times.

Entries move through a small lifecycle: pending entries are dispatched by
Take, which marks them in flight; the outcome of the session is then fed back
through ReportSuccess or ReportFailure.  Transient failures (connection
errors and timeouts) are retried with exponential backoff until the attempt
budget is consumed, persistent failures (protocol violations and unsupported
peers) are never retried, and cancelled attempts return to the queue without
consuming an attempt.

Dispatch order favors addresses that have been advertised by the most
distinct peers, since corroborated addresses are most likely to be live,
falling back to first-seen order.

The frontier also provides address routability filtering and the network
group keys used by callers to throttle per-network failures.
*/
package frontier
