// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2019 The Decred developers
// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crawler

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/decred/dcrd/crypto/rand"

	"github.com/btckit/btccrawl/frontier"
	"github.com/btckit/btccrawl/wire"
)

const (
	// These constants are used by the DNS seed code to pick a random last
	// seen time.
	secondsIn3Days int32 = 24 * 60 * 60 * 3
	secondsIn4Days int32 = 24 * 60 * 60 * 4
)

// OnSeed is the signature of the callback function which is invoked for each
// batch of addresses resolved from a seed.
type OnSeed func(addrs []*frontier.NetAddress)

// LookupFunc is the signature of the DNS lookup function.
type LookupFunc func(string) ([]net.IP, error)

// seedFromDNS resolves the provided seed hostnames concurrently and delivers
// the resulting addresses through the callback.  It blocks until every seed
// has been resolved or has failed.
//
// Seed addresses are stamped with a last-seen time randomly selected between
// 3 and 7 days ago, matching the convention of bitcoind's seeding, so freshly
// seeded addresses do not masquerade as recently verified ones.
func seedFromDNS(dnsSeeds []string, defaultPort uint16, lookupFn LookupFunc,
	seedFn OnSeed) {

	var wg sync.WaitGroup
	for _, seed := range dnsSeeds {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()

			seedIPs, err := lookupFn(host)
			if err != nil {
				log.Infof("DNS discovery failed on seed %s: %v", host, err)
				return
			}
			numPeers := len(seedIPs)

			log.Infof("%d addresses found from DNS seed %s", numPeers, host)

			if numPeers == 0 {
				return
			}
			addrs := make([]*frontier.NetAddress, 0, numPeers)
			for _, ip := range seedIPs {
				ts := time.Now().Add(-1 * time.Second *
					time.Duration(secondsIn3Days+
						rand.Int32N(secondsIn4Days)))
				na, err := frontier.NewNetAddressFromString(
					net.JoinHostPort(ip.String(),
						strconv.Itoa(int(defaultPort))))
				if err != nil {
					log.Debugf("Skipping seed result %s: %v", ip, err)
					continue
				}
				na.Timestamp = ts
				na.Services = wire.SFNodeNetwork
				addrs = append(addrs, na)
			}

			seedFn(addrs)
		}(seed)
	}
	wg.Wait()
}
