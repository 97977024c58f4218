// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/btckit/btccrawl/wire"
)

// params defines the crawl parameters of a bitcoin network.
type params struct {
	// name is the human-readable network name used in option parsing and
	// log output.
	name string

	// net is the wire magic of the network.
	net wire.BitcoinNet

	// defaultPort is the network's well-known peer-to-peer port.
	defaultPort uint16

	// dnsSeeds are the network's DNS seed hostnames, used as crawl
	// starting points when no seeds are given on the command line.
	dnsSeeds []string
}

// mainNetParams contains the crawl parameters for the main network.
var mainNetParams = params{
	name:        "mainnet",
	net:         wire.MainNet,
	defaultPort: 8333,
	dnsSeeds: []string{
		"seed.bitcoin.sipa.be",
		"dnsseed.bluematt.me",
		"seed.bitcoinstats.com",
		"seed.bitcoin.jonasschnelli.ch",
		"seed.btc.petertodd.net",
		"seed.bitcoin.sprovoost.nl",
		"dnsseed.emzy.de",
		"seed.bitcoin.wiz.biz",
	},
}

// testNet3Params contains the crawl parameters for the version 3 test
// network.
var testNet3Params = params{
	name:        "testnet",
	net:         wire.TestNet3,
	defaultPort: 18333,
	dnsSeeds: []string{
		"testnet-seed.bitcoin.jonasschnelli.ch",
		"seed.tbtc.petertodd.net",
		"seed.testnet.bitcoin.sprovoost.nl",
		"testnet-seed.bluematt.me",
	},
}
