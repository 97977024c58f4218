// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
btccrawl is a crawler for the bitcoin peer-to-peer network.

It starts from a set of seed addresses or DNS seeds, performs the protocol
handshake with every peer it can reach, asks each one for the addresses it
knows, and keeps going until it has visited everything the network
advertises.  The discovered peers, along with the version, service flags,
and user agent each one reported, are written to the log or to a file.

Usage:

	btccrawl [OPTIONS]

Use btccrawl -h to show the available options.  The default options crawl
the main network from its well-known DNS seeds.  Notable options:

	--testnet        crawl the version 3 test network instead
	--seed           start from a specific address or DNS seed
	--maxpeers       stop after visiting this many peers
	--proxy          route all connections through a SOCKS5 proxy
	-o, --outfile    write discovered peer addresses to a file
	-d, --debuglevel per-subsystem logging verbosity
*/
package main
