// Copyright (c) 2021-2025 The Decred developers
// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package frontier

import (
	"bytes"
	"encoding/base32"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/btckit/btccrawl/wire"
)

// torV3TestKey is a fixed 32-byte public key used to exercise the v3 onion
// service encoding paths.
var torV3TestKey = func() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i*7 + 1)
	}
	return key
}()

// TestKey ensures the dedup key produced for each address type parses back
// to an identical address.
func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		addrType NetAddressType
		ip       []byte
		port     uint16
		want     string
	}{{
		name:     "ipv4",
		addrType: IPv4Address,
		ip:       []byte{203, 0, 114, 35},
		port:     8333,
		want:     "203.0.114.35:8333",
	}, {
		name:     "ipv6",
		addrType: IPv6Address,
		ip: []byte{0x20, 0x01, 0x04, 0x70, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
			0, 0x01},
		port: 8333,
		want: "[2001:470::1]:8333",
	}, {
		name:     "tor v3",
		addrType: TorV3Address,
		ip:       torV3TestKey,
		port:     8333,
	}}

	for _, test := range tests {
		na, err := NewNetAddressFromParams(test.addrType, test.ip, test.port,
			time.Time{}, wire.SFNodeNetwork)
		if err != nil {
			t.Errorf("%s: NewNetAddressFromParams: %v", test.name, err)
			continue
		}
		key := na.Key()
		if test.want != "" && key != test.want {
			t.Errorf("%s: key mismatch: got %s, want %s", test.name, key,
				test.want)
		}

		// The key must round trip through the string parser.
		parsed, err := NewNetAddressFromString(key)
		if err != nil {
			t.Errorf("%s: NewNetAddressFromString(%s): %v", test.name, key,
				err)
			continue
		}
		if parsed.Type != test.addrType {
			t.Errorf("%s: round trip type: got %v, want %v", test.name,
				parsed.Type, test.addrType)
		}
		if !bytes.Equal(parsed.IP, na.IP) {
			t.Errorf("%s: round trip IP: got %x, want %x", test.name,
				parsed.IP, na.IP)
		}
		if parsed.Port != test.port {
			t.Errorf("%s: round trip port: got %d, want %d", test.name,
				parsed.Port, test.port)
		}
	}
}

// TestEncodeHostBadOnion ensures onion names with corrupted checksums,
// lengths, or version bytes are rejected.
func TestEncodeHostBadOnion(t *testing.T) {
	// Construct a valid encoding, then corrupt pieces of it.
	var publicKey [32]byte
	copy(publicKey[:], torV3TestKey)
	checksum := calcTorV3Checksum(publicKey)

	encode := func(mutate func(raw []byte)) string {
		raw := make([]byte, 35)
		copy(raw[:32], publicKey[:])
		copy(raw[32:34], checksum[:])
		raw[34] = torV3VersionByte
		if mutate != nil {
			mutate(raw)
		}
		return strings.ToLower(base32.StdEncoding.EncodeToString(raw)) +
			".onion"
	}

	if typ, _ := EncodeHost(encode(nil)); typ != TorV3Address {
		t.Fatalf("valid onion rejected: got type %v", typ)
	}

	tests := []struct {
		name string
		host string
	}{{
		name: "bad checksum",
		host: encode(func(raw []byte) { raw[32] ^= 0xff }),
	}, {
		name: "bad version byte",
		host: encode(func(raw []byte) { raw[34] = 2 }),
	}, {
		name: "truncated",
		host: strings.ToLower(base32.StdEncoding.EncodeToString(
			publicKey[:])) + ".onion",
	}, {
		name: "not base32",
		host: "not!valid!base32!.onion",
	}}
	for _, test := range tests {
		if typ, _ := EncodeHost(test.host); typ != UnknownAddressType {
			t.Errorf("%s: got type %v, want unknown", test.name, typ)
		}
	}
}

// TestNewNetAddressFromWire ensures wire address types map to the expected
// frontier types and uncrawlable networks are rejected.
func TestNewNetAddressFromWire(t *testing.T) {
	ts := time.Unix(0x495fab29, 0)
	tests := []struct {
		name     string
		wireType wire.NetAddressType
		addr     []byte
		wantType NetAddressType
		wantErr  bool
	}{{
		name:     "ipv4",
		wireType: wire.IPv4Address,
		addr:     []byte{8, 8, 4, 4},
		wantType: IPv4Address,
	}, {
		name:     "ipv6",
		wireType: wire.IPv6Address,
		addr: []byte{0x20, 0x01, 0x04, 0x70, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
			0, 0x01},
		wantType: IPv6Address,
	}, {
		name:     "tor v3",
		wireType: wire.TorV3Address,
		addr:     torV3TestKey,
		wantType: TorV3Address,
	}, {
		name:     "tor v2 retired",
		wireType: wire.TorV2Address,
		addr:     bytes.Repeat([]byte{0x01}, 10),
		wantErr:  true,
	}, {
		name:     "i2p unsupported",
		wireType: wire.I2PAddress,
		addr:     bytes.Repeat([]byte{0x01}, 32),
		wantErr:  true,
	}, {
		name:     "cjdns unsupported",
		wireType: wire.CJDNSAddress,
		addr:     append([]byte{0xfc}, bytes.Repeat([]byte{0x01}, 15)...),
		wantErr:  true,
	}}

	for _, test := range tests {
		wireAddr := wire.NewNetAddressV2(test.wireType, test.addr, 8333, ts,
			wire.SFNodeNetwork)
		na, err := NewNetAddressFromWire(&wireAddr)
		if test.wantErr {
			if !errors.Is(err, ErrUnknownAddressType) {
				t.Errorf("%s: got err %v, want %v", test.name, err,
					ErrUnknownAddressType)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected err: %v", test.name, err)
			continue
		}
		if na.Type != test.wantType {
			t.Errorf("%s: type: got %v, want %v", test.name, na.Type,
				test.wantType)
		}
		if na.Port != 8333 || !na.Timestamp.Equal(ts) {
			t.Errorf("%s: metadata not carried over", test.name)
		}
	}
}

// TestGroupKey ensures network group derivation for throttling.
func TestGroupKey(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{{
		name: "ipv4 /16",
		host: "204.124.8.100:8333",
		want: "204.124.0.0",
	}, {
		name: "another ipv4 /16",
		host: "8.8.8.8:8333",
		want: "8.8.0.0",
	}, {
		name: "loopback",
		host: "127.0.0.1:8333",
		want: "local",
	}, {
		name: "rfc1918",
		host: "10.1.2.3:8333",
		want: "unroutable",
	}, {
		name: "ipv6 /32",
		host: "[2602:100::1]:8333",
		want: "2602:100::",
	}, {
		name: "he.net /36",
		host: "[2001:470:1f10:a1::2]:8333",
		want: "2001:470:1000::",
	}}

	for _, test := range tests {
		na, err := NewNetAddressFromString(test.host)
		if err != nil {
			t.Fatalf("%s: NewNetAddressFromString: %v", test.name, err)
		}
		if got := na.GroupKey(); got != test.want {
			t.Errorf("%s: got %s, want %s", test.name, got, test.want)
		}
	}

	// Tor addresses group on the low nibble of the public key's first
	// byte.
	na, err := NewNetAddressFromParams(TorV3Address, torV3TestKey, 8333,
		time.Time{}, wire.SFNodeNetwork)
	if err != nil {
		t.Fatalf("NewNetAddressFromParams: %v", err)
	}
	want := "tor:1"
	if got := na.GroupKey(); got != want {
		t.Errorf("tor group: got %s, want %s", got, want)
	}
}
