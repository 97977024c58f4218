// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// TestNetAddress tests the NetAddress API.
func TestNetAddress(t *testing.T) {
	ip := net.ParseIP("127.0.0.1")
	port := 8333

	// Test NewNetAddress.
	na := NewNetAddress(&net.TCPAddr{IP: ip, Port: port}, 0)

	// Ensure we get the same ip, port, and services back out.
	if !na.IP.Equal(ip) {
		t.Errorf("NetNetAddress: wrong ip - got %v, want %v", na.IP, ip)
	}
	if na.Port != uint16(port) {
		t.Errorf("NetNetAddress: wrong port - got %v, want %v", na.Port,
			port)
	}
	if na.Services != 0 {
		t.Errorf("NetNetAddress: wrong services - got %v, want %v",
			na.Services, 0)
	}
	if na.HasService(SFNodeNetwork) {
		t.Errorf("HasService: SFNodeNetwork service is set")
	}

	// Ensure adding the full service node flag works.
	na.AddService(SFNodeNetwork)
	if na.Services != SFNodeNetwork {
		t.Errorf("AddService: wrong services - got %v, want %v",
			na.Services, SFNodeNetwork)
	}
	if !na.HasService(SFNodeNetwork) {
		t.Errorf("HasService: SFNodeNetwork service not set")
	}
}

// TestNetAddressWire tests wire encode and decode for the legacy NetAddress
// format with and without the timestamp field.
func TestNetAddressWire(t *testing.T) {
	// baseNetAddr is used in the various tests as a baseline NetAddress.
	baseNetAddr := NetAddress{
		Timestamp: time.Unix(0x495fab29, 0), // 2009-01-03 12:15:05 -0600 CST
		Services:  SFNodeNetwork,
		IP:        net.ParseIP("127.0.0.1"),
		Port:      8333,
	}

	// baseNetAddrNoTS is baseNetAddr with a zero value for the timestamp.
	baseNetAddrNoTS := baseNetAddr
	baseNetAddrNoTS.Timestamp = time.Time{}

	// baseNetAddrEncoded is the wire encoded bytes of baseNetAddr.
	baseNetAddrEncoded := []byte{
		0x29, 0xab, 0x5f, 0x49, // Timestamp
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // SFNodeNetwork
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0xff, 0xff, 0x7f, 0x00, 0x00, 0x01, // IP 127.0.0.1
		0x20, 0x8d, // Port 8333 in big-endian
	}

	// baseNetAddrNoTSEncoded is the wire encoded bytes of baseNetAddrNoTS.
	baseNetAddrNoTSEncoded := []byte{
		// No timestamp
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // SFNodeNetwork
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0xff, 0xff, 0x7f, 0x00, 0x00, 0x01, // IP 127.0.0.1
		0x20, 0x8d, // Port 8333 in big-endian
	}

	tests := []struct {
		in   NetAddress // NetAddress to encode
		out  NetAddress // Expected decoded NetAddress
		ts   bool       // Include timestamp?
		buf  []byte     // Wire encoding
		pver uint32     // Protocol version for wire encoding
	}{
		// Latest protocol version without ts flag.
		{
			baseNetAddr,
			baseNetAddrNoTS,
			false,
			baseNetAddrNoTSEncoded,
			ProtocolVersion,
		},

		// Latest protocol version with ts flag.
		{
			baseNetAddr,
			baseNetAddr,
			true,
			baseNetAddrEncoded,
			ProtocolVersion,
		},

		// Protocol version before NetAddressTimeVersion with ts flag.
		// Timestamp is excluded regardless.
		{
			baseNetAddr,
			baseNetAddrNoTS,
			true,
			baseNetAddrNoTSEncoded,
			NetAddressTimeVersion - 1,
		},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		// Encode to wire format.
		var buf bytes.Buffer
		err := writeNetAddress(&buf, test.pver, &test.in, test.ts)
		if err != nil {
			t.Errorf("writeNetAddress #%d error %v", i, err)
			continue
		}
		if !bytes.Equal(buf.Bytes(), test.buf) {
			t.Errorf("writeNetAddress #%d\n got: %s want: %s", i,
				spew.Sdump(buf.Bytes()), spew.Sdump(test.buf))
			continue
		}

		// Decode from wire format.
		var na NetAddress
		rbuf := bytes.NewReader(test.buf)
		err = readNetAddress(rbuf, test.pver, &na, test.ts)
		if err != nil {
			t.Errorf("readNetAddress #%d error %v", i, err)
			continue
		}
		if !na.IP.Equal(test.out.IP) {
			t.Errorf("readNetAddress #%d\n got ip: %v want: %v", i,
				na.IP, test.out.IP)
			continue
		}
		if na.Port != test.out.Port || na.Services != test.out.Services {
			t.Errorf("readNetAddress #%d\n got: %s want: %s", i,
				spew.Sdump(na), spew.Sdump(test.out))
			continue
		}
		if test.ts && test.pver >= NetAddressTimeVersion &&
			!na.Timestamp.Equal(test.out.Timestamp) {

			t.Errorf("readNetAddress #%d\n got ts: %v want: %v", i,
				na.Timestamp, test.out.Timestamp)
			continue
		}
	}
}

// TestNetAddressV2Wire tests wire encode and decode for the BIP0155 network
// address format.
func TestNetAddressV2Wire(t *testing.T) {
	pver := ProtocolVersion

	torV3Bytes := bytes.Repeat([]byte{0xab}, 32)
	baseV4 := NetAddressV2{
		Timestamp: time.Unix(0x495fab29, 0),
		Services:  SFNodeNetwork,
		Type:      IPv4Address,
		Addr:      []byte{0x7f, 0x00, 0x00, 0x01},
		Port:      8333,
	}
	baseTorV3 := NetAddressV2{
		Timestamp: time.Unix(0x495fab29, 0),
		Services:  SFNodeNetwork,
		Type:      TorV3Address,
		Addr:      torV3Bytes,
		Port:      8333,
	}

	baseV4Encoded := []byte{
		0x29, 0xab, 0x5f, 0x49, // Timestamp
		0x01,                   // SFNodeNetwork as a varint
		0x01,                   // IPv4Address network id
		0x04,                   // Address length
		0x7f, 0x00, 0x00, 0x01, // IP 127.0.0.1
		0x20, 0x8d, // Port 8333 in big-endian
	}

	tests := []struct {
		in   NetAddressV2 // NetAddressV2 to encode
		buf  []byte       // Wire encoding
		pver uint32       // Protocol version for wire encoding
	}{
		{baseV4, baseV4Encoded, pver},
		{baseTorV3, nil, pver},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		// Encode to wire format.
		var buf bytes.Buffer
		err := writeNetAddressV2("test", &buf, test.pver, &test.in)
		if err != nil {
			t.Errorf("writeNetAddressV2 #%d error %v", i, err)
			continue
		}
		if test.buf != nil && !bytes.Equal(buf.Bytes(), test.buf) {
			t.Errorf("writeNetAddressV2 #%d\n got: %s want: %s", i,
				spew.Sdump(buf.Bytes()), spew.Sdump(test.buf))
			continue
		}

		// Decode from wire format.
		var na NetAddressV2
		rbuf := bytes.NewReader(buf.Bytes())
		known, err := readNetAddressV2("test", rbuf, test.pver, &na)
		if err != nil {
			t.Errorf("readNetAddressV2 #%d error %v", i, err)
			continue
		}
		if !known {
			t.Errorf("readNetAddressV2 #%d known network id reported "+
				"as unknown", i)
			continue
		}
		if !reflect.DeepEqual(na, test.in) {
			t.Errorf("readNetAddressV2 #%d\n got: %s want: %s", i,
				spew.Sdump(na), spew.Sdump(test.in))
			continue
		}
	}
}

// TestNetAddressV2UnknownType ensures decoding an address with an unknown
// network id skips the address rather than treating the stream as malformed
// and that encoding one is rejected.
func TestNetAddressV2UnknownType(t *testing.T) {
	pver := ProtocolVersion

	// Address with an unknown network id 0x07 and 5 address bytes.
	encoded := []byte{
		0x29, 0xab, 0x5f, 0x49, // Timestamp
		0x01,                         // SFNodeNetwork as a varint
		0x07,                         // Unknown network id
		0x05,                         // Address length
		0x01, 0x02, 0x03, 0x04, 0x05, // Address bytes
		0x20, 0x8d, // Port 8333 in big-endian
	}

	var na NetAddressV2
	rbuf := bytes.NewReader(encoded)
	known, err := readNetAddressV2("test", rbuf, pver, &na)
	if err != nil {
		t.Fatalf("readNetAddressV2 error %v", err)
	}
	if known {
		t.Fatal("readNetAddressV2 reported an unknown network id as known")
	}

	// Ensure all bytes of the skipped address were consumed so the next
	// address in a list decodes from the correct offset.
	if rbuf.Len() != 0 {
		t.Fatalf("readNetAddressV2 left %d unconsumed bytes", rbuf.Len())
	}

	// Encoding an unknown network id must fail.
	na = NetAddressV2{Type: NetAddressType(0x07), Addr: []byte{0x01}}
	err = writeNetAddressV2("test", &bytes.Buffer{}, pver, &na)
	if !errors.Is(err, ErrUnknownAddrType) {
		t.Fatalf("writeNetAddressV2 unexpected error %v", err)
	}
}

// TestNetAddressV2BadLength ensures decoding an address whose declared length
// does not match its network id is rejected.
func TestNetAddressV2BadLength(t *testing.T) {
	pver := ProtocolVersion

	// IPv4 address with 5 address bytes instead of 4.
	encoded := []byte{
		0x29, 0xab, 0x5f, 0x49, // Timestamp
		0x01,                         // SFNodeNetwork as a varint
		0x01,                         // IPv4Address network id
		0x05,                         // Address length (invalid)
		0x01, 0x02, 0x03, 0x04, 0x05, // Address bytes
		0x20, 0x8d, // Port 8333 in big-endian
	}

	var na NetAddressV2
	rbuf := bytes.NewReader(encoded)
	_, err := readNetAddressV2("test", rbuf, pver, &na)
	if !errors.Is(err, ErrInvalidMsg) {
		t.Fatalf("readNetAddressV2 unexpected error %v", err)
	}
}
