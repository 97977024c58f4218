// Copyright (c) 2021-2025 The Decred developers
// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package frontier

import (
	"encoding/base32"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/btckit/btccrawl/wire"
)

// NetAddressType is used to indicate which network a network address belongs
// to.
type NetAddressType uint8

// Supported network address types.
const (
	UnknownAddressType NetAddressType = iota
	IPv4Address
	IPv6Address
	TorV3Address
)

// torV3VersionByte is the version byte appended to the checksummed base32
// encoding of a v3 onion service address.
const torV3VersionByte = byte(3)

// NetAddress defines information about a peer on the network.
type NetAddress struct {
	// Type represents the type of an address (IPv4, IPv6, Tor).
	Type NetAddressType

	// IP address of the peer.  It is defined as a byte slice to support
	// various address types that are not standard to the net module and
	// therefore not entirely appropriate to store as a net.IP, such as the
	// 32-byte public key of a v3 onion service.
	IP []byte

	// Port is the port of the remote peer.
	Port uint16

	// Timestamp is the last time the address was seen.
	Timestamp time.Time

	// Services represents the service flags supported by this network
	// address.
	Services wire.ServiceFlag
}

// IsRoutable returns a boolean indicating whether the network address is
// routable over the public internet.
func (netAddr *NetAddress) IsRoutable() bool {
	if netAddr.Type == TorV3Address {
		return true
	}
	return isRoutable(netAddr.IP)
}

// calcTorV3Checksum calculates the checksum bytes of a v3 onion service
// address from its ed25519 public key.
func calcTorV3Checksum(publicKey [32]byte) [2]byte {
	h := sha3.New256()
	h.Write([]byte(".onion checksum"))
	h.Write(publicKey[:])
	h.Write([]byte{torV3VersionByte})
	var checksum [2]byte
	copy(checksum[:], h.Sum(nil)[:2])
	return checksum
}

// ipString returns a string representation of the network address' IP field.
// It does not include the port.
func (netAddr *NetAddress) ipString() string {
	netIP := netAddr.IP
	switch netAddr.Type {
	case IPv4Address, IPv6Address:
		return net.IP(netIP).String()
	case TorV3Address:
		var publicKey [32]byte
		copy(publicKey[:], netIP)
		checksum := calcTorV3Checksum(publicKey)
		var torAddressBytes [35]byte
		copy(torAddressBytes[:32], publicKey[:])
		copy(torAddressBytes[32:34], checksum[:])
		torAddressBytes[34] = torV3VersionByte
		encoded := base32.StdEncoding.EncodeToString(torAddressBytes[:])
		return strings.ToLower(encoded) + ".onion"
	}

	return fmt.Sprintf("unsupported address type %d, %x", netAddr.Type, netIP)
}

// Key returns a string that can be used to uniquely represent the network
// address and includes the port.  It is the dedup key for frontier entries.
func (netAddr *NetAddress) Key() string {
	portString := strconv.FormatUint(uint64(netAddr.Port), 10)
	return net.JoinHostPort(netAddr.ipString(), portString)
}

// String returns a human-readable string for the network address.  This is
// equivalent to calling Key, but is provided so the type can be used as a
// fmt.Stringer.
func (netAddr *NetAddress) String() string {
	return netAddr.Key()
}

// GroupKey returns a string representing the network group an address is
// part of.  This is the /16 for IPv4, the /32 (/36 for he.net) for IPv6, the
// string "tor:key" where key is the /4 of the onion public key for Tor
// addresses, the string "local" for a local address, and the string
// "unroutable" for an unroutable address.  It is the tracking key for the
// scheduler's circuit breaker.
func (netAddr *NetAddress) GroupKey() string {
	if netAddr.Type == TorV3Address {
		return fmt.Sprintf("tor:%d", netAddr.IP[0]&((1<<4)-1))
	}

	netIP := net.IP(netAddr.IP)
	if isLocal(netIP) {
		return "local"
	}
	if !isRoutable(netIP) {
		return "unroutable"
	}
	if isIPv4(netIP) {
		return netIP.Mask(net.CIDRMask(16, 32)).String()
	}

	// bitcoind uses /32 for everything, except for Hurricane Electric's
	// (he.net) IP range, which it uses /36 for.
	bits := 32
	if heNet.Contains(netIP) {
		bits = 36
	}
	return netIP.Mask(net.CIDRMask(bits, 128)).String()
}

// Clone creates a shallow copy of the NetAddress instance.  The IP reference
// is shared since it is not mutated.
func (netAddr *NetAddress) Clone() *NetAddress {
	netAddrCopy := *netAddr
	return &netAddrCopy
}

// deriveNetAddressType attempts to determine the network address type from
// the address' raw bytes.  If the type cannot be determined, an error is
// returned.  The claimedType parameter provides a hint for ambiguous byte
// lengths.
func deriveNetAddressType(claimedType NetAddressType, addrBytes []byte) (NetAddressType, error) {
	switch {
	case isIPv4(addrBytes):
		return IPv4Address, nil
	case len(addrBytes) == 16:
		return IPv6Address, nil
	case len(addrBytes) == 32 && claimedType == TorV3Address:
		return TorV3Address, nil
	}
	str := fmt.Sprintf("unable to determine address type from raw network "+
		"address bytes: %x", addrBytes)
	return UnknownAddressType, makeError(ErrUnknownAddressType, str)
}

// canonicalizeIP converts the provided address' bytes into a standard
// structure based on the type of the network address, if applicable.
func canonicalizeIP(addrType NetAddressType, addrBytes []byte) []byte {
	if addrBytes == nil {
		return nil
	}
	switch {
	case len(addrBytes) == 16 && addrType == IPv4Address:
		return net.IP(addrBytes).To4()
	case addrType == IPv6Address:
		return net.IP(addrBytes).To16()
	}
	// Given a Tor address (or other), the bytes are returned unchanged.
	return addrBytes
}

// NewNetAddressFromParams creates a new network address from the given
// parameters.  If the provided address type does not appear to match the
// address, an error is returned.
func NewNetAddressFromParams(addrType NetAddressType, addrBytes []byte,
	port uint16, timestamp time.Time, services wire.ServiceFlag) (*NetAddress, error) {

	canonicalizedIP := canonicalizeIP(addrType, addrBytes)
	derivedType, err := deriveNetAddressType(addrType, canonicalizedIP)
	if err != nil {
		return nil, err
	}
	if addrType != derivedType {
		str := fmt.Sprintf("derived address type does not match expected "+
			"value (got %v, expected %v, address bytes %x)", derivedType,
			addrType, canonicalizedIP)
		return nil, makeError(ErrMismatchedAddressType, str)
	}
	return &NetAddress{
		Type:      addrType,
		IP:        canonicalizedIP,
		Port:      port,
		Timestamp: timestamp,
		Services:  services,
	}, nil
}

// NewNetAddressFromWire converts a BIP0155 wire address into a frontier
// network address.  Address types the frontier does not crawl (I2P, CJDNS,
// and the retired Tor v2 format) produce an ErrUnknownAddressType error.
func NewNetAddressFromWire(na *wire.NetAddressV2) (*NetAddress, error) {
	var addrType NetAddressType
	switch na.Type {
	case wire.IPv4Address:
		addrType = IPv4Address
	case wire.IPv6Address:
		addrType = IPv6Address
	case wire.TorV3Address:
		addrType = TorV3Address
	default:
		str := fmt.Sprintf("no support for crawling addresses of wire "+
			"type %d", na.Type)
		return nil, makeError(ErrUnknownAddressType, str)
	}
	return NewNetAddressFromParams(addrType, na.Addr, na.Port, na.Timestamp,
		na.Services)
}

// EncodeHost converts a host name string into the raw bytes of the
// appropriate network address type.  Supported formats are dotted IPv4,
// IPv6, and v3 onion service names ending in ".onion".
func EncodeHost(host string) (NetAddressType, []byte) {
	if strings.HasSuffix(host, ".onion") {
		encoded := strings.ToUpper(strings.TrimSuffix(host, ".onion"))
		decoded, err := base32.StdEncoding.DecodeString(encoded)
		if err != nil || len(decoded) != 35 ||
			decoded[34] != torV3VersionByte {
			return UnknownAddressType, nil
		}

		var publicKey [32]byte
		copy(publicKey[:], decoded[:32])
		checksum := calcTorV3Checksum(publicKey)
		if decoded[32] != checksum[0] || decoded[33] != checksum[1] {
			return UnknownAddressType, nil
		}
		return TorV3Address, decoded[:32]
	}

	if ip := net.ParseIP(host); ip != nil {
		if isIPv4(ip) {
			return IPv4Address, ip.To4()
		}
		return IPv6Address, ip.To16()
	}

	return UnknownAddressType, nil
}

// NewNetAddressFromString creates a new network address from the given
// string, which is expected to be provided in the format "host:port".
func NewNetAddressFromString(addr string) (*NetAddress, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}
	addrType, addrBytes := EncodeHost(host)
	if addrType == UnknownAddressType {
		str := fmt.Sprintf("failed to deserialize address %s", addr)
		return nil, makeError(ErrUnknownAddressType, str)
	}
	timestamp := time.Unix(time.Now().Unix(), 0)
	return NewNetAddressFromParams(addrType, addrBytes, uint16(port),
		timestamp, wire.SFNodeNetwork)
}
