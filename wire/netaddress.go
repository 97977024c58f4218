// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
	"net"
	"time"
)

// NetAddress defines information about a peer on the network including the
// time it was last seen, the services it supports, its IP address, and port.
// This is the legacy fixed-size address format used by the version and addr
// messages.
type NetAddress struct {
	// Timestamp is the last time the address was seen.  This is, unfortunately,
	// encoded as a uint32 on the wire and therefore is limited to 2106.  It is
	// not present in the version message nor in addr messages prior to
	// protocol version NetAddressTimeVersion.
	Timestamp time.Time

	// Services represents the service flags supported by this network address.
	Services ServiceFlag

	// IP address of the peer.  IPv4 addresses are stored as 16-byte
	// IPv4-on-IPv6 mapped addresses on the wire.
	IP net.IP

	// Port is the port of the remote peer in network byte order.
	Port uint16
}

// HasService returns whether the specified service is supported by the
// address.
func (na *NetAddress) HasService(service ServiceFlag) bool {
	return na.Services&service == service
}

// AddService adds the provided service to the set of services that the
// address supports.
func (na *NetAddress) AddService(service ServiceFlag) {
	na.Services |= service
}

// NewNetAddressIPPort returns a new NetAddress using the provided IP, port,
// and supported services with a current timestamp.
func NewNetAddressIPPort(ip net.IP, port uint16, services ServiceFlag) *NetAddress {
	// Limit the timestamp to one second precision since the protocol
	// doesn't support better.
	return NewNetAddressTimestamp(time.Now(), services, ip, port)
}

// NewNetAddressTimestamp returns a new NetAddress using the provided
// timestamp, IP, port, and supported services.  The timestamp is rounded to
// single second precision.
func NewNetAddressTimestamp(timestamp time.Time, services ServiceFlag,
	ip net.IP, port uint16) *NetAddress {

	na := NetAddress{
		Timestamp: time.Unix(timestamp.Unix(), 0),
		Services:  services,
		IP:        ip,
		Port:      port,
	}
	return &na
}

// NewNetAddress returns a new NetAddress using the provided TCP address and
// supported services with a current timestamp.
func NewNetAddress(addr *net.TCPAddr, services ServiceFlag) *NetAddress {
	return NewNetAddressIPPort(addr.IP, uint16(addr.Port), services)
}

// maxNetAddressPayload returns the max payload size for a bitcoin NetAddress
// based on the protocol version.
func maxNetAddressPayload(pver uint32) uint32 {
	// Services 8 bytes + ip 16 bytes + port 2 bytes.
	plen := uint32(26)

	// NetAddressTimeVersion added a timestamp field.
	if pver >= NetAddressTimeVersion {
		// Timestamp 4 bytes.
		plen += 4
	}

	return plen
}

// readNetAddress reads an encoded NetAddress from r depending on the
// protocol version and whether or not the timestamp is included per ts.
// Some messages like version do not include the timestamp.
func readNetAddress(r io.Reader, pver uint32, na *NetAddress, ts bool) error {
	var ip [16]byte

	// NOTE: The bitcoin protocol uses a uint32 for the timestamp so it will
	// stop working somewhere around 2106.  Also timestamp wasn't added until
	// protocol version >= NetAddressTimeVersion
	if ts && pver >= NetAddressTimeVersion {
		err := readElement(r, (*uint32Time)(&na.Timestamp))
		if err != nil {
			return err
		}
	}

	err := readElements(r, &na.Services, &ip)
	if err != nil {
		return err
	}

	// Sigh.  Bitcoin protocol mixes little and big endian.
	var port uint16
	err = readUint16BE(r, &port)
	if err != nil {
		return err
	}

	na.IP = net.IP(ip[:])
	na.Port = port
	return nil
}

// writeNetAddress serializes a NetAddress to w depending on the protocol
// version and whether or not the timestamp is included per ts.  Some
// messages like version do not include the timestamp.
func writeNetAddress(w io.Writer, pver uint32, na *NetAddress, ts bool) error {
	if ts && pver >= NetAddressTimeVersion {
		err := writeElement(w, (*uint32Time)(&na.Timestamp))
		if err != nil {
			return err
		}
	}

	// Ensure to always write 16 bytes even if the ip is nil.
	var ip [16]byte
	if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	err := writeElements(w, &na.Services, &ip)
	if err != nil {
		return err
	}

	// Sigh.  Bitcoin protocol mixes little and big endian.
	return writeUint16BE(w, na.Port)
}

// NetAddressType is used to indicate the network type of an address carried
// by an addrv2 message per BIP0155.
type NetAddressType uint8

// Address types defined by BIP0155 along with the exact number of address
// bytes each requires on the wire.
const (
	IPv4Address  NetAddressType = 1
	IPv6Address  NetAddressType = 2
	TorV2Address NetAddressType = 3
	TorV3Address NetAddressType = 4
	I2PAddress   NetAddressType = 5
	CJDNSAddress NetAddressType = 6
)

// netAddressTypeLen maps known address types to their required address byte
// length on the wire.  Addresses with a type not in this map are ignored on
// decode per BIP0155.
var netAddressTypeLen = map[NetAddressType]int{
	IPv4Address:  4,
	IPv6Address:  16,
	TorV2Address: 10,
	TorV3Address: 32,
	I2PAddress:   32,
	CJDNSAddress: 16,
}

// NetAddressV2 defines information about a peer on the network in the
// BIP0155 addrv2 format which supports address types beyond IPv4 and IPv6.
//
// The field order matches the wire protocol encoding order.
type NetAddressV2 struct {
	// Timestamp is the last time the address was seen.
	Timestamp time.Time

	// Services represents the service flags supported by this network
	// address.
	Services ServiceFlag

	// Type represents the network that the address belongs to.
	Type NetAddressType

	// Addr is the raw network address.  It is defined as a byte slice to
	// support address types that are not appropriate to store as a net.IP
	// (such as Tor v3 public keys).
	Addr []byte

	// Port is the port of the remote peer.
	Port uint16
}

// NewNetAddressV2 creates a new v2 network address using the provided
// parameters without validation.
func NewNetAddressV2(addrType NetAddressType, addrBytes []byte, port uint16,
	timestamp time.Time, services ServiceFlag) NetAddressV2 {

	return NetAddressV2{
		Timestamp: time.Unix(timestamp.Unix(), 0),
		Services:  services,
		Type:      addrType,
		Addr:      addrBytes,
		Port:      port,
	}
}

// IP returns the address as a net.IP when the address type has a standard
// IP representation and nil otherwise.
func (na *NetAddressV2) IP() net.IP {
	switch na.Type {
	case IPv4Address, IPv6Address, CJDNSAddress:
		return net.IP(na.Addr)
	}
	return nil
}

// readNetAddressV2 reads an encoded BIP0155 network address from r into the
// provided NetAddressV2.  It returns false when the address carried an
// unknown network id and was skipped, which is not an error per BIP0155.
func readNetAddressV2(op string, r io.Reader, pver uint32, na *NetAddressV2) (bool, error) {
	// Time is a uint32 in the v2 encoding as well.
	err := readElement(r, (*uint32Time)(&na.Timestamp))
	if err != nil {
		return false, err
	}

	// Unlike the legacy encoding, services are encoded as a variable
	// length integer.
	services, err := ReadVarInt(r, pver)
	if err != nil {
		return false, err
	}
	na.Services = ServiceFlag(services)

	// Read the network id to determine the expected length of the address
	// field.
	err = readElement(r, (*uint8)(&na.Type))
	if err != nil {
		return false, err
	}

	addrLen, err := ReadVarInt(r, pver)
	if err != nil {
		return false, err
	}
	if addrLen > maxV2AddressBytes {
		msg := fmt.Sprintf("address bytes too long [len %d, max %d]",
			addrLen, maxV2AddressBytes)
		return false, messageError(op, ErrInvalidMsg, msg)
	}

	addrBytes := make([]byte, addrLen)
	_, err = io.ReadFull(r, addrBytes)
	if err != nil {
		return false, err
	}

	var port uint16
	err = readUint16BE(r, &port)
	if err != nil {
		return false, err
	}

	// Addresses with an unknown network id must be skipped rather than
	// treated as malformed so future network types do not break older
	// clients.
	wantLen, ok := netAddressTypeLen[na.Type]
	if !ok {
		return false, nil
	}
	if int(addrLen) != wantLen {
		msg := fmt.Sprintf("invalid address length for network id %d "+
			"[len %d, want %d]", na.Type, addrLen, wantLen)
		return false, messageError(op, ErrInvalidMsg, msg)
	}

	na.Addr = addrBytes
	na.Port = port
	return true, nil
}

// writeNetAddressV2 serializes a BIP0155 network address to w.
func writeNetAddressV2(op string, w io.Writer, pver uint32, na *NetAddressV2) error {
	err := writeElement(w, (*uint32Time)(&na.Timestamp))
	if err != nil {
		return err
	}

	err = WriteVarInt(w, pver, uint64(na.Services))
	if err != nil {
		return err
	}

	err = writeUint8(w, uint8(na.Type))
	if err != nil {
		return err
	}

	wantLen, ok := netAddressTypeLen[na.Type]
	if !ok {
		msg := fmt.Sprintf("cannot encode unknown network address type %d",
			na.Type)
		return messageError(op, ErrUnknownAddrType, msg)
	}
	if len(na.Addr) != wantLen {
		msg := fmt.Sprintf("invalid address length for network id %d "+
			"[len %d, want %d]", na.Type, len(na.Addr), wantLen)
		return messageError(op, ErrInvalidMsg, msg)
	}

	err = WriteVarInt(w, pver, uint64(len(na.Addr)))
	if err != nil {
		return err
	}
	_, err = w.Write(na.Addr)
	if err != nil {
		return err
	}

	return writeUint16BE(w, na.Port)
}

// maxV2AddressBytes is the maximum number of address bytes a single BIP0155
// network address may declare.  BIP0155 fixes this at 512 so that clients
// can skip addresses from networks they do not know about.
const maxV2AddressBytes = 512
