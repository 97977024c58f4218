// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"
)

// MaxAddrPerV2Msg is the maximum number of addresses that can be in a single
// bitcoin addrv2 message per BIP0155.
const MaxAddrPerV2Msg = 1000

// MsgAddrV2 implements the Message interface and represents a bitcoin
// addrv2 message per BIP0155.  It is used to provide a list of known active
// peers on the network including peers on networks that cannot be expressed
// in the legacy 16-byte IP format, such as Tor v3 onion services.
type MsgAddrV2 struct {
	// AddrList contains the addresses that will be sent to or have been
	// received from a peer.  Addresses received with an unknown network id
	// are not included.
	AddrList []NetAddressV2
}

// AddAddress adds a known address to the message.  If the maximum number of
// addresses has been reached, then an error is returned.
func (msg *MsgAddrV2) AddAddress(na NetAddressV2) error {
	const op = "MsgAddrV2.AddAddress"
	if len(msg.AddrList)+1 > MaxAddrPerV2Msg {
		msg := fmt.Sprintf("too many addresses in message [max %v]",
			MaxAddrPerV2Msg)
		return messageError(op, ErrTooManyAddrs, msg)
	}

	msg.AddrList = append(msg.AddrList, na)
	return nil
}

// AddAddresses adds multiple known addresses to the message.  If the number
// of addresses exceeds the maximum allowed then an error is returned.
func (msg *MsgAddrV2) AddAddresses(netAddrs ...NetAddressV2) error {
	for _, na := range netAddrs {
		err := msg.AddAddress(na)
		if err != nil {
			return err
		}
	}
	return nil
}

// ClearAddresses removes all addresses from the message.
func (msg *MsgAddrV2) ClearAddresses() {
	msg.AddrList = []NetAddressV2{}
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgAddrV2) BtcDecode(r io.Reader, pver uint32) error {
	const op = "MsgAddrV2.BtcDecode"

	// Read the total number of addresses in this message.
	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}

	// Limit to max addresses per message.
	if count > MaxAddrPerV2Msg {
		msg := fmt.Sprintf("too many addresses for message [count %v, max %v]",
			count, MaxAddrPerV2Msg)
		return messageError(op, ErrTooManyAddrs, msg)
	}

	addrs := make([]NetAddressV2, 0, count)
	for i := uint64(0); i < count; i++ {
		var na NetAddressV2
		known, err := readNetAddressV2(op, r, pver, &na)
		if err != nil {
			return err
		}

		// Addresses from unknown networks are skipped per BIP0155.
		if !known {
			continue
		}
		addrs = append(addrs, na)
	}

	msg.AddrList = addrs
	return nil
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgAddrV2) BtcEncode(w io.Writer, pver uint32) error {
	const op = "MsgAddrV2.BtcEncode"
	count := len(msg.AddrList)
	if count > MaxAddrPerV2Msg {
		msg := fmt.Sprintf("too many addresses for message [count %v, max %v]",
			count, MaxAddrPerV2Msg)
		return messageError(op, ErrTooManyAddrs, msg)
	}

	err := WriteVarInt(w, pver, uint64(count))
	if err != nil {
		return err
	}

	for i := range msg.AddrList {
		err = writeNetAddressV2(op, w, pver, &msg.AddrList[i])
		if err != nil {
			return err
		}
	}

	return nil
}

// Command returns the protocol command string for the message.  This is part
// of the Message interface implementation.
func (msg *MsgAddrV2) Command() string {
	return CmdAddrV2
}

// maxNetAddressPayloadV2 returns the max payload size for a single BIP0155
// network address.
func maxNetAddressPayloadV2(pver uint32) uint32 {
	// Timestamp 4 bytes + services varint + network id 1 byte + address
	// length varint + max address bytes + port 2 bytes.
	return 4 + MaxVarIntPayload + 1 + MaxVarIntPayload +
		maxV2AddressBytes + 2
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.  This is part of the Message interface implementation.
func (msg *MsgAddrV2) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxAddrPerV2Msg)) +
		(MaxAddrPerV2Msg * maxNetAddressPayloadV2(pver))
}

// NewMsgAddrV2 returns a new bitcoin addrv2 message that conforms to the
// Message interface.  See MsgAddrV2 for details.
func NewMsgAddrV2() *MsgAddrV2 {
	return &MsgAddrV2{
		AddrList: make([]NetAddressV2, 0, MaxAddrPerV2Msg),
	}
}
