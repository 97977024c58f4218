// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2026 The btccrawl developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"fmt"

	"github.com/decred/slog"

	"github.com/btckit/btccrawl/wire"
)

// log is a logger that is initialized with no output filters.  This
// means the package will not perform any logging by default until the caller
// requests it.
// The default amount of logging is none.
var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// messageSummary returns a human-readable string which summarizes a message.
// Not all messages have or need a summary.  This is used for debug logging.
func messageSummary(msg wire.Message) string {
	switch msg := msg.(type) {
	case *wire.MsgVersion:
		return fmt.Sprintf("agent %s, pver %d, block %d",
			msg.UserAgent, msg.ProtocolVersion, msg.LastBlock)

	case *wire.MsgVerAck:
		// No summary.

	case *wire.MsgGetAddr:
		// No summary.

	case *wire.MsgSendAddrV2:
		// No summary.

	case *wire.MsgAddr:
		return fmt.Sprintf("%d addr", len(msg.AddrList))

	case *wire.MsgAddrV2:
		return fmt.Sprintf("%d addrv2", len(msg.AddrList))

	case *wire.MsgPing:
		// No summary - perhaps add nonce.

	case *wire.MsgPong:
		// No summary - perhaps add nonce.

	case *wire.MsgUnknown:
		return fmt.Sprintf("%d payload bytes", len(msg.Payload))
	}

	// No summary for other messages.
	return ""
}

// summarizeMessage formats the message summary for inclusion at the end of a
// log line, or returns an empty string for messages with no summary.
func summarizeMessage(msg wire.Message) string {
	summary := messageSummary(msg)
	if summary != "" {
		summary = " (" + summary + ")"
	}
	return summary
}
