// Package classifier inspects a raw CAN identifier and routes the
// frame to the DM1 parser directly, or to the multi-frame reassembler,
// based on the embedded J1939 PGN (spec.md §4.1). It holds no tracking
// state of its own.
package classifier

import (
	"log/slog"

	"github.com/oaklane/j1939dtc/pkg/can"
	"github.com/oaklane/j1939dtc/pkg/dm1"
	"github.com/oaklane/j1939dtc/pkg/transport"
)

// Classifier dispatches frames to the DM1 parser or the multi-frame
// reassembler. The entire call is expected to run under the caller's
// mutex gate; the classifier itself does no locking.
type Classifier struct {
	logger      *slog.Logger
	parser      *dm1.Parser
	reassembler *transport.Reassembler
}

// New creates a Classifier. A nil logger falls back to slog.Default().
func New(parser *dm1.Parser, logger *slog.Logger, reassembler *transport.Reassembler) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		logger:      logger.With("service", "[CLASSIFIER]"),
		parser:      parser,
		reassembler: reassembler,
	}
}

// Dispatch implements spec.md §4.1: match the PDU-format/PDU-specific
// bytes of the CAN identifier and forward to the matching handler.
// Frames that match none of the three patterns, or TP.CM frames that
// aren't a DM1 BAM announcement, are ignored.
func (c *Classifier) Dispatch(id uint32, data []byte, ts uint32, obs dm1.Observer) {
	switch {
	case can.IsDM1(id):
		c.parser.Parse(id, data, ts, obs)

	case can.IsTPCM(id):
		if len(data) < 8 {
			return
		}
		c.reassembler.HandleAnnounce(id, data, ts)

	case can.IsTPDT(id):
		if len(data) < 8 {
			return
		}
		c.reassembler.HandleData(id, data, ts, reassembledSink{c.parser, obs})

	default:
		c.logger.Debug("ignoring frame outside DM1/TP PGN range", "can_id", id)
	}
}

// reassembledSink adapts a completed multi-frame payload back into the
// DM1 parser, matching spec.md §4.2's "dispatch to the DM1 Parser"
// step.
type reassembledSink struct {
	parser *dm1.Parser
	obs    dm1.Observer
}

func (s reassembledSink) HandleReassembled(announceID uint32, data []byte, ts uint32) {
	s.parser.Parse(announceID, data, ts, s.obs)
}
