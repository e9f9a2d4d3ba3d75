// Package dm1 decodes J1939 DM1 (Active Diagnostic Trouble Code)
// payloads, whether delivered as a single 8-byte frame or reassembled
// from a BAM transfer, into individual DTC observations.
package dm1

import (
	"log/slog"

	"github.com/oaklane/j1939dtc/pkg/can"
	"github.com/oaklane/j1939dtc/pkg/tracker"
)

const recordSize = 4

// Observer receives one decoded DTC sighting at a time.
type Observer interface {
	Observe(d tracker.DTC, ts uint32)
}

// Parser decodes DM1 payloads. It holds no mutable state of its own;
// all decoded records flow straight into the Observer.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger.With("service", "[DM1]")}
}

// Parse decodes the DM1 payload carried by a frame whose source CAN
// identifier is canID (single-frame case) or whose origin is the
// original BAM announcement identifier (reassembled case, see
// spec.md §4.2). data must be at least 6 bytes; shorter payloads and
// payloads whose first SPN decodes to zero (the "no active DTC" idle
// frame) are silently ignored, per spec.md §4.3.
func (p *Parser) Parse(canID uint32, data []byte, ts uint32, obs Observer) {
	if len(data) < 6 {
		return
	}

	src := can.SourceAddress(canID)
	header := data[0]
	mil := (header >> 6) & 0x3
	rsl := (header >> 4) & 0x3
	awl := (header >> 2) & 0x3
	pl := header & 0x3

	// Bound is i < len(data)-2, the "latter revision" spec.md §9 adopts
	// over the historical i < len(data); the i+recordSize<=len(data)
	// guard is equivalent for well-formed payloads and keeps malformed
	// ones from indexing past the buffer.
	first := true
	for i := 2; i < len(data)-2 && i+recordSize <= len(data); i += recordSize {
		spn := uint32(data[i]) | uint32(data[i+1])<<8 | uint32((data[i+2]>>5)&0x7)<<16
		fmi := data[i+2] & 0x1F
		cm := (data[i+3] >> 7) & 0x1
		oc := data[i+3] & 0x7F

		if first {
			first = false
			if spn == 0 {
				p.logger.Debug("idle DM1 frame, no active DTC", "src", src)
				return
			}
		}

		obs.Observe(tracker.DTC{
			Src: src,
			SPN: spn,
			FMI: fmi,
			CM:  cm,
			OC:  oc,
			MIL: mil,
			RSL: rsl,
			AWL: awl,
			PL:  pl,
		}, ts)
	}
}
