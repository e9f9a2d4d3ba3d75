// Package transport reassembles J1939 BAM (Broadcast Announce Message)
// multi-frame payloads from TP.CM/TP.DT fragments into a single buffer
// for the DM1 parser.
//
// Only BAM broadcast is implemented; RTS/CTS peer-to-peer transport is
// out of scope (spec.md §1 Non-goals). Sequencing discipline here is
// modeled on the teacher's segmented and block SDO transfers
// (pkg/sdo/download_segmented.go, pkg/sdo/download_block.go): a
// fragment that doesn't carry the expected next sequence number aborts
// the in-flight transfer rather than being buffered for later.
package transport

import (
	"log/slog"

	"github.com/oaklane/j1939dtc/pkg/can"
)

// DefaultMaxSlots and DefaultMaxDataSize are the spec's default pool
// size and per-slot payload cap.
const (
	DefaultMaxSlots    = 4
	DefaultMaxDataSize = 256

	bytesPerFragment = 7
)

// Sink receives a fully reassembled DM1 payload.
type Sink interface {
	HandleReassembled(announceID uint32, data []byte, ts uint32)
}

// slot is one in-flight BAM reassembly. announceID == 0 marks it free.
type slot struct {
	announceID      uint32
	dataID          uint32
	totalSize       uint16
	numPackets      uint8
	receivedPackets uint8
	firstSeen       uint32
	lastSeen        uint32
	data            [DefaultMaxDataSize]byte
}

func (s *slot) free() bool { return s.announceID == 0 }

func (s *slot) reset() {
	*s = slot{}
}

// Reassembler owns a fixed pool of slots; no allocation occurs after
// construction.
type Reassembler struct {
	logger  *slog.Logger
	slots   []slot
	maxSize int
	timeout uint32
}

// New creates a Reassembler with the spec default slot pool (4) and
// multi-frame timeout (5s). maxSlots overrides the pool size; pass 0
// to keep the default. maxDataSize overrides the enforced per-payload
// size limit used by the oversized-BAM guard in HandleAnnounce; pass 0
// to keep the default, and note that a value above DefaultMaxDataSize
// is clamped to it since the per-slot buffer is a fixed-size array
// that can't grow past that capacity. A nil logger falls back to
// slog.Default().
func New(logger *slog.Logger, maxSlots, maxDataSize int) *Reassembler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSlots <= 0 {
		maxSlots = DefaultMaxSlots
	}
	if maxDataSize <= 0 || maxDataSize > DefaultMaxDataSize {
		maxDataSize = DefaultMaxDataSize
	}

	return &Reassembler{
		logger:  logger.With("service", "[TRANSPORT]"),
		slots:   make([]slot, maxSlots),
		maxSize: maxDataSize,
		timeout: 5,
	}
}

// SetTimeout overrides the inactivity timeout (seconds) after which an
// in-flight slot is released by Age. Zero leaves it unchanged.
func (r *Reassembler) SetTimeout(seconds uint32) {
	if seconds != 0 {
		r.timeout = seconds
	}
}

// HandleAnnounce processes a TP.CM BAM announcement. data must be the
// 8-byte TP.CM payload; id is the CAN identifier of the announcement
// frame. Implements spec.md §4.2 "BAM handling".
func (r *Reassembler) HandleAnnounce(id uint32, data []byte, ts uint32) {
	if data[0] != can.TPCMControlBAM {
		return
	}
	if can.EmbeddedPGN(data) != can.PGNDM1Number {
		return
	}
	totalSize := uint16(data[1]) | uint16(data[2])<<8
	numPackets := data[3]
	if int(totalSize) > r.maxSize {
		r.logger.Debug("oversized BAM announcement dropped", "total_size", totalSize)
		return
	}

	s := r.findSlotForReuse(id)
	if s == nil {
		s = r.findFreeSlot()
	}
	if s == nil {
		r.logger.Debug("no free multi-frame slot, dropping BAM", "announce_id", id)
		return
	}

	s.reset()
	s.announceID = id
	s.dataID = can.DataID(id)
	s.totalSize = totalSize
	s.numPackets = numPackets
	s.firstSeen = ts
	s.lastSeen = ts
}

// HandleData processes a single TP.DT fragment. Implements spec.md
// §4.2 "Fragment handling", including the strict in-order requirement:
// any non-consecutive packet number aborts and releases the slot.
func (r *Reassembler) HandleData(id uint32, data []byte, ts uint32, sink Sink) {
	s := r.findSlotByDataID(id & 0x1FFFFFFF)
	if s == nil {
		return
	}

	packetNumber := data[0]
	if packetNumber != s.receivedPackets+1 {
		r.logger.Debug("out-of-order TP.DT fragment, discarding slot",
			"announce_id", s.announceID, "got", packetNumber, "expected", s.receivedPackets+1)
		s.reset()
		return
	}

	offset := int(packetNumber-1) * bytesPerFragment
	copy(s.data[offset:], data[1:bytesPerFragment+1])
	s.receivedPackets++
	s.lastSeen = ts

	if s.receivedPackets == s.numPackets {
		sink.HandleReassembled(s.announceID, s.data[:s.totalSize], ts)
		s.reset()
	}
}

// Age releases every slot that has been idle for longer than the
// configured multi-frame timeout. Implements spec.md §4.2 "Aging".
func (r *Reassembler) Age(ts uint32) {
	for i := range r.slots {
		s := &r.slots[i]
		if s.free() {
			continue
		}
		if ts-s.lastSeen > r.timeout {
			r.logger.Debug("multi-frame slot timed out", "announce_id", s.announceID)
			s.reset()
		}
	}
}

// Clear releases every in-flight slot.
func (r *Reassembler) Clear() {
	for i := range r.slots {
		r.slots[i].reset()
	}
}

func (r *Reassembler) findFreeSlot() *slot {
	for i := range r.slots {
		if r.slots[i].free() {
			return &r.slots[i]
		}
	}
	return nil
}

func (r *Reassembler) findSlotForReuse(announceID uint32) *slot {
	for i := range r.slots {
		if r.slots[i].announceID == announceID {
			return &r.slots[i]
		}
	}
	return nil
}

func (r *Reassembler) findSlotByDataID(dataID uint32) *slot {
	for i := range r.slots {
		if !r.slots[i].free() && r.slots[i].dataID == dataID {
			return &r.slots[i]
		}
	}
	return nil
}
