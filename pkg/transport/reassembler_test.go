package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSink struct {
	announceID uint32
	data       []byte
	ts         uint32
	calls      int
}

func (s *capturingSink) HandleReassembled(announceID uint32, data []byte, ts uint32) {
	s.announceID = announceID
	s.data = append([]byte(nil), data...)
	s.ts = ts
	s.calls++
}

func bamAnnounce(totalSize uint16, numPackets uint8) []byte {
	return []byte{
		TPCMControlByte(),
		byte(totalSize),
		byte(totalSize >> 8),
		numPackets,
		0xFF,
		0xCA, 0xFE, 0x00,
	}
}

// TPCMControlByte exists only to keep the literal 0x20 self-documenting
// in tests without importing pkg/can for a single constant.
func TPCMControlByte() byte { return 0x20 }

func TestReassemblyCorrectness(t *testing.T) {
	r := New(nil, 0, 0)
	sink := &capturingSink{}

	const announceID = 0x1CECFF00
	const dataID = 0x1CEBFF00

	r.HandleAnnounce(announceID, bamAnnounce(12, 2), 0)

	r.HandleData(dataID, []byte{0x01, 0x01, 0x00, 0x05, 0x00, 0x02, 0, 0}, 1, sink)
	assert.Zero(t, sink.calls)

	r.HandleData(dataID, []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0, 0, 0}, 2, sink)
	require.Equal(t, 1, sink.calls)
	assert.Equal(t, uint32(announceID), sink.announceID)
	require.Len(t, sink.data, 12)
	assert.Equal(t, []byte{0x01, 0x00, 0x05, 0x00, 0x02, 0, 0, 0x00, 0x00, 0x00, 0x00, 0}, sink.data)
}

func TestOutOfOrderAbortsReassembly(t *testing.T) {
	r := New(nil, 0, 0)
	sink := &capturingSink{}

	const announceID = 0x1CECFF00
	const dataID = 0x1CEBFF00

	r.HandleAnnounce(announceID, bamAnnounce(12, 2), 0)
	// Packet 2 arrives before packet 1.
	r.HandleData(dataID, []byte{0x02, 0, 0, 0, 0, 0, 0, 0}, 1, sink)

	assert.Zero(t, sink.calls)
	// Slot must have been released: a correctly-numbered packet 1 now
	// finds no in-flight slot for this dataID, since the session was
	// discarded rather than resumed.
	r.HandleData(dataID, []byte{0x01, 0, 0, 0, 0, 0, 0, 0}, 2, sink)
	assert.Zero(t, sink.calls, "a fresh packet 1 without a preceding BAM must be silently ignored")
}

func TestOversizedBAMIsIgnored(t *testing.T) {
	r := New(nil, 0, 0)
	r.HandleAnnounce(0x1CECFF00, bamAnnounce(300, 43), 0)

	free := 0
	for i := range r.slots {
		if r.slots[i].free() {
			free++
		}
	}
	assert.Equal(t, len(r.slots), free, "oversized BAM must not consume a slot")
}

func TestSlotExhaustionDropsBAM(t *testing.T) {
	r := New(nil, 1, 0)
	r.HandleAnnounce(0x1CECFF00, bamAnnounce(12, 2), 0)
	r.HandleAnnounce(0x1CEDFF00, bamAnnounce(12, 2), 0) // different announce id, no free slot

	assert.Equal(t, uint32(0x1CECFF00), r.slots[0].announceID, "first BAM must keep its slot")
}

func TestReannouncePreemptsStaleSlot(t *testing.T) {
	r := New(nil, 1, 0)
	const announceID = 0x1CECFF00

	r.HandleAnnounce(announceID, bamAnnounce(12, 2), 0)
	r.HandleData(announceID^0x00EB0000^0x00EC0000, []byte{0x01, 0, 0, 0, 0, 0, 0, 0}, 1, &capturingSink{})
	require.Equal(t, uint8(1), r.slots[0].receivedPackets)

	// A fresh BAM with the same announce id pre-empts the partial transfer.
	r.HandleAnnounce(announceID, bamAnnounce(7, 1), 5)
	assert.Equal(t, uint8(0), r.slots[0].receivedPackets)
	assert.Equal(t, uint16(7), r.slots[0].totalSize)
}

func TestAgeReleasesStaleSlots(t *testing.T) {
	r := New(nil, 0, 0)
	r.SetTimeout(5)
	r.HandleAnnounce(0x1CECFF00, bamAnnounce(12, 2), 0)

	r.Age(5)
	assert.False(t, r.slots[0].free(), "5-0=5, not yet past timeout")

	r.Age(6)
	assert.True(t, r.slots[0].free(), "6-0=6 > 5, slot must be released")
}

func TestClearReleasesAllSlots(t *testing.T) {
	r := New(nil, 0, 0)
	r.HandleAnnounce(0x1CECFF00, bamAnnounce(12, 2), 0)
	r.Clear()

	for i := range r.slots {
		assert.True(t, r.slots[i].free())
	}
}
