// Package can defines the raw CAN frame type and the J1939 identifier
// helpers shared by the classifier, reassembler and DM1 parser.
package can

// Frame is a single 29-bit extended CAN frame as delivered by the
// receive path (ISR or simulated bus). Data is always 8 bytes wide;
// DLC records how many of them are meaningful.
type Frame struct {
	ID   uint32
	DLC  uint8
	Data [8]byte
}

func NewFrame(id uint32, dlc uint8, data [8]byte) Frame {
	return Frame{ID: id, DLC: dlc, Data: data}
}

// J1939 PGNs and masks relevant to DM1 transport, see SAE J1939-73/-21.
const (
	PGNDM1  = 0x00FECA00 // DM1, PDU2 format, broadcast, as it appears in a 29-bit CAN ID
	PGNTPCM = 0x00EC0000 // Transport Protocol, Connection Management
	PGNTPDT = 0x00EB0000 // Transport Protocol, Data Transfer

	// PGNDM1Number is the bare 16-bit PGN value (0xFECA) as it appears
	// embedded in a TP.CM announcement payload, distinct from PGNDM1's
	// 29-bit-CAN-ID encoding above.
	PGNDM1Number = 0xFECA

	maskPF = 0x00FFFF00 // PDU format + PDU specific (group extension), PDU2/broadcast
	maskPS = 0x00FF0000 // PDU format only (PDU specific is the destination address), PDU1

	// TPCMControlBAM is the TP.CM control byte identifying a Broadcast
	// Announce Message (as opposed to RTS/CTS, which this module does
	// not implement).
	TPCMControlBAM = 0x20
)

// IsDM1 reports whether id carries a single-frame DM1 broadcast.
func IsDM1(id uint32) bool {
	return id&maskPF == PGNDM1
}

// IsTPCM reports whether id is a Transport Protocol Connection
// Management frame (BAM announcement, among others).
func IsTPCM(id uint32) bool {
	return id&maskPS == PGNTPCM
}

// IsTPDT reports whether id is a Transport Protocol Data Transfer
// fragment.
func IsTPDT(id uint32) bool {
	return id&maskPS == PGNTPDT
}

// SourceAddress extracts the 8-bit source address from a 29-bit J1939
// identifier (the low byte).
func SourceAddress(id uint32) uint8 {
	return uint8(id & 0xFF)
}

// EmbeddedPGN extracts the 24-bit PGN encoded in bytes 5..7 of a TP.CM
// frame's payload (little-endian).
func EmbeddedPGN(data []byte) uint32 {
	return uint32(data[5]) | uint32(data[6])<<8 | uint32(data[7])<<16
}

// DataID rewrites the PDU-format byte of a TP.CM announcement
// identifier to the TP.DT PDU-format byte, producing the identifier
// that subsequent TP.DT fragments for the same session will carry.
func DataID(announceID uint32) uint32 {
	return (announceID & 0xFF00FFFF) | PGNTPDT
}
