package can

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDM1(t *testing.T) {
	assert.True(t, IsDM1(0x18FECA03))
	assert.False(t, IsDM1(0x18FECB03), "different PGN byte must not match")
}

func TestIsTPCM(t *testing.T) {
	assert.True(t, IsTPCM(0x1CECFF00))
	assert.False(t, IsTPCM(0x1CEBFF00))
}

func TestIsTPDT(t *testing.T) {
	assert.True(t, IsTPDT(0x1CEBFF00))
	assert.False(t, IsTPDT(0x1CECFF00))
}

func TestSourceAddress(t *testing.T) {
	assert.Equal(t, uint8(0x03), SourceAddress(0x18FECA03))
}

func TestEmbeddedPGN(t *testing.T) {
	data := []byte{0x20, 0x0C, 0x00, 0x02, 0xFF, 0xCA, 0xFE, 0x00}
	assert.Equal(t, uint32(0xFECA), EmbeddedPGN(data))
}

func TestDataID(t *testing.T) {
	assert.Equal(t, uint32(0x1CEBFF00), DataID(0x1CECFF00))
}
