package helpers

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuessU16(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		want   uint16
		order  binary.ByteOrder
		wantOK bool
	}{
		{"ext magic little endian", []byte{0x53, 0xEF}, 0xEF53, binary.LittleEndian, true},
		{"ext magic big endian", []byte{0xEF, 0x53}, 0xEF53, binary.BigEndian, true},
		{"no match", []byte{0x00, 0x00}, 0xEF53, nil, false},
		{"short buffer", []byte{0x53}, 0xEF53, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, ok := GuessU16(tt.data, tt.want)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.order, order)
		})
	}
}

func TestGuessU32RoundTrip(t *testing.T) {
	for _, magic := range []uint32{0x011954, 0x19540119, 0xC03B3998} {
		for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
			buf := make([]byte, 4)
			order.PutUint32(buf, magic)

			got, ok := GuessU32(buf, magic)
			require.True(t, ok, "magic 0x%08X should be detected", magic)

			// Re-encoding at the decided order must reproduce the disk bytes
			again := make([]byte, 4)
			got.PutUint32(again, magic)
			assert.Equal(t, buf, again)
		}
	}
}

func TestSplitHelpers(t *testing.T) {
	assert.Equal(t, uint64(0x0001_0000_0200), U48(0x200, 0x1))
	assert.Equal(t, uint64(0xFFFF_FFFF_FFFF), U48(0xFFFFFFFF, 0xFFFF))
	assert.Equal(t, uint64(0x0000_0002_0000_0001), U64(1, 2))
	assert.Equal(t, int32(-1), S32(binary.LittleEndian, []byte{0xFF, 0xFF, 0xFF, 0xFF}))
	assert.Equal(t, int64(-2), S64(binary.BigEndian, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE}))
}

func TestIsBitSet(t *testing.T) {
	bitmap := []byte{0x05, 0x80}
	assert.True(t, IsBitSet(bitmap, 0))
	assert.False(t, IsBitSet(bitmap, 1))
	assert.True(t, IsBitSet(bitmap, 2))
	assert.True(t, IsBitSet(bitmap, 15))
	assert.False(t, IsBitSet(bitmap, 16), "bits past the bitmap read as clear")
}

func TestSanitizeLink(t *testing.T) {
	assert.Equal(t, "/tmp/a^b", SanitizeLink([]byte("/tmp/a\nb\x00junk")))
	assert.Equal(t, "target", SanitizeLink([]byte("target")))
	assert.Equal(t, "vol", CString([]byte{'v', 'o', 'l', 0, 'x'}))
}
