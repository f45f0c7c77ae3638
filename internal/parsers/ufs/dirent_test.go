package ufs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirentDecoder(t *testing.T) {
	raw := make([]byte, 16)
	binary.BigEndian.PutUint32(raw[0:4], 5)  // d_ino
	binary.BigEndian.PutUint16(raw[4:6], 16) // d_reclen
	raw[6] = 8                               // d_type
	raw[7] = 5                               // d_namlen
	copy(raw[8:], "hello")

	h := DirentDecoder(binary.BigEndian, false)(raw)
	assert.Equal(t, uint32(5), h.Inum)
	assert.Equal(t, uint16(16), h.RecLen)
	assert.Equal(t, uint8(8), h.Type)
	assert.Equal(t, uint16(5), h.NameLen)

	old := DirentDecoder(binary.BigEndian, true)(raw)
	assert.Equal(t, uint16(0x0805), old.NameLen)
	assert.Equal(t, uint8(0), old.Type)
}
