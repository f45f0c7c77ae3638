package ext

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-unixfs/internal/types"
)

// createTestExtentNode builds an i_block root with one leaf
func createTestExtentNode(length uint16, startHi uint16, startLo uint32) []byte {
	data := make([]byte, types.ExtInodeBlockArea)
	binary.LittleEndian.PutUint16(data[0:2], types.ExtExtentMagic) // eh_magic
	binary.LittleEndian.PutUint16(data[2:4], 1)                    // eh_entries
	binary.LittleEndian.PutUint16(data[4:6], 4)                    // eh_max
	binary.LittleEndian.PutUint16(data[6:8], 0)                    // eh_depth
	binary.LittleEndian.PutUint32(data[12:16], 0)                  // ee_block
	binary.LittleEndian.PutUint16(data[16:18], length)             // ee_len
	binary.LittleEndian.PutUint16(data[18:20], startHi)            // ee_start_hi
	binary.LittleEndian.PutUint32(data[20:24], startLo)            // ee_start_lo
	return data
}

func TestParseExtentLeaf(t *testing.T) {
	node := createTestExtentNode(1, 0, 512)

	hdr, err := ParseExtentHeader(node, binary.LittleEndian)
	require.NoError(t, err)
	require.NoError(t, ValidateExtentHeader(hdr, types.ExtInodeBlockArea))
	assert.Equal(t, uint16(1), hdr.Entries)
	assert.Equal(t, uint16(0), hdr.Depth)

	extents, err := ParseExtents(node, binary.LittleEndian, int(hdr.Entries))
	require.NoError(t, err)
	require.Len(t, extents, 1)
	assert.Equal(t, uint64(512), ExtentStart(extents[0]))
	length, uninit := ExtentLength(extents[0])
	assert.Equal(t, uint64(1), length)
	assert.False(t, uninit)
}

func TestExtentStartCombinesHighBits(t *testing.T) {
	e := types.ExtExtent{StartHi: 2, StartLo: 7}
	assert.Equal(t, uint64(2<<32|7), ExtentStart(e))
}

func TestExtentLengthUninitialized(t *testing.T) {
	length, uninit := ExtentLength(types.ExtExtent{Len: types.ExtExtentInitMaxLen + 10})
	assert.Equal(t, uint64(10), length)
	assert.True(t, uninit)

	length, uninit = ExtentLength(types.ExtExtent{Len: types.ExtExtentInitMaxLen})
	assert.Equal(t, uint64(types.ExtExtentInitMaxLen), length)
	assert.False(t, uninit)
}

func TestValidateExtentHeader(t *testing.T) {
	tests := []struct {
		name    string
		hdr     types.ExtExtentHeader
		size    int
		wantErr bool
	}{
		{"root with four entries", types.ExtExtentHeader{Magic: types.ExtExtentMagic, Entries: 4}, 60, false},
		{"root with five entries", types.ExtExtentHeader{Magic: types.ExtExtentMagic, Entries: 5}, 60, true},
		{"bad magic", types.ExtExtentHeader{Magic: 0xF30B, Entries: 1}, 60, true},
		{"full block", types.ExtExtentHeader{Magic: types.ExtExtentMagic, Entries: 340}, 4096, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExtentHeader(tt.hdr, tt.size)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseExtentIndexes(t *testing.T) {
	node := make([]byte, 24)
	binary.LittleEndian.PutUint16(node[0:2], types.ExtExtentMagic)
	binary.LittleEndian.PutUint16(node[2:4], 1)
	binary.LittleEndian.PutUint16(node[6:8], 1)      // eh_depth
	binary.LittleEndian.PutUint32(node[12:16], 0)    // ei_block
	binary.LittleEndian.PutUint32(node[16:20], 900)  // ei_leaf_lo
	binary.LittleEndian.PutUint16(node[20:22], 1)    // ei_leaf_hi

	idx, err := ParseExtentIndexes(node, binary.LittleEndian, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<32|900), IndexLeaf(idx[0]))

	_, err = ParseExtentIndexes(node, binary.LittleEndian, 2)
	assert.Error(t, err)
}
