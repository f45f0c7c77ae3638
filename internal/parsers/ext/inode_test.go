package ext

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-unixfs/internal/types"
)

func createTestInodeData(size int, extraIsize uint16) []byte {
	data := make([]byte, size)
	binary.LittleEndian.PutUint16(data[0:2], 0o40755)      // i_mode
	binary.LittleEndian.PutUint16(data[2:4], 1000)         // i_uid
	binary.LittleEndian.PutUint32(data[4:8], 4096)         // i_size_lo
	binary.LittleEndian.PutUint32(data[8:12], 1700000000)  // i_atime
	binary.LittleEndian.PutUint32(data[12:16], 1700000001) // i_ctime
	binary.LittleEndian.PutUint32(data[16:20], 1700000002) // i_mtime
	binary.LittleEndian.PutUint16(data[24:26], 100)        // i_gid
	binary.LittleEndian.PutUint16(data[26:28], 3)          // i_links_count
	binary.LittleEndian.PutUint32(data[32:36], types.ExtInodeFlagExtents)
	binary.LittleEndian.PutUint16(data[40:42], types.ExtExtentMagic) // i_block
	binary.LittleEndian.PutUint32(data[108:112], 1)                  // i_size_high
	binary.LittleEndian.PutUint16(data[120:122], 2)                  // i_uid_high
	if size > 128 {
		binary.LittleEndian.PutUint16(data[128:130], extraIsize)
		binary.LittleEndian.PutUint32(data[132:136], 500<<2) // i_ctime_extra
		binary.LittleEndian.PutUint32(data[136:140], 600<<2) // i_mtime_extra
		binary.LittleEndian.PutUint32(data[140:144], 700<<2) // i_atime_extra
		binary.LittleEndian.PutUint32(data[144:148], 1600000000)
		binary.LittleEndian.PutUint32(data[148:152], 800<<2) // i_crtime_extra
	}
	return data
}

func TestParseInode(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		extraIsize uint16
		wantCtNano uint32
		wantCrTime uint32
	}{
		{"128 byte inode", 128, 0, 0, 0},
		{"256 byte inode", 256, 32, 500, 1600000000},
		{"extra area without crtime", 256, 12, 500, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inode, err := ParseInode(createTestInodeData(tt.size, tt.extraIsize), binary.LittleEndian)
			require.NoError(t, err)

			assert.Equal(t, uint16(0o40755), inode.Mode)
			assert.Equal(t, uint32(4096), inode.Size)
			assert.Equal(t, uint32(1), inode.SizeHigh)
			assert.Equal(t, uint16(2), inode.UIDHi)
			assert.Equal(t, uint16(3), inode.LinksCount)
			assert.Equal(t, uint32(types.ExtInodeFlagExtents), inode.Flags)
			assert.Equal(t, byte(0x0A), inode.Block[0])
			assert.Equal(t, tt.wantCtNano, ExtraNano(inode.CTimeExtra))
			assert.Equal(t, tt.wantCrTime, inode.CrTime)
		})
	}

	_, err := ParseInode(make([]byte, 64), binary.LittleEndian)
	assert.Error(t, err)
}

func TestExtraEpoch(t *testing.T) {
	assert.Equal(t, int64(1700000000), ExtraEpoch(1700000000, 0))
	assert.Equal(t, int64(1<<32)+5, ExtraEpoch(5, 1))
}
