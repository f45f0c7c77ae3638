package ufs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-unixfs/internal/types"
)

func createTestInode1Data() []byte {
	le := binary.LittleEndian
	data := make([]byte, types.UFS1InodeSize)
	le.PutUint16(data[0:2], 0o100644)  // di_mode
	le.PutUint16(data[2:4], 1)         // di_nlink
	le.PutUint64(data[8:16], 5000)     // di_size
	le.PutUint32(data[16:20], 1000)    // di_atime
	le.PutUint32(data[20:24], 11)      // di_atimensec
	le.PutUint32(data[32:36], 3000)    // di_ctime
	le.PutUint32(data[40:44], 200)     // di_db[0]
	le.PutUint32(data[84:88], 211)     // di_db[11]
	le.PutUint32(data[88:92], 300)     // di_ib[0]
	le.PutUint32(data[100:104], 0x20)  // di_flags (ufs1b padding)
	le.PutUint32(data[104:108], 16)    // di_blocks (ufs1b padding)
	le.PutUint32(data[108:112], 77)    // di_gen (ufs1b padding)
	le.PutUint32(data[112:116], 1001)  // di_uid
	le.PutUint32(data[116:120], 1002)  // di_gid (ufs1b uid)
	le.PutUint32(data[120:124], 1003)  // ufs1b gid
	return data
}

func TestParseInode1(t *testing.T) {
	inode, err := ParseInode1(createTestInode1Data(), binary.LittleEndian)
	require.NoError(t, err)

	assert.Equal(t, uint16(0o100644), inode.Mode)
	assert.Equal(t, int16(1), inode.NLink)
	assert.Equal(t, uint64(5000), inode.Size)
	assert.Equal(t, int64(1000), inode.ATime)
	assert.Equal(t, uint32(11), inode.ATimeNano)
	assert.Equal(t, int64(3000), inode.CTime)
	assert.Equal(t, uint64(200), inode.Direct[0])
	assert.Equal(t, uint64(211), inode.Direct[11])
	assert.Equal(t, uint64(300), inode.Indirect[0])
	assert.Equal(t, uint32(1001), inode.UID)
	assert.Equal(t, uint32(1002), inode.GID)
	assert.Equal(t, uint32(0x20), inode.Flags)
	assert.Equal(t, uint64(16), inode.Blocks)
	assert.Equal(t, uint32(77), inode.Gen)
	assert.Len(t, inode.PointerArea, types.UFS1FastLinkMax)
}

func TestParseInode1B(t *testing.T) {
	inode, err := ParseInode1B(createTestInode1Data(), binary.LittleEndian)
	require.NoError(t, err)

	assert.Equal(t, uint32(0), inode.ATimeNano)
	assert.Equal(t, uint32(1002), inode.UID)
	assert.Equal(t, uint32(1003), inode.GID)
	assert.Equal(t, uint64(200), inode.Direct[0])
	// bytes 100-115 are padding in this layout
	assert.Zero(t, inode.Flags)
	assert.Zero(t, inode.Blocks)
	assert.Zero(t, inode.Gen)
}

func TestParseInode2(t *testing.T) {
	data := make([]byte, types.UFS2InodeSize)
	binary.BigEndian.PutUint16(data[0:2], 0o120777)  // di_mode
	binary.BigEndian.PutUint32(data[4:8], 5)         // di_uid
	binary.BigEndian.PutUint32(data[8:12], 6)        // di_gid
	binary.BigEndian.PutUint64(data[16:24], 11)      // di_size
	binary.BigEndian.PutUint64(data[48:56], 77)      // di_ctime
	binary.BigEndian.PutUint64(data[56:64], 66)      // di_birthtime
	binary.BigEndian.PutUint32(data[72:76], 9)       // di_ctimensec
	binary.BigEndian.PutUint64(data[112:120], 1<<40) // di_db[0]
	binary.BigEndian.PutUint64(data[208:216], 4242)  // di_ib[0]
	copy(data[112:], "/target/xyz")

	inode, err := ParseInode2(data, binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), inode.UID)
	assert.Equal(t, uint32(6), inode.GID)
	assert.Equal(t, uint64(11), inode.Size)
	assert.Equal(t, int64(77), inode.CTime)
	assert.Equal(t, uint32(9), inode.CTimeNano)
	assert.Equal(t, int64(66), inode.CrTime)
	assert.Equal(t, uint64(4242), inode.Indirect[0])
	assert.Equal(t, "/target/xyz", string(inode.PointerArea[:11]))
	assert.Len(t, inode.PointerArea, types.UFS2FastLinkMax)

	_, err = ParseInode2(data[:128], binary.BigEndian)
	assert.Error(t, err)
}
