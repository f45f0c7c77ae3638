package ext

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-unixfs/internal/types"
)

// ParseInode decodes an on-disk inode record. Fields of the extended area
// are read only when i_extra_isize covers them.
func ParseInode(data []byte, endian binary.ByteOrder) (*types.ExtInode, error) {
	if len(data) < types.ExtMinInodeSize {
		return nil, fmt.Errorf("data too small for inode: %d bytes", len(data))
	}

	inode := &types.ExtInode{}
	inode.Mode = endian.Uint16(data[0:2])
	inode.UIDLo = endian.Uint16(data[2:4])
	inode.Size = endian.Uint32(data[4:8])
	inode.ATime = endian.Uint32(data[8:12])
	inode.CTime = endian.Uint32(data[12:16])
	inode.MTime = endian.Uint32(data[16:20])
	inode.DTime = endian.Uint32(data[20:24])
	inode.GIDLo = endian.Uint16(data[24:26])
	inode.LinksCount = endian.Uint16(data[26:28])
	inode.Blocks = endian.Uint32(data[28:32])
	inode.Flags = endian.Uint32(data[32:36])
	copy(inode.Block[:], data[40:100])
	inode.Generation = endian.Uint32(data[100:104])
	inode.FileACL = endian.Uint32(data[104:108])
	inode.SizeHigh = endian.Uint32(data[108:112])
	inode.UIDHi = endian.Uint16(data[120:122])
	inode.GIDHi = endian.Uint16(data[122:124])

	if len(data) <= types.ExtMinInodeSize+2 {
		return inode, nil
	}

	inode.ExtraIsize = endian.Uint16(data[128:130])
	end := types.ExtMinInodeSize + int(inode.ExtraIsize)
	if end > len(data) {
		end = len(data)
	}
	has := func(off int) bool { return off+4 <= end }

	if has(132) {
		inode.CTimeExtra = endian.Uint32(data[132:136])
	}
	if has(136) {
		inode.MTimeExtra = endian.Uint32(data[136:140])
	}
	if has(140) {
		inode.ATimeExtra = endian.Uint32(data[140:144])
	}
	if has(144) {
		inode.CrTime = endian.Uint32(data[144:148])
	}
	if has(148) {
		inode.CrTimeExtra = endian.Uint32(data[148:152])
	}

	return inode, nil
}

// ExtraNano returns the nanoseconds held in the upper 30 bits of a
// *_extra timestamp word
func ExtraNano(extra uint32) uint32 {
	return extra >> 2
}

// ExtraEpoch extends a 32-bit timestamp with the two epoch bits of its
// *_extra word
func ExtraEpoch(sec uint32, extra uint32) int64 {
	return int64(int32(sec)) + int64(extra&0x3)<<32
}
