package ufs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-unixfs/internal/helpers"
	"github.com/deploymenttheory/go-unixfs/internal/types"
)

// ParseInode1 decodes a 128 byte UFS1 inode
func ParseInode1(data []byte, endian binary.ByteOrder) (*types.UFSInode, error) {
	if len(data) < types.UFS1InodeSize {
		return nil, fmt.Errorf("data too small for ufs1 inode: %d bytes", len(data))
	}

	inode := parseInode1Common(data, endian)
	inode.ATimeNano = endian.Uint32(data[20:24])
	inode.MTimeNano = endian.Uint32(data[28:32])
	inode.CTimeNano = endian.Uint32(data[36:40])
	inode.Flags = endian.Uint32(data[100:104])
	inode.Blocks = uint64(endian.Uint32(data[104:108]))
	inode.Gen = endian.Uint32(data[108:112])
	inode.UID = endian.Uint32(data[112:116])
	inode.GID = endian.Uint32(data[116:120])
	return inode, nil
}

// ParseInode1B decodes a 128 byte inode of the older UFS1B layout, which has
// no nanosecond, flags or generation fields and keeps the owner four bytes
// later
func ParseInode1B(data []byte, endian binary.ByteOrder) (*types.UFSInode, error) {
	if len(data) < types.UFS1InodeSize {
		return nil, fmt.Errorf("data too small for ufs1b inode: %d bytes", len(data))
	}

	inode := parseInode1Common(data, endian)
	inode.UID = endian.Uint32(data[116:120])
	inode.GID = endian.Uint32(data[120:124])
	return inode, nil
}

func parseInode1Common(data []byte, endian binary.ByteOrder) *types.UFSInode {
	inode := &types.UFSInode{}
	inode.Mode = endian.Uint16(data[0:2])
	inode.NLink = int16(endian.Uint16(data[2:4]))
	inode.Size = endian.Uint64(data[8:16])
	inode.ATime = int64(helpers.S32(endian, data[16:20]))
	inode.MTime = int64(helpers.S32(endian, data[24:28]))
	inode.CTime = int64(helpers.S32(endian, data[32:36]))
	for i := range inode.Direct {
		inode.Direct[i] = uint64(endian.Uint32(data[40+i*4 : 44+i*4]))
	}
	for i := range inode.Indirect {
		inode.Indirect[i] = uint64(endian.Uint32(data[88+i*4 : 92+i*4]))
	}
	inode.PointerArea = append([]byte(nil), data[40:40+types.UFS1FastLinkMax]...)
	return inode
}

// ParseInode2 decodes a 256 byte UFS2 inode
func ParseInode2(data []byte, endian binary.ByteOrder) (*types.UFSInode, error) {
	if len(data) < types.UFS2InodeSize {
		return nil, fmt.Errorf("data too small for ufs2 inode: %d bytes", len(data))
	}

	inode := &types.UFSInode{}
	inode.Mode = endian.Uint16(data[0:2])
	inode.NLink = int16(endian.Uint16(data[2:4]))
	inode.UID = endian.Uint32(data[4:8])
	inode.GID = endian.Uint32(data[8:12])
	inode.Size = endian.Uint64(data[16:24])
	inode.Blocks = endian.Uint64(data[24:32])
	inode.ATime = helpers.S64(endian, data[32:40])
	inode.MTime = helpers.S64(endian, data[40:48])
	inode.CTime = helpers.S64(endian, data[48:56])
	inode.CrTime = helpers.S64(endian, data[56:64])
	inode.MTimeNano = endian.Uint32(data[64:68])
	inode.ATimeNano = endian.Uint32(data[68:72])
	inode.CTimeNano = endian.Uint32(data[72:76])
	inode.CrTimeNano = endian.Uint32(data[76:80])
	inode.Gen = endian.Uint32(data[80:84])
	inode.KernFlags = endian.Uint32(data[84:88])
	inode.Flags = endian.Uint32(data[88:92])
	inode.ExtSize = endian.Uint32(data[92:96])
	for i := range inode.Direct {
		inode.Direct[i] = endian.Uint64(data[112+i*8 : 120+i*8])
	}
	for i := range inode.Indirect {
		inode.Indirect[i] = endian.Uint64(data[208+i*8 : 216+i*8])
	}
	inode.PointerArea = append([]byte(nil), data[112:112+types.UFS2FastLinkMax]...)
	return inode, nil
}
