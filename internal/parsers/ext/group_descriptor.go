package ext

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-unixfs/internal/types"
)

// ParseGroupDesc decodes a group descriptor. High halves are read only when
// size is at least 64.
func ParseGroupDesc(data []byte, endian binary.ByteOrder, size int) (*types.ExtGroupDesc, error) {
	if size < types.ExtGroupDesc32Size {
		size = types.ExtGroupDesc32Size
	}
	if len(data) < size {
		return nil, fmt.Errorf("data too small for group descriptor: %d bytes", len(data))
	}

	gd := &types.ExtGroupDesc{}
	gd.BlockBitmap = uint64(endian.Uint32(data[0:4]))
	gd.InodeBitmap = uint64(endian.Uint32(data[4:8]))
	gd.InodeTable = uint64(endian.Uint32(data[8:12]))
	gd.FreeBlocksCount = uint32(endian.Uint16(data[12:14]))
	gd.FreeInodesCount = uint32(endian.Uint16(data[14:16]))
	gd.UsedDirsCount = uint32(endian.Uint16(data[16:18]))
	gd.Flags = endian.Uint16(data[18:20])
	gd.ItableUnused = uint32(endian.Uint16(data[28:30]))
	gd.Checksum = endian.Uint16(data[30:32])

	if size >= types.ExtGroupDesc64Size {
		gd.BlockBitmap |= uint64(endian.Uint32(data[32:36])) << 32
		gd.InodeBitmap |= uint64(endian.Uint32(data[36:40])) << 32
		gd.InodeTable |= uint64(endian.Uint32(data[40:44])) << 32
		gd.FreeBlocksCount |= uint32(endian.Uint16(data[44:46])) << 16
		gd.FreeInodesCount |= uint32(endian.Uint16(data[46:48])) << 16
		gd.UsedDirsCount |= uint32(endian.Uint16(data[48:50])) << 16
		gd.ItableUnused |= uint32(endian.Uint16(data[50:52])) << 16
	}

	return gd, nil
}

// GroupHasSuper reports whether group g carries a superblock backup. With
// sparse_super only groups 0, 1 and powers of 3, 5 and 7 do.
func GroupHasSuper(g uint32, sparseSuper bool) bool {
	if !sparseSuper || g <= 1 {
		return true
	}
	return isPowerOf(g, 3) || isPowerOf(g, 5) || isPowerOf(g, 7)
}

func isPowerOf(n, base uint32) bool {
	for n > 1 {
		if n%base != 0 {
			return false
		}
		n /= base
	}
	return n == 1
}
