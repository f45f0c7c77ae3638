package ufs

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-unixfs/internal/helpers"
	"github.com/deploymenttheory/go-unixfs/internal/types"
)

// cgHeaderSize covers every field read from a UFS2 header
const cgHeaderSize = 144

// ParseCylGroup decodes a cylinder group header
func ParseCylGroup(data []byte, endian binary.ByteOrder, ufs2 bool) (*types.UFSCylGroup, error) {
	if len(data) < cgHeaderSize {
		return nil, fmt.Errorf("data too small for cylinder group: %d bytes", len(data))
	}

	cg := &types.UFSCylGroup{}
	cg.Magic = endian.Uint32(data[4:8])
	cg.Cgx = endian.Uint32(data[12:16])
	cg.NCyl = endian.Uint16(data[16:18])
	cg.NDBlk = endian.Uint32(data[20:24])
	cg.Cs = types.UFSCsum{
		Dirs:     uint64(endian.Uint32(data[24:28])),
		BlkFree:  uint64(endian.Uint32(data[28:32])),
		InoFree:  uint64(endian.Uint32(data[32:36])),
		FragFree: uint64(endian.Uint32(data[36:40])),
	}
	cg.IUsedOff = endian.Uint32(data[92:96])
	cg.FreeOff = endian.Uint32(data[96:100])
	cg.NextFreeOff = endian.Uint32(data[100:104])
	cg.ClusterSumOff = endian.Uint32(data[104:108])
	cg.ClusterOff = endian.Uint32(data[108:112])
	cg.NClusterBlks = endian.Uint32(data[112:116])

	if ufs2 {
		cg.NIBlk = endian.Uint32(data[116:120])
		cg.InitedIBlk = endian.Uint32(data[120:124])
		cg.WTime = helpers.S64(endian, data[136:144])
	} else {
		cg.NIBlk = uint32(endian.Uint16(data[18:20]))
		cg.WTime = int64(helpers.S32(endian, data[8:12]))
	}

	if cg.Magic != types.UFSCgMagic {
		return cg, fmt.Errorf("invalid cylinder group magic 0x%x", cg.Magic)
	}
	return cg, nil
}
