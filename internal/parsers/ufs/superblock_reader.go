package ufs

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-unixfs/internal/helpers"
	"github.com/deploymenttheory/go-unixfs/internal/interfaces"
	"github.com/deploymenttheory/go-unixfs/internal/types"
)

// ErrBadMagic is returned when neither the UFS1 nor the UFS2 signature
// validates at either byte order
var ErrBadMagic = errors.New("ufs superblock magic not found")

// superblockReader implements the UFSSuperblockReader interface
type superblockReader struct {
	sb     *types.UFSSuperblock
	endian binary.ByteOrder
	fsType types.FsType
}

// NewSuperblockReader decodes a superblock. The variant and byte order are
// learned from the magic at offset 1372.
func NewSuperblockReader(data []byte) (interfaces.UFSSuperblockReader, error) {
	if len(data) < types.UFSSuperblockSize {
		return nil, fmt.Errorf("data too small for ufs superblock: %d bytes", len(data))
	}

	magic := data[types.UFSMagicOffset : types.UFSMagicOffset+4]
	if endian, ok := helpers.GuessU32(magic, types.UFS2Magic); ok {
		return &superblockReader{sb: parseSuperblock2(data, endian), endian: endian, fsType: types.FsTypeUFS2}, nil
	}
	if endian, ok := helpers.GuessU32(magic, types.UFS1Magic); ok {
		return &superblockReader{sb: parseSuperblock1(data, endian), endian: endian, fsType: types.FsTypeUFS1}, nil
	}
	return nil, ErrBadMagic
}

// parseCommon parses the fields UFS1 and UFS2 share
func parseCommon(data []byte, endian binary.ByteOrder) *types.UFSSuperblock {
	sb := &types.UFSSuperblock{}
	sb.SbOff = endian.Uint32(data[8:12])
	sb.GdOff = endian.Uint32(data[12:16])
	sb.InoOff = endian.Uint32(data[16:20])
	sb.DatOff = endian.Uint32(data[20:24])
	sb.CgNum = endian.Uint32(data[44:48])
	sb.BSizeB = endian.Uint32(data[48:52])
	sb.FSizeB = endian.Uint32(data[52:56])
	sb.BSizeFrag = endian.Uint32(data[56:60])
	sb.FragShift = endian.Uint32(data[96:100])
	sb.InoPB = endian.Uint32(data[120:124])
	copy(sb.FsID[:], data[144:152])
	sb.CgSSizeB = endian.Uint32(data[156:160])
	sb.CgSize = endian.Uint32(data[160:164])
	sb.CgInodeNum = endian.Uint32(data[184:188])
	sb.CgFragNum = endian.Uint32(data[188:192])
	sb.Fmod = data[208]
	sb.Clean = data[209]
	sb.ROnly = data[210]
	sb.OldFlags = data[211]
	sb.Magic = endian.Uint32(data[types.UFSMagicOffset : types.UFSMagicOffset+4])
	return sb
}

// parseSuperblock1 parses a UFS1 superblock
func parseSuperblock1(data []byte, endian binary.ByteOrder) *types.UFSSuperblock {
	sb := parseCommon(data, endian)
	sb.CgDelta = helpers.S32(endian, data[24:28])
	sb.CgCycMask = helpers.S32(endian, data[28:32])
	sb.WTime = int64(helpers.S32(endian, data[32:36]))
	sb.FragNum = uint64(endian.Uint32(data[36:40]))
	sb.DataFragNum = uint64(endian.Uint32(data[40:44]))
	sb.CgSAddr = uint64(endian.Uint32(data[152:156]))
	sb.NCyl = endian.Uint32(data[176:180])
	sb.Cpg = endian.Uint32(data[180:184])
	sb.CsTotal = types.UFSCsum{
		Dirs:     uint64(endian.Uint32(data[192:196])),
		BlkFree:  uint64(endian.Uint32(data[196:200])),
		InoFree:  uint64(endian.Uint32(data[200:204])),
		FragFree: uint64(endian.Uint32(data[204:208])),
	}
	sb.LastMnt = helpers.CString(data[212:724])
	return sb
}

// parseSuperblock2 parses a UFS2 superblock
func parseSuperblock2(data []byte, endian binary.ByteOrder) *types.UFSSuperblock {
	sb := parseCommon(data, endian)
	sb.LastMnt = helpers.CString(data[212:680])
	sb.VolName = helpers.CString(data[680:712])
	sb.SwUID = endian.Uint64(data[712:720])
	sb.CsTotal = types.UFSCsum{
		Dirs:     endian.Uint64(data[1008:1016]),
		BlkFree:  endian.Uint64(data[1016:1024]),
		InoFree:  endian.Uint64(data[1024:1032]),
		FragFree: endian.Uint64(data[1032:1040]),
	}
	sb.WTime = helpers.S64(endian, data[1072:1080])
	sb.FragNum = endian.Uint64(data[1080:1088])
	sb.DataFragNum = endian.Uint64(data[1088:1096])
	sb.CgSAddr = endian.Uint64(data[1096:1104])
	sb.Flags = endian.Uint32(data[1312:1316])
	return sb
}

// Superblock returns the decoded superblock fields
func (sr *superblockReader) Superblock() *types.UFSSuperblock {
	return sr.sb
}

// Endian returns the byte order the magic validated at
func (sr *superblockReader) Endian() binary.ByteOrder {
	return sr.endian
}

// FsType returns UFS1 or UFS2
func (sr *superblockReader) FsType() types.FsType {
	return sr.fsType
}

// Magic returns the superblock signature
func (sr *superblockReader) Magic() uint32 {
	return sr.sb.Magic
}

// FragmentSize returns the fragment size in bytes
func (sr *superblockReader) FragmentSize() uint32 {
	return sr.sb.FSizeB
}

// BlockSize returns the block size in bytes
func (sr *superblockReader) BlockSize() uint32 {
	return sr.sb.BSizeB
}

// FragsPerBlock returns the number of fragments in a block
func (sr *superblockReader) FragsPerBlock() uint32 {
	return sr.sb.BSizeFrag
}

// FragCount returns the total number of fragments
func (sr *superblockReader) FragCount() uint64 {
	return sr.sb.FragNum
}

// GroupCount returns the number of cylinder groups
func (sr *superblockReader) GroupCount() uint32 {
	return sr.sb.CgNum
}

// InodesPerGroup returns the number of inodes in each cylinder group
func (sr *superblockReader) InodesPerGroup() uint32 {
	return sr.sb.CgInodeNum
}

// FragsPerGroup returns the number of fragments in each cylinder group
func (sr *superblockReader) FragsPerGroup() uint32 {
	return sr.sb.CgFragNum
}

// VolumeName returns the UFS2 volume label
func (sr *superblockReader) VolumeName() string {
	return sr.sb.VolName
}

// LastMounted returns the path the volume was last mounted on
func (sr *superblockReader) LastMounted() string {
	return sr.sb.LastMnt
}
