package ext

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-unixfs/internal/helpers"
	"github.com/deploymenttheory/go-unixfs/internal/interfaces"
	"github.com/deploymenttheory/go-unixfs/internal/types"
)

// superblockReader implements the ExtSuperblockReader interface
type superblockReader struct {
	sb     *types.ExtSuperblock
	endian binary.ByteOrder
}

// ErrBadMagic is returned when the superblock signature does not match at
// either byte order
var ErrBadMagic = errors.New("ext superblock magic not found")

// NewSuperblockReader decodes the 1024 byte superblock in data. The byte
// order is learned from the magic.
func NewSuperblockReader(data []byte) (interfaces.ExtSuperblockReader, error) {
	if len(data) < types.ExtSuperblockSize {
		return nil, fmt.Errorf("data too small for ext superblock: %d bytes", len(data))
	}

	endian, ok := helpers.GuessU16(data[56:58], types.ExtMagic)
	if !ok {
		return nil, ErrBadMagic
	}

	sb, err := parseSuperblock(data, endian)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ext superblock: %w", err)
	}

	return &superblockReader{
		sb:     sb,
		endian: endian,
	}, nil
}

// parseSuperblock parses raw bytes into an ExtSuperblock structure
func parseSuperblock(data []byte, endian binary.ByteOrder) (*types.ExtSuperblock, error) {
	if len(data) < types.ExtSuperblockSize {
		return nil, fmt.Errorf("insufficient data for superblock: %d bytes", len(data))
	}

	sb := &types.ExtSuperblock{}
	sb.InodesCount = endian.Uint32(data[0:4])
	sb.BlocksCount = endian.Uint32(data[4:8])
	sb.RBlocksCount = endian.Uint32(data[8:12])
	sb.FreeBlocksCount = endian.Uint32(data[12:16])
	sb.FreeInodesCount = endian.Uint32(data[16:20])
	sb.FirstDataBlock = endian.Uint32(data[20:24])
	sb.LogBlockSize = endian.Uint32(data[24:28])
	sb.LogFragSize = endian.Uint32(data[28:32])
	sb.BlocksPerGroup = endian.Uint32(data[32:36])
	sb.FragsPerGroup = endian.Uint32(data[36:40])
	sb.InodesPerGroup = endian.Uint32(data[40:44])
	sb.MTime = endian.Uint32(data[44:48])
	sb.WTime = endian.Uint32(data[48:52])
	sb.MntCount = endian.Uint16(data[52:54])
	sb.MaxMntCount = endian.Uint16(data[54:56])
	sb.Magic = endian.Uint16(data[56:58])
	sb.State = endian.Uint16(data[58:60])
	sb.Errors = endian.Uint16(data[60:62])
	sb.MinorRevLevel = endian.Uint16(data[62:64])
	sb.LastCheck = endian.Uint32(data[64:68])
	sb.CheckInterval = endian.Uint32(data[68:72])
	sb.CreatorOS = endian.Uint32(data[72:76])
	sb.RevLevel = endian.Uint32(data[76:80])
	sb.DefResUID = endian.Uint16(data[80:82])
	sb.DefResGID = endian.Uint16(data[82:84])

	// Dynamic revision fields
	sb.FirstIno = endian.Uint32(data[84:88])
	sb.InodeSize = endian.Uint16(data[88:90])
	sb.BlockGroupNr = endian.Uint16(data[90:92])
	sb.FeatureCompat = endian.Uint32(data[92:96])
	sb.FeatureIncompat = endian.Uint32(data[96:100])
	sb.FeatureROCompat = endian.Uint32(data[100:104])
	copy(sb.UUID[:], data[104:120])
	copy(sb.VolumeName[:], data[120:136])
	copy(sb.LastMounted[:], data[136:200])
	sb.AlgorithmBitmap = endian.Uint32(data[200:204])

	// Performance hints
	sb.PreallocBlocks = data[204]
	sb.PreallocDirBlock = data[205]
	sb.ReservedGdtBlock = endian.Uint16(data[206:208])

	// Journaling support
	copy(sb.JournalUUID[:], data[208:224])
	sb.JournalInum = endian.Uint32(data[224:228])
	sb.JournalDev = endian.Uint32(data[228:232])
	sb.LastOrphan = endian.Uint32(data[232:236])
	for i := range sb.HashSeed {
		sb.HashSeed[i] = endian.Uint32(data[236+i*4 : 240+i*4])
	}
	sb.DefHashVersion = data[252]
	sb.JnlBackupType = data[253]
	sb.DescSize = endian.Uint16(data[254:256])
	sb.DefaultMountOpts = endian.Uint32(data[256:260])
	sb.FirstMetaBg = endian.Uint32(data[260:264])
	sb.MkfsTime = endian.Uint32(data[264:268])
	for i := range sb.JnlBlocks {
		sb.JnlBlocks[i] = endian.Uint32(data[268+i*4 : 272+i*4])
	}

	// 64-bit support
	sb.BlocksCountHi = endian.Uint32(data[336:340])
	sb.RBlocksCountHi = endian.Uint32(data[340:344])
	sb.FreeBlocksHi = endian.Uint32(data[344:348])

	// Revision 0 filesystems have fixed inode geometry
	if sb.RevLevel == 0 {
		sb.InodeSize = types.ExtMinInodeSize
		sb.FirstIno = 11
	}

	return sb, nil
}

// Superblock returns the decoded superblock fields
func (sr *superblockReader) Superblock() *types.ExtSuperblock {
	return sr.sb
}

// Endian returns the byte order the magic validated at
func (sr *superblockReader) Endian() binary.ByteOrder {
	return sr.endian
}

// Magic returns the superblock signature
func (sr *superblockReader) Magic() uint16 {
	return sr.sb.Magic
}

// BlockSize returns the block size in bytes, 0 if the shift is out of range
func (sr *superblockReader) BlockSize() uint32 {
	if sr.sb.LogBlockSize > 16 {
		return 0
	}
	return types.ExtMinBlockSize << sr.sb.LogBlockSize
}

// BlockCount returns the total block count
func (sr *superblockReader) BlockCount() uint64 {
	if sr.HasIncompat(types.ExtIncompat64Bit) {
		return helpers.U64(sr.sb.BlocksCount, sr.sb.BlocksCountHi)
	}
	return uint64(sr.sb.BlocksCount)
}

// FreeBlockCount returns the free block count
func (sr *superblockReader) FreeBlockCount() uint64 {
	if sr.HasIncompat(types.ExtIncompat64Bit) {
		return helpers.U64(sr.sb.FreeBlocksCount, sr.sb.FreeBlocksHi)
	}
	return uint64(sr.sb.FreeBlocksCount)
}

// InodeCount returns s_inodes_count
func (sr *superblockReader) InodeCount() uint32 {
	return sr.sb.InodesCount
}

// InodeSize returns the on-disk inode record size
func (sr *superblockReader) InodeSize() uint16 {
	return sr.sb.InodeSize
}

// FirstDataBlock returns s_first_data_block
func (sr *superblockReader) FirstDataBlock() uint32 {
	return sr.sb.FirstDataBlock
}

// BlocksPerGroup returns s_blocks_per_group
func (sr *superblockReader) BlocksPerGroup() uint32 {
	return sr.sb.BlocksPerGroup
}

// InodesPerGroup returns s_inodes_per_group
func (sr *superblockReader) InodesPerGroup() uint32 {
	return sr.sb.InodesPerGroup
}

// GroupCount returns ceil((blocks - first_data_block) / blocks_per_group)
func (sr *superblockReader) GroupCount() uint32 {
	if sr.sb.BlocksPerGroup == 0 {
		return 0
	}
	blocks := sr.BlockCount()
	first := uint64(sr.sb.FirstDataBlock)
	if blocks <= first {
		return 0
	}
	bpg := uint64(sr.sb.BlocksPerGroup)
	return uint32((blocks - first + bpg - 1) / bpg)
}

// GroupDescSize returns the descriptor stride. 64-byte descriptors require
// both the 64BIT feature and s_desc_size >= 64.
func (sr *superblockReader) GroupDescSize() int {
	if sr.HasIncompat(types.ExtIncompat64Bit) && sr.sb.DescSize >= types.ExtGroupDesc64Size {
		return int(sr.sb.DescSize)
	}
	return types.ExtGroupDesc32Size
}

// HasCompat tests a compatible feature bit
func (sr *superblockReader) HasCompat(flag uint32) bool {
	return sr.sb.FeatureCompat&flag != 0
}

// HasIncompat tests an incompatible feature bit
func (sr *superblockReader) HasIncompat(flag uint32) bool {
	return sr.sb.FeatureIncompat&flag != 0
}

// HasROCompat tests a read-only compatible feature bit
func (sr *superblockReader) HasROCompat(flag uint32) bool {
	return sr.sb.FeatureROCompat&flag != 0
}

// VolumeName returns the volume label
func (sr *superblockReader) VolumeName() string {
	return helpers.CString(sr.sb.VolumeName[:])
}

// LastMounted returns the path the volume was last mounted on
func (sr *superblockReader) LastMounted() string {
	return helpers.CString(sr.sb.LastMounted[:])
}

// UUID returns the volume identifier
func (sr *superblockReader) UUID() types.UUID {
	return sr.sb.UUID
}
