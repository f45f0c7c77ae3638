// File: internal/interfaces/superblock.go
package interfaces

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-unixfs/internal/types"
)

// ExtSuperblockReader provides methods for reading an ext2/3/4 superblock
type ExtSuperblockReader interface {
	// Superblock returns the decoded superblock fields
	Superblock() *types.ExtSuperblock

	// Endian returns the byte order the magic validated at
	Endian() binary.ByteOrder

	// Magic returns the superblock signature
	Magic() uint16

	// BlockSize returns the block size in bytes
	BlockSize() uint32

	// BlockCount returns the total block count, combining the high half on 64-bit filesystems
	BlockCount() uint64

	// FreeBlockCount returns the free block count
	FreeBlockCount() uint64

	// InodeCount returns s_inodes_count
	InodeCount() uint32

	// InodeSize returns the on-disk inode record size
	InodeSize() uint16

	// FirstDataBlock returns s_first_data_block
	FirstDataBlock() uint32

	// BlocksPerGroup returns s_blocks_per_group
	BlocksPerGroup() uint32

	// InodesPerGroup returns s_inodes_per_group
	InodesPerGroup() uint32

	// GroupCount returns the number of block groups
	GroupCount() uint32

	// GroupDescSize returns 32 or 64
	GroupDescSize() int

	// HasCompat, HasIncompat and HasROCompat test feature bits
	HasCompat(flag uint32) bool
	HasIncompat(flag uint32) bool
	HasROCompat(flag uint32) bool

	// VolumeName returns the volume label
	VolumeName() string

	// LastMounted returns the path the volume was last mounted on
	LastMounted() string

	// UUID returns the volume identifier
	UUID() types.UUID
}

// UFSSuperblockReader provides methods for reading a UFS1 or UFS2 superblock
type UFSSuperblockReader interface {
	// Superblock returns the decoded superblock fields
	Superblock() *types.UFSSuperblock

	// Endian returns the byte order the magic validated at
	Endian() binary.ByteOrder

	// FsType returns UFS1 or UFS2
	FsType() types.FsType

	// Magic returns the superblock signature
	Magic() uint32

	// FragmentSize returns the fragment size in bytes
	FragmentSize() uint32

	// BlockSize returns the block size in bytes
	BlockSize() uint32

	// FragsPerBlock returns the number of fragments in a block
	FragsPerBlock() uint32

	// FragCount returns the total number of fragments
	FragCount() uint64

	// GroupCount returns the number of cylinder groups
	GroupCount() uint32

	// InodesPerGroup returns the number of inodes in each cylinder group
	InodesPerGroup() uint32

	// FragsPerGroup returns the number of fragments in each cylinder group
	FragsPerGroup() uint32

	// VolumeName returns the UFS2 volume label
	VolumeName() string

	// LastMounted returns the path the volume was last mounted on
	LastMounted() string
}
