// Package types implements the on-disk data structures and the normalized
// in-memory model shared by the Berkeley Fast File System (UFS1, UFS1B, UFS2)
// and Linux Extended File System (ext2, ext3, ext4) readers.
package types

// General-Purpose Types
// Basic types used across both filesystem families.

// Inum is an inode number. UFS inode numbers start at 0, ext at 1.
type Inum uint64

// Daddr is a filesystem block address. On UFS it counts fragments, on ext it
// counts blocks.
type Daddr uint64

// FsType identifies the variant a filesystem handle was opened as.
type FsType uint8

const (
	FsTypeUnknown FsType = iota
	FsTypeUFS1
	FsTypeUFS1B
	FsTypeUFS2
	FsTypeExt2
	FsTypeExt3
	FsTypeExt4
)

// String returns the display name of the variant
func (t FsType) String() string {
	switch t {
	case FsTypeUFS1:
		return "UFS1"
	case FsTypeUFS1B:
		return "UFS1B"
	case FsTypeUFS2:
		return "UFS2"
	case FsTypeExt2:
		return "Ext2"
	case FsTypeExt3:
		return "Ext3"
	case FsTypeExt4:
		return "Ext4"
	default:
		return "Unknown"
	}
}

// IsUFS reports whether the variant belongs to the FFS family
func (t FsType) IsUFS() bool {
	return t == FsTypeUFS1 || t == FsTypeUFS1B || t == FsTypeUFS2
}

// IsExt reports whether the variant belongs to the ext family
func (t FsType) IsExt() bool {
	return t == FsTypeExt2 || t == FsTypeExt3 || t == FsTypeExt4
}

// UUID is a 16 byte volume or journal identifier.
type UUID [16]byte

// WalkResult is returned by every walker visitor.
type WalkResult int

const (
	// WalkContinue asks the walker for the next entity
	WalkContinue WalkResult = iota
	// WalkStop ends the walk immediately without an error
	WalkStop
	// WalkError ends the walk and makes the walker return an error
	WalkError
)

// Block is passed to block_walk visitors. Data is nil for address-only walks.
type Block struct {
	Addr  uint64
	Flags BlockFlag
	Data  []byte
}
