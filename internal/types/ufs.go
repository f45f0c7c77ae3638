package types

// Berkeley Fast File System (UFS1, UFS1B, UFS2) on-disk structures.

const (
	// UFS1Magic identifies a UFS1 or UFS1B superblock
	UFS1Magic uint32 = 0x011954
	// UFS2Magic identifies a UFS2 superblock
	UFS2Magic uint32 = 0x19540119
	// UFSCgMagic identifies a cylinder group header
	UFSCgMagic uint32 = 0x090255

	// Superblock search offsets
	UFS2SuperblockOffset    = 65536
	UFS2AltSuperblockOffset = 262144
	UFS1SuperblockOffset    = 8192

	UFSSuperblockSize = 1376
	UFSMagicOffset    = 1372

	UFS1InodeSize = 128
	UFS2InodeSize = 256

	UFSRootInum  = 2
	UFSFirstInum = 0

	// UFS1FastLinkMax is the size of the pointer area a UFS1/UFS1B fast
	// symlink is stored in
	UFS1FastLinkMax = 60
	// UFS2FastLinkMax is the UFS2 equivalent
	UFS2FastLinkMax = 120

	UFSMaxPathLen = 1024

	// UFSDirBlockSize is DIRBLKSIZ; directory entries never cross it
	UFSDirBlockSize  = 512
	UFSMaxNameLen    = 255
	UFSDirentHdrSize = 8
)

// UFS2 fs_flags
const (
	UFSFlagUnclean   = 0x01
	UFSFlagDoSoftDep = 0x02
	UFSFlagNeedsFsck = 0x04
	UFSFlagIndexDirs = 0x08
	UFSFlagACLs      = 0x10
	UFSFlagMultiLabl = 0x20
	UFSFlagGJournal  = 0x40
	UFSFlagUpdated   = 0x80
)

// UFSFlagNames maps fs_flags bits to display names
var UFSFlagNames = map[uint32]string{
	UFSFlagUnclean:   "Unclean",
	UFSFlagDoSoftDep: "Soft Dependencies",
	UFSFlagNeedsFsck: "Needs fsck",
	UFSFlagIndexDirs: "Index Directories",
	UFSFlagACLs:      "ACLs",
	UFSFlagMultiLabl: "Multilabel MAC",
	UFSFlagGJournal:  "GJournal",
	UFSFlagUpdated:   "Updated",
}

// UFSCsum holds the summary counters kept in the superblock and in each
// cylinder group.
type UFSCsum struct {
	Dirs     uint64
	BlkFree  uint64
	InoFree  uint64
	FragFree uint64
}

// UFSSuperblock is the variant-independent view of an FFS superblock.
// Addresses and offsets are in fragments.
type UFSSuperblock struct {
	SbOff  uint32 // fs_sblkno: superblock copy, relative to the group start
	GdOff  uint32 // fs_cblkno: cylinder group header
	InoOff uint32 // fs_iblkno: inode table
	DatOff uint32 // fs_dblkno: first data fragment

	// UFS1 only; cylinder groups are staggered by CgDelta
	CgDelta   int32
	CgCycMask int32

	WTime       int64
	FragNum     uint64 // total fragments
	DataFragNum uint64
	CgNum       uint32
	BSizeB      uint32 // block size in bytes
	FSizeB      uint32 // fragment size in bytes
	BSizeFrag   uint32 // fragments per block
	FragShift   uint32
	InoPB       uint32 // inodes per block
	FsID        [8]byte
	CgSAddr     uint64 // cylinder-group summary area
	CgSSizeB    uint32
	CgSize      uint32
	NCyl        uint32 // UFS1 only
	Cpg         uint32 // UFS1 only
	CgInodeNum  uint32 // inodes per group
	CgFragNum   uint32 // fragments per group
	CsTotal     UFSCsum
	Fmod        uint8
	Clean       uint8
	ROnly       uint8
	OldFlags    uint8
	LastMnt     string
	VolName     string // UFS2 only
	SwUID       uint64 // UFS2 only
	Flags       uint32 // UFS2 fs_flags
	Magic       uint32
}

// UFSCylGroup is the decoded cylinder group header. Offsets are relative to
// the start of the header block.
type UFSCylGroup struct {
	Magic         uint32
	WTime         int64
	Cgx           uint32
	NCyl          uint16
	NIBlk         uint32
	NDBlk         uint32
	Cs            UFSCsum
	IUsedOff      uint32
	FreeOff       uint32
	NextFreeOff   uint32
	ClusterSumOff uint32
	ClusterOff    uint32
	NClusterBlks  uint32
	InitedIBlk    uint32 // UFS2 only
}

// UFSInode is the decoded on-disk UFS1, UFS1B or UFS2 inode. Pointer slots
// are widened to 64 bits.
type UFSInode struct {
	Mode       uint16
	NLink      int16
	UID        uint32
	GID        uint32
	Size       uint64
	Blocks     uint64 // UFS2 only
	ATime      int64
	ATimeNano  uint32
	MTime      int64
	MTimeNano  uint32
	CTime      int64
	CTimeNano  uint32
	CrTime     int64 // UFS2 only
	CrTimeNano uint32
	Gen        uint32
	KernFlags  uint32
	Flags      uint32
	ExtSize    uint32
	Direct     [NumDirectPointers]uint64
	Indirect   [NumIndirectPointers]uint64
	// PointerArea is the raw db/ib area, kept for fast symlinks
	PointerArea []byte
}

// FFS directory entry types
const (
	UFSDtUnknown = 0
	UFSDtFifo    = 1
	UFSDtChr     = 2
	UFSDtDir     = 4
	UFSDtBlk     = 6
	UFSDtReg     = 8
	UFSDtLnk     = 10
	UFSDtSock    = 12
	UFSDtWht     = 14
)

// UFSDirentFileType maps an FFS d_type to a FileType
func UFSDirentFileType(t uint8) FileType {
	switch t {
	case UFSDtFifo:
		return FileTypeFifo
	case UFSDtChr:
		return FileTypeChar
	case UFSDtDir:
		return FileTypeDirectory
	case UFSDtBlk:
		return FileTypeBlock
	case UFSDtReg:
		return FileTypeRegular
	case UFSDtLnk:
		return FileTypeSymlink
	case UFSDtSock:
		return FileTypeSocket
	case UFSDtWht:
		return FileTypeWhiteout
	default:
		return FileTypeUndef
	}
}
