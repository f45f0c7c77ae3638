package types

// Extended File System (ext2/ext3/ext4) on-disk structures.

const (
	// ExtMagic is the 16-bit superblock signature
	ExtMagic uint16 = 0xEF53
	// ExtSuperblockOffset is the fixed byte offset of the primary superblock
	ExtSuperblockOffset = 1024
	// ExtSuperblockSize is the number of superblock bytes read at open
	ExtSuperblockSize = 1024
	ExtMinBlockSize   = 1024
	ExtFirstInum      = 1
	ExtRootInum       = 2
	ExtJournalInum    = 8
	ExtMinInodeSize   = 128
	ExtMinInumCount   = 10

	ExtGroupDesc32Size = 32
	ExtGroupDesc64Size = 64

	// ExtInodeBlockArea is the size of i_block in bytes
	ExtInodeBlockArea = 60

	// ExtAttrMagic is the extended-attribute block signature
	ExtAttrMagic uint32 = 0xEA020000
)

// Compatible feature flags
const (
	ExtCompatDirPrealloc = 0x0001
	ExtCompatImagic      = 0x0002
	ExtCompatHasJournal  = 0x0004
	ExtCompatExtAttr     = 0x0008
	ExtCompatResizeIno   = 0x0010
	ExtCompatDirIndex    = 0x0020
)

// Incompatible feature flags
const (
	ExtIncompatCompression = 0x0001
	ExtIncompatFiletype    = 0x0002
	ExtIncompatRecover     = 0x0004
	ExtIncompatJournalDev  = 0x0008
	ExtIncompatMetaBG      = 0x0010
	ExtIncompatExtents     = 0x0040
	ExtIncompat64Bit       = 0x0080
	ExtIncompatMMP         = 0x0100
	ExtIncompatFlexBG      = 0x0200
	ExtIncompatEAInode     = 0x0400
	ExtIncompatDirData     = 0x1000
	ExtIncompatInlineData  = 0x2000
	ExtIncompatLargeDir    = 0x4000
)

// Read-only compatible feature flags
const (
	ExtROCompatSparseSuper  = 0x0001
	ExtROCompatLargeFile    = 0x0002
	ExtROCompatBtreeDir     = 0x0004
	ExtROCompatHugeFile     = 0x0008
	ExtROCompatGdtCsum      = 0x0010
	ExtROCompatDirNlink     = 0x0020
	ExtROCompatExtraIsize   = 0x0040
	ExtROCompatQuota        = 0x0100
	ExtROCompatBigalloc     = 0x0200
	ExtROCompatMetadataCsum = 0x0400
)

// ExtCompatNames, ExtIncompatNames and ExtROCompatNames map feature bits to
// the names printed by fsstat.
var (
	ExtCompatNames = map[uint32]string{
		ExtCompatDirPrealloc: "Dir Prealloc",
		ExtCompatImagic:      "AFS Server Inodes",
		ExtCompatHasJournal:  "Journal",
		ExtCompatExtAttr:     "Ext Attributes",
		ExtCompatResizeIno:   "Resize Inode",
		ExtCompatDirIndex:    "Dir Index",
	}
	ExtIncompatNames = map[uint32]string{
		ExtIncompatCompression: "Compression",
		ExtIncompatFiletype:    "Filetype",
		ExtIncompatRecover:     "Needs Recovery",
		ExtIncompatJournalDev:  "Journal Dev",
		ExtIncompatMetaBG:      "Meta Block Groups",
		ExtIncompatExtents:     "Extents",
		ExtIncompat64Bit:       "64bit",
		ExtIncompatMMP:         "Multiple Mount Protection",
		ExtIncompatFlexBG:      "Flexible Block Groups",
		ExtIncompatEAInode:     "Extended Attributes in Inodes",
		ExtIncompatDirData:     "Directory Data",
		ExtIncompatInlineData:  "Inline Data",
		ExtIncompatLargeDir:    "Large Directories",
	}
	ExtROCompatNames = map[uint32]string{
		ExtROCompatSparseSuper:  "Sparse Super",
		ExtROCompatLargeFile:    "Large File",
		ExtROCompatBtreeDir:     "Btree Dir",
		ExtROCompatHugeFile:     "Huge File",
		ExtROCompatGdtCsum:      "Group Descriptor Table Checksum",
		ExtROCompatDirNlink:     "Ext4 Nlink",
		ExtROCompatExtraIsize:   "Extra Inode Size",
		ExtROCompatQuota:        "Quota",
		ExtROCompatBigalloc:     "Bigalloc",
		ExtROCompatMetadataCsum: "Metadata Checksum",
	}
)

// ExtSuperblock holds the fields of the ext superblock used by the reader.
type ExtSuperblock struct {
	InodesCount      uint32
	BlocksCount      uint32
	RBlocksCount     uint32
	FreeBlocksCount  uint32
	FreeInodesCount  uint32
	FirstDataBlock   uint32
	LogBlockSize     uint32
	LogFragSize      uint32
	BlocksPerGroup   uint32
	FragsPerGroup    uint32
	InodesPerGroup   uint32
	MTime            uint32
	WTime            uint32
	MntCount         uint16
	MaxMntCount      uint16
	Magic            uint16
	State            uint16
	Errors           uint16
	MinorRevLevel    uint16
	LastCheck        uint32
	CheckInterval    uint32
	CreatorOS        uint32
	RevLevel         uint32
	DefResUID        uint16
	DefResGID        uint16
	FirstIno         uint32
	InodeSize        uint16
	BlockGroupNr     uint16
	FeatureCompat    uint32
	FeatureIncompat  uint32
	FeatureROCompat  uint32
	UUID             UUID
	VolumeName       [16]byte
	LastMounted      [64]byte
	AlgorithmBitmap  uint32
	PreallocBlocks   uint8
	PreallocDirBlock uint8
	ReservedGdtBlock uint16
	JournalUUID      UUID
	JournalInum      uint32
	JournalDev       uint32
	LastOrphan       uint32
	HashSeed         [4]uint32
	DefHashVersion   uint8
	JnlBackupType    uint8
	DescSize         uint16
	DefaultMountOpts uint32
	FirstMetaBg      uint32
	MkfsTime         uint32
	JnlBlocks        [17]uint32
	BlocksCountHi    uint32
	RBlocksCountHi   uint32
	FreeBlocksHi     uint32
}

// ExtGroupDesc is a decoded 32 or 64 byte group descriptor. High halves are
// already combined with low halves.
type ExtGroupDesc struct {
	BlockBitmap     uint64
	InodeBitmap     uint64
	InodeTable      uint64
	FreeBlocksCount uint32
	FreeInodesCount uint32
	UsedDirsCount   uint32
	Flags           uint16
	ItableUnused    uint32
	Checksum        uint16
}

// Group descriptor bg_flags
const (
	ExtBgInodeUninit = 0x0001
	ExtBgBlockUninit = 0x0002
	ExtBgInodeZeroed = 0x0004
)

// ExtInode holds the raw fields of an on-disk ext inode.
type ExtInode struct {
	Mode        uint16
	UIDLo       uint16
	Size        uint32
	ATime       uint32
	CTime       uint32
	MTime       uint32
	DTime       uint32
	GIDLo       uint16
	LinksCount  uint16
	Blocks      uint32
	Flags       uint32
	Block       [ExtInodeBlockArea]byte
	Generation  uint32
	FileACL     uint32
	SizeHigh    uint32
	UIDHi       uint16
	GIDHi       uint16
	ExtraIsize  uint16
	CTimeExtra  uint32
	MTimeExtra  uint32
	ATimeExtra  uint32
	CrTime      uint32
	CrTimeExtra uint32
}

// Inode flags
const (
	ExtInodeFlagSecDel     = 0x00000001
	ExtInodeFlagUnrm       = 0x00000002
	ExtInodeFlagCompr      = 0x00000004
	ExtInodeFlagSync       = 0x00000008
	ExtInodeFlagImmutable  = 0x00000010
	ExtInodeFlagAppend     = 0x00000020
	ExtInodeFlagNoDump     = 0x00000040
	ExtInodeFlagNoATime    = 0x00000080
	ExtInodeFlagIndex      = 0x00001000
	ExtInodeFlagJournal    = 0x00004000
	ExtInodeFlagHugeFile   = 0x00040000
	ExtInodeFlagExtents    = 0x00080000
	ExtInodeFlagInlineData = 0x10000000
)

// Extent tree
const (
	ExtExtentMagic      uint16 = 0xF30A
	ExtExtentHeaderSize        = 12
	ExtExtentEntrySize         = 12
	// ExtExtentRootEntries is how many entries fit in the i_block root
	ExtExtentRootEntries = (ExtInodeBlockArea - ExtExtentHeaderSize) / ExtExtentEntrySize
	// ExtExtentInitMaxLen is the largest length of an initialized extent;
	// longer values flag an uninitialized extent of (len - 32768) blocks
	ExtExtentInitMaxLen = 32768
)

// ExtExtentHeader starts every extent-tree node.
type ExtExtentHeader struct {
	Magic      uint16
	Entries    uint16
	Max        uint16
	Depth      uint16
	Generation uint32
}

// ExtExtent is a leaf record.
type ExtExtent struct {
	Block   uint32
	Len     uint16
	StartHi uint16
	StartLo uint32
}

// ExtExtentIdx is an index record pointing at a child node.
type ExtExtentIdx struct {
	Block  uint32
	LeafLo uint32
	LeafHi uint16
}

// Directory entries
const (
	ExtDirentHeaderSize = 8
	ExtMaxNameLen       = 255
)

// Directory entry file types (post-2.2 layout)
const (
	ExtDeUnknown = 0
	ExtDeRegular = 1
	ExtDeDir     = 2
	ExtDeChr     = 3
	ExtDeBlk     = 4
	ExtDeFifo    = 5
	ExtDeSock    = 6
	ExtDeLnk     = 7
)

// ExtDirentFileType maps an ext directory entry type byte to a FileType
func ExtDirentFileType(t uint8) FileType {
	switch t {
	case ExtDeRegular:
		return FileTypeRegular
	case ExtDeDir:
		return FileTypeDirectory
	case ExtDeChr:
		return FileTypeChar
	case ExtDeBlk:
		return FileTypeBlock
	case ExtDeFifo:
		return FileTypeFifo
	case ExtDeSock:
		return FileTypeSocket
	case ExtDeLnk:
		return FileTypeSymlink
	default:
		return FileTypeUndef
	}
}
