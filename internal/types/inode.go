package types

// FileType is the variant-agnostic type of an inode or directory entry.
type FileType uint8

const (
	FileTypeUndef FileType = iota
	FileTypeRegular
	FileTypeDirectory
	FileTypeChar
	FileTypeBlock
	FileTypeFifo
	FileTypeSocket
	FileTypeSymlink
	FileTypeShadow
	FileTypeWhiteout
)

// Char returns the single character used in listings (fls/istat style)
func (t FileType) Char() string {
	switch t {
	case FileTypeRegular:
		return "r"
	case FileTypeDirectory:
		return "d"
	case FileTypeChar:
		return "c"
	case FileTypeBlock:
		return "b"
	case FileTypeFifo:
		return "p"
	case FileTypeSocket:
		return "s"
	case FileTypeSymlink:
		return "l"
	case FileTypeShadow:
		return "h"
	case FileTypeWhiteout:
		return "w"
	default:
		return "-"
	}
}

// String returns the long name of the type
func (t FileType) String() string {
	switch t {
	case FileTypeRegular:
		return "regular"
	case FileTypeDirectory:
		return "directory"
	case FileTypeChar:
		return "character device"
	case FileTypeBlock:
		return "block device"
	case FileTypeFifo:
		return "fifo"
	case FileTypeSocket:
		return "socket"
	case FileTypeSymlink:
		return "symbolic link"
	case FileTypeShadow:
		return "shadow inode"
	case FileTypeWhiteout:
		return "whiteout"
	default:
		return "undefined"
	}
}

// POSIX mode type bits shared by ext and UFS inodes.
const (
	ModeTypeMask = 0170000
	ModeFifo     = 0010000
	ModeChar     = 0020000
	ModeDir      = 0040000
	ModeBlock    = 0060000
	ModeRegular  = 0100000
	ModeSymlink  = 0120000
	ModeShadow   = 0130000 // UFS only
	ModeSocket   = 0140000
	ModeWhiteout = 0160000 // UFS only
	ModePermMask = 07777
)

// FileTypeFromMode decodes the type bits of an on-disk mode
func FileTypeFromMode(mode uint16) FileType {
	switch uint32(mode) & ModeTypeMask {
	case ModeRegular:
		return FileTypeRegular
	case ModeDir:
		return FileTypeDirectory
	case ModeSocket:
		return FileTypeSocket
	case ModeSymlink:
		return FileTypeSymlink
	case ModeBlock:
		return FileTypeBlock
	case ModeChar:
		return FileTypeChar
	case ModeFifo:
		return FileTypeFifo
	case ModeShadow:
		return FileTypeShadow
	case ModeWhiteout:
		return FileTypeWhiteout
	default:
		return FileTypeUndef
	}
}

// Content is the inode's block-pointer area, interpreted per content type.
// Implemented by *PointerList and *ExtentRoot.
type Content interface {
	isContent()
}

// PointerList holds 12 direct and 3 indirect block addresses. Slots are
// widened to 64 bits regardless of the on-disk width.
type PointerList struct {
	Direct   [NumDirectPointers]uint64
	Indirect [NumIndirectPointers]uint64
}

func (*PointerList) isContent() {}

// ExtentRoot is the 60 byte extent-tree root stored in an ext4 inode.
type ExtentRoot struct {
	Raw [ExtInodeBlockArea]byte
}

func (*ExtentRoot) isContent() {}

const (
	NumDirectPointers   = 12
	NumIndirectPointers = 3
)

// DataRun maps a contiguous range of logical fragments to physical ones.
// Offset and Len count fragments (blocks on ext).
type DataRun struct {
	Offset uint64
	Addr   uint64
	Len    uint64
	Flags  RunFlag
}

// IsSparse reports whether the run is a hole
func (r DataRun) IsSparse() bool {
	return r.Flags&RunFlagSparse != 0
}

// Inode is the normalized, variant-agnostic inode.
type Inode struct {
	Inum  Inum
	Type  FileType
	Mode  uint16 // permission bits only
	NLink int32
	Size  uint64
	UID   uint32
	GID   uint32

	ATime      int64
	ATimeNano  uint32
	MTime      int64
	MTimeNano  uint32
	CTime      int64
	CTimeNano  uint32
	CrTime     int64
	CrTimeNano uint32
	DTime      int64 // ext only

	Flags      MetaFlag
	Generation uint32
	FileFlags  uint32 // ext i_flags / UFS2 di_flags

	Content Content
	Link    string
	// Resident is set for fast symlinks, whose target is stored in the
	// pointer area instead of data blocks
	Resident bool

	// Runs and IndirectRuns are filled by the data-run builder on demand.
	Runs         []DataRun
	IndirectRuns []DataRun
	runsLoaded   bool
}

// RunsLoaded reports whether the data runs have been built
func (i *Inode) RunsLoaded() bool {
	return i.runsLoaded
}

// SetRuns stores the result of a data-run build
func (i *Inode) SetRuns(runs, indirect []DataRun) {
	i.Runs = runs
	i.IndirectRuns = indirect
	i.runsLoaded = true
}

// ModeString renders the type and permission bits as ls(1) does
func (i *Inode) ModeString() string {
	var b [10]byte
	b[0] = i.Type.Char()[0]
	if i.Type == FileTypeRegular {
		b[0] = '-'
	}
	const rwx = "rwxrwxrwx"
	for n := 0; n < 9; n++ {
		if i.Mode&(1<<uint(8-n)) != 0 {
			b[n+1] = rwx[n]
		} else {
			b[n+1] = '-'
		}
	}
	if i.Mode&04000 != 0 {
		b[3] = suid(b[3], 's')
	}
	if i.Mode&02000 != 0 {
		b[6] = suid(b[6], 's')
	}
	if i.Mode&01000 != 0 {
		b[9] = suid(b[9], 't')
	}
	return string(b[:])
}

func suid(c byte, set byte) byte {
	if c == '-' {
		return set - ('a' - 'A')
	}
	return set
}

// DirEntry is one name produced by the directory parser.
type DirEntry struct {
	Inum  Inum
	Name  string
	Type  FileType
	Flags NameFlag
	// Path is the parent path when produced by a recursive walk
	Path string
}

// IsAllocated reports whether the entry is live
func (d *DirEntry) IsAllocated() bool {
	return d.Flags&NameFlagAlloc != 0
}
