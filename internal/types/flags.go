package types

// BlockFlag classifies a single block or fragment.
type BlockFlag uint8

const (
	BlockFlagAlloc BlockFlag = 1 << iota
	BlockFlagUnalloc
	BlockFlagMeta
	BlockFlagCont
	BlockFlagAOnly
)

// Has reports whether all bits of f are set
func (b BlockFlag) Has(f BlockFlag) bool {
	return b&f == f
}

// BlockWalkFlag filters and configures block_walk.
type BlockWalkFlag uint8

const (
	BlockWalkAlloc BlockWalkFlag = 1 << iota
	BlockWalkUnalloc
	BlockWalkMeta
	BlockWalkCont
	// BlockWalkAOnly passes addresses only; no content is read
	BlockWalkAOnly
)

// MetaFlag describes the allocation state of an inode.
type MetaFlag uint8

const (
	MetaFlagAlloc MetaFlag = 1 << iota
	MetaFlagUnalloc
	MetaFlagUsed
	MetaFlagUnused
	MetaFlagOrphan
)

// Has reports whether all bits of f are set
func (m MetaFlag) Has(f MetaFlag) bool {
	return m&f == f
}

// InodeWalkFlag filters inode_walk.
type InodeWalkFlag uint8

const (
	InodeWalkAlloc InodeWalkFlag = 1 << iota
	InodeWalkUnalloc
	InodeWalkUsed
	InodeWalkUnused
	// InodeWalkOrphan restricts the walk to unallocated, used inodes that no
	// directory entry names. It implies InodeWalkUnalloc and InodeWalkUsed.
	InodeWalkOrphan
)

// FileWalkFlag configures file_walk.
type FileWalkFlag uint8

const (
	// FileWalkAOnly suppresses the content read and passes addresses only
	FileWalkAOnly FileWalkFlag = 1 << iota
	// FileWalkSlack extends the final block past the file size
	FileWalkSlack
)

// FileBlockFlag is passed to file_walk visitors for every block.
type FileBlockFlag uint8

const (
	FileBlockFlagCont FileBlockFlag = 1 << iota
	FileBlockFlagSparse
	FileBlockFlagAOnly
	FileBlockFlagAlloc
	FileBlockFlagUnalloc
)

// NameFlag describes the allocation state of a directory entry.
type NameFlag uint8

const (
	NameFlagAlloc NameFlag = 1 << iota
	NameFlagUnalloc
)

// RunFlag annotates a data run.
type RunFlag uint8

const (
	// RunFlagSparse marks a hole; reads yield zeros
	RunFlagSparse RunFlag = 1 << iota
	// RunFlagUnwritten marks an allocated but uninitialized extent; reads
	// yield zeros
	RunFlagUnwritten
)
