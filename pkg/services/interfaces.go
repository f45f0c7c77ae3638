package services

import (
	"context"
	"io"
	"time"

	"github.com/deploymenttheory/go-unixfs/internal/services"
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// FsStatInfo is the structured filesystem summary
type FsStatInfo = services.FsStatInfo

// PartitionInfo describes a partition table entry and what was found on it
type PartitionInfo struct {
	Index  int    `json:"index" yaml:"index"`
	Start  int64  `json:"start" yaml:"start"`
	Size   int64  `json:"size" yaml:"size"`
	FsType string `json:"fs_type,omitempty" yaml:"fs_type,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// FileEntry is one name of a directory listing
type FileEntry struct {
	Inum     uint64    `json:"inum" yaml:"inum"`
	Name     string    `json:"name" yaml:"name"`
	Path     string    `json:"path" yaml:"path"`
	Type     string    `json:"type" yaml:"type"`
	Deleted  bool      `json:"deleted" yaml:"deleted"`
	Size     uint64    `json:"size" yaml:"size"`
	Mode     string    `json:"mode,omitempty" yaml:"mode,omitempty"`
	Modified time.Time `json:"modified" yaml:"modified"`
}

// InodeInfo is one line of an inode listing
type InodeInfo struct {
	Inum      uint64    `json:"inum" yaml:"inum"`
	Type      string    `json:"type" yaml:"type"`
	Mode      string    `json:"mode" yaml:"mode"`
	Allocated bool      `json:"allocated" yaml:"allocated"`
	Used      bool      `json:"used" yaml:"used"`
	Orphan    bool      `json:"orphan" yaml:"orphan"`
	UID       uint32    `json:"uid" yaml:"uid"`
	GID       uint32    `json:"gid" yaml:"gid"`
	NLink     int32     `json:"nlink" yaml:"nlink"`
	Size      uint64    `json:"size" yaml:"size"`
	Modified  time.Time `json:"modified" yaml:"modified"`
	Accessed  time.Time `json:"accessed" yaml:"accessed"`
	Changed   time.Time `json:"changed" yaml:"changed"`
	Deleted   time.Time `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

// BlockInfo describes the allocation state and owner of one block
type BlockInfo struct {
	Addr      uint64 `json:"addr" yaml:"addr"`
	Allocated bool   `json:"allocated" yaml:"allocated"`
	Meta      bool   `json:"meta" yaml:"meta"`
	Flags     string `json:"flags" yaml:"flags"`
	Owner     uint64 `json:"owner,omitempty" yaml:"owner,omitempty"`
	Indirect  bool   `json:"indirect,omitempty" yaml:"indirect,omitempty"`
	Offset    uint64 `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// JournalSummary holds the journal superblock fields
type JournalSummary struct {
	Inum          uint64   `json:"inum" yaml:"inum"`
	Version       int      `json:"version" yaml:"version"`
	BlockSize     uint64   `json:"block_size" yaml:"block_size"`
	FirstBlock    uint64   `json:"first_block" yaml:"first_block"`
	LastBlock     uint64   `json:"last_block" yaml:"last_block"`
	StartBlock    uint64   `json:"start_block" yaml:"start_block"`
	StartSequence uint32   `json:"start_sequence" yaml:"start_sequence"`
	UUID          string   `json:"uuid" yaml:"uuid"`
	Features      []string `json:"features,omitempty" yaml:"features,omitempty"`
	ChecksumType  string   `json:"checksum_type,omitempty" yaml:"checksum_type,omitempty"`
}

// JournalRecord is one block of a journal listing
type JournalRecord struct {
	JBlock    uint64 `json:"jblock" yaml:"jblock"`
	Kind      string `json:"kind" yaml:"kind"`
	Sequence  uint32 `json:"sequence" yaml:"sequence"`
	Allocated bool   `json:"allocated" yaml:"allocated"`
	FsBlock   uint64 `json:"fs_block,omitempty" yaml:"fs_block,omitempty"`
	Escaped   bool   `json:"escaped,omitempty" yaml:"escaped,omitempty"`
	Revoked   int    `json:"revoked,omitempty" yaml:"revoked,omitempty"`

	// Commit blocks
	CommitTime   *time.Time `json:"commit_time,omitempty" yaml:"commit_time,omitempty"`
	ChecksumType string     `json:"checksum_type,omitempty" yaml:"checksum_type,omitempty"`
	Checksum     uint32     `json:"checksum,omitempty" yaml:"checksum,omitempty"`

	// Superblock blocks
	Features []string `json:"features,omitempty" yaml:"features,omitempty"`
}

// ListOptions selects the names of a directory listing
type ListOptions struct {
	// Path of the directory; empty means Inum, or the root when Inum is 0
	Path      string
	Inum      uint64
	Recursive bool
	// DeletedOnly drops allocated names; AllocatedOnly drops deleted ones
	DeletedOnly   bool
	AllocatedOnly bool
}

// RangeOptions selects a block or inode range. Zero bounds mean the whole
// filesystem.
type RangeOptions struct {
	Start uint64
	End   uint64
}

// ImageService opens images and the filesystems inside them
type ImageService interface {
	// Open returns the cached handle for target, opening it on first use
	Open(ctx context.Context, target app.ImageTarget) (*Handle, error)

	// ListPartitions reads the partition table of an image
	ListPartitions(ctx context.Context, path string) ([]PartitionInfo, error)

	// ScanPartitions checks every partition of an image for a filesystem
	ScanPartitions(ctx context.Context, path, fsType string) ([]PartitionInfo, error)

	// Close closes every open handle
	Close() error
}

// FilesystemService answers listing, stat and content queries
type FilesystemService interface {
	Stat(ctx context.Context, target app.ImageTarget) (*FsStatInfo, error)
	WriteFsStat(ctx context.Context, target app.ImageTarget, w io.Writer) error
	WriteIStat(ctx context.Context, target app.ImageTarget, inum uint64, numAddr int, skew time.Duration, w io.Writer) error

	ListFiles(ctx context.Context, target app.ImageTarget, opts ListOptions) ([]FileEntry, error)
	ListInodes(ctx context.Context, target app.ImageTarget, rng RangeOptions, flags types.InodeWalkFlag) ([]InodeInfo, error)
	ListBlocks(ctx context.Context, target app.ImageTarget, rng RangeOptions, flags types.BlockWalkFlag) ([]BlockInfo, error)
	WriteBlocks(ctx context.Context, target app.ImageTarget, rng RangeOptions, flags types.BlockWalkFlag, w io.Writer) (uint64, error)
	BlockStat(ctx context.Context, target app.ImageTarget, addr uint64) (*BlockInfo, error)

	ReadFile(ctx context.Context, target app.ImageTarget, inum uint64, slack bool, w io.Writer) (int64, error)
	LookupPath(ctx context.Context, target app.ImageTarget, path string) (uint64, error)
}

// JournalService reads the ext3/ext4 journal
type JournalService interface {
	Summary(ctx context.Context, target app.ImageTarget, inum uint64) (*JournalSummary, error)
	ListEntries(ctx context.Context, target app.ImageTarget, inum uint64) ([]JournalRecord, error)
	WriteBlock(ctx context.Context, target app.ImageTarget, inum, block uint64, w io.Writer) error
}
