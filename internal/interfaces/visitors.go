// File: internal/interfaces/visitors.go
package interfaces

import "github.com/deploymenttheory/go-unixfs/internal/types"

// BlockVisitor is called for each block produced by a block walk
type BlockVisitor func(block *types.Block) types.WalkResult

// InodeVisitor is called for each inode produced by an inode walk
type InodeVisitor func(inode *types.Inode) types.WalkResult

// FileVisitor is called for each block of a file walk. offset is the byte
// offset of buf in the file and addr is 0 for sparse blocks.
type FileVisitor func(offset uint64, addr uint64, buf []byte, flags types.FileBlockFlag) types.WalkResult

// DirEntryVisitor is called for each directory entry
type DirEntryVisitor func(entry *types.DirEntry) types.WalkResult

// JournalEntryVisitor is called for each journal block of an entry walk
type JournalEntryVisitor func(entry *types.JournalEntry) types.WalkResult
