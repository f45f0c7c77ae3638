// File: internal/interfaces/journal.go
package interfaces

import "github.com/deploymenttheory/go-unixfs/internal/types"

// JournalSuperblockReader provides methods for reading a JBD/JBD2 superblock
type JournalSuperblockReader interface {
	// Superblock returns the decoded superblock fields
	Superblock() *types.JournalSuperblock

	// Version returns 1 or 2
	Version() int

	// BlockSize returns the journal block size
	BlockSize() uint32

	// FirstBlock returns the first log block
	FirstBlock() uint32

	// LastBlock returns the last journal block
	LastBlock() uint32

	// StartSequence returns the sequence of the first transaction to replay
	StartSequence() uint32

	// StartBlock returns the block the log starts at; 0 means the journal is clean
	StartBlock() uint32

	// HasIncompat tests an incompatible feature bit
	HasIncompat(flag uint32) bool

	// TagSize returns the size of a descriptor tag without its UUID
	TagSize() int
}
