package services

import (
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// BlockOwner names an inode that maps a block
type BlockOwner struct {
	Inum types.Inum
	// Indirect is set when the block holds pointers or extent nodes of the
	// inode instead of its content
	Indirect bool
	// Offset is the logical block of the file, for content blocks
	Offset uint64
}

// FindBlockOwner returns the first inode, in inode order, whose data runs
// or indirect blocks contain addr. found is false when no inode maps it.
func (fs *FileSystem) FindBlockOwner(addr uint64) (owner BlockOwner, found bool, err error) {
	if addr > fs.lastBlock {
		return owner, false, app.Errorf(app.ErrCodeArg, "block %d is beyond the last block %d", addr, fs.lastBlock)
	}

	err = fs.InodeWalk(fs.firstInum, fs.lastInum-1, types.InodeWalkUsed, func(inode *types.Inode) types.WalkResult {
		if err := fs.LoadRuns(inode); err != nil && !app.IsKind(err, app.ErrCodeRecover) {
			fs.log.WithError(err).WithField("inum", inode.Inum).Debug("skipping inode without data runs")
			return types.WalkContinue
		}
		for _, r := range inode.Runs {
			if !r.IsSparse() && addr >= r.Addr && addr < r.Addr+r.Len {
				owner = BlockOwner{Inum: inode.Inum, Offset: r.Offset + addr - r.Addr}
				found = true
				return types.WalkStop
			}
		}
		for _, r := range inode.IndirectRuns {
			if addr >= r.Addr && addr < r.Addr+r.Len {
				owner = BlockOwner{Inum: inode.Inum, Indirect: true}
				found = true
				return types.WalkStop
			}
		}
		return types.WalkContinue
	})
	return owner, found, err
}
