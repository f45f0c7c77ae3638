package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-unixfs/internal/interfaces"
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// fileReadBatch bounds the units read at once from a contiguous run
const fileReadBatch = 64

// FileWalk passes the content of inode to visit one allocation unit at a
// time, in logical order. buf is only valid during the call. For an
// unallocated inode whose runs could only be partly rebuilt, the partial
// content is walked and the RECOVER error returned afterwards.
func (fs *FileSystem) FileWalk(inode *types.Inode, flags types.FileWalkFlag, visit interfaces.FileVisitor) error {
	if inode == nil || visit == nil {
		return app.Errorf(app.ErrCodeArg, "file walk needs an inode and a visitor")
	}
	if err := fs.checkOpen(); err != nil {
		return err
	}

	base := types.FileBlockFlagAlloc
	if !inode.Flags.Has(types.MetaFlagAlloc) {
		base = types.FileBlockFlagUnalloc
	}

	if inode.Resident {
		if inode.Link == "" {
			return nil
		}
		data := []byte(inode.Link)
		fl := base | types.FileBlockFlagCont
		if flags&types.FileWalkAOnly != 0 {
			data = nil
			fl |= types.FileBlockFlagAOnly
		}
		if visit(0, 0, data, fl) == types.WalkError {
			return app.Errorf(app.ErrCodeFileWalk, "file walk of inode %d aborted by visitor", inode.Inum)
		}
		return nil
	}

	loadErr := fs.LoadRuns(inode)
	if loadErr != nil && !app.IsKind(loadErr, app.ErrCodeRecover) {
		return loadErr
	}
	if err := fs.walkRuns(inode, flags, base, visit); err != nil {
		return err
	}
	return loadErr
}

// walkRuns visits every unit of inode.Runs. It returns nil on STOP.
func (fs *FileSystem) walkRuns(inode *types.Inode, flags types.FileWalkFlag, base types.FileBlockFlag, visit interfaces.FileVisitor) error {
	bs := uint64(fs.blockSize)
	aonly := flags&types.FileWalkAOnly != 0
	slack := flags&types.FileWalkSlack != 0
	size := inode.Size

	zeros := make([]byte, bs)
	var buf []byte

	for _, run := range inode.Runs {
		for i := uint64(0); i < run.Len; {
			off := (run.Offset + i) * bs
			if off >= size && !slack {
				return nil
			}

			hole := run.Flags&(types.RunFlagSparse|types.RunFlagUnwritten) != 0
			count := uint64(1)
			if !hole && !aonly {
				count = run.Len - i
				if count > fileReadBatch {
					count = fileReadBatch
				}
				if len(buf) < int(count*bs) {
					buf = make([]byte, count*bs)
				}
				addr := run.Addr + i
				if err := fs.readAt(buf[:count*bs], addr*bs); err != nil {
					return app.NewError(app.ErrCodeFileWalk,
						fmt.Sprintf("failed to read block %d of inode %d", addr, inode.Inum), err)
				}
			}

			for j := uint64(0); j < count; j++ {
				off := (run.Offset + i + j) * bs
				if off >= size && !slack {
					return nil
				}
				n := bs
				if !slack && size-off < bs {
					n = size - off
				}

				var addr uint64
				var data []byte
				fl := base
				switch {
				case hole:
					fl |= types.FileBlockFlagSparse
					data = zeros[:n]
				default:
					addr = run.Addr + i + j
					fl |= types.FileBlockFlagCont
					if !aonly {
						data = buf[j*bs : j*bs+n]
					}
				}
				if aonly {
					fl |= types.FileBlockFlagAOnly
					data = nil
				}

				switch visit(off, addr, data, fl) {
				case types.WalkStop:
					return nil
				case types.WalkError:
					return app.Errorf(app.ErrCodeFileWalk, "file walk of inode %d aborted by visitor at offset %d", inode.Inum, off)
				}
			}
			i += count
		}
	}
	return nil
}

// BlockWalk visits blocks start through end whose flags pass the filter.
// On UFS a whole block of fragments is read at once. Blocks the image does
// not contain are passed as zeros.
func (fs *FileSystem) BlockWalk(start, end uint64, flags types.BlockWalkFlag, visit interfaces.BlockVisitor) error {
	if visit == nil {
		return app.Errorf(app.ErrCodeArg, "block walk needs a visitor")
	}
	if err := fs.checkOpen(); err != nil {
		return err
	}
	if start < fs.firstBlock || start > fs.lastBlock {
		return app.Errorf(app.ErrCodeWalkRange, "block walk start %d is outside %d-%d", start, fs.firstBlock, fs.lastBlock)
	}
	if end < fs.firstBlock || end > fs.lastBlock || end < start {
		return app.Errorf(app.ErrCodeWalkRange, "block walk end %d is outside %d-%d", end, start, fs.lastBlock)
	}

	if flags&(types.BlockWalkAlloc|types.BlockWalkUnalloc) == 0 {
		flags |= types.BlockWalkAlloc | types.BlockWalkUnalloc
	}
	if flags&(types.BlockWalkMeta|types.BlockWalkCont) == 0 {
		flags |= types.BlockWalkMeta | types.BlockWalkCont
	}
	aonly := flags&types.BlockWalkAOnly != 0

	fs.log.WithFields(logrus.Fields{"start": start, "end": end, "flags": flags}).Debug("block walk")

	bs := uint64(fs.blockSize)
	per := uint64(fs.fragsPerBlock)
	if per == 0 {
		per = 1
	}
	buf := make([]byte, per*bs)
	bflags := make([]types.BlockFlag, per)

	for addr := start; addr <= end; {
		count := per - addr%per
		if rem := end - addr + 1; rem < count {
			count = rem
		}

		wanted := false
		for i := uint64(0); i < count; i++ {
			fl, err := fs.impl.blockFlags(addr + i)
			if err != nil {
				return err
			}
			bflags[i] = fl
			if blockWanted(fl, flags) {
				wanted = true
			}
		}

		if wanted && !aonly {
			if err := fs.readBlockBatch(buf[:count*bs], addr, count); err != nil {
				return err
			}
		}

		for i := uint64(0); i < count; i++ {
			fl := bflags[i]
			if !blockWanted(fl, flags) {
				continue
			}
			blk := &types.Block{Addr: addr + i, Flags: fl}
			if aonly {
				blk.Flags |= types.BlockFlagAOnly
			} else {
				blk.Data = buf[i*bs : (i+1)*bs]
			}
			switch visit(blk) {
			case types.WalkStop:
				return nil
			case types.WalkError:
				return app.Errorf(app.ErrCodeFileWalk, "block walk aborted by visitor at block %d", addr+i)
			}
		}
		if addr+count < addr {
			break
		}
		addr += count
	}
	return nil
}

// readBlockBatch fills buf with count units from addr, zeroing the units
// past the end of the image
func (fs *FileSystem) readBlockBatch(buf []byte, addr, count uint64) error {
	bs := uint64(fs.blockSize)
	avail := count
	if addr > fs.lastBlockAct {
		avail = 0
	} else if addr+count-1 > fs.lastBlockAct {
		avail = fs.lastBlockAct - addr + 1
	}
	if avail > 0 {
		if err := fs.readAt(buf[:avail*bs], addr*bs); err != nil {
			return app.NewError(app.ErrCodeRead, fmt.Sprintf("failed to read block %d", addr), err)
		}
	}
	for i := avail * bs; i < count*bs; i++ {
		buf[i] = 0
	}
	return nil
}

func blockWanted(fl types.BlockFlag, want types.BlockWalkFlag) bool {
	switch {
	case fl&types.BlockFlagAlloc != 0 && want&types.BlockWalkAlloc == 0:
		return false
	case fl&types.BlockFlagUnalloc != 0 && want&types.BlockWalkUnalloc == 0:
		return false
	case fl&types.BlockFlagMeta != 0 && want&types.BlockWalkMeta == 0:
		return false
	case fl&types.BlockFlagCont != 0 && want&types.BlockWalkCont == 0:
		return false
	}
	return true
}

// InodeWalk visits inodes start through end whose flags pass the filter.
// ORPHAN restricts the walk to unallocated, used inodes no name points at.
// The orphan directory is passed last when end is LastInum and allocated,
// used inodes were asked for.
func (fs *FileSystem) InodeWalk(start, end types.Inum, flags types.InodeWalkFlag, visit interfaces.InodeVisitor) error {
	if visit == nil {
		return app.Errorf(app.ErrCodeArg, "inode walk needs a visitor")
	}
	if err := fs.checkOpen(); err != nil {
		return err
	}
	if start < fs.firstInum || start > fs.lastInum {
		return app.Errorf(app.ErrCodeWalkRange, "inode walk start %d is outside %d-%d", start, fs.firstInum, fs.lastInum)
	}
	if end < fs.firstInum || end > fs.lastInum || end < start {
		return app.Errorf(app.ErrCodeWalkRange, "inode walk end %d is outside %d-%d", end, start, fs.lastInum)
	}

	var named map[types.Inum]struct{}
	if flags&types.InodeWalkOrphan != 0 {
		flags |= types.InodeWalkUnalloc | types.InodeWalkUsed
		flags &^= types.InodeWalkAlloc | types.InodeWalkUnused
		var err error
		if named, err = fs.namedSet(); err != nil {
			return err
		}
	}
	if flags&(types.InodeWalkAlloc|types.InodeWalkUnalloc) == 0 {
		flags |= types.InodeWalkAlloc | types.InodeWalkUnalloc
	}
	if flags&(types.InodeWalkUsed|types.InodeWalkUnused) == 0 {
		flags |= types.InodeWalkUsed | types.InodeWalkUnused
	}

	fs.log.WithFields(logrus.Fields{"start": start, "end": end, "flags": flags}).Debug("inode walk")

	last := end
	if last >= fs.lastInum {
		last = fs.lastInum - 1
	}
	for inum := start; inum <= last && start < fs.lastInum; inum++ {
		alloc, err := fs.impl.inodeAllocated(inum)
		if err != nil {
			return err
		}
		if alloc && flags&types.InodeWalkAlloc == 0 {
			continue
		}
		if !alloc && flags&types.InodeWalkUnalloc == 0 {
			continue
		}

		if named != nil {
			if _, ok := named[inum]; ok {
				continue
			}
		}

		inode, err := fs.InodeLookup(inum)
		if err != nil {
			return err
		}
		if inode.Flags.Has(types.MetaFlagUsed) && flags&types.InodeWalkUsed == 0 {
			continue
		}
		if inode.Flags.Has(types.MetaFlagUnused) && flags&types.InodeWalkUnused == 0 {
			continue
		}
		if named != nil {
			inode.Flags |= types.MetaFlagOrphan
		}

		switch visit(inode) {
		case types.WalkStop:
			return nil
		case types.WalkError:
			return app.Errorf(app.ErrCodeFileWalk, "inode walk aborted by visitor at inode %d", inum)
		}
	}

	if end == fs.lastInum && named == nil &&
		flags&types.InodeWalkAlloc != 0 && flags&types.InodeWalkUsed != 0 {
		if visit(fs.orphanDirInode()) == types.WalkError {
			return app.Errorf(app.ErrCodeFileWalk, "inode walk aborted by visitor at inode %d", fs.lastInum)
		}
	}
	return nil
}
