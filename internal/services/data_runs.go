package services

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-unixfs/internal/parsers/ext"
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// runBuilder maps an inode's content to data runs. Run offsets and lengths
// count allocation units (fragments on UFS, blocks on ext).
type runBuilder struct {
	fs       *FileSystem
	log      logrus.FieldLogger
	inum     types.Inum
	endian   binary.ByteOrder
	unitSize uint64 // bytes per allocation unit
	blkBytes uint64 // bytes per indirect block
	unitsPer uint64 // allocation units per block
	ptrWidth int    // 4 or 8 bytes per block pointer

	runs     []types.DataRun
	indirect []types.DataRun
	offset   uint64 // units mapped so far
	total    uint64 // units needed to cover the file
}

func newRunBuilder(fs *FileSystem, inode *types.Inode, ptrWidth int) *runBuilder {
	unit := uint64(fs.blockSize)
	return &runBuilder{
		fs:       fs,
		log:      fs.log.WithField("inum", inode.Inum),
		inum:     inode.Inum,
		endian:   fs.endian,
		unitSize: unit,
		blkBytes: uint64(fs.ffsBlockSize),
		unitsPer: uint64(fs.fragsPerBlock),
		ptrWidth: ptrWidth,
		total:    (inode.Size + unit - 1) / unit,
	}
}

func (b *runBuilder) remaining() uint64 {
	return b.total - b.offset
}

// add maps the next n units to addr, extending the last run when the new
// units continue it. addr 0 is a hole.
func (b *runBuilder) add(addr, n uint64, flags types.RunFlag) {
	if n == 0 {
		return
	}
	if addr == 0 {
		flags |= types.RunFlagSparse
	}
	if last := len(b.runs) - 1; last >= 0 {
		r := &b.runs[last]
		switch {
		case r.Flags != flags:
		case flags&types.RunFlagSparse != 0:
			r.Len += n
			b.offset += n
			return
		case r.Addr+r.Len == addr:
			r.Len += n
			b.offset += n
			return
		}
	}
	b.runs = append(b.runs, types.DataRun{Offset: b.offset, Addr: addr, Len: n, Flags: flags})
	b.offset += n
}

// addBlock maps one block pointer, trimmed to the end of the file
func (b *runBuilder) addBlock(addr uint64) {
	n := b.unitsPer
	if rem := b.remaining(); rem < n {
		n = rem
	}
	b.add(addr, n, 0)
}

// addIndirect records the address of an indirect or extent index block
func (b *runBuilder) addIndirect(addr, n uint64) {
	var off uint64
	if last := len(b.indirect) - 1; last >= 0 {
		off = b.indirect[last].Offset + b.indirect[last].Len
	}
	b.indirect = append(b.indirect, types.DataRun{Offset: off, Addr: addr, Len: n})
}

// indirectBlockCount returns how many indirect blocks a file of size bytes
// needs when each indirect block holds ptrs pointers
func indirectBlockCount(size, blockSize, ptrs uint64) uint64 {
	if blockSize == 0 || ptrs == 0 {
		return 0
	}
	blocks := (size + blockSize - 1) / blockSize
	if blocks <= types.NumDirectPointers {
		return 0
	}
	blocks -= types.NumDirectPointers

	single := (blocks + ptrs - 1) / ptrs
	count := single
	if single > 1 {
		double := (single - 1 + ptrs - 1) / ptrs
		count += double
		if double > 1 {
			count += (double - 1 + ptrs - 1) / ptrs
		}
	}
	return count
}

// buildPointerList maps 12 direct and 3 indirect pointers. Levels are only
// descended while the file needs more units.
func (b *runBuilder) buildPointerList(pl *types.PointerList) error {
	ptrs := b.blkBytes / uint64(b.ptrWidth)
	if n := indirectBlockCount(b.total*b.unitSize, b.blkBytes, ptrs); n > 0 {
		b.indirect = make([]types.DataRun, 0, n)
	}

	for _, addr := range pl.Direct {
		if b.remaining() == 0 {
			return nil
		}
		if err := b.checkAddr(addr); err != nil {
			return err
		}
		b.addBlock(addr)
	}

	for level, addr := range pl.Indirect {
		if b.remaining() == 0 {
			return nil
		}
		if err := b.walkIndirect(addr, level+1, ptrs); err != nil {
			return err
		}
	}

	if b.remaining() > 0 {
		return app.Errorf(app.ErrCodeInodeCor, "inode %d: pointers cover %d of %d units", b.inum, b.offset, b.total)
	}
	return nil
}

func (b *runBuilder) checkAddr(addr uint64) error {
	if addr > b.fs.lastBlock {
		return app.Errorf(app.ErrCodeInodeCor, "inode %d: block address %d is beyond the last block %d", b.inum, addr, b.fs.lastBlock)
	}
	return nil
}

// walkIndirect maps the subtree below an indirect block at the given level
func (b *runBuilder) walkIndirect(addr uint64, level int, ptrs uint64) error {
	if addr == 0 {
		// a hole covering the whole subtree
		span := b.unitsPer
		for i := 0; i < level; i++ {
			span *= ptrs
		}
		if rem := b.remaining(); rem < span {
			span = rem
		}
		b.add(0, span, 0)
		return nil
	}
	if err := b.checkAddr(addr); err != nil {
		return err
	}

	b.addIndirect(addr, b.unitsPer)
	b.log.WithFields(logrus.Fields{"addr": addr, "level": level}).Debug("reading indirect block")

	buf, err := b.fs.reader.ReadBlocks(addr, b.unitsPer, uint32(b.unitSize))
	if err != nil {
		return fmt.Errorf("failed to read indirect block %d of inode %d: %w", addr, b.inum, err)
	}

	for i := uint64(0); i < ptrs && b.remaining() > 0; i++ {
		off := i * uint64(b.ptrWidth)
		var ptr uint64
		if b.ptrWidth == 8 {
			ptr = b.endian.Uint64(buf[off : off+8])
		} else {
			ptr = uint64(b.endian.Uint32(buf[off : off+4]))
		}

		if level == 1 {
			if err := b.checkAddr(ptr); err != nil {
				return err
			}
			b.addBlock(ptr)
			continue
		}
		if err := b.walkIndirect(ptr, level-1, ptrs); err != nil {
			return err
		}
	}
	return nil
}

// buildExtents flattens an ext4 extent tree. Gaps between leaves and the
// tail up to the file size become sparse runs.
func (b *runBuilder) buildExtents(root *types.ExtentRoot) error {
	hdr, err := ext.ParseExtentHeader(root.Raw[:], b.endian)
	if err != nil {
		return app.NewError(app.ErrCodeInodeCor, fmt.Sprintf("inode %d", b.inum), err)
	}
	if err := b.walkExtentNode(root.Raw[:], hdr); err != nil {
		return err
	}
	if rem := b.remaining(); rem > 0 {
		b.add(0, rem, 0)
	}
	return nil
}

func (b *runBuilder) walkExtentNode(node []byte, hdr types.ExtExtentHeader) error {
	if err := ext.ValidateExtentHeader(hdr, len(node)); err != nil {
		return app.NewError(app.ErrCodeInodeCor, fmt.Sprintf("inode %d", b.inum), err)
	}

	if hdr.Depth == 0 {
		leaves, err := ext.ParseExtents(node, b.endian, int(hdr.Entries))
		if err != nil {
			return app.NewError(app.ErrCodeInodeCor, fmt.Sprintf("inode %d", b.inum), err)
		}
		for _, leaf := range leaves {
			if err := b.addExtent(leaf); err != nil {
				return err
			}
		}
		return nil
	}

	indexes, err := ext.ParseExtentIndexes(node, b.endian, int(hdr.Entries))
	if err != nil {
		return app.NewError(app.ErrCodeInodeCor, fmt.Sprintf("inode %d", b.inum), err)
	}
	for _, idx := range indexes {
		if b.remaining() == 0 {
			return nil
		}
		child := ext.IndexLeaf(idx)
		if child == 0 {
			return app.Errorf(app.ErrCodeInodeCor, "inode %d: extent index points at block 0", b.inum)
		}
		if err := b.checkAddr(child); err != nil {
			return err
		}
		b.addIndirect(child, 1)
		b.log.WithFields(logrus.Fields{"addr": child, "depth": hdr.Depth}).Debug("reading extent node")

		buf, err := b.fs.reader.ReadBlock(child, uint32(b.unitSize))
		if err != nil {
			return fmt.Errorf("failed to read extent node %d of inode %d: %w", child, b.inum, err)
		}
		childHdr, err := ext.ParseExtentHeader(buf, b.endian)
		if err != nil {
			return app.NewError(app.ErrCodeInodeCor, fmt.Sprintf("inode %d", b.inum), err)
		}
		if childHdr.Depth != hdr.Depth-1 {
			return app.Errorf(app.ErrCodeInodeCor, "inode %d: extent node %d has depth %d under depth %d", b.inum, child, childHdr.Depth, hdr.Depth)
		}
		if err := b.walkExtentNode(buf, childHdr); err != nil {
			return err
		}
	}
	return nil
}

// addExtent maps one leaf, filling any gap before it with a hole
func (b *runBuilder) addExtent(leaf types.ExtExtent) error {
	logical := uint64(leaf.Block)
	if logical >= b.total {
		// preallocated past the end of the file
		return nil
	}
	if logical < b.offset {
		return app.Errorf(app.ErrCodeInodeCor, "inode %d: extent at logical block %d overlaps block %d", b.inum, logical, b.offset)
	}
	if logical > b.offset {
		b.add(0, logical-b.offset, 0)
	}

	start := ext.ExtentStart(leaf)
	length, uninit := ext.ExtentLength(leaf)
	if length == 0 {
		return nil
	}
	if start == 0 || start+length-1 > b.fs.lastBlock {
		return app.Errorf(app.ErrCodeInodeCor, "inode %d: extent %d+%d is outside the filesystem", b.inum, start, length)
	}
	if rem := b.remaining(); rem < length {
		length = rem
	}

	var flags types.RunFlag
	if uninit {
		flags = types.RunFlagUnwritten
	}
	b.runs = append(b.runs, types.DataRun{Offset: b.offset, Addr: start, Len: length, Flags: flags})
	b.offset += length
	return nil
}
