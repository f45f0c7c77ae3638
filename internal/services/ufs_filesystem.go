package services

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-unixfs/internal/helpers"
	"github.com/deploymenttheory/go-unixfs/internal/interfaces"
	"github.com/deploymenttheory/go-unixfs/internal/parsers/dirent"
	"github.com/deploymenttheory/go-unixfs/internal/parsers/ufs"
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// ufsCandidate is one superblock location and the variant it may hold
type ufsCandidate struct {
	offset uint64
	want   types.FsType
}

var ufsCandidates = []ufsCandidate{
	{types.UFS2SuperblockOffset, types.FsTypeUFS2},
	{types.UFS2AltSuperblockOffset, types.FsTypeUFS2},
	{types.UFS1SuperblockOffset, types.FsTypeUFS1},
}

// ufsFS implements fsImpl for UFS1, UFS1B and UFS2
type ufsFS struct {
	fs        *FileSystem
	sbr       interfaces.UFSSuperblockReader
	sb        *types.UFSSuperblock
	endian    binary.ByteOrder
	ufs2      bool
	old       bool // UFS1B inode and directory layout
	fsize     uint64
	bsize     uint64
	inodeSize uint64
	ipg       uint64
	fpg       uint64

	// single-slot caches, guarded by fs.mu
	cgNum    int64
	cgBuf    []byte
	cg       *types.UFSCylGroup
	itblAddr int64
	itbl     []byte
}

// openUFS tries the UFS superblock locations. UFS1B cannot be told apart
// from UFS1 on disk, so it is only used when forced.
func (fs *FileSystem) openUFS(forceUFS1B bool) error {
	var sbr interfaces.UFSSuperblockReader
	for _, p := range ufsCandidates {
		buf := make([]byte, types.UFSSuperblockSize)
		if err := fs.readAt(buf, p.offset); err != nil {
			fs.log.WithError(err).WithField("offset", p.offset).Debug("ufs superblock read failed")
			continue
		}
		r, err := ufs.NewSuperblockReader(buf)
		if err != nil || r.FsType() != p.want {
			fs.log.WithField("offset", p.offset).Debug("no ufs superblock")
			continue
		}
		fs.log.WithFields(logrus.Fields{"offset": p.offset, "variant": r.FsType().String()}).Debug("ufs superblock found")
		sbr = r
		break
	}
	if sbr == nil {
		return app.Errorf(app.ErrCodeMagic, "no UFS superblock found")
	}
	sb := sbr.Superblock()

	fsize, bsize := uint64(sb.FSizeB), uint64(sb.BSizeB)
	if fsize == 0 || fsize%512 != 0 {
		return app.Errorf(app.ErrCodeMagic, "invalid ufs fragment size %d", fsize)
	}
	if bsize == 0 || bsize%512 != 0 {
		return app.Errorf(app.ErrCodeMagic, "invalid ufs block size %d", bsize)
	}
	if sb.BSizeFrag == 0 || bsize/fsize != uint64(sb.BSizeFrag) {
		return app.Errorf(app.ErrCodeUnsupFunc, "ufs block size %d is not %d fragments of %d bytes", bsize, sb.BSizeFrag, fsize)
	}
	if sb.CgNum == 0 || sb.CgInodeNum == 0 || sb.CgFragNum == 0 || sb.InoPB == 0 {
		return app.Errorf(app.ErrCodeMagic, "invalid ufs cylinder group geometry")
	}
	if sb.FragNum == 0 {
		return app.Errorf(app.ErrCodeMagic, "ufs fragment count is 0")
	}

	u := &ufsFS{
		fs:       fs,
		sbr:      sbr,
		sb:       sb,
		endian:   sbr.Endian(),
		ufs2:     sbr.FsType() == types.FsTypeUFS2,
		fsize:    fsize,
		bsize:    bsize,
		ipg:      uint64(sb.CgInodeNum),
		fpg:      uint64(sb.CgFragNum),
		cgNum:    -1,
		itblAddr: -1,
	}

	fs.fsType = sbr.FsType()
	u.inodeSize = types.UFS1InodeSize
	fs.maxLinkLen = types.UFSMaxPathLen
	if u.ufs2 {
		u.inodeSize = types.UFS2InodeSize
	} else if forceUFS1B {
		fs.fsType = types.FsTypeUFS1B
		u.old = true
	}

	fs.endian = u.endian
	fs.blockSize = uint32(fsize)
	fs.ffsBlockSize = uint32(bsize)
	fs.fragsPerBlock = sb.BSizeFrag
	fs.firstBlock = 0
	fs.blockCount = sb.FragNum
	fs.lastBlock = sb.FragNum - 1
	fs.groupCount = sb.CgNum
	fs.inodesPerGrp = sb.CgInodeNum
	fs.inumCount = uint64(sb.CgNum)*u.ipg + 1
	fs.firstInum = types.UFSFirstInum
	fs.rootInum = types.UFSRootInum
	fs.lastInum = types.Inum(fs.inumCount - 1)
	fs.impl = u

	fs.log.WithFields(logrus.Fields{
		"variant":   fs.fsType.String(),
		"endian":    u.endian.String(),
		"frag_size": fsize,
		"bsize":     bsize,
	}).Debug("ufs superblock validated")
	return nil
}

// Cylinder group geometry, in fragments

func (u *ufsFS) cgBase(c uint64) uint64 {
	return u.fpg * c
}

func (u *ufsFS) cgStart(c uint64) uint64 {
	if u.ufs2 {
		return u.cgBase(c)
	}
	return u.cgBase(c) + uint64(int64(u.sb.CgDelta)*int64(int32(c)&^u.sb.CgCycMask))
}

func (u *ufsFS) cgTod(c uint64) uint64    { return u.cgStart(c) + uint64(u.sb.GdOff) }
func (u *ufsFS) cgIMin(c uint64) uint64   { return u.cgStart(c) + uint64(u.sb.InoOff) }
func (u *ufsFS) cgDMin(c uint64) uint64   { return u.cgStart(c) + uint64(u.sb.DatOff) }
func (u *ufsFS) cgSBlock(c uint64) uint64 { return u.cgStart(c) + uint64(u.sb.SbOff) }

func (u *ufsFS) blksToFrags(b uint64) uint64 {
	return b << u.sb.FragShift
}

// itod returns the fragment holding the inode table block of inum
func (u *ufsFS) itod(inum uint64) uint64 {
	return u.cgIMin(inum/u.ipg) + u.blksToFrags((inum%u.ipg)/uint64(u.sb.InoPB))
}

// itoo returns the index of inum inside its inode table block
func (u *ufsFS) itoo(inum uint64) uint64 {
	return inum % uint64(u.sb.InoPB)
}

// cgLoad fills the cylinder group cache. Caller holds fs.mu.
func (u *ufsFS) cgLoad(c uint64) error {
	if c >= uint64(u.fs.groupCount) {
		return app.Errorf(app.ErrCodeArg, "cylinder group %d is out of range (%d groups)", c, u.fs.groupCount)
	}
	if u.cgNum == int64(c) {
		return nil
	}

	addr := u.cgTod(c)
	if addr > u.fs.lastBlock {
		return app.Errorf(app.ErrCodeCorrupt, "cylinder group %d header at %d is beyond the last fragment", c, addr)
	}
	buf, err := u.fs.reader.ReadBlocks(addr, uint64(u.sb.BSizeFrag), uint32(u.fsize))
	if err != nil {
		return app.NewError(app.ErrCodeRead, fmt.Sprintf("failed to read cylinder group %d", c), err)
	}
	cg, err := ufs.ParseCylGroup(buf, u.endian, u.ufs2)
	if err != nil {
		return app.NewError(app.ErrCodeCorrupt, fmt.Sprintf("cylinder group %d", c), err)
	}
	if uint64(cg.IUsedOff) > u.bsize || uint64(cg.FreeOff) > u.bsize {
		return app.Errorf(app.ErrCodeCorrupt, "cylinder group %d bitmap offsets are beyond the block", c)
	}

	u.cg = cg
	u.cgBuf = buf
	u.cgNum = int64(c)
	u.fs.log.WithField("group", c).Debug("cylinder group cache miss")
	return nil
}

func (u *ufsFS) reset() {
	u.cgNum, u.cg, u.cgBuf = -1, nil, nil
	u.itblAddr, u.itbl = -1, nil
}

func (u *ufsFS) inodeAllocated(inum types.Inum) (bool, error) {
	u.fs.mu.Lock()
	defer u.fs.mu.Unlock()
	return u.inodeAllocatedLocked(inum)
}

func (u *ufsFS) inodeAllocatedLocked(inum types.Inum) (bool, error) {
	c := uint64(inum) / u.ipg
	if err := u.cgLoad(c); err != nil {
		return false, err
	}
	return helpers.IsBitSet(u.cgBuf[u.cg.IUsedOff:], uint64(inum)-c*u.ipg), nil
}

// readInode reads the raw inode. Caller holds fs.mu.
func (u *ufsFS) readInode(inum types.Inum) (*types.UFSInode, error) {
	if inum < u.fs.firstInum || inum > u.fs.lastInum-1 {
		return nil, app.Errorf(app.ErrCodeInodeNum, "inode %d is out of range (%d-%d)", inum, u.fs.firstInum, u.fs.lastInum-1)
	}

	n := uint64(inum)
	if u.ufs2 {
		c := n / u.ipg
		if err := u.cgLoad(c); err != nil {
			return nil, err
		}
		// inode blocks past cg_initediblk were never written
		if n-c*u.ipg >= uint64(u.cg.InitedIBlk) {
			return &types.UFSInode{}, nil
		}
	}

	addr := u.itod(n)
	if addr > u.fs.lastBlock {
		return nil, app.Errorf(app.ErrCodeCorrupt, "inode table block %d of inode %d is beyond the last fragment", addr, inum)
	}
	if u.itblAddr != int64(addr) {
		buf, err := u.fs.reader.ReadBlocks(addr, uint64(u.sb.BSizeFrag), uint32(u.fsize))
		if err != nil {
			return nil, app.NewError(app.ErrCodeRead, fmt.Sprintf("failed to read inode table block %d", addr), err)
		}
		u.itbl = buf
		u.itblAddr = int64(addr)
	}

	off := u.itoo(n) * u.inodeSize
	if off+u.inodeSize > uint64(len(u.itbl)) {
		return nil, app.Errorf(app.ErrCodeCorrupt, "inode %d is beyond its inode table block", inum)
	}
	data := u.itbl[off : off+u.inodeSize]

	var raw *types.UFSInode
	var err error
	switch {
	case u.ufs2:
		raw, err = ufs.ParseInode2(data, u.endian)
	case u.old:
		raw, err = ufs.ParseInode1B(data, u.endian)
	default:
		raw, err = ufs.ParseInode1(data, u.endian)
	}
	if err != nil {
		return nil, app.NewError(app.ErrCodeInodeCor, fmt.Sprintf("inode %d", inum), err)
	}
	return raw, nil
}

func (u *ufsFS) loadInode(inum types.Inum) (*types.Inode, error) {
	u.fs.mu.Lock()
	raw, err := u.readInode(inum)
	if err != nil {
		u.fs.mu.Unlock()
		return nil, err
	}
	alloc, err := u.inodeAllocatedLocked(inum)
	u.fs.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return u.copyInode(raw, inum, alloc), nil
}

// copyInode normalizes a raw inode
func (u *ufsFS) copyInode(raw *types.UFSInode, inum types.Inum, alloc bool) *types.Inode {
	inode := &types.Inode{
		Inum:       inum,
		Type:       types.FileTypeFromMode(raw.Mode),
		Mode:       raw.Mode & types.ModePermMask,
		NLink:      int32(raw.NLink),
		Size:       raw.Size,
		UID:        raw.UID,
		GID:        raw.GID,
		ATime:      raw.ATime,
		ATimeNano:  raw.ATimeNano,
		MTime:      raw.MTime,
		MTimeNano:  raw.MTimeNano,
		CTime:      raw.CTime,
		CTimeNano:  raw.CTimeNano,
		CrTime:     raw.CrTime,
		CrTimeNano: raw.CrTimeNano,
		Generation: raw.Gen,
		FileFlags:  raw.Flags,
	}

	if alloc {
		inode.Flags = types.MetaFlagAlloc
	} else {
		inode.Flags = types.MetaFlagUnalloc
	}
	if raw.CTime != 0 {
		inode.Flags |= types.MetaFlagUsed
	} else {
		inode.Flags |= types.MetaFlagUnused
	}

	fastMax := uint64(types.UFS1FastLinkMax)
	if u.ufs2 {
		fastMax = types.UFS2FastLinkMax
	}
	if inode.Type == types.FileTypeSymlink && inode.Size < fastMax {
		inode.Link = helpers.SanitizeLink(raw.PointerArea[:inode.Size])
		inode.Resident = true
		inode.Content = &types.PointerList{}
		return inode
	}

	inode.Content = &types.PointerList{Direct: raw.Direct, Indirect: raw.Indirect}
	return inode
}

func (u *ufsFS) buildRuns(inode *types.Inode) ([]types.DataRun, []types.DataRun, error) {
	pl, ok := inode.Content.(*types.PointerList)
	if !ok {
		return nil, nil, app.Errorf(app.ErrCodeInodeCor, "inode %d has no block pointers", inode.Inum)
	}
	width := 4
	if u.ufs2 {
		width = 8
	}
	b := newRunBuilder(u.fs, inode, width)
	err := b.buildPointerList(pl)
	return b.runs, b.indirect, err
}

func (u *ufsFS) blockFlags(addr uint64) (types.BlockFlag, error) {
	if addr == 0 {
		return types.BlockFlagAlloc | types.BlockFlagCont, nil
	}

	u.fs.mu.Lock()
	defer u.fs.mu.Unlock()

	c := addr / u.fpg
	if err := u.cgLoad(c); err != nil {
		return 0, err
	}

	var flags types.BlockFlag
	// blksfree has a bit set for every free fragment
	if helpers.IsBitSet(u.cgBuf[u.cg.FreeOff:], addr-u.cgBase(c)) {
		flags = types.BlockFlagUnalloc
	} else {
		flags = types.BlockFlagAlloc
	}

	if addr >= u.cgSBlock(c) && addr < u.cgDMin(c) {
		return flags | types.BlockFlagMeta, nil
	}
	return flags | types.BlockFlagCont, nil
}

func (u *ufsFS) dirChunkSize() int {
	return types.UFSDirBlockSize
}

func (u *ufsFS) direntDecoder() dirent.Decoder {
	return ufs.DirentDecoder(u.endian, u.old)
}

func (u *ufsFS) direntType(t uint8) types.FileType {
	if u.old {
		return types.FileTypeUndef
	}
	return types.UFSDirentFileType(t)
}

func (u *ufsFS) statInfo() (*FsStatInfo, error) {
	sb := u.sb
	info := &FsStatInfo{
		VolumeName:     u.sbr.VolumeName(),
		LastMounted:    u.sbr.LastMounted(),
		LastWritten:    unixTime(sb.WTime),
		InodeSize:      uint32(u.inodeSize),
		FreeInodes:     sb.CsTotal.InoFree,
		BlockSize:      uint32(u.bsize),
		FragmentSize:   uint32(u.fsize),
		FreeBlocks:     sb.CsTotal.BlkFree*uint64(sb.BSizeFrag) + sb.CsTotal.FragFree,
		BlocksPerGroup: uint32(u.fpg),
	}
	if u.ufs2 {
		info.Flags = featureNames(sb.Flags, types.UFSFlagNames)
	}
	if sb.FsID != [8]byte{} {
		info.VolumeID = fmt.Sprintf("%x", sb.FsID[:])
	}
	if sb.Clean != 0 {
		info.State = "Clean"
	} else {
		info.State = "Dirty"
	}

	for c := uint64(0); c < uint64(u.fs.groupCount); c++ {
		u.fs.mu.Lock()
		err := u.cgLoad(c)
		var cg types.UFSCylGroup
		if err == nil {
			cg = *u.cg
		}
		u.fs.mu.Unlock()
		if err != nil {
			return nil, err
		}

		base := u.cgBase(c)
		last := base + u.fpg - 1
		if last > u.fs.lastBlock {
			last = u.fs.lastBlock
		}
		gs := GroupStat{
			Index:      uint32(c),
			FirstInum:  c * u.ipg,
			LastInum:   (c+1)*u.ipg - 1,
			FirstBlock: base,
			LastBlock:  last,
			FreeInodes: cg.Cs.InoFree,
			FreeBlocks: cg.Cs.BlkFree,
			FreeFrags:  cg.Cs.FragFree,
			Dirs:       cg.Cs.Dirs,
		}
		if start := u.cgStart(c); start > base {
			gs.Layout = append(gs.Layout, LayoutRange{"Data Fragments", base, start - 1})
		}
		gs.Layout = append(gs.Layout,
			LayoutRange{"Super Block", u.cgSBlock(c), u.cgTod(c) - 1},
			LayoutRange{"Group Desc", u.cgTod(c), u.cgIMin(c) - 1},
			LayoutRange{"Inode Table", u.cgIMin(c), u.cgDMin(c) - 1})
		if dmin := u.cgDMin(c); dmin <= last {
			gs.Layout = append(gs.Layout, LayoutRange{"Data Fragments", dmin, last})
		}
		gs.Layout = sortedLayout(gs.Layout)
		info.Groups = append(info.Groups, gs)
	}
	return info, nil
}
