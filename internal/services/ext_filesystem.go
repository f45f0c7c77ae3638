package services

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-unixfs/internal/helpers"
	"github.com/deploymenttheory/go-unixfs/internal/interfaces"
	"github.com/deploymenttheory/go-unixfs/internal/parsers/dirent"
	"github.com/deploymenttheory/go-unixfs/internal/parsers/ext"
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// extMaxPathLen bounds symlink targets read from data blocks
const extMaxPathLen = 4096

// extFS implements fsImpl for ext2, ext3 and ext4
type extFS struct {
	fs           *FileSystem
	sb           interfaces.ExtSuperblockReader
	endian       binary.ByteOrder
	blockSize    uint64
	gdSize       int
	groupsOffset uint64
	inodeSize    uint32
	bpg          uint64
	ipg          uint64
	firstData    uint64
	gdtBlocks    uint64 // blocks holding the group descriptor table
	itblBlocks   uint64 // blocks of each inode table
	fileType     bool

	// single-slot caches, guarded by fs.mu
	grpNum  int64
	grp     *types.ExtGroupDesc
	bmapNum int64
	bmap    []byte
	imapNum int64
	imap    []byte
}

// openExt reads and validates the ext superblock at offset 1024
func (fs *FileSystem) openExt() error {
	buf := make([]byte, types.ExtSuperblockSize)
	if err := fs.readAt(buf, types.ExtSuperblockOffset); err != nil {
		return app.NewError(app.ErrCodeRead, "failed to read ext superblock", err)
	}

	sb, err := ext.NewSuperblockReader(buf)
	if err != nil {
		return app.NewError(app.ErrCodeMagic, "not an ext filesystem", err)
	}
	raw := sb.Superblock()

	inumCount := uint64(sb.InodeCount()) + 1
	if inumCount < types.ExtMinInumCount {
		return app.Errorf(app.ErrCodeMagic, "ext inode count %d is too small", sb.InodeCount())
	}

	bs := sb.BlockSize()
	if bs == 0 || bs%512 != 0 {
		return app.Errorf(app.ErrCodeMagic, "invalid ext block size (log %d)", raw.LogBlockSize)
	}
	if raw.LogBlockSize != raw.LogFragSize {
		return app.Errorf(app.ErrCodeUnsupFunc, "ext fragment size differs from block size (%d/%d)", raw.LogFragSize, raw.LogBlockSize)
	}
	if sb.BlocksPerGroup() == 0 || sb.InodesPerGroup() == 0 {
		return app.Errorf(app.ErrCodeMagic, "ext blocks or inodes per group is 0")
	}

	blockCount := sb.BlockCount()
	if blockCount == 0 {
		return app.Errorf(app.ErrCodeMagic, "ext block count is 0")
	}
	groups := sb.GroupCount()
	if groups == 0 {
		return app.Errorf(app.ErrCodeMagic, "ext filesystem has no block groups")
	}

	inodeSize := uint32(sb.InodeSize())
	if inodeSize < types.ExtMinInodeSize || inodeSize > bs {
		return app.Errorf(app.ErrCodeMagic, "invalid ext inode size %d", inodeSize)
	}

	e := &extFS{
		fs:           fs,
		sb:           sb,
		endian:       sb.Endian(),
		blockSize:    uint64(bs),
		gdSize:       sb.GroupDescSize(),
		groupsOffset: helpers.RoundUp(types.ExtSuperblockOffset+types.ExtSuperblockSize, uint64(bs)),
		inodeSize:    inodeSize,
		bpg:          uint64(sb.BlocksPerGroup()),
		ipg:          uint64(sb.InodesPerGroup()),
		firstData:    uint64(sb.FirstDataBlock()),
		fileType:     sb.HasIncompat(types.ExtIncompatFiletype),
		grpNum:       -1,
		bmapNum:      -1,
		imapNum:      -1,
	}
	e.gdtBlocks = (uint64(groups)*uint64(e.gdSize) + e.blockSize - 1) / e.blockSize
	e.itblBlocks = (e.ipg*uint64(inodeSize) + e.blockSize - 1) / e.blockSize

	switch {
	case sb.HasIncompat(types.ExtIncompatExtents):
		fs.fsType = types.FsTypeExt4
		fs.nanoTime = true
	case sb.HasCompat(types.ExtCompatHasJournal):
		fs.fsType = types.FsTypeExt3
	default:
		fs.fsType = types.FsTypeExt2
	}

	fs.endian = e.endian
	fs.blockSize = bs
	fs.ffsBlockSize = bs
	fs.fragsPerBlock = 1
	fs.firstBlock = 0
	fs.blockCount = blockCount
	fs.lastBlock = blockCount - 1
	fs.inumCount = inumCount
	fs.firstInum = types.ExtFirstInum
	fs.rootInum = types.ExtRootInum
	fs.lastInum = types.Inum(inumCount)
	fs.groupCount = groups
	fs.inodesPerGrp = sb.InodesPerGroup()
	fs.journalInum = types.Inum(raw.JournalInum)
	fs.maxLinkLen = extMaxPathLen
	fs.impl = e

	fs.log.WithFields(logrus.Fields{
		"variant": fs.fsType.String(),
		"endian":  e.endian.String(),
		"gd_size": e.gdSize,
	}).Debug("ext superblock validated")
	return nil
}

// groupLoad fills the group descriptor cache. Caller holds fs.mu.
func (e *extFS) groupLoad(g uint64) error {
	if g >= uint64(e.fs.groupCount) {
		return app.Errorf(app.ErrCodeArg, "group %d is out of range (%d groups)", g, e.fs.groupCount)
	}
	if e.grpNum == int64(g) {
		return nil
	}

	buf := make([]byte, e.gdSize)
	if err := e.fs.readAt(buf, e.groupsOffset+g*uint64(e.gdSize)); err != nil {
		return app.NewError(app.ErrCodeRead, fmt.Sprintf("failed to read group descriptor %d", g), err)
	}
	gd, err := ext.ParseGroupDesc(buf, e.endian, e.gdSize)
	if err != nil {
		return app.NewError(app.ErrCodeCorrupt, fmt.Sprintf("group descriptor %d", g), err)
	}

	last := e.fs.lastBlock
	if gd.BlockBitmap > last || gd.InodeBitmap > last || gd.InodeTable > last {
		return app.Errorf(app.ErrCodeCorrupt, "group descriptor %d has an address beyond block %d", g, last)
	}

	e.grp = gd
	e.grpNum = int64(g)
	e.fs.log.WithField("group", g).Debug("group descriptor cache miss")
	return nil
}

// blockBitmapLoad fills the block bitmap cache. Caller holds fs.mu.
func (e *extFS) blockBitmapLoad(g uint64) error {
	if e.bmapNum == int64(g) {
		return nil
	}
	if err := e.groupLoad(g); err != nil {
		return err
	}
	buf, err := e.fs.reader.ReadBlock(e.grp.BlockBitmap, uint32(e.blockSize))
	if err != nil {
		return app.NewError(app.ErrCodeRead, fmt.Sprintf("failed to read block bitmap of group %d", g), err)
	}
	e.bmap = buf
	e.bmapNum = int64(g)
	return nil
}

// inodeBitmapLoad fills the inode bitmap cache. Caller holds fs.mu.
func (e *extFS) inodeBitmapLoad(g uint64) error {
	if e.imapNum == int64(g) {
		return nil
	}
	if err := e.groupLoad(g); err != nil {
		return err
	}
	buf, err := e.fs.reader.ReadBlock(e.grp.InodeBitmap, uint32(e.blockSize))
	if err != nil {
		return app.NewError(app.ErrCodeRead, fmt.Sprintf("failed to read inode bitmap of group %d", g), err)
	}
	e.imap = buf
	e.imapNum = int64(g)
	return nil
}

func (e *extFS) reset() {
	e.grpNum, e.grp = -1, nil
	e.bmapNum, e.bmap = -1, nil
	e.imapNum, e.imap = -1, nil
}

func (e *extFS) inodeAllocated(inum types.Inum) (bool, error) {
	e.fs.mu.Lock()
	defer e.fs.mu.Unlock()
	return e.inodeAllocatedLocked(inum)
}

func (e *extFS) inodeAllocatedLocked(inum types.Inum) (bool, error) {
	idx := uint64(inum) - types.ExtFirstInum
	g := idx / e.ipg
	if err := e.inodeBitmapLoad(g); err != nil {
		return false, err
	}
	return helpers.IsBitSet(e.imap, idx-g*e.ipg), nil
}

// uninitialized reports whether inum lies in the never-initialized part of
// its group's inode table. Caller holds fs.mu with the group loaded.
func (e *extFS) uninitialized(inumInGroup uint64) bool {
	if !e.sb.HasROCompat(types.ExtROCompatGdtCsum) && !e.sb.HasROCompat(types.ExtROCompatMetadataCsum) {
		return false
	}
	if e.grp.Flags&types.ExtBgInodeUninit != 0 {
		return true
	}
	return uint64(e.grp.ItableUnused) <= e.ipg && inumInGroup >= e.ipg-uint64(e.grp.ItableUnused)
}

// readInode reads the raw record of inum. Caller holds fs.mu.
func (e *extFS) readInode(inum types.Inum) (*types.ExtInode, error) {
	if inum < e.fs.firstInum || inum > e.fs.lastInum-1 {
		return nil, app.Errorf(app.ErrCodeInodeNum, "inode %d is out of range (%d-%d)", inum, e.fs.firstInum, e.fs.lastInum-1)
	}

	idx := uint64(inum) - types.ExtFirstInum
	g := idx / e.ipg
	if err := e.groupLoad(g); err != nil {
		return nil, err
	}

	inGroup := idx - g*e.ipg
	if e.uninitialized(inGroup) {
		return &types.ExtInode{}, nil
	}

	addr := e.grp.InodeTable*e.blockSize + inGroup*uint64(e.inodeSize)
	buf := make([]byte, e.inodeSize)
	if err := e.fs.readAt(buf, addr); err != nil {
		return nil, app.NewError(app.ErrCodeRead, fmt.Sprintf("failed to read inode %d", inum), err)
	}
	raw, err := ext.ParseInode(buf, e.endian)
	if err != nil {
		return nil, app.NewError(app.ErrCodeInodeCor, fmt.Sprintf("inode %d", inum), err)
	}
	return raw, nil
}

func (e *extFS) loadInode(inum types.Inum) (*types.Inode, error) {
	e.fs.mu.Lock()
	raw, err := e.readInode(inum)
	if err != nil {
		e.fs.mu.Unlock()
		return nil, err
	}
	alloc, err := e.inodeAllocatedLocked(inum)
	e.fs.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return e.copyInode(raw, inum, alloc), nil
}

// copyInode normalizes a raw inode
func (e *extFS) copyInode(raw *types.ExtInode, inum types.Inum, alloc bool) *types.Inode {
	inode := &types.Inode{
		Inum:       inum,
		Type:       types.FileTypeFromMode(raw.Mode),
		Mode:       raw.Mode & types.ModePermMask,
		NLink:      int32(raw.LinksCount),
		Size:       uint64(raw.Size),
		UID:        uint32(raw.UIDLo) | uint32(raw.UIDHi)<<16,
		GID:        uint32(raw.GIDLo) | uint32(raw.GIDHi)<<16,
		ATime:      int64(raw.ATime),
		MTime:      int64(raw.MTime),
		CTime:      int64(raw.CTime),
		DTime:      int64(raw.DTime),
		Generation: raw.Generation,
		FileFlags:  raw.Flags,
	}

	if inode.Type == types.FileTypeRegular &&
		(e.sb.HasROCompat(types.ExtROCompatLargeFile) || e.fs.fsType == types.FsTypeExt4) {
		inode.Size = helpers.U64(raw.Size, raw.SizeHigh)
	}

	if e.fs.nanoTime && e.inodeSize > types.ExtMinInodeSize {
		inode.ATime = ext.ExtraEpoch(raw.ATime, raw.ATimeExtra)
		inode.ATimeNano = ext.ExtraNano(raw.ATimeExtra)
		inode.MTime = ext.ExtraEpoch(raw.MTime, raw.MTimeExtra)
		inode.MTimeNano = ext.ExtraNano(raw.MTimeExtra)
		inode.CTime = ext.ExtraEpoch(raw.CTime, raw.CTimeExtra)
		inode.CTimeNano = ext.ExtraNano(raw.CTimeExtra)
		inode.CrTime = ext.ExtraEpoch(raw.CrTime, raw.CrTimeExtra)
		inode.CrTimeNano = ext.ExtraNano(raw.CrTimeExtra)
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

	switch {
	case inode.Type == types.FileTypeSymlink && inode.Size < types.ExtInodeBlockArea &&
		raw.Flags&types.ExtInodeFlagExtents == 0:
		inode.Link = helpers.SanitizeLink(raw.Block[:inode.Size])
		inode.Resident = true
		inode.Content = &types.PointerList{}
	case raw.Flags&types.ExtInodeFlagExtents != 0:
		inode.Content = &types.ExtentRoot{Raw: raw.Block}
	default:
		pl := &types.PointerList{}
		for i := range pl.Direct {
			pl.Direct[i] = uint64(e.endian.Uint32(raw.Block[i*4 : i*4+4]))
		}
		for i := range pl.Indirect {
			off := (types.NumDirectPointers + i) * 4
			pl.Indirect[i] = uint64(e.endian.Uint32(raw.Block[off : off+4]))
		}
		inode.Content = pl
	}

	return inode
}

func (e *extFS) buildRuns(inode *types.Inode) ([]types.DataRun, []types.DataRun, error) {
	b := newRunBuilder(e.fs, inode, 4)
	var err error
	switch c := inode.Content.(type) {
	case *types.ExtentRoot:
		err = b.buildExtents(c)
	case *types.PointerList:
		err = b.buildPointerList(c)
	default:
		err = app.Errorf(app.ErrCodeInodeCor, "inode %d has no content", inode.Inum)
	}
	return b.runs, b.indirect, err
}

func (e *extFS) blockFlags(addr uint64) (types.BlockFlag, error) {
	if addr == 0 {
		return types.BlockFlagAlloc | types.BlockFlagCont, nil
	}
	if addr < e.firstData {
		return types.BlockFlagAlloc | types.BlockFlagMeta, nil
	}

	e.fs.mu.Lock()
	defer e.fs.mu.Unlock()

	g := (addr - e.firstData) / e.bpg
	if err := e.blockBitmapLoad(g); err != nil {
		return 0, err
	}

	var flags types.BlockFlag
	if helpers.IsBitSet(e.bmap, addr-e.firstData-g*e.bpg) {
		flags = types.BlockFlagAlloc
	} else {
		flags = types.BlockFlagUnalloc
	}

	// blockBitmapLoad leaves group g in the descriptor cache
	if err := e.groupLoad(g); err != nil {
		return 0, err
	}
	if e.isMeta(g, addr) {
		return flags | types.BlockFlagMeta, nil
	}
	return flags | types.BlockFlagCont, nil
}

// isMeta reports whether addr holds a superblock or descriptor backup,
// a bitmap or part of the inode table of group g. Caller holds fs.mu with
// g loaded.
func (e *extFS) isMeta(g, addr uint64) bool {
	base := g*e.bpg + e.firstData
	if ext.GroupHasSuper(uint32(g), e.sb.HasROCompat(types.ExtROCompatSparseSuper)) {
		reserved := uint64(e.sb.Superblock().ReservedGdtBlock)
		if addr >= base && addr < base+1+e.gdtBlocks+reserved {
			return true
		}
	}
	if addr == e.grp.BlockBitmap || addr == e.grp.InodeBitmap {
		return true
	}
	return addr >= e.grp.InodeTable && addr < e.grp.InodeTable+e.itblBlocks
}

func (e *extFS) dirChunkSize() int {
	return int(e.blockSize)
}

func (e *extFS) direntDecoder() dirent.Decoder {
	return ext.DirentDecoder(e.endian, e.fileType)
}

func (e *extFS) direntType(t uint8) types.FileType {
	if !e.fileType {
		return types.FileTypeUndef
	}
	return types.ExtDirentFileType(t)
}

var extStateNames = map[uint32]string{
	0x0001: "Unmounted properly",
	0x0002: "Errors detected",
	0x0004: "Orphans being recovered",
}

func (e *extFS) statInfo() (*FsStatInfo, error) {
	raw := e.sb.Superblock()
	info := &FsStatInfo{
		VolumeName:       e.sb.VolumeName(),
		LastMounted:      e.sb.LastMounted(),
		LastWritten:      unixTime(int64(raw.WTime)),
		LastMount:        unixTime(int64(raw.MTime)),
		LastCheck:        unixTime(int64(raw.LastCheck)),
		Created:          unixTime(int64(raw.MkfsTime)),
		CompatFeatures:   featureNames(raw.FeatureCompat, types.ExtCompatNames),
		IncompatFeatures: featureNames(raw.FeatureIncompat, types.ExtIncompatNames),
		ROCompatFeatures: featureNames(raw.FeatureROCompat, types.ExtROCompatNames),
		JournalInum:      uint64(raw.JournalInum),
		InodeSize:        e.inodeSize,
		FreeInodes:       uint64(raw.FreeInodesCount),
		BlockSize:        uint32(e.blockSize),
		FreeBlocks:       e.sb.FreeBlockCount(),
		BlocksPerGroup:   uint32(e.bpg),
	}
	if id := e.sb.UUID(); id != (types.UUID{}) {
		if u, err := uuid.FromBytes(id[:]); err == nil {
			info.VolumeID = u.String()
		}
	}
	if states := featureNames(uint32(raw.State), extStateNames); len(states) > 0 {
		info.State = strings.Join(states, ", ")
	}

	sparse := e.sb.HasROCompat(types.ExtROCompatSparseSuper)
	reserved := uint64(raw.ReservedGdtBlock)
	for g := uint64(0); g < uint64(e.fs.groupCount); g++ {
		e.fs.mu.Lock()
		err := e.groupLoad(g)
		var gd types.ExtGroupDesc
		if err == nil {
			gd = *e.grp
		}
		e.fs.mu.Unlock()
		if err != nil {
			return nil, err
		}

		base := g*e.bpg + e.firstData
		last := base + e.bpg - 1
		if last > e.fs.lastBlock {
			last = e.fs.lastBlock
		}
		gs := GroupStat{
			Index:      uint32(g),
			FirstInum:  g*e.ipg + types.ExtFirstInum,
			LastInum:   (g + 1) * e.ipg,
			FirstBlock: base,
			LastBlock:  last,
			FreeInodes: uint64(gd.FreeInodesCount),
			FreeBlocks: uint64(gd.FreeBlocksCount),
			Dirs:       uint64(gd.UsedDirsCount),
			Flags:      extGroupFlags(gd.Flags),
		}
		if ext.GroupHasSuper(uint32(g), sparse) {
			gs.Layout = append(gs.Layout,
				LayoutRange{"Super Block", base, base},
				LayoutRange{"Group Descriptor Table", base + 1, base + e.gdtBlocks})
			if reserved > 0 {
				gs.Layout = append(gs.Layout, LayoutRange{"Reserved GDT Blocks", base + 1 + e.gdtBlocks, base + e.gdtBlocks + reserved})
			}
		}
		gs.Layout = append(gs.Layout,
			LayoutRange{"Data Bitmap", gd.BlockBitmap, gd.BlockBitmap},
			LayoutRange{"Inode Bitmap", gd.InodeBitmap, gd.InodeBitmap},
			LayoutRange{"Inode Table", gd.InodeTable, gd.InodeTable + e.itblBlocks - 1})
		gs.Layout = sortedLayout(gs.Layout)
		info.Groups = append(info.Groups, gs)
	}
	return info, nil
}

func extGroupFlags(flags uint16) []string {
	var out []string
	if flags&types.ExtBgInodeUninit != 0 {
		out = append(out, "INODE_UNINIT")
	}
	if flags&types.ExtBgBlockUninit != 0 {
		out = append(out, "BLOCK_UNINIT")
	}
	if flags&types.ExtBgInodeZeroed != 0 {
		out = append(out, "INODE_ZEROED")
	}
	return out
}
