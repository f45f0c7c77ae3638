package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/deploymenttheory/go-unixfs/internal/services"
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// filesystemService implements the FilesystemService interface
type filesystemService struct {
	images ImageService
}

// NewFilesystemService creates a new filesystem service instance
func NewFilesystemService(images ImageService) FilesystemService {
	return &filesystemService{images: images}
}

func (fss *filesystemService) open(ctx context.Context, target app.ImageTarget) (*services.FileSystem, error) {
	h, err := fss.images.Open(ctx, target)
	if err != nil {
		return nil, err
	}
	return h.FS, nil
}

// Stat returns the structured filesystem summary
func (fss *filesystemService) Stat(ctx context.Context, target app.ImageTarget) (*FsStatInfo, error) {
	fs, err := fss.open(ctx, target)
	if err != nil {
		return nil, err
	}
	return fs.StatInfo()
}

// WriteFsStat writes the filesystem report to w
func (fss *filesystemService) WriteFsStat(ctx context.Context, target app.ImageTarget, w io.Writer) error {
	fs, err := fss.open(ctx, target)
	if err != nil {
		return err
	}
	return fs.FsStat(w)
}

// WriteIStat writes the inode report to w. skew is subtracted from every
// inode time in an extra adjusted section.
func (fss *filesystemService) WriteIStat(ctx context.Context, target app.ImageTarget, inum uint64, numAddr int, skew time.Duration, w io.Writer) error {
	fs, err := fss.open(ctx, target)
	if err != nil {
		return err
	}
	return fs.IStat(w, types.Inum(inum), numAddr, int64(skew/time.Second))
}

// ListFiles lists the names of a directory, descending into subdirectories
// when asked
func (fss *filesystemService) ListFiles(ctx context.Context, target app.ImageTarget, opts ListOptions) ([]FileEntry, error) {
	if opts.DeletedOnly && opts.AllocatedOnly {
		return nil, app.NewError(app.ErrCodeArg, "deleted-only and allocated-only are exclusive", nil)
	}
	fs, err := fss.open(ctx, target)
	if err != nil {
		return nil, err
	}

	inum := types.Inum(opts.Inum)
	prefix := "/"
	switch {
	case opts.Path != "":
		if inum, err = fs.Lookup(opts.Path); err != nil {
			return nil, err
		}
		prefix = cleanDir(opts.Path)
	case inum == 0:
		inum = fs.RootInum()
	}

	entries := []FileEntry{}
	err = fs.DirWalk(inum, opts.Recursive, func(e *types.DirEntry) types.WalkResult {
		if ctx.Err() != nil {
			return types.WalkStop
		}
		deleted := !e.IsAllocated()
		if (opts.DeletedOnly && !deleted) || (opts.AllocatedOnly && deleted) {
			return types.WalkContinue
		}
		entries = append(entries, fileEntry(fs, e, prefix))
		return types.WalkContinue
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// cleanDir turns a directory path into the prefix of its entries
func cleanDir(p string) string {
	p = path.Clean("/" + p)
	if p == "/" {
		return p
	}
	return p + "/"
}

// fileEntry converts a directory entry, filling size and times from its
// inode when the inode can be read
func fileEntry(fs *services.FileSystem, e *types.DirEntry, prefix string) FileEntry {
	dir := e.Path
	if dir == "" {
		dir = "/"
	}
	if prefix != "/" {
		dir = prefix + dir[1:]
	}
	fe := FileEntry{
		Inum:    uint64(e.Inum),
		Name:    e.Name,
		Path:    dir + e.Name,
		Type:    e.Type.Char(),
		Deleted: !e.IsAllocated(),
	}
	inode, err := fs.InodeLookup(e.Inum)
	if err != nil {
		return fe
	}
	fe.Size = inode.Size
	fe.Mode = inode.ModeString()
	fe.Modified = time.Unix(inode.MTime, int64(inode.MTimeNano)).UTC()
	if e.Type == types.FileTypeUndef {
		fe.Type = inode.Type.Char()
	}
	return fe
}

// walkRange resolves zero bounds to the full range [first, last]
func walkRange(rng RangeOptions, first, last uint64) (uint64, uint64) {
	start, end := rng.Start, rng.End
	if start == 0 {
		start = first
	}
	if end == 0 {
		end = last
	}
	return start, end
}

// ListInodes lists the inodes of a range that pass flags
func (fss *filesystemService) ListInodes(ctx context.Context, target app.ImageTarget, rng RangeOptions, flags types.InodeWalkFlag) ([]InodeInfo, error) {
	fs, err := fss.open(ctx, target)
	if err != nil {
		return nil, err
	}
	start, end := walkRange(rng, uint64(fs.FirstInum()), uint64(fs.LastInum()))

	infos := []InodeInfo{}
	err = fs.InodeWalk(types.Inum(start), types.Inum(end), flags, func(inode *types.Inode) types.WalkResult {
		if ctx.Err() != nil {
			return types.WalkStop
		}
		infos = append(infos, inodeInfo(inode))
		return types.WalkContinue
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

func inodeInfo(inode *types.Inode) InodeInfo {
	info := InodeInfo{
		Inum:      uint64(inode.Inum),
		Type:      inode.Type.Char(),
		Mode:      inode.ModeString(),
		Allocated: inode.Flags.Has(types.MetaFlagAlloc),
		Used:      inode.Flags.Has(types.MetaFlagUsed),
		Orphan:    inode.Flags.Has(types.MetaFlagOrphan),
		UID:       inode.UID,
		GID:       inode.GID,
		NLink:     inode.NLink,
		Size:      inode.Size,
		Modified:  time.Unix(inode.MTime, int64(inode.MTimeNano)).UTC(),
		Accessed:  time.Unix(inode.ATime, int64(inode.ATimeNano)).UTC(),
		Changed:   time.Unix(inode.CTime, int64(inode.CTimeNano)).UTC(),
	}
	if inode.DTime != 0 {
		info.Deleted = time.Unix(inode.DTime, 0).UTC()
	}
	return info
}

// BlockFlagString renders block flags as a/u followed by m/c
func BlockFlagString(f types.BlockFlag) string {
	s := "u"
	if f.Has(types.BlockFlagAlloc) {
		s = "a"
	}
	switch {
	case f.Has(types.BlockFlagMeta):
		s += "m"
	case f.Has(types.BlockFlagCont):
		s += "c"
	}
	return s
}

func blockInfo(addr uint64, f types.BlockFlag) BlockInfo {
	return BlockInfo{
		Addr:      addr,
		Allocated: f.Has(types.BlockFlagAlloc),
		Meta:      f.Has(types.BlockFlagMeta),
		Flags:     BlockFlagString(f),
	}
}

// ListBlocks lists the addresses of a range that pass flags without reading
// their content
func (fss *filesystemService) ListBlocks(ctx context.Context, target app.ImageTarget, rng RangeOptions, flags types.BlockWalkFlag) ([]BlockInfo, error) {
	fs, err := fss.open(ctx, target)
	if err != nil {
		return nil, err
	}
	start, end := walkRange(rng, fs.FirstBlock(), fs.LastBlock())

	blocks := []BlockInfo{}
	err = fs.BlockWalk(start, end, flags|types.BlockWalkAOnly, func(b *types.Block) types.WalkResult {
		if ctx.Err() != nil {
			return types.WalkStop
		}
		blocks = append(blocks, blockInfo(b.Addr, b.Flags))
		return types.WalkContinue
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// WriteBlocks copies the content of every block that passes flags to w and
// returns the number of blocks written
func (fss *filesystemService) WriteBlocks(ctx context.Context, target app.ImageTarget, rng RangeOptions, flags types.BlockWalkFlag, w io.Writer) (uint64, error) {
	fs, err := fss.open(ctx, target)
	if err != nil {
		return 0, err
	}
	start, end := walkRange(rng, fs.FirstBlock(), fs.LastBlock())

	var count uint64
	var werr error
	err = fs.BlockWalk(start, end, flags&^types.BlockWalkAOnly, func(b *types.Block) types.WalkResult {
		if ctx.Err() != nil {
			return types.WalkStop
		}
		if _, werr = w.Write(b.Data); werr != nil {
			return types.WalkStop
		}
		count++
		return types.WalkContinue
	})
	if err != nil {
		return count, err
	}
	if werr != nil {
		return count, app.NewError(app.ErrCodeWrite, "failed to write block content", werr)
	}
	return count, ctx.Err()
}

// BlockStat reports the flags of one block and the first inode that maps it
func (fss *filesystemService) BlockStat(ctx context.Context, target app.ImageTarget, addr uint64) (*BlockInfo, error) {
	fs, err := fss.open(ctx, target)
	if err != nil {
		return nil, err
	}
	f, err := fs.BlockFlags(addr)
	if err != nil {
		return nil, err
	}
	info := blockInfo(addr, f)

	owner, found, err := fs.FindBlockOwner(addr)
	if err != nil {
		return nil, err
	}
	if found {
		info.Owner = uint64(owner.Inum)
		info.Indirect = owner.Indirect
		info.Offset = owner.Offset
	}
	return &info, nil
}

// ReadFile copies the content of inode inum to w
func (fss *filesystemService) ReadFile(ctx context.Context, target app.ImageTarget, inum uint64, slack bool, w io.Writer) (int64, error) {
	fs, err := fss.open(ctx, target)
	if err != nil {
		return 0, err
	}
	return fs.ReadFile(types.Inum(inum), w, slack)
}

// LookupPath resolves an absolute path to its inode number
func (fss *filesystemService) LookupPath(ctx context.Context, target app.ImageTarget, path string) (uint64, error) {
	fs, err := fss.open(ctx, target)
	if err != nil {
		return 0, err
	}
	inum, err := fs.Lookup(path)
	if err != nil {
		return 0, fmt.Errorf("lookup %s: %w", path, err)
	}
	return uint64(inum), nil
}
