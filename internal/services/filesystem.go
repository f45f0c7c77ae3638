package services

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/deploymenttheory/go-unixfs/internal/helpers"
	"github.com/deploymenttheory/go-unixfs/internal/interfaces"
	"github.com/deploymenttheory/go-unixfs/internal/parsers/dirent"
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// OrphanDirName is the name of the virtual directory holding orphan inodes
const OrphanDirName = "$OrphanFiles"

// fsImpl is implemented once per filesystem family. Methods that touch the
// group, bitmap or inode-table caches take the handle lock themselves.
type fsImpl interface {
	// inodeAllocated returns the inode bitmap bit of inum
	inodeAllocated(inum types.Inum) (bool, error)

	// loadInode reads inum from disk and returns its normalized form with
	// the allocation and used flags set
	loadInode(inum types.Inum) (*types.Inode, error)

	// blockFlags classifies a single block or fragment
	blockFlags(addr uint64) (types.BlockFlag, error)

	// buildRuns maps the content of inode to data runs. On failure the runs
	// built so far are returned with the error.
	buildRuns(inode *types.Inode) (runs, indirect []types.DataRun, err error)

	// dirChunkSize is the unit directory content is parsed in
	dirChunkSize() int

	// direntDecoder returns the on-disk directory entry decoder
	direntDecoder() dirent.Decoder

	// direntType maps an entry type byte; FileTypeUndef means the type has
	// to be taken from the inode
	direntType(t uint8) types.FileType

	// statInfo gathers the filesystem summary
	statInfo() (*FsStatInfo, error)

	// reset drops the cached group, bitmap and inode-table blocks. Caller
	// holds fs.mu.
	reset()
}

// OpenOptions configures Open
type OpenOptions struct {
	// FsType restricts detection: "", "auto", "ext", "ufs" or "ufs1b"
	FsType string
	// Logger receives debug events; nil uses the logrus standard logger
	Logger logrus.FieldLogger
}

// FileSystem is an open UFS or ext filesystem. It owns the superblock and
// the single-slot caches; the reader is shared and not closed by Close.
type FileSystem struct {
	reader interfaces.BlockReader
	log    logrus.FieldLogger

	fsType        types.FsType
	endian        binary.ByteOrder
	blockSize     uint32 // allocation unit: the fragment on UFS, the block on ext
	ffsBlockSize  uint32 // UFS block size in bytes; equals blockSize on ext
	fragsPerBlock uint32
	firstBlock    uint64
	lastBlock     uint64
	lastBlockAct  uint64 // last block actually present in the image
	blockCount    uint64
	inumCount     uint64
	firstInum     types.Inum
	lastInum      types.Inum
	rootInum      types.Inum
	groupCount    uint32
	inodesPerGrp  uint32
	journalInum   types.Inum
	nanoTime      bool
	maxLinkLen    int

	// mu guards the caches held by impl and closed
	mu     sync.Mutex
	impl   fsImpl
	closed bool

	orphans    singleflight.Group
	namedMu    sync.Mutex
	namedInums map[types.Inum]struct{}
}

// Open searches reader for a supported filesystem. ext is tried before UFS.
func Open(reader interfaces.BlockReader, opts OpenOptions) (*FileSystem, error) {
	if reader == nil {
		return nil, app.Errorf(app.ErrCodeArg, "nil image reader")
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	fs := &FileSystem{
		reader: reader,
		log:    log,
	}

	var err error
	switch strings.ToLower(opts.FsType) {
	case "", "auto":
		if err = fs.openExt(); err != nil {
			log.WithError(err).Debug("not an ext filesystem")
			if ufsErr := fs.openUFS(false); ufsErr != nil {
				log.WithError(ufsErr).Debug("not a ufs filesystem")
				if app.IsKind(err, app.ErrCodeMagic) {
					err = ufsErr
				}
				return nil, err
			}
			err = nil
		}
	case "ext":
		err = fs.openExt()
	case "ufs":
		err = fs.openUFS(false)
	case "ufs1b":
		err = fs.openUFS(true)
	default:
		return nil, app.Errorf(app.ErrCodeArg, "unknown filesystem type %q", opts.FsType)
	}
	if err != nil {
		return nil, err
	}

	fs.lastBlockAct = fs.lastBlock
	if size := reader.Size(); size >= 0 {
		avail := uint64(size) / uint64(fs.blockSize)
		if avail == 0 {
			fs.lastBlockAct = 0
		} else if avail-1 < fs.lastBlock {
			fs.lastBlockAct = avail - 1
			log.WithFields(logrus.Fields{
				"last_block":     fs.lastBlock,
				"last_block_act": fs.lastBlockAct,
			}).Debug("image is smaller than the filesystem")
		}
	}

	log.WithFields(logrus.Fields{
		"type":       fs.fsType.String(),
		"block_size": fs.blockSize,
		"blocks":     fs.blockCount,
		"inodes":     fs.inumCount,
		"groups":     fs.groupCount,
	}).Debug("opened filesystem")

	return fs, nil
}

// Close releases the caches. The image reader is left open. Later calls
// fail with an ARG error.
func (fs *FileSystem) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.closed = true
	fs.impl.reset()
	return nil
}

// checkOpen fails once Close was called
func (fs *FileSystem) checkOpen() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return app.Errorf(app.ErrCodeArg, "filesystem is closed")
	}
	return nil
}

// readAt reads len(p) bytes at filesystem offset off
func (fs *FileSystem) readAt(p []byte, off uint64) error {
	_, err := fs.reader.ReadAt(p, int64(off))
	return err
}

// FsType returns the variant the filesystem was opened as
func (fs *FileSystem) FsType() types.FsType { return fs.fsType }

// Endian returns the byte order of the on-disk structures
func (fs *FileSystem) Endian() binary.ByteOrder { return fs.endian }

// BlockSize returns the size of the allocation unit (fragment on UFS)
func (fs *FileSystem) BlockSize() uint32 { return fs.blockSize }

// FFSBlockSize returns the UFS block size; on ext it equals BlockSize
func (fs *FileSystem) FFSBlockSize() uint32 { return fs.ffsBlockSize }

// FragsPerBlock returns the number of fragments in a block, 1 on ext
func (fs *FileSystem) FragsPerBlock() uint32 { return fs.fragsPerBlock }

// FirstBlock returns the first valid block address
func (fs *FileSystem) FirstBlock() uint64 { return fs.firstBlock }

// LastBlock returns the last block address of the filesystem
func (fs *FileSystem) LastBlock() uint64 { return fs.lastBlock }

// LastBlockAct returns the last block present in the image
func (fs *FileSystem) LastBlockAct() uint64 { return fs.lastBlockAct }

// BlockCount returns the number of blocks (fragments on UFS)
func (fs *FileSystem) BlockCount() uint64 { return fs.blockCount }

// InumCount returns the number of inodes including the orphan directory
func (fs *FileSystem) InumCount() uint64 { return fs.inumCount }

// FirstInum returns the first valid inode number
func (fs *FileSystem) FirstInum() types.Inum { return fs.firstInum }

// LastInum returns the inode number of the virtual orphan directory
func (fs *FileSystem) LastInum() types.Inum { return fs.lastInum }

// RootInum returns the root directory inode number
func (fs *FileSystem) RootInum() types.Inum { return fs.rootInum }

// GroupCount returns the number of block or cylinder groups
func (fs *FileSystem) GroupCount() uint32 { return fs.groupCount }

// JournalInum returns the journal inode, 0 when there is none
func (fs *FileSystem) JournalInum() types.Inum { return fs.journalInum }

// NanoTime reports whether inode times carry nanoseconds
func (fs *FileSystem) NanoTime() bool { return fs.nanoTime }

// inodeGroup returns the group inum belongs to
func (fs *FileSystem) inodeGroup(inum types.Inum) uint32 {
	if fs.inodesPerGrp == 0 {
		return 0
	}
	return uint32((uint64(inum) - uint64(fs.firstInum)) / uint64(fs.inodesPerGrp))
}

// BlockFlags classifies a single block
func (fs *FileSystem) BlockFlags(addr uint64) (types.BlockFlag, error) {
	if err := fs.checkOpen(); err != nil {
		return 0, err
	}
	if addr > fs.lastBlock {
		return 0, app.Errorf(app.ErrCodeArg, "block %d is beyond the last block %d", addr, fs.lastBlock)
	}
	return fs.impl.blockFlags(addr)
}

// InodeLookup loads and normalizes inum. The orphan directory inum yields
// a synthetic directory.
func (fs *FileSystem) InodeLookup(inum types.Inum) (*types.Inode, error) {
	if err := fs.checkOpen(); err != nil {
		return nil, err
	}
	if inum == fs.lastInum {
		return fs.orphanDirInode(), nil
	}
	if inum < fs.firstInum || inum > fs.lastInum {
		return nil, app.Errorf(app.ErrCodeInodeNum, "inode %d is out of range (%d-%d)", inum, fs.firstInum, fs.lastInum)
	}

	inode, err := fs.impl.loadInode(inum)
	if err != nil {
		return nil, err
	}

	if inode.Type == types.FileTypeSymlink && inode.Link == "" && inode.Size > 0 {
		link, err := fs.readLink(inode)
		if err != nil {
			fs.log.WithError(err).WithField("inum", inum).Debug("failed to read symlink target")
		} else {
			inode.Link = link
		}
	}
	return inode, nil
}

// readLink reads a symlink target stored in data blocks
func (fs *FileSystem) readLink(inode *types.Inode) (string, error) {
	var buf strings.Builder
	err := fs.FileWalk(inode, 0, func(_ uint64, _ uint64, data []byte, _ types.FileBlockFlag) types.WalkResult {
		buf.Write(data)
		if buf.Len() >= fs.maxLinkLen {
			return types.WalkStop
		}
		return types.WalkContinue
	})
	if err != nil {
		return "", err
	}
	link := []byte(buf.String())
	if len(link) > fs.maxLinkLen {
		link = link[:fs.maxLinkLen]
	}
	return helpers.SanitizeLink(link), nil
}

// LoadRuns builds the data runs of inode if they are not loaded yet. For an
// unallocated inode a failed build keeps the partial runs and reports
// RECOVER.
func (fs *FileSystem) LoadRuns(inode *types.Inode) error {
	if inode.RunsLoaded() {
		return nil
	}
	if err := fs.checkOpen(); err != nil {
		return err
	}
	if inode.Content == nil || inode.Resident || inode.Inum == fs.lastInum {
		inode.SetRuns(nil, nil)
		return nil
	}

	runs, indirect, err := fs.impl.buildRuns(inode)
	if err != nil {
		if !inode.Flags.Has(types.MetaFlagAlloc) {
			inode.SetRuns(runs, indirect)
			return app.NewError(app.ErrCodeRecover,
				fmt.Sprintf("partial data runs for unallocated inode %d", inode.Inum), err)
		}
		return err
	}
	inode.SetRuns(runs, indirect)
	return nil
}

// orphanDirInode returns the synthetic orphan directory
func (fs *FileSystem) orphanDirInode() *types.Inode {
	inode := &types.Inode{
		Inum:  fs.lastInum,
		Type:  types.FileTypeDirectory,
		NLink: 1,
		Flags: types.MetaFlagAlloc | types.MetaFlagUsed,
	}
	inode.SetRuns(nil, nil)
	return inode
}

// ReadFile writes the content of inum to w and returns the byte count
func (fs *FileSystem) ReadFile(inum types.Inum, w io.Writer, slack bool) (int64, error) {
	inode, err := fs.InodeLookup(inum)
	if err != nil {
		return 0, err
	}

	var flags types.FileWalkFlag
	if slack {
		flags |= types.FileWalkSlack
	}

	var written int64
	var writeErr error
	err = fs.FileWalk(inode, flags, func(_ uint64, _ uint64, data []byte, _ types.FileBlockFlag) types.WalkResult {
		n, err := w.Write(data)
		written += int64(n)
		if err != nil {
			writeErr = err
			return types.WalkError
		}
		return types.WalkContinue
	})
	if writeErr != nil {
		return written, app.NewError(app.ErrCodeWrite, fmt.Sprintf("failed to write content of inode %d", inum), writeErr)
	}
	return written, err
}
