package services

import (
	"bytes"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-unixfs/internal/interfaces"
	"github.com/deploymenttheory/go-unixfs/internal/parsers/journal"
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// Journal is an ext3/ext4 journal loaded into memory
type Journal struct {
	fs        *FileSystem
	log       logrus.FieldLogger
	inum      types.Inum
	sbr       interfaces.JournalSuperblockReader
	data      []byte
	blockSize uint64
	lastBlock uint64
}

// OpenJournal loads the journal stored in inum. inum 0 selects the journal
// named by the superblock.
func (fs *FileSystem) OpenJournal(inum types.Inum) (*Journal, error) {
	if fs.fsType.IsUFS() {
		return nil, app.Errorf(app.ErrCodeUnsupFunc, "%s has no journal", fs.fsType)
	}
	if inum == 0 {
		inum = fs.journalInum
	}
	if inum == 0 {
		return nil, app.Errorf(app.ErrCodeArg, "filesystem has no journal inode")
	}
	if fs.blockSize < types.JournalMinBlock {
		return nil, app.Errorf(app.ErrCodeUnsupFunc, "journal on %d byte blocks", fs.blockSize)
	}

	var buf bytes.Buffer
	if _, err := fs.ReadFile(inum, &buf, false); err != nil {
		return nil, err
	}
	data := buf.Bytes()
	if len(data) < int(fs.blockSize) {
		return nil, app.Errorf(app.ErrCodeMagic, "journal inode %d is smaller than one block", inum)
	}

	sbr, err := journal.NewSuperblockReader(data[:fs.blockSize])
	if err != nil {
		return nil, app.NewError(app.ErrCodeMagic, fmt.Sprintf("journal inode %d", inum), err)
	}

	bs := uint64(sbr.BlockSize())
	if bs < types.JournalMinBlock || bs > uint64(len(data)) {
		return nil, app.Errorf(app.ErrCodeCorrupt, "invalid journal block size %d", bs)
	}

	j := &Journal{
		fs:        fs,
		log:       fs.log.WithField("journal", inum),
		inum:      inum,
		sbr:       sbr,
		data:      data,
		blockSize: bs,
		lastBlock: uint64(sbr.LastBlock()),
	}
	if have := uint64(len(data))/bs - 1; have < j.lastBlock {
		j.log.WithFields(logrus.Fields{"last_block": j.lastBlock, "present": have}).Debug("journal file is shorter than its superblock says")
		j.lastBlock = have
	}

	j.log.WithFields(logrus.Fields{
		"version":    sbr.Version(),
		"block_size": bs,
		"first":      sbr.FirstBlock(),
		"last":       j.lastBlock,
		"start":      sbr.StartBlock(),
		"start_seq":  sbr.StartSequence(),
	}).Debug("opened journal")
	return j, nil
}

// Inum returns the journal inode number
func (j *Journal) Inum() types.Inum { return j.inum }

// Superblock returns the journal superblock
func (j *Journal) Superblock() *types.JournalSuperblock { return j.sbr.Superblock() }

// Version returns 1 or 2
func (j *Journal) Version() int { return j.sbr.Version() }

// BlockSize returns the journal block size
func (j *Journal) BlockSize() uint64 { return j.blockSize }

// FirstBlock returns the first log block
func (j *Journal) FirstBlock() uint64 { return uint64(j.sbr.FirstBlock()) }

// LastBlock returns the last journal block present
func (j *Journal) LastBlock() uint64 { return j.lastBlock }

// StartBlock returns the block the log starts at, 0 for a clean journal
func (j *Journal) StartBlock() uint64 { return uint64(j.sbr.StartBlock()) }

// StartSequence returns the sequence of the first transaction to replay
func (j *Journal) StartSequence() uint32 { return j.sbr.StartSequence() }

func (j *Journal) block(n uint64) []byte {
	return j.data[n*j.blockSize : (n+1)*j.blockSize]
}

// allocated reports whether journal block n at sequence seq belongs to
// the live log. A clean journal (start 0) falls back to the sequence test.
func (j *Journal) allocated(n uint64, seq uint32) bool {
	return !(n < j.StartBlock() || seq < j.StartSequence())
}

// EntryWalk classifies journal blocks start through end. Data entries
// carry the filesystem block their descriptor tag names.
func (j *Journal) EntryWalk(start, end uint64, visit interfaces.JournalEntryVisitor) error {
	if visit == nil {
		return app.Errorf(app.ErrCodeArg, "journal walk needs a visitor")
	}
	if start > end || end > j.lastBlock {
		return app.Errorf(app.ErrCodeWalkRange, "journal walk range %d-%d is outside 0-%d", start, end, j.lastBlock)
	}

	incompat := j.Superblock().FeatureIncompat
	var pending []types.JournalTag
	var seq uint32

	for n := uint64(0); n <= end; n++ {
		entry := &types.JournalEntry{JBlock: n}
		blk := j.block(n)

		if n == 0 {
			entry.Kind = types.JournalEntrySuperblock
			entry.Allocated = true
			entry.Sequence = j.StartSequence()
			entry.Superblock = j.Superblock()
		} else if hdr, ok := journal.ParseHeader(blk); ok {
			pending = nil
			entry.Sequence = hdr.Sequence
			entry.Allocated = j.allocated(n, hdr.Sequence)

			switch hdr.BlockType {
			case types.JournalBlockDescriptor:
				entry.Kind = types.JournalEntryDescriptor
				pending = journal.ParseTags(blk, incompat)
				seq = hdr.Sequence
			case types.JournalBlockCommit:
				entry.Kind = types.JournalEntryCommit
				if c, err := journal.ParseCommit(blk); err == nil {
					entry.Commit = c
				}
			case types.JournalBlockRevoke:
				entry.Kind = types.JournalEntryRevoke
				if r, err := journal.ParseRevoke(blk, incompat); err == nil {
					entry.Revoke = r
				}
			case types.JournalBlockSuperblockV1, types.JournalBlockSuperblockV2:
				entry.Kind = types.JournalEntrySuperblock
				if sb, err := journal.ParseSuperblock(blk); err == nil {
					entry.Superblock = sb
				}
			default:
				entry.Kind = types.JournalEntryUnknown
			}
		} else if len(pending) > 0 {
			tag := pending[0]
			pending = pending[1:]
			entry.Kind = types.JournalEntryData
			entry.Sequence = seq
			entry.FsBlock = tag.Block
			entry.TagFlags = tag.Flags
			entry.Allocated = j.allocated(n, seq)
		} else {
			entry.Kind = types.JournalEntryUnknown
		}

		if n < start {
			continue
		}
		switch visit(entry) {
		case types.WalkStop:
			return nil
		case types.WalkError:
			return app.Errorf(app.ErrCodeFileWalk, "journal walk aborted by visitor at block %d", n)
		}
	}
	return nil
}

// ReadBlock returns the content of journal block n. A filesystem block
// image whose descriptor tag is escaped gets its journal magic restored.
func (j *Journal) ReadBlock(n uint64) ([]byte, error) {
	if n > j.lastBlock {
		return nil, app.Errorf(app.ErrCodeWalkRange, "journal block %d is beyond %d", n, j.lastBlock)
	}
	out := append([]byte(nil), j.block(n)...)
	if _, ok := journal.ParseHeader(out); ok || n == 0 {
		return out, nil
	}

	// find the descriptor this block belongs to
	for d := n - 1; d > 0; d-- {
		hdr, ok := journal.ParseHeader(j.block(d))
		if !ok {
			continue
		}
		if hdr.BlockType != types.JournalBlockDescriptor {
			break
		}
		tags := journal.ParseTags(j.block(d), j.Superblock().FeatureIncompat)
		idx := n - d - 1
		if idx < uint64(len(tags)) && tags[idx].Flags&types.JournalTagEscape != 0 {
			copy(out, types.JournalMagicBytes[:])
			j.log.WithFields(logrus.Fields{"block": n, "descriptor": d}).Debug("restored escaped journal magic")
		}
		break
	}
	return out, nil
}

// WriteBlock writes the content of journal block n to w
func (j *Journal) WriteBlock(w io.Writer, n uint64) error {
	data, err := j.ReadBlock(n)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return app.NewError(app.ErrCodeWrite, fmt.Sprintf("failed to write journal block %d", n), err)
	}
	return nil
}
