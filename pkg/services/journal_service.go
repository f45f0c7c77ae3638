package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-unixfs/internal/parsers/journal"
	"github.com/deploymenttheory/go-unixfs/internal/services"
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// journalService implements the JournalService interface
type journalService struct {
	images ImageService
}

// NewJournalService creates a new journal service instance
func NewJournalService(images ImageService) JournalService {
	return &journalService{images: images}
}

// openJournal opens the journal of target. inum 0 selects the journal named
// by the superblock.
func (js *journalService) openJournal(ctx context.Context, target app.ImageTarget, inum uint64) (*services.Journal, error) {
	h, err := js.images.Open(ctx, target)
	if err != nil {
		return nil, err
	}
	return h.FS.OpenJournal(types.Inum(inum))
}

// Summary returns the journal superblock fields
func (js *journalService) Summary(ctx context.Context, target app.ImageTarget, inum uint64) (*JournalSummary, error) {
	j, err := js.openJournal(ctx, target, inum)
	if err != nil {
		return nil, err
	}
	sb := j.Superblock()
	return &JournalSummary{
		Inum:          uint64(j.Inum()),
		Version:       j.Version(),
		BlockSize:     j.BlockSize(),
		FirstBlock:    j.FirstBlock(),
		LastBlock:     j.LastBlock(),
		StartBlock:    j.StartBlock(),
		StartSequence: j.StartSequence(),
		UUID:          uuid.UUID(sb.UUID).String(),
		Features:      journal.FeatureNames(sb),
		ChecksumType:  journal.ChecksumName(sb.ChecksumType),
	}, nil
}

// ListEntries classifies every block of the journal
func (js *journalService) ListEntries(ctx context.Context, target app.ImageTarget, inum uint64) ([]JournalRecord, error) {
	j, err := js.openJournal(ctx, target, inum)
	if err != nil {
		return nil, err
	}

	records := []JournalRecord{}
	err = j.EntryWalk(0, j.LastBlock(), func(e *types.JournalEntry) types.WalkResult {
		if ctx.Err() != nil {
			return types.WalkStop
		}
		rec := JournalRecord{
			JBlock:    e.JBlock,
			Kind:      e.Kind.String(),
			Sequence:  e.Sequence,
			Allocated: e.Allocated,
			FsBlock:   e.FsBlock,
			Escaped:   e.TagFlags&types.JournalTagEscape != 0,
		}
		if e.Revoke != nil {
			rec.Revoked = len(e.Revoke.Blocks)
		}
		if c := e.Commit; c != nil {
			if c.CommitSec != 0 {
				ts := time.Unix(int64(c.CommitSec), int64(c.CommitNsec)).UTC()
				rec.CommitTime = &ts
			}
			if rec.ChecksumType = journal.ChecksumName(c.ChecksumType); rec.ChecksumType != "" {
				rec.Checksum = c.Checksum
			}
		}
		if e.Superblock != nil {
			rec.Features = journal.FeatureNames(e.Superblock)
		}
		records = append(records, rec)
		return types.WalkContinue
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// WriteBlock writes journal block n to w with an escaped magic restored
func (js *journalService) WriteBlock(ctx context.Context, target app.ImageTarget, inum, block uint64, w io.Writer) error {
	j, err := js.openJournal(ctx, target, inum)
	if err != nil {
		return err
	}
	return j.WriteBlock(w, block)
}
