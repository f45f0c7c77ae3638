package services

import (
	"fmt"

	"github.com/deploymenttheory/go-unixfs/internal/types"
)

const namedSetKey = "named"

// namedSet returns every inode number some directory entry points at,
// live or deleted. The tree is walked once per handle; concurrent first
// callers share the walk.
func (fs *FileSystem) namedSet() (map[types.Inum]struct{}, error) {
	fs.namedMu.Lock()
	set := fs.namedInums
	fs.namedMu.Unlock()
	if set != nil {
		return set, nil
	}

	v, err, _ := fs.orphans.Do(namedSetKey, func() (interface{}, error) {
		named := map[types.Inum]struct{}{fs.rootInum: {}}
		err := fs.DirWalk(fs.rootInum, true, func(e *types.DirEntry) types.WalkResult {
			if e.Inum != 0 {
				named[e.Inum] = struct{}{}
			}
			return types.WalkContinue
		})
		if err != nil {
			return nil, err
		}

		fs.namedMu.Lock()
		fs.namedInums = named
		fs.namedMu.Unlock()
		fs.log.WithField("named", len(named)).Debug("built named inode set")
		return named, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[types.Inum]struct{}), nil
}

// orphanEntries lists unallocated, used inodes that no name points at
func (fs *FileSystem) orphanEntries() ([]types.DirEntry, error) {
	var entries []types.DirEntry
	err := fs.InodeWalk(fs.firstInum, fs.lastInum-1, types.InodeWalkOrphan, func(inode *types.Inode) types.WalkResult {
		entries = append(entries, types.DirEntry{
			Inum:  inode.Inum,
			Name:  fmt.Sprintf("OrphanFile-%d", inode.Inum),
			Type:  inode.Type,
			Flags: types.NameFlagUnalloc,
		})
		return types.WalkContinue
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
