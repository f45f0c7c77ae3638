package services

import (
	"bytes"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-unixfs/internal/interfaces"
	"github.com/deploymenttheory/go-unixfs/internal/parsers/dirent"
	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// Directory is an opened directory and the names it holds
type Directory struct {
	Inode   *types.Inode
	Entries []types.DirEntry
}

type nameKey struct {
	name string
	inum types.Inum
}

// DirOpen parses the directory inum, including the residue of deleted
// entries. The root gains the $OrphanFiles entry; LastInum lists the
// orphan inodes.
func (fs *FileSystem) DirOpen(inum types.Inum) (*Directory, error) {
	if err := fs.checkOpen(); err != nil {
		return nil, err
	}
	if inum < fs.firstInum || inum > fs.lastInum {
		return nil, app.Errorf(app.ErrCodeWalkRange, "directory inode %d is outside %d-%d", inum, fs.firstInum, fs.lastInum)
	}

	if inum == fs.lastInum {
		entries, err := fs.orphanEntries()
		if err != nil {
			return nil, err
		}
		return &Directory{Inode: fs.orphanDirInode(), Entries: entries}, nil
	}

	inode, err := fs.InodeLookup(inum)
	if err != nil {
		return nil, err
	}
	if inode.Type != types.FileTypeDirectory {
		return nil, app.Errorf(app.ErrCodeArg, "inode %d is not a directory (%s)", inum, inode.Type)
	}
	deleted := !inode.Flags.Has(types.MetaFlagAlloc)

	var content bytes.Buffer
	err = fs.FileWalk(inode, types.FileWalkSlack, func(_ uint64, _ uint64, buf []byte, _ types.FileBlockFlag) types.WalkResult {
		content.Write(buf)
		return types.WalkContinue
	})
	if err != nil {
		if !app.IsKind(err, app.ErrCodeRecover) {
			return nil, err
		}
		fs.log.WithError(err).WithField("inum", inum).Debug("parsing recovered directory content")
	}

	dir := &Directory{Inode: inode}
	index := make(map[nameKey]int)
	decode := fs.impl.direntDecoder()
	chunk := fs.impl.dirChunkSize()
	data := content.Bytes()

	for off := 0; off < len(data); off += chunk {
		endOff := off + chunk
		if endOff > len(data) {
			endOff = len(data)
		}
		for _, e := range dirent.Parse(data[off:endOff], uint64(fs.lastInum), deleted, decode) {
			entry := types.DirEntry{
				Inum: types.Inum(e.Inum),
				Name: e.Name,
				Type: fs.impl.direntType(e.Type),
			}
			if e.Allocated {
				entry.Flags = types.NameFlagAlloc
			} else {
				entry.Flags = types.NameFlagUnalloc
			}
			if entry.Type == types.FileTypeUndef && entry.Inum != 0 {
				entry.Type = fs.inodeType(entry.Inum)
			}

			key := nameKey{entry.Name, entry.Inum}
			if i, ok := index[key]; ok {
				// keep one entry per name, the live one if there is one
				if entry.IsAllocated() && !dir.Entries[i].IsAllocated() {
					dir.Entries[i] = entry
				}
				continue
			}
			index[key] = len(dir.Entries)
			dir.Entries = append(dir.Entries, entry)
		}
	}

	if inum == fs.rootInum {
		dir.Entries = append(dir.Entries, types.DirEntry{
			Inum:  fs.lastInum,
			Name:  OrphanDirName,
			Type:  types.FileTypeDirectory,
			Flags: types.NameFlagAlloc,
		})
	}

	fs.log.WithFields(logrus.Fields{"inum": inum, "entries": len(dir.Entries)}).Debug("opened directory")
	return dir, nil
}

// inodeType returns the type of inum, FileTypeUndef when it cannot be read
func (fs *FileSystem) inodeType(inum types.Inum) types.FileType {
	if inum < fs.firstInum || inum >= fs.lastInum {
		return types.FileTypeUndef
	}
	inode, err := fs.impl.loadInode(inum)
	if err != nil {
		return types.FileTypeUndef
	}
	return inode.Type
}

// DirWalk visits the entries of directory inum, skipping "." and "..".
// With recurse set it descends into subdirectories, deleted ones included,
// visiting each directory inode once. Entry.Path holds the parent path.
func (fs *FileSystem) DirWalk(inum types.Inum, recurse bool, visit interfaces.DirEntryVisitor) error {
	if visit == nil {
		return app.Errorf(app.ErrCodeArg, "directory walk needs a visitor")
	}
	visited := map[types.Inum]struct{}{inum: {}}
	_, err := fs.dirWalk(inum, "/", recurse, visited, visit, true)
	return err
}

// dirWalk returns true when the visitor asked to stop
func (fs *FileSystem) dirWalk(inum types.Inum, dirPath string, recurse bool, visited map[types.Inum]struct{}, visit interfaces.DirEntryVisitor, top bool) (bool, error) {
	dir, err := fs.DirOpen(inum)
	if err != nil {
		if top {
			return false, err
		}
		fs.log.WithError(err).WithFields(logrus.Fields{"inum": inum, "path": dirPath}).Debug("skipping unreadable subdirectory")
		return false, nil
	}

	for i := range dir.Entries {
		entry := dir.Entries[i]
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		entry.Path = dirPath

		switch visit(&entry) {
		case types.WalkStop:
			return true, nil
		case types.WalkError:
			return true, app.Errorf(app.ErrCodeFileWalk, "directory walk aborted by visitor at %s%s", dirPath, entry.Name)
		}

		if !recurse || entry.Type != types.FileTypeDirectory || entry.Inum == 0 || entry.Inum == fs.lastInum {
			continue
		}
		if _, ok := visited[entry.Inum]; ok {
			continue
		}
		visited[entry.Inum] = struct{}{}

		stop, err := fs.dirWalk(entry.Inum, dirPath+entry.Name+"/", recurse, visited, visit, false)
		if stop || err != nil {
			return stop, err
		}
	}
	return false, nil
}

// Lookup resolves an absolute path to an inode number. Allocated names are
// preferred over deleted ones.
func (fs *FileSystem) Lookup(p string) (types.Inum, error) {
	clean := path.Clean("/" + p)
	inum := fs.rootInum
	if clean == "/" {
		return inum, nil
	}

	for _, part := range strings.Split(strings.TrimPrefix(clean, "/"), "/") {
		dir, err := fs.DirOpen(inum)
		if err != nil {
			return 0, err
		}
		found := false
		for _, e := range dir.Entries {
			if e.Name != part {
				continue
			}
			if !found || e.IsAllocated() {
				inum = e.Inum
				found = true
			}
			if e.IsAllocated() {
				break
			}
		}
		if !found {
			return 0, app.Errorf(app.ErrCodeArg, "%s: no such file or directory", clean)
		}
	}
	return inum, nil
}
