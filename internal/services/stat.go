package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// LayoutRange is a named run of blocks inside a group
type LayoutRange struct {
	Name  string `json:"name" yaml:"name"`
	Start uint64 `json:"start" yaml:"start"`
	End   uint64 `json:"end" yaml:"end"`
}

// GroupStat summarizes one block group or cylinder group
type GroupStat struct {
	Index      uint32        `json:"index" yaml:"index"`
	FirstInum  uint64        `json:"first_inum" yaml:"first_inum"`
	LastInum   uint64        `json:"last_inum" yaml:"last_inum"`
	FirstBlock uint64        `json:"first_block" yaml:"first_block"`
	LastBlock  uint64        `json:"last_block" yaml:"last_block"`
	Layout     []LayoutRange `json:"layout" yaml:"layout"`
	FreeInodes uint64        `json:"free_inodes" yaml:"free_inodes"`
	FreeBlocks uint64        `json:"free_blocks" yaml:"free_blocks"`
	FreeFrags  uint64        `json:"free_frags,omitempty" yaml:"free_frags,omitempty"`
	Dirs       uint64        `json:"dirs" yaml:"dirs"`
	Flags      []string      `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// FsStatInfo is the filesystem summary printed by FsStat
type FsStatInfo struct {
	Type        string    `json:"type" yaml:"type"`
	Endian      string    `json:"endian" yaml:"endian"`
	VolumeName  string    `json:"volume_name,omitempty" yaml:"volume_name,omitempty"`
	VolumeID    string    `json:"volume_id,omitempty" yaml:"volume_id,omitempty"`
	LastMounted string    `json:"last_mounted,omitempty" yaml:"last_mounted,omitempty"`
	LastWritten time.Time `json:"last_written" yaml:"last_written"`
	LastMount   time.Time `json:"last_mount,omitempty" yaml:"last_mount,omitempty"`
	LastCheck   time.Time `json:"last_check,omitempty" yaml:"last_check,omitempty"`
	Created     time.Time `json:"created,omitempty" yaml:"created,omitempty"`
	State       string    `json:"state,omitempty" yaml:"state,omitempty"`
	Flags       []string  `json:"flags,omitempty" yaml:"flags,omitempty"`

	CompatFeatures   []string `json:"compat_features,omitempty" yaml:"compat_features,omitempty"`
	IncompatFeatures []string `json:"incompat_features,omitempty" yaml:"incompat_features,omitempty"`
	ROCompatFeatures []string `json:"ro_compat_features,omitempty" yaml:"ro_compat_features,omitempty"`
	JournalInum      uint64   `json:"journal_inum,omitempty" yaml:"journal_inum,omitempty"`

	InodeCount     uint64 `json:"inode_count" yaml:"inode_count"`
	FirstInum      uint64 `json:"first_inum" yaml:"first_inum"`
	LastInum       uint64 `json:"last_inum" yaml:"last_inum"`
	RootInum       uint64 `json:"root_inum" yaml:"root_inum"`
	InodeSize      uint32 `json:"inode_size" yaml:"inode_size"`
	FreeInodes     uint64 `json:"free_inodes" yaml:"free_inodes"`
	InodesPerGroup uint32 `json:"inodes_per_group" yaml:"inodes_per_group"`

	BlockCount     uint64 `json:"block_count" yaml:"block_count"`
	FirstBlock     uint64 `json:"first_block" yaml:"first_block"`
	LastBlock      uint64 `json:"last_block" yaml:"last_block"`
	LastBlockAct   uint64 `json:"last_block_act" yaml:"last_block_act"`
	BlockSize      uint32 `json:"block_size" yaml:"block_size"`
	FragmentSize   uint32 `json:"fragment_size,omitempty" yaml:"fragment_size,omitempty"`
	FreeBlocks     uint64 `json:"free_blocks" yaml:"free_blocks"`
	BlocksPerGroup uint32 `json:"blocks_per_group" yaml:"blocks_per_group"`

	GroupCount uint32      `json:"group_count" yaml:"group_count"`
	Groups     []GroupStat `json:"groups" yaml:"groups"`
}

// StatInfo gathers the filesystem summary
func (fs *FileSystem) StatInfo() (*FsStatInfo, error) {
	if err := fs.checkOpen(); err != nil {
		return nil, err
	}
	info, err := fs.impl.statInfo()
	if err != nil {
		return nil, err
	}
	info.Type = fs.fsType.String()
	info.Endian = fs.endian.String()
	info.InodeCount = fs.inumCount
	info.FirstInum = uint64(fs.firstInum)
	info.LastInum = uint64(fs.lastInum)
	info.RootInum = uint64(fs.rootInum)
	info.InodesPerGroup = fs.inodesPerGrp
	info.BlockCount = fs.blockCount
	info.FirstBlock = fs.firstBlock
	info.LastBlock = fs.lastBlock
	info.LastBlockAct = fs.lastBlockAct
	info.GroupCount = fs.groupCount
	return info, nil
}

// featureNames lists the names of the bits set in mask, lowest bit first
func featureNames(mask uint32, names map[uint32]string) []string {
	var out []string
	for bit := uint32(1); bit != 0; bit <<= 1 {
		if mask&bit == 0 {
			continue
		}
		if name, ok := names[bit]; ok {
			out = append(out, name)
		} else {
			out = append(out, fmt.Sprintf("Unknown (0x%x)", bit))
		}
	}
	return out
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "(none)"
	}
	return t.Format("2006-01-02 15:04:05 (MST)")
}

func formatNanoTime(sec int64, nsec uint32, nano bool, skew int64) string {
	if sec == 0 && nsec == 0 {
		return "0000-00-00 00:00:00 (UTC)"
	}
	t := time.Unix(sec-skew, int64(nsec)).UTC()
	if nano {
		return t.Format("2006-01-02 15:04:05.000000000 (MST)")
	}
	return t.Format("2006-01-02 15:04:05 (MST)")
}

// errWriter remembers the first write failure
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) result() error {
	if ew.err != nil {
		return app.NewError(app.ErrCodeWrite, "failed to write report", ew.err)
	}
	return nil
}

// FsStat writes a human readable filesystem summary to w
func (fs *FileSystem) FsStat(w io.Writer) error {
	info, err := fs.StatInfo()
	if err != nil {
		return err
	}
	ew := &errWriter{w: w}

	ew.printf("FILE SYSTEM INFORMATION\n")
	ew.printf("--------------------------------------------\n")
	ew.printf("File System Type: %s\n", info.Type)
	ew.printf("Endian: %s\n", info.Endian)
	if info.VolumeName != "" {
		ew.printf("Volume Name: %s\n", info.VolumeName)
	}
	if info.VolumeID != "" {
		ew.printf("Volume ID: %s\n", info.VolumeID)
	}
	ew.printf("\nLast Written at: %s\n", formatTime(info.LastWritten))
	if fs.fsType.IsExt() {
		ew.printf("Last Checked at: %s\n", formatTime(info.LastCheck))
		ew.printf("Last Mounted at: %s\n", formatTime(info.LastMount))
	}
	if !info.Created.IsZero() {
		ew.printf("Created at: %s\n", formatTime(info.Created))
	}
	if info.State != "" {
		ew.printf("State: %s\n", info.State)
	}
	if info.LastMounted != "" {
		ew.printf("Last mounted on: %s\n", info.LastMounted)
	}
	if len(info.Flags) > 0 {
		ew.printf("Flags: %s\n", strings.Join(info.Flags, ", "))
	}
	if fs.fsType.IsExt() {
		ew.printf("\nCompat Features: %s\n", strings.Join(info.CompatFeatures, ", "))
		ew.printf("InCompat Features: %s\n", strings.Join(info.IncompatFeatures, ", "))
		ew.printf("Read Only Compat Features: %s\n", strings.Join(info.ROCompatFeatures, ", "))
		if info.JournalInum != 0 {
			ew.printf("Journal ID: %d\n", info.JournalInum)
		}
	}

	ew.printf("\nMETADATA INFORMATION\n")
	ew.printf("--------------------------------------------\n")
	ew.printf("Inode Range: %d - %d\n", info.FirstInum, info.LastInum)
	ew.printf("Root Directory: %d\n", info.RootInum)
	ew.printf("Inode Size: %d\n", info.InodeSize)
	ew.printf("Free Inodes: %d\n", info.FreeInodes)

	ew.printf("\nCONTENT INFORMATION\n")
	ew.printf("--------------------------------------------\n")
	if info.FragmentSize != 0 {
		ew.printf("Fragment Range: %d - %d\n", info.FirstBlock, info.LastBlock)
		if info.LastBlockAct != info.LastBlock {
			ew.printf("Total Range in Image: %d - %d\n", info.FirstBlock, info.LastBlockAct)
		}
		ew.printf("Block Size: %d\n", info.BlockSize)
		ew.printf("Fragment Size: %d\n", info.FragmentSize)
		ew.printf("Free Fragments: %d (%s)\n", info.FreeBlocks,
			units.BytesSize(float64(info.FreeBlocks)*float64(info.FragmentSize)))
	} else {
		ew.printf("Block Range: %d - %d\n", info.FirstBlock, info.LastBlock)
		if info.LastBlockAct != info.LastBlock {
			ew.printf("Total Range in Image: %d - %d\n", info.FirstBlock, info.LastBlockAct)
		}
		ew.printf("Block Size: %d\n", info.BlockSize)
		ew.printf("Free Blocks: %d (%s)\n", info.FreeBlocks,
			units.BytesSize(float64(info.FreeBlocks)*float64(info.BlockSize)))
	}
	ew.printf("Size: %s\n", units.BytesSize(float64(info.BlockCount)*float64(fs.blockSize)))

	if fs.fsType.IsUFS() {
		ew.printf("\nCYLINDER GROUP INFORMATION\n")
	} else {
		ew.printf("\nBLOCK GROUP INFORMATION\n")
	}
	ew.printf("--------------------------------------------\n")
	ew.printf("Number of Groups: %d\n", info.GroupCount)
	ew.printf("Inodes per group: %d\n", info.InodesPerGroup)
	ew.printf("Blocks per group: %d\n", info.BlocksPerGroup)

	for _, g := range info.Groups {
		ew.printf("\nGroup: %d:\n", g.Index)
		if len(g.Flags) > 0 {
			ew.printf("  Group Flags: [%s]\n", strings.Join(g.Flags, ", "))
		}
		ew.printf("  Inode Range: %d - %d\n", g.FirstInum, g.LastInum)
		ew.printf("  Block Range: %d - %d\n", g.FirstBlock, g.LastBlock)
		ew.printf("  Layout:\n")
		for _, l := range g.Layout {
			ew.printf("    %s: %d - %d\n", l.Name, l.Start, l.End)
		}
		ew.printf("  Free Inodes: %d\n", g.FreeInodes)
		ew.printf("  Free Blocks: %d\n", g.FreeBlocks)
		if fs.fsType.IsUFS() {
			ew.printf("  Free Fragments: %d\n", g.FreeFrags)
		}
		ew.printf("  Total Directories: %d\n", g.Dirs)
	}
	return ew.result()
}

// IStat writes the metadata and block list of inum to w. numAddr limits
// the listed content blocks, 0 lists all. secSkew is subtracted from every
// time.
func (fs *FileSystem) IStat(w io.Writer, inum types.Inum, numAddr int, secSkew int64) error {
	inode, err := fs.InodeLookup(inum)
	if err != nil {
		return err
	}
	runsErr := fs.LoadRuns(inode)
	if runsErr != nil && !app.IsKind(runsErr, app.ErrCodeRecover) {
		fs.log.WithError(runsErr).WithField("inum", inum).Debug("no data runs for istat")
	}

	ew := &errWriter{w: w}
	ew.printf("inode: %d\n", inode.Inum)
	if inode.Flags.Has(types.MetaFlagAlloc) {
		ew.printf("Allocated\n")
	} else {
		ew.printf("Not Allocated\n")
	}
	if inum != fs.lastInum {
		ew.printf("Group: %d\n", fs.inodeGroup(inum))
	}
	ew.printf("Generation Id: %d\n", inode.Generation)
	ew.printf("uid / gid: %d / %d\n", inode.UID, inode.GID)
	ew.printf("mode: %s\n", inode.ModeString())
	if inode.FileFlags != 0 {
		ew.printf("Flags: 0x%08x\n", inode.FileFlags)
	}
	ew.printf("size: %d\n", inode.Size)
	ew.printf("num of links: %d\n", inode.NLink)
	if inode.Link != "" {
		ew.printf("symbolic link to: %s\n", inode.Link)
	}

	if secSkew != 0 {
		ew.printf("\nAdjusted Inode Times:\n")
	} else {
		ew.printf("\nInode Times:\n")
	}
	ew.printf("Accessed:\t%s\n", formatNanoTime(inode.ATime, inode.ATimeNano, fs.nanoTime, secSkew))
	ew.printf("File Modified:\t%s\n", formatNanoTime(inode.MTime, inode.MTimeNano, fs.nanoTime, secSkew))
	ew.printf("Inode Modified:\t%s\n", formatNanoTime(inode.CTime, inode.CTimeNano, fs.nanoTime, secSkew))
	if inode.CrTime != 0 {
		ew.printf("Created:\t%s\n", formatNanoTime(inode.CrTime, inode.CrTimeNano, fs.nanoTime, secSkew))
	}
	if fs.fsType.IsExt() && inode.DTime != 0 {
		ew.printf("Deleted:\t%s\n", formatNanoTime(inode.DTime, 0, false, secSkew))
	}

	if len(inode.Runs) > 0 {
		ew.printf("\nDirect Blocks:\n")
		printed := 0
		col := 0
	runs:
		for _, r := range inode.Runs {
			for i := uint64(0); i < r.Len; i++ {
				if numAddr > 0 && printed >= numAddr {
					break runs
				}
				addr := r.Addr + i
				if r.IsSparse() {
					addr = 0
				}
				ew.printf("%d ", addr)
				printed++
				if col++; col == 8 {
					ew.printf("\n")
					col = 0
				}
			}
		}
		if col != 0 {
			ew.printf("\n")
		}
	}

	if len(inode.IndirectRuns) > 0 {
		ew.printf("\nIndirect Blocks:\n")
		col := 0
		for _, r := range inode.IndirectRuns {
			ew.printf("%d ", r.Addr)
			if col++; col == 8 {
				ew.printf("\n")
				col = 0
			}
		}
		if col != 0 {
			ew.printf("\n")
		}
	}

	if app.IsKind(runsErr, app.ErrCodeRecover) {
		ew.printf("\nWarning: block list was only partly recovered\n")
	}
	return ew.result()
}

// sortedLayout orders a group layout by start block
func sortedLayout(l []LayoutRange) []LayoutRange {
	sort.SliceStable(l, func(i, j int) bool { return l[i].Start < l[j].Start })
	return l
}
