package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
	"github.com/deploymenttheory/go-unixfs/pkg/services"
)

var (
	// fls
	flsRecursive bool
	flsDeleted   bool
	flsAllocated bool

	// ils
	ilsAlloc   bool
	ilsUnalloc bool
	ilsUsed    bool
	ilsUnused  bool
	ilsOrphan  bool

	// blkls
	blklsAlloc   bool
	blklsUnalloc bool
	blklsMeta    bool
	blklsCont    bool
	blklsList    bool
	blklsDest    string

	// shared by ils and blkls
	rangeStart uint64
	rangeEnd   uint64

	partitionsScan bool
)

var deletedColor = color.New(color.FgRed)

var flsCmd = &cobra.Command{
	Use:   "fls <image> [path|inum]",
	Short: "List file names in a directory",
	Long: `List the names in a directory, including deleted names recovered from
directory slack.

Examples:
  # List the root directory
  go-unixfs fls disk.img

  # List /home recursively, deleted names only
  go-unixfs fls disk.img /home -r -d

  # List a directory by inode number
  go-unixfs fls disk.img 11`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := factory.FilesystemService()
		if err != nil {
			return err
		}
		opts := services.ListOptions{
			Recursive:     flsRecursive,
			DeletedOnly:   flsDeleted,
			AllocatedOnly: flsAllocated,
		}
		if len(args) == 2 {
			if n, err := strconv.ParseUint(args[1], 10, 64); err == nil {
				opts.Inum = n
			} else {
				opts.Path = args[1]
			}
		}

		entries, err := svc.ListFiles(appCtx, imageTarget(args[0]), opts)
		if err != nil {
			return err
		}
		appCtx.Log("listed %d names", len(entries))
		if ok, err := writeStructured(appCtx.Out, entries); ok {
			return err
		}

		w := tabwriter.NewWriter(appCtx.Out, 0, 0, 2, ' ', 0)
		for _, e := range entries {
			marker := ""
			name := e.Path
			if e.Deleted {
				marker = "*"
				name = deletedColor.Sprint(name)
			}
			fmt.Fprintf(w, "%s/%s %s\t%d:\t%s\n", e.Type, e.Type, marker, e.Inum, name)
		}
		return w.Flush()
	},
}

var ilsCmd = &cobra.Command{
	Use:   "ils <image>",
	Short: "List inodes",
	Long: `List inodes and their allocation state. Without selection flags every
inode in the range is listed.

Examples:
  # Unallocated inodes that still hold metadata
  go-unixfs ils disk.img --unalloc --used

  # Orphan inodes
  go-unixfs ils disk.img --orphan`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := factory.FilesystemService()
		if err != nil {
			return err
		}
		var flags types.InodeWalkFlag
		if ilsAlloc {
			flags |= types.InodeWalkAlloc
		}
		if ilsUnalloc {
			flags |= types.InodeWalkUnalloc
		}
		if ilsUsed {
			flags |= types.InodeWalkUsed
		}
		if ilsUnused {
			flags |= types.InodeWalkUnused
		}
		if ilsOrphan {
			flags |= types.InodeWalkOrphan
		}

		inodes, err := svc.ListInodes(appCtx, imageTarget(args[0]),
			services.RangeOptions{Start: rangeStart, End: rangeEnd}, flags)
		if err != nil {
			return err
		}
		if ok, err := writeStructured(appCtx.Out, inodes); ok {
			return err
		}

		w := tabwriter.NewWriter(appCtx.Out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "INUM\tSTATE\tMODE\tUID\tGID\tLINKS\tSIZE\tMODIFIED\n")
		for _, in := range inodes {
			state := "a"
			if !in.Allocated {
				state = "f"
			}
			if in.Orphan {
				state += "o"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
				in.Inum, state, in.Mode, in.UID, in.GID, in.NLink, in.Size,
				in.Modified.UTC().Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var blklsCmd = &cobra.Command{
	Use:   "blkls <image>",
	Short: "List or dump blocks",
	Long: `Write the content of the selected blocks, or list their addresses with
--list. Without selection flags the unallocated blocks are written.

Examples:
  # Carve unallocated space into a file
  go-unixfs blkls disk.img --dest unalloc.raw

  # List metadata blocks between 0 and 100
  go-unixfs blkls disk.img --list --meta --start 0 --end 100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := factory.FilesystemService()
		if err != nil {
			return err
		}
		var flags types.BlockWalkFlag
		if blklsAlloc {
			flags |= types.BlockWalkAlloc
		}
		if blklsUnalloc {
			flags |= types.BlockWalkUnalloc
		}
		if blklsMeta {
			flags |= types.BlockWalkMeta
		}
		if blklsCont {
			flags |= types.BlockWalkCont
		}
		target := imageTarget(args[0])
		rng := services.RangeOptions{Start: rangeStart, End: rangeEnd}

		if blklsList {
			blocks, err := svc.ListBlocks(appCtx, target, rng, flags)
			if err != nil {
				return err
			}
			if ok, err := writeStructured(appCtx.Out, blocks); ok {
				return err
			}
			w := tabwriter.NewWriter(appCtx.Out, 0, 0, 2, ' ', 0)
			for _, b := range blocks {
				fmt.Fprintf(w, "%d\t%s\n", b.Addr, b.Flags)
			}
			return w.Flush()
		}

		if flags&(types.BlockWalkAlloc|types.BlockWalkUnalloc) == 0 {
			flags |= types.BlockWalkUnalloc
		}
		out := appCtx.Out
		if blklsDest != "" {
			f, err := os.Create(blklsDest)
			if err != nil {
				return app.NewError(app.ErrCodeWrite, "create output file", err)
			}
			defer f.Close()
			out = f
		}
		n, err := svc.WriteBlocks(appCtx, target, rng, flags, out)
		if err != nil {
			return err
		}
		appCtx.Log("wrote %d blocks", n)
		return nil
	},
}

var partitionsCmd = &cobra.Command{
	Use:   "partitions <image>",
	Short: "List the partitions of a disk image",
	Long: `List the MBR or GPT partitions of a disk image. With --scan every
partition is checked for a supported filesystem.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := factory.ImageService()
		if err != nil {
			return err
		}
		var parts []services.PartitionInfo
		if partitionsScan {
			parts, err = svc.ScanPartitions(appCtx, args[0], imageFsType)
		} else {
			parts, err = svc.ListPartitions(appCtx, args[0])
		}
		if err != nil {
			return err
		}
		if ok, err := writeStructured(appCtx.Out, parts); ok {
			return err
		}

		w := tabwriter.NewWriter(appCtx.Out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "INDEX\tSTART\tSIZE\tFILESYSTEM\n")
		for _, p := range parts {
			fsType := p.FsType
			if p.Error != "" {
				fsType = "-"
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", p.Index, p.Start, units.BytesSize(float64(p.Size)), fsType)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(flsCmd, ilsCmd, blklsCmd, partitionsCmd)

	flsCmd.Flags().BoolVarP(&flsRecursive, "recursive", "r", false, "descend into subdirectories")
	flsCmd.Flags().BoolVarP(&flsDeleted, "deleted", "d", false, "list deleted names only")
	flsCmd.Flags().BoolVarP(&flsAllocated, "allocated", "u", false, "list allocated names only")
	flsCmd.MarkFlagsMutuallyExclusive("deleted", "allocated")

	ilsCmd.Flags().BoolVarP(&ilsAlloc, "alloc", "a", false, "allocated inodes")
	ilsCmd.Flags().BoolVarP(&ilsUnalloc, "unalloc", "A", false, "unallocated inodes")
	ilsCmd.Flags().BoolVar(&ilsUsed, "used", false, "inodes that have held a file")
	ilsCmd.Flags().BoolVar(&ilsUnused, "unused", false, "inodes that never held a file")
	ilsCmd.Flags().BoolVarP(&ilsOrphan, "orphan", "O", false, "unallocated inodes no name points to")
	ilsCmd.Flags().Uint64Var(&rangeStart, "start", 0, "first inode (0 for the first)")
	ilsCmd.Flags().Uint64Var(&rangeEnd, "end", 0, "last inode (0 for the last)")

	blklsCmd.Flags().BoolVarP(&blklsAlloc, "alloc", "a", false, "allocated blocks")
	blklsCmd.Flags().BoolVarP(&blklsUnalloc, "unalloc", "A", false, "unallocated blocks")
	blklsCmd.Flags().BoolVarP(&blklsMeta, "meta", "m", false, "metadata blocks")
	blklsCmd.Flags().BoolVarP(&blklsCont, "content", "c", false, "content blocks")
	blklsCmd.Flags().BoolVarP(&blklsList, "list", "l", false, "list addresses instead of writing content")
	blklsCmd.Flags().StringVar(&blklsDest, "dest", "", "write content to this file instead of stdout")
	blklsCmd.Flags().Uint64Var(&rangeStart, "start", 0, "first block (0 for the first)")
	blklsCmd.Flags().Uint64Var(&rangeEnd, "end", 0, "last block (0 for the last)")

	partitionsCmd.Flags().BoolVar(&partitionsScan, "scan", false, "check each partition for a filesystem")
}
