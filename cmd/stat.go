package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
	"github.com/deploymenttheory/go-unixfs/pkg/services"
)

var (
	istatNumAddr int
	istatSkew    time.Duration

	ifindBlock uint64
	ifindPath  string
)

var fsstatCmd = &cobra.Command{
	Use:   "fsstat <image>",
	Short: "Show filesystem details",
	Long: `Show the superblock summary and per-group layout of a filesystem.

Examples:
  # Report on the filesystem at the start of an image
  go-unixfs fsstat disk.img

  # Report on the second MBR partition as JSON
  go-unixfs fsstat disk.img --partition 2 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := factory.FilesystemService()
		if err != nil {
			return err
		}
		target := imageTarget(args[0])
		if appCtx.OutputFormat == "table" {
			return svc.WriteFsStat(appCtx, target, appCtx.Out)
		}
		info, err := svc.Stat(appCtx, target)
		if err != nil {
			return err
		}
		_, err = writeStructured(appCtx.Out, info)
		return err
	},
}

var istatCmd = &cobra.Command{
	Use:   "istat <image> <inum>",
	Short: "Show inode details",
	Long: `Show the metadata of an inode and the blocks it occupies.

Examples:
  go-unixfs istat disk.img 12
  go-unixfs istat disk.img 12 --num-addr 16 --skew 1h`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inum, err := parseNumber("inode", args[1])
		if err != nil {
			return err
		}
		svc, err := factory.FilesystemService()
		if err != nil {
			return err
		}
		target := imageTarget(args[0])
		if appCtx.OutputFormat == "table" {
			return svc.WriteIStat(appCtx, target, inum, istatNumAddr, istatSkew, appCtx.Out)
		}
		inodes, err := svc.ListInodes(appCtx, target, services.RangeOptions{Start: inum, End: inum},
			types.InodeWalkAlloc|types.InodeWalkUnalloc)
		if err != nil {
			return err
		}
		if len(inodes) == 0 {
			return app.Errorf(app.ErrCodeInodeNum, "inode %d not found", inum)
		}
		_, err = writeStructured(appCtx.Out, inodes[0])
		return err
	},
}

var blkstatCmd = &cobra.Command{
	Use:   "blkstat <image> <addr>",
	Short: "Show block allocation and owner",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseNumber("block", args[1])
		if err != nil {
			return err
		}
		svc, err := factory.FilesystemService()
		if err != nil {
			return err
		}
		info, err := svc.BlockStat(appCtx, imageTarget(args[0]), addr)
		if err != nil {
			return err
		}
		if ok, err := writeStructured(appCtx.Out, info); ok {
			return err
		}

		out := appCtx.Out
		fmt.Fprintf(out, "Block: %d\n", info.Addr)
		if info.Allocated {
			fmt.Fprintln(out, "Allocated")
		} else {
			fmt.Fprintln(out, "Not Allocated")
		}
		if info.Meta {
			fmt.Fprintln(out, "Metadata")
		} else {
			fmt.Fprintln(out, "Content")
		}
		if info.Owner == 0 {
			return nil
		}
		kind := "data"
		if info.Indirect {
			kind = "indirect"
		}
		_, err = fmt.Fprintf(out, "Owner: %d (%s block %d)\n", info.Owner, kind, info.Offset)
		return err
	},
}

var ifindCmd = &cobra.Command{
	Use:   "ifind <image>",
	Short: "Find the inode that owns a block or path",
	Long: `Find the inode that owns a block or is named by a path.

Examples:
  go-unixfs ifind disk.img --block 1042
  go-unixfs ifind disk.img --name /etc/passwd`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := factory.FilesystemService()
		if err != nil {
			return err
		}
		target := imageTarget(args[0])

		var inum uint64
		if ifindPath != "" {
			if inum, err = svc.LookupPath(appCtx, target, ifindPath); err != nil {
				return err
			}
		} else {
			info, err := svc.BlockStat(appCtx, target, ifindBlock)
			if err != nil {
				return err
			}
			if info.Owner == 0 {
				_, err = fmt.Fprintf(appCtx.Out, "Block %d has no owner\n", ifindBlock)
				return err
			}
			inum = info.Owner
		}
		if ok, err := writeStructured(appCtx.Out, map[string]uint64{"inum": inum}); ok {
			return err
		}
		_, err = fmt.Fprintln(appCtx.Out, inum)
		return err
	},
}

func init() {
	rootCmd.AddCommand(fsstatCmd, istatCmd, blkstatCmd, ifindCmd)

	istatCmd.Flags().IntVarP(&istatNumAddr, "num-addr", "b", 0, "number of block addresses to list (0 lists all)")
	istatCmd.Flags().DurationVarP(&istatSkew, "skew", "s", 0, "clock skew subtracted from every time")

	ifindCmd.Flags().Uint64VarP(&ifindBlock, "block", "d", 0, "block address to find the owner of")
	ifindCmd.Flags().StringVarP(&ifindPath, "name", "n", "", "path to resolve")
	ifindCmd.MarkFlagsOneRequired("block", "name")
	ifindCmd.MarkFlagsMutuallyExclusive("block", "name")
}

// parseNumber parses a decimal inode or block number argument
func parseNumber(what, s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, app.NewError(app.ErrCodeArg, fmt.Sprintf("invalid %s number %q", what, s), err)
	}
	return n, nil
}
