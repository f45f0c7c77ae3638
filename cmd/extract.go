package cmd

import (
	"io"
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

var (
	// Content selection (icat-specific)
	icatSlack bool
	icatPath  string
	icatDest  string
)

var icatCmd = &cobra.Command{
	Use:   "icat <image> [inum]",
	Short: "Write file content by inode number",
	Long: `Write the content of a file to stdout or a destination file. The file is
selected by inode number or by path, and deleted inodes are read from
whatever their block pointers still reference.

Examples:
  # Recover inode 12
  go-unixfs icat disk.img 12 > recovered.bin

  # Include the slack after the end of the file
  go-unixfs icat disk.img 12 --slack --dest recovered.bin

  # Read by path
  go-unixfs icat disk.img --name /etc/passwd`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := factory.FilesystemService()
		if err != nil {
			return err
		}
		target := imageTarget(args[0])

		var inum uint64
		switch {
		case len(args) == 2 && icatPath != "":
			return app.NewError(app.ErrCodeArg, "give either an inode number or --name", nil)
		case len(args) == 2:
			if inum, err = parseNumber("inode", args[1]); err != nil {
				return err
			}
		case icatPath != "":
			if inum, err = svc.LookupPath(appCtx, target, icatPath); err != nil {
				return err
			}
		default:
			return app.NewError(app.ErrCodeArg, "an inode number or --name is required", nil)
		}

		var out io.Writer = appCtx.Out
		if icatDest != "" {
			f, err := os.Create(icatDest)
			if err != nil {
				return app.NewError(app.ErrCodeWrite, "create output file", err)
			}
			defer f.Close()
			out = f
		}

		n, err := svc.ReadFile(appCtx, target, inum, icatSlack, out)
		if err != nil {
			return err
		}
		appCtx.Log("wrote %s from inode %d", units.BytesSize(float64(n)), inum)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(icatCmd)

	icatCmd.Flags().BoolVarP(&icatSlack, "slack", "s", false, "include slack space after the end of the file")
	icatCmd.Flags().StringVarP(&icatPath, "name", "n", "", "path of the file to read")
	icatCmd.Flags().StringVarP(&icatDest, "dest", "d", "", "write content to this file instead of stdout")
}
