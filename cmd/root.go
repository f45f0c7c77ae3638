package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-unixfs/internal/device"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
	"github.com/deploymenttheory/go-unixfs/pkg/services"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string
	noColor      bool

	// Global image selection flags
	imageOffset    int64
	imagePartition int
	imageFsType    string
)

// appCtx and factory are prepared by the root pre-run hook
var (
	appCtx  *app.Context
	factory *services.ServiceFactory
)

var rootCmd = &cobra.Command{
	Use:   "go-unixfs",
	Short: "Forensic reader for UFS and ext filesystem images",
	Long: `go-unixfs is a read-only command-line tool for examining UFS1, UFS2 and
ext2/3/4 filesystems inside raw disk images without mounting them.

It reports allocation state for every block and inode, lists names that only
survive in directory slack, recovers file content by inode number and walks
the ext3/4 journal.

Commands:
  fsstat      Show filesystem details
  istat       Show inode details
  fls         List file names in a directory
  ils         List inodes
  blkls       List or dump blocks
  blkstat     Show block allocation and owner
  icat        Write file content by inode number
  ifind       Find the inode that owns a block or path
  jls         List journal entries
  jcat        Write a journal block
  discover    Find files by name, extension, size, date or content
  partitions  List the partitions of a disk image`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if factory != nil {
		if cerr := factory.Shutdown(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		if appCtx != nil {
			appCtx.Error(err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	rootCmd.PersistentFlags().Int64Var(&imageOffset, "offset", 0, "byte offset of the filesystem inside the image")
	rootCmd.PersistentFlags().IntVarP(&imagePartition, "partition", "p", 0, "1-based partition index holding the filesystem")
	rootCmd.PersistentFlags().StringVarP(&imageFsType, "fs-type", "f", "auto", "filesystem type (auto, ext, ufs, ufs1b)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("offset", "partition")
}

// setup merges the config file into flags the user did not set and builds the
// application context and service factory
func setup(cmd *cobra.Command) error {
	cfg, err := device.LoadImageConfig()
	if err != nil {
		return app.NewError(app.ErrCodeArg, "load config", err)
	}
	flags := cmd.Flags()
	if !flags.Changed("offset") && !flags.Changed("partition") {
		imageOffset = cfg.Offset
		imagePartition = cfg.Partition
	}
	if !flags.Changed("fs-type") && cfg.FsType != "" {
		imageFsType = cfg.FsType
	}
	if !flags.Changed("output") && cfg.Output != "" {
		outputFormat = cfg.Output
	}
	if !flags.Changed("no-color") {
		noColor = noColor || cfg.NoColor
	}

	switch outputFormat {
	case "table", "json", "yaml":
	default:
		return app.Errorf(app.ErrCodeArg, "unsupported output format %q", outputFormat)
	}

	appCtx = app.NewContext()
	appCtx.OutputFormat = outputFormat
	appCtx.Verbose = verbose
	appCtx.Quiet = quiet
	appCtx.NoColor = noColor
	appCtx.Out = cmd.OutOrStdout()
	appCtx.Apply()

	factory = services.NewServiceFactory()
	factory.SetLogger(appCtx.Logger)
	return factory.Initialize()
}

// imageTarget builds the target for the image named on the command line
func imageTarget(path string) app.ImageTarget {
	return app.ImageTarget{
		Path:      path,
		Offset:    imageOffset,
		Partition: imagePartition,
		FsType:    imageFsType,
	}
}

// writeStructured encodes v as JSON or YAML. It reports false for the table
// format so callers can render their own layout.
func writeStructured(w io.Writer, v interface{}) (bool, error) {
	switch appCtx.OutputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		enc.SetIndent(2)
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}
