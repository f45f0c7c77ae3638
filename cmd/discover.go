package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-unixfs/pkg/app"
	"github.com/deploymenttheory/go-unixfs/pkg/app/discover"
)

var (
	// Search scope
	discoverPath  string
	allPartitions bool

	// File matching criteria
	namePattern   string
	nameRegex     string
	extensions    []string
	caseSensitive bool

	// Size criteria
	minSize string
	maxSize string

	// Date criteria
	modifiedAfter  string
	modifiedBefore string

	// Content search
	contentSearch  string
	includeDeleted bool
	deletedOnly    bool
	maxResults     int
)

var discoverCmd = &cobra.Command{
	Use:   "discover <image>",
	Short: "Find files by name, extension, size, date or content",
	Long: `Search the directory tree of a filesystem image using various criteria.
Deleted names recovered from directory slack can be included.

Examples:
  # Find all PDF files
  go-unixfs discover disk.img --ext pdf

  # Find deleted files with "password" in the name
  go-unixfs discover disk.img --name "*password*" --deleted-only

  # Find large files under /home on every partition
  go-unixfs discover disk.img --path /home --min-size 100MB --all-partitions

  # Search file contents for specific text
  go-unixfs discover disk.img --content "secret" --ext txt,log`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscover(args[0])
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	// Scope
	discoverCmd.Flags().StringVar(&discoverPath, "path", "", "directory to search (default: root)")
	discoverCmd.Flags().BoolVar(&allPartitions, "all-partitions", false, "search every partition holding a supported filesystem")

	// File matching
	discoverCmd.Flags().StringVarP(&namePattern, "name", "n", "", "filename pattern (wildcards: *, ?, [...], {a,b})")
	discoverCmd.Flags().StringVar(&nameRegex, "regex", "", "filename regex pattern")
	discoverCmd.Flags().StringSliceVar(&extensions, "ext", nil, "file extensions (pdf,jpg,txt)")
	discoverCmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "case-sensitive matching")

	// Size filtering
	discoverCmd.Flags().StringVar(&minSize, "min-size", "", "minimum file size (10MB, 1GB)")
	discoverCmd.Flags().StringVar(&maxSize, "max-size", "", "maximum file size (100MB, 2GB)")

	// Date filtering
	discoverCmd.Flags().StringVar(&modifiedAfter, "after", "", "modified after (YYYY-MM-DD)")
	discoverCmd.Flags().StringVar(&modifiedBefore, "before", "", "modified before (YYYY-MM-DD)")

	// Content search
	discoverCmd.Flags().StringVarP(&contentSearch, "content", "c", "", "search text within files")
	discoverCmd.Flags().BoolVar(&includeDeleted, "deleted", false, "include deleted files")
	discoverCmd.Flags().BoolVar(&deletedOnly, "deleted-only", false, "only deleted files")
	discoverCmd.Flags().IntVar(&maxResults, "limit", 1000, "maximum results")

	// Mutual exclusions
	discoverCmd.MarkFlagsMutuallyExclusive("name", "regex")
}

func runDiscover(imagePath string) error {
	fsSvc, err := factory.FilesystemService()
	if err != nil {
		return err
	}

	targets := []app.ImageTarget{imageTarget(imagePath)}
	if allPartitions {
		if imagePartition > 0 || imageOffset != 0 {
			return app.NewError(app.ErrCodeArg, "--all-partitions cannot be combined with --partition or --offset", nil)
		}
		if targets, err = partitionTargets(imagePath); err != nil {
			return err
		}
	}

	for i, target := range targets {
		request := &discover.Request{
			Target:         target,
			Path:           discoverPath,
			NamePattern:    namePattern,
			NameRegex:      nameRegex,
			Extensions:     extensions,
			CaseSensitive:  caseSensitive,
			MinSize:        minSize,
			MaxSize:        maxSize,
			ModifiedAfter:  modifiedAfter,
			ModifiedBefore: modifiedBefore,
			ContentSearch:  contentSearch,
			IncludeDeleted: includeDeleted,
			DeletedOnly:    deletedOnly,
			MaxResults:     maxResults,
		}

		response, err := discover.Handle(appCtx, fsSvc, request)
		if err != nil {
			return err
		}
		appCtx.Log("%s", discover.FormatSummary(response))

		if len(targets) > 1 && appCtx.OutputFormat == "table" {
			if i > 0 {
				fmt.Fprintln(appCtx.Out)
			}
			fmt.Fprintf(appCtx.Out, "== %s ==\n", target.String())
		}
		if err := discover.FormatOutput(appCtx.Out, response, appCtx.OutputFormat); err != nil {
			return err
		}
	}
	return nil
}

// partitionTargets returns a target for every partition a filesystem was
// found in
func partitionTargets(imagePath string) ([]app.ImageTarget, error) {
	imgSvc, err := factory.ImageService()
	if err != nil {
		return nil, err
	}
	parts, err := imgSvc.ScanPartitions(appCtx, imagePath, imageFsType)
	if err != nil {
		return nil, err
	}

	var targets []app.ImageTarget
	for _, p := range parts {
		if p.Error != "" {
			appCtx.Logger.WithField("partition", p.Index).Debugf("skipped: %s", p.Error)
			continue
		}
		targets = append(targets, app.ImageTarget{Path: imagePath, Partition: p.Index, FsType: imageFsType})
	}
	if len(targets) == 0 {
		return nil, app.Errorf(app.ErrCodeMagic, "no supported filesystem found in any partition of %s", imagePath)
	}
	return targets, nil
}
