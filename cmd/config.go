package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-unixfs/internal/device"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

const configFileName = "unixfs-config.yaml"

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the image configuration file",
	Long: `Image defaults are read from unixfs-config.yaml in ., ./config,
$HOME/.unixfs or /etc/unixfs, and from UNIXFS_* environment variables.
Command-line flags override both.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := device.LoadImageConfig()
		if err != nil {
			return app.NewError(app.ErrCodeArg, "load config", err)
		}
		// flags win over the file
		cfg.Offset = imageOffset
		cfg.Partition = imagePartition
		cfg.FsType = imageFsType
		cfg.Output = outputFormat
		cfg.NoColor = noColor
		return writeConfig(cmd.OutOrStdout(), cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil && !configForce {
			return app.Errorf(app.ErrCodeArg, "%s already exists (use --force to overwrite)", path)
		}

		f, err := os.Create(path)
		if err != nil {
			return app.NewError(app.ErrCodeWrite, "create config file", err)
		}
		defer f.Close()

		cfg := &device.ImageConfig{
			SectorSize: 512,
			FsType:     "auto",
			Output:     "table",
		}
		if err := writeConfig(f, cfg); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
}

func writeConfig(w io.Writer, cfg *device.ImageConfig) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return app.NewError(app.ErrCodeWrite, "encode config", err)
	}
	return nil
}
