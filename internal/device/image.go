package device

import (
	"fmt"
	"io"
	"os"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Image provides read access to a raw disk image or block device
type Image struct {
	file   *os.File
	path   string
	size   int64
	offset int64 // byte offset of the filesystem inside the image
}

// ImageConfig holds configuration for image handling
type ImageConfig struct {
	Offset              int64  `mapstructure:"offset" yaml:"offset"`
	SectorSize          int64  `mapstructure:"sector_size" yaml:"sector_size"`
	Partition           int    `mapstructure:"partition" yaml:"partition"`
	AutoDetectPartition bool   `mapstructure:"auto_detect_partition" yaml:"auto_detect_partition"`
	FsType              string `mapstructure:"fs_type" yaml:"fs_type"`
	Output              string `mapstructure:"output" yaml:"output"`
	NoColor             bool   `mapstructure:"no_color" yaml:"no_color"`
}

// LoadImageConfig loads image configuration using Viper
func LoadImageConfig() (*ImageConfig, error) {
	v := viper.New()
	v.SetConfigName("unixfs-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.unixfs")
	v.AddConfigPath("/etc/unixfs")

	// Set defaults
	v.SetDefault("offset", 0)
	v.SetDefault("sector_size", 512)
	v.SetDefault("partition", 0)
	v.SetDefault("auto_detect_partition", false)
	v.SetDefault("fs_type", "auto")
	v.SetDefault("output", "table")
	v.SetDefault("no_color", false)

	// Allow environment variables
	v.SetEnvPrefix("UNIXFS")
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config ImageConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// OpenImage opens an image file and positions it at the filesystem start
func OpenImage(path string, config *ImageConfig) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	size, err := imageSize(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	img := &Image{
		file:   file,
		path:   path,
		size:   size,
		offset: config.Offset,
	}

	switch {
	case config.Partition > 0:
		offset, err := PartitionOffset(path, config.Partition)
		if err != nil {
			file.Close()
			return nil, err
		}
		img.offset = offset
	case config.AutoDetectPartition && config.Offset == 0:
		offset, err := PartitionOffset(path, 1)
		if err != nil {
			logrus.WithError(err).Debug("no partition table found, using offset 0")
		} else {
			img.offset = offset
		}
	}

	if img.offset < 0 || img.offset >= size {
		file.Close()
		return nil, fmt.Errorf("filesystem offset %d is outside the image (%d bytes)", img.offset, size)
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"size":   size,
		"offset": img.offset,
	}).Debug("opened image")

	return img, nil
}

// imageSize returns the size of a regular file or block device
func imageSize(file *os.File) (int64, error) {
	stat, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat image: %w", err)
	}
	if stat.Mode().IsRegular() {
		return stat.Size(), nil
	}
	// Devices report zero; seek to the end instead
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to size device: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind device: %w", err)
	}
	return size, nil
}

// Partition describes one entry of an MBR or GPT partition table
type Partition struct {
	Index int
	Start int64
	Size  int64
}

// ListPartitions reads the partition table of an image
func ListPartitions(path string) ([]Partition, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to open disk %s: %w", path, err)
	}
	defer d.Close()

	table, err := d.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("failed to read partition table: %w", err)
	}

	var parts []Partition
	for i, p := range table.GetPartitions() {
		if p.GetSize() == 0 {
			continue
		}
		parts = append(parts, Partition{
			Index: i + 1,
			Start: p.GetStart(),
			Size:  p.GetSize(),
		})
	}
	return parts, nil
}

// PartitionOffset returns the byte offset of partition index (1-based)
func PartitionOffset(path string, index int) (int64, error) {
	parts, err := ListPartitions(path)
	if err != nil {
		return 0, err
	}
	for _, p := range parts {
		if p.Index == index {
			return p.Start, nil
		}
	}
	return 0, fmt.Errorf("partition %d not found in %s", index, path)
}

// ReadAt implements io.ReaderAt over the whole image
func (i *Image) ReadAt(p []byte, off int64) (n int, err error) {
	return i.file.ReadAt(p, off)
}

// Size returns the size of the whole image in bytes
func (i *Image) Size() int64 {
	return i.size
}

// Offset returns the byte offset of the filesystem inside the image
func (i *Image) Offset() int64 {
	return i.offset
}

// Path returns the path the image was opened from
func (i *Image) Path() string {
	return i.path
}

// Close closes the underlying file
func (i *Image) Close() error {
	if i.file != nil {
		return i.file.Close()
	}
	return nil
}
