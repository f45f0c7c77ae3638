package discover

import (
	"time"

	"github.com/docker/go-units"

	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// Request represents a file discovery request
type Request struct {
	Target app.ImageTarget
	// Path is the directory the search starts in; empty means the root
	Path string

	// Search criteria
	NamePattern    string
	NameRegex      string
	Extensions     []string
	CaseSensitive  bool
	MinSize        string
	MaxSize        string
	ModifiedAfter  string
	ModifiedBefore string
	ContentSearch  string
	IncludeDeleted bool
	DeletedOnly    bool
	MaxResults     int
}

// Response represents discovery results
type Response struct {
	Files       []FileResult   `json:"files" yaml:"files"`
	TotalFound  int            `json:"total_found" yaml:"total_found"`
	SearchTime  time.Duration  `json:"search_time" yaml:"search_time"`
	Filesystem  FilesystemInfo `json:"filesystem" yaml:"filesystem"`
	Truncated   bool           `json:"truncated" yaml:"truncated"`
	SearchQuery SearchQuery    `json:"search_query" yaml:"search_query"`
}

// FileResult represents a discovered file
type FileResult struct {
	Path        string    `json:"path" yaml:"path"`
	Name        string    `json:"name" yaml:"name"`
	Size        int64     `json:"size" yaml:"size"`
	Modified    time.Time `json:"modified" yaml:"modified"`
	Type        string    `json:"type" yaml:"type"`
	Deleted     bool      `json:"deleted" yaml:"deleted"`
	Inum        uint64    `json:"inum" yaml:"inum"`
	Permissions string    `json:"permissions" yaml:"permissions"`
	Extension   string    `json:"extension" yaml:"extension"`
}

// FilesystemInfo represents information about the searched filesystem
type FilesystemInfo struct {
	Image      string `json:"image" yaml:"image"`
	Type       string `json:"type" yaml:"type"`
	VolumeName string `json:"volume_name,omitempty" yaml:"volume_name,omitempty"`
	VolumeID   string `json:"volume_id,omitempty" yaml:"volume_id,omitempty"`
	BlockSize  uint32 `json:"block_size" yaml:"block_size"`
}

// SearchQuery represents the executed search parameters
type SearchQuery struct {
	Path           string   `json:"path,omitempty" yaml:"path,omitempty"`
	NamePattern    string   `json:"name_pattern,omitempty" yaml:"name_pattern,omitempty"`
	NameRegex      string   `json:"name_regex,omitempty" yaml:"name_regex,omitempty"`
	Extensions     []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	CaseSensitive  bool     `json:"case_sensitive" yaml:"case_sensitive"`
	MinSize        string   `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize        string   `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	ModifiedAfter  string   `json:"modified_after,omitempty" yaml:"modified_after,omitempty"`
	ModifiedBefore string   `json:"modified_before,omitempty" yaml:"modified_before,omitempty"`
	ContentSearch  string   `json:"content_search,omitempty" yaml:"content_search,omitempty"`
	IncludeDeleted bool     `json:"include_deleted" yaml:"include_deleted"`
	DeletedOnly    bool     `json:"deleted_only" yaml:"deleted_only"`
	MaxResults     int      `json:"max_results" yaml:"max_results"`
}

// SizeClass represents file size categories for display
type SizeClass string

const (
	SizeClassTiny   SizeClass = "tiny"   // < 1KiB
	SizeClassSmall  SizeClass = "small"  // < 1MiB
	SizeClassMedium SizeClass = "medium" // < 100MiB
	SizeClassLarge  SizeClass = "large"  // < 1GiB
	SizeClassHuge   SizeClass = "huge"   // >= 1GiB
)

// GetSizeClass returns the size class for display purposes
func (f *FileResult) GetSizeClass() SizeClass {
	switch {
	case f.Size < units.KiB:
		return SizeClassTiny
	case f.Size < units.MiB:
		return SizeClassSmall
	case f.Size < 100*units.MiB:
		return SizeClassMedium
	case f.Size < units.GiB:
		return SizeClassLarge
	default:
		return SizeClassHuge
	}
}

// FormatSize returns a human-readable size string
func (f *FileResult) FormatSize() string {
	return units.BytesSize(float64(f.Size))
}
