package discover

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/gobwas/glob"

	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

const dateLayout = "2006-01-02"

// Validate validates a discovery request
func (r *Request) Validate() error {
	// Validate image target
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeArg, "invalid image target", err)
	}

	// Check for conflicting search criteria
	if r.NamePattern != "" && r.NameRegex != "" {
		return app.NewError(app.ErrCodeArg, "cannot specify both name pattern and regex", nil)
	}
	if r.NamePattern != "" {
		if _, err := glob.Compile(r.NamePattern); err != nil {
			return app.NewError(app.ErrCodeArg, "invalid name pattern", err)
		}
	}
	if r.NameRegex != "" {
		if _, err := regexp.Compile(r.NameRegex); err != nil {
			return app.NewError(app.ErrCodeArg, "invalid regex pattern", err)
		}
	}

	// Validate size formats
	var minSize, maxSize int64
	if r.MinSize != "" {
		size, err := ParseSize(r.MinSize)
		if err != nil {
			return app.NewError(app.ErrCodeArg, "invalid min-size format", err)
		}
		minSize = size
	}
	if r.MaxSize != "" {
		size, err := ParseSize(r.MaxSize)
		if err != nil {
			return app.NewError(app.ErrCodeArg, "invalid max-size format", err)
		}
		maxSize = size
		if minSize > maxSize {
			return app.NewError(app.ErrCodeArg, "min-size is larger than max-size", nil)
		}
	}

	// Validate date formats
	if r.ModifiedAfter != "" {
		if _, err := time.Parse(dateLayout, r.ModifiedAfter); err != nil {
			return app.NewError(app.ErrCodeArg, "invalid date format for modified-after, use YYYY-MM-DD", err)
		}
	}
	if r.ModifiedBefore != "" {
		if _, err := time.Parse(dateLayout, r.ModifiedBefore); err != nil {
			return app.NewError(app.ErrCodeArg, "invalid date format for modified-before, use YYYY-MM-DD", err)
		}
	}

	// Validate max results
	if r.MaxResults < 1 || r.MaxResults > 10000 {
		return app.NewError(app.ErrCodeArg, "max results must be between 1 and 10000", nil)
	}

	if r.DeletedOnly && !r.IncludeDeleted {
		r.IncludeDeleted = true
	}

	return nil
}

// ParseSize converts size strings like "10MB" or "1.5 GiB" to bytes. Units
// are binary: 1KB is 1024 bytes.
func ParseSize(size string) (int64, error) {
	size = strings.ReplaceAll(strings.TrimSpace(size), " ", "")
	if size == "" {
		return 0, fmt.Errorf("empty size")
	}
	n, err := units.RAMInBytes(size)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size %q", size)
	}
	return n, nil
}
