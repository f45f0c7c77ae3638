package app

import (
	"errors"
	"fmt"
)

// ImageTarget represents image and filesystem selection across commands
type ImageTarget struct {
	Path      string
	Offset    int64
	Partition int
	FsType    string
}

// Validate ensures the image target is valid
func (it *ImageTarget) Validate() error {
	if it.Path == "" {
		return NewError(ErrCodeArg, "image path cannot be empty", nil)
	}
	if it.Offset < 0 {
		return NewError(ErrCodeArg, fmt.Sprintf("negative offset %d", it.Offset), nil)
	}
	if it.Offset != 0 && it.Partition > 0 {
		return NewError(ErrCodeArg, "cannot specify both offset and partition", nil)
	}
	switch it.FsType {
	case "", "auto", "ext", "ufs", "ufs1b":
	default:
		return NewError(ErrCodeArg, fmt.Sprintf("unknown filesystem type %q", it.FsType), nil)
	}
	return nil
}

// String returns a string representation of the image target
func (it *ImageTarget) String() string {
	if it.Partition > 0 {
		return fmt.Sprintf("%s (partition %d)", it.Path, it.Partition)
	}
	if it.Offset != 0 {
		return fmt.Sprintf("%s (offset %d)", it.Path, it.Offset)
	}
	return it.Path
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Error kinds surfaced by the filesystem core
const (
	ErrCodeArg       = "ARG"
	ErrCodeMagic     = "MAGIC"
	ErrCodeCorrupt   = "CORRUPT"
	ErrCodeRead      = "READ"
	ErrCodeWrite     = "WRITE"
	ErrCodeInodeCor  = "INODE_COR"
	ErrCodeInodeNum  = "INODE_NUM"
	ErrCodeWalkRange = "WALK_RNG"
	ErrCodeFileWalk  = "FWALK"
	ErrCodeRecover   = "RECOVER"
	ErrCodeUnsupFunc = "UNSUPFUNC"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Errorf creates a CommonError with a formatted message and no cause
func Errorf(code, format string, args ...interface{}) *CommonError {
	return &CommonError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsKind reports whether any CommonError in err's chain carries code
func IsKind(err error, code string) bool {
	for err != nil {
		var ce *CommonError
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Code == code {
			return true
		}
		err = ce.Cause
	}
	return false
}

// KindOf returns the code of the outermost CommonError in err's chain
func KindOf(err error) string {
	var ce *CommonError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
