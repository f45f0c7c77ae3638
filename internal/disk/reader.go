package disk

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

// Reader performs byte-accurate reads at filesystem-relative offsets. It wraps
// the image (or device) reader, which it does not own.
type Reader struct {
	dev    io.ReaderAt
	offset int64 // byte offset of the filesystem inside the image
	size   int64 // bytes available from offset to the end of the image
	stats  *Statistics
}

// Statistics tracks read activity
type Statistics struct {
	reads      int64
	bytesRead  int64
	shortReads int64
	mu         sync.RWMutex
}

// NewReader creates a Reader for a filesystem that starts offset bytes into
// dev. imageSize is the full size of dev; a negative value disables the
// end-of-image check.
func NewReader(dev io.ReaderAt, offset, imageSize int64) *Reader {
	size := int64(-1)
	if imageSize >= 0 {
		size = imageSize - offset
		if size < 0 {
			size = 0
		}
	}
	return &Reader{
		dev:    dev,
		offset: offset,
		size:   size,
		stats:  &Statistics{},
	}
}

// ReadAt reads len(p) bytes at filesystem offset off. Anything less than a
// full read is reported as a READ error.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, app.Errorf(app.ErrCodeArg, "negative read offset %d", off)
	}
	if r.size >= 0 && off+int64(len(p)) > r.size {
		r.record(0, true)
		return 0, app.Errorf(app.ErrCodeRead, "read of %d bytes at offset %d is beyond the image (%d bytes)", len(p), off, r.size)
	}

	n, err := r.dev.ReadAt(p, r.offset+off)
	if n == len(p) {
		r.record(n, false)
		return n, nil
	}
	r.record(n, true)
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return n, app.NewError(app.ErrCodeRead, fmt.Sprintf("short read at offset %d: got %d of %d bytes", off, n, len(p)), err)
}

// ReadBlock reads one block of blockSize bytes at block address addr
func (r *Reader) ReadBlock(addr uint64, blockSize uint32) ([]byte, error) {
	buf := make([]byte, blockSize)
	if _, err := r.ReadAt(buf, int64(addr)*int64(blockSize)); err != nil {
		return nil, fmt.Errorf("failed to read block %d: %w", addr, err)
	}
	return buf, nil
}

// ReadBlocks reads count consecutive blocks starting at addr
func (r *Reader) ReadBlocks(addr uint64, count uint64, blockSize uint32) ([]byte, error) {
	buf := make([]byte, count*uint64(blockSize))
	if _, err := r.ReadAt(buf, int64(addr)*int64(blockSize)); err != nil {
		return nil, fmt.Errorf("failed to read %d blocks at %d: %w", count, addr, err)
	}
	return buf, nil
}

// Size returns the number of bytes from the filesystem start to the image end,
// or -1 when unknown
func (r *Reader) Size() int64 {
	return r.size
}

// Offset returns the byte offset of the filesystem inside the image
func (r *Reader) Offset() int64 {
	return r.offset
}

func (r *Reader) record(n int, short bool) {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()
	r.stats.reads++
	r.stats.bytesRead += int64(n)
	if short {
		r.stats.shortReads++
	}
}

// Stats returns a snapshot of the read statistics
func (r *Reader) Stats() (reads, bytesRead, shortReads int64) {
	r.stats.mu.RLock()
	defer r.stats.mu.RUnlock()
	return r.stats.reads, r.stats.bytesRead, r.stats.shortReads
}
