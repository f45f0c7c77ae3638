// File: internal/interfaces/block_reader.go
package interfaces

// BlockReader provides filesystem-relative reads over an image
type BlockReader interface {
	// ReadAt reads len(p) bytes at filesystem byte offset off; a short read is an error
	ReadAt(p []byte, off int64) (int, error)

	// ReadBlock reads one block of blockSize bytes at block address addr
	ReadBlock(addr uint64, blockSize uint32) ([]byte, error)

	// ReadBlocks reads count consecutive blocks starting at addr
	ReadBlocks(addr uint64, count uint64, blockSize uint32) ([]byte, error)

	// Size returns the bytes available from the filesystem start, or -1 when unknown
	Size() int64
}
