package ext

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-unixfs/internal/helpers"
	"github.com/deploymenttheory/go-unixfs/internal/types"
)

// ParseExtentHeader decodes the 12 byte header that starts every extent node
func ParseExtentHeader(data []byte, endian binary.ByteOrder) (types.ExtExtentHeader, error) {
	var hdr types.ExtExtentHeader
	if len(data) < types.ExtExtentHeaderSize {
		return hdr, fmt.Errorf("data too small for extent header: %d bytes", len(data))
	}
	hdr.Magic = endian.Uint16(data[0:2])
	hdr.Entries = endian.Uint16(data[2:4])
	hdr.Max = endian.Uint16(data[4:6])
	hdr.Depth = endian.Uint16(data[6:8])
	hdr.Generation = endian.Uint32(data[8:12])
	return hdr, nil
}

// ValidateExtentHeader checks the magic and that entries fit in a node of
// nodeSize bytes
func ValidateExtentHeader(hdr types.ExtExtentHeader, nodeSize int) error {
	if hdr.Magic != types.ExtExtentMagic {
		return fmt.Errorf("invalid extent header magic 0x%04x", hdr.Magic)
	}
	capacity := (nodeSize - types.ExtExtentHeaderSize) / types.ExtExtentEntrySize
	if int(hdr.Entries) > capacity {
		return fmt.Errorf("extent header claims %d entries, node holds %d", hdr.Entries, capacity)
	}
	return nil
}

// ParseExtents decodes count leaf records following the header in node
func ParseExtents(node []byte, endian binary.ByteOrder, count int) ([]types.ExtExtent, error) {
	if err := checkEntries(node, count); err != nil {
		return nil, err
	}
	extents := make([]types.ExtExtent, count)
	for i := range extents {
		off := types.ExtExtentHeaderSize + i*types.ExtExtentEntrySize
		extents[i] = types.ExtExtent{
			Block:   endian.Uint32(node[off : off+4]),
			Len:     endian.Uint16(node[off+4 : off+6]),
			StartHi: endian.Uint16(node[off+6 : off+8]),
			StartLo: endian.Uint32(node[off+8 : off+12]),
		}
	}
	return extents, nil
}

// ParseExtentIndexes decodes count index records following the header in node
func ParseExtentIndexes(node []byte, endian binary.ByteOrder, count int) ([]types.ExtExtentIdx, error) {
	if err := checkEntries(node, count); err != nil {
		return nil, err
	}
	idx := make([]types.ExtExtentIdx, count)
	for i := range idx {
		off := types.ExtExtentHeaderSize + i*types.ExtExtentEntrySize
		idx[i] = types.ExtExtentIdx{
			Block:  endian.Uint32(node[off : off+4]),
			LeafLo: endian.Uint32(node[off+4 : off+8]),
			LeafHi: endian.Uint16(node[off+8 : off+10]),
		}
	}
	return idx, nil
}

func checkEntries(node []byte, count int) error {
	need := types.ExtExtentHeaderSize + count*types.ExtExtentEntrySize
	if count < 0 || len(node) < need {
		return fmt.Errorf("extent node of %d bytes cannot hold %d entries", len(node), count)
	}
	return nil
}

// ExtentStart returns the physical start block of a leaf
func ExtentStart(e types.ExtExtent) uint64 {
	return helpers.U48(e.StartLo, e.StartHi)
}

// ExtentLength returns the block count of a leaf and whether it is
// uninitialized (allocated but never written)
func ExtentLength(e types.ExtExtent) (uint64, bool) {
	if e.Len > types.ExtExtentInitMaxLen {
		return uint64(e.Len) - types.ExtExtentInitMaxLen, true
	}
	return uint64(e.Len), false
}

// IndexLeaf returns the physical block of the child node of an index record
func IndexLeaf(idx types.ExtExtentIdx) uint64 {
	return helpers.U48(idx.LeafLo, idx.LeafHi)
}
