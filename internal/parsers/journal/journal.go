// Package journal decodes the control blocks of an ext3/ext4 (JBD/JBD2)
// journal. Journal structures are always big-endian.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-unixfs/internal/interfaces"
	"github.com/deploymenttheory/go-unixfs/internal/types"
)

var endian = binary.BigEndian

// ErrBadMagic is returned when a block does not start with the journal magic
var ErrBadMagic = errors.New("journal magic not found")

// superblockReader implements the JournalSuperblockReader interface
type superblockReader struct {
	sb *types.JournalSuperblock
}

// NewSuperblockReader decodes the journal superblock held in the first
// journal block
func NewSuperblockReader(data []byte) (interfaces.JournalSuperblockReader, error) {
	sb, err := ParseSuperblock(data)
	if err != nil {
		return nil, err
	}
	return &superblockReader{sb: sb}, nil
}

// ParseSuperblock parses raw bytes into a JournalSuperblock structure. Copies
// of the superblock can also appear inside the log.
func ParseSuperblock(data []byte) (*types.JournalSuperblock, error) {
	if len(data) < 84 {
		return nil, fmt.Errorf("data too small for journal superblock: %d bytes", len(data))
	}

	hdr, ok := ParseHeader(data)
	if !ok {
		return nil, ErrBadMagic
	}
	if hdr.BlockType != types.JournalBlockSuperblockV1 && hdr.BlockType != types.JournalBlockSuperblockV2 {
		return nil, fmt.Errorf("journal block type %d is not a superblock", hdr.BlockType)
	}

	sb := &types.JournalSuperblock{Header: hdr}
	sb.BlockSize = endian.Uint32(data[12:16])
	sb.MaxLen = endian.Uint32(data[16:20])
	sb.First = endian.Uint32(data[20:24])
	sb.Sequence = endian.Uint32(data[24:28])
	sb.Start = endian.Uint32(data[28:32])
	sb.Errno = int32(endian.Uint32(data[32:36]))

	// Version 2 fields
	if hdr.BlockType == types.JournalBlockSuperblockV2 {
		sb.FeatureCompat = endian.Uint32(data[36:40])
		sb.FeatureIncompat = endian.Uint32(data[40:44])
		sb.FeatureROCompat = endian.Uint32(data[44:48])
		copy(sb.UUID[:], data[48:64])
		sb.NrUsers = endian.Uint32(data[64:68])
		sb.ChecksumType = data[80]
	}

	return sb, nil
}

// FeatureNames returns the names of the compat and incompat features set in
// sb, compat first, each in bit order
func FeatureNames(sb *types.JournalSuperblock) []string {
	var names []string
	for _, set := range []struct {
		bits  uint32
		names map[uint32]string
	}{
		{sb.FeatureCompat, types.JournalCompatNames},
		{sb.FeatureIncompat, types.JournalIncompatNames},
	} {
		for bit := uint32(1); bit != 0; bit <<= 1 {
			if set.bits&bit == 0 {
				continue
			}
			if name, ok := set.names[bit]; ok {
				names = append(names, name)
			} else {
				names = append(names, fmt.Sprintf("Unknown (0x%x)", bit))
			}
		}
	}
	return names
}

// ChecksumName returns the name of a commit block checksum type, or "" when
// the commit carries no checksum
func ChecksumName(t uint8) string {
	if t == 0 {
		return ""
	}
	if name, ok := types.JournalChecksumNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", t)
}

// ParseHeader decodes the common block header and reports whether the block
// carries the journal magic
func ParseHeader(data []byte) (types.JournalHeader, bool) {
	var hdr types.JournalHeader
	if len(data) < types.JournalHeaderSize {
		return hdr, false
	}
	hdr.Magic = endian.Uint32(data[0:4])
	hdr.BlockType = endian.Uint32(data[4:8])
	hdr.Sequence = endian.Uint32(data[8:12])
	return hdr, hdr.Magic == types.JournalMagic
}

// Superblock returns the decoded superblock fields
func (sr *superblockReader) Superblock() *types.JournalSuperblock {
	return sr.sb
}

// Version returns 1 or 2
func (sr *superblockReader) Version() int {
	if sr.sb.Header.BlockType == types.JournalBlockSuperblockV2 {
		return 2
	}
	return 1
}

// BlockSize returns the journal block size
func (sr *superblockReader) BlockSize() uint32 {
	return sr.sb.BlockSize
}

// FirstBlock returns the first log block
func (sr *superblockReader) FirstBlock() uint32 {
	return sr.sb.First
}

// LastBlock returns the last journal block
func (sr *superblockReader) LastBlock() uint32 {
	if sr.sb.MaxLen == 0 {
		return 0
	}
	return sr.sb.MaxLen - 1
}

// StartSequence returns the sequence of the first transaction to replay
func (sr *superblockReader) StartSequence() uint32 {
	return sr.sb.Sequence
}

// StartBlock returns the block the log starts at
func (sr *superblockReader) StartBlock() uint32 {
	return sr.sb.Start
}

// HasIncompat tests an incompatible feature bit
func (sr *superblockReader) HasIncompat(flag uint32) bool {
	return sr.sb.FeatureIncompat&flag != 0
}

// TagSize returns the size of a descriptor tag without its UUID
func (sr *superblockReader) TagSize() int {
	return TagSize(sr.sb.FeatureIncompat)
}

// TagSize returns the descriptor tag size for a set of incompat features.
// CSUM_V2 tags carry two trailing bytes on top of the v1 layout.
func TagSize(incompat uint32) int {
	if incompat&types.JournalIncompatCsumV3 != 0 {
		return 16
	}
	size := 8
	if incompat&types.JournalIncompat64Bit != 0 {
		size = 12
	}
	if incompat&types.JournalIncompatCsumV2 != 0 {
		size += 2
	}
	return size
}

// ParseTags decodes the tag array of a descriptor block. Parsing stops at
// the tag flagged LAST or when the block is exhausted.
func ParseTags(data []byte, incompat uint32) []types.JournalTag {
	tagSize := TagSize(incompat)
	end := len(data)
	if incompat&(types.JournalIncompatCsumV2|types.JournalIncompatCsumV3) != 0 {
		end -= 4 // descriptor tail checksum
	}

	var tags []types.JournalTag
	for off := types.JournalHeaderSize; off+tagSize <= end; {
		tag := types.JournalTag{Block: uint64(endian.Uint32(data[off : off+4]))}
		if incompat&types.JournalIncompatCsumV3 != 0 {
			tag.Flags = endian.Uint32(data[off+4 : off+8])
		} else {
			// JBD2 keeps a 16-bit checksum in front of 16-bit flags
			tag.Flags = endian.Uint32(data[off+4:off+8]) & 0xffff
		}
		if incompat&types.JournalIncompat64Bit != 0 {
			tag.Block |= uint64(endian.Uint32(data[off+8:off+12])) << 32
		}
		off += tagSize

		if tag.Flags&types.JournalTagSameID == 0 {
			if off+types.JournalUUIDSize > len(data) {
				break
			}
			var id types.UUID
			copy(id[:], data[off:off+types.JournalUUIDSize])
			tag.UUID = &id
			off += types.JournalUUIDSize
		}

		tags = append(tags, tag)
		if tag.Flags&types.JournalTagLast != 0 {
			break
		}
	}
	return tags
}

// ParseCommit decodes a commit block
func ParseCommit(data []byte) (*types.JournalCommit, error) {
	if len(data) < 60 {
		return nil, fmt.Errorf("data too small for commit block: %d bytes", len(data))
	}
	hdr, ok := ParseHeader(data)
	if !ok {
		return nil, ErrBadMagic
	}
	return &types.JournalCommit{
		Header:       hdr,
		ChecksumType: data[12],
		ChecksumSize: data[13],
		Checksum:     endian.Uint32(data[16:20]),
		CommitSec:    endian.Uint64(data[48:56]),
		CommitNsec:   endian.Uint32(data[56:60]),
	}, nil
}

// ParseRevoke decodes a revoke block. r_count includes the 16 byte header.
func ParseRevoke(data []byte, incompat uint32) (*types.JournalRevoke, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("data too small for revoke block: %d bytes", len(data))
	}
	hdr, ok := ParseHeader(data)
	if !ok {
		return nil, ErrBadMagic
	}

	count := int(endian.Uint32(data[12:16]))
	if count > len(data) {
		count = len(data)
	}
	recSize := 4
	if incompat&types.JournalIncompat64Bit != 0 {
		recSize = 8
	}

	revoke := &types.JournalRevoke{Header: hdr}
	for off := 16; off+recSize <= count; off += recSize {
		if recSize == 8 {
			revoke.Blocks = append(revoke.Blocks, endian.Uint64(data[off:off+8]))
		} else {
			revoke.Blocks = append(revoke.Blocks, uint64(endian.Uint32(data[off:off+4])))
		}
	}
	return revoke, nil
}
