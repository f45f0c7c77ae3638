// Package dirent scans directory blocks for live entries and for the residue
// of deleted entries left in the slack of their neighbours. The scanner is
// shared by the ext and FFS readers; each supplies a Decoder for its on-disk
// layout.
package dirent

const (
	// HeaderSize is the fixed prefix shared by every supported layout
	HeaderSize = 8
	// MaxNameLen is the longest name an entry can carry
	MaxNameLen = 255
)

// Header is the decoded fixed prefix of a directory entry.
type Header struct {
	Inum    uint32
	RecLen  uint16
	NameLen uint16
	// Type is the on-disk type byte, 0 for layouts that carry none
	Type uint8
}

// Decoder decodes the HeaderSize bytes at the start of b.
type Decoder func(b []byte) Header

// Entry is a candidate accepted by Parse.
type Entry struct {
	Header
	Name      string
	Offset    int
	Allocated bool
}

// MinRecLen returns the smallest record that can hold a name of n bytes
func MinRecLen(n int) int {
	return (n + HeaderSize + 3) &^ 3
}

// Valid reports whether h can be an entry starting at idx of a chunk of
// chunkLen bytes in a directory whose highest inode number is lastInum.
func (h Header) Valid(idx, chunkLen int, lastInum uint64) bool {
	nameLen := int(h.NameLen)
	recLen := int(h.RecLen)
	switch {
	case uint64(h.Inum) > lastInum:
		return false
	case nameLen == 0 || nameLen > MaxNameLen:
		return false
	case recLen < MinRecLen(nameLen):
		return false
	case recLen%4 != 0:
		return false
	case idx+recLen > chunkLen:
		return false
	}
	return true
}

// Parse scans one directory chunk. Entries inside the slack of a previous
// entry, entries with inode 0 and every entry of a deleted directory are
// reported unallocated. Candidates that fail validation are skipped four
// bytes at a time, so one corrupt record never hides the rest of the chunk.
func Parse(buf []byte, lastInum uint64, parentDeleted bool, decode Decoder) []Entry {
	var entries []Entry
	minDirSize := MinRecLen(1)

	// dellen counts the slack bytes still to be scanned after the last
	// allocated entry
	dellen := 0
	minRecLen := 4
	for idx := 0; idx <= len(buf)-minDirSize; idx += minRecLen {
		h := decode(buf[idx:])
		minRecLen = MinRecLen(int(h.NameLen))

		if !h.Valid(idx, len(buf), lastInum) {
			minRecLen = 4
			if dellen > 0 {
				dellen -= 4
			}
			continue
		}

		// too big to fit in what is left of the slack
		if dellen > 0 && dellen < minRecLen {
			minRecLen = 4
			dellen -= 4
			continue
		}

		allocated := dellen <= 0 && h.Inum != 0 && !parentDeleted
		if !allocated && dellen > 0 {
			dellen -= minRecLen
		}

		start := idx + HeaderSize
		entries = append(entries, Entry{
			Header:    h,
			Name:      string(buf[start : start+int(h.NameLen)]),
			Offset:    idx,
			Allocated: allocated,
		})

		if dellen <= 0 {
			if int(h.RecLen)-minRecLen >= minDirSize {
				dellen = int(h.RecLen) - minRecLen
			} else {
				minRecLen = int(h.RecLen)
			}
		}
	}
	return entries
}
