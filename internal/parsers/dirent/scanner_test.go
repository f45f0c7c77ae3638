package dirent

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeV2 mirrors the ext post-2.2 layout
func decodeV2(b []byte) Header {
	return Header{
		Inum:    binary.LittleEndian.Uint32(b[0:4]),
		RecLen:  binary.LittleEndian.Uint16(b[4:6]),
		NameLen: uint16(b[6]),
		Type:    b[7],
	}
}

func putEntry(buf []byte, off int, inum uint32, recLen uint16, typ uint8, name string) {
	binary.LittleEndian.PutUint32(buf[off:], inum)     // inode
	binary.LittleEndian.PutUint16(buf[off+4:], recLen) // rec_len
	buf[off+6] = byte(len(name))                       // name_len
	buf[off+7] = typ                                   // file_type
	copy(buf[off+8:], name)
}

func TestMinRecLen(t *testing.T) {
	assert.Equal(t, 12, MinRecLen(1))
	assert.Equal(t, 12, MinRecLen(4))
	assert.Equal(t, 16, MinRecLen(5))
	assert.Equal(t, 264, MinRecLen(255))
}

func TestParseDotEntriesWithEmptySlack(t *testing.T) {
	buf := make([]byte, 512)
	putEntry(buf, 0, 11, 12, 2, ".")
	putEntry(buf, 12, 2, 500, 2, "..")

	entries := Parse(buf, 100, false, decodeV2)
	require.Len(t, entries, 2)

	assert.Equal(t, ".", entries[0].Name)
	assert.Equal(t, uint32(11), entries[0].Inum)
	assert.True(t, entries[0].Allocated)
	assert.Equal(t, "..", entries[1].Name)
	assert.Equal(t, uint32(2), entries[1].Inum)
	assert.True(t, entries[1].Allocated)
}

func TestParseRecoversSlackResidue(t *testing.T) {
	buf := make([]byte, 512)
	putEntry(buf, 0, 11, 12, 2, ".")
	// ".." absorbed the record of a deleted file
	putEntry(buf, 12, 2, 500, 2, "..")
	putEntry(buf, 24, 13, 20, 1, "deleted.txt")
	putEntry(buf, 44, 14, 468, 1, "gone")

	entries := Parse(buf, 100, false, decodeV2)

	type summary struct {
		Name      string
		Inum      uint32
		Offset    int
		Allocated bool
	}
	var got []summary
	for _, e := range entries {
		got = append(got, summary{e.Name, e.Inum, e.Offset, e.Allocated})
	}
	want := []summary{
		{".", 11, 0, true},
		{"..", 2, 12, true},
		{"deleted.txt", 13, 24, false},
		{"gone", 14, 44, false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSkipsCorruptRecords(t *testing.T) {
	tests := []struct {
		name   string
		inum   uint32
		recLen uint16
		label  string
	}{
		{"inode beyond last", 5000, 500, "big"},
		{"rec_len not aligned", 12, 498, "odd"},
		{"rec_len too small", 12, 8, "small"},
		{"rec_len past chunk", 12, 600, "long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 512)
			putEntry(buf, 0, 11, 12, 2, ".")
			putEntry(buf, 12, tt.inum, tt.recLen, 1, tt.label)

			entries := Parse(buf, 100, false, decodeV2)
			require.Len(t, entries, 1)
			assert.Equal(t, ".", entries[0].Name)
		})
	}
}

func TestParseDeletedParentAndZeroInode(t *testing.T) {
	buf := make([]byte, 512)
	putEntry(buf, 0, 0, 12, 1, "a")
	putEntry(buf, 12, 12, 500, 1, "b")

	entries := Parse(buf, 100, false, decodeV2)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Allocated, "inode 0 marks a removed entry")
	assert.True(t, entries[1].Allocated)

	entries = Parse(buf, 100, true, decodeV2)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.False(t, e.Allocated)
	}
}

func TestParseEntriesSatisfyValidity(t *testing.T) {
	buf := make([]byte, 1024)
	for i := range buf {
		buf[i] = byte(i * 7)
	}
	putEntry(buf, 0, 3, 16, 1, "abcde")

	for _, e := range Parse(buf, 4096, false, decodeV2) {
		assert.GreaterOrEqual(t, int(e.NameLen), 1)
		assert.LessOrEqual(t, int(e.NameLen), MaxNameLen)
		assert.LessOrEqual(t, uint64(e.Inum), uint64(4096))
		assert.Zero(t, e.RecLen%4)
		assert.GreaterOrEqual(t, int(e.RecLen), MinRecLen(int(e.NameLen)))
	}
}
