package services

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-unixfs/internal/types"
	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

func TestFsStatExt(t *testing.T) {
	fs := openTestFS(t, buildExtImage(t), "")

	var buf bytes.Buffer
	require.NoError(t, fs.FsStat(&buf))
	out := buf.String()

	for _, want := range []string{
		"FILE SYSTEM INFORMATION",
		"File System Type: Ext4",
		"Volume Name: testvol",
		"Volume ID: 6f1e4c2a-0b55-4a3e-9d0c-51227a193308",
		"State: Unmounted properly",
		"Journal ID: 8",
		"Inode Range: 1 - 33",
		"Root Directory: 2",
		"Block Range: 0 - 1023",
		"Block Size: 4096",
		"BLOCK GROUP INFORMATION",
		"Group: 0:",
		"    Inode Table: 4 - 5",
	} {
		assert.Contains(t, out, want)
	}
}

func TestFsStatUFS(t *testing.T) {
	fs := openTestFS(t, buildUFS2Image(t, binary.BigEndian), "")

	var buf bytes.Buffer
	require.NoError(t, fs.FsStat(&buf))
	out := buf.String()

	for _, want := range []string{
		"File System Type: UFS2",
		"Endian: BigEndian",
		"Volume Name: ufsvol",
		"Fragment Range: 0 - 1023",
		"Fragment Size: 2048",
		"CYLINDER GROUP INFORMATION",
		"    Data Fragments: 56 - 1023",
	} {
		assert.Contains(t, out, want)
	}
}

func TestFsStatWriteError(t *testing.T) {
	fs := openTestFS(t, buildExtImage(t), "")

	err := fs.FsStat(failingWriter{})
	assert.True(t, app.IsKind(err, app.ErrCodeWrite), "got %v", err)
}

func TestIStat(t *testing.T) {
	ext := openTestFS(t, buildExtImage(t), "")
	ufs := openTestFS(t, buildUFS2Image(t, binary.LittleEndian), "")

	tests := []struct {
		name    string
		fs      *FileSystem
		inum    types.Inum
		numAddr int
		want    []string
		absent  []string
	}{
		{
			name: "sparse file",
			fs:   ext,
			inum: 18,
			want: []string{"inode: 18\nAllocated\n", "size: 12288", "\nDirect Blocks:\n0 0 520 \n"},
		},
		{
			name: "extent index",
			fs:   ext,
			inum: 19,
			want: []string{"\nDirect Blocks:\n540 541 \n", "\nIndirect Blocks:\n530 \n"},
		},
		{
			name:   "deleted file",
			fs:     ext,
			inum:   14,
			want:   []string{"Not Allocated", "Deleted:"},
			absent: []string{"Indirect Blocks"},
		},
		{
			name: "partly recovered",
			fs:   ext,
			inum: 21,
			want: []string{"Warning: block list was only partly recovered"},
		},
		{
			name: "symlink",
			fs:   ext,
			inum: 17,
			want: []string{"symbolic link to: ../hello.txt", "mode: lrwxrwxrwx"},
		},
		{
			name:    "limited address list",
			fs:      ufs,
			inum:    3,
			numAddr: 3,
			want:    []string{"\nDirect Blocks:\n100 101 102 \n", "\nIndirect Blocks:\n200 \n"},
			absent:  []string{"103 "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.fs.IStat(&buf, tt.inum, tt.numAddr, 0))
			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, out, a)
			}
		})
	}
}

func TestIStatTimeSkew(t *testing.T) {
	fs := openTestFS(t, buildExtImage(t), "")

	var buf bytes.Buffer
	require.NoError(t, fs.IStat(&buf, 12, 0, 3600))
	out := buf.String()

	assert.Contains(t, out, "Adjusted Inode Times:")
	skewed := time.Unix(testCTime-3600, 0).UTC().Format("2006-01-02 15:04:05")
	assert.Contains(t, out, skewed)
}

func TestIStatErrors(t *testing.T) {
	fs := openTestFS(t, buildExtImage(t), "")

	err := fs.IStat(&bytes.Buffer{}, 0, 0, 0)
	assert.True(t, app.IsKind(err, app.ErrCodeInodeNum))
}
