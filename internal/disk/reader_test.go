package disk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-unixfs/pkg/app"
)

func newTestImage() []byte {
	img := make([]byte, 8192)
	for i := range img {
		img[i] = byte(i / 1024)
	}
	return img
}

func TestReaderAppliesOffset(t *testing.T) {
	img := newTestImage()
	r := NewReader(bytes.NewReader(img), 2048, int64(len(img)))

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{2, 2, 2, 2}, buf, "offset 0 maps to image byte 2048")
	assert.Equal(t, int64(6144), r.Size())
}

func TestReadBlock(t *testing.T) {
	img := newTestImage()
	r := NewReader(bytes.NewReader(img), 0, int64(len(img)))

	blk, err := r.ReadBlock(3, 1024)
	require.NoError(t, err)
	assert.Len(t, blk, 1024)
	assert.Equal(t, byte(3), blk[0])
	assert.Equal(t, byte(3), blk[1023])

	blks, err := r.ReadBlocks(6, 2, 1024)
	require.NoError(t, err)
	assert.Equal(t, byte(6), blks[0])
	assert.Equal(t, byte(7), blks[1024])
}

func TestReadBeyondImage(t *testing.T) {
	img := newTestImage()
	r := NewReader(bytes.NewReader(img), 0, int64(len(img)))

	_, err := r.ReadBlock(8, 1024)
	require.Error(t, err)
	assert.True(t, app.IsKind(err, app.ErrCodeRead))

	reads, _, short := r.Stats()
	assert.Equal(t, int64(1), reads)
	assert.Equal(t, int64(1), short)
}

func TestShortReadFromDevice(t *testing.T) {
	img := newTestImage()
	// size unknown: the device itself reports the short read
	r := NewReader(bytes.NewReader(img), 0, -1)

	buf := make([]byte, 2048)
	n, err := r.ReadAt(buf, 7168)
	require.Error(t, err)
	assert.Equal(t, 1024, n)
	assert.True(t, app.IsKind(err, app.ErrCodeRead))

	_, err = r.ReadAt(buf, -1)
	assert.True(t, app.IsKind(err, app.ErrCodeArg))
}
