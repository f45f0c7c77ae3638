package services

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-unixfs/internal/types"
)

// ext2 test image: 64 blocks of 1 KiB, one group, 16 inodes of 128 bytes
//
//	1 superblock, 2 descriptors, 3 block bitmap, 4 inode bitmap, 5-6 inode table
//	10 root directory, 11 hello.txt, 12 old.log (freed)
//	13 docs directory, 14-15 docs/readme.md
const (
	imgBlockSize = 1024
	imgBlocks    = 64
	imgInodes    = 16
	imgItable    = 5
	imgMTime     = 1600000000
)

type imgBuilder struct {
	data []byte
}

func (b *imgBuilder) block(n int) []byte {
	return b.data[n*imgBlockSize : (n+1)*imgBlockSize]
}

func (b *imgBuilder) setBit(blk, bit int) {
	b.block(blk)[bit/8] |= 1 << (uint(bit) % 8)
}

func (b *imgBuilder) putInode(inum int, mode uint16, size uint32, alloc bool, blocks ...uint32) {
	le := binary.LittleEndian
	off := imgItable*imgBlockSize + (inum-1)*128
	in := b.data[off : off+128]
	le.PutUint16(in[0:2], mode)       // i_mode
	le.PutUint32(in[4:8], size)       // i_size
	le.PutUint32(in[8:12], imgMTime)  // i_atime
	le.PutUint32(in[12:16], imgMTime) // i_ctime
	le.PutUint32(in[16:20], imgMTime) // i_mtime
	le.PutUint16(in[26:28], 1)        // i_links_count
	for i, blk := range blocks {
		le.PutUint32(in[40+i*4:44+i*4], blk) // i_block
	}
	if alloc {
		b.setBit(4, inum-1)
	} else {
		le.PutUint32(in[20:24], imgMTime+30) // i_dtime
	}
}

type imgDirent struct {
	off    int
	inum   uint32
	recLen uint16
	typ    uint8
	name   string
}

func (b *imgBuilder) putDirents(blk int, entries ...imgDirent) {
	le := binary.LittleEndian
	for _, d := range entries {
		e := b.block(blk)[d.off:]
		le.PutUint32(e[0:4], d.inum)   // inode
		le.PutUint16(e[4:6], d.recLen) // rec_len
		e[6] = uint8(len(d.name))      // name_len
		e[7] = d.typ                   // file_type
		copy(e[8:], d.name)
	}
}

func buildImage() []byte {
	le := binary.LittleEndian
	b := &imgBuilder{data: make([]byte, imgBlocks*imgBlockSize)}

	sb := b.block(1)
	le.PutUint32(sb[0:4], imgInodes)                    // s_inodes_count
	le.PutUint32(sb[4:8], imgBlocks)                    // s_blocks_count
	le.PutUint32(sb[12:16], 52)                         // s_free_blocks_count
	le.PutUint32(sb[16:20], 2)                          // s_free_inodes_count
	le.PutUint32(sb[20:24], 1)                          // s_first_data_block
	le.PutUint32(sb[32:36], 8192)                       // s_blocks_per_group
	le.PutUint32(sb[36:40], 8192)                       // s_frags_per_group
	le.PutUint32(sb[40:44], imgInodes)                  // s_inodes_per_group
	le.PutUint32(sb[48:52], imgMTime)                   // s_wtime
	le.PutUint16(sb[56:58], types.ExtMagic)             // s_magic
	le.PutUint16(sb[58:60], 1)                          // s_state: clean
	le.PutUint32(sb[76:80], 1)                          // s_rev_level: dynamic
	le.PutUint32(sb[84:88], 11)                         // s_first_ino
	le.PutUint16(sb[88:90], 128)                        // s_inode_size
	le.PutUint32(sb[96:100], types.ExtIncompatFiletype) // s_feature_incompat
	copy(sb[120:136], "svcvol")                         // s_volume_name

	gd := b.block(2)
	le.PutUint32(gd[0:4], 3)          // bg_block_bitmap
	le.PutUint32(gd[4:8], 4)          // bg_inode_bitmap
	le.PutUint32(gd[8:12], imgItable) // bg_inode_table
	le.PutUint16(gd[12:14], 52)       // bg_free_blocks_count
	le.PutUint16(gd[14:16], 2)        // bg_free_inodes_count
	le.PutUint16(gd[16:18], 2)        // bg_used_dirs_count

	// bit n of the block bitmap is block n+1
	for _, blk := range []int{1, 2, 3, 4, 5, 6, 10, 11, 13, 14, 15} {
		b.setBit(3, blk-1)
	}
	for i := 0; i < 11; i++ {
		b.setBit(4, i)
	}

	b.putInode(2, 040755, imgBlockSize, true, 10)
	b.putInode(12, 0100644, 12, true, 11)
	b.putInode(13, 0100600, 10, false, 12)
	b.putInode(14, 040755, imgBlockSize, true, 13)
	b.putInode(15, 0100644, 1500, true, 14, 15)

	b.putDirents(10,
		imgDirent{0, 2, 12, types.ExtDeDir, "."},
		imgDirent{12, 2, 12, types.ExtDeDir, ".."},
		imgDirent{24, 14, 12, types.ExtDeDir, "docs"},
		imgDirent{36, 12, 988, types.ExtDeRegular, "hello.txt"},
		imgDirent{56, 13, 968, types.ExtDeRegular, "old.log"}, // residue in the slack of hello.txt
	)
	b.putDirents(13,
		imgDirent{0, 14, 12, types.ExtDeDir, "."},
		imgDirent{12, 2, 12, types.ExtDeDir, ".."},
		imgDirent{24, 15, 1000, types.ExtDeRegular, "readme.md"},
	)

	copy(b.block(11), "hello world\n")
	copy(b.block(12), "stale data")
	copy(b.block(14), "# readme\n")
	copy(b.block(15), "second block")
	return b.data
}

// buildJournalImage adds a clean journal in inode 8 to the test image
//
//	20 superblock v2, start 0, sequence 3
//	21 descriptor, sequence 3, one tag for block 11
//	22 image of block 11
//	23 commit, sequence 3, CRC32 checksum
//	24 stale superblock copy, sequence 0
//	25 zeros
func buildJournalImage() []byte {
	le, be := binary.LittleEndian, binary.BigEndian
	b := &imgBuilder{data: buildImage()}

	sb := b.block(1)
	le.PutUint32(sb[92:96], types.ExtCompatHasJournal) // s_feature_compat
	le.PutUint32(sb[224:228], 8)                       // s_journal_inum
	for blk := 20; blk <= 25; blk++ {
		b.setBit(3, blk-1)
	}
	b.putInode(8, 0100600, 6*imgBlockSize, true, 20, 21, 22, 23, 24, 25)

	putHeader := func(blk []byte, blockType, seq uint32) {
		be.PutUint32(blk[0:4], types.JournalMagic) // h_magic
		be.PutUint32(blk[4:8], blockType)          // h_blocktype
		be.PutUint32(blk[8:12], seq)               // h_sequence
	}

	jsb := b.block(20)
	putHeader(jsb, types.JournalBlockSuperblockV2, 0)
	be.PutUint32(jsb[12:16], imgBlockSize)                // s_blocksize
	be.PutUint32(jsb[16:20], 6)                           // s_maxlen
	be.PutUint32(jsb[20:24], 1)                           // s_first
	be.PutUint32(jsb[24:28], 3)                           // s_sequence
	be.PutUint32(jsb[36:40], types.JournalCompatChecksum) // s_feature_compat
	be.PutUint32(jsb[40:44], types.JournalIncompatRevoke) // s_feature_incompat
	copy(jsb[48:64], "journal-uuid-001")                  // s_uuid

	desc := b.block(21)
	putHeader(desc, types.JournalBlockDescriptor, 3)
	be.PutUint32(desc[12:16], 11)                   // t_blocknr
	be.PutUint32(desc[16:20], types.JournalTagLast) // t_flags
	copy(desc[20:36], "journal-uuid-001")           // t_uuid

	copy(b.block(22), "hello world\n")

	commit := b.block(23)
	putHeader(commit, types.JournalBlockCommit, 3)
	commit[12] = types.JournalChecksumCRC32 // h_chksum_type
	commit[13] = 4                          // h_chksum_size
	be.PutUint32(commit[16:20], 0xcafef00d) // h_chksum[0]
	be.PutUint64(commit[48:56], imgMTime)   // h_commit_sec
	be.PutUint32(commit[56:60], 5)          // h_commit_nsec

	stale := b.block(24)
	putHeader(stale, types.JournalBlockSuperblockV2, 0)
	be.PutUint32(stale[12:16], imgBlockSize)
	be.PutUint32(stale[16:20], 6)
	be.PutUint32(stale[40:44], types.JournalIncompatRevoke|types.JournalIncompat64Bit)
	return b.data
}

// writeImage stores data in a temporary image file and returns its path
func writeImage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// partitionedImage places the test filesystem in partition 1 of an MBR
// image and leaves partition 2 empty
func partitionedImage() []byte {
	const part1, part2, sectors = 128, 256, imgBlocks * imgBlockSize / 512
	data := make([]byte, (part2+sectors)*512)

	entry := data[446:462]
	entry[4] = 0x83                                      // Linux
	binary.LittleEndian.PutUint32(entry[8:12], part1)    // first LBA
	binary.LittleEndian.PutUint32(entry[12:16], sectors) // sector count
	entry = data[462:478]
	entry[4] = 0x83
	binary.LittleEndian.PutUint32(entry[8:12], part2)
	binary.LittleEndian.PutUint32(entry[12:16], sectors)
	data[510] = 0x55
	data[511] = 0xAA

	copy(data[part1*512:], buildImage())
	return data
}
