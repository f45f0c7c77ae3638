package services

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-unixfs/internal/disk"
	"github.com/deploymenttheory/go-unixfs/internal/types"
)

const testCTime = 1700000000

// testDirent is one record written into a directory block
type testDirent struct {
	off    int
	inum   uint32
	recLen uint16
	typ    uint8
	name   string
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.DebugLevel)
	return log
}

func openTestFS(t *testing.T, img []byte, fsType string) *FileSystem {
	t.Helper()
	r := disk.NewReader(bytes.NewReader(img), 0, int64(len(img)))
	fs, err := Open(r, OpenOptions{FsType: fsType, Logger: quietLogger()})
	require.NoError(t, err)
	return fs
}

func setBit(bitmap []byte, bit int) {
	bitmap[bit/8] |= 1 << (uint(bit) % 8)
}

func clearBit(bitmap []byte, bit int) {
	bitmap[bit/8] &^= 1 << (uint(bit) % 8)
}

// ext4 test image: 1024 blocks of 4 KiB in a single group
//
//	block 0      boot + superblock at 1024
//	block 1      group descriptor table
//	block 2      block bitmap
//	block 3      inode bitmap
//	blocks 4-5   inode table (32 inodes of 256 bytes)
//	block 512    root directory
//	block 513    /hello.txt
//	block 514    /sub
//	block 515    /gone.txt (deleted)
//	block 516    orphan inode 16 (deleted)
//	block 520    /sub/sparse logical block 2
//	block 530    extent leaf node of /sub/tree
//	blocks 540-1 /sub/tree
//	blocks 600-7 journal
const (
	extTestBlockSize = 4096
	extTestBlocks    = 1024
	extTestInodes    = 32
	extTestInodeSize = 256
	extTestBBitmap   = 2
	extTestIBitmap   = 3
	extTestItable    = 4
)

var extTestUUID = [16]byte{0x6f, 0x1e, 0x4c, 0x2a, 0x0b, 0x55, 0x4a, 0x3e, 0x9d, 0x0c, 0x51, 0x22, 0x7a, 0x19, 0x33, 0x08}

type extImage struct {
	data []byte
}

func (e *extImage) block(n int) []byte {
	return e.data[n*extTestBlockSize : (n+1)*extTestBlockSize]
}

func (e *extImage) inode(inum int) []byte {
	off := extTestItable*extTestBlockSize + (inum-1)*extTestInodeSize
	return e.data[off : off+extTestInodeSize]
}

// putInode writes an inode and marks it in the inode bitmap when alloc
func (e *extImage) putInode(inum int, mode uint16, size uint64, alloc bool, flags uint32, area [60]byte) {
	le := binary.LittleEndian
	b := e.inode(inum)
	le.PutUint16(b[0:2], mode)                 // i_mode
	le.PutUint32(b[4:8], uint32(size))         // i_size_lo
	le.PutUint32(b[8:12], testCTime)           // i_atime
	le.PutUint32(b[12:16], testCTime)          // i_ctime
	le.PutUint32(b[16:20], testCTime)          // i_mtime
	le.PutUint16(b[26:28], 1)                  // i_links_count
	le.PutUint32(b[32:36], flags)              // i_flags
	copy(b[40:100], area[:])                   // i_block
	le.PutUint32(b[108:112], uint32(size>>32)) // i_size_high
	le.PutUint16(b[128:130], 32)               // i_extra_isize
	le.PutUint32(b[132:136], 400<<2)           // i_ctime_extra: 400ns
	if alloc {
		setBit(e.block(extTestIBitmap), inum-1)
	} else {
		le.PutUint32(b[20:24], testCTime+60) // i_dtime
	}
}

func (e *extImage) allocBlocks(blocks ...int) {
	for _, b := range blocks {
		setBit(e.block(extTestBBitmap), b)
	}
}

func putDirents(blk []byte, order binary.ByteOrder, extLayout bool, entries []testDirent) {
	for _, d := range entries {
		b := blk[d.off:]
		order.PutUint32(b[0:4], d.inum)   // inode
		order.PutUint16(b[4:6], d.recLen) // rec_len
		if extLayout {
			b[6] = uint8(len(d.name)) // name_len
			b[7] = d.typ              // file_type
		} else {
			b[6] = d.typ              // d_type
			b[7] = uint8(len(d.name)) // d_namlen
		}
		copy(b[8:], d.name)
	}
}

// extentArea builds an i_block holding a depth 0 root with the given
// leaves of (logical, length, start)
func extentArea(leaves ...[3]uint32) [60]byte {
	var area [60]byte
	putExtentLeaves(area[:], 4, leaves...)
	return area
}

func putExtentLeaves(node []byte, max uint16, leaves ...[3]uint32) {
	le := binary.LittleEndian
	le.PutUint16(node[0:2], types.ExtExtentMagic) // eh_magic
	le.PutUint16(node[2:4], uint16(len(leaves)))  // eh_entries
	le.PutUint16(node[4:6], max)                  // eh_max
	le.PutUint16(node[6:8], 0)                    // eh_depth
	for i, l := range leaves {
		off := 12 + i*12
		le.PutUint32(node[off:off+4], l[0])           // ee_block
		le.PutUint16(node[off+4:off+6], uint16(l[1])) // ee_len
		le.PutUint16(node[off+6:off+8], 0)            // ee_start_hi
		le.PutUint32(node[off+8:off+12], l[2])        // ee_start_lo
	}
}

// buildExtImage returns the ext4 image described above
func buildExtImage(t *testing.T) []byte {
	t.Helper()
	le := binary.LittleEndian
	e := &extImage{data: make([]byte, extTestBlocks*extTestBlockSize)}

	sb := e.data[1024:2048]
	le.PutUint32(sb[0:4], extTestInodes)                                               // s_inodes_count
	le.PutUint32(sb[4:8], extTestBlocks)                                               // s_blocks_count_lo
	le.PutUint32(sb[12:16], 1000)                                                      // s_free_blocks_count_lo
	le.PutUint32(sb[16:20], 18)                                                        // s_free_inodes_count
	le.PutUint32(sb[20:24], 0)                                                         // s_first_data_block
	le.PutUint32(sb[24:28], 2)                                                         // s_log_block_size: 4096
	le.PutUint32(sb[28:32], 2)                                                         // s_log_cluster_size
	le.PutUint32(sb[32:36], 32768)                                                     // s_blocks_per_group
	le.PutUint32(sb[36:40], 32768)                                                     // s_clusters_per_group
	le.PutUint32(sb[40:44], extTestInodes)                                             // s_inodes_per_group
	le.PutUint32(sb[44:48], testCTime)                                                 // s_mtime
	le.PutUint32(sb[48:52], testCTime)                                                 // s_wtime
	le.PutUint16(sb[56:58], types.ExtMagic)                                            // s_magic
	le.PutUint16(sb[58:60], 1)                                                         // s_state: clean
	le.PutUint32(sb[76:80], 1)                                                         // s_rev_level: dynamic
	le.PutUint32(sb[84:88], 11)                                                        // s_first_ino
	le.PutUint16(sb[88:90], extTestInodeSize)                                          // s_inode_size
	le.PutUint32(sb[92:96], types.ExtCompatHasJournal)                                 // s_feature_compat
	le.PutUint32(sb[96:100], types.ExtIncompatFiletype|types.ExtIncompatExtents)       // s_feature_incompat
	le.PutUint32(sb[100:104], types.ExtROCompatSparseSuper|types.ExtROCompatLargeFile) // s_feature_ro_compat
	copy(sb[104:120], extTestUUID[:])                                                  // s_uuid
	copy(sb[120:136], "testvol")                                                       // s_volume_name
	le.PutUint32(sb[224:228], 8)                                                       // s_journal_inum

	gd := e.block(1)
	le.PutUint32(gd[0:4], extTestBBitmap) // bg_block_bitmap_lo
	le.PutUint32(gd[4:8], extTestIBitmap) // bg_inode_bitmap_lo
	le.PutUint32(gd[8:12], extTestItable) // bg_inode_table_lo
	le.PutUint16(gd[12:14], 1000)         // bg_free_blocks_count_lo
	le.PutUint16(gd[14:16], 18)           // bg_free_inodes_count_lo
	le.PutUint16(gd[16:18], 2)            // bg_used_dirs_count_lo

	e.allocBlocks(0, 1, 2, 3, 4, 5, 512, 513, 514, 520, 530, 540, 541)
	for b := 600; b < 608; b++ {
		e.allocBlocks(b)
	}
	// reserved inodes 1-11
	for i := 0; i < 11; i++ {
		setBit(e.block(extTestIBitmap), i)
	}

	ext := uint32(types.ExtInodeFlagExtents)
	e.putInode(2, 040755, 4096, true, ext, extentArea([3]uint32{0, 1, 512}))
	e.putInode(8, 0100600, 8*extTestBlockSize, true, ext, extentArea([3]uint32{0, 8, 600}))
	e.putInode(12, 0100644, 13, true, ext, extentArea([3]uint32{0, 1, 513}))
	e.putInode(13, 040755, 4096, true, ext, extentArea([3]uint32{0, 1, 514}))
	e.putInode(14, 0100644, 5, false, ext, extentArea([3]uint32{0, 1, 515}))
	e.putInode(16, 0100644, 6, false, ext, extentArea([3]uint32{0, 1, 516}))

	var link [60]byte
	copy(link[:], "../hello.txt")
	e.putInode(17, 0120777, 12, true, 0, link)

	e.putInode(18, 0100644, 3*extTestBlockSize, true, ext, extentArea([3]uint32{2, 1, 520}))

	// depth 1 root pointing at the leaf node in block 530
	var tree [60]byte
	le.PutUint16(tree[0:2], types.ExtExtentMagic) // eh_magic
	le.PutUint16(tree[2:4], 1)                    // eh_entries
	le.PutUint16(tree[4:6], 4)                    // eh_max
	le.PutUint16(tree[6:8], 1)                    // eh_depth
	le.PutUint32(tree[12:16], 0)                  // ei_block
	le.PutUint32(tree[16:20], 530)                // ei_leaf_lo
	e.putInode(19, 0100644, 2*extTestBlockSize, true, ext, tree)
	putExtentLeaves(e.block(530), 340, [3]uint32{0, 2, 540})

	// extent flag set but no header
	e.putInode(20, 0100644, 4096, true, ext, [60]byte{})
	e.putInode(21, 0100644, 4096, false, ext, [60]byte{})

	putDirents(e.block(512), le, true, []testDirent{
		{0, 2, 12, types.ExtDeDir, "."},
		{12, 2, 12, types.ExtDeDir, ".."},
		{24, 12, 40, types.ExtDeRegular, "hello.txt"},
		{44, 14, 20, types.ExtDeRegular, "gone.txt"}, // residue in the slack of hello.txt
		{64, 13, 4032, types.ExtDeDir, "sub"},
	})
	putDirents(e.block(514), le, true, []testDirent{
		{0, 13, 12, types.ExtDeDir, "."},
		{12, 2, 12, types.ExtDeDir, ".."},
		{24, 17, 12, types.ExtDeLnk, "link"},
		{36, 18, 16, types.ExtDeRegular, "sparse"},
		{52, 19, 4044, types.ExtDeRegular, "tree"},
	})

	copy(e.block(513), "hello, world\n")
	copy(e.block(515), "gone\n")
	copy(e.block(516), "orphan")
	copy(e.block(520), "tail")

	buildJournal(e)
	return e.data
}

// buildJournal writes an 8 block journal at block 600:
//
//	0 superblock v2, start 1, sequence 7
//	1 descriptor, sequence 7, tags 100 (escaped) and 200
//	2 image of block 100 with its magic zeroed
//	3 image of block 200
//	4 commit, sequence 7
func buildJournal(e *extImage) {
	be := binary.BigEndian
	jsb := e.block(600)
	be.PutUint32(jsb[0:4], types.JournalMagic)             // h_magic
	be.PutUint32(jsb[4:8], types.JournalBlockSuperblockV2) // h_blocktype
	be.PutUint32(jsb[12:16], extTestBlockSize)             // s_blocksize
	be.PutUint32(jsb[16:20], 8)                            // s_maxlen
	be.PutUint32(jsb[20:24], 1)                            // s_first
	be.PutUint32(jsb[24:28], 7)                            // s_sequence
	be.PutUint32(jsb[28:32], 1)                            // s_start

	desc := e.block(601)
	be.PutUint32(desc[0:4], types.JournalMagic)
	be.PutUint32(desc[4:8], types.JournalBlockDescriptor)
	be.PutUint32(desc[8:12], 7)
	be.PutUint32(desc[12:16], 100)                    // t_blocknr
	be.PutUint32(desc[16:20], types.JournalTagEscape) // t_flags
	copy(desc[20:36], "0123456789abcdef")             // t_uuid
	be.PutUint32(desc[36:40], 200)
	be.PutUint32(desc[40:44], types.JournalTagSameID|types.JournalTagLast)

	copy(e.block(602)[4:], "escaped block 100")
	copy(e.block(603), "block 200 image")

	commit := e.block(604)
	be.PutUint32(commit[0:4], types.JournalMagic)
	be.PutUint32(commit[4:8], types.JournalBlockCommit)
	be.PutUint32(commit[8:12], 7)
	be.PutUint64(commit[48:56], testCTime) // h_commit_sec
}

// UFS2 test image: 1024 fragments of 2 KiB, 16 KiB blocks, one cylinder
// group
//
//	frags 32-39   superblock (offset 65536)
//	frags 40-47   cylinder group header
//	frags 48-55   inode table (64 inodes of 256 bytes)
//	frag 56       root directory
//	frags 100-195 /big direct blocks
//	frags 200-207 /big single indirect block
//	frags 300-308 /big indirect data
//	frag 600      orphan inode 5 (deleted)
const (
	ufsTestFSize    = 2048
	ufsTestBSize    = 16384
	ufsTestFrags    = 1024
	ufsTestIpg      = 64
	ufsTestSblkno   = 32
	ufsTestCblkno   = 40
	ufsTestIblkno   = 48
	ufsTestDblkno   = 56
	ufsTestIUsedOff = 168
	ufsTestFreeOff  = 176
	ufsTestBigSize  = 13*ufsTestBSize + 1000
)

type ufsImage struct {
	data  []byte
	order binary.ByteOrder
}

func (u *ufsImage) frag(n int) []byte {
	return u.data[n*ufsTestFSize:]
}

func (u *ufsImage) cg() []byte {
	return u.frag(ufsTestCblkno)[:ufsTestBSize]
}

func (u *ufsImage) inode(inum int) []byte {
	return u.frag(ufsTestIblkno)[inum*types.UFS2InodeSize : (inum+1)*types.UFS2InodeSize]
}

func (u *ufsImage) useFrags(from, to int) {
	for f := from; f <= to; f++ {
		clearBit(u.cg()[ufsTestFreeOff:], f)
	}
}

func (u *ufsImage) putInode(inum int, mode uint16, size uint64, alloc bool, direct []uint64, indirect uint64) []byte {
	o := u.order
	b := u.inode(inum)
	o.PutUint16(b[0:2], mode)        // di_mode
	o.PutUint16(b[2:4], 1)           // di_nlink
	o.PutUint64(b[16:24], size)      // di_size
	o.PutUint64(b[32:40], testCTime) // di_atime
	o.PutUint64(b[40:48], testCTime) // di_mtime
	o.PutUint64(b[48:56], testCTime) // di_ctime
	o.PutUint64(b[56:64], testCTime) // di_birthtime
	for i, d := range direct {
		o.PutUint64(b[112+i*8:120+i*8], d) // di_db
	}
	o.PutUint64(b[208:216], indirect) // di_ib[0]
	if alloc {
		setBit(u.cg()[ufsTestIUsedOff:], inum)
	}
	return b
}

// buildUFS2Image returns the UFS2 image described above in byte order o
func buildUFS2Image(t *testing.T, o binary.ByteOrder) []byte {
	t.Helper()
	u := &ufsImage{data: make([]byte, ufsTestFrags*ufsTestFSize), order: o}

	sb := u.data[types.UFS2SuperblockOffset : types.UFS2SuperblockOffset+types.UFSSuperblockSize]
	o.PutUint32(sb[8:12], ufsTestSblkno)                       // fs_sblkno
	o.PutUint32(sb[12:16], ufsTestCblkno)                      // fs_cblkno
	o.PutUint32(sb[16:20], ufsTestIblkno)                      // fs_iblkno
	o.PutUint32(sb[20:24], ufsTestDblkno)                      // fs_dblkno
	o.PutUint32(sb[44:48], 1)                                  // fs_ncg
	o.PutUint32(sb[48:52], ufsTestBSize)                       // fs_bsize
	o.PutUint32(sb[52:56], ufsTestFSize)                       // fs_fsize
	o.PutUint32(sb[56:60], ufsTestBSize/ufsTestFSize)          // fs_frag
	o.PutUint32(sb[96:100], 3)                                 // fs_fragshift
	o.PutUint32(sb[120:124], ufsTestBSize/types.UFS2InodeSize) // fs_inopb
	o.PutUint32(sb[184:188], ufsTestIpg)                       // fs_ipg
	o.PutUint32(sb[188:192], ufsTestFrags)                     // fs_fpg
	sb[209] = 1                                                // fs_clean
	copy(sb[680:712], "ufsvol")                                // fs_volname
	o.PutUint64(sb[1008:1016], 1)                              // cs_ndir
	o.PutUint64(sb[1016:1024], 50)                             // cs_nbfree
	o.PutUint64(sb[1024:1032], 60)                             // cs_nifree
	o.PutUint64(sb[1032:1040], 3)                              // cs_nffree
	o.PutUint64(sb[1072:1080], testCTime)                      // fs_time
	o.PutUint64(sb[1080:1088], ufsTestFrags)                   // fs_size
	o.PutUint64(sb[1088:1096], ufsTestFrags-ufsTestDblkno)     // fs_dsize
	o.PutUint32(sb[1372:1376], types.UFS2Magic)                // fs_magic

	cg := u.cg()
	o.PutUint32(cg[4:8], types.UFSCgMagic)  // cg_magic
	o.PutUint32(cg[24:28], 1)               // cs_ndir
	o.PutUint32(cg[28:32], 50)              // cs_nbfree
	o.PutUint32(cg[32:36], 60)              // cs_nifree
	o.PutUint32(cg[36:40], 3)               // cs_nffree
	o.PutUint32(cg[92:96], ufsTestIUsedOff) // cg_iusedoff
	o.PutUint32(cg[96:100], ufsTestFreeOff) // cg_freeoff
	o.PutUint32(cg[116:120], ufsTestIpg)    // cg_niblk
	o.PutUint32(cg[120:124], ufsTestIpg)    // cg_initediblk
	for f := 0; f < ufsTestFrags; f++ {
		setBit(cg[ufsTestFreeOff:], f)
	}
	u.useFrags(0, ufsTestDblkno)
	u.useFrags(100, 195)
	u.useFrags(200, 207)
	u.useFrags(300, 308)

	setBit(cg[ufsTestIUsedOff:], 0)
	setBit(cg[ufsTestIUsedOff:], 1)
	u.putInode(2, 040755, 512, true, []uint64{ufsTestDblkno}, 0)

	var direct []uint64
	for i := 0; i < types.NumDirectPointers; i++ {
		direct = append(direct, uint64(100+i*8))
	}
	u.putInode(3, 0100644, ufsTestBigSize, true, direct, 200)
	ind := u.frag(200)
	o.PutUint64(ind[0:8], 300)
	o.PutUint64(ind[8:16], 308)
	for f := 100; f <= 195; f++ {
		u.frag(f)[0] = byte(f)
	}

	fast := u.putInode(4, 0120777, 7, true, nil, 0)
	copy(fast[112:], "/target")

	u.putInode(5, 0100644, 11, false, []uint64{600}, 0)
	copy(u.frag(600), "orphan data")

	putDirents(u.frag(ufsTestDblkno)[:types.UFSDirBlockSize], o, false, []testDirent{
		{0, 2, 12, types.UFSDtDir, "."},
		{12, 2, 12, types.UFSDtDir, ".."},
		{24, 3, 12, types.UFSDtReg, "big"},
		{36, 4, 476, types.UFSDtLnk, "fast"},
	})
	return u.data
}

// UFS1 test image: 512 fragments of 1 KiB, 8 KiB blocks, two cylinder
// groups of 256 fragments. The second group is staggered by fs_cgoffset.
//
//	frags 8-9     superblock (offset 8192)
//	frags 16-23   cylinder group 0 header
//	frags 24-31   inode table of group 0 (inodes 0-63)
//	frag 32       root directory
//	frag 40       /notes
//	frags 288-295 cylinder group 1 header (start 256 + 16)
//	frags 296-303 inode table of group 1 (inodes 64-127)
//	frag 320      /far (inode 65)
const (
	ufs1TestFSize    = 1024
	ufs1TestBSize    = 8192
	ufs1TestFrags    = 512
	ufs1TestFpg      = 256
	ufs1TestIpg      = 64
	ufs1TestCgOffset = 16
	ufs1TestCblkno   = 16
	ufs1TestIblkno   = 24
	ufs1TestDblkno   = 32
	ufs1TestUID      = 1001
	ufs1TestGID      = 20
)

// ufs1Image writes UFS1 structures; old selects the UFS1B inode and
// directory entry layouts
type ufs1Image struct {
	data []byte
	old  bool
}

func (u *ufs1Image) frag(n int) []byte {
	return u.data[n*ufs1TestFSize:]
}

func (u *ufs1Image) cgStart(c int) int {
	return c*ufs1TestFpg + c*ufs1TestCgOffset
}

func (u *ufs1Image) cg(c int) []byte {
	return u.frag(u.cgStart(c) + ufs1TestCblkno)[:ufs1TestBSize]
}

func (u *ufs1Image) putInode(inum int, mode uint16, size uint64, direct uint32) {
	le := binary.LittleEndian
	c := inum / ufs1TestIpg
	tbl := u.frag(u.cgStart(c) + ufs1TestIblkno)
	b := tbl[(inum%ufs1TestIpg)*types.UFS1InodeSize:]
	le.PutUint16(b[0:2], mode)        // di_mode
	le.PutUint16(b[2:4], 1)           // di_nlink
	le.PutUint64(b[8:16], size)       // di_size
	le.PutUint32(b[16:20], testCTime) // di_atime
	le.PutUint32(b[24:28], testCTime) // di_mtime
	le.PutUint32(b[32:36], testCTime) // di_ctime
	le.PutUint32(b[40:44], direct)    // di_db[0]
	if u.old {
		le.PutUint32(b[116:120], ufs1TestUID) // di_uid
		le.PutUint32(b[120:124], ufs1TestGID) // di_gid
	} else {
		le.PutUint32(b[100:104], 0x2)         // di_flags
		le.PutUint32(b[104:108], 2)           // di_blocks
		le.PutUint32(b[108:112], 9)           // di_gen
		le.PutUint32(b[112:116], ufs1TestUID) // di_uid
		le.PutUint32(b[116:120], ufs1TestGID) // di_gid
	}
	setBit(u.cg(c)[ufsTestIUsedOff:], inum%ufs1TestIpg)
}

func (u *ufs1Image) putDirents(blk []byte, entries []testDirent) {
	if !u.old {
		putDirents(blk, binary.LittleEndian, false, entries)
		return
	}
	le := binary.LittleEndian
	for _, d := range entries {
		b := blk[d.off:]
		le.PutUint32(b[0:4], d.inum)              // d_ino
		le.PutUint16(b[4:6], d.recLen)            // d_reclen
		le.PutUint16(b[6:8], uint16(len(d.name))) // d_namlen
		copy(b[8:], d.name)
	}
}

// buildUFS1Image returns the little endian UFS1 image described above
func buildUFS1Image(t *testing.T, old bool) []byte {
	t.Helper()
	le := binary.LittleEndian
	u := &ufs1Image{data: make([]byte, ufs1TestFrags*ufs1TestFSize), old: old}

	sb := u.data[types.UFS1SuperblockOffset : types.UFS1SuperblockOffset+types.UFSSuperblockSize]
	le.PutUint32(sb[8:12], 8)                                    // fs_sblkno
	le.PutUint32(sb[12:16], ufs1TestCblkno)                      // fs_cblkno
	le.PutUint32(sb[16:20], ufs1TestIblkno)                      // fs_iblkno
	le.PutUint32(sb[20:24], ufs1TestDblkno)                      // fs_dblkno
	le.PutUint32(sb[24:28], ufs1TestCgOffset)                    // fs_old_cgoffset
	le.PutUint32(sb[28:32], 0xfffffff0)                          // fs_old_cgmask
	le.PutUint32(sb[32:36], testCTime)                           // fs_old_time
	le.PutUint32(sb[36:40], ufs1TestFrags)                       // fs_old_size
	le.PutUint32(sb[40:44], ufs1TestFrags-2*ufs1TestDblkno)      // fs_old_dsize
	le.PutUint32(sb[44:48], 2)                                   // fs_ncg
	le.PutUint32(sb[48:52], ufs1TestBSize)                       // fs_bsize
	le.PutUint32(sb[52:56], ufs1TestFSize)                       // fs_fsize
	le.PutUint32(sb[56:60], ufs1TestBSize/ufs1TestFSize)         // fs_frag
	le.PutUint32(sb[96:100], 3)                                  // fs_fragshift
	le.PutUint32(sb[120:124], ufs1TestBSize/types.UFS1InodeSize) // fs_inopb
	le.PutUint32(sb[184:188], ufs1TestIpg)                       // fs_ipg
	le.PutUint32(sb[188:192], ufs1TestFpg)                       // fs_fpg
	sb[209] = 1                                                  // fs_clean
	le.PutUint32(sb[types.UFSMagicOffset:], types.UFS1Magic)     // fs_magic

	for c := 0; c < 2; c++ {
		cg := u.cg(c)
		le.PutUint32(cg[4:8], types.UFSCgMagic)  // cg_magic
		le.PutUint32(cg[12:16], uint32(c))       // cg_cgx
		le.PutUint16(cg[18:20], ufs1TestIpg)     // cg_old_niblk
		le.PutUint32(cg[92:96], ufsTestIUsedOff) // cg_iusedoff
		le.PutUint32(cg[96:100], ufsTestFreeOff) // cg_freeoff
		for f := 0; f < ufs1TestFpg; f++ {
			setBit(cg[ufsTestFreeOff:], f)
		}
		// everything up to the first data fragment is in use
		for f := 0; f < u.cgStart(c)-c*ufs1TestFpg+ufs1TestDblkno; f++ {
			clearBit(cg[ufsTestFreeOff:], f)
		}
	}
	setBit(u.cg(0)[ufsTestIUsedOff:], 0)
	setBit(u.cg(0)[ufsTestIUsedOff:], 1)
	clearBit(u.cg(0)[ufsTestFreeOff:], ufs1TestDblkno)
	clearBit(u.cg(0)[ufsTestFreeOff:], 40)
	clearBit(u.cg(1)[ufsTestFreeOff:], 320-ufs1TestFpg)

	u.putInode(2, 040755, types.UFSDirBlockSize, ufs1TestDblkno)
	u.putInode(3, 0100644, 13, 40)
	u.putInode(65, 0100644, 9, 320)
	copy(u.frag(40), "ufs1 contents")
	copy(u.frag(320), "far away\n")

	u.putDirents(u.frag(ufs1TestDblkno)[:types.UFSDirBlockSize], []testDirent{
		{0, 2, 12, types.UFSDtDir, "."},
		{12, 2, 12, types.UFSDtDir, ".."},
		{24, 3, 16, types.UFSDtReg, "notes"},
		{40, 65, 472, types.UFSDtReg, "far"},
	})
	return u.data
}
