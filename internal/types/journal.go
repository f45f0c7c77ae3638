package types

// ext3/ext4 journal (JBD/JBD2) structures. All journal fields are big-endian.

// JournalMagic starts every journal control block
const JournalMagic uint32 = 0xC03B3998

// JournalMagicBytes is JournalMagic as stored on disk
var JournalMagicBytes = [4]byte{0xC0, 0x3B, 0x39, 0x98}

// Journal block types
const (
	JournalBlockDescriptor   = 1
	JournalBlockCommit       = 2
	JournalBlockSuperblockV1 = 3
	JournalBlockSuperblockV2 = 4
	JournalBlockRevoke       = 5
)

const (
	JournalHeaderSize = 12
	JournalUUIDSize   = 16
	JournalMinBlock   = 1024
)

// Descriptor tag flags
const (
	JournalTagEscape  = 0x01
	JournalTagSameID  = 0x02
	JournalTagDeleted = 0x04
	JournalTagLast    = 0x08
)

// Journal feature flags
const (
	JournalCompatChecksum = 0x00000001

	JournalIncompatRevoke      = 0x00000001
	JournalIncompat64Bit       = 0x00000002
	JournalIncompatAsyncCommit = 0x00000004
	JournalIncompatCsumV2      = 0x00000008
	JournalIncompatCsumV3      = 0x00000010
)

// JournalCompatNames and JournalIncompatNames map feature bits to names
var (
	JournalCompatNames = map[uint32]string{
		JournalCompatChecksum: "Checksums",
	}
	JournalIncompatNames = map[uint32]string{
		JournalIncompatRevoke:      "Revoke",
		JournalIncompat64Bit:       "64bit",
		JournalIncompatAsyncCommit: "Async Commit",
		JournalIncompatCsumV2:      "Checksum v2",
		JournalIncompatCsumV3:      "Checksum v3",
	}
)

// Commit block checksum types
const (
	JournalChecksumCRC32  = 1
	JournalChecksumMD5    = 2
	JournalChecksumSHA1   = 3
	JournalChecksumCRC32C = 4
)

// JournalChecksumNames maps a commit checksum type to its name
var JournalChecksumNames = map[uint8]string{
	JournalChecksumCRC32:  "CRC32",
	JournalChecksumMD5:    "MD5",
	JournalChecksumSHA1:   "SHA1",
	JournalChecksumCRC32C: "CRC32C",
}

// JournalHeader starts every journal control block.
type JournalHeader struct {
	Magic     uint32
	BlockType uint32
	Sequence  uint32
}

// JournalSuperblock is the decoded journal superblock.
type JournalSuperblock struct {
	Header          JournalHeader
	BlockSize       uint32
	MaxLen          uint32 // total journal blocks
	First           uint32 // first log block
	Sequence        uint32 // first expected commit sequence
	Start           uint32 // block of the start of the log; 0 means clean
	Errno           int32
	FeatureCompat   uint32
	FeatureIncompat uint32
	FeatureROCompat uint32
	UUID            UUID
	NrUsers         uint32
	ChecksumType    uint8 // v2 superblock with metadata checksums
}

// JournalTag is one entry of a descriptor block.
type JournalTag struct {
	Block uint64
	Flags uint32
	UUID  *UUID // nil when SAMEID is set
}

// JournalCommit holds the commit block fields after the header.
type JournalCommit struct {
	Header       JournalHeader
	ChecksumType uint8
	ChecksumSize uint8
	Checksum     uint32
	CommitSec    uint64
	CommitNsec   uint32
}

// JournalRevoke is a decoded revoke block.
type JournalRevoke struct {
	Header JournalHeader
	Blocks []uint64
}

// JournalEntryKind classifies a journal block during an entry walk.
type JournalEntryKind uint8

const (
	JournalEntryUnknown JournalEntryKind = iota
	JournalEntrySuperblock
	JournalEntryDescriptor
	JournalEntryCommit
	JournalEntryRevoke
	// JournalEntryData is an FS block image described by a prior descriptor
	JournalEntryData
)

// String returns the display name of the kind
func (k JournalEntryKind) String() string {
	switch k {
	case JournalEntrySuperblock:
		return "Superblock"
	case JournalEntryDescriptor:
		return "Descriptor"
	case JournalEntryCommit:
		return "Commit"
	case JournalEntryRevoke:
		return "Revoke"
	case JournalEntryData:
		return "FS Block"
	default:
		return "Unknown"
	}
}

// JournalEntry is passed to journal entry-walk visitors.
type JournalEntry struct {
	JBlock    uint64 // journal-relative block number
	Kind      JournalEntryKind
	Sequence  uint32
	Allocated bool
	// FsBlock is the target filesystem block of a data entry
	FsBlock uint64
	// TagFlags are the descriptor tag flags of a data entry
	TagFlags uint32
	// Superblock, Commit and Revoke carry the decoded control block
	Superblock *JournalSuperblock
	Commit     *JournalCommit
	Revoke     *JournalRevoke
}
