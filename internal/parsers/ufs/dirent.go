package ufs

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-unixfs/internal/parsers/dirent"
)

// DirentDecoder returns the decoder for FFS directory entries. UFS1 and UFS2
// store a type byte before an 8-bit name length; UFS1B uses a 16-bit name
// length and no type.
func DirentDecoder(endian binary.ByteOrder, old bool) dirent.Decoder {
	if old {
		return func(b []byte) dirent.Header {
			return dirent.Header{
				Inum:    endian.Uint32(b[0:4]),
				RecLen:  endian.Uint16(b[4:6]),
				NameLen: endian.Uint16(b[6:8]),
			}
		}
	}
	return func(b []byte) dirent.Header {
		return dirent.Header{
			Inum:    endian.Uint32(b[0:4]),
			RecLen:  endian.Uint16(b[4:6]),
			Type:    b[6],
			NameLen: uint16(b[7]),
		}
	}
}
