package ext

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-unixfs/internal/parsers/dirent"
)

// DirentDecoder returns the decoder for the directory layout in use. With
// the filetype feature the name length is one byte followed by a type byte;
// older filesystems use a 16-bit name length and carry no type.
func DirentDecoder(endian binary.ByteOrder, fileType bool) dirent.Decoder {
	if fileType {
		return func(b []byte) dirent.Header {
			return dirent.Header{
				Inum:    endian.Uint32(b[0:4]),
				RecLen:  endian.Uint16(b[4:6]),
				NameLen: uint16(b[6]),
				Type:    b[7],
			}
		}
	}
	return func(b []byte) dirent.Header {
		return dirent.Header{
			Inum:    endian.Uint32(b[0:4]),
			RecLen:  endian.Uint16(b[4:6]),
			NameLen: endian.Uint16(b[6:8]),
		}
	}
}
