package helpers

import (
	"encoding/binary"
	"strings"
)

// GuessU16 decodes the first two bytes of data at both byte orders and
// returns the order under which they equal want.
func GuessU16(data []byte, want uint16) (binary.ByteOrder, bool) {
	if len(data) < 2 {
		return nil, false
	}
	if binary.LittleEndian.Uint16(data) == want {
		return binary.LittleEndian, true
	}
	if binary.BigEndian.Uint16(data) == want {
		return binary.BigEndian, true
	}
	return nil, false
}

// GuessU32 is the 32-bit form of GuessU16.
func GuessU32(data []byte, want uint32) (binary.ByteOrder, bool) {
	if len(data) < 4 {
		return nil, false
	}
	if binary.LittleEndian.Uint32(data) == want {
		return binary.LittleEndian, true
	}
	if binary.BigEndian.Uint32(data) == want {
		return binary.BigEndian, true
	}
	return nil, false
}

// U48 combines a 32-bit low half with a 16-bit high half
func U48(lo uint32, hi uint16) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}

// U64 combines two 32-bit halves
func U64(lo, hi uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}

// S32 reads a signed 32-bit value
func S32(order binary.ByteOrder, b []byte) int32 {
	return int32(order.Uint32(b))
}

// S64 reads a signed 64-bit value
func S64(order binary.ByteOrder, b []byte) int64 {
	return int64(order.Uint64(b))
}

// RoundUp rounds n up to a multiple of m
func RoundUp(n, m uint64) uint64 {
	if m == 0 {
		return n
	}
	return (n + m - 1) / m * m
}

// IsBitSet tests bit in an on-disk bitmap. Bits are numbered from the least
// significant bit of byte 0.
func IsBitSet(bitmap []byte, bit uint64) bool {
	idx := bit / 8
	if idx >= uint64(len(bitmap)) {
		return false
	}
	return bitmap[idx]&(1<<(bit%8)) != 0
}

// SanitizeLink truncates b at the first NUL and replaces control characters
// with '^' so the result is safe to print.
func SanitizeLink(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c == 0x7f {
			c = '^'
		}
		out[i] = c
	}
	return string(out)
}

// CString returns the bytes before the first NUL as a string
func CString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
