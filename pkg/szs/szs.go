// Package szs decodes the Yaz0 and Yay0 compression envelopes used for
// GameCube and Wii module files.
package szs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrCorrupt = errors.New("corrupt compressed data")

var (
	Yaz0Magic = []byte("Yaz0")
	Yay0Magic = []byte("Yay0")
)

const headerSize = 0x10

func IsYaz0(contents []byte) bool {
	return len(contents) >= headerSize && bytes.HasPrefix(contents, Yaz0Magic)
}

func IsYay0(contents []byte) bool {
	return len(contents) >= headerSize && bytes.HasPrefix(contents, Yay0Magic)
}

// copyBack appends n bytes starting dist bytes behind the end of dst. The
// ranges may overlap, which repeats the tail.
func copyBack(dst []byte, dist, n int) ([]byte, error) {
	start := len(dst) - dist
	if start < 0 {
		return nil, fmt.Errorf("%w: back reference %d beyond start", ErrCorrupt, dist)
	}
	for i := 0; i < n; i++ {
		dst = append(dst, dst[start+i])
	}
	return dst, nil
}

func DecompressYaz0(src []byte) ([]byte, error) {
	if !IsYaz0(src) {
		return nil, fmt.Errorf("%w: missing Yaz0 header", ErrCorrupt)
	}

	size := int(binary.BigEndian.Uint32(src[4:]))
	dst := make([]byte, 0, min(size, 8*len(src)))
	pos := headerSize

	for len(dst) < size {
		if pos >= len(src) {
			return nil, fmt.Errorf("%w: truncated group header", ErrCorrupt)
		}
		code := src[pos]
		pos++

		for bit := 7; bit >= 0 && len(dst) < size; bit-- {
			if code&(1<<bit) != 0 {
				if pos >= len(src) {
					return nil, fmt.Errorf("%w: truncated literal", ErrCorrupt)
				}
				dst = append(dst, src[pos])
				pos++
				continue
			}

			if pos+2 > len(src) {
				return nil, fmt.Errorf("%w: truncated back reference", ErrCorrupt)
			}
			b1, b2 := src[pos], src[pos+1]
			pos += 2

			dist := (int(b1&0xF)<<8 | int(b2)) + 1
			n := int(b1 >> 4)
			if n == 0 {
				if pos >= len(src) {
					return nil, fmt.Errorf("%w: truncated run length", ErrCorrupt)
				}
				n = int(src[pos]) + 0x12
				pos++
			} else {
				n += 2
			}

			var err error
			if dst, err = copyBack(dst, dist, min(n, size-len(dst))); err != nil {
				return nil, err
			}
		}
	}

	return dst, nil
}

func DecompressYay0(src []byte) ([]byte, error) {
	if !IsYay0(src) {
		return nil, fmt.Errorf("%w: missing Yay0 header", ErrCorrupt)
	}

	size := int(binary.BigEndian.Uint32(src[4:]))
	linkPos := int(binary.BigEndian.Uint32(src[8:]))
	chunkPos := int(binary.BigEndian.Uint32(src[12:]))
	maskPos := headerSize

	dst := make([]byte, 0, min(size, 8*len(src)))
	var mask uint32
	bits := 0

	for len(dst) < size {
		if bits == 0 {
			if maskPos+4 > len(src) {
				return nil, fmt.Errorf("%w: truncated mask stream", ErrCorrupt)
			}
			mask = binary.BigEndian.Uint32(src[maskPos:])
			maskPos += 4
			bits = 32
		}

		literal := mask&0x80000000 != 0
		mask <<= 1
		bits--

		if literal {
			if chunkPos >= len(src) {
				return nil, fmt.Errorf("%w: truncated chunk stream", ErrCorrupt)
			}
			dst = append(dst, src[chunkPos])
			chunkPos++
			continue
		}

		if linkPos+2 > len(src) {
			return nil, fmt.Errorf("%w: truncated link stream", ErrCorrupt)
		}
		link := int(binary.BigEndian.Uint16(src[linkPos:]))
		linkPos += 2

		dist := link&0xFFF + 1
		n := link >> 12
		if n == 0 {
			if chunkPos >= len(src) {
				return nil, fmt.Errorf("%w: truncated run length", ErrCorrupt)
			}
			n = int(src[chunkPos]) + 0x12
			chunkPos++
		} else {
			n += 2
		}

		var err error
		if dst, err = copyBack(dst, dist, min(n, size-len(dst))); err != nil {
			return nil, err
		}
	}

	return dst, nil
}
