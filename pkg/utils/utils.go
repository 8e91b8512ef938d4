package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/exp/constraints"
)

var fatalStyle = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)

func MustNo(err error) {
	if err != nil {
		Fatal(err)
	}
}

func Fatal(v any) {
	fatalStyle.Print("relink: fatal:")
	pterm.FgRed.Println(" " + fmt.Sprintf("%s", v))
	os.Exit(1)
}

func AlignTo[T constraints.Integer](val, align T) T {
	if align <= 1 {
		return val
	}
	return (val + align - 1) / align * align
}

func IsAligned[T constraints.Integer](val, align T) bool {
	if align <= 1 {
		return true
	}
	return val%align == 0
}

func Read[T any](data []byte) (val T) {
	reader := bytes.NewReader(data)
	err := binary.Read(reader, binary.BigEndian, &val)
	MustNo(err)
	return
}

func Write[T any](data []byte, e T) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, binary.BigEndian, e)
	MustNo(err)
	copy(data, buf.Bytes())
}

func Bit[T constraints.Unsigned](val T, pos int) T {
	return (val >> pos) & 1
}

func Bits[T constraints.Unsigned](val T, hi T, lo T) T {
	return (val >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func SignExtend(val uint64, size int) uint64 {
	return uint64(int64(val<<(63-size)) >> (63 - size))
}

func RemoveIf[T any](elems []T, condition func(T) bool) []T {
	i := 0

	for _, elem := range elems {
		if condition(elem) {
			continue
		}
		elems[i] = elem
		i++
	}
	return elems[:i]
}

func RemovePrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		s = strings.TrimPrefix(s, prefix)
		return s, true
	}
	return s, false
}
