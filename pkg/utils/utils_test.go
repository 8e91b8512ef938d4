package utils

import (
	"testing"

	"github.com/ksco/relink/pkg/test"
)

func TestAlignTo(t *testing.T) {
	test.ExpectEquality(t, AlignTo(0, 8), 0)
	test.ExpectEquality(t, AlignTo(1, 8), 8)
	test.ExpectEquality(t, AlignTo(8, 8), 8)
	test.ExpectEquality(t, AlignTo(13, 12), 24)
	test.ExpectEquality(t, AlignTo(13, -1), 13)
	test.ExpectEquality(t, AlignTo(uint32(0x55), 32), uint32(0x60))

	test.ExpectSuccess(t, IsAligned(24, 12))
	test.ExpectFailure(t, IsAligned(6, 4))
	test.ExpectSuccess(t, IsAligned(7, 0))
}

func TestSignExtend(t *testing.T) {
	test.ExpectEquality(t, int64(SignExtend(0x03FFFFFC, 25)), int64(-4))
	test.ExpectEquality(t, SignExtend(0x01FFFFFC, 25), uint64(0x01FFFFFC))
	test.ExpectEquality(t, int64(SignExtend(0x8000, 15)), int64(-0x8000))
}

func TestReadWrite(t *testing.T) {
	buf := make([]byte, 6)
	Write[uint32](buf[1:], 0x11223344)
	test.ExpectDeepEquality(t, buf, []byte{0, 0x11, 0x22, 0x33, 0x44, 0})
	test.ExpectEquality(t, Read[uint16](buf[2:]), uint16(0x2233))
	test.ExpectEquality(t, Bits(uint32(0x11223344), 15, 8), uint32(0x33))
	test.ExpectEquality(t, Bit(uint8(0x80), 7), uint8(1))
}

func TestHelpers(t *testing.T) {
	odd := RemoveIf([]int{1, 2, 3, 4, 5}, func(v int) bool { return v%2 == 0 })
	test.ExpectDeepEquality(t, odd, []int{1, 3, 5})

	s, ok := RemovePrefix("FILE__1_f", "FILE__")
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, s, "1_f")
	_, ok = RemovePrefix("f", "FILE__")
	test.ExpectFailure(t, ok)

	set := NewMapSet[uint32]()
	set.Add(3)
	set.Add(3)
	test.ExpectSuccess(t, set.Contains(3))
	test.ExpectFailure(t, set.Contains(4))
	test.ExpectEquality(t, set.Len(), 1)
}
