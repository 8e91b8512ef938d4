package szs

import (
	"testing"

	"github.com/ksco/relink/pkg/test"
)

func yaz0(size byte, body ...byte) []byte {
	return append([]byte{'Y', 'a', 'z', '0', 0, 0, 0, size, 0, 0, 0, 0, 0, 0, 0, 0}, body...)
}

func TestYaz0(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want string
	}{
		{"literals and short copy", yaz0(6, 0xE0, 'a', 'b', 'c', 0x10, 0x02), "abcabc"},
		{"long run", yaz0(19, 0x80, 'a', 0x00, 0x00, 0x00), "aaaaaaaaaaaaaaaaaaa"},
	}

	for _, c := range cases {
		test.ExpectSuccess(t, IsYaz0(c.in), c.name)
		out, err := DecompressYaz0(c.in)
		if test.ExpectSuccess(t, err, c.name) {
			test.ExpectEquality(t, string(out), c.want, c.name)
		}
	}
}

func TestYaz0Corrupt(t *testing.T) {
	_, err := DecompressYaz0(yaz0(6, 0xE0, 'a'))
	test.ExpectError(t, err, ErrCorrupt)

	_, err = DecompressYaz0(yaz0(4, 0x00, 0x10, 0x05))
	test.ExpectError(t, err, ErrCorrupt)

	_, err = DecompressYaz0([]byte("Yaz0"))
	test.ExpectError(t, err, ErrCorrupt)
}

func TestYay0(t *testing.T) {
	in := []byte{
		'Y', 'a', 'y', '0',
		0, 0, 0, 6, // size
		0, 0, 0, 0x14, // link stream
		0, 0, 0, 0x16, // chunk stream
		0xE0, 0, 0, 0, // mask
		0x10, 0x02, // link
		'a', 'b', 'c',
	}
	test.ExpectSuccess(t, IsYay0(in))
	test.ExpectFailure(t, IsYaz0(in))

	out, err := DecompressYay0(in)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, string(out), "abcabc")
}

func TestOversizedHeader(t *testing.T) {
	in := []byte{'Y', 'a', 'z', '0', 0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0x80, 'a'}
	out, err := DecompressYaz0(in)
	test.ExpectError(t, err, ErrCorrupt)
	test.ExpectEquality(t, len(out), 0)

	in = []byte{
		'Y', 'a', 'y', '0',
		0xFF, 0xFF, 0xFF, 0xFF,
		0, 0, 0, 0x14,
		0, 0, 0, 0x14,
		0x80, 0, 0, 0,
		'a',
	}
	_, err = DecompressYay0(in)
	test.ExpectError(t, err, ErrCorrupt)
}
