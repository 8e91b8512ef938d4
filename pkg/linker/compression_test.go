package linker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ksco/relink/pkg/test"
)

func TestNewFileDecompresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d_a_obj.szs")
	yaz0 := []byte{'Y', 'a', 'z', '0', 0, 0, 0, 6, 0, 0, 0, 0, 0, 0, 0, 0, 0xE0, 'a', 'b', 'c', 0x10, 0x02}
	test.DemandSuccess(t, os.WriteFile(path, yaz0, 0644))

	f, err := NewFile(path)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, string(f.Contents), "abcabc")
	test.ExpectEquality(t, f.Compression, CompressionYaz0)
	test.ExpectEquality(t, f.Stem(), "d_a_obj")

	test.DemandSuccess(t, os.WriteFile(path, yaz0[:18], 0644))
	_, err = NewFile(path)
	test.ExpectError(t, err, ErrFormat, "truncated")
}

func TestCompressionModeNames(t *testing.T) {
	for _, mode := range []CompressionMode{CompressionNone, CompressionYaz0, CompressionYay0} {
		parsed, err := ParseCompressionMode(mode.String())
		test.DemandSuccess(t, err, mode)
		test.ExpectEquality(t, parsed, mode)
	}
	_, err := ParseCompressionMode("zlib")
	test.ExpectError(t, err, ErrFormat)
}
