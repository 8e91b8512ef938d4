package linker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ksco/relink/pkg/test"
)

func TestModuleInfoRoundTrip(t *testing.T) {
	info := &ModuleInfo{
		Id:               33,
		Compression:      CompressionYaz0,
		PrologSectId:     1,
		PrologFuncId:     7,
		EpilogFuncId:     8,
		UnresolvedFuncId: 9,
		NameOffset:       0x2C0,
		NameSize:         0x11,
		Version:          2,
		Align:            8,
		BssAlign:         16,
		FixSize:          0x1234,
	}

	var buf bytes.Buffer
	test.DemandSuccess(t, info.Write(&buf))

	parsed, err := ParseModuleInfo(ModuleInfoFileName, &buf)
	test.DemandSuccess(t, err)
	test.ExpectDeepEquality(t, parsed, info)
}

func TestParseModuleInfoDefaults(t *testing.T) {
	info, err := ParseModuleInfo(ModuleInfoFileName, strings.NewReader("ModuleId=4\nUnknown=1\n"))
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, info.Id, uint32(4))
	test.ExpectEquality(t, info.Version, uint32(3))
	test.ExpectEquality(t, info.Align, uint32(32))
	test.ExpectEquality(t, info.Compression, CompressionNone)
	test.ExpectEquality(t, info.PrologFuncId, 0)
}

func TestParseModuleInfoErrors(t *testing.T) {
	for _, doc := range []string{
		"Version=3\n",
		"ModuleId=x\n",
		"ModuleId=1\nCompression=LZ77\n",
		"ModuleId=1\nPrologFuncId=-\n",
	} {
		_, err := ParseModuleInfo(ModuleInfoFileName, strings.NewReader(doc))
		test.ExpectError(t, err, ErrFormat, doc)
	}
}
