package linker

import (
	"bytes"
	"testing"

	"github.com/ksco/relink/pkg/test"
	"github.com/ksco/relink/pkg/utils"
)

func testSections() []*SectionInfo {
	return []*SectionInfo{
		{Id: 0, Name: "dummy"},
		{Id: 1, Name: TextSectionName},
		{Id: 2, Name: ".data"},
		{Id: 3, Name: BssSectionName},
		{Id: 4, Name: ".rodata", Size: 0x20},
	}
}

func addTestSymbol(m *Module, container, name, section string, fileIdx, align int, data []byte) *Symbol {
	sym := NewSymbol(nil, name, section, m.Section(section).Id)
	sym.FileIdx = fileIdx
	sym.Alignment = align
	sym.Data = data
	m.AddSymbol(container, sym)
	return sym
}

func fill(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestLayoutSections(t *testing.T) {
	m := NewModule("layout")
	m.Sections = testSections()

	f1 := addTestSymbol(m, "a.o", "f1", TextSectionName, 0, 4, fill(8, 0xA1))
	d1 := addTestSymbol(m, "a.o", "d1", ".data", 0, 4, fill(4, 0xD1))
	b1 := addTestSymbol(m, "a.o", "b1", BssSectionName, 0, 4, make([]byte, 4))
	f2 := addTestSymbol(m, "b.o", "f2", TextSectionName, 0, 16, fill(4, 0xA2))
	d2 := addTestSymbol(m, "b.o", "d2", ".data", 0, 8, fill(8, 0xD2))
	b2 := addTestSymbol(m, "b.o", "b2", BssSectionName, 0, 8, make([]byte, 0x10))

	test.DemandSuccess(t, LayoutSections(m, f2))

	test.ExpectEquality(t, f2.SectionOffset, 0, "prolog")
	test.ExpectEquality(t, f1.SectionOffset, 4)
	test.ExpectEquality(t, d1.SectionOffset, 0)
	test.ExpectEquality(t, d2.SectionOffset, 8)
	test.ExpectEquality(t, b1.SectionOffset, 0)
	test.ExpectEquality(t, b2.SectionOffset, 8)

	test.ExpectEquality(t, m.Section(TextSectionName).Size, 12)
	test.ExpectEquality(t, m.Section(".data").Size, 16)
	test.ExpectEquality(t, m.Section(BssSectionName).Size, 0x18)
	test.ExpectEquality(t, m.Section("dummy").Size, 0)

	text := m.Buffers[TextSectionName]
	test.ExpectDeepEquality(t, text[:4], fill(4, 0xA2))
	test.ExpectDeepEquality(t, text[4:], fill(8, 0xA1))

	data := m.Buffers[".data"]
	test.ExpectDeepEquality(t, data[:4], fill(4, 0xD1))
	test.ExpectDeepEquality(t, data[4:8], make([]byte, 4), "padding")
	test.ExpectDeepEquality(t, data[8:], fill(8, 0xD2))

	test.ExpectDeepEquality(t, m.Buffers[".rodata"], make([]byte, 0x20), "unpopulated section")
	_, ok := m.Buffers[BssSectionName]
	test.ExpectFailure(t, ok, "bss has no contents")

	test.ExpectEquality(t, m.FindSymbol(2, 9), d2)
	test.ExpectEquality(t, m.FindSymbol(1, 0), f2)
}

func TestLayoutAlignment(t *testing.T) {
	m := NewModule("align")
	m.Sections = testSections()

	syms := []*Symbol{
		addTestSymbol(m, "a.o", "x", ".data", 0, 4, fill(3, 1)),
		addTestSymbol(m, "a.o", "y", ".data", 1, 32, fill(5, 2)),
		addTestSymbol(m, "b.o", "z", ".data", 0, 2, fill(1, 3)),
		addTestSymbol(m, "c.o", "w", ".data", 0, -1, fill(2, 4)),
	}

	test.DemandSuccess(t, LayoutSections(m, nil))

	for _, sym := range syms {
		if sym.Alignment > 0 {
			test.ExpectSuccess(t, utils.IsAligned(sym.SectionOffset, sym.Alignment), sym.Name)
		}
		test.ExpectSuccess(t, utils.IsAligned(sym.SectionOffset, minContainerAlign) || sym.FileIdx > 0, sym.Name)
	}
	test.ExpectEquality(t, syms[1].SectionOffset, 32)
	test.ExpectEquality(t, syms[2].SectionOffset, 40, "container run starts on the container alignment")
	test.ExpectEquality(t, syms[3].SectionOffset, 48)
}

func TestLayoutOrdersByFileIdx(t *testing.T) {
	m := NewModule("order")
	m.Sections = testSections()

	second := addTestSymbol(m, "a.o", "second", TextSectionName, 1, 4, fill(4, 2))
	first := addTestSymbol(m, "a.o", "first", TextSectionName, 0, 4, fill(4, 1))

	test.DemandSuccess(t, LayoutSections(m, nil))
	test.ExpectEquality(t, first.SectionOffset, 0)
	test.ExpectEquality(t, second.SectionOffset, 4)
}

func TestLayoutUnknownSection(t *testing.T) {
	m := NewModule("unknown")
	m.Sections = testSections()

	sym := NewSymbol(nil, "s", ".sdata", 9)
	m.AddSymbol("a.o", sym)
	test.ExpectError(t, LayoutSections(m, nil), ErrFormat)
}

func TestRelinkModule(t *testing.T) {
	m := NewModule("relink")
	m.Sections = testSections()

	a := addTestSymbol(m, "a.o", "a", TextSectionName, 0, 4, code(bl(8), insBlr))
	b := addTestSymbol(m, "a.o", "b", TextSectionName, 1, 4, code(insBlr))
	a.SectionOffset, b.SectionOffset = 0, 8

	funcs, err := UnlinkFunctions(m.Symbols)
	test.DemandSuccess(t, err)
	m.Funcs = funcs

	// The prolog moves b in front of a.
	test.DemandSuccess(t, LayoutSections(m, b))
	test.DemandSuccess(t, RelinkModule(m))

	test.ExpectEquality(t, b.SectionOffset, 0)
	test.ExpectEquality(t, a.SectionOffset, 4)
	text := m.Buffers[TextSectionName]
	test.ExpectEquality(t, utils.Read[uint32](text[4:]), bl(-4))
	test.ExpectEquality(t, utils.Read[uint32](text[0:]), uint32(insBlr))
}
