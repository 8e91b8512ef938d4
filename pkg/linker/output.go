package linker

import (
	"strings"

	"github.com/ksco/relink/pkg/utils"
)

const (
	dataSectionAlign = 32
	tableAlign       = 4
)

// OutputFile assembles one module file from its chunks.
type OutputFile struct {
	Module *Module
	Buf    []byte

	Hdr          *OutputRelHdr
	SectionTable *OutputSectionTable
	Sections     []*OutputSection
	Imports      *ImportSection
	Relocs       *RelocSection

	Prolog     *Symbol
	Epilog     *Symbol
	Unresolved *Symbol

	Chunks []Chunker
}

func NewOutputFile(m *Module) (*OutputFile, error) {
	imports, records, err := EncodeRelocations(m.Relocations)
	if err != nil {
		return nil, err
	}

	out := &OutputFile{Module: m}
	push := func(chunk Chunker) Chunker {
		out.Chunks = append(out.Chunks, chunk)
		return chunk
	}

	out.Hdr = push(NewOutputRelHdr()).(*OutputRelHdr)
	out.SectionTable = push(NewOutputSectionTable()).(*OutputSectionTable)
	for _, sec := range m.Sections {
		osec := NewOutputSection(sec, m.Buffers[sec.Name])
		out.Sections = append(out.Sections, osec)
		push(osec)
	}
	out.Imports = push(NewImportSection(imports)).(*ImportSection)
	out.Relocs = push(NewRelocSection(records)).(*RelocSection)

	lookup := func(id int) *Symbol {
		if def := m.Funcs.Get(id); def != nil {
			return def.Symbol
		}
		return nil
	}
	out.Prolog = lookup(m.Info.PrologFuncId)
	out.Epilog = lookup(m.Info.EpilogFuncId)
	out.Unresolved = lookup(m.Info.UnresolvedFuncId)

	return out, nil
}

func (o *OutputFile) BssSize() uint32 {
	total := uint32(0)
	for _, osec := range o.Sections {
		if IsBssSection(osec.Name) {
			total += uint32(osec.Info.Size)
		}
	}
	return total
}

// SetChunkOffsets places the header, the section table, the section
// contents, the import table and the relocation records, in that order,
// and returns the file size. Data sections start on 32 bytes, the code
// section is padded to 4 bytes and the import table is 4 byte aligned.
func (o *OutputFile) SetChunkOffsets() uint32 {
	for _, chunk := range o.Chunks {
		chunk.UpdateHdr(o)
	}

	offset := o.Hdr.Hdr.Size
	o.SectionTable.Hdr.Offset = offset
	offset += o.SectionTable.Hdr.Size

	for _, osec := range o.Sections {
		if strings.Contains(osec.Name, "data") {
			offset = utils.AlignTo(offset, dataSectionAlign)
		}
		if osec.HasContents() {
			osec.Hdr.Offset = offset
			offset += osec.Hdr.Size
		}
		if osec.Name == TextSectionName {
			offset = utils.AlignTo(offset, tableAlign)
		}
	}

	o.Imports.Hdr.Offset = utils.AlignTo(offset, tableAlign)
	o.Relocs.Hdr.Offset = o.Imports.Hdr.Offset + o.Imports.Hdr.Size
	return o.Relocs.Hdr.Offset + o.Relocs.Hdr.Size
}

// WriteRel serializes a laid out module with resolved relocations.
func WriteRel(m *Module) ([]byte, error) {
	out, err := NewOutputFile(m)
	if err != nil {
		return nil, err
	}

	out.Buf = make([]byte, out.SetChunkOffsets())
	for _, chunk := range out.Chunks {
		chunk.CopyBuf(out)
	}
	return out.Buf, nil
}
