package linker

import "github.com/ksco/relink/pkg/utils"

type ImportSection struct {
	Chunk
	Imports []Import
}

func NewImportSection(imports []Import) *ImportSection {
	i := &ImportSection{Chunk: NewChunk(), Imports: imports}
	i.Name = "imports"
	return i
}

func (i *ImportSection) UpdateHdr(out *OutputFile) {
	i.Hdr.Size = uint32(len(i.Imports)) * RelImportSize
}

func (i *ImportSection) CopyBuf(out *OutputFile) {
	buf := out.Buf[i.Hdr.Offset:]
	for idx, imp := range i.Imports {
		imp.Offset += out.Relocs.Hdr.Offset
		utils.Write[Import](buf[idx*RelImportSize:], imp)
	}
}

type RelocSection struct {
	Chunk
	Records []Reloc
}

func NewRelocSection(records []Reloc) *RelocSection {
	r := &RelocSection{Chunk: NewChunk(), Records: records}
	r.Name = "relocations"
	return r
}

func (r *RelocSection) UpdateHdr(out *OutputFile) {
	r.Hdr.Size = uint32(len(r.Records)) * RelRelocSize
}

func (r *RelocSection) CopyBuf(out *OutputFile) {
	buf := out.Buf[r.Hdr.Offset:]
	for idx, rec := range r.Records {
		utils.Write[Reloc](buf[idx*RelRelocSize:], rec)
	}
}
