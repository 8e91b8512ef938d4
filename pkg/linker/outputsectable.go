package linker

import "github.com/ksco/relink/pkg/utils"

type OutputSectionTable struct {
	Chunk
}

func NewOutputSectionTable() *OutputSectionTable {
	return &OutputSectionTable{Chunk: Chunk{Name: "sections"}}
}

func (o *OutputSectionTable) UpdateHdr(out *OutputFile) {
	o.Hdr.Size = uint32(len(out.Sections)) * RelSectionDescSize
}

func (o *OutputSectionTable) CopyBuf(out *OutputFile) {
	base := out.Buf[o.Hdr.Offset:]
	for i, osec := range out.Sections {
		utils.Write[SectionDesc](base[i*RelSectionDescSize:], osec.Desc())
	}
}

type OutputSection struct {
	Chunk
	Info *SectionInfo
	Data []byte
}

func NewOutputSection(info *SectionInfo, data []byte) *OutputSection {
	o := &OutputSection{Chunk: NewChunk(), Info: info, Data: data}
	o.Name = info.Name
	return o
}

func (o *OutputSection) IsExec() bool {
	return o.Name == TextSectionName || o.Name == ".init"
}

// HasContents reports whether the section occupies bytes of the file.
func (o *OutputSection) HasContents() bool {
	return !IsPlaceholderSection(o.Name) && !IsBssSection(o.Name) && len(o.Data) > 0
}

func (o *OutputSection) UpdateHdr(out *OutputFile) {
	if o.HasContents() {
		o.Hdr.Size = uint32(len(o.Data))
	}
}

func (o *OutputSection) Desc() SectionDesc {
	switch {
	case IsPlaceholderSection(o.Name):
		return SectionDesc{}
	case IsBssSection(o.Name):
		return SectionDesc{Size: uint32(o.Info.Size)}
	case !o.HasContents():
		return SectionDesc{}
	case o.IsExec():
		return SectionDesc{Offset: o.Hdr.Offset | SectionExecFlag, Size: o.Hdr.Size}
	}
	return SectionDesc{Offset: o.Hdr.Offset, Size: o.Hdr.Size}
}

func (o *OutputSection) CopyBuf(out *OutputFile) {
	if o.HasContents() {
		copy(out.Buf[o.Hdr.Offset:], o.Data)
	}
}
