package linker

import "github.com/ksco/relink/pkg/utils"

type OutputRelHdr struct {
	Chunk
}

func NewOutputRelHdr() *OutputRelHdr {
	return &OutputRelHdr{Chunk: Chunk{Name: "header"}}
}

func (o *OutputRelHdr) UpdateHdr(out *OutputFile) {
	o.Hdr.Size = uint32(HeaderSize(out.Module.Info.Version))
}

func (o *OutputRelHdr) CopyBuf(out *OutputFile) {
	info := out.Module.Info

	hdr := RelHeader{
		Id:                info.Id,
		NumSections:       uint32(len(out.Sections)),
		SectionInfoOffset: out.SectionTable.Hdr.Offset,
		NameOffset:        info.NameOffset,
		NameSize:          info.NameSize,
		Version:           info.Version,
		BssSize:           out.BssSize(),
		RelOffset:         out.Relocs.Hdr.Offset,
		ImpOffset:         out.Imports.Hdr.Offset,
		ImpSize:           out.Imports.Hdr.Size,
		Align:             info.Align,
		BssAlign:          info.BssAlign,
		FixSize:           info.FixSize,
	}

	if info.PrologSectId > 0 {
		hdr.PrologSection = uint8(info.PrologSectId)
	}
	if out.Prolog != nil {
		hdr.Prolog = uint32(out.Prolog.SectionOffset)
	}
	if out.Epilog != nil {
		hdr.EpilogSection = uint8(out.Epilog.SectionIdx)
		hdr.Epilog = uint32(out.Epilog.SectionOffset)
	}
	if out.Unresolved != nil {
		hdr.UnresolvedSection = uint8(out.Unresolved.SectionIdx)
		hdr.Unresolved = uint32(out.Unresolved.SectionOffset)
	}

	raw := make([]byte, RelHeaderSizeV3)
	utils.Write[RelHeader](raw, hdr)
	copy(out.Buf[o.Hdr.Offset:], raw[:o.Hdr.Size])
}
