package linker

import (
	"fmt"

	"github.com/ksco/relink/pkg/utils"
)

type RelSection struct {
	Desc SectionDesc
	Data []byte
}

// IsBss reports a zero-initialized section: it has a size but no file
// contents.
func (s *RelSection) IsBss() bool {
	return s.Desc.Addr() == 0 && s.Desc.Size > 0
}

type RelImport struct {
	Import
	Relocs []Reloc
}

type RelFile struct {
	File     *File
	Header   RelHeader
	Sections []RelSection
	Imports  []RelImport
}

func NewRelFile(file *File) (*RelFile, error) {
	contents := file.Contents
	if GetFileType(contents) != FileTypeRel {
		return nil, fmt.Errorf("%w: %s: not a relocatable module", ErrFormat, file.Name)
	}

	f := &RelFile{File: file}

	raw := make([]byte, RelHeaderSizeV3)
	copy(raw, contents)
	f.Header = utils.Read[RelHeader](raw)
	if f.Header.Version < 2 {
		f.Header.Align = 0
		f.Header.BssAlign = 0
	}
	if f.Header.Version < 3 {
		f.Header.FixSize = 0
	}
	if len(contents) < HeaderSize(f.Header.Version) {
		return nil, fmt.Errorf("%w: %s: header truncated", ErrFormat, file.Name)
	}

	if err := f.readSections(); err != nil {
		return nil, err
	}
	if err := f.readImports(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RelFile) bytes(offset, size uint32) ([]byte, error) {
	end := uint64(offset) + uint64(size)
	if end > uint64(len(f.File.Contents)) {
		return nil, fmt.Errorf("%w: %s: range 0x%x+0x%x is out of the file",
			ErrFormat, f.File.Name, offset, size)
	}
	return f.File.Contents[offset:end], nil
}

func (f *RelFile) readSections() error {
	table, err := f.bytes(f.Header.SectionInfoOffset, f.Header.NumSections*RelSectionDescSize)
	if err != nil {
		return err
	}

	f.Sections = make([]RelSection, 0, f.Header.NumSections)
	for len(table) > 0 {
		desc := utils.Read[SectionDesc](table)
		table = table[RelSectionDescSize:]

		sec := RelSection{Desc: desc}
		if desc.Addr() != 0 && desc.Size > 0 {
			bs, err := f.bytes(desc.Addr(), desc.Size)
			if err != nil {
				return err
			}
			sec.Data = append([]byte(nil), bs...)
		}
		f.Sections = append(f.Sections, sec)
	}
	return nil
}

func (f *RelFile) readImports() error {
	table, err := f.bytes(f.Header.ImpOffset, f.Header.ImpSize)
	if err != nil {
		return err
	}

	for len(table) >= RelImportSize {
		imp := RelImport{Import: utils.Read[Import](table)}
		table = table[RelImportSize:]

		pos := imp.Offset
		for {
			bs, err := f.bytes(pos, RelRelocSize)
			if err != nil {
				return fmt.Errorf("relocations of module %d: %w", imp.Id, err)
			}
			r := utils.Read[Reloc](bs)
			imp.Relocs = append(imp.Relocs, r)
			pos += RelRelocSize

			if r.Type == R_DOLPHIN_END {
				break
			}
		}
		f.Imports = append(f.Imports, imp)
	}
	return nil
}
