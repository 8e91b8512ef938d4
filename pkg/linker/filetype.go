package linker

import (
	"encoding/binary"
	"unicode"

	"github.com/ksco/relink/pkg/szs"
)

type FileType = int8

const (
	FileTypeUnknown FileType = iota
	FileTypeEmpty   FileType = iota
	FileTypeRel     FileType = iota
	FileTypeYaz0    FileType = iota
	FileTypeYay0    FileType = iota
	FileTypeText    FileType = iota
)

func GetFileType(contents []byte) FileType {
	if len(contents) == 0 {
		return FileTypeEmpty
	}

	if szs.IsYaz0(contents) {
		return FileTypeYaz0
	}
	if szs.IsYay0(contents) {
		return FileTypeYay0
	}

	if CheckRelHeader(contents) {
		return FileTypeRel
	}

	isTextFile := func() bool {
		return len(contents) >= 4 &&
			unicode.IsPrint(rune(contents[0])) &&
			unicode.IsPrint(rune(contents[1])) &&
			unicode.IsPrint(rune(contents[2])) &&
			unicode.IsPrint(rune(contents[3]))
	}

	if isTextFile() {
		return FileTypeText
	}

	return FileTypeUnknown
}

// CheckRelHeader is a plausibility test, REL files carry no magic.
func CheckRelHeader(contents []byte) bool {
	if len(contents) < RelHeaderSizeV1 {
		return false
	}

	next := binary.BigEndian.Uint32(contents[0x04:])
	prev := binary.BigEndian.Uint32(contents[0x08:])
	numSections := binary.BigEndian.Uint32(contents[0x0C:])
	sectionInfo := binary.BigEndian.Uint32(contents[0x10:])
	version := binary.BigEndian.Uint32(contents[0x1C:])

	if next != 0 || prev != 0 || version == 0 || version > 3 {
		return false
	}
	if sectionInfo < RelHeaderSizeV1 || numSections == 0 {
		return false
	}
	return uint64(sectionInfo)+uint64(numSections)*RelSectionDescSize <= uint64(len(contents))
}
