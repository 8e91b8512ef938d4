package linker

import (
	"fmt"

	"github.com/ksco/relink/pkg/szs"
)

type CompressionMode uint8

const (
	CompressionNone CompressionMode = iota
	CompressionYaz0
	CompressionYay0
)

func GetCompressionFromContents(contents []byte) CompressionMode {
	switch GetFileType(contents) {
	case FileTypeYaz0:
		return CompressionYaz0
	case FileTypeYay0:
		return CompressionYay0
	}
	return CompressionNone
}

func (m CompressionMode) String() string {
	switch m {
	case CompressionYaz0:
		return "Yaz0"
	case CompressionYay0:
		return "Yay0"
	}
	return "None"
}

func ParseCompressionMode(s string) (CompressionMode, error) {
	switch s {
	case "None", "":
		return CompressionNone, nil
	case "Yaz0":
		return CompressionYaz0, nil
	case "Yay0":
		return CompressionYay0, nil
	}
	return CompressionNone, fmt.Errorf("%w: unknown compression %q", ErrFormat, s)
}

func Decompress(contents []byte) ([]byte, CompressionMode, error) {
	mode := GetCompressionFromContents(contents)

	var out []byte
	var err error
	switch mode {
	case CompressionYaz0:
		out, err = szs.DecompressYaz0(contents)
	case CompressionYay0:
		out, err = szs.DecompressYay0(contents)
	default:
		return contents, mode, nil
	}

	if err != nil {
		return nil, mode, fmt.Errorf("%w: %s: %w", ErrFormat, mode, err)
	}
	return out, mode, nil
}
