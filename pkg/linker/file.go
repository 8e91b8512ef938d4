package linker

import (
	"os"
	"path/filepath"
	"strings"
)

type File struct {
	Name        string
	Contents    []byte
	Compression CompressionMode
}

// NewFile reads filename and strips any compression envelope.
func NewFile(filename string) (*File, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	contents, mode, err := Decompress(contents)
	if err != nil {
		return nil, err
	}

	return &File{
		Name:        filename,
		Contents:    contents,
		Compression: mode,
	}, nil
}

func (f *File) Stem() string {
	base := filepath.Base(f.Name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
