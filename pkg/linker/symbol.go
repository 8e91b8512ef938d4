package linker

import (
	"fmt"
	"strings"
)

const (
	TextSectionName = ".text"
	BssSectionName  = ".bss"

	// DuplicateSuffix separates a symbol name from the counter appended
	// when the same name occurs twice within a container and section.
	DuplicateSuffix = "____"
)

type Symbol struct {
	Container *Container

	Name        string
	SectionName string
	SectionIdx  int

	// Alignment is -1 when unconstrained.
	Alignment int
	// SectionOffset is -1 until the symbol is placed.
	SectionOffset int
	// FileIdx orders the symbol within its container and section.
	FileIdx int

	Data []byte
}

func NewSymbol(container *Container, name, section string, sectionIdx int) *Symbol {
	return &Symbol{
		Container:     container,
		Name:          name,
		SectionName:   section,
		SectionIdx:    sectionIdx,
		Alignment:     -1,
		SectionOffset: -1,
	}
}

func (s *Symbol) Size() int {
	return len(s.Data)
}

func (s *Symbol) ContainerName() string {
	if s.Container == nil {
		return ""
	}
	return s.Container.Name
}

func (s *Symbol) IsExecutable() bool {
	return s.SectionName == TextSectionName
}

func (s *Symbol) IsBss() bool {
	return IsBssSection(s.SectionName)
}

func IsBssSection(name string) bool {
	return strings.Contains(name, "bss")
}

// Path is the canonical key of the symbol within its module.
func (s *Symbol) Path() string {
	return SymbolPath(s.ContainerName(), s.SectionName, s.Name)
}

func SymbolPath(container, section, name string) string {
	return container + "/" + section + "/" + name + ".bin"
}

// OriginalName drops the suffix added to disambiguate duplicates.
func (s *Symbol) OriginalName() string {
	i := strings.LastIndex(s.Name, DuplicateSuffix)
	if i <= 0 {
		return s.Name
	}
	n := s.Name[i+len(DuplicateSuffix):]
	if n == "" || strings.Trim(n, "0123456789") != "" {
		return s.Name
	}
	return s.Name[:i]
}

// Contains reports whether the section offset lies within the symbol.
func (s *Symbol) Contains(sectionIdx, offset int) bool {
	return s.SectionIdx == sectionIdx && s.SectionOffset >= 0 &&
		offset >= s.SectionOffset && offset < s.SectionOffset+s.Size()
}

func (s *Symbol) String() string {
	return fmt.Sprintf("%s@%s+0x%x", s.Path(), s.SectionName, s.SectionOffset)
}
