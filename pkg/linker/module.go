package linker

import (
	"sort"
	"strings"
)

type SectionInfo struct {
	Id   int
	Name string
	Size int
}

// IsPlaceholderSection reports a section slot that carries no name of its
// own. Placeholders are written as empty descriptors.
func IsPlaceholderSection(name string) bool {
	return strings.HasPrefix(name, "dummy")
}

type Module struct {
	Name string
	Info *ModuleInfo

	// Sections is indexed by section id.
	Sections   []*SectionInfo
	Containers *ContainerSet
	Symbols    []*Symbol
	Funcs      *FunctionTable

	Rel *RelFile

	Buffers        map[string][]byte
	RelocationRows []RelocationRow
	Relocations    []*Relocation

	byPath  map[string]*Symbol
	byIndex map[int][]*Symbol
}

func NewModule(name string) *Module {
	return &Module{
		Name:       name,
		Info:       NewModuleInfo(),
		Containers: NewContainerSet(),
		Funcs:      NewFunctionTable(),
		byPath:     make(map[string]*Symbol),
	}
}

// AddSymbol registers sym under its container. The caller guarantees the
// symbol path is unique.
func (m *Module) AddSymbol(container string, sym *Symbol) {
	m.Containers.Get(container).AddSymbol(sym)
	m.Symbols = append(m.Symbols, sym)
	m.byPath[sym.Path()] = sym
	m.byIndex = nil
}

func (m *Module) SymbolByPath(path string) *Symbol {
	return m.byPath[path]
}

func (m *Module) HasPath(path string) bool {
	_, ok := m.byPath[path]
	return ok
}

func (m *Module) Section(name string) *SectionInfo {
	for _, sec := range m.Sections {
		if sec != nil && sec.Name == name {
			return sec
		}
	}
	return nil
}

func (m *Module) SectionName(id int) string {
	if id >= 0 && id < len(m.Sections) && m.Sections[id] != nil {
		return m.Sections[id].Name
	}
	return ""
}

func (m *Module) ExecutableSymbols() []*Symbol {
	syms := make([]*Symbol, 0)
	for _, sym := range m.Symbols {
		if sym.IsExecutable() {
			syms = append(syms, sym)
		}
	}
	return syms
}

// InvalidateIndex must be called after symbols move.
func (m *Module) InvalidateIndex() {
	m.byIndex = nil
}

func (m *Module) buildIndex() {
	m.byIndex = make(map[int][]*Symbol)
	for _, sym := range m.Symbols {
		if sym.SectionOffset < 0 {
			continue
		}
		m.byIndex[sym.SectionIdx] = append(m.byIndex[sym.SectionIdx], sym)
	}
	for _, syms := range m.byIndex {
		sort.SliceStable(syms, func(i, j int) bool {
			return syms[i].SectionOffset < syms[j].SectionOffset
		})
	}
}

// FindSymbol returns the symbol of section sectionIdx whose byte range
// covers offset, or nil.
func (m *Module) FindSymbol(sectionIdx, offset int) *Symbol {
	if m.byIndex == nil {
		m.buildIndex()
	}

	syms := m.byIndex[sectionIdx]
	i := sort.Search(len(syms), func(i int) bool {
		return syms[i].SectionOffset > offset
	})
	for j := i - 1; j >= 0; j-- {
		if syms[j].Contains(sectionIdx, offset) {
			return syms[j]
		}
	}
	return nil
}
