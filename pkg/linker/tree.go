package linker

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ksco/relink/pkg/utils"
)

const (
	SectionsFileName      = "sections.txt"
	FunctionsFileName     = "function_definitions.txt"
	ContainersFileName    = "containers.txt"
	symbolFilePrefix      = "FILE__"
	symbolAlignmentMarker = "___ALIGN_"
	symbolFileExt         = ".bin"
)

func SymbolFileName(idx int, sym *Symbol) string {
	return fmt.Sprintf("%s%d_%s%s%d%s", symbolFilePrefix, idx, sym.Name, symbolAlignmentMarker, sym.Alignment, symbolFileExt)
}

// ParseSymbolFileName splits a dump file name into the symbol's position
// within its container and section, its name and its alignment. A name
// without an alignment marker yields -1.
func ParseSymbolFileName(base string) (int, string, int, error) {
	s, ok := strings.CutSuffix(base, symbolFileExt)
	if !ok {
		return 0, "", 0, fmt.Errorf("%w: %s is not a symbol file", ErrFormat, base)
	}
	if s, ok = utils.RemovePrefix(s, symbolFilePrefix); !ok {
		return 0, "", 0, fmt.Errorf("%w: %s is not a symbol file", ErrFormat, base)
	}

	sep := strings.IndexByte(s, '_')
	if sep <= 0 {
		return 0, "", 0, fmt.Errorf("%w: %s has no file index", ErrFormat, base)
	}
	idx, err := strconv.Atoi(s[:sep])
	if err != nil {
		return 0, "", 0, fmt.Errorf("%w: %s has no file index", ErrFormat, base)
	}
	name := s[sep+1:]

	align := -1
	if i := strings.LastIndex(name, symbolAlignmentMarker); i >= 0 {
		if align, err = strconv.Atoi(name[i+len(symbolAlignmentMarker):]); err != nil {
			return 0, "", 0, fmt.Errorf("%w: %s has a malformed alignment", ErrFormat, base)
		}
		name = name[:i]
	}
	if name == "" {
		return 0, "", 0, fmt.Errorf("%w: %s has no symbol name", ErrFormat, base)
	}
	return idx, name, align, nil
}

func writeTextFile(path string, write func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// DumpModule writes the unpack tree of m into dir.
func DumpModule(dir string, m *Module) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	err := writeTextFile(filepath.Join(dir, ModuleInfoFileName), func(w *bufio.Writer) error {
		return m.Info.Write(w)
	})
	if err != nil {
		return err
	}

	err = writeTextFile(filepath.Join(dir, SectionsFileName), func(w *bufio.Writer) error {
		for _, sec := range m.Sections {
			fmt.Fprintf(w, "%02d %08X %s\n", sec.Id, sec.Size, sec.Name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = writeTextFile(filepath.Join(dir, FunctionsFileName), func(w *bufio.Writer) error {
		for _, def := range m.Funcs.Defs() {
			fmt.Fprintf(w, "%06d %s\n", def.Id, def.Symbol.Path())
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = writeTextFile(filepath.Join(dir, ContainersFileName), func(w *bufio.Writer) error {
		for _, c := range m.Containers.Containers {
			fmt.Fprintln(w, c.Name)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, c := range m.Containers.Containers {
		order, groups := groupBySection(c)
		for _, section := range order {
			sectionDir := filepath.Join(dir, c.Name, section)
			if err := os.MkdirAll(sectionDir, 0755); err != nil {
				return err
			}
			for idx, sym := range groups[section] {
				if err := os.WriteFile(filepath.Join(sectionDir, SymbolFileName(idx, sym)), sym.Data, 0644); err != nil {
					return err
				}
			}
		}
	}

	return writeTextFile(filepath.Join(dir, RelocationsFileName), func(w *bufio.Writer) error {
		return WriteRelocations(w, m)
	})
}

func readLinesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLines(f)
}

func loadSections(path string, m *Module) error {
	lines, err := readLinesFile(path)
	if err != nil {
		return err
	}

	byId := make(map[int]*SectionInfo)
	maxId := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return fmt.Errorf("%w: %s:%d: %q", ErrFormat, path, i+1, line)
		}
		id, err1 := strconv.Atoi(parts[0])
		size, err2 := strconv.ParseUint(parts[1], 16, 32)
		if err1 != nil || err2 != nil || id < 0 {
			return fmt.Errorf("%w: %s:%d: %q", ErrFormat, path, i+1, line)
		}
		if _, ok := byId[id]; ok {
			return fmt.Errorf("%w: %s:%d: section %d listed twice", ErrFormat, path, i+1, id)
		}
		byId[id] = &SectionInfo{Id: id, Name: strings.TrimSpace(parts[2]), Size: int(size)}
		maxId = max(maxId, id)
	}

	m.Sections = make([]*SectionInfo, maxId+1)
	for id := range m.Sections {
		if sec, ok := byId[id]; ok {
			m.Sections[id] = sec
		} else {
			m.Sections[id] = &SectionInfo{Id: id, Name: fmt.Sprintf("dummy_%02d", id)}
		}
	}
	return nil
}

func containerNames(dir string) ([]string, error) {
	lines, err := readLinesFile(filepath.Join(dir, ContainersFileName))
	if err == nil {
		names := make([]string, 0, len(lines))
		for _, line := range lines {
			if name := strings.TrimSpace(line); name != "" {
				names = append(names, name)
			}
		}
		return names, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func loadContainer(dir, name string, m *Module) error {
	containerDir := filepath.Join(dir, name)
	m.Containers.Get(name)

	sections, err := os.ReadDir(containerDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	for _, sd := range sections {
		if !sd.IsDir() {
			continue
		}
		info := m.Section(sd.Name())
		if info == nil {
			return fmt.Errorf("%w: %s: section %s is not in %s", ErrFormat, containerDir, sd.Name(), SectionsFileName)
		}

		files, err := os.ReadDir(filepath.Join(containerDir, sd.Name()))
		if err != nil {
			return err
		}

		syms := make([]*Symbol, 0, len(files))
		for _, fe := range files {
			if fe.IsDir() || !strings.HasSuffix(fe.Name(), symbolFileExt) {
				continue
			}
			idx, symName, align, err := ParseSymbolFileName(fe.Name())
			if err != nil {
				return err
			}

			data, err := os.ReadFile(filepath.Join(containerDir, sd.Name(), fe.Name()))
			if err != nil {
				return err
			}

			sym := NewSymbol(nil, symName, sd.Name(), info.Id)
			sym.Alignment = align
			sym.FileIdx = idx
			sym.Data = data
			syms = append(syms, sym)
		}

		sortByFileIdx(syms)
		for _, sym := range syms {
			if m.HasPath(SymbolPath(name, sym.SectionName, sym.Name)) {
				return fmt.Errorf("%w: %s/%s: symbol %s defined twice", ErrFormat, containerDir, sd.Name(), sym.Name)
			}
			m.AddSymbol(name, sym)
		}
	}
	return nil
}

func loadFunctions(path string, m *Module) error {
	lines, err := readLinesFile(path)
	if err != nil {
		return err
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		idText, symPath, ok := strings.Cut(line, " ")
		id, err := strconv.Atoi(idText)
		if !ok || err != nil {
			return fmt.Errorf("%w: %s:%d: %q", ErrFormat, path, i+1, line)
		}

		sym := m.SymbolByPath(symPath)
		if sym == nil {
			return fmt.Errorf("%w: %s:%d: no symbol %s", ErrUnresolved, path, i+1, symPath)
		}
		if _, err := m.Funcs.Set(id, sym); err != nil {
			return fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
	}
	return nil
}

// LoadModule reads an unpack tree written by DumpModule. Relocation rows
// are parsed but left unresolved.
func LoadModule(dir string) (*Module, error) {
	m := NewModule(filepath.Base(dir))

	f, err := os.Open(filepath.Join(dir, ModuleInfoFileName))
	if err != nil {
		return nil, err
	}
	m.Info, err = ParseModuleInfo(f.Name(), f)
	f.Close()
	if err != nil {
		return nil, err
	}

	if err := loadSections(filepath.Join(dir, SectionsFileName), m); err != nil {
		return nil, err
	}

	names, err := containerNames(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := loadContainer(dir, name, m); err != nil {
			return nil, err
		}
	}

	if err := loadFunctions(filepath.Join(dir, FunctionsFileName), m); err != nil {
		return nil, err
	}

	rf, err := os.Open(filepath.Join(dir, RelocationsFileName))
	if err != nil {
		return nil, err
	}
	defer rf.Close()
	if m.RelocationRows, err = ParseRelocationRows(rf.Name(), rf); err != nil {
		return nil, err
	}

	return m, nil
}
