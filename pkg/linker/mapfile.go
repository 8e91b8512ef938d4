package linker

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ksco/relink/pkg/logging"
	"github.com/ksco/relink/pkg/utils"
)

const (
	sectionLayoutMarker = " section layout"
	memoryMapMarker     = "Memory map:"
)

type MemoryMapEntry struct {
	Name string
	Size int
}

type MapFile struct {
	Name      string
	MemoryMap []MemoryMapEntry

	// SectionIds maps the name of every non-empty section to the id its
	// symbols are filed under.
	SectionIds map[string]int
}

func (f *MapFile) memorySize(name string) (int, bool) {
	for _, e := range f.MemoryMap {
		if e.Name == name {
			return e.Size, true
		}
	}
	return 0, false
}

func readLines(r io.Reader) ([]string, error) {
	lines := make([]string, 0)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

// ParseMemoryMap reads the "Memory map:" block. Debug sections are
// ignored.
func ParseMemoryMap(lines []string) ([]MemoryMapEntry, error) {
	entries := make([]MemoryMapEntry, 0)

	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == memoryMapMarker {
			start = i + 3
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: no %q block", ErrFormat, memoryMapMarker)
	}

	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			break
		}
		if !strings.HasPrefix(line, ".") || strings.Contains(line, ".debug") || strings.Contains(line, ".line") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: memory map line %d: %q", ErrFormat, i+1, line)
		}
		size, err := strconv.ParseUint(fields[2], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: memory map line %d: bad size %q", ErrFormat, i+1, fields[2])
		}
		entries = append(entries, MemoryMapEntry{Name: fields[0], Size: int(size)})
	}

	return entries, nil
}

// ParseMap reads the symbol layout of a module map and adds every symbol
// to m, copying its bytes out of the module's sections. Names repeated
// within a container and section are made unique with a numbered
// DuplicateSuffix.
func ParseMap(name string, r io.Reader, m *Module) (*MapFile, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	f := &MapFile{Name: name, SectionIds: make(map[string]int)}
	if f.MemoryMap, err = ParseMemoryMap(lines); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	sectionId := 0
	sectionName := ""
	var current *Container
	duplicates := 0

	for i, line := range lines {
		if strings.TrimSpace(line) == memoryMapMarker {
			break
		}

		if strings.HasPrefix(line, ".") && strings.Contains(line, sectionLayoutMarker) {
			sectionName = line[:strings.Index(line, sectionLayoutMarker)]
			size, ok := f.memorySize(sectionName)
			if !ok {
				return nil, fmt.Errorf("%w: %s:%d: section %s is missing from the memory map",
					ErrFormat, name, i+1, sectionName)
			}
			if size > 0 {
				sectionId++
				f.SectionIds[sectionName] = sectionId
			}
			current = nil
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 6 || sectionName == "" {
			logging.Infof("map", "%s:%d: skipped %q", name, i+1, strings.TrimSpace(line))
			continue
		}

		if fields[4] == sectionName {
			current = m.Containers.Get(fields[5])
			continue
		}

		offset, err1 := strconv.ParseUint(fields[0], 16, 32)
		size, err2 := strconv.ParseUint(fields[1], 16, 32)
		align, err3 := strconv.Atoi(fields[3])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%w: %s:%d: malformed symbol row %q", ErrFormat, name, i+1, strings.TrimSpace(line))
		}

		if current == nil || current.Name != fields[5] {
			current = m.Containers.Get(fields[5])
		}

		sym := NewSymbol(current, fields[4], sectionName, sectionId)
		sym.SectionOffset = int(offset)
		sym.Alignment = align
		sym.FileIdx = len(current.SectionSymbols(sectionName))
		sym.Data = make([]byte, size)

		if !IsBssSection(sectionName) && size > 0 {
			if err := copySymbolData(m, sym); err != nil {
				return nil, fmt.Errorf("%s:%d: %w", name, i+1, err)
			}
		}

		for m.HasPath(sym.Path()) {
			duplicates++
			renamed := fields[4] + DuplicateSuffix + strconv.Itoa(duplicates)
			logging.Warnf("map", "%s: duplicate symbol %s renamed to %s", name, sym.Path(), renamed)
			sym.Name = renamed
		}
		m.AddSymbol(current.Name, sym)
	}

	return f, nil
}

func copySymbolData(m *Module, sym *Symbol) error {
	if m.Rel == nil || sym.SectionIdx <= 0 || sym.SectionIdx >= len(m.Rel.Sections) {
		return fmt.Errorf("%w: %s lies in section %d which the module does not have",
			ErrFormat, sym.Path(), sym.SectionIdx)
	}

	data := m.Rel.Sections[sym.SectionIdx].Data
	end := sym.SectionOffset + sym.Size()
	if end > len(data) {
		return fmt.Errorf("%w: %s ends at 0x%x beyond section %d (0x%x bytes)",
			ErrFormat, sym.Path(), end, sym.SectionIdx, len(data))
	}
	copy(sym.Data, data[sym.SectionOffset:end])
	return nil
}

// BuildSectionTable names the section slots of the module from the map.
// Slots the map does not name become placeholders.
func BuildSectionTable(m *Module, f *MapFile) error {
	names := make(map[int]string)
	for name, id := range f.SectionIds {
		if id >= len(m.Rel.Sections) {
			return fmt.Errorf("%w: %s names section %d (%s) but the module has %d sections",
				ErrFormat, f.Name, id, name, len(m.Rel.Sections))
		}
		names[id] = name
	}

	m.Sections = make([]*SectionInfo, len(m.Rel.Sections))
	for i, sec := range m.Rel.Sections {
		name, ok := names[i]
		if !ok {
			name = "dummy"
			if i > 0 {
				name = fmt.Sprintf("dummy_%02d", i)
			}
			if sec.Desc.Size > 0 {
				logging.Warnf("unpack", "%s: section %d (0x%x bytes) has no name in the map and is dropped",
					m.Name, i, sec.Desc.Size)
			}
		}
		m.Sections[i] = &SectionInfo{Id: i, Name: name, Size: int(sec.Desc.Size)}
	}
	return nil
}

// WriteMap emits a map for the laid out module in the format ParseMap
// reads.
func WriteMap(w io.Writer, m *Module, base int) error {
	bw := bufio.NewWriter(w)

	sections := utils.RemoveIf(append([]*SectionInfo(nil), m.Sections...), func(sec *SectionInfo) bool {
		return sec == nil || IsPlaceholderSection(sec.Name)
	})

	for _, sec := range sections {
		syms := make([]*Symbol, 0)
		for _, sym := range m.Symbols {
			if sym.SectionName == sec.Name {
				syms = append(syms, sym)
			}
		}
		sort.SliceStable(syms, func(i, j int) bool {
			return syms[i].SectionOffset < syms[j].SectionOffset
		})

		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "%s section layout\n", sec.Name)
		fmt.Fprintln(bw, "  Starting        Virtual")
		fmt.Fprintln(bw, "  address  Size   address")
		fmt.Fprintln(bw, "  -----------------------")
		for _, sym := range syms {
			fmt.Fprintf(bw, "  %08x %06x %08x%3d %s \t%s\n",
				sym.SectionOffset, sym.Size(), sym.SectionOffset, sym.Alignment,
				sym.OriginalName(), sym.ContainerName())
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, memoryMapMarker)
	fmt.Fprintln(bw, "                   Starting Size     File")
	fmt.Fprintln(bw, "                   address           Offset")
	offset := base
	for _, sec := range sections {
		fmt.Fprintf(bw, "%17s  00000000 %08x %08x\n", sec.Name, sec.Size, offset)
		offset += sec.Size
	}

	return bw.Flush()
}
