package linker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pattyshack/gt/parseutil"
)

const (
	RelocationsFileName = "relocations.txt"

	selfModuleToken     = "self"
	moduleTokenPrefix   = "module_"
	importSectionPrefix = "import_section_"
	offsetSeparator     = "+0x"
)

// Relocation is one patch site. The target is either a symbol of the
// target module or, when Target is nil, a raw offset into section
// SectionIdx of that module.
type Relocation struct {
	Kind RelocType

	Symbol *Symbol
	Offset int

	ModuleId     uint32
	SectionIdx   int
	Target       *Symbol
	TargetOffset int
}

func (r *Relocation) WriteOffset() int {
	return r.Symbol.SectionOffset + r.Offset
}

func (r *Relocation) TargetSection() int {
	if r.Target != nil {
		return r.Target.SectionIdx
	}
	return r.SectionIdx
}

func (r *Relocation) Addend() int {
	if r.Target != nil {
		return r.Target.SectionOffset + r.TargetOffset
	}
	return r.TargetOffset
}

func moduleToken(id, self uint32) string {
	if id == self {
		return selfModuleToken
	}
	return moduleTokenPrefix + strconv.FormatUint(uint64(id), 10)
}

// Format renders r as one row of the relocation listing of module self.
func (r *Relocation) Format(self uint32) string {
	local := fmt.Sprintf("%s %s%s%08X -> %s", r.Kind, r.Symbol.Path(), offsetSeparator, r.Offset,
		moduleToken(r.ModuleId, self))

	if r.Target == nil {
		return fmt.Sprintf("%s %s%d%s%08X", local, importSectionPrefix, r.SectionIdx, offsetSeparator, r.TargetOffset)
	}
	if r.TargetOffset == 0 {
		return local + " " + r.Target.Path()
	}
	return fmt.Sprintf("%s %s%s%08X", local, r.Target.Path(), offsetSeparator, r.TargetOffset)
}

// DecodeRelocations walks the import table of m's module file and maps
// every patch record back onto symbols. modules holds every module being
// unpacked, by id, so targets in other modules resolve to their symbols.
func DecodeRelocations(m *Module, modules map[uint32]*Module) error {
	m.Relocations = m.Relocations[:0]

	for _, imp := range m.Rel.Imports {
		target := modules[imp.Id]
		section := 0
		offset := 0

	records:
		for _, rec := range imp.Relocs {
			switch rec.Type {
			case R_DOLPHIN_SECTION:
				section = int(rec.Section)
				offset = 0
				continue
			case R_DOLPHIN_NOP:
				offset += int(rec.Delta)
				continue
			case R_DOLPHIN_END:
				break records
			}

			offset += int(rec.Delta)
			local := m.FindSymbol(section, offset)
			if local == nil {
				return fmt.Errorf("%w: %s: %s at section %d offset 0x%x is inside no symbol",
					ErrUnresolved, m.Name, rec.Type, section, offset)
			}

			r := &Relocation{
				Kind:         rec.Type,
				Symbol:       local,
				Offset:       offset - local.SectionOffset,
				ModuleId:     imp.Id,
				SectionIdx:   int(rec.Section),
				TargetOffset: int(rec.Addend),
			}
			if target != nil {
				if sym := target.FindSymbol(int(rec.Section), int(rec.Addend)); sym != nil {
					r.Target = sym
					r.TargetOffset = int(rec.Addend) - sym.SectionOffset
				}
			}
			m.Relocations = append(m.Relocations, r)
		}
	}

	return nil
}

func WriteRelocations(w io.Writer, m *Module) error {
	bw := bufio.NewWriter(w)
	for _, r := range m.Relocations {
		if _, err := fmt.Fprintln(bw, r.Format(m.Info.Id)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// RelocationRow is a syntactically valid row of a relocation listing whose
// symbol paths are not resolved yet.
type RelocationRow struct {
	Loc parseutil.Location

	Kind        RelocType
	LocalPath   string
	LocalOffset int

	Self     bool
	ModuleId uint32

	// TargetPath is empty for a raw section target.
	TargetPath    string
	TargetSection int
	TargetOffset  int
}

type rowToken struct {
	text   string
	column int
}

func tokenizeRow(line string) []rowToken {
	tokens := make([]rowToken, 0, 5)
	for i := 0; i < len(line); {
		if line[i] == ' ' || line[i] == '\t' {
			i++
			continue
		}
		start := i
		for i < len(line) && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		tokens = append(tokens, rowToken{text: line[start:i], column: start})
	}
	return tokens
}

func splitOffset(s string) (string, int, bool, error) {
	idx := strings.LastIndex(s, offsetSeparator)
	if idx < 0 {
		return s, 0, false, nil
	}
	v, err := strconv.ParseUint(s[idx+len(offsetSeparator):], 16, 32)
	if err != nil {
		return s, 0, true, err
	}
	return s[:idx], int(v), true, nil
}

func parseRelocationRow(loc parseutil.Location, line string) (RelocationRow, error) {
	row := RelocationRow{Loc: loc}
	at := func(tok rowToken) parseutil.Location {
		l := loc
		l.Column = tok.column
		return l
	}

	tokens := tokenizeRow(line)
	if len(tokens) != 5 || tokens[2].text != "->" {
		return row, parseutil.NewLocationError(loc,
			"expected <kind> <symbol>+0x<offset> -> <module> <target>, found %d fields", len(tokens))
	}

	kind, ok := ParseRelocType(tokens[0].text)
	if !ok || kind.IsControl() {
		return row, parseutil.NewLocationError(at(tokens[0]), "unknown relocation kind %q", tokens[0].text)
	}
	row.Kind = kind

	path, offset, hasOffset, err := splitOffset(tokens[1].text)
	if !hasOffset || err != nil {
		return row, parseutil.NewLocationError(at(tokens[1]), "malformed patch site %q", tokens[1].text)
	}
	row.LocalPath = path
	row.LocalOffset = offset

	switch mod := tokens[3].text; {
	case mod == selfModuleToken:
		row.Self = true
	case strings.HasPrefix(mod, moduleTokenPrefix):
		id, err := strconv.ParseUint(mod[len(moduleTokenPrefix):], 10, 32)
		if err != nil {
			return row, parseutil.NewLocationError(at(tokens[3]), "malformed module %q", mod)
		}
		row.ModuleId = uint32(id)
	default:
		return row, parseutil.NewLocationError(at(tokens[3]), "malformed module %q", mod)
	}

	target := tokens[4].text
	if rest, ok := strings.CutPrefix(target, importSectionPrefix); ok {
		sect, offset, hasOffset, err := splitOffset(rest)
		if !hasOffset || err != nil {
			return row, parseutil.NewLocationError(at(tokens[4]), "malformed section target %q", target)
		}
		idx, err := strconv.ParseUint(sect, 10, 8)
		if err != nil {
			return row, parseutil.NewLocationError(at(tokens[4]), "malformed section target %q", target)
		}
		row.TargetSection = int(idx)
		row.TargetOffset = offset
		return row, nil
	}

	path, offset, hasOffset, err = splitOffset(target)
	if hasOffset && err != nil {
		return row, parseutil.NewLocationError(at(tokens[4]), "malformed target offset %q", target)
	}
	if path == "" {
		return row, parseutil.NewLocationError(at(tokens[4]), "empty target")
	}
	row.TargetPath = path
	row.TargetOffset = offset
	return row, nil
}

// ParseRelocationRows reads a relocation listing. Every malformed row is
// reported, not just the first.
func ParseRelocationRows(name string, r io.Reader) ([]RelocationRow, error) {
	rows := make([]RelocationRow, 0)
	emitter := &parseutil.Emitter{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		row, err := parseRelocationRow(parseutil.Location{FileName: name, Line: lineNo}, line)
		if err != nil {
			emitter.EmitErrors(err)
			continue
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if emitter.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrFormat, errors.Join(emitter.Errors()...))
	}
	return rows, nil
}

// ResolveRelocations binds the parsed rows of m to symbols. links must
// already hold every module of the tree.
func ResolveRelocations(m *Module, links *LinkContext) error {
	m.Relocations = make([]*Relocation, 0, len(m.RelocationRows))

	for _, row := range m.RelocationRows {
		local := m.SymbolByPath(row.LocalPath)
		if local == nil {
			return fmt.Errorf("%w: %s: no symbol %s", ErrUnresolved, row.Loc, row.LocalPath)
		}

		moduleId := row.ModuleId
		if row.Self {
			moduleId = m.Info.Id
		}

		r := &Relocation{
			Kind:         row.Kind,
			Symbol:       local,
			Offset:       row.LocalOffset,
			ModuleId:     moduleId,
			SectionIdx:   row.TargetSection,
			TargetOffset: row.TargetOffset,
		}

		if row.TargetPath != "" {
			if !links.HasModule(moduleId) {
				return fmt.Errorf("%w: %s: module %d is not part of the tree",
					ErrUnresolved, row.Loc, moduleId)
			}
			target, ok := links.Lookup(moduleId, row.TargetPath)
			if !ok {
				return fmt.Errorf("%w: %s: module %d has no symbol %s",
					ErrUnresolved, row.Loc, moduleId, row.TargetPath)
			}
			r.Target = target
			r.SectionIdx = target.SectionIdx
		}

		m.Relocations = append(m.Relocations, r)
	}

	return nil
}

// EncodeRelocations builds the import table and the relocation records of
// a module. Imports follow the order in which target modules first
// appear. Each import holds one run per patched section, sorted by write
// offset, and ends with R_DOLPHIN_END. Import offsets are record indices
// scaled to bytes, relative to the first record.
func EncodeRelocations(relocs []*Relocation) ([]Import, []Reloc, error) {
	moduleOrder := make([]uint32, 0)
	byModule := make(map[uint32][]*Relocation)
	for _, r := range relocs {
		if _, ok := byModule[r.ModuleId]; !ok {
			moduleOrder = append(moduleOrder, r.ModuleId)
		}
		byModule[r.ModuleId] = append(byModule[r.ModuleId], r)
	}

	imports := make([]Import, 0, len(moduleOrder))
	records := make([]Reloc, 0, len(relocs)+2*len(moduleOrder))

	for _, id := range moduleOrder {
		imports = append(imports, Import{Id: id, Offset: uint32(len(records) * RelRelocSize)})

		sectionOrder := make([]int, 0)
		bySection := make(map[int][]*Relocation)
		for _, r := range byModule[id] {
			idx := r.Symbol.SectionIdx
			if _, ok := bySection[idx]; !ok {
				sectionOrder = append(sectionOrder, idx)
			}
			bySection[idx] = append(bySection[idx], r)
		}

		for _, idx := range sectionOrder {
			if idx < 0 || idx > 0xFF {
				return nil, nil, fmt.Errorf("%w: patched section %d does not fit a record", ErrFormat, idx)
			}
			records = append(records, Reloc{Type: R_DOLPHIN_SECTION, Section: uint8(idx)})

			run := bySection[idx]
			sort.SliceStable(run, func(i, j int) bool {
				return run[i].WriteOffset() < run[j].WriteOffset()
			})

			cur := 0
			for _, r := range run {
				sect, addend := r.TargetSection(), r.Addend()
				if sect < 0 || sect > 0xFF || addend < 0 {
					return nil, nil, fmt.Errorf("%w: %s+0x%x targets section %d offset %d",
						ErrFormat, r.Symbol.Path(), r.Offset, sect, addend)
				}

				delta := r.WriteOffset() - cur
				for delta >= MaxRelocDelta {
					records = append(records, Reloc{Delta: MaxRelocDelta, Type: R_DOLPHIN_NOP})
					delta -= MaxRelocDelta
				}
				records = append(records, Reloc{
					Delta:   uint16(delta),
					Type:    r.Kind,
					Section: uint8(sect),
					Addend:  uint32(addend),
				})
				cur = r.WriteOffset()
			}
		}

		records = append(records, Reloc{Type: R_DOLPHIN_END})
	}

	return imports, records, nil
}
