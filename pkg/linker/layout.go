package linker

import (
	"fmt"
	"sort"

	"github.com/ksco/relink/pkg/utils"
)

const minContainerAlign = 8

// sectionBuffer grows on write only. Seeking past the end leaves the
// length alone until something is written there.
type sectionBuffer struct {
	data []byte
	pos  int
}

func (b *sectionBuffer) alignTo(align int) {
	b.pos = utils.AlignTo(b.pos, align)
}

func (b *sectionBuffer) write(bs []byte) {
	if end := b.pos + len(bs); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	copy(b.data[b.pos:], bs)
	b.pos += len(bs)
}

func containerAlignment(c *Container, section string) int {
	align := c.SectionAlignment[section]
	if section != TextSectionName && align < minContainerAlign {
		align = minContainerAlign
	}
	return align
}

// groupBySection splits the symbols of a container by section, keeping the
// order in which the sections first appear and the insertion order of the
// symbols.
func groupBySection(c *Container) ([]string, map[string][]*Symbol) {
	order := make([]string, 0)
	groups := make(map[string][]*Symbol)
	for _, sym := range c.Symbols {
		if _, ok := groups[sym.SectionName]; !ok {
			order = append(order, sym.SectionName)
		}
		groups[sym.SectionName] = append(groups[sym.SectionName], sym)
	}
	return order, groups
}

func sortByFileIdx(syms []*Symbol) {
	sort.SliceStable(syms, func(i, j int) bool {
		return syms[i].FileIdx < syms[j].FileIdx
	})
}

// LayoutSections assigns a section offset to every symbol of m and builds
// the contents of each initialized section. The prolog, when given, is
// placed first at offset zero of its section. Containers keep their order
// and each container's run within a section starts at the container's
// alignment.
func LayoutSections(m *Module, prolog *Symbol) error {
	buffers := make(map[string]*sectionBuffer)
	bssSizes := make(map[string]int)

	for _, c := range m.Containers.Containers {
		for _, sym := range c.Symbols {
			if m.Section(sym.SectionName) == nil {
				return fmt.Errorf("%w: %s is in unknown section %s", ErrFormat, sym.Path(), sym.SectionName)
			}
		}
	}

	if prolog != nil {
		buf := &sectionBuffer{}
		buf.write(prolog.Data)
		buffers[prolog.SectionName] = buf
		prolog.SectionOffset = 0
	}

	for _, c := range m.Containers.Containers {
		order, groups := groupBySection(c)
		for _, section := range order {
			syms := groups[section]
			sortByFileIdx(syms)
			align := containerAlignment(c, section)

			if IsBssSection(section) {
				size := utils.AlignTo(bssSizes[section], align)
				for _, sym := range syms {
					size = utils.AlignTo(size, sym.Alignment)
					sym.SectionOffset = size
					size += sym.Size()
				}
				bssSizes[section] = size
				continue
			}

			buf, ok := buffers[section]
			if !ok {
				buf = &sectionBuffer{}
				buffers[section] = buf
			}

			buf.alignTo(align)
			for _, sym := range syms {
				if sym == prolog {
					continue
				}
				buf.alignTo(sym.Alignment)
				sym.SectionOffset = buf.pos
				buf.write(sym.Data)
			}
		}
	}

	m.Buffers = make(map[string][]byte)
	for _, sec := range m.Sections {
		switch {
		case IsPlaceholderSection(sec.Name):
			sec.Size = 0
		case IsBssSection(sec.Name):
			if size, ok := bssSizes[sec.Name]; ok {
				sec.Size = size
			}
		default:
			if buf, ok := buffers[sec.Name]; ok {
				m.Buffers[sec.Name] = buf.data
			} else {
				m.Buffers[sec.Name] = make([]byte, sec.Size)
			}
			sec.Size = len(m.Buffers[sec.Name])
		}
	}

	m.InvalidateIndex()
	return nil
}

// RelinkModule restores the branch displacements of every code symbol and
// copies the patched bytes into the laid out code section.
func RelinkModule(m *Module) error {
	text := m.Buffers[TextSectionName]
	for _, def := range m.Funcs.Defs() {
		sym := def.Symbol
		if err := RelinkFunction(sym, m.Funcs); err != nil {
			return err
		}
		if sym.SectionOffset+sym.Size() > len(text) {
			return fmt.Errorf("%w: %s lies outside %s", ErrFormat, sym.Path(), TextSectionName)
		}
		copy(text[sym.SectionOffset:], sym.Data)
	}
	return nil
}
