package linker

type Container struct {
	Name    string
	Symbols []*Symbol

	// SectionAlignment is the largest symbol alignment per section name.
	SectionAlignment map[string]int
}

func NewContainer(name string) *Container {
	return &Container{
		Name:             name,
		SectionAlignment: make(map[string]int),
	}
}

func (c *Container) AddSymbol(sym *Symbol) {
	sym.Container = c
	c.Symbols = append(c.Symbols, sym)

	if align, ok := c.SectionAlignment[sym.SectionName]; !ok || sym.Alignment > align {
		c.SectionAlignment[sym.SectionName] = sym.Alignment
	}
}

// SectionSymbols returns the symbols placed in section, in insertion order.
func (c *Container) SectionSymbols(section string) []*Symbol {
	syms := make([]*Symbol, 0)
	for _, sym := range c.Symbols {
		if sym.SectionName == section {
			syms = append(syms, sym)
		}
	}
	return syms
}

type ContainerSet struct {
	Containers []*Container
	byName     map[string]*Container
}

func NewContainerSet() *ContainerSet {
	return &ContainerSet{byName: make(map[string]*Container)}
}

func (s *ContainerSet) Get(name string) *Container {
	if c, ok := s.byName[name]; ok {
		return c
	}
	c := NewContainer(name)
	s.byName[name] = c
	s.Containers = append(s.Containers, c)
	return c
}
