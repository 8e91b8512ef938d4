package linker

import (
	"github.com/ksco/relink/pkg/config"
	"github.com/ksco/relink/pkg/utils"
)

type ContextArg struct {
	Root string
}

type Context struct {
	Arg    ContextArg
	Config *config.Config

	Modules []*Module
	Visited utils.MapSet[uint32]

	Links *LinkContext
}

func NewContext(root string, cfg *config.Config) *Context {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Context{
		Arg:     ContextArg{Root: root},
		Config:  cfg,
		Visited: utils.NewMapSet[uint32](),
	}
}

func (ctx *Context) ModulesById() map[uint32]*Module {
	modules := make(map[uint32]*Module, len(ctx.Modules))
	for _, m := range ctx.Modules {
		modules[m.Info.Id] = m
	}
	return modules
}

// LinkContext is the read-only view of all laid out modules that
// relocation resolution works against.
type LinkContext struct {
	symbols map[uint32]map[string]*Symbol
}

func NewLinkContext(modules []*Module) *LinkContext {
	l := &LinkContext{symbols: make(map[uint32]map[string]*Symbol, len(modules))}
	for _, m := range modules {
		paths := make(map[string]*Symbol, len(m.Symbols))
		for _, sym := range m.Symbols {
			paths[sym.Path()] = sym
		}
		l.symbols[m.Info.Id] = paths
	}
	return l
}

func (l *LinkContext) HasModule(id uint32) bool {
	_, ok := l.symbols[id]
	return ok
}

func (l *LinkContext) Lookup(id uint32, path string) (*Symbol, bool) {
	sym, ok := l.symbols[id][path]
	return sym, ok
}
