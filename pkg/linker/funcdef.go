package linker

import "fmt"

// FunctionReference records that the caller branches to the callee at
// Offset bytes into the caller.
type FunctionReference struct {
	Caller int
	Callee int
	Offset int
}

type FunctionDefinition struct {
	Id         int
	Symbol     *Symbol
	References []FunctionReference
}

// FunctionTable owns the definitions of one module, indexed by id. Id 0
// is reserved for "no function".
type FunctionTable struct {
	defs []*FunctionDefinition
}

func NewFunctionTable() *FunctionTable {
	return &FunctionTable{defs: []*FunctionDefinition{nil}}
}

// Add assigns the next free id to sym.
func (t *FunctionTable) Add(sym *Symbol) *FunctionDefinition {
	def := &FunctionDefinition{Id: len(t.defs), Symbol: sym}
	t.defs = append(t.defs, def)
	return def
}

// Set places sym at an explicit id, as recorded in an unpack tree.
func (t *FunctionTable) Set(id int, sym *Symbol) (*FunctionDefinition, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: function id %d", ErrFormat, id)
	}
	for len(t.defs) <= id {
		t.defs = append(t.defs, nil)
	}
	if t.defs[id] != nil {
		return nil, fmt.Errorf("%w: function id %d defined twice", ErrFormat, id)
	}
	t.defs[id] = &FunctionDefinition{Id: id, Symbol: sym}
	return t.defs[id], nil
}

func (t *FunctionTable) Get(id int) *FunctionDefinition {
	if id <= 0 || id >= len(t.defs) {
		return nil
	}
	return t.defs[id]
}

// Len is the largest id in use.
func (t *FunctionTable) Len() int {
	return len(t.defs) - 1
}

// Defs returns the definitions in id order, skipping unused ids.
func (t *FunctionTable) Defs() []*FunctionDefinition {
	defs := make([]*FunctionDefinition, 0, len(t.defs))
	for _, def := range t.defs {
		if def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

func (t *FunctionTable) AddReference(caller, callee *FunctionDefinition, offset int) {
	caller.References = append(caller.References, FunctionReference{
		Caller: caller.Id,
		Callee: callee.Id,
		Offset: offset,
	})
}

func (t *FunctionTable) FindBySymbol(sym *Symbol) *FunctionDefinition {
	for _, def := range t.defs {
		if def != nil && def.Symbol == sym {
			return def
		}
	}
	return nil
}
