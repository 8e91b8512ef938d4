package linker

import (
	"testing"

	"github.com/ksco/relink/pkg/test"
	"github.com/ksco/relink/pkg/utils"
)

const (
	insNop = 0x60000000
	insBlr = 0x4E800020
)

func bl(dist int) uint32 {
	return branchOpcode | (uint32(int32(dist)) & branchFieldMask) | linkBit
}

func code(ins ...uint32) []byte {
	data := make([]byte, 4*len(ins))
	for i, v := range ins {
		utils.Write[uint32](data[4*i:], v)
	}
	return data
}

func textSymbol(name string, offset int, ins ...uint32) *Symbol {
	sym := NewSymbol(nil, name, TextSectionName, 1)
	sym.SectionOffset = offset
	sym.Alignment = 4
	sym.Data = code(ins...)
	return sym
}

func insAt(sym *Symbol, idx int) uint32 {
	return utils.Read[uint32](sym.Data[idx:])
}

func TestBranchDistance(t *testing.T) {
	test.ExpectEquality(t, branchDistance(bl(8)), 8)
	test.ExpectEquality(t, branchDistance(bl(-4)), -4)
	test.ExpectEquality(t, branchDistance(bl(maxBranchDistance)), maxBranchDistance)
	test.ExpectEquality(t, branchDistance(bl(minBranchDistance)), minBranchDistance)
	test.ExpectEquality(t, branchDistance(0x4BFFFFFD), -4)
	test.ExpectEquality(t, branchDistance(branchOpcode|0x02000004|linkBit), -0x1FFFFFC)
}

func TestUnlinkRelinkMovedCallee(t *testing.T) {
	a := textSymbol("A", 0x00, insNop, insNop, bl(0x40-8), insBlr)
	b := textSymbol("B", 0x40, insBlr)
	c := textSymbol("C", 0x80, insBlr)

	funcs, err := UnlinkFunctions([]*Symbol{a, b, c})
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, insAt(a, 8), unlinkedCall(2))
	test.ExpectDeepEquality(t, funcs.Get(1).References, []FunctionReference{{Caller: 1, Callee: 2, Offset: 8}})

	b.SectionOffset = 0x50
	test.DemandSuccess(t, RelinkFunction(a, funcs))
	test.ExpectEquality(t, insAt(a, 8), bl(0x48))
}

func TestRecursiveCallsAreRecordedPerSite(t *testing.T) {
	f := textSymbol("f", 0, insNop, bl(-4), bl(-8), insBlr)

	funcs, err := UnlinkFunctions([]*Symbol{f})
	test.DemandSuccess(t, err)
	test.ExpectDeepEquality(t, funcs.Get(1).References, []FunctionReference{
		{Caller: 1, Callee: 1, Offset: 4},
		{Caller: 1, Callee: 1, Offset: 8},
	})
}

func callGraph() (*Symbol, *Symbol, *Symbol) {
	a := textSymbol("a", 0x00, bl(0x10), insNop)
	b := textSymbol("b", 0x08, bl(-0x08), insBlr)
	c := textSymbol("c", 0x10, bl(0), 0x48000008)
	return a, b, c
}

func TestUnlinkFunctions(t *testing.T) {
	a, b, c := callGraph()

	funcs, err := UnlinkFunctions([]*Symbol{a, b, c})
	test.DemandSuccess(t, err)
	test.DemandEquality(t, funcs.Len(), 3)
	test.ExpectEquality(t, funcs.Get(1).Symbol, a)
	test.ExpectEquality(t, funcs.Get(2).Symbol, b)
	test.ExpectEquality(t, funcs.Get(3).Symbol, c)

	test.ExpectEquality(t, insAt(a, 0), uint32(0x4800000D), "a calls c")
	test.ExpectEquality(t, insAt(a, 4), uint32(insNop))
	test.ExpectEquality(t, insAt(b, 0), uint32(0x48000005), "b calls a")
	test.ExpectEquality(t, insAt(c, 0), uint32(0x48000001), "external call")
	test.ExpectEquality(t, insAt(c, 4), uint32(0x48000008), "branch without link")

	test.ExpectDeepEquality(t, funcs.Get(1).References, []FunctionReference{{Caller: 1, Callee: 3, Offset: 0}})
	test.ExpectDeepEquality(t, funcs.Get(2).References, []FunctionReference{{Caller: 2, Callee: 1, Offset: 0}})
	test.ExpectEquality(t, len(funcs.Get(3).References), 0)
}

func TestUnlinkSkipsDataSymbols(t *testing.T) {
	a := textSymbol("a", 0, insBlr)
	d := NewSymbol(nil, "d", ".data", 2)
	d.SectionOffset = 0
	d.Data = code(bl(8))

	funcs, err := UnlinkFunctions([]*Symbol{d, a})
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, funcs.Len(), 1)
	test.ExpectEquality(t, insAt(d, 0), bl(8))
}

func TestUnlinkErrors(t *testing.T) {
	abs := textSymbol("abs", 0, 0x48000013)
	_, err := UnlinkFunctions([]*Symbol{abs})
	test.ExpectError(t, err, ErrUnsupportedInstruction, "absolute branch")

	mid := textSymbol("mid", 0, bl(4), insBlr)
	_, err = UnlinkFunctions([]*Symbol{mid})
	test.ExpectError(t, err, ErrUnresolved, "branch into the middle of a function")
}

func TestRelinkRestoresBranches(t *testing.T) {
	a, b, c := callGraph()
	want := [][]byte{
		append([]byte(nil), a.Data...),
		append([]byte(nil), b.Data...),
		append([]byte(nil), c.Data...),
	}

	funcs, err := UnlinkFunctions([]*Symbol{a, b, c})
	test.DemandSuccess(t, err)

	for i, sym := range []*Symbol{a, b, c} {
		test.DemandSuccess(t, RelinkFunction(sym, funcs), sym.Name)
		test.ExpectDeepEquality(t, sym.Data, want[i], sym.Name)
	}
}

func TestRelinkFollowsMovedFunctions(t *testing.T) {
	a, b, c := callGraph()
	funcs, err := UnlinkFunctions([]*Symbol{a, b, c})
	test.DemandSuccess(t, err)

	a.SectionOffset = 0x100
	c.SectionOffset = 0x20

	test.DemandSuccess(t, RelinkFunction(a, funcs))
	test.DemandSuccess(t, RelinkFunction(b, funcs))
	test.ExpectEquality(t, branchDistance(insAt(a, 0)), 0x20-0x100)
	test.ExpectEquality(t, branchDistance(insAt(b, 0)), 0x100-0x08)
	test.ExpectEquality(t, insAt(a, 0)&linkBit, linkBit)
	test.ExpectEquality(t, insAt(a, 0)&absoluteBit, uint32(0))
}

func TestRelinkErrors(t *testing.T) {
	funcs := NewFunctionTable()
	caller := funcs.Add(textSymbol("caller", 0, 0x48000000|(9<<2)|linkBit)).Symbol
	err := RelinkFunction(caller, funcs)
	test.ExpectError(t, err, ErrUnresolved, "unknown id")

	funcs = NewFunctionTable()
	caller = funcs.Add(textSymbol("caller", 0, 0x48000000|(2<<2)|linkBit)).Symbol
	far := funcs.Add(textSymbol("far", maxBranchDistance+4, insBlr)).Symbol
	err = RelinkFunction(caller, funcs)
	test.ExpectError(t, err, ErrBranchRange, "too far")

	far.SectionOffset = -1
	err = RelinkFunction(caller, funcs)
	test.ExpectError(t, err, ErrUnresolved, "unplaced callee")
}
