package linker

import (
	"fmt"

	"github.com/ksco/relink/pkg/utils"
)

const (
	primaryOpcode   uint32 = 18
	branchOpcode    uint32 = primaryOpcode << 26
	branchFieldMask uint32 = 0x03FFFFFC
	absoluteBit     uint32 = 1 << 1
	linkBit         uint32 = 1

	minBranchDistance = -0x2000000
	maxBranchDistance = 0x1FFFFFC
)

func isBranchWithLink(ins uint32) bool {
	return utils.Bits(ins, 31, 26) == primaryOpcode && utils.Bit(ins, 0) == 1
}

// branchDistance decodes the signed 26-bit displacement of an I-form branch.
func branchDistance(ins uint32) int {
	return int(int64(utils.SignExtend(uint64(ins&branchFieldMask), 25)))
}

func itype(val uint32) uint32 {
	return val & branchFieldMask
}

func writeItype(loc []byte, val uint32) {
	utils.Write[uint32](loc, (utils.Read[uint32](loc)&^branchFieldMask)|itype(val))
}

// UnlinkFunctions numbers the code symbols (in order, from 1) and rewrites
// every relative branch-with-link between them so the displacement field
// holds the callee's id. Branches with a zero displacement are calls into
// another module and are left untouched.
func UnlinkFunctions(symbols []*Symbol) (*FunctionTable, error) {
	funcs := NewFunctionTable()
	byOffset := make(map[int]*FunctionDefinition)

	for _, sym := range symbols {
		if !sym.IsExecutable() {
			continue
		}
		def := funcs.Add(sym)
		if _, ok := byOffset[sym.SectionOffset]; !ok {
			byOffset[sym.SectionOffset] = def
		}
	}

	for _, caller := range funcs.Defs() {
		sym := caller.Symbol
		for idx := 0; idx+4 <= sym.Size(); idx += 4 {
			loc := sym.Data[idx:]
			ins := utils.Read[uint32](loc)
			if !isBranchWithLink(ins) {
				continue
			}

			if ins&absoluteBit != 0 {
				return nil, fmt.Errorf("%w: absolute branch 0x%08x in %s+0x%x",
					ErrUnsupportedInstruction, ins, sym.Path(), idx)
			}

			dist := branchDistance(ins)
			if dist == 0 {
				continue
			}

			target := sym.SectionOffset + idx + dist
			callee, ok := byOffset[target]
			if !ok {
				return nil, fmt.Errorf("%w: branch in %s+0x%x targets section offset 0x%x which starts no function",
					ErrUnresolved, sym.Path(), idx, target)
			}

			funcs.AddReference(caller, callee, idx)
			writeItype(loc, uint32(callee.Id)<<2)
		}
	}

	return funcs, nil
}

// RelinkFunction is the inverse of UnlinkFunctions for one placed code
// symbol: every branch-with-link carrying a function id is rewritten to the
// displacement of that function's current location.
func RelinkFunction(sym *Symbol, funcs *FunctionTable) error {
	if sym.SectionOffset < 0 {
		return fmt.Errorf("%w: %s has not been placed", ErrUnresolved, sym.Path())
	}

	for idx := 0; idx+4 <= sym.Size(); idx += 4 {
		loc := sym.Data[idx:]
		ins := utils.Read[uint32](loc)
		if !isBranchWithLink(ins) {
			continue
		}

		id := int((ins & branchFieldMask) >> 2)
		if id == 0 {
			continue
		}

		if id > funcs.Len() {
			return fmt.Errorf("%w: %s+0x%x calls function %d but only %d are known",
				ErrUnresolved, sym.Path(), idx, id, funcs.Len())
		}
		callee := funcs.Get(id)
		if callee == nil {
			return fmt.Errorf("%w: %s+0x%x calls undefined function %d",
				ErrUnresolved, sym.Path(), idx, id)
		}
		if callee.Symbol.SectionOffset < 0 {
			return fmt.Errorf("%w: function %d (%s) has not been placed",
				ErrUnresolved, id, callee.Symbol.Path())
		}

		dist := callee.Symbol.SectionOffset - (sym.SectionOffset + idx)
		if dist < minBranchDistance || dist > maxBranchDistance || !utils.IsAligned(dist, 4) {
			return fmt.Errorf("%w: %s+0x%x to %s is %d bytes away",
				ErrBranchRange, sym.Path(), idx, callee.Symbol.Path(), dist)
		}

		writeItype(loc, uint32(int32(dist)))
	}

	return nil
}
