package linker

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	RelHeaderSizeV1 = 0x40
	RelHeaderSizeV2 = 0x48
	RelHeaderSizeV3 = 0x4C

	RelSectionDescSize = 8
	RelImportSize      = 8
	RelRelocSize       = 8

	SectionExecFlag uint32 = 1

	MaxRelocDelta = 0xFFFF
)

type RelHeader struct {
	Id                uint32
	Next              uint32
	Prev              uint32
	NumSections       uint32
	SectionInfoOffset uint32
	NameOffset        uint32
	NameSize          uint32
	Version           uint32
	BssSize           uint32
	RelOffset         uint32
	ImpOffset         uint32
	ImpSize           uint32
	PrologSection     uint8
	EpilogSection     uint8
	UnresolvedSection uint8
	BssSection        uint8
	Prolog            uint32
	Epilog            uint32
	Unresolved        uint32
	Align             uint32
	BssAlign          uint32
	FixSize           uint32
}

func HeaderSize(version uint32) int {
	switch {
	case version <= 1:
		return RelHeaderSizeV1
	case version == 2:
		return RelHeaderSizeV2
	}
	return RelHeaderSizeV3
}

type SectionDesc struct {
	Offset uint32
	Size   uint32
}

func (d SectionDesc) IsExec() bool {
	return d.Offset&SectionExecFlag != 0
}

func (d SectionDesc) Addr() uint32 {
	return d.Offset &^ SectionExecFlag
}

type Import struct {
	Id     uint32
	Offset uint32
}

type RelocType uint8

const (
	R_PPC_NONE            RelocType = 0
	R_PPC_ADDR32          RelocType = 1
	R_PPC_ADDR24          RelocType = 2
	R_PPC_ADDR16          RelocType = 3
	R_PPC_ADDR16_LO       RelocType = 4
	R_PPC_ADDR16_HI       RelocType = 5
	R_PPC_ADDR16_HA       RelocType = 6
	R_PPC_ADDR14          RelocType = 7
	R_PPC_ADDR14_BRTAKEN  RelocType = 8
	R_PPC_ADDR14_BRNTAKEN RelocType = 9
	R_PPC_REL24           RelocType = 10
	R_PPC_REL14           RelocType = 11
	R_PPC_REL14_BRTAKEN   RelocType = 12
	R_PPC_REL14_BRNTAKEN  RelocType = 13

	R_DOLPHIN_NOP     RelocType = 201
	R_DOLPHIN_SECTION RelocType = 202
	R_DOLPHIN_END     RelocType = 203
	R_DOLPHIN_MRKREF  RelocType = 204
)

var relocTypeNames = map[RelocType]string{
	R_PPC_NONE:            "R_PPC_NONE",
	R_PPC_ADDR32:          "R_PPC_ADDR32",
	R_PPC_ADDR24:          "R_PPC_ADDR24",
	R_PPC_ADDR16:          "R_PPC_ADDR16",
	R_PPC_ADDR16_LO:       "R_PPC_ADDR16_LO",
	R_PPC_ADDR16_HI:       "R_PPC_ADDR16_HI",
	R_PPC_ADDR16_HA:       "R_PPC_ADDR16_HA",
	R_PPC_ADDR14:          "R_PPC_ADDR14",
	R_PPC_ADDR14_BRTAKEN:  "R_PPC_ADDR14_BRTAKEN",
	R_PPC_ADDR14_BRNTAKEN: "R_PPC_ADDR14_BRNTAKEN",
	R_PPC_REL24:           "R_PPC_REL24",
	R_PPC_REL14:           "R_PPC_REL14",
	R_PPC_REL14_BRTAKEN:   "R_PPC_REL14_BRTAKEN",
	R_PPC_REL14_BRNTAKEN:  "R_PPC_REL14_BRNTAKEN",
	R_DOLPHIN_NOP:         "R_DOLPHIN_NOP",
	R_DOLPHIN_SECTION:     "R_DOLPHIN_SECTION",
	R_DOLPHIN_END:         "R_DOLPHIN_END",
	R_DOLPHIN_MRKREF:      "R_DOLPHIN_MRKREF",
}

const unknownRelocPrefix = "R_UNKNOWN_"

func (t RelocType) String() string {
	if name, ok := relocTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("%s%d", unknownRelocPrefix, uint8(t))
}

// ParseRelocType is the inverse of String, including the numbered form
// of kinds without a name.
func ParseRelocType(name string) (RelocType, bool) {
	for t, n := range relocTypeNames {
		if n == name {
			return t, true
		}
	}
	if num, ok := strings.CutPrefix(name, unknownRelocPrefix); ok {
		v, err := strconv.ParseUint(num, 10, 8)
		if err == nil {
			if _, named := relocTypeNames[RelocType(v)]; !named {
				return RelocType(v), true
			}
		}
	}
	return 0, false
}

// IsControl reports whether t only steers the relocation stream and never
// patches memory.
func (t RelocType) IsControl() bool {
	return t == R_DOLPHIN_NOP || t == R_DOLPHIN_SECTION || t == R_DOLPHIN_END
}

type Reloc struct {
	Delta   uint16
	Type    RelocType
	Section uint8
	Addend  uint32
}
