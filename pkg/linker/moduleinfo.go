package linker

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const ModuleInfoFileName = "module_info.txt"

type ModuleInfo struct {
	Id          uint32
	Compression CompressionMode

	PrologSectId     int
	PrologFuncId     int
	EpilogFuncId     int
	UnresolvedFuncId int

	// NameOffset and NameSize locate the module name in the string table
	// shipped next to the modules. They are kept verbatim.
	NameOffset uint32
	NameSize   uint32

	Version  uint32
	Align    uint32
	BssAlign uint32
	FixSize  uint32
}

func NewModuleInfo() *ModuleInfo {
	return &ModuleInfo{
		Version:  3,
		Align:    32,
		BssAlign: 32,
	}
}

func ParseModuleInfo(name string, r io.Reader) (*ModuleInfo, error) {
	info := NewModuleInfo()
	hasId := false

	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}

		bad := func(err error) error {
			return fmt.Errorf("%w: %s:%d: %s: %v", ErrFormat, name, lineNo, key, err)
		}
		u32 := func(dst *uint32) error {
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return bad(err)
			}
			*dst = uint32(v)
			return nil
		}
		num := func(dst *int) error {
			v, err := strconv.Atoi(value)
			if err != nil {
				return bad(err)
			}
			*dst = v
			return nil
		}

		var err error
		switch key {
		case "ModuleId":
			err = u32(&info.Id)
			hasId = true
		case "Compression":
			info.Compression, err = ParseCompressionMode(value)
		case "PrologSectId":
			err = num(&info.PrologSectId)
		case "PrologFuncId":
			err = num(&info.PrologFuncId)
		case "EpilogFuncId":
			err = num(&info.EpilogFuncId)
		case "UnresolvedFuncId":
			err = num(&info.UnresolvedFuncId)
		case "NameOffset":
			err = u32(&info.NameOffset)
		case "NameSize":
			err = u32(&info.NameSize)
		case "Version":
			err = u32(&info.Version)
		case "Align":
			err = u32(&info.Align)
		case "BssAlign":
			err = u32(&info.BssAlign)
		case "FixSize":
			err = u32(&info.FixSize)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if !hasId {
		return nil, fmt.Errorf("%w: %s: no ModuleId", ErrFormat, name)
	}
	return info, nil
}

func (i *ModuleInfo) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Compression=%s\n", i.Compression)
	fmt.Fprintf(bw, "ModuleId=%d\n", i.Id)
	if i.PrologSectId != 0 {
		fmt.Fprintf(bw, "PrologSectId=%d\n", i.PrologSectId)
	}
	if i.PrologFuncId != 0 {
		fmt.Fprintf(bw, "PrologFuncId=%d\n", i.PrologFuncId)
	}
	if i.EpilogFuncId != 0 {
		fmt.Fprintf(bw, "EpilogFuncId=%d\n", i.EpilogFuncId)
	}
	if i.UnresolvedFuncId != 0 {
		fmt.Fprintf(bw, "UnresolvedFuncId=%d\n", i.UnresolvedFuncId)
	}
	if i.NameOffset != 0 || i.NameSize != 0 {
		fmt.Fprintf(bw, "NameOffset=%d\n", i.NameOffset)
		fmt.Fprintf(bw, "NameSize=%d\n", i.NameSize)
	}
	fmt.Fprintf(bw, "Version=%d\n", i.Version)
	fmt.Fprintf(bw, "Align=%d\n", i.Align)
	fmt.Fprintf(bw, "BssAlign=%d\n", i.BssAlign)
	fmt.Fprintf(bw, "FixSize=%d\n", i.FixSize)
	return bw.Flush()
}
