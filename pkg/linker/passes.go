package linker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ksco/relink/pkg/logging"
)

// UnlinkModules numbers the functions of every module and replaces the
// intra-module call displacements with function ids. The functions named
// by the module header as prolog, epilog and unresolved handler are
// recorded by id.
func UnlinkModules(ctx *Context) error {
	for _, m := range ctx.Modules {
		funcs, err := UnlinkFunctions(m.Symbols)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		m.Funcs = funcs

		hdr := &m.Rel.Header
		find := func(section uint8, offset uint32) int {
			if section == 0 {
				return 0
			}
			sym := m.FindSymbol(int(section), int(offset))
			if sym != nil && sym.SectionOffset == int(offset) {
				if def := funcs.FindBySymbol(sym); def != nil {
					return def.Id
				}
			}
			logging.Warnf("unpack", "%s: no function at section %d offset 0x%x", m.Name, section, offset)
			return 0
		}
		m.Info.PrologFuncId = find(hdr.PrologSection, hdr.Prolog)
		m.Info.EpilogFuncId = find(hdr.EpilogSection, hdr.Epilog)
		m.Info.UnresolvedFuncId = find(hdr.UnresolvedSection, hdr.Unresolved)
	}
	return nil
}

func DecodeModuleRelocations(ctx *Context) error {
	modules := ctx.ModulesById()
	for _, m := range ctx.Modules {
		if err := DecodeRelocations(m, modules); err != nil {
			return err
		}
		logging.Infof("unpack", "%s: %d relocations", m.Name, len(m.Relocations))
	}
	return nil
}

func DumpModules(ctx *Context) error {
	outDir := filepath.Join(ctx.Arg.Root, ctx.Config.OutputDir)
	for _, m := range ctx.Modules {
		if err := DumpModule(filepath.Join(outDir, m.Name), m); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}
	return nil
}

// Unpack splits every module of the root directory into an unpack tree.
func Unpack(ctx *Context) error {
	for _, pass := range []func(*Context) error{
		ReadInputFiles,
		UnlinkModules,
		DecodeModuleRelocations,
		DumpModules,
	} {
		if err := pass(ctx); err != nil {
			return err
		}
	}
	return nil
}

// LayoutModules places the symbols of every module and restores its call
// displacements.
func LayoutModules(ctx *Context) error {
	for _, m := range ctx.Modules {
		var prolog *Symbol
		if m.Info.PrologFuncId != 0 {
			def := m.Funcs.Get(m.Info.PrologFuncId)
			if def == nil {
				return fmt.Errorf("%w: %s: prolog function %d is not defined",
					ErrUnresolved, m.Name, m.Info.PrologFuncId)
			}
			prolog = def.Symbol
		}

		if err := LayoutSections(m, prolog); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		if err := RelinkModule(m); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}
	return nil
}

func WriteMaps(ctx *Context) error {
	if !ctx.Config.WriteMap {
		return nil
	}

	for _, m := range ctx.Modules {
		f, err := os.Create(filepath.Join(ctx.Arg.Root, m.Name+mapFileExt))
		if err != nil {
			return err
		}
		err = WriteMap(f, m, ctx.Config.MapBase)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ResolveModuleRelocations runs once every module is laid out, so that
// relocations may point into any module of the tree.
func ResolveModuleRelocations(ctx *Context) error {
	ctx.Links = NewLinkContext(ctx.Modules)
	for _, m := range ctx.Modules {
		if err := ResolveRelocations(m, ctx.Links); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}
	return nil
}

func WriteModules(ctx *Context) error {
	for _, m := range ctx.Modules {
		buf, err := WriteRel(m)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		if m.Info.Compression != CompressionNone {
			logging.Warnf("rebuild", "%s was %s compressed, writing it uncompressed", m.Name, m.Info.Compression)
		}

		path := filepath.Join(ctx.Arg.Root, m.Name+".rel")
		if err := os.WriteFile(path, buf, 0644); err != nil {
			return err
		}
		logging.Infof("rebuild", "wrote %s (0x%x bytes)", path, len(buf))
	}
	return nil
}

// Rebuild turns an unpack tree back into module files.
func Rebuild(ctx *Context) error {
	for _, pass := range []func(*Context) error{
		LoadModules,
		LayoutModules,
		WriteMaps,
		ResolveModuleRelocations,
		WriteModules,
	} {
		if err := pass(ctx); err != nil {
			return err
		}
	}
	return nil
}
