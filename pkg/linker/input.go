package linker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ksco/relink/pkg/logging"
)

const mapFileExt = ".map"

// ReadInputFiles loads every module file of the root directory together
// with the map of the same name. A module whose id was already seen is
// ignored.
func ReadInputFiles(ctx *Context) error {
	entries, err := os.ReadDir(ctx.Arg.Root)
	if err != nil {
		return err
	}

	maps := make(map[string]string)
	files := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(ctx.Arg.Root, e.Name())
		switch {
		case strings.EqualFold(filepath.Ext(e.Name()), mapFileExt):
			maps[strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))] = path
		case ctx.Config.HasExtension(e.Name()):
			files = append(files, path)
		}
	}

	for _, path := range files {
		if err := ReadFile(ctx, path, maps); err != nil {
			return err
		}
	}

	if len(ctx.Modules) == 0 {
		return fmt.Errorf("%w: no modules in %s", ErrFormat, ctx.Arg.Root)
	}
	return nil
}

func ReadFile(ctx *Context, path string, maps map[string]string) error {
	file, err := NewFile(path)
	if err != nil {
		return err
	}

	if GetFileType(file.Contents) != FileTypeRel {
		logging.Warnf("unpack", "%s is not a relocatable module, skipped", path)
		return nil
	}

	rel, err := NewRelFile(file)
	if err != nil {
		return err
	}

	if ctx.Visited.Contains(rel.Header.Id) {
		logging.Warnf("unpack", "ignoring %s: module id %d was already loaded", filepath.Base(path), rel.Header.Id)
		return nil
	}
	ctx.Visited.Add(rel.Header.Id)

	m := NewModule(file.Stem())
	m.Rel = rel
	m.Info = &ModuleInfo{
		Id:           rel.Header.Id,
		Compression:  file.Compression,
		PrologSectId: int(rel.Header.PrologSection),
		NameOffset:   rel.Header.NameOffset,
		NameSize:     rel.Header.NameSize,
		Version:      rel.Header.Version,
		Align:        rel.Header.Align,
		BssAlign:     rel.Header.BssAlign,
		FixSize:      rel.Header.FixSize,
	}

	mapPath, ok := maps[m.Name]
	if !ok {
		return fmt.Errorf("%w: %s has no %s%s next to it", ErrFormat, path, m.Name, mapFileExt)
	}
	f, err := os.Open(mapPath)
	if err != nil {
		return err
	}
	defer f.Close()

	mf, err := ParseMap(mapPath, f, m)
	if err != nil {
		return err
	}
	if err := BuildSectionTable(m, mf); err != nil {
		return err
	}

	logging.Infof("unpack", "%s: module %d, %d sections, %d symbols",
		m.Name, m.Info.Id, len(m.Sections), len(m.Symbols))
	ctx.Modules = append(ctx.Modules, m)
	return nil
}

// LoadModules reads every module directory of an unpack tree.
func LoadModules(ctx *Context) error {
	entries, err := os.ReadDir(ctx.Arg.Root)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(ctx.Arg.Root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, ModuleInfoFileName)); err != nil {
			continue
		}

		m, err := LoadModule(dir)
		if err != nil {
			return err
		}
		if ctx.Visited.Contains(m.Info.Id) {
			return fmt.Errorf("%w: %s reuses module id %d", ErrFormat, dir, m.Info.Id)
		}
		ctx.Visited.Add(m.Info.Id)

		logging.Infof("rebuild", "%s: module %d, %d symbols, %d functions, %d relocations",
			m.Name, m.Info.Id, len(m.Symbols), m.Funcs.Len(), len(m.RelocationRows))
		ctx.Modules = append(ctx.Modules, m)
	}

	if len(ctx.Modules) == 0 {
		return fmt.Errorf("%w: no unpacked modules in %s", ErrFormat, ctx.Arg.Root)
	}
	return nil
}
