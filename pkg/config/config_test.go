package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ksco/relink/pkg/test"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	test.DemandSuccess(t, err)
	test.ExpectDeepEquality(t, cfg, Default())
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	doc := `
log-level = "verbose"
output-dir = "unpacked"
extensions = [".REL"]
write-map = false
map-base = 128
`
	test.DemandSuccess(t, os.WriteFile(filepath.Join(root, FileName), []byte(doc), 0644))

	cfg, err := Load(root)
	test.DemandSuccess(t, err)
	test.ExpectDeepEquality(t, cfg, &Config{
		LogLevel:   "verbose",
		OutputDir:  "unpacked",
		Extensions: []string{".rel"},
		WriteMap:   false,
		MapBase:    128,
	})
	test.ExpectSuccess(t, cfg.HasExtension("d_a_npc.rel"))
	test.ExpectFailure(t, cfg.HasExtension("d_a_npc.szs"))
}

func TestParseKeepsUnsetDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`log-level = "error"`))
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, cfg.LogLevel, "error")
	test.ExpectEquality(t, cfg.OutputDir, "GCReLink")
	test.ExpectEquality(t, cfg.WriteMap, true)
	test.ExpectEquality(t, cfg.MapBase, 0x40)
}

func TestParseInvalid(t *testing.T) {
	for _, doc := range []string{
		`log-level = "loud"`,
		`output-dir = "../elsewhere"`,
		`output-dir = "/abs"`,
		`extensions = ["rel"]`,
		`map-base = -1`,
		`write-map = `,
	} {
		_, err := Parse([]byte(doc))
		test.ExpectError(t, err, ErrInvalid, doc)
	}
}
