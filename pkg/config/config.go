package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ksco/relink/pkg/logging"
	"github.com/pelletier/go-toml"
)

const FileName = "relink.toml"

var ErrInvalid = errors.New("invalid configuration")

// tomlConfig is the configuration as it is encoded in TOML
type tomlConfig struct {
	LogLevel   string   `toml:"log-level,omitempty"`
	OutputDir  string   `toml:"output-dir,omitempty"`
	Extensions []string `toml:"extensions,omitempty"`
	WriteMap   *bool    `toml:"write-map"`
	MapBase    *int64   `toml:"map-base"`
}

type Config struct {
	LogLevel   string
	OutputDir  string
	Extensions []string
	WriteMap   bool
	MapBase    int
}

func Default() *Config {
	return &Config{
		LogLevel:   "warning",
		OutputDir:  "GCReLink",
		Extensions: []string{".rel", ".szs"},
		WriteMap:   true,
		MapBase:    0x40,
	}
}

// Load reads FileName from root. A missing file yields the defaults.
func Load(root string) (*Config, error) {
	buff, err := os.ReadFile(filepath.Join(root, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	} else if err != nil {
		return nil, err
	}

	return Parse(buff)
}

func Parse(buff []byte) (*Config, error) {
	tc := &tomlConfig{}
	if err := toml.Unmarshal(buff, tc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, FileName, err)
	}

	cfg := Default()
	if tc.LogLevel != "" {
		if _, ok := logging.ParseLevel(tc.LogLevel); !ok {
			return nil, fmt.Errorf("%w: unknown log-level %q", ErrInvalid, tc.LogLevel)
		}
		cfg.LogLevel = tc.LogLevel
	}

	if tc.OutputDir != "" {
		dir := filepath.Clean(tc.OutputDir)
		if filepath.IsAbs(dir) || dir == "." || strings.HasPrefix(dir, "..") {
			return nil, fmt.Errorf("%w: output-dir %q must name a directory below the root", ErrInvalid, tc.OutputDir)
		}
		cfg.OutputDir = dir
	}

	if len(tc.Extensions) > 0 {
		cfg.Extensions = cfg.Extensions[:0]
		for _, ext := range tc.Extensions {
			if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
				return nil, fmt.Errorf("%w: extension %q must start with a dot", ErrInvalid, ext)
			}
			cfg.Extensions = append(cfg.Extensions, strings.ToLower(ext))
		}
	}

	if tc.WriteMap != nil {
		cfg.WriteMap = *tc.WriteMap
	}

	if tc.MapBase != nil {
		if *tc.MapBase < 0 || *tc.MapBase > 0xFFFFFFFF {
			return nil, fmt.Errorf("%w: map-base %d out of range", ErrInvalid, *tc.MapBase)
		}
		cfg.MapBase = int(*tc.MapBase)
	}

	return cfg, nil
}

func (c *Config) HasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}
