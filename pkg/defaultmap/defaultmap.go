// Package defaultmap loads default maps for command trees from configuration files.
//
// A default map mirrors the command tree: top-level keys are parameter names of the root command
// and nested maps keyed by subcommand name hold the defaults of that subcommand.
//
//	name: world
//	greet:
//	  count: 3
//
// Keys are case-insensitive and returned in lower case.
package defaultmap

import (
	"fmt"
	"io"
	"maps"
	"os"

	"github.com/spf13/viper"
)

// Load reads the configuration file at path. The format is taken from the file extension; any
// format supported by viper works (YAML, TOML, JSON, ...). A missing file yields an empty map.
func Load(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("stat configuration %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("configuration path %s is a directory", path)
	}
	reader := viper.New()
	reader.SetConfigFile(path)
	if err := reader.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read configuration from %s: %w", path, err)
	}
	return normalize(reader.AllSettings()), nil
}

// Read parses configuration of the given format ("yaml", "toml", "json", ...) from r.
func Read(r io.Reader, format string) (map[string]any, error) {
	reader := viper.New()
	reader.SetConfigType(format)
	if err := reader.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("read %s configuration: %w", format, err)
	}
	return normalize(reader.AllSettings()), nil
}

// Merge returns base with override layered on top. Nested maps are merged recursively; other
// values in override replace those in base. Neither input is modified.
func Merge(base, override map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, len(override))
	}
	for k, v := range override {
		sub, isMap := v.(map[string]any)
		prev, wasMap := out[k].(map[string]any)
		if isMap && wasMap {
			out[k] = Merge(prev, sub)
			continue
		}
		out[k] = v
	}
	return out
}

// normalize converts nested maps to map[string]any so they can serve as child default maps.
func normalize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch v := v.(type) {
		case map[string]any:
			out[k] = normalize(v)
		case map[any]any:
			conv := make(map[string]any, len(v))
			for kk, vv := range v {
				conv[fmt.Sprint(kk)] = vv
			}
			out[k] = normalize(conv)
		default:
			out[k] = v
		}
	}
	return out
}
