package project

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// DiagnosticsConfig is the [diagnostics] section.
type DiagnosticsConfig struct {
	// Max bounds the merged diagnostic stream per file. 0 means unbounded.
	Max int `toml:"max"`
	// DebounceMS delays diagnostic runs after an edit.
	DebounceMS int `toml:"debounce_ms"`
	// IncludeSideEffectProducers streams the non-edited family too.
	IncludeSideEffectProducers bool `toml:"include_side_effect_producers"`
}

// CheckConfig is the [check] section for the batch checker.
type CheckConfig struct {
	Cache bool `toml:"cache"`
	// Jobs limits parallel workers; 0 uses GOMAXPROCS.
	Jobs int `toml:"jobs"`
}

// TemplateConfig is the [template] section.
type TemplateConfig struct {
	// Dialect selects the template syntax: "html" or "shorthand".
	Dialect string `toml:"dialect"`
}

// Config is the full sfcls.toml contents with defaults applied.
type Config struct {
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Check       CheckConfig       `toml:"check"`
	Template    TemplateConfig    `toml:"template"`
}

// Default returns the configuration used when no sfcls.toml exists.
func Default() Config {
	return Config{
		Diagnostics: DiagnosticsConfig{
			Max:                        200,
			DebounceMS:                 250,
			IncludeSideEffectProducers: true,
		},
		Check:    CheckConfig{Cache: true},
		Template: TemplateConfig{Dialect: "html"},
	}
}

// LoadConfig parses an sfcls.toml. Absent keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if cfg.Template.Dialect == "" {
		cfg.Template.Dialect = "html"
	}
	return cfg, nil
}

// LoadConfigFor finds and loads the configuration governing startDir,
// falling back to defaults when no sfcls.toml exists anywhere above it.
func LoadConfigFor(startDir string) (Config, error) {
	path, ok, err := FindConfig(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return LoadConfig(path)
}
