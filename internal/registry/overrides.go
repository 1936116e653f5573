package registry

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/floodlib/ripple-engine/internal/config"
)

// DefaultOverridesPath is the default location of the registry override file.
const DefaultOverridesPath = ".ripple-registry.yaml"

// OverridesPathEnvVar names the environment variable for a custom path.
const OverridesPathEnvVar = "RIPPLE_REGISTRY_OVERRIDES_PATH"

type (
	// FieldOverride adjusts one input spec's bounds without recompiling,
	// e.g. raising create_model_run_normal_depth's maximum discharge count
	// for a deployment with more compute headroom.
	FieldOverride struct {
		Min *int `yaml:"min"`
		Max *int `yaml:"max"`
	}

	// ProcessOverride adjusts one process descriptor's operational knobs.
	ProcessOverride struct {
		AllowedOnEclipsed *bool                    `yaml:"allowed_on_eclipsed"`
		Inputs            map[string]FieldOverride `yaml:"inputs"`
	}

	// OverridesConfig holds per-process overrides loaded from YAML.
	OverridesConfig struct {
		Processes map[string]ProcessOverride `yaml:"processes"`
	}
)

// LoadOverrides loads an optional overrides file. A missing file is not an
// error — overrides are operational tuning, not required configuration —
// and an invalid file logs a warning and is ignored rather than failing
// startup.
func LoadOverrides(path string) (*OverridesConfig, error) {
	cfg := &OverridesConfig{Processes: map[string]ProcessOverride{}}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted deployment config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		slog.Warn("failed to read registry overrides file, continuing without overrides",
			slog.String("path", path), slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("failed to parse registry overrides file, continuing without overrides",
			slog.String("path", path), slog.String("error", err.Error()))

		return &OverridesConfig{Processes: map[string]ProcessOverride{}}, nil
	}

	if cfg.Processes == nil {
		cfg.Processes = map[string]ProcessOverride{}
	}

	return cfg, nil
}

// LoadOverridesFromEnv loads overrides from the path in RIPPLE_REGISTRY_OVERRIDES_PATH,
// falling back to DefaultOverridesPath.
func LoadOverridesFromEnv() (*OverridesConfig, error) {
	path := config.GetEnvStr(OverridesPathEnvVar, DefaultOverridesPath)

	return LoadOverrides(path)
}

// Apply mutates the registry's descriptors in place according to cfg. Only
// AllowedOnEclipsed and input bounds (Min/Max) may be overridden; process
// handlers, required-ness, and domains are fixed at compile time.
func (r *Registry) Apply(cfg *OverridesConfig) {
	if cfg == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name, override := range cfg.Processes {
		d, ok := r.descriptors[name]
		if !ok {
			slog.Warn("registry override for unknown process ignored", slog.String("process", name))

			continue
		}

		if override.AllowedOnEclipsed != nil {
			d.AllowedOnEclipsed = *override.AllowedOnEclipsed
		}

		for i, spec := range d.Inputs {
			fieldOverride, ok := override.Inputs[spec.Name]
			if !ok {
				continue
			}

			if fieldOverride.Min != nil {
				d.Inputs[i].Min = fieldOverride.Min
			}

			if fieldOverride.Max != nil {
				d.Inputs[i].Max = fieldOverride.Max
			}
		}

		r.descriptors[name] = d
	}
}
