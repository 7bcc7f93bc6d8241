package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, IPSCAN_LOOKUP_INTERVAL -> lookup.interval.
const EnvPrefix = "IPSCAN_"

// Load builds the configuration from defaults, the YAML file at path and the
// environment, in increasing priority. A missing file is replaced by a freshly
// written default file; created reports whether that happened.
func Load(path string) (cfg *Config, created bool, err error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, false, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			if err := WriteDefault(path); err != nil {
				return nil, false, err
			}
			created = true
		} else if statErr != nil {
			return nil, false, fmt.Errorf("stat config %s: %w", path, statErr)
		}

		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, created, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, created, fmt.Errorf("load environment: %w", err)
	}

	cfg = &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, created, fmt.Errorf("unmarshal config: %w", err)
	}
	for i, r := range cfg.Detection.InfrastructureRanges {
		cfg.Detection.InfrastructureRanges[i] = strings.TrimSpace(r)
	}

	if err := cfg.Validate(); err != nil {
		return nil, created, err
	}
	return cfg, created, nil
}

// envKey maps IPSCAN_LOOKUP_BASE_URL to lookup.base_url. Section names carry
// no underscore so only the first one separates section from key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}
