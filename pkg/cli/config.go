package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configEnvVar overrides the location of the CLI config file.
const configEnvVar = "LINEAGE_CONFIG"

const defaultProfileName = "default"

// UserConfig is the CLI config file, ~/.lineage/config.yaml unless
// LINEAGE_CONFIG points elsewhere.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile holds per-environment defaults for lineage queries.
type Profile struct {
	Host     string `yaml:"host,omitempty"`
	Output   string `yaml:"output,omitempty"`
	DaysBack int    `yaml:"days-back,omitempty"`
}

// Validate checks the fields that are set.
func (p Profile) Validate() error {
	if p.Host != "" {
		if err := validateHostURL(p.Host); err != nil {
			return err
		}
	}
	if err := validateOutputFormat(p.Output); err != nil {
		return err
	}
	if p.DaysBack < 0 {
		return fmt.Errorf("days-back must not be negative, got %d", p.DaysBack)
	}
	return nil
}

func defaultUserConfig() *UserConfig {
	return &UserConfig{CurrentProfile: defaultProfileName, Profiles: map[string]Profile{}}
}

// ActiveProfile returns the profile named by override, or the current
// profile when override is empty. A missing current profile yields an empty
// profile; a missing override is an error, so a typo in --profile never
// silently falls back to defaults.
func (c *UserConfig) ActiveProfile(override string) (Profile, error) {
	if override == "" {
		return c.Profiles[c.CurrentProfile], nil
	}
	p, ok := c.Profiles[override]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found in %s", override, ConfigPath())
	}
	return p, nil
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	if p := os.Getenv(configEnvVar); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".lineage", "config.yaml")
	}
	return filepath.Join(home, ".lineage", "config.yaml")
}

// LoadUserConfig reads the config file. A missing file is not an error and
// yields the default config.
func LoadUserConfig() (*UserConfig, error) {
	data, err := os.ReadFile(ConfigPath())
	if errors.Is(err, fs.ErrNotExist) {
		return defaultUserConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultUserConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", ConfigPath(), err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	for name, p := range cfg.Profiles {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("config %s: profile %q: %w", ConfigPath(), name, err)
		}
	}
	return cfg, nil
}

// SaveUserConfig writes cfg to the config file, creating its directory.
func SaveUserConfig(cfg *UserConfig) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
