package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envDataDir     = "FLEET_DATA_DIR"
	envConfigPath  = "FLEET_CONFIG_PATH"
	defaultDataDir = "./data"
)

// LoadOptions carries the flag-provided overrides Load consults before
// falling back to environment variables and finally to defaults, mirroring
// the precedence every fleetkeeper binary follows: flag > env > default.
type LoadOptions struct {
	ConfigPath string
	DataDir    string
}

// ResolveDataDir returns the effective data directory for flag, following
// flag > FLEET_DATA_DIR > default precedence.
func ResolveDataDir(flag string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(envDataDir); v != "" {
		return v
	}
	return defaultDataDir
}

// ResolveConfigPath returns the effective fleet config document path,
// following flag > FLEET_CONFIG_PATH > default precedence. The default sits
// inside the resolved data directory so a fresh install only needs
// FLEET_DATA_DIR set.
func ResolveConfigPath(flag, dataDir string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(envConfigPath); v != "" {
		return v
	}
	return dataDir + "/fleet.yaml"
}

// Load reads and parses a FleetConfig document from opts.ConfigPath (or its
// resolved default) and validates it. It does not apply the config to a
// running manager; callers do that explicitly through Store.Apply so the
// validation and activation steps stay separately testable.
func Load(opts LoadOptions) (FleetConfig, error) {
	loadDotEnv()

	dataDir := ResolveDataDir(opts.DataDir)
	path := ResolveConfigPath(opts.ConfigPath, dataDir)

	raw, err := os.ReadFile(path)
	if err != nil {
		return FleetConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg FleetConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return FleetConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return FleetConfig{}, fmt.Errorf("config: %s is invalid: %w", path, errs[0])
	}

	return cfg, nil
}

// loadDotEnv seeds the process environment from a local .env file, for
// development convenience; it is optional, so a missing file is silent and
// only a malformed one is worth a warning.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "config: could not load .env: %v\n", err)
	}
}
