package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Library   LibraryConfig   `yaml:"library"`
	Profiles  ProfilesConfig  `yaml:"profiles"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	Driver  string `yaml:"driver"`   // sqlite (default) or postgres
	DataDir string `yaml:"data_dir"` // sqlite database location
	DSN     string `yaml:"dsn"`      // postgres connection string
}

type LibraryConfig struct {
	ManifestURL   string `yaml:"manifest_url"`
	ExercisesPath string `yaml:"exercises_path"` // empty uses the embedded library
}

type ProfilesConfig struct {
	Names []string `yaml:"names"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Env vars use the prefix REPCAL_ and underscore-separated paths:
//
//	REPCAL_SERVER_HOST, REPCAL_SERVER_PORT,
//	REPCAL_STORAGE_DRIVER, REPCAL_STORAGE_DATA_DIR, REPCAL_STORAGE_DSN,
//	REPCAL_MANIFEST_URL, REPCAL_EXERCISES_PATH,
//	REPCAL_AUTH_API_KEY
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPCAL_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPCAL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPCAL_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("REPCAL_STORAGE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("REPCAL_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REPCAL_MANIFEST_URL"); v != "" {
		cfg.Library.ManifestURL = v
	}
	if v := os.Getenv("REPCAL_EXERCISES_PATH"); v != "" {
		cfg.Library.ExercisesPath = v
	}
	if v := os.Getenv("REPCAL_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", c.Storage.Driver)
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
