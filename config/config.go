package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir        string   `toml:"DataDir" yaml:"DataDir"`
	HTTPAddress    string   `toml:"HTTPAddress" yaml:"HTTPAddress"`
	GRPCAddress    string   `toml:"GRPCAddress" yaml:"GRPCAddress"`
	MaxConnections int      `toml:"MaxConnections" yaml:"MaxConnections"`
	PausedModules  []string `toml:"PausedModules" yaml:"PausedModules"`
	Faucet         bool     `toml:"Faucet" yaml:"Faucet"`

	Storage   Storage   `toml:"storage" yaml:"storage"`
	Exchange  Exchange  `toml:"exchange" yaml:"exchange"`
	Lending   Lending   `toml:"lending" yaml:"lending"`
	Clock     Clock     `toml:"clock" yaml:"clock"`
	Journal   Journal   `toml:"journal" yaml:"journal"`
	Logging   Logging   `toml:"logging" yaml:"logging"`
	Telemetry Telemetry `toml:"telemetry" yaml:"telemetry"`
	Auth      Auth      `toml:"auth" yaml:"auth"`
	RateLimit RateLimit `toml:"rate_limit" yaml:"rate_limit"`
}

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		DataDir:        "./fall-data",
		HTTPAddress:    ":8080",
		GRPCAddress:    ":9090",
		MaxConnections: 512,
		PausedModules:  []string{},
		Storage:        Storage{Backend: "leveldb"},
		Exchange: Exchange{
			ID:              "main",
			LiquidityFeeBps: 10,
			ProtocolFeeBps:  10,
		},
		Lending: Lending{
			BaseInterestRate:         5,
			MinCollateralRatioBps:    10_000,
			LiquidationRewardDivisor: 100,
		},
		Clock:     Clock{BlockIntervalMs: 1_000},
		Journal:   Journal{DSN: "journal.db"},
		Logging:   Logging{Env: "local", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true},
		Auth:      Auth{Issuer: "fall"},
		RateLimit: RateLimit{RequestsPerMinute: 600, Burst: 60},
	}
}

// Load loads the configuration from the given path. A missing file is created
// with the defaults. Files ending in .yaml or .yml are decoded as YAML,
// anything else as TOML. Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
		}
	}

	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
