package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BackendConfig describes one judge backend in the configuration file.
// APIKey is usually left empty in the file and supplied via APIKeyEnv.
type BackendConfig struct {
	Provider  string `yaml:"provider"`
	Name      string `yaml:"name"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Config struct {
	Backends []BackendConfig `yaml:"backends"`

	Analysis struct {
		Concurrency      int     `yaml:"concurrency"`
		ScoreThreshold   float64 `yaml:"score_threshold"`
		MaxPasses        int     `yaml:"max_passes"`
		DeclineThreshold int     `yaml:"decline_threshold"`
	} `yaml:"analysis"`

	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`
}

// LoadConfig reads the YAML config at path, after loading .env so key
// references resolve. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}

	// 3. Resolve per-backend API keys from the environment
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		if b.APIKey == "" && b.APIKeyEnv != "" {
			b.APIKey = os.Getenv(b.APIKeyEnv)
			if b.APIKey == "" {
				return nil, fmt.Errorf("backend %q: %s not set in environment", b.Name, b.APIKeyEnv)
			}
		}
	}

	// 4. Global overrides
	if path := os.Getenv("ARBITER_HISTORY_PATH"); path != "" {
		cfg.History.Path = path
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no config file exists:
// no backends (structural analysis only) and a local history database.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Analysis.Concurrency <= 0 {
		c.Analysis.Concurrency = 5
	}
	if c.Analysis.MaxPasses <= 0 {
		c.Analysis.MaxPasses = 10
	}
	if c.Analysis.DeclineThreshold <= 0 {
		c.Analysis.DeclineThreshold = 3
	}
	if c.History.Path == "" {
		c.History.Path = "arbiter.db"
	}
}
