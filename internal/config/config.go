package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the binary needs, loaded from environment
// variables (TABLETALK_*) with an optional config file layered underneath.
type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	StorageBackend  string `mapstructure:"storage_backend"`  // "memory" or "postgres"
	PostgresDSN     string `mapstructure:"postgres_dsn"`
	SnapshotBackend string `mapstructure:"snapshot_backend"` // "memory" or "badger"
	BadgerPath      string `mapstructure:"badger_path"`

	UseMockOracle bool   `mapstructure:"use_mock_oracle"`
	GeminiAPIKey  string `mapstructure:"gemini_api_key"`
	ModelName     string `mapstructure:"model_name"`

	ScriptTimeout time.Duration `mapstructure:"script_timeout"`
	PreviewRows   int           `mapstructure:"preview_rows"`
	MaxGridRows   int           `mapstructure:"max_grid_rows"`
}

// Load reads the optional config file plus TABLETALK_* env vars and builds
// the config. Env vars win over the file; defaults fill the rest.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("storage_backend", "memory")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("snapshot_backend", "memory")
	v.SetDefault("badger_path", "./data/snapshots")
	v.SetDefault("use_mock_oracle", true)
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("script_timeout", 5*time.Second)
	v.SetDefault("preview_rows", 10)
	v.SetDefault("max_grid_rows", 15)

	v.SetEnvPrefix("TABLETALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.StorageBackend == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("TABLETALK_POSTGRES_DSN must be set for the postgres storage backend")
	}
	if !c.UseMockOracle && c.GeminiAPIKey == "" {
		return fmt.Errorf("TABLETALK_GEMINI_API_KEY must be set when the mock oracle is disabled")
	}
	if c.ScriptTimeout <= 0 {
		return fmt.Errorf("script_timeout must be positive")
	}
	return nil
}
