package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	LevelDB LevelDBConfig `mapstructure:"leveldb"`
	Network NetworkConfig `mapstructure:"network"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	RateLimitRPS   int `mapstructure:"rate_limit_rps"`
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
}

type LogConfig struct {
	AppLogFile string `mapstructure:"app_log_file"`
	Level      string `mapstructure:"level"`
}

type LevelDBConfig struct {
	Path         string `mapstructure:"path"`
	CacheEntries int    `mapstructure:"cache_entries"`
}

// NetworkConfig seeds the oracle network on first start when Bootstrap is set.
type NetworkConfig struct {
	Bootstrap      bool     `mapstructure:"bootstrap"`
	Admin          string   `mapstructure:"admin"`
	Arbiters       []string `mapstructure:"arbiters"`
	MinSubmissions uint32   `mapstructure:"min_submissions"`
	MinReputation  int64    `mapstructure:"min_reputation"`
	MaxPrice       int64    `mapstructure:"max_price"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 50)
	v.SetDefault("server.rate_limit_burst", 100)
	v.SetDefault("log.app_log_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("leveldb.path", "data/oracle")
	v.SetDefault("leveldb.cache_entries", 4096)
	v.SetDefault("network.bootstrap", false)
	v.SetDefault("network.admin", "")
	v.SetDefault("network.arbiters", []string{})
	v.SetDefault("network.min_submissions", 3)
	v.SetDefault("network.min_reputation", 10)
	v.SetDefault("network.max_price", 1_000_000_000_000)
}

// Load reads the YAML file at path, applies ORACLE_* environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("oracle")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return errors.New("server.rate_limit_rps must be >= 1")
	}
	if c.Server.RateLimitBurst < 1 {
		return errors.New("server.rate_limit_burst must be >= 1")
	}
	if c.LevelDB.Path == "" {
		return errors.New("leveldb.path is required")
	}
	if c.LevelDB.CacheEntries < 0 {
		return errors.New("leveldb.cache_entries must be >= 0")
	}

	if !c.Network.Bootstrap {
		return nil
	}
	if c.Network.Admin == "" {
		return errors.New("network.admin is required when network.bootstrap is set")
	}
	if c.Network.MinSubmissions < 1 {
		return errors.New("network.min_submissions must be >= 1")
	}
	if c.Network.MinReputation < 0 {
		return errors.New("network.min_reputation must be >= 0")
	}
	if c.Network.MaxPrice <= 0 {
		return errors.New("network.max_price must be > 0")
	}
	return nil
}
