package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	NetBox   NetBoxConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	Address  string
	HTTPPort string
}

type DatabaseConfig struct {
	// Driver: "postgres" | "mysql" | "" (no DB)
	Driver string
	DSN    string
}

type LoggingConfig struct {
	Level  string
	Format string // "text" | "json"
	File   string
}

type NetBoxConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

type SyncConfig struct {
	// Interval between automatic full syncs; 0 disables the scheduler.
	Interval time.Duration
}

// Load reads config from file (optional) and ARCHIFLOW_* env vars.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8080")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("netbox.url", "http://netbox:8080")
	v.SetDefault("netbox.token", "")
	v.SetDefault("netbox.timeout", "10s")
	v.SetDefault("sync.interval", "0")

	v.SetEnvPrefix("archiflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Address:  v.GetString("server.address"),
			HTTPPort: v.GetString("server.http_port"),
		},
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
			File:   v.GetString("logging.file"),
		},
		NetBox: NetBoxConfig{
			URL:     v.GetString("netbox.url"),
			Token:   v.GetString("netbox.token"),
			Timeout: v.GetDuration("netbox.timeout"),
		},
		Sync: SyncConfig{
			Interval: v.GetDuration("sync.interval"),
		},
	}
	if cfg.NetBox.Timeout <= 0 {
		cfg.NetBox.Timeout = 10 * time.Second
	}
	return cfg, nil
}
