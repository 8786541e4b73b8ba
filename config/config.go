package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Config is the full service configuration loaded from YAML and the environment.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Registry RegistryConfig `yaml:"registry"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is honored.
	TrustedProxies  []string      `yaml:"trusted_proxies"`
}

// DatabaseConfig selects the gorm driver and its connection pool.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // sqlite or postgres
	Path            string `yaml:"path"`
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Name            string `yaml:"name"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// LoggingConfig is passed to logger.New.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// ProtocolConfig drives the three-phase voting-key handshake.
type ProtocolConfig struct {
	PrimaryKeyTTL      time.Duration `yaml:"primary_key_ttl"`
	ConfirmationKeyTTL time.Duration `yaml:"confirmation_key_ttl"`
	RateLimitWindow    time.Duration `yaml:"rate_limit_window"`
	RateLimitMax       int           `yaml:"rate_limit_max"`
	RateLimitCleanup   time.Duration `yaml:"rate_limit_cleanup"`
	AllowKeyRedisplay  bool          `yaml:"allow_key_redisplay"`
}

// LedgerConfig tunes mining and the background sync.
type LedgerConfig struct {
	Difficulty    uint8 `yaml:"difficulty"`
	QueueSize     int   `yaml:"queue_size"`
	ResyncBatch   int   `yaml:"resync_batch"`
	ResyncOnStart bool  `yaml:"resync_on_start"`
}

// RegistryConfig points at the optional seed file for users and elections.
type RegistryConfig struct {
	SeedFile      string `yaml:"seed_file"`
	CreateDefault bool   `yaml:"create_default"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Path:            "data/secure-voting.db",
			Host:            "localhost",
			Port:            "5432",
			Username:        "postgres",
			Name:            "secure_voting",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxLifetime: 300,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Environment: "development",
		},
		Protocol: ProtocolConfig{
			PrimaryKeyTTL:      5 * time.Minute,
			ConfirmationKeyTTL: 5 * time.Minute,
			RateLimitWindow:    15 * time.Minute,
			RateLimitMax:       5,
			RateLimitCleanup:   5 * time.Minute,
			AllowKeyRedisplay:  false,
		},
		Ledger: LedgerConfig{
			Difficulty:    2,
			QueueSize:     256,
			ResyncBatch:   100,
			ResyncOnStart: true,
		},
		Registry: RegistryConfig{
			SeedFile:      "data/registry.json",
			CreateDefault: true,
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Protocol.PrimaryKeyTTL <= 0 || c.Protocol.ConfirmationKeyTTL <= 0 {
		return errors.New("key TTLs must be positive")
	}
	if c.Protocol.RateLimitWindow <= 0 || c.Protocol.RateLimitMax <= 0 {
		return errors.New("rate limit window and max must be positive")
	}
	if c.Ledger.Difficulty > 16 {
		return fmt.Errorf("ledger difficulty %d is too high (max 16)", c.Ledger.Difficulty)
	}
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("invalid trusted proxy %q", proxy)
			}
		}
	}
	if c.Ledger.QueueSize <= 0 {
		return errors.New("ledger queue size must be positive")
	}
	return nil
}

// LogConfig writes a redacted summary of the configuration.
func (c *Config) LogConfig(logger *zap.Logger) {
	logger.Info("Application configuration",
		zap.String("port", c.Server.Port),
		zap.Duration("read_timeout", c.Server.ReadTimeout),
		zap.Duration("write_timeout", c.Server.WriteTimeout),
		zap.Strings("trusted_proxies", c.Server.TrustedProxies),
		zap.String("database_driver", c.Database.Driver),
		zap.String("database_path", c.Database.Path),
		zap.String("database_host", c.Database.Host),
		zap.String("database_name", c.Database.Name),
		zap.Duration("primary_key_ttl", c.Protocol.PrimaryKeyTTL),
		zap.Duration("confirmation_key_ttl", c.Protocol.ConfirmationKeyTTL),
		zap.Duration("rate_limit_window", c.Protocol.RateLimitWindow),
		zap.Int("rate_limit_max", c.Protocol.RateLimitMax),
		zap.Bool("allow_key_redisplay", c.Protocol.AllowKeyRedisplay),
		zap.Uint8("ledger_difficulty", c.Ledger.Difficulty),
		zap.Int("ledger_queue_size", c.Ledger.QueueSize),
	)
}
