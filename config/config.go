package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the top-level application configuration
type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	AuthConfig     AuthConfig     `json:"auth"`
	VaultConfig    VaultConfig    `json:"vault"`
	GuardianConfig GuardianConfig `json:"guardian"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	ProductionMode  bool     `json:"production_mode"`
	StaticFilesPath string   `json:"static_files_path"`
	AllowedOrigins  []string `json:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for cooldown state
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AuthConfig holds JWT and password settings
type AuthConfig struct {
	JWTSecret          string `json:"jwt_secret"`
	AccessTokenMinutes int    `json:"access_token_minutes"`
	BcryptCost         int    `json:"bcrypt_cost"`
}

// VaultConfig holds HashiCorp Vault settings for broker credentials
type VaultConfig struct {
	Enabled   bool   `json:"enabled"`
	Address   string `json:"address"`
	Token     string `json:"token"`
	MountPath string `json:"mount_path"`
}

// GuardianConfig holds trade validation defaults
type GuardianConfig struct {
	// DefaultMaxCurrencyExposure caps summed risk percent across open
	// positions sharing a currency when the account has no override.
	DefaultMaxCurrencyExposure float64 `json:"default_max_currency_exposure"`
	// TradingHourStart/End bound the off-hours behavioral check (local hours).
	TradingHourStart int `json:"trading_hour_start"`
	TradingHourEnd   int `json:"trading_hour_end"`
	// MaterialRoundingPercent is the lot rounding loss above which a
	// warning is attached to the validation result.
	MaterialRoundingPercent float64 `json:"material_rounding_percent"`
}

// LoggingConfig holds zerolog configuration
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // JSON output (console writer otherwise)
}

// Load reads configuration from a JSON file and applies environment overrides
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.AuthConfig.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required (set JWT_SECRET)")
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "trading_dashboard",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Addr: "localhost:6379",
		},
		AuthConfig: AuthConfig{
			AccessTokenMinutes: 60,
			BcryptCost:         12,
		},
		VaultConfig: VaultConfig{
			MountPath: "secret",
		},
		GuardianConfig: GuardianConfig{
			DefaultMaxCurrencyExposure: 2.0,
			TradingHourStart:           8,
			TradingHourEnd:             18,
			MaterialRoundingPercent:    5.0,
		},
		LoggingConfig: LoggingConfig{
			Level:      "info",
			JSONFormat: true,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.ServerConfig.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.ServerConfig.Port = port
		}
	}
	if v := os.Getenv("PRODUCTION_MODE"); v != "" {
		cfg.ServerConfig.ProductionMode = v == "true" || v == "1"
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.DatabaseConfig.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.DatabaseConfig.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.DatabaseConfig.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.DatabaseConfig.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.DatabaseConfig.Database = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.DatabaseConfig.SSLMode = v
	}

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisConfig.Addr = v
		cfg.RedisConfig.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisConfig.Password = v
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.AuthConfig.JWTSecret = v
	}

	if v := os.Getenv("VAULT_ADDR"); v != "" {
		cfg.VaultConfig.Address = v
		cfg.VaultConfig.Enabled = true
	}
	if v := os.Getenv("VAULT_TOKEN"); v != "" {
		cfg.VaultConfig.Token = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LoggingConfig.Level = v
	}
}
