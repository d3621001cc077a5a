// Package config loads server configuration in layers: built-in defaults,
// an optional YAML file, then environment variables (highest priority).
// A .env file in the working directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

const ConfigPathEnvVar = "CONFIG_PATH"

type ServerConfig struct {
	Addr        string   `koanf:"addr"`
	PublicURL   string   `koanf:"public_url"`
	CORSOrigins []string `koanf:"cors_origins"`
}

type StoreConfig struct {
	Driver    string        `koanf:"driver"`
	MongoURI  string        `koanf:"mongo_uri"`
	Database  string        `koanf:"database"`
	BadgerDir string        `koanf:"badger_dir"`
	Timeout   time.Duration `koanf:"timeout"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	DB       int    `koanf:"db"`
	Password string `koanf:"password"`
}

type AuthConfig struct {
	TokenSecret string        `koanf:"token_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Log       LogConfig       `koanf:"log"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			PublicURL:   "http://localhost:8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Store: StoreConfig{
			Driver:    "mongo",
			MongoURI:  "mongodb://localhost:27017",
			Database:  "ffinder",
			BadgerDir: "data/ffinder",
			Timeout:   5 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 30 * 24 * time.Hour,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Requests: 20,
			Window:   time.Minute,
		},
	}
}

// envMappings maps environment variables to config paths. Variables not
// listed here are ignored.
var envMappings = map[string]string{
	"HTTP_ADDR":           "server.addr",
	"PUBLIC_URL":          "server.public_url",
	"CORS_ORIGINS":        "server.cors_origins",
	"STORE_DRIVER":        "store.driver",
	"MONGODB_URI":         "store.mongo_uri",
	"MONGODB_DATABASE":    "store.database",
	"BADGER_DIR":          "store.badger_dir",
	"STORE_TIMEOUT":       "store.timeout",
	"REDIS_ADDR":          "redis.addr",
	"REDIS_DB":            "redis.db",
	"REDIS_PASSWORD":      "redis.password",
	"TOKEN_SECRET":        "auth.token_secret",
	"JWT_SECRET":          "auth.token_secret",
	"TOKEN_TTL":           "auth.token_ttl",
	"SMTP_HOST":           "smtp.host",
	"SMTP_PORT":           "smtp.port",
	"SMTP_USER":           "smtp.username",
	"SMTP_PASS":           "smtp.password",
	"SMTP_FROM":           "smtp.from",
	"LOG_LEVEL":           "log.level",
	"LOG_FORMAT":          "log.format",
	"RATE_LIMIT_REQUESTS": "ratelimit.requests",
	"RATE_LIMIT_WINDOW":   "ratelimit.window",
}

func envTransformFunc(key string) string {
	return envMappings[key]
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment only")
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if origins, ok := k.Get("server.cors_origins").(string); ok {
		if err := k.Set("server.cors_origins", splitList(origins)); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.Auth.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is not set")
	}
	switch c.Store.Driver {
	case "mongo":
		if c.Store.MongoURI == "" {
			return errors.New("MONGODB_URI is not set")
		}
	case "badger":
		if c.Store.BadgerDir == "" {
			return errors.New("BADGER_DIR is not set")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return errors.New("SMTP_FROM is required when SMTP_HOST is set")
	}
	return nil
}
