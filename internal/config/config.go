package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "ARTIZEN"

type Config struct {
	Server    ServerConfig
	DBPath    string
	Auth      AuthConfig
	Feed      FeedConfig
	Chat      ChatConfig
	RedisAddr string
	NATSURL   string
	Log       LogConfig
	Retention RetentionConfig
	WS        WSConfig
}

type ServerConfig struct {
	Port        string
	ReadTimeout time.Duration
	IdleTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret        string
	TokenTTL         time.Duration
	AllowEmailHeader bool
}

type FeedConfig struct {
	DefaultLimit int
	MaxLimit     int
	CacheSize    int
	CacheTTL     time.Duration
}

type ChatConfig struct {
	DefaultTake int
	MaxTake     int
}

type LogConfig struct {
	Level  string
	Format string
}

type RetentionConfig struct {
	Schedule        string
	NotificationAge time.Duration
}

type WSConfig struct {
	AllowedOrigins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("db.path", "./artizen.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.allow_email_header", false)
	v.SetDefault("feed.default_limit", 10)
	v.SetDefault("feed.max_limit", 50)
	v.SetDefault("feed.cache_size", 256)
	v.SetDefault("feed.cache_ttl", "30s")
	v.SetDefault("chat.default_take", 30)
	v.SetDefault("chat.max_take", 100)
	v.SetDefault("redis.addr", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("retention.schedule", "@every 1h")
	v.SetDefault("retention.notification_age", "720h")
	v.SetDefault("ws.allowed_origins", []string{})
}

// Load reads .env, then an optional YAML file, then ARTIZEN_* environment variables.
// An explicit path must exist; without one, artizen.yaml in the working
// directory or /etc/artizen is used when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("artizen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/artizen")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        strings.TrimSpace(v.GetString("server.port")),
			ReadTimeout: v.GetDuration("server.read_timeout"),
			IdleTimeout: v.GetDuration("server.idle_timeout"),
		},
		DBPath: strings.TrimSpace(v.GetString("db.path")),
		Auth: AuthConfig{
			JWTSecret:        v.GetString("auth.jwt_secret"),
			TokenTTL:         v.GetDuration("auth.token_ttl"),
			AllowEmailHeader: v.GetBool("auth.allow_email_header"),
		},
		Feed: FeedConfig{
			DefaultLimit: v.GetInt("feed.default_limit"),
			MaxLimit:     v.GetInt("feed.max_limit"),
			CacheSize:    v.GetInt("feed.cache_size"),
			CacheTTL:     v.GetDuration("feed.cache_ttl"),
		},
		Chat: ChatConfig{
			DefaultTake: v.GetInt("chat.default_take"),
			MaxTake:     v.GetInt("chat.max_take"),
		},
		RedisAddr: strings.TrimSpace(v.GetString("redis.addr")),
		NATSURL:   strings.TrimSpace(v.GetString("nats.url")),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Retention: RetentionConfig{
			Schedule:        strings.TrimSpace(v.GetString("retention.schedule")),
			NotificationAge: v.GetDuration("retention.notification_age"),
		},
		WS: WSConfig{
			AllowedOrigins: v.GetStringSlice("ws.allowed_origins"),
		},
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.DBPath == "" {
		return errors.New("db.path is required")
	}
	if c.Feed.DefaultLimit <= 0 || c.Feed.MaxLimit < c.Feed.DefaultLimit {
		return fmt.Errorf("invalid feed limits: default=%d max=%d", c.Feed.DefaultLimit, c.Feed.MaxLimit)
	}
	if c.Chat.DefaultTake <= 0 || c.Chat.MaxTake < c.Chat.DefaultTake {
		return fmt.Errorf("invalid chat take: default=%d max=%d", c.Chat.DefaultTake, c.Chat.MaxTake)
	}
	return nil
}
