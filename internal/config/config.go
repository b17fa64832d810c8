package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode           string          `mapstructure:"mode"`
	Port           int             `mapstructure:"port"`
	LogLevel       string          `mapstructure:"log_level"`
	Secret         string          `mapstructure:"secret"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	WS             WSConfig        `mapstructure:"ws"`
	Rooms          RoomsConfig     `mapstructure:"rooms"`
	RateLimit      RateLimitConfig `mapstructure:"ratelimit"`
	Store          StoreConfig     `mapstructure:"store"`
}

type WSConfig struct {
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

type RoomsConfig struct {
	// JoinPolicy is "create" (join auto-creates) or "strict" (room must exist).
	JoinPolicy    string        `mapstructure:"join_policy"`
	EmptyGrace    time.Duration `mapstructure:"empty_grace"`
	UnusedTTL     time.Duration `mapstructure:"unused_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	HistoryLimit  int           `mapstructure:"history_limit"`
}

type RateLimitConfig struct {
	ChatLimit    int           `mapstructure:"chat_limit"`
	ChatInterval time.Duration `mapstructure:"chat_interval"`
}

type StoreConfig struct {
	// Driver is "memory", "postgres" or "none".
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	QueueSize int    `mapstructure:"queue_size"`
}

var ErrInvalidConfig = errors.New("invalid config")

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "change-me")
	v.SetDefault("allowed_origins", []string{})

	v.SetDefault("ws.read_limit", 32768)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.pong_wait", "60s")
	v.SetDefault("ws.write_wait", "5s")
	v.SetDefault("ws.send_buffer", 64)

	v.SetDefault("rooms.join_policy", "create")
	v.SetDefault("rooms.empty_grace", "30s")
	v.SetDefault("rooms.unused_ttl", "10m")
	v.SetDefault("rooms.sweep_interval", "10s")
	v.SetDefault("rooms.history_limit", 50)

	v.SetDefault("ratelimit.chat_limit", 20)
	v.SetDefault("ratelimit.chat_interval", "5s")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.queue_size", 256)
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("join_policy", cfg.Rooms.JoinPolicy).
		Str("store", cfg.Store.Driver).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	switch c.Rooms.JoinPolicy {
	case "create", "strict":
	default:
		return fmt.Errorf("%w: rooms.join_policy %q", ErrInvalidConfig, c.Rooms.JoinPolicy)
	}
	switch c.Store.Driver {
	case "memory", "none":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: store.driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.WS.SendBuffer <= 0 {
		return fmt.Errorf("%w: ws.send_buffer must be positive", ErrInvalidConfig)
	}
	if c.WS.PingPeriod <= 0 || c.WS.PingPeriod >= c.WS.PongWait {
		return fmt.Errorf("%w: ws.ping_period must be shorter than ws.pong_wait", ErrInvalidConfig)
	}
	if c.Rooms.SweepInterval <= 0 {
		return fmt.Errorf("%w: rooms.sweep_interval must be positive", ErrInvalidConfig)
	}
	if c.RateLimit.ChatLimit <= 0 || c.RateLimit.ChatInterval <= 0 {
		return fmt.Errorf("%w: ratelimit values must be positive", ErrInvalidConfig)
	}
	return nil
}
