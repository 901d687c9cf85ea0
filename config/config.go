// Package config loads server settings from defaults, an optional YAML file,
// POKER_* environment variables (optionally seeded from a .env file) and
// command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "POKER"

var ErrInvalidConfig = errors.New("invalid-config")

type Config struct {
	Port           int
	AllowedOrigins []string

	MaxRooms      int
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
	DeadAfter         time.Duration

	PingInterval time.Duration
	SendBuffer   int
	RateLimit    float64
	RateBurst    int

	TemplatesFile string

	LogLevel  string
	LogPretty bool
	GinMode   string
}

type flagDef struct {
	key   string
	usage string
}

var flags = []flagDef{
	{"port", "HTTP listen port"},
	{"allowed_origins", "comma separated list of allowed browser origins"},
	{"max_rooms", "maximum number of live rooms, 0 for no limit"},
	{"idle_timeout", "evict rooms idle for longer than this"},
	{"sweep_interval", "how often idle rooms are looked for"},
	{"heartbeat_interval", "how often heartbeat tokens are sent"},
	{"stale_after", "mark sessions unhealthy after this long without an ack"},
	{"dead_after", "remove sessions after this long without an ack"},
	{"ping_interval", "websocket ping interval"},
	{"send_buffer", "frames queued per connection before it is dropped"},
	{"rate_limit", "inbound messages per second per connection"},
	{"rate_burst", "inbound message burst per connection"},
	{"templates_file", "YAML template catalog, built-in catalog when empty"},
	{"log_level", "trace, debug, info, warn or error"},
	{"log_pretty", "human readable console logs"},
	{"gin_mode", "gin mode: debug, release or test"},
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("port", 3000)
	v.SetDefault("allowed_origins", "http://localhost:3000")
	v.SetDefault("max_rooms", 100)
	v.SetDefault("idle_timeout", 2*time.Hour)
	v.SetDefault("sweep_interval", time.Minute)
	v.SetDefault("heartbeat_interval", 5*time.Second)
	v.SetDefault("stale_after", 15*time.Second)
	v.SetDefault("dead_after", 2*time.Minute)
	v.SetDefault("ping_interval", 30*time.Second)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("templates_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("gin_mode", "release")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags registers one flag per setting on fs, named like the key with
// dashes, and binds it to v. Flags only override when set.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, f := range flags {
		name := strings.ReplaceAll(f.key, "_", "-")
		if fs.Lookup(name) == nil {
			fs.String(name, v.GetString(f.key), f.usage)
		}
		if err := v.BindPFlag(f.key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// LoadDotenv copies the variables in path into the process environment
// without overriding what is already set. A missing file is not an error.
func LoadDotenv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configFile when given and resolves every setting.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := Config{
		Port:              v.GetInt("port"),
		AllowedOrigins:    splitList(v.GetStringSlice("allowed_origins")),
		MaxRooms:          v.GetInt("max_rooms"),
		IdleTimeout:       v.GetDuration("idle_timeout"),
		SweepInterval:     v.GetDuration("sweep_interval"),
		HeartbeatInterval: v.GetDuration("heartbeat_interval"),
		StaleAfter:        v.GetDuration("stale_after"),
		DeadAfter:         v.GetDuration("dead_after"),
		PingInterval:      v.GetDuration("ping_interval"),
		SendBuffer:        v.GetInt("send_buffer"),
		RateLimit:         v.GetFloat64("rate_limit"),
		RateBurst:         v.GetInt("rate_burst"),
		TemplatesFile:     v.GetString("templates_file"),
		LogLevel:          v.GetString("log_level"),
		LogPretty:         v.GetBool("log_pretty"),
		GinMode:           v.GetString("gin_mode"),
	}
	return cfg, cfg.Validate()
}

// splitList accepts both YAML lists and comma separated strings.
func splitList(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	case len(c.AllowedOrigins) == 0:
		return fmt.Errorf("%w: no allowed origins", ErrInvalidConfig)
	case c.MaxRooms < 0:
		return fmt.Errorf("%w: max_rooms must not be negative", ErrInvalidConfig)
	case c.SweepInterval <= 0:
		return fmt.Errorf("%w: sweep_interval must be positive", ErrInvalidConfig)
	case c.IdleTimeout <= c.SweepInterval:
		return fmt.Errorf("%w: idle_timeout must be longer than sweep_interval", ErrInvalidConfig)
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("%w: heartbeat_interval must be positive", ErrInvalidConfig)
	case c.StaleAfter <= c.HeartbeatInterval:
		return fmt.Errorf("%w: stale_after must be longer than heartbeat_interval", ErrInvalidConfig)
	case c.DeadAfter <= c.StaleAfter:
		return fmt.Errorf("%w: dead_after must be longer than stale_after", ErrInvalidConfig)
	case c.PingInterval <= 0:
		return fmt.Errorf("%w: ping_interval must be positive", ErrInvalidConfig)
	case c.SendBuffer <= 0:
		return fmt.Errorf("%w: send_buffer must be positive", ErrInvalidConfig)
	case c.RateLimit <= 0 || c.RateBurst <= 0:
		return fmt.Errorf("%w: rate_limit and rate_burst must be positive", ErrInvalidConfig)
	}
	return nil
}
