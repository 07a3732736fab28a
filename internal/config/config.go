// Package config loads process settings from defaults, an optional TOML file,
// a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port            int
	Environment     string
	CORSOrigins     []string
	SocketTimeout   time.Duration
	MaxParticipants int
	StatsInterval   time.Duration
	MaxMessageBytes int64
	ShutdownTimeout time.Duration
	LogLevel        string
}

func Default() Config {
	return Config{
		Port:            3000,
		Environment:     EnvDevelopment,
		CORSOrigins:     []string{"*"},
		SocketTimeout:   60 * time.Second,
		MaxParticipants: 100,
		StatsInterval:   60 * time.Second,
		MaxMessageBytes: 64 << 10,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// PingInterval is half the socket timeout, so a peer misses at least one
// ping before its read deadline expires.
func (c Config) PingInterval() time.Duration {
	return c.SocketTimeout / 2
}

// fileConfig mirrors the TOML layout. Durations are Go duration strings.
type fileConfig struct {
	Server struct {
		Port            *int     `toml:"port"`
		Environment     string   `toml:"environment"`
		CORSOrigins     []string `toml:"cors_origins"`
		ShutdownTimeout string   `toml:"shutdown_timeout"`
		LogLevel        string   `toml:"log_level"`
	} `toml:"server"`
	Signaling struct {
		SocketTimeout   string `toml:"socket_timeout"`
		MaxParticipants *int   `toml:"max_participants"`
		StatsInterval   string `toml:"stats_interval"`
		MaxMessageBytes *int64 `toml:"max_message_bytes"`
	} `toml:"signaling"`
}

// Load parses args (without the program name) and builds the Config.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("rendezvous", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "path to a TOML config file")
	envFile := fs.String("env-file", ".env", "path to a dotenv file (ignored when missing)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.SetOutput(os.Stderr)
			fs.PrintDefaults()
		}
		return Config{}, err
	}

	cfg := Default()

	if *configPath != "" {
		if err := applyFile(&cfg, *configPath); err != nil {
			return Config{}, err
		}
	}

	if *envFile != "" {
		// godotenv.Load never overrides variables already set in the process.
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", *envFile, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Server.Port != nil {
		cfg.Port = *fc.Server.Port
	}
	if fc.Server.Environment != "" {
		cfg.Environment = fc.Server.Environment
	}
	if len(fc.Server.CORSOrigins) > 0 {
		cfg.CORSOrigins = fc.Server.CORSOrigins
	}
	if fc.Server.LogLevel != "" {
		cfg.LogLevel = fc.Server.LogLevel
	}
	if fc.Signaling.MaxParticipants != nil {
		cfg.MaxParticipants = *fc.Signaling.MaxParticipants
	}
	if fc.Signaling.MaxMessageBytes != nil {
		cfg.MaxMessageBytes = *fc.Signaling.MaxMessageBytes
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"server.shutdown_timeout", fc.Server.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"signaling.socket_timeout", fc.Signaling.SocketTimeout, &cfg.SocketTimeout},
		{"signaling.stats_interval", fc.Signaling.StatsInterval, &cfg.StatsInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	get := func(keys ...string) (string, string, bool) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return k, strings.TrimSpace(v), true
			}
		}
		return "", "", false
	}

	if k, v, ok := get("PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		cfg.Port = n
	}
	if _, v, ok := get("APP_ENV", "NODE_ENV"); ok {
		cfg.Environment = strings.ToLower(v)
	}
	if _, v, ok := get("CORS_ORIGIN"); ok {
		cfg.CORSOrigins = splitList(v)
	}
	if k, v, ok := get("MAX_PARTICIPANTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		cfg.MaxParticipants = n
	}
	if k, v, ok := get("MAX_MESSAGE_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		cfg.MaxMessageBytes = n
	}
	if _, v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SOCKET_TIMEOUT", &cfg.SocketTimeout},
		{"STATS_INTERVAL", &cfg.StatsInterval},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		_, v, ok := get(d.key)
		if !ok {
			continue
		}
		dur, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = dur
	}
	return nil
}

// parseDuration accepts Go duration strings and bare integers, which are
// read as milliseconds.
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be in 1..65535, got %d", c.Port))
	}
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		errs = append(errs, fmt.Errorf("environment must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment))
	}
	if len(c.CORSOrigins) == 0 {
		errs = append(errs, errors.New("at least one CORS origin is required"))
	}
	if c.SocketTimeout <= 0 {
		errs = append(errs, fmt.Errorf("socket timeout must be positive, got %s", c.SocketTimeout))
	}
	if c.MaxParticipants < 0 {
		errs = append(errs, fmt.Errorf("max participants must not be negative, got %d", c.MaxParticipants))
	}
	if c.StatsInterval < 0 {
		errs = append(errs, fmt.Errorf("stats interval must not be negative, got %s", c.StatsInterval))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, fmt.Errorf("max message bytes must be positive, got %d", c.MaxMessageBytes))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}
