// Package config parses the concli command line, with environment
// variables supplying defaults for flags that are not set.
package config

import (
	"errors"
	"flag"
	"os"
	"strings"
	"time"
)

// Config is the resolved concli invocation.
type Config struct {
	Host      string
	KeyFile   string
	SubKey    string
	CachePath string
	LogLevel  string
	Timeout   time.Duration
	UseHTTP3  bool

	// Command and Args are the positional remainder, e.g. "entity <ccid>".
	Command string
	Args    []string
}

// Parse resolves flags and positional arguments from args (without the
// program name).
func Parse(args []string) (Config, error) {
	cfg := Config{
		Host:      envOrDefault("CONCRNT_HOST", ""),
		KeyFile:   envOrDefault("CONCRNT_KEY_FILE", ""),
		SubKey:    envOrDefault("CONCRNT_SUBKEY", ""),
		CachePath: envOrDefault("CONCRNT_CACHE_PATH", ""),
		LogLevel:  envOrDefault("CONCRNT_LOG_LEVEL", "info"),
		Timeout:   5 * time.Second,
	}

	fs := flag.NewFlagSet("concli", flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Home domain (e.g. ariake.concrnt.net)")
	fs.StringVar(&cfg.KeyFile, "key", cfg.KeyFile, "PEM master key file (omit for guest access)")
	fs.StringVar(&cfg.SubKey, "subkey", cfg.SubKey, "Sub-key blob (overrides --key)")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "SQLite cache path (default: in-memory)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.BoolVar(&cfg.UseHTTP3, "http3", false, "Use HTTP/3 transport")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return cfg, errors.New("missing --host or CONCRNT_HOST")
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return cfg, errors.New("missing command: entity|message|timeline|listen")
	}
	cfg.Command = rest[0]
	cfg.Args = rest[1:]
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
