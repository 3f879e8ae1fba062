// Package swconfig manages udpswitch daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables. The positional CLI
// arguments (forward IP, interface) are parsed separately by each
// command's main package; Config has no fields that overlap them.
package swconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the tunables of the switch daemon beyond its positional
// CLI arguments.
type Config struct {
	NIC     NICConfig     `koanf:"nic"`
	TAP     TAPConfig     `koanf:"tap"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
}

// NICConfig describes the software NIC queue binding (C7).
type NICConfig struct {
	// FanoutGroupID identifies the PACKET_FANOUT group shared by all
	// worker sockets bound to the interface.
	FanoutGroupID int `koanf:"fanout_group_id"`

	// BucketCount is the number of hash buckets the fanout classifier
	// stripes round-robin across worker queues. Must be >= 512 per §4.7.
	BucketCount int `koanf:"bucket_count"`

	// RingFrameSize is the byte size of each pooled packet buffer a queue
	// receives into and sends from.
	RingFrameSize int `koanf:"ring_frame_size"`
}

// TAPConfig describes the TAP device the switch splays non-UDP-for-us
// frames onto (C5).
type TAPConfig struct {
	// Name is the TAP device name to create or attach to.
	Name string `koanf:"name"`

	// ReadBufferSize is checked by Validate but not read by the switch: the
	// TAP bridge sizes its reads from the TAP device's fixed 8192-byte cap.
	ReadBufferSize int `koanf:"read_buffer_size"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		NIC: NICConfig{
			FanoutGroupID: 1,
			BucketCount:   512,
			RingFrameSize: 2048,
		},
		TAP: TAPConfig{
			Name:           "udpswitch0",
			ReadBufferSize: 8192,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for udpswitch configuration.
// Variables are named UDPSWITCH_<section>_<key>, e.g., UDPSWITCH_NIC_BUCKET_COUNT.
const envPrefix = "UDPSWITCH_"

// Load reads configuration from an optional YAML file at path, overlays
// environment variable overrides (UDPSWITCH_ prefix), and merges on top of
// DefaultConfig(). An empty path skips the file layer; missing fields
// inherit defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms UDPSWITCH_NIC_BUCKET_COUNT -> nic.bucket_count.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	// Only the first underscore separates section from key; keys such as
	// bucket_count keep their own underscores.
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"nic.fanout_group_id":  defaults.NIC.FanoutGroupID,
		"nic.bucket_count":     defaults.NIC.BucketCount,
		"nic.ring_frame_size":  defaults.NIC.RingFrameSize,
		"tap.name":             defaults.TAP.Name,
		"tap.read_buffer_size": defaults.TAP.ReadBufferSize,
		"metrics.addr":         defaults.Metrics.Addr,
		"metrics.path":         defaults.Metrics.Path,
		"log.level":            defaults.Log.Level,
		"log.format":           defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidBucketCount indicates the NIC bucket count is below the
	// §4.7 minimum of 512.
	ErrInvalidBucketCount = errors.New("nic.bucket_count must be >= 512")

	// ErrEmptyTAPName indicates no TAP device name was configured.
	ErrEmptyTAPName = errors.New("tap.name must not be empty")

	// ErrInvalidReadBufferSize indicates the TAP read buffer size is not positive.
	ErrInvalidReadBufferSize = errors.New("tap.read_buffer_size must be > 0")
)

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.NIC.BucketCount < 512 {
		return ErrInvalidBucketCount
	}

	if cfg.TAP.Name == "" {
		return ErrEmptyTAPName
	}

	if cfg.TAP.ReadBufferSize <= 0 {
		return ErrInvalidReadBufferSize
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
