package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	logs "github.com/danmuck/wlprobe/internal/logging"
	"github.com/danmuck/wlprobe/internal/protocol/wire"
	"github.com/danmuck/wlprobe/internal/wayland"
)

const (
	DefaultServeAddr = "127.0.0.1:9400"
	DefaultLogLevel  = "info"
)

type Config struct {
	Socket          string      `toml:"socket"`
	RuntimeDir      string      `toml:"runtime_dir"`
	Display         string      `toml:"display"`
	MaxMessageBytes int         `toml:"max_message_bytes"`
	Serve           ServeConfig `toml:"serve"`
	Log             LogConfig   `toml:"log"`
}

type ServeConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func Load(path string) (Config, error) {
	var cfg Config
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.MaxMessageBytes == 0 {
		cfg.MaxMessageBytes = wire.DefaultMaxMessageBytes
	}
	if strings.TrimSpace(cfg.Serve.Addr) == "" {
		cfg.Serve.Addr = DefaultServeAddr
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(cfg Config) error {
	// Below libwayland's buffer size, ordinary globals with long interface
	// names would be rejected as oversized.
	if cfg.MaxMessageBytes < wire.DefaultMaxMessageBytes || cfg.MaxMessageBytes > wire.MaxFrameBytes {
		return fmt.Errorf("max_message_bytes must be between %d and %d, got %d",
			wire.DefaultMaxMessageBytes, wire.MaxFrameBytes, cfg.MaxMessageBytes)
	}
	if strings.TrimSpace(cfg.Serve.Addr) == "" {
		return fmt.Errorf("serve config missing addr")
	}
	for i, origin := range cfg.Serve.CorsOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("serve.cors_origins[%d] is empty", i)
		}
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		return fmt.Errorf("log config missing level")
	}
	if _, ok := logs.ParseLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("log config unknown level %q", cfg.Log.Level)
	}
	return nil
}

// SocketPath resolves the compositor socket. Values set in the file win over
// XDG_RUNTIME_DIR and WAYLAND_DISPLAY.
func (c Config) SocketPath() (string, error) {
	runtimeDir := c.RuntimeDir
	if runtimeDir == "" {
		runtimeDir = os.Getenv(wayland.EnvRuntimeDir)
	}
	display := c.Display
	if display == "" {
		display = os.Getenv(wayland.EnvDisplay)
	}
	return wayland.ResolveSocketPath(c.Socket, runtimeDir, display)
}

// Options builds connection options from the file.
func (c Config) Options() wayland.Options {
	opts := wayland.DefaultOptions()
	opts.Limits = wire.Limits{MaxMessageBytes: c.MaxMessageBytes}
	return opts
}
