package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Environment overrides, applied after the profile and the [log] level from
// the wlprobe config file.
const (
	EnvLogLevel     = "WLPROBE_LOG_LEVEL"
	EnvLogTimestamp = "WLPROBE_LOG_TIMESTAMP"
	EnvLogNoColor   = "WLPROBE_LOG_NOCOLOR"
	EnvLogBypass    = "WLPROBE_LOG_BYPASS"
)

// Profile selects the baseline logger shape.
//
// ProfileRuntime logs at info with timestamps, which keeps one line per
// connect, bind and roundtrip failure. ProfileTest logs at debug without
// timestamps so per-event dispatch from the fake compositor is readable in
// `go test -v` output.
type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	ConfigureWith(profile, "")
}

// ConfigureWith applies the profile, then level (the CLI flag or [log] level)
// when it names a known level, then environment overrides. Only the first
// call in a process has any effect, so tests that start a serve command keep
// the test profile.
func ConfigureWith(profile Profile, level string) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		if lvl, ok := ParseLevel(level); ok {
			cfg.Level = lvl
		}
		applyEnvOverrides(&cfg)
		apply(cfg)
	})
}

func defaultConfig(profile Profile) Config {
	cfg := DefaultConfig()
	if profile == ProfileTest {
		cfg.Level = zerolog.DebugLevel
		cfg.Timestamp = false
	}
	return cfg
}

var boolOverrides = []struct {
	env string
	set func(*Config, bool)
}{
	{EnvLogTimestamp, func(c *Config, v bool) { c.Timestamp = v }},
	{EnvLogNoColor, func(c *Config, v bool) { c.NoColor = v }},
	{EnvLogBypass, func(c *Config, v bool) { c.Bypass = v }},
}

// applyEnvOverrides ignores unset or unparsable values.
func applyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	for _, o := range boolOverrides {
		raw := strings.TrimSpace(os.Getenv(o.env))
		if raw == "" {
			continue
		}
		if v, err := strconv.ParseBool(raw); err == nil {
			o.set(cfg, v)
		}
	}
}

// levelNames accepts zerolog's names plus the aliases wlprobe documents for
// --log-level.
var levelNames = map[string]zerolog.Level{
	"trace":       zerolog.TraceLevel,
	"diagnostics": zerolog.TraceLevel,
	"debug":       zerolog.DebugLevel,
	"info":        zerolog.InfoLevel,
	"warn":        zerolog.WarnLevel,
	"warning":     zerolog.WarnLevel,
	"error":       zerolog.ErrorLevel,
	"off":         zerolog.Disabled,
	"none":        zerolog.Disabled,
	"disabled":    zerolog.Disabled,
}

// ParseLevel maps a level name to a zerolog level. ok is false for empty or
// unknown names.
func ParseLevel(raw string) (zerolog.Level, bool) {
	lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return zerolog.InfoLevel, false
	}
	return lvl, true
}
