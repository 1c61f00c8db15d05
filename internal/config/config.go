// Package config loads procnet settings from TOML.
//
// Every field has a default, so an empty or missing file is valid. Unknown
// keys are rejected to catch typos.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the full settings tree.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Store     StoreConfig     `toml:"store"`
	Engine    EngineConfig    `toml:"engine"`
	Bridge    BridgeConfig    `toml:"bridge"`
	Animation AnimationConfig `toml:"animation"`
	Resources ResourcesConfig `toml:"resources"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// StoreConfig selects the SQLite pass log. An empty path disables it.
type StoreConfig struct {
	Path string `toml:"path"`
}

type EngineConfig struct {
	// Workers bounds parallel evaluation within a level. 0 evaluates
	// sequentially.
	Workers          int `toml:"workers"`
	MaxEventsPerPass int `toml:"max_events_per_pass"`
}

type BridgeConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type AnimationConfig struct {
	FPS  int    `toml:"fps"`
	Loop string `toml:"loop"` // once, loop, swing
}

// ResourcesConfig points the resource resolver at a directory. An empty
// dir serves nothing.
type ResourcesConfig struct {
	Dir string `toml:"dir"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Log:       LogConfig{Level: "info", Format: "text"},
		Engine:    EngineConfig{MaxEventsPerPass: 1000},
		Bridge:    BridgeConfig{Addr: "127.0.0.1:8765"},
		Animation: AnimationConfig{FPS: 30, Loop: "once"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults and validates the result.
func Parse(data string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, err
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func checkUndecoded(md toml.MetaData) error {
	keys := md.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return fmt.Errorf("unknown keys: %s", strings.Join(names, ", "))
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: %q is not text or json", c.Log.Format))
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers: %d is negative", c.Engine.Workers))
	}
	if c.Engine.MaxEventsPerPass < 1 {
		errs = append(errs, fmt.Errorf("engine.max_events_per_pass: must be at least 1, got %d", c.Engine.MaxEventsPerPass))
	}
	if c.Bridge.Addr == "" {
		errs = append(errs, errors.New("bridge.addr: required"))
	}
	if c.Animation.FPS < 1 || c.Animation.FPS > 240 {
		errs = append(errs, fmt.Errorf("animation.fps: %d is outside 1..240", c.Animation.FPS))
	}
	switch c.Animation.Loop {
	case "once", "loop", "swing":
	default:
		errs = append(errs, fmt.Errorf("animation.loop: %q is not once, loop or swing", c.Animation.Loop))
	}
	return errors.Join(errs...)
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the logger described by l, writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl, err := l.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
