package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParse(t *testing.T) {
	cfg, err := Parse(`
[log]
level = "debug"
format = "json"

[store]
path = "passes.db"

[engine]
workers = 4

[bridge]
allowed_origins = ["http://localhost:3000"]

[animation]
fps = 60
loop = "swing"
`)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "passes.db", cfg.Store.Path)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 1000, cfg.Engine.MaxEventsPerPass, "unset keys keep defaults")
	assert.Equal(t, "127.0.0.1:8765", cfg.Bridge.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Bridge.AllowedOrigins)
	assert.Equal(t, 60, cfg.Animation.FPS)
	assert.Equal(t, "swing", cfg.Animation.Loop)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse("[engine]\nworkerz = 2\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.workerz")
}

func TestParse_Syntax(t *testing.T) {
	_, err := Parse("[engine\n")
	assert.Error(t, err)
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Engine.Workers = -1
	cfg.Engine.MaxEventsPerPass = 0
	cfg.Bridge.Addr = ""
	cfg.Animation.FPS = 0
	cfg.Animation.Loop = "bounce"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"log.level",
		"log.format",
		"engine.workers",
		"engine.max_events_per_pass",
		"bridge.addr",
		"animation.fps",
		"animation.loop",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procnet.toml")
	require.NoError(t, os.WriteFile(path, []byte("[resources]\ndir = \"shaders\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "shaders", cfg.Resources.Dir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(path, []byte("[animation]\nfps = 1000\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "animation.fps")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	logger.Warn("careful", "n", 1)
	assert.Contains(t, buf.String(), `"msg":"careful"`)

	buf.Reset()
	LogConfig{Level: "debug", Format: "text"}.NewLogger(&buf).Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
