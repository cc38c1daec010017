package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/troupe/dispatch"
	"github.com/najoast/troupe/logging"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, logging.LevelInfo, config.LogLevel())
	assert.False(t, config.EnableIO())
	assert.True(t, config.IsDevelopment())
	assert.True(t, config.IsDebugEnabled())

	specs := config.ExecutionContexts()
	require.Len(t, specs, 1)
	assert.Equal(t, dispatch.DefaultName, specs[0].Name)
	assert.Equal(t, dispatch.KindPool, specs[0].Kind)
	assert.Equal(t, dispatch.DefaultThroughput, specs[0].Throughput)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"empty app name", func(c *Config) { c.App.Name = "" }, ErrInvalidAppName},
		{"bad version", func(c *Config) { c.App.Version = "one" }, ErrInvalidVersion},
		{"bad environment", func(c *Config) { c.App.Environment = "moon" }, ErrInvalidEnvironment},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidLogFormat},
		{"negative throughput", func(c *Config) { c.Actor.Throughput = -1 }, ErrInvalidThroughput},
		{"negative timeout", func(c *Config) { c.Actor.AskTimeout = -time.Second }, ErrInvalidTimeout},
		{"unnamed executor", func(c *Config) {
			c.Actor.Executors = append(c.Actor.Executors, ExecutorConfig{Type: "pool"})
		}, ErrInvalidExecutorName},
		{"duplicate executor", func(c *Config) {
			c.Actor.Executors = append(c.Actor.Executors, ExecutorConfig{Name: dispatch.DefaultName})
		}, ErrDuplicateExecutor},
		{"unknown executor type", func(c *Config) {
			c.Actor.Executors = append(c.Actor.Executors, ExecutorConfig{Name: "x", Type: "fiber"})
		}, ErrInvalidExecutorType},
		{"pinned default", func(c *Config) {
			c.Actor.Executors[0].Type = string(dispatch.KindPinned)
		}, ErrInvalidExecutorType},
		{"negative workers", func(c *Config) {
			c.Actor.Executors[0].Workers = -2
		}, ErrInvalidExecutorSize},
		{"bad port with io", func(c *Config) {
			c.IO.EnableIO = true
			c.IO.TCP.Port = 70000
		}, ErrInvalidPort},
		{"bad port without io", func(c *Config) {
			c.IO.TCP.Port = 70000
		}, nil},
		{"zero buffer with io", func(c *Config) {
			c.IO.EnableIO = true
			c.IO.TCP.BufferSize = 0
		}, ErrInvalidBufferSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExecutionContextsInheritThroughput(t *testing.T) {
	config := DefaultConfig()
	config.Actor.Throughput = 3
	config.Actor.Executors = append(config.Actor.Executors,
		ExecutorConfig{Name: "io", Type: "pinned"},
		ExecutorConfig{Name: "batch", Workers: 2, Throughput: 50},
	)
	require.NoError(t, config.Validate())

	specs := config.ExecutionContexts()
	require.Len(t, specs, 3)
	assert.Equal(t, 3, specs[0].Throughput)
	assert.Equal(t, dispatch.KindPinned, specs[1].Kind)
	assert.Equal(t, 3, specs[1].Throughput)
	assert.Equal(t, dispatch.KindPool, specs[2].Kind)
	assert.Equal(t, 2, specs[2].Workers)
	assert.Equal(t, 50, specs[2].Throughput)
}

func TestLoaderYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "troupe.yaml", `
app:
  name: yaml-app
  version: "1.2.3"
  environment: staging
log:
  level: debug
  format: json
actor:
  throughput: 25
  ask_timeout: 2s
  executors:
    - name: default
      type: pool
      workers: 4
    - name: blocking
      type: pinned
io:
  enable_io: true
  tcp:
    address: 127.0.0.1
    port: 9000
`)

	config, err := NewLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml-app", config.App.Name)
	assert.Equal(t, EnvStaging, config.App.Environment)
	assert.Equal(t, logging.LevelDebug, config.LogLevel())
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, 25, config.Actor.Throughput)
	assert.Equal(t, 2*time.Second, config.Actor.AskTimeout)
	assert.Equal(t, 5*time.Second, config.Actor.FindTimeout, "unset fields keep defaults")
	require.Len(t, config.Actor.Executors, 2)
	assert.Equal(t, "blocking", config.Actor.Executors[1].Name)
	assert.True(t, config.EnableIO())
	assert.Equal(t, 9000, config.IO.TCP.Port)
	assert.Equal(t, 4096, config.IO.TCP.BufferSize)
}

func TestLoaderJSON(t *testing.T) {
	json := `{
	"app": {"name": "json-app", "version": "2.0.0", "environment": "production"},
	"log": {"level": "warning", "format": "text", "output": "stderr"}
}`
	config, err := NewLoader().LoadFromReader(strings.NewReader(json), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "json-app", config.App.Name)
	assert.True(t, config.IsProduction())
	assert.Equal(t, logging.LevelWarning, config.LogLevel())
	assert.Equal(t, "stderr", config.Log.Output)
}

func TestLoaderRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader()

	_, err := loader.Load(writeFile(t, dir, "bad.yaml", "app: [unterminated"))
	assert.ErrorIs(t, err, ErrConfigParseError)

	_, err = loader.Load(writeFile(t, dir, "bad.toml", "x = 1"))
	assert.Error(t, err)

	_, err = loader.Load(writeFile(t, dir, "invalid.yaml", "app:\n  version: not-semver\n"))
	assert.ErrorIs(t, err, ErrConfigValidateError)
	assert.ErrorIs(t, err, ErrInvalidVersion)

	_, err = loader.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TROUPE_APP_NAME", "env-app")
	t.Setenv("TROUPE_LOG_LEVEL", "error")
	t.Setenv("TROUPE_ACTOR_THROUGHPUT", "7")
	t.Setenv("TROUPE_ACTOR_ASK_TIMEOUT", "750ms")
	t.Setenv("TROUPE_IO_ENABLE", "true")
	t.Setenv("TROUPE_IO_TCP_PORT", "7777")

	dir := t.TempDir()
	path := writeFile(t, dir, "troupe.yaml", "app:\n  name: file-app\n")

	config, err := NewLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-app", config.App.Name)
	assert.Equal(t, logging.LevelError, config.LogLevel())
	assert.Equal(t, 7, config.Actor.Throughput)
	assert.Equal(t, 750*time.Millisecond, config.Actor.AskTimeout)
	assert.True(t, config.EnableIO())
	assert.Equal(t, 7777, config.IO.TCP.Port)
}

func TestEnvironmentOverrideErrors(t *testing.T) {
	t.Setenv("TROUPE_IO_TCP_PORT", "99999")
	_, err := NewLoader().Load("")
	assert.ErrorIs(t, err, ErrEnvironmentVarError)
}

func TestCustomEnvPrefix(t *testing.T) {
	t.Setenv("STAGE_APP_NAME", "staged")
	config, err := NewLoader().SetEnvPrefix("STAGE").Load("")
	require.NoError(t, err)
	assert.Equal(t, "staged", config.App.Name)
}

func TestAutoLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yml", "app:\n  name: auto-app\n")

	config, err := NewLoader().SetSearchPaths([]string{dir}).AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, "auto-app", config.App.Name)

	// nothing found falls back to defaults
	config, err = NewLoader().SetSearchPaths([]string{t.TempDir()}).AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, "troupe", config.App.Name)
}

func TestAutoLoadPrefersTroupeFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "app:\n  name: generic\n")
	writeFile(t, dir, "troupe.yaml", "app:\n  name: specific\n")

	config, err := NewLoader().SetSearchPaths([]string{dir}).AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, "specific", config.App.Name)
}

func TestSetDefaultConfig(t *testing.T) {
	base := DefaultConfig()
	base.App.Name = "base"
	base.Actor.Throughput = 99

	config, err := NewLoader().SetDefaultConfig(base).Load("")
	require.NoError(t, err)
	assert.Equal(t, "base", config.App.Name)
	assert.Equal(t, 99, config.Actor.Throughput)

	config.Actor.Executors[0].Workers = 8
	assert.Zero(t, base.Actor.Executors[0].Workers, "loaded configs do not alias the defaults")
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "troupe.yaml", "log:\n  level: info\n")

	watcher, err := NewWatcher(path, NewLoader(), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer watcher.Stop()

	assert.Equal(t, logging.LevelInfo, watcher.GetConfig().LogLevel())

	changed := make(chan struct{}, 1)
	watcher.OnConfigChange(func(_, newConfig *Config) {
		if newConfig.LogLevel() == logging.LevelDebug {
			select {
			case changed <- struct{}{}:
			default:
			}
		}
	})
	require.NoError(t, watcher.Start())

	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "troupe.yaml", "log:\n  level: debug\n")

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("configuration change was not detected")
	}
	assert.Equal(t, logging.LevelDebug, watcher.GetConfig().LogLevel())
}

func TestWatcherKeepsConfigOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "troupe.yaml", "log:\n  level: warning\n")

	watcher, err := NewWatcher(path, NewLoader())
	require.NoError(t, err)
	defer watcher.Stop()

	calls := 0
	watcher.OnConfigChange(func(_, _ *Config) { calls++ })

	writeFile(t, dir, "troupe.yaml", "log:\n  level: shouting\n")
	assert.Error(t, watcher.Reload())
	assert.Equal(t, logging.LevelWarning, watcher.GetConfig().LogLevel())
	assert.Zero(t, calls)
}

func TestWatcherCallbackPanicIsContained(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "troupe.yaml", "app:\n  name: one\n")

	watcher, err := NewWatcher(path, NewLoader())
	require.NoError(t, err)
	defer watcher.Stop()

	var seen string
	watcher.OnConfigChange(func(_, _ *Config) { panic("bad callback") })
	watcher.OnConfigChange(func(_, c *Config) { seen = c.App.Name })

	writeFile(t, dir, "troupe.yaml", "app:\n  name: two\n")
	require.NoError(t, watcher.Reload())
	assert.Equal(t, "two", seen)

	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop(), "stop is idempotent")
}

func TestWatcherRejectsUnknownFormat(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "troupe.ini"), NewLoader())
	assert.Error(t, err)
}
