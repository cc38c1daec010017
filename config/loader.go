// Package config provides configuration loading and parsing functionality
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFormat represents the configuration file format
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
)

// Loader handles configuration loading from various sources
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Environment variable prefix
	envPrefix string

	// Default configuration
	defaultConfig *Config
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	paths := []string{
		".",
		"./config",
		"./configs",
		"/etc/troupe",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".troupe"))
	}
	return &Loader{
		searchPaths:   paths,
		envPrefix:     "TROUPE",
		defaultConfig: DefaultConfig(),
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaultConfig sets the default configuration
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

// Load loads configuration from the specified file, or from defaults and
// the environment when filename is empty
func (l *Loader) Load(filename string) (*Config, error) {
	if filename == "" {
		return l.finish(l.defaults())
	}

	config, err := l.LoadFromFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from file %s: %w", filename, err)
	}
	return l.finish(config)
}

// LoadFromFile parses a file and merges it over the defaults. Environment
// overrides and validation are not applied.
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	format, err := formatOf(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, err
	}
	return l.mergeConfig(l.defaults(), config), nil
}

// LoadFromReader loads configuration from an io.Reader
func (l *Loader) LoadFromReader(reader io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration data: %w", err)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, err
	}
	return l.finish(l.mergeConfig(l.defaults(), config))
}

// AutoLoad automatically discovers and loads configuration
func (l *Loader) AutoLoad() (*Config, error) {
	configFile, err := l.findConfigFile()
	if errors.Is(err, ErrConfigFileNotFound) {
		return l.finish(l.defaults())
	}
	if err != nil {
		return nil, err
	}
	return l.Load(configFile)
}

// finish applies environment overrides and validates
func (l *Loader) finish(config *Config) (*Config, error) {
	if err := l.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidateError, err)
	}
	return config, nil
}

func (l *Loader) defaults() *Config {
	if l.defaultConfig == nil {
		return DefaultConfig()
	}
	c := *l.defaultConfig
	c.Actor.Executors = append([]ExecutorConfig(nil), l.defaultConfig.Actor.Executors...)
	return &c
}

// findConfigFile searches for configuration files in search paths
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{
		"troupe.yaml", "troupe.yml",
		"config.yaml", "config.yml",
		"troupe.json", "config.json",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}

	return "", ErrConfigFileNotFound
}

func formatOf(filename string) (ConfigFormat, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config file format: %s", ext)
	}
}

// parseConfig parses configuration data based on format
func (l *Loader) parseConfig(data []byte, format ConfigFormat) (*Config, error) {
	config := &Config{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: YAML: %v", ErrConfigParseError, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: JSON: %v", ErrConfigParseError, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}

	return config, nil
}

// loadFromEnv loads configuration overrides from environment variables
func (l *Loader) loadFromEnv(config *Config) error {
	env := func(key string) string {
		return os.Getenv(l.envPrefix + "_" + key)
	}

	// App configuration
	if val := env("APP_NAME"); val != "" {
		config.App.Name = val
	}
	if val := env("APP_VERSION"); val != "" {
		config.App.Version = val
	}
	if val := env("APP_ENVIRONMENT"); val != "" {
		config.App.Environment = Environment(val)
	}
	if val := env("APP_DEBUG"); val != "" {
		config.App.Debug = strings.ToLower(val) == "true"
	}

	// Log configuration
	if val := env("LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
	if val := env("LOG_FORMAT"); val != "" {
		config.Log.Format = val
	}
	if val := env("LOG_OUTPUT"); val != "" {
		config.Log.Output = val
	}

	// Actor configuration
	if val := env("ACTOR_DEFAULT_EXECUTOR"); val != "" {
		config.Actor.DefaultExecutor = val
	}
	if val := env("ACTOR_THROUGHPUT"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: ACTOR_THROUGHPUT=%q", ErrEnvironmentVarError, val)
		}
		config.Actor.Throughput = n
	}
	if val := env("ACTOR_ASK_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: ACTOR_ASK_TIMEOUT=%q", ErrEnvironmentVarError, val)
		}
		config.Actor.AskTimeout = d
	}

	// IO configuration
	if val := env("IO_ENABLE"); val != "" {
		config.IO.EnableIO = strings.ToLower(val) == "true"
	}
	if val := env("IO_TCP_ADDRESS"); val != "" {
		config.IO.TCP.Address = val
	}
	if val := env("IO_TCP_PORT"); val != "" {
		port, err := parsePort(val)
		if err != nil {
			return fmt.Errorf("%w: IO_TCP_PORT: %v", ErrEnvironmentVarError, err)
		}
		config.IO.TCP.Port = port
	}

	return nil
}

// Helper function to parse port number
func parsePort(val string) (int, error) {
	port, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port number: %d", port)
	}
	return port, nil
}

// mergeConfig merges user config with default config
func (l *Loader) mergeConfig(defaultConfig, userConfig *Config) *Config {
	// Start with default config
	merged := *defaultConfig

	// App config
	if userConfig.App.Name != "" {
		merged.App.Name = userConfig.App.Name
	}
	if userConfig.App.Version != "" {
		merged.App.Version = userConfig.App.Version
	}
	if userConfig.App.Environment != "" {
		merged.App.Environment = userConfig.App.Environment
	}
	if userConfig.App.Description != "" {
		merged.App.Description = userConfig.App.Description
	}
	merged.App.Debug = userConfig.App.Debug

	// Log config
	if userConfig.Log.Level != "" {
		merged.Log.Level = userConfig.Log.Level
	}
	if userConfig.Log.Format != "" {
		merged.Log.Format = userConfig.Log.Format
	}
	if userConfig.Log.Output != "" {
		merged.Log.Output = userConfig.Log.Output
	}

	// Actor config
	if userConfig.Actor.DefaultExecutor != "" {
		merged.Actor.DefaultExecutor = userConfig.Actor.DefaultExecutor
	}
	if userConfig.Actor.Throughput != 0 {
		merged.Actor.Throughput = userConfig.Actor.Throughput
	}
	if userConfig.Actor.AskTimeout != 0 {
		merged.Actor.AskTimeout = userConfig.Actor.AskTimeout
	}
	if userConfig.Actor.FindTimeout != 0 {
		merged.Actor.FindTimeout = userConfig.Actor.FindTimeout
	}
	if userConfig.Actor.ShutdownTimeout != 0 {
		merged.Actor.ShutdownTimeout = userConfig.Actor.ShutdownTimeout
	}
	if len(userConfig.Actor.Executors) > 0 {
		merged.Actor.Executors = userConfig.Actor.Executors
	}

	// IO config
	merged.IO.EnableIO = userConfig.IO.EnableIO
	if userConfig.IO.TCP.Address != "" {
		merged.IO.TCP.Address = userConfig.IO.TCP.Address
	}
	if userConfig.IO.TCP.Port != 0 {
		merged.IO.TCP.Port = userConfig.IO.TCP.Port
	}
	if userConfig.IO.TCP.BufferSize != 0 {
		merged.IO.TCP.BufferSize = userConfig.IO.TCP.BufferSize
	}
	if userConfig.IO.TCP.Framed {
		merged.IO.TCP.Framed = true
	}
	if userConfig.IO.TCP.ReadTimeout != 0 {
		merged.IO.TCP.ReadTimeout = userConfig.IO.TCP.ReadTimeout
	}
	if userConfig.IO.TCP.WriteTimeout != 0 {
		merged.IO.TCP.WriteTimeout = userConfig.IO.TCP.WriteTimeout
	}

	// Custom fields
	merged.Custom = make(map[string]interface{}, len(defaultConfig.Custom)+len(userConfig.Custom))
	for k, v := range defaultConfig.Custom {
		merged.Custom[k] = v
	}
	for k, v := range userConfig.Custom {
		merged.Custom[k] = v
	}

	return &merged
}
