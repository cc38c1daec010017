// Package config provides configuration management for troupe applications
package config

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/najoast/troupe/dispatch"
	"github.com/najoast/troupe/logging"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// Config represents the complete troupe configuration
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log"`

	// Actor system configuration
	Actor ActorConfig `yaml:"actor" json:"actor"`

	// I/O actors configuration
	IO IOConfig `yaml:"io" json:"io"`

	// Custom configurations (for user-defined actors)
	Custom map[string]interface{} `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	// Application name, also used as the actor system name
	Name string `yaml:"name" json:"name"`

	// Application version (semantic version)
	Version string `yaml:"version" json:"version"`

	// Deployment environment
	Environment Environment `yaml:"environment" json:"environment"`

	// Debug mode
	Debug bool `yaml:"debug" json:"debug"`

	// Application description
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level: silent, error, warning, info, debug or verbose
	Level string `yaml:"level" json:"level"`

	// Log format (json, text)
	Format string `yaml:"format" json:"format"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`
}

// ActorConfig contains actor system configuration
type ActorConfig struct {
	// Name of the executor actors run on unless told otherwise
	DefaultExecutor string `yaml:"default_executor" json:"default_executor"`

	// Messages handled per scheduling turn for executors that do not set one
	Throughput int `yaml:"throughput" json:"throughput"`

	// Ask timeout when the caller passes none
	AskTimeout time.Duration `yaml:"ask_timeout" json:"ask_timeout"`

	// Find timeout when the caller passes none
	FindTimeout time.Duration `yaml:"find_timeout" json:"find_timeout"`

	// Upper bound for a graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Named execution contexts
	Executors []ExecutorConfig `yaml:"executors" json:"executors"`
}

// ExecutorConfig defines one execution context
type ExecutorConfig struct {
	// Registry name
	Name string `yaml:"name" json:"name"`

	// Type is "pool" or "pinned"
	Type string `yaml:"type" json:"type"`

	// Worker goroutines for pools, 0 means GOMAXPROCS
	Workers int `yaml:"workers" json:"workers"`

	// Messages per turn, 0 inherits actor.throughput
	Throughput int `yaml:"throughput" json:"throughput"`
}

// IOConfig contains configuration for the TCP I/O actors
type IOConfig struct {
	// Start the I/O manager actor
	EnableIO bool `yaml:"enable_io" json:"enable_io"`

	// TCP settings
	TCP TCPConfig `yaml:"tcp" json:"tcp"`
}

// TCPConfig contains TCP-specific configuration
type TCPConfig struct {
	// Listening address
	Address string `yaml:"address" json:"address"`

	// Listening port, 0 picks a free port
	Port int `yaml:"port" json:"port"`

	// Buffer size for reading
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`

	// Frame messages with a 4-byte length prefix
	Framed bool `yaml:"framed" json:"framed"`

	// Read timeout, 0 disables it
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// Write timeout, 0 disables it
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "troupe",
			Version:     "1.0.0",
			Environment: EnvDevelopment,
			Debug:       false,
			Description: "troupe actor application",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Actor: ActorConfig{
			DefaultExecutor: dispatch.DefaultName,
			Throughput:      dispatch.DefaultThroughput,
			AskTimeout:      5 * time.Second,
			FindTimeout:     5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Executors: []ExecutorConfig{
				{Name: dispatch.DefaultName, Type: string(dispatch.KindPool)},
			},
		},
		IO: IOConfig{
			EnableIO: false,
			TCP: TCPConfig{
				Address:      "0.0.0.0",
				Port:         7070,
				BufferSize:   4096,
				Framed:       true,
				ReadTimeout:  0,
				WriteTimeout: 10 * time.Second,
			},
		},
		Custom: make(map[string]interface{}),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate app config
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if _, err := semver.NewVersion(c.App.Version); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidVersion, c.App.Version, err)
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}

	// Validate log config
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLogLevel, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}

	// Validate actor config
	if c.Actor.Throughput < 0 {
		return ErrInvalidThroughput
	}
	if c.Actor.AskTimeout < 0 || c.Actor.FindTimeout < 0 || c.Actor.ShutdownTimeout < 0 {
		return ErrInvalidTimeout
	}
	seen := make(map[string]bool)
	for _, e := range c.Actor.Executors {
		if e.Name == "" {
			return ErrInvalidExecutorName
		}
		if seen[e.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateExecutor, e.Name)
		}
		seen[e.Name] = true
		switch dispatch.Kind(e.Type) {
		case "", dispatch.KindPool:
		case dispatch.KindPinned:
			if e.Name == c.defaultExecutor() {
				return fmt.Errorf("%w: default executor %q must be a pool", ErrInvalidExecutorType, e.Name)
			}
		default:
			return fmt.Errorf("%w: %q", ErrInvalidExecutorType, e.Type)
		}
		if e.Workers < 0 || e.Throughput < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidExecutorSize, e.Name)
		}
	}

	// Validate io config
	if c.IO.EnableIO {
		if c.IO.TCP.Port < 0 || c.IO.TCP.Port > 65535 {
			return ErrInvalidPort
		}
		if c.IO.TCP.BufferSize <= 0 {
			return ErrInvalidBufferSize
		}
	}

	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// LogLevel returns the parsed log level, info when unparsable
func (c *Config) LogLevel() logging.Level {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return level
}

// EnableIO reports whether the I/O actors should be started
func (c *Config) EnableIO() bool {
	return c.IO.EnableIO
}

// ExecutionContexts converts the executor definitions for the dispatcher
func (c *Config) ExecutionContexts() []dispatch.Spec {
	specs := make([]dispatch.Spec, 0, len(c.Actor.Executors))
	for _, e := range c.Actor.Executors {
		kind := dispatch.Kind(e.Type)
		if kind == "" {
			kind = dispatch.KindPool
		}
		throughput := e.Throughput
		if throughput == 0 {
			throughput = c.Actor.Throughput
		}
		specs = append(specs, dispatch.Spec{
			Name:       e.Name,
			Kind:       kind,
			Workers:    e.Workers,
			Throughput: throughput,
		})
	}
	return specs
}

// IsDebugEnabled returns true if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.App.Environment == EnvDevelopment
}

func (c *Config) defaultExecutor() string {
	if c.Actor.DefaultExecutor == "" {
		return dispatch.DefaultName
	}
	return c.Actor.DefaultExecutor
}
