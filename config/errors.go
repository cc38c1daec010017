// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName      = errors.New("invalid application name")
	ErrInvalidVersion      = errors.New("invalid application version")
	ErrInvalidEnvironment  = errors.New("invalid environment")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrInvalidLogFormat    = errors.New("invalid log format")
	ErrInvalidPort         = errors.New("invalid port number")
	ErrInvalidBufferSize   = errors.New("invalid buffer size")
	ErrInvalidThroughput   = errors.New("invalid throughput")
	ErrInvalidTimeout      = errors.New("invalid timeout")
	ErrInvalidExecutorName = errors.New("invalid executor name")
	ErrInvalidExecutorType = errors.New("invalid executor type")
	ErrInvalidExecutorSize = errors.New("invalid executor size")
	ErrDuplicateExecutor   = errors.New("duplicate executor")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound  = errors.New("configuration file not found")
	ErrConfigParseError    = errors.New("configuration parse error")
	ErrConfigValidateError = errors.New("configuration validation error")
	ErrEnvironmentVarError = errors.New("environment variable error")
	ErrConfigWatchError    = errors.New("configuration watch error")
)
