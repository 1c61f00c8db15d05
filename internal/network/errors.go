package network

import (
	"errors"
	"fmt"
)

// ConfigErrorCode categorizes malformed network configurations.
type ConfigErrorCode string

const (
	CodeCyclicConnection     ConfigErrorCode = "CYCLIC_CONNECTION"
	CodeIncompatiblePorts    ConfigErrorCode = "INCOMPATIBLE_PORTS"
	CodeAlreadyConnected     ConfigErrorCode = "ALREADY_CONNECTED"
	CodeNotConnected         ConfigErrorCode = "NOT_CONNECTED"
	CodeUnknownProcessor     ConfigErrorCode = "UNKNOWN_PROCESSOR"
	CodeUnknownPort          ConfigErrorCode = "UNKNOWN_PORT"
	CodeUnknownProperty      ConfigErrorCode = "UNKNOWN_PROPERTY"
	CodeDuplicateProcessor   ConfigErrorCode = "DUPLICATE_PROCESSOR"
	CodeInvalidIdentifier    ConfigErrorCode = "INVALID_IDENTIFIER"
	CodeMissingWriter        ConfigErrorCode = "MISSING_WRITER"
	CodeIncompatibleProperty ConfigErrorCode = "INCOMPATIBLE_PROPERTY"
)

// ConfigError reports a configuration the network refuses to accept.
// Nothing is changed when one is returned.
type ConfigError struct {
	Code    ConfigErrorCode
	Message string
	Path    string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigErrorCodeOf returns the code of the first ConfigError in err's chain.
func ConfigErrorCodeOf(err error) (ConfigErrorCode, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return "", false
}

func configErr(code ConfigErrorCode, path, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}
