package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrorCode categorizes evaluation failures.
type ErrorCode string

const (
	// CodeConfiguration marks a network the evaluator cannot run as built.
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// CodeEvaluation marks a failed or panicking Process call.
	CodeEvaluation ErrorCode = "EVALUATION_ERROR"

	// CodeResource marks a failed InitializeResources call. It is reported
	// like an evaluation error; only the code differs.
	CodeResource ErrorCode = "RESOURCE_ERROR"

	// CodeUpstream marks a processor that did not run because a processor
	// feeding it ended the pass in Error.
	CodeUpstream ErrorCode = "UPSTREAM_ERROR"

	// CodeReentrant marks an evaluation requested while one is running.
	CodeReentrant ErrorCode = "REENTRANT_EVALUATION"
)

// EvalError describes one processor failure within a pass.
type EvalError struct {
	Code      ErrorCode
	Processor string
	Op        string
	Message   string
	Cause     error
}

func (e *EvalError) Error() string {
	msg := string(e.Code)
	if e.Processor != "" {
		msg += " " + e.Processor
	}
	if e.Op != "" {
		msg += "." + e.Op
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *EvalError) Unwrap() error { return e.Cause }

func codeOf(err error) (ErrorCode, bool) {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return "", false
}

// IsEvaluationError reports whether err is an evaluation, resource, or
// upstream failure.
func IsEvaluationError(err error) bool {
	code, ok := codeOf(err)
	return ok && (code == CodeEvaluation || code == CodeResource || code == CodeUpstream)
}

// IsConfigurationError reports whether err is a configuration failure.
func IsConfigurationError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == CodeConfiguration
}

// IsReentrantError reports whether err rejected a nested evaluation.
func IsReentrantError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == CodeReentrant
}

// panicError wraps a recovered panic value.
type panicError struct {
	value any
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// ErrorReporter receives every contained failure.
type ErrorReporter interface {
	Report(err *EvalError)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(err *EvalError)

func (f ReporterFunc) Report(err *EvalError) { f(err) }

// LogReporter logs failures. Upstream failures are logged at warn level
// since the root cause is reported separately.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(err *EvalError) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelError
	if err.Code == CodeUpstream {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "processor failed",
		"code", string(err.Code),
		"processor", err.Processor,
		"op", err.Op,
		"message", err.Message,
		"error", err.Cause,
	)
}
