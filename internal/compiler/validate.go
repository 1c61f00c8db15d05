package compiler

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/procnet/internal/env"
	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/serial"
)

// Validation error codes (E200-E299)
const (
	ErrUnsupportedVersion  = "E200" // version other than serial.Version
	ErrEmptyClass          = "E201" // processor without a class
	ErrUnknownClass        = "E202" // class not in the registry
	ErrDuplicateProcessor  = "E203" // identifier used twice
	ErrInvalidIdentifier   = "E204" // empty or dotted identifier
	ErrInvalidPortPath     = "E205" // connection end is not "processor.port"
	ErrUnknownProcessorRef = "E206" // connection or link names a missing processor
	ErrDuplicateConnection = "E207" // same connection listed twice
	ErrSelfConnection      = "E208" // processor connected to itself
	ErrInvalidPropertyPath = "E209" // link end or property key is malformed
	ErrCyclicConnection    = "E210" // connections form a cycle
	ErrMissingWriter       = "E211" // an export target has no registered writer
)

// ValidationError is one problem found in a network document.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks doc without building it. reg may be nil, in which case
// classes are not looked up. All problems are returned, in document order.
func Validate(doc *serial.NetworkDoc, reg *processor.Registry) []ValidationError {
	var errs []ValidationError

	if doc.Version != serial.Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %q, want %q", doc.Version, serial.Version),
			Code:    ErrUnsupportedVersion,
		})
	}

	ids := make(map[string]bool, len(doc.Processors))
	for i, p := range doc.Processors {
		field := fmt.Sprintf("processors[%d]", i)

		if p.ID == "" || strings.Contains(p.ID, ".") {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("invalid identifier %q", p.ID),
				Code:    ErrInvalidIdentifier,
			})
		}
		if ids[p.ID] {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate processor %q", p.ID),
				Code:    ErrDuplicateProcessor,
			})
		}
		ids[p.ID] = true

		switch {
		case strings.TrimSpace(p.Class) == "":
			errs = append(errs, ValidationError{
				Field:   field + ".class",
				Message: "class is required",
				Code:    ErrEmptyClass,
			})
		case reg != nil:
			if _, ok := reg.Lookup(p.Class); !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".class",
					Message: fmt.Sprintf("unknown class %q", p.Class),
					Code:    ErrUnknownClass,
				})
			}
		}

		for _, key := range sortedKeys(p.Properties) {
			if !validPath(key, 1) {
				errs = append(errs, ValidationError{
					Field:   field + ".properties",
					Message: fmt.Sprintf("invalid property key %q", key),
					Code:    ErrInvalidPropertyPath,
				})
			}
		}
	}

	seen := make(map[serial.ConnectionDoc]bool, len(doc.Connections))
	for i, c := range doc.Connections {
		field := fmt.Sprintf("connections[%d]", i)
		ok := true
		for _, end := range []struct{ name, path string }{{"from", c.From}, {"to", c.To}} {
			if !validPortPath(end.path) {
				errs = append(errs, ValidationError{
					Field:   field + "." + end.name,
					Message: fmt.Sprintf("expected \"processor.port\", got %q", end.path),
					Code:    ErrInvalidPortPath,
				})
				ok = false
				continue
			}
			if owner := ownerOf(end.path); !ids[owner] {
				errs = append(errs, ValidationError{
					Field:   field + "." + end.name,
					Message: fmt.Sprintf("unknown processor %q", owner),
					Code:    ErrUnknownProcessorRef,
				})
				ok = false
			}
		}
		if !ok {
			continue
		}
		if ownerOf(c.From) == ownerOf(c.To) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s is connected to itself", ownerOf(c.From)),
				Code:    ErrSelfConnection,
			})
		}
		if seen[c] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate connection %s -> %s", c.From, c.To),
				Code:    ErrDuplicateConnection,
			})
		}
		seen[c] = true
	}

	for i, l := range doc.Links {
		field := fmt.Sprintf("links[%d]", i)
		for _, end := range []struct{ name, path string }{{"source", l.Source}, {"target", l.Target}} {
			if !validPath(end.path, 2) {
				errs = append(errs, ValidationError{
					Field:   field + "." + end.name,
					Message: fmt.Sprintf("expected \"processor.property\", got %q", end.path),
					Code:    ErrInvalidPropertyPath,
				})
				continue
			}
			if owner := ownerOf(end.path); !ids[owner] {
				errs = append(errs, ValidationError{
					Field:   field + "." + end.name,
					Message: fmt.Sprintf("unknown processor %q", owner),
					Code:    ErrUnknownProcessorRef,
				})
			}
		}
	}

	for _, w := range AnalyzeCycles(doc) {
		if w.Level != LevelError {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   "connections",
			Message: w.Message,
			Code:    ErrCyclicConnection,
		})
	}
	return errs
}

// validPath reports whether path has at least min non-empty dotted segments.
// CheckWriters builds doc against nc and reports export targets that
// no writer in nc.Writers can produce. Run it after Validate passes; other
// build failures are left to the caller.
func CheckWriters(doc *serial.NetworkDoc, reg *processor.Registry, nc *env.Context) []ValidationError {
	_, err := serial.Build(doc, reg, nc)
	var ce *network.ConfigError
	if !errors.As(err, &ce) || ce.Code != network.CodeMissingWriter {
		return nil
	}
	return []ValidationError{{Field: ce.Path, Message: ce.Message, Code: ErrMissingWriter}}
}

func validPath(path string, min int) bool {
	parts := strings.Split(path, ".")
	if len(parts) < min {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

func validPortPath(path string) bool {
	return validPath(path, 2) && strings.Count(path, ".") == 1
}

func ownerOf(path string) string {
	owner, _, _ := strings.Cut(path, ".")
	return owner
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
