// Package errs defines the error taxonomy shared by every ue4-docker command.
//
// Four kinds of failure are distinguished so the CLI can report them
// consistently: invalid user input (Config), a host or daemon that cannot
// satisfy the request (Environment), a container stage that exited nonzero
// (Stage), and a resource the run could not acquire (Resource).
package errs

import (
	"errors"
	"fmt"
)

// ConfigError is returned when user supplied options are invalid or conflict.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// EnvironmentError is returned when the host or container engine is missing
// or incompatible.
type EnvironmentError struct {
	Msg string
	Err error
}

func (e *EnvironmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// Environment wraps err as an EnvironmentError.
func Environment(msg string, err error) error {
	return &EnvironmentError{Msg: msg, Err: err}
}

// StageFailure is returned when a build or pull of a stage image fails.
type StageFailure struct {
	Stage string
	Image string
	Err   error
}

func (e *StageFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to build image %q (%s): %v", e.Image, e.Stage, e.Err)
	}
	return fmt.Sprintf("failed to build image %q (%s)", e.Image, e.Stage)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// ResourceError is returned when an auxiliary resource such as the
// credential endpoint cannot be acquired.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("acquiring %s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Kind returns a short label for the error category, or "error" when err is
// not part of the taxonomy.
func Kind(err error) string {
	var (
		ce *ConfigError
		ee *EnvironmentError
		sf *StageFailure
		re *ResourceError
	)
	switch {
	case errors.As(err, &ce):
		return "configuration error"
	case errors.As(err, &ee):
		return "environment error"
	case errors.As(err, &sf):
		return "stage failure"
	case errors.As(err, &re):
		return "resource error"
	default:
		return "error"
	}
}

// IsConfig reports whether err is, or wraps, a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsEnvironment reports whether err is, or wraps, an EnvironmentError.
func IsEnvironment(err error) bool {
	var ee *EnvironmentError
	return errors.As(err, &ee)
}

// IsStage reports whether err is, or wraps, a StageFailure.
func IsStage(err error) bool {
	var sf *StageFailure
	return errors.As(err, &sf)
}

// IsResource reports whether err is, or wraps, a ResourceError.
func IsResource(err error) bool {
	var re *ResourceError
	return errors.As(err, &re)
}
