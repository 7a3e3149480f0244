package errors

import (
	stderrors "errors"
	"fmt"
)

/*
ErrConfiguration is the sentinel every ConfigurationError matches.
*/
var ErrConfiguration = stderrors.New("configuration error")

/*
ConfigurationError is fatal and raised before any network call: a missing
API key, an unsupported provider name or settings that fail validation. It
is never retried.
*/
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

/*
MissingDependencyError is returned by lazy capability probes when an
optional runtime a provider needs is not available. It names the
dependency and how to install it.
*/
type MissingDependencyError struct {
	Dependency string
	Install    string
	Err        error
}

func (e *MissingDependencyError) Error() string {
	msg := fmt.Sprintf("missing dependency %s", e.Dependency)

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	if e.Install != "" {
		msg += " (" + e.Install + ")"
	}

	return msg
}

func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *MissingDependencyError) Unwrap() error {
	return e.Err
}
