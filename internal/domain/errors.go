package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a failed call to an upstream service or download source
type NetworkError struct {
	Op        string // Operation that failed (e.g., "download", "quote", "candles")
	Err       error  // Underlying error
	Retriable bool   // Whether a later attempt may succeed
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrInvalidInput marks a caller contract violation. It is the only error class
	// that is surfaced to callers as a rejected request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidInstrumentKey is returned when a domestic key is not "<SEGMENT>|<ID>".
	ErrInvalidInstrumentKey = fmt.Errorf("%w: malformed instrument key", ErrInvalidInput)

	// ErrInvalidResolution is returned for resolution tokens outside 1, 5, 15, 30, 60, D.
	ErrInvalidResolution = fmt.Errorf("%w: unsupported resolution", ErrInvalidInput)

	// ErrInvalidSymbol is returned when a symbol is empty after normalization.
	ErrInvalidSymbol = fmt.Errorf("%w: empty symbol", ErrInvalidInput)

	// ErrMissingCredentials is logged when an upstream credential is unset.
	ErrMissingCredentials = errors.New("upstream credential not configured")

	// ErrRegistryNotLoaded is returned when no instrument table could be loaded at all.
	ErrRegistryNotLoaded = errors.New("instrument registry not loaded")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

// IsInvalidInput reports whether err is a caller contract violation.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
