package decryptfs

import (
	"errors"
	"fmt"
)

// Error types represent different categories of errors

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EncryptionError represents a failure of the cipher itself, as opposed to
// the byte source it reads from
type EncryptionError struct {
	Operation string // "derive" or "decrypt"
	Path      string // File path, if applicable
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *EncryptionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error: %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Operation, e.Message)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// IOError represents a read failure of the underlying byte source after the
// container header has been consumed
type IOError struct {
	Operation string // "read", "open", "close"
	Path      string // File path
	Offset    int64  // Plaintext offset, or -1 when unknown
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" && e.Offset >= 0 {
		return fmt.Sprintf("io error: %s %s at offset %d: %s", e.Operation, e.Path, e.Offset, e.Message)
	} else if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ContainerError reports a container whose header could not be parsed.
// Err is ErrTruncatedInput, ErrMalformedContainer or an I/O failure.
type ContainerError struct {
	Path string
	Err  error
}

func (e *ContainerError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("container error: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("container error: %v", e.Err)
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}

// Sentinel errors
var (
	ErrTruncatedInput     = errors.New("truncated input: source ended inside the container header")
	ErrMalformedContainer = errors.New("malformed container: magic tag mismatch")
	ErrKeystreamExhausted = errors.New("keystream exhausted: block counter would wrap")
	ErrNilConfig          = errors.New("config cannot be nil")
	ErrNilOpener          = errors.New("opener cannot be nil")
	ErrDeriverClosed      = errors.New("key derivation pool is closed")
	ErrInvalidPath        = errors.New("invalid request path")
	ErrMissingCredential  = errors.New("missing authorization header")
	ErrInvalidCredential  = errors.New("unsupported authorization scheme")
	ErrCredentialTooLong  = errors.New("credential exceeds maximum length")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewEncryptionError creates a new encryption error
func NewEncryptionError(operation, path string, err error) error {
	return &EncryptionError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewIOError creates a new I/O error at the given plaintext offset
func NewIOError(operation, path string, offset int64, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Offset:    offset,
		Message:   err.Error(),
		Err:       err,
	}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsEncryptionError checks if an error is an encryption error
func IsEncryptionError(err error) bool {
	var ee *EncryptionError
	return errors.As(err, &ee)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsContainerError checks if an error is a container header error
func IsContainerError(err error) bool {
	var ce *ContainerError
	return errors.As(err, &ce)
}

// IsUnavailable reports whether err means the container cannot be served at
// all: it is too short or does not carry the expected magic tag.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrTruncatedInput) || errors.Is(err, ErrMalformedContainer)
}
