package decryptfs

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultChunkSize is the default read size of the chunk stream (64 KB)
	DefaultChunkSize = 64 * 1024

	// MinChunkSize is the minimum allowed chunk size (64 bytes, for testing)
	MinChunkSize = 64

	// MaxChunkSize is the maximum allowed chunk size (16 MB)
	MaxChunkSize = 16 * 1024 * 1024

	// DefaultMaxPasswordLength bounds the credential accepted from a request
	DefaultMaxPasswordLength = 2048

	// DefaultShutdownTimeout is how long in-flight responses may drain
	DefaultShutdownTimeout = 30 * time.Second
)

// ParallelConfig controls the key derivation worker pool
type ParallelConfig struct {
	// MaxWorkers is the number of derivations that may run at once.
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int `yaml:"max_workers" validate:"min=0,max=1024"`

	// QueueSize is the number of requests that may wait for a free worker
	// before Derive blocks on submission. If 0, defaults to 4*MaxWorkers
	QueueSize int `yaml:"queue_size" validate:"min=0,max=65536"`
}

// DefaultParallelConfig returns the default key derivation pool configuration
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		MaxWorkers: runtime.NumCPU(),
	}
}

func (p ParallelConfig) workers() int {
	if p.MaxWorkers <= 0 {
		return runtime.NumCPU()
	}
	return p.MaxWorkers
}

func (p ParallelConfig) queueSize() int {
	if p.QueueSize <= 0 {
		return 4 * p.workers()
	}
	return p.QueueSize
}

// Config contains configuration for the decrypting file server
type Config struct {
	// ListenOn is the path of the Unix socket to serve on
	ListenOn string `yaml:"listen_on" validate:"required"`

	// Root is the directory containers are served from
	Root string `yaml:"root" validate:"required"`

	// MetricsAddr is an optional TCP address for the Prometheus endpoint
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`

	// ChunkSize is the read size used when streaming plaintext
	ChunkSize int `yaml:"chunk_size" validate:"min=64,max=16777216"`

	// MaxPasswordLength bounds the credential taken from a request
	MaxPasswordLength int `yaml:"max_password_length" validate:"min=1"`

	// KDF configures the key derivation worker pool
	KDF ParallelConfig `yaml:"kdf"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
}

// DefaultConfig returns a configuration with every optional field set.
// ListenOn has no default.
func DefaultConfig() *Config {
	return &Config{
		Root:              ".",
		ChunkSize:         DefaultChunkSize,
		MaxPasswordLength: DefaultMaxPasswordLength,
		KDF:               DefaultParallelConfig(),
		LogLevel:          "info",
		ShutdownTimeout:   DefaultShutdownTimeout,
	}
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError turns validator output into a ValidationError
// naming the first offending field and listing the rest.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error(), Err: err}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}

	return &ValidationError{
		Field:   verrs[0].Field(),
		Value:   verrs[0].Value(),
		Message: strings.Join(msgs, "; "),
		Err:     err,
	}
}
