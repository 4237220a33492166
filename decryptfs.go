package decryptfs

import (
	"context"
	"fmt"

	"github.com/absfs/absfs"
)

// Opener opens stored containers by slash-separated name. Any
// absfs.FileSystem satisfies it.
type Opener interface {
	Open(name string) (absfs.File, error)
}

// DecryptFS serves decrypted views of the containers stored in a base
// filesystem. It is safe for concurrent use; every Open gets its own header,
// key material and cipher state.
type DecryptFS struct {
	base      Opener
	config    *Config
	deriver   *Deriver
	chunkSize int
	metrics   *Metrics
}

// New creates a DecryptFS over base. metrics may be nil.
func New(base Opener, config *Config, metrics *Metrics) (*DecryptFS, error) {
	if base == nil {
		return nil, ErrNilOpener
	}
	if config == nil {
		return nil, ErrNilConfig
	}

	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if err := ValidateChunkSize(chunkSize); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &DecryptFS{
		base:      base,
		config:    config,
		deriver:   NewDeriver(config.KDF, metrics),
		chunkSize: chunkSize,
		metrics:   metrics,
	}, nil
}

// Open opens the container name and prepares it for decryption with
// password. The key derivation runs on the worker pool and is abandoned if
// ctx is cancelled. Header failures are returned as *ContainerError wrapping
// ErrTruncatedInput or ErrMalformedContainer; no plaintext is produced.
func (e *DecryptFS) Open(ctx context.Context, name string, password []byte) (*File, error) {
	base, err := e.base.Open("/" + name)
	if err != nil {
		return nil, err
	}

	reader, err := Decrypt(ctx, base, password, e.deriver)
	if err != nil {
		base.Close()
		if IsUnavailable(err) {
			return nil, &ContainerError{Path: name, Err: err}
		}
		return nil, fmt.Errorf("failed to open container %s: %w", name, err)
	}

	return newFile(name, base, reader, e.chunkSize, e.metrics), nil
}

// Close stops the key derivation pool
func (e *DecryptFS) Close() error {
	e.deriver.Close()
	return nil
}
