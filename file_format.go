package decryptfs

import (
	"errors"
	"fmt"
	"io"
)

const (
	// MagicSize is the length of the magic tag
	MagicSize = 8

	// SaltSize is the length of the key derivation salt
	SaltSize = 8

	// HeaderSize is the fixed size of the container header:
	// 8 bytes (magic) + 8 bytes (salt) = 16 bytes
	HeaderSize = MagicSize + SaltSize
)

// Magic identifies encrypted containers (ASCII: "Salted__")
var Magic = [MagicSize]byte{'S', 'a', 'l', 't', 'e', 'd', '_', '_'}

// ContainerHeader represents the header of an encrypted container
//
// Container Layout:
// ┌─────────────────────────────────────┐
// │ Magic "Salted__" (8 bytes)          │
// ├─────────────────────────────────────┤
// │ Salt (8 bytes)                      │
// ├─────────────────────────────────────┤
// │ Ciphertext (to end of file)         │
// └─────────────────────────────────────┘
type ContainerHeader struct {
	Magic [MagicSize]byte // Magic bytes to identify encrypted containers
	Salt  [SaltSize]byte  // Salt for key derivation
}

// ReadHeader reads and validates a container header from r.
// On success exactly HeaderSize bytes have been consumed.
func ReadHeader(r io.Reader) (*ContainerHeader, error) {
	h := &ContainerHeader{}
	if _, err := h.ReadFrom(r); err != nil {
		return nil, err
	}
	return h, nil
}

// ReadFrom reads the header from the given reader. A magic mismatch fails
// with ErrMalformedContainer after consuming only the magic bytes; a source
// that ends early fails with ErrTruncatedInput.
func (h *ContainerHeader) ReadFrom(r io.Reader) (int64, error) {
	var totalRead int64

	// Read magic bytes
	n, err := io.ReadFull(r, h.Magic[:])
	totalRead += int64(n)
	if err != nil {
		return totalRead, headerReadError("magic", err)
	}

	if err := h.Validate(); err != nil {
		return totalRead, err
	}

	// Read salt
	n, err = io.ReadFull(r, h.Salt[:])
	totalRead += int64(n)
	if err != nil {
		return totalRead, headerReadError("salt", err)
	}

	return totalRead, nil
}

// Validate checks if the header is valid
func (h *ContainerHeader) Validate() error {
	if h.Magic != Magic {
		return ErrMalformedContainer
	}
	return nil
}

func headerReadError(field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("failed to read %s: %w", field, ErrTruncatedInput)
	}
	return fmt.Errorf("failed to read %s: %w", field, err)
}
