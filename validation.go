package decryptfs

import (
	"fmt"
	"io/fs"
	"strings"
)

// Input validation helpers

// ValidateKey checks if a key has the correct size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ValidationError{
			Field:   "key",
			Message: "key cannot be nil",
		}
	}

	if len(key) != expectedSize {
		return &ValidationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, expected %d bytes", len(key), expectedSize),
		}
	}

	return nil
}

// ValidateNonce checks if a nonce has the ChaCha20 nonce size
func ValidateNonce(nonce []byte) error {
	if nonce == nil {
		return &ValidationError{
			Field:   "nonce",
			Message: "nonce cannot be nil",
		}
	}

	if len(nonce) != NonceSize {
		return &ValidationError{
			Field:   "nonce",
			Value:   len(nonce),
			Message: fmt.Sprintf("invalid nonce size: got %d bytes, expected %d bytes", len(nonce), NonceSize),
		}
	}

	return nil
}

// ValidateChunkSize checks that a chunk size is within bounds
func ValidateChunkSize(size int) error {
	if size < MinChunkSize || size > MaxChunkSize {
		return &ValidationError{
			Field:   "chunk_size",
			Value:   size,
			Message: fmt.Sprintf("chunk size %d outside range [%d, %d]", size, MinChunkSize, MaxChunkSize),
		}
	}
	return nil
}

// CleanRequestPath maps a URL path such as "/docs/a.bin" to the container
// name "docs/a.bin". Leading slashes are dropped. Repeated slashes, a
// trailing slash and "." components after the first are ignored; a leading
// "." component, any ".." component, a backslash or a NUL byte is rejected
// with ErrInvalidPath, as is a path that names nothing.
func CleanRequestPath(urlPath string) (string, error) {
	if strings.ContainsAny(urlPath, "\\\x00") {
		return "", ErrInvalidPath
	}

	parts := strings.Split(strings.TrimLeft(urlPath, "/"), "/")
	names := make([]string, 0, len(parts))
	for i, part := range parts {
		switch part {
		case "":
			continue
		case ".":
			if i == 0 {
				return "", ErrInvalidPath
			}
			continue
		case "..":
			return "", ErrInvalidPath
		}
		names = append(names, part)
	}
	if len(names) == 0 {
		return "", ErrInvalidPath
	}

	name := strings.Join(names, "/")
	if !fs.ValidPath(name) {
		return "", ErrInvalidPath
	}
	return name, nil
}

// BasicCredential extracts the password from an Authorization header value
// of the form "Basic <credential>". The scheme is matched case-insensitively
// and the credential bytes are returned as-is, without base64 decoding.
func BasicCredential(header string, maxLen int) ([]byte, error) {
	const scheme = "basic "

	if header == "" {
		return nil, ErrMissingCredential
	}
	if len(header) < len(scheme) || !strings.EqualFold(header[:len(scheme)-1], scheme[:len(scheme)-1]) || header[len(scheme)-1] != ' ' {
		return nil, ErrInvalidCredential
	}

	credential := header[len(scheme):]
	if maxLen > 0 && len(credential) > maxLen {
		return nil, ErrCredentialTooLong
	}
	return []byte(credential), nil
}
