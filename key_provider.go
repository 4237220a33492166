package decryptfs

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"runtime"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KDFIterations is the fixed PBKDF2 round count of the container format
	KDFIterations = 10000

	// KeySize is the ChaCha20 key length
	KeySize = chacha20.KeySize

	// CounterSize is the length of the little-endian starting block counter
	CounterSize = 4

	// NonceSize is the ChaCha20 (IETF) nonce length
	NonceSize = chacha20.NonceSize

	// MaterialSize is the PBKDF2 output length: key, counter, nonce
	MaterialSize = KeySize + CounterSize + NonceSize
)

// KeyMaterial is the cipher state seed derived from a password and salt.
// It is never persisted or logged.
type KeyMaterial struct {
	Key     [KeySize]byte
	Counter uint32 // Starting ChaCha20 block position
	Nonce   [NonceSize]byte
}

// DeriveKeyMaterial runs PBKDF2-HMAC-SHA256 over password and salt and
// splits the 48 byte output as key (32), little-endian counter (4) and
// nonce (12). It is deterministic and CPU bound; servers should call it
// through a Deriver.
func DeriveKeyMaterial(password []byte, salt [SaltSize]byte) KeyMaterial {
	out := pbkdf2.Key(password, salt[:], KDFIterations, MaterialSize, sha256.New)
	if len(out) != MaterialSize {
		panic(fmt.Sprintf("decryptfs: pbkdf2 returned %d bytes, want %d", len(out), MaterialSize))
	}
	defer zeroize(out)

	return splitMaterial(out)
}

func splitMaterial(out []byte) KeyMaterial {
	var m KeyMaterial
	copy(m.Key[:], out[:KeySize])
	m.Counter = binary.LittleEndian.Uint32(out[KeySize : KeySize+CounterSize])
	copy(m.Nonce[:], out[KeySize+CounterSize:])
	return m
}

// NewCipher returns a stream cipher positioned at the material's counter
func (m *KeyMaterial) NewCipher() (*StreamCipher, error) {
	return NewStreamCipher(m.Key[:], m.Nonce[:], m.Counter)
}

// Zero overwrites the material
func (m *KeyMaterial) Zero() {
	zeroize(m.Key[:])
	zeroize(m.Nonce[:])
	m.Counter = 0
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
