package decryptfs

import (
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// BlockSize is the ChaCha20 keystream block size
const BlockSize = 64

// keystreamLimit is the number of keystream bytes a 32-bit block counter
// can address from position 0.
const keystreamLimit = uint64(1<<32) * BlockSize

// StreamCipher applies a ChaCha20 keystream (256-bit key, 96-bit nonce,
// 32-bit block counter) to successive buffers. Applying it to consecutive
// buffers gives the same result as applying it once to their concatenation.
//
// A StreamCipher belongs to a single reader and is not safe for concurrent use.
type StreamCipher struct {
	c         *chacha20.Cipher
	remaining uint64 // keystream bytes left before the counter wraps
}

// NewStreamCipher creates a ChaCha20 cipher and seeks it to block counter.
func NewStreamCipher(key, nonce []byte, counter uint32) (*StreamCipher, error) {
	if err := ValidateKey(key, KeySize); err != nil {
		return nil, err
	}
	if err := ValidateNonce(nonce); err != nil {
		return nil, err
	}

	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20 cipher: %w", err)
	}
	c.SetCounter(counter)

	return &StreamCipher{
		c:         c,
		remaining: keystreamLimit - uint64(counter)*BlockSize,
	}, nil
}

// XORKeyStream transforms buf in place with the next len(buf) keystream
// bytes. If buf would run the block counter past its last block, buf is
// left untouched and ErrKeystreamExhausted is returned; the cipher is then
// unusable.
func (s *StreamCipher) XORKeyStream(buf []byte) error {
	if uint64(len(buf)) > s.remaining {
		s.remaining = 0
		return ErrKeystreamExhausted
	}
	s.c.XORKeyStream(buf, buf)
	s.remaining -= uint64(len(buf))
	return nil
}

// Remaining returns how many more bytes the cipher can transform
func (s *StreamCipher) Remaining() uint64 {
	return s.remaining
}
