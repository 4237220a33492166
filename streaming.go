package decryptfs

import (
	"context"
	"io"
	"iter"
	"sync/atomic"
)

// maxConsecutiveEmptyReads bounds how often a source may return (0, nil)
// before Chunks gives up with io.ErrNoProgress.
const maxConsecutiveEmptyReads = 100

// Reader decrypts the ciphertext of a container as it is read. Exactly the
// bytes returned by each read of the source are transformed, once, in order.
type Reader struct {
	src    io.Reader
	cipher *StreamCipher
	err    error // sticky cipher failure
}

// NewReader returns a Reader that decrypts src, which must be positioned on
// the first ciphertext byte, with cipher.
func NewReader(src io.Reader, cipher *StreamCipher) *Reader {
	return &Reader{src: src, cipher: cipher}
}

// Read reads up to len(p) ciphertext bytes from the source and decrypts
// them in place. Errors from the source, io.EOF included, are returned
// unchanged alongside the bytes that came with them.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	n, err := r.src.Read(p)
	if n > 0 {
		if cerr := r.cipher.XORKeyStream(p[:n]); cerr != nil {
			r.err = cerr
			return 0, cerr
		}
	}
	return n, err
}

// Chunks returns a single-use sequence of the bytes read from r, one item
// per successful read of at most size bytes. The sequence ends silently at
// io.EOF; any other read error is yielded as the final item. A second
// iteration yields nothing.
//
// The yielded slice is reused by the next read and is only valid until
// the loop body returns.
func Chunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var used atomic.Bool
	return func(yield func([]byte, error) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}

		buf := make([]byte, size)
		empty := 0
		for {
			n, err := r.Read(buf)
			if n > 0 {
				empty = 0
				if !yield(buf[:n], nil) {
					return
				}
			}

			switch {
			case err == io.EOF:
				return
			case err != nil:
				yield(nil, err)
				return
			case n == 0:
				empty++
				if empty >= maxConsecutiveEmptyReads {
					yield(nil, io.ErrNoProgress)
					return
				}
			}
		}
	}
}

// Decrypt parses the container header from src, derives the key material
// for password and returns a Reader over the remaining ciphertext.
//
// If d is nil the derivation runs on the calling goroutine. Header errors
// (ErrTruncatedInput, ErrMalformedContainer) are returned before any
// plaintext is produced.
func Decrypt(ctx context.Context, src io.Reader, password []byte, d *Deriver) (*Reader, error) {
	header, err := ReadHeader(src)
	if err != nil {
		return nil, err
	}

	var material KeyMaterial
	if d != nil {
		material, err = d.Derive(ctx, password, header.Salt)
		if err != nil {
			return nil, err
		}
	} else {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		material = DeriveKeyMaterial(password, header.Salt)
	}
	defer material.Zero()

	cipher, err := material.NewCipher()
	if err != nil {
		return nil, NewEncryptionError("decrypt", "", err)
	}

	return NewReader(src, cipher), nil
}
