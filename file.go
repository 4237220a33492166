package decryptfs

import (
	"errors"
	"io"
	"iter"
	"sync"

	"github.com/absfs/absfs"
)

// File is one open container: the base file positioned after the header and
// the cipher state that decrypts it. A File is owned by a single request;
// Close releases the base file and must be called on every path.
type File struct {
	name      string
	base      absfs.File
	reader    *Reader
	chunkSize int
	metrics   *Metrics

	offset    int64 // plaintext bytes returned so far
	closeOnce sync.Once
	closeErr  error
}

func newFile(name string, base absfs.File, reader *Reader, chunkSize int, metrics *Metrics) *File {
	return &File{
		name:      name,
		base:      base,
		reader:    reader,
		chunkSize: chunkSize,
		metrics:   metrics,
	}
}

// Name returns the container name the file was opened with
func (f *File) Name() string {
	return f.name
}

// Offset returns how many plaintext bytes have been read
func (f *File) Offset() int64 {
	return f.offset
}

// Read decrypts up to len(p) bytes. Source failures are reported as *IOError
// and cipher failures as *EncryptionError; io.EOF is returned unchanged.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.reader.Read(p)
	offset := f.offset
	f.offset += int64(n)
	f.metrics.AddDecrypted(n)

	switch {
	case err == nil || err == io.EOF:
		return n, err
	case errors.Is(err, ErrKeystreamExhausted):
		return n, NewEncryptionError("decrypt", f.name, err)
	default:
		return n, NewIOError("read", f.name, offset+int64(n), err)
	}
}

// Chunks returns the plaintext as a single-use sequence of chunks of at most
// the configured chunk size. See Chunks for the error contract.
func (f *File) Chunks() iter.Seq2[[]byte, error] {
	return Chunks(f, f.chunkSize)
}

// Close closes the base file. It is safe to call more than once.
func (f *File) Close() error {
	f.closeOnce.Do(func() {
		if err := f.base.Close(); err != nil {
			f.closeErr = NewIOError("close", f.name, -1, err)
		}
	})
	return f.closeErr
}
