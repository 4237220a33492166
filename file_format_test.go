package decryptfs

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestReadHeader(t *testing.T) {
	salt := [SaltSize]byte{1, 2, 3, 4, 5, 6, 7, 8}

	tests := []struct {
		name     string
		input    []byte
		wantErr  error
		consumed int
	}{
		{
			name:     "valid header with ciphertext",
			input:    append([]byte("Salted__\x01\x02\x03\x04\x05\x06\x07\x08"), "ciphertext"...),
			consumed: HeaderSize,
		},
		{
			name:     "valid header without ciphertext",
			input:    []byte("Salted__\x01\x02\x03\x04\x05\x06\x07\x08"),
			consumed: HeaderSize,
		},
		{
			name:     "empty source",
			input:    nil,
			wantErr:  ErrTruncatedInput,
			consumed: 0,
		},
		{
			name:     "partial magic",
			input:    []byte("Salt"),
			wantErr:  ErrTruncatedInput,
			consumed: 4,
		},
		{
			name:     "magic only",
			input:    []byte("Salted__"),
			wantErr:  ErrTruncatedInput,
			consumed: 8,
		},
		{
			name:     "ten bytes",
			input:    []byte("Salted__\x00\x00"),
			wantErr:  ErrTruncatedInput,
			consumed: 10,
		},
		{
			name:     "one byte short",
			input:    []byte("Salted__\x00\x00\x00\x00\x00\x00\x00"),
			wantErr:  ErrTruncatedInput,
			consumed: 15,
		},
		{
			name:     "wrong magic",
			input:    []byte("Openssl_\x01\x02\x03\x04\x05\x06\x07\x08rest"),
			wantErr:  ErrMalformedContainer,
			consumed: MagicSize,
		},
		{
			name:     "lowercase magic",
			input:    []byte("salted__\x01\x02\x03\x04\x05\x06\x07\x08"),
			wantErr:  ErrMalformedContainer,
			consumed: MagicSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bytes.NewReader(tt.input)
			h, err := ReadHeader(r)

			if consumed := len(tt.input) - r.Len(); consumed != tt.consumed {
				t.Errorf("consumed %d bytes, want %d", consumed, tt.consumed)
			}

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadHeader() error = %v, want %v", err, tt.wantErr)
				}
				if h != nil {
					t.Errorf("ReadHeader() returned a header alongside error %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ReadHeader() unexpected error: %v", err)
			}
			if h.Salt != salt {
				t.Errorf("salt = %x, want %x", h.Salt, salt)
			}
			if err := h.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestReadHeader_SourceError(t *testing.T) {
	errBoom := errors.New("disk on fire")

	_, err := ReadHeader(iotest.ErrReader(errBoom))
	if !errors.Is(err, errBoom) {
		t.Fatalf("ReadHeader() error = %v, want %v", err, errBoom)
	}
	if errors.Is(err, ErrTruncatedInput) {
		t.Errorf("a source failure must not be reported as truncation: %v", err)
	}
}

func TestReadHeader_OneByteReads(t *testing.T) {
	container := refContainer(t)

	h, err := ReadHeader(iotest.OneByteReader(bytes.NewReader(container)))
	if err != nil {
		t.Fatalf("ReadHeader() error: %v", err)
	}
	if h.Salt != [SaltSize]byte{} {
		t.Errorf("salt = %x, want zeros", h.Salt)
	}
}

func TestContainerHeader_ValidateBadMagic(t *testing.T) {
	h := &ContainerHeader{}
	if err := h.Validate(); !errors.Is(err, ErrMalformedContainer) {
		t.Errorf("Validate() = %v, want %v", err, ErrMalformedContainer)
	}
}

// Any input whose first eight bytes differ from the magic tag is rejected
// after reading exactly those eight bytes.
func TestReadHeader_BadMagicProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("bad magic is malformed and consumes eight bytes", prop.ForAll(
		func(magic []byte, rest []byte) bool {
			input := append(append([]byte(nil), magic...), rest...)
			r := bytes.NewReader(input)
			_, err := ReadHeader(r)
			return errors.Is(err, ErrMalformedContainer) && len(input)-r.Len() == MagicSize
		},
		gen.SliceOfN(MagicSize, gen.UInt8()).SuchThat(func(b []byte) bool {
			return !bytes.Equal(b, Magic[:])
		}),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("inputs shorter than a header are truncated", prop.ForAll(
		func(n int) bool {
			input := append(append([]byte(nil), Magic[:]...), make([]byte, SaltSize)...)[:n]
			_, err := ReadHeader(bytes.NewReader(input))
			return errors.Is(err, ErrTruncatedInput)
		},
		gen.IntRange(0, HeaderSize-1),
	))

	properties.TestingRun(t)
}
