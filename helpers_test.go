package decryptfs

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// Reference container produced by an independent RFC 8439 ChaCha20 and
// PBKDF2-HMAC-SHA256 implementation: password "secret", all-zero salt.
const (
	refPassword  = "secret"
	refPlaintext = "The quick brown fox jumps over the lazy dog.\n"

	refContainerHex = "53616c7465645f5f" + "0000000000000000" +
		"38c461b3d58dbdcf380b606a71f87d03e29a9243a058261884b9ae4a2e7cce48" +
		"5fa3e6d002c76c0caa69a6ec78"

	// PBKDF2 output for ("secret", zero salt)
	refMaterialHex = "d9ffdd45e36a196c1a246dd4d484beafcda53d4884ee4c659a09e38a5e62929b" +
		"6734ef2d" +
		"df97ccf3c4278192fc16c503"
	refCounter = 770651239

	// The reference ciphertext decrypted with password "wrong"
	refWrongPasswordHex = "cdf9b168dacba469d5c9e7bed4c77ecbb38a6a6957249f954dc64529c5200490" +
		"b4381997ecbf6d362c2cdae85c"
)

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func refContainer(t testing.TB) []byte {
	return mustHex(t, refContainerHex)
}

// sealContainer builds a container for plaintext. The keystream is applied
// in pieces of at most step bytes (step <= 0 means all at once), which
// exercises the same cipher continuity the reader relies on.
func sealContainer(t testing.TB, password []byte, salt [SaltSize]byte, plaintext []byte, step int) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write(salt[:])

	material := DeriveKeyMaterial(password, salt)
	cipher, err := material.NewCipher()
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	body := append([]byte(nil), plaintext...)
	if step <= 0 {
		step = len(body)
	}
	for off := 0; off < len(body); off += step {
		end := min(off+step, len(body))
		if err := cipher.XORKeyStream(body[off:end]); err != nil {
			t.Fatalf("failed to apply keystream: %v", err)
		}
	}

	buf.Write(body)
	return buf.Bytes()
}

// testConfig returns a config suited to tests: a small worker pool and the
// minimum chunk size so that short files span several chunks.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.ListenOn = "/tmp/decryptfs-test.sock"
	cfg.ChunkSize = MinChunkSize
	cfg.KDF = ParallelConfig{MaxWorkers: 2}
	return cfg
}
