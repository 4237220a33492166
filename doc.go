// Package decryptfs serves password-encrypted files over HTTP, decrypting
// each one on the fly with the password supplied by the request. Plaintext
// is never written to disk and never held in memory as a whole.
//
// # Overview
//
// A DecryptFS wraps any Opener (every absfs.FileSystem qualifies, and DirFS
// covers a host directory). Open reads the container header, derives the
// key material on a bounded worker pool and returns a File whose reads
// yield plaintext. Handler maps HTTP requests onto it and Server exposes the
// handler on a Unix socket.
//
// # Basic Usage
//
//	config := decryptfs.DefaultConfig()
//	fs, err := decryptfs.New(decryptfs.DirFS("/srv/vault"), config, nil)
//	if err != nil {
//	    panic(err)
//	}
//	defer fs.Close()
//
//	file, err := fs.Open(ctx, "reports/q3.pdf", []byte("password"))
//	if err != nil {
//	    panic(err)
//	}
//	defer file.Close()
//
//	for chunk, err := range file.Chunks() {
//	    if err != nil {
//	        panic(err)
//	    }
//	    os.Stdout.Write(chunk)
//	}
//
// # Container Format
//
// Containers use the following layout:
//   - Magic bytes (8 bytes): "Salted__"
//   - Salt (8 bytes): salt for key derivation
//   - Ciphertext (variable): ChaCha20 keystream XOR plaintext
//
// The key material is PBKDF2-HMAC-SHA256(password, salt, 10000 rounds, 48
// bytes), split as:
//   - Key (32 bytes)
//   - Starting block counter (4 bytes, little-endian)
//   - Nonce (12 bytes)
//
// # Security Considerations
//
// The format carries no authentication tag. A wrong password, or a
// tampered file, decrypts to garbage of the same length rather than failing.
// The password is only ever used as key material; it is not checked against
// anything.
//
// Only decryption is implemented.
package decryptfs
