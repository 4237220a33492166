// Command decryptfs-cat decrypts a container to standard output.
//
// The password is taken from DECRYPTFS_PASSWORD or, when unset, read from
// the terminal without echo.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/absfs/decryptfs"
)

// PasswordEnvVar names the environment variable holding the password
const PasswordEnvVar = "DECRYPTFS_PASSWORD"

func main() {
	chunkSize := flag.Int("chunk", decryptfs.DefaultChunkSize, "Read size in bytes")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-chunk n] <container>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *chunkSize); err != nil {
		fmt.Fprintf(os.Stderr, "decryptfs-cat: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, chunkSize int) error {
	if err := decryptfs.ValidateChunkSize(chunkSize); err != nil {
		return err
	}

	password, err := getPassword("Password: ")
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := decryptfs.Decrypt(context.Background(), f, password, nil)
	zeroBytes(password)
	if err != nil {
		return err
	}

	out := bufio.NewWriterSize(os.Stdout, chunkSize)
	for chunk, err := range decryptfs.Chunks(r, chunkSize) {
		if err != nil {
			out.Flush()
			return err
		}
		if _, err := out.Write(chunk); err != nil {
			return err
		}
	}
	return out.Flush()
}

func getPassword(prompt string) ([]byte, error) {
	if env, ok := os.LookupEnv(PasswordEnvVar); ok {
		return []byte(env), nil
	}

	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		// Standard input is piped; prompt on the controlling terminal
		tty, err := os.Open("/dev/tty")
		if err != nil {
			return nil, errors.New("no terminal to read the password from; set " + PasswordEnvVar)
		}
		defer tty.Close()
		fd = int(tty.Fd())
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
