// Command pzssh is a key tool for the pzssh primitive suite: it generates
// ECDSA host keys, signs and verifies files, hashes them, and seals or opens
// them with ChaCha20-Poly1305.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Verbose []bool `short:"v" long:"verbose" description:"print extra detail to stderr"`
}

func newParser(opts *Options, stdout, stderr io.Writer) *flags.Parser {
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	base := command{opts: opts, stdout: stdout, stderr: stderr}

	parser.AddCommand("keygen", "generate a key pair", "Generate an ECDSA key pair and write both halves as base64 files.", &KeygenCommand{command: base})
	parser.AddCommand("peerid", "print the PeerID of a public key", "Print SHA-256 of a nistp256 public key in hex.", &PeerIDCommand{command: base})
	parser.AddCommand("sign", "sign a file", "Sign a file and print the base64 mpint signature.", &SignCommand{command: base})
	parser.AddCommand("verify", "verify a signature", "Verify a base64 signature over a file.", &VerifyCommand{command: base})
	parser.AddCommand("digest", "hash files", "Print the SHA-256 digest of each file.", &DigestCommand{command: base})
	parser.AddCommand("seal", "encrypt a file", "Encrypt and authenticate a file with ChaCha20-Poly1305.", &SealCommand{command: base})
	parser.AddCommand("open", "decrypt a file", "Verify and decrypt a file produced by seal.", &OpenCommand{command: base})
	return parser
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts Options
	parser := newParser(&opts, stdout, stderr)
	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, err)
			return 0
		}
		fmt.Fprintf(stderr, "pzssh: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
