package main

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/TheusHen/pzssh/pzssh/crypto"
	"github.com/TheusHen/pzssh/pzssh/crypto/ec"
	"github.com/TheusHen/pzssh/pzssh/crypto/ecdsa"
	"github.com/TheusHen/pzssh/pzssh/crypto/sha2"
	"github.com/TheusHen/pzssh/pzssh/identity"
)

var ErrBadSignature = errors.New("signature verification failed")

type command struct {
	opts   *Options
	stdout io.Writer
	stderr io.Writer
}

func (c command) verbosef(format string, args ...any) {
	if c.opts != nil && len(c.opts.Verbose) > 0 {
		fmt.Fprintf(c.stderr, format+"\n", args...)
	}
}

type CurveOption struct {
	Curve string `short:"c" long:"curve" default:"nistp256" choice:"nistp256" choice:"nistp384" choice:"nistp521" description:"curve name"`
}

func (o CurveOption) curve() (*ec.Curve, error) {
	return ec.CurveByName(o.Curve)
}

type KeygenCommand struct {
	command
	CurveOption
	Private string `long:"private" required:"true" description:"private key file"`
	Public  string `long:"public"  required:"true" description:"public key file"`
}

func (c *KeygenCommand) Execute([]string) error {
	curve, err := c.curve()
	if err != nil {
		return err
	}
	priv, err := ecdsa.GenerateKey(curve, nil)
	if err != nil {
		return err
	}
	if err := identity.WriteKeyFile(c.Private, priv.Bytes(), 0o600); err != nil {
		return err
	}
	pub := priv.PublicKey.Bytes()
	if err := identity.WriteKeyFile(c.Public, pub, 0o644); err != nil {
		return err
	}
	c.verbosef("wrote %s key pair to %s and %s", curve.Name(), c.Private, c.Public)
	if curve.Name() == ec.P256().Name() {
		fmt.Fprintln(c.stdout, identity.PeerIDFromPublicKey(pub))
	}
	return nil
}

type PeerIDCommand struct {
	command
	Public string `long:"public" required:"true" description:"nistp256 public key file"`
}

func (c *PeerIDCommand) Execute([]string) error {
	pub, err := identity.ReadKeyFile(c.Public)
	if err != nil {
		return err
	}
	if err := identity.ValidatePublicKey(pub); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, identity.PeerIDFromPublicKey(pub))
	return nil
}

type SignCommand struct {
	command
	CurveOption
	Private string `long:"private" required:"true" description:"private key file"`
	Args    struct {
		File string `positional-arg-name:"file" required:"true"`
	} `positional-args:"true"`
}

func (c *SignCommand) Execute([]string) error {
	curve, err := c.curve()
	if err != nil {
		return err
	}
	d, err := identity.ReadKeyFile(c.Private)
	if err != nil {
		return err
	}
	priv, err := ecdsa.NewPrivateKey(curve, d)
	if err != nil {
		return err
	}
	msg, err := os.ReadFile(c.Args.File)
	if err != nil {
		return err
	}
	sig, err := ecdsa.Sign(nil, priv, msg)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, base64.StdEncoding.EncodeToString(sig))
	return nil
}

type VerifyCommand struct {
	command
	CurveOption
	Public    string `long:"public"    required:"true" description:"public key file"`
	Signature string `long:"signature" required:"true" description:"base64 signature, or @file to read it from a file"`
	Args      struct {
		File string `positional-arg-name:"file" required:"true"`
	} `positional-args:"true"`
}

func (c *VerifyCommand) Execute([]string) error {
	curve, err := c.curve()
	if err != nil {
		return err
	}
	encoded, err := identity.ReadKeyFile(c.Public)
	if err != nil {
		return err
	}
	pub, err := ecdsa.NewPublicKey(curve, encoded)
	if err != nil {
		return err
	}
	sigText := c.Signature
	if path, ok := strings.CutPrefix(sigText, "@"); ok {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sigText = string(raw)
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigText))
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	msg, err := os.ReadFile(c.Args.File)
	if err != nil {
		return err
	}
	if err := ecdsa.VerifyError(pub, msg, sig); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	fmt.Fprintln(c.stdout, "OK")
	return nil
}

type DigestCommand struct {
	command
	Args struct {
		Files []string `positional-arg-name:"file" required:"1"`
	} `positional-args:"true"`
}

func (c *DigestCommand) Execute([]string) error {
	for _, name := range c.Args.Files {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		d := sha2.New()
		_, err = io.Copy(d, f)
		f.Close()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s  %s\n", hex.EncodeToString(d.Sum(nil)), name)
	}
	return nil
}

type CipherOptions struct {
	Key string `short:"k" long:"key" required:"true" description:"file holding a base64 32-byte key"`
	AAD string `long:"aad" description:"additional data bound to the ciphertext"`
	Out string `short:"o" long:"out" required:"true" description:"output file"`
}

func (o CipherOptions) aead() (*crypto.AEAD, error) {
	key, err := identity.ReadKeyFile(o.Key)
	if err != nil {
		return nil, err
	}
	return crypto.NewAEAD(key)
}

type SealCommand struct {
	command
	CipherOptions
	Args struct {
		File string `positional-arg-name:"file" required:"true"`
	} `positional-args:"true"`
}

func (c *SealCommand) Execute([]string) error {
	a, err := c.aead()
	if err != nil {
		return err
	}
	pt, err := os.ReadFile(c.Args.File)
	if err != nil {
		return err
	}
	record, err := a.Seal(pt, []byte(c.AAD))
	if err != nil {
		return err
	}
	c.verbosef("sealed %d bytes into %d", len(pt), len(record))
	return os.WriteFile(c.Out, record, 0o644)
}

type OpenCommand struct {
	command
	CipherOptions
	Args struct {
		File string `positional-arg-name:"file" required:"true"`
	} `positional-args:"true"`
}

func (c *OpenCommand) Execute([]string) error {
	a, err := c.aead()
	if err != nil {
		return err
	}
	record, err := os.ReadFile(c.Args.File)
	if err != nil {
		return err
	}
	pt, err := a.Open(record, []byte(c.AAD))
	if err != nil {
		return err
	}
	return os.WriteFile(c.Out, pt, 0o600)
}
