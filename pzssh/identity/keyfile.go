package identity

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// Key files hold a single base64 line: the private scalar, or the
// uncompressed public point.

// LoadKeyPair reads a private key file and, if pubPath is not empty, the
// matching public key file.
func LoadKeyPair(privPath, pubPath string) (KeyPair, error) {
	priv, err := ReadKeyFile(privPath)
	if err != nil {
		return KeyPair{}, err
	}
	var pub []byte
	if pubPath != "" {
		if pub, err = ReadKeyFile(pubPath); err != nil {
			return KeyPair{}, err
		}
	}
	return NewKeyPair(priv, pub)
}

// Save writes the private scalar (mode 0600) and the public point.
func (kp KeyPair) Save(privPath, pubPath string) error {
	if err := WriteKeyFile(privPath, kp.PrivateKey.Bytes(), 0o600); err != nil {
		return err
	}
	return WriteKeyFile(pubPath, kp.PublicKey, 0o644)
}

// ReadKeyFile decodes a base64 key file.
func ReadKeyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("identity: %s: %w", path, err)
	}
	return b, nil
}

// WriteKeyFile writes b as one base64 line.
func WriteKeyFile(path string, b []byte, perm os.FileMode) error {
	return os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(b)+"\n"), perm)
}
