package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheusHen/pzssh/pzssh/crypto/sha2"
	"github.com/TheusHen/pzssh/pzssh/identity"
)

func runCmd(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestKeygenSignVerify(t *testing.T) {
	for _, curve := range []string{"nistp256", "nistp384", "nistp521"} {
		t.Run(curve, func(t *testing.T) {
			dir := t.TempDir()
			priv := filepath.Join(dir, "key")
			pub := filepath.Join(dir, "key.pub")
			msg := filepath.Join(dir, "msg")
			require.NoError(t, os.WriteFile(msg, []byte("sign me"), 0o644))

			_, stderr, code := runCmd(t, "keygen", "--curve", curve, "--private", priv, "--public", pub)
			require.Equal(t, 0, code, stderr)

			sig, stderr, code := runCmd(t, "sign", "--curve", curve, "--private", priv, msg)
			require.Equal(t, 0, code, stderr)
			sig = strings.TrimSpace(sig)

			out, stderr, code := runCmd(t, "verify", "--curve", curve, "--public", pub, "--signature", sig, msg)
			require.Equal(t, 0, code, stderr)
			assert.Equal(t, "OK\n", out)

			sigFile := filepath.Join(dir, "sig")
			require.NoError(t, os.WriteFile(sigFile, []byte(sig+"\n"), 0o644))
			_, stderr, code = runCmd(t, "verify", "--curve", curve, "--public", pub, "--signature", "@"+sigFile, msg)
			require.Equal(t, 0, code, stderr)

			require.NoError(t, os.WriteFile(msg, []byte("sign me!"), 0o644))
			_, stderr, code = runCmd(t, "verify", "--curve", curve, "--public", pub, "--signature", sig, msg)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, ErrBadSignature.Error())
		})
	}
}

func TestKeygenPrintsPeerID(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "key")
	pub := filepath.Join(dir, "key.pub")

	out, stderr, code := runCmd(t, "-v", "keygen", "--private", priv, "--public", pub)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "nistp256")

	kp, err := identity.LoadKeyPair(priv, pub)
	require.NoError(t, err)
	assert.Equal(t, kp.PeerID().String()+"\n", out)

	again, _, code := runCmd(t, "peerid", "--public", pub)
	require.Equal(t, 0, code)
	assert.Equal(t, out, again)
}

func TestDigest(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "abc")
	require.NoError(t, os.WriteFile(f, []byte("abc"), 0o644))

	out, stderr, code := runCmd(t, "digest", f)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad  "+f+"\n", out)

	sum := sha2.Sum256([]byte("abc"))
	assert.True(t, strings.HasPrefix(out, hex.EncodeToString(sum[:])))
}

func TestSealOpen(t *testing.T) {
	dir := t.TempDir()
	key := filepath.Join(dir, "key")
	require.NoError(t, identity.WriteKeyFile(key, bytes.Repeat([]byte{7}, 32), 0o600))
	plain := filepath.Join(dir, "plain")
	sealed := filepath.Join(dir, "sealed")
	opened := filepath.Join(dir, "opened")
	require.NoError(t, os.WriteFile(plain, []byte("secret payload"), 0o644))

	_, stderr, code := runCmd(t, "seal", "-k", key, "--aad", "v1", "-o", sealed, plain)
	require.Equal(t, 0, code, stderr)
	_, stderr, code = runCmd(t, "open", "-k", key, "--aad", "v1", "-o", opened, sealed)
	require.Equal(t, 0, code, stderr)

	got, err := os.ReadFile(opened)
	require.NoError(t, err)
	assert.Equal(t, "secret payload", string(got))

	_, _, code = runCmd(t, "open", "-k", key, "--aad", "v2", "-o", opened, sealed)
	assert.Equal(t, 1, code)
}

func TestUsageErrors(t *testing.T) {
	_, _, code := runCmd(t)
	assert.Equal(t, 1, code)

	_, _, code = runCmd(t, "keygen", "--curve", "nistp192", "--private", "a", "--public", "b")
	assert.Equal(t, 1, code)

	out, _, code := runCmd(t, "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "keygen")
}
