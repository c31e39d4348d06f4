// Package crypto assembles the pzssh primitives into the pieces a secure
// transport needs.
//
// Contents:
//   - Ephemeral ECDH on the NIST curves of package ec
//   - Key derivation: HKDF-SHA256 and the SSH key schedule (RFC 4253 §7.2)
//   - The SSH-style exchange hash signed by both hosts
//   - AEAD records over ChaCha20-Poly1305 with counter nonces
//   - SecureChannel: ephemeral ECDH plus a symmetric ratchet per direction
//
// None of the arithmetic underneath is constant time.
package crypto
