// Package pzssh is a secure-transport toolkit built on its own primitive
// suite: NIST curve arithmetic, ECDSA, SHA-256, AES-CTR and
// ChaCha20-Poly1305.
//
// Peers authenticate with long-term ECDSA nistp256 host keys, agree on
// session keys with ephemeral ECDH, and derive traffic keys with the SSH key
// schedule. Sessions run over QUIC and protect application messages with
// either ratcheted ChaCha20-Poly1305 records or AES-CTR binary packets.
//
// Known host keys are pinned through a discovery.Resolver, and package
// transfer moves files over a Session with per-chunk Merkle proofs.
package pzssh
