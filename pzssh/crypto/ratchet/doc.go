// Package ratchet provides continuous forward secrecy via symmetric key ratcheting.
//
// The ratchet advances the encryption key after each message, so that
// compromise of the current key does not reveal past messages. Message keys
// come from SHA-256 over the chain key and each one seals exactly one
// ChaCha20-Poly1305 message.
//
// This is a single-ratchet (symmetric) design suitable for unidirectional streams.
// For bidirectional communication, use two ratchets (one per direction).
package ratchet
