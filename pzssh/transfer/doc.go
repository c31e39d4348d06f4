// Package transfer moves files over an established session as a manifest
// followed by chunk messages. The manifest carries the Merkle root of the
// chunk hashes, and every chunk arrives with the proof that binds it to
// that root.
package transfer
