// Package session implements the per-peer cryptographic session state
// machine: X3DH initial key agreement followed by a symmetric double
// ratchet for per-message forward secrecy (spec.md §4.3).
//
// The ratchet's State/Header shape mirrors the pack's standalone
// double-ratchet reference implementation (ericlagergren/dr): a
// Diffie-Hellman ratchet over curve25519 (reusing crypto.KeyPair and
// crypto.DeriveSharedSecret unchanged from the teacher) driving root,
// sending, and receiving KDF chains built from HMAC-SHA256, with message
// encryption via NaCl secretbox the way crypto/encrypt.go already uses it
// for the teacher's legacy encryption mode.
//
// Session state is persisted through storage.Store.SaveSession after every
// successful Encrypt and Decrypt, atomically, so that replaying the last
// persisted session after a crash yields consistent ratchet positions for
// at least the next inbound message (spec.md §4.3 invariant).
package session
