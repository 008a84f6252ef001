// Package identity manages the long-lived device keypair, the one-time and
// signed prekeys published to the identity registry, and the HTTP/JSON
// client used to register and look up usernames (spec.md §4.2, §6).
//
// The long-term keypair wraps crypto.KeyPair (NaCl box / curve25519)
// unchanged from the teacher. Prekey bundle bookkeeping generalizes
// async.PreKeyStore's one-time-key pool. Registration messages are signed
// with an Ed25519 key derived the way crypto/ed25519.go already signs
// arbitrary byte strings.
package identity
