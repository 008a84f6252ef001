// Package synccore keeps the shared state a single user's devices agree on
// — the contact list, per-conversation read marks, and per-conversation
// drafts — converging across devices that are never reliably online at the
// same time (spec.md §4.7).
//
// Each field of that shared state is modeled as a small CRDT: LWWSet for
// the contact list (add/remove with tombstones), LWWRegister for drafts
// and read marks (single last-writer-wins value per key). Devices
// exchange a hash of their current state and, on mismatch, the full state,
// the same two-message shape amaydixit11/acorde's internal/sync package
// uses for its libp2p peer-sync service — but carried over the existing
// Delivery Engine instead of a second transport stack, since every linked
// device is already addressable as an ordinary peer ID.
//
// New device linking authorizes a join with an out-of-band shared secret
// (a QR-encoded bootstrap token) rather than the identity registry's
// username flow, since a second device has no username of its own to
// register.
package synccore
