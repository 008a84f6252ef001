// Package network adapts the teacher's UDP transport and DHT routing
// table to the spec's string peer-ID addressing, giving the Delivery
// Engine (spec.md §4.5) a concrete interfaces.INetworkTransport plus the
// PeerResolver/KeyResolver it needs to turn a peer ID into a reachable
// address and public key. It also routes inbound frames and acks back
// into the rest of the core, generalizing net/callback_router.go's
// per-friend-ID dispatch to the spec's peer-ID-keyed routing.
package network
