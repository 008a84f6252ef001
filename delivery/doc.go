// Package delivery implements the three-tier outbound delivery policy of
// spec.md §4.5: direct peer-to-peer, relay circuit, and store-and-forward,
// attempted in order with exponential-backoff retry at each tier and
// escalation to the next on timeout or permanent failure.
//
// It generalizes the teacher's interfaces.IPacketDelivery /
// interfaces.INetworkTransport abstraction (and its real/testing
// implementations, normally chosen once per process through
// factory.NewPacketDelivery) into a per-message strategy chain: each
// Strategy wraps one of the teacher's existing transports — direct
// transport/dht delivery, transport.RelayClient for the relay tier, and an
// HTTP store-and-forward client modeled on identity.RegistryClient for the
// store tier (itself a repurposing of async.AsyncClient's "send now,
// retrieve later" shape from friend messaging to a generic offline-message
// store).
package delivery
