package delivery

import (
	"context"
	"fmt"
	"net"

	"github.com/nyxtalk/nyxcore/interfaces"
	"github.com/nyxtalk/nyxcore/storage"
	"github.com/sirupsen/logrus"
)

// PeerResolver maps the spec's string peer identifiers onto the network
// addresses the teacher's transport layer already tracks internally
// (friend/peer address registration keyed by connection, not by the
// identity-derived peer ID string). The DHT (dht package) is the natural
// implementation, since it already resolves peer public keys to
// addresses for routing.
type PeerResolver interface {
	ResolveAddr(peerID string) (net.Addr, error)
}

// DirectStrategy delivers over an already-connected or hole-punched P2P
// link, generalizing real.RealPacketDelivery.DeliverPacket's
// address-cache-or-lookup pattern from the teacher's uint32 friend IDs to
// the spec's string peer IDs.
type DirectStrategy struct {
	transport interfaces.INetworkTransport
	resolver  PeerResolver
	acks      *AckTracker
}

// NewDirectStrategy wraps a network transport for direct delivery.
// transport may be nil at construction time and attached later via
// SetTransport, since the concrete transport (network.Adapter) is often
// only available after the strategy chain and Engine already exist.
func NewDirectStrategy(transport interfaces.INetworkTransport, resolver PeerResolver, acks *AckTracker) *DirectStrategy {
	return &DirectStrategy{transport: transport, resolver: resolver, acks: acks}
}

// SetTransport attaches (or replaces) the underlying network transport.
func (d *DirectStrategy) SetTransport(transport interfaces.INetworkTransport) {
	d.transport = transport
}

func (d *DirectStrategy) Path() storage.DeliveryPath { return storage.PathP2P }

// Send requires the recipient to already be reachable (a prior DHT
// lookup or live connection), same precondition real.RealPacketDelivery
// enforces before attempting delivery.
func (d *DirectStrategy) Send(ctx context.Context, frame Frame) error {
	if d.transport == nil || !d.transport.IsConnected() {
		return fmt.Errorf("%w: transport not connected", ErrPermanent)
	}

	addr, err := d.resolver.ResolveAddr(frame.RecipientPeerID)
	if err != nil {
		// An unresolvable peer ID will not become resolvable within this
		// Send() call's retry window; fail immediately rather than
		// retrying, escalating straight to the relay tier.
		return fmt.Errorf("%w: resolve %s: %v", ErrPermanent, frame.RecipientPeerID, err)
	}

	wire, err := encodeFrame(frame)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "DirectStrategy.Send",
		"message_id": frame.MessageID,
		"recipient":  frame.RecipientPeerID,
	}).Debug("attempting direct delivery")

	if err := d.transport.Send(wire, addr); err != nil {
		return fmt.Errorf("direct delivery failed: %w", err)
	}
	return nil
}

func (d *DirectStrategy) WaitAck(ctx context.Context, messageID string) error {
	return d.acks.Await(ctx, messageID)
}
