package delivery

import (
	"context"
	"fmt"

	"github.com/nyxtalk/nyxcore/storage"
	"github.com/nyxtalk/nyxcore/transport"
	"github.com/sirupsen/logrus"
)

// KeyResolver maps a peer ID to the long-term public key transport needs
// for relay addressing, backed by storage.Store.GetContactByPeer in
// practice.
type KeyResolver interface {
	ResolveKey(peerID string) ([32]byte, error)
}

// RelayStrategy routes a frame through a TCP relay server when direct
// connectivity is not establishing, wrapping transport.RelayClient's
// existing RelayTo/keepalive/reconnect machinery unchanged.
type RelayStrategy struct {
	client *transport.RelayClient
	keys   KeyResolver
	acks   *AckTracker
}

// NewRelayStrategy wraps an already-connected relay client.
func NewRelayStrategy(client *transport.RelayClient, keys KeyResolver, acks *AckTracker) *RelayStrategy {
	return &RelayStrategy{client: client, keys: keys, acks: acks}
}

func (r *RelayStrategy) Path() storage.DeliveryPath { return storage.PathRelay }

func (r *RelayStrategy) Send(ctx context.Context, frame Frame) error {
	if !r.client.IsConnected() {
		return fmt.Errorf("relay not connected")
	}

	target, err := r.keys.ResolveKey(frame.RecipientPeerID)
	if err != nil {
		return fmt.Errorf("%w: resolve relay target: %v", ErrPermanent, err)
	}

	wire, err := encodeFrame(frame)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "RelayStrategy.Send",
		"message_id": frame.MessageID,
		"recipient":  frame.RecipientPeerID,
	}).Debug("attempting relay delivery")

	packet := &transport.Packet{PacketType: transport.PacketFriendMessage, Data: wire}
	if err := r.client.RelayTo(packet, target); err != nil {
		return fmt.Errorf("relay delivery failed: %w", err)
	}
	return nil
}

func (r *RelayStrategy) WaitAck(ctx context.Context, messageID string) error {
	return r.acks.Await(ctx, messageID)
}
