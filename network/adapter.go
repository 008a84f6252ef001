package network

import (
	"net"
	"sync/atomic"

	"github.com/nyxtalk/nyxcore/transport"
)

// FrameHandler is invoked for every inbound application frame (an
// encrypted delivery.Frame, still wire-encoded) along with the address it
// arrived from.
type FrameHandler func(data []byte, addr net.Addr)

// Adapter wraps the teacher's *transport.UDPTransport to satisfy
// interfaces.INetworkTransport, which delivery.DirectStrategy is written
// against. The friend-ID-keyed methods of that interface are unused by
// DirectStrategy (it always calls Send with an already-resolved address)
// and are implemented as no-ops to keep the interface satisfied without a
// second identity scheme.
type Adapter struct {
	transport *transport.UDPTransport
	registry  *Registry
	connected int32
}

// NewAdapter registers frame and ack handlers on transport and returns an
// Adapter ready to hand to delivery.NewDirectStrategy and
// delivery.NewRelayStrategy's underlying transport dependency.
func NewAdapter(t *transport.UDPTransport, registry *Registry, onFrame, onAck FrameHandler) *Adapter {
	a := &Adapter{transport: t, registry: registry, connected: 1}

	t.RegisterHandler(transport.PacketFriendMessage, func(p *transport.Packet, addr net.Addr) error {
		if onFrame != nil {
			onFrame(p.Data, addr)
		}
		return nil
	})
	t.RegisterHandler(transport.PacketFriendMessageAck, func(p *transport.Packet, addr net.Addr) error {
		if onAck != nil {
			onAck(p.Data, addr)
		}
		return nil
	})

	return a
}

// Send implements interfaces.INetworkTransport.
func (a *Adapter) Send(packet []byte, addr net.Addr) error {
	return a.transport.Send(&transport.Packet{PacketType: transport.PacketFriendMessage, Data: packet}, addr)
}

// SendAck sends an ack(message_id) frame to addr, the reverse direction
// of Send for the Delivery Engine's acknowledgement protocol (spec.md
// §4.5).
func (a *Adapter) SendAck(messageID string, addr net.Addr) error {
	return a.transport.Send(&transport.Packet{PacketType: transport.PacketFriendMessageAck, Data: []byte(messageID)}, addr)
}

// SendToFriend is unused by the spec's peer-ID-addressed delivery path;
// the teacher's uint32 friend IDs have no meaning here. Kept only to
// satisfy interfaces.INetworkTransport.
func (a *Adapter) SendToFriend(friendID uint32, packet []byte) error {
	return nil
}

// GetFriendAddress is likewise unused; peer-ID-to-address resolution
// flows through Registry.ResolveAddr instead.
func (a *Adapter) GetFriendAddress(friendID uint32) (net.Addr, error) {
	return nil, nil
}

// RegisterFriend is likewise unused.
func (a *Adapter) RegisterFriend(friendID uint32, addr net.Addr) error {
	return nil
}

// Close shuts down the underlying transport.
func (a *Adapter) Close() error {
	atomic.StoreInt32(&a.connected, 0)
	return a.transport.Close()
}

// IsConnected reports whether the transport is still open.
func (a *Adapter) IsConnected() bool {
	return atomic.LoadInt32(&a.connected) == 1
}

// LocalAddr returns the address the underlying transport is bound to.
func (a *Adapter) LocalAddr() net.Addr {
	return a.transport.LocalAddr()
}
