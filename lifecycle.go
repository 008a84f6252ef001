package nyxcore

import (
	"context"
	"net"

	"github.com/nyxtalk/nyxcore/identity"
)

// LocalPeerID returns this device's stable peer identifier, a plain
// getter that does not need the Command Bus since the identity is
// immutable for the lifetime of the Client.
func (c *Client) LocalPeerID() string {
	return c.identity.PeerID()
}

// ListenOn reports the local UDP address the Client bound to at New,
// spec.md §4.4's "binds a socket" step already having happened by the
// time a Client exists; this is a read-only accessor for hosts that need
// to display or exchange it out-of-band (e.g. LAN discovery payloads).
func (c *Client) ListenOn() net.Addr {
	return c.netAdapter.LocalAddr()
}

// Bootstrap seeds the DHT routing table from a well-known set of nodes
// and blocks until at least one responds or ctx expires, mirroring
// toxcore.go's Tox.Bootstrap generalized to the Command Bus's
// synchronous-call shape.
func (c *Client) Bootstrap(ctx context.Context, nodes []BootstrapNode) error {
	_, err := submit(ctx, c, "bootstrap", func(ctx context.Context) (struct{}, error) {
		for _, n := range nodes {
			if err := c.bootstrap.AddNode(n.Addr, n.PublicKeyHex); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, c.bootstrap.Bootstrap(ctx)
	})
	return err
}

// BootstrapNode names a well-known DHT entry point, the same two fields
// toxcore.go's BootstrapManager.AddNode takes, renamed off friend-ID
// terminology.
type BootstrapNode struct {
	Addr         net.Addr
	PublicKeyHex string
}

// ConnectedPeerCount reports the number of nodes currently tracked in
// the DHT routing table, a coarse network-health signal for host UIs.
func (c *Client) ConnectedPeerCount(ctx context.Context) (int, error) {
	return submit(ctx, c, "connected_peer_count", func(ctx context.Context) (int, error) {
		return c.dhtTable.GetTotalNodeCount(), nil
	})
}

// RegisterUsername claims a username in the identity registry, publishing
// the current prekey bundle alongside it (spec.md §4.2's register_username).
func (c *Client) RegisterUsername(ctx context.Context, username string) error {
	_, err := submit(ctx, c, "register_username", func(ctx context.Context) (struct{}, error) {
		if c.registry == nil {
			return struct{}{}, ErrFeatureUnavailable
		}
		bundle, err := identity.EncodeBundle(c.identity, c.prekeys)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, c.registry.RegisterUsername(ctx, c.identity, username, c.identity.PeerID(), bundle)
	})
	return err
}

// LookupUsername resolves a username to its published bundle without
// establishing a session, for hosts that want to preview a contact
// before calling AddContact.
func (c *Client) LookupUsername(ctx context.Context, username string) (*identity.LookupResult, error) {
	return submit(ctx, c, "lookup_username", func(ctx context.Context) (*identity.LookupResult, error) {
		if c.registry == nil {
			return nil, ErrFeatureUnavailable
		}
		return c.registry.FetchBundle(ctx, username)
	})
}
