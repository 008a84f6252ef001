package network

import (
	"fmt"
	"net"
	"sync"
)

// Registry tracks the reachable address and public key for every peer the
// local device has learned about, generalizing the teacher's uint32
// friend-ID address table (interfaces.INetworkTransport's
// RegisterFriend/GetFriendAddress) to the spec's string peer IDs. It
// satisfies both delivery.PeerResolver and delivery.KeyResolver so the
// Delivery Engine's direct and relay strategies share one lookup source.
type Registry struct {
	mu    sync.RWMutex
	addrs map[string]net.Addr
	keys  map[string][32]byte
}

// NewRegistry returns an empty peer registry.
func NewRegistry() *Registry {
	return &Registry{
		addrs: make(map[string]net.Addr),
		keys:  make(map[string][32]byte),
	}
}

// Learn records peerID's current address and public key, called whenever
// a DHT lookup, LAN discovery, or incoming packet reveals a new or
// updated mapping.
func (r *Registry) Learn(peerID string, addr net.Addr, publicKey [32]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs[peerID] = addr
	r.keys[peerID] = publicKey
}

// Forget removes a peer, e.g. on contact removal.
func (r *Registry) Forget(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.addrs, peerID)
	delete(r.keys, peerID)
}

// ResolveAddr implements delivery.PeerResolver.
func (r *Registry) ResolveAddr(peerID string) (net.Addr, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.addrs[peerID]
	if !ok {
		return nil, fmt.Errorf("network: no known address for peer %s", peerID)
	}
	return addr, nil
}

// ResolveKey implements delivery.KeyResolver.
func (r *Registry) ResolveKey(peerID string) ([32]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[peerID]
	if !ok {
		return [32]byte{}, fmt.Errorf("network: no known public key for peer %s", peerID)
	}
	return key, nil
}

// PeerIDByAddr reverse-looks-up a peer ID from the address a packet
// arrived on, used by the inbound packet handlers to attribute a frame to
// a peer ID before it can be matched against a session.
func (r *Registry) PeerIDByAddr(addr net.Addr) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	target := addr.String()
	for peerID, a := range r.addrs {
		if a.String() == target {
			return peerID, true
		}
	}
	return "", false
}
