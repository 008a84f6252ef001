package session

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/nyxtalk/nyxcore/crypto"
	"github.com/nyxtalk/nyxcore/identity"
	"github.com/nyxtalk/nyxcore/storage"
	"github.com/sirupsen/logrus"
)

// Manager owns one Ratchet per peer, serializing access with a per-peer
// mutex and persisting a snapshot through Store after every successful
// Encrypt/Decrypt (spec.md §4.3 invariant: "state persisted ... so that
// restoring the last persisted session yields consistent ratchet
// positions for at least the next inbound message").
type Manager struct {
	identity *identity.Identity
	store    *storage.Store

	mu       sync.Mutex
	sessions map[string]*peerSession
}

type peerSession struct {
	mu      sync.Mutex
	ratchet *Ratchet
}

// NewManager constructs a session manager bound to a local identity and
// durable store.
func NewManager(id *identity.Identity, store *storage.Store) *Manager {
	return &Manager{
		identity: id,
		store:    store,
		sessions: make(map[string]*peerSession),
	}
}

// gobState is the serialized snapshot of a Ratchet, persisted opaquely
// through storage.Store.SaveSession. Storage never inspects its contents,
// per spec.md's ownership rule that Crypto Session exclusively owns key
// material.
type gobState struct {
	SelfPrivate, SelfPublic [32]byte
	RemotePublic            [32]byte
	RootKey, SendCK, RecvCK [32]byte
	HasSend, HasRecv        bool
	SendN, RecvN, PrevLen   uint32
	SkippedOrd              []skippedKey
	SkippedKeys             [][32]byte
}

func (r *Ratchet) marshalState() ([]byte, error) {
	gs := gobState{
		SelfPrivate:  r.selfKeyPair.Private,
		SelfPublic:   r.selfKeyPair.Public,
		RemotePublic: r.remotePublic,
		RootKey:      r.rootKey,
		SendCK:       r.sendCK,
		RecvCK:       r.recvCK,
		HasSend:      r.hasSend,
		HasRecv:      r.hasRecv,
		SendN:        r.sendN,
		RecvN:        r.recvN,
		PrevLen:      r.prevChainLen,
	}
	for _, k := range r.skippedOrd {
		gs.SkippedOrd = append(gs.SkippedOrd, k)
		gs.SkippedKeys = append(gs.SkippedKeys, r.skipped[k])
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gs); err != nil {
		return nil, fmt.Errorf("%w: encode session state: %v", ErrCryptoError, err)
	}
	return buf.Bytes(), nil
}

func unmarshalState(blob []byte) (*Ratchet, error) {
	var gs gobState
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&gs); err != nil {
		return nil, fmt.Errorf("%w: decode session state: %v", ErrCryptoError, err)
	}
	r := &Ratchet{
		selfKeyPair:  &crypto.KeyPair{Public: gs.SelfPublic, Private: gs.SelfPrivate},
		remotePublic: gs.RemotePublic,
		rootKey:      gs.RootKey,
		sendCK:       gs.SendCK,
		recvCK:       gs.RecvCK,
		hasSend:      gs.HasSend,
		hasRecv:      gs.HasRecv,
		sendN:        gs.SendN,
		recvN:        gs.RecvN,
		prevChainLen: gs.PrevLen,
		skipped:      make(map[skippedKey][32]byte, len(gs.SkippedOrd)),
		skippedOrd:   gs.SkippedOrd,
		skippedCap:   DefaultSkippedKeyCacheCap,
	}
	for i, k := range gs.SkippedOrd {
		r.skipped[k] = gs.SkippedKeys[i]
	}
	return r, nil
}

// peerSessionFor loads or lazily tracks the in-memory lock for a peer's
// session, without itself touching storage.
func (m *Manager) peerSessionFor(peerID string) *peerSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.sessions[peerID]
	if !ok {
		ps = &peerSession{}
		m.sessions[peerID] = ps
	}
	return ps
}

// EstablishOutbound runs X3DH as the initiator against a peer's fetched
// prekey bundle and seeds a fresh ratchet, persisting it immediately. It
// returns the X3DH ephemeral public key, which the caller must transmit
// alongside the first message (out-of-band from the ratchet header) so
// the responder can complete its side of X3DH in EstablishInbound.
func (m *Manager) EstablishOutbound(peerID string, remote RemoteBundle) (x3dhEphemeralPublic [32]byte, err error) {
	ps := m.peerSessionFor(peerID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	rootKey, ephemeral, err := x3dhInitiate(m.identity.EncryptKeyPair(), remote)
	if err != nil {
		return x3dhEphemeralPublic, err
	}
	ps.ratchet = newRatchet(ephemeral, remote.SignedPrekey, rootKey)
	if err := m.persistLocked(peerID, ps); err != nil {
		return x3dhEphemeralPublic, err
	}
	return ephemeral.Public, nil
}

// EstablishInbound runs X3DH as the responder. initiatorEphemeral is the
// X3DH ephemeral public key from EstablishOutbound's return value, carried
// to the responder out-of-band from the ratchet's own per-message
// header (spec.md §3's initial handshake payload).
func (m *Manager) EstablishInbound(peerID string, selfSignedPrekey, selfOneTime *crypto.KeyPair, initiatorIdentityEncrypt, initiatorEphemeral [32]byte) error {
	ps := m.peerSessionFor(peerID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	rootKey, err := x3dhRespond(selfSignedPrekey, selfOneTime, m.identity.EncryptKeyPair(), initiatorIdentityEncrypt, initiatorEphemeral)
	if err != nil {
		return err
	}
	ps.ratchet = newRatchet(selfSignedPrekey, initiatorEphemeral, rootKey)
	return m.persistLocked(peerID, ps)
}

// Encrypt encrypts plaintext for peerID, loading its session from storage
// if not already cached in memory, and persists the advanced ratchet
// state before returning.
func (m *Manager) Encrypt(peerID string, plaintext []byte) ([]byte, error) {
	ps := m.peerSessionFor(peerID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ratchet == nil {
		if err := m.loadLocked(peerID, ps); err != nil {
			return nil, err
		}
	}
	ciphertext, err := ps.ratchet.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	if err := m.persistLocked(peerID, ps); err != nil {
		return nil, err
	}
	return ciphertext, nil
}

// Decrypt mirrors Encrypt for inbound messages.
func (m *Manager) Decrypt(peerID string, wire []byte) ([]byte, error) {
	ps := m.peerSessionFor(peerID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ratchet == nil {
		if err := m.loadLocked(peerID, ps); err != nil {
			return nil, err
		}
	}
	plaintext, err := ps.ratchet.Decrypt(wire)
	if err != nil {
		return nil, err
	}
	if err := m.persistLocked(peerID, ps); err != nil {
		return nil, err
	}
	return plaintext, nil
}

// HasSession reports whether a ratchet already exists for peerID, either
// cached in memory or recoverable from storage, without disturbing the
// in-memory cache's lock ordering. Callers use this to decide whether an
// outbound message needs a fresh X3DH handshake first.
func (m *Manager) HasSession(peerID string) bool {
	ps := m.peerSessionFor(peerID)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ratchet != nil {
		return true
	}
	return m.loadLocked(peerID, ps) == nil
}

func (m *Manager) loadLocked(peerID string, ps *peerSession) error {
	blob, err := m.store.LoadSession(peerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	ratchet, err := unmarshalState(blob)
	if err != nil {
		return err
	}
	ps.ratchet = ratchet
	return nil
}

func (m *Manager) persistLocked(peerID string, ps *peerSession) error {
	blob, err := ps.ratchet.marshalState()
	if err != nil {
		return err
	}
	if err := m.store.SaveSession(peerID, blob); err != nil {
		return fmt.Errorf("session: persist state for %s: %w", peerID, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "persistLocked", "package": "session", "peer_id": peerID,
	}).Debug("session state persisted")
	return nil
}
