package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"

	"github.com/nyxtalk/nyxcore/crypto"
	"github.com/sirupsen/logrus"
)

// Identity is the long-lived keypair that is the root of trust for a
// device, per spec.md §3. It is generated once at first launch and never
// rotated without explicit user action.
type Identity struct {
	mu sync.Mutex

	encryptKeys *crypto.KeyPair      // X25519 keypair for session key agreement
	signKeys    ed25519.PrivateKey   // Ed25519 keypair for registry / prekey signatures
	signPublic  ed25519.PublicKey
	peerID      string
}

// New generates a fresh device identity.
func New() (*Identity, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "New", "package": "identity"})

	encryptKeys, err := crypto.GenerateKeyPair()
	if err != nil {
		logger.WithError(err).Error("failed to generate encryption keypair")
		return nil, fmt.Errorf("identity: generate encryption keypair: %w", err)
	}

	signPublic, signPrivate, err := ed25519.GenerateKey(nil)
	if err != nil {
		logger.WithError(err).Error("failed to generate signing keypair")
		return nil, fmt.Errorf("identity: generate signing keypair: %w", err)
	}

	id := &Identity{
		encryptKeys: encryptKeys,
		signKeys:    signPrivate,
		signPublic:  signPublic,
	}
	id.peerID = derivePeerID(signPublic)

	logger.WithField("peer_id", id.peerID).Info("identity generated")
	return id, nil
}

// FromSeed reconstructs an identity from previously persisted key material
// (loaded, decrypted, by the host's persistence layer; spec.md §6's
// "key-material file encrypted at rest with a device-derived key").
func FromSeed(encryptPrivate [32]byte, signSeed [32]byte) (*Identity, error) {
	encryptKeys, err := crypto.FromSecretKey(encryptPrivate)
	if err != nil {
		return nil, fmt.Errorf("identity: derive encryption keypair: %w", err)
	}

	signPrivate := ed25519.NewKeyFromSeed(signSeed[:])
	signPublic := signPrivate.Public().(ed25519.PublicKey)

	id := &Identity{
		encryptKeys: encryptKeys,
		signKeys:    signPrivate,
		signPublic:  signPublic,
	}
	id.peerID = derivePeerID(signPublic)
	return id, nil
}

// derivePeerID produces the stable string form of a public-key hash used
// to address this device in the P2P layer (spec.md GLOSSARY).
func derivePeerID(signPublic ed25519.PublicKey) string {
	sum := sha256.Sum256(signPublic)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return strings.ToLower(enc.EncodeToString(sum[:20]))
}

// PeerID returns this device's stable peer identifier.
func (id *Identity) PeerID() string {
	return id.peerID
}

// EncryptKeyPair returns the X25519 keypair used for session key agreement.
func (id *Identity) EncryptKeyPair() *crypto.KeyPair {
	return id.encryptKeys
}

// SignPublicKey returns the Ed25519 public key used to verify this
// identity's signatures.
func (id *Identity) SignPublicKey() ed25519.PublicKey {
	return id.signPublic
}

// SignSeed returns the 32-byte seed that deterministically reconstructs
// the Ed25519 signing key via FromSeed, for persisting the identity to
// the host's encrypted key-material file (spec.md §6).
func (id *Identity) SignSeed() [32]byte {
	var seed [32]byte
	copy(seed[:], id.signKeys.Seed())
	return seed
}

// Sign signs a message with the identity's Ed25519 key. Used for prekey
// bundle signatures and registry registration messages (spec.md §4.2).
func (id *Identity) Sign(message []byte) []byte {
	id.mu.Lock()
	defer id.mu.Unlock()
	return ed25519.Sign(id.signKeys, message)
}

// Close wipes the in-memory X25519 key material; the Ed25519 signing key
// is not wiped.
func (id *Identity) Close() error {
	id.mu.Lock()
	defer id.mu.Unlock()
	return crypto.WipeKeyPair(id.encryptKeys)
}
