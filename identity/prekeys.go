package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nyxtalk/nyxcore/crypto"
	"github.com/sirupsen/logrus"
)

// SignedPrekeyGracePeriod is how long a rotated-out signed prekey remains
// valid, per spec.md §4.2 ("the previous remains valid for a grace
// period"). The exact value is an Open Question in spec.md §9; one week
// is chosen as a conservative default pending threat-model review.
const SignedPrekeyGracePeriod = 7 * 24 * time.Hour

// ErrOneTimePrekeyExhausted is returned when a one-time prekey has already
// been consumed, enforcing testable property 6 ("ratchet one-shot").
var ErrOneTimePrekeyExhausted = errors.New("identity: one-time prekey already consumed")

// SignedPrekey is a medium-term key rotated periodically and signed by the
// identity key so peers can verify provenance.
type SignedPrekey struct {
	KeyPair     *crypto.KeyPair
	Signature   []byte
	GeneratedAt time.Time
	expiresAt   time.Time // zero while current; set once superseded
}

// OneTimePrekey is consumed exactly once on first contact.
type OneTimePrekey struct {
	ID      uint32
	KeyPair *crypto.KeyPair
	used    bool
}

// PrekeyBundle is the package of public keys published to the identity
// registry so offline peers can initiate a session (spec.md §3).
type PrekeyBundle struct {
	mu sync.Mutex

	identityPublic ed25519.PublicKey
	signPrivate    func([]byte) []byte

	current  *SignedPrekey
	previous *SignedPrekey
	oneTime  map[uint32]*OneTimePrekey
	nextID   uint32
}

// NewPrekeyBundle creates an empty bundle bound to an identity's signing
// key, with an initial signed prekey and one-time pool.
func NewPrekeyBundle(id *Identity, count int) (*PrekeyBundle, error) {
	b := &PrekeyBundle{
		identityPublic: id.SignPublicKey(),
		signPrivate:    id.Sign,
		oneTime:        make(map[uint32]*OneTimePrekey),
	}
	if err := b.RotateSignedPrekey(); err != nil {
		return nil, err
	}
	if err := b.GeneratePrekeys(count); err != nil {
		return nil, err
	}
	return b, nil
}

// RotateSignedPrekey generates a new signed prekey, retaining the previous
// one for SignedPrekeyGracePeriod (spec.md §4.2).
func (b *PrekeyBundle) RotateSignedPrekey() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("identity: generate signed prekey: %w", err)
	}

	sig := b.signPrivate(kp.Public[:])
	next := &SignedPrekey{KeyPair: kp, Signature: sig, GeneratedAt: time.Now()}

	if b.current != nil {
		b.current.expiresAt = time.Now().Add(SignedPrekeyGracePeriod)
		b.previous = b.current
	}
	b.current = next

	logrus.WithFields(logrus.Fields{
		"function": "RotateSignedPrekey", "package": "identity",
	}).Info("signed prekey rotated")
	return nil
}

// GeneratePrekeys materializes count new one-time prekeys (spec.md §4.2).
func (b *PrekeyBundle) GeneratePrekeys(count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < count; i++ {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			return fmt.Errorf("identity: generate one-time prekey %d: %w", i, err)
		}
		id := b.nextID
		b.nextID++
		b.oneTime[id] = &OneTimePrekey{ID: id, KeyPair: kp}
	}
	return nil
}

// ConsumeOneTimePrekey removes and returns an unused one-time prekey,
// enforcing single-use (testable property 6). Returns
// ErrOneTimePrekeyExhausted if the pool is empty.
func (b *PrekeyBundle) ConsumeOneTimePrekey() (*OneTimePrekey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, otk := range b.oneTime {
		if otk.used {
			continue
		}
		otk.used = true
		delete(b.oneTime, id)
		return otk, nil
	}
	return nil, ErrOneTimePrekeyExhausted
}

// RemainingOneTimeKeys reports the size of the unused one-time pool.
func (b *PrekeyBundle) RemainingOneTimeKeys() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.oneTime)
}

// NeedsRefresh reports whether the one-time pool has dropped to or below
// the refresh threshold, grounded on async.PreKeyStore.NeedsRefresh.
func (b *PrekeyBundle) NeedsRefresh(threshold int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.oneTime) <= threshold
}

// PublicOneTimeKeys returns the public half of every unused one-time
// prekey, for publication to the identity registry. Unlike
// ConsumeOneTimePrekey this does not mark anything used — the registry
// service, not this client, is responsible for handing out exactly one
// per lookup.
func (b *PrekeyBundle) PublicOneTimeKeys() [][32]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][32]byte, 0, len(b.oneTime))
	for _, otk := range b.oneTime {
		if !otk.used {
			out = append(out, otk.KeyPair.Public)
		}
	}
	return out
}

// CurrentSignedPrekey returns the active signed prekey.
func (b *PrekeyBundle) CurrentSignedPrekey() *SignedPrekey {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// VerifySignedPrekey checks a signed prekey against an identity's public
// signing key (spec.md §3 invariant: "signed prekey signature must verify
// against identity public key"). It checks the signature only; whether a
// rotated-out key is still inside its grace period is not checked here.
func VerifySignedPrekey(identityPublic ed25519.PublicKey, pub [32]byte, signature []byte) bool {
	return ed25519.Verify(identityPublic, pub[:], signature)
}
