package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/nyxtalk/nyxcore/crypto"
	"golang.org/x/crypto/nacl/secretbox"
)

// DefaultSkippedKeyCacheCap bounds the number of out-of-order message keys
// retained per chain, per spec.md §4.3 ("cap configurable, default 1000").
// This and the signed-prekey grace period are named in spec.md §9 as
// values carried over from the source without independent validation.
const DefaultSkippedKeyCacheCap = 1000

// Header accompanies every ciphertext, carrying what the receiver needs to
// advance its ratchet (spec.md §4.3): the sender's current ratchet public
// key, the length of the previous sending chain, and the message number
// within the current chain.
type Header struct {
	RatchetPublic [32]byte
	PrevChainLen  uint32
	MessageNumber uint32
}

func (h Header) marshal() []byte {
	buf := make([]byte, 32+4+4)
	copy(buf[:32], h.RatchetPublic[:])
	binary.BigEndian.PutUint32(buf[32:36], h.PrevChainLen)
	binary.BigEndian.PutUint32(buf[36:40], h.MessageNumber)
	return buf
}

func unmarshalHeader(buf []byte) (Header, error) {
	if len(buf) != 40 {
		return Header{}, fmt.Errorf("session: malformed header (%d bytes)", len(buf))
	}
	var h Header
	copy(h.RatchetPublic[:], buf[:32])
	h.PrevChainLen = binary.BigEndian.Uint32(buf[32:36])
	h.MessageNumber = binary.BigEndian.Uint32(buf[36:40])
	return h, nil
}

// skippedKey identifies a cached message key for out-of-order delivery.
type skippedKey struct {
	RatchetPublic [32]byte // exported so gobState can encode it
	MessageNumber uint32
}

// Ratchet is the per-peer double-ratchet state. It is not safe for
// concurrent use; Manager (manager.go) serializes access per peer.
type Ratchet struct {
	selfKeyPair  *crypto.KeyPair
	remotePublic [32]byte

	rootKey [32]byte
	sendCK  [32]byte
	recvCK  [32]byte
	hasSend bool
	hasRecv bool

	sendN, recvN, prevChainLen uint32

	skipped     map[skippedKey][32]byte
	skippedOrd  []skippedKey
	skippedCap  int
}

// newRatchet constructs a ratchet already seeded with a shared root key
// from X3DH (see x3dh.go).
func newRatchet(selfKeyPair *crypto.KeyPair, remotePublic, rootKey [32]byte) *Ratchet {
	return &Ratchet{
		selfKeyPair:  selfKeyPair,
		remotePublic: remotePublic,
		rootKey:      rootKey,
		skipped:      make(map[skippedKey][32]byte),
		skippedCap:   DefaultSkippedKeyCacheCap,
	}
}

// dhStepSend performs the sending half of a Diffie-Hellman ratchet step:
// it generates a fresh ratchet keypair, advances the root chain against
// the current remote public key, and resets the sending chain.
// dhStepReceive does the same for a newly observed remote public key and
// the receiving chain.
func (r *Ratchet) dhStepSend() error {
	newSelf, err := crypto.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("%w: generate ratchet keypair: %v", ErrCryptoError, err)
	}
	dh, err := crypto.DeriveSharedSecret(r.remotePublic, newSelf.Private)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCryptoError, err)
	}
	r.selfKeyPair = newSelf
	r.rootKey, r.sendCK = kdfRootChain(r.rootKey, dh)
	r.hasSend = true
	r.prevChainLen = r.sendN
	r.sendN = 0
	return nil
}

func (r *Ratchet) dhStepReceive(remotePublic [32]byte) error {
	dh, err := crypto.DeriveSharedSecret(remotePublic, r.selfKeyPair.Private)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCryptoError, err)
	}
	r.remotePublic = remotePublic
	r.rootKey, r.recvCK = kdfRootChain(r.rootKey, dh)
	r.hasRecv = true
	r.recvN = 0
	return nil
}

// Encrypt advances the sending ratchet and returns a wire-format
// ciphertext carrying the header needed for the receiver's ratchet step
// (spec.md §4.3).
func (r *Ratchet) Encrypt(plaintext []byte) ([]byte, error) {
	if !r.hasSend {
		if err := r.dhStepSend(); err != nil {
			return nil, err
		}
	}

	nextCK, msgKey := kdfChainStep(r.sendCK)
	r.sendCK = nextCK

	header := Header{
		RatchetPublic: r.selfKeyPair.Public,
		PrevChainLen:  r.prevChainLen,
		MessageNumber: r.sendN,
	}
	r.sendN++

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoError, err)
	}

	sealed := secretbox.Seal(nil, plaintext, &nonce, &msgKey)
	zero(msgKey[:])

	out := make([]byte, 0, 40+24+len(sealed))
	out = append(out, header.marshal()...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt advances the receiving ratchet, tolerating out-of-order delivery
// by consulting (and populating) a bounded skipped-message-key cache
// (spec.md §4.3, testable property 5).
func (r *Ratchet) Decrypt(wire []byte) ([]byte, error) {
	if len(wire) < 40+24 {
		return nil, fmt.Errorf("%w: truncated ciphertext", ErrAuthenticationFailed)
	}
	header, err := unmarshalHeader(wire[:40])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoError, err)
	}
	var nonce [24]byte
	copy(nonce[:], wire[40:64])
	sealed := wire[64:]

	if plaintext, ok := r.tryDecryptSkipped(header, nonce, sealed); ok {
		return plaintext, nil
	}

	if !r.hasRecv || header.RatchetPublic != r.remotePublic {
		if r.hasRecv {
			if err := r.skipReceiveChain(header.PrevChainLen); err != nil {
				return nil, err
			}
		}
		if err := r.dhStepReceive(header.RatchetPublic); err != nil {
			return nil, err
		}
	}

	if err := r.skipReceiveChain(header.MessageNumber); err != nil {
		return nil, err
	}

	nextCK, msgKey := kdfChainStep(r.recvCK)
	r.recvCK = nextCK
	r.recvN = header.MessageNumber + 1

	plaintext, ok := secretbox.Open(nil, sealed, &nonce, &msgKey)
	zero(msgKey[:])
	if !ok {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// skipReceiveChain advances the receiving chain up to (not including)
// target message number, caching each skipped message key.
func (r *Ratchet) skipReceiveChain(target uint32) error {
	for r.recvN < target {
		nextCK, msgKey := kdfChainStep(r.recvCK)
		r.cacheSkipped(skippedKey{RatchetPublic: r.remotePublic, MessageNumber: r.recvN}, msgKey)
		r.recvCK = nextCK
		r.recvN++
	}
	return nil
}

func (r *Ratchet) cacheSkipped(k skippedKey, key [32]byte) {
	if _, exists := r.skipped[k]; exists {
		return
	}
	if len(r.skippedOrd) >= r.skippedCap {
		oldest := r.skippedOrd[0]
		r.skippedOrd = r.skippedOrd[1:]
		delete(r.skipped, oldest)
	}
	r.skipped[k] = key
	r.skippedOrd = append(r.skippedOrd, k)
}

func (r *Ratchet) tryDecryptSkipped(header Header, nonce [24]byte, sealed []byte) ([]byte, bool) {
	k := skippedKey{RatchetPublic: header.RatchetPublic, MessageNumber: header.MessageNumber}
	key, ok := r.skipped[k]
	if !ok {
		return nil, false
	}
	delete(r.skipped, k)
	for i, s := range r.skippedOrd {
		if s == k {
			r.skippedOrd = append(r.skippedOrd[:i], r.skippedOrd[i+1:]...)
			break
		}
	}
	plaintext, ok := secretbox.Open(nil, sealed, &nonce, &key)
	zero(key[:])
	if !ok {
		return nil, false
	}
	return plaintext, true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
