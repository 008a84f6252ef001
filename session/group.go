package session

import (
	"crypto/rand"
	"fmt"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

// GroupSenderKey is a sender's own ratcheting symmetric chain for a group
// (spec.md's group messaging extension of §4.3: pairwise sessions for
// 1:1, an independent sender chain per member for groups so that a single
// compromised pairwise session does not expose group history). Each
// member encrypts with their own GroupSenderKey and distributes the
// current chain key to other members over their pairwise sessions.
type GroupSenderKey struct {
	mu        sync.Mutex
	groupID   string
	senderID  string
	chainKey  [32]byte
	iteration uint32
}

// NewGroupSenderKey seeds a fresh sender chain with random entropy,
// typically distributed to group members immediately afterward via their
// pairwise Manager.Encrypt sessions.
func NewGroupSenderKey(groupID, senderID string) (*GroupSenderKey, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoError, err)
	}
	return &GroupSenderKey{groupID: groupID, senderID: senderID, chainKey: seed}, nil
}

// ImportGroupSenderKey reconstructs another member's sender chain from a
// chain key and iteration received over a pairwise session.
func ImportGroupSenderKey(groupID, senderID string, chainKey [32]byte, iteration uint32) *GroupSenderKey {
	return &GroupSenderKey{groupID: groupID, senderID: senderID, chainKey: chainKey, iteration: iteration}
}

// Export returns the current chain key and iteration for distribution to
// a newly joined member over a pairwise session.
func (g *GroupSenderKey) Export() (chainKey [32]byte, iteration uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chainKey, g.iteration
}

// Seal encrypts plaintext under the current chain position and advances
// the chain, so a compromised message key never decrypts past or future
// messages in the same chain.
func (g *GroupSenderKey) Seal(plaintext []byte) (ciphertext []byte, iteration uint32, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	nextCK, msgKey := kdfChainStep(g.chainKey)
	iteration = g.iteration
	g.chainKey = nextCK
	g.iteration++

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCryptoError, err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &msgKey)
	zero(msgKey[:])
	return sealed, iteration, nil
}

// GroupChain tracks one remote member's sender chain for decryption,
// advancing it forward to the target iteration to tolerate message loss
// (group messages are not resent, so skipped iterations are discarded,
// unlike the pairwise ratchet's skipped-key cache).
type GroupChain struct {
	mu        sync.Mutex
	chainKey  [32]byte
	iteration uint32
}

// NewGroupChain wraps an imported sender key for decryption.
func NewGroupChain(chainKey [32]byte, iteration uint32) *GroupChain {
	return &GroupChain{chainKey: chainKey, iteration: iteration}
}

// Open decrypts a message at the given iteration, fast-forwarding the
// chain if messages were dropped.
func (g *GroupChain) Open(ciphertext []byte, iteration uint32) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if iteration < g.iteration {
		return nil, fmt.Errorf("%w: group message iteration %d already advanced past (%d)", ErrAuthenticationFailed, iteration, g.iteration)
	}
	for g.iteration < iteration {
		g.chainKey, _ = kdfChainStep(g.chainKey)
		g.iteration++
	}

	nextCK, msgKey := kdfChainStep(g.chainKey)
	if len(ciphertext) < 24 {
		return nil, fmt.Errorf("%w: truncated group ciphertext", ErrAuthenticationFailed)
	}
	var nonce [24]byte
	copy(nonce[:], ciphertext[:24])
	plaintext, ok := secretbox.Open(nil, ciphertext[24:], &nonce, &msgKey)
	zero(msgKey[:])
	if !ok {
		return nil, ErrAuthenticationFailed
	}
	g.chainKey = nextCK
	g.iteration++
	return plaintext, nil
}
