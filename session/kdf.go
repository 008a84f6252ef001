package session

import (
	"crypto/hmac"
	"crypto/sha256"
)

// KDF constants distinguish the root-chain and symmetric-chain expansions,
// following the convention ericlagergren/dr documents for KDFrk/KDFck.
var (
	kdfRootInfo    = []byte("nyxcore-root-chain-v1")
	kdfChainConst0 = []byte{0x00}
	kdfChainConst1 = []byte{0x01}
)

// kdfRootChain derives a new root key and chain key from the current root
// key and a fresh Diffie-Hellman output, advancing the DH ratchet.
func kdfRootChain(rootKey, dhOutput [32]byte) (newRoot, newChain [32]byte) {
	mac := hmac.New(sha256.New, rootKey[:])
	mac.Write(dhOutput[:])
	mac.Write(kdfRootInfo)
	out := mac.Sum(nil)

	expanded := hkdfExpand(out, 64)
	copy(newRoot[:], expanded[:32])
	copy(newChain[:], expanded[32:64])
	return newRoot, newChain
}

// kdfChainStep advances a symmetric chain key one step, returning the next
// chain key and the message key derived at this step.
func kdfChainStep(chainKey [32]byte) (nextChain, messageKey [32]byte) {
	macChain := hmac.New(sha256.New, chainKey[:])
	macChain.Write(kdfChainConst0)
	copy(nextChain[:], macChain.Sum(nil))

	macMsg := hmac.New(sha256.New, chainKey[:])
	macMsg.Write(kdfChainConst1)
	copy(messageKey[:], macMsg.Sum(nil))
	return nextChain, messageKey
}

// hkdfExpand performs a minimal HMAC-based expansion to the requested
// length: 64 bytes for kdfRootChain (split into two 32-byte outputs) and
// 32 bytes for X3DH's combineSecrets.
func hkdfExpand(seed []byte, length int) []byte {
	out := make([]byte, 0, length)
	var block []byte
	counter := byte(1)
	for len(out) < length {
		mac := hmac.New(sha256.New, seed)
		mac.Write(block)
		mac.Write([]byte{counter})
		block = mac.Sum(nil)
		out = append(out, block...)
		counter++
	}
	return out[:length]
}
