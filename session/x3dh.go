package session

import (
	"crypto/ed25519"
	"fmt"

	"github.com/nyxtalk/nyxcore/crypto"
)

// RemoteBundle is the subset of a peer's published prekey bundle needed to
// initiate a session with them (spec.md §3: identity public key plus a
// signed prekey and, when available, a one-time prekey fetched from the
// identity registry).
type RemoteBundle struct {
	IdentityPublic  ed25519.PublicKey
	IdentityEncrypt [32]byte // long-term X25519 public key
	SignedPrekey    [32]byte
	SignedPrekeySig []byte
	OneTimePrekey   *[32]byte // nil if the registry had none left
}

// x3dhInitiate performs the initiating side of X3DH (spec.md §4.3): it
// authenticates the remote signed prekey, then combines three (or four, if
// a one-time prekey was available) Diffie-Hellman outputs into a shared
// secret used to seed the double ratchet's root key.
//
//	DH1 = DH(IKa, SPKb)
//	DH2 = DH(EKa, IKb)
//	DH3 = DH(EKa, SPKb)
//	DH4 = DH(EKa, OPKb)   (omitted if no one-time prekey was available)
func x3dhInitiate(selfIdentity *crypto.KeyPair, remote RemoteBundle) (rootKey [32]byte, ephemeral *crypto.KeyPair, err error) {
	if !ed25519.Verify(remote.IdentityPublic, remote.SignedPrekey[:], remote.SignedPrekeySig) {
		return rootKey, nil, fmt.Errorf("%w: signed prekey signature invalid", ErrAuthenticationFailed)
	}

	ephemeral, err = crypto.GenerateKeyPair()
	if err != nil {
		return rootKey, nil, fmt.Errorf("%w: generate ephemeral key: %v", ErrCryptoError, err)
	}

	dh1, err := crypto.DeriveSharedSecret(remote.SignedPrekey, selfIdentity.Private)
	if err != nil {
		return rootKey, nil, fmt.Errorf("%w: DH1: %v", ErrCryptoError, err)
	}
	dh2, err := crypto.DeriveSharedSecret(remote.IdentityEncrypt, ephemeral.Private)
	if err != nil {
		return rootKey, nil, fmt.Errorf("%w: DH2: %v", ErrCryptoError, err)
	}
	dh3, err := crypto.DeriveSharedSecret(remote.SignedPrekey, ephemeral.Private)
	if err != nil {
		return rootKey, nil, fmt.Errorf("%w: DH3: %v", ErrCryptoError, err)
	}

	secrets := [][32]byte{dh1, dh2, dh3}
	if remote.OneTimePrekey != nil {
		dh4, err := crypto.DeriveSharedSecret(*remote.OneTimePrekey, ephemeral.Private)
		if err != nil {
			return rootKey, nil, fmt.Errorf("%w: DH4: %v", ErrCryptoError, err)
		}
		secrets = append(secrets, dh4)
	}

	rootKey = combineSecrets(secrets)
	return rootKey, ephemeral, nil
}

// x3dhRespond mirrors x3dhInitiate for the responding side, which has no
// ephemeral key of its own to generate — it derives the same DH outputs
// using the initiator's published ephemeral public key.
func x3dhRespond(selfSignedPrekey, selfOneTime *crypto.KeyPair, selfIdentity *crypto.KeyPair, initiatorIdentityEncrypt, initiatorEphemeral [32]byte) (rootKey [32]byte, err error) {
	dh1, err := crypto.DeriveSharedSecret(initiatorIdentityEncrypt, selfSignedPrekey.Private)
	if err != nil {
		return rootKey, fmt.Errorf("%w: DH1: %v", ErrCryptoError, err)
	}
	dh2, err := crypto.DeriveSharedSecret(initiatorEphemeral, selfIdentity.Private)
	if err != nil {
		return rootKey, fmt.Errorf("%w: DH2: %v", ErrCryptoError, err)
	}
	dh3, err := crypto.DeriveSharedSecret(initiatorEphemeral, selfSignedPrekey.Private)
	if err != nil {
		return rootKey, fmt.Errorf("%w: DH3: %v", ErrCryptoError, err)
	}

	secrets := [][32]byte{dh1, dh2, dh3}
	if selfOneTime != nil {
		dh4, err := crypto.DeriveSharedSecret(initiatorEphemeral, selfOneTime.Private)
		if err != nil {
			return rootKey, fmt.Errorf("%w: DH4: %v", ErrCryptoError, err)
		}
		secrets = append(secrets, dh4)
	}

	return combineSecrets(secrets), nil
}

// combineSecrets concatenates the X3DH DH outputs and runs them through the
// same HMAC-based expansion used for the ratchet's root chain, seeded with
// an all-zero root key as the X3DH specification's KDF step prescribes.
func combineSecrets(secrets [][32]byte) [32]byte {
	var input []byte
	for _, s := range secrets {
		input = append(input, s[:]...)
	}
	var zeroRoot [32]byte
	var buf [32]byte
	copy(buf[:], hkdfExpand(append(zeroRoot[:], input...), 32))
	return buf
}
