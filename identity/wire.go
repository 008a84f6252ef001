package identity

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
)

// WireBundle is the JSON shape a PrekeyBundle takes when published to or
// fetched from the identity registry (spec.md §4.2, §6), following the
// same bare-JSON-over-HTTP convention as registerRequest/lookupResponse
// in registry.go.
type WireBundle struct {
	IdentityPublic  ed25519.PublicKey `json:"identity_public"`
	IdentityEncrypt [32]byte          `json:"identity_encrypt"`
	SignedPrekey    [32]byte          `json:"signed_prekey"`
	SignedPrekeySig []byte            `json:"signed_prekey_sig"`
	OneTimePrekeys  [][32]byte        `json:"one_time_prekeys,omitempty"`
}

// EncodeBundle serializes id's current signed prekey and its remaining
// one-time prekey pool into the wire form published via
// RegistryClient.RegisterUsername/PublishPrekeys.
func EncodeBundle(id *Identity, bundle *PrekeyBundle) ([]byte, error) {
	sp := bundle.CurrentSignedPrekey()
	if sp == nil {
		return nil, fmt.Errorf("identity: bundle has no signed prekey")
	}
	wb := WireBundle{
		IdentityPublic:  id.SignPublicKey(),
		IdentityEncrypt: id.EncryptKeyPair().Public,
		SignedPrekey:    sp.KeyPair.Public,
		SignedPrekeySig: sp.Signature,
		OneTimePrekeys:  bundle.PublicOneTimeKeys(),
	}
	data, err := json.Marshal(wb)
	if err != nil {
		return nil, fmt.Errorf("identity: encode bundle: %w", err)
	}
	return data, nil
}

// DecodeBundle parses a wire-form bundle fetched from the registry,
// verifying the signed prekey's signature against the embedded identity
// public key before returning it. A registry response always carries at
// most one remaining one-time prekey, since the server hands one out per
// lookup, but this client-side decode tolerates the general case.
func DecodeBundle(blob []byte) (WireBundle, error) {
	var wb WireBundle
	if err := json.Unmarshal(blob, &wb); err != nil {
		return WireBundle{}, fmt.Errorf("identity: decode bundle: %w", err)
	}
	if len(wb.IdentityPublic) != ed25519.PublicKeySize {
		return WireBundle{}, fmt.Errorf("identity: malformed identity public key in bundle")
	}
	if !VerifySignedPrekey(wb.IdentityPublic, wb.SignedPrekey, wb.SignedPrekeySig) {
		return WireBundle{}, fmt.Errorf("identity: %w: signed prekey signature", ErrInvalidSignature)
	}
	return wb, nil
}
