package synccore

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nyxtalk/nyxcore/crypto"
	"github.com/nyxtalk/nyxcore/identity"
)

// LinkTokenValidity is how long a freshly-generated bootstrap token may be
// redeemed before it expires, matching the short-lived, single-use nature
// of a QR code shown once on screen.
const LinkTokenValidity = 5 * time.Minute

// LinkToken is the out-of-band shared secret a new device scans as a QR
// code to join an existing identity's linked-device set (spec.md §4.7).
// It carries the issuing device's identity so the joiner can address
// sync messages to it, plus a fresh ephemeral X25519 public key that the
// join request's signature is bound to. No key agreement is run with it.
type LinkToken struct {
	IssuerPeerID   string            `json:"issuer_peer_id"`
	IssuerSignPub  ed25519.PublicKey `json:"issuer_sign_pub"`
	EphemeralPub   [32]byte          `json:"ephemeral_pub"`
	IssuedAt       time.Time         `json:"issued_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
}

// linkEphemeral pairs the token's public half with the private key the
// issuing device must retain in memory until the join completes or the
// token expires.
type linkEphemeral struct {
	token   LinkToken
	private *crypto.KeyPair
}

// NewLinkToken generates a fresh bootstrap token for id, to be rendered
// as a QR code by the host shell. The caller must retain the returned
// ephemeral key pair to complete CompleteLink once the new device
// responds.
func NewLinkToken(id *identity.Identity) (LinkToken, *crypto.KeyPair, error) {
	ephemeral, err := crypto.GenerateKeyPair()
	if err != nil {
		return LinkToken{}, nil, fmt.Errorf("synccore: generate link ephemeral: %w", err)
	}

	now := time.Now()
	token := LinkToken{
		IssuerPeerID:  id.PeerID(),
		IssuerSignPub: id.SignPublicKey(),
		EphemeralPub:  ephemeral.Public,
		IssuedAt:      now,
		ExpiresAt:     now.Add(LinkTokenValidity),
	}
	return token, ephemeral, nil
}

// EncodeQR renders a LinkToken as the opaque string a host shell encodes
// into a QR code image.
func EncodeQR(token LinkToken) (string, error) {
	blob, err := json.Marshal(token)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(blob), nil
}

// DecodeQR parses a scanned QR payload back into a LinkToken.
func DecodeQR(qr string) (LinkToken, error) {
	blob, err := base64.URLEncoding.DecodeString(qr)
	if err != nil {
		return LinkToken{}, err
	}
	var token LinkToken
	if err := json.Unmarshal(blob, &token); err != nil {
		return LinkToken{}, err
	}
	return token, nil
}

// JoinRequest is what the new device sends back to the issuer after
// scanning the QR code: its own identity and a fresh ephemeral public
// key, signed to prove possession of the identity's private signing key
// (the same "sign a short string, verify against the claimed public key"
// pattern identity.RegistryClient uses for registration).
type JoinRequest struct {
	JoinerPeerID  string            `json:"joiner_peer_id"`
	JoinerSignPub ed25519.PublicKey `json:"joiner_sign_pub"`
	JoinerEncPub  [32]byte          `json:"joiner_enc_pub"`
	EphemeralPub  [32]byte          `json:"ephemeral_pub"`
	Signature     []byte            `json:"signature"`
}

// joinSigningMessage binds every field of the join request the issuer
// cares about into the signed message, so altering any one of them after
// signing (peer ID, encryption key, or ephemeral key) invalidates the
// signature rather than silently going unchecked.
func joinSigningMessage(issuerPeerID string, tokenEphemeral [32]byte, joinerPeerID string, joinerEncPub, ephemeralPub [32]byte) []byte {
	return []byte(fmt.Sprintf("nyxcore-link:%s:%x:%s:%x:%x", issuerPeerID, tokenEphemeral, joinerPeerID, joinerEncPub, ephemeralPub))
}

// CreateJoinRequest is called on the new device after it scans the QR
// code. It proves ownership of its own identity by signing a message that
// binds the request to the specific token it scanned, so a captured
// request cannot be replayed against a different link session.
func CreateJoinRequest(joiner *identity.Identity, token LinkToken) (JoinRequest, *crypto.KeyPair, error) {
	ephemeral, err := crypto.GenerateKeyPair()
	if err != nil {
		return JoinRequest{}, nil, fmt.Errorf("synccore: generate join ephemeral: %w", err)
	}

	req := JoinRequest{
		JoinerPeerID:  joiner.PeerID(),
		JoinerSignPub: joiner.SignPublicKey(),
		JoinerEncPub:  joiner.EncryptKeyPair().Public,
		EphemeralPub:  ephemeral.Public,
	}
	req.Signature = joiner.Sign(joinSigningMessage(token.IssuerPeerID, token.EphemeralPub, req.JoinerPeerID, req.JoinerEncPub, req.EphemeralPub))
	return req, ephemeral, nil
}

// CompleteLink is run on the issuing device once a JoinRequest arrives. It
// verifies the joiner's signature and checks the token hasn't expired.
// It only authorizes the join; the caller still establishes the first
// pairwise session between the two devices as an ordinary X3DH exchange
// via session.Manager.EstablishOutbound/EstablishInbound, then calls
// Service.LinkDevice once that session is ready.
func CompleteLink(eph linkEphemeral, req JoinRequest) error {
	if time.Now().After(eph.token.ExpiresAt) {
		return ErrLinkTokenExpired
	}
	msg := joinSigningMessage(eph.token.IssuerPeerID, eph.token.EphemeralPub, req.JoinerPeerID, req.JoinerEncPub, req.EphemeralPub)
	if !ed25519.Verify(req.JoinerSignPub, msg, req.Signature) {
		return ErrLinkSignatureInvalid
	}
	return nil
}

// PendingLink bundles a generated token with its ephemeral key pair for
// the issuing host shell to hold until the join completes.
type PendingLink struct {
	Token     LinkToken
	Ephemeral *crypto.KeyPair
}

// NewPendingLink is the host-facing constructor for a link session.
func NewPendingLink(id *identity.Identity) (PendingLink, error) {
	token, ephemeral, err := NewLinkToken(id)
	if err != nil {
		return PendingLink{}, err
	}
	return PendingLink{Token: token, Ephemeral: ephemeral}, nil
}

// Complete verifies and finalizes a join request against this pending
// link.
func (p PendingLink) Complete(req JoinRequest) error {
	return CompleteLink(linkEphemeral{token: p.Token, private: p.Ephemeral}, req)
}
