package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Registry error classes, translated to the public taxonomy (spec.md §7) at
// the Command Bus boundary.
var (
	ErrUsernameTaken     = errors.New("identity: username taken")
	ErrInvalidUsername   = errors.New("identity: invalid username")
	ErrInvalidSignature  = errors.New("identity: invalid signature")
	ErrUsernameNotFound  = errors.New("identity: username not found")
	ErrRegistryRateLimit = errors.New("identity: registry rate limit exceeded")
	ErrRegistryUnreachable = errors.New("identity: registry unreachable")
)

// RegistryClient implements the identity-registry HTTP/JSON API of
// spec.md §6.
type RegistryClient struct {
	baseURL string
	client  *http.Client
}

// NewRegistryClient constructs a client against baseURL. If httpClient is
// nil, a new http.Client with a 10-second timeout is used.
func NewRegistryClient(baseURL string, httpClient *http.Client) *RegistryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RegistryClient{baseURL: baseURL, client: httpClient}
}

type registerRequest struct {
	Username     string `json:"username"`
	PeerID       string `json:"peer_id"`
	PublicKey    string `json:"public_key"`
	PrekeyBundle []byte `json:"prekey_bundle"`
	Signature    []byte `json:"signature"`
	Timestamp    int64  `json:"timestamp"`
}

// RegisterUsername publishes the current bundle, signing
// "register:{username}:{unix_timestamp}" with the identity key, as
// required by spec.md §4.2 and §6.
func (rc *RegistryClient) RegisterUsername(ctx context.Context, id *Identity, username string, peerID string, bundle []byte) error {
	logger := logrus.WithFields(logrus.Fields{"function": "RegisterUsername", "username": username})

	ts := time.Now().Unix()
	msg := fmt.Sprintf("register:%s:%d", username, ts)
	sig := id.Sign([]byte(msg))

	req := registerRequest{
		Username:     username,
		PeerID:       peerID,
		PublicKey:    fmt.Sprintf("%x", id.SignPublicKey()),
		PrekeyBundle: bundle,
		Signature:    sig,
		Timestamp:    ts,
	}

	err := rc.post(ctx, "/api/v1/register", req, nil)
	if err != nil {
		logger.WithError(err).Warn("registration failed")
	}
	return err
}

type lookupResponse struct {
	PeerID       string `json:"peer_id"`
	PrekeyBundle []byte `json:"prekey_bundle"`
	LastUpdated  int64  `json:"last_updated"`
}

// LookupResult is the decoded response of GET /api/v1/lookup.
type LookupResult struct {
	PeerID       string
	PrekeyBundle []byte
	LastUpdated  time.Time
}

// FetchBundle looks up a username (spec.md §4.2's fetch_bundle).
func (rc *RegistryClient) FetchBundle(ctx context.Context, username string) (*LookupResult, error) {
	var resp lookupResponse
	path := "/api/v1/lookup?username=" + url.QueryEscape(username)
	if err := rc.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &LookupResult{
		PeerID:       resp.PeerID,
		PrekeyBundle: resp.PrekeyBundle,
		LastUpdated:  time.Unix(resp.LastUpdated, 0).UTC(),
	}, nil
}

type prekeyPutRequest struct {
	PeerID       string `json:"peer_id"`
	PrekeyBundle []byte `json:"prekey_bundle"`
	Signature    []byte `json:"signature"`
	Timestamp    int64  `json:"timestamp"`
}

// PublishPrekeys updates a peer's stored bundle (PUT /api/v1/prekeys).
func (rc *RegistryClient) PublishPrekeys(ctx context.Context, id *Identity, peerID string, bundle []byte) error {
	ts := time.Now().Unix()
	msg := fmt.Sprintf("register:%s:%d", peerID, ts)
	req := prekeyPutRequest{
		PeerID:       peerID,
		PrekeyBundle: bundle,
		Signature:    id.Sign([]byte(msg)),
		Timestamp:    ts,
	}
	return rc.put(ctx, "/api/v1/prekeys", req)
}

func (rc *RegistryClient) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return fmt.Errorf("identity: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return rc.do(req, out)
}

func (rc *RegistryClient) put(ctx context.Context, path string, in any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return fmt.Errorf("identity: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, rc.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return rc.do(req, nil)
}

func (rc *RegistryClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return rc.do(req, out)
}

func (rc *RegistryClient) do(req *http.Request, out any) error {
	resp, err := rc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out != nil {
			return json.NewDecoder(resp.Body).Decode(out)
		}
		return nil
	case http.StatusConflict:
		return ErrUsernameTaken
	case http.StatusBadRequest:
		var body struct {
			Code string `json:"code"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		if body.Code == "INVALID_SIGNATURE" {
			return ErrInvalidSignature
		}
		return ErrInvalidUsername
	case http.StatusNotFound:
		return ErrUsernameNotFound
	case http.StatusTooManyRequests:
		return ErrRegistryRateLimit
	default:
		return fmt.Errorf("identity: registry returned %s", resp.Status)
	}
}
