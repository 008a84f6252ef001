package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nyxtalk/nyxcore/storage"
	"github.com/sirupsen/logrus"
)

// StoreForwardStrategy posts an already-encrypted frame to the offline-
// message-store service when direct and relay delivery both fail
// (spec.md §4.5 tier 3), and pulls queued frames addressed to the local
// peer on startup and reconnect. It repurposes the teacher's
// async.AsyncClient "store now, retrieve later" shape (there built around
// pseudonymous DHT storage nodes) as a plain HTTP/JSON client against a
// dedicated store service, following identity.RegistryClient's client
// shape (bare *http.Client, status-code-to-sentinel-error mapping).
type StoreForwardStrategy struct {
	baseURL string
	client  *http.Client
}

// NewStoreForwardStrategy constructs a client against the store service's
// base URL.
func NewStoreForwardStrategy(baseURL string, httpClient *http.Client) *StoreForwardStrategy {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &StoreForwardStrategy{baseURL: baseURL, client: httpClient}
}

func (s *StoreForwardStrategy) Path() storage.DeliveryPath { return storage.PathStore }

type storePostRequest struct {
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Cipher    []byte `json:"ciphertext"`
	Signature []byte `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	TTLSecs   int64  `json:"ttl_seconds"`
}

// Send posts the frame to the store service tagged with the recipient and
// a TTL (spec.md §4.5 default 14 days). Store-and-forward has no
// synchronous ack, so a successful POST is the end of this strategy's
// responsibility; the Engine marks the message "sent" but not
// "delivered" until a later ack arrives through the offline pull path.
func (s *StoreForwardStrategy) Send(ctx context.Context, frame Frame) error {
	req := storePostRequest{
		MessageID: frame.MessageID,
		Sender:    frame.SenderPeerID,
		Recipient: frame.RecipientPeerID,
		Cipher:    frame.Ciphertext,
		Signature: frame.Signature,
		Timestamp: frame.Timestamp.Unix(),
		TTLSecs:   int64(StoreTTL.Seconds()),
	}

	logrus.WithFields(logrus.Fields{
		"function":   "StoreForwardStrategy.Send",
		"message_id": frame.MessageID,
		"recipient":  frame.RecipientPeerID,
	}).Info("queuing message in offline store")

	return s.post(ctx, "/api/v1/store", req)
}

type storePullResponse struct {
	Messages []storePostRequest `json:"messages"`
}

// Pull retrieves queued frames addressed to localPeerID, per spec.md
// §4.5's offline-pull requirement ("on startup and on each reconnect").
func (s *StoreForwardStrategy) Pull(ctx context.Context, localPeerID string) ([]Frame, error) {
	var resp storePullResponse
	path := fmt.Sprintf("/api/v1/pull?peer_id=%s", localPeerID)
	if err := s.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		frames = append(frames, Frame{
			MessageID:       m.MessageID,
			SenderPeerID:    m.Sender,
			RecipientPeerID: m.Recipient,
			Ciphertext:      m.Cipher,
			Signature:       m.Signature,
			Timestamp:       unixTime(m.Timestamp),
		})
	}
	return frames, nil
}

func (s *StoreForwardStrategy) post(ctx context.Context, path string, in any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return fmt.Errorf("delivery: encode store request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, nil)
}

func (s *StoreForwardStrategy) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	return s.do(req, out)
}

func (s *StoreForwardStrategy) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery: store service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		if out != nil {
			return json.NewDecoder(resp.Body).Decode(out)
		}
		return nil
	case http.StatusBadRequest:
		return fmt.Errorf("%w: store service rejected request", ErrPermanent)
	default:
		return fmt.Errorf("delivery: store service returned %s", resp.Status)
	}
}
