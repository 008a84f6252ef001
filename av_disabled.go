//go:build noav

package nyxcore

import "context"

// StartCall is unavailable in a noav build (spec.md §4.6 / §9's
// compile-time capability switch).
func (c *Client) StartCall(ctx context.Context, peerID string, video bool) (string, error) {
	return "", ErrFeatureUnavailable
}

func (c *Client) AcceptCall(ctx context.Context, peerID string) error {
	return ErrFeatureUnavailable
}

func (c *Client) RejectCall(ctx context.Context, peerID string) error {
	return ErrFeatureUnavailable
}

func (c *Client) HangupCall(ctx context.Context, peerID string) error {
	return ErrFeatureUnavailable
}

func (c *Client) ToggleMute(ctx context.Context, peerID string, muted bool) error {
	return ErrFeatureUnavailable
}

func (c *Client) EnableVideo(ctx context.Context, peerID string) error {
	return ErrFeatureUnavailable
}

func (c *Client) DisableVideo(ctx context.Context, peerID string) error {
	return ErrFeatureUnavailable
}
