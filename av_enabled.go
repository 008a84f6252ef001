//go:build !noav

package nyxcore

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// webrtcSession pairs a pion PeerConnection with the peer it belongs to,
// kept alongside activeCall so hangup/mute/video toggles have something
// concrete to act on (SPEC_FULL.md §4.6 promotes pion/webrtc to a direct
// dependency specifically for this).
type webrtcSession struct {
	pc *webrtc.PeerConnection
}

// Close implements io.Closer so Client.callSessions can hold sessions
// without importing pion/webrtc in the build-tag-free client.go.
func (s *webrtcSession) Close() error {
	return s.pc.Close()
}

var webrtcAPI = webrtc.Configuration{
	ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
}

func newPeerConnection() (*webrtc.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtcAPI)
	if err != nil {
		return nil, fmt.Errorf("nyxcore: create peer connection: %w", err)
	}
	return pc, nil
}

// StartCall places an outbound call to peerID, generating a local SDP
// offer and sending it as call signaling through the Delivery Engine
// (spec.md §4.6: "signaling through the Delivery Engine").
func (c *Client) StartCall(ctx context.Context, peerID string, video bool) (string, error) {
	return submit(ctx, c, "start_call", func(ctx context.Context) (string, error) {
		callID, err := c.calls.startCall(ctx, peerID, video)
		if err != nil {
			return "", err
		}

		pc, err := newPeerConnection()
		if err != nil {
			c.calls.end(peerID)
			return "", err
		}
		c.attachCallTransceivers(pc, video)

		offer, err := pc.CreateOffer(nil)
		if err != nil {
			pc.Close()
			c.calls.end(peerID)
			return "", fmt.Errorf("nyxcore: create offer: %w", err)
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			pc.Close()
			c.calls.end(peerID)
			return "", fmt.Errorf("nyxcore: set local description: %w", err)
		}

		c.storeCallSession(peerID, &webrtcSession{pc: pc})

		sig := callSignal{CallID: callID, Kind: "offer", SDP: offer.SDP, Video: video}
		if err := c.sendCallSignal(ctx, peerID, sig); err != nil {
			c.endCall(peerID)
			return "", err
		}
		return callID, nil
	})
}

// AcceptCall answers an incoming offer: it creates a peer connection,
// moves the call to connecting and sends an "answer" signal. The signal
// carries no SDP, and the offer's SDP is not applied to the connection.
func (c *Client) AcceptCall(ctx context.Context, peerID string) error {
	_, err := submit(ctx, c, "accept_call", func(ctx context.Context) (struct{}, error) {
		call, ok := c.calls.lookup(peerID)
		if !ok {
			return struct{}{}, fmt.Errorf("nyxcore: no incoming call from %s", peerID)
		}

		pc, err := newPeerConnection()
		if err != nil {
			return struct{}{}, err
		}
		c.attachCallTransceivers(pc, call.video)
		c.storeCallSession(peerID, &webrtcSession{pc: pc})

		c.calls.setState(peerID, CallConnecting)
		sig := callSignal{CallID: call.id, Kind: "answer"}
		return struct{}{}, c.sendCallSignal(ctx, peerID, sig)
	})
	return err
}

// RejectCall declines an incoming call without ever establishing media.
func (c *Client) RejectCall(ctx context.Context, peerID string) error {
	_, err := submit(ctx, c, "reject_call", func(ctx context.Context) (struct{}, error) {
		call, ok := c.calls.lookup(peerID)
		if !ok {
			return struct{}{}, nil
		}
		sig := callSignal{CallID: call.id, Kind: "reject"}
		c.calls.end(peerID)
		return struct{}{}, c.sendCallSignal(ctx, peerID, sig)
	})
	return err
}

// HangupCall ends an active or ringing call with peerID.
func (c *Client) HangupCall(ctx context.Context, peerID string) error {
	_, err := submit(ctx, c, "hangup_call", func(ctx context.Context) (struct{}, error) {
		call, ok := c.calls.lookup(peerID)
		if !ok {
			return struct{}{}, nil
		}
		sig := callSignal{CallID: call.id, Kind: "hangup"}
		c.endCall(peerID)
		return struct{}{}, c.sendCallSignal(ctx, peerID, sig)
	})
	return err
}

// ToggleMute logs the requested mute state. No audio track is changed.
func (c *Client) ToggleMute(ctx context.Context, peerID string, muted bool) error {
	_, err := submit(ctx, c, "toggle_mute", func(ctx context.Context) (struct{}, error) {
		logrus.WithFields(logrus.Fields{"function": "ToggleMute", "peer_id": peerID, "muted": muted}).Debug("toggling local audio")
		return struct{}{}, nil
	})
	return err
}

// EnableVideo/DisableVideo log the requested outbound video state. No
// transceiver is changed and the peer connection is not renegotiated.
func (c *Client) EnableVideo(ctx context.Context, peerID string) error {
	return c.setVideoTransceiver(ctx, peerID, true)
}

func (c *Client) DisableVideo(ctx context.Context, peerID string) error {
	return c.setVideoTransceiver(ctx, peerID, false)
}

func (c *Client) setVideoTransceiver(ctx context.Context, peerID string, enabled bool) error {
	_, err := submit(ctx, c, "set_video", func(ctx context.Context) (struct{}, error) {
		logrus.WithFields(logrus.Fields{"function": "setVideoTransceiver", "peer_id": peerID, "enabled": enabled}).Debug("toggling outbound video")
		return struct{}{}, nil
	})
	return err
}

func (c *Client) attachCallTransceivers(pc *webrtc.PeerConnection, video bool) {
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio); err != nil {
		logrus.WithError(err).Warn("failed to add audio transceiver")
	}
	if video {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo); err != nil {
			logrus.WithError(err).Warn("failed to add video transceiver")
		}
	}
}

func (c *Client) storeCallSession(peerID string, sess *webrtcSession) {
	c.callSessionsMu.Lock()
	defer c.callSessionsMu.Unlock()
	c.callSessions[peerID] = sess
}

func (c *Client) endCall(peerID string) {
	c.callSessionsMu.Lock()
	sess, ok := c.callSessions[peerID]
	delete(c.callSessions, peerID)
	c.callSessionsMu.Unlock()
	if ok {
		sess.Close()
	}
	c.calls.end(peerID)
}
