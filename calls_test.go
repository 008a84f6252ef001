package nyxcore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSignalTransport struct {
	mu     sync.Mutex
	sent   []callSignal
	events []Event
}

func (f *fakeSignalTransport) sendCallSignal(ctx context.Context, peerID string, sig callSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sig)
	return nil
}

func (f *fakeSignalTransport) emit(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func TestCallManagerStartCallRejectsDuplicate(t *testing.T) {
	xport := &fakeSignalTransport{}
	cm := newCallManagerFor(xport)

	callID, err := cm.startCall(context.Background(), "peer-1", false)
	require.NoError(t, err)
	require.NotEmpty(t, callID)

	_, err = cm.startCall(context.Background(), "peer-1", false)
	assert.ErrorIs(t, err, ErrCallAlreadyActive)
}

func TestCallManagerSetStateEmitsEvent(t *testing.T) {
	xport := &fakeSignalTransport{}
	cm := newCallManagerFor(xport)

	callID, err := cm.startCall(context.Background(), "peer-1", true)
	require.NoError(t, err)

	cm.setState("peer-1", CallConnecting)

	xport.mu.Lock()
	defer xport.mu.Unlock()
	require.Len(t, xport.events, 1)
	assert.Equal(t, EventCallStateChanged, xport.events[0].Kind)
	assert.Equal(t, CallConnecting, xport.events[0].CallState)
	assert.Equal(t, callID, xport.events[0].CallID)
}

func TestCallManagerEndRemovesCallAndEmitsTerminated(t *testing.T) {
	xport := &fakeSignalTransport{}
	cm := newCallManagerFor(xport)

	_, err := cm.startCall(context.Background(), "peer-1", false)
	require.NoError(t, err)

	cm.end("peer-1")

	_, ok := cm.lookup("peer-1")
	assert.False(t, ok)

	xport.mu.Lock()
	defer xport.mu.Unlock()
	require.Len(t, xport.events, 1)
	assert.Equal(t, CallTerminated, xport.events[0].CallState)
}

func TestCallManagerEndUnknownPeerIsNoop(t *testing.T) {
	xport := &fakeSignalTransport{}
	cm := newCallManagerFor(xport)

	cm.end("never-called")

	xport.mu.Lock()
	defer xport.mu.Unlock()
	assert.Empty(t, xport.events)
}

func TestCallManagerHandleSignalOffer(t *testing.T) {
	xport := &fakeSignalTransport{}
	cm := newCallManagerFor(xport)

	cm.handleSignal("peer-2", callSignal{CallID: "call-xyz", Kind: "offer", Video: true})

	call, ok := cm.lookup("peer-2")
	require.True(t, ok)
	assert.Equal(t, CallRinging, call.state)
	assert.True(t, call.video)

	xport.mu.Lock()
	defer xport.mu.Unlock()
	require.Len(t, xport.events, 1)
	assert.Equal(t, EventCallIncoming, xport.events[0].Kind)
}

func TestCallManagerHandleSignalHangupEndsCall(t *testing.T) {
	xport := &fakeSignalTransport{}
	cm := newCallManagerFor(xport)

	_, err := cm.startCall(context.Background(), "peer-3", false)
	require.NoError(t, err)

	cm.handleSignal("peer-3", callSignal{Kind: "hangup"})

	_, ok := cm.lookup("peer-3")
	assert.False(t, ok)
}

func TestCallStateString(t *testing.T) {
	cases := map[CallState]string{
		CallIdle:       "idle",
		CallRinging:    "ringing",
		CallConnecting: "connecting",
		CallActive:     "active",
		CallTerminated: "terminated",
		CallState(255): "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestEncodeDecodeCallSignalRoundTrip(t *testing.T) {
	sig := callSignal{CallID: "call-1", Kind: "offer", SDP: "v=0\r\n...", Video: true}

	plaintext, err := encodeCallSignal(sig)
	require.NoError(t, err)

	decoded, err := decodeCallSignal(plaintext)
	require.NoError(t, err)
	assert.Equal(t, sig, decoded)
}

func TestDecodeCallSignalRejectsGarbage(t *testing.T) {
	_, err := decodeCallSignal("not json at all")
	assert.Error(t, err)
}
