package nyxcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nyxtalk/nyxcore/commandbus"
	"github.com/nyxtalk/nyxcore/crypto"
	"github.com/nyxtalk/nyxcore/delivery"
	"github.com/nyxtalk/nyxcore/dht"
	"github.com/nyxtalk/nyxcore/identity"
	"github.com/nyxtalk/nyxcore/network"
	"github.com/nyxtalk/nyxcore/session"
	"github.com/nyxtalk/nyxcore/storage"
	"github.com/nyxtalk/nyxcore/synccore"
	"github.com/nyxtalk/nyxcore/transport"
	"github.com/sirupsen/logrus"
)

// Options configures a Client at construction time, following the
// teacher's NewOptions functional-defaults pattern (toxcore.go's
// Options/NewOptions) generalized with the timeouts and URLs spec.md
// §4.9/§6/§5 call for.
type Options struct {
	// StartPort/EndPort bound the UDP port range Client binds to, tried
	// in order exactly as toxcore.New does.
	StartPort uint16
	EndPort   uint16

	// RegistryURL is the identity registry's base URL (spec.md §6). Left
	// empty, RegisterUsername/LookupUsername return CodeFeatureUnavailable.
	RegistryURL string

	// StoreForwardURL is the offline-message-store service's base URL
	// (spec.md §4.5 tier 3). Left empty, the Delivery Engine's chain
	// stops at relay.
	StoreForwardURL string

	// RelayServers seeds the TCP relay client's candidate list.
	RelayServers []transport.RelayServerInfo

	// OneTimePrekeyCount is the initial one-time prekey pool size.
	OneTimePrekeyCount int

	// CommandQueueCapacity bounds the Command Bus's queue.
	CommandQueueCapacity int

	// DefaultCallTimeout bounds how long a synchronous Host Interface
	// call blocks on the Command Bus reply when the caller's own context
	// carries no deadline (spec.md §4.9, §5).
	DefaultCallTimeout time.Duration

	// RegistryTimeout bounds a single identity-registry HTTP round trip.
	RegistryTimeout time.Duration

	// SyncInterval is how often linked devices are sent a state-hash sync
	// probe (spec.md §4.7's "whenever a linked device is reachable" is
	// implemented as a periodic tick plus an on-demand trigger).
	SyncInterval time.Duration

	// EventBufferSize bounds the event-dispatch channel (spec.md §4.9's
	// dedicated dispatch thread).
	EventBufferSize int
}

// DefaultOptions returns sane defaults, mirroring toxcore.NewOptions.
func DefaultOptions() *Options {
	return &Options{
		StartPort:            33445,
		EndPort:              33545,
		OneTimePrekeyCount:   20,
		CommandQueueCapacity: commandbus.DefaultQueueCapacity,
		DefaultCallTimeout:   10 * time.Second,
		RegistryTimeout:      10 * time.Second,
		SyncInterval:         30 * time.Second,
		EventBufferSize:      256,
	}
}

// identityFile is the key-material file named in spec.md §6's persisted
// state layout ("one key-material file encrypted at rest with a
// device-derived key"). Encryption-at-rest of this file is an Open
// Question in spec.md §9 deferred to a host-provided device key; until a
// host wrapper supplies one this file is protected only by filesystem
// permissions (0600).
const identityFile = "identity.key"

type identitySeed struct {
	EncryptPrivate [32]byte `json:"encrypt_private"`
	SignSeed       [32]byte `json:"sign_seed"`
}

// Client is the single opaque handle spec.md §4.9 describes: it
// aggregates every component and is safe to share across host threads.
// It is the renamed, peer-ID-addressed, spec-driven replacement for the
// teacher's *Tox.
type Client struct {
	opts    *Options
	dataDir string

	store    *storage.Store
	identity *identity.Identity
	prekeys  *identity.PrekeyBundle
	registry *identity.RegistryClient

	sessions *session.Manager

	netRegistry *network.Registry
	netAdapter  *network.Adapter
	dhtTable    *dht.RoutingTable
	bootstrap   *dht.BootstrapManager
	relay       *transport.RelayClient

	engine *delivery.Engine
	sync   *synccore.Service

	bus       *commandbus.Bus
	busCancel context.CancelFunc
	busDone   chan struct{}

	events     chan Event
	eventSink  atomic.Pointer[EventSink]
	eventDone  chan struct{}
	tickerDone chan struct{}

	groupsMu sync.Mutex
	groups   map[string]*groupState

	calls          *callManager
	callSessionsMu sync.Mutex
	callSessions   map[string]io.Closer

	closed int32
}

// New opens (or initializes) persisted state under dataDir and returns a
// ready-to-use Client. Bootstrap and ListenOn must still be called to
// join the P2P network; New only prepares local state and binds a UDP
// socket, mirroring toxcore.New's separation of construction from
// network activity.
func New(dataDir string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := logrus.WithFields(logrus.Fields{"function": "New", "package": "nyxcore"})

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", storage.ErrStorageUnavailable, err)
	}

	store, err := storage.Open(filepath.Join(dataDir, "nyxcore.db"))
	if err != nil {
		return nil, err
	}

	id, err := loadOrCreateIdentity(dataDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	prekeys, err := identity.NewPrekeyBundle(id, opts.OneTimePrekeyCount)
	if err != nil {
		store.Close()
		return nil, err
	}

	var udpTransport *transport.UDPTransport
	for port := opts.StartPort; port <= opts.EndPort; port++ {
		addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(int(port)))
		impl, bindErr := transport.NewUDPTransport(addr)
		if bindErr != nil {
			continue
		}
		var ok bool
		udpTransport, ok = impl.(*transport.UDPTransport)
		if ok {
			break
		}
	}
	if udpTransport == nil {
		store.Close()
		return nil, fmt.Errorf("%w: failed to bind any UDP port in [%d,%d]", delivery.ErrAllStrategiesFailed, opts.StartPort, opts.EndPort)
	}

	toxID := crypto.NewToxID(id.EncryptKeyPair().Public, [4]byte{})
	dhtTable := dht.NewRoutingTable(*toxID, 8)
	bootstrapMgr := dht.NewBootstrapManager(*toxID, udpTransport, dhtTable)

	netRegistry := network.NewRegistry()
	acks := delivery.NewAckTracker()

	sessions := session.NewManager(id, store)

	relayClient := transport.NewRelayClient(id.EncryptKeyPair().Public)
	for _, rs := range opts.RelayServers {
		relayClient.AddRelayServer(rs)
	}

	direct := delivery.NewDirectStrategy(nil, netRegistry, acks) // transport attached below
	relayStrategy := delivery.NewRelayStrategy(relayClient, netRegistry, acks)

	var storeFwd *delivery.StoreForwardStrategy
	if opts.StoreForwardURL != "" {
		storeFwd = delivery.NewStoreForwardStrategy(opts.StoreForwardURL, nil)
	}

	engine := delivery.NewEngine(store, acks, direct, relayStrategy, storeFwd)

	c := &Client{
		opts:         opts,
		dataDir:      dataDir,
		store:        store,
		identity:     id,
		prekeys:      prekeys,
		sessions:     sessions,
		netRegistry:  netRegistry,
		dhtTable:     dhtTable,
		bootstrap:    bootstrapMgr,
		relay:        relayClient,
		engine:       engine,
		events:       make(chan Event, opts.EventBufferSize),
		eventDone:    make(chan struct{}),
		tickerDone:   make(chan struct{}),
		groups:       make(map[string]*groupState),
		callSessions: make(map[string]io.Closer),
		bus:          commandbus.New(opts.CommandQueueCapacity),
	}

	if opts.RegistryURL != "" {
		c.registry = identity.NewRegistryClient(opts.RegistryURL, nil)
	}

	c.netAdapter = network.NewAdapter(udpTransport, netRegistry, c.handleInboundFrame, c.handleInboundAck)
	direct.SetTransport(c.netAdapter)

	syncSvc, err := synccore.NewService(id.PeerID(), store, c)
	if err != nil {
		store.Close()
		udpTransport.Close()
		return nil, err
	}
	c.sync = syncSvc

	c.calls = newCallManager(c)

	busCtx, cancel := context.WithCancel(context.Background())
	c.busCancel = cancel
	c.busDone = make(chan struct{})
	go func() {
		defer close(c.busDone)
		c.bus.Run(busCtx)
	}()

	go c.dispatchEvents()
	go c.syncTicker()

	logger.WithField("peer_id", id.PeerID()).Info("client initialized")
	return c, nil
}

func loadOrCreateIdentity(dataDir string) (*identity.Identity, error) {
	path := filepath.Join(dataDir, identityFile)
	blob, err := os.ReadFile(path)
	if err == nil {
		var seed identitySeed
		if jsonErr := json.Unmarshal(blob, &seed); jsonErr != nil {
			return nil, fmt.Errorf("%w: decode identity file: %v", storage.ErrStorageUnavailable, jsonErr)
		}
		return identity.FromSeed(seed.EncryptPrivate, seed.SignSeed)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: read identity file: %v", storage.ErrStorageUnavailable, err)
	}

	id, genErr := identity.New()
	if genErr != nil {
		return nil, genErr
	}

	// Persist the seed material so the same identity (and thus peer ID)
	// survives restart. FromSeed only needs the raw private scalars, not
	// the derived public keys.
	seed := identitySeed{
		EncryptPrivate: id.EncryptKeyPair().Private,
		SignSeed:       id.SignSeed(),
	}

	data, jsonErr := json.Marshal(seed)
	if jsonErr != nil {
		return nil, fmt.Errorf("%w: encode identity file: %v", storage.ErrStorageUnavailable, jsonErr)
	}
	if writeErr := os.WriteFile(path, data, 0o600); writeErr != nil {
		return nil, fmt.Errorf("%w: write identity file: %v", storage.ErrStorageUnavailable, writeErr)
	}
	return id, nil
}

// Close releases every resource the Client holds: the Command Bus owner
// goroutine, the event dispatcher, the UDP socket, the relay client, and
// the database handle.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	close(c.tickerDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.bus.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("command bus shutdown timed out")
	}
	c.busCancel()
	<-c.busDone

	close(c.events)
	<-c.eventDone

	if err := c.relay.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close relay client")
	}
	if err := c.netAdapter.Close(); err != nil {
		logrus.WithError(err).Warn("failed to close network adapter")
	}
	if err := c.identity.Close(); err != nil {
		logrus.WithError(err).Warn("failed to wipe identity key material")
	}
	return c.store.Close()
}

// submit runs fn on the Command Bus owner goroutine and blocks until it
// completes, applying opts.DefaultCallTimeout when ctx carries no
// deadline of its own (spec.md §4.9, §5). Errors are translated to the
// public tagged variant before returning.
func submit[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.DefaultCallTimeout)
		defer cancel()
	}

	raw, err := c.bus.Submit(ctx, op, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, translateLocalError(err)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, commandbus.TranslateError(fmt.Errorf("nyxcore: op %q returned unexpected type", op))
	}
	return v, nil
}

// submitAsync is submit's asynchronous counterpart, returning a Future
// the caller can Await on its own schedule.
func submitAsync[T any](c *Client, op string, fn func(ctx context.Context) (T, error)) *commandbus.Future[T] {
	return commandbus.SubmitTyped(c.bus, op, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, translateLocalError(err)
		}
		return v, nil
	})
}

// translateLocalError extends commandbus.TranslateError with the Host
// Interface's own sentinels (ErrFeatureUnavailable, ErrCallAlreadyActive),
// which commandbus cannot know about without importing this package.
func translateLocalError(err error) *commandbus.TaggedError {
	switch {
	case errors.Is(err, ErrFeatureUnavailable):
		return &commandbus.TaggedError{Code: commandbus.CodeFeatureUnavailable, Cause: err}
	case errors.Is(err, ErrCallAlreadyActive):
		return &commandbus.TaggedError{Code: commandbus.CodeAlreadyExists, Cause: err}
	default:
		return commandbus.TranslateError(err)
	}
}

// ErrorCode, TaggedError, and the Code* constants re-export the Command
// Bus's public error taxonomy (spec.md §7) so host shells only ever
// import the root package.
type (
	ErrorCode   = commandbus.ErrorCode
	TaggedError = commandbus.TaggedError
)

const (
	CodeInternal           = commandbus.CodeInternal
	CodeNotInitialized     = commandbus.CodeNotInitialized
	CodeInvalidInput       = commandbus.CodeInvalidInput
	CodeNotFound           = commandbus.CodeNotFound
	CodeAlreadyExists      = commandbus.CodeAlreadyExists
	CodeUnauthorized       = commandbus.CodeUnauthorized
	CodeCryptoError        = commandbus.CodeCryptoError
	CodeStorageError       = commandbus.CodeStorageError
	CodeNetworkUnreachable = commandbus.CodeNetworkUnreachable
	CodeTimeout            = commandbus.CodeTimeout
	CodeRateLimited        = commandbus.CodeRateLimited
	CodeFeatureUnavailable = commandbus.CodeFeatureUnavailable
)

// Future is the Host Interface's async return type (spec.md §4.9), a
// thin rename of commandbus.Future for host-facing signatures.
type Future[T any] = commandbus.Future[T]

// ErrFeatureUnavailable is returned by an operation that requires a
// capability not compiled into this build (spec.md §7's
// FeatureUnavailable), e.g. call operations in a "noav" build.
var ErrFeatureUnavailable = fmt.Errorf("nyxcore: feature not available in this build")
