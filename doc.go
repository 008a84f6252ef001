// Package nyxcore implements the embeddable core of a peer-to-peer,
// end-to-end-encrypted instant-messaging client: identity and key
// management, a Double Ratchet crypto session per peer, DHT-based peer
// discovery and NAT-traversing transport, a three-tier delivery engine
// (direct, relay, store-and-forward), a CRDT-backed multi-device sync
// core, and an optional voice/video calling pipeline. Host shells
// (Android, iOS, desktop) embed this package and drive it exclusively
// through the Client facade.
//
// # Getting started
//
//	client, err := nyxcore.New("/var/lib/myapp", nyxcore.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.SetEventCallback(func(ev nyxcore.Event) {
//	    if ev.Kind == nyxcore.EventMessageReceived {
//	        fmt.Println("got:", ev.Message.Plaintext)
//	    }
//	})
//
//	if err := client.Bootstrap(context.Background(), nil); err != nil {
//	    log.Fatal(err)
//	}
//	_, err = client.SendText(context.Background(), peerID, "hello")
//
// # Thread safety
//
// Client is safe for concurrent use from any host thread. Every
// network-touching operation is serialized onto a single owner goroutine
// through the Command Bus (package commandbus); Storage, Crypto Session,
// and Identity components use their own narrower internal locking.
//
// # Integration architecture
//
// Client aggregates:
//
//   - [storage]: the local SQLite-backed record store
//   - [identity]: long-term device identity, prekey bundles, registry client
//   - [session]: X3DH handshake and Double Ratchet per-peer encryption
//   - [network]/[dht]/[transport]: peer discovery and NAT-traversing transport
//   - [delivery]: the three-tier delivery engine
//   - [synccore]: multi-device CRDT state sync
//   - [commandbus]: the single-consumer command queue serializing access
//     to the network owner goroutine
//   - a pion/webrtc-backed calling pipeline (calls.go, av_enabled.go),
//     compiled in unless built with the "noav" build tag (av_disabled.go)
package nyxcore
