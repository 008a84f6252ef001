package nyxcore

import (
	"context"
	"fmt"
	"time"

	"github.com/nyxtalk/nyxcore/identity"
	"github.com/nyxtalk/nyxcore/session"
	"github.com/nyxtalk/nyxcore/storage"
)

// AddContact looks up username in the identity registry, verifies the
// returned bundle, and establishes an outbound X3DH session so messages
// can be sent without an extra round trip later (spec.md §4.2's
// add_contact combines lookup and session setup, generalizing the
// teacher's separate AddFriend/AddFriendNoRequest pair into one op since
// there is no friend-request handshake in this protocol).
func (c *Client) AddContact(ctx context.Context, username string) (*storage.Contact, error) {
	return submit(ctx, c, "add_contact", func(ctx context.Context) (*storage.Contact, error) {
		return c.addContact(ctx, username)
	})
}

// AddContactAsync is AddContact's non-blocking counterpart.
func (c *Client) AddContactAsync(username string) *Future[*storage.Contact] {
	return submitAsync(c, "add_contact", func(ctx context.Context) (*storage.Contact, error) {
		return c.addContact(ctx, username)
	})
}

// addContact is the shared, bus-goroutine-only implementation behind
// AddContact/AddContactAsync. It must never be called through submit
// from inside a command already running on the bus goroutine, since the
// bus is single-consumer and a nested Submit would block forever.
func (c *Client) addContact(ctx context.Context, username string) (*storage.Contact, error) {
	if c.registry == nil {
		return nil, fmt.Errorf("%w: no identity registry configured", ErrFeatureUnavailable)
	}

	result, err := c.registry.FetchBundle(ctx, username)
	if err != nil {
		return nil, err
	}

	wb, err := identity.DecodeBundle(result.PrekeyBundle)
	if err != nil {
		return nil, err
	}

	remote := session.RemoteBundle{
		IdentityPublic:  wb.IdentityPublic,
		IdentityEncrypt: wb.IdentityEncrypt,
		SignedPrekey:    wb.SignedPrekey,
		SignedPrekeySig: wb.SignedPrekeySig,
	}
	if len(wb.OneTimePrekeys) > 0 {
		otk := wb.OneTimePrekeys[0]
		remote.OneTimePrekey = &otk
	}

	if _, err := c.sessions.EstablishOutbound(result.PeerID, remote); err != nil {
		return nil, err
	}

	contact := &storage.Contact{
		Username:       username,
		PeerID:         result.PeerID,
		PublicKey:      wb.IdentityEncrypt,
		DisplayName:    username,
		PrekeyBundle:   result.PrekeyBundle,
		BundleCachedAt: time.Now(),
	}
	if err := c.store.UpsertContact(contact); err != nil {
		return nil, err
	}
	c.emit(Event{Kind: EventPeerConnected, PeerID: result.PeerID})
	return contact, nil
}

// ListContacts returns every locally known contact.
func (c *Client) ListContacts(ctx context.Context) ([]*storage.Contact, error) {
	return submit(ctx, c, "list_contacts", func(ctx context.Context) ([]*storage.Contact, error) {
		return c.store.ListContacts()
	})
}

// SearchContacts filters locally known contacts whose username or display
// name contains query (case-insensitive), a client-side convenience spec.md §4.2 groups with the
// other contact operations.
func (c *Client) SearchContacts(ctx context.Context, query string) ([]*storage.Contact, error) {
	return submit(ctx, c, "search_contacts", func(ctx context.Context) ([]*storage.Contact, error) {
		all, err := c.store.ListContacts()
		if err != nil {
			return nil, err
		}
		out := make([]*storage.Contact, 0, len(all))
		for _, ct := range all {
			if containsFold(ct.Username, query) || containsFold(ct.DisplayName, query) {
				out = append(out, ct)
			}
		}
		return out, nil
	})
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	hl, nl := len(haystack), len(needle)
	if nl > hl {
		return false
	}
	toLower := func(b byte) byte {
		if b >= 'A' && b <= 'Z' {
			return b + ('a' - 'A')
		}
		return b
	}
	for i := 0; i+nl <= hl; i++ {
		match := true
		for j := 0; j < nl; j++ {
			if toLower(haystack[i+j]) != toLower(needle[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
