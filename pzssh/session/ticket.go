package session

import (
	"errors"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/TheusHen/pzssh/pzssh/crypto"
	"github.com/TheusHen/pzssh/pzssh/crypto/random"
	"github.com/TheusHen/pzssh/pzssh/identity"
)

var (
	ErrTicketExpired  = errors.New("session: ticket expired")
	ErrTicketInvalid  = errors.New("session: ticket invalid")
	ErrTicketNotFound = errors.New("session: ticket not found")
)

const (
	TicketKeySize  = 32
	TicketIDSize   = 16
	TicketLifetime = 24 * time.Hour
)

// Ticket lets a client prove an earlier session to the issuing server.
// Only the issuer can decrypt its wire form.
type Ticket struct {
	ID         [TicketIDSize]byte `cbor:"-"`
	IssuedAt   int64              `cbor:"1,keyasint"`
	ExpiresAt  int64              `cbor:"2,keyasint"`
	PeerID     identity.PeerID    `cbor:"3,keyasint"`
	SessionKey [32]byte           `cbor:"4,keyasint"`
}

func (t *Ticket) expired(now time.Time) bool {
	return now.Unix() > t.ExpiresAt
}

// TicketStore issues and validates tickets.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[[TicketIDSize]byte]*Ticket
	aead    *crypto.AEAD
	now     func() time.Time
}

// NewTicketStore creates a ticket store with a random sealing key.
func NewTicketStore() (*TicketStore, error) {
	key, err := random.Bytes(nil, TicketKeySize)
	if err != nil {
		return nil, err
	}
	var k [TicketKeySize]byte
	copy(k[:], key)
	return NewTicketStoreWithKey(k)
}

// NewTicketStoreWithKey creates a ticket store with a specific key, so that
// several servers can accept each other's tickets.
func NewTicketStoreWithKey(key [TicketKeySize]byte) (*TicketStore, error) {
	aead, err := crypto.NewAEAD(key[:])
	if err != nil {
		return nil, err
	}
	return &TicketStore{
		tickets: make(map[[TicketIDSize]byte]*Ticket),
		aead:    aead,
		now:     time.Now,
	}, nil
}

// Issue creates a new ticket for the given peer and session key.
func (ts *TicketStore) Issue(peerID identity.PeerID, sessionKey [32]byte) (*Ticket, error) {
	id, err := random.Bytes(nil, TicketIDSize)
	if err != nil {
		return nil, err
	}
	now := ts.now()
	ticket := &Ticket{
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(TicketLifetime).Unix(),
		PeerID:     peerID,
		SessionKey: sessionKey,
	}
	copy(ticket.ID[:], id)

	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.tickets[ticket.ID] = ticket
	return ticket, nil
}

// Lookup retrieves and validates a ticket.
func (ts *TicketStore) Lookup(ticketID [TicketIDSize]byte) (*Ticket, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	ticket, ok := ts.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	if ticket.expired(ts.now()) {
		return nil, ErrTicketExpired
	}
	return ticket, nil
}

// Revoke invalidates a ticket.
func (ts *TicketStore) Revoke(ticketID [TicketIDSize]byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.tickets, ticketID)
}

// Cleanup removes expired tickets and reports how many were dropped.
func (ts *TicketStore) Cleanup() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	removed := 0
	for id, ticket := range ts.tickets {
		if ticket.expired(now) {
			delete(ts.tickets, id)
			removed++
		}
	}
	return removed
}

// EncodeTicket seals a ticket for the wire.
// Format: ticketID (16) || sealed CBOR body, with the ID as associated data.
func (ts *TicketStore) EncodeTicket(ticket *Ticket) ([]byte, error) {
	plain, err := cbor.Marshal(ticket)
	if err != nil {
		return nil, err
	}
	sealed, err := ts.aead.Seal(plain, ticket.ID[:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, TicketIDSize+len(sealed))
	out = append(out, ticket.ID[:]...)
	return append(out, sealed...), nil
}

// DecodeTicket opens and validates a ticket from its wire form.
func (ts *TicketStore) DecodeTicket(data []byte) (*Ticket, error) {
	if len(data) < TicketIDSize+ts.aead.NonceSize()+ts.aead.Overhead() {
		return nil, ErrTicketInvalid
	}
	var id [TicketIDSize]byte
	copy(id[:], data[:TicketIDSize])

	plain, err := ts.aead.Open(data[TicketIDSize:], id[:])
	if err != nil {
		return nil, ErrTicketInvalid
	}
	ticket := &Ticket{}
	if err := cbor.Unmarshal(plain, ticket); err != nil {
		return nil, ErrTicketInvalid
	}
	ticket.ID = id
	if ticket.expired(ts.now()) {
		return nil, ErrTicketExpired
	}
	return ticket, nil
}

// Count returns the number of stored tickets.
func (ts *TicketStore) Count() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tickets)
}
