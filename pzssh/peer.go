package pzssh

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"

	"github.com/TheusHen/pzssh/pzssh/discovery"
	"github.com/TheusHen/pzssh/pzssh/identity"
	"github.com/TheusHen/pzssh/pzssh/session"
	"github.com/TheusHen/pzssh/pzssh/transport/quic"
)

var ErrNotListening = errors.New("pzssh: peer is not listening")

// Peer is a high-level helper that combines transport + session.
type Peer struct {
	KeyPair      identity.KeyPair
	Capabilities map[string]string
	// Ciphers and Compressions override the session defaults.
	Ciphers      []string
	Compressions []string
	// Tickets, when set, issues resumption tickets to accepted clients.
	Tickets   *session.TicketStore
	Transport *quic.Config
	Logger    *slog.Logger
	// Resolver, when set, pins host keys: a known address must present its
	// recorded PeerID, and new peers are recorded after a handshake.
	Resolver discovery.Resolver

	listener *quic.Listener
}

func NewPeer(kp identity.KeyPair, capabilities map[string]string) *Peer {
	capsCopy := map[string]string{}
	for k, v := range capabilities {
		capsCopy[k] = v
	}
	return &Peer{KeyPair: kp, Capabilities: capsCopy}
}

func (p *Peer) options() session.HandshakeOptions {
	return session.HandshakeOptions{
		Capabilities: p.Capabilities,
		Ciphers:      p.Ciphers,
		Compressions: p.Compressions,
		Tickets:      p.Tickets,
		Logger:       p.Logger,
	}
}

func (p *Peer) Listen(addr string) error {
	ln, err := quic.Listen(addr, p.Transport)
	if err != nil {
		return err
	}
	p.listener = ln
	return nil
}

func (p *Peer) Close() error {
	if p.listener == nil {
		return nil
	}
	return p.listener.Close()
}

func (p *Peer) ListenAddr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.AddrString()
}

// Accept waits for a connection and runs the server handshake on it.
func (p *Peer) Accept(ctx context.Context) (*session.Session, error) {
	if p.listener == nil {
		return nil, ErrNotListening
	}
	conn, err := p.listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	s, err := session.HandshakeServer(ctx, conn, p.KeyPair, p.options())
	if err != nil {
		_ = conn.CloseWithError(1, "handshake failed")
		return nil, err
	}
	return s, nil
}

// Dial connects to addr and runs the client handshake. If expected is
// non-zero the server must present that PeerID; otherwise the Resolver, if
// any, supplies the PeerID recorded for addr.
func (p *Peer) Dial(ctx context.Context, addr string, expected identity.PeerID) (*session.Session, error) {
	ap, parseErr := netip.ParseAddrPort(addr)
	if expected == (identity.PeerID{}) && p.Resolver != nil && parseErr == nil {
		if info, err := p.Resolver.LookupAddr(ap); err == nil {
			expected = info.PeerID
		} else if !errors.Is(err, discovery.ErrNotFound) {
			return nil, err
		}
	}

	conn, err := quic.Dial(ctx, addr, p.Transport)
	if err != nil {
		return nil, err
	}
	opts := p.options()
	opts.ExpectedPeer = expected
	s, err := session.HandshakeClient(ctx, conn, p.KeyPair, opts)
	if err != nil {
		_ = conn.CloseWithError(1, "handshake failed")
		return nil, err
	}

	if p.Resolver != nil && parseErr == nil {
		err := p.Resolver.Announce(discovery.AddrInfo{
			PeerID:       s.RemotePeerID(),
			Addr:         ap,
			Capabilities: s.RemoteCapabilities(),
		})
		if err != nil {
			_ = s.CloseWithError(1, "resolver")
			return nil, err
		}
	}
	return s, nil
}

// DialPeer resolves peerID through the Resolver and dials it.
func (p *Peer) DialPeer(ctx context.Context, peerID identity.PeerID) (*session.Session, error) {
	if p.Resolver == nil {
		return nil, discovery.ErrNotFound
	}
	info, err := p.Resolver.Lookup(peerID)
	if err != nil {
		return nil, err
	}
	return p.Dial(ctx, info.Addr.String(), peerID)
}
