package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	q "github.com/quic-go/quic-go"

	"github.com/TheusHen/pzssh/pzssh/compress"
	"github.com/TheusHen/pzssh/pzssh/crypto"
	"github.com/TheusHen/pzssh/pzssh/crypto/ec"
	"github.com/TheusHen/pzssh/pzssh/identity"
	"github.com/TheusHen/pzssh/pzssh/protocol"
)

var (
	ErrHandshakeExpectedHello = errors.New("session: handshake expected HELLO")
	ErrUnexpectedPeer         = errors.New("session: remote peer does not match expected PeerID")
)

// DefaultCiphers is the cipher preference used when HandshakeOptions.Ciphers is empty.
var DefaultCiphers = []string{protocol.CipherChaCha20Poly1305, protocol.CipherAES128CTR}

// DefaultCompressions is used when HandshakeOptions.Compressions is empty.
var DefaultCompressions = []string{compress.MethodNone, compress.MethodLZ4}

type HandshakeOptions struct {
	Capabilities map[string]string
	// Ciphers and Compressions list supported algorithms in preference
	// order. The client's order decides.
	Ciphers      []string
	Compressions []string
	// ExpectedPeer, if non-zero, must match the remote host key.
	ExpectedPeer identity.PeerID
	// Tickets, on the server, issues a resumption ticket to each client.
	Tickets *TicketStore
	Logger  *slog.Logger
}

func (o HandshakeOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o HandshakeOptions) ciphers() []string {
	if len(o.Ciphers) > 0 {
		return o.Ciphers
	}
	return DefaultCiphers
}

func (o HandshakeOptions) compressions() []string {
	if len(o.Compressions) > 0 {
		return o.Compressions
	}
	return DefaultCompressions
}

// HandshakeClient performs the session handshake as a client.
// The client opens a dedicated control stream.
func HandshakeClient(ctx context.Context, conn q.Connection, kp identity.KeyPair, opts HandshakeOptions) (*Session, error) {
	control, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	s, err := Client(ctx, control, kp, opts)
	if err != nil {
		control.CancelRead(0)
		_ = control.Close()
		return nil, err
	}
	s.conn = conn
	s.controlID = control.StreamID()
	return s, nil
}

// HandshakeServer performs the session handshake as a server.
// The server accepts a dedicated control stream (opened by the client).
func HandshakeServer(ctx context.Context, conn q.Connection, kp identity.KeyPair, opts HandshakeOptions) (*Session, error) {
	control, err := conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	s, err := Server(ctx, control, kp, opts)
	if err != nil {
		control.CancelRead(0)
		_ = control.Close()
		return nil, err
	}
	s.conn = conn
	s.controlID = control.StreamID()
	return s, nil
}

// Client runs the client side of the handshake over an established stream.
func Client(ctx context.Context, control io.ReadWriter, kp identity.KeyPair, opts HandshakeOptions) (*Session, error) {
	return handshake(ctx, control, kp, opts, true)
}

// Server runs the server side of the handshake over an established stream.
func Server(ctx context.Context, control io.ReadWriter, kp identity.KeyPair, opts HandshakeOptions) (*Session, error) {
	return handshake(ctx, control, kp, opts, false)
}

type deadliner interface {
	SetDeadline(time.Time) error
}

// handshake exchanges HELLOs, agrees on algorithms, runs ephemeral ECDH,
// signs the exchange hash in both directions and derives the traffic keys.
//
//	client                     server
//	HELLO(Vc)       ─────▶
//	                ◀─────     HELLO(Vs)
//	AUTH(sig_c(H))  ─────▶
//	                ◀─────     AUTH(sig_s(H))
//	                ◀─────     TICKET
func handshake(ctx context.Context, control io.ReadWriter, kp identity.KeyPair, opts HandshakeOptions, isClient bool) (*Session, error) {
	log := opts.logger().With("role", role(isClient), "local", kp.PeerID().String())

	if d, ok := control.(deadliner); ok {
		if deadline, ok := ctx.Deadline(); ok {
			_ = d.SetDeadline(deadline)
			defer d.SetDeadline(time.Time{})
		}
	}

	eph, err := crypto.GenerateECDH(ec.P256())
	if err != nil {
		return nil, err
	}
	localHello, err := protocol.NewHello(kp, eph.PublicKey, opts.ciphers(), opts.compressions(), opts.Capabilities)
	if err != nil {
		return nil, err
	}
	localRaw, err := protocol.EncodeHello(localHello)
	if err != nil {
		return nil, err
	}

	var remoteRaw []byte
	if isClient {
		if err := protocol.WriteFrame(control, protocol.Frame{Type: protocol.MessageTypeHello, Payload: localRaw}); err != nil {
			return nil, err
		}
		if remoteRaw, err = readHello(control); err != nil {
			return nil, err
		}
	} else {
		if remoteRaw, err = readHello(control); err != nil {
			return nil, err
		}
		if err := protocol.WriteFrame(control, protocol.Frame{Type: protocol.MessageTypeHello, Payload: localRaw}); err != nil {
			return nil, err
		}
	}
	remoteHello, err := protocol.DecodeHello(remoteRaw)
	if err != nil {
		return nil, err
	}
	remoteID := remoteHello.PeerID()
	if opts.ExpectedPeer != (identity.PeerID{}) && opts.ExpectedPeer != remoteID {
		return nil, fmt.Errorf("%w: got %s", ErrUnexpectedPeer, remoteID)
	}

	clientHello, serverHello := localHello, remoteHello
	clientRaw, serverRaw := localRaw, remoteRaw
	if !isClient {
		clientHello, serverHello = remoteHello, localHello
		clientRaw, serverRaw = remoteRaw, localRaw
	}
	suite, err := protocol.Negotiate(clientHello.Ciphers, serverHello.Ciphers)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	method, err := protocol.Negotiate(clientHello.Compressions, serverHello.Compressions)
	if err != nil {
		return nil, fmt.Errorf("compression: %w", err)
	}
	codec, err := compress.ForMethod(method)
	if err != nil {
		return nil, err
	}

	shared, err := crypto.ECDH(eph, remoteHello.EphemeralKey)
	if err != nil {
		return nil, err
	}

	xh := crypto.NewExchangeHash()
	xh.WriteString(clientRaw)
	xh.WriteString(serverRaw)
	xh.WriteString(clientHello.HostKey)
	xh.WriteString(serverHello.HostKey)
	xh.WriteString(clientHello.EphemeralKey)
	xh.WriteString(serverHello.EphemeralKey)
	xh.WriteMPInt(shared)
	h := xh.Sum()

	auth, err := protocol.NewAuth(kp, h)
	if err != nil {
		return nil, err
	}
	authRaw, err := protocol.EncodeAuth(auth)
	if err != nil {
		return nil, err
	}
	if isClient {
		if err := protocol.WriteFrame(control, protocol.Frame{Type: protocol.MessageTypeAuth, Payload: authRaw}); err != nil {
			return nil, err
		}
		if err := readAuth(control, remoteHello.HostKey, h); err != nil {
			return nil, err
		}
	} else {
		if err := readAuth(control, remoteHello.HostKey, h); err != nil {
			return nil, err
		}
		if err := protocol.WriteFrame(control, protocol.Frame{Type: protocol.MessageTypeAuth, Payload: authRaw}); err != nil {
			return nil, err
		}
	}

	s := &Session{
		control:      control,
		localPeerID:  kp.PeerID(),
		remotePeerID: remoteID,
		caps:         remoteHello.Capabilities,
		suite:        suite,
		codec:        codec,
		sessionID:    h,
	}

	var ticket []byte
	if isClient {
		if ticket, err = protocol.ExpectFrame(control, protocol.MessageTypeTicket); err != nil {
			return nil, err
		}
	} else {
		if opts.Tickets != nil {
			if ticket, err = issueTicket(opts.Tickets, remoteID, shared, h); err != nil {
				return nil, err
			}
		}
		if err := protocol.WriteFrame(control, protocol.Frame{Type: protocol.MessageTypeTicket, Payload: ticket}); err != nil {
			return nil, err
		}
	}
	s.ticket = ticket

	if err := s.installKeys(shared, h, isClient); err != nil {
		return nil, err
	}

	log.Debug("handshake complete",
		"remote", remoteID.String(),
		"cipher", suite,
		"compression", codec.Method(),
		"ticket", len(ticket) > 0,
	)
	return s, nil
}

func readHello(r io.Reader) ([]byte, error) {
	f, err := protocol.ReadFrame(r)
	if err != nil {
		return nil, err
	}
	if f.Type != protocol.MessageTypeHello {
		return nil, ErrHandshakeExpectedHello
	}
	return f.Payload, nil
}

func readAuth(r io.Reader, hostKey, h []byte) error {
	payload, err := protocol.ExpectFrame(r, protocol.MessageTypeAuth)
	if err != nil {
		return err
	}
	auth, err := protocol.DecodeAuth(payload)
	if err != nil {
		return err
	}
	return auth.Verify(hostKey, h)
}

func issueTicket(store *TicketStore, peer identity.PeerID, shared, h []byte) ([]byte, error) {
	key, err := crypto.DeriveKey(shared, h, []byte(resumptionInfo), 32)
	if err != nil {
		return nil, err
	}
	var sessionKey [32]byte
	copy(sessionKey[:], key)
	t, err := store.Issue(peer, sessionKey)
	if err != nil {
		return nil, err
	}
	return store.EncodeTicket(t)
}

const resumptionInfo = "pzssh-resumption"

func role(isClient bool) string {
	if isClient {
		return "client"
	}
	return "server"
}
