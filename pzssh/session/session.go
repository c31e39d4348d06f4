package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	q "github.com/quic-go/quic-go"

	"github.com/TheusHen/pzssh/pzssh/compress"
	"github.com/TheusHen/pzssh/pzssh/crypto"
	"github.com/TheusHen/pzssh/pzssh/identity"
	"github.com/TheusHen/pzssh/pzssh/protocol"
)

var (
	ErrUnknownCipher   = errors.New("session: unknown cipher suite")
	ErrMessageTooLarge = errors.New("session: message too large")
	ErrNoConnection    = errors.New("session: no QUIC connection")
	ErrClosed          = errors.New("session: closed by peer")
)

// Session is an authenticated, encrypted session. Messages sent with Send
// travel on the control stream under the negotiated suite; additional QUIC
// streams are available through OpenStream and AcceptStream.
type Session struct {
	conn         q.Connection
	control      io.ReadWriter
	controlID    q.StreamID
	localPeerID  identity.PeerID
	remotePeerID identity.PeerID
	caps         map[string]string
	suite        string
	codec        compress.Codec
	sessionID    []byte
	ticket       []byte

	sendMu sync.Mutex
	recvMu sync.Mutex

	// chacha20-poly1305
	channel *crypto.SecureChannel

	// aes128-ctr
	packetOut *protocol.PacketWriter
	packetIn  *protocol.PacketReader
}

// installKeys derives the directional keys from K and H with the SSH key
// schedule. The session identifier is H of this handshake.
func (s *Session) installKeys(shared, h []byte, isClient bool) error {
	key := func(letter byte, size int) []byte {
		return crypto.DeriveSSHKey(shared, h, letter, s.sessionID, size)
	}
	ivOut, ivIn := crypto.KeyIVClientToServer, crypto.KeyIVServerToClient
	encOut, encIn := crypto.KeyCipherClientToServer, crypto.KeyCipherServerToClient
	macOut, macIn := crypto.KeyMACClientToServer, crypto.KeyMACServerToClient
	if !isClient {
		ivOut, ivIn = ivIn, ivOut
		encOut, encIn = encIn, encOut
		macOut, macIn = macIn, macOut
	}

	switch s.suite {
	case protocol.CipherChaCha20Poly1305:
		ch, err := crypto.NewEstablishedChannel(key(encOut, 32), key(encIn, 32))
		if err != nil {
			return err
		}
		s.channel = ch
	case protocol.CipherAES128CTR:
		w, err := protocol.NewPacketWriter(s.control, key(encOut, protocol.PacketKeySize), key(ivOut, protocol.PacketIVSize), key(macOut, protocol.PacketMACSize), nil)
		if err != nil {
			return err
		}
		r, err := protocol.NewPacketReader(s.control, key(encIn, protocol.PacketKeySize), key(ivIn, protocol.PacketIVSize), key(macIn, protocol.PacketMACSize))
		if err != nil {
			return err
		}
		s.packetOut, s.packetIn = w, r
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCipher, s.suite)
	}
	return nil
}

// Send encrypts msg and writes it to the control stream.
func (s *Session) Send(msg []byte) error {
	packed := s.codec.Pack(msg)

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	switch s.suite {
	case protocol.CipherChaCha20Poly1305:
		ct, err := s.channel.Encrypt(packed, s.sessionID)
		if err != nil {
			return err
		}
		if len(ct) > protocol.MaxFramePayload {
			return ErrMessageTooLarge
		}
		return protocol.WriteFrame(s.control, protocol.Frame{Type: protocol.MessageTypeData, Payload: ct})
	case protocol.CipherAES128CTR:
		if len(packed) > protocol.MaxPacketPayload {
			return ErrMessageTooLarge
		}
		return s.packetOut.WritePacket(packed)
	default:
		return ErrUnknownCipher
	}
}

// Recv reads and decrypts the next message from the control stream.
func (s *Session) Recv() ([]byte, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	var packed []byte
	switch s.suite {
	case protocol.CipherChaCha20Poly1305:
		f, err := protocol.ReadFrame(s.control)
		if err != nil {
			return nil, err
		}
		switch f.Type {
		case protocol.MessageTypeData:
		case protocol.MessageTypeClose:
			return nil, ErrClosed
		default:
			return nil, fmt.Errorf("%w: %s", protocol.ErrInvalidType, f.Type)
		}
		if packed, err = s.channel.Decrypt(f.Payload, s.sessionID); err != nil {
			return nil, err
		}
	case protocol.CipherAES128CTR:
		var err error
		if packed, err = s.packetIn.ReadPacket(); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownCipher
	}
	return s.codec.Unpack(packed)
}

// Close tells the peer the session is over and closes the control stream.
func (s *Session) Close() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	var err error
	if s.suite == protocol.CipherChaCha20Poly1305 {
		err = protocol.WriteFrame(s.control, protocol.Frame{Type: protocol.MessageTypeClose})
	}
	if c, ok := s.control.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func (s *Session) Connection() q.Connection { return s.conn }

func (s *Session) LocalPeerID() identity.PeerID { return s.localPeerID }

func (s *Session) RemotePeerID() identity.PeerID { return s.remotePeerID }

// Cipher returns the negotiated cipher suite.
func (s *Session) Cipher() string { return s.suite }

// Compression returns the negotiated compression method.
func (s *Session) Compression() string { return s.codec.Method() }

// ID returns the session identifier, the exchange hash of the handshake.
func (s *Session) ID() []byte { return append([]byte(nil), s.sessionID...) }

// Ticket returns the opaque resumption ticket issued by the server, if any.
func (s *Session) Ticket() []byte { return append([]byte(nil), s.ticket...) }

func (s *Session) RemoteCapabilities() map[string]string {
	out := map[string]string{}
	for k, v := range s.caps {
		out[k] = v
	}
	return out
}

// OpenStream opens an application data stream.
func (s *Session) OpenStream(ctx context.Context) (q.Stream, error) {
	if s.conn == nil {
		return nil, ErrNoConnection
	}
	return s.conn.OpenStreamSync(ctx)
}

// AcceptStream accepts an application data stream, skipping the control stream.
func (s *Session) AcceptStream(ctx context.Context) (q.Stream, error) {
	if s.conn == nil {
		return nil, ErrNoConnection
	}
	for {
		st, err := s.conn.AcceptStream(ctx)
		if err != nil {
			return nil, err
		}
		if st.StreamID() == s.controlID {
			_ = st.Close()
			continue
		}
		return st, nil
	}
}

func (s *Session) CloseWithError(code q.ApplicationErrorCode, msg string) error {
	if s.conn == nil {
		return ErrNoConnection
	}
	return s.conn.CloseWithError(code, msg)
}
