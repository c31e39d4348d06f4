package crypto

import (
	"errors"
	"sync"

	"github.com/TheusHen/pzssh/pzssh/crypto/ec"
	"github.com/TheusHen/pzssh/pzssh/crypto/ratchet"
)

var (
	ErrChannelNotEstablished = errors.New("crypto: secure channel not established")
)

// SecureChannel provides an end-to-end encrypted channel with forward secrecy.
// It combines ephemeral ECDH on nistp256 with symmetric key ratcheting.
type SecureChannel struct {
	mu           sync.Mutex
	established  bool
	isInitiator  bool
	localEph     *ECDHKeyPair
	remoteEphPub []byte
	sendChain    *ratchet.Chain
	recvChain    *ratchet.Receiver
}

// NewSecureChannelInitiator creates a channel as the initiating party.
func NewSecureChannelInitiator() (*SecureChannel, error) {
	return NewSecureChannel(ec.P256(), true)
}

// NewSecureChannelResponder creates a channel as the responding party.
func NewSecureChannelResponder() (*SecureChannel, error) {
	return NewSecureChannel(ec.P256(), false)
}

// NewSecureChannel creates a channel whose ephemeral keys live on curve.
func NewSecureChannel(curve *ec.Curve, initiator bool) (*SecureChannel, error) {
	eph, err := GenerateECDH(curve)
	if err != nil {
		return nil, err
	}
	return &SecureChannel{
		isInitiator: initiator,
		localEph:    eph,
	}, nil
}

// LocalEphemeralPublic returns the local ephemeral public key (to send to
// peer), or nil for a channel built with NewEstablishedChannel.
func (sc *SecureChannel) LocalEphemeralPublic() []byte {
	if sc.localEph == nil {
		return nil
	}
	return append([]byte{}, sc.localEph.PublicKey...)
}

// Complete completes the key exchange with the peer's ephemeral public key.
func (sc *SecureChannel) Complete(peerEphPub []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.established {
		return nil
	}

	shared, err := ECDH(sc.localEph, peerEphPub)
	if err != nil {
		return err
	}
	sc.remoteEphPub = append([]byte{}, peerEphPub...)

	initiatorPub, responderPub := sc.localEph.PublicKey, sc.remoteEphPub
	if !sc.isInitiator {
		initiatorPub, responderPub = responderPub, initiatorPub
	}

	initiatorKey, responderKey, err := DeriveSessionKeys(shared, initiatorPub, responderPub)
	if err != nil {
		return err
	}

	// Initiator sends with initiatorKey, receives with responderKey
	// Responder sends with responderKey, receives with initiatorKey
	myKey, theirKey := initiatorKey, responderKey
	if !sc.isInitiator {
		myKey, theirKey = responderKey, initiatorKey
	}
	return sc.installKeys(myKey, theirKey)
}

// NewEstablishedChannel returns a channel keyed directly with directional
// keys, skipping the ephemeral exchange.
func NewEstablishedChannel(sendKey, recvKey []byte) (*SecureChannel, error) {
	sc := &SecureChannel{}
	if err := sc.installKeys(sendKey, recvKey); err != nil {
		return nil, err
	}
	return sc, nil
}

// CompleteWithKeys establishes the channel from externally derived
// directional keys, e.g. the SSH key schedule of a signed handshake.
func (sc *SecureChannel) CompleteWithKeys(sendKey, recvKey []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.established {
		return nil
	}
	return sc.installKeys(sendKey, recvKey)
}

func (sc *SecureChannel) installKeys(sendKey, recvKey []byte) error {
	var err error
	sc.sendChain, err = ratchet.NewChain(sendKey)
	if err != nil {
		return err
	}
	sc.recvChain, err = ratchet.NewReceiver(recvKey, ratchet.DefaultMaxSkip)
	if err != nil {
		return err
	}
	sc.established = true
	return nil
}

// IsEstablished returns true if the channel is ready for use.
func (sc *SecureChannel) IsEstablished() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.established
}

// Encrypt encrypts a message with forward secrecy.
func (sc *SecureChannel) Encrypt(plaintext, ad []byte) ([]byte, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.established {
		return nil, ErrChannelNotEstablished
	}

	msg, err := sc.sendChain.Seal(plaintext, ad)
	if err != nil {
		return nil, err
	}
	return msg.Encode(), nil
}

// Decrypt decrypts a message.
func (sc *SecureChannel) Decrypt(ciphertext, ad []byte) ([]byte, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.established {
		return nil, ErrChannelNotEstablished
	}

	msg, err := ratchet.DecodeEncryptedMessage(ciphertext)
	if err != nil {
		return nil, err
	}
	return sc.recvChain.Open(msg, ad)
}

// SendGeneration returns the current send generation.
func (sc *SecureChannel) SendGeneration() uint64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.sendChain == nil {
		return 0
	}
	return sc.sendChain.Generation()
}
