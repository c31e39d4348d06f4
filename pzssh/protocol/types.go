package protocol

type MessageType uint8

const (
	MessageTypeHello  MessageType = 1
	MessageTypeAuth   MessageType = 2
	MessageTypeData   MessageType = 3
	MessageTypeTicket MessageType = 4
	MessageTypeClose  MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeHello:
		return "HELLO"
	case MessageTypeAuth:
		return "AUTH"
	case MessageTypeData:
		return "DATA"
	case MessageTypeTicket:
		return "TICKET"
	case MessageTypeClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Cipher suite names carried in HELLO.
const (
	CipherChaCha20Poly1305 = "chacha20-poly1305"
	CipherAES128CTR        = "aes128-ctr"
)

// Version is the protocol version string exchanged in HELLO.
const Version = "PZSSH-1.0"
