package protocol

// Wire constants for the pose stream.
const (
	// MagicNumber prefixes every binary pose frame (little-endian on the wire).
	MagicNumber uint32 = 0xBADDF00D

	// HeaderLen is magic(4) + frame id(4) + aux count(4).
	HeaderLen = 12

	// MatrixFloats is the number of float32 values in one bone matrix.
	MatrixFloats = 16
	// MatrixBytes is the encoded size of one bone matrix.
	MatrixBytes = MatrixFloats * 4

	// TagSkeletonDef is the handshake discriminant in the `type` field.
	TagSkeletonDef = "SKELETON_DEF"
)

// MessageKind tags an inbound transport message.
type MessageKind uint8

const (
	MessageText MessageKind = iota + 1
	MessageBinary
)

func (k MessageKind) String() string {
	switch k {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Message is one whole transport delivery.
type Message struct {
	Kind MessageKind
	Data []byte
}

// TextMessage wraps a textual payload.
func TextMessage(s string) Message {
	return Message{Kind: MessageText, Data: []byte(s)}
}

// BinaryMessage wraps a binary payload.
func BinaryMessage(b []byte) Message {
	return Message{Kind: MessageBinary, Data: b}
}
