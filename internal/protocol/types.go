package protocol

// Kind discriminates the three header forms on the wire.
type Kind uint8

const (
	// KindReply is a two-element header [id, resultCode] answering a command.
	KindReply Kind = iota + 1
	// KindCallback is a one-element header [name] carrying a push notification.
	KindCallback
	// KindCommand is a two-element header [name, id] issuing a command.
	// Clients only send these; receiving one is a contract violation.
	KindCommand
)

// Header is the decoded JSON array header of one frame.
type Header struct {
	Kind Kind
	ID   uint32 // command id; reply and command headers
	Code Code   // host result code; reply headers only
	Name string // callback or command name
}

// Frame is one complete wire message: header plus raw JSON payload.
type Frame struct {
	Header  Header
	Payload []byte
}
