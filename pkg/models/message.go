package models

// Kind distinguishes config-library messages from standard chat messages.
// Config messages must be ingested before standard ones because standard
// message handling may depend on conversation state they carry.
type Kind int8

const (
	KindStandard Kind = iota
	KindConfig
)

type Message struct {
	// ServerHash is the server-assigned unique hash of the message.
	ServerHash string `msgpack:"h"`
	ThreadID   string `msgpack:"t"`
	Sender     string `msgpack:"s,omitempty"`
	Kind       Kind   `msgpack:"k"`
	// SentAtMs/ReceivedAtMs are milliseconds since epoch.
	SentAtMs     int64 `msgpack:"sent"`
	ReceivedAtMs int64 `msgpack:"recv"`
	// Payload is the decoded envelope content, still secret.
	Payload []byte `msgpack:"p"`
	Read    bool   `msgpack:"r"`
	// MessageRequest marks messages from threads awaiting approval.
	MessageRequest bool `msgpack:"mr,omitempty"`
}

// Namespace returns the bucket sub-namespace this message is stored under.
func (m *Message) Namespace() string {
	if m.Kind == KindConfig {
		return "config"
	}
	if m.Read {
		return "read"
	}
	return "unread"
}
