package sip

import (
	"net"
	"strconv"
)

// MaxDatagramSize bounds a received UDP datagram to 1024 octets per
// spec.md §6; larger reads are truncated by the transport before a
// Message is ever built over them.
const MaxDatagramSize = 1024

// MaxResponseSize bounds the formatted response buffer.
const MaxResponseSize = 1024

// Message is a single received UDP datagram plus whatever the lazy
// parser has resolved about it so far. It is owned by at most one
// transaction at a time: the dispatcher builds it, the registry looks
// at its keys to route it, and the transaction that claims it keeps it
// alive for as long as any Field borrowed from it is in use (the
// invariant spec.md §3 requires of borrowed slices).
type Message struct {
	Raw  []byte
	Peer net.Addr

	IsRequest bool

	// first-line results
	Method     Method
	MethodTok  Field
	RequestURI Field
	StatusCode int
	Reason     Field
	SipMajor   int
	SipMinor   int

	firstLineParsed bool
	firstLineErr    error

	headers    map[string]Field
	headersNeg map[string]bool

	fromTag     Field
	fromTagSeen bool
	toTag       Field
	toTagSeen   bool
	viaBranch   Field
	viaBranchSeen bool

	// Out is the formatted response for this message's transaction, set
	// once a final or provisional response has been built for it. Kept
	// here so a retransmission can resend verbatim (P4).
	Out []byte
}

// NewMessage copies data (bounded to MaxDatagramSize) into a Message
// the caller owns exclusively; every Field the parser resolves for it
// borrows from this copy, never from the caller's original buffer.
func NewMessage(data []byte, peer net.Addr) *Message {
	if len(data) > MaxDatagramSize {
		data = data[:MaxDatagramSize]
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Message{
		Raw:        buf,
		Peer:       peer,
		headers:    make(map[string]Field, 8),
		headersNeg: make(map[string]bool, 8),
	}
}

func (m *Message) MethodString() string {
	if m.MethodTok.Found {
		return string(m.MethodTok.Get(m.Raw))
	}
	return m.Method.String()
}

func (m *Message) URI() string {
	return string(m.RequestURI.Get(m.Raw))
}

func (m *Message) ReasonPhrase() string {
	return string(m.Reason.Get(m.Raw))
}

// Short renders a short diagnostic line, used only for logging.
func (m *Message) Short() string {
	if m == nil {
		return "<nil>"
	}
	if m.IsRequest {
		return m.MethodString() + " " + m.URI()
	}
	return "SIP/2.0 response " + strconv.Itoa(m.StatusCode) + " " + m.ReasonPhrase()
}
