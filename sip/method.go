package sip

import "github.com/intuitivelabs/bytescase"

// Method is the closed set of request methods this engine recognizes.
// Anything outside the set resolves to MethodUnknown, per spec.
type Method int

const (
	MethodUnknown Method = iota
	MethodInvite
	MethodAck
	MethodBye
	MethodCancel
	MethodOptions
	MethodRegister
	MethodPrack
	MethodUpdate
	MethodSubscribe
	MethodNotify
	MethodPublish
	MethodInfo
	MethodRefer
	MethodMessage
)

func (m Method) String() string {
	switch m {
	case MethodInvite:
		return "INVITE"
	case MethodAck:
		return "ACK"
	case MethodBye:
		return "BYE"
	case MethodCancel:
		return "CANCEL"
	case MethodOptions:
		return "OPTIONS"
	case MethodRegister:
		return "REGISTER"
	case MethodPrack:
		return "PRACK"
	case MethodUpdate:
		return "UPDATE"
	case MethodSubscribe:
		return "SUBSCRIBE"
	case MethodNotify:
		return "NOTIFY"
	case MethodPublish:
		return "PUBLISH"
	case MethodInfo:
		return "INFO"
	case MethodRefer:
		return "REFER"
	case MethodMessage:
		return "MESSAGE"
	}
	return "UNKNOWN"
}

// methodTable is checked by exact length+bytes (case-insensitive)
// comparison, never by prefix, so "INVITEX" does not match INVITE.
var methodTable = []struct {
	name   string
	method Method
}{
	{"INVITE", MethodInvite},
	{"ACK", MethodAck},
	{"BYE", MethodBye},
	{"CANCEL", MethodCancel},
	{"OPTIONS", MethodOptions},
	{"REGISTER", MethodRegister},
	{"PRACK", MethodPrack},
	{"UPDATE", MethodUpdate},
	{"SUBSCRIBE", MethodSubscribe},
	{"NOTIFY", MethodNotify},
	{"PUBLISH", MethodPublish},
	{"INFO", MethodInfo},
	{"REFER", MethodRefer},
	{"MESSAGE", MethodMessage},
}

// lookupMethod resolves a raw method token to its enum value using
// case-insensitive exact comparison (github.com/intuitivelabs/bytescase),
// never a prefix match.
func lookupMethod(tok []byte) Method {
	for _, e := range methodTable {
		if bytescase.CmpEq(tok, []byte(e.name)) {
			return e.method
		}
	}
	return MethodUnknown
}
