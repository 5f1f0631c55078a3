// Package sip implements the SIP (RFC 3261) message buffer and lazy
// header parser: a received datagram is never copied into structured
// header objects up front. Instead each accessor locates and caches a
// Field — an (offset, length) pair into the buffer the Message itself
// owns — the first time it is asked for.
package sip

// Field is a borrowed slice into a Message's raw buffer, grounded on
// the PField{Offs,Len} idiom used by intuitivelabs/sipsp for the same
// purpose. Found == false means "not present"; it is what distinguishes
// an absent value from a present but empty one (Found with Len == 0).
type Field struct {
	Offs  uint16
	Len   uint16
	Found bool
}

// Get resolves f against buf. Callers must not hold the returned slice
// past the lifetime of the Message that owns buf.
func (f Field) Get(buf []byte) []byte {
	if !f.Found {
		return nil
	}
	return buf[f.Offs : f.Offs+f.Len]
}

func fieldOf(start, end int) Field {
	return Field{Offs: uint16(start), Len: uint16(end - start), Found: true}
}
