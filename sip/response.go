package sip

import (
	"bytes"
	"fmt"
)

// BuildResponse formats an RFC 3261 response per spec.md §4.5/§6:
// status-line, echoed Via/From/To/Call-ID/CSeq, a locally generated
// To-tag appended only when the request's To header did not already
// carry one, and Content-Length: 0. No body is ever produced.
func BuildResponse(req *Message, code int, reason string, toTag string) ([]byte, error) {
	via, ok := req.Header("Via")
	if !ok {
		return nil, fmt.Errorf("sip: request missing Via, cannot build response")
	}
	from, ok := req.Header("From")
	if !ok {
		return nil, fmt.Errorf("sip: request missing From, cannot build response")
	}
	to, ok := req.Header("To")
	if !ok {
		return nil, fmt.Errorf("sip: request missing To, cannot build response")
	}
	callID, ok := req.Header("Call-ID")
	if !ok {
		return nil, fmt.Errorf("sip: request missing Call-ID, cannot build response")
	}
	cseq, ok := req.Header("CSeq")
	if !ok {
		return nil, fmt.Errorf("sip: request missing CSeq, cannot build response")
	}

	var buf bytes.Buffer
	buf.Grow(MaxResponseSize)

	buf.WriteString("SIP/2.0 ")
	buf.WriteString(itoa(code))
	buf.WriteByte(' ')
	buf.WriteString(reason)
	buf.WriteString("\r\n")

	buf.WriteString("Via: ")
	buf.Write(via.Get(req.Raw))
	buf.WriteString("\r\n")

	buf.WriteString("From: ")
	buf.Write(from.Get(req.Raw))
	buf.WriteString("\r\n")

	buf.WriteString("To: ")
	buf.Write(to.Get(req.Raw))
	if toTag != "" {
		if _, hasTag := req.ToTag(); !hasTag {
			buf.WriteString(";tag=")
			buf.WriteString(toTag)
		}
	}
	buf.WriteString("\r\n")

	buf.WriteString("Call-ID: ")
	buf.Write(callID.Get(req.Raw))
	buf.WriteString("\r\n")

	buf.WriteString("CSeq: ")
	buf.Write(cseq.Get(req.Raw))
	buf.WriteString("\r\n")

	buf.WriteString("Content-Length: 0\r\n\r\n")

	if buf.Len() > MaxResponseSize {
		return nil, fmt.Errorf("sip: formatted response exceeds %d bytes", MaxResponseSize)
	}
	return buf.Bytes(), nil
}
