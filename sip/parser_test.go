package sip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func inviteDatagram(branch, fromTag, callID string) []byte {
	return []byte("INVITE sip:bob@a SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP c;branch=" + branch + "\r\n" +
		"From: <sip:a>;tag=" + fromTag + "\r\n" +
		"To: <sip:b>\r\n" +
		"Call-ID: " + callID + "\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n\r\n")
}

func TestParseFirstLineRequest(t *testing.T) {
	m := NewMessage(inviteDatagram("z9hG4bK-1", "A", "C1"), nil)
	err := ParseFirstLine(m)
	require.NoError(t, err)
	require.True(t, m.IsRequest)
	require.Equal(t, MethodInvite, m.Method)
	require.Equal(t, "sip:bob@a", m.URI())
	require.Equal(t, 2, m.SipMajor)
	require.Equal(t, 0, m.SipMinor)
}

func TestParseFirstLineResponse(t *testing.T) {
	data := []byte("SIP/2.0 180 Ringing\r\nVia: SIP/2.0/UDP c\r\n\r\n")
	m := NewMessage(data, nil)
	err := ParseFirstLine(m)
	require.NoError(t, err)
	require.False(t, m.IsRequest)
	require.Equal(t, 180, m.StatusCode)
	require.Equal(t, "Ringing", m.ReasonPhrase())
}

func TestParseFirstLineUnsupportedVersion(t *testing.T) {
	data := []byte("INVITE sip:bob@a SIP/3.0\r\nVia: x\r\n\r\n")
	m := NewMessage(data, nil)
	err := ParseFirstLine(m)
	require.Equal(t, ErrUnsupportedSipVersion, err)
}

func TestParseFirstLineUnknownMethod(t *testing.T) {
	data := []byte("FOO sip:x SIP/2.0\r\nVia: x\r\n\r\n")
	m := NewMessage(data, nil)
	err := ParseFirstLine(m)
	require.Equal(t, ErrUnknownMethod, err)
}

func TestParseFirstLineMalformed(t *testing.T) {
	data := []byte("GARBAGE WITHOUT A CRLF")
	m := NewMessage(data, nil)
	err := ParseFirstLine(m)
	require.Equal(t, ErrMalformedMessage, err)
}

// P6: for any header H present in the datagram, GetHeaderValue returns
// a slice whose bytes equal the header's value, exclusive of the
// surrounding ':' / whitespace / CRLF.
func TestGetHeaderValueRoundTrip(t *testing.T) {
	buf := inviteDatagram("z9hG4bK-1", "A", "C1")
	cases := map[string]string{
		"Via":            "SIP/2.0/UDP c;branch=z9hG4bK-1",
		"From":           "<sip:a>;tag=A",
		"To":             "<sip:b>",
		"Call-ID":        "C1",
		"CSeq":           "1 INVITE",
		"Max-Forwards":   "70",
		"Content-Length": "0",
	}
	for name, want := range cases {
		f, ok := GetHeaderValue(buf, name)
		require.Truef(t, ok, "header %s should be found", name)
		require.Equal(t, want, string(f.Get(buf)))
	}

	_, ok := GetHeaderValue(buf, "Contact")
	require.False(t, ok)
}

func TestGetHeaderValueCaseInsensitive(t *testing.T) {
	buf := inviteDatagram("z9hG4bK-1", "A", "C1")
	f, ok := GetHeaderValue(buf, "via")
	require.True(t, ok)
	require.Equal(t, "SIP/2.0/UDP c;branch=z9hG4bK-1", string(f.Get(buf)))
}

func TestParamExtraction(t *testing.T) {
	m := NewMessage(inviteDatagram("z9hG4bK-1", "A", "C1"), nil)
	require.NoError(t, ParseFirstLine(m))

	fromTag, ok := m.FromTag()
	require.True(t, ok)
	require.Equal(t, "A", string(fromTag.Get(m.Raw)))

	branch, ok := m.ViaBranch()
	require.True(t, ok)
	require.Equal(t, "z9hG4bK-1", string(branch.Get(m.Raw)))

	_, ok = m.ToTag()
	require.False(t, ok)
}

// Regression for the §9 design note: a parameter appearing before the
// one being searched for must not corrupt extraction (the C source's
// bug was a blind fixed-length skip past the first ';').
func TestParamExtractionIgnoresPrecedingParam(t *testing.T) {
	data := []byte("INVITE sip:bob@a SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP c;ttl=1;branch=z9hG4bK-9\r\n" +
		"From: <sip:a>;display=weird;tag=Z\r\n" +
		"To: <sip:b>\r\n" +
		"Call-ID: C2\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n\r\n")
	m := NewMessage(data, nil)
	require.NoError(t, ParseFirstLine(m))

	branch, ok := m.ViaBranch()
	require.True(t, ok)
	require.Equal(t, "z9hG4bK-9", string(branch.Get(m.Raw)))

	fromTag, ok := m.FromTag()
	require.True(t, ok)
	require.Equal(t, "Z", string(fromTag.Get(m.Raw)))
}

func TestParseMessageMissingMandatoryHeader(t *testing.T) {
	data := []byte("BYE sip:a SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP c;branch=z9hG4bK-2\r\n" +
		"From: <sip:b>;tag=B\r\n" +
		"To: <sip:a>;tag=A\r\n" +
		"CSeq: 1 BYE\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n\r\n")
	m := NewMessage(data, nil)
	err := ParseMessage(m)
	require.Equal(t, ErrMissingMandatoryHeader, err)
}

func TestParseMessageMissingMandatoryParameter(t *testing.T) {
	data := []byte("INVITE sip:bob@a SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP c\r\n" +
		"From: <sip:a>;tag=A\r\n" +
		"To: <sip:b>\r\n" +
		"Call-ID: C1\r\n" +
		"CSeq: 1 INVITE\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n\r\n")
	m := NewMessage(data, nil)
	err := ParseMessage(m)
	require.Equal(t, ErrMissingMandatoryParameter, err)
}

func TestParseMessageOK(t *testing.T) {
	m := NewMessage(inviteDatagram("z9hG4bK-1", "A", "C1"), nil)
	require.NoError(t, ParseMessage(m))
}

func TestBuildResponseAddsToTag(t *testing.T) {
	m := NewMessage(inviteDatagram("z9hG4bK-1", "A", "C1"), nil)
	require.NoError(t, ParseMessage(m))

	out, err := BuildResponse(m, 200, "OK", "12345678")
	require.NoError(t, err)
	s := string(out)
	require.Contains(t, s, "SIP/2.0 200 OK\r\n")
	require.Contains(t, s, "To: <sip:b>;tag=12345678\r\n")
	require.Contains(t, s, "Content-Length: 0\r\n\r\n")
}

func TestBuildResponseDoesNotDuplicateExistingToTag(t *testing.T) {
	data := []byte("BYE sip:a SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP c;branch=z9hG4bK-2\r\n" +
		"From: <sip:b>;tag=B\r\n" +
		"To: <sip:a>;tag=A\r\n" +
		"Call-ID: C1\r\n" +
		"CSeq: 1 BYE\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n\r\n")
	m := NewMessage(data, nil)
	require.NoError(t, ParseMessage(m))

	out, err := BuildResponse(m, 200, "OK", "99999999")
	require.NoError(t, err)
	s := string(out)
	require.Contains(t, s, "To: <sip:a>;tag=A\r\n")
	require.NotContains(t, s, "99999999")
}

func TestMessageTruncatesOversizeDatagram(t *testing.T) {
	big := make([]byte, MaxDatagramSize+500)
	for i := range big {
		big[i] = 'a'
	}
	m := NewMessage(big, nil)
	require.Len(t, m.Raw, MaxDatagramSize)
}
