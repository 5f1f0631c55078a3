package sip

import "github.com/intuitivelabs/bytescase"

const (
	sp   = ' '
	htab = '\t'
	cr   = '\r'
	lf   = '\n'
)

func indexCRLF(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == cr && buf[i+1] == lf {
			return i
		}
	}
	return -1
}

func indexCRLFFrom(buf []byte, from int) int {
	for i := from; i+1 < len(buf); i++ {
		if buf[i] == cr && buf[i+1] == lf {
			return i
		}
	}
	return -1
}

func isSP(b byte) bool { return b == sp }

func indexSP(line []byte, from int) int {
	for i := from; i < len(line); i++ {
		if isSP(line[i]) {
			return i
		}
	}
	return -1
}

// skipSP consumes one-or-more SP starting at idx.
func skipSP(line []byte, idx int) int {
	i := idx
	for i < len(line) && isSP(line[i]) {
		i++
	}
	return i
}

func parseVersion(tok []byte) (major, minor int, ok bool) {
	if len(tok) < 7 { // "SIP/x.y" minimal
		return 0, 0, false
	}
	if !bytescase.CmpEq(tok[:4], []byte("SIP/")) {
		return 0, 0, false
	}
	rest := tok[4:]
	dot := -1
	for i, b := range rest {
		if b == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return 0, 0, false
	}
	maj, ok1 := parseDigits(rest[:dot])
	min, ok2 := parseDigits(rest[dot+1:])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return maj, min, true
}

func parseDigits(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// ParseFirstLine classifies buf as a request or a response and parses
// the start line, per spec.md §4.1. Lines beyond the first are not
// consumed. Whitespace between request-line tokens is one-or-more SP.
// The result is cached on m, so calling this more than once (for
// example ParseFirstLine followed by ParseMessage on the same message)
// doesn't redo the work or risk re-deriving a different answer.
func ParseFirstLine(m *Message) error {
	if m.firstLineParsed {
		return m.firstLineErr
	}
	m.firstLineParsed = true
	m.firstLineErr = parseFirstLine(m)
	return m.firstLineErr
}

func parseFirstLine(m *Message) error {
	crlf := indexCRLF(m.Raw)
	if crlf < 0 {
		return ErrMalformedMessage
	}
	line := m.Raw[:crlf]
	if len(line) >= 3 && bytescase.CmpEq(line[:3], []byte("SIP")) {
		return parseStatusLine(m, line)
	}
	return parseRequestLine(m, line)
}

func parseRequestLine(m *Message, line []byte) error {
	end := indexSP(line, 0)
	if end <= 0 {
		return ErrMalformedMessage
	}
	m.MethodTok = fieldOf(0, end)
	m.Method = lookupMethod(line[:end])

	i := skipSP(line, end)
	if i >= len(line) {
		return ErrMalformedMessage
	}
	start := i
	end = indexSP(line, start)
	if end < 0 {
		return ErrMalformedMessage
	}
	m.RequestURI = fieldOf(start, end)

	i = skipSP(line, end)
	if i >= len(line) {
		return ErrMalformedMessage
	}
	major, minor, ok := parseVersion(line[i:])
	if !ok {
		return ErrMalformedMessage
	}
	m.SipMajor, m.SipMinor = major, minor
	m.IsRequest = true

	if major != 2 || minor != 0 {
		return ErrUnsupportedSipVersion
	}
	if m.Method == MethodUnknown {
		return ErrUnknownMethod
	}
	return nil
}

func parseStatusLine(m *Message, line []byte) error {
	end := indexSP(line, 0)
	if end <= 0 {
		return ErrMalformedMessage
	}
	major, minor, ok := parseVersion(line[:end])
	if !ok {
		return ErrMalformedMessage
	}

	i := skipSP(line, end)
	if i >= len(line) {
		return ErrMalformedMessage
	}
	start := i
	end = indexSP(line, start)
	if end < 0 {
		return ErrMalformedMessage
	}
	code, ok := parseDigits(line[start:end])
	if !ok || end-start != 3 {
		return ErrMalformedMessage
	}

	i = skipSP(line, end)
	m.Reason = fieldOf(i, len(line))
	m.StatusCode = code
	m.SipMajor, m.SipMinor = major, minor
	m.IsRequest = false

	if major != 2 || minor != 0 {
		return ErrUnsupportedSipVersion
	}
	return nil
}

// GetHeaderValue performs the linear, case-insensitive-prefix header
// scan described in spec.md §4.1 directly over buf, independent of any
// Message cache. It is the primitive property P6 is checked against.
func GetHeaderValue(buf []byte, name string) (Field, bool) {
	firstCRLF := indexCRLF(buf)
	if firstCRLF < 0 {
		return Field{}, false
	}
	pos := firstCRLF + 2
	nameBytes := []byte(name)
	for pos < len(buf) {
		lineEnd := indexCRLFFrom(buf, pos)
		if lineEnd < 0 {
			lineEnd = len(buf)
		}
		line := buf[pos:lineEnd]
		if len(line) == 0 {
			break // empty line: end of headers
		}
		if valStart, valEnd, ok := matchHeaderLine(line, nameBytes); ok {
			return fieldOf(pos+valStart, pos+valEnd), true
		}
		if lineEnd+2 > len(buf) {
			break
		}
		pos = lineEnd + 2
	}
	return Field{}, false
}

// matchHeaderLine checks whether line is "<name><opt SP/HTAB>:<opt SP/HTAB><value>"
// with a case-insensitive comparison of name, returning the value's
// offsets relative to line.
func matchHeaderLine(line, name []byte) (valStart, valEnd int, ok bool) {
	idx, matched := bytescase.Prefix(name, line)
	if !matched || idx != len(name) {
		return 0, 0, false
	}
	i := idx
	for i < len(line) && (line[i] == sp || line[i] == htab) {
		i++
	}
	if i >= len(line) || line[i] != ':' {
		return 0, 0, false
	}
	i++
	for i < len(line) && (line[i] == sp || line[i] == htab) {
		i++
	}
	return i, len(line), true
}

// Header resolves a header value, caching the Field on first lookup
// (absence is cached too, so a repeated miss costs one map lookup).
func (m *Message) Header(name string) (Field, bool) {
	key := lowerASCII(name)
	if f, ok := m.headers[key]; ok {
		return f, true
	}
	if m.headersNeg[key] {
		return Field{}, false
	}
	f, ok := GetHeaderValue(m.Raw, name)
	if ok {
		m.headers[key] = f
	} else {
		m.headersNeg[key] = true
	}
	return f, ok
}

func lowerASCII(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}

// findParam tokenizes hdr's parameter list properly instead of
// blindly skipping a fixed number of bytes past ';', which is the bug
// spec.md §9 flags in the C source: a differently named parameter
// preceding the one being searched for no longer corrupts the result.
func findParam(buf []byte, hdr Field, key string) (Field, bool) {
	val := hdr.Get(buf)
	base := int(hdr.Offs)
	keyBytes := []byte(key)

	i := 0
	for i < len(val) {
		if val[i] != ';' {
			i++
			continue
		}
		i++
		for i < len(val) && (val[i] == sp || val[i] == htab) {
			i++
		}
		keyStart := i
		for i < len(val) && val[i] != '=' && val[i] != ';' && val[i] != cr {
			i++
		}
		paramKey := val[keyStart:i]

		var valStart, valEnd int
		if i < len(val) && val[i] == '=' {
			i++
			valStart = i
			for i < len(val) && val[i] != ';' && val[i] != cr {
				i++
			}
			valEnd = i
		} else {
			valStart, valEnd = i, i
		}

		if bytescase.CmpEq(paramKey, keyBytes) {
			return fieldOf(base+valStart, base+valEnd), true
		}
	}
	return Field{}, false
}

// FromTag resolves the From header's tag= parameter.
func (m *Message) FromTag() (Field, bool) {
	if m.fromTagSeen {
		return m.fromTag, m.fromTag.Found
	}
	m.fromTagSeen = true
	hdr, ok := m.Header("From")
	if !ok {
		return Field{}, false
	}
	f, ok := findParam(m.Raw, hdr, "tag")
	if ok {
		m.fromTag = f
	}
	return f, ok
}

// ToTag resolves the To header's tag= parameter.
func (m *Message) ToTag() (Field, bool) {
	if m.toTagSeen {
		return m.toTag, m.toTag.Found
	}
	m.toTagSeen = true
	hdr, ok := m.Header("To")
	if !ok {
		return Field{}, false
	}
	f, ok := findParam(m.Raw, hdr, "tag")
	if ok {
		m.toTag = f
	}
	return f, ok
}

// ViaBranch resolves the topmost Via header's branch= parameter.
func (m *Message) ViaBranch() (Field, bool) {
	if m.viaBranchSeen {
		return m.viaBranch, m.viaBranch.Found
	}
	m.viaBranchSeen = true
	hdr, ok := m.Header("Via")
	if !ok {
		return Field{}, false
	}
	f, ok := findParam(m.Raw, hdr, "branch")
	if ok {
		m.viaBranch = f
	}
	return f, ok
}

func (m *Message) str(f Field) string {
	return string(f.Get(m.Raw))
}

// CallIDString, FromString etc. are small conveniences over Header
// used by the registry/engine; they copy (unlike Field.Get) because
// map keys and log fields must outlive the Message.
func (m *Message) CallIDString() string {
	f, _ := m.Header("Call-ID")
	return m.str(f)
}

func (m *Message) FromTagString() string {
	f, _ := m.FromTag()
	return m.str(f)
}

func (m *Message) ToTagString() string {
	f, _ := m.ToTag()
	return m.str(f)
}

func (m *Message) ViaBranchString() string {
	f, _ := m.ViaBranch()
	return m.str(f)
}

func (m *Message) CSeqString() string {
	f, _ := m.Header("CSeq")
	return m.str(f)
}

// ParseMessage runs ParseFirstLine and then checks for the mandatory
// header set described in spec.md §4.1: From (with tag), To, Via
// (with branch), CSeq, Content-Length, Call-ID, and Max-Forwards for
// requests.
func ParseMessage(m *Message) error {
	if err := ParseFirstLine(m); err != nil {
		return err
	}

	if _, ok := m.Header("From"); !ok {
		return ErrMissingMandatoryHeader
	}
	if _, ok := m.FromTag(); !ok {
		return ErrMissingMandatoryParameter
	}
	if _, ok := m.Header("To"); !ok {
		return ErrMissingMandatoryHeader
	}
	if _, ok := m.Header("Via"); !ok {
		return ErrMissingMandatoryHeader
	}
	if _, ok := m.ViaBranch(); !ok {
		return ErrMissingMandatoryParameter
	}
	if _, ok := m.Header("CSeq"); !ok {
		return ErrMissingMandatoryHeader
	}
	if _, ok := m.Header("Content-Length"); !ok {
		return ErrMissingMandatoryHeader
	}
	if _, ok := m.Header("Call-ID"); !ok {
		return ErrMissingMandatoryHeader
	}
	if m.IsRequest {
		if _, ok := m.Header("Max-Forwards"); !ok {
			return ErrMissingMandatoryHeader
		}
	}
	return nil
}
