package engine

import (
	"net"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sipterm/uasd/metrics"
	"github.com/sipterm/uasd/registry"
	"github.com/sipterm/uasd/sip"
)

type fakeSender struct {
	sent [][]byte
}

func (f *fakeSender) WriteTo(p []byte, _ net.Addr) (int, error) {
	cp := append([]byte(nil), p...)
	f.sent = append(f.sent, cp)
	return len(p), nil
}

func testPeer() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5060}
}

func inviteMessage(branch, callID string, cseq int) *sip.Message {
	raw := "INVITE sip:b@example.com SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP caller;branch=" + branch + "\r\n" +
		"From: <sip:a@example.com>;tag=atag\r\n" +
		"To: <sip:b@example.com>\r\n" +
		"Call-ID: " + callID + "\r\n" +
		"CSeq: " + strconv.Itoa(cseq) + " INVITE\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n\r\n"
	m := sip.NewMessage([]byte(raw), testPeer())
	if err := sip.ParseMessage(m); err != nil {
		panic(err)
	}
	return m
}

func byeMessage(branch, callID, toTag string) *sip.Message {
	raw := "BYE sip:a@example.com SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP callee;branch=" + branch + "\r\n" +
		"From: <sip:b@example.com>;tag=" + toTag + "\r\n" +
		"To: <sip:a@example.com>;tag=atag\r\n" +
		"Call-ID: " + callID + "\r\n" +
		"CSeq: 1 BYE\r\n" +
		"Max-Forwards: 70\r\n" +
		"Content-Length: 0\r\n\r\n"
	m := sip.NewMessage([]byte(raw), testPeer())
	if err := sip.ParseMessage(m); err != nil {
		panic(err)
	}
	return m
}

func newTestEngine() (*Engine, *fakeSender, *registry.Registry) {
	post := registry.Dispatch(func(fn func()) { fn() })
	reg := registry.New(0, zerolog.Nop(), post)
	sender := &fakeSender{}
	e := New(reg, sender, zerolog.Nop(), metrics.New(), nil, post)
	return e, sender, reg
}

// S1 — fresh INVITE accepted: 100, 180, 200 in order; dialog/call land
// in their success states (P7).
func TestFreshInviteAccepted(t *testing.T) {
	e, sender, reg := newTestEngine()
	msg := inviteMessage("z9hG4bK-1", "C1", 1)

	e.handleInvite(msg, msg.ViaBranchString())

	require.Len(t, sender.sent, 3)
	require.Contains(t, string(sender.sent[0]), "100 Trying")
	require.Contains(t, string(sender.sent[1]), "180 Ringing")
	require.Contains(t, string(sender.sent[2]), "200 OK")

	call, ok := reg.FindCall("C1")
	require.True(t, ok)
	require.Equal(t, registry.CallESTABLISHED, call.State())

	tx, ok := reg.FindTransaction("z9hG4bK-1")
	require.True(t, ok)
	require.Equal(t, registry.TxCOMPLETED, tx.State())
}

// S4 — INVITE retransmission: one transaction, last response resent.
func TestInviteRetransmissionResendsLastResponse(t *testing.T) {
	e, sender, reg := newTestEngine()
	first := inviteMessage("z9hG4bK-1", "C1", 1)
	e.handleInvite(first, first.ViaBranchString())
	require.Len(t, sender.sent, 3)

	second := inviteMessage("z9hG4bK-1", "C1", 1)
	e.handleInvite(second, second.ViaBranchString())

	require.Len(t, sender.sent, 4)
	require.Equal(t, sender.sent[2], sender.sent[3])
	require.Equal(t, 1, countCalls(reg))
}

func countCalls(r *registry.Registry) int {
	n := 0
	if _, ok := r.FindCall("C1"); ok {
		n++
	}
	return n
}

// S2 — BYE in a confirmed dialog: 200 OK, call and dialog terminate.
func TestByeInConfirmedDialog(t *testing.T) {
	e, sender, reg := newTestEngine()
	inv := inviteMessage("z9hG4bK-1", "C1", 1)
	e.handleInvite(inv, inv.ViaBranchString())

	// Recover the generated To-tag from the 200 OK response sent.
	toTag := extractToTag(t, sender.sent[2])

	bye := byeMessage("z9hG4bK-2", "C1", toTag)
	e.handleBye(bye, bye.ViaBranchString())

	require.Len(t, sender.sent, 4)
	require.Contains(t, string(sender.sent[3]), "200 OK")

	call, ok := reg.FindCall("C1")
	require.True(t, ok)
	require.Equal(t, registry.CallTERMINATED, call.State())
}

// S3 — BYE with no matching dialog: 404.
func TestByeWithNoDialogReturns404(t *testing.T) {
	e, sender, _ := newTestEngine()
	bye := byeMessage("z9hG4bK-9", "C-missing", "12345678")
	e.handleBye(bye, bye.ViaBranchString())

	require.Len(t, sender.sent, 1)
	require.Contains(t, string(sender.sent[0]), "404 Not Found")
}

// S5 — unknown method: 501, transaction terminates.
func TestUnknownMethodReplies501(t *testing.T) {
	e, sender, reg := newTestEngine()
	raw := "OPTIONS sip:b@example.com SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP caller;branch=z9hG4bK-7\r\n" +
		"From: <sip:a@example.com>;tag=atag\r\n" +
		"To: <sip:b@example.com>\r\n" +
		"Call-ID: C-opts\r\nCSeq: 1 OPTIONS\r\nMax-Forwards: 70\r\nContent-Length: 0\r\n\r\n"
	m := sip.NewMessage([]byte(raw), testPeer())
	require.NoError(t, sip.ParseMessage(m))

	e.handleUnknown(m, m.ViaBranchString())

	require.Len(t, sender.sent, 1)
	require.Contains(t, string(sender.sent[0]), "501 Not Implemented")

	tx, ok := reg.FindTransaction("z9hG4bK-7")
	require.True(t, ok)
	require.Equal(t, registry.TxTERMINATED, tx.State())
}

func TestClassifyStatusRanges(t *testing.T) {
	require.Equal(t, ClassProvisional, ClassifyStatus(180))
	require.Equal(t, ClassSuccess, ClassifyStatus(200))
	require.Equal(t, ClassRedirection, ClassifyStatus(302))
	require.Equal(t, ClassClientError, ClassifyStatus(404))
	require.Equal(t, ClassServerError, ClassifyStatus(500))
	require.Equal(t, ClassGlobalFailure, ClassifyStatus(606))
	require.Equal(t, ClassUnknown, ClassifyStatus(50))
}

// extractToTag pulls the To header's tag= value out of a raw response
// buffer built by sip.BuildResponse, for test assertions only.
func extractToTag(t *testing.T, resp []byte) string {
	t.Helper()
	f, ok := sip.GetHeaderValue(resp, "To")
	require.True(t, ok)
	to := string(f.Get(resp))
	idx := indexOf(to, "tag=")
	require.GreaterOrEqual(t, idx, 0)
	return to[idx+len("tag="):]
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
