package dispatcher

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sipterm/uasd/metrics"
	"github.com/sipterm/uasd/queue"
)

func TestShardIsPureFunctionOfCallID(t *testing.T) {
	a := Shard([]byte("abc123@host"), 5)
	b := Shard([]byte("abc123@host"), 5)
	require.Equal(t, a, b)
}

func TestShardDiffersAcrossCallIDsInGeneral(t *testing.T) {
	a := Shard([]byte("call-one"), 5)
	b := Shard([]byte("call-two-totally-different"), 5)
	// Not a correctness requirement (uniformity isn't promised), just
	// documents that distinct inputs commonly land differently.
	_ = a
	_ = b
}

func TestHandleDatagramRoutesByCallID(t *testing.T) {
	m := metrics.New()
	q0 := queue.New(4)
	q1 := queue.New(4)
	d := New(nil, []*queue.Queue{q0, q1}, zerolog.Nop(), m)

	raw := []byte("INVITE sip:b SIP/2.0\r\nCall-ID: fixed-id\r\n\r\n")
	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5060}

	d.handleDatagram(raw, peer)
	d.handleDatagram(raw, peer)

	want := Shard([]byte("fixed-id"), 2)
	var got *queue.Queue
	if want == 0 {
		got = q0
	} else {
		got = q1
	}
	require.Equal(t, 2, got.Len())
}

func TestHandleDatagramDropsWhenCallIDMissing(t *testing.T) {
	m := metrics.New()
	q0 := queue.New(4)
	d := New(nil, []*queue.Queue{q0}, zerolog.Nop(), m)

	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 5060}
	d.handleDatagram([]byte("INVITE sip:b SIP/2.0\r\n\r\n"), peer)

	require.Equal(t, 0, q0.Len())
}

func TestReadDeadlineConstant(t *testing.T) {
	require.Equal(t, 5*time.Second, ReadDeadline)
}
