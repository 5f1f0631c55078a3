// Package dispatcher is the sole reader on the UDP socket, spec.md
// §4.3: it allocates a Message per datagram, extracts Call-ID without
// running the full parser, shards to a worker by summing the Call-ID's
// bytes modulo the worker count, and enqueues or drops. It is grounded
// on the teacher's sip.TransportUDP.readListenerConnection read loop
// (transport_udp.go), adapted from an indefinite blocking read to a
// 5-second read-deadline loop per spec.md §5.
package dispatcher

import (
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/sipterm/uasd/metrics"
	"github.com/sipterm/uasd/queue"
	"github.com/sipterm/uasd/sip"
)

// ReadDeadline bounds each blocking read so the dispatcher can observe
// a shutdown signal between datagrams without an explicit cancel path
// on the socket itself, per spec.md §5.
const ReadDeadline = 5 * time.Second

// Dispatcher owns the UDP listener and fans datagrams out to a fixed
// set of worker queues.
type Dispatcher struct {
	conn    net.PacketConn
	queues  []*queue.Queue
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New binds a Dispatcher to an already-listening socket and the
// worker queues it feeds. len(queues) is the worker count used by the
// sharding function.
func New(conn net.PacketConn, queues []*queue.Queue, log zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{conn: conn, queues: queues, log: log.With().Str("component", "dispatcher").Logger(), metrics: m}
}

// Shard sums Call-ID's bytes modulo the worker count. spec.md §4.3 is
// explicit that this is a deliberately simple function whose only
// guaranteed property is that every datagram for one Call-ID lands on
// the same worker; uniform distribution is not a goal.
func Shard(callID []byte, workerCount int) int {
	if workerCount <= 0 {
		return 0
	}
	var sum int
	for _, b := range callID {
		sum += int(b)
	}
	return sum % workerCount
}

// Run loops reading datagrams until ctx-equivalent shutdown: the
// caller stops the loop by closing conn, which unblocks ReadFrom with
// net.ErrClosed.
func (d *Dispatcher) Run() error {
	buf := make([]byte, sip.MaxDatagramSize)
	for {
		if err := d.conn.SetReadDeadline(time.Now().Add(ReadDeadline)); err != nil {
			return err
		}
		n, peer, err := d.conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			d.log.Error().Err(err).Msg("read error")
			continue
		}

		d.metrics.DatagramsReceived.WithLabelValues().Inc()
		d.handleDatagram(buf[:n], peer)
	}
}

func (d *Dispatcher) handleDatagram(data []byte, peer net.Addr) {
	callID, ok := sip.GetHeaderValue(data, "Call-ID")
	if !ok {
		d.log.Warn().Str("peer", peer.String()).Msg("datagram missing Call-ID, dropped")
		d.metrics.DatagramsDropped.WithLabelValues("no_call_id").Inc()
		return
	}

	msg := sip.NewMessage(data, peer)
	idx := Shard(callID.Get(msg.Raw), len(d.queues))
	if !d.queues[idx].Enqueue(msg) {
		d.log.Warn().Str("peer", peer.String()).Int("worker", idx).Msg("worker queue full, dropped")
		d.metrics.DatagramsDropped.WithLabelValues("queue_full").Inc()
	}
}
