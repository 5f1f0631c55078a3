// Package uasd ties the lazy parser, bounded queue, dispatcher,
// registry, and request engine together into a runnable server. One
// Worker owns one queue and one private registry; nothing is shared
// between workers, per spec.md §5.
package uasd

import (
	"net"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/sipterm/uasd/calllog"
	"github.com/sipterm/uasd/engine"
	"github.com/sipterm/uasd/metrics"
	"github.com/sipterm/uasd/queue"
	"github.com/sipterm/uasd/registry"
	"github.com/sipterm/uasd/sip"
)

// controlQueueCapacity bounds the worker's control channel, which
// timer goroutines post cleanup/Timer-H closures onto. Depth tracks
// how many entities can plausibly have a cleanup or Timer H in flight
// at once; it is not a hard resource limit like the message queue.
const controlQueueCapacity = 64

// Worker is a single message-processing goroutine: dequeue, parse,
// hand off to the engine. Its queue is fed by the Dispatcher; its
// registry and engine are exclusively its own. Timer callbacks
// (registry cleanup, engine's Timer H) never touch the registry from
// their own goroutine — they post a closure onto control, which only
// Run ever drains, so every registry mutation still happens on this
// one owning goroutine.
type Worker struct {
	id      int
	q       *queue.Queue
	control chan func()
	reg     *registry.Registry
	eng     *engine.Engine
	conn    engine.Sender
	log     zerolog.Logger
	m       *metrics.Metrics
	label   string
}

// NewWorker builds a Worker with its own Registry and Engine. conn is
// the shared UDP socket every worker writes responses on — safe for
// concurrent use per spec.md §5's shared-resource policy.
func NewWorker(id, queueCapacity int, conn engine.Sender, log zerolog.Logger, m *metrics.Metrics, cdr *calllog.Logger) *Worker {
	label := strconv.Itoa(id)
	control := make(chan func(), controlQueueCapacity)
	post := registry.Dispatch(func(fn func()) { control <- fn })
	reg := registry.New(id, log, post)
	return &Worker{
		id:      id,
		q:       queue.New(queueCapacity),
		control: control,
		reg:     reg,
		eng:     engine.New(reg, conn, log, m, cdr, post),
		conn:    conn,
		log:     log.With().Int("worker", id).Logger(),
		m:       m,
		label:   label,
	}
}

// Queue exposes the worker's inbound queue for the dispatcher to
// enqueue onto.
func (w *Worker) Queue() *queue.Queue { return w.q }

// Run drains both the message queue and the control channel until the
// queue is closed. Intended to be started on its own goroutine; it is
// the only goroutine ever allowed to touch w.reg.
func (w *Worker) Run() {
	msgCh := make(chan *sip.Message)
	go func() {
		defer close(msgCh)
		for {
			msg, ok := w.q.Dequeue()
			if !ok {
				return
			}
			msgCh <- msg
		}
	}()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				w.log.Debug().Msg("queue closed, worker stopping")
				return
			}
			w.process(msg)
			w.m.QueueDepth.WithLabelValues(w.label).Set(float64(w.q.Len()))
		case fn := <-w.control:
			fn()
		}
	}
}

// Stop closes the worker's queue, releasing any still-queued messages
// and waking Run so it returns.
func (w *Worker) Stop() { w.q.Close() }

func (w *Worker) process(msg *sip.Message) {
	if err := sip.ParseMessage(msg); err != nil {
		w.handleParseError(msg, err)
		return
	}
	w.eng.Handle(msg)
}

// handleParseError implements spec.md §7's error taxonomy: unknown
// method still reaches the engine (it replies 501 itself); missing
// mandatory fields get a 400 Bad Request per the reimplementation fix
// spec.md calls for over the source's silent drop; everything else is
// a silent drop.
func (w *Worker) handleParseError(msg *sip.Message, err error) {
	switch err {
	case sip.ErrUnknownMethod:
		w.eng.Handle(msg)
	case sip.ErrMissingMandatoryHeader, sip.ErrMissingMandatoryParameter:
		w.log.Info().Err(err).Str("peer", addrString(msg.Peer)).Msg("missing mandatory field, replying 400")
		data, buildErr := sip.BuildResponse(msg, 400, "Bad Request", "")
		if buildErr != nil {
			w.log.Debug().Err(buildErr).Msg("cannot build 400 for malformed request, dropping silently")
			return
		}
		if _, sendErr := w.conn.WriteTo(data, msg.Peer); sendErr != nil {
			w.log.Warn().Err(sendErr).Msg("failed to send 400")
			return
		}
		w.m.ResponsesSent.WithLabelValues("400").Inc()
	default:
		w.log.Debug().Err(err).Str("peer", addrString(msg.Peer)).Msg("dropping malformed or unsupported message")
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
