// Package engine implements the request state machines of spec.md
// §4.5: INVITE, ACK, BYE, and the generic unsupported-method path,
// plus the response-path classification stub. It consumes parsed
// messages, mutates a worker's registry, drives transaction/dialog/
// call state, and writes responses on the shared UDP socket — grounded
// on the teacher's server_dialog.go request/response wiring, adapted
// from the teacher's structured Header objects to this module's
// lazy-parsed sip.Message.
package engine

import (
	"net"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/sipterm/uasd/calllog"
	"github.com/sipterm/uasd/metrics"
	"github.com/sipterm/uasd/registry"
	"github.com/sipterm/uasd/sip"
	"github.com/sipterm/uasd/timer"
)

// Sender is the subset of net.PacketConn the engine needs to deliver
// responses; satisfied by *net.UDPConn in production and a fake in
// tests.
type Sender interface {
	WriteTo(p []byte, addr net.Addr) (int, error)
}

// Engine drives one worker's registry in response to parsed messages.
// It is not safe for concurrent use — exactly like the Registry it
// wraps, it is owned by a single worker goroutine, and the same rule
// applies to post: it must marshal its argument back onto that
// goroutine, since armTimerH's callback otherwise runs on a timer
// goroutine and would touch the registry unsynchronized.
type Engine struct {
	reg     *registry.Registry
	conn    Sender
	log     zerolog.Logger
	metrics *metrics.Metrics
	cdr     *calllog.Logger
	post    registry.Dispatch
}

// New builds an Engine over a worker's Registry.
func New(reg *registry.Registry, conn Sender, log zerolog.Logger, m *metrics.Metrics, cdr *calllog.Logger, post registry.Dispatch) *Engine {
	return &Engine{reg: reg, conn: conn, log: log.With().Str("component", "engine").Logger(), metrics: m, cdr: cdr, post: post}
}

// Handle dispatches a fully parsed message to the request or response
// path.
func (e *Engine) Handle(msg *sip.Message) {
	if msg.IsRequest {
		e.handleRequest(msg)
		return
	}
	e.handleResponse(msg)
}

func (e *Engine) handleRequest(msg *sip.Message) {
	branch := msg.ViaBranchString()
	switch msg.Method {
	case sip.MethodInvite:
		e.handleInvite(msg, branch)
	case sip.MethodAck:
		e.handleAck(msg, branch)
	case sip.MethodBye:
		e.handleBye(msg, branch)
	default:
		e.handleUnknown(msg, branch)
	}
}

// sendResponse builds and writes a response for req, recording it on
// req.Out so a retransmission of the same request can resend it
// verbatim (P4).
func (e *Engine) sendResponse(req *sip.Message, code int, reason, toTag string) error {
	data, err := sip.BuildResponse(req, code, reason, toTag)
	if err != nil {
		return err
	}
	req.Out = data
	if _, err := e.conn.WriteTo(data, req.Peer); err != nil {
		return err
	}
	e.metrics.ResponsesSent.WithLabelValues(strconv.Itoa(code)).Inc()
	return nil
}

// resend rewrites a transaction's previously stored response
// verbatim, for the retransmission path (P4).
func (e *Engine) resend(tx *registry.Transaction) {
	if tx.Request.Out == nil {
		return
	}
	if _, err := e.conn.WriteTo(tx.Request.Out, tx.Request.Peer); err != nil {
		e.log.Warn().Err(err).Str("branch", tx.Branch).Msg("resend failed")
	}
}

// armTimerH starts the ACK-pairing watchdog for a transaction that
// just entered COMPLETED: if no ACK arrives within timer.TimerH, the
// transaction is force-terminated the way RFC 3261 17.2.1's Timer H
// does. The timer itself is not stored or stopped when an ACK arrives;
// instead the callback does nothing if the transaction is gone or has
// already left COMPLETED by the time it runs.
func (e *Engine) armTimerH(branch string) {
	timer.Schedule(timer.TimerH, func() {
		e.post(func() {
			tx, ok := e.reg.FindTransaction(branch)
			if !ok || tx.State() != registry.TxCOMPLETED {
				return
			}
			e.log.Warn().Str("branch", branch).Msg("timer H fired, no ACK received")
			_ = tx.Fire("terminate")
			e.reg.ScheduleTransactionCleanup(branch)
		})
	})
}
