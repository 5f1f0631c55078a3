package engine

import (
	"time"

	"github.com/sipterm/uasd/calllog"
	"github.com/sipterm/uasd/registry"
	"github.com/sipterm/uasd/sip"
)

// handleAck implements spec.md §4.5's ACK correlation: matched by
// branch, never transaction-creating by itself. In every outcome the
// matched transaction moves to TERMINATED and no response is sent.
func (e *Engine) handleAck(msg *sip.Message, branch string) {
	kind, tx := e.reg.MatchRequest(branch, msg)
	switch kind {
	case registry.MatchAck:
		tx.Ack = msg
		switch {
		case tx.State() == registry.TxCOMPLETED:
			e.log.Info().Str("branch", branch).Msg("ACK for completed INVITE")
		case tx.State() == registry.TxIDLE && tx.DialogID != "" && e.dialogConfirmed(tx.DialogID):
			e.log.Info().Str("branch", branch).Msg("ACK for successful INVITE")
		default:
			e.log.Warn().Str("branch", branch).Str("state", tx.State()).Msg("unexpected ACK")
		}
		_ = tx.Fire("terminate")
		e.reg.ScheduleTransactionCleanup(branch)
	default:
		e.log.Warn().Str("branch", branch).Msg("ACK for unknown transaction")
	}
}

func (e *Engine) dialogConfirmed(key string) bool {
	d, ok := e.reg.FindDialogByKey(key)
	return ok && d.State() == registry.DlgCONFIRMED
}

// handleBye implements spec.md §4.5's BYE path: matched by branch,
// dialog resolved by (From-tag, To-tag).
func (e *Engine) handleBye(msg *sip.Message, branch string) {
	kind, existing := e.reg.MatchRequest(branch, msg)
	switch kind {
	case registry.MatchRetransmission:
		e.resend(existing)
		return
	case registry.MatchCollision:
		e.log.Warn().Str("branch", branch).Msg("BYE branch collision, dropped")
		return
	}

	fromTag := msg.FromTagString()
	toTag := msg.ToTagString()
	tx := e.reg.CreateTransaction(branch, msg)

	dlg, ok := e.reg.FindDialog(fromTag, toTag)
	if !ok {
		if err := e.sendResponse(msg, 404, "Not Found", toTag); err != nil {
			e.log.Warn().Err(err).Msg("failed to send 404 for BYE")
		}
		_ = tx.Fire("terminate")
		e.reg.ScheduleTransactionCleanup(branch)
		return
	}

	call, callOK := e.reg.FindCall(dlg.CallID)

	if dlg.State() != registry.DlgCONFIRMED {
		if err := e.sendResponse(msg, 403, "Forbidden", toTag); err != nil {
			e.log.Warn().Err(err).Msg("failed to send 403 for BYE")
		}
		_ = tx.Fire("terminate")
		e.reg.ScheduleTransactionCleanup(branch)
		return
	}

	if callOK {
		_ = call.Fire("terminating")
	}
	if err := e.sendResponse(msg, 200, "OK", toTag); err != nil {
		e.log.Warn().Err(err).Msg("failed to send 200 for BYE")
	}
	if callOK {
		_ = call.Fire("terminate")
		if e.cdr != nil {
			e.cdr.Record(dlg.CallID, dlg.FromTag, dlg.ToTag, calllog.ResultEstablished, time.Since(call.StartedAt))
		}
	}
	_ = dlg.Fire("terminate")
	_ = tx.Fire("terminate")

	e.reg.ScheduleTransactionCleanup(branch)
	e.reg.ScheduleDialogCleanup(dlg.FromTag, dlg.ToTag)
	if callOK {
		e.reg.ScheduleCallCleanup(dlg.CallID)
	}
}

// handleUnknown implements spec.md §4.5's generic method path.
func (e *Engine) handleUnknown(msg *sip.Message, branch string) {
	tx := e.reg.CreateTransaction(branch, msg)
	if err := e.sendResponse(msg, 501, "Not Implemented", ""); err != nil {
		e.log.Warn().Err(err).Msg("failed to send 501")
	}
	_ = tx.Fire("terminate")
	e.reg.ScheduleTransactionCleanup(branch)
}
