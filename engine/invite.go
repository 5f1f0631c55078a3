package engine

import (
	"github.com/sipterm/uasd/registry"
	"github.com/sipterm/uasd/sip"
)

func (e *Engine) handleInvite(msg *sip.Message, branch string) {
	kind, existing := e.reg.MatchRequest(branch, msg)
	switch kind {
	case registry.MatchRetransmission:
		e.resend(existing)
		return
	case registry.MatchCollision:
		e.log.Warn().Str("branch", branch).Msg("INVITE branch collision, dropped")
		return
	case registry.MatchAck:
		// An INVITE can never satisfy the ACK-correlation case; treat
		// defensively as a collision.
		e.log.Warn().Str("branch", branch).Msg("unexpected ACK-shaped correlation for INVITE")
		return
	}

	callID := msg.CallIDString()
	fromTag := msg.FromTagString()

	// Re-INVITE: the request already names a (From-tag, To-tag) dialog.
	// spec.md §4.5 leaves the exact behavior open; this implementation
	// replies 501 and leaves existing state untouched.
	if existingToTag := msg.ToTagString(); existingToTag != "" {
		if _, ok := e.reg.FindDialog(fromTag, existingToTag); ok {
			tx := e.reg.CreateTransaction(branch, msg)
			if err := e.sendResponse(msg, 501, "Not Implemented", existingToTag); err != nil {
				e.log.Warn().Err(err).Msg("failed to reply to re-INVITE")
			}
			_ = tx.Fire("terminate")
			e.reg.ScheduleTransactionCleanup(branch)
			return
		}
	}

	tx := e.reg.CreateTransaction(branch, msg)

	// Step 1: 100 Trying.
	if err := e.sendResponse(msg, 100, "Trying", ""); err != nil {
		e.log.Error().Err(err).Msg("failed to send 100 Trying")
		_ = e.sendResponse(msg, 500, "Internal Server Error", "")
		_ = tx.Fire("terminate")
		e.reg.ScheduleTransactionCleanup(branch)
		return
	}
	_ = tx.Fire("proceed")

	// Step 3: create dialog (EARLY) and call (INCOMING), link them.
	toTag := e.reg.NewToTag()
	dlg := e.reg.CreateDialog(fromTag, toTag, callID)
	_ = dlg.Fire("ring")
	call := e.reg.CreateCall(callID)
	_ = call.Fire("incoming")
	e.reg.LinkDialogToCall(callID, fromTag, toTag)
	e.reg.LinkTransactionToDialog(fromTag, toTag, branch)

	// Step 4: 180 Ringing.
	if err := e.sendResponse(msg, 180, "Ringing", toTag); err != nil {
		e.log.Error().Err(err).Msg("failed to send 180 Ringing")
		e.failInvite(msg, tx, dlg, call, fromTag, toTag, branch)
		return
	}
	_ = call.Fire("ring")

	// Step 6: 200 OK.
	if err := e.sendResponse(msg, 200, "OK", toTag); err != nil {
		e.log.Error().Err(err).Msg("failed to send 200 OK")
		e.failInvite(msg, tx, dlg, call, fromTag, toTag, branch)
		return
	}

	// Step 7: transaction awaits its ACK (COMPLETED), dialog and call
	// advance to their success states.
	_ = tx.Fire("complete")
	_ = dlg.Fire("confirm")
	_ = call.Fire("establish")
	e.armTimerH(branch)
}

// failInvite implements the step-4/step-6 rollback path: reply 500,
// then transaction→COMPLETED (awaiting a possible stray ACK), dialog
// and call→their failure states.
func (e *Engine) failInvite(msg *sip.Message, tx *registry.Transaction, dlg *registry.Dialog, call *registry.Call, fromTag, toTag, branch string) {
	if err := e.sendResponse(msg, 500, "Internal Server Error", toTag); err != nil {
		e.log.Warn().Err(err).Msg("failed to send rollback 500")
	}
	_ = tx.Fire("complete")
	_ = dlg.Fire("terminate")
	_ = call.Fire("fail")
	e.armTimerH(branch)
	e.reg.ScheduleDialogCleanup(fromTag, toTag)
}
