package registry

import (
	"context"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/sipterm/uasd/sip"
)

// Transaction states, named to match spec.md §3 exactly.
const (
	TxIDLE       = "IDLE"
	TxPROCEEDING = "PROCEEDING"
	TxCOMPLETED  = "COMPLETED"
	TxTERMINATED = "TERMINATED"
)

// Transaction is the RFC 3261 server transaction, keyed by Via branch.
// It owns the request message for its entire lifetime and optionally
// records a later ACK once one arrives.
type Transaction struct {
	Branch string

	fsm *fsm.FSM

	Request  *sip.Message
	Ack      *sip.Message
	DialogID string // (From-tag,To-tag) composite key, empty if unlinked

	FinalStatus int
	TraceID     string

	cleanup *scheduledCleanup
}

func newTransaction(branch string, req *sip.Message) *Transaction {
	tx := &Transaction{
		Branch:  branch,
		Request: req,
		TraceID: uuid.NewString(),
	}
	tx.fsm = fsm.NewFSM(
		TxIDLE,
		fsm.Events{
			{Name: "proceed", Src: []string{TxIDLE}, Dst: TxPROCEEDING},
			{Name: "complete", Src: []string{TxIDLE, TxPROCEEDING}, Dst: TxCOMPLETED},
			{Name: "terminate", Src: []string{TxIDLE, TxPROCEEDING, TxCOMPLETED}, Dst: TxTERMINATED},
		},
		fsm.Callbacks{},
	)
	return tx
}

// State reports the transaction's current state.
func (tx *Transaction) State() string { return tx.fsm.Current() }

// Fire drives the transaction's state machine. It returns
// fsm.InvalidEventError if the requested transition isn't legal from
// the current state.
func (tx *Transaction) Fire(event string) error {
	return tx.fsm.Event(context.Background(), event)
}
