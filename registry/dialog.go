package registry

import (
	"context"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// Dialog states, named to match spec.md §3 exactly.
const (
	DlgIDLE       = "IDLE"
	DlgEARLY      = "EARLY"
	DlgCONFIRMED  = "CONFIRMED"
	DlgTERMINATED = "TERMINATED"
)

// MaxTransactionsPerDialog is the bounded fan-out from spec.md §5.
const MaxTransactionsPerDialog = 32

// Dialog is the SIP dialog, keyed by (From-tag, To-tag).
type Dialog struct {
	FromTag string
	ToTag   string

	fsm *fsm.FSM

	CallID       string
	transactions map[string]struct{} // owned transaction branches

	TraceID string

	cleanup *scheduledCleanup
}

func dialogKey(fromTag, toTag string) string {
	return fromTag + "\x00" + toTag
}

func newDialog(fromTag, toTag, callID string) *Dialog {
	d := &Dialog{
		FromTag:      fromTag,
		ToTag:        toTag,
		CallID:       callID,
		transactions: make(map[string]struct{}),
		TraceID:      uuid.NewString(),
	}
	d.fsm = fsm.NewFSM(
		DlgIDLE,
		fsm.Events{
			{Name: "ring", Src: []string{DlgIDLE}, Dst: DlgEARLY},
			{Name: "confirm", Src: []string{DlgIDLE, DlgEARLY}, Dst: DlgCONFIRMED},
			{Name: "terminate", Src: []string{DlgIDLE, DlgEARLY, DlgCONFIRMED}, Dst: DlgTERMINATED},
		},
		fsm.Callbacks{},
	)
	return d
}

// State reports the dialog's current state.
func (d *Dialog) State() string { return d.fsm.Current() }

func (d *Dialog) Fire(event string) error {
	return d.fsm.Event(context.Background(), event)
}

// attach links a transaction branch into this dialog's owned set,
// rejecting past the bounded fan-out.
func (d *Dialog) attach(branch string) bool {
	if _, ok := d.transactions[branch]; ok {
		return true
	}
	if len(d.transactions) >= MaxTransactionsPerDialog {
		return false
	}
	d.transactions[branch] = struct{}{}
	return true
}

func (d *Dialog) detach(branch string) {
	delete(d.transactions, branch)
}
