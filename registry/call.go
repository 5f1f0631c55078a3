package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// Call states, named to match spec.md §3 exactly.
const (
	CallIDLE        = "IDLE"
	CallINCOMING    = "INCOMING"
	CallRINGING     = "RINGING"
	CallESTABLISHED = "ESTABLISHED"
	CallFAILED      = "FAILED"
	CallTERMINATING = "TERMINATING"
	CallTERMINATED  = "TERMINATED"
)

// MaxDialogsPerCall is the bounded fan-out from spec.md §5.
const MaxDialogsPerCall = 16

// Call is the high-level call record, keyed by Call-ID.
type Call struct {
	ID string // Call-ID

	fsm *fsm.FSM

	dialogs map[string]struct{} // owned dialog keys (fromTag\x00toTag)

	TraceID   string
	StartedAt time.Time

	cleanup *scheduledCleanup
}

func newCall(callID string) *Call {
	c := &Call{
		ID:        callID,
		dialogs:   make(map[string]struct{}),
		TraceID:   uuid.NewString(),
		StartedAt: time.Now(),
	}
	c.fsm = fsm.NewFSM(
		CallIDLE,
		fsm.Events{
			{Name: "incoming", Src: []string{CallIDLE}, Dst: CallINCOMING},
			{Name: "ring", Src: []string{CallINCOMING}, Dst: CallRINGING},
			{Name: "establish", Src: []string{CallRINGING, CallINCOMING}, Dst: CallESTABLISHED},
			{Name: "fail", Src: []string{CallINCOMING, CallRINGING, CallESTABLISHED}, Dst: CallFAILED},
			{Name: "terminating", Src: []string{CallESTABLISHED}, Dst: CallTERMINATING},
			{Name: "terminate", Src: []string{CallIDLE, CallINCOMING, CallRINGING, CallESTABLISHED, CallFAILED, CallTERMINATING}, Dst: CallTERMINATED},
		},
		fsm.Callbacks{},
	)
	return c
}

// State reports the call's current state.
func (c *Call) State() string { return c.fsm.Current() }

func (c *Call) Fire(event string) error {
	return c.fsm.Event(context.Background(), event)
}

func (c *Call) attach(dialogKey string) bool {
	if _, ok := c.dialogs[dialogKey]; ok {
		return true
	}
	if len(c.dialogs) >= MaxDialogsPerCall {
		return false
	}
	c.dialogs[dialogKey] = struct{}{}
	return true
}

func (c *Call) detach(dialogKey string) {
	delete(c.dialogs, dialogKey)
}
