package registry

import (
	"errors"
	"net"

	"github.com/rs/zerolog"

	"github.com/sipterm/uasd/sip"
	"github.com/sipterm/uasd/timer"
)

// scheduledCleanup wraps the timer.Timer started when an entity
// reaches TERMINATED; it performs the actual map deletion after
// timer.CleanupGrace so a retransmitted final response arriving
// microseconds after termination still finds the transaction.
type scheduledCleanup struct {
	t *timer.Timer
}

// MatchKind classifies how an incoming request correlates against the
// registry's transaction set, per spec.md §4.4's correlation rule.
type MatchKind int

const (
	MatchNew MatchKind = iota
	MatchRetransmission
	MatchAck
	MatchCollision
)

// ErrBranchCollision is returned by MatchRequest when an existing
// transaction's branch is reused by a request that is neither a
// retransmission nor an ACK for it.
var ErrBranchCollision = errors.New("branch collision")

// Dispatch runs fn on the registry's owning worker goroutine. Timer
// callbacks (time.AfterFunc, see timer.Schedule) fire on a runtime
// goroutine that is never the owning worker, so every registry mutation
// a timer triggers must be marshaled back through Dispatch rather than
// applied directly from the callback.
type Dispatch func(func())

// Registry is the per-worker, single-threaded collection of calls,
// dialogs, and transactions. It is owned by exactly one worker
// goroutine; none of its methods take a lock, and none may be called
// from any other goroutine — including a timer callback, which is why
// every scheduled cleanup below goes through post rather than touching
// the maps itself.
type Registry struct {
	workerID int
	log      zerolog.Logger
	tags     *tagSource
	post     Dispatch

	calls        map[string]*Call
	dialogs      map[string]*Dialog
	transactions map[string]*Transaction
}

// New creates a Registry for the given worker index, used both to
// label log lines and to decorrelate each worker's To-tag PRNG seed.
// post must run its argument on the same goroutine that calls the
// Registry's other methods; the worker run loop supplies this by
// draining a control channel fed from timer callbacks.
func New(workerID int, log zerolog.Logger, post Dispatch) *Registry {
	return &Registry{
		workerID:     workerID,
		log:          log.With().Int("worker", workerID).Logger(),
		tags:         newTagSource(workerID),
		post:         post,
		calls:        make(map[string]*Call),
		dialogs:      make(map[string]*Dialog),
		transactions: make(map[string]*Transaction),
	}
}

// NewToTag draws a fresh 8-digit decimal To-tag.
func (r *Registry) NewToTag() string { return r.tags.next() }

// --- Transaction operations ---

func (r *Registry) FindTransaction(branch string) (*Transaction, bool) {
	tx, ok := r.transactions[branch]
	return tx, ok
}

func (r *Registry) CreateTransaction(branch string, req *sip.Message) *Transaction {
	tx := newTransaction(branch, req)
	r.transactions[branch] = tx
	return tx
}

// DeleteTransaction removes the transaction immediately, detaching it
// from its dialog (if any) without deleting the dialog.
func (r *Registry) DeleteTransaction(branch string) {
	tx, ok := r.transactions[branch]
	if !ok {
		return
	}
	if tx.cleanup != nil {
		tx.cleanup.t.Stop()
	}
	if tx.DialogID != "" {
		if d, ok := r.dialogs[tx.DialogID]; ok {
			d.detach(branch)
		}
	}
	delete(r.transactions, branch)
}

// ScheduleTransactionCleanup arranges for the transaction to be
// deleted after timer.CleanupGrace once it reaches TERMINATED.
func (r *Registry) ScheduleTransactionCleanup(branch string) {
	tx, ok := r.transactions[branch]
	if !ok || tx.cleanup != nil {
		return
	}
	tx.cleanup = &scheduledCleanup{t: timer.Schedule(timer.CleanupGrace, func() {
		r.post(func() { r.DeleteTransaction(branch) })
	})}
}

// --- Dialog operations ---

// FindDialog looks a dialog up by its two tags. Since either side of
// an established dialog may send the next in-dialog request, the tag
// that looks like "From" on the wire may be the dialog's stored
// To-tag and vice versa; both orderings are tried.
func (r *Registry) FindDialog(fromTag, toTag string) (*Dialog, bool) {
	if d, ok := r.dialogs[dialogKey(fromTag, toTag)]; ok {
		return d, ok
	}
	d, ok := r.dialogs[dialogKey(toTag, fromTag)]
	return d, ok
}

func (r *Registry) FindDialogByKey(key string) (*Dialog, bool) {
	d, ok := r.dialogs[key]
	return d, ok
}

func (r *Registry) CreateDialog(fromTag, toTag, callID string) *Dialog {
	d := newDialog(fromTag, toTag, callID)
	r.dialogs[dialogKey(fromTag, toTag)] = d
	return d
}

// LinkDialogToCall attaches a dialog to its parent call's owned set,
// enforcing the bounded fan-out (≤16 dialogs/call). It returns false
// if the call is already at capacity.
func (r *Registry) LinkDialogToCall(callID, fromTag, toTag string) bool {
	c, ok := r.calls[callID]
	if !ok {
		return false
	}
	return c.attach(dialogKey(fromTag, toTag))
}

// LinkTransactionToDialog attaches a transaction branch to a dialog's
// owned set and records the link on the transaction itself,
// enforcing the bounded fan-out (≤32 transactions/dialog).
func (r *Registry) LinkTransactionToDialog(fromTag, toTag, branch string) bool {
	key := dialogKey(fromTag, toTag)
	d, ok := r.dialogs[key]
	if !ok {
		return false
	}
	if !d.attach(branch) {
		return false
	}
	if tx, ok := r.transactions[branch]; ok {
		tx.DialogID = key
	}
	return true
}

// DeleteDialog detaches the dialog from its parent call's owned set
// and disowns (but does not delete) any transactions still linked to
// it, then removes the dialog itself.
func (r *Registry) DeleteDialog(fromTag, toTag string) {
	key := dialogKey(fromTag, toTag)
	d, ok := r.dialogs[key]
	if !ok {
		return
	}
	if d.cleanup != nil {
		d.cleanup.t.Stop()
	}
	if c, ok := r.calls[d.CallID]; ok {
		c.detach(key)
	}
	for branch := range d.transactions {
		if tx, ok := r.transactions[branch]; ok {
			tx.DialogID = ""
		}
	}
	delete(r.dialogs, key)
}

func (r *Registry) ScheduleDialogCleanup(fromTag, toTag string) {
	key := dialogKey(fromTag, toTag)
	d, ok := r.dialogs[key]
	if !ok || d.cleanup != nil {
		return
	}
	d.cleanup = &scheduledCleanup{t: timer.Schedule(timer.CleanupGrace, func() {
		r.post(func() { r.DeleteDialog(fromTag, toTag) })
	})}
}

// --- Call operations ---

func (r *Registry) FindCall(callID string) (*Call, bool) {
	c, ok := r.calls[callID]
	return c, ok
}

func (r *Registry) CreateCall(callID string) *Call {
	c := newCall(callID)
	r.calls[callID] = c
	return c
}

// DeleteCall disowns (without forcibly deleting) any dialogs still
// linked to it, then removes the call itself.
func (r *Registry) DeleteCall(callID string) {
	c, ok := r.calls[callID]
	if !ok {
		return
	}
	if c.cleanup != nil {
		c.cleanup.t.Stop()
	}
	for key := range c.dialogs {
		if d, ok := r.dialogs[key]; ok {
			d.CallID = ""
		}
	}
	delete(r.calls, callID)
}

func (r *Registry) ScheduleCallCleanup(callID string) {
	c, ok := r.calls[callID]
	if !ok || c.cleanup != nil {
		return
	}
	c.cleanup = &scheduledCleanup{t: timer.Schedule(timer.CleanupGrace, func() {
		r.post(func() { r.DeleteCall(callID) })
	})}
}

// MatchRequest implements spec.md §4.4's correlation rule for an
// incoming request already known to carry branch. It never creates
// state itself beyond what's needed to report the classification; the
// engine acts on the returned kind.
func (r *Registry) MatchRequest(branch string, req *sip.Message) (MatchKind, *Transaction) {
	tx, ok := r.transactions[branch]
	if !ok {
		return MatchNew, nil
	}

	sameCSeq := tx.Request.CSeqString() == req.CSeqString()
	samePeer := peerEqual(tx.Request.Peer, req.Peer)
	if sameCSeq && samePeer {
		return MatchRetransmission, tx
	}

	if req.Method == sip.MethodAck && tx.Request.Method == sip.MethodInvite {
		return MatchAck, tx
	}

	return MatchCollision, tx
}

func peerEqual(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
