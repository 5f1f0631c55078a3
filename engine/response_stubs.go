package engine

import (
	"github.com/sipterm/uasd/registry"
	"github.com/sipterm/uasd/sip"
)

// The handlers below are intentionally stubs: spec.md §4.5 states the
// full client-side semantics for inbound responses are out of scope,
// and that the source's own handlers are stubs too. Each just logs the
// branch and status at debug level so the seam is visible without pretending
// to implement UAC behavior this engine doesn't have.

func (e *Engine) onProvisional(tx *registry.Transaction, msg *sip.Message) {
	e.log.Debug().Str("branch", tx.Branch).Int("status", msg.StatusCode).Msg("provisional response")
}

func (e *Engine) onSuccess(tx *registry.Transaction, msg *sip.Message) {
	e.log.Debug().Str("branch", tx.Branch).Int("status", msg.StatusCode).Msg("success response")
}

func (e *Engine) onRedirection(tx *registry.Transaction, msg *sip.Message) {
	e.log.Debug().Str("branch", tx.Branch).Int("status", msg.StatusCode).Msg("redirection response")
}

func (e *Engine) onClientError(tx *registry.Transaction, msg *sip.Message) {
	e.log.Debug().Str("branch", tx.Branch).Int("status", msg.StatusCode).Msg("client error response")
}

func (e *Engine) onServerError(tx *registry.Transaction, msg *sip.Message) {
	e.log.Debug().Str("branch", tx.Branch).Int("status", msg.StatusCode).Msg("server error response")
}

func (e *Engine) onGlobalFailure(tx *registry.Transaction, msg *sip.Message) {
	e.log.Debug().Str("branch", tx.Branch).Int("status", msg.StatusCode).Msg("global failure response")
}
