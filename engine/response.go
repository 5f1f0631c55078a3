package engine

import "github.com/sipterm/uasd/sip"

// ResponseClass is the status-code range classification spec.md
// §4.5's response path dispatches on.
type ResponseClass string

const (
	ClassProvisional  ResponseClass = "provisional"
	ClassSuccess      ResponseClass = "success"
	ClassRedirection  ResponseClass = "redirection"
	ClassClientError  ResponseClass = "client_error"
	ClassServerError  ResponseClass = "server_error"
	ClassGlobalFailure ResponseClass = "global_failure"
	ClassUnknown      ResponseClass = "unknown"
)

// ClassifyStatus maps a status code to its RFC 3261 range.
func ClassifyStatus(code int) ResponseClass {
	switch {
	case code >= 100 && code <= 199:
		return ClassProvisional
	case code >= 200 && code <= 299:
		return ClassSuccess
	case code >= 300 && code <= 399:
		return ClassRedirection
	case code >= 400 && code <= 499:
		return ClassClientError
	case code >= 500 && code <= 599:
		return ClassServerError
	case code >= 600 && code <= 699:
		return ClassGlobalFailure
	default:
		return ClassUnknown
	}
}

// handleResponse implements spec.md §4.5's response path: look up the
// transaction by branch, drop if none, otherwise classify and
// dispatch. The UAS side of this engine never acts as a UAC, so full
// client-side semantics are out of scope here; these remain stubs, as
// they are in spec.md's own source.
func (e *Engine) handleResponse(msg *sip.Message) {
	branch := msg.ViaBranchString()
	tx, ok := e.reg.FindTransaction(branch)
	if !ok {
		e.log.Debug().Str("branch", branch).Int("status", msg.StatusCode).Msg("response for unknown transaction, dropped")
		return
	}

	switch ClassifyStatus(msg.StatusCode) {
	case ClassProvisional:
		e.onProvisional(tx, msg)
	case ClassSuccess:
		e.onSuccess(tx, msg)
	case ClassRedirection:
		e.onRedirection(tx, msg)
	case ClassClientError:
		e.onClientError(tx, msg)
	case ClassServerError:
		e.onServerError(tx, msg)
	case ClassGlobalFailure:
		e.onGlobalFailure(tx, msg)
	default:
		e.log.Warn().Int("status", msg.StatusCode).Msg("response with out-of-range status")
	}
}
