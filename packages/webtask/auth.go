package webtask

import "strings"

// Disposition tells the transport how to answer a challenge.
type Disposition int

const (
	// DispositionDefault lets the transport proceed without credentials;
	// the pending response (typically a 401) is delivered as-is.
	DispositionDefault Disposition = iota
	// DispositionUseCredential retries the exchange with the returned
	// credential applied.
	DispositionUseCredential
	// DispositionCancel aborts the exchange with a cancellation outcome.
	DispositionCancel
)

// Credential is a username/password pair applied to a retried exchange.
type Credential struct {
	Username string
	Password string
}

// Challenge describes one authentication negotiation event raised by
// the transport mid-exchange.
type Challenge struct {
	// Scheme is the authentication scheme from the WWW-Authenticate
	// header, e.g. "Basic" or "Digest". Empty means the transport's
	// default method.
	Scheme string
	Realm  string
	Host   string
	// PriorFailures counts earlier failed attempts for this exchange.
	PriorFailures int
}

// AuthHandler answers a challenge. A non-nil error becomes the Task's
// outcome, short-circuiting the pipeline like a transport failure.
type AuthHandler func(ch *Challenge) (Disposition, *Credential, error)

// isCapped reports whether the scheme is subject to the session's
// retry budget. Basic and the transport default are capped; every
// other scheme always reaches the handler. Scheme names compare
// case-insensitively per RFC 7235.
func (c *Challenge) isCapped() bool {
	return c.Scheme == "" || strings.EqualFold(c.Scheme, "Basic")
}

// handleChallenge routes one challenge for this Task. Without a
// registered handler the transport performs default handling. Capped
// schemes consult the session retry budget (0 = unlimited) through an
// atomic per-Task counter: once the budget is spent the handler is no
// longer invoked and default handling applies.
func (t *Task) handleChallenge(ch *Challenge, respond func(Disposition, *Credential)) {
	handler := t.authHandler
	if handler == nil {
		respond(DispositionDefault, nil)
		return
	}

	if ch.isCapped() {
		if max := t.session.MaxAuthRetries(); max > 0 {
			if t.authAttempts.Add(1) > int32(max) {
				respond(DispositionDefault, nil)
				return
			}
		}
	}

	disp, cred, err := handler(ch)
	if err != nil {
		t.err = err
	}
	respond(disp, cred)
}
