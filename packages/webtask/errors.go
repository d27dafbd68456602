package webtask

import "errors"

var (
	// ErrNoSession is the outcome of a Task dispatched without a live
	// session. The Task fails immediately: no operation is created, the
	// pipeline drains, and any pending wait is released.
	ErrNoSession = errors.New("webtask: task has no session")

	// ErrBodyDecode is the outcome when a JSON handler finds an empty
	// or undecodable response body.
	ErrBodyDecode = errors.New("webtask: empty or undecodable response body")

	// ErrCancelled flavors completions caused by Cancel or by a wait
	// timeout expiring while the operation was still running.
	ErrCancelled = errors.New("webtask: operation cancelled")
)
