package webtask

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind selects the underlying operation a Task dispatches.
type Kind int

const (
	Fetch Kind = iota
	Download
	Upload
)

// WaitForever makes ResumeAndWait block without a time bound.
const WaitForever time.Duration = -1

// CompletionFunc is the terminal callback a transport invokes exactly
// once per operation. location is non-empty only for downloads.
type CompletionFunc func(resp *Response, location string, err error)

// Operation is the cancellable handle a transport returns for one
// in-flight exchange.
type Operation interface {
	ID() int
	Start()
	Suspend()
	Resume()
	Cancel()
	Running() bool
}

// DownloadHandler consumes the on-disk location of a completed
// download. Its error return becomes the Task outcome.
type DownloadHandler func(location string, resp *Response) error

// Session supplies the operation factories a Task dispatches through.
// Tasks hold a non-owning reference: a closed session returns nil
// operations and dispatch fails safely with ErrNoSession.
type Session interface {
	Fetch(req *Request, done CompletionFunc) Operation
	Download(req *Request, done CompletionFunc) Operation
	Upload(req *Request, done CompletionFunc) Operation
	Registry() *Registry
	MaxAuthRetries() int
	SetDownloadHandler(fn DownloadHandler)
	DownloadHandler() DownloadHandler
}

// Task couples one HTTP exchange to a serial deferred handler pipeline.
// Configuration mutates the owned Request until dispatch; handlers
// enqueue onto the paused pipeline; Resume dispatches exactly once
// (subsequent calls reuse the existing operation); the transport's
// completion callback records the outcome, unpauses the pipeline, and
// releases any pending wait.
type Task struct {
	kind    Kind
	session Session
	req     *Request
	pipe    *pipeline

	mu         sync.Mutex // guards op and dispatched
	op         Operation
	dispatched bool

	waitRequested bool
	waitTimeout   time.Duration
	waitCh        chan struct{}
	signalOnce    sync.Once

	authHandler  AuthHandler
	authAttempts atomic.Int32

	completed atomic.Bool

	// Written by the completion routine before the pipeline is
	// unpaused, then read and (err only) rewritten by pipeline units.
	resp         *Response
	fileLocation string
	err          error
}

// New creates a Task of the given kind bound to a session. A nil req
// starts from an empty GET descriptor.
func New(session Session, kind Kind, req *Request) *Task {
	if req == nil {
		req = NewRequest("GET", "")
	}
	return &Task{
		kind:    kind,
		session: session,
		req:     req,
		pipe:    newPipeline(),
	}
}

// configure runs fn against the descriptor unless the Task has been
// dispatched; post-dispatch configuration has no effect.
func (t *Task) configure(fn func(*Request)) *Task {
	t.mu.Lock()
	if !t.dispatched {
		fn(t.req)
	}
	t.mu.Unlock()
	return t
}

func (t *Task) Path(path string) *Task {
	return t.configure(func(r *Request) { r.Path = path })
}

func (t *Task) Method(method string) *Task {
	return t.configure(func(r *Request) { r.Method = method })
}

func (t *Task) Header(key, value string) *Task {
	return t.configure(func(r *Request) { r.SetHeader(key, value) })
}

func (t *Task) Headers(headers map[string]string) *Task {
	return t.configure(func(r *Request) {
		for k, v := range headers {
			r.SetHeader(k, v)
		}
	})
}

func (t *Task) QueryParam(key, value string) *Task {
	return t.configure(func(r *Request) { r.SetQueryParam(key, value) })
}

func (t *Task) QueryParams(params map[string]string) *Task {
	return t.configure(func(r *Request) {
		for k, v := range params {
			r.SetQueryParam(k, v)
		}
	})
}

func (t *Task) BodyParam(key string, value any) *Task {
	return t.configure(func(r *Request) { r.SetBodyParam(key, value) })
}

func (t *Task) BodyParams(params map[string]any, encoding ParameterEncoding) *Task {
	return t.configure(func(r *Request) {
		for k, v := range params {
			r.SetBodyParam(k, v)
		}
		r.Encoding = encoding
	})
}

func (t *Task) ParameterEncoding(encoding ParameterEncoding) *Task {
	return t.configure(func(r *Request) { r.Encoding = encoding })
}

func (t *Task) Body(body []byte, contentType string) *Task {
	return t.configure(func(r *Request) { r.SetBody(body, contentType) })
}

// JSONBody marshals v into the raw body. A marshal failure becomes the
// Task outcome so it surfaces through error handlers like any other
// failure.
func (t *Task) JSONBody(v any) *Task {
	return t.configure(func(r *Request) {
		if err := r.SetJSONBody(v); err != nil && t.err == nil {
			t.err = err
		}
	})
}

func (t *Task) SOAPBody(text string) *Task {
	return t.configure(func(r *Request) { r.SetSOAPBody(text) })
}

func (t *Task) CachePolicy(policy CachePolicy) *Task {
	return t.configure(func(r *Request) { r.CachePolicy = policy })
}

// Authenticate registers the challenge handler consulted by the
// challenge router.
func (t *Task) Authenticate(fn AuthHandler) *Task {
	t.authHandler = fn
	return t
}

// Resume dispatches the Task. The first call creates the underlying
// operation, registers it with the session registry, and starts it;
// later calls reuse the existing operation. If a wait was requested
// via ResumeAndWait, Resume blocks per the wait mode. The returned
// Task supports metadata inspection only, not reconfiguration.
func (t *Task) Resume() *Task {
	t.mu.Lock()
	if t.session == nil {
		t.dispatched = true
		t.mu.Unlock()
		t.complete(nil, "", ErrNoSession)
	} else {
		if t.op == nil {
			var done CompletionFunc = t.complete
			switch t.kind {
			case Download:
				t.op = t.session.Download(t.req, done)
			case Upload:
				t.op = t.session.Upload(t.req, done)
			default:
				t.op = t.session.Fetch(t.req, done)
			}
		}
		op := t.op
		t.dispatched = true
		t.mu.Unlock()

		if op == nil {
			// Session closed between construction and dispatch.
			t.complete(nil, "", ErrNoSession)
		} else if !t.completed.Load() {
			// A Resume after completion must not re-register: the
			// completion routine already removed the entry and the
			// operation will never complete again to clean it up.
			t.session.Registry().Register(op.ID(), t)
			op.Start()
		}
	}

	if t.waitRequested {
		t.awaitCompletion()
	}
	return t
}

// ResumeAndWait dispatches and blocks the calling thread. timeout == 0
// blocks until every registered handler has run (drain-wait);
// timeout > 0 blocks up to timeout on a signal released at completion,
// cancelling the operation if the timeout fires first; WaitForever
// blocks without bound.
func (t *Task) ResumeAndWait(timeout time.Duration) *Task {
	t.waitRequested = true
	t.waitTimeout = timeout
	if timeout != 0 {
		t.waitCh = make(chan struct{})
	}
	return t.Resume()
}

func (t *Task) awaitCompletion() {
	if t.waitCh == nil {
		t.pipe.wait()
		return
	}
	if t.waitTimeout < 0 {
		<-t.waitCh
		return
	}
	select {
	case <-t.waitCh:
	case <-time.After(t.waitTimeout):
		t.mu.Lock()
		op := t.op
		t.mu.Unlock()
		if op != nil && op.Running() {
			op.Cancel()
		}
	}
}

// Suspend forwards to the underlying operation; a no-op before
// dispatch.
func (t *Task) Suspend() {
	t.mu.Lock()
	op := t.op
	t.mu.Unlock()
	if op != nil {
		op.Suspend()
	}
}

// Cancel forwards to the underlying operation. The pipeline is not
// flushed synchronously: completion still arrives via the normal
// callback with a cancellation error.
func (t *Task) Cancel() {
	t.mu.Lock()
	op := t.op
	t.mu.Unlock()
	if op != nil {
		op.Cancel()
	}
}

// Outcome reports the response metadata and current outcome. Stable
// only once the pipeline has drained.
func (t *Task) Outcome() (*Response, error) {
	return t.resp, t.err
}

// FileLocation reports where a completed download was written.
func (t *Task) FileLocation() string {
	return t.fileLocation
}

// complete is the Task's terminal routine, invoked exactly once by the
// transport (or directly on configuration misuse). A late duplicate,
// e.g. after a timeout-triggered cancellation race, is ignored: the
// wait signal is never double-released and the pipeline never
// restarts. All state writes happen before the pipeline is unpaused,
// which is the single synchronization point handlers rely on.
func (t *Task) complete(resp *Response, location string, err error) {
	if !t.completed.CompareAndSwap(false, true) {
		return
	}

	t.resp = resp
	t.fileLocation = location
	if err != nil && t.err == nil {
		t.err = err
	}

	if t.session != nil {
		if t.kind == Download && t.err == nil {
			if h := t.session.DownloadHandler(); h != nil {
				if herr := h(location, resp); herr != nil {
					t.err = herr
				}
			}
		}
		t.mu.Lock()
		op := t.op
		t.mu.Unlock()
		if op != nil {
			t.session.Registry().Remove(op.ID())
		}
	}

	t.pipe.start()
	t.signalOnce.Do(func() {
		if t.waitCh != nil {
			close(t.waitCh)
		}
	})
}
