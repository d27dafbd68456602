package webtask

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

const (
	opCreated int32 = iota
	opSuspended
	opRunning
	opFinished
)

// httpOperation is one in-flight exchange owned by an HTTPSession. It
// implements Operation: an integer identifier, start/suspend/resume
// gating before the request is on the wire, and context-based
// cancellation afterwards. The terminal callback fires exactly once.
type httpOperation struct {
	id   int
	kind Kind
	sess *HTTPSession
	req  *Request
	done CompletionFunc

	ctx       context.Context
	cancel    context.CancelFunc
	state     atomic.Int32
	cancelled atomic.Bool
}

func newHTTPOperation(s *HTTPSession, kind Kind, req *Request, done CompletionFunc) *httpOperation {
	ctx, cancel := context.WithCancel(context.Background())
	return &httpOperation{
		id:     int(s.nextID.Add(1)),
		kind:   kind,
		sess:   s,
		req:    req,
		done:   done,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (o *httpOperation) ID() int {
	return o.id
}

// Start puts the operation on the wire. Starting an operation that is
// already running, suspended, or finished has no effect.
func (o *httpOperation) Start() {
	if o.state.CompareAndSwap(opCreated, opRunning) {
		go o.run()
	}
}

// Suspend holds back an operation that has not started yet. An
// exchange already on the wire cannot be paused; suspending it is a
// no-op.
func (o *httpOperation) Suspend() {
	o.state.CompareAndSwap(opCreated, opSuspended)
}

// Resume releases a suspended operation.
func (o *httpOperation) Resume() {
	if o.state.CompareAndSwap(opSuspended, opRunning) {
		go o.run()
	}
}

// Cancel aborts the exchange. Completion still arrives through the
// normal callback, carrying a cancellation error.
func (o *httpOperation) Cancel() {
	o.cancelled.Store(true)
	if o.state.CompareAndSwap(opCreated, opRunning) || o.state.CompareAndSwap(opSuspended, opRunning) {
		// Never started: deliver the terminal callback ourselves.
		go o.finish(nil, "", ErrCancelled, 0)
	}
	o.cancel()
}

func (o *httpOperation) Running() bool {
	return o.state.Load() == opRunning
}

func (o *httpOperation) run() {
	start := time.Now()

	if o.sess.limiter != nil {
		if err := o.sess.limiter.Wait(o.ctx); err != nil {
			o.finish(nil, "", o.flavorErr(err), time.Since(start))
			return
		}
	}

	url, err := o.req.BuildURL(o.sess.baseURL)
	if err != nil {
		o.finish(nil, "", err, time.Since(start))
		return
	}
	body, contentType, err := o.req.EncodedBody()
	if err != nil {
		o.finish(nil, "", err, time.Since(start))
		return
	}

	// Challenge loop: a 401 is routed through the registry to the
	// owning Task; a credential answer retries the exchange with an
	// Authorization header until the server relents, the handler
	// yields, or the retry budget routes back to default handling.
	var authz string
	priorFailures := 0
	for {
		httpResp, err := o.doOnce(url, body, contentType, authz)
		if err != nil {
			o.finish(nil, "", o.flavorErr(err), time.Since(start))
			return
		}

		if httpResp.StatusCode == http.StatusUnauthorized {
			header := httpResp.Header.Get("WWW-Authenticate")
			if header != "" {
				scheme, params := parseWWWAuthenticate(header)
				ch := &Challenge{
					Scheme:        scheme,
					Realm:         params["realm"],
					Host:          httpResp.Request.URL.Host,
					PriorFailures: priorFailures,
				}

				var disp Disposition
				var cred *Credential
				o.sess.registry.HandleChallenge(o.id, ch, func(d Disposition, c *Credential) {
					disp, cred = d, c
				})

				if disp == DispositionCancel {
					drainAndClose(httpResp.Body)
					o.finish(nil, "", ErrCancelled, time.Since(start))
					return
				}
				if disp == DispositionUseCredential && cred != nil {
					drainAndClose(httpResp.Body)
					authz, err = authorizationFor(scheme, params, cred, o.req.Method, httpResp.Request.URL.RequestURI())
					if err != nil {
						o.finish(nil, "", err, time.Since(start))
						return
					}
					priorFailures++
					continue
				}
				// Default handling: the 401 is the final answer.
			}
		}

		resp, location, err := o.consume(httpResp)
		duration := time.Since(start)
		if resp != nil {
			resp.Duration = duration
		}
		o.finish(resp, location, err, duration)
		return
	}
}

// doOnce performs one HTTP round trip without consuming the body.
func (o *httpOperation) doOnce(url string, body []byte, contentType, authz string) (*http.Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(o.ctx, o.req.Method, url, reader)
	if err != nil {
		return nil, err
	}

	for k, v := range o.sess.defaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range o.req.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if cc := o.req.CachePolicy.cacheControl(); cc != "" {
		httpReq.Header.Set("Cache-Control", cc)
	}
	if authz != "" {
		httpReq.Header.Set("Authorization", authz)
	}

	return o.sess.httpClient.Do(httpReq)
}

// consume reads the terminal response. Fetch and upload payloads are
// buffered in memory; downloads stream to a file in the session's
// download directory and the Response carries no body bytes.
func (o *httpOperation) consume(httpResp *http.Response) (*Response, string, error) {
	defer httpResp.Body.Close()

	headers := make(map[string]string)
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    headers,
	}

	if o.kind == Download {
		f, err := os.CreateTemp(o.sess.downloadDir, "webtask-download-*")
		if err != nil {
			return resp, "", fmt.Errorf("create download file: %w", err)
		}
		if _, err := io.Copy(f, httpResp.Body); err != nil {
			f.Close()
			os.Remove(f.Name())
			return resp, "", o.flavorErr(err)
		}
		if err := f.Close(); err != nil {
			return resp, "", err
		}
		return resp, f.Name(), nil
	}

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return resp, "", o.flavorErr(err)
	}
	resp.Body = payload
	return resp, "", nil
}

// finish delivers the terminal callback exactly once and notifies the
// session observers first, while the outcome is already final.
func (o *httpOperation) finish(resp *Response, location string, err error, duration time.Duration) {
	if o.state.Swap(opFinished) == opFinished {
		return
	}
	o.cancel()
	o.sess.notifyObservers(o.kind, o.req, resp, duration, err)
	o.done(resp, location, err)
}

// flavorErr maps context cancellation onto the package cancellation
// error so timeout-triggered cancels read as such.
func (o *httpOperation) flavorErr(err error) error {
	if o.cancelled.Load() || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return err
}

// authorizationFor builds the Authorization header answering a
// challenge with the given credential.
func authorizationFor(scheme string, params map[string]string, cred *Credential, method, uri string) (string, error) {
	switch strings.ToLower(scheme) {
	case "digest":
		auth := &digestAuth{
			Username: cred.Username,
			Password: cred.Password,
			Realm:    params["realm"],
			Nonce:    params["nonce"],
			URI:      uri,
			Qop:      params["qop"],
			Opaque:   params["opaque"],
			Method:   method,
		}
		if auth.Qop != "" {
			auth.Nc = "00000001"
			cnonce, err := generateCnonce()
			if err != nil {
				return "", err
			}
			auth.Cnonce = cnonce
			if strings.Contains(auth.Qop, "auth") {
				auth.Qop = "auth"
			}
		}
		return auth.authorizationHeader(), nil
	default:
		creds := cred.Username + ":" + cred.Password
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds)), nil
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	body.Close()
}
