package webtask

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// ResponseHandler consumes the payload of a successful exchange. A
// non-nil return flips the Task outcome to Failure, suppressing every
// later response handler.
type ResponseHandler func(body []byte, resp *Response) error

// JSONHandler consumes the decoded payload of a successful exchange.
type JSONHandler func(v any, resp *Response) error

// ErrorHandler observes a Failure outcome. It cannot alter it.
type ErrorHandler func(err error)

// Response enqueues fn onto the paused pipeline. Once the exchange
// completes, handlers run in registration order on a single worker; a
// Failure outcome, however it arose, turns this unit into a no-op.
func (t *Task) Response(fn ResponseHandler) *Task {
	t.pipe.add(func() {
		if t.err != nil {
			return
		}
		var body []byte
		if t.resp != nil {
			body = t.resp.Body
		}
		if err := fn(body, t.resp); err != nil {
			t.err = err
		}
	})
	return t
}

// ResponseJSON decodes the payload before invoking fn. An empty or
// undecodable body becomes an ErrBodyDecode outcome.
func (t *Task) ResponseJSON(fn JSONHandler) *Task {
	return t.Response(func(body []byte, resp *Response) error {
		if len(body) == 0 {
			return ErrBodyDecode
		}
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrBodyDecode, err)
		}
		return fn(v, resp)
	})
}

// ResponseJSONPath extracts a gjson path from the payload before
// invoking fn. A missing path is an ErrBodyDecode outcome.
func (t *Task) ResponseJSONPath(path string, fn func(value gjson.Result, resp *Response) error) *Task {
	return t.Response(func(body []byte, resp *Response) error {
		if len(body) == 0 {
			return ErrBodyDecode
		}
		result := gjson.GetBytes(body, path)
		if !result.Exists() {
			return fmt.Errorf("%w: no value at path %q", ErrBodyDecode, path)
		}
		return fn(result, resp)
	})
}

// ResponseSchema validates the payload against a JSON schema; any
// violation becomes a Failure outcome carrying the first schema error.
func (t *Task) ResponseSchema(schema []byte) *Task {
	return t.Response(func(body []byte, resp *Response) error {
		if len(body) == 0 {
			return ErrBodyDecode
		}
		result, err := gojsonschema.Validate(
			gojsonschema.NewBytesLoader(schema),
			gojsonschema.NewBytesLoader(body),
		)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBodyDecode, err)
		}
		if !result.Valid() {
			return fmt.Errorf("schema violation: %s", result.Errors()[0])
		}
		return nil
	})
}

// ResponseError enqueues fn, invoked only when the outcome is Failure
// at its turn in the pipeline. Tasks without error handlers drop
// failures silently; error observation is opt-in.
func (t *Task) ResponseError(fn ErrorHandler) *Task {
	t.pipe.add(func() {
		if t.err != nil {
			fn(t.err)
		}
	})
	return t
}

// ResponseFile installs fn as the session-wide download handler. The
// handler runs directly on the download-completion path rather than
// through the queue; the enqueued unit only preserves pipeline
// ordering under the short-circuit rule.
func (t *Task) ResponseFile(fn DownloadHandler) *Task {
	if t.session != nil {
		t.session.SetDownloadHandler(fn)
	}
	t.pipe.add(func() {})
	return t
}
