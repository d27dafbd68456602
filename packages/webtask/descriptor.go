package webtask

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ParameterEncoding selects how body parameters are serialized.
type ParameterEncoding int

const (
	// EncodingForm percent-encodes body parameters as
	// application/x-www-form-urlencoded.
	EncodingForm ParameterEncoding = iota
	// EncodingJSON serializes body parameters as a JSON object.
	EncodingJSON
)

// CachePolicy mirrors the transport-level cache directives a request
// may carry. The HTTP session translates it into Cache-Control headers.
type CachePolicy int

const (
	CachePolicyDefault CachePolicy = iota
	CachePolicyIgnoreCache
	CachePolicyCacheElseLoad
	CachePolicyCacheOnly
)

const soapEnvelopePrefix = `<?xml version="1.0" encoding="utf-8"?><soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>`

const soapEnvelopeSuffix = `</soap:Body></soap:Envelope>`

// Request describes one HTTP exchange before it is dispatched. A Task
// owns its Request exclusively; the fluent setters mutate it only until
// dispatch, after which it is read-only.
type Request struct {
	Method      string
	Path        string // resolved against the session base URL
	Headers     map[string]string
	QueryParams map[string]string
	Body        []byte
	BodyParams  map[string]any
	Encoding    ParameterEncoding
	ContentType string
	CachePolicy CachePolicy
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:      method,
		Path:        path,
		Headers:     make(map[string]string),
		QueryParams: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetQueryParam(key, value string) *Request {
	r.QueryParams[key] = value
	return r
}

// SetBody replaces any previously set raw body. Raw body and body
// parameters are mutually exclusive; a raw body wins.
func (r *Request) SetBody(body []byte, contentType string) *Request {
	r.Body = body
	r.ContentType = contentType
	return r
}

func (r *Request) SetBodyParam(key string, value any) *Request {
	if r.BodyParams == nil {
		r.BodyParams = make(map[string]any)
	}
	r.BodyParams[key] = value
	return r
}

// SetJSONBody marshals v and installs it as the raw body with a JSON
// content type. Marshal failures leave the body untouched and are
// surfaced when the request is dispatched.
func (r *Request) SetJSONBody(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json body: %w", err)
	}
	r.SetBody(data, "application/json")
	return nil
}

// SetSOAPBody wraps text in a fixed SOAP 1.1 envelope and sets the
// content type to XML.
func (r *Request) SetSOAPBody(text string) *Request {
	r.SetBody([]byte(soapEnvelopePrefix+text+soapEnvelopeSuffix), "text/xml")
	return r
}

// EncodedBody resolves the effective body and content type at dispatch
// time. A raw body takes precedence over body parameters.
func (r *Request) EncodedBody() ([]byte, string, error) {
	if len(r.Body) > 0 {
		return r.Body, r.ContentType, nil
	}
	if len(r.BodyParams) == 0 {
		return nil, r.ContentType, nil
	}

	switch r.Encoding {
	case EncodingJSON:
		data, err := json.Marshal(r.BodyParams)
		if err != nil {
			return nil, "", fmt.Errorf("encode body params: %w", err)
		}
		return data, "application/json", nil
	default:
		values := url.Values{}
		for k, v := range r.BodyParams {
			values.Set(k, fmt.Sprintf("%v", v))
		}
		return []byte(values.Encode()), "application/x-www-form-urlencoded", nil
	}
}

// BuildURL resolves the request path against a base URL and merges the
// query parameters.
func (r *Request) BuildURL(base string) (string, error) {
	raw := r.Path
	if base != "" {
		raw = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(r.Path, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}

	if len(r.QueryParams) > 0 {
		q := u.Query()
		for k, v := range r.QueryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// cacheControl maps the cache policy to a Cache-Control header value,
// or "" when the default policy applies.
func (p CachePolicy) cacheControl() string {
	switch p {
	case CachePolicyIgnoreCache:
		return "no-cache"
	case CachePolicyCacheElseLoad:
		return "max-stale"
	case CachePolicyCacheOnly:
		return "only-if-cached"
	default:
		return ""
	}
}
