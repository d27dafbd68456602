package webtask

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Response carries the metadata and payload of a completed exchange.
type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// BodyJSON decodes the payload into a generic value. An empty body is
// an ErrBodyDecode outcome, matching the JSON handler contract.
func (r *Response) BodyJSON() (any, error) {
	if len(r.Body) == 0 {
		return nil, ErrBodyDecode
	}
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBodyDecode, err)
	}
	return v, nil
}

// Header returns a header value by case-insensitive name.
func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
