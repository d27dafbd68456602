package webtask

import (
	"crypto/tls"
	"net/http"
	neturl "net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds each exchange end to end.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow.
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host.
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool.
	DefaultIdleConnTimeout = 90 * time.Second
)

// Observer receives every completed exchange of a session, after the
// outcome is known and before the owning Task's completion routine
// runs. Observers must be safe for concurrent use.
type Observer interface {
	ObserveExchange(kind Kind, req *Request, resp *Response, duration time.Duration, err error)
}

// HTTPSession owns the transport state shared by its Tasks: the HTTP
// client, the challenge-routing registry, default headers, the auth
// retry budget, and an optional dispatch rate limit. It supplies the
// three operation factories Tasks dispatch through.
type HTTPSession struct {
	httpClient     *http.Client
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
	baseURL        string
	downloadDir    string
	maxAuthRetries int
	limiter        *rate.Limiter
	observers      []Observer

	registry *Registry
	nextID   atomic.Int64

	mu              sync.Mutex
	downloadHandler DownloadHandler
	closed          bool
}

type SessionOption func(*HTTPSession)

func NewHTTPSession(opts ...SessionOption) *HTTPSession {
	s := &HTTPSession{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
		registry:       NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !s.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if s.proxyURL != "" {
		proxyURL, err := neturl.Parse(s.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !s.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= s.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	s.httpClient = &http.Client{
		Transport:     transport,
		Timeout:       s.timeout,
		CheckRedirect: redirectPolicy,
	}

	return s
}

func WithTimeout(d time.Duration) SessionOption {
	return func(s *HTTPSession) {
		s.timeout = d
	}
}

func WithFollowRedirects(follow bool) SessionOption {
	return func(s *HTTPSession) {
		s.followRedirect = follow
	}
}

func WithMaxRedirects(max int) SessionOption {
	return func(s *HTTPSession) {
		s.maxRedirects = max
	}
}

// WithValidateSSL enables or disables SSL certificate validation.
func WithValidateSSL(validate bool) SessionOption {
	return func(s *HTTPSession) {
		s.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests.
func WithProxy(proxyURL string) SessionOption {
	return func(s *HTTPSession) {
		s.proxyURL = proxyURL
	}
}

func WithDefaultHeader(key, value string) SessionOption {
	return func(s *HTTPSession) {
		s.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests.
func WithDefaultHeaders(headers map[string]string) SessionOption {
	return func(s *HTTPSession) {
		for k, v := range headers {
			s.defaultHeaders[k] = v
		}
	}
}

// WithBaseURL resolves relative request paths against base.
func WithBaseURL(base string) SessionOption {
	return func(s *HTTPSession) {
		s.baseURL = base
	}
}

// WithDownloadDir sets where download operations write their files.
// Defaults to the system temp directory.
func WithDownloadDir(dir string) SessionOption {
	return func(s *HTTPSession) {
		s.downloadDir = dir
	}
}

// WithMaxAuthRetries caps how often the authentication handler is
// consulted for Basic/default challenges per Task. 0 means unlimited.
func WithMaxAuthRetries(max int) SessionOption {
	return func(s *HTTPSession) {
		s.maxAuthRetries = max
	}
}

// WithRateLimit throttles operation starts to rps requests per second.
func WithRateLimit(rps float64) SessionOption {
	return func(s *HTTPSession) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithObserver registers an exchange observer, e.g. a metrics
// collector or history store.
func WithObserver(o Observer) SessionOption {
	return func(s *HTTPSession) {
		s.observers = append(s.observers, o)
	}
}

// Registry returns the session's challenge router.
func (s *HTTPSession) Registry() *Registry {
	return s.registry
}

func (s *HTTPSession) MaxAuthRetries() int {
	return s.maxAuthRetries
}

func (s *HTTPSession) SetDownloadHandler(fn DownloadHandler) {
	s.mu.Lock()
	s.downloadHandler = fn
	s.mu.Unlock()
}

func (s *HTTPSession) DownloadHandler() DownloadHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloadHandler
}

// Close stops the session from creating operations. Tasks dispatched
// afterwards fail with ErrNoSession; in-flight operations finish
// normally.
func (s *HTTPSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.httpClient.CloseIdleConnections()
}

// Fetch creates a fetch operation. Returns nil once the session is
// closed.
func (s *HTTPSession) Fetch(req *Request, done CompletionFunc) Operation {
	return s.newOperation(Fetch, req, done)
}

// Download creates a download operation whose payload is streamed to a
// file in the download directory.
func (s *HTTPSession) Download(req *Request, done CompletionFunc) Operation {
	return s.newOperation(Download, req, done)
}

// Upload creates an upload operation carrying the descriptor body.
func (s *HTTPSession) Upload(req *Request, done CompletionFunc) Operation {
	return s.newOperation(Upload, req, done)
}

func (s *HTTPSession) newOperation(kind Kind, req *Request, done CompletionFunc) Operation {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	return newHTTPOperation(s, kind, req, done)
}

func (s *HTTPSession) notifyObservers(kind Kind, req *Request, resp *Response, d time.Duration, err error) {
	for _, o := range s.observers {
		o.ObserveExchange(kind, req, resp, d, err)
	}
}
