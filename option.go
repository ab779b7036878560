package gcstore

import (
	"net/http"

	"golang.org/x/oauth2"
)

// settings collects the values set by Options during NewClient.
type settings struct {
	endpoint      string
	defaultBucket string
	userAgent     string
	httpClient    *http.Client
	tokenSource   oauth2.TokenSource
	noAuth        bool
	recorder      Recorder
}

// Option is a functional option for configuring a Client.
type Option func(*settings)

// WithEndpoint overrides the service base URL (default
// "https://storage.googleapis.com"). The standard "/storage/v1" and
// "/upload/storage/v1" prefixes are appended to it. Used to point the client
// at an emulator.
func WithEndpoint(u string) Option {
	return func(s *settings) { s.endpoint = u }
}

// WithDefaultBucket sets the bucket used by operations called with an empty
// bucket name. An explicit bucket argument always takes precedence.
func WithDefaultBucket(name string) Option {
	return func(s *settings) { s.defaultBucket = name }
}

// WithUserAgent overrides the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.userAgent = ua }
}

// WithHTTPClient supplies the HTTP client used for all requests. The client
// is assumed to handle authorization; no token source is attached.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// WithTokenSource supplies the OAuth2 token source used to authorize
// requests, instead of Application Default Credentials.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(s *settings) { s.tokenSource = ts }
}

// WithoutAuthentication disables request authorization entirely. Only useful
// against an emulator or for public resources.
func WithoutAuthentication() Option {
	return func(s *settings) { s.noAuth = true }
}

// WithMetrics attaches a Recorder that observes every completed request.
func WithMetrics(r Recorder) Option {
	return func(s *settings) { s.recorder = r }
}
