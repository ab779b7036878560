// Package gcstore is a client for the Google Cloud Storage JSON API
// (https://storage.googleapis.com/storage/v1): bucket and object CRUD,
// access-control-list management, and simple/resumable uploads.
//
// A Client is safe for concurrent use. Every operation builds one request,
// executes it, and validates the response status; nothing is retried except
// individual chunks of a resumable upload. Credentials are resolved via
// Application Default Credentials unless overridden with WithTokenSource,
// WithHTTPClient, or WithoutAuthentication.
package gcstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
)

const (
	defaultEndpoint = "https://storage.googleapis.com"
	apiPrefix       = "/storage/v1"
	uploadPrefix    = "/upload/storage/v1"

	// scopeFullControl is the OAuth2 scope requested by default. ACL
	// operations require full control; read-only scopes cannot modify ACLs.
	scopeFullControl = "https://www.googleapis.com/auth/devstorage.full_control"

	defaultUserAgent = "gcstore/1.0"
)

// Recorder receives one observation per completed API request. Implementations
// must be safe for concurrent use. See internal/metrics for a Prometheus-backed
// implementation.
type Recorder interface {
	// Observe records a completed request for the named operation. status is
	// the HTTP status code, or zero when no response was received.
	Observe(op string, status int, elapsed time.Duration)
	// AddBytes records payload bytes moved by an operation.
	AddBytes(uploaded, downloaded int64)
}

// Client is a Google Cloud Storage JSON API client. The zero value is not
// usable; construct one with NewClient.
type Client struct {
	hc            *http.Client
	base          string // e.g. https://storage.googleapis.com/storage/v1
	uploadBase    string // e.g. https://storage.googleapis.com/upload/storage/v1
	defaultBucket string
	userAgent     string
	rec           Recorder
}

// NewClient creates a Client. With no options, credentials are resolved via
// Application Default Credentials (GOOGLE_APPLICATION_CREDENTIALS, gcloud
// auth, metadata server) and requests go to the public GCS endpoint.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		userAgent: defaultUserAgent,
	}
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	endpoint := defaultEndpoint
	if s.endpoint != "" {
		endpoint = strings.TrimSuffix(s.endpoint, "/")
	}
	c.base = endpoint + apiPrefix
	c.uploadBase = endpoint + uploadPrefix
	c.defaultBucket = s.defaultBucket
	if s.userAgent != "" {
		c.userAgent = s.userAgent
	}
	c.rec = s.recorder

	switch {
	case s.httpClient != nil:
		c.hc = s.httpClient
	case s.noAuth:
		c.hc = &http.Client{}
	case s.tokenSource != nil:
		c.hc = oauth2.NewClient(ctx, s.tokenSource)
	default:
		ts, err := google.DefaultTokenSource(ctx, scopeFullControl)
		if err != nil {
			return nil, fmt.Errorf("resolving default credentials: %w", err)
		}
		c.hc = oauth2.NewClient(ctx, ts)
	}
	return c, nil
}

// DefaultBucket returns the bucket used when an operation is called with an
// empty bucket name, or "" if none is configured.
func (c *Client) DefaultBucket() string {
	return c.defaultBucket
}

// bucket resolves an explicit bucket name against the client's default.
func (c *Client) bucket(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if c.defaultBucket != "" {
		return c.defaultBucket, nil
	}
	return "", invalidArg("bucket name is required and no default bucket is configured")
}

// trimLeadingSlash removes a single leading slash from an object name, so
// that "/a.csv" and "a.csv" address the same object.
func trimLeadingSlash(name string) string {
	return strings.TrimPrefix(name, "/")
}

// escapeObjectName encodes an object name as a single URL path segment, with
// any leading slash trimmed first.
func escapeObjectName(name string) string {
	return url.PathEscape(trimLeadingSlash(name))
}

// decodeJSON decodes one JSON document from r into v.
func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// encodeJSON marshals v for use as a request body.
func encodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// do builds and executes one JSON API request. body, when non-nil, is
// marshaled as the JSON request body. out, when non-nil, receives the decoded
// response body. The response status is always validated; non-2xx responses
// are returned as *googleapi.Error.
func (c *Client) do(ctx context.Context, op, method, u string, body, out any) error {
	_, err := c.doStatus(ctx, op, method, u, body, out)
	return err
}

// doStatus is do, additionally reporting the HTTP status code received (zero
// when the request never produced a response).
func (c *Client) doStatus(ctx context.Context, op, method, u string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding %s request body: %w", op, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return 0, fmt.Errorf("building %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("User-Agent", c.userAgent)

	res, err := c.doHTTP(op, req)
	if err != nil {
		return 0, err
	}
	defer googleapi.CloseBody(res)

	if err := googleapi.CheckResponse(res); err != nil {
		return res.StatusCode, err
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return res.StatusCode, fmt.Errorf("decoding %s response: %w", op, err)
		}
	}
	return res.StatusCode, nil
}

// doHTTP executes req, logging and recording the outcome.
func (c *Client) doHTTP(op string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	res, err := c.hc.Do(req)
	elapsed := time.Since(start)

	status := 0
	if res != nil {
		status = res.StatusCode
	}
	if c.rec != nil {
		c.rec.Observe(op, status, elapsed)
	}
	slog.Debug("gcstore request",
		"op", op, "method", req.Method, "url", req.URL.Redacted(),
		"status", status, "elapsed", elapsed, "error", err)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// addBytes reports payload sizes to the recorder, if one is configured.
func (c *Client) addBytes(uploaded, downloaded int64) {
	if c.rec != nil {
		c.rec.AddBytes(uploaded, downloaded)
	}
}
