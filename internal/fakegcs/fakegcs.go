// Package fakegcs implements an in-memory Google Cloud Storage JSON API
// server for tests: bucket and object CRUD, ACL management on buckets,
// objects and default object ACLs, and simple plus resumable uploads.
//
// State lives in maps guarded by one mutex; nothing is persisted. The server
// also supports scripted failures so clients can exercise their retry paths.
package fakegcs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server is an in-memory GCS JSON API server. Create one with New and mount
// it with httptest.NewServer(srv).
type Server struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
	uploads map[string]*uploadState
	nextGen int64

	// failures holds scripted HTTP statuses; each incoming request pops one
	// and fails with it until the queue is empty.
	failures []int

	router chi.Router
}

// bucketState holds one bucket and everything in it.
type bucketState struct {
	name         string
	project      string
	location     string
	storageClass string
	created      time.Time

	acls        map[string]aclEntry
	defaultACLs map[string]aclEntry
	// objects maps a name to its versions, oldest first. The last element is
	// the live object.
	objects map[string][]*objectVersion
}

// objectVersion is one revision of an object.
type objectVersion struct {
	generation  int64
	contentType string
	data        []byte
	created     time.Time
	acls        map[string]aclEntry
}

// aclEntry is a single grant, keyed in maps by its canonical entity string.
type aclEntry struct {
	entity string
	role   string
}

// uploadState is a resumable upload session. done is set once the session is
// finalized, so late probes from a client that lost the final response still
// get the finished object back.
type uploadState struct {
	bucket      string
	name        string
	contentType string
	total       int64
	buf         []byte
	done        *objectResource
}

// New returns an empty Server.
func New() *Server {
	s := &Server{
		buckets: make(map[string]*bucketState),
		uploads: make(map[string]*uploadState),
		nextGen: 1000,
	}
	r := chi.NewRouter()
	r.Route("/storage/v1", func(r chi.Router) {
		r.Get("/b", s.listBuckets)
		r.Post("/b", s.createBucket)
		r.Get("/b/{bucket}", s.getBucket)
		r.Delete("/b/{bucket}", s.deleteBucket)

		r.Get("/b/{bucket}/acl", s.listBucketACLs)
		r.Post("/b/{bucket}/acl", s.createBucketACL)
		r.Get("/b/{bucket}/acl/{entity}", s.getBucketACL)
		r.Delete("/b/{bucket}/acl/{entity}", s.deleteBucketACL)

		r.Get("/b/{bucket}/defaultObjectAcl", s.listDefaultACLs)
		r.Post("/b/{bucket}/defaultObjectAcl", s.createDefaultACL)
		r.Delete("/b/{bucket}/defaultObjectAcl/{entity}", s.deleteDefaultACL)

		r.Get("/b/{bucket}/o", s.listObjects)
		r.Get("/b/{bucket}/o/{object}", s.getObject)
		r.Delete("/b/{bucket}/o/{object}", s.deleteObject)
		r.Post("/b/{bucket}/o/{object}/copyTo/b/{dstBucket}/o/{dstObject}", s.copyObject)

		r.Get("/b/{bucket}/o/{object}/acl", s.listObjectACLs)
		r.Post("/b/{bucket}/o/{object}/acl", s.updateObjectACL)
		r.Get("/b/{bucket}/o/{object}/acl/{entity}", s.getObjectACL)
		r.Delete("/b/{bucket}/o/{object}/acl/{entity}", s.deleteObjectACL)
	})
	r.Route("/upload/storage/v1", func(r chi.Router) {
		r.Post("/b/{bucket}/o", s.startUpload)
		r.Put("/b/{bucket}/o", s.uploadChunk)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if status, ok := s.popFailure(); ok {
		writeError(w, status, "injected failure")
		return
	}
	s.router.ServeHTTP(w, r)
}

// FailNext makes the next n requests fail with the given HTTP status before
// any handling. Used to exercise client error and retry paths.
func (s *Server) FailNext(status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures = append(s.failures, status)
	}
}

func (s *Server) popFailure() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return 0, false
	}
	status := s.failures[0]
	s.failures = s.failures[1:]
	return status, true
}

// CreateBucket seeds a bucket directly, bypassing the HTTP surface.
func (s *Server) CreateBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putBucketLocked(name, "test-project")
}

// putBucketLocked inserts a bucket. Caller holds s.mu.
func (s *Server) putBucketLocked(name, project string) *bucketState {
	b := &bucketState{
		name:         name,
		project:      project,
		location:     "US",
		storageClass: "STANDARD",
		created:      time.Now().UTC(),
		acls:         make(map[string]aclEntry),
		defaultACLs:  make(map[string]aclEntry),
		objects:      make(map[string][]*objectVersion),
	}
	s.buckets[name] = b
	return b
}

// generation returns a fresh monotonically increasing generation number.
// Caller holds s.mu.
func (s *Server) generationLocked() int64 {
	s.nextGen++
	return s.nextGen
}

// objectParam returns the decoded object name from the route. chi matches
// against the escaped path when the raw form differs, so the parameter may
// still carry percent-encoding.
func objectParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if dec, err := url.PathUnescape(raw); err == nil {
		return dec
	}
	return raw
}

// errorBody is the JSON API error envelope.
type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError writes a JSON API error response.
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	var body errorBody
	body.Error.Code = status
	body.Error.Message = fmt.Sprintf(format, args...)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// decodeBody decodes the request body JSON into v.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeJSON writes a 200 JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}
