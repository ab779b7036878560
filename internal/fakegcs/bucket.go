package fakegcs

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// bucketResource is the wire form of a bucket.
type bucketResource struct {
	Kind         string    `json:"kind"`
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Location     string    `json:"location,omitempty"`
	StorageClass string    `json:"storageClass,omitempty"`
	TimeCreated  time.Time `json:"timeCreated"`
	Etag         string    `json:"etag,omitempty"`
}

// bucketListResource is the wire form of a bucket listing page.
type bucketListResource struct {
	Kind  string           `json:"kind"`
	Items []bucketResource `json:"items"`
}

func bucketToResource(b *bucketState) bucketResource {
	return bucketResource{
		Kind:         "storage#bucket",
		ID:           b.name,
		Name:         b.name,
		Location:     b.location,
		StorageClass: b.storageClass,
		TimeCreated:  b.created,
		Etag:         "CAE=",
	}
}

func (s *Server) listBuckets(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		writeError(w, 400, "required parameter: project")
		return
	}
	prefix := r.URL.Query().Get("prefix")

	s.mu.Lock()
	defer s.mu.Unlock()

	list := bucketListResource{Kind: "storage#buckets"}
	for name, b := range s.buckets {
		if b.project != project {
			continue
		}
		if prefix != "" && (len(name) < len(prefix) || name[:len(prefix)] != prefix) {
			continue
		}
		list.Items = append(list.Items, bucketToResource(b))
	}
	writeJSON(w, list)
}

func (s *Server) createBucket(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		writeError(w, 400, "required parameter: project")
		return
	}
	var req struct {
		Name         string `json:"name"`
		Location     string `json:"location"`
		StorageClass string `json:"storageClass"`
	}
	if err := decodeBody(r, &req); err != nil || req.Name == "" {
		writeError(w, 400, "invalid bucket resource")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.buckets[req.Name]; exists {
		writeError(w, 409, "bucket %q already exists", req.Name)
		return
	}
	b := s.putBucketLocked(req.Name, project)
	if req.Location != "" {
		b.location = req.Location
	}
	if req.StorageClass != "" {
		b.storageClass = req.StorageClass
	}
	writeJSON(w, bucketToResource(b))
}

func (s *Server) getBucket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[chi.URLParam(r, "bucket")]
	if !ok {
		writeError(w, 404, "bucket not found")
		return
	}
	writeJSON(w, bucketToResource(b))
}

func (s *Server) deleteBucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[name]
	if !ok {
		writeError(w, 404, "bucket not found")
		return
	}
	if len(b.objects) > 0 {
		writeError(w, 409, "bucket not empty")
		return
	}
	delete(s.buckets, name)
	w.WriteHeader(http.StatusNoContent)
}
