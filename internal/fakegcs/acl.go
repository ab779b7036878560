package fakegcs

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// aclResource is the wire form of a bucket or object access-control entry.
type aclResource struct {
	Kind       string `json:"kind"`
	ID         string `json:"id,omitempty"`
	Bucket     string `json:"bucket,omitempty"`
	Object     string `json:"object,omitempty"`
	Generation string `json:"generation,omitempty"`
	Entity     string `json:"entity"`
	Role       string `json:"role"`
	Etag       string `json:"etag,omitempty"`
}

// aclListResource is the wire form of an ACL collection.
type aclListResource struct {
	Kind  string        `json:"kind"`
	Items []aclResource `json:"items"`
}

// aclWriteRequest is the body accepted by ACL create/update endpoints.
type aclWriteRequest struct {
	Entity string `json:"entity"`
	Role   string `json:"role"`
}

func bucketACLResource(bucket string, e aclEntry) aclResource {
	return aclResource{
		Kind:   "storage#bucketAccessControl",
		ID:     fmt.Sprintf("%s/%s", bucket, e.entity),
		Bucket: bucket,
		Entity: e.entity,
		Role:   e.role,
		Etag:   "CAE=",
	}
}

func objectACLResource(bucket, object string, generation int64, e aclEntry) aclResource {
	return aclResource{
		Kind:       "storage#objectAccessControl",
		ID:         fmt.Sprintf("%s/%s/%d/%s", bucket, object, generation, e.entity),
		Bucket:     bucket,
		Object:     object,
		Generation: strconv.FormatInt(generation, 10),
		Entity:     e.entity,
		Role:       e.role,
		Etag:       "CAE=",
	}
}

// sortedEntries returns a map's entries ordered by entity for stable listing.
func sortedEntries(m map[string]aclEntry) []aclEntry {
	out := make([]aclEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].entity < out[j].entity })
	return out
}

// validACLWrite checks an ACL write body the way the API does: entity
// non-empty, role one of the object/bucket roles.
func validACLWrite(req aclWriteRequest) bool {
	if req.Entity == "" {
		return false
	}
	switch req.Role {
	case "READER", "WRITER", "OWNER":
		return true
	}
	return false
}

func (s *Server) bucketFor(w http.ResponseWriter, r *http.Request) (*bucketState, bool) {
	b, ok := s.buckets[chi.URLParam(r, "bucket")]
	if !ok {
		writeError(w, 404, "bucket not found")
		return nil, false
	}
	return b, true
}

// Bucket ACLs.

func (s *Server) listBucketACLs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	list := aclListResource{Kind: "storage#bucketAccessControls"}
	for _, e := range sortedEntries(b.acls) {
		list.Items = append(list.Items, bucketACLResource(b.name, e))
	}
	writeJSON(w, list)
}

func (s *Server) getBucketACL(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	entity := objectParam(r, "entity")
	e, ok := b.acls[entity]
	if !ok {
		writeError(w, 404, "acl entry for entity %q not found", entity)
		return
	}
	writeJSON(w, bucketACLResource(b.name, e))
}

func (s *Server) createBucketACL(w http.ResponseWriter, r *http.Request) {
	var req aclWriteRequest
	if err := decodeBody(r, &req); err != nil || !validACLWrite(req) {
		writeError(w, 400, "invalid access control entry")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	e := aclEntry{entity: req.Entity, role: req.Role}
	b.acls[req.Entity] = e
	writeJSON(w, bucketACLResource(b.name, e))
}

func (s *Server) deleteBucketACL(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	entity := objectParam(r, "entity")
	if _, ok := b.acls[entity]; !ok {
		writeError(w, 404, "acl entry for entity %q not found", entity)
		return
	}
	delete(b.acls, entity)
	w.WriteHeader(http.StatusNoContent)
}

// Default object ACLs.

func (s *Server) listDefaultACLs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	list := aclListResource{Kind: "storage#objectAccessControls"}
	for _, e := range sortedEntries(b.defaultACLs) {
		item := bucketACLResource(b.name, e)
		item.Kind = "storage#objectAccessControl"
		list.Items = append(list.Items, item)
	}
	writeJSON(w, list)
}

func (s *Server) createDefaultACL(w http.ResponseWriter, r *http.Request) {
	var req aclWriteRequest
	if err := decodeBody(r, &req); err != nil || !validACLWrite(req) {
		writeError(w, 400, "invalid access control entry")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	e := aclEntry{entity: req.Entity, role: req.Role}
	b.defaultACLs[req.Entity] = e
	item := bucketACLResource(b.name, e)
	item.Kind = "storage#objectAccessControl"
	writeJSON(w, item)
}

func (s *Server) deleteDefaultACL(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	entity := objectParam(r, "entity")
	if _, ok := b.defaultACLs[entity]; !ok {
		writeError(w, 404, "default acl entry for entity %q not found", entity)
		return
	}
	delete(b.defaultACLs, entity)
	w.WriteHeader(http.StatusNoContent)
}

// Object ACLs.

// objectVersionFor resolves the addressed object version: the one matching
// the generation query parameter, or the live version when absent.
func (s *Server) objectVersionFor(w http.ResponseWriter, r *http.Request, b *bucketState, name string) (*objectVersion, bool) {
	versions, ok := b.objects[name]
	if !ok || len(versions) == 0 {
		writeError(w, 404, "object not found")
		return nil, false
	}
	genParam := r.URL.Query().Get("generation")
	if genParam == "" {
		return versions[len(versions)-1], true
	}
	gen, err := strconv.ParseInt(genParam, 10, 64)
	if err != nil {
		writeError(w, 400, "invalid generation %q", genParam)
		return nil, false
	}
	for _, v := range versions {
		if v.generation == gen {
			return v, true
		}
	}
	writeError(w, 404, "generation %d not found", gen)
	return nil, false
}

func (s *Server) listObjectACLs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	name := objectParam(r, "object")
	v, ok := s.objectVersionFor(w, r, b, name)
	if !ok {
		return
	}
	list := aclListResource{Kind: "storage#objectAccessControls"}
	for _, e := range sortedEntries(v.acls) {
		list.Items = append(list.Items, objectACLResource(b.name, name, v.generation, e))
	}
	writeJSON(w, list)
}

func (s *Server) getObjectACL(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	name := objectParam(r, "object")
	v, ok := s.objectVersionFor(w, r, b, name)
	if !ok {
		return
	}
	entity := objectParam(r, "entity")
	e, ok := v.acls[entity]
	if !ok {
		writeError(w, 404, "acl entry for entity %q not found", entity)
		return
	}
	writeJSON(w, objectACLResource(b.name, name, v.generation, e))
}

func (s *Server) updateObjectACL(w http.ResponseWriter, r *http.Request) {
	var req aclWriteRequest
	if err := decodeBody(r, &req); err != nil || !validACLWrite(req) {
		writeError(w, 400, "invalid access control entry")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	name := objectParam(r, "object")
	v, ok := s.objectVersionFor(w, r, b, name)
	if !ok {
		return
	}
	e := aclEntry{entity: req.Entity, role: req.Role}
	v.acls[req.Entity] = e
	writeJSON(w, objectACLResource(b.name, name, v.generation, e))
}

func (s *Server) deleteObjectACL(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	name := objectParam(r, "object")
	v, ok := s.objectVersionFor(w, r, b, name)
	if !ok {
		return
	}
	entity := objectParam(r, "entity")
	if _, ok := v.acls[entity]; !ok {
		writeError(w, 404, "acl entry for entity %q not found", entity)
		return
	}
	delete(v.acls, entity)
	w.WriteHeader(http.StatusNoContent)
}
