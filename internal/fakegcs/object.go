package fakegcs

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// objectResource is the wire form of an object. Size and generation are
// decimal strings, as in the real API.
type objectResource struct {
	Kind        string    `json:"kind"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Bucket      string    `json:"bucket"`
	Generation  string    `json:"generation"`
	ContentType string    `json:"contentType,omitempty"`
	Size        string    `json:"size"`
	TimeCreated time.Time `json:"timeCreated"`
	Etag        string    `json:"etag,omitempty"`
}

// objectListResource is the wire form of an object listing page.
type objectListResource struct {
	Kind     string           `json:"kind"`
	Items    []objectResource `json:"items"`
	Prefixes []string         `json:"prefixes,omitempty"`
}

func objectToResource(bucket, name string, v *objectVersion) objectResource {
	return objectResource{
		Kind:        "storage#object",
		ID:          fmt.Sprintf("%s/%s/%d", bucket, name, v.generation),
		Name:        name,
		Bucket:      bucket,
		Generation:  strconv.FormatInt(v.generation, 10),
		ContentType: v.contentType,
		Size:        strconv.Itoa(len(v.data)),
		TimeCreated: v.created,
		Etag:        "CAE=",
	}
}

// putObjectLocked stores data as a new version of name. Caller holds s.mu.
func (s *Server) putObjectLocked(b *bucketState, name, contentType string, data []byte) *objectVersion {
	v := &objectVersion{
		generation:  s.generationLocked(),
		contentType: contentType,
		data:        data,
		created:     time.Now().UTC(),
		acls:        make(map[string]aclEntry),
	}
	// New objects inherit the bucket's default object ACL.
	for k, e := range b.defaultACLs {
		v.acls[k] = e
	}
	b.objects[name] = append(b.objects[name], v)
	return v
}

func (s *Server) listObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	delimiter := q.Get("delimiter")

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}

	list := objectListResource{Kind: "storage#objects"}
	prefixSet := map[string]bool{}
	names := make([]string, 0, len(b.objects))
	for name := range b.objects {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if delimiter != "" {
			rest := name[len(prefix):]
			if i := strings.Index(rest, delimiter); i >= 0 {
				prefixSet[prefix+rest[:i+len(delimiter)]] = true
				continue
			}
		}
		versions := b.objects[name]
		list.Items = append(list.Items, objectToResource(b.name, name, versions[len(versions)-1]))
	}
	for p := range prefixSet {
		list.Prefixes = append(list.Prefixes, p)
	}
	sort.Strings(list.Prefixes)
	writeJSON(w, list)
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request) {
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
	if r.URL.Query().Get("alt") == "media" {
		w.Header().Set("Content-Type", v.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(v.data)))
		w.Write(v.data)
		return
	}
	writeJSON(w, objectToResource(b.name, name, v))
}

func (s *Server) deleteObject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	name := objectParam(r, "object")
	versions, ok := b.objects[name]
	if !ok {
		writeError(w, 404, "object not found")
		return
	}
	genParam := r.URL.Query().Get("generation")
	if genParam == "" {
		delete(b.objects, name)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	gen, err := strconv.ParseInt(genParam, 10, 64)
	if err != nil {
		writeError(w, 400, "invalid generation %q", genParam)
		return
	}
	for i, v := range versions {
		if v.generation == gen {
			remaining := append(versions[:i:i], versions[i+1:]...)
			if len(remaining) == 0 {
				delete(b.objects, name)
			} else {
				b.objects[name] = remaining
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, 404, "generation %d not found", gen)
}

func (s *Server) copyObject(w http.ResponseWriter, r *http.Request) {
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
	dstBucket, ok := s.buckets[chi.URLParam(r, "dstBucket")]
	if !ok {
		writeError(w, 404, "destination bucket not found")
		return
	}
	dstName := objectParam(r, "dstObject")
	data := make([]byte, len(v.data))
	copy(data, v.data)
	dst := s.putObjectLocked(dstBucket, dstName, v.contentType, data)
	writeJSON(w, objectToResource(dstBucket.name, dstName, dst))
}

// startUpload handles POST /upload/storage/v1/b/{bucket}/o for both
// uploadType=media (single-request) and uploadType=resumable (session
// creation).
func (s *Server) startUpload(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("uploadType") {
	case "media":
		s.mediaUpload(w, r)
	case "resumable":
		s.startResumable(w, r)
	default:
		writeError(w, 400, "unsupported uploadType")
	}
}

func (s *Server) mediaUpload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, 400, "required parameter: name")
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, 400, "reading upload body: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bucketFor(w, r)
	if !ok {
		return
	}
	v := s.putObjectLocked(b, name, r.Header.Get("Content-Type"), data)
	writeJSON(w, objectToResource(b.name, name, v))
}

func (s *Server) startResumable(w http.ResponseWriter, r *http.Request) {
	var meta struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
	}
	if err := decodeBody(r, &meta); err != nil || meta.Name == "" {
		writeError(w, 400, "invalid object metadata")
		return
	}
	total, err := strconv.ParseInt(r.Header.Get("X-Upload-Content-Length"), 10, 64)
	if err != nil || total < 0 {
		writeError(w, 400, "invalid X-Upload-Content-Length")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := chi.URLParam(r, "bucket")
	if _, ok := s.buckets[bucket]; !ok {
		writeError(w, 404, "bucket not found")
		return
	}
	id := uuid.NewString()
	s.uploads[id] = &uploadState{
		bucket:      bucket,
		name:        meta.Name,
		contentType: meta.ContentType,
		total:       total,
	}
	loc := fmt.Sprintf("http://%s/upload/storage/v1/b/%s/o?uploadType=resumable&upload_id=%s",
		r.Host, bucket, id)
	w.Header().Set("Location", loc)
	w.WriteHeader(http.StatusOK)
}

// uploadChunk handles the PUTs of a resumable session: content chunks with a
// definite Content-Range, and offset probes with an indeterminate one.
func (s *Server) uploadChunk(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("upload_id")

	s.mu.Lock()
	defer s.mu.Unlock()

	up, ok := s.uploads[id]
	if !ok {
		writeError(w, 404, "upload session not found")
		return
	}
	if up.done != nil {
		writeJSON(w, *up.done)
		return
	}

	cr := r.Header.Get("Content-Range")
	first, last, probe, err := parseContentRange(cr, up.total)
	if err != nil {
		writeError(w, 400, "invalid Content-Range %q: %v", cr, err)
		return
	}

	if probe {
		if up.total == 0 || int64(len(up.buf)) == up.total {
			s.finalizeUploadLocked(w, up)
			return
		}
		s.writeResumeIncomplete(w, up)
		return
	}

	if first != int64(len(up.buf)) {
		// Overlap with already-committed bytes is fine; skip them.
		if first < int64(len(up.buf)) && last+1 > int64(len(up.buf)) {
			skip := int64(len(up.buf)) - first
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, 400, "reading chunk: %v", err)
				return
			}
			up.buf = append(up.buf, body[skip:]...)
		} else {
			writeError(w, 416, "offset %d does not match committed size %d", first, len(up.buf))
			return
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, 400, "reading chunk: %v", err)
			return
		}
		up.buf = append(up.buf, body...)
	}

	if int64(len(up.buf)) >= up.total {
		s.finalizeUploadLocked(w, up)
		return
	}
	s.writeResumeIncomplete(w, up)
}

// finalizeUploadLocked stores the uploaded object and responds with its
// resource. The session is kept so later probes see the result. Caller holds
// s.mu.
func (s *Server) finalizeUploadLocked(w http.ResponseWriter, up *uploadState) {
	b, ok := s.buckets[up.bucket]
	if !ok {
		writeError(w, 404, "bucket not found")
		return
	}
	v := s.putObjectLocked(b, up.name, up.contentType, up.buf)
	res := objectToResource(b.name, up.name, v)
	up.done = &res
	up.buf = nil
	writeJSON(w, res)
}

// writeResumeIncomplete responds 308 with the committed byte range.
func (s *Server) writeResumeIncomplete(w http.ResponseWriter, up *uploadState) {
	if len(up.buf) > 0 {
		w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", len(up.buf)-1))
	}
	w.WriteHeader(308)
}

// parseContentRange parses "bytes a-b/N" or the probe form "bytes */N".
func parseContentRange(cr string, total int64) (first, last int64, probe bool, err error) {
	rest, ok := strings.CutPrefix(cr, "bytes ")
	if !ok {
		return 0, 0, false, fmt.Errorf("missing bytes unit")
	}
	rng, totalStr, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, false, fmt.Errorf("missing total")
	}
	if n, perr := strconv.ParseInt(totalStr, 10, 64); perr != nil || n != total {
		return 0, 0, false, fmt.Errorf("total %q does not match session size %d", totalStr, total)
	}
	if rng == "*" {
		return 0, 0, true, nil
	}
	firstStr, lastStr, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, false, fmt.Errorf("malformed range")
	}
	if first, err = strconv.ParseInt(firstStr, 10, 64); err != nil {
		return 0, 0, false, err
	}
	if last, err = strconv.ParseInt(lastStr, 10, 64); err != nil {
		return 0, 0, false, err
	}
	if first > last || last >= total {
		return 0, 0, false, fmt.Errorf("range out of bounds")
	}
	return first, last, false, nil
}
