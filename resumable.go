package gcstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
)

const (
	// resumableChunkGranularity is the chunk-size granularity required by
	// the resumable upload protocol for all chunks but the last.
	resumableChunkGranularity = 256 * 1024

	defaultChunkSize = 8 * 1024 * 1024

	// maxChunkRetries bounds retry attempts for a single chunk.
	maxChunkRetries = 5
)

// ResumableUploader uploads one object through a resumable upload session.
// Create one with Client.NewResumableUploader, optionally adjust ChunkSize,
// then call Upload. An uploader is good for a single Upload call.
type ResumableUploader struct {
	// ChunkSize is the number of bytes sent per request. It must be a
	// multiple of 256 KiB. Defaults to 8 MiB.
	ChunkSize int64

	c    *Client
	uri  string
	size int64
}

// SessionURI returns the server-assigned upload session URI.
func (u *ResumableUploader) SessionURI() string {
	return u.uri
}

// NewResumableUploader initiates a resumable upload session for the named
// object with the given total content size. Transient failures while sending
// chunks are retried with exponential backoff after probing the server for
// the committed offset; all other operations of this client remain
// single-shot.
func (c *Client) NewResumableUploader(ctx context.Context, bucket, object, contentType string, size int64) (*ResumableUploader, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return nil, invalidArg("object name is required")
	}
	if size < 0 {
		return nil, invalidArg("size must be non-negative, got %d", size)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	u := fmt.Sprintf("%s/b/%s/o?uploadType=resumable", c.uploadBase, bucket)
	body, err := encodeJSON(Object{Name: trimLeadingSlash(object), ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("encoding resumable upload metadata: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building resumable upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Upload-Content-Type", contentType)
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("User-Agent", c.userAgent)

	res, err := c.doHTTP("InitResumableUpload", req)
	if err != nil {
		return nil, err
	}
	defer googleapi.CloseBody(res)
	if err := googleapi.CheckResponse(res); err != nil {
		return nil, err
	}
	loc := res.Header.Get("Location")
	if loc == "" {
		return nil, fmt.Errorf("resumable upload session: server returned no Location header")
	}
	return &ResumableUploader{
		ChunkSize: defaultChunkSize,
		c:         c,
		uri:       loc,
		size:      size,
	}, nil
}

// Upload streams the object content from r in chunks and returns the final
// object metadata. r must yield exactly the size given at session creation.
func (u *ResumableUploader) Upload(ctx context.Context, r io.Reader) (*Object, error) {
	if u.ChunkSize <= 0 || u.ChunkSize%resumableChunkGranularity != 0 {
		return nil, invalidArg("chunk size %d is not a positive multiple of %d", u.ChunkSize, resumableChunkGranularity)
	}

	if u.size == 0 {
		return u.finalizeEmpty(ctx)
	}

	buf := make([]byte, u.ChunkSize)
	var offset int64
	for offset < u.size {
		want := u.ChunkSize
		if remaining := u.size - offset; remaining < want {
			want = remaining
		}
		if _, err := io.ReadFull(r, buf[:want]); err != nil {
			return nil, fmt.Errorf("reading upload content at offset %d: %w", offset, err)
		}

		obj, next, err := u.sendChunk(ctx, buf[:want], offset)
		if err != nil {
			return nil, err
		}
		if obj != nil {
			u.c.addBytes(u.size, 0)
			return obj, nil
		}
		offset = next
	}
	return nil, fmt.Errorf("resumable upload: server did not finalize after %d bytes", u.size)
}

// sendChunk sends one chunk starting at offset, retrying transient failures.
// It returns the finished object when the server finalizes the upload, or the
// next offset to send from.
func (u *ResumableUploader) sendChunk(ctx context.Context, chunk []byte, offset int64) (*Object, int64, error) {
	bo := gax.Backoff{
		Initial:    500 * time.Millisecond,
		Max:        30 * time.Second,
		Multiplier: 2,
	}
	start := offset
	for attempt := 0; ; attempt++ {
		obj, next, err := u.putRange(ctx, chunk[start-offset:], start, offset+int64(len(chunk))-1)
		if err == nil {
			return obj, next, nil
		}
		if attempt >= maxChunkRetries || !retryableUploadError(err) {
			return nil, 0, err
		}
		if err := gax.Sleep(ctx, bo.Pause()); err != nil {
			return nil, 0, err
		}
		// Ask the server how much of the chunk was committed before the
		// failure, and resend from there. A lost response may hide a chunk
		// the server received in full, or a finalized upload.
		obj, committed, err := u.queryOffset(ctx)
		if err != nil {
			return nil, 0, err
		}
		if obj != nil {
			return obj, 0, nil
		}
		end := offset + int64(len(chunk))
		if committed < offset || committed > end {
			return nil, 0, fmt.Errorf("resumable upload: server reports offset %d outside current chunk [%d,%d)", committed, offset, end)
		}
		if committed == end {
			return nil, committed, nil
		}
		start = committed
	}
}

// putRange PUTs body as bytes [first,last] of the upload. A 308 response
// means the server wants more; 200/201 carries the finished object.
func (u *ResumableUploader) putRange(ctx context.Context, body []byte, first, last int64) (*Object, int64, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", u.uri, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("building chunk request: %w", err)
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", first, last, u.size))
	req.Header.Set("User-Agent", u.c.userAgent)

	res, err := u.c.doHTTP("UploadChunk", req)
	if err != nil {
		return nil, 0, err
	}
	defer googleapi.CloseBody(res)

	switch {
	case res.StatusCode == 308:
		return nil, last + 1, nil
	case res.StatusCode == 200 || res.StatusCode == 201:
		var obj Object
		if err := decodeJSON(res.Body, &obj); err != nil {
			return nil, 0, fmt.Errorf("decoding finalized upload: %w", err)
		}
		return &obj, 0, nil
	default:
		if err := googleapi.CheckResponse(res); err != nil {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("chunk upload: unexpected status %d", res.StatusCode)
	}
}

// queryOffset asks the server how many bytes of the session are committed,
// using an empty PUT with an indeterminate Content-Range. A 200/201 response
// means the session was already finalized; the finished object is returned
// instead of an offset.
func (u *ResumableUploader) queryOffset(ctx context.Context) (*Object, int64, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", u.uri, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building offset probe: %w", err)
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", u.size))
	req.Header.Set("User-Agent", u.c.userAgent)

	res, err := u.c.doHTTP("QueryUploadOffset", req)
	if err != nil {
		return nil, 0, err
	}
	defer googleapi.CloseBody(res)

	switch {
	case res.StatusCode == 200 || res.StatusCode == 201:
		var obj Object
		if err := decodeJSON(res.Body, &obj); err != nil {
			return nil, 0, fmt.Errorf("decoding finalized upload: %w", err)
		}
		return &obj, 0, nil
	case res.StatusCode != 308:
		if err := googleapi.CheckResponse(res); err != nil {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("offset probe: unexpected status %d", res.StatusCode)
	}
	// Range: bytes=0-N means N+1 bytes committed; absent means none.
	rng := res.Header.Get("Range")
	if rng == "" {
		return nil, 0, nil
	}
	idx := strings.LastIndex(rng, "-")
	if idx < 0 {
		return nil, 0, fmt.Errorf("offset probe: malformed Range header %q", rng)
	}
	n, err := strconv.ParseInt(rng[idx+1:], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("offset probe: malformed Range header %q", rng)
	}
	return nil, n + 1, nil
}

// finalizeEmpty completes a zero-byte upload with a single indeterminate PUT.
func (u *ResumableUploader) finalizeEmpty(ctx context.Context) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", u.uri, nil)
	if err != nil {
		return nil, fmt.Errorf("building finalize request: %w", err)
	}
	req.Header.Set("Content-Range", "bytes */0")
	req.Header.Set("User-Agent", u.c.userAgent)

	res, err := u.c.doHTTP("UploadChunk", req)
	if err != nil {
		return nil, err
	}
	defer googleapi.CloseBody(res)
	if err := googleapi.CheckResponse(res); err != nil {
		return nil, err
	}
	var obj Object
	if err := decodeJSON(res.Body, &obj); err != nil {
		return nil, fmt.Errorf("decoding finalized upload: %w", err)
	}
	return &obj, nil
}

// retryableUploadError reports whether a chunk failure is worth retrying:
// transport errors and 429/5xx responses.
func retryableUploadError(err error) bool {
	if ge, ok := AsAPIError(err); ok {
		return ge.Code == 429 || ge.Code >= 500
	}
	// Transport-level failure with no HTTP response.
	return true
}
