package gcstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gcstore/gcstore/internal/fakegcs"
)

// uploadPayload returns size bytes of deterministic content.
func uploadPayload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%23)
	}
	return data
}

func TestResumableUpload(t *testing.T) {
	c, srv := newTestClient(t)
	srv.CreateBucket("media")
	ctx := context.Background()

	// Three chunks: two full, one short.
	payload := uploadPayload(600_000)
	up, err := c.NewResumableUploader(ctx, "media", "big.bin", "application/octet-stream", int64(len(payload)))
	if err != nil {
		t.Fatalf("NewResumableUploader() failed: %v", err)
	}
	up.ChunkSize = 256 * 1024

	obj, err := up.Upload(ctx, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if obj.Name != "big.bin" || obj.Size != uint64(len(payload)) {
		t.Errorf("obj = %+v", obj)
	}

	rc, err := c.DownloadObject(ctx, "media", "big.bin", 0)
	if err != nil {
		t.Fatalf("DownloadObject() failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("downloaded %d bytes, mismatch with %d-byte payload", len(data), len(payload))
	}
}

func TestResumableUploadRetriesTransientFailure(t *testing.T) {
	c, srv := newTestClient(t)
	srv.CreateBucket("media")
	ctx := context.Background()

	payload := uploadPayload(400_000)
	up, err := c.NewResumableUploader(ctx, "media", "flaky.bin", "", int64(len(payload)))
	if err != nil {
		t.Fatalf("NewResumableUploader() failed: %v", err)
	}
	up.ChunkSize = 256 * 1024

	// The first chunk PUT fails with 503; the client must probe the
	// committed offset and resend.
	srv.FailNext(503, 1)
	obj, err := up.Upload(ctx, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Upload() with transient failure failed: %v", err)
	}
	if obj.Size != uint64(len(payload)) {
		t.Errorf("Size = %d, want %d", obj.Size, len(payload))
	}

	rc, err := c.DownloadObject(ctx, "media", "flaky.bin", 0)
	if err != nil {
		t.Fatalf("DownloadObject() failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, payload) {
		t.Error("uploaded content corrupted by retry")
	}
}

// newLossyClient returns a client whose transport forwards the first
// definite-range chunk PUT to the server but replaces its response with a
// synthetic 503, as if the response was lost in transit after the server had
// already processed the chunk.
func newLossyClient(t *testing.T) (*Client, *fakegcs.Server) {
	t.Helper()
	srv := fakegcs.New()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	dropped := false
	hc := &http.Client{Transport: tripFunc(func(r *http.Request) (*http.Response, error) {
		res, err := http.DefaultTransport.RoundTrip(r)
		if err != nil {
			return nil, err
		}
		cr := r.Header.Get("Content-Range")
		if !dropped && r.Method == "PUT" && cr != "" && !strings.Contains(cr, "*") {
			dropped = true
			res.Body.Close()
			return &http.Response{
				StatusCode: 503,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader("")),
				Request:    r,
			}, nil
		}
		return res, nil
	})}

	c, err := NewClient(context.Background(), WithEndpoint(ts.URL), WithHTTPClient(hc))
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return c, srv
}

func TestResumableUploadLostResponseMidUpload(t *testing.T) {
	c, srv := newLossyClient(t)
	srv.CreateBucket("media")
	ctx := context.Background()

	// The first of two chunks lands in full but its 308 is lost. The probe
	// reports the whole chunk committed; the client must continue with the
	// second chunk, not re-send an empty range.
	payload := uploadPayload(512 * 1024)
	up, err := c.NewResumableUploader(ctx, "media", "lossy.bin", "", int64(len(payload)))
	if err != nil {
		t.Fatalf("NewResumableUploader() failed: %v", err)
	}
	up.ChunkSize = 256 * 1024

	obj, err := up.Upload(ctx, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Upload() with lost response failed: %v", err)
	}
	if obj.Size != uint64(len(payload)) {
		t.Errorf("Size = %d, want %d", obj.Size, len(payload))
	}

	rc, err := c.DownloadObject(ctx, "media", "lossy.bin", 0)
	if err != nil {
		t.Fatalf("DownloadObject() failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, payload) {
		t.Error("uploaded content corrupted by lost-response recovery")
	}
}

func TestResumableUploadLostFinalResponse(t *testing.T) {
	c, srv := newLossyClient(t)
	srv.CreateBucket("media")
	ctx := context.Background()

	// A single-chunk upload whose finalizing 200 is lost. The probe hits the
	// already-finalized session and must yield the finished object.
	payload := uploadPayload(256 * 1024)
	up, err := c.NewResumableUploader(ctx, "media", "final.bin", "", int64(len(payload)))
	if err != nil {
		t.Fatalf("NewResumableUploader() failed: %v", err)
	}
	up.ChunkSize = 256 * 1024

	obj, err := up.Upload(ctx, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Upload() with lost final response failed: %v", err)
	}
	if obj.Name != "final.bin" || obj.Size != uint64(len(payload)) {
		t.Errorf("obj = %+v", obj)
	}

	rc, err := c.DownloadObject(ctx, "media", "final.bin", 0)
	if err != nil {
		t.Fatalf("DownloadObject() failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, payload) {
		t.Error("finalized content mismatch")
	}
}

func TestResumableUploadPermanentFailure(t *testing.T) {
	c, srv := newTestClient(t)
	srv.CreateBucket("media")
	ctx := context.Background()

	payload := uploadPayload(1024)
	up, err := c.NewResumableUploader(ctx, "media", "denied.bin", "", int64(len(payload)))
	if err != nil {
		t.Fatalf("NewResumableUploader() failed: %v", err)
	}
	up.ChunkSize = 256 * 1024

	srv.FailNext(403, 1)
	if _, err := up.Upload(ctx, bytes.NewReader(payload)); err == nil {
		t.Fatal("Upload() succeeded despite 403")
	} else if ge, ok := AsAPIError(err); !ok || ge.Code != 403 {
		t.Errorf("Upload(): got %v, want 403 API error", err)
	}
}

func TestResumableUploadEmpty(t *testing.T) {
	c, srv := newTestClient(t)
	srv.CreateBucket("media")
	ctx := context.Background()

	up, err := c.NewResumableUploader(ctx, "media", "empty.bin", "", 0)
	if err != nil {
		t.Fatalf("NewResumableUploader() failed: %v", err)
	}
	obj, err := up.Upload(ctx, bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Upload() of empty content failed: %v", err)
	}
	if obj.Size != 0 {
		t.Errorf("Size = %d, want 0", obj.Size)
	}
}

func TestResumableUploaderValidation(t *testing.T) {
	c, srv := newTestClient(t)
	srv.CreateBucket("media")
	ctx := context.Background()

	if _, err := c.NewResumableUploader(ctx, "media", "", "", 10); !IsInvalidArgument(err) {
		t.Errorf("empty object name: got %v, want InvalidArgument", err)
	}
	if _, err := c.NewResumableUploader(ctx, "media", "x", "", -1); !IsInvalidArgument(err) {
		t.Errorf("negative size: got %v, want InvalidArgument", err)
	}

	up, err := c.NewResumableUploader(ctx, "media", "x", "", 10)
	if err != nil {
		t.Fatalf("NewResumableUploader() failed: %v", err)
	}
	up.ChunkSize = 1000 // not a multiple of 256 KiB
	if _, err := up.Upload(ctx, bytes.NewReader(uploadPayload(10))); !IsInvalidArgument(err) {
		t.Errorf("bad chunk size: got %v, want InvalidArgument", err)
	}
}
