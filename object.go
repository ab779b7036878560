package gcstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"google.golang.org/api/googleapi"
)

// Object is the subset of the object resource this client reads and writes.
// Size and Generation are transmitted as decimal strings by the JSON API.
type Object struct {
	Kind        string            `json:"kind,omitempty"`
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name"`
	Bucket      string            `json:"bucket,omitempty"`
	Generation  int64             `json:"generation,omitempty,string"`
	ContentType string            `json:"contentType,omitempty"`
	Size        uint64            `json:"size,omitempty,string"`
	MD5Hash     string            `json:"md5Hash,omitempty"`
	CRC32C      string            `json:"crc32c,omitempty"`
	Etag        string            `json:"etag,omitempty"`
	TimeCreated time.Time         `json:"timeCreated,omitempty"`
	Updated     time.Time         `json:"updated,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ACL         []ACLRule         `json:"acl,omitempty"`
}

// ObjectList is one page of object listing results.
type ObjectList struct {
	Kind          string   `json:"kind,omitempty"`
	Items         []Object `json:"items"`
	Prefixes      []string `json:"prefixes,omitempty"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// ObjectQuery narrows an object listing. The zero value lists everything.
type ObjectQuery struct {
	Prefix    string
	Delimiter string
	PageToken string
}

// objectURL builds the direct resource URL for an object, with optional
// generation addressing. generation 0 targets the live object.
func (c *Client) objectURL(bucket, object string, generation int64) string {
	u := fmt.Sprintf("%s/b/%s/o/%s", c.base, bucket, escapeObjectName(object))
	if generation != 0 {
		u += fmt.Sprintf("?generation=%d", generation)
	}
	return u
}

// GetObject returns the named object's metadata. A non-zero generation
// selects that revision.
func (c *Client) GetObject(ctx context.Context, bucket, object string, generation int64) (*Object, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return nil, invalidArg("object name is required")
	}
	var o Object
	if err := c.do(ctx, "GetObject", "GET", c.objectURL(bucket, object, generation), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListObjects returns one page of objects in the bucket matching q. A nil q
// lists everything.
func (c *Client) ListObjects(ctx context.Context, bucket string, q *ObjectQuery) (*ObjectList, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	vals := url.Values{}
	if q != nil {
		if q.Prefix != "" {
			vals.Set("prefix", q.Prefix)
		}
		if q.Delimiter != "" {
			vals.Set("delimiter", q.Delimiter)
		}
		if q.PageToken != "" {
			vals.Set("pageToken", q.PageToken)
		}
	}
	u := fmt.Sprintf("%s/b/%s/o", c.base, bucket)
	if enc := vals.Encode(); enc != "" {
		u += "?" + enc
	}
	var list ObjectList
	if err := c.do(ctx, "ListObjects", "GET", u, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// DeleteObject deletes the named object. A non-zero generation deletes that
// revision only.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string, generation int64) error {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return err
	}
	if object == "" {
		return invalidArg("object name is required")
	}
	return c.do(ctx, "DeleteObject", "DELETE", c.objectURL(bucket, object, generation), nil, nil)
}

// CopyObject server-side copies srcObject in srcBucket to dstObject in
// dstBucket and returns the new object's metadata.
func (c *Client) CopyObject(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) (*Object, error) {
	srcBucket, err := c.bucket(srcBucket)
	if err != nil {
		return nil, err
	}
	if srcObject == "" || dstObject == "" {
		return nil, invalidArg("source and destination object names are required")
	}
	if dstBucket == "" {
		dstBucket = srcBucket
	}
	u := fmt.Sprintf("%s/b/%s/o/%s/copyTo/b/%s/o/%s",
		c.base, srcBucket, escapeObjectName(srcObject), dstBucket, escapeObjectName(dstObject))
	var o Object
	if err := c.do(ctx, "CopyObject", "POST", u, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// DownloadObject returns a reader over the object's content. The caller must
// close it. A non-zero generation selects that revision.
func (c *Client) DownloadObject(ctx context.Context, bucket, object string, generation int64) (io.ReadCloser, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return nil, invalidArg("object name is required")
	}
	u := fmt.Sprintf("%s/b/%s/o/%s?alt=media", c.base, bucket, escapeObjectName(object))
	if generation != 0 {
		u += fmt.Sprintf("&generation=%d", generation)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("building DownloadObject request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	res, err := c.doHTTP("DownloadObject", req)
	if err != nil {
		return nil, err
	}
	if err := googleapi.CheckResponse(res); err != nil {
		googleapi.CloseBody(res)
		return nil, err
	}
	c.addBytes(0, res.ContentLength)
	return res.Body, nil
}

// UploadObject uploads the content read from r as the named object using a
// single-request media upload, and returns the object's metadata. For large
// or unreliable transfers use NewResumableUploader instead.
func (c *Client) UploadObject(ctx context.Context, bucket, object, contentType string, r io.Reader) (*Object, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return nil, invalidArg("object name is required")
	}
	q := url.Values{}
	q.Set("uploadType", "media")
	q.Set("name", trimLeadingSlash(object))
	u := fmt.Sprintf("%s/b/%s/o?%s", c.uploadBase, bucket, q.Encode())

	req, err := http.NewRequestWithContext(ctx, "POST", u, r)
	if err != nil {
		return nil, fmt.Errorf("building UploadObject request: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.userAgent)

	res, err := c.doHTTP("UploadObject", req)
	if err != nil {
		return nil, err
	}
	defer googleapi.CloseBody(res)
	if err := googleapi.CheckResponse(res); err != nil {
		return nil, err
	}
	var o Object
	if err := decodeJSON(res.Body, &o); err != nil {
		return nil, fmt.Errorf("decoding UploadObject response: %w", err)
	}
	c.addBytes(int64(o.Size), 0)
	return &o, nil
}
