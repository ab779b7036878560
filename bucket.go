package gcstore

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Bucket is the subset of the bucket resource this client reads and writes.
// Server-assigned fields are passed through unchanged.
type Bucket struct {
	Kind         string    `json:"kind,omitempty"`
	ID           string    `json:"id,omitempty"`
	Name         string    `json:"name"`
	Location     string    `json:"location,omitempty"`
	StorageClass string    `json:"storageClass,omitempty"`
	TimeCreated  time.Time `json:"timeCreated,omitempty"`
	Updated      time.Time `json:"updated,omitempty"`
	Etag         string    `json:"etag,omitempty"`
	ACL          []ACLRule `json:"acl,omitempty"`
}

// BucketList is one page of bucket listing results.
type BucketList struct {
	Kind          string   `json:"kind,omitempty"`
	Items         []Bucket `json:"items"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// GetBucket returns the named bucket's resource. An empty name falls back to
// the client's default bucket.
func (c *Client) GetBucket(ctx context.Context, name string) (*Bucket, error) {
	name, err := c.bucket(name)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/b/%s", c.base, name)
	var b Bucket
	if err := c.do(ctx, "GetBucket", "GET", u, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBucket creates bucket in the given project and returns the resource
// as created by the server.
func (c *Client) CreateBucket(ctx context.Context, project string, bucket *Bucket) (*Bucket, error) {
	if project == "" {
		return nil, invalidArg("project is required")
	}
	if bucket == nil || bucket.Name == "" {
		return nil, invalidArg("bucket name is required")
	}
	u := fmt.Sprintf("%s/b?project=%s", c.base, url.QueryEscape(project))
	var created Bucket
	if err := c.do(ctx, "CreateBucket", "POST", u, bucket, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteBucket deletes the named bucket, which must be empty.
func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	name, err := c.bucket(name)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/b/%s", c.base, name)
	return c.do(ctx, "DeleteBucket", "DELETE", u, nil, nil)
}

// ListBuckets returns one page of buckets in the given project. prefix and
// pageToken may be empty; the returned NextPageToken is non-empty when more
// pages remain.
func (c *Client) ListBuckets(ctx context.Context, project, prefix, pageToken string) (*BucketList, error) {
	if project == "" {
		return nil, invalidArg("project is required")
	}
	q := url.Values{}
	q.Set("project", project)
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	u := fmt.Sprintf("%s/b?%s", c.base, q.Encode())
	var list BucketList
	if err := c.do(ctx, "ListBuckets", "GET", u, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}
