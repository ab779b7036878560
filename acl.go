package gcstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// EntityType identifies the kind of identity an ACL entry grants a role to.
type EntityType string

// The closed set of entity types accepted by the API.
const (
	EntityUser                  EntityType = "user"
	EntityGroup                 EntityType = "group"
	EntityDomain                EntityType = "domain"
	EntityProject               EntityType = "project"
	EntityAllUsers              EntityType = "allUsers"
	EntityAllAuthenticatedUsers EntityType = "allAuthenticatedUsers"
)

// Role is the permission level granted by an ACL entry.
type Role string

// The closed set of roles accepted for ACL writes.
const (
	RoleReader Role = "READER"
	RoleOwner  Role = "OWNER"
)

// Entity describes an identity that can hold a permission on a bucket or
// object. Name carries the user email, group email, domain, or project
// team-number; it must be empty for the two "all" entity types and non-empty
// for every other type.
type Entity struct {
	Type EntityType
	Name string
}

// AllUsers is the special entity granting access to anyone on the internet.
var AllUsers = Entity{Type: EntityAllUsers}

// AllAuthenticatedUsers is the special entity granting access to anyone
// authenticated with a Google account.
var AllAuthenticatedUsers = Entity{Type: EntityAllAuthenticatedUsers}

// String returns the canonical entity string used as a path segment and in
// request bodies: "allUsers" and "allAuthenticatedUsers" verbatim, otherwise
// "{type}-{name}". It assumes the entity has already been validated.
func (e Entity) String() string {
	switch e.Type {
	case EntityAllUsers, EntityAllAuthenticatedUsers:
		return string(e.Type)
	}
	return fmt.Sprintf("%s-%s", e.Type, e.Name)
}

// ParseEntity parses a canonical entity string ("allUsers",
// "allAuthenticatedUsers", or "{type}-{name}") back into an Entity. It fails
// with InvalidArgument on anything outside the accepted forms.
func ParseEntity(s string) (Entity, error) {
	switch s {
	case string(EntityAllUsers):
		return AllUsers, nil
	case string(EntityAllAuthenticatedUsers):
		return AllAuthenticatedUsers, nil
	}
	typ, name, ok := strings.Cut(s, "-")
	if !ok {
		return Entity{}, invalidArg("invalid entity string %q", s)
	}
	switch EntityType(typ) {
	case EntityAllUsers, EntityAllAuthenticatedUsers:
		// The "all" entities carry no name; "allUsers-x" is not a form the
		// API accepts.
		return Entity{}, invalidArg("invalid entity string %q", s)
	}
	e := Entity{Type: EntityType(typ), Name: name}
	if err := e.validate(); err != nil {
		return Entity{}, err
	}
	return e, nil
}

// validate checks the entity against the accepted enumeration. The name is
// required unless the type is one of the two "all" types, where it is
// ignored.
func (e Entity) validate() error {
	switch e.Type {
	case EntityAllUsers, EntityAllAuthenticatedUsers:
		return nil
	case EntityUser, EntityGroup, EntityDomain, EntityProject:
		if e.Name == "" {
			return invalidArg("entity name is required for entity type %q", e.Type)
		}
		return nil
	default:
		return invalidArg("invalid entity type %q", e.Type)
	}
}

// validateRole checks a role against the accepted enumeration.
func validateRole(r Role) error {
	switch r {
	case RoleReader, RoleOwner:
		return nil
	}
	return invalidArg("invalid role %q: must be READER or OWNER", r)
}

// ProjectTeam is the project team associated with an ACL entity, if any.
type ProjectTeam struct {
	ProjectNumber string `json:"projectNumber,omitempty"`
	Team          string `json:"team,omitempty"`
}

// ACLRule is an access-control entry: a grant of Role to Entity on a bucket
// or object. Fields other than Entity and Role are assigned by the server and
// passed through unchanged.
type ACLRule struct {
	Kind        string       `json:"kind,omitempty"`
	ID          string       `json:"id,omitempty"`
	Bucket      string       `json:"bucket,omitempty"`
	Object      string       `json:"object,omitempty"`
	Generation  int64        `json:"generation,omitempty,string"`
	Entity      string       `json:"entity"`
	Role        Role         `json:"role"`
	Email       string       `json:"email,omitempty"`
	EntityID    string       `json:"entityId,omitempty"`
	Domain      string       `json:"domain,omitempty"`
	ProjectTeam *ProjectTeam `json:"projectTeam,omitempty"`
	Etag        string       `json:"etag,omitempty"`
}

// aclList is the JSON API list envelope for ACL collections.
type aclList struct {
	Kind  string    `json:"kind"`
	Items []ACLRule `json:"items"`
}

// GetBucketACL returns the ACL entry for entity on the named bucket. An empty
// bucket falls back to the client's default bucket.
func (c *Client) GetBucketACL(ctx context.Context, bucket string, entity Entity) (*ACLRule, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if err := entity.validate(); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/b/%s/acl/%s", c.base, bucket, url.PathEscape(entity.String()))
	var rule ACLRule
	if err := c.do(ctx, "GetBucketACL", "GET", u, nil, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListBucketACLs returns all ACL entries on the named bucket.
func (c *Client) ListBucketACLs(ctx context.Context, bucket string) ([]ACLRule, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/b/%s/acl", c.base, bucket)
	var list aclList
	if err := c.do(ctx, "ListBucketACLs", "GET", u, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// CreateBucketACL creates an ACL entry granting role to entity on the named
// bucket, returning the entry as created by the server.
func (c *Client) CreateBucketACL(ctx context.Context, bucket string, entity Entity, role Role) (*ACLRule, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if err := entity.validate(); err != nil {
		return nil, err
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/b/%s/acl", c.base, bucket)
	body := ACLRule{Entity: entity.String(), Role: role}
	var rule ACLRule
	if err := c.do(ctx, "CreateBucketACL", "POST", u, body, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// DeleteBucketACL removes the ACL entry for entity on the named bucket.
func (c *Client) DeleteBucketACL(ctx context.Context, bucket string, entity Entity) error {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return err
	}
	if err := entity.validate(); err != nil {
		return err
	}
	u := fmt.Sprintf("%s/b/%s/acl/%s", c.base, bucket, url.PathEscape(entity.String()))
	return c.do(ctx, "DeleteBucketACL", "DELETE", u, nil, nil)
}

// GetObjectACL returns the ACL entry for entity on the named object. A
// non-zero generation selects that object revision; zero targets the live
// object and omits the parameter.
func (c *Client) GetObjectACL(ctx context.Context, bucket, object string, entity Entity, generation int64) (*ACLRule, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return nil, invalidArg("object name is required")
	}
	if err := entity.validate(); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/b/%s/o/%s/acl/%s",
		c.base, bucket, escapeObjectName(object), url.PathEscape(entity.String()))
	if generation != 0 {
		u += fmt.Sprintf("?generation=%d", generation)
	}
	var rule ACLRule
	if err := c.do(ctx, "GetObjectACL", "GET", u, nil, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListObjectACLs returns all ACL entries on the named object.
func (c *Client) ListObjectACLs(ctx context.Context, bucket, object string) ([]ACLRule, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return nil, invalidArg("object name is required")
	}
	u := fmt.Sprintf("%s/b/%s/o/%s/acl", c.base, bucket, escapeObjectName(object))
	var list aclList
	if err := c.do(ctx, "ListObjectACLs", "GET", u, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// UpdateObjectACL sets entity's role on the named object and returns the
// resulting ACL entry. A non-2xx response is reported as an OperationFailed
// error; on success an informational message is logged.
func (c *Client) UpdateObjectACL(ctx context.Context, bucket, object string, entity Entity, role Role) (*ACLRule, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if object == "" {
		return nil, invalidArg("object name is required")
	}
	if err := entity.validate(); err != nil {
		return nil, err
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/b/%s/o/%s/acl", c.base, bucket, escapeObjectName(object))
	body := ACLRule{Entity: entity.String(), Role: role}
	var rule ACLRule
	if err := c.do(ctx, "UpdateObjectACL", "POST", u, body, &rule); err != nil {
		if ge, ok := AsAPIError(err); ok {
			return nil, operationFailed("Error setting access", ge.Code)
		}
		return nil, err
	}
	slog.Info("access set", "bucket", bucket, "object", object,
		"entity", entity.String(), "role", string(role))
	return &rule, nil
}

// DeleteObjectACL removes the ACL entry for entity on the named object.
func (c *Client) DeleteObjectACL(ctx context.Context, bucket, object string, entity Entity) error {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return err
	}
	if object == "" {
		return invalidArg("object name is required")
	}
	if err := entity.validate(); err != nil {
		return err
	}
	u := fmt.Sprintf("%s/b/%s/o/%s/acl/%s",
		c.base, bucket, escapeObjectName(object), url.PathEscape(entity.String()))
	return c.do(ctx, "DeleteObjectACL", "DELETE", u, nil, nil)
}

// ListDefaultObjectACLs returns the bucket's default object ACL, applied to
// new objects that are created without an explicit ACL.
func (c *Client) ListDefaultObjectACLs(ctx context.Context, bucket string) ([]ACLRule, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/b/%s/defaultObjectAcl", c.base, bucket)
	var list aclList
	if err := c.do(ctx, "ListDefaultObjectACLs", "GET", u, nil, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// CreateDefaultObjectACL adds an entry to the bucket's default object ACL.
func (c *Client) CreateDefaultObjectACL(ctx context.Context, bucket string, entity Entity, role Role) (*ACLRule, error) {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if err := entity.validate(); err != nil {
		return nil, err
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/b/%s/defaultObjectAcl", c.base, bucket)
	body := ACLRule{Entity: entity.String(), Role: role}
	var rule ACLRule
	if err := c.do(ctx, "CreateDefaultObjectACL", "POST", u, body, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// DeleteDefaultObjectACL removes an entry from the bucket's default object
// ACL.
func (c *Client) DeleteDefaultObjectACL(ctx context.Context, bucket string, entity Entity) error {
	bucket, err := c.bucket(bucket)
	if err != nil {
		return err
	}
	if err := entity.validate(); err != nil {
		return err
	}
	u := fmt.Sprintf("%s/b/%s/defaultObjectAcl/%s", c.base, bucket, url.PathEscape(entity.String()))
	return c.do(ctx, "DeleteDefaultObjectACL", "DELETE", u, nil, nil)
}
