package gcstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gcstore/gcstore/internal/fakegcs"
)

// newTestClient starts a fake GCS server and returns a client pointed at it.
func newTestClient(t *testing.T, opts ...Option) (*Client, *fakegcs.Server) {
	t.Helper()
	srv := fakegcs.New()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	opts = append([]Option{WithEndpoint(ts.URL), WithoutAuthentication()}, opts...)
	c, err := NewClient(context.Background(), opts...)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return c, srv
}

// tripFunc adapts a function to http.RoundTripper.
type tripFunc func(*http.Request) (*http.Response, error)

func (f tripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestEntityString(t *testing.T) {
	tests := []struct {
		name   string
		entity Entity
		want   string
	}{
		{"user", Entity{Type: EntityUser, Name: "jane@doe.com"}, "user-jane@doe.com"},
		{"group", Entity{Type: EntityGroup, Name: "team@example.com"}, "group-team@example.com"},
		{"domain", Entity{Type: EntityDomain, Name: "example.com"}, "domain-example.com"},
		{"project", Entity{Type: EntityProject, Name: "owners-1234"}, "project-owners-1234"},
		{"allUsers", AllUsers, "allUsers"},
		{"allAuthenticatedUsers", AllAuthenticatedUsers, "allAuthenticatedUsers"},
		{"allUsers ignores name", Entity{Type: EntityAllUsers, Name: "ignored"}, "allUsers"},
		{"allAuthenticatedUsers ignores name", Entity{Type: EntityAllAuthenticatedUsers, Name: ""}, "allAuthenticatedUsers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entity.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntityValidate(t *testing.T) {
	for _, typ := range []EntityType{EntityUser, EntityGroup, EntityDomain, EntityProject} {
		err := Entity{Type: typ}.validate()
		if !IsInvalidArgument(err) {
			t.Errorf("validate() with empty name for %q: got %v, want InvalidArgument", typ, err)
		}
	}
	for _, typ := range []EntityType{EntityAllUsers, EntityAllAuthenticatedUsers} {
		if err := (Entity{Type: typ}).validate(); err != nil {
			t.Errorf("validate() for %q: got %v, want nil", typ, err)
		}
	}
	if err := (Entity{Type: "robot", Name: "x"}).validate(); !IsInvalidArgument(err) {
		t.Errorf("validate() with unknown type: got %v, want InvalidArgument", err)
	}
}

func TestParseEntity(t *testing.T) {
	e, err := ParseEntity("user-jane@doe.com")
	if err != nil {
		t.Fatalf("ParseEntity() failed: %v", err)
	}
	if e.Type != EntityUser || e.Name != "jane@doe.com" {
		t.Errorf("ParseEntity() = %+v", e)
	}
	if e, err := ParseEntity("allUsers"); err != nil || e != AllUsers {
		t.Errorf("ParseEntity(allUsers) = %+v, %v", e, err)
	}
	if _, err := ParseEntity("nonsense"); !IsInvalidArgument(err) {
		t.Errorf("ParseEntity(nonsense): got %v, want InvalidArgument", err)
	}
	// The "all" entities take no name suffix.
	for _, s := range []string{"allUsers-x", "allAuthenticatedUsers-jane@doe.com"} {
		if _, err := ParseEntity(s); !IsInvalidArgument(err) {
			t.Errorf("ParseEntity(%q): got %v, want InvalidArgument", s, err)
		}
	}
}

// TestValidationBeforeNetwork verifies that argument validation fails before
// any request is issued.
func TestValidationBeforeNetwork(t *testing.T) {
	called := false
	hc := &http.Client{Transport: tripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		t.Errorf("unexpected request: %s %s", r.Method, r.URL)
		return nil, http.ErrUseLastResponse
	})}
	c, err := NewClient(context.Background(), WithHTTPClient(hc))
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	ctx := context.Background()

	badEntity := Entity{Type: EntityUser} // missing name
	if _, err := c.GetBucketACL(ctx, "b", badEntity); !IsInvalidArgument(err) {
		t.Errorf("GetBucketACL: got %v, want InvalidArgument", err)
	}
	if _, err := c.CreateBucketACL(ctx, "b", badEntity, RoleReader); !IsInvalidArgument(err) {
		t.Errorf("CreateBucketACL: got %v, want InvalidArgument", err)
	}
	if _, err := c.GetObjectACL(ctx, "b", "o", badEntity, 0); !IsInvalidArgument(err) {
		t.Errorf("GetObjectACL: got %v, want InvalidArgument", err)
	}
	if _, err := c.UpdateObjectACL(ctx, "b", "o", badEntity, RoleReader); !IsInvalidArgument(err) {
		t.Errorf("UpdateObjectACL: got %v, want InvalidArgument", err)
	}

	// Bad roles are rejected at the same stage.
	good := Entity{Type: EntityUser, Name: "jane@doe.com"}
	if _, err := c.CreateBucketACL(ctx, "b", good, Role("WRITER")); !IsInvalidArgument(err) {
		t.Errorf("CreateBucketACL with WRITER: got %v, want InvalidArgument", err)
	}
	if _, err := c.UpdateObjectACL(ctx, "b", "o", good, Role("EDITOR")); !IsInvalidArgument(err) {
		t.Errorf("UpdateObjectACL with EDITOR: got %v, want InvalidArgument", err)
	}

	if called {
		t.Error("validation failure still issued a network request")
	}
}

func TestBucketACLRoundTrip(t *testing.T) {
	c, srv := newTestClient(t)
	srv.CreateBucket("mybucket")
	ctx := context.Background()
	jane := Entity{Type: EntityUser, Name: "jane@doe.com"}

	created, err := c.CreateBucketACL(ctx, "mybucket", jane, RoleReader)
	if err != nil {
		t.Fatalf("CreateBucketACL() failed: %v", err)
	}
	if created.Entity != "user-jane@doe.com" || created.Role != RoleReader {
		t.Errorf("created = %+v", created)
	}

	got, err := c.GetBucketACL(ctx, "mybucket", jane)
	if err != nil {
		t.Fatalf("GetBucketACL() failed: %v", err)
	}
	if got.Entity != "user-jane@doe.com" || got.Role != RoleReader {
		t.Errorf("got = %+v", got)
	}

	if _, err := c.CreateBucketACL(ctx, "mybucket", AllUsers, RoleReader); err != nil {
		t.Fatalf("CreateBucketACL(allUsers) failed: %v", err)
	}
	rules, err := c.ListBucketACLs(ctx, "mybucket")
	if err != nil {
		t.Fatalf("ListBucketACLs() failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("ListBucketACLs() = %d entries, want 2", len(rules))
	}

	if err := c.DeleteBucketACL(ctx, "mybucket", jane); err != nil {
		t.Fatalf("DeleteBucketACL() failed: %v", err)
	}
	if _, err := c.GetBucketACL(ctx, "mybucket", jane); err == nil {
		t.Error("GetBucketACL() after delete succeeded, want error")
	} else if ge, ok := AsAPIError(err); !ok || ge.Code != 404 {
		t.Errorf("GetBucketACL() after delete: got %v, want 404 API error", err)
	}
}

func TestGetObjectACLGeneration(t *testing.T) {
	c, srv := newTestClient(t)
	srv.CreateBucket("mybucket")
	ctx := context.Background()

	v1, err := c.UploadObject(ctx, "mybucket", "mtcars.csv", "text/csv", strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("UploadObject() failed: %v", err)
	}
	if _, err := c.UpdateObjectACL(ctx, "mybucket", "mtcars.csv", AllUsers, RoleReader); err != nil {
		t.Fatalf("UpdateObjectACL() failed: %v", err)
	}
	// A second upload becomes the live generation, with no allUsers grant.
	if _, err := c.UploadObject(ctx, "mybucket", "mtcars.csv", "text/csv", strings.NewReader("a,b\n3,4\n")); err != nil {
		t.Fatalf("UploadObject() failed: %v", err)
	}

	got, err := c.GetObjectACL(ctx, "mybucket", "mtcars.csv", AllUsers, v1.Generation)
	if err != nil {
		t.Fatalf("GetObjectACL(generation=%d) failed: %v", v1.Generation, err)
	}
	if got.Entity != "allUsers" || got.Generation != v1.Generation {
		t.Errorf("got = %+v", got)
	}

	// Omitting the generation targets the live object, which has no grant.
	if _, err := c.GetObjectACL(ctx, "mybucket", "mtcars.csv", AllUsers, 0); err == nil {
		t.Error("GetObjectACL() on live object succeeded, want 404")
	} else if ge, ok := AsAPIError(err); !ok || ge.Code != 404 {
		t.Errorf("GetObjectACL() on live object: got %v, want 404 API error", err)
	}
}

func TestUpdateObjectACL(t *testing.T) {
	c, srv := newTestClient(t)
	srv.CreateBucket("mybucket")
	ctx := context.Background()

	if _, err := c.UploadObject(ctx, "mybucket", "report.txt", "text/plain", strings.NewReader("hi")); err != nil {
		t.Fatalf("UploadObject() failed: %v", err)
	}

	rule, err := c.UpdateObjectACL(ctx, "mybucket", "report.txt", AllUsers, RoleReader)
	if err != nil {
		t.Fatalf("UpdateObjectACL() failed: %v", err)
	}
	if rule.Entity != "allUsers" || rule.Role != RoleReader {
		t.Errorf("rule = %+v", rule)
	}

	// A denied write surfaces as OperationFailed with the fixed message.
	srv.FailNext(403, 1)
	_, err = c.UpdateObjectACL(ctx, "mybucket", "report.txt", AllUsers, RoleOwner)
	if err == nil {
		t.Fatal("UpdateObjectACL() succeeded, want OperationFailed")
	}
	var opErr *Error
	if !errors.As(err, &opErr) || opErr.Code != CodeOperationFailed {
		t.Fatalf("UpdateObjectACL(): got %v, want OperationFailed", err)
	}
	if opErr.Message != "Error setting access" || opErr.HTTPStatus != 403 {
		t.Errorf("OperationFailed = %+v", opErr)
	}
}

func TestObjectACLLeadingSlash(t *testing.T) {
	c, srv := newTestClient(t)
	srv.CreateBucket("mybucket")
	ctx := context.Background()

	if _, err := c.UploadObject(ctx, "mybucket", "mtcars.csv", "text/csv", strings.NewReader("x")); err != nil {
		t.Fatalf("UploadObject() failed: %v", err)
	}
	if _, err := c.UpdateObjectACL(ctx, "mybucket", "/mtcars.csv", AllUsers, RoleReader); err != nil {
		t.Fatalf("UpdateObjectACL(/mtcars.csv) failed: %v", err)
	}
	// Both spellings address the same object.
	if _, err := c.GetObjectACL(ctx, "mybucket", "mtcars.csv", AllUsers, 0); err != nil {
		t.Errorf("GetObjectACL(mtcars.csv) failed: %v", err)
	}
	if escapeObjectName("/mtcars.csv") != escapeObjectName("mtcars.csv") {
		t.Error("escaped segments differ for /mtcars.csv and mtcars.csv")
	}
}

func TestDefaultObjectACLs(t *testing.T) {
	c, srv := newTestClient(t)
	srv.CreateBucket("mybucket")
	ctx := context.Background()

	if _, err := c.CreateDefaultObjectACL(ctx, "mybucket", AllUsers, RoleReader); err != nil {
		t.Fatalf("CreateDefaultObjectACL() failed: %v", err)
	}
	rules, err := c.ListDefaultObjectACLs(ctx, "mybucket")
	if err != nil {
		t.Fatalf("ListDefaultObjectACLs() failed: %v", err)
	}
	if len(rules) != 1 || rules[0].Entity != "allUsers" {
		t.Fatalf("rules = %+v", rules)
	}

	// New objects inherit the default object ACL.
	if _, err := c.UploadObject(ctx, "mybucket", "pub.txt", "text/plain", strings.NewReader("x")); err != nil {
		t.Fatalf("UploadObject() failed: %v", err)
	}
	if _, err := c.GetObjectACL(ctx, "mybucket", "pub.txt", AllUsers, 0); err != nil {
		t.Errorf("GetObjectACL() on inherited grant failed: %v", err)
	}

	if err := c.DeleteDefaultObjectACL(ctx, "mybucket", AllUsers); err != nil {
		t.Fatalf("DeleteDefaultObjectACL() failed: %v", err)
	}
}

func TestDefaultBucketFallback(t *testing.T) {
	c, srv := newTestClient(t, WithDefaultBucket("fallback"))
	srv.CreateBucket("fallback")
	ctx := context.Background()

	if _, err := c.CreateBucketACL(ctx, "", AllUsers, RoleReader); err != nil {
		t.Fatalf("CreateBucketACL() with default bucket failed: %v", err)
	}
	if _, err := c.GetBucketACL(ctx, "", AllUsers); err != nil {
		t.Errorf("GetBucketACL() with default bucket failed: %v", err)
	}

	// Without a default, an empty bucket name is a caller error.
	bare, _ := newTestClient(t)
	if _, err := bare.GetBucketACL(ctx, "", AllUsers); !IsInvalidArgument(err) {
		t.Errorf("GetBucketACL() without bucket: got %v, want InvalidArgument", err)
	}
}
