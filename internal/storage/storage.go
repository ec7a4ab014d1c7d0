// Package storage uploads pipeline artifacts to object storage.
//
// Google Cloud Storage is the production target; LocalStore mirrors the same
// bucket/object layout on disk for dry runs and tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// ErrBucketExists is returned by CreateBucket when the bucket already exists.
var ErrBucketExists = errors.New("bucket already exists")

// ObjectStore is the subset of object storage the pipeline needs.
type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error
	Upload(ctx context.Context, bucket, object string, r io.Reader, opts ObjectOptions) error
}

// ObjectOptions are attributes stored with an uploaded object.
type ObjectOptions struct {
	ContentType string
	Metadata    map[string]string
}

// GCSStore writes to Google Cloud Storage using Application Default Credentials.
type GCSStore struct {
	client   *gcs.Client
	project  string
	location string
}

// NewGCSStore creates a client. project and location are only needed for
// CreateBucket.
func NewGCSStore(ctx context.Context, project, location string) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, project: project, location: location}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// CreateBucket creates bucket in the configured project.
func (s *GCSStore) CreateBucket(ctx context.Context, bucket string) error {
	if s.project == "" {
		return fmt.Errorf("creating bucket %s requires a project id", bucket)
	}

	attrs := &gcs.BucketAttrs{Location: s.location}
	if err := s.client.Bucket(bucket).Create(ctx, s.project, attrs); err != nil {
		if isConflict(err) {
			return fmt.Errorf("%w: %s", ErrBucketExists, bucket)
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// Upload streams r into bucket/object.
func (s *GCSStore) Upload(ctx context.Context, bucket, object string, r io.Reader, opts ObjectOptions) error {
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.Metadata = opts.Metadata

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload gs://%s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

// isConflict reports whether err is an HTTP 409 from the storage API.
func isConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

// LocalStore keeps buckets as directories under Root.
type LocalStore struct {
	Root string
}

// NewLocalStore returns a store rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

// CreateBucket creates the bucket directory.
func (s *LocalStore) CreateBucket(ctx context.Context, bucket string) error {
	dir := filepath.Join(s.Root, bucket)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: %s", ErrBucketExists, bucket)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// Upload writes r to Root/bucket/object. The bucket directory must exist.
// Metadata is not persisted.
func (s *LocalStore) Upload(ctx context.Context, bucket, object string, r io.Reader, opts ObjectOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bucketDir := filepath.Join(s.Root, bucket)
	if _, err := os.Stat(bucketDir); err != nil {
		return fmt.Errorf("bucket %s not found: %w", bucket, err)
	}

	target := filepath.Join(bucketDir, filepath.FromSlash(object))
	if !strings.HasPrefix(target, bucketDir+string(os.PathSeparator)) {
		return fmt.Errorf("object name %q escapes bucket", object)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return f.Close()
}

// URI is a parsed "gs://bucket/prefix" location.
type URI struct {
	Bucket string
	Prefix string // without leading or trailing slashes
}

// ParseURI parses gs://bucket[/prefix].
func ParseURI(s string) (URI, error) {
	rest, ok := strings.CutPrefix(s, "gs://")
	if !ok {
		return URI{}, fmt.Errorf("invalid storage uri %q: want gs://bucket[/prefix]", s)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return URI{}, fmt.Errorf("invalid storage uri %q: missing bucket", s)
	}
	return URI{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// String formats the URI back to gs:// form.
func (u URI) String() string {
	if u.Prefix == "" {
		return "gs://" + u.Bucket
	}
	return "gs://" + u.Bucket + "/" + u.Prefix
}

// Object joins the prefix and name into an object name.
func (u URI) Object(name string) string {
	return path.Join(u.Prefix, name)
}

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jsonl":
		return "application/jsonl"
	case ".csv":
		return "text/csv"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
