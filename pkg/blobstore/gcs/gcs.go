// Package gcs implements tenanthost.BlobStore against Google Cloud
// Storage, grounded on the cloud.google.com/go/storage SDK used by
// aistore's GCS backend.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/mahd-dev/riwaq/pkg/tenanthost"
)

// Store lists and reads objects from a single bucket.
type Store struct {
	bucket *storage.BucketHandle
}

// New returns a Store backed by client, reading and listing objects in
// bucketName.
func New(client *storage.Client, bucketName string) *Store {
	return &Store{bucket: client.Bucket(bucketName)}
}

// List returns every object name under prefix in the bucket.
func (s *Store) List(ctx context.Context, prefix string) ([]tenanthost.BlobEntry, error) {
	var entries []tenanthost.BlobEntry
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, tenanthost.BlobEntry{Name: attrs.Name})
	}
	return entries, nil
}

// Read returns the full contents of the object at path.
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	r, err := s.bucket.Object(path).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
