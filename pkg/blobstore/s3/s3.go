// Package s3 implements tenanthost.BlobStore against an S3-compatible
// object store, grounded on the aws-sdk-go client used by aistore's S3
// backend.
package s3

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/mahd-dev/riwaq/pkg/tenanthost"
)

// Store lists and reads objects from a single bucket, where tenant
// prefixes are key prefixes within that bucket.
type Store struct {
	Bucket string
	client *s3.S3
}

// New returns a Store backed by an S3 client built from sess, reading
// and listing objects in bucket.
func New(sess *session.Session, bucket string) *Store {
	return &Store{Bucket: bucket, client: s3.New(sess)}
}

// List returns every object key under prefix in the bucket.
func (s *Store) List(ctx context.Context, prefix string) ([]tenanthost.BlobEntry, error) {
	var entries []tenanthost.BlobEntry
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			entries = append(entries, tenanthost.BlobEntry{Name: aws.StringValue(obj.Key)})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Read returns the full contents of the object at path.
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, out.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
