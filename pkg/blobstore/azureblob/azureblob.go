// Package azureblob implements tenanthost.BlobStore against Azure Blob
// Storage, grounded on the azure-storage-blob-go SDK used by aistore's
// Azure backend.
package azureblob

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/mahd-dev/riwaq/pkg/tenanthost"
)

// Store lists and reads blobs from a single container.
type Store struct {
	containerURL azblob.ContainerURL
}

// New returns a Store against the container reachable at containerURL
// (e.g. https://account.blob.core.windows.net/container), authenticated
// with cred.
func New(containerURL string, cred azblob.Credential) (*Store, error) {
	u, err := url.Parse(containerURL)
	if err != nil {
		return nil, err
	}
	pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})
	return &Store{containerURL: azblob.NewContainerURL(*u, pipeline)}, nil
}

// List returns every blob name under prefix in the container.
func (s *Store) List(ctx context.Context, prefix string) ([]tenanthost.BlobEntry, error) {
	var entries []tenanthost.BlobEntry
	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := s.containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: prefix,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Segment.BlobItems {
			entries = append(entries, tenanthost.BlobEntry{Name: item.Name})
		}
		marker = resp.NextMarker
	}
	return entries, nil
}

// Read returns the full contents of the blob at path.
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	blobURL := s.containerURL.NewBlobURL(strings.TrimPrefix(path, "/"))
	resp, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, err
	}
	body := resp.Body(azblob.RetryReaderOptions{})
	defer body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
