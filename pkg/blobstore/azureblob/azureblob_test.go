package azureblob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listBlobsXML = `<?xml version="1.0" encoding="utf-8"?>
<EnumerationResults ServiceEndpoint="http://fake/" ContainerName="acme-container">
  <Prefix>acme</Prefix>
  <Blobs>
    <Blob>
      <Name>acme/guest.wasm</Name>
      <Properties></Properties>
    </Blob>
  </Blobs>
  <NextMarker></NextMarker>
</EnumerationResults>`

// newFakeContainer answers ListBlobsFlatSegment requests (comp=list)
// with a single-page listing and every other request with body for any
// blob download.
func newFakeContainer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("comp") == "list" {
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(listBlobsXML))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
}

func TestNewRejectsMalformedContainerURL(t *testing.T) {
	_, err := New("://not-a-url", azblob.NewAnonymousCredential())
	require.Error(t, err)
}

func TestStoreListParsesBlobsUnderPrefix(t *testing.T) {
	ts := newFakeContainer(t, "")
	defer ts.Close()

	store, err := New(ts.URL+"/acme-container", azblob.NewAnonymousCredential())
	require.NoError(t, err)

	entries, err := store.List(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "acme/guest.wasm", entries[0].Name)
}

func TestStoreReadReturnsBlobBody(t *testing.T) {
	ts := newFakeContainer(t, "binary-content")
	defer ts.Close()

	store, err := New(ts.URL+"/acme-container", azblob.NewAnonymousCredential())
	require.NoError(t, err)

	b, err := store.Read(context.Background(), "acme/guest.wasm")
	require.NoError(t, err)
	assert.Equal(t, "binary-content", string(b))
}
