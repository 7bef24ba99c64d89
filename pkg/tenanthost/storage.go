package tenanthost

import "context"

// BlobStore is the storage collaborator interface: the
// core consumes a read(path)→bytes and list(prefix)→entries interface
// and is otherwise indifferent to what backs it. Concrete
// implementations live under pkg/blobstore/.
type BlobStore interface {
	List(ctx context.Context, prefix string) ([]BlobEntry, error)
	Read(ctx context.Context, path string) ([]byte, error)
}
