package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo is object metadata returned from listing an archive prefix.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter uploads archive objects. PutMultipart is for payloads large
// enough that a single request would be fragile; partSize <= 0 lets the
// implementation pick.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves and enumerates archive objects.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves aged ledger rows to cold storage. Implementations upload
// and verify; deleting the archived rows from the primary store is a
// separate, explicit step taken after the upload is confirmed.
type Archiver interface {
	ArchiveFills(ctx context.Context, beforeBlock uint64) (int64, error)
	ArchiveDeposits(ctx context.Context, beforeBlock uint64) (int64, error)
}
