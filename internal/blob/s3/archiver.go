package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/polytracker/internal/domain"
)

// FillArchiveStore is the read surface the archiver needs from the fill
// ledger.
type FillArchiveStore interface {
	ListBefore(ctx context.Context, block uint64) ([]domain.Fill, error)
}

// DepositArchiveStore is the read surface the archiver needs from the
// deposit table.
type DepositArchiveStore interface {
	ListBefore(ctx context.Context, block uint64) ([]domain.Deposit, error)
}

// ArchiveImpl implements domain.Archiver by serializing aged rows to JSONL
// and uploading them to object storage, keyed by the cutoff block. Uploads
// are verified with a HEAD before the row count is reported; deleting the
// archived rows from Postgres is the caller's follow-up step.
type ArchiveImpl struct {
	writer   domain.BlobWriter
	reader   domain.BlobReader
	fills    FillArchiveStore
	deposits DepositArchiveStore
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, fills FillArchiveStore, deposits DepositArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:   writer,
		reader:   reader,
		fills:    fills,
		deposits: deposits,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveFills uploads every fill older than beforeBlock to
// archive/fills/<beforeBlock>.jsonl and returns the archived row count.
func (a *ArchiveImpl) ArchiveFills(ctx context.Context, beforeBlock uint64) (int64, error) {
	fills, err := a.fills.ListBefore(ctx, beforeBlock)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills query: %w", err)
	}
	if len(fills) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(fills)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills marshal: %w", err)
	}
	if err := a.upload(ctx, archivePath("fills", beforeBlock), buf); err != nil {
		return 0, err
	}
	return int64(len(fills)), nil
}

// ArchiveDeposits uploads every deposit older than beforeBlock to
// archive/deposits/<beforeBlock>.jsonl and returns the archived row count.
func (a *ArchiveImpl) ArchiveDeposits(ctx context.Context, beforeBlock uint64) (int64, error) {
	deposits, err := a.deposits.ListBefore(ctx, beforeBlock)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive deposits query: %w", err)
	}
	if len(deposits) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(deposits)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive deposits marshal: %w", err)
	}
	if err := a.upload(ctx, archivePath("deposits", beforeBlock), buf); err != nil {
		return 0, err
	}
	return int64(len(deposits)), nil
}

// multipartThreshold is the payload size past which uploads switch from a
// single PutObject to the multipart manager.
const multipartThreshold = 16 * 1024 * 1024

// upload puts the payload and verifies it landed before reporting success.
func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	var err error
	if int64(len(buf)) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return fmt.Errorf("s3blob: archive upload %s: %w", path, err)
	}

	ok, err := a.reader.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: archive verify %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("s3blob: archive verify %s: object missing after upload", path)
	}
	return nil
}

// archivePath builds the object key for an archive file, partitioned by the
// cutoff block.
//
//	archive/fills/75000000.jsonl
//	archive/deposits/75000000.jsonl
func archivePath(kind string, beforeBlock uint64) string {
	return fmt.Sprintf("archive/%s/%d.jsonl", kind, beforeBlock)
}

// marshalJSONL serializes a slice as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
