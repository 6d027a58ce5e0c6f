package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// Narrow store interfaces: the archiver only needs time-ranged reads, not
// the full domain store interfaces. The Postgres stores satisfy these
// implicitly.

// SubmissionArchiveStore provides read access to submissions for archival.
type SubmissionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.SubmissionRecord, error)
}

// IntentArchiveStore provides read access to intents for archival.
type IntentArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.TradeIntent, error)
}

// ArchiveImpl implements domain.Archiver by querying the stores for old
// records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// not performed here; that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	submissions SubmissionArchiveStore
	intents     IntentArchiveStore
}

// NewArchiver creates an ArchiveImpl over the given writer and stores.
func NewArchiver(writer domain.BlobWriter, submissions SubmissionArchiveStore, intents IntentArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		submissions: submissions,
		intents:     intents,
	}
}

// ArchiveSubmissions uploads all submissions before the cutoff as JSONL at
// archive/submissions/YYYY-MM.jsonl and returns the archived count.
func (a *ArchiveImpl) ArchiveSubmissions(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.submissions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive submissions query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	rows := make([]any, len(recs))
	for i, r := range recs {
		rows[i] = r
	}
	if err := a.upload(ctx, archivePath("submissions", before), rows); err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}

// ArchiveIntents uploads all intents before the cutoff as JSONL at
// archive/intents/YYYY-MM.jsonl and returns the archived count.
func (a *ArchiveImpl) ArchiveIntents(ctx context.Context, before time.Time) (int64, error) {
	intents, err := a.intents.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive intents query: %w", err)
	}
	if len(intents) == 0 {
		return 0, nil
	}

	rows := make([]any, len(intents))
	for i, r := range intents {
		rows[i] = r
	}
	if err := a.upload(ctx, archivePath("intents", before), rows); err != nil {
		return 0, err
	}
	return int64(len(intents)), nil
}

// upload serializes rows to JSONL and writes them in one object.
func (a *ArchiveImpl) upload(ctx context.Context, path string, rows []any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("s3blob: encode archive row: %w", err)
		}
	}

	if err := a.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: upload archive %s: %w", path, err)
	}
	return nil
}

// archivePath buckets archives by the cutoff month.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
