package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver moves aged records out of the primary store into blob storage.
// Deletion from the primary store is a separate explicit step, performed
// only after the archive upload has succeeded.
type Archiver interface {
	ArchiveSubmissions(ctx context.Context, before time.Time) (int64, error)
	ArchiveIntents(ctx context.Context, before time.Time) (int64, error)
}
