package blobstore

import (
	"context"
	"io"
	"os"
)

// PutResult describes one persisted attachment file.
type PutResult struct {
	Key       string
	SizeBytes int64
}

// BlobStore is the byte storage behind attachment files.
type BlobStore interface {
	Put(ctx context.Context, fileName string, r io.Reader) (PutResult, error)
	Open(ctx context.Context, key string) (*os.File, error)
	Delete(ctx context.Context, key string) error
}
