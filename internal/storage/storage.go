// Package storage keeps uploaded member photos in a local directory or an
// S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrInvalidKey   = errors.New("invalid blob key")
)

// BlobStore is the minimal object store used for images
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Move(ctx context.Context, from, to string) error
	Delete(ctx context.Context, key string) error
}

// Options selects and configures a BlobStore
type Options struct {
	Backend   string // "local" or "s3"
	LocalDir  string
	S3Bucket  string
	S3Prefix  string
	AWSRegion string
}

// New builds the BlobStore named by opts.Backend
func New(ctx context.Context, opts Options) (BlobStore, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "local":
		return NewLocalStore(opts.LocalDir)
	case "s3":
		return NewS3Store(ctx, opts.AWSRegion, opts.S3Bucket, opts.S3Prefix)
	default:
		return nil, fmt.Errorf("unsupported image storage backend: %s", opts.Backend)
	}
}

// cleanKey rejects keys that could escape the store root
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
