// Package network implements backend.Store over an S3-compatible object
// store, for the "network" backend type: the Config/New/NewFromConfig
// shape, and PutObject/GetObject/DeleteObject usage. Unlike the local
// stores, this one can never hand back a real file descriptor, so
// SupportsFDPass is always false and the session layer downgrades
// FdPass/Splice delivery to Copy for network-backed entries.
package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/objmapper/objmapper/pkg/objmap/backend"
)

// Config configures one S3-compatible network backend instance.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	KeyPrefix      string
	ForcePathStyle bool
}

// Store is an S3-backed implementation of backend.Store.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// New builds a Store from an existing S3 client, for tests and for
// callers that already manage client lifecycle/credentials themselves.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}
}

// NewFromConfig builds a Store, constructing its own S3 client from the
// default AWS credential chain plus the overrides in cfg.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("network: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

func (s *Store) key(relPath string) string {
	return s.keyPrefix + relPath
}

func (s *Store) SupportsFDPass() bool { return false }

// Create uploads relPath with an empty body; backend manager callers
// follow up with WriteAt (or, for migration, a direct streaming upload)
// to populate content, mirroring create_object's "open with
// create+truncate" against a store with no truncate primitive of its own.
func (s *Store) Create(ctx context.Context, relPath string) (backend.Handle, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(relPath)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return backend.Handle{}, fmt.Errorf("network: create: %w", err)
	}
	return backend.Handle{Reader: io.NopCloser(bytes.NewReader(nil))}, nil
}

// Open streams an object's body. The returned handle never carries a
// file descriptor.
func (s *Store) Open(ctx context.Context, relPath string) (backend.Handle, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(relPath)),
	})
	if err != nil {
		if isNotFound(err) {
			return backend.Handle{}, backend.ErrObjectNotFound
		}
		return backend.Handle{}, fmt.Errorf("network: get object: %w", err)
	}
	size := int64(0)
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	return backend.Handle{Reader: resp.Body, Size: size}, nil
}

// Delete removes an object, reporting ErrObjectNotFound for a missing key
// so delete_object can implement DELETE idempotence.
func (s *Store) Delete(ctx context.Context, relPath string) error {
	key := s.key(relPath)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		if isNotFound(err) {
			return backend.ErrObjectNotFound
		}
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return fmt.Errorf("network: delete object: %w", err)
	}
	return nil
}

// WriteAt uploads the full object in one PutObject call; S3 has no
// partial-write primitive, so offset must be 0 for a first write, and
// any subsequent WriteAt on an existing key simply replaces it whole
// (acceptable for this backend type since it is always the slow tier).
func (s *Store) WriteAt(ctx context.Context, relPath string, data []byte, offset int64) (int64, error) {
	if offset != 0 {
		return 0, fmt.Errorf("network: partial writes are not supported, got offset %d", offset)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(relPath)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return 0, fmt.Errorf("network: put object: %w", err)
	}
	return int64(len(data)), nil
}

// Scan lists every object under keyPrefix, for populating indexes
// against a network backend that has no local directory to walk —
// generalized from local scanning to prefix-listing a bucket.
func (s *Store) Scan(ctx context.Context) ([]backend.ScanEntry, error) {
	var entries []backend.ScanEntry
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("network: list objects: %w", err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix)
			entry := backend.ScanEntry{RelPath: rel, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				entry.Mtime = *obj.LastModified
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// UploadStream streams src directly into the destination key, used by
// migrate_object when the destination backend is network: there is no
// local file to sendfile from the source side, so the manager reads the
// source handle and streams it through here instead of doing a local
// splice copy.
func (s *Store) UploadStream(ctx context.Context, relPath string, src io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(relPath)),
		Body:          src,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("network: upload stream: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "404")
}

var _ backend.Store = (*Store)(nil)
