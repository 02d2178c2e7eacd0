// Package s3store implements store.Store on top of S3 conditional requests,
// the cloud-hosted backend for deployments that want a managed KV table
// without running their own database. Grounded on quarry/lode/client_s3.go's
// use of aws-sdk-go-v2/service/s3, repurposed here for compare-and-swap
// semantics rather than append-only dataset writes.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/cohelm/brrr/store"
)

// API is the subset of the S3 client this package depends on, so tests can
// supply a fake without spinning up real AWS infrastructure.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// ResetAPI is the additional S3 client surface Reset needs. It is kept
// separate from API so a minimal fake built only for CAS-correctness
// testing (Get/Put/Delete/Head) is never forced to implement bulk listing
// it doesn't exercise.
type ResetAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Config holds the bucket/prefix/region/endpoint knobs used across the
// examples pack's S3-backed storage layers.
type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible providers (MinIO, R2, etc.) used in local testing.
	UsePathStyle bool
}

func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3store: bucket is required")
	}
	return nil
}

// Store is a store.Store backed by S3 object conditional requests.
type Store struct {
	api    API
	bucket string
	prefix string
}

// New builds a Store from cfg, loading AWS credentials from the default
// chain (env vars, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewWithAPI(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// NewWithAPI builds a Store around an already-constructed API, for tests
// that supply a fake/double.
func NewWithAPI(api API, cfg Config) *Store {
	return &Store{api: api, bucket: cfg.Bucket, prefix: cfg.Prefix}
}

func (s *Store) objectKey(key store.Key) string {
	if s.prefix == "" {
		return key.String()
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + key.String()
}

func (s *Store) Has(ctx context.Context, key store.Key) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, store.NewOpError("has", key, err)
	}
	return true, nil
}

func (s *Store) Get(ctx context.Context, key store.Key) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, store.NewOpError("get", key, store.ErrNotFound)
		}
		return nil, store.NewOpError("get", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, store.NewOpError("get", key, err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, key store.Key, value []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return store.NewOpError("set", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key store.Key) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return store.NewOpError("delete", key, err)
	}
	return nil
}

// SetNewValue issues a PutObject with IfNoneMatch: "*", which S3 honors by
// rejecting the write with a 412 PreconditionFailed if any object already
// sits at that key. That failure is translated to ErrCompareMismatch.
func (s *Store) SetNewValue(ctx context.Context, key store.Key, value []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(value),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return store.NewOpError("set_new_value", key, store.ErrCompareMismatch)
		}
		return store.NewOpError("set_new_value", key, err)
	}
	return nil
}

// CompareAndSet resolves the object's current ETag (or absence, when
// expected is nil) and re-verifies it with IfMatch on the write itself, so
// the compare and the write are atomic from S3's perspective rather than
// racing across two round trips.
func (s *Store) CompareAndSet(ctx context.Context, key store.Key, newValue, expected []byte) error {
	etag, exists, err := s.currentETag(ctx, key)
	if err != nil {
		return store.NewOpError("compare_and_set", key, err)
	}

	if expected == nil {
		if exists {
			return store.NewOpError("compare_and_set", key, store.ErrCompareMismatch)
		}
		return s.SetNewValue(ctx, key, newValue)
	}
	if !exists {
		return store.NewOpError("compare_and_set", key, store.ErrCompareMismatch)
	}

	current, err := s.Get(ctx, key)
	if err != nil {
		return store.NewOpError("compare_and_set", key, err)
	}
	if !bytes.Equal(current, expected) {
		return store.NewOpError("compare_and_set", key, store.ErrCompareMismatch)
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(s.objectKey(key)),
		Body:    bytes.NewReader(newValue),
		IfMatch: aws.String(etag),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return store.NewOpError("compare_and_set", key, store.ErrCompareMismatch)
		}
		return store.NewOpError("compare_and_set", key, err)
	}
	return nil
}

// CompareAndDelete deletes the object with a DeleteObject carrying IfMatch
// against the current value, translating an ETag mismatch to
// ErrCompareMismatch.
func (s *Store) CompareAndDelete(ctx context.Context, key store.Key, expected []byte) error {
	etag, exists, err := s.currentETag(ctx, key)
	if err != nil {
		return store.NewOpError("compare_and_delete", key, err)
	}
	if !exists {
		return store.NewOpError("compare_and_delete", key, store.ErrCompareMismatch)
	}

	current, err := s.Get(ctx, key)
	if err != nil {
		return store.NewOpError("compare_and_delete", key, err)
	}
	if !bytes.Equal(current, expected) {
		return store.NewOpError("compare_and_delete", key, store.ErrCompareMismatch)
	}

	_, err = s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(s.objectKey(key)),
		IfMatch: aws.String(etag),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return store.NewOpError("compare_and_delete", key, store.ErrCompareMismatch)
		}
		return store.NewOpError("compare_and_delete", key, err)
	}
	return nil
}

func (s *Store) currentETag(ctx context.Context, key store.Key) (etag string, exists bool, err error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if out.ETag == nil {
		return "", true, nil
	}
	return *out.ETag, true, nil
}

// ErrResetUnsupported is returned by Reset when the Store's API does not
// implement ResetAPI (e.g. a fake built only for CAS contract testing).
var ErrResetUnsupported = errors.New("s3store: reset requires ListObjectsV2/DeleteObjects support")

// Reset deletes every object under the store's configured prefix,
// paginating ListObjectsV2 and batch-deleting up to 1000 keys per
// DeleteObjects call. Used by the reset CLI command to clear an S3-backed
// deployment between runs; the runtime itself never calls Reset.
func (s *Store) Reset(ctx context.Context) error {
	api, ok := s.api.(ResetAPI)
	if !ok {
		return ErrResetUnsupported
	}

	prefix := s.prefix
	if prefix != "" {
		prefix = strings.TrimSuffix(prefix, "/") + "/"
	}

	var continuationToken *string
	for {
		page, err := api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return fmt.Errorf("s3store: reset: list objects: %w", err)
		}

		if len(page.Contents) > 0 {
			ids := make([]types.ObjectIdentifier, len(page.Contents))
			for i, obj := range page.Contents {
				ids[i] = types.ObjectIdentifier{Key: obj.Key}
			}
			if _, err := api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: ids},
			}); err != nil {
				return fmt.Errorf("s3store: reset: delete objects: %w", err)
			}
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			return nil
		}
		continuationToken = page.NextContinuationToken
	}
}

func isNotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NotFound
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "412":
			return true
		}
	}
	return false
}

var _ store.Store = (*Store)(nil)
