package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeAPI is an in-memory double for the S3 API subset s3store.Store
// depends on, supporting the conditional-request semantics (IfNoneMatch,
// IfMatch) that CAS correctness relies on. It has no relation to a real S3
// implementation beyond matching the wire contract s3store.Store uses.
type fakeAPI struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	version int
}

type fakeObject struct {
	body []byte
	etag string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: make(map[string]fakeObject)}
}

func notFoundErr() error {
	return &smithy.GenericAPIError{Code: "NoSuchKey", Message: "the specified key does not exist"}
}

func preconditionFailedErr() error {
	return &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "at least one of the pre-conditions you specified did not hold"}
}

func (f *fakeAPI) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[*params.Key]
	if !ok {
		return nil, notFoundErr()
	}
	etag := obj.etag
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(obj.body)),
		ETag: &etag,
	}, nil
}

func (f *fakeAPI) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[*params.Key]
	if !ok {
		return nil, notFoundErr()
	}
	etag := obj.etag
	return &s3.HeadObjectOutput{ETag: &etag}, nil
}

func (f *fakeAPI) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, exists := f.objects[*params.Key]

	if params.IfNoneMatch != nil && *params.IfNoneMatch == "*" && exists {
		return nil, preconditionFailedErr()
	}
	if params.IfMatch != nil {
		if !exists || existing.etag != *params.IfMatch {
			return nil, preconditionFailedErr()
		}
	}

	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, fmt.Errorf("fakeAPI: read body: %w", err)
	}

	f.version++
	etag := strconv.Itoa(f.version)
	f.objects[*params.Key] = fakeObject{body: body, etag: etag}
	return &s3.PutObjectOutput{ETag: &etag}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, exists := f.objects[*params.Key]
	if params.IfMatch != nil {
		if !exists || existing.etag != *params.IfMatch {
			return nil, preconditionFailedErr()
		}
	}
	delete(f.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

// ListObjectsV2 and DeleteObjects back Store.Reset's ResetAPI requirement.
// Pagination is exercised by callers that want it; this fake returns
// everything under the prefix in one page since it never holds enough
// keys in tests to need more.
func (f *fakeAPI) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := ""
	if params.Prefix != nil {
		prefix = *params.Prefix
	}
	var contents []s3types.Object
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			key := key
			contents = append(contents, s3types.Object{Key: &key})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func (f *fakeAPI) DeleteObjects(_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, obj := range params.Delete.Objects {
		delete(f.objects, *obj.Key)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

// minimalFakeAPI exposes only the four-method API surface, deliberately
// not promoting fakeAPI's ListObjectsV2/DeleteObjects, so Store.Reset sees
// an API value that does not implement ResetAPI.
type minimalFakeAPI struct {
	fakeAPI *fakeAPI
}

func (m *minimalFakeAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return m.fakeAPI.GetObject(ctx, params, optFns...)
}

func (m *minimalFakeAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.fakeAPI.PutObject(ctx, params, optFns...)
}

func (m *minimalFakeAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return m.fakeAPI.DeleteObject(ctx, params, optFns...)
}

func (m *minimalFakeAPI) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return m.fakeAPI.HeadObject(ctx, params, optFns...)
}
