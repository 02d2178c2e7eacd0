package s3store

import (
	"context"
	"errors"
	"testing"

	"github.com/cohelm/brrr/store"
	"github.com/cohelm/brrr/store/storetest"
)

func TestS3Store_Contract(t *testing.T) {
	storetest.Exercise(t, func() store.Store {
		return NewWithAPI(newFakeAPI(), Config{Bucket: "brrr-test", Prefix: "brrr"})
	})
}

func TestS3Store_ResetDeletesAllObjectsUnderPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewWithAPI(newFakeAPI(), Config{Bucket: "brrr-test", Prefix: "brrr"})

	for _, id := range []string{"key-1", "key-2", "key-3"} {
		key := store.Key{Namespace: "value", ID: id}
		if err := s.Set(ctx, key, []byte("v")); err != nil {
			t.Fatalf("Set(%s) failed: %v", id, err)
		}
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	for _, id := range []string{"key-1", "key-2", "key-3"} {
		has, err := s.Has(ctx, store.Key{Namespace: "value", ID: id})
		if err != nil {
			t.Fatalf("Has(%s) failed: %v", id, err)
		}
		if has {
			t.Errorf("key %s still present after Reset", id)
		}
	}
}

func TestS3Store_ResetUnsupportedAPIReturnsErrResetUnsupported(t *testing.T) {
	s := NewWithAPI(&minimalFakeAPI{fakeAPI: newFakeAPI()}, Config{Bucket: "brrr-test"})

	err := s.Reset(context.Background())
	if !errors.Is(err, ErrResetUnsupported) {
		t.Fatalf("expected ErrResetUnsupported, got: %v", err)
	}
}

func TestS3Store_ObjectKeyUsesPrefix(t *testing.T) {
	s := NewWithAPI(newFakeAPI(), Config{Bucket: "brrr-test", Prefix: "brrr/v1"})
	key := store.Key{Namespace: "value", ID: "abc"}
	got := s.objectKey(key)
	want := "brrr/v1/value/abc"
	if got != want {
		t.Fatalf("objectKey = %q, want %q", got, want)
	}
}
