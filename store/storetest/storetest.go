// Package storetest holds a backend-agnostic exercise of the store.Store
// contract, run against every concrete backend (memstore, s3store) from
// their own package tests. Grounded on original_source/tests/test_queue.py's
// QueueContract pattern, applied to the store side of the same design.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/cohelm/brrr/store"
)

// Exercise runs the full Store contract against a freshly constructed,
// empty backend. newStore is invoked once per sub-test so backends that
// cannot easily be reset between calls still get isolation.
func Exercise(t *testing.T, newStore func() store.Store) {
	t.Helper()

	t.Run("get_missing_is_not_found", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		_, err := s.Get(ctx, store.Key{Namespace: "value", ID: "missing"})
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
		}
	})

	t.Run("has_reports_presence", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		key := store.Key{Namespace: "value", ID: "k1"}

		ok, err := s.Has(ctx, key)
		if err != nil {
			t.Fatalf("Has: %v", err)
		}
		if ok {
			t.Fatalf("Has(absent) = true, want false")
		}

		if err := s.Set(ctx, key, []byte("hello")); err != nil {
			t.Fatalf("Set: %v", err)
		}

		ok, err = s.Has(ctx, key)
		if err != nil {
			t.Fatalf("Has: %v", err)
		}
		if !ok {
			t.Fatalf("Has(present) = false, want true")
		}
	})

	t.Run("set_then_get_round_trips", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		key := store.Key{Namespace: "value", ID: "k2"}

		if err := s.Set(ctx, key, []byte("payload")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := s.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != "payload" {
			t.Fatalf("Get = %q, want %q", got, "payload")
		}
	})

	t.Run("delete_then_get_is_not_found", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		key := store.Key{Namespace: "value", ID: "k3"}

		if err := s.Set(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Get(after delete) = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete_absent_is_idempotent", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		key := store.Key{Namespace: "value", ID: "never-existed"}
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("Delete(absent) = %v, want nil", err)
		}
	})

	t.Run("set_new_value_rejects_existing", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		key := store.Key{Namespace: "value", ID: "k4"}

		if err := s.SetNewValue(ctx, key, []byte("first")); err != nil {
			t.Fatalf("SetNewValue(first): %v", err)
		}
		err := s.SetNewValue(ctx, key, []byte("second"))
		if !errors.Is(err, store.ErrCompareMismatch) {
			t.Fatalf("SetNewValue(second) = %v, want ErrCompareMismatch", err)
		}
		got, _ := s.Get(ctx, key)
		if string(got) != "first" {
			t.Fatalf("Get after rejected SetNewValue = %q, want %q (unchanged)", got, "first")
		}
	})

	t.Run("compare_and_set_nil_expected_means_absent", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		key := store.Key{Namespace: "value", ID: "k5"}

		if err := s.CompareAndSet(ctx, key, []byte("v1"), nil); err != nil {
			t.Fatalf("CompareAndSet(nil expected, absent): %v", err)
		}
		err := s.CompareAndSet(ctx, key, []byte("v2"), nil)
		if !errors.Is(err, store.ErrCompareMismatch) {
			t.Fatalf("CompareAndSet(nil expected, present) = %v, want ErrCompareMismatch", err)
		}
	})

	t.Run("compare_and_set_matches_and_mismatches", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		key := store.Key{Namespace: "value", ID: "k6"}

		if err := s.Set(ctx, key, []byte("v1")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := s.CompareAndSet(ctx, key, []byte("v2"), []byte("v1")); err != nil {
			t.Fatalf("CompareAndSet(matching): %v", err)
		}
		got, _ := s.Get(ctx, key)
		if string(got) != "v2" {
			t.Fatalf("Get after CompareAndSet = %q, want %q", got, "v2")
		}

		err := s.CompareAndSet(ctx, key, []byte("v3"), []byte("stale"))
		if !errors.Is(err, store.ErrCompareMismatch) {
			t.Fatalf("CompareAndSet(stale expected) = %v, want ErrCompareMismatch", err)
		}
	})

	t.Run("compare_and_delete_matches_and_mismatches", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		key := store.Key{Namespace: "value", ID: "k7"}

		if err := s.Set(ctx, key, []byte("v1")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		err := s.CompareAndDelete(ctx, key, []byte("stale"))
		if !errors.Is(err, store.ErrCompareMismatch) {
			t.Fatalf("CompareAndDelete(stale) = %v, want ErrCompareMismatch", err)
		}
		if err := s.CompareAndDelete(ctx, key, []byte("v1")); err != nil {
			t.Fatalf("CompareAndDelete(matching): %v", err)
		}
		if _, err := s.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Get(after CompareAndDelete) = %v, want ErrNotFound", err)
		}
	})
}
