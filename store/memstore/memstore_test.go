package memstore

import (
	"testing"

	"github.com/cohelm/brrr/store"
	"github.com/cohelm/brrr/store/storetest"
)

func TestMemstore_Contract(t *testing.T) {
	storetest.Exercise(t, func() store.Store {
		return New()
	})
}
