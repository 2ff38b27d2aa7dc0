package memory

import (
	"testing"

	"github.com/mrosetti/forchetta/pkg/store"
	"github.com/mrosetti/forchetta/pkg/store/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
