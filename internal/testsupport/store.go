package testsupport

import (
	"testing"

	"capsync/internal/config"
	"capsync/internal/store"
)

// MustOpenStore opens the session store under the config's log directory and
// registers cleanup with the test.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}
