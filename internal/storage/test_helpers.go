package storage

import (
	"context"
	"testing"
	"time"
)

// storeTestTimeout bounds every repository test against a hung backing store
const storeTestTimeout = 10 * time.Second

// testContext returns a deadline-bound context that is cancelled when the
// test finishes
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), storeTestTimeout)
	t.Cleanup(cancel)
	return ctx
}
