package unittest

import (
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/onflow/flow-go/crypto"
	"github.com/onflow/flow-go/crypto/hash"
	"github.com/stretchr/testify/require"
)

func signMessage(sk crypto.PrivateKey, message []byte) (crypto.Signature, error) {
	return sk.Sign(message, hash.NewSHA3_256())
}

// RequireReturnsBefore requires that the given function returns within the
// given duration.
func RequireReturnsBefore(t *testing.T, f func(), duration time.Duration, message string) {
	done := make(chan struct{})
	go func() {
		f()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(duration):
		require.Fail(t, "function did not return in time", message)
	}
}

// RequireCloseBefore requires that the given channel closes within the given
// duration.
func RequireCloseBefore(t *testing.T, c <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-c:
	case <-time.After(duration):
		require.Fail(t, "channel did not close in time", message)
	}
}

// RequireConcurrentCallsReturnBefore runs the function n times concurrently
// and requires all calls to return within the given duration.
func RequireConcurrentCallsReturnBefore(t *testing.T, f func(), n int, duration time.Duration, message string) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}
	RequireReturnsBefore(t, wg.Wait, duration, message)
}

// RunWithBadgerDB runs the test function against a temporary badger
// database, cleaned up with the test.
func RunWithBadgerDB(t *testing.T, f func(*badger.DB)) {
	dir := t.TempDir()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()
	f(db)
}
