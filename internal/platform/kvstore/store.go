// Package kvstore is the blob key-value collaborator behind consent,
// history and fixture persistence. Backends store opaque bytes; wrappers add
// compression, encryption at rest and instrumentation.
package kvstore

import (
	"context"
	"errors"
)

// Well-known keys.
const (
	KeyConsent        = "health_data_consent"
	KeySharingHistory = "health_data_sharing_history"
	KeyMockHealthData = "mock_health_data"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is an atomic single-key blob store. Every call blocks until the
// backend completes or ctx is done. Delete of a missing key succeeds.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
