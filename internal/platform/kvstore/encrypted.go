package kvstore

import (
	"context"

	"github.com/healthshare/healthshare/internal/platform/hipaa"
)

// Encrypted seals values with AES-256-GCM before they reach the wrapped
// Store. The storage key is bound to each ciphertext.
type Encrypted struct {
	next   Store
	sealer *hipaa.Sealer
}

func NewEncrypted(next Store, sealer *hipaa.Sealer) *Encrypted {
	return &Encrypted{next: next, sealer: sealer}
}

func (e *Encrypted) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := e.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.sealer.Open(key, v)
}

func (e *Encrypted) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := e.sealer.Seal(key, value)
	if err != nil {
		return err
	}
	return e.next.Set(ctx, key, sealed)
}

func (e *Encrypted) Delete(ctx context.Context, key string) error {
	return e.next.Delete(ctx, key)
}
