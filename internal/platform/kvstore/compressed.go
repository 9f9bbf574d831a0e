package kvstore

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compressed stores zstd-compressed values in the wrapped Store.
type Compressed struct {
	next    Store
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewCompressed(next Store) (*Compressed, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Compressed{next: next, encoder: encoder, decoder: decoder}, nil
}

func (c *Compressed) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	out, err := c.decoder.DecodeAll(v, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", key, err)
	}
	return out, nil
}

func (c *Compressed) Set(ctx context.Context, key string, value []byte) error {
	return c.next.Set(ctx, key, c.encoder.EncodeAll(value, make([]byte, 0, len(value)/2)))
}

func (c *Compressed) Delete(ctx context.Context, key string) error {
	return c.next.Delete(ctx, key)
}

// Close stops the codec goroutines. The wrapped Store is not closed.
func (c *Compressed) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}
