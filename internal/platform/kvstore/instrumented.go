package kvstore

import (
	"context"
	"time"

	"github.com/healthshare/healthshare/internal/platform/metrics"
)

// Instrumented records the latency of every operation on the wrapped Store.
type Instrumented struct {
	next Store
	rec  metrics.Recorder
}

func NewInstrumented(next Store, rec metrics.Recorder) *Instrumented {
	return &Instrumented{next: next, rec: rec}
}

func (s *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	defer s.observe("get", time.Now())
	return s.next.Get(ctx, key)
}

func (s *Instrumented) Set(ctx context.Context, key string, value []byte) error {
	defer s.observe("set", time.Now())
	return s.next.Set(ctx, key, value)
}

func (s *Instrumented) Delete(ctx context.Context, key string) error {
	defer s.observe("delete", time.Now())
	return s.next.Delete(ctx, key)
}

func (s *Instrumented) observe(op string, start time.Time) {
	s.rec.ObserveStoreDuration(op, time.Since(start))
}
