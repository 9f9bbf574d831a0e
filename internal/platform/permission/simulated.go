package permission

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Simulated stands in for HealthKit or CommonHealth. Data comes from the
// local fixture, so the platform only tracks what has been requested.
type Simulated struct {
	name   string
	opts   Options
	logger zerolog.Logger

	mu        sync.Mutex
	requested map[string]struct{}
	requests  int
}

func newSimulated(name string, opts Options, logger zerolog.Logger) *Simulated {
	return &Simulated{
		name:      name,
		opts:      opts,
		logger:    logger.With().Str("platform", name).Logger(),
		requested: make(map[string]struct{}),
	}
}

func (s *Simulated) Platform() string { return s.name }

func (s *Simulated) CheckGranted(ctx context.Context) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, &Error{Platform: s.name, Op: "check", Err: err}
	}
	return !s.opts.Deny, nil
}

func (s *Simulated) RequestGrant(ctx context.Context, dataTypes []string) (bool, error) {
	s.logger.Info().Strs("data_types", dataTypes).Msg("requesting health data permissions")
	if err := s.wait(ctx); err != nil {
		return false, &Error{Platform: s.name, Op: "request", Err: err}
	}

	s.mu.Lock()
	s.requests++
	for _, d := range dataTypes {
		s.requested[d] = struct{}{}
	}
	s.mu.Unlock()

	return !s.opts.Deny, nil
}

// Requests returns how many permission requests have been issued.
func (s *Simulated) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Requested returns every data type a request has been issued for, sorted.
func (s *Simulated) Requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.requested))
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.opts.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.opts.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
