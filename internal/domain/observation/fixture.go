package observation

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/platform/kvstore"
)

// DefaultFixture returns the built-in sample readings, timestamped relative
// to now.
func DefaultFixture(now time.Time) map[DataType]Observation {
	ts := func(d time.Duration) string {
		return now.Add(-d).UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	f := func(v float64) *float64 { return &v }

	return map[DataType]Observation{
		Steps:         {Value: f(8743), Unit: "steps", Timestamp: ts(0)},
		HeartRate:     {Value: f(72), Unit: "bpm", Timestamp: ts(0)},
		Sleep:         {Hours: f(7), Minutes: f(25), Quality: "good", Unit: "hours", Timestamp: ts(24 * time.Hour)},
		BloodPressure: {Systolic: f(124), Diastolic: f(79), Unit: "mmHg", Timestamp: ts(48 * time.Hour)},
		Weight:        {Value: f(72.5), Unit: "kg", Timestamp: ts(24 * time.Hour)},
		BloodGlucose:  {Value: f(98), Unit: "mg/dL", Timestamp: ts(0)},
	}
}

// FixtureSource serves locally held readings from the key-value store,
// falling back to DefaultFixture when nothing readable is stored.
type FixtureSource struct {
	kv     kvstore.Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewFixtureSource(kv kvstore.Store, logger zerolog.Logger) *FixtureSource {
	return &FixtureSource{kv: kv, logger: logger, now: time.Now}
}

// Seed writes the default fixture to the store.
func (s *FixtureSource) Seed(ctx context.Context) error {
	data, err := json.Marshal(DefaultFixture(s.now()))
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, kvstore.KeyMockHealthData, data)
}

// All returns every stored reading. Read or decode failures are logged and
// the defaults are returned instead.
func (s *FixtureSource) All(ctx context.Context) map[DataType]Observation {
	data, err := s.kv.Get(ctx, kvstore.KeyMockHealthData)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("reading stored health data, using defaults")
		}
		return DefaultFixture(s.now())
	}

	var out map[DataType]Observation
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn().Err(err).Msg("decoding stored health data, using defaults")
		return DefaultFixture(s.now())
	}
	return out
}

// ForTypes returns the readings for the requested tags that have data.
func (s *FixtureSource) ForTypes(ctx context.Context, types []DataType) map[DataType]Observation {
	all := s.All(ctx)
	out := make(map[DataType]Observation, len(types))
	for _, t := range types {
		if obs, ok := all[t]; ok {
			out[t] = obs
		}
	}
	return out
}
