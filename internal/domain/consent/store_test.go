package consent

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/platform/kvstore"
)

// failingStore is a MemoryStore whose writes can be made to fail.
type failingStore struct {
	*kvstore.MemoryStore
	setErr    error
	deleteErr error
}

func newFailingStore() *failingStore {
	return &failingStore{MemoryStore: kvstore.NewMemoryStore()}
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *failingStore) Delete(ctx context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.Delete(ctx, key)
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStore_RoundTrip(t *testing.T) {
	s := NewStore(kvstore.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	records := []*Record{
		NewRecord([]observation.DataType{observation.Sleep, observation.Steps, observation.Weight}, testNow),
		NewRecord([]observation.DataType{}, testNow),
		{
			SchemaVersion:           SchemaVersion,
			ConsentedDataTypes:      []observation.DataType{observation.BloodPressure},
			ConsentDate:             "2024-03-01T12:00:00.123Z",
			HasRequestedPermissions: true,
			RequestedDataTypes:      []observation.DataType{observation.BloodPressure, observation.Steps},
		},
	}
	for _, want := range records {
		if err := s.Save(ctx, want); err != nil {
			t.Fatalf("save: %v", err)
		}
		got := s.Load(ctx)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
		}
	}
}

func TestStore_SaveReplacesWholesale(t *testing.T) {
	s := NewStore(kvstore.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	first := NewRecord([]observation.DataType{observation.Steps}, testNow)
	first.HasRequestedPermissions = true
	first.RequestedDataTypes = []observation.DataType{observation.Steps}
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := NewRecord([]observation.DataType{observation.Weight}, testNow.Add(time.Hour))
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := s.Load(ctx)
	if !reflect.DeepEqual(got, second) {
		t.Errorf("expected second record only, got %+v", got)
	}
}

func TestStore_LoadWithoutSave(t *testing.T) {
	s := NewStore(kvstore.NewMemoryStore(), zerolog.Nop())
	if r := s.Load(context.Background()); r != nil {
		t.Errorf("expected nil, got %+v", r)
	}
}

func TestStore_ClearIdempotent(t *testing.T) {
	s := NewStore(kvstore.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear on empty store: %v", err)
	}
	if err := s.Save(ctx, NewRecord([]observation.DataType{observation.Steps}, testNow)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("first clear: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if r := s.Load(ctx); r != nil {
		t.Errorf("expected nil after clear, got %+v", r)
	}
}

func TestStore_MalformedLoadsNil(t *testing.T) {
	cases := map[string]string{
		"garbage":            `{not json`,
		"wrong type":         `{"consentedDataTypes":"steps","consentDate":"2024-03-01T12:00:00Z"}`,
		"missing date":       `{"schemaVersion":1,"consentedDataTypes":["steps"],"hasRequestedPermissions":true}`,
		"bad date":           `{"schemaVersion":1,"consentedDataTypes":["steps"],"consentDate":"yesterday"}`,
		"missing types":      `{"schemaVersion":1,"consentDate":"2024-03-01T12:00:00Z"}`,
		"duplicate types":    `{"schemaVersion":1,"consentedDataTypes":["steps","steps"],"consentDate":"2024-03-01T12:00:00Z"}`,
		"future schema":      `{"schemaVersion":2,"consentedDataTypes":["steps"],"consentDate":"2024-03-01T12:00:00Z"}`,
		"empty blob":         ``,
		"json null document": `null`,
	}
	ctx := context.Background()
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			kv := kvstore.NewMemoryStore()
			if err := kv.Set(ctx, kvstore.KeyConsent, []byte(blob)); err != nil {
				t.Fatalf("set: %v", err)
			}
			if r := NewStore(kv, zerolog.Nop()).Load(ctx); r != nil {
				t.Errorf("expected nil for %s, got %+v", name, r)
			}
		})
	}
}

func TestStore_LegacyBlobWithoutSchemaVersion(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	ctx := context.Background()
	blob := `{"consentedDataTypes":["steps","sleep"],"consentDate":"2024-03-01T12:00:00.000Z","hasRequestedPermissions":true}`
	if err := kv.Set(ctx, kvstore.KeyConsent, []byte(blob)); err != nil {
		t.Fatalf("set: %v", err)
	}

	r := NewStore(kv, zerolog.Nop()).Load(ctx)
	if r == nil {
		t.Fatal("expected legacy record to load")
	}
	if r.SchemaVersion != SchemaVersion {
		t.Errorf("expected schema version %d, got %d", SchemaVersion, r.SchemaVersion)
	}
	want := []observation.DataType{observation.Steps, observation.Sleep}
	if !reflect.DeepEqual(r.ConsentedDataTypes, want) {
		t.Errorf("expected %v, got %v", want, r.ConsentedDataTypes)
	}
	if _, ok := r.requested()[observation.Sleep]; !ok {
		t.Error("legacy record with requested flag should count consented types as requested")
	}
}

func TestStore_WriteFailureIsStorageError(t *testing.T) {
	kv := newFailingStore()
	kv.setErr = errors.New("quota exceeded")
	kv.deleteErr = errors.New("disk fault")
	s := NewStore(kv, zerolog.Nop())
	ctx := context.Background()

	err := s.Save(ctx, NewRecord([]observation.DataType{observation.Steps}, testNow))
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *StorageError, got %v", err)
	}
	if serr.Op != "write" || serr.Key != kvstore.KeyConsent {
		t.Errorf("unexpected storage error %+v", serr)
	}
	if !errors.Is(err, kv.setErr) {
		t.Error("expected wrapped backend error")
	}
	if r := s.Load(ctx); r != nil {
		t.Errorf("failed save must not be observable, got %+v", r)
	}

	if err := s.Clear(ctx); !errors.As(err, &serr) {
		t.Errorf("expected *StorageError from clear, got %v", err)
	}
}

func TestStore_SaveNilTypesLoadsEmpty(t *testing.T) {
	s := NewStore(kvstore.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	if err := s.Save(ctx, &Record{ConsentDate: "2024-03-01T12:00:00Z"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	r := s.Load(ctx)
	if r == nil {
		t.Fatal("expected a record after saving empty consent")
	}
	if r.ConsentedDataTypes == nil || len(r.ConsentedDataTypes) != 0 {
		t.Errorf("expected empty consented types, got %#v", r.ConsentedDataTypes)
	}
}

func TestStore_SaveRejectsUnloadableRecords(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		record *Record
	}{
		{"nil record", nil},
		{"duplicate types", &Record{
			ConsentedDataTypes: []observation.DataType{observation.Steps, observation.Steps},
			ConsentDate:        "2024-03-01T12:00:00Z",
		}},
		{"date only", &Record{
			ConsentedDataTypes: []observation.DataType{observation.Steps},
			ConsentDate:        "2024-03-01",
		}},
		{"missing date", &Record{ConsentedDataTypes: []observation.DataType{observation.Steps}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(kvstore.NewMemoryStore(), zerolog.Nop())
			prior := NewRecord([]observation.DataType{observation.Weight}, testNow)
			if err := s.Save(ctx, prior); err != nil {
				t.Fatalf("save prior: %v", err)
			}

			var serr *SelectionError
			if err := s.Save(ctx, tt.record); !errors.As(err, &serr) {
				t.Fatalf("expected *SelectionError, got %v", err)
			}
			if got := s.Load(ctx); !reflect.DeepEqual(got, prior) {
				t.Errorf("rejected save must leave the prior record, got %+v", got)
			}
		})
	}
}
