package sharing

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/domain/consent"
	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/platform/kvstore"
)

type failingStore struct {
	*kvstore.MemoryStore
	setErr error
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func item(id string) HistoryItem {
	return HistoryItem{
		ID:        id,
		Date:      "2024-03-01T12:00:00Z",
		DataTypes: []observation.DataType{observation.Steps},
		Recipient: "dr-smith",
		Status:    StatusPending,
	}
}

func TestHistoryStore_AppendNewestFirst(t *testing.T) {
	s := NewHistoryStore(kvstore.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Append(ctx, item(id)); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	items := s.List(ctx)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []string{"c", "b", "a"} {
		if items[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, items[i].ID)
		}
	}
}

func TestHistoryStore_ListEmptyAndCorrupt(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := NewHistoryStore(kv, zerolog.Nop())
	ctx := context.Background()

	if items := s.List(ctx); items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", items)
	}
	for _, blob := range []string{`{oops`, `{"schemaVersion":9,"items":[]}`, `"text"`} {
		if err := kv.Set(ctx, kvstore.KeySharingHistory, []byte(blob)); err != nil {
			t.Fatalf("set: %v", err)
		}
		if items := s.List(ctx); len(items) != 0 {
			t.Errorf("blob %s: expected empty list, got %v", blob, items)
		}
	}
}

func TestHistoryStore_LegacyBareArray(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	ctx := context.Background()
	blob := `[{"id":"1","date":"2024-03-01T12:00:00Z","dataTypes":["steps","sleep"],"recipient":"dr-smith","status":"completed"}]`
	if err := kv.Set(ctx, kvstore.KeySharingHistory, []byte(blob)); err != nil {
		t.Fatalf("set: %v", err)
	}
	items := NewHistoryStore(kv, zerolog.Nop()).List(ctx)
	if len(items) != 1 || items[0].Status != StatusCompleted || len(items[0].DataTypes) != 2 {
		t.Errorf("unexpected legacy items %+v", items)
	}
}

func TestHistoryStore_UpdateStatusTransitions(t *testing.T) {
	s := NewHistoryStore(kvstore.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()
	if err := s.Append(ctx, item("x")); err != nil {
		t.Fatalf("append: %v", err)
	}

	var terr *TransitionError
	if err := s.UpdateStatus(ctx, "x", StatusPending, ""); !errors.As(err, &terr) {
		t.Errorf("pending to pending should fail, got %v", err)
	}
	if err := s.UpdateStatus(ctx, "x", StatusCompleted, "share_1"); err != nil {
		t.Fatalf("pending to completed: %v", err)
	}
	got := s.List(ctx)[0]
	if got.Status != StatusCompleted || got.DeliveryID != "share_1" {
		t.Errorf("unexpected item %+v", got)
	}
	if err := s.UpdateStatus(ctx, "x", StatusFailed, ""); !errors.As(err, &terr) {
		t.Errorf("terminal status must not change, got %v", err)
	}
	if err := s.UpdateStatus(ctx, "missing", StatusFailed, ""); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestHistoryStore_ClearIdempotent(t *testing.T) {
	s := NewHistoryStore(kvstore.NewMemoryStore(), zerolog.Nop())
	ctx := context.Background()
	if err := s.Append(ctx, item("x")); err != nil {
		t.Fatalf("append: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("clear %d: %v", i, err)
		}
	}
	if len(s.List(ctx)) != 0 {
		t.Error("expected empty history after clear")
	}
}

func TestHistoryStore_WriteFailureIsStorageError(t *testing.T) {
	kv := &failingStore{MemoryStore: kvstore.NewMemoryStore(), setErr: errors.New("quota")}
	s := NewHistoryStore(kv, zerolog.Nop())

	err := s.Append(context.Background(), item("x"))
	var serr *consent.StorageError
	if !errors.As(err, &serr) || serr.Key != kvstore.KeySharingHistory {
		t.Errorf("expected history StorageError, got %v", err)
	}
}
