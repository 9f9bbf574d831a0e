package sharing

import (
	"context"
	"errors"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/domain/consent"
	"github.com/healthshare/healthshare/internal/platform/kvstore"
)

const historySchemaVersion = 1

type historyEnvelope struct {
	SchemaVersion int           `json:"schemaVersion"`
	Items         []HistoryItem `json:"items"`
}

// HistoryStore keeps the sharing log under kvstore.KeySharingHistory,
// newest first. Items are never deleted individually.
type HistoryStore struct {
	kv     kvstore.Store
	logger zerolog.Logger

	// mu guards the read-modify-write cycles of Append and UpdateStatus.
	mu sync.Mutex
}

func NewHistoryStore(kv kvstore.Store, logger zerolog.Logger) *HistoryStore {
	return &HistoryStore{kv: kv, logger: logger.With().Str("component", "history_store").Logger()}
}

// List returns the log, newest first. Read and decode failures are logged
// and yield an empty log.
func (s *HistoryStore) List(ctx context.Context) []HistoryItem {
	data, err := s.kv.Get(ctx, kvstore.KeySharingHistory)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("reading sharing history, treating as empty")
		}
		return []HistoryItem{}
	}
	items, err := decodeHistory(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("malformed sharing history, treating as empty")
		return []HistoryItem{}
	}
	return items
}

// Append inserts item at the head of the log.
func (s *HistoryStore) Append(ctx context.Context, item HistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := append([]HistoryItem{item}, s.List(ctx)...)
	return s.write(ctx, items)
}

// UpdateStatus moves a pending item to a terminal status and records the
// recipient's delivery id.
func (s *HistoryStore) UpdateStatus(ctx context.Context, id string, status Status, deliveryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.List(ctx)
	for i := range items {
		if items[i].ID != id {
			continue
		}
		if items[i].Status != StatusPending || !status.Terminal() {
			return &TransitionError{ID: id, From: items[i].Status, To: status}
		}
		items[i].Status = status
		items[i].DeliveryID = deliveryID
		return s.write(ctx, items)
	}
	return ErrItemNotFound
}

// Clear removes the whole log.
func (s *HistoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, kvstore.KeySharingHistory); err != nil {
		return &consent.StorageError{Op: "delete", Key: kvstore.KeySharingHistory, Err: err}
	}
	return nil
}

func (s *HistoryStore) write(ctx context.Context, items []HistoryItem) error {
	data, err := json.Marshal(historyEnvelope{SchemaVersion: historySchemaVersion, Items: items})
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, kvstore.KeySharingHistory, data); err != nil {
		return &consent.StorageError{Op: "write", Key: kvstore.KeySharingHistory, Err: err}
	}
	return nil
}

// decodeHistory accepts the versioned envelope and the bare array written
// before versioning.
func decodeHistory(data []byte) ([]HistoryItem, error) {
	var items []HistoryItem
	if err := json.Unmarshal(data, &items); err == nil {
		if items == nil {
			items = []HistoryItem{}
		}
		return items, nil
	}

	var env historyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.SchemaVersion != historySchemaVersion {
		return nil, errors.New("unsupported history schema version")
	}
	if env.Items == nil {
		env.Items = []HistoryItem{}
	}
	return env.Items, nil
}
