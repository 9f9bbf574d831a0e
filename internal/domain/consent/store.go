package consent

import (
	"context"
	"errors"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/platform/kvstore"
)

// Store persists the single consent record under kvstore.KeyConsent.
type Store struct {
	kv     kvstore.Store
	logger zerolog.Logger
}

func NewStore(kv kvstore.Store, logger zerolog.Logger) *Store {
	return &Store{kv: kv, logger: logger.With().Str("component", "consent_store").Logger()}
}

// Save replaces any prior record with r in one key write. A record that Load
// would reject is refused with a *SelectionError and nothing is written.
func (s *Store) Save(ctx context.Context, r *Record) error {
	if r == nil {
		return &SelectionError{Reason: "no record to save"}
	}
	stored := *r
	stored.SchemaVersion = SchemaVersion
	if stored.ConsentedDataTypes == nil {
		stored.ConsentedDataTypes = []observation.DataType{}
	}
	if err := stored.check(); err != nil {
		return &SelectionError{Reason: err.Error()}
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, kvstore.KeyConsent, data); err != nil {
		return &StorageError{Op: "write", Key: kvstore.KeyConsent, Err: err}
	}
	return nil
}

// Load returns the stored record, or nil when none was saved. Read failures
// and unreadable blobs are logged and reported as nil.
func (s *Store) Load(ctx context.Context) *Record {
	data, err := s.kv.Get(ctx, kvstore.KeyConsent)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("reading consent record, treating as none")
		}
		return nil
	}
	r, err := decodeRecord(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("malformed consent record, treating as none")
		return nil
	}
	return r
}

// Clear deletes the record. Clearing when nothing is stored succeeds.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, kvstore.KeyConsent); err != nil {
		return &StorageError{Op: "delete", Key: kvstore.KeyConsent, Err: err}
	}
	return nil
}

// wireRecord accepts blobs written before schemaVersion was introduced.
type wireRecord struct {
	SchemaVersion           *int                   `json:"schemaVersion"`
	ConsentedDataTypes      []observation.DataType `json:"consentedDataTypes"`
	ConsentDate             string                 `json:"consentDate"`
	HasRequestedPermissions bool                   `json:"hasRequestedPermissions"`
	RequestedDataTypes      []observation.DataType `json:"requestedDataTypes"`
}

func decodeRecord(data []byte) (*Record, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	r := &Record{
		SchemaVersion:           SchemaVersion,
		ConsentedDataTypes:      w.ConsentedDataTypes,
		ConsentDate:             w.ConsentDate,
		HasRequestedPermissions: w.HasRequestedPermissions,
		RequestedDataTypes:      w.RequestedDataTypes,
	}
	if w.SchemaVersion != nil {
		r.SchemaVersion = *w.SchemaVersion
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	return r, nil
}
