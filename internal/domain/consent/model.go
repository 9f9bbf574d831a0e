package consent

import (
	"fmt"
	"time"

	"github.com/healthshare/healthshare/internal/domain/observation"
)

// SchemaVersion is written into every serialized record.
const SchemaVersion = 1

// Record is the user's current authorization state. There is at most one per
// device and it is replaced wholesale on every save.
type Record struct {
	SchemaVersion           int                    `json:"schemaVersion"`
	ConsentedDataTypes      []observation.DataType `json:"consentedDataTypes"`
	ConsentDate             string                 `json:"consentDate"`
	HasRequestedPermissions bool                   `json:"hasRequestedPermissions"`
	// RequestedDataTypes are the tags a permission request has already been
	// issued for since consent was last cleared.
	RequestedDataTypes []observation.DataType `json:"requestedDataTypes,omitempty"`
}

// NewRecord builds a record for the given selection, dated now.
func NewRecord(types []observation.DataType, now time.Time) *Record {
	return &Record{
		SchemaVersion:      SchemaVersion,
		ConsentedDataTypes: append([]observation.DataType{}, types...),
		ConsentDate:        now.UTC().Format(time.RFC3339Nano),
	}
}

// Includes reports whether tag is currently consented.
func (r *Record) Includes(tag observation.DataType) bool {
	if r == nil {
		return false
	}
	for _, t := range r.ConsentedDataTypes {
		if t == tag {
			return true
		}
	}
	return false
}

// requested returns the tags already covered by a permission request.
// Records written before RequestedDataTypes existed only carry the flag, in
// which case the consented set is what was requested.
func (r *Record) requested() map[observation.DataType]struct{} {
	out := make(map[observation.DataType]struct{})
	if r == nil {
		return out
	}
	src := r.RequestedDataTypes
	if len(src) == 0 && r.HasRequestedPermissions {
		src = r.ConsentedDataTypes
	}
	for _, t := range src {
		out[t] = struct{}{}
	}
	return out
}

// check reports why a decoded record cannot be trusted, or nil.
func (r *Record) check() error {
	if r.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d", r.SchemaVersion)
	}
	if r.ConsentedDataTypes == nil {
		return fmt.Errorf("consentedDataTypes is missing")
	}
	if r.ConsentDate == "" {
		return fmt.Errorf("consentDate is missing")
	}
	if _, err := time.Parse(time.RFC3339Nano, r.ConsentDate); err != nil {
		return fmt.Errorf("consentDate is not an ISO-8601 instant")
	}
	seen := make(map[observation.DataType]struct{}, len(r.ConsentedDataTypes))
	for _, t := range r.ConsentedDataTypes {
		if _, dup := seen[t]; dup {
			return fmt.Errorf("duplicate data type %q", t)
		}
		seen[t] = struct{}{}
	}
	return nil
}

// SelectionError reports a consent selection that cannot be saved.
type SelectionError struct {
	DataType observation.DataType
	Reason   string
}

func (e *SelectionError) Error() string {
	if e.DataType == "" {
		return "invalid consent selection: " + e.Reason
	}
	return fmt.Sprintf("invalid consent selection: %q %s", e.DataType, e.Reason)
}

// StorageError wraps a failed write to the key-value collaborator. Callers
// may retry.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
