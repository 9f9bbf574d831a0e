package consent

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/platform/fhir"
	"github.com/healthshare/healthshare/internal/platform/metrics"
	"github.com/healthshare/healthshare/internal/platform/permission"
)

// Service drives the consent lifecycle and serves consent-gated reads of
// the local observations.
type Service struct {
	store   *Store
	cap     permission.Capability
	source  *observation.FixtureSource
	metrics metrics.Recorder
	logger  zerolog.Logger
	now     func() time.Time

	// mu serializes Save and Revoke within this process.
	mu sync.Mutex
}

func NewService(store *Store, capability permission.Capability, source *observation.FixtureSource, rec metrics.Recorder, logger zerolog.Logger) *Service {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Service{
		store:   store,
		cap:     capability,
		source:  source,
		metrics: rec,
		logger:  logger.With().Str("component", "consent").Logger(),
		now:     time.Now,
	}
}

// SaveResult describes a completed save.
type SaveResult struct {
	Record *Record `json:"consent"`
	// PermissionRequested is set when the save added types that had never
	// been requested and a request was issued for them.
	PermissionRequested bool                   `json:"permissionRequested"`
	RequestedTypes      []observation.DataType `json:"requestedTypes,omitempty"`
	Granted             bool                   `json:"granted"`
}

// Current returns the stored record, or nil.
func (s *Service) Current(ctx context.Context) *Record {
	return s.store.Load(ctx)
}

// Guard returns a guard over the most recently stored consent set.
func (s *Service) Guard(ctx context.Context) *Guard {
	return NewGuard(s.store.Load(ctx))
}

// Save replaces the consent set with types. The record is persisted first;
// then exactly one permission request is issued for the types never
// requested before. A failed or declined request does not fail the save.
func (s *Service) Save(ctx context.Context, types []observation.DataType) (*SaveResult, error) {
	selection, err := normalizeSelection(types)
	if err != nil {
		s.metrics.IncConsentSaves("invalid")
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.store.Load(ctx)
	requested := prev.requested()

	var added []observation.DataType
	for _, t := range selection {
		if _, ok := requested[t]; !ok {
			added = append(added, t)
		}
	}

	r := NewRecord(selection, s.now())
	if prev != nil {
		r.RequestedDataTypes = append(r.RequestedDataTypes, requestedInOrder(prev)...)
	}
	r.RequestedDataTypes = append(r.RequestedDataTypes, added...)
	r.HasRequestedPermissions = len(r.RequestedDataTypes) > 0

	if err := s.store.Save(ctx, r); err != nil {
		s.metrics.IncConsentSaves("error")
		return nil, err
	}
	s.metrics.IncConsentSaves("ok")

	result := &SaveResult{Record: r}
	if len(added) > 0 {
		result.PermissionRequested = true
		result.RequestedTypes = added
		result.Granted = s.requestGrant(ctx, added)
	}

	s.logger.Info().
		Strs("data_types", tagStrings(selection)).
		Strs("newly_requested", tagStrings(added)).
		Msg("consent saved")
	return result, nil
}

// Revoke clears the stored consent entirely. Revoking with no consent
// stored succeeds.
func (s *Service) Revoke(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info().Msg("consent revoked")
	return nil
}

func (s *Service) requestGrant(ctx context.Context, types []observation.DataType) bool {
	platform := s.cap.Platform()
	granted, err := s.cap.RequestGrant(ctx, tagStrings(types))
	switch {
	case err != nil:
		s.metrics.IncPermissionRequests(platform, "error")
		s.logger.Warn().Err(err).Str("platform", platform).Msg("health permission request failed")
	case !granted:
		s.metrics.IncPermissionRequests(platform, "denied")
		s.logger.Info().Str("platform", platform).Msg("health permission request declined")
	default:
		s.metrics.IncPermissionRequests(platform, "granted")
	}
	return err == nil && granted
}

// PlatformStatus reports whether the health platform is connected.
type PlatformStatus struct {
	Platform  string `json:"platform"`
	Connected bool   `json:"connected"`
}

// Status probes the capability. Probe failures read as not connected.
func (s *Service) Status(ctx context.Context) PlatformStatus {
	st := PlatformStatus{Platform: s.cap.Platform()}
	granted, err := s.cap.CheckGranted(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("health permission check failed")
		return st
	}
	st.Connected = granted
	return st
}

// Observations returns the stored readings restricted to the current consent
// set, together with that set in consent order.
func (s *Service) Observations(ctx context.Context) ([]observation.DataType, map[observation.DataType]observation.Observation) {
	g := s.Guard(ctx)
	return g.Allowed(), g.Filter(s.source.All(ctx))
}

// Resources converts the consented readings. When codes is non-empty only
// readings whose LOINC code is listed are returned.
func (s *Service) Resources(ctx context.Context, codes []string) ([]*fhir.Observation, error) {
	g := s.Guard(ctx)
	res, err := g.ConvertAll(g.Filter(s.source.All(ctx)))
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return res, nil
	}
	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}
	out := res[:0]
	for _, r := range res {
		if _, ok := want[r.Code.FirstCoding().Code]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// DashboardItem is one consented category with its latest reading.
type DashboardItem struct {
	DataType    observation.DataType `json:"dataType"`
	DisplayName string               `json:"displayName"`
	Latest      string               `json:"latest"`
	Timestamp   string               `json:"timestamp,omitempty"`
}

// Dashboard is the summary shown after sign-in.
type Dashboard struct {
	PlatformStatus
	HasConsent bool            `json:"hasConsent"`
	Items      []DashboardItem `json:"items"`
}

func (s *Service) Dashboard(ctx context.Context) Dashboard {
	r := s.store.Load(ctx)
	d := Dashboard{
		PlatformStatus: s.Status(ctx),
		HasConsent:     r != nil && len(r.ConsentedDataTypes) > 0,
		Items:          []DashboardItem{},
	}
	g := NewGuard(r)
	obs := g.Filter(s.source.All(ctx))
	for _, t := range g.Allowed() {
		o, ok := obs[t]
		item := DashboardItem{DataType: t, DisplayName: t.DisplayName(), Latest: "No data available"}
		if ok {
			item.Latest = observation.Format(t, o)
			item.Timestamp = o.Timestamp
		}
		d.Items = append(d.Items, item)
	}
	return d
}

func normalizeSelection(types []observation.DataType) ([]observation.DataType, error) {
	out := make([]observation.DataType, 0, len(types))
	seen := make(map[observation.DataType]struct{}, len(types))
	for _, t := range types {
		if t == "" {
			return nil, &SelectionError{Reason: "data type must not be empty"}
		}
		if !t.Known() {
			return nil, &SelectionError{DataType: t, Reason: "is not a supported data type"}
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func requestedInOrder(r *Record) []observation.DataType {
	if len(r.RequestedDataTypes) > 0 || !r.HasRequestedPermissions {
		return r.RequestedDataTypes
	}
	return r.ConsentedDataTypes
}

func tagStrings(types []observation.DataType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
