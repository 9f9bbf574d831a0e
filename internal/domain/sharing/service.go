package sharing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/domain/consent"
	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/platform/delivery"
	"github.com/healthshare/healthshare/internal/platform/fhir"
	"github.com/healthshare/healthshare/internal/platform/metrics"
)

// Request asks for the consented data to be sent to a recipient. DataTypes
// optionally narrows the share; it is intersected with the consent set.
type Request struct {
	Recipient string                 `json:"recipient"`
	DataTypes []observation.DataType `json:"dataTypes,omitempty"`
}

// Outcome is the result of one share attempt.
type Outcome struct {
	Item   HistoryItem  `json:"item"`
	Bundle *fhir.Bundle `json:"bundle"`
}

type Service struct {
	consent   *consent.Service
	source    *observation.FixtureSource
	history   *HistoryStore
	submitter delivery.Submitter
	metrics   metrics.Recorder
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(consentSvc *consent.Service, source *observation.FixtureSource, history *HistoryStore, submitter delivery.Submitter, rec metrics.Recorder, logger zerolog.Logger) *Service {
	if rec == nil {
		rec = metrics.Noop()
	}
	return &Service{
		consent:   consentSvc,
		source:    source,
		history:   history,
		submitter: submitter,
		metrics:   rec,
		logger:    logger.With().Str("component", "sharing").Logger(),
		now:       time.Now,
	}
}

// Share converts and delivers the consented readings. The attempt is logged
// as pending before submission and moved to completed or failed once the
// recipient answers.
func (s *Service) Share(ctx context.Context, req Request) (*Outcome, error) {
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return nil, &RequestError{Err: errEmptyRecipient}
	}

	shared, resources, err := s.prepare(ctx, req.DataTypes)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	id := uuid.New().String()
	bundle := observation.Bundle(resources)
	bundle.ID = id
	bundle.Timestamp = &now

	item := HistoryItem{
		ID:        id,
		Date:      now.Format(time.RFC3339Nano),
		DataTypes: shared,
		Recipient: recipient,
		Status:    StatusPending,
	}
	if err := s.history.Append(ctx, item); err != nil {
		return nil, err
	}

	res, err := s.submitter.Submit(ctx, recipient, bundle)
	item.Status = StatusCompleted
	if err != nil || !res.Success {
		item.Status = StatusFailed
		s.logger.Warn().Err(err).Str("share_id", id).Str("recipient", recipient).Msg("share delivery failed")
	}
	item.DeliveryID = res.ID
	s.metrics.IncShares(string(item.Status))

	if uerr := s.history.UpdateStatus(ctx, id, item.Status, res.ID); uerr != nil {
		s.logger.Error().Err(uerr).Str("share_id", id).Msg("recording share outcome")
	}

	s.logger.Info().
		Str("share_id", id).
		Str("recipient", recipient).
		Strs("data_types", tagStrings(shared)).
		Str("status", string(item.Status)).
		Msg("share attempted")
	return &Outcome{Item: item, Bundle: bundle}, nil
}

// Preview builds the bundle a share of dataTypes would send, without
// sending or logging it. An empty dataTypes means every consented type.
func (s *Service) Preview(ctx context.Context, dataTypes []observation.DataType) (*fhir.Bundle, error) {
	_, resources, err := s.prepare(ctx, dataTypes)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	bundle := observation.Bundle(resources)
	bundle.Timestamp = &now
	return bundle, nil
}

// prepare selects the consented readings, optionally narrowed to wanted, and
// converts them through the consent guard.
func (s *Service) prepare(ctx context.Context, wanted []observation.DataType) ([]observation.DataType, []*fhir.Observation, error) {
	g := s.consent.Guard(ctx)
	selected := g.Allowed()
	if len(wanted) > 0 {
		selected = intersect(selected, wanted)
	}

	obs := s.source.ForTypes(ctx, selected)
	shared := make([]observation.DataType, 0, len(obs))
	for _, t := range selected {
		if _, ok := obs[t]; ok {
			shared = append(shared, t)
		}
	}
	if len(shared) == 0 {
		return nil, nil, ErrNothingToShare
	}

	resources, err := g.ConvertAll(obs)
	if err != nil {
		var verr *observation.ValidationError
		if errors.As(err, &verr) {
			s.metrics.IncConversions(string(verr.DataType), "invalid")
		}
		return nil, nil, err
	}
	for _, t := range shared {
		s.metrics.IncConversions(string(t), "ok")
	}
	return shared, resources, nil
}

// History returns the sharing log, newest first.
func (s *Service) History(ctx context.Context) []HistoryItem {
	return s.history.List(ctx)
}

// ClearHistory removes every history item.
func (s *Service) ClearHistory(ctx context.Context) error {
	return s.history.Clear(ctx)
}

// intersect keeps the tags of allowed that appear in wanted, in allowed's
// order.
func intersect(allowed, wanted []observation.DataType) []observation.DataType {
	set := make(map[observation.DataType]struct{}, len(wanted))
	for _, t := range wanted {
		set[t] = struct{}{}
	}
	out := make([]observation.DataType, 0, len(allowed))
	for _, t := range allowed {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func tagStrings(types []observation.DataType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
