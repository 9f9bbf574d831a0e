package consent

import (
	"fmt"

	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/platform/fhir"
)

// AllowedTypes returns the consented tags in consent order. A nil record
// allows nothing.
func AllowedTypes(r *Record) []observation.DataType {
	if r == nil {
		return []observation.DataType{}
	}
	return append([]observation.DataType{}, r.ConsentedDataTypes...)
}

// FilterObservations keeps only the entries whose tag is in allowed.
func FilterObservations(allowed []observation.DataType, all map[observation.DataType]observation.Observation) map[observation.DataType]observation.Observation {
	out := make(map[observation.DataType]observation.Observation, len(allowed))
	for _, t := range allowed {
		if obs, ok := all[t]; ok {
			out[t] = obs
		}
	}
	return out
}

// GuardViolation is the panic value raised when conversion is attempted for
// a tag outside the consent set. It signals a caller bug, not bad input.
type GuardViolation struct {
	DataType observation.DataType
}

func (g GuardViolation) Error() string {
	return fmt.Sprintf("consent guard: %q is not consented", g.DataType)
}

// Guard wraps the converter with the consent set of one loaded record.
type Guard struct {
	allowed []observation.DataType
	set     map[observation.DataType]struct{}
}

func NewGuard(r *Record) *Guard {
	allowed := AllowedTypes(r)
	set := make(map[observation.DataType]struct{}, len(allowed))
	for _, t := range allowed {
		set[t] = struct{}{}
	}
	return &Guard{allowed: allowed, set: set}
}

// Allows reports whether tag is in the consent set.
func (g *Guard) Allows(tag observation.DataType) bool {
	_, ok := g.set[tag]
	return ok
}

// Allowed returns the consent set in consent order.
func (g *Guard) Allowed() []observation.DataType {
	return append([]observation.DataType{}, g.allowed...)
}

// Filter restricts all to the consent set.
func (g *Guard) Filter(all map[observation.DataType]observation.Observation) map[observation.DataType]observation.Observation {
	return FilterObservations(g.allowed, all)
}

// Convert converts one observation. It panics with GuardViolation when tag
// is not consented.
func (g *Guard) Convert(tag observation.DataType, obs observation.Observation) (*fhir.Observation, error) {
	if !g.Allows(tag) {
		panic(GuardViolation{DataType: tag})
	}
	return observation.Convert(tag, obs)
}

// ConvertAll converts the consented entries of obs in consent order. Entries
// for other tags are ignored. The first conversion error aborts.
func (g *Guard) ConvertAll(obs map[observation.DataType]observation.Observation) ([]*fhir.Observation, error) {
	out := make([]*fhir.Observation, 0, len(obs))
	for _, t := range g.allowed {
		o, ok := obs[t]
		if !ok {
			continue
		}
		res, err := g.Convert(t, o)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
