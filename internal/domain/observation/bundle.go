package observation

import "github.com/healthshare/healthshare/internal/platform/fhir"

// Bundle wraps converted resources in a FHIR collection Bundle, one entry
// per resource in input order.
func Bundle(resources []*fhir.Observation) *fhir.Bundle {
	return fhir.NewCollectionBundle(resources)
}
