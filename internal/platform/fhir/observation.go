package fhir

// Observation is the subset of the FHIR R4 Observation resource produced for
// shared health readings.
type Observation struct {
	ResourceType      string                 `json:"resourceType"`
	ID                string                 `json:"id,omitempty"`
	Status            string                 `json:"status"`
	Code              CodeableConcept        `json:"code"`
	Subject           Reference              `json:"subject"`
	EffectiveDateTime string                 `json:"effectiveDateTime"`
	ValueQuantity     *Quantity              `json:"valueQuantity,omitempty"`
	Component         []ObservationComponent `json:"component,omitempty"`
}

// ObservationComponent is one entry of Observation.component. Exactly one of
// ValueQuantity and ValueString is set.
type ObservationComponent struct {
	Code          CodeableConcept `json:"code"`
	ValueQuantity *Quantity       `json:"valueQuantity,omitempty"`
	ValueString   *string         `json:"valueString,omitempty"`
}

// ComponentByCode returns the component whose first coding has the given
// code.
func (o *Observation) ComponentByCode(code string) (ObservationComponent, bool) {
	for _, c := range o.Component {
		if c.Code.FirstCoding().Code == code {
			return c, true
		}
	}
	return ObservationComponent{}, false
}
