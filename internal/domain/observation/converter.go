package observation

import (
	"github.com/healthshare/healthshare/internal/platform/fhir"
	"github.com/healthshare/healthshare/pkg/fhirmodels"
)

// Convert maps one observation to a FHIR R4 Observation resource. It is
// pure; an observation missing the fields its data type requires yields a
// *ValidationError.
func Convert(tag DataType, obs Observation) (*fhir.Observation, error) {
	reading, err := Resolve(tag, obs)
	if err != nil {
		return nil, err
	}

	res := &fhir.Observation{
		ResourceType:      "Observation",
		Status:            fhirmodels.ObservationStatusFinal,
		Code:              concept(CodeFor(tag)),
		Subject:           fhir.Reference{Reference: fhirmodels.PlaceholderPatientReference},
		EffectiveDateTime: obs.Timestamp,
	}
	reading.populate(tag, res)
	return res, nil
}

func (r Scalar) populate(tag DataType, res *fhir.Observation) {
	unit := r.Unit
	if unit == "" {
		unit = CodeFor(tag).Unit
	}
	res.ValueQuantity = &fhir.Quantity{
		Value:  r.Value,
		Unit:   unit,
		System: fhirmodels.SystemUCUM,
		Code:   UnitCodeFor(tag, r.Unit),
	}
}

func (r DualComponent) populate(_ DataType, res *fhir.Observation) {
	res.Component = []fhir.ObservationComponent{
		quantityComponent(SystolicCoding, r.Systolic),
		quantityComponent(DiastolicCoding, r.Diastolic),
	}
}

func (r DurationQuality) populate(tag DataType, res *fhir.Observation) {
	entry := CodeFor(tag)
	res.ValueQuantity = &fhir.Quantity{
		Value:  r.TotalMinutes(),
		Unit:   entry.Unit,
		System: fhirmodels.SystemUCUM,
		Code:   entry.UnitCode,
	}
	if r.Quality != "" {
		quality := r.Quality
		res.Component = []fhir.ObservationComponent{{
			Code:        concept(SleepQualityCoding),
			ValueString: &quality,
		}}
	}
}

func quantityComponent(entry CodeEntry, value float64) fhir.ObservationComponent {
	return fhir.ObservationComponent{
		Code: concept(entry),
		ValueQuantity: &fhir.Quantity{
			Value:  value,
			Unit:   entry.Unit,
			System: fhirmodels.SystemUCUM,
			Code:   entry.UnitCode,
		},
	}
}

func concept(entry CodeEntry) fhir.CodeableConcept {
	return fhir.CodeableConcept{
		Coding: []fhir.Coding{{
			System:  entry.System,
			Code:    entry.Code,
			Display: entry.Display,
		}},
	}
}
