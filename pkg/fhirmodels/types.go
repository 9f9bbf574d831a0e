package fhirmodels

// Common FHIR value set constants used across the application.

// Terminology system URIs.
const (
	SystemLOINC  = "http://loinc.org"
	SystemSNOMED = "http://snomed.info/sct"
	SystemUCUM   = "http://unitsofmeasure.org"
)

// ObservationStatus values per FHIR R4.
const (
	ObservationStatusRegistered     = "registered"
	ObservationStatusPreliminary    = "preliminary"
	ObservationStatusFinal          = "final"
	ObservationStatusAmended        = "amended"
	ObservationStatusEnteredInError = "entered-in-error"
)

// ObservationCategory codes.
const (
	ObsCategoryVitalSigns = "vital-signs"
	ObsCategoryLaboratory = "laboratory"
	ObsCategoryActivity   = "activity"
)

// PlaceholderPatientReference is the subject of every produced Observation
// until identity binding exists.
const PlaceholderPatientReference = "Patient/example"

// MediaTypeFHIRJSON is the FHIR JSON content type.
const MediaTypeFHIRJSON = "application/fhir+json"
