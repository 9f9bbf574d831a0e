package fhir

import "time"

// CapabilityStatement represents the FHIR CapabilityStatement (metadata).
type CapabilityStatement struct {
	ResourceType   string            `json:"resourceType"`
	Status         string            `json:"status"`
	Date           string            `json:"date"`
	Kind           string            `json:"kind"`
	FHIRVersion    string            `json:"fhirVersion"`
	Format         []string          `json:"format"`
	Implementation *CSImplementation `json:"implementation,omitempty"`
	Rest           []CSRest          `json:"rest"`
}

type CSImplementation struct {
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}

type CSRest struct {
	Mode     string       `json:"mode"`
	Resource []CSResource `json:"resource"`
}

type CSResource struct {
	Type        string          `json:"type"`
	Interaction []CSInteraction `json:"interaction"`
	SearchParam []CSSearchParam `json:"searchParam,omitempty"`
}

type CSInteraction struct {
	Code string `json:"code"`
}

type CSSearchParam struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Definition string `json:"definition,omitempty"`
}

// NewCapabilityStatement creates the server's capability statement. Only
// consented Observation search is exposed.
func NewCapabilityStatement(baseURL string, now time.Time) *CapabilityStatement {
	return &CapabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Date:         now.UTC().Format("2006-01-02"),
		Kind:         "instance",
		FHIRVersion:  "4.0.1",
		Format:       []string{"json"},
		Implementation: &CSImplementation{
			Description: "Consent-gated health data sharing",
			URL:         baseURL,
		},
		Rest: []CSRest{
			{
				Mode: "server",
				Resource: []CSResource{
					{
						Type:        "Observation",
						Interaction: []CSInteraction{{Code: "search-type"}},
						SearchParam: []CSSearchParam{
							{Name: "code", Type: "token", Definition: "http://hl7.org/fhir/SearchParameter/clinical-code"},
						},
					},
				},
			},
		},
	}
}
