package fhir

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewCollectionBundle_PreservesOrder(t *testing.T) {
	resources := []*Observation{
		{ResourceType: "Observation", ID: "a"},
		{ResourceType: "Observation"},
		{ResourceType: "Observation", ID: "c"},
	}
	b := NewCollectionBundle(resources)

	if b.ResourceType != "Bundle" || b.Type != BundleTypeCollection {
		t.Errorf("unexpected bundle header %+v", b)
	}
	if len(b.Entry) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(b.Entry))
	}
	if b.Entry[0].FullURL != "Observation/a" || b.Entry[1].FullURL != "" || b.Entry[2].FullURL != "Observation/c" {
		t.Errorf("unexpected full urls %+v", b.Entry)
	}
	for i, r := range b.Resources() {
		if r != resources[i] {
			t.Errorf("entry %d out of order", i)
		}
	}
}

func TestNewCollectionBundle_EmptyEntryList(t *testing.T) {
	b := NewCollectionBundle(nil)
	if b.Entry == nil {
		t.Fatal("expected non-nil entry list")
	}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"entry":[]`) {
		t.Errorf("expected empty entry array, got %s", data)
	}
	if strings.Contains(string(data), "total") || strings.Contains(string(data), "timestamp") {
		t.Errorf("expected total and timestamp omitted, got %s", data)
	}
}

func TestBundle_WithSelfLink(t *testing.T) {
	b := NewCollectionBundle([]*Observation{{ResourceType: "Observation"}}).WithSelfLink("http://localhost/fhir/Observation")
	if b.Total == nil || *b.Total != 1 {
		t.Errorf("expected total 1, got %v", b.Total)
	}
	if len(b.Link) != 1 || b.Link[0].Relation != "self" || b.Link[0].URL != "http://localhost/fhir/Observation" {
		t.Errorf("unexpected links %+v", b.Link)
	}
}

func TestFormatReference(t *testing.T) {
	if got := FormatReference("Patient", "patient-123"); got != "Patient/patient-123" {
		t.Errorf("unexpected reference %s", got)
	}
}
