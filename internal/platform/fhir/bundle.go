package fhir

import (
	"fmt"
	"time"
)

// Bundle types used by this service.
const (
	BundleTypeCollection = "collection"
	BundleTypeSearchset  = "searchset"
)

// Bundle represents a FHIR Bundle resource holding Observation entries.
// Entry is always serialized, so an empty bundle carries "entry": [].
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string       `json:"fullUrl,omitempty"`
	Resource *Observation `json:"resource"`
}

// Resources returns the entry resources in bundle order.
func (b *Bundle) Resources() []*Observation {
	out := make([]*Observation, 0, len(b.Entry))
	for _, e := range b.Entry {
		out = append(out, e.Resource)
	}
	return out
}

// NewCollectionBundle wraps resources in a collection Bundle, one entry per
// resource, preserving input order. A nil or empty input yields a bundle
// with an empty, non-nil entry list.
func NewCollectionBundle(resources []*Observation) *Bundle {
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		entry := BundleEntry{Resource: r}
		if r != nil && r.ID != "" {
			entry.FullURL = FormatReference(r.ResourceType, r.ID)
		}
		entries = append(entries, entry)
	}

	return &Bundle{
		ResourceType: "Bundle",
		Type:         BundleTypeCollection,
		Entry:        entries,
	}
}

// WithSelfLink sets the bundle's self link and total, as served from the
// FHIR read endpoint.
func (b *Bundle) WithSelfLink(url string) *Bundle {
	total := len(b.Entry)
	b.Total = &total
	b.Link = []BundleLink{{Relation: "self", URL: url}}
	return b
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}
