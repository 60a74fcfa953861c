package jsonapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Resource is a single JSON:API resource object.
type Resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    json.RawMessage         `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship holds the raw relationship payload, which may be a single
// resource identifier, an array of identifiers, or null.
type Relationship struct {
	Data json.RawMessage `json:"data"`
}

// Document is the JSON:API response envelope.
type Document struct {
	Data     json.RawMessage `json:"data"`
	Included []Resource      `json:"included,omitempty"`
}

type identifier struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Decode parses a raw response body into a Document.
func Decode(body []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON:API document: %w", err)
	}
	return &doc, nil
}

// Resources returns the primary data as a slice, regardless of whether the
// wire payload was a single object, an array, or null.
func (d *Document) Resources() ([]Resource, error) {
	if d == nil || len(d.Data) == 0 || bytes.Equal(bytes.TrimSpace(d.Data), []byte("null")) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(d.Data)
	if trimmed[0] == '[' {
		var out []Resource
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("failed to decode resource array: %w", err)
		}
		return out, nil
	}
	var one Resource
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, fmt.Errorf("failed to decode resource object: %w", err)
	}
	return []Resource{one}, nil
}

// IncludedByKey indexes the document's included resources by (type, id).
func (d *Document) IncludedByKey() map[string]Resource {
	if d == nil || len(d.Included) == 0 {
		return nil
	}
	out := make(map[string]Resource, len(d.Included))
	for _, r := range d.Included {
		out[r.Type+":"+r.ID] = r
	}
	return out
}

// RelationshipIDs flattens a relationship into a slice of related ids.
// A missing relationship, a null payload, or malformed data all yield an
// empty slice so callers never inspect the wire shape.
func RelationshipIDs(r Resource, name string) []string {
	rel, ok := r.Relationships[name]
	if !ok || len(rel.Data) == 0 {
		return nil
	}
	trimmed := bytes.TrimSpace(rel.Data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		var many []identifier
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil
		}
		ids := make([]string, 0, len(many))
		for _, m := range many {
			if m.ID != "" {
				ids = append(ids, m.ID)
			}
		}
		return ids
	}
	var one identifier
	if err := json.Unmarshal(trimmed, &one); err != nil || one.ID == "" {
		return nil
	}
	return []string{one.ID}
}

// RelatedID returns the first related id for a relationship, or "".
func RelatedID(r Resource, name string) string {
	ids := RelationshipIDs(r, name)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// DecodeAttributes unmarshals the resource attributes into v.
func (r Resource) DecodeAttributes(v interface{}) error {
	if len(r.Attributes) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Attributes, v); err != nil {
		return fmt.Errorf("failed to decode %s %s attributes: %w", r.Type, r.ID, err)
	}
	return nil
}
