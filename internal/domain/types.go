package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind names a resource collection, as it appears in API paths
type Kind string

const (
	KindRecipient   Kind = "recipients"
	KindField       Kind = "fields"
	KindCompany     Kind = "companies"
	KindIdentity    Kind = "identities"
	KindCoverLetter Kind = "cover-letters"
)

// Record is the generic shape shared by every resource kind
type Record struct {
	ID        string
	Attrs     map[string]string
	Relations map[string]string
}

// NewRecord returns an empty record with initialized maps
func NewRecord(id string) Record {
	return Record{
		ID:        id,
		Attrs:     map[string]string{},
		Relations: map[string]string{},
	}
}

// Clone returns a deep copy, so edits never reach the source
func (r Record) Clone() Record {
	c := NewRecord(r.ID)
	for k, v := range r.Attrs {
		c.Attrs[k] = v
	}
	for k, v := range r.Relations {
		c.Relations[k] = v
	}
	return c
}

// Attr returns a scalar attribute, empty when absent
func (r Record) Attr(name string) string {
	return r.Attrs[name]
}

// Relation returns a relation id, empty when absent
func (r Record) Relation(name string) string {
	return r.Relations[name]
}

// RelationKey is the flat JSON key carrying a relation id
func RelationKey(relation string) string {
	return relation + "_id"
}

// MarshalJSON flattens the record: {"id": ..., "<attr>": ..., "<relation>_id": ...}
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(r.Attrs)+len(r.Relations)+1)
	for k, v := range r.Attrs {
		flat[k] = v
	}
	for k, v := range r.Relations {
		if v != "" {
			flat[RelationKey(k)] = v
		}
	}
	if r.ID != "" {
		flat["id"] = r.ID
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat form. Keys ending in _id are relations,
// null values are treated as absent.
func (r *Record) UnmarshalJSON(data []byte) error {
	var flat map[string]*string
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	*r = NewRecord("")
	for k, v := range flat {
		if v == nil {
			continue
		}
		switch {
		case k == "id":
			r.ID = *v
		case strings.HasSuffix(k, "_id"):
			r.Relations[strings.TrimSuffix(k, "_id")] = *v
		default:
			r.Attrs[k] = *v
		}
	}
	return nil
}
