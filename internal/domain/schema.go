package domain

import (
	"fmt"
	"slices"
)

// Relation is a reference from one kind to another by id
type Relation struct {
	Name   string
	Target Kind
}

// Schema declares the attributes of a resource kind
type Schema struct {
	Kind      Kind
	Table     string
	Singular  string
	Label     string
	Scalars   []string
	Required  []string
	Relations []Relation
}

var schemas = map[Kind]Schema{
	KindField: {
		Kind:     KindField,
		Table:    "fields",
		Singular: "field",
		Label:    "name",
		Scalars:  []string{"name"},
		Required: []string{"name"},
	},
	KindCompany: {
		Kind:      KindCompany,
		Table:     "companies",
		Singular:  "company",
		Label:     "name",
		Scalars:   []string{"name", "description"},
		Required:  []string{"name"},
		Relations: []Relation{{Name: "field", Target: KindField}},
	},
	KindRecipient: {
		Kind:     KindRecipient,
		Table:    "recipients",
		Singular: "recipient",
		Label:    "email",
		Scalars:  []string{"email", "name", "description"},
		Required: []string{"email"},
		Relations: []Relation{
			{Name: "company", Target: KindCompany},
			{Name: "field", Target: KindField},
		},
	},
	KindIdentity: {
		Kind:      KindIdentity,
		Table:     "identities",
		Singular:  "identity",
		Label:     "identity",
		Scalars:   []string{"identity", "name", "description", "signature"},
		Required:  []string{"identity"},
		Relations: []Relation{{Name: "field", Target: KindField}},
	},
	KindCoverLetter: {
		Kind:      KindCoverLetter,
		Table:     "cover_letters",
		Singular:  "cover letter",
		Label:     "content",
		Scalars:   []string{"content", "conversation"},
		Required:  []string{"content"},
		Relations: []Relation{{Name: "recipient", Target: KindRecipient}},
	},
}

// Kinds lists every resource kind in dependency order
func Kinds() []Kind {
	return []Kind{KindField, KindCompany, KindRecipient, KindIdentity, KindCoverLetter}
}

// Lookup returns the schema for a kind
func Lookup(kind Kind) (Schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return Schema{}, fmt.Errorf("unknown resource kind: %s", kind)
	}
	return s, nil
}

// MustLookup is Lookup for kinds known at compile time
func MustLookup(kind Kind) Schema {
	s, err := Lookup(kind)
	if err != nil {
		panic(err)
	}
	return s
}

// HasScalar reports whether attr is a scalar of this kind
func (s Schema) HasScalar(attr string) bool {
	return slices.Contains(s.Scalars, attr)
}

// IsRequired reports whether attr must be non-empty
func (s Schema) IsRequired(attr string) bool {
	return slices.Contains(s.Required, attr)
}

// Relation finds a relation by name
func (s Schema) Relation(name string) (Relation, bool) {
	for _, r := range s.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// LabelOf returns the display label of a record of this kind
func (s Schema) LabelOf(r Record) string {
	return r.Attr(s.Label)
}
