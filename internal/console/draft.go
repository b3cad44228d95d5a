package console

import (
	"github.com/pbaille/letterdesk/internal/domain"
)

// RelationRef is what the user picked for a relation: an existing id,
// or free text naming the record to link.
type RelationRef struct {
	ID     string
	Name   string
	Create bool // the user asked for a new record, Name must be set
}

// Draft is a client-only edit buffer. It never touches the canonical lists;
// saving turns it into a plan.
type Draft struct {
	Kind   domain.Kind
	Record domain.Record
	Refs   map[string]RelationRef

	original domain.Record
}

// NewDraft clones rec into a fresh draft of the given kind
func NewDraft(kind domain.Kind, rec domain.Record) *Draft {
	d := &Draft{
		Kind:     kind,
		Record:   rec.Clone(),
		Refs:     map[string]RelationRef{},
		original: rec.Clone(),
	}
	for name, id := range rec.Relations {
		d.Refs[name] = RelationRef{ID: id}
	}
	return d
}

// Original is the snapshot the draft was cloned from
func (d *Draft) Original() domain.Record {
	return d.original
}

// Set edits a scalar attribute
func (d *Draft) Set(attr, value string) *Draft {
	d.Record.Attrs[attr] = value
	return d
}

// Link selects an existing record for a relation
func (d *Draft) Link(relation, id string) *Draft {
	d.Refs[relation] = RelationRef{ID: id}
	return d
}

// LinkByName names the record for a relation; an existing record with
// that name is reused, otherwise one is created on save.
func (d *Draft) LinkByName(relation, name string) *Draft {
	ref := d.Refs[relation]
	ref.Name = name
	d.Refs[relation] = ref
	return d
}

// LinkNew asks for a new record named name, dropping any selected id
func (d *Draft) LinkNew(relation, name string) *Draft {
	d.Refs[relation] = RelationRef{Name: name, Create: true}
	return d
}
