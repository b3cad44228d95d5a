package console

import (
	"fmt"

	"github.com/pbaille/letterdesk/internal/domain"
)

// OpKind is the kind of a remote operation
type OpKind int

const (
	OpSetAttribute OpKind = iota
	OpSetRelation
	OpCreateRelation

	// standalone operations, never part of an update plan
	OpCreate
	OpRemove
)

func (k OpKind) String() string {
	switch k {
	case OpSetAttribute:
		return "set attribute"
	case OpSetRelation:
		return "set relation"
	case OpCreateRelation:
		return "create related"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// Operation is one remote call.
// For OpCreateRelation, Entity is the kind being created and Value its label.
type Operation struct {
	Kind      OpKind
	Entity    domain.Kind
	EntityID  string
	Attr      string // attribute or relation name
	Value     string
	DependsOn int // index of the OpCreateRelation supplying Value, -1 if none
}

func (o Operation) String() string {
	switch o.Kind {
	case OpCreateRelation:
		return fmt.Sprintf("%s %s %q", o.Kind, o.Attr, o.Value)
	case OpCreate, OpRemove:
		return fmt.Sprintf("%s %s %s", o.Kind, o.Entity, o.EntityID)
	default:
		return fmt.Sprintf("%s %s", o.Kind, o.Attr)
	}
}

// Plan is the set of operations a save needs. Operations without a
// dependency may run concurrently.
type Plan struct {
	Kind     domain.Kind
	EntityID string
	Ops      []Operation
}

func (p Plan) Empty() bool {
	return len(p.Ops) == 0
}

// Dependents returns the indexes of operations waiting on op i
func (p Plan) Dependents(i int) []int {
	var deps []int
	for j, op := range p.Ops {
		if op.DependsOn == i {
			deps = append(deps, j)
		}
	}
	return deps
}

// BuildPlan turns deltas and relation resolutions into operations.
// A relation needing a new record gets an OpCreateRelation followed by the
// OpSetRelation that depends on it; an unchanged relation id yields nothing.
func BuildPlan(kind domain.Kind, original domain.Record, deltas []Delta, resolutions []Resolution) Plan {
	plan := Plan{Kind: kind, EntityID: original.ID}

	for _, d := range deltas {
		plan.Ops = append(plan.Ops, Operation{
			Kind:      OpSetAttribute,
			Entity:    kind,
			EntityID:  original.ID,
			Attr:      d.Attr,
			Value:     d.Value,
			DependsOn: -1,
		})
	}

	for _, res := range resolutions {
		name := res.Relation.Name
		set := Operation{
			Kind:      OpSetRelation,
			Entity:    kind,
			EntityID:  original.ID,
			Attr:      name,
			DependsOn: -1,
		}

		switch {
		case res.Create && !res.Created:
			plan.Ops = append(plan.Ops, Operation{
				Kind:      OpCreateRelation,
				Entity:    res.Relation.Target,
				Attr:      name,
				Value:     res.Name,
				DependsOn: -1,
			})
			set.DependsOn = len(plan.Ops) - 1
		case res.ID != original.Relation(name):
			set.Value = res.ID
		default:
			continue
		}
		plan.Ops = append(plan.Ops, set)
	}

	return plan
}
