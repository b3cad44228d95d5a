package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/rs/zerolog"
)

// Creator creates records on the remote side
type Creator interface {
	Create(ctx context.Context, kind domain.Kind, rec domain.Record) (domain.Record, error)
}

// Source is what the resolver reads and creates related records through
type Source interface {
	Creator
	List(ctx context.Context, kind domain.Kind) ([]domain.Record, error)
	Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error)
}

// Resolution is the decision for one relation: an id to link, or a
// record that has to be created first.
type Resolution struct {
	Relation domain.Relation
	ID       string
	Name     string // label of the record to create
	Create   bool
	Created  bool // set once the record was actually created
}

// Resolver turns relation picks into ids, creating missing records
type Resolver struct {
	source  Source
	catalog *Catalog
	log     zerolog.Logger
}

func NewResolver(source Source, catalog *Catalog, log zerolog.Logger) *Resolver {
	return &Resolver{source: source, catalog: catalog, log: log}
}

// Prepare makes sure the catalog can answer Resolve for ref: the target
// kind is fetched when it was never loaded, and an id missing from a
// loaded list is fetched on its own.
func (r *Resolver) Prepare(ctx context.Context, rel domain.Relation, ref RelationRef) error {
	if strings.TrimSpace(ref.Name) == "" {
		return nil
	}

	if !r.catalog.Loaded(rel.Target) {
		records, err := r.source.List(ctx, rel.Target)
		if err != nil {
			return fmt.Errorf("list %s: %w", rel.Target, err)
		}
		r.catalog.Replace(rel.Target, records)
		r.log.Debug().Str("kind", string(rel.Target)).Int("count", len(records)).Msg("loaded related records")
	}

	if ref.ID == "" || ref.Create {
		return nil
	}
	if _, ok := r.catalog.Find(rel.Target, ref.ID); ok {
		return nil
	}
	rec, err := r.source.Get(ctx, rel.Target, ref.ID)
	if err != nil {
		return fmt.Errorf("get %s %s: %w", rel.Target, ref.ID, err)
	}
	r.catalog.Append(rel.Target, rec)
	return nil
}

// Resolve decides how a relation gets its id, without side effects.
// current is the id the entity links to now. Call Prepare first so the
// catalog holds the records Resolve matches against.
func (r *Resolver) Resolve(rel domain.Relation, current string, ref RelationRef) Resolution {
	res := Resolution{Relation: rel}

	name := strings.TrimSpace(ref.Name)
	if name == "" {
		res.ID = ref.ID
		if res.ID == "" && !ref.Create {
			res.ID = current
		}
		return res
	}

	if ref.ID != "" && !ref.Create {
		if existing, ok := r.catalog.Find(rel.Target, ref.ID); ok && r.labelOf(rel.Target, existing, name) {
			res.ID = ref.ID
			return res
		}
	}

	// Never create a second record under a name that already exists
	if existing, ok := r.catalog.FindByLabel(rel.Target, name); ok {
		res.ID = existing.ID
		return res
	}

	res.Name = name
	res.Create = true
	return res
}

func (r *Resolver) labelOf(kind domain.Kind, rec domain.Record, name string) bool {
	sch, err := domain.Lookup(kind)
	if err != nil {
		return false
	}
	return labelMatches(sch.LabelOf(rec), name)
}

// Create makes a record of kind labelled name and adds it to the catalog
func (r *Resolver) Create(ctx context.Context, kind domain.Kind, name string) (domain.Record, error) {
	sch, err := domain.Lookup(kind)
	if err != nil {
		return domain.Record{}, err
	}

	rec := domain.NewRecord("")
	rec.Attrs[sch.Label] = strings.TrimSpace(name)

	created, err := r.source.Create(ctx, kind, rec)
	if err != nil {
		return domain.Record{}, fmt.Errorf("create %s %q: %w", sch.Singular, name, err)
	}

	r.catalog.Append(kind, created)
	r.log.Info().Str("kind", string(kind)).Str("id", created.ID).Msg("created related record")
	return created, nil
}

// ResolveNow resolves and performs any needed create immediately
func (r *Resolver) ResolveNow(ctx context.Context, rel domain.Relation, current string, ref RelationRef) (Resolution, error) {
	if err := r.Prepare(ctx, rel, ref); err != nil {
		return Resolution{Relation: rel}, err
	}
	res := r.Resolve(rel, current, ref)
	if !res.Create {
		return res, nil
	}

	created, err := r.Create(ctx, rel.Target, res.Name)
	if err != nil {
		return res, err
	}
	res.ID = created.ID
	res.Created = true
	return res, nil
}
