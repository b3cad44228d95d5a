// Package console orchestrates edits of console records: it detects what a
// draft changed, resolves relations (creating missing records), plans the
// partial updates, runs them and reports one notification per save.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pbaille/letterdesk/internal/client"
	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/pbaille/letterdesk/internal/signature"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Transport is the remote API the console drives
type Transport interface {
	Creator
	Updater
	List(ctx context.Context, kind domain.Kind) ([]domain.Record, error)
	Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error)
	Remove(ctx context.Context, kind domain.Kind, id string) error
}

// Options configures a Console
type Options struct {
	NotificationTTL  time.Duration
	OnSessionExpired ExpiryHandler
	Log              zerolog.Logger
}

// Console is the editing surface over the remote records
type Console struct {
	transport Transport
	catalog   *Catalog
	resolver  *Resolver
	executor  *Executor
	notifier  *Notifier
	reporter  *Reporter
	log       zerolog.Logger

	mu      sync.Mutex
	editing *Draft
}

func New(t Transport, opts Options) *Console {
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = 5 * time.Second
	}
	catalog := NewCatalog()
	resolver := NewResolver(t, catalog, opts.Log)
	notifier := NewNotifier(opts.NotificationTTL)
	return &Console{
		transport: t,
		catalog:   catalog,
		resolver:  resolver,
		executor:  NewExecutor(t, resolver, opts.Log),
		notifier:  notifier,
		reporter:  NewReporter(notifier, opts.OnSessionExpired, opts.Log),
		log:       opts.Log,
	}
}

// Notifications exposes the notification stream
func (c *Console) Notifications() *Notifier {
	return c.notifier
}

func (c *Console) Catalog() *Catalog {
	return c.catalog
}

// List returns the loaded records of a kind
func (c *Console) List(kind domain.Kind) []domain.Record {
	return c.catalog.Records(kind)
}

// Refresh refetches one kind and replaces its list
func (c *Console) Refresh(ctx context.Context, kind domain.Kind) error {
	records, err := c.transport.List(ctx, kind)
	if err != nil {
		return fmt.Errorf("list %s: %w", kind, err)
	}
	c.catalog.Replace(kind, records)
	return nil
}

// RefreshAll refetches every kind concurrently
func (c *Console) RefreshAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range domain.Kinds() {
		g.Go(func() error {
			return c.Refresh(ctx, kind)
		})
	}
	return g.Wait()
}

// StartEdit opens a draft of rec, replacing any draft already open
func (c *Console) StartEdit(kind domain.Kind, rec domain.Record) *Draft {
	d := NewDraft(kind, rec)
	c.mu.Lock()
	c.editing = d
	c.mu.Unlock()
	return d
}

// CancelEdit discards the open draft without any remote call
func (c *Console) CancelEdit() {
	c.mu.Lock()
	c.editing = nil
	c.mu.Unlock()
}

// Editing returns the open draft, nil when idle
func (c *Console) Editing() *Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

func (c *Console) finishEdit(d *Draft) {
	c.mu.Lock()
	if c.editing == d {
		c.editing = nil
	}
	c.mu.Unlock()
}

// Save pushes the changes of d as partial updates. A rejected draft stays
// open; any other outcome closes it.
func (c *Console) Save(ctx context.Context, d *Draft) Outcome {
	sch, out, ok := c.lookup(d.Kind, ActionUpdate)
	if !ok {
		return out
	}

	if verr := validate(sch, d, false); verr != nil {
		out := Outcome{Status: Invalid, Rejected: verr}
		c.reporter.Report(sch, ActionUpdate, out)
		return out
	}

	original := d.Original()
	deltas := Detect(sch, &original, &d.Record)

	var resolutions []Resolution
	for _, rel := range sch.Relations {
		ref, ok := d.Refs[rel.Name]
		if !ok {
			continue
		}
		if err := c.resolver.Prepare(ctx, rel, ref); err != nil {
			op := Operation{Kind: OpSetRelation, Entity: sch.Kind, EntityID: original.ID, Attr: rel.Name, Value: ref.ID, DependsOn: -1}
			out := Outcome{Status: Failure, Attempted: 1, Errors: []*OperationError{{Op: op, Err: err}}}
			c.reporter.Report(sch, ActionUpdate, out)
			c.refreshAfter(ctx, sch.Kind, out)
			c.finishEdit(d)
			return out
		}
		resolutions = append(resolutions, c.resolver.Resolve(rel, original.Relation(rel.Name), ref))
	}

	plan := BuildPlan(sch.Kind, original, deltas, resolutions)
	out = c.executor.Execute(ctx, plan)
	c.reporter.Report(sch, ActionUpdate, out)

	if out.Status != NoChange {
		c.refreshAfter(ctx, sch.Kind, out)
	}
	c.finishEdit(d)
	return out
}

// CreateStandalone creates a new record from d. Related records named in
// d are resolved, and created if missing, before the record itself.
func (c *Console) CreateStandalone(ctx context.Context, d *Draft) (domain.Record, Outcome) {
	sch, out, ok := c.lookup(d.Kind, ActionAdd)
	if !ok {
		return domain.Record{}, out
	}

	if verr := validate(sch, d, true); verr != nil {
		out := Outcome{Status: Invalid, Rejected: verr}
		c.reporter.Report(sch, ActionAdd, out)
		return domain.Record{}, out
	}

	rec := domain.NewRecord("")
	for _, attr := range sch.Scalars {
		if v := strings.TrimSpace(d.Record.Attr(attr)); v != "" {
			rec.Attrs[attr] = v
		}
	}

	out = Outcome{Attempted: 1}
	for _, rel := range sch.Relations {
		ref, ok := d.Refs[rel.Name]
		if !ok {
			continue
		}
		res, err := c.resolver.ResolveNow(ctx, rel, "", ref)
		if res.Create {
			out.Attempted++
		}
		if err != nil {
			op := Operation{Kind: OpCreateRelation, Entity: rel.Target, Attr: rel.Name, Value: res.Name, DependsOn: -1}
			if !res.Create {
				op = Operation{Kind: OpSetRelation, Entity: sch.Kind, Attr: rel.Name, Value: ref.ID, DependsOn: -1}
			}
			out.Errors = append(out.Errors, &OperationError{Index: out.Attempted - 1, Op: op, Err: err})
			break
		}
		if res.Created {
			if created, ok := c.catalog.Find(rel.Target, res.ID); ok {
				out.Created = append(out.Created, created)
			}
		}
		if res.ID != "" {
			rec.Relations[rel.Name] = res.ID
		}
	}

	var created domain.Record
	if len(out.Errors) == 0 {
		var err error
		created, err = c.transport.Create(ctx, sch.Kind, rec)
		if err != nil {
			op := Operation{Kind: OpCreate, Entity: sch.Kind, DependsOn: -1}
			out.Errors = append(out.Errors, &OperationError{Index: out.Attempted - 1, Op: op, Err: err})
		} else {
			out.Created = append(out.Created, created)
		}
	}

	if len(out.Errors) > 0 {
		out.Status = Failure
	} else {
		out.Status = Success
	}
	c.reporter.Report(sch, ActionAdd, out)
	c.refreshAfter(ctx, sch.Kind, out)
	c.finishEdit(d)
	return created, out
}

// Delete removes a record and refetches its kind
func (c *Console) Delete(ctx context.Context, kind domain.Kind, id string) Outcome {
	sch, out, ok := c.lookup(kind, ActionDelete)
	if !ok {
		return out
	}

	out = Outcome{Status: Success, Attempted: 1}
	if err := c.transport.Remove(ctx, kind, id); err != nil {
		op := Operation{Kind: OpRemove, Entity: kind, EntityID: id, DependsOn: -1}
		out.Status = Failure
		out.Errors = []*OperationError{{Op: op, Err: err}}
	}

	c.reporter.Report(sch, ActionDelete, out)
	c.refreshAfter(ctx, kind, out)
	return out
}

// lookup finds the schema of kind. An unknown kind is rejected with a
// notification, reported under the raw kind name.
func (c *Console) lookup(kind domain.Kind, action Action) (domain.Schema, Outcome, bool) {
	sch, err := domain.Lookup(kind)
	if err == nil {
		return sch, Outcome{}, true
	}
	out := Outcome{Status: Invalid, Rejected: &client.ValidationError{Message: err.Error()}}
	c.reporter.Report(domain.Schema{Kind: kind, Singular: string(kind)}, action, out)
	return domain.Schema{}, out, false
}

// refreshAfter refetches the canonical list of kind
func (c *Console) refreshAfter(ctx context.Context, kind domain.Kind, out Outcome) {
	// The reporter already sent the user to login
	if out.SessionExpired() {
		return
	}
	if err := c.Refresh(ctx, kind); err != nil {
		c.log.Warn().Err(err).Str("kind", string(kind)).Msg("refresh failed")
	}
}

// validate rejects drafts that cannot be sent. When creating, every
// required attribute must be present; when editing, only the ones the
// draft defines are checked.
func validate(sch domain.Schema, d *Draft, creating bool) *client.ValidationError {
	for attr := range d.Record.Attrs {
		if !sch.HasScalar(attr) {
			return &client.ValidationError{Field: attr, Message: "is not an attribute of " + sch.Singular}
		}
	}

	for _, attr := range sch.Required {
		v, defined := d.Record.Attrs[attr]
		if !defined && !creating {
			continue
		}
		if strings.TrimSpace(v) == "" {
			return &client.ValidationError{Field: attr, Message: "is required"}
		}
	}

	if sch.HasScalar("signature") {
		if err := signature.Validate(d.Record.Attr("signature")); err != nil {
			msg := "is not valid HTML"
			if errors.Is(err, signature.ErrTooLarge) {
				msg = fmt.Sprintf("exceeds %d KB", signature.MaxSize/1024)
			}
			return &client.ValidationError{Field: "signature", Message: msg}
		}
	}

	for name, ref := range d.Refs {
		rel, ok := sch.Relation(name)
		if !ok {
			return &client.ValidationError{Field: name, Message: "is not a relation of " + sch.Singular}
		}
		if ref.Create && strings.TrimSpace(ref.Name) == "" {
			target := domain.MustLookup(rel.Target)
			return &client.ValidationError{Field: name, Message: "needs a name to create a new " + target.Singular}
		}
	}
	return nil
}
