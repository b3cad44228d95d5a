package console

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pbaille/letterdesk/internal/client"
	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Status is the terminal state of a save
type Status int

const (
	NoChange Status = iota
	Success
	Failure
	Invalid // rejected before any remote call
)

func (s Status) String() string {
	switch s {
	case NoChange:
		return "no change"
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// OperationError is the failure of one planned operation
type OperationError struct {
	Index int
	Op    Operation
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Outcome is the aggregate result of executing a plan
type Outcome struct {
	Status    Status
	Attempted int
	Errors    []*OperationError
	Created   []domain.Record
	Rejected  *client.ValidationError
}

// SessionExpired reports whether any failure was caused by an expired session
func (o Outcome) SessionExpired() bool {
	for _, e := range o.Errors {
		if client.IsSessionExpired(e) {
			return true
		}
	}
	return false
}

// Err flattens the outcome into a single error, nil on success
func (o Outcome) Err() error {
	if o.Rejected != nil {
		return o.Rejected
	}
	if len(o.Errors) == 0 {
		return nil
	}
	if len(o.Errors) == 1 {
		return o.Errors[0]
	}
	return fmt.Errorf("%d of %d operations failed: %w", len(o.Errors), o.Attempted, o.Errors[0])
}

// Updater applies single-field changes remotely
type Updater interface {
	UpdateAttribute(ctx context.Context, kind domain.Kind, id, attr, value string) error
	SetRelation(ctx context.Context, kind domain.Kind, id, relation, relID string) error
}

// Executor runs plans. Independent operations are submitted concurrently;
// each OpSetRelation waiting on a create starts once that create returns
// the new id, and never starts if it fails.
type Executor struct {
	updater  Updater
	resolver *Resolver
	log      zerolog.Logger
}

func NewExecutor(updater Updater, resolver *Resolver, log zerolog.Logger) *Executor {
	return &Executor{updater: updater, resolver: resolver, log: log}
}

// Execute runs every operation of the plan and waits for all of them.
// Failures are collected rather than aborting the rest.
func (e *Executor) Execute(ctx context.Context, plan Plan) Outcome {
	if plan.Empty() {
		return Outcome{Status: NoChange}
	}

	var (
		mu  sync.Mutex
		out = Outcome{Attempted: len(plan.Ops)}
		g   errgroup.Group
	)

	fail := func(i int, op Operation, err error) {
		e.log.Warn().Err(err).Str("op", op.String()).Msg("operation failed")
		mu.Lock()
		out.Errors = append(out.Errors, &OperationError{Index: i, Op: op, Err: err})
		mu.Unlock()
	}

	var submit func(i int, op Operation)
	submit = func(i int, op Operation) {
		g.Go(func() error {
			switch op.Kind {
			case OpCreateRelation:
				created, err := e.resolver.Create(ctx, op.Entity, op.Value)
				if err != nil {
					fail(i, op, err)
					return nil
				}
				mu.Lock()
				out.Created = append(out.Created, created)
				mu.Unlock()

				for _, j := range plan.Dependents(i) {
					dep := plan.Ops[j]
					dep.Value = created.ID
					submit(j, dep)
				}
			case OpSetAttribute:
				if err := e.updater.UpdateAttribute(ctx, op.Entity, op.EntityID, op.Attr, op.Value); err != nil {
					fail(i, op, err)
				}
			case OpSetRelation:
				if err := e.updater.SetRelation(ctx, op.Entity, op.EntityID, op.Attr, op.Value); err != nil {
					fail(i, op, err)
				}
			default:
				fail(i, op, fmt.Errorf("unsupported operation %s", op.Kind))
			}
			// Errors are collected, so siblings keep running
			return nil
		})
	}

	for i, op := range plan.Ops {
		if op.DependsOn < 0 {
			submit(i, op)
		}
	}
	_ = g.Wait()

	slices.SortFunc(out.Errors, func(a, b *OperationError) int { return a.Index - b.Index })
	if len(out.Errors) > 0 {
		out.Status = Failure
	} else {
		out.Status = Success
	}

	e.log.Debug().
		Str("kind", string(plan.Kind)).
		Str("id", plan.EntityID).
		Int("ops", len(plan.Ops)).
		Int("failed", len(out.Errors)).
		Msg("plan executed")
	return out
}
