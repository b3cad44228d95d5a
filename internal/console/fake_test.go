package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/pbaille/letterdesk/internal/domain"
)

type call struct {
	op    string
	kind  domain.Kind
	id    string
	attr  string
	value string
}

// fakeTransport is an in-memory API. hook runs before each call is served,
// outside the lock, and may delay or fail it.
type fakeTransport struct {
	mu      sync.Mutex
	records map[domain.Kind][]domain.Record
	calls   []call
	next    int
	hook    func(c call) error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{records: map[domain.Kind][]domain.Record{}}
}

func (f *fakeTransport) seed(kind domain.Kind, id string, attrs map[string]string, relations map[string]string) domain.Record {
	r := domain.NewRecord(id)
	for k, v := range attrs {
		r.Attrs[k] = v
	}
	for k, v := range relations {
		r.Relations[k] = v
	}
	f.mu.Lock()
	f.records[kind] = append(f.records[kind], r)
	f.mu.Unlock()
	return r
}

// serve records c once the hook has run, so call order is completion order
func (f *fakeTransport) serve(c call) error {
	var err error
	if f.hook != nil {
		err = f.hook(c)
	}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	return err
}

func (f *fakeTransport) callsOf(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTransport) allCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeTransport) find(kind domain.Kind, id string) (int, bool) {
	for i, r := range f.records[kind] {
		if r.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (f *fakeTransport) List(ctx context.Context, kind domain.Kind) ([]domain.Record, error) {
	if err := f.serve(call{op: "list", kind: kind}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Record, 0, len(f.records[kind]))
	for _, r := range f.records[kind] {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (f *fakeTransport) Get(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	if err := f.serve(call{op: "get", kind: kind, id: id}); err != nil {
		return domain.Record{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.find(kind, id)
	if !ok {
		return domain.Record{}, fmt.Errorf("%s %s not found", kind, id)
	}
	return f.records[kind][i].Clone(), nil
}

func (f *fakeTransport) Create(ctx context.Context, kind domain.Kind, rec domain.Record) (domain.Record, error) {
	label := domain.MustLookup(kind).LabelOf(rec)
	if err := f.serve(call{op: "create", kind: kind, value: label}); err != nil {
		return domain.Record{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	created := rec.Clone()
	created.ID = fmt.Sprintf("%s-%d", kind, f.next)
	f.records[kind] = append(f.records[kind], created)
	return created.Clone(), nil
}

func (f *fakeTransport) UpdateAttribute(ctx context.Context, kind domain.Kind, id, attr, value string) error {
	if err := f.serve(call{op: "update", kind: kind, id: id, attr: attr, value: value}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.find(kind, id); ok {
		f.records[kind][i].Attrs[attr] = value
	}
	return nil
}

func (f *fakeTransport) SetRelation(ctx context.Context, kind domain.Kind, id, relation, relID string) error {
	if err := f.serve(call{op: "relate", kind: kind, id: id, attr: relation, value: relID}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.find(kind, id); ok {
		f.records[kind][i].Relations[relation] = relID
	}
	return nil
}

func (f *fakeTransport) Remove(ctx context.Context, kind domain.Kind, id string) error {
	if err := f.serve(call{op: "remove", kind: kind, id: id}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.find(kind, id)
	if !ok {
		return fmt.Errorf("%s %s not found", kind, id)
	}
	f.records[kind] = append(f.records[kind][:i], f.records[kind][i+1:]...)
	return nil
}
