package console

import (
	"context"
	"errors"
	"testing"

	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var companyRel = domain.Relation{Name: "company", Target: domain.KindCompany}

func initResolver(t *testing.T) (*Resolver, *fakeTransport, *Catalog) {
	ft := newFakeTransport()
	catalog := NewCatalog()
	acme := ft.seed(domain.KindCompany, "c1", map[string]string{"name": "Acme"}, nil)
	catalog.Replace(domain.KindCompany, []domain.Record{acme})
	return NewResolver(ft, catalog, zerolog.Nop()), ft, catalog
}

func TestResolve(t *testing.T) {
	t.Run("Explicit id is returned unchanged", func(t *testing.T) {
		r, ft, _ := initResolver(t)

		res := r.Resolve(companyRel, "c1", RelationRef{ID: "c7"})
		assert.Equal(t, "c7", res.ID)
		assert.False(t, res.Create)
		assert.Empty(t, ft.allCalls(), "Expected no remote call")
	})

	t.Run("Neither id nor name keeps the current relation", func(t *testing.T) {
		r, _, _ := initResolver(t)

		res := r.Resolve(companyRel, "c1", RelationRef{Name: "   "})
		assert.Equal(t, "c1", res.ID)
		assert.False(t, res.Create)
	})

	t.Run("Name of the linked record with its id keeps it", func(t *testing.T) {
		r, ft, _ := initResolver(t)

		res := r.Resolve(companyRel, "c1", RelationRef{ID: "c1", Name: "Acme"})
		assert.Equal(t, "c1", res.ID)
		assert.False(t, res.Create)
		assert.False(t, res.Created)

		original := domain.NewRecord("r1")
		original.Relations["company"] = "c1"
		plan := BuildPlan(domain.KindRecipient, original, nil, []Resolution{res})
		assert.True(t, plan.Empty(), "Expected no operation for an unchanged relation")
		assert.Empty(t, ft.allCalls())
	})

	t.Run("Existing name is reused instead of duplicated", func(t *testing.T) {
		r, _, _ := initResolver(t)

		res := r.Resolve(companyRel, "", RelationRef{Name: " acme ", Create: true})
		assert.Equal(t, "c1", res.ID)
		assert.False(t, res.Create)
	})

	t.Run("Unknown name asks for a create", func(t *testing.T) {
		r, ft, _ := initResolver(t)

		res := r.Resolve(companyRel, "c1", RelationRef{Name: " Globex "})
		assert.True(t, res.Create)
		assert.Equal(t, "Globex", res.Name)
		assert.Empty(t, res.ID)
		assert.Empty(t, ft.allCalls(), "Expected Resolve itself to stay side-effect free")
	})
}

func TestResolveNow(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates the missing record and catalogs it", func(t *testing.T) {
		r, ft, catalog := initResolver(t)

		res, err := r.ResolveNow(ctx, companyRel, "", RelationRef{Name: "Globex"})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.NotEmpty(t, res.ID)

		creates := ft.callsOf("create")
		require.Len(t, creates, 1)
		assert.Equal(t, call{op: "create", kind: domain.KindCompany, value: "Globex"}, creates[0])

		found, ok := catalog.FindByLabel(domain.KindCompany, "globex")
		require.True(t, ok, "Expected the new company in the catalog without a refetch")
		assert.Equal(t, res.ID, found.ID)
		assert.Empty(t, ft.callsOf("list"))
	})

	t.Run("Nothing to create", func(t *testing.T) {
		r, ft, _ := initResolver(t)

		res, err := r.ResolveNow(ctx, companyRel, "c1", RelationRef{ID: "c1"})
		require.NoError(t, err)
		assert.Equal(t, "c1", res.ID)
		assert.Empty(t, ft.allCalls())
	})

	t.Run("Failed create leaves the catalog alone", func(t *testing.T) {
		r, ft, catalog := initResolver(t)
		ft.hook = func(c call) error {
			if c.op == "create" {
				return errors.New("boom")
			}
			return nil
		}

		_, err := r.ResolveNow(ctx, companyRel, "", RelationRef{Name: "Globex"})
		assert.Error(t, err)
		assert.Len(t, catalog.Records(domain.KindCompany), 1)
	})
}

func TestPrepare(t *testing.T) {
	ctx := context.Background()

	t.Run("Loads a kind never fetched", func(t *testing.T) {
		ft := newFakeTransport()
		ft.seed(domain.KindCompany, "c1", map[string]string{"name": "Acme"}, nil)
		catalog := NewCatalog()
		r := NewResolver(ft, catalog, zerolog.Nop())

		require.NoError(t, r.Prepare(ctx, companyRel, RelationRef{ID: "c1", Name: "Acme"}))
		assert.True(t, catalog.Loaded(domain.KindCompany))
		assert.Equal(t, []call{{op: "list", kind: domain.KindCompany}}, ft.allCalls())

		res := r.Resolve(companyRel, "c1", RelationRef{ID: "c1", Name: "Acme"})
		assert.Equal(t, "c1", res.ID)
		assert.False(t, res.Create)
	})

	t.Run("Selection by id alone needs no lookup", func(t *testing.T) {
		ft := newFakeTransport()
		r := NewResolver(ft, NewCatalog(), zerolog.Nop())

		require.NoError(t, r.Prepare(ctx, companyRel, RelationRef{ID: "c1"}))
		assert.Empty(t, ft.allCalls())
	})

	t.Run("Known id is not refetched", func(t *testing.T) {
		r, ft, _ := initResolver(t)

		require.NoError(t, r.Prepare(ctx, companyRel, RelationRef{ID: "c1", Name: "Acme"}))
		assert.Empty(t, ft.allCalls())
	})

	t.Run("Missing id fails the lookup", func(t *testing.T) {
		r, ft, _ := initResolver(t)

		err := r.Prepare(ctx, companyRel, RelationRef{ID: "c9", Name: "Initech"})
		assert.Error(t, err)
		assert.Equal(t, []call{{op: "get", kind: domain.KindCompany, id: "c9"}}, ft.allCalls())
	})
}
