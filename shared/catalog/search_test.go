package catalog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models/document"
)

type searchCounter struct{ n int }

func (s *searchCounter) RecordSearch() { s.n++ }

type searchFixture struct {
	db      *gorm.DB
	search  *catalog.DocumentSearch
	tree    tree
	counter *searchCounter
}

func newSearch(t *testing.T) (*catalog.DocumentSearch, tree, *searchCounter, func(*document.Catalog, string, ...docOpt) *document.Document) {
	t.Helper()
	f := newSearchFixture(t)
	add := func(c *document.Catalog, name string, opts ...docOpt) *document.Document {
		return mustDocument(t, f.db, c, name, opts...)
	}
	return f.search, f.tree, f.counter, add
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	db := newTestDB(t)
	counter := &searchCounter{}
	return &searchFixture{
		db:      db,
		search:  catalog.NewDocumentSearch(db, catalog.NewDescendantResolver(db, nil), counter),
		tree:    buildTree(t, db),
		counter: counter,
	}
}

func TestSearchScopedToSubtree(t *testing.T) {
	s, tr, counter, add := newSearch(t)
	ctx := context.Background()

	inX := add(tr.X, "Informe X")
	inZ := add(tr.Z, "Informe Z")
	inW := add(tr.W, "Informe W")
	add(tr.U, "Bajo rama inactiva")
	add(tr.B, "Fuera de alcance")
	add(tr.Y, "Retirado", inactiveDoc())

	res, err := s.Search(ctx, catalog.SearchParams{CatalogID: &tr.X.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{inX.ID, inZ.ID, inW.ID}, documentIDs(res.Documents))
	assert.Equal(t, int64(3), res.Pagination.Total)
	assert.Equal(t, 1, counter.n)
}

func TestSearchCatalogListOverridesSingleID(t *testing.T) {
	s, tr, _, add := newSearch(t)

	add(tr.X, "En X")
	inB := add(tr.B, "En B")

	res, err := s.Search(context.Background(), catalog.SearchParams{
		CatalogID: &tr.X.ID,
		Catalogs:  []uint{tr.A.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{inB.ID}, documentIDs(res.Documents))
}

func TestSearchUnscoped(t *testing.T) {
	s, tr, _, add := newSearch(t)
	add(tr.X, "Uno")
	add(tr.U, "Dos")

	res, err := s.Search(context.Background(), catalog.SearchParams{})
	require.NoError(t, err)
	assert.Len(t, res.Documents, 2)
}

func TestSearchTextTerm(t *testing.T) {
	s, tr, _, add := newSearch(t)
	ctx := context.Background()

	byName := add(tr.X, "Presupuesto 2024")
	byDesc := add(tr.Y, "Anexo", describedAs("detalle del presupuesto"))
	add(tr.W, "Nómina")

	res, err := s.Search(ctx, catalog.SearchParams{Query: "PRESUPUESTO"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{byName.ID, byDesc.ID}, documentIDs(res.Documents))

	t.Run("single character is ignored", func(t *testing.T) {
		res, err := s.Search(ctx, catalog.SearchParams{Query: "p"})
		require.NoError(t, err)
		assert.Len(t, res.Documents, 3)
	})
}

func TestSearchExactFilters(t *testing.T) {
	f := newSearchFixture(t)
	s, tr, db := f.search, f.tree, f.db
	ctx := context.Background()
	csv := mustType(t, db, "CSV", "csv")
	add := func(c *document.Catalog, name string, opts ...docOpt) *document.Document {
		return mustDocument(t, db, c, name, opts...)
	}

	match := add(tr.X, "Cuenta pública", fiscalYear(2023), periodicity(document.PeriodicityAnnual),
		institution("Secretaría de Hacienda"), ofType(csv))
	add(tr.X, "Otro año", fiscalYear(2022), periodicity(document.PeriodicityAnnual), ofType(csv))
	add(tr.X, "Otra periodicidad", fiscalYear(2023), periodicity(document.PeriodicityMonthly), ofType(csv))
	add(tr.X, "Sin tipo", fiscalYear(2023), periodicity(document.PeriodicityAnnual))

	res, err := s.Search(ctx, catalog.SearchParams{
		FiscalYear:     intPtr(2023),
		Periodicity:    document.PeriodicityAnnual,
		DocumentTypeID: uintPtr(csv.ID),
		Institution:    "hacienda",
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, match.ID, res.Documents[0].ID)
	require.NotNil(t, res.Documents[0].DocumentType)
	assert.Equal(t, "CSV", res.Documents[0].DocumentType.Name)
	require.NotNil(t, res.Documents[0].Catalog)
	assert.Equal(t, tr.X.ID, res.Documents[0].Catalog.ID)
}

func TestSearchPaginationAndSort(t *testing.T) {
	s, tr, _, add := newSearch(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var created []*document.Document
	for i := 0; i < 5; i++ {
		created = append(created, add(tr.X, fmt.Sprintf("Doc %d", i), createdAt(base.Add(time.Duration(i)*time.Hour))))
	}

	res, err := s.Search(ctx, catalog.SearchParams{Page: 2, PageSize: 2, SortBy: "bogus"})
	require.NoError(t, err)
	assert.Equal(t, []uint{created[2].ID, created[1].ID}, documentIDs(res.Documents))
	assert.Equal(t, catalog.Pagination{
		Page: 2, PageSize: 2, Total: 5, TotalPages: 3, HasNextPage: true, HasPrevPage: true,
	}, res.Pagination)

	res, err = s.Search(ctx, catalog.SearchParams{SortBy: catalog.SortName, Order: "ASC", PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint{created[0].ID}, documentIDs(res.Documents))
	assert.False(t, res.Pagination.HasPrevPage)

	res, err = s.Search(ctx, catalog.SearchParams{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
	assert.Equal(t, int64(5), res.Pagination.Total)
}

func TestSearchParamsNormalize(t *testing.T) {
	p := catalog.SearchParams{PageSize: 1000}
	p.Normalize()
	assert.Equal(t, catalog.DefaultPage, p.Page)
	assert.Equal(t, catalog.MaxPageSize, p.PageSize)
	assert.Equal(t, catalog.SortPublishedAt, p.SortBy)
	assert.Equal(t, "desc", p.Order)

	p = catalog.SearchParams{SortBy: "size", Order: "asc"}
	p.Normalize()
	assert.Equal(t, catalog.DefaultPageSize, p.PageSize)
	assert.Equal(t, catalog.SortCreatedAt, p.SortBy)
	assert.Equal(t, "asc", p.Order)
}

func TestGetAndRecent(t *testing.T) {
	s, tr, _, add := newSearch(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	older := add(tr.X, "Viejo", createdAt(base))
	newer := add(tr.Y, "Nuevo", createdAt(base.Add(time.Hour)))
	hidden := add(tr.Y, "Oculto", inactiveDoc())

	got, err := s.Get(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nuevo", got.Name)

	_, err = s.Get(ctx, hidden.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	recent, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{newer.ID, older.ID}, documentIDs(recent))
}

func TestAvailableFiltersAndStatistics(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	csv := mustType(t, db, "CSV", "csv")
	pdf := mustType(t, db, "PDF", "pdf")

	root := mustCatalog(t, db, "Raíz", acceptsDocuments())
	child := mustCatalog(t, db, "Hijo", withParent(root), acceptsDocuments())
	deep := mustCatalog(t, db, "Profundo", withParent(child), acceptsDocuments())
	mustCatalog(t, db, "Sin documentos")

	mustDocument(t, db, root, "a", fiscalYear(2023), ofType(csv), institution("SH"))
	mustDocument(t, db, child, "b", fiscalYear(2024), ofType(csv), institution("SA"))
	mustDocument(t, db, deep, "c", fiscalYear(2024), ofType(pdf), institution("SH"))
	mustDocument(t, db, deep, "d", fiscalYear(2020), inactiveDoc())

	s := catalog.NewDocumentSearch(db, catalog.NewDescendantResolver(db, nil), nil)

	f, err := s.AvailableFilters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2023}, f.FiscalYears)
	assert.Equal(t, []string{"SA", "SH"}, f.Institutions)
	assert.Len(t, f.DocumentTypes, 2)
	assert.Len(t, f.Periodicities, 4)
	catalogIDs := make([]uint, len(f.Catalogs))
	for i, c := range f.Catalogs {
		catalogIDs[i] = c.ID
	}
	assert.ElementsMatch(t, ids(root, child), catalogIDs)

	st, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Total)
	assert.Equal(t, []catalog.CountBucket{{Key: "2024", Count: 2}, {Key: "2023", Count: 1}}, st.ByFiscalYear)
	assert.Equal(t, []catalog.CountBucket{{Key: "CSV", Count: 2}, {Key: "PDF", Count: 1}}, st.ByDocumentType)
}
