package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/dbtest"
	"transparencia-backend/shared/database/models/document"
	"transparencia-backend/shared/storage"
)

type uploadCounter struct{ bytes int64 }

func (u *uploadCounter) RecordUpload(n int64) { u.bytes += n }

type fixture struct {
	db       *gorm.DB
	store    *storage.MemoryStore
	observer *uploadCounter
	svc      *DocumentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t, &document.Catalog{}, &document.DocumentType{}, &document.Document{})
	store := storage.NewMemoryStore()
	observer := &uploadCounter{}
	svc := NewDocumentService(db, catalog.NewTreeStore(db, nil), store, UploadLimits{
		MaxBytes:           64,
		AllowedExtensions:  []string{".csv", ".pdf"},
		DefaultInstitution: "Gobierno del Estado",
	}, observer)
	svc.now = func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) }
	return &fixture{db: db, store: store, observer: observer, svc: svc}
}

func (f *fixture) catalog(t *testing.T, name string, accepts bool) *document.Catalog {
	t.Helper()
	c := &document.Catalog{Name: name, Active: true, AcceptsDocuments: accepts}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func csvFile(content string) *FileInput {
	return &FileInput{Name: "datos.CSV", Size: int64(len(content)), Reader: strings.NewReader(content)}
}

func str(s string) *string { return &s }
func id(v uint) *uint      { return &v }

func TestCreateAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	c := f.catalog(t, "Nómina", true)

	doc, err := f.svc.Create(context.Background(), DocumentInput{Name: str("  Nómina enero "), CatalogID: id(c.ID)}, csvFile("a,b"), nil)
	require.NoError(t, err)

	assert.Equal(t, "Nómina enero", doc.Name)
	assert.Equal(t, 2025, doc.FiscalYear)
	assert.Equal(t, "Gobierno del Estado", doc.Institution)
	assert.Equal(t, "csv", doc.FileExtension)
	assert.Equal(t, "text/csv", doc.MimeType)
	assert.True(t, strings.HasPrefix(doc.FilePath, "catalogo-"))
	require.NotNil(t, doc.Catalog)
	assert.Equal(t, c.ID, doc.Catalog.ID)
	assert.Equal(t, int64(3), f.observer.bytes)
	assert.Equal(t, []string{doc.FilePath}, f.store.Keys())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.catalog(t, "Contratos", true)
	retired := &document.DocumentType{Name: "DBF", Extensions: "dbf"}
	require.NoError(t, f.db.Create(retired).Error)

	_, err := f.svc.Create(ctx, DocumentInput{CatalogID: id(c.ID)}, csvFile("x"), nil)
	_, isValidation := catalog.AsValidation(err)
	assert.True(t, isValidation)

	_, err = f.svc.Create(ctx, DocumentInput{Name: str("x"), CatalogID: id(c.ID), DocumentTypeID: id(retired.ID)}, csvFile("x"), nil)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = f.svc.Create(ctx, DocumentInput{Name: str("x"), CatalogID: id(c.ID)}, csvFile(strings.Repeat("x", 65)), nil)
	_, isValidation = catalog.AsValidation(err)
	assert.True(t, isValidation)

	year := 1800
	_, err = f.svc.Create(ctx, DocumentInput{Name: str("x"), CatalogID: id(c.ID), FiscalYear: &year}, csvFile("x"), nil)
	_, isValidation = catalog.AsValidation(err)
	assert.True(t, isValidation)

	assert.Empty(t, f.store.Keys())
	assert.Zero(t, f.observer.bytes)
}

func TestUpdateMovesOnlyToAcceptingCatalogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.catalog(t, "Origen", true)
	to := f.catalog(t, "Destino", true)
	section := f.catalog(t, "Sección", false)

	doc, err := f.svc.Create(ctx, DocumentInput{Name: str("Informe"), CatalogID: id(from.ID)}, csvFile("1"), nil)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, doc.ID, DocumentInput{CatalogID: id(section.ID)}, nil, nil)
	ce, isConflict := catalog.AsConflict(err)
	require.True(t, isConflict)
	assert.Equal(t, catalog.ReasonRejectsDocuments, ce.Reason)

	// unchanged catalog skips the check
	_, err = f.svc.Update(ctx, doc.ID, DocumentInput{CatalogID: id(from.ID)}, nil, nil)
	require.NoError(t, err)

	moved, err := f.svc.Update(ctx, doc.ID, DocumentInput{CatalogID: id(to.ID), Institution: str("  ")}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, to.ID, moved.CatalogID)
	assert.Equal(t, "Gobierno del Estado", moved.Institution)
	assert.Equal(t, doc.FilePath, moved.FilePath)
}

func TestDeleteAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.catalog(t, "Obras", true)

	var ids []uint
	for _, year := range []int{2022, 2023, 2023} {
		y := year
		doc, err := f.svc.Create(ctx, DocumentInput{Name: str("Obra"), CatalogID: id(c.ID), FiscalYear: &y}, csvFile("x"), nil)
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}

	require.NoError(t, f.svc.Delete(ctx, ids[0], nil))
	assert.ErrorIs(t, f.svc.Delete(ctx, ids[0], nil), catalog.ErrNotFound)
	_, err := f.svc.Get(ctx, ids[0])
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	// the stored file survives a soft delete
	assert.Len(t, f.store.Keys(), 3)

	st, err := f.svc.StatsByCatalog(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Total)
	assert.Equal(t, []catalog.CountBucket{{Key: "2023", Count: 2}}, st.ByFiscalYear)

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	res, err := f.svc.List(ctx, ListParams{PageSize: 1})
	require.NoError(t, err)
	assert.Len(t, res.Documents, 1)
	assert.Equal(t, int64(2), res.Pagination.Total)

	_, err = f.svc.StatsByCatalog(ctx, 999)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestOpenMissingObject(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Open(context.Background(), &document.Document{ID: 4, FilePath: "catalogo-1/missing.pdf"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
