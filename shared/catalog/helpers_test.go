package catalog_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"transparencia-backend/shared/database/dbtest"
	"transparencia-backend/shared/database/models/document"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.New(t,
		&document.Catalog{},
		&document.DocumentType{},
		&document.Periodicity{},
		&document.Document{},
	)
}

type catalogOpt func(*document.Catalog)

func withParent(p *document.Catalog) catalogOpt {
	return func(c *document.Catalog) {
		c.ParentID = &p.ID
		c.Level = p.Level + 1
	}
}

func withOrder(n int) catalogOpt {
	return func(c *document.Catalog) { c.SortOrder = n }
}

func acceptsDocuments() catalogOpt {
	return func(c *document.Catalog) { c.AcceptsDocuments = true }
}

func inactive() catalogOpt {
	return func(c *document.Catalog) { c.Active = false }
}

func mustCatalog(t *testing.T, db *gorm.DB, name string, opts ...catalogOpt) *document.Catalog {
	t.Helper()
	c := &document.Catalog{Name: name, Active: true}
	for _, opt := range opts {
		opt(c)
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func mustType(t *testing.T, db *gorm.DB, name, extensions string) *document.DocumentType {
	t.Helper()
	dt := &document.DocumentType{Name: name, Extensions: extensions, Active: true}
	require.NoError(t, db.Create(dt).Error)
	return dt
}

type docOpt func(*document.Document)

func ofType(dt *document.DocumentType) docOpt {
	return func(d *document.Document) { d.DocumentTypeID = &dt.ID }
}

func createdAt(ts time.Time) docOpt {
	return func(d *document.Document) { d.CreatedAt = ts }
}

func describedAs(desc string) docOpt {
	return func(d *document.Document) { d.Description = desc }
}

func fiscalYear(y int) docOpt {
	return func(d *document.Document) { d.FiscalYear = y }
}

func periodicity(p string) docOpt {
	return func(d *document.Document) { d.Periodicity = p }
}

func institution(i string) docOpt {
	return func(d *document.Document) { d.Institution = i }
}

func inactiveDoc() docOpt {
	return func(d *document.Document) { d.Active = false }
}

func mustDocument(t *testing.T, db *gorm.DB, c *document.Catalog, name string, opts ...docOpt) *document.Document {
	t.Helper()
	d := &document.Document{
		Name:          name,
		CatalogID:     c.ID,
		FilePath:      fmt.Sprintf("catalogo-%d/%s.csv", c.ID, uuid.NewString()),
		FileExtension: "csv",
		FileSize:      128,
		Active:        true,
	}
	for _, opt := range opts {
		opt(d)
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

func ids(catalogs ...*document.Catalog) []uint {
	out := make([]uint, len(catalogs))
	for i, c := range catalogs {
		out[i] = c.ID
	}
	return out
}

func documentIDs(docs []document.Document) []uint {
	out := make([]uint, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func uintPtr(u uint) *uint { return &u }
func intPtr(i int) *int    { return &i }
