package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"transparencia-backend/shared/database/models/document"
	"transparencia-backend/shared/utils/query"
)

// Search defaults and bounds
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Sort fields accepted by Search
const (
	SortName        = "name"
	SortPublishedAt = "published_at"
	SortFiscalYear  = "fiscal_year"
	SortCreatedAt   = "created_at"
)

var sortColumns = map[string]string{
	SortName:        "documents.name",
	SortPublishedAt: "documents.published_at",
	SortFiscalYear:  "documents.fiscal_year",
	SortCreatedAt:   "documents.created_at",
}

// SearchParams are already validated search inputs
type SearchParams struct {
	Query          string
	CatalogID      *uint
	Catalogs       []uint
	FiscalYear     *int
	DocumentTypeID *uint
	Periodicity    string
	Institution    string
	Page           int
	PageSize       int
	SortBy         string
	Order          string
}

// Normalize fills defaults and clamps bounds
func (p *SearchParams) Normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if _, ok := sortColumns[p.SortBy]; !ok {
		if p.SortBy == "" {
			p.SortBy = SortPublishedAt
		} else {
			p.SortBy = SortCreatedAt
		}
	}
	p.Order = strings.ToLower(p.Order)
	if p.Order != "asc" {
		p.Order = "desc"
	}
}

// Pagination is the page metadata returned with search results
type Pagination struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	Total       int64 `json:"total"`
	TotalPages  int64 `json:"total_pages"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

// NewPagination derives the page metadata from the total count
func NewPagination(page, pageSize int, total int64) Pagination {
	p := query.BuildPaginationResponse(page, pageSize, total)
	return Pagination{
		Page:        p.Page,
		PageSize:    p.Limit,
		Total:       p.Total,
		TotalPages:  p.TotalPages,
		HasNextPage: p.HasNext,
		HasPrevPage: p.HasPrev,
	}
}

// SearchResult is one page of documents
type SearchResult struct {
	Documents  []document.Document `json:"documents"`
	Pagination Pagination          `json:"pagination"`
}

// SearchObserver is notified of every executed search
type SearchObserver interface {
	RecordSearch()
}

// DocumentSearch answers catalog-scoped document queries
type DocumentSearch struct {
	db       *gorm.DB
	resolver *DescendantResolver
	observer SearchObserver
}

// NewDocumentSearch creates a searcher. observer may be nil.
func NewDocumentSearch(db *gorm.DB, resolver *DescendantResolver, observer SearchObserver) *DocumentSearch {
	return &DocumentSearch{db: db, resolver: resolver, observer: observer}
}

// Search returns one page of active documents matching params. The count and
// the page run concurrently from the same predicate without a transaction.
func (s *DocumentSearch) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	params.Normalize()
	if s.observer != nil {
		s.observer.RecordSearch()
	}

	scope, err := s.scope(ctx, params)
	if err != nil {
		return nil, err
	}

	var (
		total int64
		docs  []document.Document
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.filtered(gctx, params, scope).Model(&document.Document{}).Count(&total).Error
	})
	g.Go(func() error {
		q := s.filtered(gctx, params, scope).
			Preload("DocumentType").
			Preload("Catalog").
			Order(fmt.Sprintf("%s %s", sortColumns[params.SortBy], strings.ToUpper(params.Order))).
			Order("documents.id DESC")
		return query.ApplyPagination(q, params.Page, params.PageSize).Find(&docs).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}

	return &SearchResult{
		Documents:  docs,
		Pagination: NewPagination(params.Page, params.PageSize, total),
	}, nil
}

// scope resolves the catalog ids a search is restricted to; nil means unscoped.
// The catalog list takes precedence over the single catalog id.
func (s *DocumentSearch) scope(ctx context.Context, params SearchParams) ([]uint, error) {
	var starts []uint
	switch {
	case len(params.Catalogs) > 0:
		starts = params.Catalogs
	case params.CatalogID != nil:
		starts = []uint{*params.CatalogID}
	default:
		return nil, nil
	}
	return s.resolver.Resolve(ctx, starts...)
}

func (s *DocumentSearch) filtered(ctx context.Context, params SearchParams, scope []uint) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&document.Document{}).Where("documents.active = ?", true)

	if scope != nil {
		q = q.Where("documents.catalog_id IN ?", scope)
	}

	if term := strings.TrimSpace(params.Query); len([]rune(term)) >= MinSearchLength {
		pattern := query.LikePattern(term)
		q = q.Where("(LOWER(documents.name) LIKE ? ESCAPE '\\' OR LOWER(documents.description) LIKE ? ESCAPE '\\')", pattern, pattern)
	}
	if params.FiscalYear != nil {
		q = q.Where("documents.fiscal_year = ?", *params.FiscalYear)
	}
	if params.DocumentTypeID != nil {
		q = q.Where("documents.document_type_id = ?", *params.DocumentTypeID)
	}
	if params.Periodicity != "" {
		q = q.Where("documents.periodicity = ?", params.Periodicity)
	}
	if inst := strings.TrimSpace(params.Institution); inst != "" {
		q = q.Where("LOWER(documents.institution) LIKE ? ESCAPE '\\'", query.LikePattern(inst))
	}
	return q
}

// Get returns an active document with its type and catalog
func (s *DocumentSearch) Get(ctx context.Context, id uint) (*document.Document, error) {
	var d document.Document
	err := s.db.WithContext(ctx).
		Preload("DocumentType").
		Preload("Catalog").
		Where("id = ? AND active = ?", id, true).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("document", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %d: %w", id, err)
	}
	return &d, nil
}

// Recent returns the latest active documents
func (s *DocumentSearch) Recent(ctx context.Context, limit int) ([]document.Document, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = 10
	}
	var docs []document.Document
	err := s.db.WithContext(ctx).
		Preload("DocumentType").
		Preload("Catalog").
		Where("active = ?", true).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("load recent documents: %w", err)
	}
	return docs, nil
}

// Filters lists the facet values available to the public search form
type Filters struct {
	FiscalYears   []int                   `json:"fiscal_years"`
	DocumentTypes []document.DocumentType `json:"document_types"`
	Institutions  []string                `json:"institutions"`
	Catalogs      []document.Catalog      `json:"catalogs"`
	Periodicities []string                `json:"periodicities"`
}

// AvailableFilters collects distinct fiscal years (desc), active types,
// distinct institutions and the level 0/1 catalogs that accept documents
func (s *DocumentSearch) AvailableFilters(ctx context.Context) (*Filters, error) {
	f := &Filters{
		FiscalYears:   []int{},
		DocumentTypes: []document.DocumentType{},
		Institutions:  []string{},
		Catalogs:      []document.Catalog{},
		Periodicities: []string{
			document.PeriodicityMonthly,
			document.PeriodicityQuarterly,
			document.PeriodicityBiannual,
			document.PeriodicityAnnual,
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&document.Document{}).
			Where("active = ? AND fiscal_year > 0", true).
			Distinct().Order("fiscal_year DESC").
			Pluck("fiscal_year", &f.FiscalYears).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("active = ?", true).Order("name ASC").Find(&f.DocumentTypes).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&document.Document{}).
			Where("active = ? AND institution <> ''", true).
			Distinct().Order("institution ASC").
			Pluck("institution", &f.Institutions).Error
	})
	g.Go(func() error {
		return ordered(s.db.WithContext(gctx).
			Where("active = ? AND accepts_documents = ? AND level IN ?", true, true, []int{0, 1})).
			Find(&f.Catalogs).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load search filters: %w", err)
	}
	return f, nil
}

// CountBucket is one row of an aggregate count
type CountBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Stats summarizes the published documents
type Stats struct {
	Total          int64         `json:"total"`
	ByFiscalYear   []CountBucket `json:"by_fiscal_year"`
	ByDocumentType []CountBucket `json:"by_document_type"`
}

// Statistics counts active documents overall, per fiscal year and per type
func (s *DocumentSearch) Statistics(ctx context.Context) (*Stats, error) {
	st := &Stats{ByFiscalYear: []CountBucket{}, ByDocumentType: []CountBucket{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&document.Document{}).Where("active = ?", true).Count(&st.Total).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&document.Document{}).
			Select("CAST(fiscal_year AS VARCHAR(10)) AS key, COUNT(*) AS count").
			Where("active = ?", true).
			Group("fiscal_year").
			Order("fiscal_year DESC").
			Scan(&st.ByFiscalYear).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&document.Document{}).
			Select("document_types.name AS key, COUNT(*) AS count").
			Joins("INNER JOIN document_types ON document_types.id = documents.document_type_id").
			Where("documents.active = ?", true).
			Group("document_types.name").
			Order("count DESC").
			Scan(&st.ByDocumentType).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load document statistics: %w", err)
	}
	return st, nil
}
