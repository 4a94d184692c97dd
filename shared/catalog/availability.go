package catalog

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"transparencia-backend/shared/database/models/document"
)

// Availability tells whether a catalog holds an active document of one type
type Availability struct {
	TypeID       uint   `json:"type_id"`
	TypeName     string `json:"type_name"`
	Available    bool   `json:"available"`
	Extension    string `json:"extension"`
	DocumentID   *uint  `json:"document_id,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
}

// AvailabilityAggregator builds per-catalog, per-type availability records
type AvailabilityAggregator struct {
	db *gorm.DB
}

func NewAvailabilityAggregator(db *gorm.DB) *AvailabilityAggregator {
	return &AvailabilityAggregator{db: db}
}

type latestDocument struct {
	ID   uint
	Name string
}

// ForCatalogs returns, for every candidate that accepts documents, one record
// per active document type in type load order. Catalogs that do not accept
// documents never appear as keys.
func (a *AvailabilityAggregator) ForCatalogs(ctx context.Context, catalogs []document.Catalog) (map[uint][]Availability, error) {
	candidates := make([]uint, 0, len(catalogs))
	for _, c := range catalogs {
		if c.AcceptsDocuments {
			candidates = append(candidates, c.ID)
		}
	}
	result := make(map[uint][]Availability, len(candidates))
	if len(candidates) == 0 {
		return result, nil
	}

	var types []document.DocumentType
	if err := a.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").Order("id ASC").
		Find(&types).Error; err != nil {
		return nil, fmt.Errorf("load document types: %w", err)
	}

	var docs []document.Document
	if err := a.db.WithContext(ctx).
		Select("id", "name", "catalog_id", "document_type_id", "created_at").
		Where("catalog_id IN ? AND active = ?", candidates, true).
		Order("created_at DESC").Order("id DESC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("load documents for availability: %w", err)
	}

	// first seen under descending creation order is the most recent
	index := make(map[uint]map[uint]latestDocument, len(candidates))
	for _, d := range docs {
		if d.DocumentTypeID == nil {
			continue
		}
		byType, ok := index[d.CatalogID]
		if !ok {
			byType = make(map[uint]latestDocument)
			index[d.CatalogID] = byType
		}
		if _, seen := byType[*d.DocumentTypeID]; !seen {
			byType[*d.DocumentTypeID] = latestDocument{ID: d.ID, Name: d.Name}
		}
	}

	for _, catalogID := range candidates {
		records := make([]Availability, 0, len(types))
		for i := range types {
			t := &types[i]
			rec := Availability{
				TypeID:    t.ID,
				TypeName:  t.Name,
				Extension: t.PrimaryExtension(),
			}
			if doc, ok := index[catalogID][t.ID]; ok {
				id := doc.ID
				rec.Available = true
				rec.DocumentID = &id
				rec.DocumentName = doc.Name
			}
			records = append(records, rec)
		}
		result[catalogID] = records
	}
	return result, nil
}

// ForCatalog is ForCatalogs for a single catalog. It returns nil when the
// catalog does not accept documents.
func (a *AvailabilityAggregator) ForCatalog(ctx context.Context, c document.Catalog) ([]Availability, error) {
	m, err := a.ForCatalogs(ctx, []document.Catalog{c})
	if err != nil {
		return nil, err
	}
	return m[c.ID], nil
}
