package document

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Catalog is a node of the topic hierarchy under which documents are organized
type Catalog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:255;not null" json:"name"`
	Description      string    `gorm:"type:text" json:"description"`
	LevelDescription string    `gorm:"size:255" json:"level_description"`
	Icon             string    `gorm:"size:100" json:"icon"`
	SortOrder        int       `gorm:"default:0;not null" json:"sort_order"`
	Level            int       `gorm:"default:0;not null;index" json:"level"`
	Active           bool      `gorm:"not null;index" json:"active"`
	AcceptsDocuments bool      `gorm:"default:false;not null" json:"accepts_documents"`
	ParentID         *uint     `gorm:"index" json:"parent_id"`
	Parent           *Catalog  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children         []Catalog `gorm:"foreignKey:ParentID" json:"children,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the catalog has no parent
func (c *Catalog) IsRoot() bool {
	return c.ParentID == nil
}

// DocumentType is a declared file-format class such as CSV, JSON, XML or Excel
type DocumentType struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Extensions string    `gorm:"size:255" json:"extensions"` // comma separated, e.g. "xlsx,xls"
	Active     bool      `gorm:"not null" json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PrimaryExtension returns the first declared extension lowercased, or the
// lowercased type name when no extension is declared
func (t *DocumentType) PrimaryExtension() string {
	first := strings.TrimSpace(strings.Split(t.Extensions, ",")[0])
	if first == "" {
		return strings.ToLower(t.Name)
	}
	return strings.ToLower(strings.TrimPrefix(first, "."))
}

// Periodicity tags accepted on documents and in search filters
const (
	PeriodicityMonthly   = "mensual"
	PeriodicityQuarterly = "trimestral"
	PeriodicityBiannual  = "semestral"
	PeriodicityAnnual    = "anual"
)

// ValidPeriodicity reports whether tag is one of the known periodicity tags
func ValidPeriodicity(tag string) bool {
	switch tag {
	case PeriodicityMonthly, PeriodicityQuarterly, PeriodicityBiannual, PeriodicityAnnual:
		return true
	}
	return false
}

// Periodicity is reference data describing a reporting period
type Periodicity struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	PortalName      string    `gorm:"size:100" json:"portal_name"`
	MonthsPerPeriod int       `gorm:"not null" json:"months_per_period"`
	PeriodsPerYear  int       `gorm:"not null" json:"periods_per_year"`
	Active          bool      `gorm:"not null" json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Document is a published file owned by exactly one catalog
type Document struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;not null;index" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	// Ownership
	CatalogID      uint          `gorm:"not null;index" json:"catalog_id"`
	Catalog        *Catalog      `gorm:"foreignKey:CatalogID" json:"catalog,omitempty"`
	DocumentTypeID *uint         `gorm:"index" json:"document_type_id"`
	DocumentType   *DocumentType `gorm:"foreignKey:DocumentTypeID" json:"document_type,omitempty"`

	// Classification
	FiscalYear  int    `gorm:"index" json:"fiscal_year"`
	Periodicity string `gorm:"size:20;index" json:"periodicity"`
	Institution string `gorm:"size:255" json:"institution"`

	// Stored file
	FilePath      string `gorm:"size:500;not null" json:"file_path"`
	FileExtension string `gorm:"size:20;not null" json:"file_extension"`
	FileSize      int64  `gorm:"not null" json:"file_size"`
	MimeType      string `gorm:"size:150" json:"mime_type"`

	PublishedAt *time.Time `gorm:"index" json:"published_at"`
	Active      bool       `gorm:"not null;index" json:"active"`

	// Timestamps and actors
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
}
