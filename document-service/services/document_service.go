package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"transparencia-backend/shared/catalog"
	"transparencia-backend/shared/database/models/document"
	"transparencia-backend/shared/logger"
	"transparencia-backend/shared/storage"
	docUtils "transparencia-backend/shared/utils/document"
	"transparencia-backend/shared/utils/query"
)

// UploadLimits bounds the files accepted for documents
type UploadLimits struct {
	MaxBytes           int64
	AllowedExtensions  []string
	DefaultInstitution string
}

// UploadObserver is notified of stored bytes
type UploadObserver interface {
	RecordUpload(bytes int64)
}

// FileInput is an uploaded file
type FileInput struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// DocumentInput carries the document fields sent by the admin panel. Nil
// pointers are left untouched on update.
type DocumentInput struct {
	Name           *string
	Description    *string
	CatalogID      *uint
	DocumentTypeID *uint
	FiscalYear     *int
	Periodicity    *string
	Institution    *string
	PublishedAt    *time.Time
}

// ListParams filter the admin document listing
type ListParams struct {
	Page       int
	PageSize   int
	Search     string
	CatalogID  *uint
	FiscalYear *int
}

// ListResult is one page of the admin listing
type ListResult struct {
	Documents  []document.Document `json:"documents"`
	Pagination catalog.Pagination  `json:"pagination"`
}

// CatalogStats counts the active documents of one catalog
type CatalogStats struct {
	CatalogID    uint                  `json:"catalog_id"`
	Total        int64                 `json:"total"`
	ByFiscalYear []catalog.CountBucket `json:"by_fiscal_year"`
}

// DocumentService manages document records and their stored files
type DocumentService struct {
	db       *gorm.DB
	tree     *catalog.TreeStore
	store    storage.ObjectStore
	limits   UploadLimits
	observer UploadObserver
	now      func() time.Time
}

// NewDocumentService creates the service. observer may be nil.
func NewDocumentService(db *gorm.DB, tree *catalog.TreeStore, store storage.ObjectStore, limits UploadLimits, observer UploadObserver) *DocumentService {
	return &DocumentService{db: db, tree: tree, store: store, limits: limits, observer: observer, now: time.Now}
}

// Create stores the file under the catalog prefix and inserts the record. The
// catalog must be active and accept documents.
func (s *DocumentService) Create(ctx context.Context, in DocumentInput, file *FileInput, userID *uuid.UUID) (*document.Document, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, &catalog.ValidationError{Field: "name", Message: "is required"}
	}
	if in.CatalogID == nil {
		return nil, &catalog.ValidationError{Field: "catalog_id", Message: "is required"}
	}
	if file == nil {
		return nil, &catalog.ValidationError{Field: "file", Message: "is required"}
	}
	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}
	if err := s.validateFile(file); err != nil {
		return nil, err
	}

	doc := &document.Document{
		Name:        strings.TrimSpace(*in.Name),
		CatalogID:   *in.CatalogID,
		FiscalYear:  s.now().Year(),
		Institution: s.limits.DefaultInstitution,
		Active:      true,
		CreatedBy:   userID,
	}
	applyDocumentInput(doc, in)

	key, err := s.putFile(ctx, doc.CatalogID, file)
	if err != nil {
		return nil, err
	}
	setFile(doc, key, file)

	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		s.removeObject(ctx, key)
		return nil, fmt.Errorf("save document: %w", err)
	}

	logger.L().Info("document created", "document_id", doc.ID, "catalog_id", doc.CatalogID, "key", key)
	return s.load(ctx, doc.ID)
}

// Update changes metadata and optionally replaces the stored file. The
// previous object is deleted once the new one is committed.
func (s *DocumentService) Update(ctx context.Context, id uint, in DocumentInput, file *FileInput, userID *uuid.UUID) (*document.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, &catalog.ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if in.CatalogID != nil && *in.CatalogID == doc.CatalogID {
		in.CatalogID = nil
	}
	if err := s.validateInput(ctx, in); err != nil {
		return nil, err
	}

	applyDocumentInput(doc, in)
	doc.UpdatedBy = userID

	oldKey := ""
	if file != nil {
		if err := s.validateFile(file); err != nil {
			return nil, err
		}
		key, err := s.putFile(ctx, doc.CatalogID, file)
		if err != nil {
			return nil, err
		}
		oldKey = doc.FilePath
		setFile(doc, key, file)
	}

	doc.Catalog = nil
	doc.DocumentType = nil
	if err := s.db.WithContext(ctx).Save(doc).Error; err != nil {
		if file != nil {
			s.removeObject(ctx, doc.FilePath)
		}
		return nil, fmt.Errorf("update document %d: %w", id, err)
	}

	if oldKey != "" && oldKey != doc.FilePath {
		s.removeObject(ctx, oldKey)
	}
	return s.load(ctx, id)
}

// Delete hides a document. The stored file is kept.
func (s *DocumentService) Delete(ctx context.Context, id uint, userID *uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&document.Document{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{"active": false, "updated_by": userID})
	if res.Error != nil {
		return fmt.Errorf("delete document %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &catalog.NotFoundError{Entity: "document", ID: id}
	}
	logger.L().Info("document deleted", "document_id", id)
	return nil
}

// Get returns an active document
func (s *DocumentService) Get(ctx context.Context, id uint) (*document.Document, error) {
	return s.load(ctx, id)
}

// List returns a page of active documents, newest first
func (s *DocumentService) List(ctx context.Context, p ListParams) (*ListResult, error) {
	if p.Page < 1 {
		p.Page = catalog.DefaultPage
	}
	if p.PageSize < 1 || p.PageSize > catalog.MaxPageSize {
		p.PageSize = catalog.DefaultPageSize
	}

	q := s.db.WithContext(ctx).Model(&document.Document{}).Where("documents.active = ?", true)
	if p.CatalogID != nil {
		q = q.Where("documents.catalog_id = ?", *p.CatalogID)
	}
	if p.FiscalYear != nil {
		q = q.Where("documents.fiscal_year = ?", *p.FiscalYear)
	}
	q = query.ApplySearch(q, p.Search, []string{"documents.name", "documents.description"})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	docs := make([]document.Document, 0)
	err := query.ApplyPagination(q.Preload("Catalog").Preload("DocumentType").
		Order("documents.created_at DESC").Order("documents.id DESC"), p.Page, p.PageSize).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	return &ListResult{Documents: docs, Pagination: catalog.NewPagination(p.Page, p.PageSize, total)}, nil
}

// StatsByCatalog counts the active documents of a catalog per fiscal year
func (s *DocumentService) StatsByCatalog(ctx context.Context, catalogID uint) (*CatalogStats, error) {
	if _, err := s.tree.Get(ctx, catalogID); err != nil {
		return nil, err
	}

	st := &CatalogStats{CatalogID: catalogID, ByFiscalYear: []catalog.CountBucket{}}
	base := s.db.WithContext(ctx).Model(&document.Document{}).Where("catalog_id = ? AND active = ?", catalogID, true)
	if err := base.Session(&gorm.Session{}).Count(&st.Total).Error; err != nil {
		return nil, fmt.Errorf("count catalog documents: %w", err)
	}
	err := base.Session(&gorm.Session{}).
		Select("CAST(fiscal_year AS VARCHAR(10)) AS key, COUNT(*) AS count").
		Group("fiscal_year").
		Order("fiscal_year DESC").
		Scan(&st.ByFiscalYear).Error
	if err != nil {
		return nil, fmt.Errorf("group catalog documents: %w", err)
	}
	return st, nil
}

// Count returns the number of active documents
func (s *DocumentService) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&document.Document{}).Where("active = ?", true).Count(&n).Error
	return n, err
}

// Open returns the stored file of a document
func (s *DocumentService) Open(ctx context.Context, doc *document.Document) (io.ReadCloser, *storage.ObjectInfo, error) {
	rc, info, err := s.store.Get(ctx, doc.FilePath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, &catalog.NotFoundError{Entity: "file of document", ID: doc.ID}
	}
	return rc, info, err
}

func (s *DocumentService) load(ctx context.Context, id uint) (*document.Document, error) {
	var doc document.Document
	err := s.db.WithContext(ctx).
		Preload("Catalog").
		Preload("DocumentType").
		Where("id = ? AND active = ?", id, true).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &catalog.NotFoundError{Entity: "document", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load document %d: %w", id, err)
	}
	return &doc, nil
}

func (s *DocumentService) validateInput(ctx context.Context, in DocumentInput) error {
	if in.Periodicity != nil && *in.Periodicity != "" && !document.ValidPeriodicity(*in.Periodicity) {
		return &catalog.ValidationError{Field: "periodicity", Message: "must be one of mensual, trimestral, semestral, anual"}
	}
	if in.FiscalYear != nil && (*in.FiscalYear < 1900 || *in.FiscalYear > 2100) {
		return &catalog.ValidationError{Field: "fiscal_year", Message: "is out of range"}
	}

	if in.CatalogID != nil {
		c, err := s.tree.Get(ctx, *in.CatalogID)
		if err != nil {
			return err
		}
		if !c.AcceptsDocuments {
			return &catalog.ConflictError{
				Reason:  catalog.ReasonRejectsDocuments,
				Message: fmt.Sprintf("catalog %q does not accept documents", c.Name),
			}
		}
	}

	if in.DocumentTypeID != nil {
		var n int64
		err := s.db.WithContext(ctx).Model(&document.DocumentType{}).
			Where("id = ? AND active = ?", *in.DocumentTypeID, true).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("check document type: %w", err)
		}
		if n == 0 {
			return &catalog.NotFoundError{Entity: "document type", ID: *in.DocumentTypeID}
		}
	}
	return nil
}

func (s *DocumentService) validateFile(file *FileInput) error {
	if err := docUtils.ValidateFile(file.Name, file.Size, s.limits.MaxBytes, s.limits.AllowedExtensions); err != nil {
		return &catalog.ValidationError{Field: "file", Message: err.Error()}
	}
	return nil
}

func (s *DocumentService) putFile(ctx context.Context, catalogID uint, file *FileInput) (string, error) {
	ext := docUtils.Extension(file.Name)
	key := docUtils.ObjectKey(docUtils.CatalogPrefix(catalogID), ext)
	if err := s.store.Put(ctx, key, file.Reader, file.Size, docUtils.MimeType(ext, file.ContentType)); err != nil {
		return "", fmt.Errorf("store document file: %w", err)
	}
	if s.observer != nil {
		s.observer.RecordUpload(file.Size)
	}
	return key, nil
}

func (s *DocumentService) removeObject(ctx context.Context, key string) {
	if err := s.store.Remove(ctx, key); err != nil {
		logger.L().Warn("failed to remove stored file", "key", key, "error", err)
	}
}

func setFile(doc *document.Document, key string, file *FileInput) {
	ext := docUtils.Extension(file.Name)
	doc.FilePath = key
	doc.FileExtension = strings.TrimPrefix(ext, ".")
	doc.FileSize = file.Size
	doc.MimeType = docUtils.MimeType(ext, file.ContentType)
}

func applyDocumentInput(doc *document.Document, in DocumentInput) {
	if in.Name != nil {
		doc.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		doc.Description = *in.Description
	}
	if in.CatalogID != nil {
		doc.CatalogID = *in.CatalogID
	}
	if in.DocumentTypeID != nil {
		doc.DocumentTypeID = in.DocumentTypeID
	}
	if in.FiscalYear != nil {
		doc.FiscalYear = *in.FiscalYear
	}
	if in.Periodicity != nil {
		doc.Periodicity = *in.Periodicity
	}
	if in.Institution != nil && strings.TrimSpace(*in.Institution) != "" {
		doc.Institution = strings.TrimSpace(*in.Institution)
	}
	if in.PublishedAt != nil {
		doc.PublishedAt = in.PublishedAt
	}
}
