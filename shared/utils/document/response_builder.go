package document

import (
	"fmt"
	"strings"
	"time"

	"transparencia-backend/shared/database/models/document"
)

// DocumentResponse is the public representation of a document
type DocumentResponse struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	CatalogID        uint       `json:"catalog_id"`
	CatalogName      string     `json:"catalog_name,omitempty"`
	DocumentTypeID   *uint      `json:"document_type_id"`
	DocumentTypeName string     `json:"document_type_name,omitempty"`
	FiscalYear       int        `json:"fiscal_year"`
	Periodicity      string     `json:"periodicity"`
	Institution      string     `json:"institution"`
	Extension        string     `json:"extension"`
	Size             int64      `json:"size"`
	MimeType         string     `json:"mime_type"`
	PublishedAt      *time.Time `json:"published_at"`
	CreatedAt        time.Time  `json:"created_at"`
	DownloadURL      string     `json:"download_url"`
	ViewURL          string     `json:"view_url"`
}

// BuildDocumentResponse creates a standardized document response. baseURL is
// the public API origin the download links are built on.
func BuildDocumentResponse(doc *document.Document, baseURL string) DocumentResponse {
	base := strings.TrimSuffix(baseURL, "/")
	resp := DocumentResponse{
		ID:             doc.ID,
		Name:           doc.Name,
		Description:    doc.Description,
		CatalogID:      doc.CatalogID,
		DocumentTypeID: doc.DocumentTypeID,
		FiscalYear:     doc.FiscalYear,
		Periodicity:    doc.Periodicity,
		Institution:    doc.Institution,
		Extension:      doc.FileExtension,
		Size:           doc.FileSize,
		MimeType:       doc.MimeType,
		PublishedAt:    doc.PublishedAt,
		CreatedAt:      doc.CreatedAt,
		DownloadURL:    fmt.Sprintf("%s/api/public/documents/%d/download", base, doc.ID),
		ViewURL:        fmt.Sprintf("%s/api/public/documents/%d/view", base, doc.ID),
	}
	if doc.Catalog != nil {
		resp.CatalogName = doc.Catalog.Name
	}
	if doc.DocumentType != nil {
		resp.DocumentTypeName = doc.DocumentType.Name
	}
	return resp
}

// BuildDocumentResponses maps a page of documents
func BuildDocumentResponses(docs []document.Document, baseURL string) []DocumentResponse {
	out := make([]DocumentResponse, len(docs))
	for i := range docs {
		out[i] = BuildDocumentResponse(&docs[i], baseURL)
	}
	return out
}
