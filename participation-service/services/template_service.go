package services

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"sync"

	"transparencia-backend/shared/logger"
)

// Template IDs
const (
	TemplateConfirmation  = "participation_confirmation"
	TemplateInternal      = "internal_notification"
	TemplateResponse      = "participation_response"
	TemplatePasswordReset = "password_reset"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// TemplateFS returns dir when it exists, the built-in templates otherwise
func TemplateFS(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
		logger.L().Warn("mail template directory not found, using built-in templates", "dir", dir)
	}
	sub, _ := fs.Sub(embeddedTemplates, "templates")
	return sub
}

// TemplateService handles rendering of email templates
type TemplateService struct {
	fsys          fs.FS
	templateCache map[string]*template.Template
	templateMutex sync.RWMutex
}

// NewTemplateService renders the <id>.html files of fsys
func NewTemplateService(fsys fs.FS) *TemplateService {
	return &TemplateService{
		fsys:          fsys,
		templateCache: make(map[string]*template.Template),
	}
}

// RenderTemplate renders an email template with provided data
func (ts *TemplateService) RenderTemplate(templateID string, data map[string]interface{}) (string, error) {
	ts.templateMutex.RLock()
	tmpl, exists := ts.templateCache[templateID]
	ts.templateMutex.RUnlock()

	if !exists {
		var err error
		tmpl, err = template.ParseFS(ts.fsys, templateID+".html")
		if err != nil {
			return "", fmt.Errorf("failed to parse template %s: %w", templateID, err)
		}

		ts.templateMutex.Lock()
		ts.templateCache[templateID] = tmpl
		ts.templateMutex.Unlock()
	}

	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateID, err)
	}

	return rendered.String(), nil
}

// ClearCache drops parsed templates so edited files are picked up
func (ts *TemplateService) ClearCache() {
	ts.templateMutex.Lock()
	ts.templateCache = make(map[string]*template.Template)
	ts.templateMutex.Unlock()
}
