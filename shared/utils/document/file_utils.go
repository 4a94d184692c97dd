package document

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".zip":  "application/zip",
	".rar":  "application/x-rar-compressed",
	".7z":   "application/x-7z-compressed",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// UploadError reports a rejected upload
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string {
	return e.Message
}

// Extension returns the lowercased extension of name including the dot
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// ValidateFile checks a file name and size against the limits
func ValidateFile(name string, size, maxBytes int64, allowed []string) error {
	if size == 0 {
		return &UploadError{Message: "file is empty"}
	}

	if maxBytes > 0 && size > maxBytes {
		return &UploadError{Message: fmt.Sprintf("file size exceeds %dMB limit", maxBytes/(1024*1024))}
	}

	ext := Extension(name)
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return &UploadError{Message: fmt.Sprintf("file type %q is not allowed; allowed: %s", ext, strings.Join(allowed, ", "))}
}

// ObjectKey generates a collision free object key under prefix keeping ext
func ObjectKey(prefix, ext string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + uuid.NewString() + ext
}

// CatalogPrefix is the object prefix of the documents of one catalog
func CatalogPrefix(catalogID uint) string {
	return fmt.Sprintf("catalogo-%d", catalogID)
}

// MimeType returns the content type for ext, preferring the declared one
func MimeType(ext, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if mt, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// DownloadFileName turns a document name into a header safe file name:
// accents are folded, anything outside letters, digits, dot, dash and
// underscore becomes an underscore, and ext is appended when missing
func DownloadFileName(name, ext string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		folded = name
	}

	safe := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return '_'
	}, folded)
	if safe == "" {
		safe = "documento"
	}

	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext != "" && !strings.HasSuffix(strings.ToLower(safe), "."+ext) {
		safe += "." + ext
	}
	return safe
}
