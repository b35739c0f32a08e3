package validator

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
)

var AllowedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".docx": true,
	".md":   true,
}

const allowedExtensionsList = ".pdf, .txt, .docx, .md"

// Validator validates file uploads and chat requests
type Validator struct {
	cfg config.FileUploadConfig
}

func NewValidator(cfg config.FileUploadConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateUpload validates a batch of uploaded files as a whole
func (v *Validator) ValidateUpload(files []*multipart.FileHeader) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: file", entity.ErrMissingField)
	}

	if len(files) > v.cfg.MaxFileCount {
		return fmt.Errorf("%w: maximum %d files allowed, got %d", entity.ErrTooManyFiles, v.cfg.MaxFileCount, len(files))
	}

	var totalSize int64
	for _, fh := range files {
		totalSize += fh.Size
	}

	if v.cfg.MaxTotalSize > 0 && totalSize > v.cfg.MaxTotalSize {
		return fmt.Errorf("%w: total size is %d bytes (max %d)", entity.ErrTotalSizeTooLarge, totalSize, v.cfg.MaxTotalSize)
	}

	return nil
}

// ValidateFile validates a single uploaded file
func (v *Validator) ValidateFile(fh *multipart.FileHeader) error {
	if err := ValidateExtension(fh.Filename); err != nil {
		return err
	}

	if fh.Size > v.cfg.MaxFileSize {
		return fmt.Errorf("%w: file '%s' is %d bytes (max %d)", entity.ErrFileTooLarge, fh.Filename, fh.Size, v.cfg.MaxFileSize)
	}

	if SanitizeFilename(fh.Filename) == "" {
		return fmt.Errorf("%w: empty filename", entity.ErrInvalidFile)
	}

	return nil
}

// ValidateExtension checks the filename against the supported document formats
func ValidateExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedExtensions[ext] {
		if ext == "" {
			ext = "(none)"
		}
		return fmt.Errorf("%w: unsupported file type %s. Allowed: %s", entity.ErrInvalidExtension, ext, allowedExtensionsList)
	}
	return nil
}

// SanitizeFilename sanitizes a filename for safe storage
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, filename)
	filename = strings.TrimSpace(strings.TrimLeft(filename, "."))
	if filename == "/" {
		return ""
	}
	return filename
}
