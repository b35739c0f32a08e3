package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/futig/docchat-backend/internal/entity"
)

const (
	maxMessageLength = 8000
	maxTitleLength   = 200
)

// ValidateQuery validates a chat query and trims its message in place
func (v *Validator) ValidateQuery(req *entity.QueryRequest) error {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return entity.ErrEmptyMessage
	}

	if utf8.RuneCountInString(req.Message) > maxMessageLength {
		return fmt.Errorf("%w: message longer than %d characters", entity.ErrInvalidParameter, maxMessageLength)
	}

	if req.SessionID != nil {
		id := strings.TrimSpace(*req.SessionID)
		if id == "" {
			req.SessionID = nil
		} else {
			req.SessionID = &id
		}
	}

	return nil
}

// ValidateNewSession validates a new session request
func (v *Validator) ValidateNewSession(req *entity.NewSessionRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	if utf8.RuneCountInString(req.Title) > maxTitleLength {
		return fmt.Errorf("%w: title longer than %d characters", entity.ErrInvalidParameter, maxTitleLength)
	}
	return nil
}

// ParseExportFormat resolves the export format query parameter, markdown by default
func ParseExportFormat(raw string) (entity.ExportFormat, error) {
	if raw == "" {
		return entity.FormatMarkdown, nil
	}

	format := entity.ExportFormat(strings.ToLower(raw))
	if !format.IsValid() {
		return "", fmt.Errorf("%w: format must be one of: markdown, docx, pdf", entity.ErrInvalidFormat)
	}
	return format, nil
}
