package entity

import "time"

type QueryRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id,omitempty"`
}

type QueryResponse struct {
	Response        string   `json:"response"`
	SourceDocuments []string `json:"source_documents"`
	Sources         []Source `json:"sources"`
	SessionID       string   `json:"session_id"`
	Status          string   `json:"status"`
}

type NewSessionRequest struct {
	Title string `json:"title,omitempty"`
}

type NewSessionResponse struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
}

type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type SessionDTO struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	CreatedAt   time.Time    `json:"created_at"`
	LastUpdated time.Time    `json:"last_updated"`
	Messages    []MessageDTO `json:"messages"`
}

type MessageDTO struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Sources   []Source    `json:"sources,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type StatusResponse struct {
	VectorstoreAvailable bool   `json:"vectorstore_available"`
	DocumentCount        int    `json:"document_count"`
	ChunkCount           int    `json:"chunk_count"`
	Status               string `json:"status"`
}

type RefreshResponse struct {
	Message    string `json:"message"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
}

type ClearHistoryResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ExportFormat string

const (
	FormatMarkdown ExportFormat = "markdown"
	FormatDOCX     ExportFormat = "docx"
	FormatPDF      ExportFormat = "pdf"
)

func (f ExportFormat) IsValid() bool {
	switch f {
	case FormatMarkdown, FormatDOCX, FormatPDF:
		return true
	default:
		return false
	}
}

// ExportedFile is a rendered session transcript ready for download.
type ExportedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
