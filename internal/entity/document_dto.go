package entity

import (
	"mime/multipart"
	"time"
)

// UploadFile is one file taken from a multipart upload.
type UploadFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

type UploadResponse struct {
	Message    string `json:"message"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

type UploadMultipleRequest struct {
	Files []*multipart.FileHeader
}

type UploadResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type UploadMultipleResponse struct {
	Results []UploadResult `json:"results"`
}

type DocumentDTO struct {
	Filename   string         `json:"filename"`
	Status     DocumentStatus `json:"status"`
	ByteSize   int64          `json:"byte_size"`
	UploadedAt time.Time      `json:"uploaded_at"`
	Error      *string        `json:"error,omitempty"`
}

type ListDocumentsResponse struct {
	Files     []string      `json:"files"`
	Documents []DocumentDTO `json:"documents"`
}

type ReprocessResponse struct {
	Message        string   `json:"message"`
	DocumentCount  int      `json:"document_count"`
	FilesProcessed []string `json:"files_processed"`
	FailedCount    int      `json:"failed_count"`
	FailedFiles    []string `json:"failed_files"`
	Status         string   `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
