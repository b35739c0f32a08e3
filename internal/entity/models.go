package entity

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

// Document status follows the ingestion state machine
const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusDecoding  DocumentStatus = "decoding"
	DocumentStatusChunking  DocumentStatus = "chunking"
	DocumentStatusEmbedding DocumentStatus = "embedding"
	DocumentStatusIndexed   DocumentStatus = "indexed"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// documentNamespace seeds name-based document ids.
var documentNamespace = uuid.MustParse("5b7c1f0e-3c53-4d7f-9d0b-7f2f0c6a9e41")

// DocumentID derives the stable id of a document from its filename.
func DocumentID(filename string) string {
	return uuid.NewSHA1(documentNamespace, []byte(filename)).String()
}

// ChunkID derives the id of the sequence-th chunk of a document.
func ChunkID(documentID string, sequence int) string {
	return fmt.Sprintf("%s:%d", documentID, sequence)
}

type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	ByteSize    int64          `json:"byte_size"`
	Status      DocumentStatus `json:"status"`
	Error       *string        `json:"error,omitempty"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Extension returns the lower-cased filename extension including the dot.
func (d *Document) Extension() string {
	return strings.ToLower(filepath.Ext(d.Filename))
}

type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Sequence   int    `json:"sequence"`
	Text       string `json:"text"`
	CharStart  int    `json:"char_start"`
	CharEnd    int    `json:"char_end"`
}

// Embedding is the vector of one chunk, tagged with the model that produced it.
type Embedding struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Model      string    `json:"model"`
	Vector     []float32 `json:"vector"`
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Source references a document passage an answer was grounded on.
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkID    string  `json:"chunk_id"`
	Score      float32 `json:"score"`
	Preview    string  `json:"preview"`
}

type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Sources   []Source    `json:"sources,omitempty"`
	CreatedAt time.Time   `json:"timestamp"`
}

const DefaultSessionTitle = "New Chat"

type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Messages    []Message `json:"messages"`
}

// SessionSummary is a session without its messages.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
	MessageCount int       `json:"message_count"`
}

// TitleFromMessage builds a session title from the first question.
func TitleFromMessage(message string, limit int) string {
	message = strings.Join(strings.Fields(message), " ")
	runes := []rune(message)
	if limit <= 0 || len(runes) <= limit {
		return message
	}
	return string(runes[:limit]) + "..."
}

type VectorStoreStatus struct {
	Available     bool
	DocumentCount int
	ChunkCount    int
}

type ReprocessResult struct {
	DocumentCount  int
	FilesProcessed []string
	FailedFiles    []string
	ChunkCount     int
}

// Answer is the outcome of a grounded query.
type Answer struct {
	Response  string
	Sources   []Source
	SessionID string
}
