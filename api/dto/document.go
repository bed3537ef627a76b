package dto

import "errors"

var ErrDocumentNotFound = errors.New("document not found")

type UploadRequest struct {
	OriginalFilename string
	ContentType      string
	Category         string
	DocumentType     string
	Data             []byte
	DeclaredSize     int64
	Async            bool
}

type DocumentResponse struct {
	ID               string   `json:"id"`
	TraceID          string   `json:"trace_id"`
	OriginalFilename string   `json:"original_filename"`
	ContentType      string   `json:"content_type"`
	Category         string   `json:"category"`
	DocumentType     string   `json:"document_type,omitempty"`
	DocumentTypeName string   `json:"document_type_name,omitempty"`
	Status           string   `json:"status"`
	OriginalSize     int64    `json:"original_size"`
	ProcessedSize    int64    `json:"processed_size,omitempty"`
	CompressionRatio *float64 `json:"compression_ratio,omitempty"`
	Strategy         string   `json:"strategy,omitempty"`
	Summary          string   `json:"summary,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	CreatedAt        string   `json:"created_at"`
	CompletedAt      *string  `json:"completed_at,omitempty"`
}

type StatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ContentResponse struct {
	ContentType string
	Filename    string
	Data        []byte
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
