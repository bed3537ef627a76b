package models

import (
	"time"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID               string
	TraceID          string
	OriginalFilename string
	ContentType      string
	Category         string
	DocumentType     string
	OriginalSize     int64
	ProcessedSize    int64
	Strategy         string
	Summary          string
	RawKey           string
	ProcessedKey     string
	Status           DocumentStatus
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// ContentKey returns the object holding the best bytes available.
func (d *Document) ContentKey() string {
	if d.ProcessedKey != "" {
		return d.ProcessedKey
	}
	return d.RawKey
}
