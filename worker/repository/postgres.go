package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var ErrDocumentNotFound = errors.New("document not found")

// DocumentResult is what the worker writes back once a job finishes.
type DocumentResult struct {
	ProcessedSize int64
	Strategy      string
	Summary       string
	ProcessedKey  string
}

type Repository interface {
	UpdateDocumentStatus(ctx context.Context, documentID, status, errMsg string) error
	UpdateDocumentResult(ctx context.Context, documentID string, result DocumentResult) error
}

type PostgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRepo(db *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) UpdateDocumentStatus(ctx context.Context, documentID, status, errMsg string) error {
	query := `UPDATE documents SET status = $1, error_message = $2, updated_at = NOW()`
	if status == StatusCompleted || status == StatusFailed {
		query += `, completed_at = NOW()`
	}
	query += ` WHERE id = $3`

	tag, err := r.db.Exec(ctx, query, status, errMsg, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *PostgresRepo) UpdateDocumentResult(ctx context.Context, documentID string, result DocumentResult) error {
	query := `
		UPDATE documents
		SET status = $1, processed_size = $2, strategy = $3, summary = $4,
		    processed_key = $5, error_message = '', updated_at = NOW(), completed_at = NOW()
		WHERE id = $6`

	tag, err := r.db.Exec(ctx, query, StatusCompleted, result.ProcessedSize, result.Strategy,
		result.Summary, result.ProcessedKey, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
