package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"docOptimizer/api/database"
	"docOptimizer/api/models"
)

const uniqueViolation = "23505"

const selectDocument = `
	SELECT id, trace_id, original_filename, content_type, category, document_type,
	       original_size, processed_size, strategy, summary, raw_key, processed_key,
	       status, error_message, created_at, updated_at, completed_at
	FROM documents
`

type PostgresRepo struct {
	db *database.DB
}

func NewPostgresRepo(db *database.DB) Repository {
	return &PostgresRepo{db: db}
}

// CreateDocument inserts doc under its pre-assigned id and fills in the
// timestamps. A completed document gets completed_at set on insert.
func (r *PostgresRepo) CreateDocument(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, trace_id, original_filename, content_type, category, document_type,
		                       original_size, processed_size, strategy, summary, raw_key, processed_key,
		                       status, error_message, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        CASE WHEN $13 = 'completed' THEN NOW() END)
		RETURNING created_at, updated_at, completed_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		doc.ID,
		doc.TraceID,
		doc.OriginalFilename,
		doc.ContentType,
		doc.Category,
		doc.DocumentType,
		doc.OriginalSize,
		doc.ProcessedSize,
		doc.Strategy,
		doc.Summary,
		doc.RawKey,
		doc.ProcessedKey,
		string(doc.Status),
		doc.ErrorMessage,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt, &doc.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDocumentAlreadyExists
		}
		return err
	}

	return nil
}

func (r *PostgresRepo) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.Pool.QueryRow(ctx, selectDocument+` WHERE id = $1`, id)

	var doc models.Document
	err := row.Scan(
		&doc.ID,
		&doc.TraceID,
		&doc.OriginalFilename,
		&doc.ContentType,
		&doc.Category,
		&doc.DocumentType,
		&doc.OriginalSize,
		&doc.ProcessedSize,
		&doc.Strategy,
		&doc.Summary,
		&doc.RawKey,
		&doc.ProcessedKey,
		&doc.Status,
		&doc.ErrorMessage,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	return &doc, nil
}

func (r *PostgresRepo) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, errorMessage string) error {
	query := `
		UPDATE documents
		SET status = $1, error_message = $2, updated_at = NOW()
	`

	if status == models.StatusCompleted || status == models.StatusFailed {
		query += `, completed_at = NOW()`
	}

	query += ` WHERE id = $3`

	result, err := r.db.Pool.Exec(ctx, query, string(status), errorMessage, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}

	return nil
}
