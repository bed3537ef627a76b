package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"docOptimizer/worker/kafka"
	"docOptimizer/worker/models"
	"docOptimizer/worker/pool"
	"docOptimizer/worker/repository"
	"docOptimizer/worker/storage"
)

type StatusCache interface {
	Set(ctx context.Context, documentID string, status string) error
}

// JobHandler runs queued documents through the Processor and records the
// outcome in postgres and redis.
type JobHandler struct {
	processor *Processor
	pool      *pool.WorkerPool
	store     storage.BlobStore
	repo      repository.Repository
	cache     StatusCache
	logger    *zap.Logger
}

func NewJobHandler(
	processor *Processor,
	wp *pool.WorkerPool,
	store storage.BlobStore,
	repo repository.Repository,
	cache StatusCache,
	logger *zap.Logger,
) *JobHandler {
	return &JobHandler{
		processor: processor,
		pool:      wp,
		store:     store,
		repo:      repo,
		cache:     cache,
		logger:    logger,
	}
}

func (h *JobHandler) Handle(ctx context.Context, msg *kafka.DocumentMessage) error {
	logger := h.logger.With(
		zap.String("document_id", msg.DocumentID),
		zap.String("trace_id", msg.TraceID),
	)

	if err := h.setStatus(ctx, msg.DocumentID, repository.StatusProcessing, ""); err != nil {
		return err
	}

	result, err := h.process(ctx, msg)
	if err != nil {
		if statusErr := h.setStatus(ctx, msg.DocumentID, repository.StatusFailed, err.Error()); statusErr != nil {
			logger.Error("Failed to record failure", zap.Error(statusErr))
		}
		return err
	}

	key := storage.ProcessedKey(msg.DocumentID)
	if err := h.store.Put(ctx, key, result.ProcessedBytes(), msg.ContentType); err != nil {
		if statusErr := h.setStatus(ctx, msg.DocumentID, repository.StatusFailed, err.Error()); statusErr != nil {
			logger.Error("Failed to record failure", zap.Error(statusErr))
		}
		return err
	}

	err = h.repo.UpdateDocumentResult(ctx, msg.DocumentID, repository.DocumentResult{
		ProcessedSize: result.ProcessedSize(),
		Strategy:      result.Strategy(),
		Summary:       result.Summary(),
		ProcessedKey:  key,
	})
	if err != nil {
		return fmt.Errorf("update document result: %w", err)
	}
	if err := h.cache.Set(ctx, msg.DocumentID, repository.StatusCompleted); err != nil {
		return fmt.Errorf("cache status: %w", err)
	}

	logger.Info("Document completed", zap.String("summary", result.Summary()))
	return nil
}

func (h *JobHandler) process(ctx context.Context, msg *kafka.DocumentMessage) (*models.Result, error) {
	data, err := h.store.Get(ctx, msg.RawKey)
	if err != nil {
		return nil, err
	}

	upload := models.Upload{
		Data:         data,
		MimeType:     msg.ContentType,
		DeclaredSize: int64(len(data)),
		Category:     models.ParseCategory(msg.Category),
	}

	result, err := h.processor.Run(ctx, h.pool, upload)
	if err != nil {
		return TimeoutFallback(upload, err)
	}
	return result, nil
}

func (h *JobHandler) setStatus(ctx context.Context, documentID, status, errMsg string) error {
	if err := h.repo.UpdateDocumentStatus(ctx, documentID, status, errMsg); err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if err := h.cache.Set(ctx, documentID, status); err != nil {
		return fmt.Errorf("cache status: %w", err)
	}
	return nil
}
