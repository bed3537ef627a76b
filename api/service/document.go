package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docOptimizer/api/dto"
	"docOptimizer/api/kafka"
	"docOptimizer/api/models"
	"docOptimizer/api/repository"
	workerkafka "docOptimizer/worker/kafka"
	"docOptimizer/worker/metrics"
	wmodels "docOptimizer/worker/models"
	"docOptimizer/worker/pool"
	wservice "docOptimizer/worker/service"
	"docOptimizer/worker/storage"
)

const timeLayout = "2006-01-02T15:04:05Z"

type StatusCache interface {
	Get(ctx context.Context, documentID string) (*models.DocumentStatus, error)
	Set(ctx context.Context, documentID string, status models.DocumentStatus) error
}

type Validator interface {
	Validate(upload wmodels.Upload) error
}

type Deps struct {
	Repo      repository.Repository
	Cache     StatusCache
	Producer  kafka.Producer
	Store     storage.BlobStore
	Validator Validator
	Processor *wservice.Processor
	Pool      *pool.WorkerPool
	Topic     string
	Logger    *zap.Logger
}

type DocumentService struct {
	repo      repository.Repository
	cache     StatusCache
	producer  kafka.Producer
	store     storage.BlobStore
	validator Validator
	processor *wservice.Processor
	pool      *pool.WorkerPool
	topic     string
	logger    *zap.Logger
}

func NewDocumentService(d Deps) *DocumentService {
	topic := d.Topic
	if topic == "" {
		topic = "document_tasks"
	}
	return &DocumentService{
		repo:      d.Repo,
		cache:     d.Cache,
		producer:  d.Producer,
		store:     d.Store,
		validator: d.Validator,
		processor: d.Processor,
		pool:      d.Pool,
		topic:     topic,
		logger:    d.Logger,
	}
}

// Upload validates req and either processes it inline or queues it for the
// worker when req.Async is set.
func (s *DocumentService) Upload(ctx context.Context, traceID string, req *dto.UploadRequest) (*dto.DocumentResponse, error) {
	category, docType := resolveCategory(req.Category, req.DocumentType)

	upload := wmodels.Upload{
		Data:         req.Data,
		MimeType:     req.ContentType,
		DeclaredSize: req.DeclaredSize,
		Category:     category,
	}
	if err := s.validator.Validate(upload); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:               uuid.New().String(),
		TraceID:          traceID,
		OriginalFilename: req.OriginalFilename,
		ContentType:      upload.NormalizedMimeType(),
		Category:         string(category),
		DocumentType:     docType,
		OriginalSize:     upload.Size(),
	}

	if req.Async {
		metrics.UploadsTotal.WithLabelValues("async").Inc()
		return s.enqueue(ctx, doc, upload)
	}
	metrics.UploadsTotal.WithLabelValues("sync").Inc()
	return s.processNow(ctx, doc, upload)
}

func (s *DocumentService) processNow(ctx context.Context, doc *models.Document, upload wmodels.Upload) (*dto.DocumentResponse, error) {
	result, err := s.processor.Run(ctx, s.pool, upload)
	if err != nil {
		result, err = wservice.TimeoutFallback(upload, err)
		if err != nil {
			return nil, err
		}
		s.logger.Warn("Processing timed out, storing original",
			zap.String("trace_id", doc.TraceID),
			zap.String("document_id", doc.ID),
		)
	}

	doc.ProcessedKey = storage.ProcessedKey(doc.ID)
	if err := s.store.Put(ctx, doc.ProcessedKey, result.ProcessedBytes(), doc.ContentType); err != nil {
		return nil, fmt.Errorf("store processed document: %w", err)
	}

	doc.ProcessedSize = result.ProcessedSize()
	doc.Strategy = result.Strategy()
	doc.Summary = result.Summary()
	doc.Status = models.StatusCompleted
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.cacheStatus(ctx, doc.ID, doc.Status)

	s.logger.Info("Document processed",
		zap.String("trace_id", doc.TraceID),
		zap.String("document_id", doc.ID),
		zap.String("summary", doc.Summary),
	)
	return toResponse(doc), nil
}

func (s *DocumentService) enqueue(ctx context.Context, doc *models.Document, upload wmodels.Upload) (*dto.DocumentResponse, error) {
	doc.RawKey = storage.RawKey(doc.ID)
	if err := s.store.Put(ctx, doc.RawKey, upload.Data, doc.ContentType); err != nil {
		return nil, fmt.Errorf("store raw document: %w", err)
	}

	doc.Status = models.StatusPending
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.cacheStatus(ctx, doc.ID, doc.Status)

	msg := &workerkafka.DocumentMessage{
		DocumentID:  doc.ID,
		TraceID:     doc.TraceID,
		Category:    doc.Category,
		ContentType: doc.ContentType,
		RawKey:      doc.RawKey,
	}
	if err := s.producer.SendDocumentMessage(ctx, s.topic, msg); err != nil {
		if updErr := s.repo.UpdateDocumentStatus(ctx, doc.ID, models.StatusFailed, err.Error()); updErr != nil {
			s.logger.Error("Failed to mark document failed", zap.String("document_id", doc.ID), zap.Error(updErr))
		}
		s.cacheStatus(ctx, doc.ID, models.StatusFailed)
		return nil, fmt.Errorf("publish document: %w", err)
	}

	return toResponse(doc), nil
}

func (s *DocumentService) GetDocument(ctx context.Context, id string) (*dto.DocumentResponse, error) {
	doc, err := s.getDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(doc), nil
}

// GetStatus reads redis first and falls back to postgres on a miss.
func (s *DocumentService) GetStatus(ctx context.Context, id string) (*dto.StatusResponse, error) {
	status, err := s.cache.Get(ctx, id)
	if err == nil {
		return &dto.StatusResponse{ID: id, Status: string(*status)}, nil
	}
	if !errors.Is(err, redis.Nil) {
		s.logger.Warn("Status cache unavailable", zap.String("document_id", id), zap.Error(err))
	}

	doc, err := s.getDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheStatus(ctx, doc.ID, doc.Status)

	return &dto.StatusResponse{ID: doc.ID, Status: string(doc.Status)}, nil
}

// GetContent returns the processed bytes, or the original ones while the
// document is still queued.
func (s *DocumentService) GetContent(ctx context.Context, id string) (*dto.ContentResponse, error) {
	doc, err := s.getDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Get(ctx, doc.ContentKey())
	if err != nil {
		return nil, fmt.Errorf("load document content: %w", err)
	}

	return &dto.ContentResponse{
		ContentType: doc.ContentType,
		Filename:    doc.OriginalFilename,
		Data:        data,
	}, nil
}

func (s *DocumentService) getDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, dto.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) cacheStatus(ctx context.Context, id string, status models.DocumentStatus) {
	if err := s.cache.Set(ctx, id, status); err != nil {
		s.logger.Warn("Failed to cache status", zap.String("document_id", id), zap.Error(err))
	}
}

// resolveCategory prefers an explicit document type over a category name.
func resolveCategory(category, documentType string) (wmodels.Category, string) {
	if documentType != "" {
		dt := wmodels.ParseDocumentType(documentType)
		return dt.Category(), string(dt)
	}
	return wmodels.ParseCategory(category), ""
}

func toResponse(doc *models.Document) *dto.DocumentResponse {
	var completedAt *string
	if doc.CompletedAt != nil {
		formatted := doc.CompletedAt.UTC().Format(timeLayout)
		completedAt = &formatted
	}

	var ratio *float64
	if doc.Status == models.StatusCompleted && doc.OriginalSize > 0 {
		r := float64(doc.ProcessedSize) / float64(doc.OriginalSize)
		ratio = &r
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var typeName string
	if doc.DocumentType != "" {
		typeName = wmodels.DocumentType(doc.DocumentType).DisplayName()
	}

	return &dto.DocumentResponse{
		ID:               doc.ID,
		TraceID:          doc.TraceID,
		OriginalFilename: doc.OriginalFilename,
		ContentType:      doc.ContentType,
		Category:         doc.Category,
		DocumentType:     doc.DocumentType,
		DocumentTypeName: typeName,
		Status:           string(doc.Status),
		OriginalSize:     doc.OriginalSize,
		ProcessedSize:    doc.ProcessedSize,
		CompressionRatio: ratio,
		Strategy:         doc.Strategy,
		Summary:          doc.Summary,
		ErrorMessage:     doc.ErrorMessage,
		CreatedAt:        createdAt.UTC().Format(timeLayout),
		CompletedAt:      completedAt,
	}
}
