package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"docOptimizer/api/cache"
	"docOptimizer/api/database"
	"docOptimizer/api/dto"
	"docOptimizer/api/models"
	"docOptimizer/api/repository"
	"docOptimizer/api/validation"
	"docOptimizer/worker/compressor"
	"docOptimizer/worker/config"
	workerkafka "docOptimizer/worker/kafka"
	wmodels "docOptimizer/worker/models"
	"docOptimizer/worker/pool"
	wservice "docOptimizer/worker/service"
)

type mockRepo struct {
	docs map[string]*models.Document
}

func (m *mockRepo) CreateDocument(_ context.Context, doc *models.Document) error {
	if _, ok := m.docs[doc.ID]; ok {
		return repository.ErrDocumentAlreadyExists
	}
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *mockRepo) GetDocument(_ context.Context, id string) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *mockRepo) UpdateDocumentStatus(_ context.Context, id string, status models.DocumentStatus, errorMessage string) error {
	doc, ok := m.docs[id]
	if !ok {
		return repository.ErrDocumentNotFound
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	return nil
}

type mockProducer struct {
	sent    []*workerkafka.DocumentMessage
	sendErr error
}

func (m *mockProducer) SendDocumentMessage(_ context.Context, _ string, msg *workerkafka.DocumentMessage) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockProducer) Close() error { return nil }

type mockStore struct {
	objects map[string][]byte
}

func (m *mockStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

type halvingImages struct{}

func (halvingImages) Compress(_ context.Context, data []byte, category wmodels.Category) ([]byte, *compressor.ImageReport, error) {
	return data[:len(data)/2], &compressor.ImageReport{Category: category, ReachedTarget: true}, nil
}

type halvingPDFs struct{}

func (halvingPDFs) Compress(_ context.Context, data []byte) ([]byte, *compressor.PDFReport, error) {
	return data[:len(data)/2], &compressor.PDFReport{}, nil
}

type fixture struct {
	svc      *DocumentService
	repo     *mockRepo
	store    *mockStore
	producer *mockProducer
	redis    *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	docs := config.DefaultDocuments()
	docs.TargetFileSizeKB = 1

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zaptest.NewLogger(t)
	f := &fixture{
		repo:     &mockRepo{docs: map[string]*models.Document{}},
		store:    &mockStore{objects: map[string][]byte{}},
		producer: &mockProducer{},
		redis:    mr,
	}
	f.svc = NewDocumentService(Deps{
		Repo:      f.repo,
		Cache:     cache.NewStatusCache(database.NewCache(client)),
		Producer:  f.producer,
		Store:     f.store,
		Validator: validation.NewValidator(docs),
		Processor: wservice.NewProcessor(docs, halvingImages{}, halvingPDFs{}, logger),
		Pool:      pool.NewWorkerPool(1),
		Logger:    logger,
	})
	return f
}

func pdfRequest(size int) *dto.UploadRequest {
	data := make([]byte, size)
	copy(data, "%PDF-1.4\n")
	return &dto.UploadRequest{
		OriginalFilename: "resume.pdf",
		ContentType:      wmodels.MimePDF,
		Category:         "RESUME",
		Data:             data,
		DeclaredSize:     int64(size),
	}
}

func TestDocumentService_UploadSync(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Upload(context.Background(), "trace-1", pdfRequest(4096))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if resp.Status != string(models.StatusCompleted) {
		t.Errorf("Expected completed, got %s", resp.Status)
	}
	if resp.ProcessedSize != 2048 || resp.Strategy != wmodels.StrategyPDF {
		t.Errorf("Unexpected result %d bytes, %s", resp.ProcessedSize, resp.Strategy)
	}
	if resp.CompressionRatio == nil || *resp.CompressionRatio != 0.5 {
		t.Errorf("Expected ratio 0.5, got %v", resp.CompressionRatio)
	}
	if got := len(f.store.objects["processed/"+resp.ID]); got != 2048 {
		t.Errorf("Expected 2048 stored bytes, got %d", got)
	}
	if len(f.producer.sent) != 0 {
		t.Error("Expected no kafka message for sync upload")
	}
	if got, _ := f.redis.Get("document:status:" + resp.ID); got != "completed" {
		t.Errorf("Expected cached completed status, got %q", got)
	}
}

func TestDocumentService_UploadAsync(t *testing.T) {
	f := newFixture(t)
	req := pdfRequest(4096)
	req.Async = true

	resp, err := f.svc.Upload(context.Background(), "trace-2", req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if resp.Status != string(models.StatusPending) {
		t.Errorf("Expected pending, got %s", resp.Status)
	}
	if len(f.producer.sent) != 1 {
		t.Fatalf("Expected one kafka message, got %d", len(f.producer.sent))
	}
	msg := f.producer.sent[0]
	if msg.DocumentID != resp.ID || msg.RawKey != "raw/"+resp.ID || msg.Category != "RESUME" {
		t.Errorf("Unexpected message %+v", msg)
	}
	if !bytes.Equal(f.store.objects[msg.RawKey], req.Data) {
		t.Error("Expected raw bytes to be stored")
	}

	content, err := f.svc.GetContent(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(content.Data) != 4096 {
		t.Errorf("Expected original bytes while pending, got %d", len(content.Data))
	}
}

func TestDocumentService_UploadAsyncPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.producer.sendErr = errors.New("broker down")
	req := pdfRequest(4096)
	req.Async = true

	if _, err := f.svc.Upload(context.Background(), "trace-3", req); err == nil {
		t.Fatal("Expected error")
	}
	for _, doc := range f.repo.docs {
		if doc.Status != models.StatusFailed {
			t.Errorf("Expected failed status, got %s", doc.Status)
		}
	}
}

func TestDocumentService_UploadRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	req := pdfRequest(4096)
	req.Category = "PROFILE_PHOTO"

	_, err := f.svc.Upload(context.Background(), "trace-4", req)
	if !errors.Is(err, validation.ErrCategoryType) {
		t.Fatalf("Expected ErrCategoryType, got %v", err)
	}
	if len(f.repo.docs) != 0 || len(f.store.objects) != 0 {
		t.Error("Expected nothing to be persisted")
	}
}

func TestDocumentService_DocumentTypeSetsCategory(t *testing.T) {
	f := newFixture(t)
	req := pdfRequest(4096)
	req.Category = ""
	req.DocumentType = "Passport"

	resp, err := f.svc.Upload(context.Background(), "trace-5", req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Category != string(wmodels.CategoryIdentityDocument) {
		t.Errorf("Expected %s, got %s", wmodels.CategoryIdentityDocument, resp.Category)
	}
	if resp.DocumentType != string(wmodels.DocumentPassport) {
		t.Errorf("Expected %s, got %s", wmodels.DocumentPassport, resp.DocumentType)
	}
	if resp.DocumentTypeName != "Passport" {
		t.Errorf("Expected display name Passport, got %q", resp.DocumentTypeName)
	}
}

func TestDocumentService_GetStatusFallsBackToRepository(t *testing.T) {
	f := newFixture(t)
	f.repo.docs["doc-9"] = &models.Document{ID: "doc-9", Status: models.StatusProcessing}

	resp, err := f.svc.GetStatus(context.Background(), "doc-9")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Status != string(models.StatusProcessing) {
		t.Errorf("Expected processing, got %s", resp.Status)
	}
	if got, _ := f.redis.Get("document:status:doc-9"); got != "processing" {
		t.Errorf("Expected status to be cached, got %q", got)
	}
}

func TestDocumentService_NotFound(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.GetDocument(context.Background(), "missing"); !errors.Is(err, dto.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
	if _, err := f.svc.GetStatus(context.Background(), "missing"); !errors.Is(err, dto.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
	if _, err := f.svc.GetContent(context.Background(), "missing"); !errors.Is(err, dto.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}
