package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"docOptimizer/api/dto"
	"docOptimizer/api/middleware"
	"docOptimizer/api/models"
	"docOptimizer/api/validation"
	wmodels "docOptimizer/worker/models"
)

type mockDocumentService struct {
	uploadFunc  func(ctx context.Context, traceID string, req *dto.UploadRequest) (*dto.DocumentResponse, error)
	getFunc     func(ctx context.Context, id string) (*dto.DocumentResponse, error)
	statusFunc  func(ctx context.Context, id string) (*dto.StatusResponse, error)
	contentFunc func(ctx context.Context, id string) (*dto.ContentResponse, error)
}

func (m *mockDocumentService) Upload(ctx context.Context, traceID string, req *dto.UploadRequest) (*dto.DocumentResponse, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, traceID, req)
	}
	status := models.StatusCompleted
	if req.Async {
		status = models.StatusPending
	}
	return &dto.DocumentResponse{
		ID:               uuid.New().String(),
		TraceID:          traceID,
		OriginalFilename: req.OriginalFilename,
		Status:           string(status),
		OriginalSize:     int64(len(req.Data)),
		CreatedAt:        time.Now().Format("2006-01-02T15:04:05Z"),
	}, nil
}

func (m *mockDocumentService) GetDocument(ctx context.Context, id string) (*dto.DocumentResponse, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &dto.DocumentResponse{ID: id, Status: string(models.StatusCompleted)}, nil
}

func (m *mockDocumentService) GetStatus(ctx context.Context, id string) (*dto.StatusResponse, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, id)
	}
	return &dto.StatusResponse{ID: id, Status: string(models.StatusCompleted)}, nil
}

func (m *mockDocumentService) GetContent(ctx context.Context, id string) (*dto.ContentResponse, error) {
	if m.contentFunc != nil {
		return m.contentFunc(ctx, id)
	}
	return nil, dto.ErrDocumentNotFound
}

func newTestMux(t *testing.T, svc DocumentService, maxFileSize int64) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	NewDocumentHandler(svc, maxFileSize, zaptest.NewLogger(t)).Register(mux)
	return middleware.TraceID(mux)
}

func multipartBody(t *testing.T, content []byte, contentType string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write field: %v", err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="photo.jpg"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(h)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	writer.Close()

	return body, writer.FormDataContentType()
}

func jpegBytes() []byte {
	content := make([]byte, 1024)
	copy(content, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return content
}

func TestDocumentHandler_Upload_Success(t *testing.T) {
	var got *dto.UploadRequest
	svc := &mockDocumentService{
		uploadFunc: func(ctx context.Context, traceID string, req *dto.UploadRequest) (*dto.DocumentResponse, error) {
			got = req
			return &dto.DocumentResponse{ID: "doc-1", TraceID: traceID, Status: string(models.StatusCompleted)}, nil
		},
	}
	h := newTestMux(t, svc, 1<<20)

	body, ct := multipartBody(t, jpegBytes(), "image/jpeg", map[string]string{"category": "PROFILE_PHOTO"})
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Trace-ID", "trace-1")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if contentType := rec.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}
	if got.Category != "PROFILE_PHOTO" || got.ContentType != "image/jpeg" || got.Async {
		t.Errorf("Unexpected request %+v", got)
	}
	if got.DeclaredSize != 1024 || len(got.Data) != 1024 {
		t.Errorf("Expected 1024 bytes, got declared %d, read %d", got.DeclaredSize, len(got.Data))
	}

	var resp dto.DocumentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.TraceID != "trace-1" {
		t.Errorf("Expected trace-1, got %s", resp.TraceID)
	}
}

func TestDocumentHandler_Upload_AsyncAccepted(t *testing.T) {
	h := newTestMux(t, &mockDocumentService{}, 1<<20)

	body, ct := multipartBody(t, jpegBytes(), "image/jpeg", map[string]string{"mode": "async"})
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", rec.Code)
	}
}

func TestDocumentHandler_Upload_SniffsMissingContentType(t *testing.T) {
	var got string
	svc := &mockDocumentService{
		uploadFunc: func(ctx context.Context, traceID string, req *dto.UploadRequest) (*dto.DocumentResponse, error) {
			got = req.ContentType
			return &dto.DocumentResponse{ID: "doc-1"}, nil
		},
	}
	h := newTestMux(t, svc, 1<<20)

	body, ct := multipartBody(t, jpegBytes(), "application/octet-stream", nil)
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", ct)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != wmodels.MimeJPEG {
		t.Errorf("Expected %s, got %s", wmodels.MimeJPEG, got)
	}
}

func TestDocumentHandler_Upload_NoFile(t *testing.T) {
	h := newTestMux(t, &mockDocumentService{}, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestDocumentHandler_Upload_BodyTooLarge(t *testing.T) {
	h := newTestMux(t, &mockDocumentService{}, 1024)

	body, ct := multipartBody(t, make([]byte, formOverhead+4096), "image/jpeg", nil)
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rec.Code)
	}
}

func TestDocumentHandler_Upload_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"image too large", &validation.ValidationError{Field: "file", Reason: validation.ErrImageTooLarge}, http.StatusRequestEntityTooLarge},
		{"unsupported type", &validation.ValidationError{Field: "content_type", Reason: validation.ErrUnsupportedType}, http.StatusUnsupportedMediaType},
		{"content mismatch", &validation.ValidationError{Field: "file", Reason: validation.ErrContentMismatch}, http.StatusBadRequest},
		{"empty file", &validation.ValidationError{Field: "file", Reason: validation.ErrEmptyFile}, http.StatusBadRequest},
		{"pdf failure", wmodels.NewProcessingError(wmodels.ErrPdfCompressionFailed, "read", errors.New("bad xref")), http.StatusUnprocessableEntity},
		{"image failure", wmodels.NewProcessingError(wmodels.ErrImageCompressionFailed, "decode", nil), http.StatusUnprocessableEntity},
		{"processing cap", wmodels.NewProcessingError(wmodels.ErrInputTooLarge, "process", nil), http.StatusRequestEntityTooLarge},
		{"storage failure", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDocumentService{
				uploadFunc: func(context.Context, string, *dto.UploadRequest) (*dto.DocumentResponse, error) {
					return nil, tt.err
				},
			}
			h := newTestMux(t, svc, 1<<20)

			body, ct := multipartBody(t, jpegBytes(), "image/jpeg", nil)
			req := httptest.NewRequest(http.MethodPost, "/documents", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rec.Code)
			}

			var resp dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.TraceID == "" {
				t.Error("Expected trace id in error response")
			}
		})
	}
}

func TestDocumentHandler_Status_Success(t *testing.T) {
	id := uuid.New().String()
	svc := &mockDocumentService{
		statusFunc: func(ctx context.Context, got string) (*dto.StatusResponse, error) {
			if got != id {
				t.Errorf("Expected id %s, got %s", id, got)
			}
			return &dto.StatusResponse{ID: got, Status: string(models.StatusProcessing)}, nil
		},
	}
	h := newTestMux(t, svc, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	var resp dto.StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != string(models.StatusProcessing) {
		t.Errorf("Expected processing, got %s", resp.Status)
	}
}

func TestDocumentHandler_Status_NotFound(t *testing.T) {
	svc := &mockDocumentService{
		statusFunc: func(context.Context, string) (*dto.StatusResponse, error) {
			return nil, dto.ErrDocumentNotFound
		},
	}
	h := newTestMux(t, svc, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/"+uuid.New().String(), nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestDocumentHandler_Get(t *testing.T) {
	h := newTestMux(t, &mockDocumentService{}, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/doc-7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var resp dto.DocumentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.ID != "doc-7" {
		t.Errorf("Expected doc-7, got %s", resp.ID)
	}
}

func TestDocumentHandler_Content(t *testing.T) {
	payload := []byte("%PDF-1.7 compressed")
	svc := &mockDocumentService{
		contentFunc: func(context.Context, string) (*dto.ContentResponse, error) {
			return &dto.ContentResponse{ContentType: wmodels.MimePDF, Filename: "resume.pdf", Data: payload}, nil
		},
	}
	h := newTestMux(t, svc, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/doc-7/content", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != wmodels.MimePDF {
		t.Errorf("Expected %s, got %s", wmodels.MimePDF, got)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Error("Expected payload to be returned as is")
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "resume.pdf") {
		t.Errorf("Unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
}
