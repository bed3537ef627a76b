package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"docOptimizer/api/dto"
	"docOptimizer/api/middleware"
	"docOptimizer/api/validation"
	"docOptimizer/worker/models"
)

const (
	maxMemory = 32 << 20
	// multipart framing and form fields on top of the file itself
	formOverhead = 1 << 20
)

type DocumentService interface {
	Upload(ctx context.Context, traceID string, req *dto.UploadRequest) (*dto.DocumentResponse, error)
	GetDocument(ctx context.Context, id string) (*dto.DocumentResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.StatusResponse, error)
	GetContent(ctx context.Context, id string) (*dto.ContentResponse, error)
}

type DocumentHandler struct {
	service        DocumentService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewDocumentHandler(service DocumentService, maxFileSize int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		service:        service,
		maxUploadBytes: maxFileSize + formOverhead,
		logger:         logger,
	}
}

func (h *DocumentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /documents", h.Upload)
	mux.HandleFunc("GET /documents/{id}", h.Get)
	mux.HandleFunc("GET /documents/{id}/content", h.Content)
	mux.HandleFunc("GET /status/{id}", h.Status)
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.handleError(w, "File too large", "file_too_large", err, traceID, http.StatusRequestEntityTooLarge)
			return
		}
		h.handleError(w, "Failed to parse form", "bad_request", err, traceID, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleError(w, "Failed to get file", "bad_request", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.handleError(w, "Failed to read file", "bad_request", err, traceID, http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || models.NormalizeMimeType(contentType) == "application/octet-stream" {
		contentType = validation.DetectMimeType(data)
	}

	req := &dto.UploadRequest{
		OriginalFilename: filepath.Base(header.Filename),
		ContentType:      contentType,
		Category:         r.FormValue("category"),
		DocumentType:     r.FormValue("document_type"),
		Data:             data,
		DeclaredSize:     header.Size,
		Async:            r.FormValue("mode") == "async",
	}

	resp, err := h.service.Upload(r.Context(), traceID, req)
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	h.logger.Info("File uploaded",
		zap.String("trace_id", traceID),
		zap.String("document_id", resp.ID),
		zap.String("filename", req.OriginalFilename),
		zap.String("status", resp.Status),
	)

	status := http.StatusCreated
	if req.Async {
		status = http.StatusAccepted
	}
	h.respondJSON(w, status, resp)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	resp, err := h.service.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) Content(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	resp, err := h.service.GetContent(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Data)))
	if resp.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", resp.Filename))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Data)
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	id := r.PathValue("id")
	if id == "" {
		h.handleError(w, "Document ID is required", "bad_request", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetStatus(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) handleServiceError(w http.ResponseWriter, err error, traceID string) {
	status, code := statusFor(err)

	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		h.logger.Info("Upload rejected",
			zap.String("trace_id", traceID),
			zap.String("field", verr.Field),
			zap.Error(err),
		)
		h.respondJSON(w, status, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    code,
			Field:   verr.Field,
			TraceID: traceID,
		})
		return
	}

	message := "Internal server error"
	if status != http.StatusInternalServerError {
		message = err.Error()
	}
	h.handleError(w, message, code, err, traceID, status)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, dto.ErrDocumentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge, "input_too_large"
	case errors.Is(err, models.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, "unsupported_type"
	case errors.Is(err, models.ErrImageCompressionFailed), errors.Is(err, models.ErrPdfCompressionFailed):
		return http.StatusUnprocessableEntity, "compression_failed"
	case errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	}

	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, "invalid_file"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *DocumentHandler) handleError(w http.ResponseWriter, message, code string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Int("status", status),
		zap.Error(err),
	)

	h.respondJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: traceID,
	})
}

func (h *DocumentHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
