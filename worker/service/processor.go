package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"docOptimizer/worker/compressor"
	"docOptimizer/worker/config"
	"docOptimizer/worker/models"
	"docOptimizer/worker/pool"
)

const (
	traceName = "service"

	detailsSkipped  = "File size acceptable, processing skipped"
	detailsNoGain   = "Compression did not reduce size enough, original kept"
	detailsFallback = "Processing timed out, original kept"
)

type ImageCompressor interface {
	Compress(ctx context.Context, data []byte, category models.Category) ([]byte, *compressor.ImageReport, error)
}

type PDFCompressor interface {
	Compress(ctx context.Context, data []byte) ([]byte, *compressor.PDFReport, error)
}

// Processor routes an upload to the matching compressor and decides what
// gets stored. It holds only read-only configuration and is safe for
// concurrent use.
type Processor struct {
	docs    config.Documents
	images  ImageCompressor
	pdfs    PDFCompressor
	monitor *Monitor
	logger  *zap.Logger
}

func NewProcessor(docs config.Documents, images ImageCompressor, pdfs PDFCompressor, logger *zap.Logger) *Processor {
	return &Processor{
		docs:    docs,
		images:  images,
		pdfs:    pdfs,
		monitor: NewMonitor(docs.SlowOperationThreshold, logger),
		logger:  logger,
	}
}

// Process compresses upload toward the configured target. The returned
// result never holds more bytes than the input.
func (p *Processor) Process(ctx context.Context, upload models.Upload) (*models.Result, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Processor.Process")
	defer span.End()

	mime := upload.NormalizedMimeType()
	size := upload.Size()
	class := classOf(mime)
	span.SetAttributes(
		attribute.String("mime", mime),
		attribute.Int64("size", size),
		attribute.String("category", string(upload.Category)),
	)

	start := time.Now()
	result, err := p.process(ctx, upload, mime, size)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.monitor.ObserveFailure(class, size, elapsed, err)
		p.logger.Warn("Processing failed",
			zap.String("mime", mime),
			zap.Int64("size", size),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("strategy", result.Strategy()),
		attribute.Int64("processed_size", result.ProcessedSize()),
	)
	p.monitor.ObserveResult(class, result, elapsed)
	p.logger.Info("Document processed",
		zap.String("mime", mime),
		zap.String("category", string(upload.Category)),
		zap.String("summary", result.Summary()),
		zap.Duration("elapsed", elapsed),
	)
	p.logger.Debug("Processing report", zap.String("report", result.DetailedReport()))
	return result, nil
}

func (p *Processor) process(ctx context.Context, upload models.Upload, mime string, size int64) (*models.Result, error) {
	if limit := p.docs.InputCap(mime); limit > 0 && size > limit {
		return nil, models.NewProcessingError(models.ErrInputTooLarge, "process",
			fmt.Errorf("%s of %d bytes exceeds %d", mime, size, limit))
	}

	if size <= p.docs.TargetBytes() {
		return models.Unprocessed(upload.Data, detailsSkipped), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, models.NewProcessingError(models.ErrTimeout, "process", err)
	}

	switch {
	case p.docs.IsSupportedImageType(mime):
		return p.processImage(ctx, upload, size)
	case p.docs.IsSupportedDocumentType(mime):
		return p.processPDF(ctx, upload, size)
	default:
		return nil, models.NewProcessingError(models.ErrUnsupportedType, "process",
			fmt.Errorf("mime type %q", mime))
	}
}

func (p *Processor) processImage(ctx context.Context, upload models.Upload, size int64) (*models.Result, error) {
	category := upload.Category
	if !category.Valid() {
		category = models.CategoryOther
	}

	out, report, err := p.images.Compress(ctx, upload.Data, category)
	if err != nil {
		return nil, err
	}
	if !p.worthKeeping(out, size) {
		return models.Unprocessed(upload.Data, detailsNoGain+"; "+report.String()), nil
	}

	strategy := models.StrategyImage
	if !report.ReachedTarget {
		strategy = models.StrategyImageBestEffort
	}
	return models.NewResult(out, size, strategy, report.String()), nil
}

func (p *Processor) processPDF(ctx context.Context, upload models.Upload, size int64) (*models.Result, error) {
	out, report, err := p.pdfs.Compress(ctx, upload.Data)
	if err != nil {
		return nil, err
	}
	if !p.worthKeeping(out, size) {
		return models.Unprocessed(upload.Data, detailsNoGain+"; "+report.String()), nil
	}
	return models.NewResult(out, size, models.StrategyPDF, report.String()), nil
}

// worthKeeping reports whether out is strictly smaller than the input and
// saves at least MinEffectiveGainPct of it.
func (p *Processor) worthKeeping(out []byte, size int64) bool {
	n := int64(len(out))
	if n == 0 || n >= size {
		return false
	}
	saved := float64(size-n) / float64(size) * 100
	return saved >= p.docs.MinEffectiveGainPct
}

// Run executes Process on wp under the configured processing timeout.
// A missed deadline is reported as models.ErrTimeout.
func (p *Processor) Run(ctx context.Context, wp *pool.WorkerPool, upload models.Upload) (*models.Result, error) {
	if timeout := p.docs.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := pool.Do(ctx, wp, func(ctx context.Context) (*models.Result, error) {
		return p.Process(ctx, upload)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, models.ErrTimeout) {
			return nil, models.NewProcessingError(models.ErrTimeout, "run", err)
		}
		return nil, err
	}
	return result, nil
}

// TimeoutFallback returns the original bytes when err is a timeout, so the
// caller can store the upload unprocessed. Any other error is returned as is.
func TimeoutFallback(upload models.Upload, err error) (*models.Result, error) {
	if !errors.Is(err, models.ErrTimeout) {
		return nil, err
	}
	return models.Unprocessed(upload.Data, detailsFallback), nil
}

func classOf(mime string) string {
	switch {
	case models.IsPDFMime(mime):
		return "pdf"
	case models.IsImageMime(mime):
		return "image"
	default:
		return "other"
	}
}
