package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"docOptimizer/worker/metrics"
	"docOptimizer/worker/models"
)

// Monitor reports timing and throughput of processing calls.
type Monitor struct {
	slow   time.Duration
	logger *zap.Logger
}

func NewMonitor(slow time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{slow: slow, logger: logger}
}

func (m *Monitor) ObserveResult(class string, result *models.Result, elapsed time.Duration) {
	metrics.DocumentsProcessed.WithLabelValues(result.Strategy()).Inc()
	metrics.ProcessingDuration.WithLabelValues(class).Observe(elapsed.Seconds())
	if saved := result.OriginalSize() - result.ProcessedSize(); saved > 0 {
		metrics.BytesSaved.Add(float64(saved))
	}

	m.checkSlow(class, result.OriginalSize(), elapsed)

	if secs := elapsed.Seconds(); secs > 0 {
		m.logger.Debug("Processing throughput",
			zap.String("class", class),
			zap.Float64("mb_per_sec", float64(result.OriginalSize())/(1024*1024)/secs),
		)
	}
}

func (m *Monitor) ObserveFailure(class string, size int64, elapsed time.Duration, err error) {
	metrics.ProcessingFailures.WithLabelValues(errorKind(err)).Inc()
	metrics.ProcessingDuration.WithLabelValues(class).Observe(elapsed.Seconds())
	m.checkSlow(class, size, elapsed)
}

func (m *Monitor) checkSlow(class string, size int64, elapsed time.Duration) {
	if m.slow <= 0 || elapsed <= m.slow {
		return
	}
	metrics.SlowOperations.Inc()
	m.logger.Warn("Slow processing operation",
		zap.String("class", class),
		zap.Int64("size", size),
		zap.Duration("elapsed", elapsed),
		zap.Duration("threshold", m.slow),
	)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrTimeout):
		return "timeout"
	case errors.Is(err, models.ErrInputTooLarge):
		return "input_too_large"
	case errors.Is(err, models.ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, models.ErrImageCompressionFailed):
		return "image_compression_failed"
	case errors.Is(err, models.ErrPdfCompressionFailed):
		return "pdf_compression_failed"
	default:
		return "other"
	}
}
