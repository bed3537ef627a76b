package models

import (
	"fmt"
	"strings"
)

const (
	StrategyNone            = "NO_PROCESSING"
	StrategyImage           = "IMAGE_COMPRESSION"
	StrategyImageBestEffort = "IMAGE_COMPRESSION_BEST_EFFORT"
	StrategyPDF             = "PDF_COMPRESSION"
)

const (
	effectiveRatio       = 0.9
	highlyEffectiveRatio = 0.5
)

// Result is the immutable outcome of one processing call. Ratios and
// reports are derived from the stored sizes on every call.
type Result struct {
	processed    []byte
	originalSize int64
	strategy     string
	details      string
}

func NewResult(processed []byte, originalSize int64, strategy, details string) *Result {
	return &Result{
		processed:    processed,
		originalSize: originalSize,
		strategy:     strategy,
		details:      details,
	}
}

// Unprocessed wraps the original bytes when no compression ran or none helped.
func Unprocessed(original []byte, details string) *Result {
	return NewResult(original, int64(len(original)), StrategyNone, details)
}

// ProcessedBytes hands ownership of the output buffer to the caller.
func (r *Result) ProcessedBytes() []byte { return r.processed }
func (r *Result) OriginalSize() int64    { return r.originalSize }
func (r *Result) ProcessedSize() int64   { return int64(len(r.processed)) }
func (r *Result) Strategy() string       { return r.strategy }
func (r *Result) Details() string        { return r.details }

func (r *Result) CompressionRatio() float64 {
	if r.originalSize == 0 {
		return 1.0
	}
	return float64(r.ProcessedSize()) / float64(r.originalSize)
}

func (r *Result) ReductionPct() float64 {
	return (1 - r.CompressionRatio()) * 100
}

func (r *Result) IsEffective() bool {
	return r.CompressionRatio() < effectiveRatio
}

func (r *Result) IsHighlyEffective() bool {
	return r.CompressionRatio() < highlyEffectiveRatio
}

func (r *Result) Summary() string {
	return fmt.Sprintf("%s: %s → %s (%.1f%% reduction)",
		r.strategy,
		FormatBytes(r.originalSize),
		FormatBytes(r.ProcessedSize()),
		r.ReductionPct(),
	)
}

func (r *Result) DetailedReport() string {
	effective := "No"
	if r.IsEffective() {
		effective = "Yes"
	}

	var b strings.Builder
	b.WriteString("File Processing Report\n")
	fmt.Fprintf(&b, "Type: %s\n", r.strategy)
	fmt.Fprintf(&b, "Original Size: %s\n", FormatBytes(r.originalSize))
	fmt.Fprintf(&b, "Processed Size: %s\n", FormatBytes(r.ProcessedSize()))
	fmt.Fprintf(&b, "Compression Ratio: %.3f\n", r.CompressionRatio())
	fmt.Fprintf(&b, "Size Reduction: %.1f%%\n", r.ReductionPct())
	fmt.Fprintf(&b, "Effective: %s\n", effective)
	fmt.Fprintf(&b, "Details: %s", r.details)
	return b.String()
}

func FormatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
