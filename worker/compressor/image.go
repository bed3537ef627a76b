package compressor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"docOptimizer/worker/config"
	"docOptimizer/worker/models"
)

const traceName = "compressor"

// Pass records one encode attempt of the ladder.
type Pass struct {
	Quality float64
	Scale   float64
	Width   int
	Height  int
	Size    int
}

type ImageReport struct {
	Category      models.Category
	Format        string
	NativeWidth   int
	NativeHeight  int
	Subsample     int
	Passes        []Pass
	Chosen        int
	ReachedTarget bool
	KeptOriginal  bool
}

func (r *ImageReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "category=%s format=%s native=%dx%d subsample=%d",
		r.Category, r.Format, r.NativeWidth, r.NativeHeight, r.Subsample)
	for i, p := range r.Passes {
		fmt.Fprintf(&b, " pass%d[q=%.2f scale=%.3f %dx%d %s]",
			i+1, p.Quality, p.Scale, p.Width, p.Height, models.FormatBytes(int64(p.Size)))
	}
	switch {
	case r.KeptOriginal:
		b.WriteString(" kept=original")
	case r.Chosen >= 0:
		fmt.Fprintf(&b, " kept=pass%d", r.Chosen+1)
	}
	fmt.Fprintf(&b, " reached_target=%t", r.ReachedTarget)
	return b.String()
}

type options struct {
	encoder Encoder
}

type Option func(*options)

// WithEncoder replaces the production codec.
func WithEncoder(enc Encoder) Option {
	return func(o *options) { o.encoder = enc }
}

func buildOptions(opts []Option) options {
	o := options{encoder: Codec{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ImageCompressor re-encodes rasters down a fixed quality/scale ladder.
// It holds no per-call state and is safe for concurrent use.
type ImageCompressor struct {
	docs    config.Documents
	encoder Encoder
	logger  *zap.Logger
}

func NewImageCompressor(docs config.Documents, logger *zap.Logger, opts ...Option) *ImageCompressor {
	return &ImageCompressor{
		docs:    docs,
		encoder: buildOptions(opts).encoder,
		logger:  logger,
	}
}

// Compress returns the smallest encoding found, or data itself when no pass
// beats the input. Not reaching the target is not an error.
func (c *ImageCompressor) Compress(ctx context.Context, data []byte, category models.Category) ([]byte, *ImageReport, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "ImageCompressor.Compress")
	defer span.End()

	maxW, maxH := c.docs.MaxDimensions(category)
	raster, err := decodeBounded(data, maxW, maxH, c.docs.Image.MaxDecodePixels)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	base := raster.img
	report := &ImageReport{
		Category:     category,
		Format:       raster.format,
		NativeWidth:  raster.nativeWidth,
		NativeHeight: raster.nativeHeight,
		Subsample:    raster.factor,
		Chosen:       -1,
	}
	span.SetAttributes(
		attribute.String("image.format", raster.format),
		attribute.Int("image.subsample", raster.factor),
	)

	target := c.docs.TargetBytes()
	qualities := c.docs.Image.QualityLadder
	scales := c.docs.Image.ScaleLadder

	var best []byte
	scale := 1.0
	for i, quality := range qualities {
		if err := ctx.Err(); err != nil {
			return nil, nil, models.NewProcessingError(models.ErrTimeout, "image ladder", err)
		}

		if i < len(scales) {
			scale *= scales[i]
		}
		img := scaled(base, scale)

		var buf bytes.Buffer
		if err := c.encoder.Encode(&buf, img, raster.format, quality); err != nil {
			span.RecordError(err)
			return nil, nil, models.NewProcessingError(models.ErrImageCompressionFailed, "encode", err)
		}

		b := img.Bounds()
		report.Passes = append(report.Passes, Pass{
			Quality: quality,
			Scale:   scale,
			Width:   b.Dx(),
			Height:  b.Dy(),
			Size:    buf.Len(),
		})
		c.logger.Debug("Image pass encoded",
			zap.Int("pass", i+1),
			zap.Float64("quality", quality),
			zap.Float64("scale", scale),
			zap.Int("width", b.Dx()),
			zap.Int("height", b.Dy()),
			zap.Int("size", buf.Len()),
		)

		if best == nil || buf.Len() < len(best) {
			best = buf.Bytes()
			report.Chosen = i
		}

		if int64(len(best)) <= target {
			report.ReachedTarget = true
			break
		}
	}

	if best == nil || len(best) >= len(data) {
		report.KeptOriginal = true
		report.Chosen = -1
		return data, report, nil
	}

	return best, report, nil
}
