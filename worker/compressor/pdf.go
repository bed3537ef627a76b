package compressor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"docOptimizer/worker/config"
	"docOptimizer/worker/models"
)

const kb = 1024

func init() {
	api.DisableConfigDir()
}

type PDFReport struct {
	Skipped      bool
	Pages        int
	Images       int
	LargeImages  int
	Rewritten    int
	Unsupported  int
	RewriteSize  int
	KeptOriginal bool
}

func (r *PDFReport) String() string {
	if r.Skipped {
		return "pdf below compression threshold"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "pages=%d images=%d large=%d rewritten=%d unsupported=%d rewrite_size=%s",
		r.Pages, r.Images, r.LargeImages, r.Rewritten, r.Unsupported, models.FormatBytes(int64(r.RewriteSize)))
	if r.KeptOriginal {
		b.WriteString(" kept=original")
	}
	return b.String()
}

type rewriteFunc func(ctx context.Context, data []byte, report *PDFReport) ([]byte, error)

// PDFCompressor recompresses large embedded images and rewrites the
// document with object and xref streams. Text, fonts and vector content
// are copied through untouched.
type PDFCompressor struct {
	docs    config.Documents
	encoder Encoder
	logger  *zap.Logger
	rewrite rewriteFunc
}

func NewPDFCompressor(docs config.Documents, logger *zap.Logger, opts ...Option) *PDFCompressor {
	c := &PDFCompressor{
		docs:    docs,
		encoder: buildOptions(opts).encoder,
		logger:  logger,
	}
	c.rewrite = c.rewriteDocument
	return c
}

// Compress never returns a partially rewritten document: any failure
// inside the rewrite is reported as ErrPdfCompressionFailed.
func (c *PDFCompressor) Compress(ctx context.Context, data []byte) ([]byte, *PDFReport, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "PDFCompressor.Compress")
	defer span.End()

	report := &PDFReport{}
	if int64(len(data)) < c.docs.PDF.MinSizeToCompressKB*kb {
		report.Skipped = true
		return data, report, nil
	}

	out, err := c.rewrite(ctx, data, report)
	if err != nil {
		span.RecordError(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, models.NewProcessingError(models.ErrTimeout, "pdf rewrite", ctxErr)
		}
		return nil, nil, models.NewProcessingError(models.ErrPdfCompressionFailed, "pdf rewrite", err)
	}

	report.RewriteSize = len(out)
	span.SetAttributes(
		attribute.Int("pdf.pages", report.Pages),
		attribute.Int("pdf.images_rewritten", report.Rewritten),
	)

	if len(out) >= len(data) {
		report.KeptOriginal = true
		c.logger.Debug("PDF rewrite not smaller, keeping original",
			zap.Int("original_size", len(data)),
			zap.Int("rewrite_size", len(out)),
		)
		return data, report, nil
	}

	return out, report, nil
}

func (c *PDFCompressor) rewriteDocument(ctx context.Context, data []byte, report *PDFReport) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("pdf library panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = true
	conf.WriteXRefStream = true

	pctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	if err := api.ValidateContext(pctx); err != nil {
		return nil, fmt.Errorf("failed to validate pdf: %w", err)
	}
	if err := api.OptimizeContext(pctx); err != nil {
		return nil, fmt.Errorf("failed to optimize pdf: %w", err)
	}
	if pctx.Root == nil {
		return nil, errors.New("pdf has no document catalog")
	}

	report.Pages = pctx.PageCount

	images, err := collectImages(pctx, *pctx.Root)
	if err != nil {
		return nil, err
	}

	threshold := c.docs.PDF.ImageThresholdKB * kb
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report.Images++
		if int64(len(img.sd.Raw)) <= threshold {
			continue
		}
		report.LargeImages++

		raster, comps, err := decodeImageXObject(pctx, img.sd, c.docs.Image.MaxDecodePixels)
		if errors.Is(err, errUnsupportedImage) {
			report.Unsupported++
			c.logger.Debug("Skipping PDF image with unsupported encoding", zap.Int("object", img.objNr))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", img.objNr, err)
		}

		replacement, err := reencodeImage(c.encoder, img.sd, raster, comps, c.docs.PDF.ImageMaxDimension, c.docs.PDF.ImageQuality)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", img.objNr, err)
		}
		if replacement == nil {
			continue
		}

		entry, ok := pctx.Table[img.objNr]
		if !ok || entry == nil {
			continue
		}
		entry.Object = *replacement
		report.Rewritten++

		c.logger.Debug("PDF image recompressed",
			zap.Int("object", img.objNr),
			zap.Int("original_size", len(img.sd.Raw)),
			zap.Int("new_size", len(replacement.Raw)),
		)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(pctx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
