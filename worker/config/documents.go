package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"docOptimizer/worker/models"
)

const kb = 1024

// Documents is the size budget shared by every processing call. It is
// loaded once and never mutated afterwards.
type Documents struct {
	MaxFileSizeBytes       int64         `yaml:"max_file_size_bytes"      env:"DOC_MAX_FILE_SIZE_BYTES"`
	TargetFileSizeKB       int64         `yaml:"target_file_size_kb"      env:"DOC_TARGET_FILE_SIZE_KB"`
	MinEffectiveGainPct    float64       `yaml:"min_effective_gain_pct"   env:"DOC_MIN_EFFECTIVE_GAIN_PCT"`
	ProcessingTimeout      time.Duration `yaml:"processing_timeout"       env:"DOC_PROCESSING_TIMEOUT"`
	SlowOperationThreshold time.Duration `yaml:"slow_operation_threshold" env:"DOC_SLOW_OPERATION_THRESHOLD"`
	Workers                int           `yaml:"workers"                  env:"DOC_WORKERS"`
	SupportedImageTypes    []string      `yaml:"supported_image_types"    env:"DOC_SUPPORTED_IMAGE_TYPES"`
	SupportedDocumentTypes []string      `yaml:"supported_document_types" env:"DOC_SUPPORTED_DOCUMENT_TYPES"`

	Image ImageBudget `yaml:"image"`
	PDF   PDFBudget   `yaml:"pdf"`
}

type ImageBudget struct {
	MaxInputSizeBytes           int64     `yaml:"max_input_size_bytes"           env:"DOC_IMAGE_MAX_INPUT_SIZE_BYTES"`
	MaxWidth                    int       `yaml:"max_width"                      env:"DOC_IMAGE_MAX_WIDTH"`
	MaxHeight                   int       `yaml:"max_height"                     env:"DOC_IMAGE_MAX_HEIGHT"`
	ProfilePhotoSize            int       `yaml:"profile_photo_size"             env:"DOC_IMAGE_PROFILE_PHOTO_SIZE"`
	MaxDecodePixels             int64     `yaml:"max_decode_pixels"              env:"DOC_IMAGE_MAX_DECODE_PIXELS"`
	QualityLadder               []float64 `yaml:"quality_ladder"                 env:"DOC_IMAGE_QUALITY_LADDER"`
	ScaleLadder                 []float64 `yaml:"scale_ladder"                   env:"DOC_IMAGE_SCALE_LADDER"`
	ProfilePhotoMaxSizeKB       int64     `yaml:"profile_photo_max_size_kb"      env:"DOC_PROFILE_PHOTO_MAX_SIZE_KB"`
	ProfilePhotoInputMultiplier int64     `yaml:"profile_photo_input_multiplier" env:"DOC_PROFILE_PHOTO_INPUT_MULTIPLIER"`
}

type PDFBudget struct {
	MaxInputSizeBytes   int64   `yaml:"max_input_size_bytes"   env:"DOC_PDF_MAX_INPUT_SIZE_BYTES"`
	MinSizeToCompressKB int64   `yaml:"min_size_to_compress_kb" env:"DOC_PDF_MIN_SIZE_TO_COMPRESS_KB"`
	ImageThresholdKB    int64   `yaml:"image_threshold_kb"     env:"DOC_PDF_IMAGE_THRESHOLD_KB"`
	ImageMaxDimension   int     `yaml:"image_max_dimension"    env:"DOC_PDF_IMAGE_MAX_DIMENSION"`
	ImageQuality        float64 `yaml:"image_quality"          env:"DOC_PDF_IMAGE_QUALITY"`
}

func DefaultDocuments() Documents {
	return Documents{
		MaxFileSizeBytes:       15 * kb * kb,
		TargetFileSizeKB:       1536,
		MinEffectiveGainPct:    0,
		ProcessingTimeout:      10 * time.Second,
		SlowOperationThreshold: time.Second,
		Workers:                0,
		SupportedImageTypes:    []string{models.MimeJPEG, models.MimeJPG, models.MimePNG, models.MimeWebP},
		SupportedDocumentTypes: []string{models.MimePDF},
		Image: ImageBudget{
			MaxInputSizeBytes:           10 * kb * kb,
			MaxWidth:                    2560,
			MaxHeight:                   1080,
			ProfilePhotoSize:            800,
			MaxDecodePixels:             64_000_000,
			QualityLadder:               []float64{0.95, 0.85, 0.60},
			ScaleLadder:                 []float64{1.0, 0.9, 0.9},
			ProfilePhotoMaxSizeKB:       200,
			ProfilePhotoInputMultiplier: 10,
		},
		PDF: PDFBudget{
			MaxInputSizeBytes:   10 * kb * kb,
			MinSizeToCompressKB: 100,
			ImageThresholdKB:    300,
			ImageMaxDimension:   1800,
			ImageQuality:        0.75,
		},
	}
}

func (d Documents) Validate() error {
	if d.TargetFileSizeKB <= 0 {
		return errors.New("documents.target_file_size_kb must be positive")
	}
	if d.Image.MaxInputSizeBytes <= 0 || d.PDF.MaxInputSizeBytes <= 0 {
		return errors.New("documents input caps must be positive")
	}
	if d.Image.MaxWidth <= 0 || d.Image.MaxHeight <= 0 || d.Image.ProfilePhotoSize <= 0 {
		return errors.New("documents.image dimension caps must be positive")
	}
	if len(d.Image.QualityLadder) == 0 {
		return errors.New("documents.image.quality_ladder must not be empty")
	}
	if len(d.Image.QualityLadder) != len(d.Image.ScaleLadder) {
		return fmt.Errorf("documents.image ladders differ in length: %d qualities, %d scales",
			len(d.Image.QualityLadder), len(d.Image.ScaleLadder))
	}
	for i, q := range d.Image.QualityLadder {
		if q <= 0 || q > 1 {
			return fmt.Errorf("documents.image.quality_ladder[%d] = %v is outside (0,1]", i, q)
		}
	}
	for i, s := range d.Image.ScaleLadder {
		if s <= 0 || s > 1 {
			return fmt.Errorf("documents.image.scale_ladder[%d] = %v is outside (0,1]", i, s)
		}
	}
	if d.PDF.ImageQuality <= 0 || d.PDF.ImageQuality > 1 {
		return fmt.Errorf("documents.pdf.image_quality = %v is outside (0,1]", d.PDF.ImageQuality)
	}
	if d.PDF.ImageMaxDimension <= 0 {
		return errors.New("documents.pdf.image_max_dimension must be positive")
	}
	if d.MinEffectiveGainPct < 0 || d.MinEffectiveGainPct >= 100 {
		return fmt.Errorf("documents.min_effective_gain_pct = %v is outside [0,100)", d.MinEffectiveGainPct)
	}
	return nil
}

func (d Documents) TargetBytes() int64 {
	return d.TargetFileSizeKB * kb
}

// MaxDimensions returns the decode cap for a category.
func (d Documents) MaxDimensions(c models.Category) (width, height int) {
	if c == models.CategoryProfilePhoto {
		return d.Image.ProfilePhotoSize, d.Image.ProfilePhotoSize
	}
	return d.Image.MaxWidth, d.Image.MaxHeight
}

// InputCap returns the per-class input cap for a MIME type, or zero for
// types the pipeline does not handle.
func (d Documents) InputCap(mime string) int64 {
	switch {
	case models.IsPDFMime(mime):
		return d.PDF.MaxInputSizeBytes
	case models.IsImageMime(mime):
		return d.Image.MaxInputSizeBytes
	default:
		return 0
	}
}

func (d Documents) ProfilePhotoCap() int64 {
	return d.Image.ProfilePhotoMaxSizeKB * d.Image.ProfilePhotoInputMultiplier * kb
}

func (d Documents) IsSupportedImageType(mime string) bool {
	return containsMime(d.SupportedImageTypes, mime) && models.IsImageMime(mime)
}

func (d Documents) IsSupportedDocumentType(mime string) bool {
	return containsMime(d.SupportedDocumentTypes, mime) && models.IsPDFMime(mime)
}

func (d Documents) IsSupportedType(mime string) bool {
	return d.IsSupportedImageType(mime) || d.IsSupportedDocumentType(mime)
}

// Timeout returns the processing deadline, or zero when none is configured.
func (d Documents) Timeout() time.Duration {
	if d.ProcessingTimeout < 0 {
		return 0
	}
	return d.ProcessingTimeout
}

func (d Documents) WorkerCount() int {
	if d.Workers <= 0 {
		return runtime.NumCPU()
	}
	return d.Workers
}

func containsMime(list []string, mime string) bool {
	mime = models.NormalizeMimeType(mime)
	return slices.ContainsFunc(list, func(s string) bool {
		return models.NormalizeMimeType(s) == mime
	})
}
