package compressor

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"docOptimizer/worker/models"
)

// subsampleFactor is the integer reduction that brings w×h close to the
// maxW×maxH cap without going below it.
func subsampleFactor(w, h, maxW, maxH int) int {
	if maxW <= 0 || maxH <= 0 {
		return 1
	}
	return max(1, w/maxW, h/maxH)
}

type boundedRaster struct {
	img          image.Image
	format       string
	nativeWidth  int
	nativeHeight int
	factor       int
}

// exceedsPixelBudget reports whether a w×h raster is above maxPixels. A
// non-positive budget disables the check.
func exceedsPixelBudget(w, h int, maxPixels int64) bool {
	return maxPixels > 0 && int64(w)*int64(h) > maxPixels
}

// decodeBounded reads the header first and refuses rasters above maxPixels
// before any pixel buffer is allocated. The source is decoded in its native
// color model (YCbCr for JPEG) and reduced by the subsampling factor before
// EXIF orientation is applied, so no full-size RGBA copy is ever built. The
// factor is derived from the displayed dimensions.
func decodeBounded(data []byte, maxW, maxH int, maxPixels int64) (*boundedRaster, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewProcessingError(models.ErrImageCompressionFailed, "decode config", err)
	}
	if !SupportsFormat(format) {
		return nil, models.NewProcessingError(models.ErrUnsupportedType, "decode config",
			fmt.Errorf("image format %q", format))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, models.NewProcessingError(models.ErrImageCompressionFailed, "decode config",
			fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height))
	}
	if exceedsPixelBudget(cfg.Width, cfg.Height, maxPixels) {
		return nil, models.NewProcessingError(models.ErrInputTooLarge, "decode config",
			fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels))
	}

	orient := orientationNormal
	if format == FormatJPEG {
		orient = exifOrientation(data)
	}
	width, height := cfg.Width, cfg.Height
	if orient.swapsAxes() {
		width, height = height, width
	}
	factor := subsampleFactor(width, height, maxW, maxH)

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewProcessingError(models.ErrImageCompressionFailed, "decode", err)
	}

	return &boundedRaster{
		img:          orient.apply(subsample(src, factor)),
		format:       format,
		nativeWidth:  width,
		nativeHeight: height,
		factor:       factor,
	}, nil
}

func subsample(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	return imaging.Resize(img, max(1, b.Dx()/factor), max(1, b.Dy()/factor), imaging.Box)
}

// scaled resizes base by a cumulative factor. A factor of 1 returns base.
func scaled(base image.Image, factor float64) image.Image {
	if factor >= 1 {
		return base
	}
	b := base.Bounds()
	w := max(1, int(math.Round(float64(b.Dx())*factor)))
	h := max(1, int(math.Round(float64(b.Dy())*factor)))
	return imaging.Resize(base, w, h, imaging.Lanczos)
}

// fit shrinks img so neither side exceeds maxDim, keeping the aspect ratio.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
