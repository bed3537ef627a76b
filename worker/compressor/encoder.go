package compressor

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Format names as reported by image.DecodeConfig.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// Encoder writes a raster in the given format. Quality is in (0,1];
// lossless formats ignore it.
type Encoder interface {
	Encode(w io.Writer, img image.Image, format string, quality float64) error
}

// Codec is the production Encoder.
type Codec struct{}

func (Codec) Encode(w io.Writer, img image.Image, format string, quality float64) error {
	switch format {
	case FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality)))
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality * 100)})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func SupportsFormat(format string) bool {
	switch format {
	case FormatJPEG, FormatPNG, FormatWebP:
		return true
	default:
		return false
	}
}

func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	switch {
	case v < 1:
		return 1
	case v > 100:
		return 100
	default:
		return v
	}
}
