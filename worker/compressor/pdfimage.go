package compressor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var errUnsupportedImage = errors.New("unsupported image encoding")

const (
	filterDCT   = "DCTDecode"
	filterFlate = "FlateDecode"
)

// decodeImageXObject turns an image stream into a raster. It understands
// baseline JPEG and 8-bit gray/RGB samples that are unfiltered or flate
// encoded; everything else yields errUnsupportedImage. Images whose declared
// dimensions exceed maxPixels are refused before any pixel data is inflated.
func decodeImageXObject(r objectResolver, sd types.StreamDict, maxPixels int64) (image.Image, int, error) {
	d := sd.Dict

	if v, found := d.Find("ImageMask"); found {
		if b, ok := v.(types.Boolean); ok && bool(b) {
			return nil, 0, errUnsupportedImage
		}
	}
	if _, found := d.Find("Mask"); found {
		return nil, 0, errUnsupportedImage
	}
	if _, found := d.Find("Decode"); found {
		return nil, 0, errUnsupportedImage
	}

	comps, err := colorComponents(r, d)
	if err != nil {
		return nil, 0, err
	}

	filters := make([]string, 0, len(sd.FilterPipeline))
	for _, f := range sd.FilterPipeline {
		filters = append(filters, f.Name)
	}

	switch {
	case len(filters) == 1 && filters[0] == filterDCT:
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(sd.Raw))
		if err != nil {
			return nil, 0, jpegError(err)
		}
		if exceedsPixelBudget(cfg.Width, cfg.Height, maxPixels) {
			return nil, 0, errUnsupportedImage
		}
		img, err := jpeg.Decode(bytes.NewReader(sd.Raw))
		if err != nil {
			return nil, 0, jpegError(err)
		}
		return img, comps, nil

	case len(filters) == 0 || (len(filters) == 1 && filters[0] == filterFlate):
		return decodeSamples(&sd, comps, maxPixels)

	default:
		return nil, 0, errUnsupportedImage
	}
}

func jpegError(err error) error {
	var unsupported jpeg.UnsupportedError
	if errors.As(err, &unsupported) {
		return errUnsupportedImage
	}
	return fmt.Errorf("failed to decode jpeg image: %w", err)
}

func decodeSamples(sd *types.StreamDict, comps int, maxPixels int64) (image.Image, int, error) {
	bpc := sd.Dict.IntEntry("BitsPerComponent")
	w := sd.Dict.IntEntry("Width")
	h := sd.Dict.IntEntry("Height")
	if bpc == nil || *bpc != 8 || w == nil || h == nil || *w <= 0 || *h <= 0 {
		return nil, 0, errUnsupportedImage
	}
	if exceedsPixelBudget(*w, *h, maxPixels) {
		return nil, 0, errUnsupportedImage
	}

	src := sd.Raw
	if len(sd.FilterPipeline) > 0 {
		if err := sd.Decode(); err != nil {
			return nil, 0, fmt.Errorf("failed to decode image stream: %w", err)
		}
		src = sd.Content
	}

	width, height := *w, *h
	if want := int64(width) * int64(height) * int64(comps); int64(len(src)) < want {
		return nil, 0, fmt.Errorf("image stream holds %d bytes, want %d", len(src), want)
	}

	if comps == 1 {
		g := image.NewGray(image.Rect(0, 0, width, height))
		copy(g.Pix, src[:width*height])
		return g, comps, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < width*height; i, j = i+1, j+3 {
		img.Pix[i*4] = src[j]
		img.Pix[i*4+1] = src[j+1]
		img.Pix[i*4+2] = src[j+2]
		img.Pix[i*4+3] = 0xff
	}
	return img, comps, nil
}

// colorComponents accepts DeviceGray, DeviceRGB and ICCBased profiles with
// one or three components.
func colorComponents(r objectResolver, d types.Dict) (int, error) {
	cs, found := d.Find("ColorSpace")
	if !found {
		return 0, errUnsupportedImage
	}
	cs, err := r.Dereference(cs)
	if err != nil {
		return 0, fmt.Errorf("failed to dereference color space: %w", err)
	}

	switch v := cs.(type) {
	case types.Name:
		switch string(v) {
		case "DeviceGray":
			return 1, nil
		case "DeviceRGB":
			return 3, nil
		}
	case types.Array:
		if len(v) != 2 {
			break
		}
		if name, ok := v[0].(types.Name); !ok || string(name) != "ICCBased" {
			break
		}
		profile, err := r.Dereference(v[1])
		if err != nil {
			return 0, fmt.Errorf("failed to dereference icc profile: %w", err)
		}
		if psd, ok := profile.(types.StreamDict); ok {
			if n := psd.Dict.IntEntry("N"); n != nil && (*n == 1 || *n == 3) {
				return *n, nil
			}
		}
	}
	return 0, errUnsupportedImage
}

// reencodeImage fits img into maxDim and writes it as JPEG. It returns nil
// when the new stream would not be smaller than the original.
func reencodeImage(enc Encoder, sd types.StreamDict, img image.Image, comps, maxDim int, quality float64) (*types.StreamDict, error) {
	out := fit(img, maxDim)
	if comps == 1 {
		out = toGray(out)
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, out, FormatJPEG, quality); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if buf.Len() >= len(sd.Raw) {
		return nil, nil
	}

	b := out.Bounds()
	nd := types.Dict{}
	for k, v := range sd.Dict {
		nd[k] = v
	}
	delete(nd, "DecodeParms")
	nd["Filter"] = types.Name(filterDCT)
	nd["Width"] = types.Integer(b.Dx())
	nd["Height"] = types.Integer(b.Dy())
	nd["BitsPerComponent"] = types.Integer(8)
	nd["Length"] = types.Integer(buf.Len())

	length := int64(buf.Len())
	return &types.StreamDict{
		Dict:           nd,
		StreamLength:   &length,
		FilterPipeline: []types.PDFFilter{{Name: filterDCT}},
		Raw:            buf.Bytes(),
	}, nil
}
