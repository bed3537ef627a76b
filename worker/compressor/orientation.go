package compressor

import (
	"encoding/binary"
	"image"

	"github.com/disintegration/imaging"
)

// orientation is the EXIF Orientation tag value (1-8).
type orientation int

const (
	orientationNormal     orientation = 1
	orientationFlipH      orientation = 2
	orientationRotate180  orientation = 3
	orientationFlipV      orientation = 4
	orientationTranspose  orientation = 5
	orientationRotate270  orientation = 6
	orientationTransverse orientation = 7
	orientationRotate90   orientation = 8
)

const (
	markerPrefix   = 0xff
	markerSOI      = 0xd8
	markerAPP1     = 0xe1
	markerSOS      = 0xda
	markerEOI      = 0xd9
	tagOrientation = 0x0112
)

// swapsAxes reports whether displaying the image exchanges width and height.
func (o orientation) swapsAxes() bool {
	return o >= orientationTranspose && o <= orientationRotate90
}

func (o orientation) apply(img image.Image) image.Image {
	switch o {
	case orientationFlipH:
		return imaging.FlipH(img)
	case orientationRotate180:
		return imaging.Rotate180(img)
	case orientationFlipV:
		return imaging.FlipV(img)
	case orientationTranspose:
		return imaging.Transpose(img)
	case orientationRotate270:
		return imaging.Rotate270(img)
	case orientationTransverse:
		return imaging.Transverse(img)
	case orientationRotate90:
		return imaging.Rotate90(img)
	}
	return img
}

// exifOrientation scans the JPEG marker segments up to the first scan and
// returns the orientation recorded in an EXIF APP1 block. Anything missing
// or malformed reads as orientationNormal.
func exifOrientation(data []byte) orientation {
	if len(data) < 4 || data[0] != markerPrefix || data[1] != markerSOI {
		return orientationNormal
	}

	for p := 2; p+4 <= len(data); {
		if data[p] != markerPrefix {
			return orientationNormal
		}
		marker := data[p+1]
		if marker == markerSOS || marker == markerEOI {
			return orientationNormal
		}
		size := int(binary.BigEndian.Uint16(data[p+2:]))
		end := p + 2 + size
		if size < 2 || end > len(data) {
			return orientationNormal
		}
		if marker == markerAPP1 {
			if o, ok := tiffOrientation(data[p+4 : end]); ok {
				return o
			}
		}
		p = end
	}
	return orientationNormal
}

func tiffOrientation(seg []byte) (orientation, bool) {
	if len(seg) < 14 || string(seg[:6]) != "Exif\x00\x00" {
		return 0, false
	}
	tiff := seg[6:]

	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, false
	}

	ifd := int64(order.Uint32(tiff[4:8]))
	if ifd < 8 || ifd+2 > int64(len(tiff)) {
		return 0, false
	}
	entries := int(order.Uint16(tiff[ifd:]))
	for i := range entries {
		e := int(ifd) + 2 + i*12
		if e+12 > len(tiff) {
			return 0, false
		}
		if order.Uint16(tiff[e:]) != tagOrientation {
			continue
		}
		o := orientation(order.Uint16(tiff[e+8:]))
		if o < orientationNormal || o > orientationRotate90 {
			return 0, false
		}
		return o, true
	}
	return 0, false
}
