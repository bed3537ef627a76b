package models

import "strings"

const (
	MimeJPEG    = "image/jpeg"
	MimeJPG     = "image/jpg"
	MimePNG     = "image/png"
	MimeWebP    = "image/webp"
	MimePDF     = "application/pdf"
	MimeUnknown = "application/octet-stream"
)

// Upload is one file handed to the pipeline. Data is never modified.
type Upload struct {
	Data         []byte
	MimeType     string
	DeclaredSize int64
	Category     Category
}

func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// NormalizedMimeType lowercases the declared type, drops parameters and
// folds image/jpg into image/jpeg.
func (u Upload) NormalizedMimeType() string {
	return NormalizeMimeType(u.MimeType)
}

func NormalizeMimeType(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == MimeJPG {
		return MimeJPEG
	}
	return mime
}

func IsImageMime(mime string) bool {
	switch NormalizeMimeType(mime) {
	case MimeJPEG, MimePNG, MimeWebP:
		return true
	default:
		return false
	}
}

func IsPDFMime(mime string) bool {
	return NormalizeMimeType(mime) == MimePDF
}
