package validation

import (
	"github.com/gabriel-vasile/mimetype"

	"docOptimizer/worker/config"
	"docOptimizer/worker/models"
)

// Validator rejects uploads before any processing happens. It stops at the
// first violation and never modifies the upload.
type Validator struct {
	docs config.Documents
}

func NewValidator(docs config.Documents) *Validator {
	return &Validator{docs: docs}
}

func (v *Validator) Validate(upload models.Upload) error {
	size := upload.Size()
	mime := upload.NormalizedMimeType()

	if size == 0 {
		return newError("file", ErrEmptyFile, "no content received")
	}
	if upload.DeclaredSize > 0 && upload.DeclaredSize != size {
		return newError("file", ErrSizeMismatch, "declared %d bytes, received %d", upload.DeclaredSize, size)
	}
	if size > v.docs.MaxFileSizeBytes {
		return newError("file", ErrFileTooLarge, "%s exceeds %s",
			models.FormatBytes(size), models.FormatBytes(v.docs.MaxFileSizeBytes))
	}
	if !v.docs.IsSupportedType(mime) {
		return newError("content_type", ErrUnsupportedType, "%q", upload.MimeType)
	}

	if err := v.checkClassCap(mime, size); err != nil {
		return err
	}

	detected := DetectMimeType(upload.Data)
	if detected != mime {
		return newError("file", ErrContentMismatch, "declared %s, detected %s", mime, detected)
	}

	return v.checkCategory(upload.Category, mime, size)
}

func (v *Validator) checkClassCap(mime string, size int64) error {
	limit := v.docs.InputCap(mime)
	if limit <= 0 || size <= limit {
		return nil
	}
	reason := ErrImageTooLarge
	if models.IsPDFMime(mime) {
		reason = ErrPDFTooLarge
	}
	return newError("file", reason, "%s exceeds %s", models.FormatBytes(size), models.FormatBytes(limit))
}

func (v *Validator) checkCategory(category models.Category, mime string, size int64) error {
	switch category {
	case models.CategoryProfilePhoto:
		if !v.docs.IsSupportedImageType(mime) {
			return newError("category", ErrCategoryType, "%s requires an image, got %s", category, mime)
		}
		if limit := v.docs.ProfilePhotoCap(); size > limit {
			return newError("file", ErrProfilePhotoTooLarge, "%s exceeds %s",
				models.FormatBytes(size), models.FormatBytes(limit))
		}
	case models.CategoryIdentityDocument, models.CategoryResume:
		if !v.docs.IsSupportedImageType(mime) && !v.docs.IsSupportedDocumentType(mime) {
			return newError("category", ErrCategoryType, "%s requires a pdf or an image, got %s", category, mime)
		}
	}
	return nil
}

// DetectMimeType sniffs data and returns the normalized content type.
func DetectMimeType(data []byte) string {
	return models.NormalizeMimeType(mimetype.Detect(data).String())
}
