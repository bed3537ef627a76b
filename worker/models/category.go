package models

import "strings"

// Category selects the dimension caps and validation overlays applied to an upload.
type Category string

const (
	CategoryProfilePhoto     Category = "PROFILE_PHOTO"
	CategoryIdentityDocument Category = "IDENTITY_DOCUMENT"
	CategoryResume           Category = "RESUME"
	CategoryOther            Category = "OTHER"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryProfilePhoto, CategoryIdentityDocument, CategoryResume, CategoryOther:
		return true
	default:
		return false
	}
}

// ParseCategory accepts a category name or any document type name and
// falls back to CategoryOther.
func ParseCategory(s string) Category {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if c.Valid() {
		return c
	}
	return ParseDocumentType(s).Category()
}

type DocumentType string

const (
	DocumentAadhaarCard          DocumentType = "AADHAAR_CARD"
	DocumentPanCard              DocumentType = "PAN_CARD"
	DocumentPassport             DocumentType = "PASSPORT"
	DocumentDrivingLicense       DocumentType = "DRIVING_LICENSE"
	DocumentVoterID              DocumentType = "VOTER_ID"
	DocumentBirthCertificate     DocumentType = "BIRTH_CERTIFICATE"
	DocumentEducationCertificate DocumentType = "EDUCATION_CERTIFICATE"
	DocumentIncomeCertificate    DocumentType = "INCOME_CERTIFICATE"
	DocumentCasteCertificate     DocumentType = "CASTE_CERTIFICATE"
	DocumentProfilePhoto         DocumentType = "PROFILE_PHOTO"
	DocumentResume               DocumentType = "RESUME"
	DocumentOther                DocumentType = "OTHER"
)

var documentTypes = []struct {
	typ     DocumentType
	display string
}{
	{DocumentAadhaarCard, "Aadhaar Card"},
	{DocumentPanCard, "PAN Card"},
	{DocumentPassport, "Passport"},
	{DocumentDrivingLicense, "Driving License"},
	{DocumentVoterID, "Voter ID"},
	{DocumentBirthCertificate, "Birth Certificate"},
	{DocumentEducationCertificate, "Education Certificate"},
	{DocumentIncomeCertificate, "Income Certificate"},
	{DocumentCasteCertificate, "Caste Certificate"},
	{DocumentProfilePhoto, "Profile Photo"},
	{DocumentResume, "Resume"},
	{DocumentOther, "Other"},
}

// ParseDocumentType matches either the display name ("PAN Card") or the
// constant name ("PAN_CARD"), ignoring case. Unknown input maps to DocumentOther.
func ParseDocumentType(s string) DocumentType {
	s = strings.TrimSpace(s)
	for _, d := range documentTypes {
		if strings.EqualFold(d.display, s) || strings.EqualFold(string(d.typ), s) {
			return d.typ
		}
	}
	return DocumentOther
}

func (d DocumentType) DisplayName() string {
	for _, dt := range documentTypes {
		if dt.typ == d {
			return dt.display
		}
	}
	return "Other"
}

func (d DocumentType) Category() Category {
	switch d {
	case DocumentAadhaarCard, DocumentPanCard, DocumentPassport, DocumentDrivingLicense, DocumentVoterID:
		return CategoryIdentityDocument
	case DocumentProfilePhoto:
		return CategoryProfilePhoto
	case DocumentResume:
		return CategoryResume
	default:
		return CategoryOther
	}
}
