package constants

import "strings"

// Document formats understood by the text extractor.
const (
	FormatPDF   = "PDF"
	FormatImage = "IMAGE"
	FormatText  = "TXT"
)

// FileTypes holds the document formats the pipeline accepts.
var FileTypes = []string{FormatPDF, FormatImage, FormatText}

// AllowedExtensions holds the default allowed file extensions for invoice ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the document format for an extension, or "" when unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return FormatPDF
	case "jpg", "jpeg", "png", "tif", "tiff":
		return FormatImage
	case "txt":
		return FormatText
	default:
		return ""
	}
}
