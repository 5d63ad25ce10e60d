package normalizer

import (
	"path/filepath"
	"strings"
)

// mimeExtensions maps output mime types to their canonical file
// extensions.
var mimeExtensions = map[string]string{
	MimeWebP: ".webp",
	MimeJPEG: ".jpg",
	MimePNG:  ".png",
	MimeGIF:  ".gif",
}

// ExtensionForMime returns the canonical file extension for an image
// mime type. Unknown image subtypes fall back to "." + subtype.
func ExtensionForMime(mimeType string) string {
	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext
	}
	return "." + strings.TrimPrefix(mimeType, "image/")
}

// RenameForMime replaces the trailing extension of name with the
// canonical extension for mimeType, appending it when name has no
// extension.
func RenameForMime(name, mimeType string) string {
	ext := ExtensionForMime(mimeType)
	if old := filepath.Ext(name); old != "" {
		return strings.TrimSuffix(name, old) + ext
	}
	return name + ext
}
