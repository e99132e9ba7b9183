package constants

import "strings"

// AllowedImageTypes are the mime types accepted for bill uploads.
var AllowedImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/heic": {},
	"image/heif": {},
}

// MaxUploadMBDefault caps the raw upload size before base64 encoding.
const MaxUploadMBDefault = 10

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeForExt maps common image extensions to a mime type; empty when unknown.
func MimeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "heic":
		return "image/heic"
	case "heif":
		return "image/heif"
	}
	return ""
}

// IsAllowedImage reports whether mt (parameters ignored) is an accepted upload type.
func IsAllowedImage(mt string) bool {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	_, ok := AllowedImageTypes[strings.ToLower(strings.TrimSpace(mt))]
	return ok
}
