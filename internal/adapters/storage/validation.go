package storage

import (
	"fmt"
	"strings"
)

// maxMediaBytes caps stored media at the carrier MMS limit plus headroom.
const maxMediaBytes = 10 << 20 // 10 MiB

// AllowedMediaTypes lists the MIME types carriers deliver over MMS.
var AllowedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,

	"audio/mpeg":  true,
	"audio/ogg":   true,
	"audio/amr":   true,
	"audio/wav":   true,
	"audio/x-wav": true,

	"video/mp4":  true,
	"video/3gpp": true,
	"video/webm": true,

	"text/vcard":   true,
	"text/x-vcard": true,
	"text/plain":   true,
	"text/calendar": true,
}

// ValidateContentType checks whether the content type is accepted for storage.
func ValidateContentType(contentType string) error {
	// Strip parameters like charset before the lookup.
	normalized := strings.Split(contentType, ";")[0]
	normalized = strings.TrimSpace(strings.ToLower(normalized))

	if !AllowedMediaTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// IsImageContentType checks if the content type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}
