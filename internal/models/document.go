package models

import "strings"

// MaxDocumentSize is the ceiling for any uploaded document entering a pipeline.
const MaxDocumentSize = 1 << 20

const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWebP = "image/webp"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var allowedMIMETypes = map[string]bool{
	MIMEPDF:  true,
	MIMEJPEG: true,
	MIMEPNG:  true,
	MIMEGIF:  true,
	MIMEWebP: true,
}

// IsAllowedMIME reports whether the type may be sent to the model as an inline payload.
func IsAllowedMIME(mimeType string) bool {
	return allowedMIMETypes[NormalizeMIME(mimeType)]
}

// NormalizeMIME drops parameters and case from a content type header value.
func NormalizeMIME(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Document is an uploaded binary payload. It is only held for the lifetime of one call.
type Document struct {
	Filename string
	MIMEType string
	Data     []byte
}

func (d *Document) Size() int {
	if d == nil {
		return 0
	}
	return len(d.Data)
}
