package services

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
)

var (
	xmlTagRe      = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`[ \t]+`)
	photoMIMEType = map[string]bool{models.MIMEJPEG: true, models.MIMEPNG: true, models.MIMEWebP: true}
)

// DocumentValidator enforces the upload rules before any document reaches a model:
// size ceiling, MIME allow-list, content sniffing and PDF well-formedness.
type DocumentValidator struct {
	maxSize int64
}

func NewDocumentValidator(maxSize int64) *DocumentValidator {
	if maxSize <= 0 || maxSize > models.MaxDocumentSize {
		maxSize = models.MaxDocumentSize
	}
	return &DocumentValidator{maxSize: maxSize}
}

// Validate checks any pipeline payload.
func (v *DocumentValidator) Validate(doc *models.Document) error {
	if doc == nil || doc.Size() == 0 {
		return pipeline.Validationf("document is empty")
	}
	if int64(doc.Size()) > v.maxSize {
		return pipeline.Validationf("document %q is %d bytes, limit is %d", doc.Filename, doc.Size(), v.maxSize)
	}

	declared := models.NormalizeMIME(doc.MIMEType)
	if !models.IsAllowedMIME(declared) {
		return pipeline.Validationf("document type %q is not allowed", declared)
	}
	if sniffed := models.NormalizeMIME(http.DetectContentType(doc.Data)); sniffed != declared {
		return pipeline.Validationf("document declared as %q but looks like %q", declared, sniffed)
	}
	doc.MIMEType = declared

	if declared == models.MIMEPDF {
		r, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(doc.Size()))
		if err != nil || r.NumPage() == 0 {
			return pipeline.Validationf("document %q is not a readable PDF", doc.Filename)
		}
	}
	return nil
}

// ValidatePDF additionally requires the document to be a PDF.
func (v *DocumentValidator) ValidatePDF(doc *models.Document) error {
	if err := v.Validate(doc); err != nil {
		return err
	}
	if doc.MIMEType != models.MIMEPDF {
		return pipeline.Validationf("expected a PDF, got %q", doc.MIMEType)
	}
	return nil
}

// ValidatePhoto additionally requires a JPEG, PNG or WebP image.
func (v *DocumentValidator) ValidatePhoto(doc *models.Document) error {
	if err := v.Validate(doc); err != nil {
		return err
	}
	if !photoMIMEType[doc.MIMEType] {
		return pipeline.Validationf("photo must be JPEG, PNG or WebP, got %q", doc.MIMEType)
	}
	return nil
}

// ExtractText returns the plain text of a PDF, DOCX or text document.
func ExtractText(mimeType string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch models.NormalizeMIME(mimeType) {
	case "text/plain":
		text = string(data)
	case models.MIMEPDF:
		text, err = extractPDFText(data)
	case models.MIMEDocx:
		text, err = extractDocxText(data)
	default:
		return "", pipeline.Validationf("cannot extract text from %q", mimeType)
	}
	if err != nil {
		return "", err
	}

	text = CleanText(text)
	if text == "" {
		return "", errors.New("no text content found")
	}
	return text, nil
}

// ExtractFileText reads a reference document from disk.
func ExtractFileText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}

	mimeType := "text/plain"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		mimeType = models.MIMEPDF
	case ".docx":
		mimeType = models.MIMEDocx
	}
	return ExtractText(mimeType, data)
}

func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "failed to read pdf")
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse docx")
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	return xmlTagRe.ReplaceAllString(content, ""), nil
}

// CleanText trims every line and collapses runs of blank lines into one, so
// paragraph breaks survive for the chunker.
func CleanText(text string) string {
	var lines []string
	blank := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
		if line == "" {
			blank = len(lines) > 0
			continue
		}
		if blank {
			lines = append(lines, "")
			blank = false
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
