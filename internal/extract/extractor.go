// Package extract provides page-segmented text extraction from document files.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
)

// Extractor extracts page-segmented text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages reads the file at path and returns its pages.
// PDF yields one page per PDF page, spreadsheets one per sheet, and
// presentations one per slide. Word documents and plain text are one page.
// Returns an error if the file cannot be read or parsed.
func (e *Extractor) ExtractPages(path string) ([]models.Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractPagesBytes(content, ext)
}

// ExtractPagesBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Unknown extensions are
// read as plain text.
func (e *Extractor) ExtractPagesBytes(content []byte, ext string) ([]models.Page, error) {
	var texts []string
	var err error
	switch ext {
	case ".pdf":
		texts, err = extractPDF(content)
	case ".docx":
		texts, err = extractDOCX(content)
	case ".xlsx":
		texts, err = extractExcel(content)
	case ".pptx":
		texts, err = extractPPTX(content)
	case ".odp":
		texts, err = extractODP(content)
	case ".ods":
		texts, err = extractODS(content)
	default:
		texts = []string{extractPlain(content)}
	}
	if err != nil {
		return nil, err
	}
	return Pages(texts...), nil
}

// SupportedExtensions lists the extensions with a dedicated parser.
// Anything else is read as plain text.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods", ".txt", ".md", ".rst"}
}

// Pages numbers texts from 1 and sets each page's rune offset as if the
// texts were concatenated.
func Pages(texts ...string) []models.Page {
	pages := make([]models.Page, len(texts))
	offset := 0
	for i, text := range texts {
		pages[i] = models.Page{Index: i + 1, Offset: offset, Text: text}
		offset += utf8.RuneCountInString(text)
	}
	return pages
}
