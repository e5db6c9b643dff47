// Package extract turns uploaded files into documents: plain text plus the metadata
// chunking and de-duplication rely on.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/mcqgen/internal/models"
)

type extractFunc func(content []byte) ([]section, error)

// section is one unit of extracted text. PDFs yield one per page, workbooks one per sheet.
type section struct {
	text string
	meta map[string]interface{}
}

var extractors = map[string]extractFunc{
	".pdf":  extractPDF,
	".docx": single(extractDOCX),
	".pptx": single(extractPPTX),
	".odp":  single(extractODP),
	".ods":  single(extractODS),
	".odt":  single(extractWithCat),
	".rtf":  single(extractWithCat),
	".xlsx": extractExcel,
	".txt":  single(extractPlain),
	".md":   single(extractPlain),
	".rst":  single(extractPlain),
}

func single(fn func([]byte) (string, error)) extractFunc {
	return func(content []byte) ([]section, error) {
		text, err := fn(content)
		if err != nil {
			return nil, err
		}
		return []section{{text: text}}, nil
	}
}

// SupportedExtensions returns the lower-case extensions, with leading dot, that can be extracted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extractors))
	for ext := range extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Supported reports whether the extension of path can be extracted.
func Supported(path string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extractor extracts documents from files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its documents, each with "source" set
// to path. PDFs produce one document per page with a zero-based "page".
func (e *Extractor) Extract(path string) ([]models.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, path)
}

// ExtractBytes extracts documents from content, choosing the format by the extension
// of source. Unsupported extensions are an error.
func (e *Extractor) ExtractBytes(content []byte, source string) ([]models.Document, error) {
	ext := strings.ToLower(filepath.Ext(source))
	fn, ok := extractors[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	sections, err := fn(content)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(source), err)
	}
	docs := make([]models.Document, 0, len(sections))
	for _, s := range sections {
		meta := models.CloneMetadata(s.meta)
		meta[models.MetaSource] = source
		docs = append(docs, models.Document{Content: s.text, Metadata: meta})
	}
	return docs, nil
}
