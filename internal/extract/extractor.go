// Package extract turns source documents of various formats into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupported is returned for content that cannot be read as text, such as images or archives.
var ErrUnsupported = errors.New("unsupported document format")

type extractFunc func(content []byte) (string, error)

// Extractor extracts plain text from document files.
type Extractor struct {
	handlers map[string]extractFunc
}

// NewExtractor returns an Extractor that knows PDF, OOXML, OpenDocument and plain text formats.
func NewExtractor() *Extractor {
	return &Extractor{handlers: map[string]extractFunc{
		".pdf":  extractPDF,
		".docx": extractDOCX,
		".xlsx": extractExcel,
		".pptx": extractPPTX,
		".odt":  extractODF,
		".odp":  extractODF,
		".ods":  extractODF,
		".txt":  extractPlain,
		".md":   extractPlain,
		".rst":  extractPlain,
		".csv":  extractPlain,
		".html": extractPlain,
		".htm":  extractPlain,
	}}
}

// Extensions returns the known extensions in sorted order.
func (e *Extractor) Extensions() []string {
	exts := make([]string, 0, len(e.handlers))
	for ext := range e.handlers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes extracts text from content based on the given extension (with leading dot).
// Unknown extensions are read as plain text unless the content looks binary.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	if fn, ok := e.handlers[strings.ToLower(ext)]; ok {
		return fn(content)
	}
	if looksBinary(content) {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return extractPlain(content)
}

// looksBinary reports whether the first KiB contains a NUL byte.
func looksBinary(content []byte) bool {
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.IndexByte(head, 0) >= 0
}
