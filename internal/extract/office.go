package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultBodyPath = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	odfContentPath      = "content.xml"
)

var (
	// <w:t> runs in WordprocessingML, with or without xml:space and other attributes.
	wordTextTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// <a:t> runs in DrawingML (slides).
	drawingTextTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	// OpenDocument paragraphs, headings and spans.
	odfTextTag = regexp.MustCompile(`<text:(?:p|h|span)[^>]*>([^<]*)</text:(?:p|h|span)>`)

	mainPartRe        = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	mainPartReversed  = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
	slideNumberSuffix = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

	xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

func readZipPart(zr *zip.Reader, name string) ([]byte, bool, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, true, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, true, fmt.Errorf("read %s: %w", name, err)
		}
		return data, true, nil
	}
	return nil, false, nil
}

// joinMatches concatenates the first capture group of every match, space separated.
func joinMatches(b *strings.Builder, re *regexp.Regexp, xml []byte) {
	for _, m := range re.FindAllSubmatch(xml, -1) {
		text := strings.TrimSpace(xmlEntities.Replace(string(m[1])))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
}

// docxMainPart resolves the main document part from [Content_Types].xml.
func docxMainPart(zr *zip.Reader) string {
	data, ok, err := readZipPart(zr, contentTypesPath)
	if !ok || err != nil {
		return docxDefaultBodyPath
	}
	for _, re := range []*regexp.Regexp{mainPartRe, mainPartReversed} {
		if m := re.FindSubmatch(data); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDefaultBodyPath
}

func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	part := docxMainPart(zr)
	body, ok, err := readZipPart(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("extract DOCX: %s not found", part)
	}
	var b strings.Builder
	joinMatches(&b, wordTextTag, body)
	return b.String(), nil
}

// extractPPTX reads slides in slide-number order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slideNumberSuffix.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n: n, name: f.Name})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		data, _, err := readZipPart(zr, s.name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		joinMatches(&b, drawingTextTag, data)
	}
	return b.String(), nil
}

// extractODF handles OpenDocument text, presentation and spreadsheet packages.
func extractODF(content []byte) (string, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return "", err
	}
	data, ok, err := readZipPart(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("extract OpenDocument: %s not found", odfContentPath)
	}
	var b strings.Builder
	joinMatches(&b, odfTextTag, data)
	return b.String(), nil
}
