package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns the text of every readable page, pages separated by a blank line.
// Pages that fail to decode are skipped; the first page error is returned only when no page
// yielded text. The pdf reader panics on some malformed files, which is reported as an error.
func extractPDF(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var pages []string
	var pageErr error
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			if pageErr == nil {
				pageErr = fmt.Errorf("extract page %d: %w", i, err)
			}
			continue
		}
		if pageText = strings.TrimSpace(pageText); pageText != "" {
			pages = append(pages, pageText)
		}
	}
	if len(pages) == 0 && pageErr != nil {
		return "", pageErr
	}
	return strings.Join(pages, "\n\n"), nil
}
