package extract

import (
	"bytes"
	"fmt"

	"github.com/hyperjump/mcqgen/internal/models"
	"github.com/ledongthuc/pdf"
)

// extractPDF returns one section per page. Pages without a content stream are skipped
// but keep their numbering.
func extractPDF(content []byte) ([]section, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	out := make([]section, 0, numPages)
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		out = append(out, section{
			text: text,
			meta: map[string]interface{}{models.MetaPage: i},
		})
	}
	return out, nil
}
