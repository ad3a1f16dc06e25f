// Package extract implements storage.Extractor against real PDF bytes.
package extract

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Aman-CERP/insightd/internal/apperrors"
)

// PDFExtractor extracts plain text and per-page byte boundaries from a PDF
// file's raw bytes, implementing storage.Extractor.
type PDFExtractor struct{}

// NewPDFExtractor returns a PDFExtractor. It holds no state; one instance
// is shared across every call from the extract worker pool.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads every page of the PDF in order, concatenating each page's
// plain text and recording the cumulative byte offset at which that page
// ends. A page is terminated with a newline when its own text didn't
// already end in one, so page boundaries never fall mid-word. A page whose
// content stream is empty or unreadable contributes no text but still
// advances the boundary, so page numbers stay aligned with the document's
// real page count.
func (e *PDFExtractor) Extract(raw []byte) (text string, pageCount int, pageBoundaries []int, err error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", 0, nil, apperrors.New(apperrors.ErrCodeNotAPDF, "open PDF reader", err)
	}

	total := r.NumPage()
	var sb strings.Builder
	boundaries := make([]int, 0, total)

	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			boundaries = append(boundaries, sb.Len())
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr == nil && pageText != "" {
			sb.WriteString(pageText)
			if !strings.HasSuffix(pageText, "\n") {
				sb.WriteByte('\n')
			}
		}
		boundaries = append(boundaries, sb.Len())
	}

	return sb.String(), total, boundaries, nil
}
