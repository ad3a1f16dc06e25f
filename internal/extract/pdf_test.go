package extract

import "testing"

func TestExtract_RejectsNonPDF(t *testing.T) {
	e := NewPDFExtractor()
	_, _, _, err := e.Extract([]byte("not a pdf"))
	if err == nil {
		t.Fatal("expected an error for non-PDF input")
	}
}
