package services

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

type PDFParserService interface {
	Inspect(filePath string) (*PDFInfo, error)
}

type PDFInfo struct {
	PageCount int
	FilePath  string
}

type pdfParserService struct{}

func NewPDFParserService() PDFParserService {
	return &pdfParserService{}
}

// Inspect checks that the file is a readable PDF with at least one page.
func (p *pdfParserService) Inspect(filePath string) (info *PDFInfo, err error) {
	if _, statErr := os.Stat(filePath); statErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, statErr)
	}

	// The pdf package panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = fmt.Errorf("%w: unreadable PDF: %v", ErrInvalidInput, r)
		}
	}()

	f, r, openErr := pdf.Open(filePath)
	if openErr != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", ErrInvalidInput, openErr)
	}
	defer f.Close()

	pages := r.NumPage()
	if pages == 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", ErrInvalidInput)
	}

	return &PDFInfo{
		PageCount: pages,
		FilePath:  filePath,
	}, nil
}
