package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"docquery/internal/util"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// Page is one page's cleaned plain text. Pages with no extractable text are
// dropped, so Number values may be sparse.
type Page struct {
	Number int    `json:"page_number"`
	Text   string `json:"text"`
}

// ExtractionError means both extraction strategies failed. It is fatal to
// the document that produced it.
type ExtractionError struct {
	PrimaryErr   error
	SecondaryErr error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed: primary: %v; secondary: %v", e.PrimaryErr, e.SecondaryErr)
}

func (e *ExtractionError) Unwrap() error { return e.SecondaryErr }

// Extractor turns raw PDF bytes into per-page plain text. The plain-text
// strategy is attempted first; if it fails the content-stream strategy is
// attempted with the same contract.
type Extractor struct {
	log zerolog.Logger
}

func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

func (e *Extractor) ExtractPages(data []byte) ([]Page, error) {
	pages, primaryErr := extractWith(data, pagePlainText)
	if primaryErr == nil {
		e.log.Info().Int("pages", len(pages)).Msg("extracted text via plain-text reader")
		return pages, nil
	}
	e.log.Warn().Err(primaryErr).Msg("plain-text extraction failed, trying content-stream assembly")

	pages, secondaryErr := extractWith(data, pageContentText)
	if secondaryErr == nil {
		e.log.Info().Int("pages", len(pages)).Msg("extracted text via content-stream assembly")
		return pages, nil
	}
	return nil, &ExtractionError{PrimaryErr: primaryErr, SecondaryErr: secondaryErr}
}

// extractWith runs one extraction strategy over every page, keeping pages
// that still contain text after cleaning.
func extractWith(data []byte, strategy func(pdf.Page) (string, error)) (pages []Page, err error) {
	// The pdf library panics on some malformed inputs; a panic in either
	// strategy must count as that strategy failing, not kill the pipeline.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	pages = make([]Page, 0, total)
	for num := 1; num <= total; num++ {
		p := reader.Page(num)
		if p.V.IsNull() {
			continue
		}
		text, err := strategy(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", num, err)
		}
		text = util.CleanText(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: num, Text: text})
	}
	if len(pages) == 0 {
		return nil, util.ErrNoExtractableText
	}
	return pages, nil
}

func pagePlainText(p pdf.Page) (string, error) {
	return p.GetPlainText(nil)
}

// pageContentText rebuilds page text from the raw content stream's
// positioned text runs, top-to-bottom then left-to-right.
func pageContentText(p pdf.Page) (string, error) {
	content := p.Content()
	runs := make([]pdf.Text, len(content.Text))
	copy(runs, content.Text)
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Y != runs[j].Y {
			return runs[i].Y > runs[j].Y
		}
		return runs[i].X < runs[j].X
	})

	var b strings.Builder
	lastY := 0.0
	for i, r := range runs {
		if i > 0 {
			if r.Y != lastY {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(r.S)
		lastY = r.Y
	}
	return b.String(), nil
}
