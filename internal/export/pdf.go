package export

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"ideajournal/internal/models"
)

const (
	marginMM   = 20.0
	fontFamily = "DejaVu"
	bodySize   = 11.0
	lineHeight = 5.5
	indentMM   = 5.0
)

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
	//go:embed fonts/DejaVuSansCondensed-Oblique.ttf
	fontOblique []byte
)

// PDFEngine draws the layout with an embedded, subsetted DejaVu Sans
// Condensed. Output is byte-identical for identical records. DejaVu covers
// Latin, Greek and Cyrillic; runes it lacks (CJK, emoji) are drawn as the
// font's missing-glyph box. The chrome engine renders those with system
// fonts.
type PDFEngine struct{}

func NewPDFEngine() *PDFEngine { return &PDFEngine{} }

func (e *PDFEngine) Name() string { return "fpdf" }

func (e *PDFEngine) Render(ctx context.Context, idea models.Idea) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, marginMM)
	stamp := documentTime(idea)
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(idea.Title, true)
	pdf.SetCreator("Idea Journal", false)
	pdf.AddUTF8FontFromBytes(fontFamily, "", fontRegular)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", fontBold)
	pdf.AddUTF8FontFromBytes(fontFamily, "I", fontOblique)

	pdf.AddPage()
	for _, block := range Layout(idea) {
		switch block.Kind {
		case KindTitle:
			pdf.SetFont(fontFamily, "B", 20)
			pdf.MultiCell(0, 9, block.Text, "", "L", false)
			pdf.Ln(1)
		case KindByline:
			pdf.SetFont(fontFamily, "I", 9)
			pdf.SetTextColor(90, 90, 90)
			pdf.MultiCell(0, lineHeight, block.Text, "", "L", false)
			pdf.SetTextColor(0, 0, 0)
			pdf.Ln(4)
		case KindSection:
			label(pdf, block.Label)
			pdf.SetFont(fontFamily, "", bodySize)
			pdf.MultiCell(0, lineHeight, block.Text, "", "L", false)
			pdf.Ln(3)
		case KindList:
			label(pdf, block.Label)
			pdf.SetFont(fontFamily, "", bodySize)
			if len(block.Items) == 0 {
				pdf.MultiCell(0, lineHeight, Placeholder, "", "L", false)
			}
			for _, item := range block.Items {
				pdf.SetX(marginMM + indentMM)
				pdf.MultiCell(0, lineHeight, "• "+item, "", "L", false)
			}
			pdf.Ln(3)
		case KindUpdates:
			label(pdf, block.Label)
			for _, u := range block.Updates {
				pdf.SetFont(fontFamily, "B", bodySize)
				pdf.Write(lineHeight, u.Date)
				pdf.SetFont(fontFamily, "", bodySize)
				pdf.Write(lineHeight, " — "+u.Text)
				pdf.Ln(lineHeight + 1)
			}
			pdf.Ln(2)
		case KindFooter:
			pdf.SetFont(fontFamily, "I", 9)
			pdf.SetTextColor(90, 90, 90)
			pdf.MultiCell(0, lineHeight, block.Text, "", "L", false)
			pdf.SetTextColor(0, 0, 0)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("fpdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func label(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.MultiCell(0, 6.5, text, "", "L", false)
}

// documentTime derives the PDF metadata dates from the record so the
// output never depends on the wall clock.
func documentTime(idea models.Idea) time.Time {
	if t, err := time.ParseInLocation(models.TimestampLayout, idea.GeneratedAt, time.UTC); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(models.DateLayout, idea.DateCreated, time.UTC); err == nil {
		return t
	}
	return time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
}
