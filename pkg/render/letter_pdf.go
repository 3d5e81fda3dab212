package render

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Options carries the professor branding bundle and layout knobs for one
// letter rendering. Image bytes are embedded inline so the PDF is
// self-contained.
type Options struct {
	ProfessorName string
	// HeaderLines are the pre-ordered branding lines chosen by the
	// professor's header layout (title, department, institution, ...).
	HeaderLines    []string
	ShowName       bool
	Letterhead     []byte
	LetterheadType string
	Signature      []byte
	SignatureType  string

	DefaultFontSize  float64
	FallbackFontSize float64
	FontFamily       string
}

// LetterPDF renders letter HTML content onto a US Letter page with 1-inch
// margins. It implements the rendering port consumed by the PDF service.
type LetterPDF struct {
	layout func(content string, opts Options, bodySize float64) (*gofpdf.Fpdf, error)
}

// NewLetterPDF constructs a letter renderer.
func NewLetterPDF() *LetterPDF {
	return &LetterPDF{layout: layoutLetter}
}

// Render produces the PDF bytes for the given letter content. The body is
// laid out at the default font size; when that yields exactly two pages the
// letter is rendered once more at the fallback size and the smaller version
// is kept only if it fits a single page. Three or more pages are accepted
// as-is at the default size.
func (r *LetterPDF) Render(content string, opts Options) ([]byte, error) {
	defaultSize := opts.DefaultFontSize
	if defaultSize <= 0 {
		defaultSize = 12
	}
	fallbackSize := opts.FallbackFontSize
	if fallbackSize <= 0 || fallbackSize >= defaultSize {
		fallbackSize = defaultSize - 1
	}

	doc, err := r.layout(content, opts, defaultSize)
	if err != nil {
		return nil, err
	}
	if doc.PageCount() == 2 {
		shrunk, err := r.layout(content, opts, fallbackSize)
		if err == nil && shrunk.PageCount() == 1 {
			doc = shrunk
		}
	}

	buf := &bytes.Buffer{}
	if err := doc.Output(buf); err != nil {
		return nil, fmt.Errorf("render letter pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func layoutLetter(content string, opts Options, bodySize float64) (*gofpdf.Fpdf, error) {
	family := opts.FontFamily
	if family == "" {
		family = "Times"
	}

	pdf := gofpdf.New("P", "in", "Letter", "")
	pdf.SetMargins(1, 1, 1)
	pdf.SetAutoPageBreak(true, 1)
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()
	contentWidth := pageWidth - 2

	if len(opts.Letterhead) > 0 {
		name := "letterhead"
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: opts.LetterheadType}, bytes.NewReader(opts.Letterhead))
		pdf.ImageOptions(name, 1, pdf.GetY(), contentWidth, 0, true, gofpdf.ImageOptions{ImageType: opts.LetterheadType}, 0, "")
		pdf.Ln(0.2)
	}

	if opts.ShowName && opts.ProfessorName != "" {
		pdf.SetFont(family, "B", 14)
		pdf.CellFormat(contentWidth, 0.28, opts.ProfessorName, "", 1, "L", false, 0, "")
	}
	if len(opts.HeaderLines) > 0 {
		pdf.SetFont(family, "", 10)
		for _, line := range opts.HeaderLines {
			if line == "" {
				continue
			}
			pdf.CellFormat(contentWidth, 0.2, line, "", 1, "L", false, 0, "")
		}
	}
	if opts.ShowName || len(opts.HeaderLines) > 0 || len(opts.Letterhead) > 0 {
		pdf.Ln(0.3)
	}

	pdf.SetFont(family, "", bodySize)
	lineHeight := bodySize * 1.45 / 72
	for _, paragraph := range flatten(content) {
		if paragraph == "" {
			pdf.Ln(lineHeight)
			continue
		}
		pdf.MultiCell(contentWidth, lineHeight, paragraph, "", "L", false)
		pdf.Ln(lineHeight * 0.4)
	}

	if len(opts.Signature) > 0 {
		pdf.Ln(0.2)
		name := "signature"
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: opts.SignatureType}, bytes.NewReader(opts.Signature))
		pdf.ImageOptions(name, 1, pdf.GetY(), 2, 0, true, gofpdf.ImageOptions{ImageType: opts.SignatureType}, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout letter pdf: %w", err)
	}
	return pdf, nil
}

var (
	breakTags = regexp.MustCompile(`(?i)<\s*(?:br\s*/?|/p|/div|/li|/h[1-6])\s*>`)
	anyTag    = regexp.MustCompile(`<[^>]*>`)
	manyBlank = regexp.MustCompile(`\n{3,}`)
)

// flatten reduces rich-text editor HTML to paragraph lines. Markup beyond
// line structure is dropped; entities are decoded.
func flatten(content string) []string {
	text := breakTags.ReplaceAllString(content, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = manyBlank.ReplaceAllString(text, "\n\n")

	lines := strings.Split(strings.TrimSpace(text), "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		paragraphs = append(paragraphs, strings.TrimSpace(line))
	}
	return paragraphs
}
