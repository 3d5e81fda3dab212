package render

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docWithPages builds a minimal document with a known page count, standing in
// for a real layout pass.
func docWithPages(pages int) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "in", "Letter", "")
	for i := 0; i < pages; i++ {
		pdf.AddPage()
	}
	return pdf
}

var countMarker = regexp.MustCompile(`/Count (\d+)`)

// pageCount reads the page count out of the Pages dictionary of emitted PDF
// bytes, which gofpdf writes uncompressed.
func pageCount(t *testing.T, out []byte) int {
	t.Helper()
	match := countMarker.FindSubmatch(out)
	require.NotNil(t, match, "pdf output has no /Count entry")
	n, err := strconv.Atoi(string(match[1]))
	require.NoError(t, err)
	return n
}

func TestRenderProducesPDF(t *testing.T) {
	r := NewLetterPDF()

	out, err := r.Render("<p>Dear Admissions Committee,</p><p>I recommend Jane.</p>", Options{
		ProfessorName: "Dr. Ada Lovelace",
		HeaderLines:   []string{"Professor of Computing", "Analytical Engine University"},
		ShowName:      true,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestRenderLongContent(t *testing.T) {
	r := NewLetterPDF()

	paragraph := strings.Repeat("An unusually thorough paragraph about the candidate. ", 40)
	body := "<p>" + strings.Repeat(paragraph+"</p><p>", 6) + "Sincerely.</p>"

	out, err := r.Render(body, Options{ProfessorName: "Dr. Ada Lovelace", ShowName: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestRenderShrinksExactlyTwoPages(t *testing.T) {
	r := NewLetterPDF()
	var sizes []float64
	r.layout = func(content string, opts Options, bodySize float64) (*gofpdf.Fpdf, error) {
		sizes = append(sizes, bodySize)
		if bodySize == 12 {
			return docWithPages(2), nil
		}
		return docWithPages(1), nil
	}

	out, err := r.Render("body", Options{DefaultFontSize: 12, FallbackFontSize: 11})
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 11}, sizes)
	assert.Equal(t, 1, pageCount(t, out))
}

func TestRenderKeepsDefaultWhenShrinkStillOverflows(t *testing.T) {
	r := NewLetterPDF()
	var sizes []float64
	r.layout = func(content string, opts Options, bodySize float64) (*gofpdf.Fpdf, error) {
		sizes = append(sizes, bodySize)
		return docWithPages(2), nil
	}

	out, err := r.Render("body", Options{DefaultFontSize: 12, FallbackFontSize: 11})
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 11}, sizes)
	assert.Equal(t, 2, pageCount(t, out))
}

func TestRenderSkipsShrinkForSinglePage(t *testing.T) {
	r := NewLetterPDF()
	var sizes []float64
	r.layout = func(content string, opts Options, bodySize float64) (*gofpdf.Fpdf, error) {
		sizes = append(sizes, bodySize)
		return docWithPages(1), nil
	}

	out, err := r.Render("body", Options{DefaultFontSize: 12, FallbackFontSize: 11})
	require.NoError(t, err)
	assert.Equal(t, []float64{12}, sizes)
	assert.Equal(t, 1, pageCount(t, out))
}

func TestRenderSkipsShrinkBeyondTwoPages(t *testing.T) {
	r := NewLetterPDF()
	var sizes []float64
	r.layout = func(content string, opts Options, bodySize float64) (*gofpdf.Fpdf, error) {
		sizes = append(sizes, bodySize)
		return docWithPages(3), nil
	}

	out, err := r.Render("body", Options{DefaultFontSize: 12, FallbackFontSize: 11})
	require.NoError(t, err)
	assert.Equal(t, []float64{12}, sizes)
	assert.Equal(t, 3, pageCount(t, out))
}

func TestRenderKeepsDefaultWhenShrinkPassFails(t *testing.T) {
	r := NewLetterPDF()
	r.layout = func(content string, opts Options, bodySize float64) (*gofpdf.Fpdf, error) {
		if bodySize < 12 {
			return nil, errors.New("layout failed")
		}
		return docWithPages(2), nil
	}

	out, err := r.Render("body", Options{DefaultFontSize: 12, FallbackFontSize: 11})
	require.NoError(t, err)
	assert.Equal(t, 2, pageCount(t, out))
}

func TestRenderDerivesFontSizes(t *testing.T) {
	r := NewLetterPDF()
	var sizes []float64
	r.layout = func(content string, opts Options, bodySize float64) (*gofpdf.Fpdf, error) {
		sizes = append(sizes, bodySize)
		if len(sizes) == 1 {
			return docWithPages(2), nil
		}
		return docWithPages(1), nil
	}

	// Zero sizes fall back to 12pt with an 11pt shrink; a fallback at or
	// above the default is clamped below it.
	_, err := r.Render("body", Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 11}, sizes)

	sizes = nil
	_, err = r.Render("body", Options{DefaultFontSize: 10, FallbackFontSize: 14})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 9}, sizes)
}

func TestFlattenStripsMarkup(t *testing.T) {
	paragraphs := flatten("<p>Hello <b>world</b></p><p>Second &amp; last</p>")
	assert.Equal(t, []string{"Hello world", "Second & last"}, paragraphs)
}

func TestFlattenKeepsBlankParagraphSeparator(t *testing.T) {
	paragraphs := flatten("line one<br><br><br>line two")
	assert.Equal(t, []string{"line one", "", "line two"}, paragraphs)
}
