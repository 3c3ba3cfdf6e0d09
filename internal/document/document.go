// Package document is the PDF output of an export. Document implements the
// pagination canvas on top of fpdf; Emit turns a finished document into a
// preview blob or a download.
package document

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"salesplan-dashboard/internal/currency"
	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/pagination"
)

type Options struct {
	Geometry   pagination.Geometry
	Typography models.Typography
	Title      string
	Author     string
	CreatedAt  time.Time
}

type Document struct {
	pdf       *fpdf.Fpdf
	family    string
	translate func(string) string
	style     string
	size      float64
}

var families = map[models.Typography]string{
	models.FontHelvetica: "Helvetica",
	models.FontTimes:     "Times",
	models.FontCourier:   "Courier",
}

// New creates an empty document. Page size comes from opts.Geometry and pages
// are added by the caller; automatic page breaks are off.
func New(opts Options) (*Document, error) {
	g := opts.Geometry
	if g.Width <= 0 || g.Height <= 0 {
		return nil, fmt.Errorf("invalid page size %gx%g", g.Width, g.Height)
	}
	family, ok := families[opts.Typography]
	if !ok {
		family = families[models.FontHelvetica]
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: g.Width, Ht: g.Height},
	})
	pdf.SetMargins(g.MarginLeft, g.MarginTop, g.MarginRight)
	pdf.SetAutoPageBreak(false, g.MarginBottom)
	pdf.SetTitle(opts.Title, true)
	pdf.SetAuthor(opts.Author, true)
	pdf.SetCreator("salesplan-dashboard", true)
	if !opts.CreatedAt.IsZero() {
		pdf.SetCreationDate(opts.CreatedAt)
	}
	pdf.SetFont(family, "", 10)
	if pdf.Err() {
		return nil, pdf.Error()
	}

	return &Document{
		pdf:       pdf,
		family:    family,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
		size:      10,
	}, nil
}

// text converts UTF-8 to the cp1252 encoding of the core fonts.
func (d *Document) text(s string) string {
	return d.translate(currency.PDFSafe(s))
}

func (d *Document) AddPage() {
	d.pdf.AddPage()
	d.pdf.SetFont(d.family, d.style, d.size)
}

func (d *Document) PageCount() int {
	return d.pdf.PageCount()
}

func (d *Document) SetFont(style string, size float64) {
	d.style = style
	d.size = size
	d.pdf.SetFont(d.family, style, size)
}

func (d *Document) SetTextColor(c pagination.RGB) {
	d.pdf.SetTextColor(c.R, c.G, c.B)
}

func (d *Document) SetFillColor(c pagination.RGB) {
	d.pdf.SetFillColor(c.R, c.G, c.B)
}

func (d *Document) SetDrawColor(c pagination.RGB) {
	d.pdf.SetDrawColor(c.R, c.G, c.B)
}

func (d *Document) Rect(x, y, w, h float64, style string) {
	d.pdf.Rect(x, y, w, h, style)
}

func (d *Document) Text(x, y, w, h float64, align, text string) {
	d.pdf.SetXY(x, y)
	d.pdf.CellFormat(w, h, d.text(text), "", 0, align+"M", false, 0, "")
}

// SplitText wraps on word boundaries using the current font's metrics. Lines
// stay UTF-8; translation happens once, in Text.
func (d *Document) SplitText(text string, width float64) []string {
	fits := func(s string) bool { return d.pdf.GetStringWidth(d.text(s)) <= width }
	var lines []string
	current := ""
	for _, w := range strings.Fields(text) {
		if !fits(w) {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			chunks := breakWord(w, fits)
			lines = append(lines, chunks[:len(chunks)-1]...)
			w = chunks[len(chunks)-1]
		}
		if current == "" {
			current = w
			continue
		}
		if candidate := current + " " + w; fits(candidate) {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = w
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// breakWord cuts a word that is wider than the line at rune boundaries, such
// as a URL or SKU. Each chunk holds at least one rune.
func breakWord(w string, fits func(string) bool) []string {
	var chunks []string
	start := 0
	for i := 0; i < len(w); {
		_, size := utf8.DecodeRuneInString(w[i:])
		if i > start && !fits(w[start:i+size]) {
			chunks = append(chunks, w[start:i])
			start = i
		}
		i += size
	}
	return append(chunks, w[start:])
}

func (d *Document) Image(name string, img image.Image, x, y, w, h float64) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	d.pdf.RegisterImageOptionsReader(name, opts, &buf)
	d.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return d.Err()
}

func (d *Document) Err() error {
	if d.pdf.Err() {
		return d.pdf.Error()
	}
	return nil
}

// Bytes serializes the document. It fails if any earlier drawing call failed.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
