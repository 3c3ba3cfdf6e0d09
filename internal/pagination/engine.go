package pagination

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/report"
)

var (
	ErrNoCanvas  = errors.New("no output document")
	ErrNoSurface = errors.New("off-screen surface unavailable")
)

// GenerationError reports a failed export. No partial document accompanies it.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate report (%s): %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func fail(stage string, err error) error {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return err
	}
	return &GenerationError{Stage: stage, Err: err}
}

type RGB struct {
	R, G, B int
}

// Canvas is the drawing surface of the output document. Coordinates are in
// millimetres from the top-left corner of the current page.
type Canvas interface {
	AddPage()
	SetFont(style string, size float64)
	SetTextColor(c RGB)
	SetFillColor(c RGB)
	SetDrawColor(c RGB)
	Rect(x, y, w, h float64, style string)
	Text(x, y, w, h float64, align, text string)
	SplitText(text string, width float64) []string
	Image(name string, img image.Image, x, y, w, h float64) error
	Err() error
}

// Strategy measures and draws blocks. Begin and End bracket one render call;
// any surface a strategy allocates lives only between them.
type Strategy interface {
	Mode() models.RenderMode
	Atomic() bool
	Begin(c Canvas, e *Engine) error
	Measure(index int, b report.Block) (Measured, error)
	DrawPage(c Canvas, page int, placements []Placement, blocks []report.Block) error
	End()
}

type Palette struct {
	Primary RGB
	Accent  RGB
	Text    RGB
	Muted   RGB
	Fill    RGB
	Border  RGB
	Paper   RGB
}

var palettes = map[models.ColorScheme]Palette{
	models.SchemeBrand: {
		Primary: RGB{122, 28, 172},
		Accent:  RGB{236, 72, 153},
		Text:    RGB{40, 40, 48},
		Muted:   RGB{140, 140, 150},
		Fill:    RGB{248, 244, 252},
		Border:  RGB{214, 200, 228},
		Paper:   RGB{255, 255, 255},
	},
	models.SchemeMono: {
		Primary: RGB{20, 20, 20},
		Accent:  RGB{90, 90, 90},
		Text:    RGB{30, 30, 30},
		Muted:   RGB{150, 150, 150},
		Fill:    RGB{245, 245, 245},
		Border:  RGB{200, 200, 200},
		Paper:   RGB{255, 255, 255},
	},
	models.SchemeOcean: {
		Primary: RGB{0, 51, 102},
		Accent:  RGB{0, 150, 170},
		Text:    RGB{35, 45, 55},
		Muted:   RGB{130, 145, 160},
		Fill:    RGB{240, 247, 250},
		Border:  RGB{190, 215, 228},
		Paper:   RGB{255, 255, 255},
	},
}

func PaletteFor(scheme models.ColorScheme) Palette {
	if p, ok := palettes[scheme]; ok {
		return p
	}
	return palettes[models.SchemeBrand]
}

// Engine holds page geometry and the running header and footer.
type Engine struct {
	Geometry     Geometry
	HeaderHeight float64
	FooterHeight float64
	Spacing      float64
	Palette      Palette
	Header       string
	Footer       string
	PageNumbers  bool
}

func NewEngine(g Geometry) *Engine {
	return &Engine{
		Geometry:     g,
		HeaderHeight: 10,
		FooterHeight: 8,
		Spacing:      4,
		Palette:      PaletteFor(models.SchemeBrand),
		PageNumbers:  true,
	}
}

func (e *Engine) top() float64 {
	return e.Geometry.MarginTop + e.HeaderHeight
}

func (e *Engine) bottom() float64 {
	return e.Geometry.Height - e.Geometry.MarginBottom - e.FooterHeight
}

// Usable is the vertical space between header and footer.
func (e *Engine) Usable() float64 {
	return e.bottom() - e.top()
}

func (e *Engine) ContentTop() float64 {
	return e.top()
}

// Render measures, paginates and draws doc onto c.
func (e *Engine) Render(ctx context.Context, doc report.Document, s Strategy, c Canvas) (Layout, error) {
	if c == nil {
		return Layout{}, fail("document", ErrNoCanvas)
	}
	if s == nil {
		return Layout{}, fail("strategy", errors.New("no rendering strategy"))
	}
	if err := e.Geometry.validate(); err != nil {
		return Layout{}, fail("geometry", err)
	}
	if e.Usable() <= 0 {
		return Layout{}, fail("geometry", errors.New("header and footer leave no room for content"))
	}
	if err := s.Begin(c, e); err != nil {
		return Layout{}, fail("surface", err)
	}
	defer s.End()

	blocks := doc.Blocks()
	measured := make([]Measured, len(blocks))
	for i, b := range blocks {
		if err := ctx.Err(); err != nil {
			return Layout{}, fail("measure", err)
		}
		m, err := s.Measure(i, b)
		if err != nil {
			return Layout{}, fail("measure", err)
		}
		measured[i] = m
	}

	layout := e.Paginate(measured, s.Atomic())
	for page := 1; page <= layout.Pages; page++ {
		if err := ctx.Err(); err != nil {
			return Layout{}, fail("draw", err)
		}
		c.AddPage()
		e.drawHeader(c, doc)
		if err := s.DrawPage(c, page, layout.OnPage(page), blocks); err != nil {
			return Layout{}, fail("draw", err)
		}
		e.drawFooter(c, doc.GeneratedAt, page, layout.Pages)
	}
	if err := c.Err(); err != nil {
		return Layout{}, fail("document", err)
	}
	return layout, nil
}

func (e *Engine) drawHeader(c Canvas, doc report.Document) {
	g := e.Geometry
	w := g.ContentWidth()
	title := e.Header
	if title == "" {
		title = doc.Title
	}
	c.SetFont("B", 9)
	c.SetTextColor(e.Palette.Primary)
	c.Text(g.MarginLeft, g.MarginTop, w/2, 5, "L", title)
	c.SetFont("", 8)
	c.SetTextColor(e.Palette.Muted)
	c.Text(g.MarginLeft+w/2, g.MarginTop, w/2, 5, "R", doc.Period.Label())
	c.SetFillColor(e.Palette.Accent)
	c.Rect(g.MarginLeft, g.MarginTop+6, w, 0.6, "F")
}

func (e *Engine) drawFooter(c Canvas, generated time.Time, page, total int) {
	g := e.Geometry
	w := g.ContentWidth()
	y := g.Height - g.MarginBottom - e.FooterHeight + 3
	c.SetDrawColor(e.Palette.Border)
	c.Rect(g.MarginLeft, y-1, w, 0.2, "D")
	c.SetFont("", 7.5)
	c.SetTextColor(e.Palette.Muted)
	footer := e.Footer
	if footer == "" && !generated.IsZero() {
		footer = "Generated " + generated.Format("2 Jan 2006 15:04")
	}
	c.Text(g.MarginLeft, y, w/2, 4, "L", footer)
	if e.PageNumbers {
		c.Text(g.MarginLeft+w/2, y, w/2, 4, "R", fmt.Sprintf("Page %d of %d", page, total))
	}
}
