package pagination

import (
	"errors"
	"fmt"
	"strings"

	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/report"
)

type role int

const (
	roleText role = iota
	rolePrimary
	roleMuted
	roleAccent
)

// run is one line of a block's display list.
type run struct {
	style  string
	size   float64
	height float64
	color  role
	text   string
	cells  []string
	header bool
}

type vectorBlock struct {
	runs    []run
	padding float64
	boxed   bool
	rule    bool
	muted   bool
}

// VectorStrategy draws blocks with rectangles and wrapped text. Blocks that fit
// on a page are never split.
type VectorStrategy struct {
	canvas Canvas
	engine *Engine
	blocks map[int]vectorBlock
}

func NewVectorStrategy() *VectorStrategy {
	return &VectorStrategy{}
}

func (v *VectorStrategy) Mode() models.RenderMode {
	return models.RenderVector
}

func (v *VectorStrategy) Atomic() bool {
	return true
}

func (v *VectorStrategy) Begin(c Canvas, e *Engine) error {
	if c == nil {
		return ErrNoCanvas
	}
	v.canvas = c
	v.engine = e
	v.blocks = make(map[int]vectorBlock)
	return nil
}

func (v *VectorStrategy) End() {
	v.blocks = nil
	v.canvas = nil
}

func (v *VectorStrategy) Measure(index int, b report.Block) (Measured, error) {
	if v.canvas == nil {
		return Measured{}, errors.New("vector strategy used outside Begin/End")
	}
	vb := v.layout(b)
	v.blocks[index] = vb

	m := Measured{
		Lines:        make([]float64, len(vb.runs)),
		Padding:      2 * vb.padding,
		KeepWithNext: b.KeepWithNext,
	}
	m.Height = m.Padding
	for i, r := range vb.runs {
		m.Lines[i] = r.height
		m.Height += r.height
	}
	return m, nil
}

func (v *VectorStrategy) wrap(style string, size, width float64, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	v.canvas.SetFont(style, size)
	lines := v.canvas.SplitText(text, width)
	if len(lines) == 0 {
		return []string{text}
	}
	return lines
}

func (v *VectorStrategy) add(vb *vectorBlock, style string, size, lineHeight, width float64, color role, text string) {
	for _, line := range v.wrap(style, size, width, text) {
		vb.runs = append(vb.runs, run{style: style, size: size, height: lineHeight, color: color, text: line})
	}
}

func (v *VectorStrategy) layout(b report.Block) vectorBlock {
	width := v.engine.Geometry.ContentWidth()
	vb := vectorBlock{padding: 3, boxed: true, muted: b.Muted}
	inner := width - 2*vb.padding

	switch b.Kind {
	case report.KindHeading:
		vb = vectorBlock{padding: 1, rule: true}
		v.add(&vb, "B", 15, 8, width, rolePrimary, b.Title)
		v.add(&vb, "I", 10, 5, width, roleMuted, b.Subtitle)
		return vb
	case report.KindCover:
		vb.padding = 8
		inner = width - 2*vb.padding
		v.add(&vb, "B", 22, 11, inner, rolePrimary, b.Title)
		v.add(&vb, "I", 11, 7, inner, roleMuted, b.Subtitle)
		for _, f := range b.Fields {
			v.add(&vb, "", 11, 7, inner, roleText, f.Label+": "+f.Value)
		}
		return vb
	case report.KindNarrative:
		vb = vectorBlock{padding: 1}
		inner = width - 2
		for _, l := range b.Lines {
			v.add(&vb, "", 10, 5, inner, roleText, l)
		}
		return vb
	}

	titleColor := rolePrimary
	if b.Muted {
		titleColor = roleMuted
	}
	v.add(&vb, "B", 12, 6, inner, titleColor, b.Title)
	v.add(&vb, "I", 9, 4.5, inner, roleAccent, b.Subtitle)
	for _, f := range b.Fields {
		v.add(&vb, "", 10, 5, inner, roleText, f.Label+": "+f.Value)
	}
	for _, l := range b.Lines {
		v.add(&vb, "", 10, 5, inner, roleMuted, l)
	}
	if len(b.Columns) > 0 {
		vb.runs = append(vb.runs, run{style: "B", size: 10, height: 6, color: rolePrimary, cells: b.Columns, header: true})
		for _, row := range b.Rows {
			vb.runs = append(vb.runs, run{size: 10, height: 6, color: roleText, cells: row})
		}
	}
	return vb
}

func (v *VectorStrategy) color(r role, muted bool) RGB {
	p := v.engine.Palette
	if muted {
		return p.Muted
	}
	switch r {
	case rolePrimary:
		return p.Primary
	case roleMuted:
		return p.Muted
	case roleAccent:
		return p.Accent
	}
	return p.Text
}

func (v *VectorStrategy) DrawPage(c Canvas, page int, placements []Placement, blocks []report.Block) error {
	g := v.engine.Geometry
	x, width := g.MarginLeft, g.ContentWidth()
	p := v.engine.Palette

	for _, pl := range placements {
		vb, ok := v.blocks[pl.Block]
		if !ok {
			return fmt.Errorf("block %d was not measured", pl.Block)
		}
		if vb.boxed {
			c.SetFillColor(p.Fill)
			c.SetDrawColor(p.Border)
			c.Rect(x, pl.Y, width, pl.Height, "FD")
			c.SetFillColor(p.Accent)
			c.Rect(x, pl.Y, 1.2, pl.Height, "F")
		}

		y := pl.Y + vb.padding
		left := x + vb.padding
		inner := width - 2*vb.padding
		last := pl.LastLine
		if last > len(vb.runs) || last == 0 && pl.FirstLine == 0 {
			last = len(vb.runs)
		}
		for _, r := range vb.runs[pl.FirstLine:last] {
			c.SetFont(r.style, r.size)
			c.SetTextColor(v.color(r.color, vb.muted && r.color != rolePrimary))
			if len(r.cells) > 0 {
				colW := inner / float64(len(r.cells))
				for i, cell := range r.cells {
					align := "L"
					if i > 0 {
						align = "R"
					}
					c.Text(left+float64(i)*colW, y, colW, r.height, align, cell)
				}
				if r.header {
					c.SetFillColor(p.Border)
					c.Rect(left, y+r.height-0.4, inner, 0.3, "F")
				}
			} else {
				c.Text(left, y, inner, r.height, "L", r.text)
			}
			y += r.height
		}
		if vb.rule {
			c.SetFillColor(p.Accent)
			c.Rect(x, pl.Bottom()-0.5, width, 0.5, "F")
		}
	}
	return nil
}
