package pagination

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"salesplan-dashboard/internal/currency"
	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/report"
)

const (
	// SnapshotWidth is the pixel width of the off-screen clone at 1x.
	SnapshotWidth = 794

	// Layout metrics at 1x, in pixels. They are multiplied by the scale.
	snapshotPadding  = 12
	snapshotLine     = 16
	snapshotFontSize = 11
	buttonPadding    = 6
	buttonGap        = 8
	accentBar        = 4

	// Upper bound on pixels held by one render call across all snapshots.
	maxSurfacePixels = 160_000_000
)

var (
	regularFont = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(goregular.TTF) })
	boldFont    = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(gobold.TTF) })
)

// Snapshot clones b for off-screen capture, dropping its interactive controls.
func Snapshot(b report.Block) report.Block {
	clone := b
	clone.Controls = nil
	clone.Fields = append([]report.Field(nil), b.Fields...)
	clone.Lines = append([]string(nil), b.Lines...)
	clone.Rows = append([][]string(nil), b.Rows...)
	return clone
}

// RasterStrategy reproduces the on-screen look by rasterizing each block into
// a bitmap and slicing the bitmaps at fixed page-height offsets. A block may
// be cut across a page edge.
type RasterStrategy struct {
	Scale float64

	canvas    Canvas
	engine    *Engine
	snap      *snapshotter
	width     int
	pxPerMM   float64
	snapshots map[int]*image.RGBA
	pixels    int
}

func NewRasterStrategy(scale float64) *RasterStrategy {
	if scale == 0 {
		scale = models.DefaultScale
	}
	return &RasterStrategy{Scale: scale}
}

func (r *RasterStrategy) Mode() models.RenderMode {
	return models.RenderRaster
}

func (r *RasterStrategy) Atomic() bool {
	return false
}

func (r *RasterStrategy) Begin(c Canvas, e *Engine) error {
	if c == nil {
		return ErrNoCanvas
	}
	if r.Scale < models.MinScale || r.Scale > models.MaxScale {
		return fmt.Errorf("%w: scale %g outside %g-%g", ErrNoSurface, r.Scale, models.MinScale, models.MaxScale)
	}
	contentWidth := e.Geometry.ContentWidth()
	if contentWidth <= 0 {
		return fmt.Errorf("%w: content width %gmm", ErrNoSurface, contentWidth)
	}
	snap, err := newSnapshotter(r.Scale, e.Palette)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoSurface, err)
	}
	r.canvas = c
	r.engine = e
	r.snap = snap
	r.width = snap.width
	r.pxPerMM = float64(snap.width) / contentWidth
	r.snapshots = make(map[int]*image.RGBA)
	r.pixels = 0
	return nil
}

// End releases every snapshot taken during the call.
func (r *RasterStrategy) End() {
	if r.snap != nil {
		r.snap.close()
		r.snap = nil
	}
	r.snapshots = nil
	r.canvas = nil
	r.pixels = 0
}

func (r *RasterStrategy) reserve(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty surface %dx%d", ErrNoSurface, w, h)
	}
	r.pixels += w * h
	if r.pixels > maxSurfacePixels {
		return fmt.Errorf("%w: pixel budget exceeded", ErrNoSurface)
	}
	return nil
}

func (r *RasterStrategy) Measure(index int, b report.Block) (Measured, error) {
	if r.snapshots == nil {
		return Measured{}, errors.New("raster strategy used outside Begin/End")
	}
	img := r.snap.render(Snapshot(b))
	size := img.Bounds().Size()
	if err := r.reserve(size.X, size.Y); err != nil {
		return Measured{}, err
	}
	r.snapshots[index] = img

	return Measured{
		Height:       float64(size.Y) / r.pxPerMM,
		KeepWithNext: b.KeepWithNext,
	}, nil
}

func (r *RasterStrategy) DrawPage(c Canvas, page int, placements []Placement, blocks []report.Block) error {
	if len(placements) == 0 {
		return nil
	}
	top := r.engine.top()
	usable := r.engine.Usable()
	pageH := int(math.Round(usable * r.pxPerMM))
	if pageH <= 0 {
		return fmt.Errorf("%w: empty page strip", ErrNoSurface)
	}
	strip := image.NewRGBA(image.Rect(0, 0, r.width, pageH))
	fill(strip, strip.Bounds(), r.engine.Palette.Paper)

	for _, pl := range placements {
		src, ok := r.snapshots[pl.Block]
		if !ok {
			return fmt.Errorf("block %d was not captured", pl.Block)
		}
		sy := int(math.Round(pl.Offset * r.pxPerMM))
		dy := int(math.Round((pl.Y - top) * r.pxPerMM))
		h := int(math.Round(pl.Height * r.pxPerMM))
		dst := image.Rect(0, dy, r.width, dy+h).Intersect(strip.Bounds())
		draw.Draw(strip, dst, src, image.Pt(0, sy), draw.Src)
	}

	g := r.engine.Geometry
	return c.Image(fmt.Sprintf("page-%d", page), strip, g.MarginLeft, top, g.ContentWidth(), usable)
}

func toColor(c RGB) color.RGBA {
	return color.RGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: 0xff}
}

// snapshotter draws blocks at one device scale. Layout metrics and the font
// size both grow with the scale, so glyphs are rasterized at full resolution.
// Faces are not safe for concurrent use; a snapshotter belongs to one render.
type snapshotter struct {
	scale   float64
	width   int
	palette Palette
	regular font.Face
	bold    font.Face
}

func newSnapshotter(scale float64, p Palette) (*snapshotter, error) {
	reg, err := regularFont()
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := boldFont()
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	opts := &opentype.FaceOptions{Size: snapshotFontSize * scale, DPI: 72, Hinting: font.HintingFull}
	regFace, err := opentype.NewFace(reg, opts)
	if err != nil {
		return nil, fmt.Errorf("regular face: %w", err)
	}
	boldFace, err := opentype.NewFace(bold, opts)
	if err != nil {
		regFace.Close()
		return nil, fmt.Errorf("bold face: %w", err)
	}
	return &snapshotter{
		scale:   scale,
		width:   int(math.Round(SnapshotWidth * scale)),
		palette: p,
		regular: regFace,
		bold:    boldFace,
	}, nil
}

func (s *snapshotter) close() {
	s.regular.Close()
	s.bold.Close()
}

func (s *snapshotter) px(v int) int {
	return max(int(math.Round(float64(v)*s.scale)), 1)
}

func (s *snapshotter) face(bold bool) font.Face {
	if bold {
		return s.bold
	}
	return s.regular
}

func (s *snapshotter) measurer(bold bool) func(string) int {
	f := s.face(bold)
	return func(t string) int { return font.MeasureString(f, t).Ceil() }
}

type textLine struct {
	text  string
	cells []string
	color RGB
	bold  bool
}

// RenderBlock draws the on-screen rendition of b at the given device scale.
// The bitmap is SnapshotWidth*scale pixels wide. Controls, when present, are
// drawn as a button row.
func RenderBlock(b report.Block, scale float64, p Palette) (*image.RGBA, error) {
	s, err := newSnapshotter(scale, p)
	if err != nil {
		return nil, err
	}
	defer s.close()
	return s.render(b), nil
}

func (s *snapshotter) render(b report.Block) *image.RGBA {
	p := s.palette
	pad, lineH := s.px(snapshotPadding), s.px(snapshotLine)
	inner := max(s.width-2*pad, 1)
	text := p.Text
	if b.Muted {
		text = p.Muted
	}

	var lines []textLine
	add := func(str string, c RGB, bold bool) {
		for _, l := range wrapMeasured(currency.PDFSafe(str), inner, s.measurer(bold)) {
			lines = append(lines, textLine{text: l, color: c, bold: bold})
		}
	}
	if b.Title != "" {
		add(b.Title, p.Primary, true)
	}
	if b.Subtitle != "" {
		add(b.Subtitle, p.Accent, false)
	}
	for _, f := range b.Fields {
		add(f.Label+": "+f.Value, text, false)
	}
	for _, l := range b.Lines {
		add(l, text, false)
	}
	colW := 0
	if len(b.Columns) > 0 {
		colW = inner / len(b.Columns)
		lines = append(lines, textLine{cells: b.Columns, color: p.Primary, bold: true})
		for _, row := range b.Rows {
			lines = append(lines, textLine{cells: row, color: text})
		}
	}

	height := 2*pad + len(lines)*lineH
	if len(b.Controls) > 0 {
		height += lineH + s.px(buttonGap)
	}
	img := image.NewRGBA(image.Rect(0, 0, s.width, height))
	fill(img, img.Bounds(), p.Paper)

	if b.Kind != report.KindHeading && b.Kind != report.KindNarrative {
		border := s.px(1)
		fill(img, img.Bounds(), p.Border)
		fill(img, image.Rect(border, border, s.width-border, height-border), p.Fill)
		fill(img, image.Rect(0, 0, s.px(accentBar), height), p.Accent)
	}

	y := pad
	for _, l := range lines {
		if l.cells != nil {
			measure := s.measurer(l.bold)
			for i, cell := range l.cells {
				cell = fitText(currency.PDFSafe(cell), colW-s.px(4), measure)
				s.drawString(img, pad+i*colW, y, cell, l.color, l.bold)
			}
		} else {
			s.drawString(img, pad, y, l.text, l.color, l.bold)
		}
		y += lineH
	}
	if len(b.Controls) > 0 {
		measure := s.measurer(false)
		x := pad
		for _, ctl := range b.Controls {
			w := measure(ctl) + 2*s.px(buttonPadding)
			fill(img, image.Rect(x, y+s.px(2), x+w, y+lineH+s.px(6)), p.Primary)
			s.drawString(img, x+s.px(buttonPadding), y+s.px(4), ctl, p.Paper, false)
			x += w + s.px(buttonGap)
		}
	}
	return img
}

func fill(dst *image.RGBA, r image.Rectangle, c RGB) {
	draw.Draw(dst, r, image.NewUniform(toColor(c)), image.Point{}, draw.Src)
}

// drawString draws s with its top at y.
func (s *snapshotter) drawString(dst *image.RGBA, x, y int, str string, c RGB, bold bool) {
	f := s.face(bold)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(toColor(c)),
		Face: f,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y) + f.Metrics().Ascent},
	}
	d.DrawString(str)
}
