package pagination

import "math"

const epsilon = 1e-6

// Measured is the height a strategy computed for one block.
type Measured struct {
	Height float64
	// Lines holds per-line heights. Blocks taller than a page continue across
	// pages on line boundaries; without lines they are placed whole and clipped.
	Lines []float64
	// Padding is the vertical chrome drawn around every piece of the block.
	Padding      float64
	KeepWithNext bool
}

// Placement records where a block, or a piece of one, landed.
type Placement struct {
	Block     int     `json:"block"`
	Page      int     `json:"page"`
	Y         float64 `json:"y"`
	Height    float64 `json:"height"`
	Offset    float64 `json:"offset"`
	FirstLine int     `json:"first_line"`
	LastLine  int     `json:"last_line"`
	Continued bool    `json:"continued"`
}

func (p Placement) Bottom() float64 {
	return p.Y + p.Height
}

type Layout struct {
	Pages      int         `json:"pages"`
	Placements []Placement `json:"placements"`
}

func (l Layout) OnPage(page int) []Placement {
	var out []Placement
	for _, p := range l.Placements {
		if p.Page == page {
			out = append(out, p)
		}
	}
	return out
}

// Blocks counts the distinct blocks that were placed.
func (l Layout) Blocks() int {
	seen := make(map[int]bool)
	for _, p := range l.Placements {
		seen[p.Block] = true
	}
	return len(seen)
}

// Paginator is the page cursor. Every page starts below the header; a block
// that does not fit above the footer moves to a fresh page.
type Paginator struct {
	engine     *Engine
	atomic     bool
	y          float64
	page       int
	onPage     int
	placements []Placement
}

// NewPaginator starts on page one. In atomic mode blocks that fit on a page are
// never split; otherwise blocks flow continuously and are cut at page edges.
func (e *Engine) NewPaginator(atomic bool) *Paginator {
	return &Paginator{
		engine: e,
		atomic: atomic,
		y:      e.top(),
		page:   1,
	}
}

func (p *Paginator) Page() int {
	return p.page
}

func (p *Paginator) Y() float64 {
	return p.y
}

func (p *Paginator) fits(height float64) bool {
	return p.y+height <= p.engine.bottom()+epsilon
}

func (p *Paginator) breakPage() {
	p.page++
	p.y = p.engine.top()
	p.onPage = 0
}

func (p *Paginator) emit(pl Placement) {
	pl.Page = p.page
	pl.Y = p.y
	p.placements = append(p.placements, pl)
	p.onPage++
	p.y += pl.Height
}

// Place positions block index. next, when known, lets a KeepWithNext block
// (a heading) move to the next page together with what follows it.
func (p *Paginator) Place(index int, m Measured, next *Measured) {
	if p.atomic {
		p.placeAtomic(index, m, next)
	} else {
		p.placeSliced(index, m)
	}
}

func (p *Paginator) placeAtomic(index int, m Measured, next *Measured) {
	usable := p.engine.Usable()
	spacing := p.engine.Spacing

	if m.Height <= usable+epsilon {
		required := m.Height
		if m.KeepWithNext && next != nil {
			if joined := m.Height + spacing + next.Height; joined <= usable+epsilon {
				required = joined
			}
		}
		if !p.fits(required) && p.onPage > 0 {
			p.breakPage()
		}
		p.emit(Placement{Block: index, Height: m.Height, LastLine: len(m.Lines)})
		p.y += spacing
		return
	}

	if p.onPage > 0 {
		p.breakPage()
	}
	if len(m.Lines) == 0 {
		p.emit(Placement{Block: index, Height: m.Height})
		p.y += spacing
		return
	}

	first := 0
	for first < len(m.Lines) {
		avail := p.engine.bottom() - p.y - m.Padding
		last, used := first, 0.0
		for last < len(m.Lines) && used+m.Lines[last] <= avail+epsilon {
			used += m.Lines[last]
			last++
		}
		if last == first {
			used = m.Lines[first]
			last = first + 1
		}
		p.emit(Placement{
			Block:     index,
			Height:    used + m.Padding,
			FirstLine: first,
			LastLine:  last,
			Continued: first > 0,
		})
		p.y += spacing
		first = last
		if first < len(m.Lines) {
			p.breakPage()
		}
	}
}

func (p *Paginator) placeSliced(index int, m Measured) {
	remaining := m.Height
	offset := 0.0
	if remaining <= epsilon {
		p.emit(Placement{Block: index})
		return
	}
	for remaining > epsilon {
		avail := p.engine.bottom() - p.y
		if avail <= epsilon {
			p.breakPage()
			continue
		}
		piece := math.Min(remaining, avail)
		p.emit(Placement{Block: index, Height: piece, Offset: offset, Continued: offset > 0})
		offset += piece
		remaining -= piece
	}
	p.y += p.engine.Spacing
}

func (p *Paginator) Layout() Layout {
	out := make([]Placement, len(p.placements))
	copy(out, p.placements)
	return Layout{Pages: p.page, Placements: out}
}

// Paginate places every measured block in order.
func (e *Engine) Paginate(blocks []Measured, atomic bool) Layout {
	p := e.NewPaginator(atomic)
	for i, m := range blocks {
		var next *Measured
		if i+1 < len(blocks) {
			next = &blocks[i+1]
		}
		p.Place(i, m, next)
	}
	return p.Layout()
}
