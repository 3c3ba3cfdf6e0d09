package report

import "math"

// Rough millimetre heights used before a strategy measures real text.
const (
	estPadding     = 4.0
	estTitle       = 6.0
	estSubtitle    = 4.5
	estLine        = 4.5
	estCharsPerRow = 95
)

// Estimate approximates the rendered height of b in millimetres on a portrait A4 column.
func Estimate(b Block) float64 {
	switch b.Kind {
	case KindHeading:
		h := 10.0
		if b.Subtitle != "" {
			h += estSubtitle
		}
		return h
	case KindCover:
		return 30 + float64(len(b.Fields))*7
	}

	h := 2 * estPadding
	if b.Title != "" {
		h += estTitle
	}
	if b.Subtitle != "" {
		h += estSubtitle
	}
	for _, f := range b.Fields {
		h += float64(rows(len(f.Label)+len(f.Value)+2)) * estLine
	}
	for _, l := range b.Lines {
		h += float64(rows(len(l))) * estLine
	}
	if len(b.Columns) > 0 {
		h += float64(len(b.Rows)+1) * estLine
	}
	return h
}

func rows(chars int) int {
	if chars <= 0 {
		return 1
	}
	return int(math.Ceil(float64(chars) / estCharsPerRow))
}
