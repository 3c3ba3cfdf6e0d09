// Package pagination lays report blocks out onto fixed-size pages and draws
// them through a Canvas using an injected rendering strategy.
package pagination

import (
	"fmt"

	"salesplan-dashboard/internal/models"
)

// Geometry describes a page in millimetres.
type Geometry struct {
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	MarginTop    float64 `json:"margin_top"`
	MarginBottom float64 `json:"margin_bottom"`
	MarginLeft   float64 `json:"margin_left"`
	MarginRight  float64 `json:"margin_right"`
}

const defaultMargin = 15.0

var paperSizes = map[models.PageSize][2]float64{
	models.PageA4:     {210, 297},
	models.PageLetter: {215.9, 279.4},
	models.PageLegal:  {215.9, 355.6},
}

// Preset returns the geometry for a supported paper size and orientation.
func Preset(size models.PageSize, orientation models.Orientation) (Geometry, error) {
	dims, ok := paperSizes[size]
	if !ok {
		return Geometry{}, fmt.Errorf("unsupported page size %q", size)
	}
	w, h := dims[0], dims[1]
	switch orientation {
	case models.Portrait, "":
	case models.Landscape:
		w, h = h, w
	default:
		return Geometry{}, fmt.Errorf("unsupported orientation %q", orientation)
	}
	return Geometry{
		Width:        w,
		Height:       h,
		MarginTop:    defaultMargin,
		MarginBottom: defaultMargin,
		MarginLeft:   defaultMargin,
		MarginRight:  defaultMargin,
	}, nil
}

func (g Geometry) ContentWidth() float64 {
	return g.Width - g.MarginLeft - g.MarginRight
}

func (g Geometry) validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("page size must be positive, got %gx%g", g.Width, g.Height)
	}
	if g.ContentWidth() <= 0 {
		return fmt.Errorf("margins leave no content width")
	}
	return nil
}
