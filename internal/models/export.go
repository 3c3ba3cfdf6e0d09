package models

import (
	"fmt"
	"math"
)

type RenderMode string

const (
	RenderVector RenderMode = "vector"
	RenderRaster RenderMode = "raster"
)

type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

type PageSize string

const (
	PageA4     PageSize = "a4"
	PageLetter PageSize = "letter"
	PageLegal  PageSize = "legal"
)

type Typography string

const (
	FontHelvetica Typography = "helvetica"
	FontTimes     Typography = "times"
	FontCourier   Typography = "courier"
)

type ColorScheme string

const (
	SchemeBrand ColorScheme = "brand"
	SchemeMono  ColorScheme = "mono"
	SchemeOcean ColorScheme = "ocean"
)

const (
	MinScale     = 1.0
	MaxScale     = 3.0
	ScaleStep    = 0.5
	DefaultScale = 2.0
)

// SectionToggles selects the optional report sections. The cover is always emitted.
type SectionToggles struct {
	Months        bool `json:"months"`
	Narratives    bool `json:"narratives"`
	Offers        bool `json:"offers"`
	Locations     bool `json:"locations"`
	Risks         bool `json:"risks"`
	ShowCancelled bool `json:"show_cancelled"`
	PageNumbers   bool `json:"page_numbers"`
}

// ExportConfiguration lives for a single export run and is never persisted.
type ExportConfiguration struct {
	Sections    SectionToggles `json:"sections"`
	Period      Period         `json:"period"`
	Scale       float64        `json:"scale"`
	Orientation Orientation    `json:"orientation"`
	PageSize    PageSize       `json:"page_size"`
	Typography  Typography     `json:"typography"`
	ColorScheme ColorScheme    `json:"color_scheme"`
	Mode        RenderMode     `json:"mode"`
	Preview     bool           `json:"preview"`
}

func DefaultExportConfiguration() ExportConfiguration {
	return ExportConfiguration{
		Sections: SectionToggles{
			Months:      true,
			Narratives:  true,
			Offers:      true,
			Locations:   true,
			Risks:       true,
			PageNumbers: true,
		},
		Period:      PeriodAll,
		Scale:       DefaultScale,
		Orientation: Portrait,
		PageSize:    PageA4,
		Typography:  FontHelvetica,
		ColorScheme: SchemeBrand,
		Mode:        RenderVector,
		Preview:     true,
	}
}

// Normalize fills zero values from the defaults.
func (c ExportConfiguration) Normalize() ExportConfiguration {
	d := DefaultExportConfiguration()
	if c.Period == "" {
		c.Period = d.Period
	}
	if c.Scale == 0 {
		c.Scale = d.Scale
	}
	if c.Orientation == "" {
		c.Orientation = d.Orientation
	}
	if c.PageSize == "" {
		c.PageSize = d.PageSize
	}
	if c.Typography == "" {
		c.Typography = d.Typography
	}
	if c.ColorScheme == "" {
		c.ColorScheme = d.ColorScheme
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	return c
}

func (c ExportConfiguration) Validate() error {
	if _, err := ParsePeriod(string(c.Period)); err != nil {
		return err
	}
	if c.Scale < MinScale || c.Scale > MaxScale {
		return fmt.Errorf("scale must be between %.1f and %.1f, got %g", MinScale, MaxScale, c.Scale)
	}
	if steps := c.Scale / ScaleStep; math.Abs(steps-math.Round(steps)) > 1e-9 {
		return fmt.Errorf("scale must be a multiple of %.1f, got %g", ScaleStep, c.Scale)
	}
	switch c.Orientation {
	case Portrait, Landscape:
	default:
		return fmt.Errorf("unknown orientation %q", c.Orientation)
	}
	switch c.PageSize {
	case PageA4, PageLetter, PageLegal:
	default:
		return fmt.Errorf("unknown page size %q", c.PageSize)
	}
	switch c.Typography {
	case FontHelvetica, FontTimes, FontCourier:
	default:
		return fmt.Errorf("unknown typography %q", c.Typography)
	}
	switch c.ColorScheme {
	case SchemeBrand, SchemeMono, SchemeOcean:
	default:
		return fmt.Errorf("unknown color scheme %q", c.ColorScheme)
	}
	switch c.Mode {
	case RenderVector, RenderRaster:
	default:
		return fmt.Errorf("unknown render mode %q", c.Mode)
	}
	return nil
}
