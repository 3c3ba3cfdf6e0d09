package models

import "testing"

func TestMonth_Quarter(t *testing.T) {
	tests := []struct {
		month Month
		want  Quarter
		half  Half
	}{
		{January, Q1, H1},
		{March, Q1, H1},
		{April, Q2, H1},
		{June, Q2, H1},
		{July, Q3, H2},
		{September, Q3, H2},
		{October, Q4, H2},
		{December, Q4, H2},
	}

	for _, tt := range tests {
		t.Run(tt.month.Name(), func(t *testing.T) {
			if got := tt.month.Quarter(); got != tt.want {
				t.Errorf("Quarter() = %s, want %s", got, tt.want)
			}
			if got := tt.month.Quarter().Half(); got != tt.half {
				t.Errorf("Half() = %s, want %s", got, tt.half)
			}
		})
	}
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    Month
		wantErr bool
	}{
		{"January", January, false},
		{"jan", January, false},
		{" SEP ", September, false},
		{"december", December, false},
		{"", 0, true},
		{"Smarch", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonth(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonth(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMonth(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPeriod_Includes(t *testing.T) {
	q1, err := ParsePeriod("q1")
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range AllMonths() {
		want := m <= March
		if got := q1.Includes(m); got != want {
			t.Errorf("Q1.Includes(%s) = %v, want %v", m, got, want)
		}
		if !PeriodAll.Includes(m) {
			t.Errorf("all should include %s", m)
		}
	}

	if halves := Period(Q3).Halves(); len(halves) != 1 || halves[0] != H2 {
		t.Errorf("Q3 halves = %v", halves)
	}
	if _, err := ParsePeriod("Q5"); err == nil {
		t.Error("expected error for Q5")
	}
}

func TestMonthlyTarget_Growth(t *testing.T) {
	tests := []struct {
		name     string
		target   int64
		baseline int64
		want     int
	}{
		{"scenario", 1_000_000, 700_000, 43},
		{"flat", 500, 500, 0},
		{"decline", 800, 1000, -20},
		{"no baseline", 1000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := MonthlyTarget{Target: tt.target, Baseline: tt.baseline}
			if got := mt.Growth(); got != tt.want {
				t.Errorf("Growth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExportConfiguration_Validate(t *testing.T) {
	valid := DefaultExportConfiguration()
	if err := valid.Validate(); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ExportConfiguration)
	}{
		{"scale too low", func(c *ExportConfiguration) { c.Scale = 0.5 }},
		{"scale too high", func(c *ExportConfiguration) { c.Scale = 3.5 }},
		{"scale off step", func(c *ExportConfiguration) { c.Scale = 1.25 }},
		{"orientation", func(c *ExportConfiguration) { c.Orientation = "diagonal" }},
		{"page size", func(c *ExportConfiguration) { c.PageSize = "a3" }},
		{"typography", func(c *ExportConfiguration) { c.Typography = "comic" }},
		{"scheme", func(c *ExportConfiguration) { c.ColorScheme = "neon" }},
		{"mode", func(c *ExportConfiguration) { c.Mode = "svg" }},
		{"period", func(c *ExportConfiguration) { c.Period = "Q9" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultExportConfiguration()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	for _, scale := range []float64{1, 1.5, 2, 2.5, 3} {
		cfg := DefaultExportConfiguration()
		cfg.Scale = scale
		if err := cfg.Validate(); err != nil {
			t.Errorf("scale %g should be valid: %v", scale, err)
		}
	}
}

func TestExportConfiguration_Normalize(t *testing.T) {
	cfg := ExportConfiguration{Mode: RenderRaster}.Normalize()
	if cfg.Mode != RenderRaster {
		t.Errorf("Normalize() overwrote mode: %s", cfg.Mode)
	}
	if cfg.Scale != DefaultScale || cfg.PageSize != PageA4 || cfg.Period != PeriodAll {
		t.Errorf("Normalize() did not fill defaults: %+v", cfg)
	}
}
