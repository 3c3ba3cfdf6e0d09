// Package seed holds the static reference dataset for the planning year.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"salesplan-dashboard/internal/models"
)

//go:embed plan.yaml
var planYAML []byte

type Dataset struct {
	Year         int                    `yaml:"year"`
	Locations    []string               `yaml:"locations"`
	Targets      []models.MonthlyTarget `yaml:"targets"`
	PricingPlans []models.PricingPlan   `yaml:"pricing_plans"`
	Risks        []models.RiskItem      `yaml:"risks"`
	Offers       []models.Offer         `yaml:"offers"`
}

// Default decodes the embedded dataset.
func Default() (*Dataset, error) {
	return Parse(planYAML)
}

// LoadFile reads a dataset from disk, falling back to the embedded copy when path is empty.
func LoadFile(path string) (*Dataset, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for i := range ds.Targets {
		if ds.Targets[i].Year == 0 {
			ds.Targets[i].Year = ds.Year
		}
	}
	for i := range ds.Offers {
		if ds.Offers[i].Year == 0 {
			ds.Offers[i].Year = ds.Year
		}
		ds.Offers[i].SyncState = models.SyncSynced
	}
	if err := ValidateTargets(ds.Targets); err != nil {
		return nil, err
	}
	return &ds, nil
}

// ValidateTargets checks that each calendar month appears exactly once.
func ValidateTargets(targets []models.MonthlyTarget) error {
	if len(targets) != 12 {
		return fmt.Errorf("expected 12 monthly targets, got %d", len(targets))
	}
	seen := make(map[models.Month]bool, 12)
	anniversaries := 0
	for _, t := range targets {
		if !t.Month.Valid() {
			return fmt.Errorf("invalid month %d", int(t.Month))
		}
		if seen[t.Month] {
			return fmt.Errorf("duplicate target for %s", t.Month)
		}
		seen[t.Month] = true
		if t.Anniversary {
			anniversaries++
		}
	}
	if anniversaries > 1 {
		return fmt.Errorf("at most one anniversary month allowed, got %d", anniversaries)
	}
	return nil
}

// TargetsForYear returns a copy of the targets re-stamped for year.
func (d *Dataset) TargetsForYear(year int) []models.MonthlyTarget {
	out := make([]models.MonthlyTarget, len(d.Targets))
	copy(out, d.Targets)
	for i := range out {
		out[i].Year = year
	}
	return out
}

func (d *Dataset) OffersForYear(year int) []models.Offer {
	out := make([]models.Offer, len(d.Offers))
	copy(out, d.Offers)
	for i := range out {
		out[i].Year = year
	}
	return out
}

func (d *Dataset) RisksFor(halves ...models.Half) []models.RiskItem {
	want := make(map[models.Half]bool, len(halves))
	for _, h := range halves {
		want[h] = true
	}
	var out []models.RiskItem
	for _, r := range d.Risks {
		if want[r.Half] {
			out = append(out, r)
		}
	}
	return out
}
