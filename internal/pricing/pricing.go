// Package pricing computes offer price breakdowns from the plan catalog.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"salesplan-dashboard/internal/models"
)

const DefaultVATRate = 18.0

var ErrPlanNotFound = errors.New("pricing plan not found")

type Breakdown struct {
	RackPrice       float64 `json:"rack_price"`
	DiscountPercent float64 `json:"discount_percent"`
	DiscountAmount  float64 `json:"discount_amount"`
	DiscountedPrice float64 `json:"discounted_price"`
	VATAmount       float64 `json:"vat_amount"`
	FinalPrice      float64 `json:"final_price"`
}

// CalculateFinalPrice applies the discount and then VAT on the discounted price.
// Inputs are not range-checked and nothing is rounded.
func CalculateFinalPrice(rackPrice, discountPercent, vatRatePercent float64) Breakdown {
	discountAmount := rackPrice * discountPercent / 100
	discountedPrice := rackPrice - discountAmount
	vatAmount := discountedPrice * vatRatePercent / 100
	return Breakdown{
		RackPrice:       rackPrice,
		DiscountPercent: discountPercent,
		DiscountAmount:  discountAmount,
		DiscountedPrice: discountedPrice,
		VATAmount:       vatAmount,
		FinalPrice:      discountedPrice + vatAmount,
	}
}

type Catalog struct {
	vatRate float64
	plans   map[string]map[string]models.PricingPlan
}

func NewCatalog(plans []models.PricingPlan, vatRate float64) *Catalog {
	c := &Catalog{
		vatRate: vatRate,
		plans:   make(map[string]map[string]models.PricingPlan),
	}
	for _, p := range plans {
		loc := key(p.Location)
		if c.plans[loc] == nil {
			c.plans[loc] = make(map[string]models.PricingPlan)
		}
		c.plans[loc][key(p.Name)] = p
	}
	return c
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (c *Catalog) VATRate() float64 {
	return c.vatRate
}

func (c *Catalog) Plan(location, name string) (models.PricingPlan, error) {
	p, ok := c.plans[key(location)][key(name)]
	if !ok {
		return models.PricingPlan{}, fmt.Errorf("%w: %s at %s", ErrPlanNotFound, name, location)
	}
	return p, nil
}

// Plans lists a location's plans ordered by price.
func (c *Catalog) Plans(location string) []models.PricingPlan {
	byName := c.plans[key(location)]
	out := make([]models.PricingPlan, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price == out[j].Price {
			return out[i].Name < out[j].Name
		}
		return out[i].Price < out[j].Price
	})
	return out
}

type Quote struct {
	Plan      models.PricingPlan `json:"plan"`
	Breakdown Breakdown          `json:"breakdown"`
}

func (c *Catalog) Quote(location, plan string, discountPercent float64) (Quote, error) {
	p, err := c.Plan(location, plan)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Plan:      p,
		Breakdown: CalculateFinalPrice(p.Price, discountPercent, c.vatRate),
	}, nil
}
