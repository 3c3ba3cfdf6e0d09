package models

import (
	"math"
	"time"
)

type MonthlyTarget struct {
	Month            Month            `json:"month" yaml:"month"`
	Year             int              `json:"year" yaml:"year"`
	Target           int64            `json:"target" yaml:"target"`
	Baseline         int64            `json:"baseline" yaml:"baseline"`
	PriorYearRevenue int64            `json:"prior_year_revenue" yaml:"prior_year_revenue"`
	LocationTargets  map[string]int64 `json:"location_targets" yaml:"location_targets"`
	LocationPrior    map[string]int64 `json:"location_prior" yaml:"location_prior"`
	Theme            string           `json:"theme" yaml:"theme"`
	Context          string           `json:"context" yaml:"context"`
	Focus            string           `json:"focus" yaml:"focus"`
	PricingNote      string           `json:"pricing_note" yaml:"pricing_note"`
	HeroOffer        string           `json:"hero_offer" yaml:"hero_offer"`
	Anniversary      bool             `json:"anniversary" yaml:"anniversary"`
}

func (t MonthlyTarget) Quarter() Quarter {
	return t.Month.Quarter()
}

func (t MonthlyTarget) Half() Half {
	return t.Month.Quarter().Half()
}

// Growth is the whole-percent change of Target over Baseline; 0 when there is no baseline.
func (t MonthlyTarget) Growth() int {
	if t.Baseline == 0 {
		return 0
	}
	return int(math.Round(float64(t.Target-t.Baseline) / float64(t.Baseline) * 100))
}

type OfferCategory string

const (
	CategoryNewMember  OfferCategory = "new-member"
	CategoryLapsed     OfferCategory = "lapsed"
	CategoryUpsell     OfferCategory = "upsell"
	CategoryInnovative OfferCategory = "innovative"
	CategoryHero       OfferCategory = "hero"
)

func (c OfferCategory) Label() string {
	switch c {
	case CategoryNewMember:
		return "New Member"
	case CategoryLapsed:
		return "Lapsed Win-back"
	case CategoryUpsell:
		return "Upsell"
	case CategoryInnovative:
		return "Innovative"
	case CategoryHero:
		return "Hero"
	case "":
		return "General"
	}
	return string(c)
}

type SyncState string

const (
	SyncSynced  SyncState = "synced"
	SyncPending SyncState = "pending"
	SyncDirty   SyncState = "dirty"
)

type Offer struct {
	ID              string             `json:"id" yaml:"id"`
	Month           Month              `json:"month" yaml:"month"`
	Year            int                `json:"year" yaml:"year"`
	Category        OfferCategory      `json:"category" yaml:"category"`
	Name            string             `json:"name" yaml:"name"`
	Audience        string             `json:"audience" yaml:"audience"`
	Mechanics       string             `json:"mechanics" yaml:"mechanics"`
	Pricing         string             `json:"pricing" yaml:"pricing"`
	WhyItWorks      string             `json:"why_it_works" yaml:"why_it_works"`
	Notes           string             `json:"notes,omitempty" yaml:"notes,omitempty"`
	Cancelled       bool               `json:"cancelled" yaml:"cancelled"`
	Confirmed       bool               `json:"confirmed" yaml:"confirmed"`
	LocationUnits   map[string]float64 `json:"location_units,omitempty" yaml:"location_units,omitempty"`
	LocationRevenue map[string]float64 `json:"location_revenue,omitempty" yaml:"location_revenue,omitempty"`
	SyncState       SyncState          `json:"sync_state" yaml:"-"`
	SyncError       string             `json:"sync_error,omitempty" yaml:"-"`
}

// ExpectedRevenue sums the per-location revenue expectations.
func (o Offer) ExpectedRevenue() float64 {
	var total float64
	for _, v := range o.LocationRevenue {
		total += v
	}
	return total
}

type PricingPlan struct {
	Location     string  `json:"location" yaml:"location"`
	Name         string  `json:"name" yaml:"name"`
	Price        float64 `json:"price" yaml:"price"`
	Duration     int     `json:"duration" yaml:"duration"`
	DurationUnit string  `json:"duration_unit" yaml:"duration_unit"`
	PlanType     string  `json:"plan_type" yaml:"plan_type"`
}

type RiskItem struct {
	Half        Half   `json:"half" yaml:"half"`
	Risk        string `json:"risk" yaml:"risk"`
	Probability string `json:"probability" yaml:"probability"`
	Impact      string `json:"impact" yaml:"impact"`
	Mitigation  string `json:"mitigation" yaml:"mitigation"`
}

// Summary is a cached narrative for one month of a planning year.
type Summary struct {
	Month     Month     `json:"month"`
	Year      int       `json:"year"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}
