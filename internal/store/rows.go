package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"salesplan-dashboard/internal/models"
)

// Row types mirror the remote snake_case schema; the in-memory models never
// leave this package in row form.
type targetRow struct {
	Month            string `json:"month"`
	Year             int    `json:"year"`
	Target           int64  `json:"target"`
	Baseline         int64  `json:"baseline"`
	PriorYearRevenue int64  `json:"prior_year_revenue"`
	LocationTargets  []byte `json:"location_targets"`
	LocationPrior    []byte `json:"location_prior"`
	Theme            string `json:"theme"`
	Context          string `json:"context"`
	Focus            string `json:"focus"`
	PricingNote      string `json:"pricing_note"`
	HeroOffer        string `json:"hero_offer"`
	IsAnniversary    bool   `json:"is_anniversary"`
}

type offerRow struct {
	ID               string `json:"id"`
	Month            string `json:"month"`
	Year             int    `json:"year"`
	OfferType        string `json:"offer_type"`
	OfferName        string `json:"offer_name"`
	Audience         string `json:"audience"`
	Mechanics        string `json:"mechanics"`
	PricingBreakdown string `json:"pricing_breakdown"`
	WhyItWorks       string `json:"why_it_works"`
	Notes            string `json:"notes"`
	IsCancelled      bool   `json:"is_cancelled"`
	IsConfirmed      bool   `json:"is_confirmed"`
	LocationUnits    []byte `json:"location_units"`
	LocationRevenue  []byte `json:"location_revenue"`
}

type summaryRow struct {
	Month     string    `json:"month"`
	Year      int       `json:"year"`
	Summary   string    `json:"summary"`
	UpdatedAt time.Time `json:"updated_at"`
}

func targetFromModel(t models.MonthlyTarget) (targetRow, error) {
	locTargets, err := marshalMap(t.LocationTargets)
	if err != nil {
		return targetRow{}, err
	}
	locPrior, err := marshalMap(t.LocationPrior)
	if err != nil {
		return targetRow{}, err
	}
	return targetRow{
		Month:            t.Month.Name(),
		Year:             t.Year,
		Target:           t.Target,
		Baseline:         t.Baseline,
		PriorYearRevenue: t.PriorYearRevenue,
		LocationTargets:  locTargets,
		LocationPrior:    locPrior,
		Theme:            t.Theme,
		Context:          t.Context,
		Focus:            t.Focus,
		PricingNote:      t.PricingNote,
		HeroOffer:        t.HeroOffer,
		IsAnniversary:    t.Anniversary,
	}, nil
}

func (r targetRow) toModel() (models.MonthlyTarget, error) {
	month, err := models.ParseMonth(r.Month)
	if err != nil {
		return models.MonthlyTarget{}, err
	}
	t := models.MonthlyTarget{
		Month:            month,
		Year:             r.Year,
		Target:           r.Target,
		Baseline:         r.Baseline,
		PriorYearRevenue: r.PriorYearRevenue,
		Theme:            r.Theme,
		Context:          r.Context,
		Focus:            r.Focus,
		PricingNote:      r.PricingNote,
		HeroOffer:        r.HeroOffer,
		Anniversary:      r.IsAnniversary,
	}
	if err := unmarshalMap(r.LocationTargets, &t.LocationTargets); err != nil {
		return models.MonthlyTarget{}, fmt.Errorf("location_targets for %s: %w", r.Month, err)
	}
	if err := unmarshalMap(r.LocationPrior, &t.LocationPrior); err != nil {
		return models.MonthlyTarget{}, fmt.Errorf("location_prior for %s: %w", r.Month, err)
	}
	return t, nil
}

func offerFromModel(o models.Offer) (offerRow, error) {
	units, err := marshalMap(o.LocationUnits)
	if err != nil {
		return offerRow{}, err
	}
	revenue, err := marshalMap(o.LocationRevenue)
	if err != nil {
		return offerRow{}, err
	}
	return offerRow{
		ID:               o.ID,
		Month:            o.Month.Name(),
		Year:             o.Year,
		OfferType:        string(o.Category),
		OfferName:        o.Name,
		Audience:         o.Audience,
		Mechanics:        o.Mechanics,
		PricingBreakdown: o.Pricing,
		WhyItWorks:       o.WhyItWorks,
		Notes:            o.Notes,
		IsCancelled:      o.Cancelled,
		IsConfirmed:      o.Confirmed,
		LocationUnits:    units,
		LocationRevenue:  revenue,
	}, nil
}

func (r offerRow) toModel() (models.Offer, error) {
	month, err := models.ParseMonth(r.Month)
	if err != nil {
		return models.Offer{}, fmt.Errorf("offer %s: %w", r.ID, err)
	}
	o := models.Offer{
		ID:         r.ID,
		Month:      month,
		Year:       r.Year,
		Category:   models.OfferCategory(r.OfferType),
		Name:       r.OfferName,
		Audience:   r.Audience,
		Mechanics:  r.Mechanics,
		Pricing:    r.PricingBreakdown,
		WhyItWorks: r.WhyItWorks,
		Notes:      r.Notes,
		Cancelled:  r.IsCancelled,
		Confirmed:  r.IsConfirmed,
		SyncState:  models.SyncSynced,
	}
	if err := unmarshalMap(r.LocationUnits, &o.LocationUnits); err != nil {
		return models.Offer{}, fmt.Errorf("location_units for %s: %w", r.ID, err)
	}
	if err := unmarshalMap(r.LocationRevenue, &o.LocationRevenue); err != nil {
		return models.Offer{}, fmt.Errorf("location_revenue for %s: %w", r.ID, err)
	}
	return o, nil
}

func summaryFromModel(s models.Summary) summaryRow {
	return summaryRow{
		Month:     s.Month.Name(),
		Year:      s.Year,
		Summary:   s.Text,
		UpdatedAt: s.UpdatedAt,
	}
}

func (r summaryRow) toModel() (models.Summary, error) {
	month, err := models.ParseMonth(r.Month)
	if err != nil {
		return models.Summary{}, err
	}
	return models.Summary{Month: month, Year: r.Year, Text: r.Summary, UpdatedAt: r.UpdatedAt}, nil
}

func marshalMap[V any](m map[string]V) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalMap[V any](data []byte, out *map[string]V) error {
	if len(data) == 0 {
		return nil
	}
	var m map[string]V
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) > 0 {
		*out = m
	}
	return nil
}

func sortTargets(targets []models.MonthlyTarget) {
	sort.Slice(targets, func(i, j int) bool { return targets[i].Month < targets[j].Month })
}
