// Package report assembles the ordered sections of an exported sales plan.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"salesplan-dashboard/internal/currency"
	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/narrative"
)

type Kind string

const (
	KindCover     Kind = "cover"
	KindHeading   Kind = "heading"
	KindMetrics   Kind = "metrics"
	KindNarrative Kind = "narrative"
	KindOffer     Kind = "offer"
	KindTable     Kind = "table"
	KindRisk      Kind = "risk"
)

type SectionKind string

const (
	SectionCover     SectionKind = "cover"
	SectionMonth     SectionKind = "month"
	SectionLocations SectionKind = "locations"
	SectionRisks     SectionKind = "risks"
)

// OtherLocation is the remainder bucket of the location breakdown.
const OtherLocation = "Other"

type Field struct {
	Label string
	Value string
}

// Block is the unit the pagination engine places. Controls name the interactive
// elements shown next to the block on screen; they never reach a vector page.
type Block struct {
	Kind            Kind
	Title           string
	Subtitle        string
	Fields          []Field
	Lines           []string
	Columns         []string
	Rows            [][]string
	Controls        []string
	Muted           bool
	KeepWithNext    bool
	EstimatedHeight float64
}

type Section struct {
	Kind   SectionKind
	Title  string
	Month  models.Month
	Blocks []Block
}

type Document struct {
	Title       string
	Subtitle    string
	Year        int
	Period      models.Period
	GeneratedAt time.Time
	Sections    []Section
}

// Blocks flattens the sections in order.
func (d Document) Blocks() []Block {
	var out []Block
	for _, s := range d.Sections {
		out = append(out, s.Blocks...)
	}
	return out
}

func (d Document) SectionsOf(kind SectionKind) []Section {
	var out []Section
	for _, s := range d.Sections {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type Input struct {
	Year        int
	Targets     []models.MonthlyTarget
	Offers      map[models.Month][]models.Offer
	Period      models.Period
	Narratives  map[models.Month]string
	Risks       []models.RiskItem
	Locations   []string
	Sections    models.SectionToggles
	GeneratedAt time.Time
}

// FilterMonths returns the targets inside period in calendar order.
func FilterMonths(targets []models.MonthlyTarget, period models.Period) []models.MonthlyTarget {
	out := make([]models.MonthlyTarget, 0, len(targets))
	for _, t := range targets {
		if period.Includes(t.Month) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// VisibleOffers drops cancelled offers unless showCancelled is set. Order is kept.
func VisibleOffers(offers []models.Offer, showCancelled bool) []models.Offer {
	out := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		if o.Cancelled && !showCancelled {
			continue
		}
		out = append(out, o)
	}
	return out
}

func AggregateTarget(targets []models.MonthlyTarget) int64 {
	var total int64
	for _, t := range targets {
		total += t.Target
	}
	return total
}

// Build never fails: missing narratives or offers only drop their blocks.
func Build(in Input) Document {
	period := in.Period
	if period == "" {
		period = models.PeriodAll
	}
	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	months := FilterMonths(in.Targets, period)

	doc := Document{
		Title:       fmt.Sprintf("Sales Plan %d", in.Year),
		Subtitle:    period.Label(),
		Year:        in.Year,
		Period:      period,
		GeneratedAt: generated,
	}
	doc.Sections = append(doc.Sections, coverSection(doc, months, in))

	if in.Sections.Months || in.Sections.Narratives || in.Sections.Offers {
		for _, t := range months {
			if s, ok := monthSection(t, in); ok {
				doc.Sections = append(doc.Sections, s)
			}
		}
	}
	if in.Sections.Locations && len(months) > 0 {
		doc.Sections = append(doc.Sections, locationSection(months, in.Locations))
	}
	if in.Sections.Risks {
		if s, ok := riskSection(period, in.Risks); ok {
			doc.Sections = append(doc.Sections, s)
		}
	}

	for i := range doc.Sections {
		for j := range doc.Sections[i].Blocks {
			b := &doc.Sections[i].Blocks[j]
			b.EstimatedHeight = Estimate(*b)
		}
	}
	return doc
}

func coverSection(doc Document, months []models.MonthlyTarget, in Input) Section {
	var baseline int64
	offers, confirmed := 0, 0
	for _, t := range months {
		baseline += t.Baseline
		for _, o := range VisibleOffers(in.Offers[t.Month], in.Sections.ShowCancelled) {
			offers++
			if o.Confirmed {
				confirmed++
			}
		}
	}
	total := AggregateTarget(months)
	growth := models.MonthlyTarget{Target: total, Baseline: baseline}.Growth()

	return Section{
		Kind:  SectionCover,
		Title: doc.Title,
		Blocks: []Block{{
			Kind:     KindCover,
			Title:    doc.Title,
			Subtitle: fmt.Sprintf("%s | generated %s", doc.Subtitle, doc.GeneratedAt.Format("2 Jan 2006")),
			Fields: []Field{
				{Label: "Aggregate target", Value: currency.Compact(total)},
				{Label: "Baseline", Value: currency.Compact(baseline)},
				{Label: "Growth", Value: currency.Percent(growth)},
				{Label: "Months", Value: fmt.Sprint(len(months))},
				{Label: "Offers", Value: fmt.Sprintf("%d (%d confirmed)", offers, confirmed)},
			},
		}},
	}
}

func monthSection(t models.MonthlyTarget, in Input) (Section, bool) {
	s := Section{Kind: SectionMonth, Month: t.Month, Title: fmt.Sprintf("%s %d", t.Month.Name(), in.Year)}
	if t.Anniversary {
		s.Title += " (Anniversary)"
	}

	var body []Block
	if in.Sections.Months {
		body = append(body, metricsBlock(t))
	}
	if in.Sections.Narratives {
		for _, p := range narrative.Paragraphs(in.Narratives[t.Month]) {
			body = append(body, Block{Kind: KindNarrative, Lines: []string{p}})
		}
	}
	if in.Sections.Offers {
		for _, o := range VisibleOffers(in.Offers[t.Month], in.Sections.ShowCancelled) {
			body = append(body, offerBlock(o))
		}
	}
	if len(body) == 0 {
		return s, false
	}

	heading := Block{Kind: KindHeading, Title: s.Title, Subtitle: t.Theme, KeepWithNext: true}
	s.Blocks = append([]Block{heading}, body...)
	return s, true
}

func metricsBlock(t models.MonthlyTarget) Block {
	b := Block{
		Kind:     KindMetrics,
		Title:    "Targets",
		Subtitle: fmt.Sprintf("%s | %s", t.Quarter(), t.Half().Label()),
		Fields: []Field{
			{Label: "Target", Value: currency.Compact(t.Target)},
			{Label: "Baseline", Value: currency.Compact(t.Baseline)},
			{Label: "Growth", Value: currency.Percent(t.Growth())},
			{Label: "Prior year", Value: currency.Compact(t.PriorYearRevenue)},
			{Label: "Focus", Value: t.Focus},
			{Label: "Hero offer", Value: t.HeroOffer},
		},
	}
	for _, line := range []string{t.Context, t.PricingNote} {
		if strings.TrimSpace(line) != "" {
			b.Lines = append(b.Lines, line)
		}
	}
	return b
}

func offerBlock(o models.Offer) Block {
	subtitle := o.Category.Label()
	switch {
	case o.Cancelled:
		subtitle += " | Cancelled"
	case o.Confirmed:
		subtitle += " | Confirmed"
	}
	b := Block{
		Kind:     KindOffer,
		Title:    o.Name,
		Subtitle: subtitle,
		Muted:    o.Cancelled,
	}
	for _, f := range []Field{
		{Label: "Audience", Value: o.Audience},
		{Label: "Mechanics", Value: o.Mechanics},
		{Label: "Pricing", Value: o.Pricing},
		{Label: "Why it works", Value: o.WhyItWorks},
		{Label: "Notes", Value: o.Notes},
	} {
		if strings.TrimSpace(f.Value) != "" {
			b.Fields = append(b.Fields, f)
		}
	}
	if rev := o.ExpectedRevenue(); rev > 0 {
		b.Fields = append(b.Fields, Field{Label: "Expected revenue", Value: currency.FullFloat(rev)})
	}
	if !o.Confirmed {
		b.Controls = []string{"Edit", "Confirm"}
		if o.Cancelled {
			b.Controls = append(b.Controls, "Restore")
		} else {
			b.Controls = append(b.Controls, "Cancel")
		}
	}
	b.Controls = append(b.Controls, "Delete")
	return b
}

type LocationTotal struct {
	Location string `json:"location"`
	Target   int64  `json:"target"`
	Prior    int64  `json:"prior"`
}

// LocationBreakdown sums named locations across months and appends the
// remainder of the month totals as OtherLocation.
func LocationBreakdown(months []models.MonthlyTarget, locations []string) []LocationTotal {
	out := make([]LocationTotal, 0, len(locations)+1)
	var target, prior, namedTarget, namedPrior int64
	for _, t := range months {
		target += t.Target
		prior += t.PriorYearRevenue
	}
	for _, loc := range locations {
		lt := LocationTotal{Location: loc}
		for _, t := range months {
			lt.Target += t.LocationTargets[loc]
			lt.Prior += t.LocationPrior[loc]
		}
		namedTarget += lt.Target
		namedPrior += lt.Prior
		out = append(out, lt)
	}
	return append(out, LocationTotal{
		Location: OtherLocation,
		Target:   target - namedTarget,
		Prior:    prior - namedPrior,
	})
}

func locationSection(months []models.MonthlyTarget, locations []string) Section {
	table := Block{
		Kind:    KindTable,
		Title:   "Target by location",
		Columns: []string{"Location", "Target", "Prior year", "Growth"},
	}
	var total, prior int64
	for _, lt := range LocationBreakdown(months, locations) {
		growth := models.MonthlyTarget{Target: lt.Target, Baseline: lt.Prior}.Growth()
		table.Rows = append(table.Rows, []string{
			lt.Location, currency.Compact(lt.Target), currency.Compact(lt.Prior), currency.Percent(growth),
		})
		total += lt.Target
		prior += lt.Prior
	}
	growth := models.MonthlyTarget{Target: total, Baseline: prior}.Growth()
	table.Rows = append(table.Rows, []string{"Total", currency.Compact(total), currency.Compact(prior), currency.Percent(growth)})

	return Section{
		Kind:  SectionLocations,
		Title: "Location Breakdown",
		Blocks: []Block{
			{Kind: KindHeading, Title: "Location Breakdown", KeepWithNext: true},
			table,
		},
	}
}

func riskSection(period models.Period, risks []models.RiskItem) (Section, bool) {
	s := Section{Kind: SectionRisks, Title: "Risk Assessment"}
	for _, h := range period.Halves() {
		for _, r := range risks {
			if r.Half != h {
				continue
			}
			s.Blocks = append(s.Blocks, Block{
				Kind:     KindRisk,
				Title:    r.Risk,
				Subtitle: h.Label(),
				Fields: []Field{
					{Label: "Probability", Value: r.Probability},
					{Label: "Impact", Value: r.Impact},
					{Label: "Mitigation", Value: r.Mitigation},
				},
			})
		}
	}
	if len(s.Blocks) == 0 {
		return s, false
	}
	s.Blocks = append([]Block{{Kind: KindHeading, Title: s.Title, Subtitle: period.Label(), KeepWithNext: true}}, s.Blocks...)
	return s, true
}
