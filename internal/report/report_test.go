package report

import (
	"strings"
	"testing"
	"time"

	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/seed"
)

var allSections = models.SectionToggles{
	Months: true, Narratives: true, Offers: true, Locations: true, Risks: true, PageNumbers: true,
}

func countKind(blocks []Block, kind Kind) int {
	n := 0
	for _, b := range blocks {
		if b.Kind == kind {
			n++
		}
	}
	return n
}

func fieldValue(b Block, label string) string {
	for _, f := range b.Fields {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}

func TestBuild_SingleMonthThreeOffers(t *testing.T) {
	in := Input{
		Year: 2026,
		Targets: []models.MonthlyTarget{{
			Month: models.May, Target: 1_000_000, Baseline: 700_000, PriorYearRevenue: 700_000, Theme: "Summer Prep",
		}},
		Offers: map[models.Month][]models.Offer{
			models.May: {
				{ID: "a", Month: models.May, Name: "First"},
				{ID: "b", Month: models.May, Name: "Second"},
				{ID: "c", Month: models.May, Name: "Third"},
			},
		},
		Period:      models.PeriodAll,
		Sections:    allSections,
		GeneratedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	doc := Build(in)

	months := doc.SectionsOf(SectionMonth)
	if len(months) != 1 {
		t.Fatalf("month sections = %d, want 1", len(months))
	}
	var offers []string
	var metrics *Block
	for i, b := range months[0].Blocks {
		switch b.Kind {
		case KindOffer:
			offers = append(offers, b.Title)
		case KindMetrics:
			metrics = &months[0].Blocks[i]
		}
	}
	if strings.Join(offers, ",") != "First,Second,Third" {
		t.Errorf("offers = %v, want original order", offers)
	}
	if metrics == nil {
		t.Fatal("missing metrics block")
	}
	if got := fieldValue(*metrics, "Growth"); got != "+43%" {
		t.Errorf("growth = %q, want +43%%", got)
	}
	if doc.Sections[0].Kind != SectionCover {
		t.Error("first section must be the cover")
	}
}

func TestBuild_QuarterFilter(t *testing.T) {
	ds, err := seed.Default()
	if err != nil {
		t.Fatal(err)
	}

	months := FilterMonths(ds.Targets, models.Period(models.Q1))
	if len(months) != 3 {
		t.Fatalf("Q1 months = %d, want 3", len(months))
	}
	var want int64
	for _, m := range months {
		if m.Quarter() != models.Q1 {
			t.Errorf("%s is %s, want Q1", m.Month, m.Quarter())
		}
		want += m.Target
	}
	if got := AggregateTarget(months); got != want {
		t.Errorf("AggregateTarget() = %d, want %d", got, want)
	}

	doc := Build(Input{Year: ds.Year, Targets: ds.Targets, Period: models.Period(models.Q1), Sections: allSections, Risks: ds.Risks})
	for _, s := range doc.SectionsOf(SectionMonth) {
		if s.Month.Quarter() != models.Q1 {
			t.Errorf("section %s outside Q1", s.Title)
		}
	}
	for _, b := range doc.Blocks() {
		if b.Kind == KindRisk && b.Subtitle != models.H1.Label() {
			t.Errorf("Q1 export includes %s risk %q", b.Subtitle, b.Title)
		}
	}
}

func TestVisibleOffers_Cancelled(t *testing.T) {
	offers := []models.Offer{
		{ID: "1", Name: "Keep"},
		{ID: "2", Name: "Gone", Cancelled: true},
		{ID: "3", Name: "Also"},
	}

	hidden := VisibleOffers(offers, false)
	if len(hidden) != 2 || hidden[0].ID != "1" || hidden[1].ID != "3" {
		t.Errorf("default view = %+v", hidden)
	}
	shown := VisibleOffers(offers, true)
	if len(shown) != 3 || shown[1].ID != "2" {
		t.Errorf("show cancelled = %+v", shown)
	}
}

func TestBuild_EmptyExport(t *testing.T) {
	ds, err := seed.Default()
	if err != nil {
		t.Fatal(err)
	}
	doc := Build(Input{
		Year:      ds.Year,
		Targets:   ds.Targets,
		Offers:    map[models.Month][]models.Offer{models.January: ds.Offers[:1]},
		Risks:     ds.Risks,
		Locations: ds.Locations,
	})

	if len(doc.Sections) != 1 || doc.Sections[0].Kind != SectionCover {
		t.Fatalf("sections = %+v, want cover only", doc.Sections)
	}
	if got := doc.Blocks(); len(got) != 1 || got[0].EstimatedHeight <= 0 {
		t.Errorf("blocks = %+v", got)
	}
}

func TestBuild_NarrativeParagraphs(t *testing.T) {
	in := Input{
		Year:       2026,
		Targets:    []models.MonthlyTarget{{Month: models.June, Target: 10, Baseline: 10}},
		Narratives: map[models.Month]string{models.June: "One.\n\nTwo.\n\nThree."},
		Sections:   models.SectionToggles{Narratives: true},
	}
	doc := Build(in)
	if got := countKind(doc.Blocks(), KindNarrative); got != 3 {
		t.Errorf("narrative blocks = %d, want 3", got)
	}
	if got := countKind(doc.Blocks(), KindMetrics); got != 0 {
		t.Errorf("metrics blocks = %d with months disabled", got)
	}

	in.Narratives = nil
	if doc := Build(in); len(doc.SectionsOf(SectionMonth)) != 0 {
		t.Error("month with no content should be omitted")
	}
}

func TestLocationBreakdown(t *testing.T) {
	months := []models.MonthlyTarget{
		{Target: 1000, PriorYearRevenue: 800, LocationTargets: map[string]int64{"A": 400, "B": 300}, LocationPrior: map[string]int64{"A": 300, "B": 300}},
		{Target: 500, PriorYearRevenue: 400, LocationTargets: map[string]int64{"A": 200, "B": 200}, LocationPrior: map[string]int64{"A": 150}},
	}

	got := LocationBreakdown(months, []string{"A", "B"})
	want := []LocationTotal{
		{Location: "A", Target: 600, Prior: 450},
		{Location: "B", Target: 500, Prior: 300},
		{Location: OtherLocation, Target: 400, Prior: 450},
	}
	if len(got) != len(want) {
		t.Fatalf("LocationBreakdown() = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestOfferBlock_Controls(t *testing.T) {
	open := offerBlock(models.Offer{Name: "Open"})
	if len(open.Controls) == 0 {
		t.Error("editable offer should expose controls")
	}
	confirmed := offerBlock(models.Offer{Name: "Done", Confirmed: true})
	for _, c := range confirmed.Controls {
		if c == "Edit" {
			t.Error("confirmed offer must not expose Edit")
		}
	}
	if !strings.Contains(confirmed.Subtitle, "Confirmed") {
		t.Errorf("subtitle = %q", confirmed.Subtitle)
	}
}
