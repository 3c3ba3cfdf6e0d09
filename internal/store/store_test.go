package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/seed"
)

type seedableStore interface {
	RecordStore
	Seeder
}

func testOffer(id string, month models.Month) models.Offer {
	return models.Offer{
		ID:              id,
		Month:           month,
		Year:            2026,
		Category:        models.CategoryUpsell,
		Name:            "Offer " + id,
		Audience:        "Members",
		Mechanics:       "Buy one get one",
		Pricing:         "Quarterly less 10%",
		WhyItWorks:      "Because",
		LocationUnits:   map[string]float64{"Indiranagar": 12},
		LocationRevenue: map[string]float64{"Indiranagar": 144000},
	}
}

func runStoreContract(t *testing.T, s seedableStore) {
	t.Helper()
	ctx := context.Background()

	ds, err := seed.Default()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertTargets(ctx, ds.TargetsForYear(2026)); err != nil {
		t.Fatalf("UpsertTargets() error = %v", err)
	}

	targets, err := s.FetchTargets(ctx, 2026)
	if err != nil {
		t.Fatalf("FetchTargets() error = %v", err)
	}
	if len(targets) != 12 {
		t.Fatalf("expected 12 targets, got %d", len(targets))
	}
	if targets[0].Month != models.January || targets[11].Month != models.December {
		t.Errorf("targets out of calendar order: %s..%s", targets[0].Month, targets[11].Month)
	}
	if targets[0].LocationTargets["Indiranagar"] != ds.Targets[0].LocationTargets["Indiranagar"] {
		t.Errorf("location targets not round-tripped: %v", targets[0].LocationTargets)
	}
	if other, _ := s.FetchTargets(ctx, 2031); len(other) != 0 {
		t.Errorf("expected no targets for 2031, got %d", len(other))
	}

	for _, o := range []models.Offer{testOffer("a", models.March), testOffer("b", models.January), testOffer("c", models.March)} {
		if err := s.InsertOffer(ctx, o); err != nil {
			t.Fatalf("InsertOffer(%s) error = %v", o.ID, err)
		}
	}
	if err := s.InsertOffer(ctx, testOffer("bad", 0)); err == nil {
		t.Error("expected InsertOffer to reject an invalid month")
	}

	offers, err := s.FetchOffers(ctx, 2026)
	if err != nil {
		t.Fatalf("FetchOffers() error = %v", err)
	}
	if len(offers) != 3 || offers[0].ID != "a" || offers[1].ID != "b" || offers[2].ID != "c" {
		t.Fatalf("FetchOffers() returned %+v", offers)
	}
	if offers[0].LocationRevenue["Indiranagar"] != 144000 || offers[0].SyncState != models.SyncSynced {
		t.Errorf("offer fields not translated: %+v", offers[0])
	}

	updated := offers[1]
	updated.Name = "Renamed"
	updated.Cancelled = true
	if err := s.UpdateOffer(ctx, updated); err != nil {
		t.Fatalf("UpdateOffer() error = %v", err)
	}
	if err := s.UpdateOffer(ctx, testOffer("missing", models.May)); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateOffer(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.DeactivateOffer(ctx, "a"); err != nil {
		t.Fatalf("DeactivateOffer() error = %v", err)
	}
	if err := s.DeactivateOffer(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeactivateOffer() error = %v, want ErrNotFound", err)
	}

	offers, err = s.FetchOffers(ctx, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if len(offers) != 2 || offers[0].ID != "b" || offers[0].Name != "Renamed" || !offers[0].Cancelled {
		t.Errorf("after update/deactivate got %+v", offers)
	}

	if err := s.UpsertSummary(ctx, models.Summary{Month: models.May, Year: 2026, Text: "first"}); err != nil {
		t.Fatalf("UpsertSummary() error = %v", err)
	}
	if err := s.UpsertSummary(ctx, models.Summary{Month: models.May, Year: 2026, Text: "second"}); err != nil {
		t.Fatalf("UpsertSummary() error = %v", err)
	}
	summaries, err := s.FetchSummaries(ctx, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].Text != "second" || summaries[0].Month != models.May {
		t.Errorf("FetchSummaries() = %+v", summaries)
	}
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "plan.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer s.Close()
	runStoreContract(t, s)
}

func TestMemoryStore_FailOn(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("unreachable")

	s.FailOn(OpFetchOffers, boom)
	if _, err := s.FetchOffers(ctx, 2026); !errors.Is(err, boom) {
		t.Errorf("FetchOffers() error = %v, want %v", err, boom)
	}

	s.FailOn(OpFetchOffers, nil)
	if _, err := s.FetchOffers(ctx, 2026); err != nil {
		t.Errorf("FetchOffers() after clearing failure error = %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open(memory) returned %T", s)
	}

	if _, err := Open(ctx, Config{Driver: "mongo"}); err == nil {
		t.Error("expected error for unknown driver")
	}
	if _, err := Open(ctx, Config{Driver: "postgres"}); err == nil {
		t.Error("expected error for postgres without DATABASE_URL")
	}
}
