package templates

import (
	"context"
	"strings"
	"testing"

	"salesplan-dashboard/internal/models"
)

func TestOfferCard_EscapesAndMarksState(t *testing.T) {
	tests := []struct {
		name    string
		offer   models.Offer
		want    []string
		notWant []string
	}{
		{
			name:    "escapes user text",
			offer:   models.Offer{ID: "o1", Name: `<script>alert("x")</script>`, Audience: "A & B"},
			want:    []string{"&lt;script&gt;", "A &amp; B", "/cancel", "/confirm"},
			notWant: []string{"<script>"},
		},
		{
			name:    "confirmed hides actions",
			offer:   models.Offer{ID: "o2", Name: "Locked", Confirmed: true},
			want:    []string{"offer-confirmed"},
			notWant: []string{"/confirm", "/cancel"},
		},
		{
			name:  "cancelled offers restore",
			offer: models.Offer{ID: "o3", Name: "Old", Cancelled: true},
			want:  []string{"offer-cancelled", "/restore"},
		},
		{
			name:  "dirty badge",
			offer: models.Offer{ID: "o4", Name: "Pending", SyncState: models.SyncDirty, SyncError: "insert failed"},
			want:  []string{"Not saved", `title="insert failed"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := String(context.Background(), OfferCard(tt.offer))
			if err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(html, w) {
					t.Errorf("missing %q in %s", w, html)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(html, w) {
					t.Errorf("unexpected %q in %s", w, html)
				}
			}
		})
	}
}

func TestDashboard(t *testing.T) {
	v := DashboardView{
		Year:      2026,
		Theme:     "dark",
		Period:    models.PeriodAll,
		Aggregate: 25_000_000,
		Months: []MonthCard{{
			Target: models.MonthlyTarget{Month: models.March, Target: 2_200_000, Baseline: 2_000_000, Theme: "Spring Reset"},
		}},
		Unsynced: 2,
	}
	html, err := String(context.Background(), Dashboard(v))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<!DOCTYPE html>",
		`data-theme="dark"`,
		"Sales Plan 2026",
		`id="month-mar"`,
		`id="offers-mar"`,
		"No offers planned.",
		"2 unsaved change(s)",
		`id="export-modal"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestExportModal(t *testing.T) {
	closed, _ := String(context.Background(), ExportModal(ExportModalView{}))
	if closed != `<div id="export-modal"></div>` {
		t.Errorf("closed modal = %q", closed)
	}

	open, err := String(context.Background(), ExportModal(ExportModalView{
		Open:      true,
		Config:    models.DefaultExportConfiguration(),
		SessionID: "abc",
		State:     "previewing",
		URL:       "/export/preview/abc",
		Filename:  "sales-plan-report-2026-10-15.pdf",
		Pages:     4,
	}))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`src="/export/preview/abc"`, "/export/preview/abc/download", "4 page(s)"} {
		if !strings.Contains(open, want) {
			t.Errorf("open modal missing %q", want)
		}
	}
}
