// Package templates renders the dashboard markup. Fragments are patched into
// the page by datastar over SSE, so every fragment carries a stable id.
package templates

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"salesplan-dashboard/internal/currency"
	"salesplan-dashboard/internal/models"
)

type MonthCard struct {
	Target models.MonthlyTarget
	Offers []models.Offer
}

type DashboardView struct {
	Year          int
	Theme         string
	Period        models.Period
	Aggregate     int64
	Months        []MonthCard
	Unsynced      int
	Source        string
	ShowCancelled bool
}

// ExportModalView describes the export dialog. Session fields are empty until
// a preview has been generated.
type ExportModalView struct {
	Open      bool
	Busy      bool
	Config    models.ExportConfiguration
	SessionID string
	State     string
	URL       string
	Filename  string
	Pages     int
	Error     string
}

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(parts ...string) {
	for _, p := range parts {
		if w.err != nil {
			return
		}
		_, w.err = io.WriteString(w.w, p)
	}
}

func (w *writer) text(s string) {
	w.raw(templ.EscapeString(s))
}

func (w *writer) component(ctx context.Context, c templ.Component) {
	if w.err == nil && c != nil {
		w.err = c.Render(ctx, w.w)
	}
}

func attr(s string) string {
	return templ.EscapeString(s)
}

func render(fn func(ctx context.Context, w *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		fn(ctx, w)
		return w.err
	})
}

// String renders c into a string for SSE patches.
func String(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func Layout(title, theme string, body templ.Component) templ.Component {
	return render(func(ctx context.Context, w *writer) {
		w.raw(`<!DOCTYPE html><html lang="en" data-theme="`, attr(theme), `"><head><meta charset="utf-8">`)
		w.raw(`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		w.text(title)
		w.raw(`</title><script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"></script>`)
		w.raw(`</head><body>`)
		w.component(ctx, body)
		w.raw(`</body></html>`)
	})
}

func Dashboard(v DashboardView) templ.Component {
	body := render(func(ctx context.Context, w *writer) {
		w.raw(`<main id="dashboard" data-signals="{showCancelled: `, fmt.Sprint(v.ShowCancelled), `, period: '`, attr(string(v.Period)), `'}">`)
		w.raw(`<header class="toolbar"><h1>`)
		w.text(fmt.Sprintf("Sales Plan %d", v.Year))
		w.raw(`</h1><span class="aggregate">`)
		w.text(v.Period.Label() + " target " + currency.Compact(v.Aggregate))
		w.raw(`</span>`)
		w.component(ctx, SyncBadge(v.Unsynced, v.Source))
		w.raw(`<button data-on-click="@get('/sse/export-modal?open=true')">Export PDF</button>`)
		w.raw(`<button data-on-click="@post('/api/refresh')">Refresh</button></header>`)
		w.raw(`<div id="settings-panel" data-on-load="@get('/sse/settings')"></div>`)
		w.raw(`<section class="months">`)
		for _, m := range v.Months {
			w.component(ctx, MonthPanel(m))
		}
		w.raw(`</section><div id="export-modal"></div></main>`)
	})
	return Layout(fmt.Sprintf("Sales Plan %d", v.Year), v.Theme, body)
}

// SyncBadge shows how many offers failed to reach the record store.
func SyncBadge(unsynced int, source string) templ.Component {
	return render(func(ctx context.Context, w *writer) {
		w.raw(`<span id="sync-badge" class="badge`)
		switch {
		case unsynced > 0:
			w.raw(` badge-dirty">`)
			w.text(fmt.Sprintf("%d unsaved change(s)", unsynced))
		case source == "seed":
			w.raw(` badge-offline">Offline data`)
		default:
			w.raw(` badge-ok">Saved`)
		}
		w.raw(`</span>`)
	})
}

func monthQuery(m models.Month) string {
	return url.QueryEscape(m.Name())
}

func MonthPanel(c MonthCard) templ.Component {
	return render(func(ctx context.Context, w *writer) {
		t := c.Target
		w.raw(`<article class="month-card" id="month-`, attr(strings.ToLower(t.Month.Short())), `">`)
		w.raw(`<h2>`)
		w.text(t.Month.Name())
		w.raw(` <small>`)
		w.text(string(t.Quarter()))
		w.raw(`</small></h2><p class="theme">`)
		w.text(t.Theme)
		w.raw(`</p><dl class="metrics">`)
		metric(w, "Target", currency.Compact(t.Target))
		metric(w, "Last year", currency.Compact(t.Baseline))
		metric(w, "Growth", currency.Percent(t.Growth()))
		w.raw(`</dl>`)
		w.component(ctx, OfferList(t.Month, c.Offers))
		w.raw(`</article>`)
	})
}

func metric(w *writer, label, value string) {
	w.raw(`<dt>`)
	w.text(label)
	w.raw(`</dt><dd>`)
	w.text(value)
	w.raw(`</dd>`)
}

// OfferList is the fragment replaced by /sse/offers.
func OfferList(month models.Month, offers []models.Offer) templ.Component {
	return render(func(ctx context.Context, w *writer) {
		w.raw(`<div class="offers" id="offers-`, attr(strings.ToLower(month.Short())), `" data-on-load="@get('/sse/offers?month=`, monthQuery(month), `')">`)
		if len(offers) == 0 {
			w.raw(`<p class="empty">No offers planned.</p>`)
		}
		for _, o := range offers {
			w.component(ctx, OfferCard(o))
		}
		w.raw(`</div>`)
	})
}

func OfferCard(o models.Offer) templ.Component {
	return render(func(ctx context.Context, w *writer) {
		class := "offer"
		if o.Cancelled {
			class += " offer-cancelled"
		}
		if o.Confirmed {
			class += " offer-confirmed"
		}
		w.raw(`<div class="`, class, `" id="offer-`, attr(o.ID), `">`)
		w.raw(`<span class="category">`)
		w.text(o.Category.Label())
		w.raw(`</span><h3>`)
		w.text(o.Name)
		w.raw(`</h3>`)
		if o.SyncState == models.SyncDirty {
			w.raw(`<span class="badge badge-dirty" title="`, attr(o.SyncError), `">Not saved</span>`)
		}
		field(w, "Audience", o.Audience)
		field(w, "Mechanics", o.Mechanics)
		field(w, "Pricing", o.Pricing)
		field(w, "Why it works", o.WhyItWorks)
		if rev := o.ExpectedRevenue(); rev > 0 {
			field(w, "Expected revenue", currency.FullFloat(rev))
		}
		if !o.Confirmed {
			base := "/api/offers/" + url.PathEscape(o.ID)
			if o.Cancelled {
				w.raw(`<button data-on-click="@post('`, attr(base), `/restore')">Restore</button>`)
			} else {
				w.raw(`<button data-on-click="@post('`, attr(base), `/cancel')">Cancel</button>`)
			}
			w.raw(`<button data-on-click="@post('`, attr(base), `/confirm')">Confirm</button>`)
		}
		w.raw(`</div>`)
	})
}

func field(w *writer, label, value string) {
	if value == "" {
		return
	}
	w.raw(`<p><strong>`)
	w.text(label)
	w.raw(`:</strong> `)
	w.text(value)
	w.raw(`</p>`)
}

func ExportModal(v ExportModalView) templ.Component {
	return render(func(ctx context.Context, w *writer) {
		if !v.Open {
			w.raw(`<div id="export-modal"></div>`)
			return
		}
		c := v.Config
		w.raw(`<div id="export-modal" class="modal" role="dialog" data-signals="{export: {period: '`, attr(string(c.Period)),
			`', mode: '`, attr(string(c.Mode)), `', pageSize: '`, attr(string(c.PageSize)),
			`', orientation: '`, attr(string(c.Orientation)), `', scale: `, fmt.Sprint(c.Scale), `}}">`)
		w.raw(`<h2>Export sales plan</h2>`)
		if v.Error != "" {
			w.raw(`<p class="error">`)
			w.text(v.Error)
			w.raw(`</p>`)
		}
		switch {
		case v.Busy || v.State == "generating":
			w.raw(`<p class="status">Generating document…</p>`)
		case v.State == "previewing" || v.State == "downloaded":
			w.raw(`<iframe class="preview" title="PDF preview" src="`, attr(v.URL), `"></iframe><p>`)
			w.text(fmt.Sprintf("%s, %d page(s)", v.Filename, v.Pages))
			w.raw(`</p><form method="post" action="/export/preview/`, attr(v.SessionID), `/download"><button type="submit">Download</button></form>`)
			w.raw(`<button data-on-click="@post('/export/preview/`, attr(v.SessionID), `/cancel')">Close</button>`)
		default:
			w.raw(`<button data-on-click="@post('/api/export', {contentType: 'json'})">Generate preview</button>`)
			w.raw(`<button data-on-click="@get('/sse/export-modal')">Close</button>`)
		}
		w.raw(`</div>`)
	})
}

// SettingsPanel is streamed by /sse/settings whenever settings change.
func SettingsPanel(theme string, cfg models.ExportConfiguration) templ.Component {
	return render(func(ctx context.Context, w *writer) {
		w.raw(`<div id="settings-panel" class="settings">`)
		field(w, "Theme", theme)
		field(w, "Default page", strings.ToUpper(string(cfg.PageSize))+" "+string(cfg.Orientation))
		field(w, "Default mode", string(cfg.Mode))
		w.raw(`</div>`)
	})
}
