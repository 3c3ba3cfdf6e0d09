package handlers

import (
	"context"
	"net/http"
	"time"

	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

// DashboardView assembles the dashboard for period.
func DashboardView(deps Deps, period models.Period) templates.DashboardView {
	s := deps.Settings.Get()
	showCancelled := s.Export.Sections.ShowCancelled
	months := deps.Planner.Months(period)
	cards := make([]templates.MonthCard, 0, len(months))
	for _, t := range months {
		cards = append(cards, templates.MonthCard{
			Target: t,
			Offers: deps.Planner.Offers(t.Month, showCancelled),
		})
	}
	return templates.DashboardView{
		Year:          deps.Planner.Year(),
		Theme:         string(s.Theme),
		Period:        period,
		Aggregate:     deps.Planner.AggregateTarget(period),
		Months:        cards,
		Unsynced:      len(deps.Planner.Unsynced()),
		Source:        string(deps.Planner.Source()),
		ShowCancelled: showCancelled,
	}
}

func Dashboard(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		period, err := models.ParsePeriod(r.URL.Query().Get("period"))
		if err != nil {
			http.Error(w, "invalid period", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if err := templates.Dashboard(DashboardView(deps, period)).Render(ctx, w); err != nil {
			deps.Logger.Error("render dashboard", "error", err)
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}
