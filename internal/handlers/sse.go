package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/settings"
	"salesplan-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	Deps
}

func NewSSEHandlers(deps Deps) *SSEHandlers {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &SSEHandlers{Deps: deps}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) patch(ctx context.Context, sse *datastar.ServerSentEventGenerator, fragments ...templ.Component) bool {
	for _, f := range fragments {
		html, err := templates.String(ctx, f)
		if err != nil {
			h.Logger.Error("render fragment", "error", err)
			return false
		}
		if err := sse.PatchElements(html); err != nil {
			h.Logger.Debug("patch elements", "error", err)
			return false
		}
	}
	return true
}

// HandleOffers re-renders one month's offer list and the sync badge.
func (h *SSEHandlers) HandleOffers(w http.ResponseWriter, r *http.Request) {
	month, err := models.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		http.Error(w, "invalid month", http.StatusBadRequest)
		return
	}
	showCancelled := queryBool(r, "show_cancelled") || h.Settings.Get().Export.Sections.ShowCancelled

	sse := datastar.NewSSE(w, r)
	offers := h.Planner.Offers(month, showCancelled)
	h.patch(r.Context(), sse,
		templates.OfferList(month, offers),
		templates.SyncBadge(len(h.Planner.Unsynced()), string(h.Planner.Source())),
	)
	flush(w)
}

// HandleExportModal renders the export dialog for the given preview session,
// or the empty dialog when none is given.
func (h *SSEHandlers) HandleExportModal(w http.ResponseWriter, r *http.Request) {
	view := templates.ExportModalView{
		Open:   queryBool(r, "open"),
		Busy:   h.Exporter.Busy(),
		Config: h.Settings.Get().Export,
	}
	if id := r.URL.Query().Get("session"); id != "" {
		view.Open = true
		session, err := h.Exporter.Session(id)
		if err != nil {
			view.Error = err.Error()
		} else {
			view.SessionID = session.ID
			view.State = string(session.State)
			view.URL = session.URL
			view.Filename = session.Filename
			view.Pages = session.Pages
			view.Config = session.Config
		}
	}

	sse := datastar.NewSSE(w, r)
	h.patch(r.Context(), sse, templates.ExportModal(view))
	flush(w)
}

type settingsSignals struct {
	Theme    settings.Theme             `json:"theme"`
	Year     int                        `json:"year"`
	Export   models.ExportConfiguration `json:"export"`
	Unsynced int                        `json:"unsynced"`
}

// HandleSettings streams the current settings and every later change until
// the client disconnects or the settings context closes.
func (h *SSEHandlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	// The stream outlives the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.Logger.Debug("clear write deadline", "error", err)
	}
	updates, cancel := h.Settings.Subscribe()
	defer cancel()

	sse := datastar.NewSSE(w, r)
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			signals, err := json.Marshal(settingsSignals{
				Theme:    s.Theme,
				Year:     s.Year,
				Export:   s.Export,
				Unsynced: len(h.Planner.Unsynced()),
			})
			if err != nil {
				h.Logger.Error("marshal settings signals", "error", err)
				return
			}
			if err := sse.PatchSignals(signals); err != nil {
				return
			}
			if !h.patch(ctx, sse, templates.SettingsPanel(string(s.Theme), s.Export)) {
				return
			}
			flush(w)
		}
	}
}
