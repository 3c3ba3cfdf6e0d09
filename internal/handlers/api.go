package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"salesplan-dashboard/internal/errors"
	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/observability"
	"salesplan-dashboard/internal/pricing"
	"salesplan-dashboard/internal/services"
	"salesplan-dashboard/internal/settings"
)

const maxBodyBytes = 1 << 20

// Deps are the services shared by the JSON and SSE handlers.
type Deps struct {
	Planner  *services.Planner
	Exporter *services.Exporter
	Catalog  *pricing.Catalog
	Settings *settings.Context
	Logger   *slog.Logger
}

type APIHandlers struct {
	Deps
	started time.Time
}

func NewAPIHandlers(deps Deps) *APIHandlers {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &APIHandlers{Deps: deps, started: time.Now()}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.Logger, err, observability.GetRequestID(r.Context()))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.BadRequestWrap(err, "invalid JSON body")
	}
	return nil
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

type monthsResponse struct {
	Period    models.Period          `json:"period"`
	Label     string                 `json:"label"`
	Aggregate int64                  `json:"aggregate"`
	Months    []models.MonthlyTarget `json:"months"`
}

func (h *APIHandlers) HandleMonths(w http.ResponseWriter, r *http.Request) {
	period, err := models.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		h.fail(w, r, errors.ValidationWrap(err, "invalid period"))
		return
	}
	errors.WriteSuccess(w, monthsResponse{
		Period:    period,
		Label:     period.Label(),
		Aggregate: h.Planner.AggregateTarget(period),
		Months:    h.Planner.Months(period),
	})
}

func (h *APIHandlers) HandleOffers(w http.ResponseWriter, r *http.Request) {
	showCancelled := queryBool(r, "show_cancelled")
	if m := r.URL.Query().Get("month"); m != "" {
		month, err := models.ParseMonth(m)
		if err != nil {
			h.fail(w, r, errors.ValidationWrap(err, "invalid month"))
			return
		}
		errors.WriteSuccess(w, h.Planner.Offers(month, showCancelled))
		return
	}

	all := make(map[string][]models.Offer)
	for _, month := range models.AllMonths() {
		if offers := h.Planner.Offers(month, showCancelled); len(offers) > 0 {
			all[month.Name()] = offers
		}
	}
	errors.WriteSuccess(w, all)
}

func (h *APIHandlers) HandleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var draft services.OfferDraft
	if err := decodeJSON(r, &draft); err != nil {
		h.fail(w, r, err)
		return
	}
	offer, err := h.Planner.AddOffer(r.Context(), draft)
	if err != nil {
		h.fail(w, r, services.PlanError(err))
		return
	}
	errors.WriteCreated(w, offer)
}

func (h *APIHandlers) HandleUpdateOffer(w http.ResponseWriter, r *http.Request) {
	var draft services.OfferDraft
	if err := decodeJSON(r, &draft); err != nil {
		h.fail(w, r, err)
		return
	}
	offer, err := h.Planner.UpdateOffer(r.Context(), r.PathValue("id"), draft)
	if err != nil {
		h.fail(w, r, services.PlanError(err))
		return
	}
	errors.WriteSuccess(w, offer)
}

func (h *APIHandlers) HandleCancelOffer(w http.ResponseWriter, r *http.Request) {
	h.setCancelled(w, r, true)
}

func (h *APIHandlers) HandleRestoreOffer(w http.ResponseWriter, r *http.Request) {
	h.setCancelled(w, r, false)
}

func (h *APIHandlers) setCancelled(w http.ResponseWriter, r *http.Request, cancelled bool) {
	offer, err := h.Planner.SetCancelled(r.Context(), r.PathValue("id"), cancelled)
	if err != nil {
		h.fail(w, r, services.PlanError(err))
		return
	}
	errors.WriteSuccess(w, offer)
}

func (h *APIHandlers) HandleConfirmOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.Planner.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, services.PlanError(err))
		return
	}
	errors.WriteSuccess(w, offer)
}

func (h *APIHandlers) HandleDeleteOffer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Planner.DeleteOffer(r.Context(), id); err != nil {
		h.fail(w, r, services.PlanError(err))
		return
	}
	errors.WriteSuccess(w, map[string]string{"id": id, "status": "deleted"})
}

type quoteRequest struct {
	Location        string   `json:"location"`
	Plan            string   `json:"plan"`
	RackPrice       *float64 `json:"rack_price"`
	DiscountPercent float64  `json:"discount_percent"`
	VATRate         *float64 `json:"vat_rate"`
}

// HandleQuote prices either a catalog plan or an explicit rack price.
func (h *APIHandlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.RackPrice != nil {
		vat := h.Catalog.VATRate()
		if req.VATRate != nil {
			vat = *req.VATRate
		}
		errors.WriteSuccess(w, pricing.CalculateFinalPrice(*req.RackPrice, req.DiscountPercent, vat))
		return
	}
	quote, err := h.Catalog.Quote(req.Location, req.Plan, req.DiscountPercent)
	if err != nil {
		h.fail(w, r, errors.NotFoundWrap(err, "unknown pricing plan"))
		return
	}
	errors.WriteSuccess(w, quote)
}

type refreshResponse struct {
	Refreshed bool   `json:"refreshed"`
	Unsynced  int    `json:"unsynced"`
	Source    string `json:"source"`
}

// HandleRefresh pushes pending local changes and then reloads the plan. The
// reload is skipped while changes remain unsaved so they are not lost.
func (h *APIHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	remaining := h.Planner.Resync(r.Context())
	if remaining > 0 {
		errors.WriteSuccess(w, refreshResponse{Unsynced: remaining, Source: string(h.Planner.Source())})
		return
	}
	if err := h.Planner.Refresh(r.Context()); err != nil {
		h.fail(w, r, errors.InternalWrap(err, "refresh failed"))
		return
	}
	errors.WriteSuccess(w, refreshResponse{Refreshed: true, Source: string(h.Planner.Source())})
}

func (h *APIHandlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.Settings.Get())
}

// HandlePutSettings applies a partial settings document over the current value.
func (h *APIHandlers) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, errors.BadRequestWrap(err, "read body"))
		return
	}
	var decodeErr error
	updated, err := h.Settings.Update(func(s *settings.Settings) error {
		decodeErr = json.Unmarshal(body, s)
		return decodeErr
	})
	if decodeErr != nil {
		h.fail(w, r, errors.BadRequestWrap(decodeErr, "invalid JSON body"))
		return
	}
	if err != nil {
		h.fail(w, r, errors.ValidationWrap(err, "invalid settings"))
		return
	}
	errors.WriteSuccess(w, updated)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"source":    string(h.Planner.Source()),
	}
	errors.WriteSuccess(w, healthData)
}

type statsResponse struct {
	Year          int     `json:"year"`
	Source        string  `json:"source"`
	Offers        int     `json:"offers"`
	Unsynced      int     `json:"unsynced"`
	ExportBusy    bool    `json:"export_busy"`
	Sessions      int     `json:"preview_sessions"`
	Subscribers   int     `json:"settings_subscribers"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	offers := 0
	for _, list := range h.Planner.OffersByMonth() {
		offers += len(list)
	}
	errors.WriteSuccess(w, statsResponse{
		Year:          h.Planner.Year(),
		Source:        string(h.Planner.Source()),
		Offers:        offers,
		Unsynced:      len(h.Planner.Unsynced()),
		ExportBusy:    h.Exporter.Busy(),
		Sessions:      len(h.Exporter.Sessions()),
		Subscribers:   h.Settings.Subscribers(),
		UptimeSeconds: time.Since(h.started).Seconds(),
	})
}
